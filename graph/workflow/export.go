package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/VHWeng/zimagegen/graph/apigraph"
	"github.com/VHWeng/zimagegen/graph/types"
)

// Adapter flattens a UI workflow export into the prompt document format. The
// conversion is best-effort: it trusts the widget registry for the classes it
// knows and passes everything else through unchanged.
type Adapter struct {
	log      *slog.Logger
	registry Registry
}

type AdapterOption func(*Adapter)

func WithLog(log *slog.Logger) AdapterOption {
	return func(a *Adapter) {
		a.log = log
	}
}

func WithRegistry(reg Registry) AdapterOption {
	return func(a *Adapter) {
		a.registry = reg
	}
}

func NewAdapter(opts ...AdapterOption) *Adapter {
	a := &Adapter{
		log:      slog.Default(),
		registry: DefaultRegistry,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// UI export wire format, as written by the graph editor's "Save" action.

type uiExport struct {
	Nodes []*uiNode `json:"nodes"`
	Links []*uiLink `json:"links"`
}

type uiNode struct {
	ID           int      `json:"id"`
	Type         string   `json:"type"`
	Title        string   `json:"title"`
	Mode         int      `json:"mode"`
	Inputs       []uiSlot `json:"inputs"`
	Outputs      []uiSlot `json:"outputs"`
	WidgetValues []any    `json:"widgets_values"`
}

type uiSlot struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Link *int   `json:"link"`
}

// uiLink is serialized as a [id, source, sourceSlot, target, targetSlot, type]
// tuple. Subgraph exports use an object form instead; both are accepted.
type uiLink struct {
	ID         int
	OriginID   int
	OriginSlot int
	TargetID   int
	TargetSlot int
	Type       string
}

func (l *uiLink) UnmarshalJSON(data []byte) error {
	var tup []json.RawMessage
	if err := json.Unmarshal(data, &tup); err == nil {
		if len(tup) < 5 {
			return errors.New("link tuple too short")
		}
		ints := []*int{&l.ID, &l.OriginID, &l.OriginSlot, &l.TargetID, &l.TargetSlot}
		for i, dst := range ints {
			if err := json.Unmarshal(tup[i], dst); err != nil {
				return fmt.Errorf("link field %d: %w", i, err)
			}
		}
		if len(tup) > 5 {
			// type may be a string or a numeric type id; ignore decode failure
			_ = json.Unmarshal(tup[5], &l.Type)
		}
		return nil
	}
	var obj struct {
		ID         int    `json:"id"`
		OriginID   int    `json:"origin_id"`
		OriginSlot int    `json:"origin_slot"`
		TargetID   int    `json:"target_id"`
		TargetSlot int    `json:"target_slot"`
		Type       string `json:"type"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*l = uiLink{obj.ID, obj.OriginID, obj.OriginSlot, obj.TargetID, obj.TargetSlot, obj.Type}
	return nil
}

// Node modes assigned by the editor for disabled nodes.
const (
	modeMuted    = 2
	modeBypassed = 4
)

// looksGenerated reports whether a class name looks like a generated
// identifier (long and hyphenated), which marks an unexpanded composite
// sub-graph rather than a real node class.
func looksGenerated(class string) bool {
	return len(class) > 20 && strings.Count(class, "-") >= 2
}

// Flatten converts a UI export into a flat prompt document: UI-only and
// disabled nodes are dropped, positional widget values are mapped to named
// inputs via the registry, and graph edges become explicit node references.
func (a *Adapter) Flatten(data []byte) (*apigraph.Graph, error) {
	var ex uiExport
	if err := json.Unmarshal(data, &ex); err != nil {
		return nil, fmt.Errorf("cannot parse workflow export: %w", err)
	}

	g := apigraph.New()
	kept := make(map[int]*uiNode)
	skipped := make(map[string]bool)
	for _, n := range ex.Nodes {
		switch {
		case uiOnlyClasses[n.Type]:
			continue
		case n.Mode == modeMuted || n.Mode == modeBypassed:
			continue
		case looksGenerated(n.Type):
			skipped[n.Type] = true
			continue
		}
		kept[n.ID] = n
		node := &apigraph.Node{
			ID:     types.NodeID(n.ID),
			Class:  types.NodeClass(n.Type),
			Inputs: make(map[string]apigraph.Value),
		}
		a.mapWidgets(n, node)
		g.Nodes[node.ID] = node
		g.LastID = max(g.LastID, node.ID)
	}
	for class := range skipped {
		// an unexpanded sub-graph cannot run server-side; report and move on
		a.log.Warn("skipping unexpanded sub-graph node", "class", class)
	}

	for _, l := range ex.Links {
		target, ok := kept[l.TargetID]
		if !ok {
			continue
		}
		if _, ok := kept[l.OriginID]; !ok {
			a.log.Debug("dropping edge from skipped node", "origin", l.OriginID, "target", l.TargetID)
			continue
		}
		if l.TargetSlot < 0 || l.TargetSlot >= len(target.Inputs) {
			a.log.Warn("link targets unknown input slot", "target", l.TargetID, "slot", l.TargetSlot)
			continue
		}
		name := target.Inputs[l.TargetSlot].Name
		g.Nodes[types.NodeID(l.TargetID)].Inputs[name] = apigraph.Link{
			NodeID:  types.NodeID(l.OriginID),
			OutPort: l.OriginSlot,
		}
	}
	return g, nil
}

func (a *Adapter) mapWidgets(n *uiNode, node *apigraph.Node) {
	fields, ok := a.registry[node.Class]
	if !ok {
		if len(n.WidgetValues) > 0 {
			// unknown class: leave widget values unmapped rather than guess
			a.log.Debug("no widget layout for class", "class", node.Class,
				"widgets", len(n.WidgetValues), "known", knownClasses(a.registry))
		}
		return
	}
	for _, f := range fields {
		if f.Widget < len(n.WidgetValues) {
			if v := scalarValue(n.WidgetValues[f.Widget]); v != nil {
				node.Inputs[f.Input] = v
				continue
			}
		}
		if f.Default != nil {
			node.Inputs[f.Input] = f.Default
		}
	}
}

func knownClasses(reg Registry) []types.NodeClass {
	keys := maps.Keys(reg)
	slices.Sort(keys)
	return keys
}

func scalarValue(v any) apigraph.Value {
	switch v := v.(type) {
	case string:
		return apigraph.String(v)
	case bool:
		return apigraph.Bool(v)
	case float64:
		if v == math.Trunc(v) {
			return apigraph.Int(int64(v))
		}
		return apigraph.Float(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return apigraph.Int(i)
		}
		if f, err := v.Float64(); err == nil {
			return apigraph.Float(f)
		}
	}
	return nil
}
