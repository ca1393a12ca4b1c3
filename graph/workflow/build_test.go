package workflow

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/shoenig/test/must"

	"github.com/VHWeng/zimagegen/graph/apigraph"
	"github.com/VHWeng/zimagegen/graph/types"
)

func testLog(t testing.TB) *slog.Logger {
	lvl := slog.LevelWarn
	if os.Getenv("DEBUG") != "" {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func findByClass(t *testing.T, g *apigraph.Graph, class types.NodeClass) *apigraph.Node {
	t.Helper()
	nodes := g.NodesByClass(class)
	must.Len(t, 1, nodes)
	return nodes[0]
}

func TestBuildDefault(t *testing.T) {
	seed := uint32(1234)
	g, err := Build(Request{
		PromptText: "a vending machine at dusk",
		Width:      640,
		Height:     384,
		Seed:       &seed,
	})
	must.NoError(t, err)
	must.NoError(t, g.Validate())
	must.EqOp(t, 10, len(g.Nodes))

	sampler := findByClass(t, g, "KSampler")
	must.EqOp[apigraph.Value](t, apigraph.Int(1234), sampler.Inputs["seed"])
	must.EqOp[apigraph.Value](t, apigraph.Int(4), sampler.Inputs["steps"])
	must.EqOp[apigraph.Value](t, apigraph.String("res_multistep"), sampler.Inputs["sampler_name"])

	latent := findByClass(t, g, "EmptySD3LatentImage")
	must.EqOp[apigraph.Value](t, apigraph.Int(640), latent.Inputs["width"])
	must.EqOp[apigraph.Value](t, apigraph.Int(384), latent.Inputs["height"])

	encode := findByClass(t, g, "CLIPTextEncode")
	must.EqOp[apigraph.Value](t, apigraph.String("a vending machine at dusk"), encode.Inputs["text"])

	save := findByClass(t, g, "SaveImage")
	must.EqOp[apigraph.Value](t, apigraph.String("z-image"), save.Inputs["filename_prefix"])
}

func TestBuildRandomSeed(t *testing.T) {
	build := func() apigraph.Int {
		g, err := Build(Request{PromptText: "x", Width: 512, Height: 512})
		must.NoError(t, err)
		seed, ok := findByClass(t, g, "KSampler").Inputs["seed"].(apigraph.Int)
		must.True(t, ok)
		must.True(t, seed >= 0)
		return seed
	}
	a, b := build(), build()
	if a == b {
		// a 1 in 2^32 coincidence, or a broken generator; one retry decides
		b = build()
	}
	must.NotEqOp(t, a, b)
}

func flatOverride(t *testing.T, doc map[string]any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(doc)
	must.NoError(t, err)
	return data
}

func TestApplyProtectsNegativePrompt(t *testing.T) {
	override := flatOverride(t, map[string]any{
		"1": map[string]any{
			"class_type": "CLIPTextEncode",
			"inputs":     map[string]any{"text": "old positive prompt"},
		},
		"2": map[string]any{
			"class_type": "CLIPTextEncode",
			"inputs":     map[string]any{"text": "text, watermark"},
		},
	})
	seed := uint32(7)
	g, err := Build(Request{
		PromptText: "new prompt text",
		Width:      512,
		Height:     512,
		Seed:       &seed,
		Override:   override,
	})
	must.NoError(t, err)
	must.EqOp[apigraph.Value](t, apigraph.String("new prompt text"), g.Nodes[1].Inputs["text"])
	must.EqOp[apigraph.Value](t, apigraph.String("text, watermark"), g.Nodes[2].Inputs["text"])
}

func TestApplySeedAndSize(t *testing.T) {
	g, err := apigraph.Unmarshal(flatOverride(t, map[string]any{
		"3": map[string]any{
			"class_type": "KSampler",
			"inputs":     map[string]any{"seed": 42, "steps": 4},
		},
		"5": map[string]any{
			"class_type": "EmptyLatentImage",
			"inputs":     map[string]any{"width": 512, "height": 512},
		},
		"7": map[string]any{
			"class_type": "SomeCustomSampler",
			"inputs":     map[string]any{"seed": "fixed"},
		},
	}))
	must.NoError(t, err)

	Apply(g, "prompt", 1024, 768, 99)
	must.EqOp[apigraph.Value](t, apigraph.Int(99), g.Nodes[3].Inputs["seed"])
	must.EqOp[apigraph.Value](t, apigraph.Int(4), g.Nodes[3].Inputs["steps"])
	must.EqOp[apigraph.Value](t, apigraph.Int(1024), g.Nodes[5].Inputs["width"])
	must.EqOp[apigraph.Value](t, apigraph.Int(768), g.Nodes[5].Inputs["height"])
	// a non-integer seed is not a sampler seed field
	must.EqOp[apigraph.Value](t, apigraph.String("fixed"), g.Nodes[7].Inputs["seed"])
}

func TestFitAspect(t *testing.T) {
	cases := []struct {
		rw, rh, base int
		want         Size
	}{
		{16, 9, 512, Size{512, 288}},
		{1, 1, 512, Size{512, 512}},
		{4, 3, 1024, Size{1024, 768}},
		{9, 16, 512, Size{512, 904}},
		{0, 9, 512, Size{}},
		{16, 9, 0, Size{}},
	}
	for _, c := range cases {
		must.Eq(t, c.want, FitAspect(c.rw, c.rh, c.base))
	}
}
