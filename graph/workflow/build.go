// Package workflow turns a generation request into the flat prompt document
// accepted by the server. With no override, a fixed Z-Image Turbo pipeline is
// used. A user-supplied workflow, either a full UI export or an already-flat
// document, is adapted and then patched with the request's prompt text, seed
// and image size.
package workflow

import (
	"encoding/json"
	"math/rand"
	"strings"

	"github.com/VHWeng/zimagegen/graph/apigraph"
	"github.com/VHWeng/zimagegen/graph/apinodes"
	"github.com/VHWeng/zimagegen/graph/types"
)

// Defaults for the built-in pipeline, matching the Z-Image Turbo release.
const (
	DefaultCLIPName = "qwen_3_4b.safetensors"
	DefaultCLIPType = "lumina2"
	DefaultVAEName  = "ae.safetensors"
	DefaultUNETName = "z_image_turbo_bf16.safetensors"

	defaultShift    = 3.0
	defaultSteps    = 4
	defaultCFG      = 1.0
	defaultSampler  = "res_multistep"
	defaultSchedule = "simple"
	defaultPrefix   = "z-image"
)

// Request describes a single image generation. A Request is built by one
// caller, consumed once and discarded; it is never shared across requests.
type Request struct {
	PromptText string
	Width      int
	Height     int
	// Seed for the sampler. When nil, Build draws one uniformly from the
	// 32-bit range.
	Seed *uint32
	// Override is an optional workflow JSON replacing the built-in pipeline.
	// Both the UI export format and the flat prompt format are accepted.
	Override json.RawMessage
}

// Build produces the prompt document for the request.
func Build(req Request) (*apigraph.Graph, error) {
	return NewAdapter().Build(req)
}

func (a *Adapter) Build(req Request) (*apigraph.Graph, error) {
	seed := req.Seed
	if seed == nil {
		v := rand.Uint32()
		seed = &v
	}
	if len(req.Override) == 0 {
		return buildDefault(req.PromptText, req.Width, req.Height, *seed), nil
	}

	var g *apigraph.Graph
	var err error
	if isUIExport(req.Override) {
		g, err = a.Flatten(req.Override)
	} else {
		g, err = apigraph.Unmarshal(req.Override)
	}
	if err != nil {
		return nil, err
	}
	Apply(g, req.PromptText, req.Width, req.Height, *seed)
	return g, nil
}

// isUIExport reports whether the JSON is a full UI export, detected by the
// presence of a top-level "nodes" list.
func isUIExport(data json.RawMessage) bool {
	var probe struct {
		Nodes []json.RawMessage `json:"nodes"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	return probe.Nodes != nil
}

func buildDefault(prompt string, width, height int, seed uint32) *apigraph.Graph {
	g := apinodes.New()
	_, clip := apinodes.CLIPLoader(g, DefaultCLIPName, DefaultCLIPType)
	_, vae := apinodes.VAELoader(g, DefaultVAEName)
	_, model := apinodes.UNETLoader(g, DefaultUNETName, "default")
	_, positive := apinodes.CLIPTextEncode(g, clip, prompt)
	_, negative := apinodes.ConditioningZeroOut(g, positive)
	_, latent := apinodes.EmptySD3LatentImage(g, width, height, 1)
	_, shifted := apinodes.ModelSamplingAuraFlow(g, model, defaultShift)
	_, samples := apinodes.KSampler(g, shifted, positive, negative, latent,
		int64(seed), defaultSteps, defaultCFG, defaultSampler, defaultSchedule, 1.0)
	_, image := apinodes.VAEDecode(g, samples, vae)
	apinodes.SaveImage(g, image, defaultPrefix)
	return g
}

// Classes whose "text" input takes the prompt.
var textEncodeClasses = map[types.NodeClass]bool{
	"CLIPTextEncode":            true,
	"CLIPTextEncodeSDXL":        true,
	"CLIPTextEncodeSDXLRefiner": true,
	"CLIPTextEncodeFlux":        true,
	"CLIPTextEncodeLumina2":     true,
}

// Classes that size the empty latent.
var latentSizeClasses = map[types.NodeClass]bool{
	"EmptyLatentImage":    true,
	"EmptySD3LatentImage": true,
}

// Substring markers that flag a text-encode node as holding a negative
// prompt. This is a heuristic and can misfire on prompts that legitimately
// contain words like "bad"; it is kept as-is, matching the server-side UI
// conventions it was derived from.
var negativeMarkers = []string{"negative", "worst", "ugly", "bad", "watermark", "text,"}

func looksNegative(text string) bool {
	low := strings.ToLower(text)
	for _, m := range negativeMarkers {
		if strings.Contains(low, m) {
			return true
		}
	}
	return false
}

// Apply patches an adapted document with the request values: the prompt text
// on every text-encode node not flagged as a negative prompt, the seed on any
// node with an integer seed input, and width/height on latent-size nodes.
func Apply(g *apigraph.Graph, prompt string, width, height int, seed uint32) {
	for _, n := range g.Nodes {
		if textEncodeClasses[n.Class] {
			cur, _ := n.Inputs["text"].(apigraph.String)
			if !looksNegative(string(cur)) && prompt != "" {
				n.Inputs["text"] = apigraph.String(prompt)
			}
		}
		if _, ok := n.Inputs["seed"].(apigraph.Int); ok {
			n.Inputs["seed"] = apigraph.Int(seed)
		}
		if latentSizeClasses[n.Class] {
			if width > 0 {
				n.Inputs["width"] = apigraph.Int(width)
			}
			if height > 0 {
				n.Inputs["height"] = apigraph.Int(height)
			}
		}
	}
}
