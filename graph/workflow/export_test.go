package workflow

import (
	"encoding/json"
	"testing"

	"github.com/shoenig/test/must"

	"github.com/VHWeng/zimagegen/graph/apigraph"
	"github.com/VHWeng/zimagegen/graph/types"
)

// a trimmed text-to-image editor export: loader, two text encoders, latent,
// sampler, save, plus nodes that must not survive flattening
const uiExportDoc = `{
  "last_node_id": 12,
  "last_link_id": 9,
  "nodes": [
    {
      "id": 4,
      "type": "CheckpointLoaderSimple",
      "order": 0,
      "mode": 0,
      "outputs": [
        {"name": "MODEL", "type": "MODEL", "links": [1]},
        {"name": "CLIP", "type": "CLIP", "links": [2, 3]},
        {"name": "VAE", "type": "VAE", "links": []}
      ],
      "widgets_values": ["v1-5-pruned-emaonly.ckpt"]
    },
    {
      "id": 6,
      "type": "CLIPTextEncode",
      "order": 1,
      "mode": 0,
      "inputs": [{"name": "clip", "type": "CLIP", "link": 2}],
      "outputs": [{"name": "CONDITIONING", "type": "CONDITIONING", "links": [4]}],
      "widgets_values": ["a scenic landscape"]
    },
    {
      "id": 7,
      "type": "CLIPTextEncode",
      "order": 2,
      "mode": 0,
      "inputs": [{"name": "clip", "type": "CLIP", "link": 3}],
      "outputs": [{"name": "CONDITIONING", "type": "CONDITIONING", "links": [5]}],
      "widgets_values": ["text, watermark"]
    },
    {
      "id": 5,
      "type": "EmptyLatentImage",
      "order": 3,
      "mode": 0,
      "outputs": [{"name": "LATENT", "type": "LATENT", "links": [6]}],
      "widgets_values": [512, 512, 1]
    },
    {
      "id": 3,
      "type": "KSampler",
      "order": 4,
      "mode": 0,
      "inputs": [
        {"name": "model", "type": "MODEL", "link": 1},
        {"name": "positive", "type": "CONDITIONING", "link": 4},
        {"name": "negative", "type": "CONDITIONING", "link": 5},
        {"name": "latent_image", "type": "LATENT", "link": 6}
      ],
      "outputs": [{"name": "LATENT", "type": "LATENT", "links": [7]}],
      "widgets_values": [271508954, 20, 7.5, "euler", "normal", 1.0]
    },
    {
      "id": 9,
      "type": "SaveImage",
      "order": 5,
      "mode": 0,
      "inputs": [{"name": "images", "type": "IMAGE", "link": 7}],
      "widgets_values": ["ComfyUI"]
    },
    {
      "id": 10,
      "type": "Note",
      "order": 6,
      "mode": 0,
      "widgets_values": ["remember to swap the checkpoint"]
    },
    {
      "id": 11,
      "type": "Reroute",
      "order": 7,
      "mode": 0
    },
    {
      "id": 12,
      "type": "workflow-5ac2bd4e-5b71-4875-a38f-9e6cc1750b80",
      "order": 8,
      "mode": 0,
      "widgets_values": [1, 2]
    }
  ],
  "links": [
    [1, 4, 0, 3, 0, "MODEL"],
    [2, 4, 1, 6, 0, "CLIP"],
    [3, 4, 1, 7, 0, "CLIP"],
    [4, 6, 0, 3, 1, "CONDITIONING"],
    [5, 7, 0, 3, 2, "CONDITIONING"],
    [6, 5, 0, 3, 3, "LATENT"],
    [7, 3, 0, 9, 0, "IMAGE"]
  ],
  "version": 0.4
}`

func TestFlattenExport(t *testing.T) {
	g, err := NewAdapter(WithLog(testLog(t))).Flatten([]byte(uiExportDoc))
	must.NoError(t, err)

	// Note, Reroute and the unexpanded sub-graph node are gone
	must.EqOp(t, 6, len(g.Nodes))
	must.Nil(t, g.Nodes[10])
	must.Nil(t, g.Nodes[11])
	must.Nil(t, g.Nodes[12])

	loader := g.Nodes[4]
	must.EqOp(t, types.NodeClass("CheckpointLoaderSimple"), loader.Class)
	must.EqOp[apigraph.Value](t, apigraph.String("v1-5-pruned-emaonly.ckpt"), loader.Inputs["ckpt_name"])

	sampler := g.Nodes[3]
	must.EqOp[apigraph.Value](t, apigraph.Int(271508954), sampler.Inputs["seed"])
	must.EqOp[apigraph.Value](t, apigraph.Int(20), sampler.Inputs["steps"])
	must.EqOp[apigraph.Value](t, apigraph.Float(7.5), sampler.Inputs["cfg"])
	must.EqOp[apigraph.Value](t, apigraph.String("euler"), sampler.Inputs["sampler_name"])
	must.EqOp[apigraph.Value](t, apigraph.String("normal"), sampler.Inputs["scheduler"])
	must.EqOp[apigraph.Value](t, apigraph.Int(1), sampler.Inputs["denoise"])

	// edges became explicit node references on named inputs
	must.Eq[apigraph.Value](t, apigraph.Link{NodeID: 4, OutPort: 0}, sampler.Inputs["model"])
	must.Eq[apigraph.Value](t, apigraph.Link{NodeID: 6, OutPort: 0}, sampler.Inputs["positive"])
	must.Eq[apigraph.Value](t, apigraph.Link{NodeID: 7, OutPort: 0}, sampler.Inputs["negative"])
	must.Eq[apigraph.Value](t, apigraph.Link{NodeID: 5, OutPort: 0}, sampler.Inputs["latent_image"])
	must.Eq[apigraph.Value](t, apigraph.Link{NodeID: 3, OutPort: 0}, g.Nodes[9].Inputs["images"])

	must.NoError(t, g.Validate())
}

func TestBuildWithExportOverride(t *testing.T) {
	seed := uint32(31337)
	g, err := Build(Request{
		PromptText: "a lighthouse in a storm",
		Width:      768,
		Height:     512,
		Seed:       &seed,
		Override:   json.RawMessage(uiExportDoc),
	})
	must.NoError(t, err)

	// positive prompt replaced, negative prompt preserved
	must.EqOp[apigraph.Value](t, apigraph.String("a lighthouse in a storm"), g.Nodes[6].Inputs["text"])
	must.EqOp[apigraph.Value](t, apigraph.String("text, watermark"), g.Nodes[7].Inputs["text"])
	must.EqOp[apigraph.Value](t, apigraph.Int(31337), g.Nodes[3].Inputs["seed"])
	must.EqOp[apigraph.Value](t, apigraph.Int(768), g.Nodes[5].Inputs["width"])
	must.EqOp[apigraph.Value](t, apigraph.Int(512), g.Nodes[5].Inputs["height"])
}

func TestFlattenMutedNode(t *testing.T) {
	doc := `{"nodes": [
		{"id": 1, "type": "SaveImage", "mode": 2, "widgets_values": ["x"]},
		{"id": 2, "type": "PreviewImage", "mode": 0}
	], "links": []}`
	g, err := NewAdapter(WithLog(testLog(t))).Flatten([]byte(doc))
	must.NoError(t, err)
	must.MapLen(t, 0, g.Nodes)
}

func TestLooksGenerated(t *testing.T) {
	must.True(t, looksGenerated("workflow-5ac2bd4e-5b71-4875-a38f-9e6cc1750b80"))
	must.False(t, looksGenerated("KSampler"))
	must.False(t, looksGenerated("ConditioningZeroOut"))
	must.False(t, looksGenerated("Efficient-Loader"))
}

func TestLinkObjectForm(t *testing.T) {
	var l uiLink
	must.NoError(t, json.Unmarshal([]byte(`{"id": 3, "origin_id": 1, "origin_slot": 0, "target_id": 2, "target_slot": 1, "type": "CLIP"}`), &l))
	must.Eq(t, uiLink{ID: 3, OriginID: 1, OriginSlot: 0, TargetID: 2, TargetSlot: 1, Type: "CLIP"}, l)
}
