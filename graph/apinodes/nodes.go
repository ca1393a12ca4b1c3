// Package apinodes provides typed constructors for the node classes used by
// the built-in text-to-image pipeline. Each constructor appends a node to the
// graph and returns its identifier together with links to its output slots.
//
// Only the classes this project submits are covered. Anything else can be
// added to a graph directly via apigraph.
package apinodes

import (
	"github.com/VHWeng/zimagegen/graph/apigraph"
	"github.com/VHWeng/zimagegen/graph/types"
)

func New() *Graph {
	return apigraph.New()
}

type Graph = apigraph.Graph
type Node = apigraph.Node
type Link = apigraph.Link
type Value = apigraph.Value
type Int = apigraph.Int
type Float = apigraph.Float
type String = apigraph.String
type Bool = apigraph.Bool

func add(g *Graph, class types.NodeClass, inputs map[string]Value) types.NodeID {
	return g.Add(&Node{Class: class, Inputs: inputs})
}

// CLIPLoader loads a standalone text encoder. Returns the node id and the CLIP
// output link.
func CLIPLoader(g *Graph, clipName, typ string) (types.NodeID, Link) {
	id := add(g, "CLIPLoader", map[string]Value{
		"clip_name": String(clipName),
		"type":      String(typ),
	})
	return id, Link{NodeID: id, OutPort: 0}
}

// VAELoader loads a standalone VAE.
func VAELoader(g *Graph, vaeName string) (types.NodeID, Link) {
	id := add(g, "VAELoader", map[string]Value{
		"vae_name": String(vaeName),
	})
	return id, Link{NodeID: id, OutPort: 0}
}

// UNETLoader loads a diffusion model without the bundled CLIP/VAE.
func UNETLoader(g *Graph, unetName, weightDType string) (types.NodeID, Link) {
	id := add(g, "UNETLoader", map[string]Value{
		"unet_name":    String(unetName),
		"weight_dtype": String(weightDType),
	})
	return id, Link{NodeID: id, OutPort: 0}
}

// CheckpointLoaderSimple loads a full checkpoint. Returns model, clip and vae
// output links.
func CheckpointLoaderSimple(g *Graph, ckptName string) (types.NodeID, Link, Link, Link) {
	id := add(g, "CheckpointLoaderSimple", map[string]Value{
		"ckpt_name": String(ckptName),
	})
	return id, Link{NodeID: id, OutPort: 0}, Link{NodeID: id, OutPort: 1}, Link{NodeID: id, OutPort: 2}
}

// CLIPTextEncode encodes a text prompt into conditioning.
func CLIPTextEncode(g *Graph, clip Link, text string) (types.NodeID, Link) {
	id := add(g, "CLIPTextEncode", map[string]Value{
		"text": String(text),
		"clip": clip,
	})
	return id, Link{NodeID: id, OutPort: 0}
}

// ConditioningZeroOut zeroes conditioning, used in place of a negative prompt
// for guidance-free models.
func ConditioningZeroOut(g *Graph, conditioning Link) (types.NodeID, Link) {
	id := add(g, "ConditioningZeroOut", map[string]Value{
		"conditioning": conditioning,
	})
	return id, Link{NodeID: id, OutPort: 0}
}

// EmptySD3LatentImage creates an empty latent of the given size.
func EmptySD3LatentImage(g *Graph, width, height, batch int) (types.NodeID, Link) {
	id := add(g, "EmptySD3LatentImage", map[string]Value{
		"width":      Int(width),
		"height":     Int(height),
		"batch_size": Int(batch),
	})
	return id, Link{NodeID: id, OutPort: 0}
}

// ModelSamplingAuraFlow patches the model's sampling shift.
func ModelSamplingAuraFlow(g *Graph, model Link, shift float64) (types.NodeID, Link) {
	id := add(g, "ModelSamplingAuraFlow", map[string]Value{
		"shift": Float(shift),
		"model": model,
	})
	return id, Link{NodeID: id, OutPort: 0}
}

// KSampler runs the sampler. Returns the output latent link.
func KSampler(g *Graph, model, positive, negative, latent Link, seed int64, steps int, cfg float64, sampler, scheduler string, denoise float64) (types.NodeID, Link) {
	id := add(g, "KSampler", map[string]Value{
		"seed":         Int(seed),
		"steps":        Int(steps),
		"cfg":          Float(cfg),
		"sampler_name": String(sampler),
		"scheduler":    String(scheduler),
		"denoise":      Float(denoise),
		"model":        model,
		"positive":     positive,
		"negative":     negative,
		"latent_image": latent,
	})
	return id, Link{NodeID: id, OutPort: 0}
}

// VAEDecode decodes a latent into an image.
func VAEDecode(g *Graph, samples, vae Link) (types.NodeID, Link) {
	id := add(g, "VAEDecode", map[string]Value{
		"samples": samples,
		"vae":     vae,
	})
	return id, Link{NodeID: id, OutPort: 0}
}

// SaveImage writes images to the server's output directory.
func SaveImage(g *Graph, images Link, filenamePrefix string) types.NodeID {
	return add(g, "SaveImage", map[string]Value{
		"filename_prefix": String(filenamePrefix),
		"images":          images,
	})
}
