package workflow

import (
	"github.com/VHWeng/zimagegen/graph/apigraph"
	"github.com/VHWeng/zimagegen/graph/types"
)

// WidgetField maps one positional widget value of a UI-export node to a named
// input on the flat document. Default, when non-nil, is used if the export's
// widget list is too short.
type WidgetField struct {
	Widget  int
	Input   string
	Default apigraph.Value
}

// Registry maps node classes to their widget layout. The mapping is positional
// and assumes the widget order of a specific known version of each class; a
// mismatched server version silently produces wrong values rather than
// failing. Unknown classes are passed through with link-resolved inputs only.
type Registry map[types.NodeClass][]WidgetField

// DefaultRegistry covers the classes the built-in pipeline and common
// text-to-image workflows use. New classes are added here, by data.
var DefaultRegistry = Registry{
	"CLIPTextEncode": {
		{Widget: 0, Input: "text"},
	},
	"KSampler": {
		{Widget: 0, Input: "seed"},
		{Widget: 1, Input: "steps"},
		{Widget: 2, Input: "cfg"},
		{Widget: 3, Input: "sampler_name"},
		{Widget: 4, Input: "scheduler"},
		{Widget: 5, Input: "denoise"},
	},
	"EmptyLatentImage": {
		{Widget: 0, Input: "width"},
		{Widget: 1, Input: "height"},
		{Widget: 2, Input: "batch_size", Default: apigraph.Int(1)},
	},
	"EmptySD3LatentImage": {
		{Widget: 0, Input: "width"},
		{Widget: 1, Input: "height"},
		{Widget: 2, Input: "batch_size", Default: apigraph.Int(1)},
	},
	"CheckpointLoaderSimple": {
		{Widget: 0, Input: "ckpt_name"},
	},
	"CLIPLoader": {
		{Widget: 0, Input: "clip_name"},
		{Widget: 1, Input: "type"},
	},
	"VAELoader": {
		{Widget: 0, Input: "vae_name"},
	},
	"UNETLoader": {
		{Widget: 0, Input: "unet_name"},
		{Widget: 1, Input: "weight_dtype", Default: apigraph.String("default")},
	},
	"ModelSamplingAuraFlow": {
		{Widget: 0, Input: "shift"},
	},
	"SaveImage": {
		{Widget: 0, Input: "filename_prefix", Default: apigraph.String("ComfyUI")},
	},
	"LoadImage": {
		{Widget: 0, Input: "image"},
	},
}

// Classes that exist only in the UI and never execute server-side.
var uiOnlyClasses = map[string]bool{
	"Note":          true,
	"MarkdownNote":  true,
	"PrimitiveNode": true,
	"Reroute":       true,
	"PreviewImage":  true,
	"LoadImageMask": true,
}
