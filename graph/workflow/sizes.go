package workflow

// Size is an image size in pixels. Both dimensions must be multiples of 8 for
// the latent encoders.
type Size struct {
	Width  int
	Height int
}

// Presets are common sizes selectable by name.
var Presets = map[string]Size{
	"small":     {512, 512},
	"square":    {1024, 1024},
	"portrait":  {832, 1216},
	"landscape": {1216, 832},
	"wide":      {1280, 720},
}

// FitAspect computes a size for the given aspect ratio: the width is the base
// size, the height is derived from the ratio and rounded down to a multiple
// of 8.
func FitAspect(ratioW, ratioH, base int) Size {
	if ratioW <= 0 || ratioH <= 0 || base <= 0 {
		return Size{}
	}
	h := base * ratioH / ratioW / 8 * 8
	return Size{Width: base, Height: h}
}
