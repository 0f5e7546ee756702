package tsp

// ScreenConfig holds the logical screen size and depth range used by the
// vertex transform. The values are explicit rather than baked into the
// transform so a resize or a different video mode only has to swap the
// config; DefaultScreenConfig matches the hardware's standard VGA output.
type ScreenConfig struct {
	// Width and Height are the logical screen size in pixels.
	Width  uint32
	Height uint32

	// Near and Far bound the hardware depth values mapped onto [0, 1].
	Near float32
	Far  float32
}

// DefaultScreenConfig returns the standard 640x480 output with the
// hardware's 0.1..10000 depth range.
func DefaultScreenConfig() ScreenConfig {
	return ScreenConfig{Width: 640, Height: 480, Near: 0.1, Far: 10000.0}
}

// Transform maps a position from emulated screen-pixel space to clip space.
//
// X maps [0, width] to [-1, 1]. Y maps [0, height] to [1, -1] -- the
// hardware origin is top-left, clip-space origin is bottom-left, so Y flips.
// Z is a linear remap of the hardware depth value onto [0, 1]; there is no
// perspective term because the hardware supplies pre-divided coordinates,
// so W is always 1.
func (c ScreenConfig) Transform(pos [3]float32) [4]float32 {
	return [4]float32{
		pos[0]*2.0/float32(c.Width) - 1.0,
		pos[1]*-2.0/float32(c.Height) + 1.0,
		(pos[2] - c.Near) / (c.Far - c.Near),
		1.0,
	}
}
