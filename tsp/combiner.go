package tsp

import "fmt"

// ShadingMode selects the fixed-function texture combine formula applied to
// a textured primitive. The values match the instruction field decoded from
// the primitive's TSP word and the constants in shading.wgsl.
type ShadingMode uint32

const (
	// ShadingDecal replaces the base color with the texture color.
	ShadingDecal ShadingMode = 0

	// ShadingModulate multiplies base and texture colors.
	ShadingModulate ShadingMode = 1

	// ShadingDecalWithAlpha lerps between base and texture by texture alpha.
	ShadingDecalWithAlpha ShadingMode = 2

	// ShadingModulateWithAlpha multiplies colors and alphas.
	ShadingModulateWithAlpha ShadingMode = 3
)

// String returns the mode name as decoded from the TSP instruction word.
func (m ShadingMode) String() string {
	switch m {
	case ShadingDecal:
		return "Decal"
	case ShadingModulate:
		return "Modulate"
	case ShadingDecalWithAlpha:
		return "DecalWithAlpha"
	case ShadingModulateWithAlpha:
		return "ModulateWithAlpha"
	default:
		return fmt.Sprintf("ShadingMode(%d)", uint32(m))
	}
}

// Combine applies the fixed-function texture combiner to one fragment.
//
// base is the interpolated vertex color, tex the sampled texture color,
// both non-premultiplied RGBA. offset is the additive offset ("specular")
// color; the upstream decoder currently always supplies zero but the term
// participates in every formula so wiring it up later costs nothing here.
//
// ignoreAlpha forces the texture alpha to 1 before the formula is applied,
// matching the TSP "use alpha" bit being clear.
//
// A mode outside the four defined values falls back to base plus offset:
// malformed state renders deterministically instead of crashing.
func Combine(base, tex [4]float32, offset [3]float32, ignoreAlpha bool, mode ShadingMode) [4]float32 {
	texAlpha := tex[3]
	if ignoreAlpha {
		texAlpha = 1.0
	}

	switch mode {
	case ShadingDecal:
		return [4]float32{
			tex[0] + offset[0],
			tex[1] + offset[1],
			tex[2] + offset[2],
			texAlpha,
		}
	case ShadingModulate:
		return [4]float32{
			base[0]*tex[0] + offset[0],
			base[1]*tex[1] + offset[1],
			base[2]*tex[2] + offset[2],
			texAlpha,
		}
	case ShadingDecalWithAlpha:
		return [4]float32{
			texAlpha*tex[0] + (1.0-texAlpha)*base[0] + offset[0],
			texAlpha*tex[1] + (1.0-texAlpha)*base[1] + offset[1],
			texAlpha*tex[2] + (1.0-texAlpha)*base[2] + offset[2],
			base[3],
		}
	case ShadingModulateWithAlpha:
		return [4]float32{
			base[0]*tex[0] + offset[0],
			base[1]*tex[1] + offset[1],
			base[2]*tex[2] + offset[2],
			base[3] * texAlpha,
		}
	default:
		return [4]float32{
			base[0] + offset[0],
			base[1] + offset[1],
			base[2] + offset[2],
			base[3],
		}
	}
}

// Shade computes the final fragment color. Texturing is an all-or-nothing
// per-primitive switch: when textured is false the combiner is bypassed
// entirely and the interpolated vertex color passes through unchanged,
// whatever the mode or texture inputs say.
func Shade(base, tex [4]float32, offset [3]float32, textured, ignoreAlpha bool, mode ShadingMode) [4]float32 {
	if !textured {
		return base
	}
	return Combine(base, tex, offset, ignoreAlpha, mode)
}

// Discard reports whether the alpha gate drops the fragment. The hardware's
// punch-through behavior writes nothing at all for alpha exactly zero; the
// comparison is exact, not a near-zero threshold, so a fragment at 0.0001
// still draws.
func Discard(color [4]float32) bool {
	return color[3] == 0.0
}
