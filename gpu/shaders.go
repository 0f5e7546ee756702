package gpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"

	"github.com/ncarrillo/emerald/tsp"
)

// Embedded WGSL shader sources for the shading and blit pipelines.

//go:embed shaders/shading.wgsl
var shadingShaderSource string

//go:embed shaders/blit.wgsl
var blitShaderSource string

// Shading mode constants as encoded into the vertex stream.
// Must match the SHADING_* constants in shading.wgsl and tsp.ShadingMode.
const (
	shadingDecal             = uint32(tsp.ShadingDecal)
	shadingModulate          = uint32(tsp.ShadingModulate)
	shadingDecalWithAlpha    = uint32(tsp.ShadingDecalWithAlpha)
	shadingModulateWithAlpha = uint32(tsp.ShadingModulateWithAlpha)
)

// ShadingShaderSource returns the WGSL source for the primitive shading
// pipeline.
func ShadingShaderSource() string { return shadingShaderSource }

// BlitShaderSource returns the WGSL source for the presentation blit
// pipeline.
func BlitShaderSource() string { return blitShaderSource }

// ValidateShaders compiles both embedded shaders with naga and reports the
// first failure. Backends compile WGSL themselves at pipeline creation;
// this exists so a broken shader edit fails in tests rather than at the
// first frame.
func ValidateShaders() error {
	if shadingShaderSource == "" {
		return fmt.Errorf("emerald: shading shader source is empty")
	}
	if blitShaderSource == "" {
		return fmt.Errorf("emerald: blit shader source is empty")
	}
	if _, err := naga.Compile(shadingShaderSource); err != nil {
		return fmt.Errorf("emerald: compile shading shader: %w", err)
	}
	if _, err := naga.Compile(blitShaderSource); err != nil {
		return fmt.Errorf("emerald: compile blit shader: %w", err)
	}
	return nil
}
