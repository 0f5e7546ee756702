// Package gpu renders primitives produced by the emulated PVR onto a
// modern GPU through the gogpu/wgpu HAL.
//
// The package owns two pipelines. The primitive shading pipeline draws the
// opaque and translucent display lists into a target view: vertices arrive
// in emulated screen space and are transformed, textured primitives are
// sampled from an eight-slot catalog of fixed-size texture arrays, and the
// hardware's fixed-function combine modes and punch-through alpha are
// applied per fragment. The presentation blit pipeline copies the emulated
// framebuffer to a presentation surface unchanged.
//
// Per-invocation semantics live in the tsp package; the WGSL shaders here
// mirror it.
//
// A Rasterizer is not safe for concurrent use. The host must serialize
// texture uploads against draws that read them.
package gpu
