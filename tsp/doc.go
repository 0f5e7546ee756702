// Package tsp implements the per-invocation semantics of the Dreamcast
// PVR Texture and Shading Processor as pure functions: the screen-to-clip
// vertex transform, the eight texture size classes, gradient level-of-detail
// selection, the four fixed-function shading modes, and the punch-through
// alpha gate.
//
// The gpu package's WGSL shaders mirror these functions exactly; tsp is the
// reference the shader code is checked against.
package tsp
