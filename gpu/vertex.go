package gpu

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/gputypes"

	"github.com/ncarrillo/emerald/tsp"
)

// sentinelSlot marks a vertex as referencing no resident texture. The
// fragment shader's catalog dispatch sees an out-of-range slot and produces
// the opaque-red sentinel instead.
const sentinelSlot = 0xff

// Vertex is one already-transformed vertex as produced by the display list
// decoder: emulated screen-space position, packed colors, and a texture
// coordinate. Per-primitive state (texture, shading mode, flags) lives on
// Polygon, not here.
type Vertex struct {
	// X, Y are in emulated screen pixels; Z is the hardware depth value.
	X, Y, Z float32

	// U, V is the normalized texture coordinate.
	U, V float32

	// Color is the packed ARGB base color word.
	Color uint32

	// Offset is the packed ARGB offset color word. The decoder currently
	// always supplies zero; the term is carried through to the combiner so
	// enabling it is a decode-side change only.
	Offset uint32
}

// UnpackARGB converts a packed 0xAARRGGBB color word to normalized RGBA.
// The display list decoder must deliver Color and Offset words in this
// order; hardware formats that pack channels differently (the polygon
// stream's ABGR words, for instance) are swizzled upstream, before the
// vertex reaches this package.
func UnpackARGB(c uint32) [4]float32 {
	return [4]float32{
		float32((c>>16)&0xff) / 255.0,
		float32((c>>8)&0xff) / 255.0,
		float32(c&0xff) / 255.0,
		float32((c>>24)&0xff) / 255.0,
	}
}

// shadingVertexStride is the byte stride per vertex in the shading pipeline.
// Layout per vertex:
//
//	position     (vec3<f32>) = 12 bytes (location 0)
//	color        (vec4<f32>) = 16 bytes (location 1)
//	offset_color (vec3<f32>) = 12 bytes (location 2)
//	uv           (vec2<f32>) =  8 bytes (location 3)
//	array_index  (u32)       =  4 bytes (location 4)
//	texture_id   (u32)       =  4 bytes (location 5)
//	textured     (u32)       =  4 bytes (location 6)
//	ignore_alpha (u32)       =  4 bytes (location 7)
//	shading      (u32)       =  4 bytes (location 8)
//
// Total = 68 bytes per vertex.
const shadingVertexStride = 68

// shadingVertexLayout returns the vertex buffer layout for the shading
// pipeline. Matches VertexInput in shading.wgsl.
func shadingVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: shadingVertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},  // position
				{Format: gputypes.VertexFormatFloat32x4, Offset: 12, ShaderLocation: 1}, // color
				{Format: gputypes.VertexFormatFloat32x3, Offset: 28, ShaderLocation: 2}, // offset_color
				{Format: gputypes.VertexFormatFloat32x2, Offset: 40, ShaderLocation: 3}, // uv
				{Format: gputypes.VertexFormatUint32, Offset: 48, ShaderLocation: 4},    // array_index
				{Format: gputypes.VertexFormatUint32, Offset: 52, ShaderLocation: 5},    // texture_id
				{Format: gputypes.VertexFormatUint32, Offset: 56, ShaderLocation: 6},    // textured
				{Format: gputypes.VertexFormatUint32, Offset: 60, ShaderLocation: 7},    // ignore_alpha
				{Format: gputypes.VertexFormatUint32, Offset: 64, ShaderLocation: 8},    // shading
			},
		},
	}
}

// shadingVertex is the wire form of one shading-pipeline vertex, after
// color unpacking and texture residency resolution.
type shadingVertex struct {
	position    [3]float32
	color       [4]float32
	offsetColor [3]float32
	uv          [2]float32
	arrayIndex  uint32
	textureID   uint32
	textured    uint32
	ignoreAlpha uint32
	shading     uint32
}

// appendShadingVertex serializes one vertex in the layout above.
func appendShadingVertex(data []byte, v shadingVertex) []byte {
	var buf [shadingVertexStride]byte
	off := 0
	putF32 := func(f float32) {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(f))
		off += 4
	}
	putU32 := func(u uint32) {
		binary.LittleEndian.PutUint32(buf[off:], u)
		off += 4
	}
	putF32(v.position[0])
	putF32(v.position[1])
	putF32(v.position[2])
	putF32(v.color[0])
	putF32(v.color[1])
	putF32(v.color[2])
	putF32(v.color[3])
	putF32(v.offsetColor[0])
	putF32(v.offsetColor[1])
	putF32(v.offsetColor[2])
	putF32(v.uv[0])
	putF32(v.uv[1])
	putU32(v.arrayIndex)
	putU32(v.textureID)
	putU32(v.textured)
	putU32(v.ignoreAlpha)
	putU32(v.shading)
	return append(data, buf[:]...)
}

// appendStripIndices expands an n-vertex triangle strip starting at base
// into triangle-list indices. Every other triangle swaps its trailing
// vertices so winding alternates the way strip hardware assembles it.
func appendStripIndices(indices []uint16, base, n uint16) []uint16 {
	for i := uint16(0); i+2 < n; i++ {
		a, b, c := base+i, base+i+1, base+i+2
		if i%2 == 1 {
			b, c = c, b
		}
		indices = append(indices, a, b, c)
	}
	return indices
}

// indicesToBytes serializes 16-bit indices for GPU upload.
func indicesToBytes(indices []uint16) []byte {
	data := make([]byte, len(indices)*2)
	for i, idx := range indices {
		binary.LittleEndian.PutUint16(data[i*2:], idx)
	}
	return data
}

// ---- Blit quad ----

// blitVertexStride is the byte stride per vertex in the blit pipeline:
// position (vec3<f32>) + uv (vec2<f32>) = 20 bytes.
const blitVertexStride = 20

// blitVertexLayout returns the vertex buffer layout for the blit pipeline.
// Matches VertexInput in blit.wgsl.
func blitVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: blitVertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},  // position
				{Format: gputypes.VertexFormatFloat32x2, Offset: 12, ShaderLocation: 1}, // uv
			},
		},
	}
}

// blitQuadVertexData returns the full-surface quad: clip-space corners with
// UVs oriented so the framebuffer's top-left texel lands at the top-left of
// the surface.
func blitQuadVertexData() []byte {
	verts := []struct {
		pos [3]float32
		uv  [2]float32
	}{
		{[3]float32{-1, 1, 0}, [2]float32{0, 0}},
		{[3]float32{1, 1, 0}, [2]float32{1, 0}},
		{[3]float32{-1, -1, 0}, [2]float32{0, 1}},
		{[3]float32{1, -1, 0}, [2]float32{1, 1}},
	}
	data := make([]byte, 0, len(verts)*blitVertexStride)
	var buf [blitVertexStride]byte
	for _, v := range verts {
		binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(v.pos[0]))
		binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(v.pos[1]))
		binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(v.pos[2]))
		binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(v.uv[0]))
		binary.LittleEndian.PutUint32(buf[16:], math.Float32bits(v.uv[1]))
		data = append(data, buf[:]...)
	}
	return data
}

// blitQuadIndices is the two-triangle index list covering the quad.
var blitQuadIndices = []uint16{0, 2, 1, 1, 2, 3}

// screenUniformSize is the byte size of the screen uniform buffer.
// Layout: size (vec2<f32>) + depth_range (vec2<f32>) = 16 bytes.
const screenUniformSize = 16

// makeScreenUniform serializes a ScreenConfig for the uniform buffer.
// Must match the Screen struct in shading.wgsl.
func makeScreenUniform(cfg tsp.ScreenConfig) []byte {
	buf := make([]byte, screenUniformSize)
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(float32(cfg.Width)))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(cfg.Height)))
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(cfg.Near))
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(cfg.Far))
	return buf
}
