package render

import (
	"github.com/ncarrillo/emerald/gpu"
)

// DisplayList is one frame of decoded primitives in submission order.
//
// The emulation core appends polygons as it walks the hardware's display
// lists, then hands the whole frame to the Renderer. Keeping the frame
// retained rather than drawing immediately lets the renderer batch the
// opaque and translucent passes into two draws and lets the core rebuild
// only when the guest actually submits a new scene.
//
// Example:
//
//	list := render.NewDisplayList()
//	list.SetBackground(bg)
//	list.AppendOpaque(poly)
//	list.AppendTranslucent(sprite)
//	renderer.RenderFrame(target, list)
//	list.Reset()
type DisplayList struct {
	background    [4]gpu.Vertex
	hasBackground bool

	opaque      []gpu.Polygon
	translucent []gpu.Polygon

	// framebuffer, when non-empty, replaces the rendered scene with a
	// direct blit of these BGRA bytes. The guest drew to video memory with
	// the CPU and the rendered lists must not be shown.
	framebuffer []byte
	fbWidth     uint32
	fbHeight    uint32
}

// NewDisplayList creates an empty display list.
func NewDisplayList() *DisplayList {
	return &DisplayList{
		opaque:      make([]gpu.Polygon, 0, 64),
		translucent: make([]gpu.Polygon, 0, 64),
	}
}

// Reset clears the list for the next frame. Capacity is retained.
func (l *DisplayList) Reset() {
	l.hasBackground = false
	l.opaque = l.opaque[:0]
	l.translucent = l.translucent[:0]
	l.framebuffer = nil
	l.fbWidth, l.fbHeight = 0, 0
}

// SetBackground records the frame's background plane.
func (l *DisplayList) SetBackground(verts [4]gpu.Vertex) {
	l.background = verts
	l.hasBackground = true
}

// AppendOpaque adds a polygon to the opaque pass.
func (l *DisplayList) AppendOpaque(poly gpu.Polygon) {
	l.opaque = append(l.opaque, poly)
}

// AppendTranslucent adds a polygon to the translucent pass. Order is
// preserved through to the GPU.
func (l *DisplayList) AppendTranslucent(poly gpu.Polygon) {
	l.translucent = append(l.translucent, poly)
}

// SetFramebuffer marks the frame as a direct framebuffer presentation.
// pixels is width*height*4 BGRA bytes, referenced without copying.
func (l *DisplayList) SetFramebuffer(pixels []byte, width, height uint32) {
	l.framebuffer = pixels
	l.fbWidth, l.fbHeight = width, height
}

// IsFramebuffer reports whether this frame presents raw framebuffer bytes
// instead of rendered lists.
func (l *DisplayList) IsFramebuffer() bool { return len(l.framebuffer) > 0 }

// OpaqueCount returns the number of polygons in the opaque pass.
func (l *DisplayList) OpaqueCount() int { return len(l.opaque) }

// TranslucentCount returns the number of polygons in the translucent pass.
func (l *DisplayList) TranslucentCount() int { return len(l.translucent) }
