package render

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/ncarrillo/emerald/gpu"
	"github.com/ncarrillo/emerald/tsp"
)

// Renderer errors.
var (
	// ErrNilList is returned when rendering a nil display list.
	ErrNilList = errors.New("emerald: display list is nil")
)

// Renderer turns display lists into frames on a host-provided device.
//
// It owns a gpu.Rasterizer and adds the frame-level policy: background
// first, opaque list, translucent list, or a raw framebuffer blit when the
// guest bypassed the rendering hardware. The color format comes from the
// host's surface via DeviceHandle so rendered frames composite directly
// onto the host window.
type Renderer struct {
	rast   *gpu.Rasterizer
	handle DeviceHandle
}

// NewRenderer creates a renderer on the host's device and queue.
//
// handle supplies the surface format; pass NullDeviceHandle (or nil) for
// offscreen use, in which case frames render in BGRA8.
func NewRenderer(device hal.Device, queue hal.Queue, handle DeviceHandle, screen tsp.ScreenConfig) (*Renderer, error) {
	cfg := gpu.Config{Screen: screen}
	if handle != nil {
		if format := handle.SurfaceFormat(); format != gputypes.TextureFormatUndefined {
			cfg.ColorFormat = format
		}
	}

	rast, err := gpu.NewRasterizer(device, queue, cfg)
	if err != nil {
		return nil, fmt.Errorf("create rasterizer: %w", err)
	}
	return &Renderer{rast: rast, handle: handle}, nil
}

// Destroy releases all GPU resources.
func (r *Renderer) Destroy() {
	if r.rast != nil {
		r.rast.Destroy()
		r.rast = nil
	}
}

// Reconfigure changes the emulated video mode.
func (r *Renderer) Reconfigure(screen tsp.ScreenConfig) error {
	return r.rast.Reconfigure(screen)
}

// UploadTexture makes a decoded texture resident for subsequent frames.
func (r *Renderer) UploadTexture(id gpu.TextureID, width, height uint32, texels []byte) error {
	return r.rast.UploadTexture(id, width, height, texels)
}

// RenderFrame draws one display list into the target view and blocks until
// the GPU finishes. Framebuffer frames blit directly; rendered frames draw
// the background plane, then the opaque list, then the translucent list.
func (r *Renderer) RenderFrame(target hal.TextureView, list *DisplayList) error {
	if list == nil {
		return ErrNilList
	}
	if list.IsFramebuffer() {
		return r.rast.BlitFramebuffer(target, list.framebuffer, list.fbWidth, list.fbHeight)
	}

	r.rast.BeginFrame()
	if list.hasBackground {
		if err := r.rast.SetBackground(list.background); err != nil {
			return err
		}
	}
	for i := range list.opaque {
		if err := r.rast.AppendOpaque(list.opaque[i]); err != nil {
			return err
		}
	}
	for i := range list.translucent {
		if err := r.rast.AppendTranslucent(list.translucent[i]); err != nil {
			return err
		}
	}
	return r.rast.RenderFrame(target)
}

// DeviceHandle returns the host device handle the renderer was created
// with, or nil for offscreen renderers.
func (r *Renderer) DeviceHandle() DeviceHandle {
	return r.handle
}
