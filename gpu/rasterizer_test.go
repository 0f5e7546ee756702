package gpu

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/ncarrillo/emerald/tsp"
)

// createTargetView creates a screen-sized render target on the rasterizer's
// device.
func createTargetView(t *testing.T, r *Rasterizer) (hal.TextureView, func()) {
	t.Helper()
	tex, err := r.device.CreateTexture(&hal.TextureDescriptor{
		Label: "test_target",
		Size: hal.Extent3D{
			Width:              r.cfg.Screen.Width,
			Height:             r.cfg.Screen.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        r.cfg.ColorFormat,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		t.Fatalf("CreateTexture failed: %v", err)
	}
	view, err := r.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: "test_target_view",
	})
	if err != nil {
		r.device.DestroyTexture(tex)
		t.Fatalf("CreateTextureView failed: %v", err)
	}
	return view, func() {
		r.device.DestroyTextureView(view)
		r.device.DestroyTexture(tex)
	}
}

// quad returns a 4-vertex strip covering the given pixel rectangle.
func quad(x, y, w, h, z float32, color uint32) []Vertex {
	return []Vertex{
		{X: x, Y: y, Z: z, U: 0, V: 0, Color: color},
		{X: x + w, Y: y, Z: z, U: 1, V: 0, Color: color},
		{X: x, Y: y + h, Z: z, U: 0, V: 1, Color: color},
		{X: x + w, Y: y + h, Z: z, U: 1, V: 1, Color: color},
	}
}

func TestNewRasterizer(t *testing.T) {
	r, cleanup := createTestRasterizer(t)
	defer cleanup()

	cfg := r.Config()
	if cfg.Screen.Width != 640 || cfg.Screen.Height != 480 {
		t.Errorf("default screen = %dx%d, want 640x480", cfg.Screen.Width, cfg.Screen.Height)
	}
	if r.opaquePipeline == nil || r.translucentPipeline == nil || r.blitPipeline == nil {
		t.Error("pipelines not created")
	}
	if r.shadingBind == nil || r.blitBind == nil {
		t.Error("bind groups not created")
	}
}

func TestNewRasterizerNilDevice(t *testing.T) {
	if _, err := NewRasterizer(nil, nil, DefaultConfig()); !errors.Is(err, ErrNilDevice) {
		t.Errorf("err = %v, want ErrNilDevice", err)
	}
}

func TestRasterizerDoubleDestroy(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	r, err := NewRasterizer(device, queue, DefaultConfig())
	if err != nil {
		t.Fatalf("NewRasterizer failed: %v", err)
	}
	r.Destroy()
	r.Destroy() // must not panic
}

func TestAppendOpaqueUntextured(t *testing.T) {
	r, cleanup := createTestRasterizer(t)
	defer cleanup()
	r.BeginFrame()

	if err := r.AppendOpaque(Polygon{Verts: quad(0, 0, 64, 64, 1, 0xffffffff)}); err != nil {
		t.Fatalf("AppendOpaque failed: %v", err)
	}
	if r.opaqueVertCount != 4 {
		t.Errorf("vertex count = %d, want 4", r.opaqueVertCount)
	}
	if len(r.opaqueData) != 4*shadingVertexStride {
		t.Errorf("vertex data = %d bytes, want %d", len(r.opaqueData), 4*shadingVertexStride)
	}
	if len(r.opaqueIndices) != 6 {
		t.Errorf("index count = %d, want 6", len(r.opaqueIndices))
	}
}

func TestAppendDegeneratePolygon(t *testing.T) {
	r, cleanup := createTestRasterizer(t)
	defer cleanup()
	r.BeginFrame()

	verts := quad(0, 0, 1, 1, 1, 0xffffffff)[:2]
	if err := r.AppendOpaque(Polygon{Verts: verts}); err != nil {
		t.Fatalf("AppendOpaque failed: %v", err)
	}
	if r.opaqueVertCount != 0 || len(r.opaqueIndices) != 0 {
		t.Error("degenerate polygon produced geometry")
	}
}

func TestAppendTexturedNotResident(t *testing.T) {
	r, cleanup := createTestRasterizer(t)
	defer cleanup()
	r.BeginFrame()

	err := r.AppendOpaque(Polygon{
		Verts:       quad(0, 0, 64, 64, 1, 0xffffffff),
		Textured:    true,
		TextureID:   7,
		TextureSize: 64,
		Shading:     tsp.ShadingModulate,
	})
	if err != nil {
		t.Fatalf("AppendOpaque failed: %v", err)
	}

	// A miss encodes the sentinel slot so the shader renders opaque red.
	slot := binary.LittleEndian.Uint32(r.opaqueData[48:])
	if slot != sentinelSlot {
		t.Errorf("array_index = %d, want sentinel %d", slot, sentinelSlot)
	}
}

func TestAppendTexturedResident(t *testing.T) {
	r, cleanup := createTestRasterizer(t)
	defer cleanup()
	r.BeginFrame()

	texels := make([]byte, 64*64*4)
	if err := r.UploadTexture(7, 64, 64, texels); err != nil {
		t.Fatalf("UploadTexture failed: %v", err)
	}

	err := r.AppendTranslucent(Polygon{
		Verts:       quad(0, 0, 64, 64, 1, 0x80ffffff),
		Textured:    true,
		TextureID:   7,
		TextureSize: 64,
		Shading:     tsp.ShadingModulateWithAlpha,
	})
	if err != nil {
		t.Fatalf("AppendTranslucent failed: %v", err)
	}

	wantSlot, _ := tsp.SlotFor(64)
	slot := binary.LittleEndian.Uint32(r.translucentData[48:])
	layer := binary.LittleEndian.Uint32(r.translucentData[52:])
	if slot != wantSlot {
		t.Errorf("array_index = %d, want %d", slot, wantSlot)
	}
	if layer != 0 {
		t.Errorf("texture_id = %d, want layer 0", layer)
	}
	shading := binary.LittleEndian.Uint32(r.translucentData[64:])
	if shading != uint32(tsp.ShadingModulateWithAlpha) {
		t.Errorf("shading = %d, want %d", shading, uint32(tsp.ShadingModulateWithAlpha))
	}
}

func TestSetBackgroundForcesFarDepth(t *testing.T) {
	r, cleanup := createTestRasterizer(t)
	defer cleanup()
	r.BeginFrame()

	var bg [4]Vertex
	copy(bg[:], quad(0, 0, 640, 480, 1, 0xff0000ff))
	if err := r.SetBackground(bg); err != nil {
		t.Fatalf("SetBackground failed: %v", err)
	}

	// Depth of the first vertex, position.z at byte offset 8.
	z := math.Float32frombits(binary.LittleEndian.Uint32(r.opaqueData[8:]))
	if z != backgroundDepth {
		t.Errorf("background z = %v, want %v", z, float32(backgroundDepth))
	}
}

func TestBeginFrameResets(t *testing.T) {
	r, cleanup := createTestRasterizer(t)
	defer cleanup()
	r.BeginFrame()

	if err := r.AppendOpaque(Polygon{Verts: quad(0, 0, 1, 1, 1, 0xffffffff)}); err != nil {
		t.Fatalf("AppendOpaque failed: %v", err)
	}
	gen := r.cache.Generation()
	r.BeginFrame()

	if r.opaqueVertCount != 0 || len(r.opaqueData) != 0 || len(r.opaqueIndices) != 0 {
		t.Error("opaque list not reset")
	}
	if r.cache.Generation() != gen+1 {
		t.Errorf("generation = %d, want %d", r.cache.Generation(), gen+1)
	}
}

func TestAppendTooManyVertices(t *testing.T) {
	r, cleanup := createTestRasterizer(t)
	defer cleanup()
	r.BeginFrame()
	r.opaqueVertCount = 0x10000 - 2

	err := r.AppendOpaque(Polygon{Verts: quad(0, 0, 1, 1, 1, 0xffffffff)})
	if !errors.Is(err, ErrTooManyVertices) {
		t.Errorf("err = %v, want ErrTooManyVertices", err)
	}
}

func TestRenderFrame(t *testing.T) {
	r, cleanup := createTestRasterizer(t)
	defer cleanup()
	target, destroyTarget := createTargetView(t, r)
	defer destroyTarget()

	r.BeginFrame()
	var bg [4]Vertex
	copy(bg[:], quad(0, 0, 640, 480, 1, 0xff202020))
	if err := r.SetBackground(bg); err != nil {
		t.Fatalf("SetBackground failed: %v", err)
	}
	if err := r.AppendOpaque(Polygon{Verts: quad(10, 10, 100, 100, 5, 0xffff0000)}); err != nil {
		t.Fatalf("AppendOpaque failed: %v", err)
	}
	if err := r.AppendTranslucent(Polygon{Verts: quad(50, 50, 100, 100, 2, 0x8000ff00)}); err != nil {
		t.Fatalf("AppendTranslucent failed: %v", err)
	}

	if err := r.RenderFrame(target); err != nil {
		t.Fatalf("RenderFrame failed: %v", err)
	}
}

func TestRenderFrameCompletesSubmission(t *testing.T) {
	r, cleanup := createTestRasterizer(t)
	defer cleanup()
	target, destroyTarget := createTargetView(t, r)
	defer destroyTarget()

	before := r.queue.PollCompleted()
	r.BeginFrame()
	if err := r.AppendOpaque(Polygon{Verts: quad(0, 0, 64, 64, 1, 0xffffffff)}); err != nil {
		t.Fatalf("AppendOpaque failed: %v", err)
	}
	if err := r.RenderFrame(target); err != nil {
		t.Fatalf("RenderFrame failed: %v", err)
	}

	// RenderFrame blocks on the submission index, so by the time it
	// returns the queue must report the new submission complete.
	if after := r.queue.PollCompleted(); after <= before {
		t.Errorf("PollCompleted = %d after RenderFrame, want > %d", after, before)
	}
}

func TestRenderFrameEmpty(t *testing.T) {
	r, cleanup := createTestRasterizer(t)
	defer cleanup()
	target, destroyTarget := createTargetView(t, r)
	defer destroyTarget()

	r.BeginFrame()
	if err := r.RenderFrame(target); err != nil {
		t.Fatalf("RenderFrame with empty lists failed: %v", err)
	}
}

func TestRenderFrameNilTarget(t *testing.T) {
	r, cleanup := createTestRasterizer(t)
	defer cleanup()

	r.BeginFrame()
	if err := r.AppendOpaque(Polygon{Verts: quad(0, 0, 1, 1, 1, 0xffffffff)}); err != nil {
		t.Fatalf("AppendOpaque failed: %v", err)
	}
	if err := r.RenderFrame(nil); !errors.Is(err, ErrNilTarget) {
		t.Errorf("err = %v, want ErrNilTarget", err)
	}
}

func TestReconfigure(t *testing.T) {
	r, cleanup := createTestRasterizer(t)
	defer cleanup()

	screen := tsp.ScreenConfig{Width: 320, Height: 240, Near: 0.1, Far: 10000}
	if err := r.Reconfigure(screen); err != nil {
		t.Fatalf("Reconfigure failed: %v", err)
	}
	if r.cfg.Screen != screen {
		t.Errorf("screen = %+v, want %+v", r.cfg.Screen, screen)
	}
	if r.depthView == nil || r.fbView == nil || r.shadingBind == nil || r.blitBind == nil {
		t.Error("screen resources not recreated")
	}

	if err := r.Reconfigure(tsp.ScreenConfig{}); err == nil {
		t.Error("Reconfigure accepted a zero screen size")
	}
}

func TestUploadTexture(t *testing.T) {
	r, cleanup := createTestRasterizer(t)
	defer cleanup()

	texels := make([]byte, 32*32*4)
	if err := r.UploadTexture(1, 32, 32, texels); err != nil {
		t.Fatalf("UploadTexture failed: %v", err)
	}
	slot, _ := tsp.SlotFor(32)
	if _, ok := r.cache.Lookup(slot, 1); !ok {
		t.Error("texture not resident after upload")
	}

	// A second upload of the same ID is a no-op, not an error.
	if err := r.UploadTexture(1, 32, 32, texels); err != nil {
		t.Fatalf("re-upload failed: %v", err)
	}
}

func TestUploadTextureNonSquare(t *testing.T) {
	r, cleanup := createTestRasterizer(t)
	defer cleanup()

	// 64x16 pads to the 64 size class.
	texels := make([]byte, 64*16*4)
	if err := r.UploadTexture(2, 64, 16, texels); err != nil {
		t.Fatalf("UploadTexture failed: %v", err)
	}
	slot, _ := tsp.SlotFor(64)
	if _, ok := r.cache.Lookup(slot, 2); !ok {
		t.Error("non-square texture not resident in the class of its larger side")
	}
}

func TestUploadTextureBadSize(t *testing.T) {
	r, cleanup := createTestRasterizer(t)
	defer cleanup()

	err := r.UploadTexture(3, 2048, 2048, make([]byte, 2048*2048*4))
	if !errors.Is(err, ErrBadTextureSize) {
		t.Errorf("oversized upload: err = %v, want ErrBadTextureSize", err)
	}
	if err := r.UploadTexture(4, 100, 100, make([]byte, 100*100*4)); !errors.Is(err, ErrBadTextureSize) {
		t.Errorf("non-pow2 upload: err = %v, want ErrBadTextureSize", err)
	}
}

func TestUploadTextureShortData(t *testing.T) {
	r, cleanup := createTestRasterizer(t)
	defer cleanup()

	if err := r.UploadTexture(5, 32, 32, make([]byte, 10)); err == nil {
		t.Error("short texel data accepted")
	}
}

func TestBlitFramebuffer(t *testing.T) {
	r, cleanup := createTestRasterizer(t)
	defer cleanup()
	target, destroyTarget := createTargetView(t, r)
	defer destroyTarget()

	pixels := make([]byte, 640*480*4)
	if err := r.BlitFramebuffer(target, pixels, 640, 480); err != nil {
		t.Fatalf("BlitFramebuffer failed: %v", err)
	}
}

func TestBlitFramebufferEmpty(t *testing.T) {
	r, cleanup := createTestRasterizer(t)
	defer cleanup()
	target, destroyTarget := createTargetView(t, r)
	defer destroyTarget()

	if err := r.BlitFramebuffer(target, nil, 640, 480); err != nil {
		t.Errorf("empty blit should be a no-op, got %v", err)
	}
}

func TestBlitFramebufferSizeMismatch(t *testing.T) {
	r, cleanup := createTestRasterizer(t)
	defer cleanup()
	target, destroyTarget := createTargetView(t, r)
	defer destroyTarget()

	if err := r.BlitFramebuffer(target, make([]byte, 320*240*4), 320, 240); err == nil {
		t.Error("mismatched framebuffer size accepted")
	}
	if err := r.BlitFramebuffer(nil, make([]byte, 640*480*4), 640, 480); !errors.Is(err, ErrNilTarget) {
		t.Errorf("err = %v, want ErrNilTarget", err)
	}
}
