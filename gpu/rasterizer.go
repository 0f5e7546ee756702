package gpu

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/ncarrillo/emerald/tsp"
)

// Rasterizer errors.
var (
	// ErrNilDevice is returned when constructing a rasterizer without a device.
	ErrNilDevice = errors.New("emerald: hal device is nil")

	// ErrNilTarget is returned when rendering without a target view.
	ErrNilTarget = errors.New("emerald: target texture view is nil")

	// ErrTooManyVertices is returned when a frame exceeds 16-bit indexing.
	ErrTooManyVertices = errors.New("emerald: frame exceeds 16-bit vertex indexing")
)

// backgroundDepth is the hardware depth value assigned to the background
// plane so every primitive sorts in front of it.
const backgroundDepth = 9999.0

// gpuWaitTimeout bounds the completion wait on frame submission.
const gpuWaitTimeout = 5 * time.Second

// gpuPollInterval is how often the completion wait re-polls the queue.
const gpuPollInterval = 100 * time.Microsecond

// Config holds rasterizer construction parameters.
type Config struct {
	// Screen is the logical screen size and depth range, threaded into the
	// vertex transform via a uniform buffer.
	Screen tsp.ScreenConfig

	// ColorFormat is the format of the render targets the shading and blit
	// pipelines draw into, normally the host surface format.
	ColorFormat gputypes.TextureFormat
}

// DefaultConfig returns the standard 640x480 configuration rendering into
// BGRA8 targets.
func DefaultConfig() Config {
	return Config{
		Screen:      tsp.DefaultScreenConfig(),
		ColorFormat: gputypes.TextureFormatBGRA8Unorm,
	}
}

// Polygon is one display-list primitive: a triangle strip of vertices plus
// the per-primitive state that stays constant across every pixel it covers.
type Polygon struct {
	// Verts is the triangle strip, at least three vertices.
	Verts []Vertex

	// Textured selects whether the combiner runs at all. Untextured
	// primitives emit their interpolated vertex color unchanged.
	Textured bool

	// TextureID names the texture within its size class.
	TextureID TextureID

	// TextureSize is the padded square texel size, one of the eight catalog
	// classes.
	TextureSize uint32

	// IgnoreAlpha forces texture alpha to 1 in the combiner.
	IgnoreAlpha bool

	// Shading selects the fixed-function combine formula.
	Shading tsp.ShadingMode
}

// Rasterizer draws emulated display lists through the shading pipeline and
// composites the emulated framebuffer through the blit pipeline. Not safe
// for concurrent use.
type Rasterizer struct {
	device hal.Device
	queue  hal.Queue
	cfg    Config

	// Shader modules, layouts, and pipelines.
	shadingShader     hal.ShaderModule
	blitShader        hal.ShaderModule
	shadingBindLayout hal.BindGroupLayout
	blitBindLayout    hal.BindGroupLayout
	shadingPipeLayout hal.PipelineLayout
	blitPipeLayout    hal.PipelineLayout

	opaquePipeline      hal.RenderPipeline
	translucentPipeline hal.RenderPipeline
	blitPipeline        hal.RenderPipeline

	// Texture catalog: one 2D-array texture per size class, plus the
	// screen-sized depth and framebuffer textures and the shared sampler.
	catalogTex  [tsp.SlotCount]hal.Texture
	catalogView [tsp.SlotCount]hal.TextureView
	depthTex    hal.Texture
	depthView   hal.TextureView
	fbTex       hal.Texture
	fbView      hal.TextureView
	sampler     hal.Sampler

	// Screen uniform and the static bind groups.
	uniformBuf  hal.Buffer
	shadingBind hal.BindGroup
	blitBind    hal.BindGroup

	cache *TextureCache

	// Per-frame CPU-side vertex and index staging, reset by BeginFrame.
	opaqueData         []byte
	opaqueIndices      []uint16
	opaqueVertCount    int
	translucentData    []byte
	translucentIndices []uint16
	translucentCount   int
}

// NewRasterizer creates a rasterizer on a host-provided device and queue.
// All static GPU resources (pipelines, catalog textures, uniform, bind
// groups) are created up front; on any failure everything already created
// is destroyed.
func NewRasterizer(device hal.Device, queue hal.Queue, cfg Config) (*Rasterizer, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	if cfg.Screen.Width == 0 || cfg.Screen.Height == 0 {
		cfg.Screen = tsp.DefaultScreenConfig()
	}
	if cfg.ColorFormat == gputypes.TextureFormatUndefined {
		cfg.ColorFormat = gputypes.TextureFormatBGRA8Unorm
	}

	r := &Rasterizer{
		device: device,
		queue:  queue,
		cfg:    cfg,
		cache:  NewTextureCache(),
	}

	if err := r.createPipelines(); err != nil {
		r.Destroy()
		return nil, err
	}
	if err := r.createTextures(); err != nil {
		r.Destroy()
		return nil, err
	}

	uniformBuf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "screen_uniform",
		Size:  screenUniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		r.Destroy()
		return nil, fmt.Errorf("create screen uniform buffer: %w", err)
	}
	r.uniformBuf = uniformBuf
	queue.WriteBuffer(uniformBuf, 0, makeScreenUniform(cfg.Screen))

	if err := r.createBindGroups(); err != nil {
		r.Destroy()
		return nil, err
	}

	slogger().Info("rasterizer ready",
		"screen", fmt.Sprintf("%dx%d", cfg.Screen.Width, cfg.Screen.Height),
		"format", cfg.ColorFormat)
	return r, nil
}

// Config returns the rasterizer configuration.
func (r *Rasterizer) Config() Config { return r.cfg }

// Reconfigure changes the logical screen size and depth range: the uniform
// is rewritten and the screen-sized textures and their bind groups are
// recreated. Resident catalog textures are unaffected.
func (r *Rasterizer) Reconfigure(screen tsp.ScreenConfig) error {
	if screen.Width == 0 || screen.Height == 0 {
		return fmt.Errorf("emerald: invalid screen size %dx%d", screen.Width, screen.Height)
	}
	r.cfg.Screen = screen
	r.queue.WriteBuffer(r.uniformBuf, 0, makeScreenUniform(screen))

	r.destroyBindGroups()
	r.destroyScreenTextures()
	if err := r.createScreenTextures(); err != nil {
		return err
	}
	return r.createBindGroups()
}

// Destroy releases every GPU resource. Safe to call multiple times or on a
// partially constructed rasterizer.
func (r *Rasterizer) Destroy() {
	if r.device == nil {
		return
	}
	r.destroyBindGroups()
	if r.uniformBuf != nil {
		r.device.DestroyBuffer(r.uniformBuf)
		r.uniformBuf = nil
	}
	r.destroyTextures()
	r.destroyPipelines()
}

// createBindGroups builds the static shading and blit bind groups from the
// current textures, sampler, and uniform buffer.
func (r *Rasterizer) createBindGroups() error {
	entries := make([]gputypes.BindGroupEntry, 0, tsp.SlotCount+2)
	for i := 0; i < tsp.SlotCount; i++ {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  uint32(i),
			Resource: gputypes.TextureViewBinding{TextureView: r.catalogView[i].NativeHandle()},
		})
	}
	entries = append(entries,
		gputypes.BindGroupEntry{
			Binding:  tsp.SlotCount,
			Resource: gputypes.SamplerBinding{Sampler: r.sampler.NativeHandle()},
		},
		gputypes.BindGroupEntry{
			Binding: tsp.SlotCount + 1,
			Resource: gputypes.BufferBinding{
				Buffer: r.uniformBuf.NativeHandle(), Offset: 0, Size: screenUniformSize,
			},
		},
	)
	shadingBind, err := r.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "shading_bind",
		Layout:  r.shadingBindLayout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("create shading bind group: %w", err)
	}
	r.shadingBind = shadingBind

	blitBind, err := r.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "blit_bind",
		Layout: r.blitBindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: r.fbView.NativeHandle()}},
			{Binding: 1, Resource: gputypes.SamplerBinding{Sampler: r.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		return fmt.Errorf("create blit bind group: %w", err)
	}
	r.blitBind = blitBind
	return nil
}

// destroyBindGroups releases both bind groups.
func (r *Rasterizer) destroyBindGroups() {
	if r.blitBind != nil {
		r.device.DestroyBindGroup(r.blitBind)
		r.blitBind = nil
	}
	if r.shadingBind != nil {
		r.device.DestroyBindGroup(r.shadingBind)
		r.shadingBind = nil
	}
}

// BeginFrame resets the per-frame vertex staging and advances the texture
// cache generation, evicting layers that have gone unreferenced too long.
func (r *Rasterizer) BeginFrame() {
	r.cache.Advance()
	r.opaqueData = r.opaqueData[:0]
	r.opaqueIndices = r.opaqueIndices[:0]
	r.opaqueVertCount = 0
	r.translucentData = r.translucentData[:0]
	r.translucentIndices = r.translucentIndices[:0]
	r.translucentCount = 0
}

// SetBackground submits the background plane: four untextured vertices
// forced to the far depth so every primitive draws over them. Called once
// per frame, before the display lists.
func (r *Rasterizer) SetBackground(verts [4]Vertex) error {
	bg := verts
	for i := range bg {
		bg[i].Z = backgroundDepth
	}
	return r.AppendOpaque(Polygon{Verts: bg[:]})
}

// AppendOpaque adds a polygon to the opaque display list.
func (r *Rasterizer) AppendOpaque(poly Polygon) error {
	return r.appendPolygon(&r.opaqueData, &r.opaqueIndices, &r.opaqueVertCount, poly)
}

// AppendTranslucent adds a polygon to the translucent display list. Order
// matters: translucent primitives blend in submission order.
func (r *Rasterizer) AppendTranslucent(poly Polygon) error {
	return r.appendPolygon(&r.translucentData, &r.translucentIndices, &r.translucentCount, poly)
}

// appendPolygon resolves the polygon's texture residency, serializes its
// vertices, and expands its strip into triangle-list indices.
func (r *Rasterizer) appendPolygon(data *[]byte, indices *[]uint16, count *int, poly Polygon) error {
	if len(poly.Verts) < 3 {
		return nil
	}
	if *count+len(poly.Verts) > 0x10000 {
		return ErrTooManyVertices
	}

	// A textured polygon whose texture is not resident renders through the
	// sentinel path: visible on screen, never fatal.
	slot := uint32(sentinelSlot)
	layer := uint32(sentinelSlot)
	if poly.Textured {
		if s, ok := tsp.SlotFor(poly.TextureSize); ok {
			if l, resident := r.cache.Lookup(s, poly.TextureID); resident {
				slot, layer = s, uint32(l)
			} else {
				slogger().Warn("texture not resident",
					"texture", uint32(poly.TextureID), "slot", s)
			}
		} else {
			slogger().Warn("texture size is not a catalog class",
				"texture", uint32(poly.TextureID), "size", poly.TextureSize)
		}
	}

	textured := uint32(0)
	if poly.Textured {
		textured = 1
	}
	ignoreAlpha := uint32(0)
	if poly.IgnoreAlpha {
		ignoreAlpha = 1
	}

	base := uint16(*count)
	for _, v := range poly.Verts {
		offset := UnpackARGB(v.Offset)
		*data = appendShadingVertex(*data, shadingVertex{
			position:    [3]float32{v.X, v.Y, v.Z},
			color:       UnpackARGB(v.Color),
			offsetColor: [3]float32{offset[0], offset[1], offset[2]},
			uv:          [2]float32{v.U, v.V},
			arrayIndex:  slot,
			textureID:   layer,
			textured:    textured,
			ignoreAlpha: ignoreAlpha,
			shading:     uint32(poly.Shading),
		})
	}
	*indices = appendStripIndices(*indices, base, uint16(len(poly.Verts)))
	*count += len(poly.Verts)
	return nil
}

// RenderFrame encodes and submits the opaque and translucent passes into
// the target view, then blocks until the GPU finishes. The opaque pass
// clears depth and tests Less with write; the translucent pass runs after
// it with alpha blending and no depth attachment, preserving emulation
// submission order. The color target is loaded, not cleared: the
// background plane covers it.
func (r *Rasterizer) RenderFrame(target hal.TextureView) error {
	if target == nil {
		return ErrNilTarget
	}
	if len(r.opaqueIndices) == 0 && len(r.translucentIndices) == 0 {
		return nil
	}

	type drawList struct {
		buf      hal.Buffer
		idx      hal.Buffer
		idxCount uint32
	}
	var frameBufs []hal.Buffer
	defer func() {
		for _, b := range frameBufs {
			r.device.DestroyBuffer(b)
		}
	}()

	buildList := func(label string, data []byte, indices []uint16) (drawList, error) {
		if len(indices) == 0 {
			return drawList{}, nil
		}
		vb, err := r.createAndUploadBuffer(label+"_verts", data,
			gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst)
		if err != nil {
			return drawList{}, err
		}
		frameBufs = append(frameBufs, vb)
		ib, err := r.createAndUploadBuffer(label+"_indices", indicesToBytes(indices),
			gputypes.BufferUsageIndex|gputypes.BufferUsageCopyDst)
		if err != nil {
			return drawList{}, err
		}
		frameBufs = append(frameBufs, ib)
		return drawList{buf: vb, idx: ib, idxCount: uint32(len(indices))}, nil
	}

	opaque, err := buildList("opaque", r.opaqueData, r.opaqueIndices)
	if err != nil {
		return err
	}
	translucent, err := buildList("translucent", r.translucentData, r.translucentIndices)
	if err != nil {
		return err
	}

	encoder, err := r.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "frame_encoder",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("frame"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	if opaque.idxCount > 0 {
		rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
			Label: "opaque_pass",
			ColorAttachments: []hal.RenderPassColorAttachment{{
				View:    target,
				LoadOp:  gputypes.LoadOpLoad,
				StoreOp: gputypes.StoreOpStore,
			}},
			DepthStencilAttachment: &hal.RenderPassDepthStencilAttachment{
				View:            r.depthView,
				DepthLoadOp:     gputypes.LoadOpClear,
				DepthStoreOp:    gputypes.StoreOpStore,
				DepthClearValue: 1.0,
			},
		})
		rp.SetPipeline(r.opaquePipeline)
		rp.SetBindGroup(0, r.shadingBind, nil)
		rp.SetVertexBuffer(0, opaque.buf, 0)
		rp.SetIndexBuffer(opaque.idx, gputypes.IndexFormatUint16, 0)
		rp.DrawIndexed(opaque.idxCount, 1, 0, 0, 0)
		rp.End()
	}

	if translucent.idxCount > 0 {
		rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
			Label: "translucent_pass",
			ColorAttachments: []hal.RenderPassColorAttachment{{
				View:    target,
				LoadOp:  gputypes.LoadOpLoad,
				StoreOp: gputypes.StoreOpStore,
			}},
		})
		rp.SetPipeline(r.translucentPipeline)
		rp.SetBindGroup(0, r.shadingBind, nil)
		rp.SetVertexBuffer(0, translucent.buf, 0)
		rp.SetIndexBuffer(translucent.idx, gputypes.IndexFormatUint16, 0)
		rp.DrawIndexed(translucent.idxCount, 1, 0, 0, 0)
		rp.End()
	}

	if err := r.submitAndWait(encoder, "frame"); err != nil {
		return err
	}

	slogger().Debug("frame rendered",
		"opaque_indices", opaque.idxCount,
		"translucent_indices", translucent.idxCount)
	return nil
}

// submitAndWait finishes encoding, submits, and blocks until the queue
// reports the submission complete or the wait times out. The HAL owns all
// fencing internally; completion is observed through the monotonic
// submission index.
func (r *Rasterizer) submitAndWait(encoder hal.CommandEncoder, label string) error {
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end %s encoding: %w", label, err)
	}
	defer r.device.FreeCommandBuffer(cmdBuf)

	submission, err := r.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		return fmt.Errorf("submit %s: %w", label, err)
	}

	deadline := time.Now().Add(gpuWaitTimeout)
	for r.queue.PollCompleted() < submission {
		if time.Now().After(deadline) {
			return fmt.Errorf("emerald: GPU timed out after %s submit", label)
		}
		time.Sleep(gpuPollInterval)
	}
	return nil
}

// createAndUploadBuffer creates a buffer sized to data and writes data into
// it via the queue.
func (r *Rasterizer) createAndUploadBuffer(label string, data []byte, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	r.queue.WriteBuffer(buf, 0, data)
	return buf, nil
}
