package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// BlitFramebuffer uploads the emulated framebuffer bytes and draws them over
// the target as a full-surface quad, bypassing the shading pipeline
// entirely. pixels is width*height*4 BGRA bytes; an empty slice is a no-op.
//
// The framebuffer texture is screen-sized. When the emulated video mode
// disagrees with the configured screen, Reconfigure first.
func (r *Rasterizer) BlitFramebuffer(target hal.TextureView, pixels []byte, width, height uint32) error {
	if target == nil {
		return ErrNilTarget
	}
	if len(pixels) == 0 {
		return nil
	}
	if width != r.cfg.Screen.Width || height != r.cfg.Screen.Height {
		return fmt.Errorf("emerald: framebuffer %dx%d does not match screen %dx%d",
			width, height, r.cfg.Screen.Width, r.cfg.Screen.Height)
	}
	if uint64(len(pixels)) < uint64(width)*uint64(height)*4 {
		return fmt.Errorf("emerald: framebuffer data short: have %d bytes, need %d",
			len(pixels), uint64(width)*uint64(height)*4)
	}

	r.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  r.fbTex,
			MipLevel: 0,
			Origin:   hal.Origin3D{},
			Aspect:   gputypes.TextureAspectAll,
		},
		pixels[:width*height*4],
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  4 * width,
			RowsPerImage: height,
		},
		&hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
	)

	vb, err := r.createAndUploadBuffer("blit_verts", blitQuadVertexData(),
		gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	defer r.device.DestroyBuffer(vb)
	ib, err := r.createAndUploadBuffer("blit_indices", indicesToBytes(blitQuadIndices),
		gputypes.BufferUsageIndex|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	defer r.device.DestroyBuffer(ib)

	encoder, err := r.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "blit_encoder",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("blit"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "blit_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:    target,
			LoadOp:  gputypes.LoadOpLoad,
			StoreOp: gputypes.StoreOpStore,
		}},
	})
	rp.SetPipeline(r.blitPipeline)
	rp.SetBindGroup(0, r.blitBind, nil)
	rp.SetVertexBuffer(0, vb, 0)
	rp.SetIndexBuffer(ib, gputypes.IndexFormatUint16, 0)
	rp.DrawIndexed(uint32(len(blitQuadIndices)), 1, 0, 0, 0)
	rp.End()

	if err := r.submitAndWait(encoder, "blit"); err != nil {
		return err
	}

	slogger().Debug("framebuffer blitted", "size", fmt.Sprintf("%dx%d", width, height))
	return nil
}
