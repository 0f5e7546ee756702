package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/ncarrillo/emerald/tsp"
)

// createTextures allocates the eight catalog arrays, the depth texture, the
// framebuffer texture, and the shared sampler. The catalog arrays are fixed
// for the life of the rasterizer; depth and framebuffer textures are
// screen-sized and recreated by Reconfigure.
func (r *Rasterizer) createTextures() error {
	for i := uint32(0); i < tsp.SlotCount; i++ {
		size := tsp.SlotSize(i)
		tex, err := r.device.CreateTexture(&hal.TextureDescriptor{
			Label: fmt.Sprintf("texture_catalog_%d", size),
			Size: hal.Extent3D{
				Width:              size,
				Height:             size,
				DepthOrArrayLayers: tsp.LayersPerSlot,
			},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        gputypes.TextureFormatBGRA8Unorm,
			Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
		})
		if err != nil {
			r.destroyTextures()
			return fmt.Errorf("create catalog texture %d: %w", size, err)
		}
		r.catalogTex[i] = tex

		view, err := r.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
			Label:         fmt.Sprintf("texture_catalog_%d_view", size),
			Format:        gputypes.TextureFormatBGRA8Unorm,
			Dimension:     gputypes.TextureViewDimension2DArray,
			Aspect:        gputypes.TextureAspectAll,
			MipLevelCount: 1,
		})
		if err != nil {
			r.destroyTextures()
			return fmt.Errorf("create catalog texture view %d: %w", size, err)
		}
		r.catalogView[i] = view
	}

	// The hardware point-samples its texture cache; nearest everywhere,
	// clamp to edge.
	sampler, err := r.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "catalog_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeNearest,
		MinFilter:    gputypes.FilterModeNearest,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		r.destroyTextures()
		return fmt.Errorf("create sampler: %w", err)
	}
	r.sampler = sampler

	if err := r.createScreenTextures(); err != nil {
		r.destroyTextures()
		return err
	}
	return nil
}

// createScreenTextures allocates the depth and framebuffer textures at the
// current screen size.
func (r *Rasterizer) createScreenTextures() error {
	size := hal.Extent3D{
		Width:              r.cfg.Screen.Width,
		Height:             r.cfg.Screen.Height,
		DepthOrArrayLayers: 1,
	}

	depthTex, err := r.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "rasterizer_depth",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatDepth32Float,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("create depth texture: %w", err)
	}
	r.depthTex = depthTex

	depthView, err := r.device.CreateTextureView(depthTex, &hal.TextureViewDescriptor{
		Label: "rasterizer_depth_view",
	})
	if err != nil {
		return fmt.Errorf("create depth texture view: %w", err)
	}
	r.depthView = depthView

	fbTex, err := r.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "emulated_framebuffer",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create framebuffer texture: %w", err)
	}
	r.fbTex = fbTex

	fbView, err := r.device.CreateTextureView(fbTex, &hal.TextureViewDescriptor{
		Label: "emulated_framebuffer_view",
	})
	if err != nil {
		return fmt.Errorf("create framebuffer texture view: %w", err)
	}
	r.fbView = fbView
	return nil
}

// destroyScreenTextures releases the screen-sized textures. Bind groups
// referencing them must be recreated afterwards.
func (r *Rasterizer) destroyScreenTextures() {
	if r.fbView != nil {
		r.device.DestroyTextureView(r.fbView)
		r.fbView = nil
	}
	if r.fbTex != nil {
		r.device.DestroyTexture(r.fbTex)
		r.fbTex = nil
	}
	if r.depthView != nil {
		r.device.DestroyTextureView(r.depthView)
		r.depthView = nil
	}
	if r.depthTex != nil {
		r.device.DestroyTexture(r.depthTex)
		r.depthTex = nil
	}
}

// destroyTextures releases every texture resource in reverse creation
// order. Each resource is nil-checked to support partial cleanup.
func (r *Rasterizer) destroyTextures() {
	r.destroyScreenTextures()
	if r.sampler != nil {
		r.device.DestroySampler(r.sampler)
		r.sampler = nil
	}
	for i := len(r.catalogView) - 1; i >= 0; i-- {
		if r.catalogView[i] != nil {
			r.device.DestroyTextureView(r.catalogView[i])
			r.catalogView[i] = nil
		}
		if r.catalogTex[i] != nil {
			r.device.DestroyTexture(r.catalogTex[i])
			r.catalogTex[i] = nil
		}
	}
}

// UploadTexture decodes nothing: texels arrive as BGRA bytes, width*height*4
// of them, already converted by the display list decoder. The texture is
// placed in the size class of its larger dimension, padded with transparent
// black when the source is not square, and written into a catalog layer.
//
// Re-uploading a resident texture just touches it; the hardware never
// mutates a texture in place, it allocates a new ID.
func (r *Rasterizer) UploadTexture(id TextureID, width, height uint32, texels []byte) error {
	pow2 := width
	if height > pow2 {
		pow2 = height
	}
	slot, ok := tsp.SlotFor(pow2)
	if !ok {
		return fmt.Errorf("%w: %dx%d", ErrBadTextureSize, width, height)
	}
	if uint64(len(texels)) < uint64(width)*uint64(height)*4 {
		return fmt.Errorf("emerald: texel data short: have %d bytes, need %d",
			len(texels), uint64(width)*uint64(height)*4)
	}

	if _, resident := r.cache.Lookup(slot, id); resident {
		return nil
	}

	layer, err := r.cache.Insert(slot, id)
	if err != nil {
		return err
	}

	data := texels[:width*height*4]
	if width != pow2 || height != pow2 {
		padded := make([]byte, 4*pow2*pow2)
		for y := uint32(0); y < height; y++ {
			copy(padded[4*y*pow2:4*(y*pow2+width)], data[4*y*width:4*(y+1)*width])
		}
		data = padded
	}

	r.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  r.catalogTex[slot],
			MipLevel: 0,
			Origin:   hal.Origin3D{X: 0, Y: 0, Z: uint32(layer)},
			Aspect:   gputypes.TextureAspectAll,
		},
		data,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  4 * pow2,
			RowsPerImage: pow2,
		},
		&hal.Extent3D{Width: pow2, Height: pow2, DepthOrArrayLayers: 1},
	)

	slogger().Debug("uploaded texture",
		"texture", uint32(id), "slot", slot, "layer", layer,
		"size", fmt.Sprintf("%dx%d", width, height))
	return nil
}
