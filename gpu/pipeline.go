package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/ncarrillo/emerald/tsp"
)

// createPipelines compiles both shaders and creates the three render
// pipelines:
//
//   - opaque: depth tested (Less) with depth write, blending replace. Draws
//     the background plane and the opaque display list.
//   - translucent: no depth attachment, standard alpha blending. Drawn
//     after the opaque pass in emulation submission order.
//   - blit: no depth, blending replace, samples the framebuffer texture.
//
// The shading pipelines share one bind group layout: the eight catalog
// arrays at bindings 0-7, the sampler at 8, and the screen uniform at 9.
func (r *Rasterizer) createPipelines() error { //nolint:funlen // GPU pipeline descriptors are inherently verbose
	shadingShader, err := r.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "shading_shader",
		Source: hal.ShaderSource{WGSL: shadingShaderSource},
	})
	if err != nil {
		return fmt.Errorf("compile shading shader: %w", err)
	}
	r.shadingShader = shadingShader

	blitShader, err := r.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "blit_shader",
		Source: hal.ShaderSource{WGSL: blitShaderSource},
	})
	if err != nil {
		return fmt.Errorf("compile blit shader: %w", err)
	}
	r.blitShader = blitShader

	// Catalog bind group layout: bindings 0-7 texture arrays ordered by
	// increasing size class, 8 sampler, 9 screen uniform.
	entries := make([]gputypes.BindGroupLayoutEntry, 0, tsp.SlotCount+2)
	for i := uint32(0); i < tsp.SlotCount; i++ {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    i,
			Visibility: gputypes.ShaderStageFragment,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimension2DArray,
			},
		})
	}
	entries = append(entries,
		gputypes.BindGroupLayoutEntry{
			Binding:    tsp.SlotCount,
			Visibility: gputypes.ShaderStageFragment,
			Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
		},
		gputypes.BindGroupLayoutEntry{
			Binding:    tsp.SlotCount + 1,
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		},
	)

	shadingBindLayout, err := r.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "shading_bind_layout",
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("create shading bind group layout: %w", err)
	}
	r.shadingBindLayout = shadingBindLayout

	shadingPipeLayout, err := r.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "shading_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{r.shadingBindLayout},
	})
	if err != nil {
		return fmt.Errorf("create shading pipeline layout: %w", err)
	}
	r.shadingPipeLayout = shadingPipeLayout

	// Blit bind group layout: framebuffer texture + sampler.
	blitBindLayout, err := r.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "blit_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create blit bind group layout: %w", err)
	}
	r.blitBindLayout = blitBindLayout

	blitPipeLayout, err := r.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "blit_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{r.blitBindLayout},
	})
	if err != nil {
		return fmt.Errorf("create blit pipeline layout: %w", err)
	}
	r.blitPipeLayout = blitPipeLayout

	// Shared primitive state: triangle list, no culling. Display list
	// strips are expanded to lists on the CPU, and the hardware does not
	// cull by winding.
	primitive := gputypes.PrimitiveState{
		Topology: gputypes.PrimitiveTopologyTriangleList,
		CullMode: gputypes.CullModeNone,
	}
	multisample := gputypes.MultisampleState{
		Count: 1,
		Mask:  0xFFFFFFFF,
	}

	// --- Opaque pipeline ---
	//
	// Depth Less with write, no blending: opaque geometry resolves
	// visibility through the depth buffer alone.
	opaquePipeline, err := r.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "opaque_pipeline",
		Layout: r.shadingPipeLayout,
		Vertex: hal.VertexState{
			Module:     r.shadingShader,
			EntryPoint: "vs_main",
			Buffers:    shadingVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     r.shadingShader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    r.cfg.ColorFormat,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		DepthStencil: &hal.DepthStencilState{
			Format:            gputypes.TextureFormatDepth32Float,
			DepthWriteEnabled: true,
			DepthCompare:      gputypes.CompareFunctionLess,
			StencilFront: hal.StencilFaceState{
				Compare:     gputypes.CompareFunctionAlways,
				FailOp:      hal.StencilOperationKeep,
				DepthFailOp: hal.StencilOperationKeep,
				PassOp:      hal.StencilOperationKeep,
			},
			StencilBack: hal.StencilFaceState{
				Compare:     gputypes.CompareFunctionAlways,
				FailOp:      hal.StencilOperationKeep,
				DepthFailOp: hal.StencilOperationKeep,
				PassOp:      hal.StencilOperationKeep,
			},
			StencilReadMask:  0x00,
			StencilWriteMask: 0x00,
		},
		Multisample: multisample,
		Primitive:   primitive,
	})
	if err != nil {
		return fmt.Errorf("create opaque pipeline: %w", err)
	}
	r.opaquePipeline = opaquePipeline

	// --- Translucent pipeline ---
	//
	// Standard non-premultiplied alpha blending, no depth attachment: the
	// emulated hardware resolves translucency by submission order, not by
	// depth.
	alphaBlend := gputypes.BlendState{
		Color: gputypes.BlendComponent{
			SrcFactor: gputypes.BlendFactorSrcAlpha,
			DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
			Operation: gputypes.BlendOperationAdd,
		},
		Alpha: gputypes.BlendComponent{
			SrcFactor: gputypes.BlendFactorOne,
			DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
			Operation: gputypes.BlendOperationAdd,
		},
	}
	translucentPipeline, err := r.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "translucent_pipeline",
		Layout: r.shadingPipeLayout,
		Vertex: hal.VertexState{
			Module:     r.shadingShader,
			EntryPoint: "vs_main",
			Buffers:    shadingVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     r.shadingShader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    r.cfg.ColorFormat,
					Blend:     &alphaBlend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Multisample: multisample,
		Primitive:   primitive,
	})
	if err != nil {
		return fmt.Errorf("create translucent pipeline: %w", err)
	}
	r.translucentPipeline = translucentPipeline

	// --- Blit pipeline ---
	blitPipeline, err := r.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "blit_pipeline",
		Layout: r.blitPipeLayout,
		Vertex: hal.VertexState{
			Module:     r.blitShader,
			EntryPoint: "vs_main",
			Buffers:    blitVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     r.blitShader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    r.cfg.ColorFormat,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Multisample: multisample,
		Primitive:   primitive,
	})
	if err != nil {
		return fmt.Errorf("create blit pipeline: %w", err)
	}
	r.blitPipeline = blitPipeline

	return nil
}

// destroyPipelines releases all pipeline resources in reverse creation
// order. Safe to call on a rasterizer with partially created pipelines.
func (r *Rasterizer) destroyPipelines() {
	if r.device == nil {
		return
	}
	if r.blitPipeline != nil {
		r.device.DestroyRenderPipeline(r.blitPipeline)
		r.blitPipeline = nil
	}
	if r.translucentPipeline != nil {
		r.device.DestroyRenderPipeline(r.translucentPipeline)
		r.translucentPipeline = nil
	}
	if r.opaquePipeline != nil {
		r.device.DestroyRenderPipeline(r.opaquePipeline)
		r.opaquePipeline = nil
	}
	if r.blitPipeLayout != nil {
		r.device.DestroyPipelineLayout(r.blitPipeLayout)
		r.blitPipeLayout = nil
	}
	if r.shadingPipeLayout != nil {
		r.device.DestroyPipelineLayout(r.shadingPipeLayout)
		r.shadingPipeLayout = nil
	}
	if r.blitBindLayout != nil {
		r.device.DestroyBindGroupLayout(r.blitBindLayout)
		r.blitBindLayout = nil
	}
	if r.shadingBindLayout != nil {
		r.device.DestroyBindGroupLayout(r.shadingBindLayout)
		r.shadingBindLayout = nil
	}
	if r.blitShader != nil {
		r.device.DestroyShaderModule(r.blitShader)
		r.blitShader = nil
	}
	if r.shadingShader != nil {
		r.device.DestroyShaderModule(r.shadingShader)
		r.shadingShader = nil
	}
}
