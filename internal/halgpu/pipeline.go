package halgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framering"
)

// Render target formats.
const (
	colorFormat = gputypes.TextureFormatBGRA8Unorm
	depthFormat = gputypes.TextureFormatDepth24PlusStencil8
)

// Bind group indices, matching the scene shader.
const (
	groupPass     = 0
	groupObject   = 1
	groupMaterial = 2
)

type pipelineKey struct {
	kind     framering.PipelineKind
	topology framering.Topology
}

// pipelineCache owns the shader, the shared uniform layout and one render
// pipeline per (kind, topology), created on first use.
type pipelineCache struct {
	device hal.Device

	shader        hal.ShaderModule
	uniformLayout hal.BindGroupLayout
	layout        hal.PipelineLayout
	pipelines     map[pipelineKey]hal.RenderPipeline
}

func newPipelineCache(device hal.Device) (_ *pipelineCache, err error) {
	c := &pipelineCache{device: device, pipelines: make(map[pipelineKey]hal.RenderPipeline)}
	defer func() {
		if err != nil {
			c.destroy()
		}
	}()

	spirv, err := CompileShader(sceneShaderSource)
	if err != nil {
		return nil, err
	}
	c.shader, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "framering_scene_shader",
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return nil, fmt.Errorf("create scene shader: %w", err)
	}

	// Pass, object and material records share one layout: a single uniform
	// buffer visible to both stages.
	c.uniformLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "framering_uniform_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create uniform bind group layout: %w", err)
	}

	c.layout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "framering_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{c.uniformLayout, c.uniformLayout, c.uniformLayout},
	})
	if err != nil {
		return nil, fmt.Errorf("create pipeline layout: %w", err)
	}

	// The three pipelines every frame binds are built eagerly so shader or
	// layout problems surface at device creation.
	for _, kind := range []framering.PipelineKind{
		framering.PipelineOpaque,
		framering.PipelineAlphaTested,
		framering.PipelineTransparent,
	} {
		if _, err := c.get(kind, framering.TopologyTriangleList); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// get returns the pipeline for kind drawing topology. The wireframe kind
// always draws lines, fed from a mesh's edge buffer for triangle lists:
// WebGPU has no polygon fill mode.
func (c *pipelineCache) get(kind framering.PipelineKind, topology framering.Topology) (hal.RenderPipeline, error) {
	if kind == framering.PipelineOpaqueWireframe {
		topology = framering.TopologyLineList
	}
	key := pipelineKey{kind: kind, topology: topology}
	if p, ok := c.pipelines[key]; ok {
		return p, nil
	}

	prim, err := primitiveTopology(topology)
	if err != nil {
		return nil, err
	}
	cull := gputypes.CullModeBack
	if kind != framering.PipelineOpaque {
		cull = gputypes.CullModeNone
	}
	target := gputypes.ColorTargetState{
		Format:    colorFormat,
		WriteMask: gputypes.ColorWriteMaskAll,
	}
	depthWrite := true
	if kind == framering.PipelineTransparent {
		blend := gputypes.BlendStatePremultiplied()
		target.Blend = &blend
		depthWrite = false
	}
	keep := hal.StencilFaceState{
		Compare:     gputypes.CompareFunctionAlways,
		FailOp:      hal.StencilOperationKeep,
		DepthFailOp: hal.StencilOperationKeep,
		PassOp:      hal.StencilOperationKeep,
	}

	p, err := c.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  fmt.Sprintf("framering_%s_%d_pipeline", kind, topology),
		Layout: c.layout,
		Vertex: hal.VertexState{
			Module:     c.shader,
			EntryPoint: "vs_main",
			Buffers: []gputypes.VertexBufferLayout{
				{
					ArrayStride: VertexStride,
					StepMode:    gputypes.VertexStepModeVertex,
					Attributes: []gputypes.VertexAttribute{
						{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
					},
				},
			},
		},
		Fragment: &hal.FragmentState{
			Module:     c.shader,
			EntryPoint: "fs_main",
			Targets:    []gputypes.ColorTargetState{target},
		},
		DepthStencil: &hal.DepthStencilState{
			Format:            depthFormat,
			DepthWriteEnabled: depthWrite,
			DepthCompare:      gputypes.CompareFunctionLess,
			StencilFront:      keep,
			StencilBack:       keep,
			StencilReadMask:   0xFF,
			StencilWriteMask:  0xFF,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
		Primitive: gputypes.PrimitiveState{
			Topology: prim,
			CullMode: cull,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s pipeline: %w", kind, err)
	}
	c.pipelines[key] = p
	slogger().Debug("halgpu: pipeline created", "kind", kind.String(), "topology", int(topology))
	return p, nil
}

func primitiveTopology(t framering.Topology) (gputypes.PrimitiveTopology, error) {
	switch t {
	case framering.TopologyTriangleList:
		return gputypes.PrimitiveTopologyTriangleList, nil
	case framering.TopologyLineList:
		return gputypes.PrimitiveTopologyLineList, nil
	case framering.TopologyPointList:
		return gputypes.PrimitiveTopologyPointList, nil
	default:
		return 0, fmt.Errorf("halgpu: unsupported topology %d", int(t))
	}
}

// destroy releases all pipeline resources in reverse creation order.
func (c *pipelineCache) destroy() {
	for k, p := range c.pipelines {
		c.device.DestroyRenderPipeline(p)
		delete(c.pipelines, k)
	}
	if c.layout != nil {
		c.device.DestroyPipelineLayout(c.layout)
		c.layout = nil
	}
	if c.uniformLayout != nil {
		c.device.DestroyBindGroupLayout(c.uniformLayout)
		c.uniformLayout = nil
	}
	if c.shader != nil {
		c.device.DestroyShaderModule(c.shader)
		c.shader = nil
	}
}
