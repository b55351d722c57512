package halgpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framering"
)

// Errors returned by command recording.
var (
	ErrForeignResource = errors.New("halgpu: resource was not created by this device")
	ErrNoPass          = errors.New("halgpu: draw outside a render pass")
	ErrListClosed      = errors.New("halgpu: command list already closed")
)

// CommandAllocator keeps the command buffers of one ring slot alive until
// the slot is reused. Reset frees them.
type CommandAllocator struct {
	dev     *Device
	label   string
	buffers []hal.CommandBuffer
}

// Reset frees every command buffer recorded since the last reset. The
// caller guarantees the GPU finished them.
func (a *CommandAllocator) Reset() error {
	for _, cb := range a.buffers {
		a.dev.device.FreeCommandBuffer(cb)
	}
	a.buffers = a.buffers[:0]
	return nil
}

// Begin opens a command encoder.
func (a *CommandAllocator) Begin(kind framering.PipelineKind) (framering.CommandList, error) {
	encoder, err := a.dev.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: a.label})
	if err != nil {
		return nil, fmt.Errorf("halgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(a.label); err != nil {
		return nil, fmt.Errorf("halgpu: begin encoding: %w", err)
	}
	return &CommandList{alloc: a, encoder: encoder, kind: kind}, nil
}

// Destroy frees any command buffers still held.
func (a *CommandAllocator) Destroy() { _ = a.Reset() }

// CommandList records one frame into a hal command encoder.
type CommandList struct {
	alloc   *CommandAllocator
	encoder hal.CommandEncoder
	pass    hal.RenderPassEncoder

	kind  framering.PipelineKind
	bound hal.RenderPipeline

	cmdBuf hal.CommandBuffer
	closed bool
	err    error
}

var _ framering.CommandList = (*CommandList)(nil)

// Barrier transitions a back buffer.
func (l *CommandList) Barrier(t framering.Target, before, after framering.TargetState) {
	target, ok := t.(*Target)
	if !ok {
		l.fail(ErrForeignResource)
		return
	}
	l.encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: target.texture,
		Usage: hal.TextureUsageTransition{
			OldUsage: textureUsage(before),
			NewUsage: textureUsage(after),
		},
	}})
}

// BeginPass starts a render pass clearing target and the shared depth buffer.
func (l *CommandList) BeginPass(t framering.Target, clear [4]float32) {
	target, ok := t.(*Target)
	if !ok {
		l.fail(ErrForeignResource)
		return
	}
	surface := l.alloc.dev.surface
	l.pass = l.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "framering_scene_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:    target.view,
			LoadOp:  gputypes.LoadOpClear,
			StoreOp: gputypes.StoreOpStore,
			ClearValue: gputypes.Color{
				R: float64(clear[0]), G: float64(clear[1]), B: float64(clear[2]), A: float64(clear[3]),
			},
		}},
		DepthStencilAttachment: &hal.RenderPassDepthStencilAttachment{
			View:              surface.depthView,
			DepthLoadOp:       gputypes.LoadOpClear,
			DepthStoreOp:      gputypes.StoreOpDiscard,
			DepthClearValue:   1.0,
			StencilLoadOp:     gputypes.LoadOpClear,
			StencilStoreOp:    gputypes.StoreOpDiscard,
			StencilClearValue: 0,
		},
	})
	l.bound = nil
}

// SetPipeline selects the pipeline kind for subsequent draws.
func (l *CommandList) SetPipeline(kind framering.PipelineKind) { l.kind = kind }

// SetPassConstants binds record index of buf as the pass record.
func (l *CommandList) SetPassConstants(buf framering.UploadBuffer, index int) {
	if l.pass == nil {
		l.fail(ErrNoPass)
		return
	}
	b, ok := buf.(*UploadBuffer)
	if !ok {
		l.fail(ErrForeignResource)
		return
	}
	bg, err := b.bindGroup(index)
	if err != nil {
		l.fail(err)
		return
	}
	l.pass.SetBindGroup(groupPass, bg, nil)
}

// Draw records one indexed draw.
func (l *CommandList) Draw(c framering.DrawCall) error {
	if l.closed {
		return ErrListClosed
	}
	if l.pass == nil {
		return ErrNoPass
	}
	mesh, ok := c.Mesh.(*Mesh)
	if !ok {
		return ErrForeignResource
	}
	if int(c.StartIndex)+int(c.IndexCount) > mesh.indexCount {
		return fmt.Errorf("halgpu: draw %s: indices [%d, %d) of %d", mesh.label,
			c.StartIndex, c.StartIndex+c.IndexCount, mesh.indexCount)
	}
	indices, start, count := mesh.indices, c.StartIndex, c.IndexCount
	if l.kind == framering.PipelineOpaqueWireframe && c.Topology == framering.TopologyTriangleList {
		if mesh.edges == nil || start%3 != 0 || count%3 != 0 {
			return fmt.Errorf("halgpu: draw %s: wireframe needs whole triangles", mesh.label)
		}
		indices, start, count = mesh.edges, 2*start, 2*count
	}
	objects, ok := c.Objects.(*UploadBuffer)
	if !ok {
		return ErrForeignResource
	}
	objectGroup, err := objects.bindGroup(c.ObjectIndex)
	if err != nil {
		return err
	}
	materials, index := l.alloc.dev.defaultMaterial, 0
	if c.Materials != nil {
		if materials, ok = c.Materials.(*UploadBuffer); !ok {
			return ErrForeignResource
		}
		index = c.MaterialIndex
	}
	materialGroup, err := materials.bindGroup(index)
	if err != nil {
		return err
	}

	p, err := l.alloc.dev.pipelines.get(l.kind, c.Topology)
	if err != nil {
		return err
	}
	if p != l.bound {
		l.pass.SetPipeline(p)
		l.bound = p
	}
	l.pass.SetBindGroup(groupObject, objectGroup, nil)
	l.pass.SetBindGroup(groupMaterial, materialGroup, nil)
	l.pass.SetVertexBuffer(0, mesh.vertices, 0)
	l.pass.SetIndexBuffer(indices, gputypes.IndexFormatUint16, 0)
	l.pass.DrawIndexed(count, 1, start, c.BaseVertex, 0)
	return nil
}

// EndPass ends the render pass.
func (l *CommandList) EndPass() {
	if l.pass == nil {
		l.fail(ErrNoPass)
		return
	}
	l.pass.End()
	l.pass = nil
}

// Close finishes encoding. On a recording error the encoding is discarded
// and the error returned.
func (l *CommandList) Close() error {
	if l.closed {
		return ErrListClosed
	}
	l.closed = true
	if l.err != nil {
		if l.pass != nil {
			l.pass.End()
			l.pass = nil
		}
		l.encoder.DiscardEncoding()
		return l.err
	}
	cb, err := l.encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("halgpu: end encoding: %w", err)
	}
	l.cmdBuf = cb
	l.alloc.buffers = append(l.alloc.buffers, cb)
	return nil
}

func (l *CommandList) fail(err error) {
	if l.err == nil {
		l.err = err
	}
}
