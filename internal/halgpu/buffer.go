package halgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framering"
)

// UploadBuffer is a uniform buffer holding count records at a 256-byte
// stride. Each record gets its own bind group, created on first bind.
type UploadBuffer struct {
	dev         *Device
	label       string
	buf         hal.Buffer
	elementSize int
	stride      int
	count       int
	groups      []hal.BindGroup
}

var _ framering.UploadBuffer = (*UploadBuffer)(nil)

func newUploadBuffer(dev *Device, label string, elementSize, count int) (*UploadBuffer, error) {
	if elementSize <= 0 || count <= 0 {
		return nil, fmt.Errorf("halgpu: upload buffer %q: invalid size %d x %d", label, elementSize, count)
	}
	stride := framering.AlignConstantBufferSize(elementSize)
	buf, err := dev.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(stride * count),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("halgpu: create %s: %w", label, err)
	}
	return &UploadBuffer{
		dev:         dev,
		label:       label,
		buf:         buf,
		elementSize: elementSize,
		stride:      stride,
		count:       count,
		groups:      make([]hal.BindGroup, count),
	}, nil
}

// CopyData writes record index through the queue.
func (b *UploadBuffer) CopyData(index int, data []byte) error {
	if index < 0 || index >= b.count {
		return fmt.Errorf("%w: %s[%d], capacity %d", framering.ErrObjectIndexOutOfRange, b.label, index, b.count)
	}
	if len(data) > b.stride {
		return fmt.Errorf("halgpu: %s: %d bytes exceed stride %d", b.label, len(data), b.stride)
	}
	b.dev.queue.WriteBuffer(b.buf, uint64(index*b.stride), data)
	return nil
}

// ElementSize returns the aligned stride.
func (b *UploadBuffer) ElementSize() int { return b.stride }

// Len returns the record count.
func (b *UploadBuffer) Len() int { return b.count }

// bindGroup returns the bind group exposing record index.
func (b *UploadBuffer) bindGroup(index int) (hal.BindGroup, error) {
	if index < 0 || index >= b.count {
		return nil, fmt.Errorf("%w: %s[%d], capacity %d", framering.ErrObjectIndexOutOfRange, b.label, index, b.count)
	}
	if bg := b.groups[index]; bg != nil {
		return bg, nil
	}
	bg, err := b.dev.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  fmt.Sprintf("%s_%d_bind", b.label, index),
		Layout: b.dev.pipelines.uniformLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: b.buf.NativeHandle(),
				Offset: uint64(index * b.stride),
				Size:   uint64(b.elementSize),
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("halgpu: bind %s[%d]: %w", b.label, index, err)
	}
	b.groups[index] = bg
	return bg, nil
}

// Destroy releases the bind groups and the buffer.
func (b *UploadBuffer) Destroy() {
	for i, bg := range b.groups {
		if bg != nil {
			b.dev.device.DestroyBindGroup(bg)
			b.groups[i] = nil
		}
	}
	if b.buf != nil {
		b.dev.device.DestroyBuffer(b.buf)
		b.buf = nil
	}
}

// Mesh is an immutable vertex and 16-bit index buffer pair. Meshes made of
// whole triangles also carry an edge buffer with two line indices per
// triangle edge, used by the wireframe pipeline.
type Mesh struct {
	label      string
	vertices   hal.Buffer
	indices    hal.Buffer
	edges      hal.Buffer
	indexCount int
}

// Label returns the debug label.
func (m *Mesh) Label() string { return m.label }

// IndexCount returns the number of indices.
func (m *Mesh) IndexCount() int { return m.indexCount }

func newMesh(dev *Device, label string, vertices []byte, stride uint32, indices []uint16) (_ *Mesh, err error) {
	if stride != VertexStride {
		return nil, fmt.Errorf("halgpu: mesh %q: vertex stride %d, shader expects %d", label, stride, VertexStride)
	}
	if len(vertices) == 0 || len(vertices)%VertexStride != 0 || len(indices) == 0 {
		return nil, fmt.Errorf("halgpu: mesh %q: %d vertex bytes, %d indices", label, len(vertices), len(indices))
	}
	m := &Mesh{label: label, indexCount: len(indices)}
	defer func() {
		if err != nil {
			m.destroy(dev.device)
		}
	}()

	if m.vertices, err = dev.uploadStatic(label+"_vertices", vertices, gputypes.BufferUsageVertex); err != nil {
		return nil, err
	}

	if m.indices, err = dev.uploadStatic(label+"_indices", packIndices(indices), gputypes.BufferUsageIndex); err != nil {
		return nil, err
	}
	if len(indices)%3 == 0 {
		if m.edges, err = dev.uploadStatic(label+"_edges", packIndices(triangleEdges(indices)), gputypes.BufferUsageIndex); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// packIndices encodes 16-bit indices padded to 4 bytes, the buffer write
// alignment.
func packIndices(indices []uint16) []byte {
	b := make([]byte, (len(indices)*2+3)&^3)
	for i, v := range indices {
		b[i*2] = byte(v)
		b[i*2+1] = byte(v >> 8)
	}
	return b
}

// triangleEdges turns a triangle list into a line list of its edges.
// Triangle index i maps to edge indices [2i, 2i+2), so a submesh range
// doubles in both start and count.
func triangleEdges(indices []uint16) []uint16 {
	edges := make([]uint16, 0, len(indices)*2)
	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		edges = append(edges, a, b, b, c, c, a)
	}
	return edges
}

func (m *Mesh) destroy(device hal.Device) {
	if m.vertices != nil {
		device.DestroyBuffer(m.vertices)
		m.vertices = nil
	}
	if m.indices != nil {
		device.DestroyBuffer(m.indices)
		m.indices = nil
	}
	if m.edges != nil {
		device.DestroyBuffer(m.edges)
		m.edges = nil
	}
}
