package softgpu

import (
	"fmt"
	"hash/crc32"
	"sync"

	"github.com/gogpu/framering"
)

// UploadBuffer is CPU-writable memory shared with the timeline goroutine.
type UploadBuffer struct {
	label  string
	stride int
	count  int

	mu        sync.Mutex
	data      []byte
	destroyed bool
}

var _ framering.UploadBuffer = (*UploadBuffer)(nil)

// CopyData overwrites element index. Bytes past len(data) keep their
// previous content.
func (b *UploadBuffer) CopyData(index int, data []byte) error {
	if index < 0 || index >= b.count {
		return fmt.Errorf("%w: %s[%d], capacity %d", framering.ErrObjectIndexOutOfRange, b.label, index, b.count)
	}
	if len(data) > b.stride {
		return fmt.Errorf("softgpu: %s: %d bytes exceed element stride %d", b.label, len(data), b.stride)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return fmt.Errorf("softgpu: %s: write after destroy", b.label)
	}
	copy(b.data[index*b.stride:], data)
	return nil
}

// Element returns a copy of element index.
func (b *UploadBuffer) Element(index int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	off := index * b.stride
	return append([]byte(nil), b.data[off:off+b.stride]...)
}

// ElementSize returns the aligned element stride.
func (b *UploadBuffer) ElementSize() int { return b.stride }

// Len returns the element count.
func (b *UploadBuffer) Len() int { return b.count }

// Label returns the debug label.
func (b *UploadBuffer) Label() string { return b.label }

// Destroy releases the buffer. Later writes fail.
func (b *UploadBuffer) Destroy() {
	b.mu.Lock()
	b.destroyed = true
	b.mu.Unlock()
}

func (b *UploadBuffer) checksum(index int) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	off := index * b.stride
	return crc32.ChecksumIEEE(b.data[off : off+b.stride])
}

// Mesh is immutable geometry.
type Mesh struct {
	label    string
	vertices []byte
	stride   uint32
	indices  []uint16
}

// Label returns the debug label.
func (m *Mesh) Label() string { return m.label }

// IndexCount returns the number of indices.
func (m *Mesh) IndexCount() int { return len(m.indices) }

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int { return len(m.vertices) / int(m.stride) }
