package framering

import (
	"errors"
	"fmt"
	"time"
)

// fakeDevice is a synchronous in-package device. Its fence completes a
// signaled marker immediately unless the fence is held.
type fakeDevice struct {
	queue   *fakeQueue
	fence   *fakeFence
	surface *fakeSurface

	allocators []*fakeAllocator
	buffers    map[string]*fakeBuffer
	failBuffer string
}

func newFakeDevice() *fakeDevice {
	f := &fakeFence{}
	return &fakeDevice{
		queue:   &fakeQueue{fence: f},
		fence:   f,
		surface: &fakeSurface{count: 2},
		buffers: make(map[string]*fakeBuffer),
	}
}

func (d *fakeDevice) NewCommandAllocator(label string) (CommandAllocator, error) {
	a := &fakeAllocator{label: label}
	d.allocators = append(d.allocators, a)
	return a, nil
}

func (d *fakeDevice) NewUploadBuffer(label string, elementSize, count int) (UploadBuffer, error) {
	if label == d.failBuffer {
		return nil, errors.New("out of memory")
	}
	b := &fakeBuffer{label: label, stride: AlignConstantBufferSize(elementSize), data: make([][]byte, count)}
	d.buffers[label] = b
	return b, nil
}

func (d *fakeDevice) NewMesh(label string, _ []byte, _ uint32, _ []uint16) (Mesh, error) {
	return fakeMesh(label), nil
}

func (d *fakeDevice) Queue() Queue     { return d.queue }
func (d *fakeDevice) Fence() Fence     { return d.fence }
func (d *fakeDevice) Surface() Surface { return d.surface }

type fakeFence struct {
	completed uint64
	signaled  uint64
	held      bool
	waits     []uint64
}

func (f *fakeFence) CompletedValue() uint64 { return f.completed }

// Wait simulates the GPU finishing everything signaled so far. A held fence
// never advances.
func (f *fakeFence) Wait(value uint64, _ time.Duration) (bool, error) {
	f.waits = append(f.waits, value)
	if !f.held {
		f.completed = f.signaled
	}
	return f.completed >= value, nil
}

type fakeQueue struct {
	fence     *fakeFence
	submitted []CommandList
	signals   []uint64
	signalErr error
}

func (q *fakeQueue) Submit(list CommandList) error {
	q.submitted = append(q.submitted, list)
	return nil
}

func (q *fakeQueue) Signal(value uint64) error {
	if q.signalErr != nil {
		return q.signalErr
	}
	q.signals = append(q.signals, value)
	q.fence.signaled = value
	return nil
}

type fakeAllocator struct {
	label     string
	resets    int
	destroyed bool
}

func (a *fakeAllocator) Reset() error {
	a.resets++
	return nil
}

func (a *fakeAllocator) Begin(kind PipelineKind) (CommandList, error) {
	return &fakeList{ops: []string{"pipeline " + kind.String()}}, nil
}

func (a *fakeAllocator) Destroy() { a.destroyed = true }

type fakeList struct {
	ops    []string
	closed bool
}

func (l *fakeList) Barrier(t Target, before, after TargetState) {
	l.ops = append(l.ops, fmt.Sprintf("barrier %d %s->%s", t.Index(), before, after))
}

func (l *fakeList) BeginPass(t Target, _ [4]float32) {
	l.ops = append(l.ops, fmt.Sprintf("begin %d", t.Index()))
}

func (l *fakeList) SetPipeline(kind PipelineKind) {
	l.ops = append(l.ops, "pipeline "+kind.String())
}

func (l *fakeList) SetPassConstants(buf UploadBuffer, index int) {
	l.ops = append(l.ops, fmt.Sprintf("pass %s[%d]", buf.(*fakeBuffer).label, index))
}

func (l *fakeList) Draw(c DrawCall) error {
	l.ops = append(l.ops, fmt.Sprintf("draw %s obj %s[%d]", c.Mesh.Label(), c.Objects.(*fakeBuffer).label, c.ObjectIndex))
	return nil
}

func (l *fakeList) EndPass() { l.ops = append(l.ops, "end") }

func (l *fakeList) Close() error {
	l.closed = true
	return nil
}

type fakeBuffer struct {
	label     string
	stride    int
	data      [][]byte
	writes    int
	destroyed bool
}

func (b *fakeBuffer) CopyData(index int, data []byte) error {
	if index < 0 || index >= len(b.data) {
		return ErrObjectIndexOutOfRange
	}
	b.data[index] = append([]byte(nil), data...)
	b.writes++
	return nil
}

func (b *fakeBuffer) ElementSize() int { return b.stride }
func (b *fakeBuffer) Len() int         { return len(b.data) }
func (b *fakeBuffer) Destroy()         { b.destroyed = true }

type fakeMesh string

func (m fakeMesh) Label() string { return string(m) }

type fakeTarget int

func (t fakeTarget) Index() int { return int(t) }

type fakeSurface struct {
	index      int
	count      int
	presents   int
	presentErr error
}

func (s *fakeSurface) CurrentTarget() Target { return fakeTarget(s.index) }

func (s *fakeSurface) Present() error {
	if s.presentErr != nil {
		return s.presentErr
	}
	s.presents++
	s.index = (s.index + 1) % s.count
	return nil
}

func (s *fakeSurface) BufferCount() int { return s.count }
