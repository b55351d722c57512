package halgpu

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/framering"
)

// createNoopDevice opens a raw noop device and queue for testing.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	require.NoError(t, err)
	adapters := instance.EnumerateAdapters(nil)
	require.NotEmpty(t, adapters)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return openDev.Device, openDev.Queue
}

func boxMesh(t *testing.T, d *Device) framering.Mesh {
	t.Helper()
	pos := []float32{-1, -1, 0, 1, -1, 0, 1, 1, 0, -1, 1, 0}
	verts := make([]byte, len(pos)*4)
	for i, v := range pos {
		binary.LittleEndian.PutUint32(verts[i*4:], math.Float32bits(v))
	}
	m, err := d.NewMesh("quad", verts, VertexStride, []uint16{0, 1, 2, 0, 2, 3})
	require.NoError(t, err)
	t.Cleanup(func() { d.DestroyMesh(m) })
	return m
}

func TestCompileShader(t *testing.T) {
	words, err := CompileShader(sceneShaderSource)
	require.NoError(t, err)
	require.NotEmpty(t, words)
	assert.Equal(t, uint32(0x07230203), words[0], "SPIR-V magic number")

	_, err = CompileShader("fn broken(")
	assert.Error(t, err)
}

func TestOpenNoop(t *testing.T) {
	d, err := OpenNoop(WithSurfaceSize(64, 32), WithBufferCount(3))
	require.NoError(t, err)
	t.Cleanup(d.Close)

	s := d.Surface().(*Surface)
	assert.Equal(t, 3, s.BufferCount())
	w, h := s.Size()
	assert.Equal(t, uint32(64), w)
	assert.Equal(t, uint32(32), h)

	for i := 0; i < 4; i++ {
		assert.Equal(t, i%3, s.CurrentTarget().Index())
		require.NoError(t, s.Present())
	}
}

func TestNewRejectsInvalidSurface(t *testing.T) {
	device, queue := createNoopDevice(t)
	_, err := New(device, queue, WithSurfaceSize(0, 10))
	assert.Error(t, err)
	_, err = New(nil, queue)
	assert.Error(t, err)
}

func TestFenceTracksSignals(t *testing.T) {
	device, queue := createNoopDevice(t)
	d, err := New(device, queue)
	require.NoError(t, err)
	t.Cleanup(d.Close)

	assert.Zero(t, d.Fence().CompletedValue())
	for v := uint64(1); v <= 3; v++ {
		require.NoError(t, d.Queue().Signal(v))
	}
	ok, err := d.Fence().Wait(3, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(3), d.Fence().CompletedValue())
}

func TestUploadBuffer(t *testing.T) {
	d, err := OpenNoop()
	require.NoError(t, err)
	t.Cleanup(d.Close)

	b, err := d.NewUploadBuffer("objects", framering.ObjectConstantsSize, 4)
	require.NoError(t, err)
	t.Cleanup(b.Destroy)

	assert.Equal(t, 256, b.ElementSize())
	assert.Equal(t, 4, b.Len())
	require.NoError(t, b.CopyData(3, framering.ObjectConstants{World: mgl32.Ident4()}.Bytes(false)))
	assert.ErrorIs(t, b.CopyData(4, nil), framering.ErrObjectIndexOutOfRange)
	assert.Error(t, b.CopyData(0, make([]byte, 300)))

	ub := b.(*UploadBuffer)
	g1, err := ub.bindGroup(2)
	require.NoError(t, err)
	g2, err := ub.bindGroup(2)
	require.NoError(t, err)
	assert.Equal(t, g1, g2, "bind groups are cached per record")

	_, err = d.NewUploadBuffer("empty", 0, 1)
	assert.Error(t, err)
}

func TestMeshValidation(t *testing.T) {
	d, err := OpenNoop()
	require.NoError(t, err)
	t.Cleanup(d.Close)

	_, err = d.NewMesh("wide", make([]byte, 48), 24, []uint16{0, 1})
	assert.Error(t, err)
	_, err = d.NewMesh("empty", nil, VertexStride, nil)
	assert.Error(t, err)

	m := boxMesh(t, d)
	assert.Equal(t, 6, m.(*Mesh).IndexCount())
	assert.NotNil(t, m.(*Mesh).edges)

	strip, err := d.NewMesh("strip", make([]byte, 4*VertexStride), VertexStride, []uint16{0, 1, 2, 3})
	require.NoError(t, err)
	t.Cleanup(func() { d.DestroyMesh(strip) })
	assert.Nil(t, strip.(*Mesh).edges, "no edge buffer without whole triangles")
}

func TestTriangleEdges(t *testing.T) {
	assert.Equal(t,
		[]uint16{0, 1, 1, 2, 2, 0, 0, 2, 2, 3, 3, 0},
		triangleEdges([]uint16{0, 1, 2, 0, 2, 3}))
	assert.Empty(t, triangleEdges(nil))
}

func TestWireframeDrawNeedsWholeTriangles(t *testing.T) {
	d, err := OpenNoop()
	require.NoError(t, err)
	t.Cleanup(d.Close)

	quad := boxMesh(t, d)
	strip, err := d.NewMesh("strip", make([]byte, 4*VertexStride), VertexStride, []uint16{0, 1, 2, 3})
	require.NoError(t, err)
	t.Cleanup(func() { d.DestroyMesh(strip) })
	objects, err := d.NewUploadBuffer("objects", framering.ObjectConstantsSize, 1)
	require.NoError(t, err)
	t.Cleanup(objects.Destroy)

	alloc, err := d.NewCommandAllocator("alloc")
	require.NoError(t, err)
	t.Cleanup(alloc.Destroy)
	l, err := alloc.Begin(framering.PipelineOpaqueWireframe)
	require.NoError(t, err)
	l.BeginPass(d.Surface().CurrentTarget(), [4]float32{})

	assert.NoError(t, l.Draw(framering.DrawCall{Mesh: quad, IndexCount: 6, Objects: objects}))
	assert.NoError(t, l.Draw(framering.DrawCall{Mesh: quad, StartIndex: 3, IndexCount: 3, Objects: objects}))
	assert.Error(t, l.Draw(framering.DrawCall{Mesh: quad, IndexCount: 4, Objects: objects}))
	assert.Error(t, l.Draw(framering.DrawCall{Mesh: strip, IndexCount: 3, Objects: objects}))
	assert.NoError(t, l.Draw(framering.DrawCall{Mesh: strip, Topology: framering.TopologyLineList, IndexCount: 4, Objects: objects}))

	l.EndPass()
	require.NoError(t, l.Close())
}

func TestPipelineCache(t *testing.T) {
	d, err := OpenNoop()
	require.NoError(t, err)
	t.Cleanup(d.Close)

	c := d.pipelines
	assert.Len(t, c.pipelines, 3)

	wire, err := c.get(framering.PipelineOpaqueWireframe, framering.TopologyTriangleList)
	require.NoError(t, err)
	lines, err := c.get(framering.PipelineOpaqueWireframe, framering.TopologyLineList)
	require.NoError(t, err)
	assert.Equal(t, wire, lines, "wireframe always draws lines")

	_, err = c.get(framering.PipelineOpaque, framering.Topology(42))
	assert.Error(t, err)
}

func TestRecordAndSubmit(t *testing.T) {
	d, err := OpenNoop()
	require.NoError(t, err)
	t.Cleanup(d.Close)

	mesh := boxMesh(t, d)
	objects, err := d.NewUploadBuffer("objects", framering.ObjectConstantsSize, 1)
	require.NoError(t, err)
	t.Cleanup(objects.Destroy)
	pass, err := d.NewUploadBuffer("pass", framering.PassConstantsSize, 1)
	require.NoError(t, err)
	t.Cleanup(pass.Destroy)

	alloc, err := d.NewCommandAllocator("alloc")
	require.NoError(t, err)
	t.Cleanup(alloc.Destroy)

	l, err := alloc.Begin(framering.PipelineOpaque)
	require.NoError(t, err)
	target := d.Surface().CurrentTarget()
	l.Barrier(target, framering.TargetPresent, framering.TargetRenderAttachment)
	l.BeginPass(target, [4]float32{0, 0, 0, 1})
	l.SetPassConstants(pass, 0)
	require.NoError(t, l.Draw(framering.DrawCall{Mesh: mesh, IndexCount: 6, Objects: objects}))
	assert.Error(t, l.Draw(framering.DrawCall{Mesh: mesh, IndexCount: 7, Objects: objects}))
	assert.ErrorIs(t, l.Draw(framering.DrawCall{Mesh: mesh, IndexCount: 6, Objects: objects, ObjectIndex: 1}),
		framering.ErrObjectIndexOutOfRange)
	l.EndPass()
	l.Barrier(target, framering.TargetRenderAttachment, framering.TargetPresent)
	require.NoError(t, l.Close())
	assert.ErrorIs(t, l.Close(), ErrListClosed)

	require.NoError(t, d.Queue().Submit(l))
	require.NoError(t, d.Queue().Signal(1))
	ok, err := d.Fence().Wait(1, 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Len(t, alloc.(*CommandAllocator).buffers, 1)
	require.NoError(t, alloc.Reset())
	assert.Empty(t, alloc.(*CommandAllocator).buffers)
}

func TestRecordingErrorDiscardsList(t *testing.T) {
	d, err := OpenNoop()
	require.NoError(t, err)
	t.Cleanup(d.Close)

	alloc, err := d.NewCommandAllocator("alloc")
	require.NoError(t, err)
	l, err := alloc.Begin(framering.PipelineOpaque)
	require.NoError(t, err)

	pass, err := d.NewUploadBuffer("pass", framering.PassConstantsSize, 1)
	require.NoError(t, err)
	t.Cleanup(pass.Destroy)

	// No render pass is open.
	l.SetPassConstants(pass, 0)
	assert.ErrorIs(t, l.Close(), ErrNoPass)
	assert.Error(t, d.Queue().Submit(l))
}

type fakeProvider struct {
	device hal.Device
	queue  hal.Queue
}

func (p *fakeProvider) Device() gpucontext.Device   { return nil }
func (p *fakeProvider) Queue() gpucontext.Queue     { return nil }
func (p *fakeProvider) Adapter() gpucontext.Adapter { return nil }
func (p *fakeProvider) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatBGRA8Unorm
}
func (p *fakeProvider) HalDevice() any { return p.device }
func (p *fakeProvider) HalQueue() any  { return p.queue }

// plainProvider exposes no hal objects.
type plainProvider struct{ fakeProvider }

func (plainProvider) HalDevice() {}

func TestNewFromProvider(t *testing.T) {
	device, queue := createNoopDevice(t)

	d, err := NewFromProvider(&fakeProvider{device: device, queue: queue})
	require.NoError(t, err)
	assert.Empty(t, d.Adapter())
	d.Close()

	_, err = NewFromProvider(&fakeProvider{})
	assert.ErrorIs(t, err, ErrNotHALProvider)
	_, err = NewFromProvider(&plainProvider{})
	assert.ErrorIs(t, err, ErrNotHALProvider)
}

func TestDriverOnNoop(t *testing.T) {
	d, err := OpenNoop(WithSurfaceSize(320, 240))
	require.NoError(t, err)
	t.Cleanup(d.Close)

	mesh := boxMesh(t, d)
	scene := framering.NewScene()
	geo := scene.AddGeometry("quad", mesh, map[string]framering.DrawArgs{"quad": {IndexCount: 6}})
	mat := scene.AddMaterial("glass", framering.MaterialConstants{DiffuseAlbedo: mgl32.Vec4{0.5, 0.5, 1, 0.4}})
	for i, l := range []framering.Layer{framering.LayerOpaque, framering.LayerAlphaTested, framering.LayerTransparent} {
		m := mat
		if i == 0 {
			m = framering.NoMaterial
		}
		_, err := scene.AddItem(framering.ItemDesc{World: mgl32.Translate3D(float32(i), 0, 0), Geometry: geo, Submesh: "quad", Material: m, Layer: l})
		require.NoError(t, err)
	}

	drv, err := framering.NewDriver(d, scene,
		framering.WithViewport(320, 240),
		framering.WithFenceTimeout(5*time.Second))
	require.NoError(t, err)

	in := framering.FrameInput{Camera: framering.CameraState{Eye: mgl32.Vec3{0, 0, 5}, Up: mgl32.Vec3{0, 1, 0}}}
	for f := 0; f < 6; f++ {
		in.Wireframe = f%2 == 1
		require.NoError(t, drv.Frame(in))
	}
	st := drv.Stats()
	assert.Equal(t, uint64(6), st.Frames)
	assert.Equal(t, uint64(6), st.LastMarker)
	assert.Equal(t, uint64(6), d.Surface().(*Surface).Presents())
	require.NoError(t, drv.Close())
	assert.Equal(t, uint64(7), d.Fence().CompletedValue())
}
