package halgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framering"
)

// Target is one offscreen back buffer.
type Target struct {
	index   int
	texture hal.Texture
	view    hal.TextureView
}

// Index returns the back buffer index.
func (t *Target) Index() int { return t.index }

// Surface is an offscreen swap chain: BufferCount color textures sharing one
// depth/stencil texture. Present flips to the next back buffer.
type Surface struct {
	device  hal.Device
	width   uint32
	height  uint32
	targets []*Target

	depthTex  hal.Texture
	depthView hal.TextureView

	index    int
	presents uint64
}

var _ framering.Surface = (*Surface)(nil)

func newSurface(device hal.Device, width, height uint32, count int) (_ *Surface, err error) {
	s := &Surface{device: device, width: width, height: height}
	defer func() {
		if err != nil {
			s.destroy()
		}
	}()

	size := hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1}
	for i := 0; i < count; i++ {
		tex, err := device.CreateTexture(&hal.TextureDescriptor{
			Label:         fmt.Sprintf("framering_backbuffer_%d", i),
			Size:          size,
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        colorFormat,
			Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
		})
		if err != nil {
			return nil, fmt.Errorf("create back buffer %d: %w", i, err)
		}
		t := &Target{index: i, texture: tex}
		s.targets = append(s.targets, t)
		t.view, err = device.CreateTextureView(tex, &hal.TextureViewDescriptor{
			Label: fmt.Sprintf("framering_backbuffer_%d_view", i),
		})
		if err != nil {
			return nil, fmt.Errorf("create back buffer %d view: %w", i, err)
		}
	}

	s.depthTex, err = device.CreateTexture(&hal.TextureDescriptor{
		Label:         "framering_depth_stencil",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        depthFormat,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return nil, fmt.Errorf("create depth/stencil texture: %w", err)
	}
	s.depthView, err = device.CreateTextureView(s.depthTex, &hal.TextureViewDescriptor{
		Label: "framering_depth_stencil_view",
	})
	if err != nil {
		return nil, fmt.Errorf("create depth/stencil view: %w", err)
	}
	return s, nil
}

// CurrentTarget returns the back buffer the next frame renders into.
func (s *Surface) CurrentTarget() framering.Target { return s.targets[s.index] }

// Present flips to the next back buffer.
func (s *Surface) Present() error {
	s.index = (s.index + 1) % len(s.targets)
	s.presents++
	return nil
}

// BufferCount returns the number of back buffers.
func (s *Surface) BufferCount() int { return len(s.targets) }

// Presents returns how many frames were presented.
func (s *Surface) Presents() uint64 { return s.presents }

// Size returns the back buffer size in pixels.
func (s *Surface) Size() (width, height uint32) { return s.width, s.height }

// textureUsage maps presentation states onto WebGPU usages. An offscreen
// back buffer is "presented" by being read back, so Present maps to CopySrc.
func textureUsage(st framering.TargetState) gputypes.TextureUsage {
	if st == framering.TargetRenderAttachment {
		return gputypes.TextureUsageRenderAttachment
	}
	return gputypes.TextureUsageCopySrc
}

func (s *Surface) destroy() {
	if s.depthView != nil {
		s.device.DestroyTextureView(s.depthView)
		s.depthView = nil
	}
	if s.depthTex != nil {
		s.device.DestroyTexture(s.depthTex)
		s.depthTex = nil
	}
	for _, t := range s.targets {
		if t.view != nil {
			s.device.DestroyTextureView(t.view)
		}
		if t.texture != nil {
			s.device.DestroyTexture(t.texture)
		}
	}
	s.targets = nil
}
