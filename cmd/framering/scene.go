package main

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/framering"
	"github.com/gogpu/framering/internal/halgpu"
)

// meshBuilder is the subset of framering.Device the demo needs.
type meshBuilder interface {
	NewMesh(label string, vertices []byte, stride uint32, indices []uint16) (framering.Mesh, error)
}

// buildScene creates a ground grid with a ring of cubes: opaque stone
// cubes, alpha-tested crates on the ground and a transparent water plane.
func buildScene(dev meshBuilder) (*framering.Scene, error) {
	positions, indices, args := shapeGeometry()
	mesh, err := dev.NewMesh("shapes", packPositions(positions), halgpu.VertexStride, indices)
	if err != nil {
		return nil, fmt.Errorf("create shapes mesh: %w", err)
	}

	s := framering.NewScene()
	geo := s.AddGeometry("shapes", mesh, args)

	stone := s.AddMaterial("stone", framering.MaterialConstants{
		DiffuseAlbedo: mgl32.Vec4{0.7, 0.7, 0.7, 1},
		FresnelR0:     mgl32.Vec3{0.02, 0.02, 0.02},
		Roughness:     0.3,
		MatTransform:  mgl32.Ident4(),
	})
	crate := s.AddMaterial("crate", framering.MaterialConstants{
		DiffuseAlbedo: mgl32.Vec4{0.9, 0.6, 0.3, 1},
		FresnelR0:     mgl32.Vec3{0.05, 0.05, 0.05},
		Roughness:     0.2,
		MatTransform:  mgl32.Ident4(),
	})
	water := s.AddMaterial("water", framering.MaterialConstants{
		DiffuseAlbedo: mgl32.Vec4{0, 0.2, 0.6, 0.5},
		FresnelR0:     mgl32.Vec3{0.1, 0.1, 0.1},
		Roughness:     0,
		MatTransform:  mgl32.Ident4(),
	})

	add := func(d framering.ItemDesc) error {
		d.Geometry = geo
		_, err := s.AddItem(d)
		return err
	}
	if err := add(framering.ItemDesc{World: mgl32.Ident4(), Submesh: "grid", Material: framering.NoMaterial}); err != nil {
		return nil, err
	}
	for i := 0; i < 10; i++ {
		a := float32(i) * 2 * math.Pi / 10
		world := mgl32.Translate3D(6*float32(math.Cos(float64(a))), 1, 6*float32(math.Sin(float64(a))))
		mat, layer := stone, framering.LayerOpaque
		if i%2 == 1 {
			mat, layer = crate, framering.LayerAlphaTested
		}
		if err := add(framering.ItemDesc{World: world, Submesh: "box", Material: mat, Layer: layer}); err != nil {
			return nil, err
		}
	}
	waterWorld := mgl32.Translate3D(0, 0.2, 0).Mul4(mgl32.Scale3D(0.5, 1, 0.5))
	if err := add(framering.ItemDesc{World: waterWorld, Submesh: "grid", Material: water, Layer: framering.LayerTransparent}); err != nil {
		return nil, err
	}
	return s, nil
}

// shapeGeometry concatenates a unit cube and a 20x20 ground quad into one
// vertex and index buffer.
func shapeGeometry() ([]mgl32.Vec3, []uint16, map[string]framering.DrawArgs) {
	box := []mgl32.Vec3{
		{-1, -1, -1}, {-1, 1, -1}, {1, 1, -1}, {1, -1, -1},
		{-1, -1, 1}, {-1, 1, 1}, {1, 1, 1}, {1, -1, 1},
	}
	boxIdx := []uint16{
		0, 1, 2, 0, 2, 3, // front
		4, 6, 5, 4, 7, 6, // back
		4, 5, 1, 4, 1, 0, // left
		3, 2, 6, 3, 6, 7, // right
		1, 5, 6, 1, 6, 2, // top
		4, 0, 3, 4, 3, 7, // bottom
	}
	grid := []mgl32.Vec3{{-10, 0, -10}, {-10, 0, 10}, {10, 0, 10}, {10, 0, -10}}
	gridIdx := []uint16{0, 1, 2, 0, 2, 3}

	positions := append(append([]mgl32.Vec3{}, box...), grid...)
	indices := append(append([]uint16{}, boxIdx...), gridIdx...)
	args := map[string]framering.DrawArgs{
		"box":  {IndexCount: uint32(len(boxIdx))},
		"grid": {IndexCount: uint32(len(gridIdx)), StartIndex: uint32(len(boxIdx)), BaseVertex: int32(len(box))},
	}
	return positions, indices, args
}

func packPositions(p []mgl32.Vec3) []byte {
	out := make([]byte, 0, len(p)*halgpu.VertexStride)
	for _, v := range p {
		for _, f := range v {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
		}
	}
	return out
}
