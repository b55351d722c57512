package framering

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestConstantSizes(t *testing.T) {
	assert.Equal(t, 128, ObjectConstantsSize)
	assert.Equal(t, 96, MaterialConstantsSize)
	assert.Equal(t, 1216, PassConstantsSize)

	tests := []struct{ in, want int }{
		{0, 0}, {1, 256}, {128, 256}, {256, 256}, {257, 512}, {PassConstantsSize, 1280},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AlignConstantBufferSize(tt.in), "align(%d)", tt.in)
	}
}

func TestObjectConstantsLayout(t *testing.T) {
	c := ObjectConstants{World: mgl32.Translate3D(1, 2, 3), TexTransform: mgl32.Scale3D(5, 5, 1)}

	b := c.Bytes(false)
	assert.Equal(t, c.World, DecodeMat4(b[0:]))
	assert.Equal(t, c.TexTransform, DecodeMat4(b[64:]))

	// Column-major: the translation lives in elements 12..14.
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(b[48:])))

	rb := c.Bytes(true)
	assert.Equal(t, c.World.Transpose(), DecodeMat4(rb[0:]))
}

func TestMaterialConstantsLayout(t *testing.T) {
	c := MaterialConstants{
		DiffuseAlbedo: mgl32.Vec4{0.2, 0.6, 0.2, 1},
		FresnelR0:     mgl32.Vec3{0.01, 0.01, 0.01},
		Roughness:     0.125,
		MatTransform:  mgl32.Ident4(),
	}
	b := c.Bytes(false)
	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b[off:])) }

	assert.Equal(t, float32(0.6), f(4))
	assert.Equal(t, float32(0.01), f(16))
	assert.Equal(t, float32(0.125), f(28))
	assert.Equal(t, c.MatTransform, DecodeMat4(b[32:]))
}

func TestPassConstantsLightLayout(t *testing.T) {
	var pc PassConstants
	pc.Lights[1] = Light{Strength: mgl32.Vec3{1, 2, 3}, SpotPower: 64}
	b := pc.Bytes(false)

	lights := 6*64 + 64
	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b[off:])) }
	assert.Equal(t, float32(2), f(lights+48+4))
	assert.Equal(t, float32(64), f(lights+48+44))
}
