package framering

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// ConstantBufferAlignment is the stride alignment of constant buffer
// elements. Both D3D12 CBVs and WebGPU uniform offsets require 256 bytes.
const ConstantBufferAlignment = 256

// MaxLights is the number of light records in PassConstants.
const MaxLights = 16

// Packed sizes in bytes, before alignment.
const (
	mat4Size              = 64
	lightSize             = 48
	ObjectConstantsSize   = 2 * mat4Size
	MaterialConstantsSize = 16 + 12 + 4 + mat4Size
	PassConstantsSize     = 6*mat4Size + 16 + 16 + 16 + 16 + MaxLights*lightSize
)

// AlignConstantBufferSize rounds size up to ConstantBufferAlignment.
func AlignConstantBufferSize(size int) int {
	return (size + ConstantBufferAlignment - 1) &^ (ConstantBufferAlignment - 1)
}

// ObjectConstants is the per-object record.
type ObjectConstants struct {
	World        mgl32.Mat4
	TexTransform mgl32.Mat4
}

// Bytes packs the record. Matrices are written column-major unless
// rowMajor is set, in which case they are transposed first.
func (c ObjectConstants) Bytes(rowMajor bool) []byte {
	buf := make([]byte, ObjectConstantsSize)
	putMat4(buf[0:], c.World, rowMajor)
	putMat4(buf[mat4Size:], c.TexTransform, rowMajor)
	return buf
}

// MaterialConstants is the per-material record.
type MaterialConstants struct {
	DiffuseAlbedo mgl32.Vec4
	FresnelR0     mgl32.Vec3
	Roughness     float32
	MatTransform  mgl32.Mat4
}

// Bytes packs the record.
func (c MaterialConstants) Bytes(rowMajor bool) []byte {
	buf := make([]byte, MaterialConstantsSize)
	putVec(buf[0:], c.DiffuseAlbedo[:])
	putVec(buf[16:], c.FresnelR0[:])
	putFloat(buf[28:], c.Roughness)
	putMat4(buf[32:], c.MatTransform, rowMajor)
	return buf
}

// Light is a directional, point or spot light.
type Light struct {
	Strength     mgl32.Vec3
	FalloffStart float32
	Direction    mgl32.Vec3
	FalloffEnd   float32
	Position     mgl32.Vec3
	SpotPower    float32
}

func (l Light) put(buf []byte) {
	putVec(buf[0:], l.Strength[:])
	putFloat(buf[12:], l.FalloffStart)
	putVec(buf[16:], l.Direction[:])
	putFloat(buf[28:], l.FalloffEnd)
	putVec(buf[32:], l.Position[:])
	putFloat(buf[44:], l.SpotPower)
}

// PassConstants is the per-frame global record.
type PassConstants struct {
	View        mgl32.Mat4
	InvView     mgl32.Mat4
	Proj        mgl32.Mat4
	InvProj     mgl32.Mat4
	ViewProj    mgl32.Mat4
	InvViewProj mgl32.Mat4

	EyePosW             mgl32.Vec3
	RenderTargetSize    mgl32.Vec2
	InvRenderTargetSize mgl32.Vec2
	NearZ               float32
	FarZ                float32
	TotalTime           float32
	DeltaTime           float32

	AmbientLight mgl32.Vec4
	Lights       [MaxLights]Light
}

// Bytes packs the record in shader layout order.
func (c *PassConstants) Bytes(rowMajor bool) []byte {
	buf := make([]byte, PassConstantsSize)
	off := 0
	for _, m := range [...]mgl32.Mat4{c.View, c.InvView, c.Proj, c.InvProj, c.ViewProj, c.InvViewProj} {
		putMat4(buf[off:], m, rowMajor)
		off += mat4Size
	}
	putVec(buf[off:], c.EyePosW[:])
	off += 16 // vec3 + pad
	putVec(buf[off:], c.RenderTargetSize[:])
	putVec(buf[off+8:], c.InvRenderTargetSize[:])
	off += 16
	putFloat(buf[off:], c.NearZ)
	putFloat(buf[off+4:], c.FarZ)
	putFloat(buf[off+8:], c.TotalTime)
	putFloat(buf[off+12:], c.DeltaTime)
	off += 16
	putVec(buf[off:], c.AmbientLight[:])
	off += 16
	for i := range c.Lights {
		c.Lights[i].put(buf[off:])
		off += lightSize
	}
	return buf
}

// DecodeMat4 reads a column-major matrix written by the Bytes methods.
func DecodeMat4(b []byte) mgl32.Mat4 {
	var m mgl32.Mat4
	for i := range m {
		m[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return m
}

func putMat4(buf []byte, m mgl32.Mat4, rowMajor bool) {
	if rowMajor {
		m = m.Transpose()
	}
	putVec(buf, m[:])
}

func putVec(buf []byte, v []float32) {
	for i, f := range v {
		putFloat(buf[i*4:], f)
	}
}

func putFloat(buf []byte, f float32) {
	binary.LittleEndian.PutUint32(buf, math.Float32bits(f))
}
