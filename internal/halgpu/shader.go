package halgpu

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/naga"
)

// VertexStride is the vertex layout the scene shader expects: one
// float32x3 position.
const VertexStride = 12

// sceneShaderSource draws every layer. Group 0 is the pass record, group 1
// the object record and group 2 the material record, each a single uniform
// binding laid out like the framering constants.
const sceneShaderSource = `
struct Light {
    strength: vec3<f32>,
    falloff_start: f32,
    direction: vec3<f32>,
    falloff_end: f32,
    position: vec3<f32>,
    spot_power: f32,
}

struct PassConstants {
    view: mat4x4<f32>,
    inv_view: mat4x4<f32>,
    proj: mat4x4<f32>,
    inv_proj: mat4x4<f32>,
    view_proj: mat4x4<f32>,
    inv_view_proj: mat4x4<f32>,
    eye_pos: vec3<f32>,
    pad0: f32,
    render_target_size: vec2<f32>,
    inv_render_target_size: vec2<f32>,
    near_z: f32,
    far_z: f32,
    total_time: f32,
    delta_time: f32,
    ambient_light: vec4<f32>,
    lights: array<Light, 16>,
}

struct ObjectConstants {
    world: mat4x4<f32>,
    tex_transform: mat4x4<f32>,
}

struct MaterialConstants {
    diffuse_albedo: vec4<f32>,
    fresnel_r0: vec3<f32>,
    roughness: f32,
    mat_transform: mat4x4<f32>,
}

@group(0) @binding(0) var<uniform> pass_cb: PassConstants;
@group(1) @binding(0) var<uniform> object_cb: ObjectConstants;
@group(2) @binding(0) var<uniform> material_cb: MaterialConstants;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) world_pos: vec3<f32>,
}

@vertex
fn vs_main(@location(0) position: vec3<f32>) -> VertexOutput {
    var out: VertexOutput;
    let world = object_cb.world * vec4<f32>(position, 1.0);
    out.world_pos = world.xyz;
    out.position = pass_cb.view_proj * world;
    return out;
}

@fragment
fn fs_main(v: VertexOutput) -> @location(0) vec4<f32> {
    let key = pass_cb.lights[0].strength;
    let light = pass_cb.ambient_light.rgb + key * (1.0 - material_cb.roughness);
    let albedo = material_cb.diffuse_albedo;
    return vec4<f32>(albedo.rgb * light * albedo.a, albedo.a);
}
`

// CompileShader compiles WGSL source to SPIR-V words.
func CompileShader(wgsl string) ([]uint32, error) {
	spirv, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("halgpu: compile shader: %w", err)
	}
	if len(spirv)%4 != 0 {
		return nil, fmt.Errorf("halgpu: compile shader: SPIR-V length %d not a multiple of 4", len(spirv))
	}
	words := make([]uint32, len(spirv)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirv[i*4:])
	}
	return words, nil
}
