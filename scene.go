package framering

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// GeometryID is a handle into the scene's geometry arena.
type GeometryID int

// MaterialID is a handle into the scene's material list.
type MaterialID int

// NoMaterial marks a render item drawn without material constants.
const NoMaterial MaterialID = -1

// Layer buckets render items by the pipeline that draws them.
type Layer int

// Render layers, in draw order.
const (
	LayerOpaque Layer = iota
	LayerAlphaTested
	LayerTransparent
	layerCount
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerOpaque:
		return "opaque"
	case LayerAlphaTested:
		return "alpha_tested"
	case LayerTransparent:
		return "transparent"
	default:
		return fmt.Sprintf("Layer(%d)", int(l))
	}
}

// DrawArgs locates a submesh inside a geometry's index buffer.
type DrawArgs struct {
	IndexCount uint32
	StartIndex uint32
	BaseVertex int32
}

// Geometry is a mesh shared by any number of render items.
type Geometry struct {
	Name    string
	Mesh    Mesh
	Submesh map[string]DrawArgs
}

// RenderItem is one draw: an object, the geometry and material it uses by
// handle, and the submesh range.
type RenderItem struct {
	Object   *ObjectState
	Geometry GeometryID
	Material MaterialID
	Topology Topology
	Args     DrawArgs
	Layer    Layer
}

// ItemDesc describes a render item to add to a scene.
type ItemDesc struct {
	World        mgl32.Mat4
	TexTransform mgl32.Mat4 // zero value means identity
	Geometry     GeometryID
	Submesh      string
	Material     MaterialID
	Topology     Topology
	Layer        Layer
}

// Scene owns geometry, materials and render items for the lifetime of a
// driver. Render items refer to geometry and materials through handles, so
// geometry data is never duplicated per item.
type Scene struct {
	geometries []*Geometry
	materials  []*MaterialState
	items      []*RenderItem
	objects    []*ObjectState
	layers     [layerCount][]*RenderItem
	ringSize   int
}

// NewScene creates an empty scene. Objects added before a driver binds the
// scene start dirty in DefaultRingSize slots; binding re-derives the
// countdown from the driver's ring size.
func NewScene() *Scene {
	return &Scene{ringSize: DefaultRingSize}
}

// AddGeometry stores a mesh with its named submeshes.
func (s *Scene) AddGeometry(name string, mesh Mesh, submeshes map[string]DrawArgs) GeometryID {
	s.geometries = append(s.geometries, &Geometry{Name: name, Mesh: mesh, Submesh: submeshes})
	return GeometryID(len(s.geometries) - 1)
}

// Geometry returns the geometry behind id, or nil.
func (s *Scene) Geometry(id GeometryID) *Geometry {
	if id < 0 || int(id) >= len(s.geometries) {
		return nil
	}
	return s.geometries[id]
}

// AddMaterial adds a material; its constant buffer index is its position.
func (s *Scene) AddMaterial(name string, c MaterialConstants) MaterialID {
	m := NewMaterialState(name, len(s.materials), s.ringSize, c)
	s.materials = append(s.materials, m)
	return MaterialID(m.Index)
}

// Material returns the material behind id, or nil.
func (s *Scene) Material(id MaterialID) *MaterialState {
	if id < 0 || int(id) >= len(s.materials) {
		return nil
	}
	return s.materials[id]
}

// AddItem adds a render item. Its object owns the next per-object buffer
// element.
func (s *Scene) AddItem(desc ItemDesc) (*RenderItem, error) {
	geo := s.Geometry(desc.Geometry)
	if geo == nil {
		return nil, fmt.Errorf("framering: unknown geometry %d", desc.Geometry)
	}
	args, ok := geo.Submesh[desc.Submesh]
	if !ok {
		return nil, fmt.Errorf("framering: geometry %q has no submesh %q", geo.Name, desc.Submesh)
	}
	if desc.Material != NoMaterial && s.Material(desc.Material) == nil {
		return nil, fmt.Errorf("framering: unknown material %d", desc.Material)
	}
	if desc.Layer < 0 || desc.Layer >= layerCount {
		return nil, fmt.Errorf("framering: invalid layer %d", desc.Layer)
	}

	obj := NewObjectState(len(s.objects), s.ringSize, desc.World)
	if desc.TexTransform != (mgl32.Mat4{}) {
		obj.texTransform = desc.TexTransform
	}
	item := &RenderItem{
		Object:   obj,
		Geometry: desc.Geometry,
		Material: desc.Material,
		Topology: desc.Topology,
		Args:     args,
		Layer:    desc.Layer,
	}
	s.objects = append(s.objects, obj)
	s.items = append(s.items, item)
	s.layers[desc.Layer] = append(s.layers[desc.Layer], item)
	return item, nil
}

// Items returns every render item in insertion order.
func (s *Scene) Items() []*RenderItem { return s.items }

// Objects returns the per-object state of every item, in buffer order.
func (s *Scene) Objects() []*ObjectState { return s.objects }

// Materials returns every material, in buffer order.
func (s *Scene) Materials() []*MaterialState { return s.materials }

// Layer returns the items drawn by layer l.
func (s *Scene) Layer(l Layer) []*RenderItem {
	if l < 0 || l >= layerCount {
		return nil
	}
	return s.layers[l]
}

// bind ties every countdown to a ring of n slots and marks everything
// stale, so the first n frames fill every slot.
func (s *Scene) bind(n int) {
	s.ringSize = n
	for _, o := range s.objects {
		o.dirty.bind(n)
	}
	for _, m := range s.materials {
		m.dirty.bind(n)
	}
}

// validate checks every buffer index against the ring capacity.
func (s *Scene) validate(c Capacity) error {
	if len(s.objects) > c.Objects {
		return fmt.Errorf("%w: %d objects, capacity %d", ErrCapacityExceeded, len(s.objects), c.Objects)
	}
	if len(s.materials) > c.Materials {
		return fmt.Errorf("%w: %d materials, capacity %d", ErrCapacityExceeded, len(s.materials), c.Materials)
	}
	for _, o := range s.objects {
		if o.Index < 0 || o.Index >= c.Objects {
			return fmt.Errorf("%w: object %s index %d, capacity %d", ErrObjectIndexOutOfRange, o.ID, o.Index, c.Objects)
		}
	}
	return nil
}
