package scene

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/achilleasa/wavetrace/log"
	"github.com/achilleasa/wavetrace/scene/bvh"
	"github.com/achilleasa/wavetrace/types"
	"github.com/olekukonko/tablewriter"
)

var (
	ErrInvalidMaterialID = errors.New("scene: invalid material id")
	ErrDuplicateMaterial = errors.New("scene: material already added")
	ErrInvalidIndex      = errors.New("scene: mesh index out of range")
	ErrNoCamera          = errors.New("scene: no camera defined")
)

type PrimitiveKind uint8

const (
	GeomPrimitive PrimitiveKind = iota
	TrianglePrimitive
)

// A traceable primitive: either an analytic geom or a mesh triangle.
type Primitive struct {
	Kind  PrimitiveKind
	Index int32

	bounds bvh.AABB
	center types.Vec3
}

func (p Primitive) BBox() bvh.AABB {
	return p.bounds
}

func (p Primitive) Center() types.Vec3 {
	return p.center
}

// The scene store. Geometry, materials and textures are added while loading;
// Build freezes the store and constructs the BVH. After Build the scene is
// read-only and safe for concurrent queries.
type Scene struct {
	logger log.Logger

	Camera *Camera

	// Radiance returned for rays that escape the scene.
	Background types.Vec3

	Materials []*Material
	Textures  []*ImageTexture
	Geoms     []Geom

	// Mesh buffers shared by all triangles.
	Vertices  []types.Vec3
	Normals   []types.Vec3
	UVs       []types.Vec2
	Triangles []TriangleIdx

	// Options used when building the BVH.
	BvhOptions bvh.Options

	prims     []Primitive
	tree      *bvh.Tree
	intersect bvh.IntersectFunc
	buildTime time.Duration
}

func NewScene() *Scene {
	return &Scene{
		logger:     log.New("scene"),
		Materials:  make([]*Material, 0),
		Geoms:      make([]Geom, 0),
		BvhOptions: bvh.DefaultOptions(),
	}
}

// Attach a camera to the scene.
func (s *Scene) SetCamera(camera *Camera) {
	s.Camera = camera
}

// Add a material to the scene and return its id. Named materials must
// have unique names.
func (s *Scene) AddMaterial(material *Material) (int32, error) {
	for _, mat := range s.Materials {
		if mat == material || (material.Name != "" && mat.Name == material.Name) {
			return -1, ErrDuplicateMaterial
		}
	}
	s.Materials = append(s.Materials, material)
	return int32(len(s.Materials) - 1), nil
}

// Lookup a material id by name.
func (s *Scene) MaterialByName(name string) (int32, bool) {
	for idx, mat := range s.Materials {
		if mat.Name == name {
			return int32(idx), true
		}
	}
	return -1, false
}

// Get a material by id.
func (s *Scene) Material(id int32) (*Material, error) {
	if id < 0 || int(id) >= len(s.Materials) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMaterialID, id)
	}
	return s.Materials[id], nil
}

// Add a texture to the scene. Textures are referenced by the materials
// they are bound to; the scene keeps track of them for statistics.
func (s *Scene) AddTexture(tex *ImageTexture) {
	s.Textures = append(s.Textures, tex)
}

// Add an analytic geom to the scene. The geom material must be added first.
func (s *Scene) AddGeom(geom Geom) error {
	if _, err := s.Material(geom.MaterialID); err != nil {
		return fmt.Errorf("scene: geom references unknown material; ensure that the material is added to the scene before adding the geom: %w", err)
	}
	s.Geoms = append(s.Geoms, geom)
	return nil
}

// Append a triangle mesh. Triangle indices are relative to the supplied
// buffers and get offset into the scene buffers. The normal and uv buffers
// may be empty in which case triangles must use -1 indices.
func (s *Scene) AddMesh(vertices, normals []types.Vec3, uvs []types.Vec2, triangles []TriangleIdx) error {
	vOffset := int32(len(s.Vertices))
	nOffset := int32(len(s.Normals))
	uvOffset := int32(len(s.UVs))

	for triIdx, tri := range triangles {
		if _, err := s.Material(tri.Material); err != nil {
			return fmt.Errorf("scene: triangle %d: %w", triIdx, err)
		}
		for i := 0; i < 3; i++ {
			if tri.V[i] < 0 || int(tri.V[i]) >= len(vertices) {
				return fmt.Errorf("%w: triangle %d references vertex %d", ErrInvalidIndex, triIdx, tri.V[i])
			}
			if tri.N[i] >= int32(len(normals)) {
				return fmt.Errorf("%w: triangle %d references normal %d", ErrInvalidIndex, triIdx, tri.N[i])
			}
			if tri.UV[i] >= int32(len(uvs)) {
				return fmt.Errorf("%w: triangle %d references uv %d", ErrInvalidIndex, triIdx, tri.UV[i])
			}
		}
	}

	s.Vertices = append(s.Vertices, vertices...)
	s.Normals = append(s.Normals, normals...)
	s.UVs = append(s.UVs, uvs...)
	for _, tri := range triangles {
		for i := 0; i < 3; i++ {
			tri.V[i] += vOffset
			if tri.N[i] >= 0 {
				tri.N[i] += nOffset
			}
			if tri.UV[i] >= 0 {
				tri.UV[i] += uvOffset
			}
		}
		s.Triangles = append(s.Triangles, tri)
	}
	return nil
}

// Build the primitive list and the BVH. Build must be called after all
// geometry has been added and before the scene is queried.
func (s *Scene) Build() error {
	s.prims = make([]Primitive, 0, len(s.Geoms)+len(s.Triangles))
	for idx := range s.Geoms {
		g := &s.Geoms[idx]
		s.prims = append(s.prims, Primitive{
			Kind:   GeomPrimitive,
			Index:  int32(idx),
			bounds: g.BBox(),
			center: g.Center(),
		})
	}
	for idx := range s.Triangles {
		tri := &s.Triangles[idx]
		bounds := bvh.EmptyAABB()
		for _, v := range tri.V {
			bounds.MergePoint(s.Vertices[v])
		}
		s.prims = append(s.prims, Primitive{
			Kind:   TrianglePrimitive,
			Index:  int32(idx),
			bounds: bounds,
			center: bounds.Center(),
		})
	}

	workList := make([]bvh.BoundedVolume, len(s.prims))
	for idx := range s.prims {
		workList[idx] = s.prims[idx]
	}

	start := time.Now()
	s.tree = bvh.Build(workList, s.BvhOptions)
	s.buildTime = time.Since(start)
	s.intersect = s.intersectPrimitive

	s.logger.Debugf("built scene BVH for %d primitives in %d ms", len(s.prims), s.buildTime.Nanoseconds()/1e6)
	return nil
}

// Get the scene BVH.
func (s *Scene) Tree() *bvh.Tree {
	return s.tree
}

// Get the built primitive list.
func (s *Scene) Primitives() []Primitive {
	return s.prims
}

// Get the world space scene bounds.
func (s *Scene) Bounds() bvh.AABB {
	return s.tree.Bounds()
}

// Find the closest intersection along ray.
func (s *Scene) Intersect(ray types.Ray) (Intersection, bool) {
	var isect Intersection
	isect.Reset()
	if s.tree.Empty() {
		return isect, false
	}

	prim, t, hit := s.tree.Nearest(ray, math.MaxFloat32, s.intersect)
	if !hit {
		return isect, false
	}

	p := &s.prims[prim]
	isect.ShapeID = int32(prim)
	isect.T = t
	switch p.Kind {
	case GeomPrimitive:
		g := &s.Geoms[p.Index]
		isect.MaterialID = g.MaterialID
		_, isect.UV, _ = g.Intersect(ray, math.MaxFloat32)
	case TrianglePrimitive:
		tri := &s.Triangles[p.Index]
		isect.MaterialID = tri.Material
		_, isect.UV, _ = intersectTriangle(s.Vertices[tri.V[0]], s.Vertices[tri.V[1]], s.Vertices[tri.V[2]], ray, math.MaxFloat32)
	}
	return isect, true
}

// Returns true if any primitive is intersected along ray within (0, tMax).
func (s *Scene) Occluded(ray types.Ray, tMax float32) bool {
	if s.tree.Empty() {
		return false
	}
	return s.tree.Any(ray, tMax, s.intersect)
}

// Resolve a hit into world-space shading data.
func (s *Scene) Resolve(ray types.Ray, isect Intersection) ShadeableIntersection {
	var si ShadeableIntersection
	si.Reset()
	if !isect.Hit() || int(isect.ShapeID) >= len(s.prims) {
		return si
	}

	p := &s.prims[isect.ShapeID]
	si.T = isect.T
	si.MaterialID = isect.MaterialID
	switch p.Kind {
	case GeomPrimitive:
		g := &s.Geoms[p.Index]
		si.Position, si.Normal = g.Surface(ray, isect.T)
		si.UV = isect.UV
	case TrianglePrimitive:
		tri := &s.Triangles[p.Index]
		b1, b2 := isect.UV[0], isect.UV[1]
		b0 := 1 - b1 - b2
		v0, v1, v2 := s.Vertices[tri.V[0]], s.Vertices[tri.V[1]], s.Vertices[tri.V[2]]

		si.Position = ray.At(isect.T)
		if tri.hasNormals() {
			si.Normal = s.Normals[tri.N[0]].Mul(b0).Add(s.Normals[tri.N[1]].Mul(b1)).Add(s.Normals[tri.N[2]].Mul(b2)).Normalize()
		}
		if si.Normal.IsZero() {
			si.Normal = v1.Sub(v0).Cross(v2.Sub(v0)).Normalize()
		}
		if tri.hasUVs() {
			uv0, uv1, uv2 := s.UVs[tri.UV[0]], s.UVs[tri.UV[1]], s.UVs[tri.UV[2]]
			si.UV = uv0.Mul(b0).Add(uv1.Mul(b1)).Add(uv2.Mul(b2))
		} else {
			si.UV = isect.UV
		}
	}
	return si
}

func (s *Scene) intersectPrimitive(prim uint32, ray types.Ray, tMax float32) (float32, bool) {
	p := &s.prims[prim]
	switch p.Kind {
	case GeomPrimitive:
		t, _, hit := s.Geoms[p.Index].Intersect(ray, tMax)
		return t, hit
	case TrianglePrimitive:
		tri := &s.Triangles[p.Index]
		t, _, hit := intersectTriangle(s.Vertices[tri.V[0]], s.Vertices[tri.V[1]], s.Vertices[tri.V[2]], ray, tMax)
		return t, hit
	}
	return 0, false
}

// Check that every material reference is valid.
func (s *Scene) Validate() error {
	if s.Camera == nil {
		return ErrNoCamera
	}
	for idx := range s.Geoms {
		if _, err := s.Material(s.Geoms[idx].MaterialID); err != nil {
			return fmt.Errorf("scene: geom %d: %w", idx, err)
		}
	}
	for idx := range s.Triangles {
		if _, err := s.Material(s.Triangles[idx].Material); err != nil {
			return fmt.Errorf("scene: triangle %d: %w", idx, err)
		}
	}
	for idx, mat := range s.Materials {
		if mat.Lobe == NoLobe {
			return fmt.Errorf("scene: material %d (%q) has no lobe", idx, mat.Name)
		}
	}
	if s.tree != nil {
		workList := make([]bvh.BoundedVolume, len(s.prims))
		for idx := range s.prims {
			workList[idx] = s.prims[idx]
		}
		if err := s.tree.Validate(workList); err != nil {
			return fmt.Errorf("scene: %w", err)
		}
	}
	return nil
}

// Generate a table with scene statistics.
func (s *Scene) Stats() string {
	var texels []types.Vec4
	texelCount := 0
	for _, tex := range s.Textures {
		texelCount += len(tex.Texels)
	}
	if texelCount > 0 {
		texels = make([]types.Vec4, 0, texelCount)
		for _, tex := range s.Textures {
			texels = append(texels, tex.Texels...)
		}
	}

	var nodes []bvh.Node
	if s.tree != nil {
		nodes = s.tree.Nodes
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Asset Type", "Asset", "Info", "Size"})
	table.Append([]string{"Geometry", "---", " ", fmtSize(s.Geoms, s.Vertices, s.Normals, s.UVs, s.Triangles, nodes)})
	table.Append([]string{"", "Geoms", fmt.Sprint(len(s.Geoms)), fmtSize(s.Geoms)})
	table.Append([]string{"", "Vertices", fmt.Sprint(len(s.Vertices)), fmtSize(s.Vertices)})
	table.Append([]string{"", "Normals", fmt.Sprint(len(s.Normals)), fmtSize(s.Normals)})
	table.Append([]string{"", "UVs", fmt.Sprint(len(s.UVs)), fmtSize(s.UVs)})
	table.Append([]string{"", "Triangles", fmt.Sprint(len(s.Triangles)), fmtSize(s.Triangles)})
	table.Append([]string{"", "BVH", fmt.Sprint(len(nodes)), fmtSize(nodes)})
	table.Append([]string{" ", " ", " ", " "})
	table.Append([]string{"Materials", "---", fmt.Sprint(len(s.Materials)), " "})
	for _, mat := range s.Materials {
		table.Append([]string{"", mat.Name, mat.Lobe.String(), " "})
	}
	table.Append([]string{" ", " ", " ", " "})
	table.Append([]string{"Textures", "---", fmt.Sprint(len(s.Textures)), fmtSize(texels)})
	table.SetFooter([]string{"Total", " ", " ", strings.TrimLeft(fmtSize(s.Geoms, s.Vertices, s.Normals, s.UVs, s.Triangles, nodes, texels), " ")})

	table.Render()
	return buf.String()
}

// Format the size of a set of slices in human readable form.
func fmtSize(items ...interface{}) string {
	var totalBytes float32 = 0.0
	for _, item := range items {
		t := reflect.TypeOf(item)
		v := reflect.ValueOf(item)
		if v.Len() == 0 {
			continue
		}

		totalBytes += float32(int(t.Elem().Size()) * v.Len())
	}

	if totalBytes < 1e3 {
		return fmt.Sprintf("%3d bytes", int(totalBytes))
	} else if totalBytes < 1e6 {
		return fmt.Sprintf("%3.1f kb", totalBytes/1e3)
	}
	return fmt.Sprintf("%5.1f mb", totalBytes/1e6)
}
