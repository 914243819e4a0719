package mesh

import (
	"errors"
	"fmt"

	"github.com/achilleasa/wavetrace/asset"
	"github.com/achilleasa/wavetrace/log"
	"github.com/achilleasa/wavetrace/scene"
	"github.com/achilleasa/wavetrace/types"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

var (
	ErrNoTriangles      = errors.New("mesh: no triangle primitives found")
	ErrAttributeMissing = errors.New("mesh: primitive has no position attribute")
)

var logger = log.New("mesh loader")

// An indexed triangle mesh. The normal and uv buffers are either empty or
// hold one entry per vertex.
type Mesh struct {
	Name string

	Vertices []types.Vec3
	Normals  []types.Vec3
	UVs      []types.Vec2

	// Vertex index triples.
	Indices [][3]int32
}

// Load the triangle primitives of all meshes in a glTF or GLB resource.
// External buffers are resolved relative to local resources.
func Load(res *asset.Resource) (*Mesh, error) {
	var doc gltf.Document
	var dec *gltf.Decoder
	if fsys := res.DirFS(); fsys != nil {
		dec = gltf.NewDecoderFS(res, fsys)
	} else {
		dec = gltf.NewDecoder(res)
	}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("mesh: could not decode %s: %w", res.Path(), err)
	}

	m, err := FromDocument(res.Name(), &doc)
	if err != nil {
		return nil, fmt.Errorf("mesh: %s: %w", res.Path(), err)
	}
	logger.Debugf("loaded mesh %s with %d vertices and %d triangles", res.Path(), len(m.Vertices), len(m.Indices))
	return m, nil
}

// Convert the triangle primitives of a glTF document into a mesh. When
// only some primitives define normals or uvs the missing attributes are
// dropped for the whole mesh.
func FromDocument(name string, doc *gltf.Document) (*Mesh, error) {
	type primData struct {
		positions [][3]float32
		normals   [][3]float32
		uvs       [][2]float32
		indices   []uint32
	}

	var prims []primData
	allNormals, allUVs := true, true
	for _, gm := range doc.Meshes {
		for _, prim := range gm.Primitives {
			if prim.Mode != gltf.PrimitiveTriangles && prim.Mode != 0 {
				continue
			}

			posIdx, ok := prim.Attributes[gltf.POSITION]
			if !ok {
				return nil, fmt.Errorf("%w (mesh %q)", ErrAttributeMissing, gm.Name)
			}

			var pd primData
			var err error
			if pd.positions, err = modeler.ReadPosition(doc, doc.Accessors[posIdx], nil); err != nil {
				return nil, fmt.Errorf("read positions: %w", err)
			}
			if normIdx, ok := prim.Attributes[gltf.NORMAL]; ok {
				if pd.normals, err = modeler.ReadNormal(doc, doc.Accessors[normIdx], nil); err != nil {
					return nil, fmt.Errorf("read normals: %w", err)
				}
			}
			if uvIdx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
				if pd.uvs, err = modeler.ReadTextureCoord(doc, doc.Accessors[uvIdx], nil); err != nil {
					return nil, fmt.Errorf("read uvs: %w", err)
				}
			}
			if prim.Indices != nil {
				if pd.indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil); err != nil {
					return nil, fmt.Errorf("read indices: %w", err)
				}
			} else {
				// Non-indexed primitives store sequential triangles
				pd.indices = make([]uint32, len(pd.positions))
				for i := range pd.indices {
					pd.indices[i] = uint32(i)
				}
			}

			allNormals = allNormals && len(pd.normals) == len(pd.positions)
			allUVs = allUVs && len(pd.uvs) == len(pd.positions)
			prims = append(prims, pd)
		}
	}

	m := &Mesh{Name: name}
	for _, pd := range prims {
		base := int32(len(m.Vertices))
		for i, p := range pd.positions {
			m.Vertices = append(m.Vertices, types.XYZ(p[0], p[1], p[2]))
			if allNormals {
				n := pd.normals[i]
				m.Normals = append(m.Normals, types.XYZ(n[0], n[1], n[2]))
			}
			if allUVs {
				// glTF places the uv origin at the top-left corner
				m.UVs = append(m.UVs, types.XY(pd.uvs[i][0], 1-pd.uvs[i][1]))
			}
		}

		for i := 0; i+2 < len(pd.indices); i += 3 {
			tri := [3]int32{base + int32(pd.indices[i]), base + int32(pd.indices[i+1]), base + int32(pd.indices[i+2])}
			for _, v := range tri {
				if int(v) >= len(m.Vertices) {
					return nil, fmt.Errorf("%w: index %d out of range", scene.ErrInvalidIndex, v)
				}
			}
			m.Indices = append(m.Indices, tri)
		}
	}

	if len(m.Indices) == 0 {
		return nil, ErrNoTriangles
	}
	return m, nil
}

// Apply a transformation to the mesh vertices and normals.
func (m *Mesh) Transform(transform types.Mat4) {
	normalMat := transform.Inv().Transpose()
	for i, v := range m.Vertices {
		m.Vertices[i] = transform.TransformPoint(v)
	}
	for i, n := range m.Normals {
		m.Normals[i] = normalMat.TransformDir(n).Normalize()
	}
}

// Get the mesh bounding box corners.
func (m *Mesh) Bounds() (minV, maxV types.Vec3) {
	if len(m.Vertices) == 0 {
		return
	}
	minV, maxV = m.Vertices[0], m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		minV = types.MinVec3(minV, v)
		maxV = types.MaxVec3(maxV, v)
	}
	return minV, maxV
}

// Append the mesh triangles to a scene using the given material.
func (m *Mesh) AddTo(sc *scene.Scene, materialID int32) error {
	triangles := make([]scene.TriangleIdx, len(m.Indices))
	for i, idx := range m.Indices {
		tri := scene.TriangleIdx{
			V:        idx,
			N:        [3]int32{-1, -1, -1},
			UV:       [3]int32{-1, -1, -1},
			Material: materialID,
		}
		if len(m.Normals) != 0 {
			tri.N = idx
		}
		if len(m.UVs) != 0 {
			tri.UV = idx
		}
		triangles[i] = tri
	}
	return sc.AddMesh(m.Vertices, m.Normals, m.UVs, triangles)
}
