package reader

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/achilleasa/wavetrace/scene"
	"github.com/achilleasa/wavetrace/types"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

const testScene = `{
  "camera": {
    "resolution": [64, 32],
    "position": [0, 5, 10.5],
    "lookAt": [0, 5, 0],
    "fovy": 45,
    "depth": 5,
    "lensRadius": 0.1,
    "focalDistance": 9
  },
  "background": [0.1, 0.2, 0.3],
  "bvh": {"maxLeafItems": 2},
  "materials": [
    {"name": "light", "type": "DiffuseReflection", "emittance": 5},
    {"name": "wood", "type": "diffusereflection", "albedo": [0.8, 0.6, 0.4], "textures": {"albedo": "tex/wood.png", "Normal": "tex/wood.png"}},
    {"name": "glass", "type": "SpecularGlass", "ior": 1.5},
    {"name": "gold", "type": "MicrofacetReflection", "roughness": 0.3, "metallic": 0.5},
    {"name": "skin", "type": "SubsurfaceScattering", "ior": 1.3, "absorption": [0.5, 0.5, 0.5], "scatter": 2}
  ],
  "objects": [
    {"type": "cube", "material": "light", "translate": [0, 10, 0], "scale": [3, 0.3, 3]},
    {"type": "sphere", "material": "glass", "translate": [-1, 4, -1], "rotate": [0, 45, 0]},
    {"type": "Sphere", "material": "skin", "translate": [1, 4, -1]},
    {"type": "mesh", "material": "wood", "file": "meshes/quad.glb", "translate": [0, 0, -3], "scale": [10, 10, 1]}
  ]
}`

func TestReadJSONScene(t *testing.T) {
	dir := t.TempDir()
	sceneFile := writeTestAssets(t, dir, testScene)

	sc, err := ReadScene(sceneFile)
	if err != nil {
		t.Fatal(err)
	}

	camera := sc.Camera
	if camera.Resolution != [2]int{64, 32} || camera.PathDepth != 5 || camera.LensRadius != 0.1 || camera.FocalDistance != 9 {
		t.Fatalf("unexpected camera %+v", camera)
	}
	if !types.ApproxEqual(camera.Forward, types.XYZ(0, 0, -1), 1e-5) {
		t.Fatalf("expected camera to look down -z; got forward %v", camera.Forward)
	}
	if sc.Background != types.XYZ(0.1, 0.2, 0.3) {
		t.Fatalf("unexpected background %v", sc.Background)
	}
	if sc.BvhOptions.MaxLeafItems != 2 {
		t.Fatalf("expected bvh leaf size override; got %d", sc.BvhOptions.MaxLeafItems)
	}

	if len(sc.Materials) != 5 || len(sc.Geoms) != 3 || len(sc.Triangles) != 2 || len(sc.Textures) != 1 {
		t.Fatalf("unexpected scene contents: %d materials, %d geoms, %d triangles, %d textures", len(sc.Materials), len(sc.Geoms), len(sc.Triangles), len(sc.Textures))
	}
	if sc.Tree() == nil {
		t.Fatal("expected scene bvh to be built")
	}

	specs := []struct {
		name      string
		lobe      scene.Lobe
		emittance float32
		eta       float32
	}{
		{"light", scene.DiffuseReflection, 5, scene.EtaAir},
		{"wood", scene.DiffuseReflection, 0, scene.EtaAir},
		{"glass", scene.SpecularGlass, 0, 1.5},
		{"gold", scene.MicrofacetReflection, 0, scene.EtaAir},
		{"skin", scene.SubsurfaceScattering, 0, 1.3},
	}
	for index, s := range specs {
		id, ok := sc.MaterialByName(s.name)
		if !ok || id != int32(index) {
			t.Fatalf("[spec %d] expected material %q to have id %d; got %d (found %t)", index, s.name, index, id, ok)
		}
		mat := sc.Materials[id]
		if mat.Lobe != s.lobe || mat.Emittance != s.emittance || mat.Eta != s.eta {
			t.Fatalf("[spec %d] unexpected material %+v", index, mat)
		}
	}

	wood := sc.Materials[1]
	if !wood.HasTexture(scene.AlbedoChannel) || !wood.HasTexture(scene.NormalChannel) || wood.HasTexture(scene.RoughnessChannel) {
		t.Fatal("expected albedo and normal textures to be bound to the wood material")
	}
	if gold := sc.Materials[3]; gold.Roughness != 0.3 || gold.Metallic != 0.5 {
		t.Fatalf("unexpected microfacet parameters %+v", gold)
	}
	if skin := sc.Materials[4]; skin.Scatter != 2 || skin.Absorption != types.Splat3(0.5) {
		t.Fatalf("unexpected subsurface parameters %+v", skin)
	}

	// The mesh is scaled and moved behind the spheres
	isect, hit := sc.Intersect(types.Ray{Origin: types.XYZ(3, 1, 0), Dir: types.XYZ(0, 0, -1)})
	if !hit || isect.MaterialID != 1 {
		t.Fatalf("expected ray to hit the wood mesh; got %+v (hit %t)", isect, hit)
	}
	if sc.Geoms[0].Scale != types.XYZ(3, 0.3, 3) || sc.Geoms[2].Scale != types.Splat3(1) {
		t.Fatal("unexpected geom scale")
	}
}

func TestReadSceneErrors(t *testing.T) {
	specs := []struct {
		scene  string
		expErr error
	}{
		{`{"materials": []}`, ErrMissingCamera},
		{`{"camera": {}, "materials": [{"name": "m", "type": "Velvet"}]}`, ErrUnknownLobe},
		{`{"camera": {}, "materials": [{"name": "m", "type": "DiffuseReflection", "textures": {"bump": "x.png"}}]}`, ErrUnknownChannel},
		{`{"camera": {}, "materials": [{"name": "m", "type": "DiffuseReflection"}], "objects": [{"type": "torus", "material": "m"}]}`, ErrUnknownObject},
		{`{"camera": {}, "objects": [{"type": "sphere", "material": "missing"}]}`, scene.ErrInvalidMaterialID},
		{`{"camera": {}, "materials": [{"name": "m", "type": "DiffuseReflection"}, {"name": "m", "type": "DiffuseReflection"}]}`, nil},
		{`{"camera": {}, "unknown": true}`, nil},
		{`{"camera": {}, "materials": [{"name": "m", "type": "DiffuseReflection"}], "objects": [{"type": "mesh", "material": "m", "file": "missing.glb"}]}`, os.ErrNotExist},
	}

	for index, s := range specs {
		sceneFile := filepath.Join(t.TempDir(), "scene.json")
		if err := os.WriteFile(sceneFile, []byte(s.scene), 0o644); err != nil {
			t.Fatal(err)
		}

		_, err := ReadScene(sceneFile)
		if err == nil {
			t.Fatalf("[spec %d] expected an error", index)
		}
		if s.expErr != nil && !errors.Is(err, s.expErr) {
			t.Fatalf("[spec %d] expected error %v; got %v", index, s.expErr, err)
		}
	}
}

func TestCameraDefaults(t *testing.T) {
	sceneFile := filepath.Join(t.TempDir(), "scene.json")
	if err := os.WriteFile(sceneFile, []byte(`{"camera": {"lookAt": [0, 0, -1]}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	sc, err := ReadScene(sceneFile)
	if err != nil {
		t.Fatal(err)
	}
	if sc.Camera.Resolution != defaultResolution || sc.Camera.FovY != defaultFovY || sc.Camera.PathDepth != 8 {
		t.Fatalf("expected camera defaults; got %+v", sc.Camera)
	}
}

func TestUnsupportedSceneFormat(t *testing.T) {
	sceneFile := filepath.Join(t.TempDir(), "scene.obj")
	if err := os.WriteFile(sceneFile, []byte("v 0 0 0"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadScene(sceneFile); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

// Write the scene file and the assets it references.
func writeTestAssets(t *testing.T, dir, sceneJSON string) string {
	t.Helper()

	sceneFile := filepath.Join(dir, "scene.json")
	if err := os.WriteFile(sceneFile, []byte(sceneJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < 16; i++ {
		img.SetNRGBA(i%4, i/4, color.NRGBA{uint8(i * 16), 128, 64, 255})
	}
	var texBuf bytes.Buffer
	if err := png.Encode(&texBuf, img); err != nil {
		t.Fatal(err)
	}
	writeTestFile(t, filepath.Join(dir, "tex", "wood.png"), texBuf.Bytes())

	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{-0.5, -0.5, 0}, {0.5, -0.5, 0}, {0.5, 0.5, 0}, {-0.5, 0.5, 0}})
	indices := modeler.WriteIndices(doc, []uint16{0, 1, 2, 0, 2, 3})
	doc.Meshes = []*gltf.Mesh{{
		Name: "quad",
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(indices),
			Attributes: map[string]int{gltf.POSITION: pos},
		}},
	}}

	var meshBuf bytes.Buffer
	enc := gltf.NewEncoder(&meshBuf)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		t.Fatal(err)
	}
	writeTestFile(t, filepath.Join(dir, "meshes", "quad.glb"), meshBuf.Bytes())

	return sceneFile
}

func writeTestFile(t *testing.T, file string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(file, data, 0o644); err != nil {
		t.Fatal(err)
	}
}
