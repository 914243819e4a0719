package scene

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/achilleasa/wavetrace/types"
)

const testEpsilon = 1e-4

func TestGeomSphereIntersection(t *testing.T) {
	g := NewGeom(SphereGeom, 0, types.XYZ(0, 0, -5), types.Vec3{}, types.Splat3(2))

	ray := types.Ray{Origin: types.Vec3{}, Dir: types.XYZ(0, 0, -1)}
	tHit, _, hit := g.Intersect(ray, math.MaxFloat32)
	if !hit {
		t.Fatal("expected ray to hit sphere")
	}
	if math.Abs(float64(tHit-4)) > testEpsilon {
		t.Fatalf("expected hit at t=4; got %f", tHit)
	}

	pos, normal := g.Surface(ray, tHit)
	if !types.ApproxEqual(pos, types.XYZ(0, 0, -4), testEpsilon) {
		t.Fatalf("expected hit position (0, 0, -4); got %v", pos)
	}
	if !types.ApproxEqual(normal, types.XYZ(0, 0, 1), testEpsilon) {
		t.Fatalf("expected normal (0, 0, 1); got %v", normal)
	}

	if _, _, hit := g.Intersect(ray, 3); hit {
		t.Fatal("expected hit beyond tMax to be ignored")
	}

	miss := types.Ray{Origin: types.XYZ(0, 2, 0), Dir: types.XYZ(0, 0, -1)}
	if _, _, hit := g.Intersect(miss, math.MaxFloat32); hit {
		t.Fatal("expected ray to miss sphere")
	}
}

func TestGeomCubeIntersection(t *testing.T) {
	g := NewGeom(CubeGeom, 0, types.XYZ(0, 0, -5), types.Vec3{}, types.XYZ(2, 1, 1))

	specs := []struct {
		descr     string
		ray       types.Ray
		expT      float32
		expNormal types.Vec3
	}{
		{
			"from outside",
			types.Ray{Origin: types.Vec3{}, Dir: types.XYZ(0, 0, -1)},
			4.5,
			types.XYZ(0, 0, 1),
		},
		{
			"from inside",
			types.Ray{Origin: types.XYZ(0, 0, -5), Dir: types.XYZ(1, 0, 0)},
			1,
			types.XYZ(1, 0, 0),
		},
		{
			"scaled axis",
			types.Ray{Origin: types.XYZ(-10, 0, -5), Dir: types.XYZ(1, 0, 0)},
			9,
			types.XYZ(-1, 0, 0),
		},
	}

	for _, spec := range specs {
		tHit, _, hit := g.Intersect(spec.ray, math.MaxFloat32)
		if !hit {
			t.Fatalf("[%s] expected ray to hit cube", spec.descr)
		}
		if math.Abs(float64(tHit-spec.expT)) > testEpsilon {
			t.Fatalf("[%s] expected t=%f; got %f", spec.descr, spec.expT, tHit)
		}
		if _, normal := g.Surface(spec.ray, tHit); !types.ApproxEqual(normal, spec.expNormal, testEpsilon) {
			t.Fatalf("[%s] expected normal %v; got %v", spec.descr, spec.expNormal, normal)
		}
	}
}

func TestGeomBBoxContainsShape(t *testing.T) {
	g := NewGeom(SphereGeom, 0, types.XYZ(1, 2, 3), types.XYZ(0, 0, 45), types.XYZ(4, 1, 1))
	box := g.BBox()

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		dir := types.XYZ(rng.Float32()*2-1, rng.Float32()*2-1, rng.Float32()*2-1).Normalize()
		if dir.IsZero() {
			continue
		}

		// Shoot rays outwards from the center; the exit point lies on the surface
		ray := types.Ray{Origin: g.Center(), Dir: dir}
		tHit, _, hit := g.Intersect(ray, math.MaxFloat32)
		if !hit {
			t.Fatalf("expected ray from sphere center to hit the surface")
		}
		p := ray.At(tHit)
		for axis := 0; axis < 3; axis++ {
			if p[axis] < box.Min[axis]-testEpsilon || p[axis] > box.Max[axis]+testEpsilon {
				t.Fatalf("surface point %v lies outside bbox %v", p, box)
			}
		}
	}
}

func TestTriangleIntersection(t *testing.T) {
	v0, v1, v2 := types.XYZ(-1, -1, -2), types.XYZ(1, -1, -2), types.XYZ(0, 1, -2)

	ray := types.Ray{Origin: types.Vec3{}, Dir: types.XYZ(0, 0, -1)}
	tHit, bary, hit := intersectTriangle(v0, v1, v2, ray, math.MaxFloat32)
	if !hit {
		t.Fatal("expected ray to hit triangle")
	}
	if math.Abs(float64(tHit-2)) > testEpsilon {
		t.Fatalf("expected t=2; got %f", tHit)
	}

	// Reconstruct the hit point from barycentrics
	p := v0.Mul(1 - bary[0] - bary[1]).Add(v1.Mul(bary[0])).Add(v2.Mul(bary[1]))
	if !types.ApproxEqual(p, ray.At(tHit), testEpsilon) {
		t.Fatalf("barycentric point %v does not match hit point %v", p, ray.At(tHit))
	}

	miss := types.Ray{Origin: types.XYZ(2, 0, 0), Dir: types.XYZ(0, 0, -1)}
	if _, _, hit := intersectTriangle(v0, v1, v2, miss, math.MaxFloat32); hit {
		t.Fatal("expected ray to miss triangle")
	}

	parallel := types.Ray{Origin: types.XYZ(0, 0, -2), Dir: types.XYZ(1, 0, 0)}
	if _, _, hit := intersectTriangle(v0, v1, v2, parallel, math.MaxFloat32); hit {
		t.Fatal("expected parallel ray to miss triangle")
	}
}

func TestCameraBasisAndRays(t *testing.T) {
	cam := NewCamera(100, 100, 90)
	cam.Position = types.XYZ(0, 0, 5)
	cam.Ref = types.Vec3{}
	cam.Recompute()

	if !types.ApproxEqual(cam.Forward, types.XYZ(0, 0, -1), testEpsilon) {
		t.Fatalf("expected forward (0, 0, -1); got %v", cam.Forward)
	}
	if !types.ApproxEqual(cam.Right, types.XYZ(1, 0, 0), testEpsilon) {
		t.Fatalf("expected right (1, 0, 0); got %v", cam.Right)
	}
	if !types.ApproxEqual(cam.Up, types.XYZ(0, 1, 0), testEpsilon) {
		t.Fatalf("expected up (0, 1, 0); got %v", cam.Up)
	}

	center := cam.GenerateRay(50, 50, types.Vec2{}, types.Vec2{})
	if !types.ApproxEqual(center.Dir, cam.Forward, testEpsilon) {
		t.Fatalf("expected center ray along forward; got %v", center.Dir)
	}

	topLeft := cam.GenerateRay(0, 0, types.Vec2{}, types.Vec2{})
	if exp := types.XYZ(-1, 1, -1).Normalize(); !types.ApproxEqual(topLeft.Dir, exp, testEpsilon) {
		t.Fatalf("expected top-left ray %v; got %v", exp, topLeft.Dir)
	}

	if exp := 42*100 + 7; cam.PixelIndex(7, 42) != exp {
		t.Fatalf("expected pixel index %d; got %d", exp, cam.PixelIndex(7, 42))
	}
}

func TestCameraLookingStraightDown(t *testing.T) {
	cam := NewCamera(10, 10, 45)
	cam.Position = types.XYZ(0, 10, 0)
	cam.Ref = types.Vec3{}
	cam.Recompute()

	if !cam.Forward.IsFinite() || !cam.Right.IsFinite() || !cam.Up.IsFinite() {
		t.Fatal("expected finite basis")
	}
	if cam.Right.IsZero() || cam.Up.IsZero() {
		t.Fatal("expected non-degenerate basis")
	}
}

func TestCameraDepthOfFieldFocus(t *testing.T) {
	cam := NewCamera(64, 64, 45)
	cam.LensRadius = 0.5
	cam.FocalDistance = 3
	cam.Recompute()

	center := cam.GenerateRay(20, 30, types.XY(0.5, 0.5), types.XY(0.5, 0.5))
	if !types.ApproxEqual(center.Origin, cam.Position, testEpsilon) {
		t.Fatalf("expected the lens center sample to start at the camera position; got %v", center.Origin)
	}

	pinholeCam := *cam
	pinholeCam.LensRadius = 0
	pinhole := pinholeCam.GenerateRay(20, 30, types.XY(0.5, 0.5), types.Vec2{})
	if !types.ApproxEqual(pinhole.Dir, center.Dir, testEpsilon) {
		t.Fatalf("expected the lens center ray %v to match the pinhole ray %v", center.Dir, pinhole.Dir)
	}

	// The focus point of an off-axis pixel lies on the focal plane
	focus := cam.Position.Add(pinhole.Dir.Mul(cam.FocalDistance / pinhole.Dir.Dot(cam.Forward)))
	if d := focus.Sub(cam.Position).Dot(cam.Forward); math.Abs(float64(d-cam.FocalDistance)) > testEpsilon {
		t.Fatalf("expected focus point at distance %f along the view axis; got %f", cam.FocalDistance, d)
	}

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 32; i++ {
		ray := cam.GenerateRay(20, 30, types.XY(0.5, 0.5), types.XY(rng.Float32(), rng.Float32()))

		// Every lens ray passes through the focus point
		toFocus := focus.Sub(ray.Origin)
		dist := toFocus.Len()
		if !types.ApproxEqual(ray.At(dist), focus, 1e-3) {
			t.Fatalf("expected lens ray to pass through focus point %v; got %v", focus, ray.At(dist))
		}
		if offset := ray.Origin.Sub(cam.Position).Len(); offset > cam.LensRadius+testEpsilon {
			t.Fatalf("expected lens sample within radius %f; got %f", cam.LensRadius, offset)
		}
	}
}

func TestCameraOrbit(t *testing.T) {
	cam := NewCamera(10, 10, 45)
	cam.Position = types.XYZ(0, 0, 5)
	cam.Ref = types.Vec3{}
	cam.Recompute()

	cam.Orbit(90, 0)
	if !types.ApproxEqual(cam.Position, types.XYZ(5, 0, 0), testEpsilon) {
		t.Fatalf("expected yaw orbit to move camera to (5, 0, 0); got %v", cam.Position)
	}
	if !types.ApproxEqual(cam.Forward, types.XYZ(-1, 0, 0), testEpsilon) {
		t.Fatalf("expected camera to keep looking at the reference point; got %v", cam.Forward)
	}

	cam.Orbit(0, 30)
	if cam.Position[1] <= 0 {
		t.Fatalf("expected positive pitch to raise the camera; got %v", cam.Position)
	}
	if d := cam.Position.Sub(cam.Ref).Len(); math.Abs(float64(d-5)) > testEpsilon {
		t.Fatalf("expected orbit to preserve distance 5; got %f", d)
	}
}

func TestLobeNames(t *testing.T) {
	for _, lobe := range []Lobe{DiffuseReflection, SpecularReflection, SpecularGlass, MicrofacetReflection, MicrofacetMix, SubsurfaceScattering} {
		if got := LobeFromName(lobe.String()); got != lobe {
			t.Fatalf("expected %q to parse as %d; got %d", lobe.String(), lobe, got)
		}
	}
	if got := LobeFromName("specularglass"); got != SpecularGlass {
		t.Fatalf("expected case-insensitive match; got %s", got)
	}
	if got := LobeFromName("Velvet"); got != NoLobe {
		t.Fatalf("expected unknown lobe name to map to NoLobe; got %s", got)
	}

	specs := []struct {
		lobe       Lobe
		specular   bool
		microfacet bool
	}{
		{DiffuseReflection, false, false},
		{SpecularReflection, true, false},
		{SpecularGlass, true, false},
		{MicrofacetReflection, false, true},
		{MicrofacetMix, false, true},
		{SubsurfaceScattering, false, false},
	}
	for _, spec := range specs {
		if spec.lobe.IsSpecular() != spec.specular || spec.lobe.IsMicrofacet() != spec.microfacet {
			t.Fatalf("[%s] unexpected lobe category", spec.lobe)
		}
	}
}

func constantTexture(value types.Vec4) *ImageTexture {
	tex := NewImageTexture("const", 1, 1)
	tex.Set(0, 0, value)
	return tex
}

func TestMaterialTextureFallback(t *testing.T) {
	mat := NewMaterial("test", MicrofacetReflection)
	mat.Albedo = types.XYZ(0.2, 0.4, 0.6)
	mat.Roughness = 0.3
	mat.Metallic = 0.7

	uv := types.XY(0.3, 0.6)
	normal := types.XYZ(0, 1, 0)

	params := mat.Resolve(uv, normal)
	if params.Albedo != mat.Albedo || params.Roughness != 0.3 || params.Metallic != 0.7 || params.Normal != normal {
		t.Fatalf("expected scalar values without textures; got %+v", params)
	}

	// Invalid textures are ignored
	mat.Bind(AlbedoChannel, &ImageTexture{})
	mat.Bind(RoughnessChannel, nil)
	if mat.HasTexture(AlbedoChannel) || mat.HasTexture(RoughnessChannel) {
		t.Fatal("expected invalid textures to be reported as missing")
	}
	if got := mat.GetAlbedo(uv); got != mat.Albedo {
		t.Fatalf("expected scalar albedo fallback; got %v", got)
	}

	mat.Bind(AlbedoChannel, constantTexture(types.XYZW(1, 0, 0, 1)))
	mat.Bind(RoughnessChannel, constantTexture(types.XYZW(0.9, 0, 0, 1)))
	mat.Bind(MetallicChannel, constantTexture(types.XYZW(0.1, 0, 0, 1)))
	mat.Bind(NormalChannel, constantTexture(types.XYZW(0.5, 0.5, 1, 1)))

	params = mat.Resolve(uv, normal)
	if !types.ApproxEqual(params.Albedo, types.XYZ(1, 0, 0), testEpsilon) {
		t.Fatalf("expected textured albedo; got %v", params.Albedo)
	}
	if math.Abs(float64(params.Roughness-0.9)) > testEpsilon || math.Abs(float64(params.Metallic-0.1)) > testEpsilon {
		t.Fatalf("expected textured roughness/metallic; got %f/%f", params.Roughness, params.Metallic)
	}
	if !types.ApproxEqual(params.Normal, normal, testEpsilon) {
		t.Fatalf("expected flat normal map to keep the normal; got %v", params.Normal)
	}
}

func TestImageTextureSampling(t *testing.T) {
	tex := NewImageTexture("gradient", 2, 1)
	tex.Set(0, 0, types.XYZW(0, 0, 0, 1))
	tex.Set(1, 0, types.XYZW(1, 1, 1, 1))

	specs := []struct {
		u, v float32
		exp  float32
	}{
		{0.25, 0.5, 0},
		{0.75, 0.5, 1},
		{0.5, 0.5, 0.5},
		{1.25, 0.5, 0},
		{-0.25, 0.5, 1},
	}
	for _, spec := range specs {
		got := tex.Get(spec.u, spec.v)[0]
		if math.Abs(float64(got-spec.exp)) > testEpsilon {
			t.Errorf("expected Get(%f, %f) = %f; got %f", spec.u, spec.v, spec.exp, got)
		}
	}

	var invalid *ImageTexture
	if invalid.Valid() {
		t.Fatal("expected nil texture to be invalid")
	}
}

func buildTestScene(t *testing.T) *Scene {
	sc := NewScene()
	sc.SetCamera(NewCamera(16, 16, 45))

	diffuse, err := sc.AddMaterial(NewMaterial("diffuse", DiffuseReflection))
	if err != nil {
		t.Fatal(err)
	}
	light := NewMaterial("light", DiffuseReflection)
	light.Emittance = 5
	lightID, err := sc.AddMaterial(light)
	if err != nil {
		t.Fatal(err)
	}

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 50; i++ {
		geomType := SphereGeom
		if i%2 == 1 {
			geomType = CubeGeom
		}
		g := NewGeom(
			geomType,
			diffuse,
			types.XYZ(rng.Float32()*20-10, rng.Float32()*20-10, rng.Float32()*20-10),
			types.XYZ(rng.Float32()*90, rng.Float32()*90, rng.Float32()*90),
			types.Splat3(0.5+rng.Float32()*2),
		)
		if err := sc.AddGeom(g); err != nil {
			t.Fatal(err)
		}
	}

	vertices := []types.Vec3{types.XYZ(-20, -15, -20), types.XYZ(20, -15, -20), types.XYZ(0, -15, 20)}
	normals := []types.Vec3{types.XYZ(0, 1, 0)}
	tris := []TriangleIdx{{V: [3]int32{0, 2, 1}, N: [3]int32{0, 0, 0}, UV: [3]int32{-1, -1, -1}, Material: lightID}}
	if err := sc.AddMesh(vertices, normals, nil, tris); err != nil {
		t.Fatal(err)
	}

	if err := sc.Build(); err != nil {
		t.Fatal(err)
	}
	return sc
}

func TestSceneIntersectMatchesBruteForce(t *testing.T) {
	sc := buildTestScene(t)
	if err := sc.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	rng := rand.New(rand.NewSource(5))
	hits := 0
	for i := 0; i < 500; i++ {
		ray := types.Ray{
			Origin: types.XYZ(rng.Float32()*40-20, rng.Float32()*40-20, rng.Float32()*40-20),
			Dir:    types.XYZ(rng.Float32()*2-1, rng.Float32()*2-1, rng.Float32()*2-1).Normalize(),
		}
		if ray.Dir.IsZero() {
			continue
		}

		expT, expHit := float32(math.MaxFloat32), false
		for idx := range sc.Primitives() {
			if tp, ok := sc.intersectPrimitive(uint32(idx), ray, expT); ok {
				expT, expHit = tp, true
			}
		}

		isect, hit := sc.Intersect(ray)
		if hit != expHit {
			t.Fatalf("[ray %d] expected hit=%t; got %t", i, expHit, hit)
		}
		if sc.Occluded(ray, math.MaxFloat32) != expHit {
			t.Fatalf("[ray %d] expected occluded=%t", i, expHit)
		}
		if !hit {
			if isect.ShapeID != -1 || isect.MaterialID != -1 {
				t.Fatalf("[ray %d] expected reset intersection for a miss; got %+v", i, isect)
			}
			continue
		}

		hits++
		if isect.T != expT {
			t.Fatalf("[ray %d] expected t=%f; got %f", i, expT, isect.T)
		}

		si := sc.Resolve(ray, isect)
		if !si.Valid() {
			t.Fatalf("[ray %d] expected valid shadeable intersection", i)
		}
		if l := si.Normal.Len(); math.Abs(float64(l-1)) > 1e-3 {
			t.Fatalf("[ray %d] expected unit normal; got length %f", i, l)
		}
	}
	if hits == 0 {
		t.Fatal("expected some rays to hit the scene")
	}
}

func TestSceneErrors(t *testing.T) {
	sc := NewScene()
	if err := sc.AddGeom(NewGeom(SphereGeom, 3, types.Vec3{}, types.Vec3{}, types.Splat3(1))); !errors.Is(err, ErrInvalidMaterialID) {
		t.Fatalf("expected ErrInvalidMaterialID; got %v", err)
	}
	if _, err := sc.Material(-1); !errors.Is(err, ErrInvalidMaterialID) {
		t.Fatalf("expected ErrInvalidMaterialID for id -1; got %v", err)
	}

	mat := NewMaterial("m", DiffuseReflection)
	if _, err := sc.AddMaterial(mat); err != nil {
		t.Fatal(err)
	}
	if _, err := sc.AddMaterial(mat); !errors.Is(err, ErrDuplicateMaterial) {
		t.Fatalf("expected ErrDuplicateMaterial; got %v", err)
	}
	if _, err := sc.AddMaterial(NewMaterial("m", SpecularGlass)); !errors.Is(err, ErrDuplicateMaterial) {
		t.Fatalf("expected ErrDuplicateMaterial for a duplicate name; got %v", err)
	}

	badTri := []TriangleIdx{{V: [3]int32{0, 1, 5}, N: [3]int32{-1, -1, -1}, UV: [3]int32{-1, -1, -1}}}
	if err := sc.AddMesh(make([]types.Vec3, 3), nil, nil, badTri); !errors.Is(err, ErrInvalidIndex) {
		t.Fatalf("expected ErrInvalidIndex; got %v", err)
	}

	if err := sc.Validate(); !errors.Is(err, ErrNoCamera) {
		t.Fatalf("expected ErrNoCamera; got %v", err)
	}
}

func TestBuildWithoutCamera(t *testing.T) {
	sc := NewScene()
	matID, err := sc.AddMaterial(NewMaterial("m", DiffuseReflection))
	if err != nil {
		t.Fatal(err)
	}
	if err = sc.AddGeom(NewGeom(SphereGeom, matID, types.Vec3{}, types.Vec3{}, types.Splat3(1))); err != nil {
		t.Fatal(err)
	}

	if err = sc.Build(); err != nil {
		t.Fatalf("expected a scene without a camera to build; got %v", err)
	}
	isect, hit := sc.Intersect(types.Ray{Origin: types.XYZ(0, 0, 5), Dir: types.XYZ(0, 0, -1)})
	if !hit || isect.ShapeID != 0 || math.Abs(float64(isect.T-4.5)) > testEpsilon {
		t.Fatalf("expected ray to hit the sphere at t=4.5; got hit %t, %+v", hit, isect)
	}
	if err = sc.Validate(); !errors.Is(err, ErrNoCamera) {
		t.Fatalf("expected Validate to require a camera; got %v", err)
	}
}

func TestEmptySceneMisses(t *testing.T) {
	sc := NewScene()
	sc.SetCamera(NewCamera(4, 4, 45))
	if err := sc.Build(); err != nil {
		t.Fatal(err)
	}

	ray := types.Ray{Origin: types.Vec3{}, Dir: types.XYZ(0, 0, -1)}
	if _, hit := sc.Intersect(ray); hit {
		t.Fatal("expected empty scene to report a miss")
	}
	if sc.Occluded(ray, math.MaxFloat32) {
		t.Fatal("expected empty scene to report no occlusion")
	}

	si := sc.Resolve(ray, Intersection{ShapeID: -1, MaterialID: -1, T: -1})
	if si.Valid() {
		t.Fatal("expected a miss to resolve to an invalid shadeable intersection")
	}
}

func TestSceneStats(t *testing.T) {
	sc := buildTestScene(t)
	stats := sc.Stats()
	for _, exp := range []string{"Geoms", "Triangles", "BVH", "diffuse", "light"} {
		if !strings.Contains(stats, exp) {
			t.Fatalf("expected stats table to contain %q:\n%s", exp, stats)
		}
	}
}

func TestIntersectionReset(t *testing.T) {
	isect := Intersection{ShapeID: 3, MaterialID: 1, T: 2.5, UV: types.XY(0.5, 0.5)}
	for i := 0; i < 2; i++ {
		isect.Reset()
		if isect.Hit() || isect.ShapeID != -1 || isect.MaterialID != -1 || isect.T != -1 || isect.UV != (types.Vec2{}) {
			t.Fatalf("[reset %d] expected cleared intersection; got %+v", i, isect)
		}
	}

	si := ShadeableIntersection{T: 1, MaterialID: 0, Normal: types.XYZ(0, 1, 0)}
	if !si.Valid() {
		t.Fatal("expected shadeable intersection to be valid")
	}
	si.Reset()
	si.Reset()
	if si.Valid() || si.T != -1 || si.MaterialID != -1 {
		t.Fatalf("expected reset shadeable intersection to be invalid; got %+v", si)
	}
}
