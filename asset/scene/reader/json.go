package reader

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/achilleasa/wavetrace/asset"
	"github.com/achilleasa/wavetrace/asset/mesh"
	"github.com/achilleasa/wavetrace/asset/texture"
	"github.com/achilleasa/wavetrace/log"
	"github.com/achilleasa/wavetrace/scene"
	"github.com/achilleasa/wavetrace/types"
)

var (
	ErrMissingCamera  = errors.New("scene reader: scene file does not define a camera")
	ErrUnknownObject  = errors.New("scene reader: unknown object type")
	ErrUnknownLobe    = errors.New("scene reader: unknown material type")
	ErrUnknownChannel = errors.New("scene reader: unknown texture channel")
)

// Camera defaults for scene files that omit them.
var (
	defaultResolution         = [2]int{512, 512}
	defaultFovY       float32 = 45
)

type cameraCfg struct {
	Resolution    [2]int     `json:"resolution"`
	Position      types.Vec3 `json:"position"`
	LookAt        types.Vec3 `json:"lookAt"`
	FovY          float32    `json:"fovy"`
	Depth         int        `json:"depth,omitempty"`
	LensRadius    float32    `json:"lensRadius,omitempty"`
	FocalDistance float32    `json:"focalDistance,omitempty"`
}

type materialCfg struct {
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	Albedo     *types.Vec3 `json:"albedo,omitempty"`
	Roughness  float32     `json:"roughness,omitempty"`
	Metallic   *float32    `json:"metallic,omitempty"`
	Emittance  float32     `json:"emittance,omitempty"`
	IOR        float32     `json:"ior,omitempty"`
	Absorption *types.Vec3 `json:"absorption,omitempty"`
	Scatter    *float32    `json:"scatter,omitempty"`

	// Maps a channel name (albedo, normal, roughness, metallic) to an
	// image path relative to the scene file.
	Textures map[string]string `json:"textures,omitempty"`
}

type objectCfg struct {
	Type      string      `json:"type"`
	Material  string      `json:"material"`
	Translate types.Vec3  `json:"translate"`
	Rotate    types.Vec3  `json:"rotate"`
	Scale     *types.Vec3 `json:"scale,omitempty"`

	// Mesh file for mesh objects.
	File string `json:"file,omitempty"`
}

type bvhCfg struct {
	MaxLeafItems int `json:"maxLeafItems,omitempty"`
	Buckets      int `json:"buckets,omitempty"`
}

type sceneCfg struct {
	Camera     *cameraCfg    `json:"camera"`
	Background types.Vec3    `json:"background"`
	Materials  []materialCfg `json:"materials"`
	Objects    []objectCfg   `json:"objects"`
	BVH        bvhCfg        `json:"bvh"`
}

var channelNames = map[string]scene.TextureChannel{
	"albedo":    scene.AlbedoChannel,
	"normal":    scene.NormalChannel,
	"roughness": scene.RoughnessChannel,
	"metallic":  scene.MetallicChannel,
}

// Reads JSON scene descriptions.
type jsonReader struct {
	logger log.Logger

	// Textures loaded so far indexed by resource path and in load order.
	textures    map[string]*scene.ImageTexture
	textureList []*scene.ImageTexture
}

func newJSONReader() *jsonReader {
	return &jsonReader{
		logger:   log.New("scene reader"),
		textures: make(map[string]*scene.ImageTexture),
	}
}

// Parse the scene description, load any referenced assets and build the BVH.
func (r *jsonReader) Read(res *asset.Resource) (*scene.Scene, error) {
	start := time.Now()

	var cfg sceneCfg
	dec := json.NewDecoder(res)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("scene reader: could not parse %s: %w", res.Path(), err)
	}

	sc := scene.NewScene()
	sc.Background = cfg.Background
	if cfg.BVH.MaxLeafItems > 0 {
		sc.BvhOptions.MaxLeafItems = cfg.BVH.MaxLeafItems
	}
	if cfg.BVH.Buckets > 0 {
		sc.BvhOptions.Buckets = cfg.BVH.Buckets
	}

	if cfg.Camera == nil {
		return nil, ErrMissingCamera
	}
	sc.SetCamera(cfg.Camera.build())

	for index, matCfg := range cfg.Materials {
		mat, err := r.buildMaterial(matCfg, res)
		if err != nil {
			return nil, fmt.Errorf("scene reader: material %d: %w", index, err)
		}
		if _, err = sc.AddMaterial(mat); err != nil {
			return nil, err
		}
	}

	for _, tex := range r.textureList {
		sc.AddTexture(tex)
	}

	for index, objCfg := range cfg.Objects {
		if err := r.addObject(sc, objCfg, res); err != nil {
			return nil, fmt.Errorf("scene reader: object %d: %w", index, err)
		}
	}

	if err := sc.Build(); err != nil {
		return nil, err
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	r.logger.Infof("loaded scene %s in %s: %d materials, %d geoms, %d triangles, %d textures", res.Path(), time.Since(start), len(sc.Materials), len(sc.Geoms), len(sc.Triangles), len(sc.Textures))
	return sc, nil
}

func (c *cameraCfg) build() *scene.Camera {
	if c.Resolution[0] <= 0 || c.Resolution[1] <= 0 {
		c.Resolution = defaultResolution
	}
	if c.FovY <= 0 {
		c.FovY = defaultFovY
	}
	camera := scene.NewCamera(c.Resolution[0], c.Resolution[1], c.FovY)
	camera.Position = c.Position
	camera.Ref = c.LookAt
	if c.Depth > 0 {
		camera.PathDepth = c.Depth
	}
	camera.LensRadius = c.LensRadius
	if c.FocalDistance > 0 {
		camera.FocalDistance = c.FocalDistance
	}
	camera.Recompute()
	return camera
}

func (r *jsonReader) buildMaterial(cfg materialCfg, sceneRes *asset.Resource) (*scene.Material, error) {
	lobe := scene.LobeFromName(cfg.Type)
	if lobe == scene.NoLobe {
		return nil, fmt.Errorf("%w %q", ErrUnknownLobe, cfg.Type)
	}

	mat := scene.NewMaterial(cfg.Name, lobe)
	if cfg.Albedo != nil {
		mat.Albedo = *cfg.Albedo
	}
	mat.Roughness = cfg.Roughness
	if cfg.Metallic != nil {
		mat.Metallic = *cfg.Metallic
	}
	mat.Emittance = cfg.Emittance
	if cfg.IOR > 0 {
		mat.Eta = cfg.IOR
	}
	if cfg.Absorption != nil {
		mat.Absorption = *cfg.Absorption
	}
	if cfg.Scatter != nil {
		mat.Scatter = *cfg.Scatter
	}

	for channelName, texPath := range cfg.Textures {
		channel, ok := channelNames[strings.ToLower(channelName)]
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownChannel, channelName)
		}
		tex, err := r.loadTexture(texPath, sceneRes)
		if err != nil {
			return nil, err
		}
		mat.Bind(channel, tex)
	}
	return mat, nil
}

func (r *jsonReader) loadTexture(texPath string, sceneRes *asset.Resource) (*scene.ImageTexture, error) {
	res, err := asset.NewResource(texPath, sceneRes)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	if tex, ok := r.textures[res.Path()]; ok {
		return tex, nil
	}

	tex, err := texture.New(res)
	if err != nil {
		return nil, err
	}
	r.textures[res.Path()] = tex
	r.textureList = append(r.textureList, tex)
	return tex, nil
}

func (r *jsonReader) addObject(sc *scene.Scene, cfg objectCfg, sceneRes *asset.Resource) error {
	matID, ok := sc.MaterialByName(cfg.Material)
	if !ok {
		return fmt.Errorf("%w: %q", scene.ErrInvalidMaterialID, cfg.Material)
	}

	scale := types.Splat3(1)
	if cfg.Scale != nil {
		scale = *cfg.Scale
	}

	switch strings.ToLower(cfg.Type) {
	case "sphere":
		return sc.AddGeom(scene.NewGeom(scene.SphereGeom, matID, cfg.Translate, cfg.Rotate, scale))
	case "cube":
		return sc.AddGeom(scene.NewGeom(scene.CubeGeom, matID, cfg.Translate, cfg.Rotate, scale))
	case "mesh":
		res, err := asset.NewResource(cfg.File, sceneRes)
		if err != nil {
			return err
		}
		defer res.Close()

		m, err := mesh.Load(res)
		if err != nil {
			return err
		}
		m.Transform(types.TRS(cfg.Translate, cfg.Rotate, scale))
		return m.AddTo(sc, matID)
	}
	return fmt.Errorf("%w %q", ErrUnknownObject, cfg.Type)
}
