package cpu

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/achilleasa/wavetrace/log"
	"github.com/achilleasa/wavetrace/scene"
	"github.com/achilleasa/wavetrace/tracer"
	"github.com/achilleasa/wavetrace/tracer/cpu/device"
	"github.com/achilleasa/wavetrace/tracer/cpu/integrator"
)

var (
	ErrNoSceneData = errors.New("cpu tracer: no scene data")
	ErrNotSetup    = errors.New("cpu tracer: tracer has not been setup")
	ErrNoPipeline  = errors.New("cpu tracer: no pipeline defined")
)

var _ tracer.Tracer = (*Tracer)(nil)

// A tracer that runs the wavefront integrator on a CPU compute grid.
type Tracer struct {
	logger log.Logger

	// Held while rendering a block.
	sync.Mutex

	// The tracer id.
	id string

	// The compute grid and the integrator kernels running on it.
	grid       *device.Grid
	integrator *integrator.MonteCarlo

	// The tracer rendering pipeline.
	pipeline *Pipeline

	// A buffer for queuing updates. Updates are grouped by type and
	// latest updates always overwrite the previous ones.
	updateMutex  sync.Mutex
	updateBuffer map[tracer.UpdateType]interface{}

	// Statistics for last rendered block.
	stats *tracer.Stats

	// The uploaded scene data.
	sceneData *scene.Scene

	frameW uint32
	frameH uint32
}

// Create a new cpu tracer. Russian roulette is applied to paths that
// completed at least minBouncesForRR bounces.
func NewTracer(id string, grid *device.Grid, pipeline *Pipeline, minBouncesForRR uint32) (*Tracer, error) {
	if pipeline == nil {
		return nil, ErrNoPipeline
	}

	in := integrator.NewMonteCarloIntegrator(grid)
	in.MinBouncesForRR = minBouncesForRR

	return &Tracer{
		logger:       log.New(fmt.Sprintf("cpu tracer (%s)", id)),
		id:           id,
		grid:         grid,
		integrator:   in,
		pipeline:     pipeline,
		updateBuffer: make(map[tracer.UpdateType]interface{}),
		stats:        &tracer.Stats{},
	}, nil
}

// Get tracer id.
func (tr *Tracer) Id() string {
	return tr.id
}

// Get the compute grid used by this tracer.
func (tr *Tracer) Grid() *device.Grid {
	return tr.grid
}

// Allocate path buffers for the given frame dimensions.
func (tr *Tracer) Setup(frameW, frameH uint32) error {
	tr.Lock()
	defer tr.Unlock()

	if err := tr.integrator.ResizeOutputFrame(frameW, frameH); err != nil {
		return err
	}
	tr.frameW, tr.frameH = frameW, frameH
	tr.logger.Debugf("allocated path buffers for %dx%d frame using %d workers", frameW, frameH, tr.grid.Workers)
	return nil
}

// Shutdown and cleanup tracer.
func (tr *Tracer) Close() {
	tr.Lock()
	defer tr.Unlock()

	tr.integrator.ResizeOutputFrame(0, 0)
	tr.frameW, tr.frameH = 0, 0
	tr.sceneData = nil
}

// Append a change to the tracer's update buffer.
func (tr *Tracer) Update(updateType tracer.UpdateType, data interface{}) {
	tr.updateMutex.Lock()
	defer tr.updateMutex.Unlock()

	tr.updateBuffer[updateType] = data
}

// Retrieve last block statistics.
func (tr *Tracer) Stats() *tracer.Stats {
	return tr.stats
}

// Commit queued changes. Scene updates are applied before camera updates.
func (tr *Tracer) commitUpdates() error {
	tr.updateMutex.Lock()
	pending := tr.updateBuffer
	tr.updateBuffer = make(map[tracer.UpdateType]interface{})
	tr.updateMutex.Unlock()

	for updateType := range pending {
		if updateType != tracer.UpdateScene && updateType != tracer.UpdateCamera {
			return fmt.Errorf("cpu tracer: unsupported update type %d", updateType)
		}
	}

	for _, updateType := range []tracer.UpdateType{tracer.UpdateScene, tracer.UpdateCamera} {
		data, ok := pending[updateType]
		if !ok {
			continue
		}

		var err error
		switch updateType {
		case tracer.UpdateScene:
			err = tr.uploadSceneData(data)
		case tracer.UpdateCamera:
			err = tr.uploadCameraData(data)
		}
		if err != nil {
			return err
		}
		tr.logger.Debugf("applied %s update", updateType)
	}
	return nil
}

func (tr *Tracer) uploadSceneData(data interface{}) error {
	sc, ok := data.(*scene.Scene)
	if !ok {
		return fmt.Errorf("cpu tracer: expected *scene.Scene for scene update; got %T", data)
	}
	if err := tr.integrator.UploadSceneData(sc); err != nil {
		return err
	}
	tr.sceneData = sc
	if sc.Camera != nil {
		return tr.integrator.UploadCameraData(sc.Camera)
	}
	return nil
}

func (tr *Tracer) uploadCameraData(data interface{}) error {
	var camera *scene.Camera
	switch v := data.(type) {
	case *scene.Camera:
		camera = v
	case scene.Camera:
		camera = &v
	default:
		return fmt.Errorf("cpu tracer: expected *scene.Camera for camera update; got %T", data)
	}
	return tr.integrator.UploadCameraData(camera)
}

// Apply pending changes and render a block.
func (tr *Tracer) Trace(ctx context.Context, blockReq *tracer.BlockRequest) error {
	tr.Lock()
	defer tr.Unlock()

	if tr.frameW == 0 || tr.frameH == 0 {
		return ErrNotSetup
	}

	stats := &tracer.Stats{
		BlockH:     blockReq.BlockH,
		StageTimes: make(map[string]time.Duration),
	}

	// Apply any pending changes
	updateStart := time.Now()
	if err := tr.commitUpdates(); err != nil {
		return err
	}
	stats.UpdateTime = time.Since(updateStart)

	if tr.sceneData == nil {
		return ErrNoSceneData
	}

	// Execute pipeline. Once the integrator stages merge the block into the
	// accumulator the iteration is committed and post-processing can no
	// longer be cancelled.
	renderStart := time.Now()
	groups := []struct {
		name      string
		stages    []PipelineStage
		committed bool
	}{
		{"reset", tr.pipeline.Reset, false},
		{"primary rays", tr.pipeline.PrimaryRayGenerator, false},
		{"integrator", tr.pipeline.Integrator, false},
		{"post-process", tr.pipeline.PostProcess, true},
	}
	for _, group := range groups {
		stageCtx := ctx
		if group.committed {
			stageCtx = context.WithoutCancel(ctx)
		}
		for _, stage := range group.stages {
			elapsed, err := stage(stageCtx, tr, blockReq)
			stats.StageTimes[group.name] += elapsed
			if err != nil {
				return err
			}
		}
	}

	stats.RenderTime = time.Since(renderStart)
	stats.Bounces = append([]tracer.BounceStat(nil), tr.integrator.BounceStats()...)
	stats.DiscardedPaths = tr.integrator.DiscardedPaths()
	tr.stats = stats
	return nil
}
