package cmd

import (
	"image"
	"path/filepath"
	"testing"

	"github.com/achilleasa/wavetrace/renderer"
	"github.com/achilleasa/wavetrace/scene"
	"github.com/achilleasa/wavetrace/tracer/cpu"
	"github.com/achilleasa/wavetrace/types"
)

func TestParseDebugFlags(t *testing.T) {
	specs := []struct {
		names   []string
		exp     cpu.DebugFlag
		expFail bool
	}{
		{nil, cpu.Off, false},
		{[]string{"depth"}, cpu.PrimaryRayIntersectionDepth, false},
		{[]string{"depth", "normals", "framebuffer"}, cpu.PrimaryRayIntersectionDepth | cpu.PrimaryRayIntersectionNormals | cpu.FrameBuffer, false},
		{[]string{"depth", "sparkles"}, cpu.Off, true},
	}

	for index, s := range specs {
		flags, err := parseDebugFlags(s.names)
		if s.expFail != (err != nil) {
			t.Fatalf("[spec %d] expected failure %t; got %v", index, s.expFail, err)
		}
		if flags != s.exp {
			t.Fatalf("[spec %d] expected flags %d; got %d", index, s.exp, flags)
		}
	}
}

func TestCheckpointFiles(t *testing.T) {
	state := &renderer.RenderState{
		Camera:     scene.NewCamera(2, 2, 45),
		Iterations: 5,
		TraceDepth: 3,
		Image:      []types.Vec3{types.Splat3(1), types.Splat3(2), types.Splat3(3), types.Splat3(4)},
		CImage:     image.NewRGBA(image.Rect(0, 0, 2, 2)),
	}

	file := filepath.Join(t.TempDir(), "frame.ckpt")
	if err := saveCheckpoint(file, state); err != nil {
		t.Fatal(err)
	}

	restored := &renderer.RenderState{
		TraceDepth: 3,
		Image:      make([]types.Vec3, 4),
		CImage:     image.NewRGBA(image.Rect(0, 0, 2, 2)),
	}
	if err := loadCheckpoint(file, restored); err != nil {
		t.Fatal(err)
	}
	if restored.Iterations != 5 || restored.TraceDepth != 3 || restored.Image[3] != types.Splat3(4) {
		t.Fatalf("unexpected restored state %+v", restored)
	}

	if err := loadCheckpoint(filepath.Join(t.TempDir(), "missing.ckpt"), restored); err == nil {
		t.Fatal("expected loading a missing checkpoint to fail")
	}
}
