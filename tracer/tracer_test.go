package tracer

import (
	"testing"

	"github.com/achilleasa/wavetrace/types"
)

func TestPathSegmentReset(t *testing.T) {
	var p PathSegment
	p.Throughput = types.XYZ(0.1, 0.2, 0.3)
	p.Radiance = types.XYZ(5, 5, 5)
	p.MediaID = 3

	for i := 0; i < 2; i++ {
		p.Reset()
		p.RemainingBounces = 4

		if p.Throughput != types.Splat3(1) {
			t.Fatalf("[reset %d] expected unit throughput; got %v", i, p.Throughput)
		}
		if !p.Radiance.IsZero() {
			t.Fatalf("[reset %d] expected zero radiance; got %v", i, p.Radiance)
		}
		if p.MediaID != -1 {
			t.Fatalf("[reset %d] expected vacuum media id; got %d", i, p.MediaID)
		}
		if p.IsEnd() {
			t.Fatalf("[reset %d] expected path with remaining bounces to be active", i)
		}
	}

	p.Terminate()
	if !p.IsEnd() {
		t.Fatal("expected terminated path to end")
	}

	// Reset does not revive a terminated path
	p.Reset()
	if !p.IsEnd() {
		t.Fatal("expected Reset to leave RemainingBounces untouched")
	}
}

func TestPathSegmentIsEnd(t *testing.T) {
	specs := []struct {
		bounces int32
		expEnd  bool
	}{
		{-1, true},
		{0, true},
		{1, false},
		{8, false},
	}

	for index, s := range specs {
		p := PathSegment{RemainingBounces: s.bounces}
		if p.IsEnd() != s.expEnd {
			t.Fatalf("[spec %d] expected IsEnd() to return %t for %d bounces", index, s.expEnd, s.bounces)
		}
	}
}

func TestBlockRequestPixels(t *testing.T) {
	req := BlockRequest{FrameW: 16, FrameH: 8, BlockY: 2, BlockH: 3}
	if got := req.NumPixels(); got != 48 {
		t.Fatalf("expected 48 block pixels; got %d", got)
	}
}
