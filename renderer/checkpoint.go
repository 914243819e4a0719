package renderer

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/achilleasa/wavetrace/types"
	"github.com/klauspost/compress/zstd"
)

const checkpointMagic = "WTCK"

const checkpointVersion uint32 = 1

var errBadCheckpoint = errors.New("renderer: not a checkpoint stream")

type checkpointHeader struct {
	Version    uint32
	FrameW     uint32
	FrameH     uint32
	Iterations uint32
	TraceDepth uint32
}

// Write the accumulated iterations of a render state as a zstd compressed
// stream so a progressive render can be resumed.
func SaveCheckpoint(w io.Writer, state *RenderState) error {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(enc)
	if _, err = bw.WriteString(checkpointMagic); err != nil {
		enc.Close()
		return err
	}

	bounds := state.CImage.Rect
	header := checkpointHeader{
		Version:    checkpointVersion,
		FrameW:     uint32(bounds.Dx()),
		FrameH:     uint32(bounds.Dy()),
		Iterations: state.Iterations,
		TraceDepth: state.TraceDepth,
	}
	if err = binary.Write(bw, binary.LittleEndian, &header); err != nil {
		enc.Close()
		return err
	}

	var texel [12]byte
	for _, c := range state.Image {
		for ch := 0; ch < 3; ch++ {
			binary.LittleEndian.PutUint32(texel[4*ch:], math.Float32bits(c[ch]))
		}
		if _, err = bw.Write(texel[:]); err != nil {
			enc.Close()
			return err
		}
	}

	if err = bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// Restore the accumulated iterations of a render state from a checkpoint
// stream. The checkpoint frame dimensions and trace depth must match the
// state.
func LoadCheckpoint(r io.Reader, state *RenderState) error {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return err
	}
	defer dec.Close()

	br := bufio.NewReader(dec)
	magic := make([]byte, len(checkpointMagic))
	if _, err = io.ReadFull(br, magic); err != nil || string(magic) != checkpointMagic {
		return errBadCheckpoint
	}

	var header checkpointHeader
	if err = binary.Read(br, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("renderer: could not read checkpoint header: %w", err)
	}
	if header.Version != checkpointVersion {
		return fmt.Errorf("renderer: unsupported checkpoint version %d", header.Version)
	}

	bounds := state.CImage.Rect
	if int(header.FrameW) != bounds.Dx() || int(header.FrameH) != bounds.Dy() {
		return fmt.Errorf("%w: checkpoint is %dx%d; frame is %dx%d", ErrCheckpointMismatch, header.FrameW, header.FrameH, bounds.Dx(), bounds.Dy())
	}

	if header.TraceDepth != state.TraceDepth {
		return fmt.Errorf("%w: checkpoint was traced with depth %d; frame uses depth %d", ErrCheckpointMismatch, header.TraceDepth, state.TraceDepth)
	}

	texels := make([]float32, 3*len(state.Image))
	if err = binary.Read(br, binary.LittleEndian, texels); err != nil {
		return fmt.Errorf("renderer: could not read checkpoint image: %w", err)
	}

	for i := range state.Image {
		state.Image[i] = types.XYZ(texels[3*i], texels[3*i+1], texels[3*i+2])
	}
	state.Iterations = header.Iterations
	return nil
}
