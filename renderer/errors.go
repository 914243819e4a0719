package renderer

import "errors"

var (
	ErrSceneNotDefined    = errors.New("renderer: no scene defined")
	ErrCameraNotDefined   = errors.New("renderer: no camera defined")
	ErrInvalidFrameSize   = errors.New("renderer: frame dimensions must be non-zero")
	ErrInterrupted        = errors.New("renderer: interrupted while rendering")
	ErrCheckpointMismatch = errors.New("renderer: checkpoint does not match frame dimensions")
)
