package editor

import "errors"

var (
	// ErrModeConflict is returned when starting Drawing or Editing outside Idle
	ErrModeConflict = errors.New("drawing and editing are mutually exclusive")
	// ErrWrongMode is returned when an operation is not valid in the current mode
	ErrWrongMode = errors.New("operation not allowed in current mode")
	// ErrCenterAlreadySet is returned when the drawing already has a center
	ErrCenterAlreadySet = errors.New("center already computed")
	// ErrCenterPending is returned while a center resolution is in flight
	ErrCenterPending = errors.New("center resolution in progress")
	// ErrStaleResult is returned when a network answer arrives for a session
	// the operator already left; the answer is discarded
	ErrStaleResult = errors.New("result belongs to a finished session")
)
