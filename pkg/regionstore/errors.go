package regionstore

import (
	"errors"
	"fmt"
)

// ErrRegionNotFound is returned for operations naming an unknown region
var ErrRegionNotFound = errors.New("region not found")

// RegionServiceError wraps a transport or decoding failure of the region service
type RegionServiceError struct {
	Op    string
	Cause error
}

func (e *RegionServiceError) Error() string {
	return fmt.Sprintf("region service %s: %v", e.Op, e.Cause)
}

func (e *RegionServiceError) Unwrap() error {
	return e.Cause
}

func serviceError(op string, err error) error {
	return &RegionServiceError{Op: op, Cause: err}
}
