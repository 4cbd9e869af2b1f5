package gpu

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrOutOfDate means the swapchain no longer matches its surface and has to
	// be recreated. It is recovered from and never ends the frame loop.
	ErrOutOfDate = errors.New("swapchain out of date")

	// ErrDeviceLost means the device stopped executing work. There is no
	// recovery from it.
	ErrDeviceLost = errors.New("device lost")

	// ErrTimeout is returned by fence waits which did not finish in time.
	ErrTimeout = errors.New("wait timed out")
)

// ResultError is a failed native call: the operation which failed and the status
// code the driver returned for it.
type ResultError struct {
	Op   string
	Code int32

	// Err is the backend's description of the code, if it has one.
	Err error
}

func (e *ResultError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: result = %d (%s)", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: result = %d", e.Op, e.Code)
}

func (e *ResultError) Unwrap() error {
	return e.Err
}

// IsOutOfDate reports whether err asks for swapchain recreation.
func IsOutOfDate(err error) bool {
	return errors.Is(err, ErrOutOfDate)
}
