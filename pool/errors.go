package pool

import (
	"errors"
	"net/http"

	"github.com/alba-synchrotron/beamctl/generichttp"
	"github.com/alba-synchrotron/beamctl/generichttp/motion"
	"github.com/alba-synchrotron/beamctl/pseudomotor"
)

var (
	// ErrNotSupported is returned for operations a pseudo axis cannot perform
	ErrNotSupported = errors.New("operation not supported by pseudo axes")

	// ErrUnknownAxis is returned when an axis or role is not served by a group
	ErrUnknownAxis = errors.New("unknown axis")

	// ErrUnknownElement is returned when a station has no element by a name
	ErrUnknownElement = errors.New("unknown element")
)

// classify maps failures of the element layer to HTTP statuses
func classify(err error) error {
	if err == nil {
		return nil
	}
	code := 0
	switch {
	case errors.Is(err, pseudomotor.ErrUnknownParam), errors.Is(err, ErrUnknownAxis), errors.Is(err, ErrUnknownElement):
		code = http.StatusNotFound
	case errors.Is(err, motion.ErrLimit), errors.Is(err, pseudomotor.ErrPositionValidation),
		errors.Is(err, pseudomotor.ErrConfiguration):
		code = http.StatusBadRequest
	case errors.Is(err, ErrNotSupported):
		code = http.StatusNotImplemented
	default:
		return err
	}
	return generichttp.WithStatus(code, err)
}
