package motion

import (
	"encoding/json"
	"errors"
	"fmt"
	"go/types"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/alba-synchrotron/beamctl/generichttp"
)

// ErrUnknownAxis is replied with 404 when a controller that lists its axes
// is addressed with an axis it does not have
var ErrUnknownAxis = errors.New("unknown axis")

// Mover describes an interface with position-related methods for axes
type Mover interface {
	// GetPos gets the current position of an axis
	GetPos(string) (float64, error)

	// MoveAbs moves an axis to an absolute position
	MoveAbs(string, float64) error

	// MoveRel moves an axis a relative amount
	MoveRel(string, float64) error

	// Home homes an axis
	Home(string) error
}

// HTTPMove adds routes for the mover to the route tabler
func HTTPMove(iface Mover, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/axis/{axis}/home"}] = Home(iface)
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/axis/{axis}/pos"}] = GetPos(iface)
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/axis/{axis}/pos"}] = SetPos(iface)
}

// axisOf returns the {axis} URL parameter.  If c is an AxisLister the axis
// must be one of its axes, pseudo roles included, or a 404 error is returned
func axisOf(c interface{}, r *http.Request) (string, error) {
	axis := chi.URLParam(r, "axis")
	l, ok := c.(AxisLister)
	if !ok {
		return axis, nil
	}
	axes := l.Axes()
	for _, a := range axes {
		if a == axis {
			return axis, nil
		}
	}
	return "", generichttp.WithStatus(http.StatusNotFound,
		fmt.Errorf("%w %q, expected one of %v", ErrUnknownAxis, axis, axes))
}

// axisHandler resolves the axis and hands it to fcn, replying 200 with no
// body on success
func axisHandler(c interface{}, fcn func(axis string, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		axis, err := axisOf(c, r)
		if err == nil {
			err = fcn(axis, r)
		}
		if err != nil {
			generichttp.Error(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetPos returns an HTTP handler func from a mover that gets the position of an axis
func GetPos(m Mover) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		axis, err := axisOf(m, r)
		if err != nil {
			generichttp.Error(w, err)
			return
		}
		pos, err := m.GetPos(axis)
		if err != nil {
			generichttp.Error(w, err)
			return
		}
		hp := generichttp.HumanPayload{T: types.Float64, Float: pos}
		hp.EncodeAndRespond(w, r)
	}
}

// SetPos returns an HTTP handler func from a mover that triggers an absolute or
// relative move on an axis based on the relative query parameter
func SetPos(m Mover) http.HandlerFunc {
	return axisHandler(m, func(axis string, r *http.Request) error {
		relative, err := strconv.ParseBool(queryOr(r, "relative", "false"))
		if err != nil {
			return generichttp.WithStatus(http.StatusBadRequest, err)
		}
		f := generichttp.FloatT{}
		err = json.NewDecoder(r.Body).Decode(&f)
		defer r.Body.Close()
		if err != nil {
			return generichttp.WithStatus(http.StatusBadRequest, err)
		}
		if relative {
			return m.MoveRel(axis, f.F64)
		}
		return m.MoveAbs(axis, f.F64)
	})
}

// Home returns an HTTP handler func from a mover that homes an axis
func Home(m Mover) http.HandlerFunc {
	return axisHandler(m, func(axis string, _ *http.Request) error { return m.Home(axis) })
}
