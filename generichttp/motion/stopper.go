package motion

import (
	"net/http"

	"github.com/alba-synchrotron/beamctl/generichttp"
)

// Stopper describes an interface with stop-related methods for axes
type Stopper interface {
	// Stop aborts motion of the axis
	Stop(string) error
}

// HTTPStop adds the stop route for the stopper to the route table
func HTTPStop(iface Stopper, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/axis/{axis}/stop"}] = Stop(iface)
}

// Stop returns an HTTP handler func from a stopper that aborts motion of an axis
func Stop(s Stopper) http.HandlerFunc {
	return axisHandler(s, func(axis string, _ *http.Request) error { return s.Stop(axis) })
}
