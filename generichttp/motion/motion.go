// Package motion provides an HTTP interface to motion controllers, physical
// or pseudo
package motion

import "github.com/alba-synchrotron/beamctl/generichttp"

// Controller is used for the HTTP interface, which will check if the concrete
// type satisfies the other interfaces in this package and inject their routes
// automatically
type Controller interface {
	// Mover - all Controllers must be Movers
	Mover
}

// HTTPMotionController wraps a motion controller with HTTP
type HTTPMotionController struct {
	Controller

	RouteTable generichttp.RouteTable
}

// NewHTTPMotionController returns a new HTTP wrapper with the route table pre-configured
func NewHTTPMotionController(c Controller) HTTPMotionController {
	w := HTTPMotionController{Controller: c}
	rt := generichttp.RouteTable{}
	HTTPMove(c, rt)
	if stopper, ok := c.(Stopper); ok {
		HTTPStop(stopper, rt)
	}
	if lister, ok := c.(AxisLister); ok {
		HTTPAxes(lister, rt)
	}
	if p, ok := c.(Parameterizer); ok {
		HTTPParams(p, rt)
	}
	if calc, ok := c.(Calculator); ok {
		HTTPCalc(calc, rt)
	}
	w.RouteTable = rt
	return w
}

// RT satisfies the HTTPer interface
func (h HTTPMotionController) RT() generichttp.RouteTable {
	return h.RouteTable
}
