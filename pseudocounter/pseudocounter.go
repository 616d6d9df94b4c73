// Package pseudocounter provides counters whose value is computed from
// other readings, typically motor positions
package pseudocounter

import (
	"fmt"
	"strings"
)

// Controller is a pseudo counter controller
type Controller interface {
	// CounterRoles returns the names of the computed values, in order
	CounterRoles() []string

	// InputRoles returns the names of the readings the values depend on, in order
	InputRoles() []string

	// Calc returns computed value index (1-based) from the input readings
	Calc(index int, inputs []float64) (float64, error)
}

// MOPIFilterThickness is the filter thickness of the MOPI, in mm, derived
// from the positions of its lon and filt motors
type MOPIFilterThickness struct{}

// CounterRoles satisfies Controller
func (MOPIFilterThickness) CounterRoles() []string { return []string{"mopi_filter_thickness"} }

// InputRoles satisfies Controller
func (MOPIFilterThickness) InputRoles() []string { return []string{"mopi_lon", "mopi_filt"} }

// Calc satisfies Controller
func (MOPIFilterThickness) Calc(index int, inputs []float64) (float64, error) {
	if index != 1 {
		return 0, fmt.Errorf("counter index %d out of range [1, 1]", index)
	}
	if len(inputs) != 2 {
		return 0, fmt.Errorf("expected 2 inputs, got %d", len(inputs))
	}
	return FilterThickness(inputs[0], inputs[1]), nil
}

// FilterThickness returns the thickness for the lon and filt positions
func FilterThickness(lon, filt float64) float64 {
	x := lon - filt + 42.25
	switch {
	case x > 100:
		return 0
	case x > 90:
		return 5
	case x > 0:
		return 0.1 + 0.0544*x
	default:
		return 0
	}
}

// Types lists the controller type names understood by New
var Types = []string{"mopifilterthickness"}

// New returns the controller for a type name.  Type names are case
// insensitive and ignore '-', '_' and spaces, like pseudomotor.New
func New(typ string) (Controller, error) {
	switch strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(typ)) {
	case "mopi", "mopifilterthickness":
		return MOPIFilterThickness{}, nil
	default:
		return nil, fmt.Errorf("pseudo counter type %q not understood, expected one of %s", typ, strings.Join(Types, ", "))
	}
}
