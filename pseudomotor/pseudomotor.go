/*Package pseudomotor provides coordinate transform controllers for compound
motion axes: slits, tables and stages whose logical ("pseudo") coordinates are
computed from several physical actuators.

Every controller is a pure, synchronous mapping between two fixed-size
vectors.  The forward transform (CalcAllPhysical) maps pseudo positions to
physical positions, the inverse (CalcAllPseudo) maps physical positions back.
Role order is declared by PseudoRoles and MotorRoles, and single components are
addressed with a 1-based index, so

	ctl, _ := pseudomotor.NewTwoLeggedTable(-500, 500)
	t2, _ := pseudomotor.CalcPhysical(ctl, 2, []float64{0, 100}, nil)

returns the translation of the second jack for pos=0 mm, rot=100 mrad.

Geometry is fixed at construction and validated there; a controller is never
returned in a partially configured state.  Distances are in mm and angles in
mrad unless noted.
*/
package pseudomotor

import (
	"fmt"
	"math"
)

// Controller is a pseudomotor controller
type Controller interface {
	// PseudoRoles returns the names of the pseudo axes, in vector order
	PseudoRoles() []string

	// MotorRoles returns the names of the physical axes, in vector order
	MotorRoles() []string

	// CalcAllPhysical computes all physical positions from pseudo positions.
	// currPhysicals may be nil when the controller does not need it
	CalcAllPhysical(pseudos, currPhysicals []float64) ([]float64, error)

	// CalcAllPseudo computes all pseudo positions from physical positions.
	// currPseudos may be nil when the controller does not need it
	CalcAllPseudo(physicals, currPseudos []float64) ([]float64, error)
}

// CalcPhysical returns the physical position of motor index (1-based)
func CalcPhysical(c Controller, index int, pseudos, currPhysicals []float64) (float64, error) {
	if index < 1 || index > len(c.MotorRoles()) {
		return 0, calcError("CalcPhysical", nil, "motor index %d out of range [1, %d]", index, len(c.MotorRoles()))
	}
	phys, err := c.CalcAllPhysical(pseudos, currPhysicals)
	if err != nil {
		return 0, err
	}
	return phys[index-1], nil
}

// CalcPseudo returns the pseudo position of axis index (1-based)
func CalcPseudo(c Controller, index int, physicals, currPseudos []float64) (float64, error) {
	if index < 1 || index > len(c.PseudoRoles()) {
		return 0, calcError("CalcPseudo", nil, "pseudo index %d out of range [1, %d]", index, len(c.PseudoRoles()))
	}
	pseudos, err := c.CalcAllPseudo(physicals, currPseudos)
	if err != nil {
		return 0, err
	}
	return pseudos[index-1], nil
}

// RoleIndex returns the 1-based index of role in roles, or 0 if absent
func RoleIndex(roles []string, role string) int {
	for i, r := range roles {
		if r == role {
			return i + 1
		}
	}
	return 0
}

func checkLen(op, what string, v []float64, n int) error {
	if len(v) != n {
		return calcError(op, nil, "expected %d %s positions, got %d", n, what, len(v))
	}
	return nil
}

// checkFinite returns a calculation error if any of v is NaN or Inf
func checkFinite(op string, v ...float64) error {
	for i, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return calcError(op, fmt.Errorf("component %d is %v", i+1, f), "non-finite result")
		}
	}
	return nil
}
