package pseudomotor

import (
	"fmt"
	"math"
)

// NoTolerance disables the position agreement check of a TwoCoupled
const NoTolerance = -1

// TwoCoupled maps one pseudo axis onto two identical motors, master and
// slave.  Any move of the pseudo axis is applied to both motors with the same
// value.  Before a move, the slave must agree with the master within
// Tolerance unless Tolerance is NoTolerance.
type TwoCoupled struct {
	Tolerance float64
}

// NewTwoCoupled returns a coupled controller.  tolerance must be
// non-negative or NoTolerance
func NewTwoCoupled(tolerance float64) (*TwoCoupled, error) {
	if tolerance != NoTolerance && !(tolerance >= 0) {
		return nil, invalidConfig("NewTwoCoupled", "tolerance must be >= 0 or %d, got %v", NoTolerance, tolerance)
	}
	return &TwoCoupled{Tolerance: tolerance}, nil
}

// PseudoRoles satisfies Controller
func (c *TwoCoupled) PseudoRoles() []string { return []string{"Pseudo"} }

// MotorRoles satisfies Controller
func (c *TwoCoupled) MotorRoles() []string { return []string{"master", "slave"} }

// CalcAllPhysical returns the pseudo position for both motors, after checking
// the motors currently agree
func (c *TwoCoupled) CalcAllPhysical(pseudos, currPhysicals []float64) ([]float64, error) {
	const op = "TwoCoupled.CalcAllPhysical"
	if err := checkLen(op, "pseudo", pseudos, 1); err != nil {
		return nil, err
	}
	if c.Tolerance != NoTolerance {
		if err := checkLen(op, "current physical", currPhysicals, 2); err != nil {
			return nil, err
		}
		master := currPhysicals[0]
		roles := c.MotorRoles()
		for i, pos := range currPhysicals[1:] {
			if diff := math.Abs(master - pos); diff > c.Tolerance {
				return nil, &Error{Kind: ErrPositionValidation, Op: op,
					Msg: fmt.Sprintf("tolerance has been exceeded, you must change the %s to %f", roles[i+1], master)}
			}
		}
	}
	pos := pseudos[0]
	return []float64{pos, pos}, nil
}

// CalcAllPseudo returns the master position
func (c *TwoCoupled) CalcAllPseudo(physicals, currPseudos []float64) ([]float64, error) {
	if err := checkLen("TwoCoupled.CalcAllPseudo", "physical", physicals, 2); err != nil {
		return nil, err
	}
	return []float64{physicals[0]}, nil
}
