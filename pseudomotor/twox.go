package pseudomotor

import "math"

// TwoXStage is a stage with two lateral translation motors, mx1 (upstream)
// and mx2, exposing the lateral position x and the yaw angle.  Yaw increases
// with the position of mx1.
type TwoXStage struct {
	// Tx1 and Tx2 are the x, y coordinates of the actuators in the local system
	Tx1 [2]float64
	Tx2 [2]float64

	// Dx is the nominal x shift of the center in the local system.
	// It is carried with the configuration but takes no part in the transform.
	Dx float64
}

// NewTwoXStage returns a two translation stage controller.  The actuators
// must have distinct y coordinates
func NewTwoXStage(tx1, tx2 [2]float64, dx float64) (*TwoXStage, error) {
	if tx1[1] == tx2[1] {
		return nil, invalidConfig("NewTwoXStage", "tx1 and tx2 must have distinct y coordinates, both are %v", tx1[1])
	}
	return &TwoXStage{Tx1: tx1, Tx2: tx2, Dx: dx}, nil
}

// PseudoRoles satisfies Controller
func (s *TwoXStage) PseudoRoles() []string { return []string{"x", "yaw"} }

// MotorRoles satisfies Controller
func (s *TwoXStage) MotorRoles() []string { return []string{"mx1", "mx2"} }

// CalcAllPhysical returns both actuator positions for x (mm) and yaw (mrad)
func (s *TwoXStage) CalcAllPhysical(pseudos, currPhysicals []float64) ([]float64, error) {
	if err := checkLen("TwoXStage.CalcAllPhysical", "pseudo", pseudos, 2); err != nil {
		return nil, err
	}
	x, tanYaw := pseudos[0], math.Tan(pseudos[1]/1000)
	return []float64{
		-tanYaw*s.Tx1[1] + x,
		-tanYaw*s.Tx2[1] + x,
	}, nil
}

// CalcAllPseudo returns x (mm) and yaw (mrad) for both actuator positions
func (s *TwoXStage) CalcAllPseudo(physicals, currPseudos []float64) ([]float64, error) {
	if err := checkLen("TwoXStage.CalcAllPseudo", "physical", physicals, 2); err != nil {
		return nil, err
	}
	m1, m2 := physicals[0], physicals[1]
	dy := s.Tx2[1] - s.Tx1[1]
	x := m1 - (m2-m1)*s.Tx1[1]/dy
	yaw := -math.Atan((m2-m1)/dy) * 1000
	return []float64{x, yaw}, nil
}
