package pseudomotor

// CommonDirectionSlit is a slit with two blades moving in the same direction,
// top (sl2t) and bottom (sl2b), exposing gap and offset pseudo axes
type CommonDirectionSlit struct {
	// Sign flips both pseudo axes; it is either 1 or -1
	Sign float64
}

// NewCommonDirectionSlit returns a slit controller.  sign must be 1 or -1
func NewCommonDirectionSlit(sign float64) (*CommonDirectionSlit, error) {
	if sign != 1 && sign != -1 {
		return nil, invalidConfig("NewCommonDirectionSlit", "sign must be 1 or -1, got %v", sign)
	}
	return &CommonDirectionSlit{Sign: sign}, nil
}

// PseudoRoles satisfies Controller
func (s *CommonDirectionSlit) PseudoRoles() []string { return []string{"Gap", "Offset"} }

// MotorRoles satisfies Controller
func (s *CommonDirectionSlit) MotorRoles() []string { return []string{"sl2t", "sl2b"} }

// CalcAllPhysical returns the top and bottom blade positions for a gap and offset
func (s *CommonDirectionSlit) CalcAllPhysical(pseudos, currPhysicals []float64) ([]float64, error) {
	if err := checkLen("CommonDirectionSlit.CalcAllPhysical", "pseudo", pseudos, 2); err != nil {
		return nil, err
	}
	halfGap := pseudos[0] / 2
	return []float64{
		s.Sign * (pseudos[1] + halfGap),
		s.Sign * (pseudos[1] - halfGap),
	}, nil
}

// CalcAllPseudo returns the gap and offset for top and bottom blade positions
func (s *CommonDirectionSlit) CalcAllPseudo(physicals, currPseudos []float64) ([]float64, error) {
	if err := checkLen("CommonDirectionSlit.CalcAllPseudo", "physical", physicals, 2); err != nil {
		return nil, err
	}
	gap := physicals[0] - physicals[1]
	return []float64{
		s.Sign * gap,
		s.Sign * (physicals[0] - gap/2),
	}, nil
}
