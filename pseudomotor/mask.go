package pseudomotor

import "log"

// MoveableMask is a front end moveable mask with two blades, mask1 and mask2,
// exposing aperture (gap) and offset.  The origins of both pseudo axes are
// runtime parameters.
//
// MoveableMask does no locking; callers that set origins concurrently with
// transforms must serialize access.
type MoveableMask struct {
	apertureOrigin float64
	offsetOrigin   float64

	log *log.Logger
}

// NewMoveableMask returns a mask controller with both origins at zero.
// A nil logger logs to the standard logger
func NewMoveableMask(l *log.Logger) *MoveableMask {
	if l == nil {
		l = log.Default()
	}
	return &MoveableMask{log: l}
}

// PseudoRoles satisfies Controller
func (m *MoveableMask) PseudoRoles() []string { return []string{"gap", "offset"} }

// MotorRoles satisfies Controller
func (m *MoveableMask) MotorRoles() []string { return []string{"mask1", "mask2"} }

// CalcAllPhysical returns both blade positions for a gap and offset
func (m *MoveableMask) CalcAllPhysical(pseudos, currPhysicals []float64) ([]float64, error) {
	const op = "MoveableMask.CalcAllPhysical"
	if err := checkLen(op, "pseudo", pseudos, 2); err != nil {
		return nil, err
	}
	gap := pseudos[0] - m.apertureOrigin
	off := 2 * (pseudos[1] - m.offsetOrigin)
	out := []float64{(gap + off) / 2, (gap - off) / 2}
	if err := checkFinite(op, out...); err != nil {
		m.log.Printf("error in %s: gap=%f offset=%f: %v", op, pseudos[0], pseudos[1], err)
		return nil, err
	}
	return out, nil
}

// CalcAllPseudo returns gap and offset for both blade positions
func (m *MoveableMask) CalcAllPseudo(physicals, currPseudos []float64) ([]float64, error) {
	const op = "MoveableMask.CalcAllPseudo"
	if err := checkLen(op, "physical", physicals, 2); err != nil {
		return nil, err
	}
	m1, m2 := physicals[0], physicals[1]
	out := []float64{m1 + m2 + m.apertureOrigin, (m1-m2)/2 + m.offsetOrigin}
	if err := checkFinite(op, out...); err != nil {
		m.log.Printf("error in %s: mask1=%f mask2=%f: %v", op, m1, m2, err)
		return nil, err
	}
	return out, nil
}

// Params satisfies Parameterized
func (m *MoveableMask) Params() []Param { return []Param{ApertureOrigin, OffsetOrigin} }

// GetParam satisfies Parameterized
func (m *MoveableMask) GetParam(p Param) (float64, error) {
	switch p {
	case ApertureOrigin:
		return m.apertureOrigin, nil
	case OffsetOrigin:
		return m.offsetOrigin, nil
	default:
		return 0, &Error{Kind: ErrConfiguration, Op: "MoveableMask.GetParam", Msg: p.String(), Err: ErrUnknownParam}
	}
}

// SetParam satisfies Parameterized
func (m *MoveableMask) SetParam(p Param, v float64) error {
	if err := checkFinite("MoveableMask.SetParam", v); err != nil {
		return err
	}
	switch p {
	case ApertureOrigin:
		m.apertureOrigin = v
	case OffsetOrigin:
		m.offsetOrigin = v
	default:
		return &Error{Kind: ErrConfiguration, Op: "MoveableMask.SetParam", Msg: p.String(), Err: ErrUnknownParam}
	}
	return nil
}
