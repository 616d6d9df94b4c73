package pseudomotor

import "math"

// TwoLeggedTable is a table standing on two vertical jacks, exposing the
// height (pos) and rotation (rot) at a pivot point.
//
// In a right handed XYZ system, Dist1 and Dist2 are the signed distances along
// X from the pivot to the first (upstream) and second jack; rot is the
// rotation about Y.  The pivot is assumed not to move along X.
type TwoLeggedTable struct {
	Dist1 float64
	Dist2 float64
}

// NewTwoLeggedTable returns a two legged table controller.  The jacks must
// be at distinct distances from the pivot
func NewTwoLeggedTable(dist1, dist2 float64) (*TwoLeggedTable, error) {
	if dist1 == dist2 {
		return nil, invalidConfig("NewTwoLeggedTable", "dist1 and dist2 must differ, both are %v", dist1)
	}
	return &TwoLeggedTable{Dist1: dist1, Dist2: dist2}, nil
}

// PseudoRoles satisfies Controller
func (t *TwoLeggedTable) PseudoRoles() []string { return []string{"pos", "rot"} }

// MotorRoles satisfies Controller
func (t *TwoLeggedTable) MotorRoles() []string { return []string{"t1", "t2"} }

// CalcAllPhysical returns the two jack translations for pos (mm) and rot (mrad)
func (t *TwoLeggedTable) CalcAllPhysical(pseudos, currPhysicals []float64) ([]float64, error) {
	if err := checkLen("TwoLeggedTable.CalcAllPhysical", "pseudo", pseudos, 2); err != nil {
		return nil, err
	}
	pos, rot := pseudos[0], pseudos[1]/1000
	tan := math.Tan(rot)
	return []float64{pos + t.Dist1*tan, pos + t.Dist2*tan}, nil
}

// CalcAllPseudo returns pos (mm) and rot (mrad) for two jack translations
func (t *TwoLeggedTable) CalcAllPseudo(physicals, currPseudos []float64) ([]float64, error) {
	if err := checkLen("TwoLeggedTable.CalcAllPseudo", "physical", physicals, 2); err != nil {
		return nil, err
	}
	t1, t2 := physicals[0], physicals[1]
	span := t.Dist2 - t.Dist1
	pos := (t.Dist2*t1 - t.Dist1*t2) / span
	rot := math.Atan2(t2-t1, span)
	return []float64{pos, rot * 1000}, nil
}
