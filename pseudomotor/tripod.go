package pseudomotor

import (
	"math"
	"strings"

	"github.com/alba-synchrotron/beamctl/util"
	"gonum.org/v1/gonum/spatial/r3"
)

// azimuth of BL22-CLAESS at ALBA, nominally -45 degrees
const (
	DefaultCosAzimuth = 0.70710681665463704
	DefaultSinAzimuth = -0.70710674571845633
)

// PseudoAxes is a view of the pseudo axes served by a controller, used to
// validate the current state before a forward transform
type PseudoAxes interface {
	// PseudoLimits returns the travel limits of a pseudo axis and whether they are set
	PseudoLimits(role string) (util.Limiter, bool)

	// PseudoPosition returns the last known position of a pseudo axis
	PseudoPosition(role string) (float64, error)
}

// TripodGeometry is the construction time configuration of a TripodTable.
// All coordinates are x, y, z in the global system, mm.
type TripodGeometry struct {
	Jack1, Jack2, Jack3 r3.Vec
	Center              r3.Vec

	// CosAzimuth and SinAzimuth rotate the global system about z onto the
	// local table system
	CosAzimuth, SinAzimuth float64

	// CrossedLimitsCheck enables validation of the pseudo axes before a
	// forward transform
	CrossedLimitsCheck bool
}

// TripodTable is a three legged table with vertical jacks, exposing height
// (z), pitch and roll of an optical surface whose center is Center.
//
// Jack1 is the most upstream jack and Jack3 the most downstream.  If two jacks
// are at the same distance from the source the left one comes first.
type TripodTable struct {
	geom TripodGeometry

	// jacks in the local system: origin at the center of the optical surface,
	// rotated about z by the azimuth
	local [3]r3.Vec

	axes PseudoAxes
}

// NewTripodTable returns a tripod controller.  The jacks must start at equal
// height and must not be collinear in the horizontal plane
func NewTripodTable(g TripodGeometry) (*TripodTable, error) {
	const op = "NewTripodTable"
	if g.CosAzimuth == 0 && g.SinAzimuth == 0 {
		return nil, invalidConfig(op, "azimuth rotation is undefined, cos and sin are both zero")
	}
	if !(g.Jack1.Z == g.Jack2.Z && g.Jack2.Z == g.Jack3.Z) {
		return nil, invalidConfig(op, "the table must be initially horizontal, jack heights are %v, %v, %v",
			g.Jack1.Z, g.Jack2.Z, g.Jack3.Z)
	}
	if planeC(g.Jack1, g.Jack2, g.Jack3) == 0 {
		return nil, invalidConfig(op, "jacks are collinear in the horizontal plane")
	}
	t := &TripodTable{geom: g}
	for i, j := range []r3.Vec{g.Jack1, g.Jack2, g.Jack3} {
		l := r3.Sub(j, g.Center)
		l.X, l.Y = rotateZ(l.X, l.Y, g.CosAzimuth, g.SinAzimuth)
		t.local[i] = l
	}
	return t, nil
}

// AzimuthFromDegrees returns the cos and sin of an azimuth angle in degrees
func AzimuthFromDegrees(deg float64) (cos, sin float64) {
	rad := deg * math.Pi / 180
	return math.Cos(rad), math.Sin(rad)
}

// Geometry returns the configuration the table was built from
func (t *TripodTable) Geometry() TripodGeometry { return t.geom }

// LocalJacks returns the jack coordinates in the local system
func (t *TripodTable) LocalJacks() [3]r3.Vec { return t.local }

// AttachAxes provides the pseudo axis view used by the crossed limits check
func (t *TripodTable) AttachAxes(a PseudoAxes) { t.axes = a }

// PseudoRoles satisfies Controller
func (t *TripodTable) PseudoRoles() []string { return []string{"z", "pitch", "roll"} }

// MotorRoles satisfies Controller
func (t *TripodTable) MotorRoles() []string { return []string{"jack1", "jack2", "jack3"} }

// CalcAllPhysical returns the three jack positions for z (mm), pitch and roll (mrad)
func (t *TripodTable) CalcAllPhysical(pseudos, currPhysicals []float64) ([]float64, error) {
	const op = "TripodTable.CalcAllPhysical"
	if err := checkLen(op, "pseudo", pseudos, 3); err != nil {
		return nil, err
	}
	if t.geom.CrossedLimitsCheck {
		if err := t.validateCurrentPositions(); err != nil {
			return nil, err
		}
	}
	z, pitch, roll := pseudos[0], pseudos[1]/1000, pseudos[2]/1000

	// normal of the optical plane Ax + By + Cz = D in the local system;
	// D = 0 because the origin belongs to the plane
	n := tiltNormal(pitch, roll)
	out := make([]float64, 3)
	for i, j := range t.local {
		out[i] = (-n.X*j.X-n.Y*j.Y)/n.Z + z
	}
	if err := checkFinite(op, out...); err != nil {
		return nil, err
	}
	return out, nil
}

// CalcAllPseudo returns z (mm), pitch and roll (mrad) for three jack positions
func (t *TripodTable) CalcAllPseudo(physicals, currPseudos []float64) ([]float64, error) {
	const op = "TripodTable.CalcAllPseudo"
	if err := checkLen(op, "physical", physicals, 3); err != nil {
		return nil, err
	}
	g := t.geom
	p1 := r3.Vec{X: g.Jack1.X, Y: g.Jack1.Y, Z: physicals[0]}
	p2 := r3.Vec{X: g.Jack2.X, Y: g.Jack2.Y, Z: physicals[1]}
	p3 := r3.Vec{X: g.Jack3.X, Y: g.Jack3.Y, Z: physicals[2]}
	n := planeNormal(p1, p2, p3)
	d := r3.Dot(n, p1)

	// n.Z is never 0, the table normal is never horizontal
	z := (d - n.X*g.Center.X - n.Y*g.Center.Y) / n.Z

	locA, locB := rotateZ(n.X, n.Y, g.CosAzimuth, g.SinAzimuth)
	roll := math.Atan(locA / n.Z)
	pitch := math.Atan(-locB / (locA*math.Sin(roll) + n.Z*math.Cos(roll)))
	out := []float64{z, pitch * 1000, roll * 1000}
	if err := checkFinite(op, out...); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *TripodTable) validateCurrentPositions() error {
	const op = "TripodTable.validateCurrentPositions"
	if t.axes == nil {
		return &Error{Kind: ErrConfiguration, Op: op, Msg: "crossed limits check is enabled but no pseudo axes are attached"}
	}
	var missing []string
	for _, role := range t.PseudoRoles() {
		if lim, ok := t.axes.PseudoLimits(role); !ok || !lim.Set() {
			missing = append(missing, "Set limit "+role)
		}
	}
	if len(missing) > 0 {
		return &Error{Kind: ErrConfiguration, Op: op, Msg: strings.Join(missing, "\n")}
	}
	for _, role := range t.PseudoRoles() {
		if _, err := t.axes.PseudoPosition(role); err != nil {
			return &Error{Kind: ErrPositionValidation, Op: op,
				Msg: "move the physical motors to a safe position", Err: err}
		}
	}
	return nil
}

// tiltNormal returns the unit normal of a plane pitched about x and rolled
// about y, R_roll * R_pitch * (0, 0, 1)
func tiltNormal(pitch, roll float64) r3.Vec {
	n := r3.Vec{Z: 1}
	if pitch != 0 {
		n.Y, n.Z = rotateX(n.Y, n.Z, math.Cos(pitch), math.Sin(pitch))
	}
	if roll != 0 {
		n.X, n.Z = rotateY(n.X, n.Z, math.Cos(roll), math.Sin(roll))
	}
	return n
}

// planeNormal returns the unit normal of the plane through three points,
// oriented upwards
func planeNormal(p1, p2, p3 r3.Vec) r3.Vec {
	n := r3.Cross(r3.Sub(p2, p1), r3.Sub(p3, p1))
	norm := r3.Norm(n)
	if n.Z < 0 {
		norm = -norm
	}
	return r3.Scale(1/norm, n)
}

// planeC is the z component of the normal through three points, which only
// depends on their horizontal placement
func planeC(p1, p2, p3 r3.Vec) float64 {
	return (p2.X-p1.X)*(p3.Y-p1.Y) - (p3.X-p1.X)*(p2.Y-p1.Y)
}

// rotateX rotates (y, z) about x; positive for positive sin
func rotateX(y, z, cos, sin float64) (float64, float64) {
	return cos*y - sin*z, sin*y + cos*z
}

// rotateY rotates (x, z) about y; positive for positive sin
func rotateY(x, z, cos, sin float64) (float64, float64) {
	return cos*x + sin*z, -sin*x + cos*z
}

// rotateZ rotates (x, y) about z; positive for positive sin
func rotateZ(x, y, cos, sin float64) (float64, float64) {
	return cos*x - sin*y, sin*x + cos*y
}
