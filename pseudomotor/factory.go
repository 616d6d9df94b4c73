package pseudomotor

import (
	"log"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Options holds collaborators shared by controllers built with New
type Options struct {
	// Logger is the logger handed to controllers that log; nil is the standard logger
	Logger *log.Logger
}

// Types lists the controller type names understood by New
var Types = []string{"slit", "twoleggedtable", "twoxstage", "tripod", "moveablemask", "twocoupled"}

// New builds a controller from a type name and its properties.  Type names
// are case insensitive and ignore '-' and '_', so "two-legged-table" and
// "TwoLeggedTable" are the same
func New(typ string, props Properties, opts Options) (Controller, error) {
	if props == nil {
		props = Properties{}
	}
	norm := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(typ))
	switch norm {
	case "slit", "commondirectionslit":
		sign, err := props.Float("sign", 1)
		if err != nil {
			return nil, err
		}
		return built(NewCommonDirectionSlit(sign))

	case "twoleggedtable", "table2l":
		d1, err := props.Float("dist1", -500)
		if err != nil {
			return nil, err
		}
		d2, err := props.Float("dist2", 500)
		if err != nil {
			return nil, err
		}
		return built(NewTwoLeggedTable(d1, d2))

	case "twoxstage":
		tx1, err := props.Coordinates("Tx1Coordinates", 2)
		if err != nil {
			return nil, err
		}
		tx2, err := props.Coordinates("Tx2Coordinates", 2)
		if err != nil {
			return nil, err
		}
		dx, err := props.Float("Dx", 0)
		if err != nil {
			return nil, err
		}
		return built(NewTwoXStage([2]float64{tx1[0], tx1[1]}, [2]float64{tx2[0], tx2[1]}, dx))

	case "tripod", "tripodtable":
		g := TripodGeometry{CosAzimuth: DefaultCosAzimuth, SinAzimuth: DefaultSinAzimuth}
		dst := []*r3.Vec{&g.Jack1, &g.Jack2, &g.Jack3, &g.Center}
		for i, name := range []string{"Jack1Coordinates", "Jack2Coordinates", "Jack3Coordinates", "CenterCoordinates"} {
			c, err := props.Coordinates(name, 3)
			if err != nil {
				return nil, err
			}
			*dst[i] = r3.Vec{X: c[0], Y: c[1], Z: c[2]}
		}
		check, err := props.Bool("CrossedPMLimitsCheck", false)
		if err != nil {
			return nil, err
		}
		g.CrossedLimitsCheck = check
		if _, ok := props.lookup("Azimuth"); ok {
			deg, err := props.Float("Azimuth", 0)
			if err != nil {
				return nil, err
			}
			g.CosAzimuth, g.SinAzimuth = AzimuthFromDegrees(deg)
		}
		return built(NewTripodTable(g))

	case "moveablemask", "mask":
		m := NewMoveableMask(opts.Logger)
		for _, p := range m.Params() {
			v, err := props.Float(p.String(), 0)
			if err != nil {
				return nil, err
			}
			if err = m.SetParam(p, v); err != nil {
				return nil, err
			}
		}
		return m, nil

	case "twocoupled", "coupled":
		tol, err := props.Float("tolerance", NoTolerance)
		if err != nil {
			return nil, err
		}
		return built(NewTwoCoupled(tol))

	default:
		return nil, invalidConfig("New", "controller type %q not understood, expected one of %s", typ, strings.Join(Types, ", "))
	}
}

// built converts a typed constructor result to a Controller without leaking
// a typed nil on error
func built[T Controller](c T, err error) (Controller, error) {
	if err != nil {
		return nil, err
	}
	return c, nil
}
