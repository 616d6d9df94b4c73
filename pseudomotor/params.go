package pseudomotor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alba-synchrotron/beamctl/util"
)

// Param enumerates the runtime parameters a controller may expose
type Param int

const (
	// ApertureOrigin is the origin of the aperture (gap) pseudo axis, mm
	ApertureOrigin Param = iota + 1

	// OffsetOrigin is the origin of the offset pseudo axis, mm
	OffsetOrigin
)

var paramNames = map[Param]string{
	ApertureOrigin: "aperture_origin",
	OffsetOrigin:   "offset_origin",
}

func (p Param) String() string {
	if s, ok := paramNames[p]; ok {
		return s
	}
	return "Param(" + strconv.Itoa(int(p)) + ")"
}

// ParseParam converts a parameter name, case insensitive, to a Param
func ParseParam(name string) (Param, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for p, s := range paramNames {
		if s == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownParam, name)
}

// Parameterized is a controller with runtime parameters
type Parameterized interface {
	// Params lists the parameters the controller understands
	Params() []Param

	// GetParam returns the value of a parameter
	GetParam(Param) (float64, error)

	// SetParam sets the value of a parameter
	SetParam(Param, float64) error
}

// ErrUnknownParam is wrapped when a parameter name is not understood or a
// controller is asked for a parameter it does not have
var ErrUnknownParam = errors.New("parameter not supported by controller")

// Properties holds construction time configuration of a controller, as it
// arrives from a configuration file; keys are matched case insensitively
type Properties map[string]interface{}

func (p Properties) lookup(name string) (interface{}, bool) {
	if v, ok := p[name]; ok {
		return v, true
	}
	for k, v := range p {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

// Float returns a float property, or def if it is absent
func (p Properties) Float(name string, def float64) (float64, error) {
	v, ok := p.lookup(name)
	if !ok || v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, invalidConfig("Properties.Float", "property %s: %v", name, err)
		}
		return f, nil
	default:
		return 0, invalidConfig("Properties.Float", "property %s has type %T, not a number", name, v)
	}
}

// Bool returns a boolean property, or def if it is absent
func (p Properties) Bool(name string, def bool) (bool, error) {
	v, ok := p.lookup(name)
	if !ok || v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return false, invalidConfig("Properties.Bool", "property %s: %v", name, err)
		}
		return b, nil
	default:
		return false, invalidConfig("Properties.Bool", "property %s has type %T, not a bool", name, v)
	}
}

// String returns a string property and whether it was present
func (p Properties) String(name string) (string, bool) {
	v, ok := p.lookup(name)
	if !ok || v == nil {
		return "", false
	}
	return fmt.Sprint(v), true
}

// Coordinates returns a required coordinate tuple of exactly n components.
// The property may be a comma separated string, e.g. "3123.09, -3232.33, 1400",
// or a list of numbers
func (p Properties) Coordinates(name string, n int) ([]float64, error) {
	const op = "Properties.Coordinates"
	v, ok := p.lookup(name)
	if !ok || v == nil {
		return nil, invalidConfig(op, "property %s is required", name)
	}
	var out []float64
	switch t := v.(type) {
	case string:
		fs, err := util.CSVToFloatSlice(t)
		if err != nil {
			return nil, invalidConfig(op, "property %s: %v", name, err)
		}
		out = fs
	case []interface{}:
		sub := Properties{}
		for i, e := range t {
			sub[strconv.Itoa(i)] = e
		}
		for i := range t {
			f, err := sub.Float(strconv.Itoa(i), 0)
			if err != nil {
				return nil, invalidConfig(op, "property %s element %d: %v", name, i, err)
			}
			out = append(out, f)
		}
	case []float64:
		out = append(out, t...)
	default:
		return nil, invalidConfig(op, "property %s has type %T, not coordinates", name, v)
	}
	if len(out) != n {
		return nil, invalidConfig(op, "property %s must have %d comma separated components, got %d", name, n, len(out))
	}
	return out, nil
}
