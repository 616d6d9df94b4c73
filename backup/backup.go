// Package backup saves the configuration of a station (its controllers,
// elements, memorized parameters, measurement groups and environment) to a
// JSON document, and restores the parts of it that can be set at runtime
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alba-synchrotron/beamctl/pool"
)

// DateLayout is the format of Document.Date, always UTC
const DateLayout = "Jan 02 2006 15:04:05"

// Section is the saved state of a pool, controller, element or measurement
// group
type Section struct {
	Properties map[string]interface{}
	Attributes map[string]interface{} `json:",omitempty"`
	Elements   map[string]Section     `json:",omitempty"`
}

// EnvValue is one environment variable and the name of its JSON type
type EnvValue struct {
	Value interface{}
	Type  string
}

// Document is a station backup
type Document struct {
	Version           string
	Date              string
	Pools             map[string]Section
	Controllers       map[string]Section
	MeasurementGroups map[string]Section
	Environment       map[string]EnvValue
}

// reader accumulates attribute reads, recording failures in place
type reader struct {
	errs []error
}

func (r *reader) read(attrs map[string]interface{}, element, attr string, fcn func() (interface{}, error)) {
	v, err := fcn()
	if err != nil {
		attrs[attr] = "Error on the read " + attr
		r.errs = append(r.errs, fmt.Errorf("error in read %q from %q: %w", attr, element, err))
		return
	}
	attrs[attr] = v
}

func float(fcn func() (float64, error)) func() (interface{}, error) {
	return func() (interface{}, error) { return fcn() }
}

func str(fcn func() (string, error)) func() (interface{}, error) {
	return func() (interface{}, error) { return fcn() }
}

// Take reads the whole station.  Failed attribute reads do not stop the
// backup; they are recorded in the document and returned joined, alongside
// the complete document
func Take(s *pool.Station, now time.Time) (*Document, error) {
	d := &Document{
		Version:           s.Version,
		Date:              now.UTC().Format(DateLayout),
		Pools:             map[string]Section{},
		Controllers:       map[string]Section{},
		MeasurementGroups: map[string]Section{},
		Environment:       map[string]EnvValue{},
	}
	props := map[string]interface{}{}
	for k, v := range s.Properties {
		props[k] = v
	}
	d.Pools[s.Name] = Section{Properties: props}

	r := &reader{}
	for name, m := range s.Motors {
		d.Controllers[name] = motorSection(r, m)
	}
	for name, g := range s.Groups {
		d.Controllers[name] = groupSection(r, g)
	}
	for name, c := range s.Counters {
		d.Controllers[name] = counterSection(r, c)
	}
	for name, f := range s.FrontEnds {
		cfg := f.Config()
		attrs := map[string]interface{}{}
		r.read(attrs, name, "Value", func() (interface{}, error) { return f.Read() })
		st, status := f.State()
		attrs["State"] = st.String()
		attrs["Status"] = status
		d.Controllers[name] = Section{
			Properties: map[string]interface{}{
				"Type":                   "FrontEnd",
				"EPSDevice":              cfg.EPSDevice,
				"OpenAttr":               cfg.OpenAttr,
				"CloseAttr":              cfg.CloseAttr,
				"IsOpenedAttr":           cfg.IsOpenedAttr,
				"IsInterlockedAttr":      cfg.IsInterlockedAttr,
				"IsFirstValveClosedAttr": cfg.IsFirstValveClosedAttr,
				"IsControlDisabledAttr":  cfg.IsControlDisabledAttr,
			},
			Elements: map[string]Section{name: {Properties: map[string]interface{}{}, Attributes: attrs}},
		}
	}
	for name, mg := range s.MeasurementGroups {
		attrs := map[string]interface{}{}
		r.read(attrs, name, "Configuration", str(mg.Configuration))
		d.MeasurementGroups[name] = Section{
			Properties: map[string]interface{}{"Channels": mg.Channels()},
			Attributes: attrs,
		}
	}
	for k, v := range s.Environment() {
		d.Environment[k] = EnvValue{Value: v, Type: fmt.Sprintf("%T", v)}
	}
	return d, errors.Join(r.errs...)
}

func motorSection(r *reader, m *pool.Motor) Section {
	sec := Section{
		Properties: map[string]interface{}{"Type": m.Type, "Addr": m.Addr},
		Elements:   map[string]Section{},
	}
	for _, ax := range m.Axes {
		ref := m.Name + "/" + ax
		attrs := map[string]interface{}{}
		r.read(attrs, ref, "Position", float(func() (float64, error) { return m.Ctl.GetPos(ax) }))
		if lim, ok := m.Limits[ax]; ok {
			attrs["Limits"] = lim
		}
		sec.Elements[ref] = Section{Properties: map[string]interface{}{"Axis": ax}, Attributes: attrs}
	}
	return sec
}

func groupSection(r *reader, g *pool.Group) Section {
	props := map[string]interface{}{"Type": g.Type()}
	for k, v := range g.Properties() {
		props[k] = v
	}
	motors := map[string]interface{}{}
	roles := g.Controller().MotorRoles()
	for i, p := range g.Physicals() {
		motors[roles[i]] = p.Name
	}
	props["Motors"] = motors

	attrs := map[string]interface{}{}
	for _, name := range g.ParamNames() {
		r.read(attrs, g.Name(), name, float(func() (float64, error) { return g.GetParam(name) }))
	}
	sec := Section{Properties: props, Attributes: attrs, Elements: map[string]Section{}}
	limits := g.Limits()
	for _, role := range g.Axes() {
		ea := map[string]interface{}{}
		r.read(ea, g.Name()+"/"+role, "Position", float(func() (float64, error) { return g.GetPos(role) }))
		if lim, ok := limits[role]; ok {
			ea["Limits"] = lim
		}
		sec.Elements[g.Name()+"/"+role] = Section{Properties: map[string]interface{}{"Axis": role}, Attributes: ea}
	}
	return sec
}

func counterSection(r *reader, c *pool.CounterGroup) Section {
	inputs := map[string]interface{}{}
	for i, p := range c.Inputs() {
		inputs["input"+strconv.Itoa(i+1)] = p.Name
	}
	sec := Section{
		Properties: map[string]interface{}{"Type": c.Type(), "Inputs": inputs},
		Elements:   map[string]Section{},
	}
	for _, role := range c.Roles() {
		attrs := map[string]interface{}{}
		r.read(attrs, c.Name()+"/"+role, "Value", float(func() (float64, error) { return c.Value(role) }))
		sec.Elements[c.Name()+"/"+role] = Section{Properties: map[string]interface{}{"Role": role}, Attributes: attrs}
	}
	return sec
}

// Write encodes d with a two space indent
func Write(w io.Writer, d *Document) error {
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

// WriteFile writes d to path
func WriteFile(path string, d *Document) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err = Write(f, d); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Read decodes a document
func Read(r io.Reader) (*Document, error) {
	d := &Document{}
	if err := json.NewDecoder(r).Decode(d); err != nil {
		return nil, fmt.Errorf("decoding backup: %w", err)
	}
	return d, nil
}

// ReadFile reads a document from path
func ReadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Restore applies the runtime settable parts of d to s: the parameters of
// parameterized controllers, measurement group configurations and the
// environment.  Elements of d that s does not have are skipped and reported
func Restore(s *pool.Station, d *Document) error {
	var errs []error
	for _, name := range sortedKeys(d.Controllers) {
		sec := d.Controllers[name]
		g, ok := s.Groups[name]
		if !ok || len(g.ParamNames()) == 0 {
			continue
		}
		for _, param := range g.ParamNames() {
			v, ok := sec.Attributes[param]
			if !ok {
				continue
			}
			f, err := number(v)
			if err == nil {
				err = g.SetParam(param, f)
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("restoring %s of %s: %w", param, name, err))
			}
		}
	}
	for _, name := range sortedKeys(d.MeasurementGroups) {
		mg, ok := s.MeasurementGroups[name]
		if !ok {
			errs = append(errs, fmt.Errorf("restoring measurement group %s: %w", name, pool.ErrUnknownElement))
			continue
		}
		conf, ok := d.MeasurementGroups[name].Attributes["Configuration"].(string)
		if !ok || strings.HasPrefix(conf, "Error on the read") {
			continue
		}
		if err := mg.SetConfiguration(conf); err != nil {
			errs = append(errs, err)
		}
	}
	for k, v := range d.Environment {
		s.SetEnv(k, v.Value)
	}
	return errors.Join(errs...)
}

// number accepts a JSON number or a numeric string
func number(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return 0, fmt.Errorf("%v is not a number", v)
	}
}

func sortedKeys(m map[string]Section) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
