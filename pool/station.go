package pool

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/alba-synchrotron/beamctl/frontend"
	"github.com/alba-synchrotron/beamctl/generichttp/motion"
	"github.com/alba-synchrotron/beamctl/mntgrp"
	"github.com/alba-synchrotron/beamctl/util"
)

// EnvActiveMntGrp is the environment key of the active measurement group
const EnvActiveMntGrp = "ActiveMntGrp"

// Motor is a physical motion controller on the station
type Motor struct {
	Name string
	Type string
	Addr string

	Ctl motion.Mover

	// Axes are the axis names served by Ctl
	Axes []string

	// Limits are the software travel ranges, by axis
	Limits map[string]util.Limiter
}

// Station holds every element of a beamline: physical motion controllers,
// pseudomotor groups, pseudo counters, front ends and measurement groups
type Station struct {
	Name    string
	Version string

	// Properties describe the station itself, e.g. its listen address
	Properties map[string]string

	Motors            map[string]*Motor
	Groups            map[string]*Group
	Counters          map[string]*CounterGroup
	FrontEnds         map[string]*frontend.FrontEnd
	MeasurementGroups map[string]*MeasurementGroup

	// Store memorizes configurations when not nil
	Store *mntgrp.Store

	// Metrics is never nil for a station made by NewStation
	Metrics *Metrics

	envMu sync.Mutex
	env   map[string]interface{}
}

// NewStation returns an empty station
func NewStation(name, version string) *Station {
	return &Station{
		Name:              name,
		Version:           version,
		Properties:        map[string]string{},
		Motors:            map[string]*Motor{},
		Groups:            map[string]*Group{},
		Counters:          map[string]*CounterGroup{},
		FrontEnds:         map[string]*frontend.FrontEnd{},
		MeasurementGroups: map[string]*MeasurementGroup{},
		Metrics:           NewMetrics(),
		env:               map[string]interface{}{},
	}
}

func (s *Station) taken(name string) error {
	_, m := s.Motors[name]
	_, g := s.Groups[name]
	_, c := s.Counters[name]
	_, f := s.FrontEnds[name]
	_, mg := s.MeasurementGroups[name]
	if m || g || c || f || mg {
		return fmt.Errorf("station %s already has an element named %s", s.Name, name)
	}
	return nil
}

// AddMotor adds a physical motion controller
func (s *Station) AddMotor(m *Motor) error {
	if err := s.taken(m.Name); err != nil {
		return err
	}
	if m.Limits == nil {
		m.Limits = map[string]util.Limiter{}
	}
	s.Motors[m.Name] = m
	return nil
}

// Resolve returns the binding for a "controller/axis" reference
func (s *Station) Resolve(ref string) (Physical, error) {
	i := strings.LastIndex(ref, "/")
	if i <= 0 || i == len(ref)-1 {
		return Physical{}, fmt.Errorf("motor reference %q is not controller/axis", ref)
	}
	name, ax := ref[:i], ref[i+1:]
	m, ok := s.Motors[name]
	if !ok {
		return Physical{}, classify(fmt.Errorf("%w: motor controller %s", ErrUnknownElement, name))
	}
	if len(m.Axes) > 0 {
		found := false
		for _, a := range m.Axes {
			found = found || a == ax
		}
		if !found {
			return Physical{}, classify(fmt.Errorf("%w %q on motor controller %s", ErrUnknownAxis, ax, name))
		}
	}
	return Physical{Name: ref, Mov: m.Ctl, Axis: ax, Limit: m.Limits[ax]}, nil
}

// AddGroup adds a pseudomotor group
func (s *Station) AddGroup(g *Group) error {
	if err := s.taken(g.Name()); err != nil {
		return err
	}
	s.Groups[g.Name()] = g
	return nil
}

// AddCounter adds a pseudo counter group and exposes its values as metrics
func (s *Station) AddCounter(c *CounterGroup) error {
	if err := s.taken(c.Name()); err != nil {
		return err
	}
	for _, role := range c.Roles() {
		if err := s.Metrics.RegisterCounter(c, role); err != nil {
			return err
		}
	}
	s.Counters[c.Name()] = c
	return nil
}

// AddFrontEnd adds a front end
func (s *Station) AddFrontEnd(f *frontend.FrontEnd) error {
	if err := s.taken(f.Name()); err != nil {
		return err
	}
	s.FrontEnds[f.Name()] = f
	return nil
}

// AddMeasurementGroup adds a measurement group.  Every channel must be a
// "counter/role" of the station
func (s *Station) AddMeasurementGroup(m *MeasurementGroup) error {
	if err := s.taken(m.Name()); err != nil {
		return err
	}
	for _, ch := range m.Channels() {
		if _, err := s.Channel(ch); err != nil {
			return fmt.Errorf("measurement group %s: %w", m.Name(), err)
		}
	}
	s.MeasurementGroups[m.Name()] = m
	return nil
}

// Channel returns a function reading a "counter/role" channel
func (s *Station) Channel(ref string) (func() (float64, error), error) {
	i := strings.LastIndex(ref, "/")
	if i <= 0 {
		return nil, fmt.Errorf("channel %q is not counter/role", ref)
	}
	c, ok := s.Counters[ref[:i]]
	if !ok {
		return nil, classify(fmt.Errorf("%w: counter %s", ErrUnknownElement, ref[:i]))
	}
	role := ref[i+1:]
	for _, r := range c.Roles() {
		if r == role {
			return func() (float64, error) { return c.Value(role) }, nil
		}
	}
	return nil, classify(fmt.Errorf("%w %q on counter %s", ErrUnknownAxis, role, c.Name()))
}

// Acquire reads every enabled channel of a measurement group
func (s *Station) Acquire(group string) (map[string]float64, error) {
	m, ok := s.MeasurementGroups[group]
	if !ok {
		return nil, classify(fmt.Errorf("%w: measurement group %s", ErrUnknownElement, group))
	}
	out := map[string]float64{}
	for _, ch := range m.Channels() {
		if !m.Enabled(ch) {
			continue
		}
		read, err := s.Channel(ch)
		if err != nil {
			return nil, err
		}
		if out[ch], err = read(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", ch, err)
		}
	}
	return out, nil
}

// Env returns an environment variable
func (s *Station) Env(key string) (interface{}, bool) {
	s.envMu.Lock()
	defer s.envMu.Unlock()
	v, ok := s.env[key]
	return v, ok
}

// SetEnv sets an environment variable
func (s *Station) SetEnv(key string, v interface{}) {
	s.envMu.Lock()
	defer s.envMu.Unlock()
	s.env[key] = v
}

// Environment returns a copy of the environment
func (s *Station) Environment() map[string]interface{} {
	s.envMu.Lock()
	defer s.envMu.Unlock()
	out := make(map[string]interface{}, len(s.env))
	for k, v := range s.env {
		out[k] = v
	}
	return out
}

// SelectMeasurementGroup makes group the active measurement group
func (s *Station) SelectMeasurementGroup(group string) error {
	if _, ok := s.MeasurementGroups[group]; !ok {
		return classify(fmt.Errorf("%w: measurement group %s", ErrUnknownElement, group))
	}
	s.SetEnv(EnvActiveMntGrp, group)
	return nil
}

// Controllers returns the names of every element with a controller, sorted:
// motors, groups, counters and front ends
func (s *Station) Controllers() []string {
	var out []string
	for k := range s.Motors {
		out = append(out, k)
	}
	for k := range s.Groups {
		out = append(out, k)
	}
	for k := range s.Counters {
		out = append(out, k)
	}
	for k := range s.FrontEnds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
