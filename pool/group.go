package pool

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/alba-synchrotron/beamctl/generichttp/motion"
	"github.com/alba-synchrotron/beamctl/mntgrp"
	"github.com/alba-synchrotron/beamctl/pseudomotor"
	"github.com/alba-synchrotron/beamctl/util"
)

// Physical binds a motor role of a pseudomotor controller to an axis of a
// motion controller
type Physical struct {
	// Name is how the motor is known on the station, "controller/axis"
	Name string

	// Mov serves the axis
	Mov motion.Mover

	// Axis is the axis name on Mov
	Axis string

	// Limit is the software travel range of the motor, enforced when it is Set
	Limit util.Limiter
}

// GroupOptions holds the optional collaborators of a Group
type GroupOptions struct {
	// Type and Properties are how the controller was built, kept for backups
	Type       string
	Properties pseudomotor.Properties

	// Limits are the travel ranges of the pseudo axes, by role
	Limits map[string]util.Limiter

	// Store memorizes controller parameters when not nil
	Store *mntgrp.Store

	// Metrics records positions, moves and calculation errors when not nil
	Metrics *Metrics

	// Logger is used for errors; nil is the standard logger
	Logger *log.Logger
}

// Group exposes the pseudo axes of a controller as a motion controller.
// Calls into the controller are serialized, so parameters of the controller
// never change during a transform
type Group struct {
	mu sync.Mutex

	name string
	ctl  pseudomotor.Controller
	phys []Physical
	opts GroupOptions
	log  *log.Logger
}

// NewGroup binds ctl to phys, one Physical per motor role in order
func NewGroup(name string, ctl pseudomotor.Controller, phys []Physical, opts GroupOptions) (*Group, error) {
	if n := len(ctl.MotorRoles()); n != len(phys) {
		return nil, fmt.Errorf("group %s: controller has %d motor roles, %d motors bound", name, n, len(phys))
	}
	if opts.Limits == nil {
		opts.Limits = map[string]util.Limiter{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	g := &Group{name: name, ctl: ctl, phys: phys, opts: opts, log: opts.Logger}
	if a, ok := ctl.(interface{ AttachAxes(pseudomotor.PseudoAxes) }); ok {
		a.AttachAxes(groupAxes{g})
	}
	return g, nil
}

// Name returns the group name
func (g *Group) Name() string { return g.name }

// Type returns the controller type the group was configured with
func (g *Group) Type() string { return g.opts.Type }

// Properties returns the controller properties the group was configured with
func (g *Group) Properties() pseudomotor.Properties { return g.opts.Properties }

// Controller returns the pseudomotor controller
func (g *Group) Controller() pseudomotor.Controller { return g.ctl }

// Physicals returns the bound motors in motor role order
func (g *Group) Physicals() []Physical {
	out := make([]Physical, len(g.phys))
	copy(out, g.phys)
	return out
}

// Axes returns the pseudo roles, satisfying motion.AxisLister
func (g *Group) Axes() []string { return g.ctl.PseudoRoles() }

// Limits returns the pseudo axis limits by role
func (g *Group) Limits() map[string]util.Limiter {
	out := make(map[string]util.Limiter, len(g.opts.Limits))
	for k, v := range g.opts.Limits {
		out[k] = v
	}
	return out
}

func (g *Group) index(role string) (int, error) {
	i := pseudomotor.RoleIndex(g.ctl.PseudoRoles(), role)
	if i == 0 {
		return 0, classify(fmt.Errorf("%w %q on group %s", ErrUnknownAxis, role, g.name))
	}
	return i - 1, nil
}

// readPhysicals reads every bound motor.  Caller holds mu
func (g *Group) readPhysicals() ([]float64, error) {
	out := make([]float64, len(g.phys))
	for i, p := range g.phys {
		pos, err := p.Mov.GetPos(p.Axis)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p.Name, err)
		}
		out[i] = pos
	}
	return out, nil
}

// pseudos reads the motors and inverts.  Caller holds mu
func (g *Group) pseudos() ([]float64, []float64, error) {
	phys, err := g.readPhysicals()
	if err != nil {
		return nil, nil, err
	}
	pseudos, err := g.ctl.CalcAllPseudo(phys, nil)
	if err != nil {
		g.opts.Metrics.failed(g.name)
		return nil, nil, classify(err)
	}
	g.opts.Metrics.observe(g.name, g.ctl.PseudoRoles(), pseudos)
	return pseudos, phys, nil
}

// GetPos returns the position of a pseudo axis
func (g *Group) GetPos(role string) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i, err := g.index(role)
	if err != nil {
		return 0, err
	}
	pseudos, _, err := g.pseudos()
	if err != nil {
		return 0, err
	}
	return pseudos[i], nil
}

// Positions returns all pseudo positions in role order
func (g *Group) Positions() ([]float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	pseudos, _, err := g.pseudos()
	return pseudos, err
}

// MoveAbs moves a pseudo axis to pos, keeping the other pseudo axes where
// they are.  Every physical target is checked against its motor limits
// before any motor moves
func (g *Group) MoveAbs(role string, pos float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.moveAbs(role, pos)
}

func (g *Group) moveAbs(role string, pos float64) error {
	i, err := g.index(role)
	if err != nil {
		return err
	}
	if lim, ok := g.opts.Limits[role]; ok && lim.Set() && !lim.Check(pos) {
		return classify(fmt.Errorf("%w: %s/%s to %g, limits [%g, %g]", motion.ErrLimit, g.name, role, pos, lim.Min, lim.Max))
	}
	pseudos, phys, err := g.pseudos()
	if err != nil {
		return err
	}
	pseudos[i] = pos
	targets, err := g.ctl.CalcAllPhysical(pseudos, phys)
	if err != nil {
		g.opts.Metrics.failed(g.name)
		g.log.Printf("group %s: moving %s to %g: %v", g.name, role, pos, err)
		return classify(err)
	}
	for j, p := range g.phys {
		if p.Limit.Set() && !p.Limit.Check(targets[j]) {
			return classify(fmt.Errorf("%w: %s would move %s to %g, limits [%g, %g]",
				motion.ErrLimit, role, p.Name, targets[j], p.Limit.Min, p.Limit.Max))
		}
	}
	for j, p := range g.phys {
		if err = p.Mov.MoveAbs(p.Axis, targets[j]); err != nil {
			return fmt.Errorf("moving %s: %w", p.Name, err)
		}
	}
	g.opts.Metrics.moved(g.name, role)
	g.opts.Metrics.observe(g.name, g.ctl.PseudoRoles(), pseudos)
	return nil
}

// MoveRel moves a pseudo axis by delta
func (g *Group) MoveRel(role string, delta float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	i, err := g.index(role)
	if err != nil {
		return err
	}
	pseudos, _, err := g.pseudos()
	if err != nil {
		return err
	}
	return g.moveAbs(role, pseudos[i]+delta)
}

// Home is not supported on pseudo axes
func (g *Group) Home(role string) error {
	return classify(fmt.Errorf("home %s/%s: %w", g.name, role, ErrNotSupported))
}

// Stop stops every bound motor that can be stopped
func (g *Group) Stop(role string) error {
	if _, err := g.index(role); err != nil {
		return err
	}
	var errs []error
	for _, p := range g.phys {
		if s, ok := p.Mov.(motion.Stopper); ok {
			if err := s.Stop(p.Axis); err != nil {
				errs = append(errs, fmt.Errorf("stopping %s: %w", p.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// CalcPhysical returns the physical positions for a full pseudo vector
// without moving, satisfying motion.Calculator
func (g *Group) CalcPhysical(pseudos []float64) ([]float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	phys, err := g.readPhysicals()
	if err != nil {
		phys = nil
	}
	out, err := g.ctl.CalcAllPhysical(pseudos, phys)
	if err != nil {
		g.opts.Metrics.failed(g.name)
	}
	return out, classify(err)
}

// CalcPseudo returns the pseudo positions for a full physical vector
func (g *Group) CalcPseudo(physicals []float64) ([]float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out, err := g.ctl.CalcAllPseudo(physicals, nil)
	if err != nil {
		g.opts.Metrics.failed(g.name)
	}
	return out, classify(err)
}

// ParamNames satisfies motion.Parameterizer
func (g *Group) ParamNames() []string {
	p, ok := g.ctl.(pseudomotor.Parameterized)
	if !ok {
		return []string{}
	}
	out := []string{}
	for _, param := range p.Params() {
		out = append(out, param.String())
	}
	return out
}

// GetParam returns a controller parameter by name
func (g *Group) GetParam(name string) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, param, err := g.param(name)
	if err != nil {
		return 0, err
	}
	v, err := p.GetParam(param)
	return v, classify(err)
}

// SetParam sets a controller parameter by name, memorizing it when the group
// has a store
func (g *Group) SetParam(name string, v float64) error {
	g.mu.Lock()
	p, param, err := g.param(name)
	if err == nil {
		err = classify(p.SetParam(param, v))
	}
	g.mu.Unlock()
	if err != nil || g.opts.Store == nil {
		return err
	}
	if err = g.opts.Store.SaveGroup(g); err != nil {
		g.log.Printf("group %s: memorizing %s: %v", g.name, name, err)
		return err
	}
	return nil
}

func (g *Group) param(name string) (pseudomotor.Parameterized, pseudomotor.Param, error) {
	param, err := pseudomotor.ParseParam(name)
	if err != nil {
		return nil, 0, classify(err)
	}
	p, ok := g.ctl.(pseudomotor.Parameterized)
	if !ok {
		return nil, 0, classify(fmt.Errorf("group %s: %w", g.name, pseudomotor.ErrUnknownParam))
	}
	return p, param, nil
}

// Params returns the current controller parameters by name
func (g *Group) Params() (map[string]float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := map[string]float64{}
	p, ok := g.ctl.(pseudomotor.Parameterized)
	if !ok {
		return out, nil
	}
	for _, param := range p.Params() {
		v, err := p.GetParam(param)
		if err != nil {
			return nil, err
		}
		out[param.String()] = v
	}
	return out, nil
}

// Configuration returns the parameters as a JSON object, satisfying
// mntgrp.Configurable
func (g *Group) Configuration() (string, error) {
	params, err := g.Params()
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(params)
	return string(b), err
}

// SetConfiguration sets every parameter in a JSON object
func (g *Group) SetConfiguration(conf string) error {
	params := map[string]float64{}
	if err := json.Unmarshal([]byte(conf), &params); err != nil {
		return fmt.Errorf("group %s configuration: %w", g.name, err)
	}
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, name := range names {
		p, param, err := g.param(name)
		if err != nil {
			return err
		}
		if err = p.SetParam(param, params[name]); err != nil {
			return classify(err)
		}
	}
	return nil
}

// LoadMemorized applies the memorized parameters from the store, if any
func (g *Group) LoadMemorized() error {
	if g.opts.Store == nil || len(g.ParamNames()) == 0 {
		return nil
	}
	_, err := g.opts.Store.Apply(g)
	if errors.Is(err, mntgrp.ErrNotSaved) {
		return nil
	}
	return err
}

// groupAxes is the view of the pseudo axes handed to controllers that
// validate the state before a forward transform.  It is only called from
// inside a transform, with mu held, and so never locks
type groupAxes struct{ g *Group }

func (a groupAxes) PseudoLimits(role string) (util.Limiter, bool) {
	l, ok := a.g.opts.Limits[role]
	return l, ok
}

func (a groupAxes) PseudoPosition(role string) (float64, error) {
	i := pseudomotor.RoleIndex(a.g.ctl.PseudoRoles(), role)
	if i == 0 {
		return 0, fmt.Errorf("%w %q", ErrUnknownAxis, role)
	}
	phys, err := a.g.readPhysicals()
	if err != nil {
		return 0, err
	}
	pseudos, err := a.g.ctl.CalcAllPseudo(phys, nil)
	if err != nil {
		return 0, err
	}
	return pseudos[i-1], nil
}
