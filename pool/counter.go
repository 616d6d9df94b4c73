package pool

import (
	"fmt"
	"sync"

	"github.com/alba-synchrotron/beamctl/pseudocounter"
)

// CounterGroup binds a pseudo counter controller to the motors it reads
type CounterGroup struct {
	mu sync.Mutex

	name   string
	typ    string
	ctl    pseudocounter.Controller
	inputs []Physical
}

// NewCounterGroup binds ctl to inputs, one Physical per input role in order
func NewCounterGroup(name, typ string, ctl pseudocounter.Controller, inputs []Physical) (*CounterGroup, error) {
	if n := len(ctl.InputRoles()); n != len(inputs) {
		return nil, fmt.Errorf("counter %s: controller has %d input roles, %d motors bound", name, n, len(inputs))
	}
	return &CounterGroup{name: name, typ: typ, ctl: ctl, inputs: inputs}, nil
}

// Name returns the counter group name
func (c *CounterGroup) Name() string { return c.name }

// Type returns the controller type the counter was configured with
func (c *CounterGroup) Type() string { return c.typ }

// Roles returns the counter roles
func (c *CounterGroup) Roles() []string { return c.ctl.CounterRoles() }

// Inputs returns the bound motors in input role order
func (c *CounterGroup) Inputs() []Physical {
	out := make([]Physical, len(c.inputs))
	copy(out, c.inputs)
	return out
}

// Value reads the inputs and returns the value of a counter role
func (c *CounterGroup) Value(role string) (float64, error) {
	idx := 0
	for i, r := range c.ctl.CounterRoles() {
		if r == role {
			idx = i + 1
		}
	}
	if idx == 0 {
		return 0, classify(fmt.Errorf("%w %q on counter %s", ErrUnknownAxis, role, c.name))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	in := make([]float64, len(c.inputs))
	for i, p := range c.inputs {
		pos, err := p.Mov.GetPos(p.Axis)
		if err != nil {
			return 0, fmt.Errorf("reading %s: %w", p.Name, err)
		}
		in[i] = pos
	}
	return c.ctl.Calc(idx, in)
}
