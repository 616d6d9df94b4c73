// Package axis provides physical motor controllers: an in-memory mock and a
// client for motor controllers served over HTTP by another node
package axis

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/alba-synchrotron/beamctl/generichttp"
)

// ErrUnknownAxis is returned when an axis name is not served by a controller
var ErrUnknownAxis = errors.New("unknown axis")

// Mock is a motion controller whose moves complete instantly.  Axes are
// fixed at construction and start at zero, unhomed
type Mock struct {
	sync.Mutex
	pos    map[string]float64
	homed  map[string]bool
	faults map[string]error
	moves  map[string]int
}

// NewMock returns a mock controller serving axes
func NewMock(axes ...string) *Mock {
	m := &Mock{
		pos:    make(map[string]float64),
		homed:  make(map[string]bool),
		faults: make(map[string]error),
		moves:  make(map[string]int),
	}
	for _, a := range axes {
		m.pos[a] = 0
	}
	return m
}

func (m *Mock) check(axis string) error {
	if _, ok := m.pos[axis]; !ok {
		return generichttp.WithStatus(http.StatusNotFound, fmt.Errorf("%w %q", ErrUnknownAxis, axis))
	}
	return m.faults[axis]
}

// Axes returns the sorted axis names
func (m *Mock) Axes() []string {
	m.Lock()
	defer m.Unlock()
	out := make([]string, 0, len(m.pos))
	for a := range m.pos {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// GetPos returns the position of an axis
func (m *Mock) GetPos(axis string) (float64, error) {
	m.Lock()
	defer m.Unlock()
	if err := m.check(axis); err != nil {
		return 0, err
	}
	return m.pos[axis], nil
}

// MoveAbs moves an axis to pos
func (m *Mock) MoveAbs(axis string, pos float64) error {
	m.Lock()
	defer m.Unlock()
	if err := m.check(axis); err != nil {
		return err
	}
	m.pos[axis] = pos
	m.moves[axis]++
	return nil
}

// MoveRel moves an axis by delta
func (m *Mock) MoveRel(axis string, delta float64) error {
	m.Lock()
	defer m.Unlock()
	if err := m.check(axis); err != nil {
		return err
	}
	m.pos[axis] += delta
	m.moves[axis]++
	return nil
}

// Home sends an axis to zero and marks it homed
func (m *Mock) Home(axis string) error {
	m.Lock()
	defer m.Unlock()
	if err := m.check(axis); err != nil {
		return err
	}
	m.pos[axis] = 0
	m.homed[axis] = true
	return nil
}

// Homed returns true if the axis has been homed
func (m *Mock) Homed(axis string) bool {
	m.Lock()
	defer m.Unlock()
	return m.homed[axis]
}

// Stop is a no-op, moves are instant
func (m *Mock) Stop(axis string) error {
	m.Lock()
	defer m.Unlock()
	return m.check(axis)
}

// SetFault makes every subsequent call on axis fail with err; a nil err
// clears the fault
func (m *Mock) SetFault(axis string, err error) {
	m.Lock()
	defer m.Unlock()
	if err == nil {
		delete(m.faults, axis)
		return
	}
	m.faults[axis] = err
}

// Moves returns the number of moves commanded on an axis
func (m *Mock) Moves(axis string) int {
	m.Lock()
	defer m.Unlock()
	return m.moves[axis]
}
