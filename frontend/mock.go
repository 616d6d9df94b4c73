package frontend

import (
	"errors"
	"fmt"
	"sync"
)

// ErrRefused is returned by MockEPS when asked to open a front end that is
// interlocked, has its first valve closed, or is disabled
var ErrRefused = errors.New("EPS refused to open the front end")

// MockEPS is an in-memory EPS device serving one front end
type MockEPS struct {
	mu       sync.Mutex
	cfg      Config
	state    State
	stateErr error
	attrs    map[string]bool
}

// NewMockEPS returns a healthy, closed mock EPS for the attributes of cfg
func NewMockEPS(cfg Config) *MockEPS {
	m := &MockEPS{cfg: cfg, state: On, attrs: map[string]bool{}}
	for _, a := range []string{cfg.IsOpenedAttr, cfg.IsInterlockedAttr, cfg.IsFirstValveClosedAttr, cfg.IsControlDisabledAttr} {
		if a != "" {
			m.attrs[a] = false
		}
	}
	return m
}

// State satisfies Device
func (m *MockEPS) State() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.stateErr
}

// SetState sets the device state, and the error returned reading it
func (m *MockEPS) SetState(s State, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state, m.stateErr = s, err
}

// ReadBool satisfies Device
func (m *MockEPS) ReadBool(attr string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.attrs[attr]
	if !ok {
		return false, fmt.Errorf("attribute %q not found", attr)
	}
	return v, nil
}

// WriteBool satisfies Device.  Writing the open or close attribute moves the
// front end; any other attribute is set directly
func (m *MockEPS) WriteBool(attr string, v bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch attr {
	case m.cfg.OpenAttr:
		if v {
			for _, a := range []string{m.cfg.IsInterlockedAttr, m.cfg.IsFirstValveClosedAttr, m.cfg.IsControlDisabledAttr} {
				if m.attrs[a] {
					return fmt.Errorf("%w: %s is set", ErrRefused, a)
				}
			}
			m.attrs[m.cfg.IsOpenedAttr] = true
		}
	case m.cfg.CloseAttr:
		if v {
			m.attrs[m.cfg.IsOpenedAttr] = false
		}
	default:
		if _, ok := m.attrs[attr]; !ok {
			return fmt.Errorf("attribute %q not found", attr)
		}
		m.attrs[attr] = v
	}
	return nil
}
