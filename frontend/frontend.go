// Package frontend drives the front end of a beamline, the shutter assembly
// between the storage ring and the optics, through its EPS (equipment
// protection system) device.  A front end reads 1 when open and 0 when
// closed, and is written the same way
package frontend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Labels describes the values of a front end
const Labels = "Open:1 Close:0"

var (
	// ErrInvalidValue is returned when writing anything but 0 or 1
	ErrInvalidValue = errors.New("front end accepts only 0 and 1 values")

	// ErrTimeout is returned by WaitFor when the value is not reached in time
	ErrTimeout = errors.New("timeout waiting for front end")

	// ErrPollInterval is returned by WaitFor for a poll interval <= 0
	ErrPollInterval = errors.New("poll interval must be positive")
)

// State is the state of a front end
type State int

const (
	// Unknown is the zero State
	Unknown State = iota
	// On is a healthy, controllable front end
	On
	// Alarm is a front end that cannot be operated
	Alarm
	// Fault is an EPS device in fault
	Fault
)

func (s State) String() string {
	switch s {
	case On:
		return "ON"
	case Alarm:
		return "ALARM"
	case Fault:
		return "FAULT"
	default:
		return "UNKNOWN"
	}
}

// ParseState converts a state name, case insensitive, to a State
func ParseState(s string) State {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ON":
		return On
	case "ALARM":
		return Alarm
	case "FAULT":
		return Fault
	default:
		return Unknown
	}
}

// Device is an EPS device: a state and boolean attributes
type Device interface {
	// State returns the state of the device
	State() (State, error)

	// ReadBool reads a boolean attribute
	ReadBool(attr string) (bool, error)

	// WriteBool writes a boolean attribute
	WriteBool(attr string, v bool) error
}

// Config names the EPS device and the attributes of one front end
type Config struct {
	EPSDevice string `yaml:"EPSDevice" koanf:"EPSDevice"`

	OpenAttr               string `yaml:"OpenAttr" koanf:"OpenAttr"`
	CloseAttr              string `yaml:"CloseAttr" koanf:"CloseAttr"`
	IsOpenedAttr           string `yaml:"IsOpenedAttr" koanf:"IsOpenedAttr"`
	IsInterlockedAttr      string `yaml:"IsInterlockedAttr" koanf:"IsInterlockedAttr"`
	IsFirstValveClosedAttr string `yaml:"IsFirstValveClosedAttr" koanf:"IsFirstValveClosedAttr"`
	IsControlDisabledAttr  string `yaml:"IsControlDisabledAttr" koanf:"IsControlDisabledAttr"`
}

// FrontEnd is a front end served by an EPS device
type FrontEnd struct {
	name string
	cfg  Config
	dev  Device
}

// New returns a front end.  The EPS device name must look like
// domain/family/member
func New(name string, cfg Config, dev Device) (*FrontEnd, error) {
	if parts := strings.Split(cfg.EPSDevice, "/"); len(parts) != 3 {
		return nil, fmt.Errorf("front end %s: EPS device %q is not properly set, expected domain/family/member", name, cfg.EPSDevice)
	}
	return &FrontEnd{name: name, cfg: cfg, dev: dev}, nil
}

// Name returns the front end name
func (f *FrontEnd) Name() string { return f.name }

// Device returns the EPS device serving the front end
func (f *FrontEnd) Device() Device { return f.dev }

// Config returns the configuration of the front end
func (f *FrontEnd) Config() Config { return f.cfg }

// State returns the state of the front end and a status text explaining it
func (f *FrontEnd) State() (State, string) {
	st, err := f.dev.State()
	if err != nil {
		return Alarm, fmt.Sprintf("verifying the state of EPS device %s failed:\n %v", f.cfg.EPSDevice, err)
	}
	status := fmt.Sprintf("the EPS device is in %s", st)
	checks := []struct {
		attr, msg string
	}{
		{f.cfg.IsControlDisabledAttr, "control over fe is disabled from the Control Room"},
		{f.cfg.IsFirstValveClosedAttr, "first valve of the fe is closed"},
		{f.cfg.IsInterlockedAttr, "fe is interlocked"},
	}
	for _, c := range checks {
		if c.attr == "" {
			continue
		}
		v, err := f.dev.ReadBool(c.attr)
		switch {
		case err != nil:
			st = Alarm
			status += fmt.Sprintf("\nreading %s failed: %v", c.attr, err)
		case v:
			st = Alarm
			status += "\n" + c.msg
		}
	}
	return st, status
}

// Read returns 1 if the front end is open, else 0
func (f *FrontEnd) Read() (int, error) {
	open, err := f.dev.ReadBool(f.cfg.IsOpenedAttr)
	if err != nil {
		return 0, err
	}
	if open {
		return 1, nil
	}
	return 0, nil
}

// Write opens the front end for 1 and closes it for 0
func (f *FrontEnd) Write(v int) error {
	switch v {
	case 1:
		return f.dev.WriteBool(f.cfg.OpenAttr, true)
	case 0:
		return f.dev.WriteBool(f.cfg.CloseAttr, true)
	default:
		return fmt.Errorf("%w, got %d", ErrInvalidValue, v)
	}
}

// Labels returns the meaning of the front end values
func (f *FrontEnd) Labels() string { return Labels }

// WaitFor polls the front end every poll until it reads v or ctx is done
func (f *FrontEnd) WaitFor(ctx context.Context, v int, poll time.Duration) error {
	if poll <= 0 {
		return fmt.Errorf("%w, got %v", ErrPollInterval, poll)
	}
	tick := time.NewTicker(poll)
	defer tick.Stop()
	for {
		curr, err := f.Read()
		if err != nil {
			return err
		}
		if curr == v {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w %s to read %d: %v", ErrTimeout, f.name, v, ctx.Err())
		case <-tick.C:
		}
	}
}
