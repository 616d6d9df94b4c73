package pool

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MeasurementGroup is a named set of counter channels, each enabled or not.
// Its configuration is the JSON object of channel to enabled
type MeasurementGroup struct {
	mu       sync.Mutex
	name     string
	channels []string
	enabled  map[string]bool
}

// NewMeasurementGroup returns a group with every channel enabled
func NewMeasurementGroup(name string, channels []string) *MeasurementGroup {
	m := &MeasurementGroup{name: name, enabled: map[string]bool{}}
	for _, ch := range channels {
		if _, dup := m.enabled[ch]; dup {
			continue
		}
		m.channels = append(m.channels, ch)
		m.enabled[ch] = true
	}
	return m
}

// Name satisfies mntgrp.Configurable
func (m *MeasurementGroup) Name() string { return m.name }

// Channels returns the channel names in configuration order
func (m *MeasurementGroup) Channels() []string {
	out := make([]string, len(m.channels))
	copy(out, m.channels)
	return out
}

// Enabled returns whether a channel is enabled
func (m *MeasurementGroup) Enabled(ch string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled[ch]
}

// Enable enables the channels that belong to the group and returns those
// that do not
func (m *MeasurementGroup) Enable(chs ...string) (skipped []string) {
	return m.set(true, chs)
}

// Disable disables the channels that belong to the group and returns those
// that do not
func (m *MeasurementGroup) Disable(chs ...string) (skipped []string) {
	return m.set(false, chs)
}

// EnableAll enables every channel
func (m *MeasurementGroup) EnableAll() { m.set(true, m.channels) }

// DisableAll disables every channel
func (m *MeasurementGroup) DisableAll() { m.set(false, m.channels) }

func (m *MeasurementGroup) set(state bool, chs []string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var skipped []string
	for _, ch := range chs {
		if _, ok := m.enabled[ch]; !ok {
			skipped = append(skipped, ch)
			continue
		}
		m.enabled[ch] = state
	}
	return skipped
}

// Configuration satisfies mntgrp.Configurable
func (m *MeasurementGroup) Configuration() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := json.Marshal(m.enabled)
	return string(b), err
}

// SetConfiguration satisfies mntgrp.Configurable.  Every channel in conf
// must belong to the group; channels absent from conf are left as they are
func (m *MeasurementGroup) SetConfiguration(conf string) error {
	in := map[string]bool{}
	if err := json.Unmarshal([]byte(conf), &in); err != nil {
		return fmt.Errorf("measurement group %s configuration: %w", m.name, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var unknown []string
	for ch := range in {
		if _, ok := m.enabled[ch]; !ok {
			unknown = append(unknown, ch)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("measurement group %s has no channels %v", m.name, unknown)
	}
	for ch, v := range in {
		m.enabled[ch] = v
	}
	return nil
}
