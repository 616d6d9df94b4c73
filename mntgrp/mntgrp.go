// Package mntgrp stores configurations of named groups in an INI file, one
// section per group with a single configuration field, and applies them
// back.
//
// A file looks like
//
//	[mg_bl22]
//	configuration = {"ct01": true, "ct02": false}
package mntgrp

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/ini.v1"
)

const (
	field = "configuration"

	// DefaultFileName is the name of the shared default store, found next to
	// a configured store
	DefaultFileName = "mntgrp_default.cfg"

	backupLayout = "20060102_150405"
)

// ErrNotSaved is returned by Get when a group has no stored configuration
var ErrNotSaved = errors.New("the configuration file is corrupted or you did not save the configuration")

// Configurable is a group whose configuration can be read and written
type Configurable interface {
	// Name is the group name, the store lower cases it
	Name() string

	// Configuration returns the current configuration
	Configuration() (string, error)

	// SetConfiguration replaces the current configuration
	SetConfiguration(string) error
}

// Store is an INI backed configuration store.  It is safe for concurrent use
type Store struct {
	mu   sync.Mutex
	path string
	file *ini.File

	// Backups, when true, makes Save write a timestamped copy of the file
	// as it was before the change
	Backups bool

	// Now is the clock used to name backups
	Now func() time.Time

	log *log.Logger
}

// Open loads the store at path.  A missing file is an empty store, created on
// the first Save.  A nil logger logs to the standard logger
func Open(path string, l *log.Logger) (*Store, error) {
	if l == nil {
		l = log.Default()
	}
	f, err := ini.LoadSources(ini.LoadOptions{Loose: true}, path)
	if err != nil {
		return nil, fmt.Errorf("loading configuration store %s: %w", path, err)
	}
	return &Store{path: path, file: f, Now: time.Now, log: l}, nil
}

// DefaultPath returns the path of the default store in the directory of path
func DefaultPath(path string) string {
	return filepath.Join(filepath.Dir(path), DefaultFileName)
}

// Path returns the file backing the store
func (s *Store) Path() string { return s.path }

// Groups returns the names of the groups with a stored configuration
func (s *Store) Groups() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, sec := range s.file.Sections() {
		if sec.HasKey(field) {
			out = append(out, sec.Name())
		}
	}
	return out
}

// Get returns the stored configuration of group
func (s *Store) Get(group string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, err := s.file.GetSection(strings.ToLower(group))
	if err != nil {
		return "", fmt.Errorf("%s: %w", group, ErrNotSaved)
	}
	key, err := sec.GetKey(field)
	if err != nil {
		return "", fmt.Errorf("%s: %w", group, ErrNotSaved)
	}
	return key.Value(), nil
}

// Save stores the configuration of group and rewrites the file
func (s *Store) Save(group, config string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Backups {
		if err := s.backup(); err != nil {
			return err
		}
	}
	s.file.Section(strings.ToLower(group)).Key(field).SetValue(config)
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := s.file.SaveTo(s.path); err != nil {
		return fmt.Errorf("saving configuration store %s: %w", s.path, err)
	}
	return nil
}

// backup writes the current contents to bkp_<timestamp>_<file> beside the
// store.  Caller holds mu
func (s *Store) backup() error {
	dir, name := filepath.Split(s.path)
	bkp := filepath.Join(dir, "bkp_"+s.Now().Format(backupLayout)+"_"+name)
	if err := s.file.SaveTo(bkp); err != nil {
		return fmt.Errorf("creating backup %s: %w", bkp, err)
	}
	s.log.Printf("created backup file %s", bkp)
	return nil
}

// SaveGroup stores the current configuration of g
func (s *Store) SaveGroup(g Configurable) error {
	c, err := g.Configuration()
	if err != nil {
		return err
	}
	return s.Save(g.Name(), c)
}

// Apply loads the stored configuration of g and writes it to g if it
// differs from the current one.  It returns true if g was changed
func (s *Store) Apply(g Configurable) (bool, error) {
	stored, err := s.Get(g.Name())
	if err != nil {
		return false, err
	}
	curr, err := g.Configuration()
	if err != nil {
		return false, err
	}
	if curr == stored {
		s.log.Printf("the current configuration of %s is the same as the backup", g.Name())
		return false, nil
	}
	s.log.Printf("the current configuration of %s is not the same as the backup, loading backup", g.Name())
	if err = g.SetConfiguration(stored); err != nil {
		return false, err
	}
	return true, nil
}
