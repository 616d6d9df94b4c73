package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/alba-synchrotron/beamctl/axis"
	"github.com/alba-synchrotron/beamctl/backup"
	"github.com/alba-synchrotron/beamctl/frontend"
	"github.com/alba-synchrotron/beamctl/generichttp"
	"github.com/alba-synchrotron/beamctl/generichttp/motion"
	"github.com/alba-synchrotron/beamctl/mntgrp"
	"github.com/alba-synchrotron/beamctl/pool"
	"github.com/alba-synchrotron/beamctl/pseudocounter"
	"github.com/alba-synchrotron/beamctl/pseudomotor"
	"github.com/alba-synchrotron/beamctl/server/middleware/locker"
	"github.com/alba-synchrotron/beamctl/util"
)

// Minmax holds a min and max value
type Minmax struct {
	Min float64 `yaml:"Min" koanf:"Min"`
	Max float64 `yaml:"Max" koanf:"Max"`
}

// MotorSetup describes a physical motion controller
type MotorSetup struct {
	Name string `yaml:"Name" koanf:"Name"`

	// Type is mock or remote
	Type string `yaml:"Type" koanf:"Type"`

	// Addr is the root URL of a remote controller, e.g. http://bl22:8000/mirror
	Addr string `yaml:"Addr" koanf:"Addr"`

	// Endpoint is the path the controller is served on, Name if empty
	Endpoint string `yaml:"Endpoint" koanf:"Endpoint"`

	// Axes are the axis names.  A remote controller cannot enumerate its
	// axes, so they must be listed
	Axes []string `yaml:"Axes" koanf:"Axes"`

	Limits map[string]Minmax `yaml:"Limits" koanf:"Limits"`

	// MaxRate is the most requests per second sent to a remote controller,
	// 0 for unlimited
	MaxRate float64 `yaml:"MaxRate" koanf:"MaxRate"`
}

// PseudoSetup describes a pseudomotor group
type PseudoSetup struct {
	Name     string `yaml:"Name" koanf:"Name"`
	Type     string `yaml:"Type" koanf:"Type"`
	Endpoint string `yaml:"Endpoint" koanf:"Endpoint"`

	// Properties are handed to the controller, e.g. dist1 and dist2 of a
	// two legged table
	Properties map[string]interface{} `yaml:"Properties" koanf:"Properties"`

	// Motors binds each motor role to a "motor/axis" of the station
	Motors map[string]string `yaml:"Motors" koanf:"Motors"`

	// Limits are the travel ranges of the pseudo axes, by role
	Limits map[string]Minmax `yaml:"Limits" koanf:"Limits"`
}

// CounterSetup describes a pseudo counter group
type CounterSetup struct {
	Name     string `yaml:"Name" koanf:"Name"`
	Type     string `yaml:"Type" koanf:"Type"`
	Endpoint string `yaml:"Endpoint" koanf:"Endpoint"`

	// Inputs binds each input role to a "motor/axis" of the station
	Inputs map[string]string `yaml:"Inputs" koanf:"Inputs"`
}

// FrontEndSetup describes a front end and the EPS device serving it
type FrontEndSetup struct {
	Name     string `yaml:"Name" koanf:"Name"`
	Endpoint string `yaml:"Endpoint" koanf:"Endpoint"`

	// Addr is the root URL of the EPS device on another node; empty for a
	// mock device
	Addr    string  `yaml:"Addr" koanf:"Addr"`
	MaxRate float64 `yaml:"MaxRate" koanf:"MaxRate"`

	EPS frontend.Config `yaml:"EPS" koanf:"EPS"`
}

// MeasurementGroupSetup describes a measurement group
type MeasurementGroupSetup struct {
	Name     string `yaml:"Name" koanf:"Name"`
	Endpoint string `yaml:"Endpoint" koanf:"Endpoint"`

	// Channels are "counter/role" references
	Channels []string `yaml:"Channels" koanf:"Channels"`
}

// Config is a struct that holds the initialization parameters of the station.
// It is to be populated by a koanf unmarshal call
type Config struct {
	// Addr is the address to listen at
	Addr string `yaml:"Addr" koanf:"Addr"`

	// Name is the name of the station, reported in backups
	Name string `yaml:"Name" koanf:"Name"`

	// Mock replaces every remote motor and EPS device with an in-memory one
	Mock bool `yaml:"Mock" koanf:"Mock"`

	// Memory is the INI file memorized configurations are kept in, none if empty
	Memory string `yaml:"Memory" koanf:"Memory"`

	// MemoryBackups keeps a timestamped copy of Memory before every save
	MemoryBackups bool `yaml:"MemoryBackups" koanf:"MemoryBackups"`

	Motors            []MotorSetup            `yaml:"Motors" koanf:"Motors"`
	Pseudos           []PseudoSetup           `yaml:"Pseudos" koanf:"Pseudos"`
	Counters          []CounterSetup          `yaml:"Counters" koanf:"Counters"`
	FrontEnds         []FrontEndSetup         `yaml:"FrontEnds" koanf:"FrontEnds"`
	MeasurementGroups []MeasurementGroupSetup `yaml:"MeasurementGroups" koanf:"MeasurementGroups"`
}

func limiters(in map[string]Minmax) map[string]util.Limiter {
	out := make(map[string]util.Limiter, len(in))
	for k, v := range in {
		out[k] = util.Limiter{Min: v.Min, Max: v.Max}
	}
	return out
}

func endpoint(ep, name string) string {
	if ep == "" {
		ep = name
	}
	return generichttp.SubMuxSanitize(ep)
}

// BuildStation creates every element of the station, in dependency order:
// motors, pseudomotor groups and counters bound to them, front ends, and
// measurement groups of the counters
func BuildStation(c Config, l *log.Logger) (*pool.Station, error) {
	s := pool.NewStation(c.Name, Version)
	s.Properties["Addr"] = c.Addr
	s.Properties["Memory"] = c.Memory
	if c.Memory != "" {
		store, err := mntgrp.Open(c.Memory, l)
		if err != nil {
			return nil, err
		}
		store.Backups = c.MemoryBackups
		s.Store = store
	}

	for _, m := range c.Motors {
		var ctl motion.Mover
		typ := m.Type
		if c.Mock {
			typ = "mock"
		}
		switch typ {
		case "mock", "":
			ctl = axis.NewMock(m.Axes...)
		case "remote":
			ctl = axis.NewRemote(m.Addr, m.MaxRate)
		default:
			return nil, fmt.Errorf("motor %s: type %q not understood, expected mock or remote", m.Name, m.Type)
		}
		err := s.AddMotor(&pool.Motor{Name: m.Name, Type: m.Type, Addr: m.Addr, Ctl: ctl, Axes: m.Axes, Limits: limiters(m.Limits)})
		if err != nil {
			return nil, err
		}
	}

	for _, p := range c.Pseudos {
		ctl, err := pseudomotor.New(p.Type, p.Properties, pseudomotor.Options{Logger: l})
		if err != nil {
			return nil, fmt.Errorf("pseudomotor %s: %w", p.Name, err)
		}
		phys, err := bind(s, p.Name, ctl.MotorRoles(), p.Motors)
		if err != nil {
			return nil, err
		}
		g, err := pool.NewGroup(p.Name, ctl, phys, pool.GroupOptions{
			Type:       p.Type,
			Properties: p.Properties,
			Limits:     limiters(p.Limits),
			Store:      s.Store,
			Metrics:    s.Metrics,
			Logger:     l,
		})
		if err != nil {
			return nil, err
		}
		if err = g.LoadMemorized(); err != nil {
			return nil, fmt.Errorf("pseudomotor %s: loading memorized parameters: %w", p.Name, err)
		}
		if err = s.AddGroup(g); err != nil {
			return nil, err
		}
	}

	for _, cs := range c.Counters {
		ctl, err := pseudocounter.New(cs.Type)
		if err != nil {
			return nil, fmt.Errorf("pseudo counter %s: %w", cs.Name, err)
		}
		inputs, err := bind(s, cs.Name, ctl.InputRoles(), cs.Inputs)
		if err != nil {
			return nil, err
		}
		cg, err := pool.NewCounterGroup(cs.Name, cs.Type, ctl, inputs)
		if err != nil {
			return nil, err
		}
		if err = s.AddCounter(cg); err != nil {
			return nil, err
		}
	}

	for _, fs := range c.FrontEnds {
		var dev frontend.Device
		if c.Mock || fs.Addr == "" {
			dev = frontend.NewMockEPS(fs.EPS)
		} else {
			dev = frontend.NewRemoteEPS(fs.Addr, fs.MaxRate)
		}
		f, err := frontend.New(fs.Name, fs.EPS, dev)
		if err != nil {
			return nil, err
		}
		if err = s.AddFrontEnd(f); err != nil {
			return nil, err
		}
	}

	for _, ms := range c.MeasurementGroups {
		mg := pool.NewMeasurementGroup(ms.Name, ms.Channels)
		if err := s.AddMeasurementGroup(mg); err != nil {
			return nil, err
		}
		if s.Store == nil {
			continue
		}
		if _, err := s.Store.Apply(mg); err != nil && !errors.Is(err, mntgrp.ErrNotSaved) {
			return nil, err
		}
	}
	return s, nil
}

// bind resolves one "motor/axis" reference per role, in role order
func bind(s *pool.Station, name string, roles []string, refs map[string]string) ([]pool.Physical, error) {
	out := make([]pool.Physical, 0, len(roles))
	for _, role := range roles {
		ref, ok := refs[role]
		if !ok {
			return nil, fmt.Errorf("%s: no motor bound to role %s", name, role)
		}
		p, err := s.Resolve(ref)
		if err != nil {
			return nil, fmt.Errorf("%s: role %s: %w", name, role, err)
		}
		out = append(out, p)
	}
	return out, nil
}

type node struct {
	endpoint   string
	httper     generichttp.HTTPer
	lock       locker.ManipulableLock
	middleware []func(http.Handler) http.Handler
}

// BuildMux serves every element of the station under its endpoint, each with
// its own lock.  The root additionally serves /endpoints, a map of every
// endpoint to its routes, /metrics, /backup and /restore
func BuildMux(c Config, s *pool.Station) (chi.Router, error) {
	var nodes []node
	for _, m := range c.Motors {
		motor := s.Motors[m.Name]
		httper := motion.NewHTTPMotionController(motor.Ctl)
		limiter := motion.LimitMiddleware{Limits: motor.Limits, Mov: motor.Ctl}
		limiter.Inject(httper)
		nodes = append(nodes, node{endpoint(m.Endpoint, m.Name), httper, locker.NewAL(),
			[]func(http.Handler) http.Handler{limiter.Check}})
	}
	for _, p := range c.Pseudos {
		g := s.Groups[p.Name]
		httper := motion.NewHTTPMotionController(g)
		motion.LimitMiddleware{Limits: g.Limits(), Mov: g}.Inject(httper)
		nodes = append(nodes, node{endpoint(p.Endpoint, p.Name), httper, locker.NewAL(), nil})
	}
	for _, cs := range c.Counters {
		nodes = append(nodes, node{endpoint(cs.Endpoint, cs.Name), pool.NewHTTPCounter(s.Counters[cs.Name]), locker.New(), nil})
	}
	for _, fs := range c.FrontEnds {
		f := s.FrontEnds[fs.Name]
		ep := endpoint(fs.Endpoint, fs.Name)
		nodes = append(nodes, node{ep, frontend.NewHTTPWrapper(f), locker.New(), nil})
		if mock, ok := f.Device().(*frontend.MockEPS); ok {
			nodes = append(nodes, node{ep + "/eps", frontend.NewHTTPDevice(mock), locker.New(), nil})
		}
	}
	for _, ms := range c.MeasurementGroups {
		mg := s.MeasurementGroups[ms.Name]
		nodes = append(nodes, node{endpoint(ms.Endpoint, ms.Name), pool.NewHTTPMeasurementGroup(mg, s.Store), locker.New(), nil})
	}
	nodes = append(nodes, node{"/station", pool.NewHTTPStation(s), locker.New(), nil})

	// make the root handler
	root := chi.NewRouter()
	root.Use(middleware.Logger)
	supergraph := map[string][]string{}
	for _, n := range nodes {
		if _, dup := supergraph[n.endpoint]; dup {
			return nil, fmt.Errorf("endpoint %s is used twice", n.endpoint)
		}
		// add the lock middleware
		locker.Inject(n.httper, n.lock)
		supergraph[n.endpoint] = n.httper.RT().Endpoints()

		r := chi.NewRouter()
		r.Use(n.middleware...)
		r.Use(n.lock.Check)
		n.httper.RT().Bind(r)
		root.Mount(n.endpoint, r)
	}
	root.Get("/endpoints", func(w http.ResponseWriter, r *http.Request) {
		generichttp.RespondJSON(w, supergraph)
	})
	root.Handle("/metrics", s.Metrics.Handler())
	root.Get("/backup", func(w http.ResponseWriter, r *http.Request) {
		d, err := backup.Take(s, time.Now())
		if err != nil {
			log.Printf("backup of %s is incomplete: %v", s.Name, err)
		}
		w.Header().Set("Content-Type", "application/json")
		if err = backup.Write(w, d); err != nil {
			log.Println(err)
		}
	})
	root.Post("/restore", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		d, err := backup.Read(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err = backup.Restore(s, d); err != nil {
			generichttp.Error(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return root, nil
}

// nodeURL converts a listen address such as ":8000" to the URL of the local
// server
func nodeURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		addr = "localhost" + addr
	}
	return "http://" + addr
}
