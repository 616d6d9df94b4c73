package pool

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi"

	"github.com/alba-synchrotron/beamctl/generichttp"
	"github.com/alba-synchrotron/beamctl/mntgrp"
)

// HTTPCounter wraps a pseudo counter group with HTTP
type HTTPCounter struct {
	*CounterGroup

	RouteTable generichttp.RouteTable
}

// NewHTTPCounter returns a new HTTP wrapper with the route table pre-configured
func NewHTTPCounter(c *CounterGroup) HTTPCounter {
	rt := generichttp.RouteTable{
		{Method: http.MethodGet, Path: "/roles"}: func(w http.ResponseWriter, r *http.Request) {
			generichttp.RespondJSON(w, c.Roles())
		},
		{Method: http.MethodGet, Path: "/counter/{role}"}: func(w http.ResponseWriter, r *http.Request) {
			generichttp.GetFloat(func() (float64, error) { return c.Value(chi.URLParam(r, "role")) })(w, r)
		},
	}
	return HTTPCounter{CounterGroup: c, RouteTable: rt}
}

// RT satisfies generichttp.HTTPer
func (h HTTPCounter) RT() generichttp.RouteTable { return h.RouteTable }

// Channel is the state of one channel of a measurement group
type Channel struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// HTTPMeasurementGroup wraps a measurement group with HTTP
type HTTPMeasurementGroup struct {
	*MeasurementGroup

	RouteTable generichttp.RouteTable
}

// NewHTTPMeasurementGroup returns a new HTTP wrapper.  The save and load
// routes are only present when store is not nil
func NewHTTPMeasurementGroup(m *MeasurementGroup, store *mntgrp.Store) HTTPMeasurementGroup {
	rt := generichttp.RouteTable{
		{Method: http.MethodGet, Path: "/channels"}: func(w http.ResponseWriter, r *http.Request) {
			var out []Channel
			for _, ch := range m.Channels() {
				out = append(out, Channel{Name: ch, Enabled: m.Enabled(ch)})
			}
			generichttp.RespondJSON(w, out)
		},
		{Method: http.MethodPost, Path: "/enable"}:  toggle(m.Enable, m.EnableAll),
		{Method: http.MethodPost, Path: "/disable"}: toggle(m.Disable, m.DisableAll),
		{Method: http.MethodGet, Path: "/configuration"}: generichttp.GetString(m.Configuration),
		{Method: http.MethodPost, Path: "/configuration"}: func(w http.ResponseWriter, r *http.Request) {
			s := generichttp.StrT{}
			err := json.NewDecoder(r.Body).Decode(&s)
			defer r.Body.Close()
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if err = m.SetConfiguration(s.Str); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusOK)
		},
	}
	if store != nil {
		rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/save"}] = func(w http.ResponseWriter, r *http.Request) {
			if err := store.SaveGroup(m); err != nil {
				generichttp.Error(w, err)
				return
			}
			w.WriteHeader(http.StatusOK)
		}
		rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/load"}] = func(w http.ResponseWriter, r *http.Request) {
			changed, err := store.Apply(m)
			if err != nil {
				generichttp.Error(w, classifyStore(err))
				return
			}
			generichttp.RespondJSON(w, generichttp.BoolT{Bool: changed})
		}
	}
	return HTTPMeasurementGroup{MeasurementGroup: m, RouteTable: rt}
}

// RT satisfies generichttp.HTTPer
func (h HTTPMeasurementGroup) RT() generichttp.RouteTable { return h.RouteTable }

// toggle parses {'str': "ch1, ch2"} and applies fcn to the channels, replying
// with those the group does not have.  An empty list applies to every channel
func toggle(fcn func(...string) []string, all func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := generichttp.StrT{}
		err := json.NewDecoder(r.Body).Decode(&s)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		chs := splitList(s.Str)
		if len(chs) == 0 {
			all()
			generichttp.RespondJSON(w, []string{})
			return
		}
		skipped := fcn(chs...)
		if skipped == nil {
			skipped = []string{}
		}
		generichttp.RespondJSON(w, skipped)
	}
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
}

func classifyStore(err error) error {
	if errors.Is(err, mntgrp.ErrNotSaved) {
		return generichttp.WithStatus(http.StatusNotFound, err)
	}
	return err
}

// HTTPStation serves the station wide routes: the environment, the active
// measurement group and acquisition
type HTTPStation struct {
	*Station

	RouteTable generichttp.RouteTable
}

// NewHTTPStation returns a new HTTP wrapper with the route table pre-configured
func NewHTTPStation(s *Station) HTTPStation {
	rt := generichttp.RouteTable{
		{Method: http.MethodGet, Path: "/env"}: func(w http.ResponseWriter, r *http.Request) {
			generichttp.RespondJSON(w, s.Environment())
		},
		{Method: http.MethodGet, Path: "/mntgrp"}: generichttp.GetString(func() (string, error) {
			v, ok := s.Env(EnvActiveMntGrp)
			if !ok {
				return "", nil
			}
			return fmt.Sprint(v), nil
		}),
		{Method: http.MethodPost, Path: "/mntgrp"}: func(w http.ResponseWriter, r *http.Request) {
			str := generichttp.StrT{}
			err := json.NewDecoder(r.Body).Decode(&str)
			defer r.Body.Close()
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if err = s.SelectMeasurementGroup(str.Str); err != nil {
				generichttp.Error(w, err)
				return
			}
			w.WriteHeader(http.StatusOK)
		},
		{Method: http.MethodGet, Path: "/acquire"}: func(w http.ResponseWriter, r *http.Request) {
			group := r.URL.Query().Get("group")
			if group == "" {
				v, ok := s.Env(EnvActiveMntGrp)
				if !ok {
					http.Error(w, "no measurement group is selected", http.StatusBadRequest)
					return
				}
				group = fmt.Sprint(v)
			}
			out, err := s.Acquire(group)
			if err != nil {
				generichttp.Error(w, err)
				return
			}
			generichttp.RespondJSON(w, out)
		},
	}
	return HTTPStation{Station: s, RouteTable: rt}
}

// RT satisfies generichttp.HTTPer
func (h HTTPStation) RT() generichttp.RouteTable { return h.RouteTable }
