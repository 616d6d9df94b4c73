package frontend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"

	"github.com/alba-synchrotron/beamctl/generichttp"
)

// HTTPFrontEnd wraps a front end with HTTP
type HTTPFrontEnd struct {
	*FrontEnd

	RouteTable generichttp.RouteTable
}

// NewHTTPWrapper returns a new HTTP wrapper with the route table pre-configured
func NewHTTPWrapper(f *FrontEnd) HTTPFrontEnd {
	rt := generichttp.RouteTable{
		{Method: http.MethodGet, Path: "/value"}:  generichttp.GetInt(f.Read),
		{Method: http.MethodPost, Path: "/value"}: generichttp.SetInt(func(v int) error {
			err := f.Write(v)
			if errors.Is(err, ErrInvalidValue) {
				return generichttp.WithStatus(http.StatusBadRequest, err)
			}
			return err
		}),
		{Method: http.MethodGet, Path: "/labels"}: generichttp.GetString(func() (string, error) { return f.Labels(), nil }),
		{Method: http.MethodGet, Path: "/state"}: generichttp.GetString(func() (string, error) {
			st, _ := f.State()
			return st.String(), nil
		}),
		{Method: http.MethodGet, Path: "/status"}: generichttp.GetString(func() (string, error) {
			_, status := f.State()
			return status, nil
		}),
		{Method: http.MethodPost, Path: "/wait"}: waitFor(f),
	}
	return HTTPFrontEnd{FrontEnd: f, RouteTable: rt}
}

// RT satisfies generichttp.HTTPer
func (h HTTPFrontEnd) RT() generichttp.RouteTable { return h.RouteTable }

// waitFor blocks until the front end reads {'int': value}, for at most the
// timeout query parameter (default 30s), polling every poll (default 500ms)
func waitFor(f *FrontEnd) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		timeout, err := durationParam(r, "timeout", 30*time.Second)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		poll, err := durationParam(r, "poll", 500*time.Millisecond)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		i := generichttp.IntT{}
		err = json.NewDecoder(r.Body).Decode(&i)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err = f.WaitFor(ctx, i.Int, poll); err != nil {
			code := http.StatusInternalServerError
			if errors.Is(err, ErrTimeout) {
				code = http.StatusGatewayTimeout
			}
			http.Error(w, err.Error(), code)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// durationParam reads a positive duration from the query, either a Go
// duration ("250ms") or a number of seconds
func durationParam(r *http.Request, key string, def time.Duration) (time.Duration, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		sec, err2 := strconv.ParseFloat(s, 64)
		if err2 != nil {
			return 0, fmt.Errorf("%s: %w", key, err2)
		}
		d = time.Duration(sec * float64(time.Second))
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %q", key, s)
	}
	return d, nil
}

// HTTPDevice wraps an EPS device with HTTP, so a node can serve it to the
// RemoteEPS of another
type HTTPDevice struct {
	RouteTable generichttp.RouteTable
}

// NewHTTPDevice returns a new HTTP wrapper for d
func NewHTTPDevice(d Device) HTTPDevice {
	rt := generichttp.RouteTable{
		{Method: http.MethodGet, Path: "/state"}: generichttp.GetString(func() (string, error) {
			st, err := d.State()
			return st.String(), err
		}),
		{Method: http.MethodGet, Path: "/attr/{attr}"}: func(w http.ResponseWriter, r *http.Request) {
			generichttp.GetBool(func() (bool, error) { return d.ReadBool(chi.URLParam(r, "attr")) })(w, r)
		},
		{Method: http.MethodPost, Path: "/attr/{attr}"}: func(w http.ResponseWriter, r *http.Request) {
			b := generichttp.BoolT{}
			err := json.NewDecoder(r.Body).Decode(&b)
			defer r.Body.Close()
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if err = d.WriteBool(chi.URLParam(r, "attr"), b.Bool); err != nil {
				generichttp.Error(w, err)
				return
			}
			w.WriteHeader(http.StatusOK)
		},
	}
	return HTTPDevice{RouteTable: rt}
}

// RT satisfies generichttp.HTTPer
func (h HTTPDevice) RT() generichttp.RouteTable { return h.RouteTable }
