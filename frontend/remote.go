package frontend

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/alba-synchrotron/beamctl/generichttp"
)

// RemoteEPS is an EPS device served over HTTP by NewHTTPDevice on another node
type RemoteEPS struct {
	*generichttp.Client

	// Base is the root URL the device is served at
	Base string
}

// NewRemoteEPS returns a client for the EPS device at base
func NewRemoteEPS(base string, maxRate float64) *RemoteEPS {
	return &RemoteEPS{Client: generichttp.NewClient(maxRate), Base: strings.TrimSuffix(base, "/")}
}

// State satisfies Device
func (r *RemoteEPS) State() (State, error) {
	s := generichttp.StrT{}
	if err := r.Do(http.MethodGet, r.Base+"/state", nil, &s); err != nil {
		return Unknown, err
	}
	return ParseState(s.Str), nil
}

// ReadBool satisfies Device
func (r *RemoteEPS) ReadBool(attr string) (bool, error) {
	b := generichttp.BoolT{}
	err := r.Do(http.MethodGet, r.Base+"/attr/"+url.PathEscape(attr), nil, &b)
	return b.Bool, err
}

// WriteBool satisfies Device
func (r *RemoteEPS) WriteBool(attr string, v bool) error {
	return r.Do(http.MethodPost, r.Base+"/attr/"+url.PathEscape(attr), generichttp.BoolT{Bool: v}, nil)
}
