package axis

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/alba-synchrotron/beamctl/generichttp"
)

// Remote is a motion controller served over HTTP by another node with the
// /axis/{axis}/pos, /home and /stop routes of generichttp/motion
type Remote struct {
	*generichttp.Client

	// Base is the root URL of the remote node, e.g. http://bl22:8000/mirror
	Base string
}

// NewRemote returns a client for the motion controller at base, sending at
// most maxRate requests per second.  maxRate <= 0 is unlimited
func NewRemote(base string, maxRate float64) *Remote {
	return &Remote{Client: generichttp.NewClient(maxRate), Base: strings.TrimSuffix(base, "/")}
}

func (r *Remote) url(axis, leaf string) string {
	return r.Base + "/axis/" + url.PathEscape(axis) + "/" + leaf
}

// GetPos returns the position of an axis
func (r *Remote) GetPos(axis string) (float64, error) {
	f := generichttp.FloatT{}
	err := r.Do(http.MethodGet, r.url(axis, "pos"), nil, &f)
	return f.F64, err
}

// MoveAbs moves an axis to pos
func (r *Remote) MoveAbs(axis string, pos float64) error {
	return r.Do(http.MethodPost, r.url(axis, "pos"), generichttp.FloatT{F64: pos}, nil)
}

// MoveRel moves an axis by delta.  It is not retried once sent, a repeat
// would apply delta twice
func (r *Remote) MoveRel(axis string, delta float64) error {
	return r.Send(http.MethodPost, r.url(axis, "pos")+"?relative=true", generichttp.FloatT{F64: delta}, nil)
}

// Home homes an axis, without retries once sent
func (r *Remote) Home(axis string) error {
	return r.Send(http.MethodPost, r.url(axis, "home"), nil, nil)
}

// Stop aborts motion of an axis
func (r *Remote) Stop(axis string) error {
	return r.Do(http.MethodPost, r.url(axis, "stop"), nil, nil)
}
