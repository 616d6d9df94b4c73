// Package locker provides an HTTP middleware which allows an HTTPHandler to be locked, returning 423 (locked)
package locker

import (
	"encoding/json"
	"go/types"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi"

	"github.com/alba-synchrotron/beamctl/generichttp"
)

// ManipulableLock is a lock that can be manipulated over HTTP and used as
// middleware
type ManipulableLock interface {
	// Check is the middleware
	Check(http.Handler) http.Handler

	// Inject adds the routes used to read and set the lock
	Inject(generichttp.HTTPer)
}

// Inject adds the lock routes of l to other
func Inject(other generichttp.HTTPer, l ManipulableLock) {
	l.Inject(other)
}

// Locker is a type which behaves like a sync.Mutex without the blocking,
// and holds a list of path fragments not to protect
type Locker struct {
	mu       sync.RWMutex
	isLocked bool

	// DoNotProtect is a list of path fragments not to apply the lock to
	DoNotProtect []string
}

// New returns a new Locker with DoNotProtect prepopulated with "lock"
func New() *Locker {
	return &Locker{DoNotProtect: []string{"lock"}}
}

// Lock the locker
func (l *Locker) Lock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.isLocked = true
}

// Unlock the locker
func (l *Locker) Unlock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.isLocked = false
}

// Locked returns true if the locker is locked
func (l *Locker) Locked() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.isLocked
}

// Check is an HTTP middleware that returns http.StatusLocked if Locked() is
// true for a mutating request, otherwise passes down the line
func (l *Locker) Check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && l.Locked() && protected(r.URL.Path, l.DoNotProtect) {
			w.WriteHeader(http.StatusLocked)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Inject adds GET and POST /lock to other
func (l *Locker) Inject(other generichttp.HTTPer) {
	rt := other.RT()
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/lock"}] = l.HTTPGet
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/lock"}] = l.HTTPSet
}

// HTTPSet calls Lock or Unlock based on json:bool on the request body
func (l *Locker) HTTPSet(w http.ResponseWriter, r *http.Request) {
	b := generichttp.BoolT{}
	err := json.NewDecoder(r.Body).Decode(&b)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if b.Bool {
		l.Lock()
	} else {
		l.Unlock()
	}
	w.WriteHeader(http.StatusOK)
}

// HTTPGet returns Locked() over HTTP as JSON
func (l *Locker) HTTPGet(w http.ResponseWriter, r *http.Request) {
	hp := generichttp.HumanPayload{T: types.Bool, Bool: l.Locked()}
	hp.EncodeAndRespond(w, r)
}

// AxisLocker locks individual axes of a motion controller; a request under
// /axis/{axis}/ is refused while that axis is locked
type AxisLocker struct {
	mu     sync.RWMutex
	locked map[string]bool

	// DoNotProtect is a list of path fragments not to apply the lock to
	DoNotProtect []string
}

// NewAL returns a new AxisLocker with DoNotProtect prepopulated with "lock"
func NewAL() *AxisLocker {
	return &AxisLocker{locked: map[string]bool{}, DoNotProtect: []string{"lock"}}
}

// Lock locks an axis
func (l *AxisLocker) Lock(axis string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locked[axis] = true
}

// Unlock unlocks an axis
func (l *AxisLocker) Unlock(axis string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locked, axis)
}

// Locked returns true if the axis is locked
func (l *AxisLocker) Locked(axis string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.locked[axis]
}

// Check is an HTTP middleware that refuses mutating requests on locked axes
func (l *AxisLocker) Check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && protected(r.URL.Path, l.DoNotProtect) {
			if axis, ok := axisOf(r.URL.Path); ok && l.Locked(axis) {
				w.WriteHeader(http.StatusLocked)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Inject adds GET and POST /axis/{axis}/lock to other
func (l *AxisLocker) Inject(other generichttp.HTTPer) {
	rt := other.RT()
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/axis/{axis}/lock"}] = l.HTTPGet
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/axis/{axis}/lock"}] = l.HTTPSet
}

// HTTPSet locks or unlocks the axis based on json:bool on the request body
func (l *AxisLocker) HTTPSet(w http.ResponseWriter, r *http.Request) {
	axis := chi.URLParam(r, "axis")
	b := generichttp.BoolT{}
	err := json.NewDecoder(r.Body).Decode(&b)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if b.Bool {
		l.Lock(axis)
	} else {
		l.Unlock(axis)
	}
	w.WriteHeader(http.StatusOK)
}

// HTTPGet returns Locked(axis) over HTTP as JSON
func (l *AxisLocker) HTTPGet(w http.ResponseWriter, r *http.Request) {
	hp := generichttp.HumanPayload{T: types.Bool, Bool: l.Locked(chi.URLParam(r, "axis"))}
	hp.EncodeAndRespond(w, r)
}

func protected(path string, exempt []string) bool {
	for _, str := range exempt {
		if strings.Contains(path, str) {
			return false
		}
	}
	return true
}

// axisOf extracts the axis name from a path containing /axis/{axis}
func axisOf(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "axis" {
			return parts[i+1], true
		}
	}
	return "", false
}
