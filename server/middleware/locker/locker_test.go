package locker

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"

	"github.com/alba-synchrotron/beamctl/generichttp"
)

type node struct{ rt generichttp.RouteTable }

func (n node) RT() generichttp.RouteTable { return n.rt }

func ok(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

func serve(l ManipulableLock) chi.Router {
	n := node{rt: generichttp.RouteTable{
		{Method: http.MethodPost, Path: "/axis/{axis}/pos"}: ok,
		{Method: http.MethodGet, Path: "/axis/{axis}/pos"}:  ok,
	}}
	Inject(n, l)
	r := chi.NewRouter()
	r.Use(l.Check)
	n.RT().Bind(r)
	return r
}

func do(r http.Handler, method, path, body string) int {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
	return w.Code
}

func TestLocker(t *testing.T) {
	r := serve(New())
	if code := do(r, http.MethodPost, "/lock", `{"bool": true}`); code != http.StatusOK {
		t.Fatalf("lock: %d", code)
	}
	if code := do(r, http.MethodPost, "/axis/gap/pos", `{"f64": 1}`); code != http.StatusLocked {
		t.Errorf("expected 423 while locked, got %d", code)
	}
	if code := do(r, http.MethodGet, "/axis/gap/pos", ""); code != http.StatusOK {
		t.Errorf("reads are never locked, got %d", code)
	}
	do(r, http.MethodPost, "/lock", `{"bool": false}`)
	if code := do(r, http.MethodPost, "/axis/gap/pos", `{"f64": 1}`); code != http.StatusOK {
		t.Errorf("expected 200 once unlocked, got %d", code)
	}
}

func TestAxisLocker(t *testing.T) {
	l := NewAL()
	r := serve(l)
	if code := do(r, http.MethodPost, "/axis/gap/lock", `{"bool": true}`); code != http.StatusOK {
		t.Fatalf("lock gap: %d", code)
	}
	if !l.Locked("gap") || l.Locked("offset") {
		t.Fatal("expected only gap to be locked")
	}
	if code := do(r, http.MethodPost, "/axis/gap/pos", `{"f64": 1}`); code != http.StatusLocked {
		t.Errorf("gap: expected 423, got %d", code)
	}
	if code := do(r, http.MethodPost, "/axis/offset/pos", `{"f64": 1}`); code != http.StatusOK {
		t.Errorf("offset: expected 200, got %d", code)
	}
}
