package generichttp

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/google/go-cmp/cmp"
)

type teapot struct{}

func (teapot) Error() string   { return "short and stout" }
func (teapot) StatusCode() int { return http.StatusTeapot }

func TestSubMuxSanitize(t *testing.T) {
	for _, in := range []string{"bl22/slit", "/bl22/slit", "bl22/slit/", "/bl22/slit/*"} {
		if out := SubMuxSanitize(in); out != "/bl22/slit" {
			t.Errorf("SubMuxSanitize(%q) = %q", in, out)
		}
	}
}

func TestBindAndEndpoints(t *testing.T) {
	pos := 1.5
	rt := RouteTable{
		{Method: http.MethodGet, Path: "/pos"}:  GetFloat(func() (float64, error) { return pos, nil }),
		{Method: http.MethodPost, Path: "/pos"}: SetFloat(func(f float64) error { pos = f; return nil }),
	}
	want := []string{"GET /pos", "POST /pos"}
	if diff := cmp.Diff(want, rt.Endpoints()); diff != "" {
		t.Errorf("endpoints (-want +got):\n%s", diff)
	}
	r := chi.NewRouter()
	rt.Bind(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/pos", strings.NewReader(`{"f64": 3.25}`)))
	if w.Code != http.StatusOK || pos != 3.25 {
		t.Fatalf("set: status %d, pos %v", w.Code, pos)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/pos", nil))
	if got := strings.TrimSpace(w.Body.String()); got != `{"f64":3.25}` {
		t.Errorf("get: expected {\"f64\":3.25}, got %s", got)
	}
}

func TestSetFloatBadBody(t *testing.T) {
	h := SetFloat(func(float64) error { return nil })
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("nope")))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestErrorStatus(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, errors.New("plain"))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("plain error: expected 500, got %d", w.Code)
	}
	w = httptest.NewRecorder()
	Error(w, errors.Join(errors.New("context"), teapot{}))
	if w.Code != http.StatusTeapot {
		t.Errorf("status coder in chain: expected 418, got %d", w.Code)
	}
}
