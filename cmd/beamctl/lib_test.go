package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi"

	"github.com/alba-synchrotron/beamctl/backup"
	"github.com/alba-synchrotron/beamctl/frontend"
)

func testConfig(t *testing.T) Config {
	return Config{
		Addr:   ":8000",
		Name:   "bl22",
		Memory: filepath.Join(t.TempDir(), "memory.cfg"),
		Motors: []MotorSetup{
			{Name: "m1", Type: "mock", Axes: []string{"top", "bot"}, Limits: map[string]Minmax{"top": {Min: -10, Max: 10}}},
			{Name: "mopi", Type: "mock", Axes: []string{"lon", "filt"}},
			{Name: "fe", Type: "mock", Axes: []string{"m1", "m2"}},
		},
		Pseudos: []PseudoSetup{
			{
				Name:       "slit",
				Type:       "slit",
				Endpoint:   "bl22/slit",
				Properties: map[string]interface{}{"sign": 1},
				Motors:     map[string]string{"sl2t": "m1/top", "sl2b": "m1/bot"},
				Limits:     map[string]Minmax{"Gap": {Min: 0, Max: 8}},
			},
			{Name: "mask", Type: "MoveableMask", Motors: map[string]string{"mask1": "fe/m1", "mask2": "fe/m2"}},
		},
		Counters: []CounterSetup{
			{Name: "thickness", Type: "mopi", Inputs: map[string]string{"mopi_lon": "mopi/lon", "mopi_filt": "mopi/filt"}},
		},
		FrontEnds: []FrontEndSetup{
			{Name: "fe22", EPS: frontend.Config{
				EPSDevice:         "bl22/ct/eps-plc-01",
				OpenAttr:          "fe_open",
				CloseAttr:         "fe_close",
				IsOpenedAttr:      "fe_is_open",
				IsInterlockedAttr: "fe_interlock",
			}},
		},
		MeasurementGroups: []MeasurementGroupSetup{
			{Name: "mg1", Channels: []string{"thickness/mopi_filter_thickness"}},
		},
	}
}

func mux(t *testing.T, c Config) chi.Router {
	t.Helper()
	s, err := BuildStation(c, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatal(err)
	}
	m, err := BuildMux(c, s)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, rd))
	return w
}

func TestBuildStationRejects(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"motor type", func(c *Config) { c.Motors[0].Type = "esp301" }},
		{"unbound role", func(c *Config) { delete(c.Pseudos[0].Motors, "sl2b") }},
		{"unknown axis", func(c *Config) { c.Pseudos[0].Motors["sl2b"] = "m1/left" }},
		{"pseudo type", func(c *Config) { c.Pseudos[0].Type = "hexapod" }},
		{"bad property", func(c *Config) { c.Pseudos[0].Properties["sign"] = 2 }},
		{"counter type", func(c *Config) { c.Counters[0].Type = "ionchamber" }},
		{"duplicate name", func(c *Config) { c.Pseudos[1].Name = "m1" }},
		{"EPS device", func(c *Config) { c.FrontEnds[0].EPS.EPSDevice = "eps" }},
		{"channel", func(c *Config) { c.MeasurementGroups[0].Channels = []string{"thickness/nope"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testConfig(t)
			tt.modify(&c)
			if _, err := BuildStation(c, log.New(io.Discard, "", 0)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestDuplicateEndpoint(t *testing.T) {
	c := testConfig(t)
	c.Counters[0].Endpoint = "bl22/slit"
	s, err := BuildStation(c, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatal(err)
	}
	if _, err = BuildMux(c, s); err == nil {
		t.Error("expected an error serving two nodes on one endpoint")
	}
}

func TestEndpoints(t *testing.T) {
	w := do(mux(t, testConfig(t)), http.MethodGet, "/endpoints", "")
	graph := map[string][]string{}
	if err := json.NewDecoder(w.Body).Decode(&graph); err != nil {
		t.Fatal(err)
	}
	for ep, route := range map[string]string{
		"/bl22/slit": "GET /axis/{axis}/limits",
		"/m1":        "POST /axis/{axis}/lock",
		"/thickness": "GET /counter/{role}",
		"/fe22":      "POST /lock",
		"/fe22/eps":  "GET /attr/{attr}",
		"/mg1":       "POST /save",
		"/station":   "GET /acquire",
	} {
		found := false
		for _, r := range graph[ep] {
			found = found || r == route
		}
		if !found {
			t.Errorf("%s does not serve %s: %v", ep, route, graph[ep])
		}
	}
}

func TestMotionThroughMux(t *testing.T) {
	m := mux(t, testConfig(t))
	tests := []struct {
		name, method, path, body string
		code                     int
	}{
		{"physical limit", http.MethodPost, "/m1/axis/top/pos", `{"f64": 100}`, http.StatusBadRequest},
		{"pseudo limit", http.MethodPost, "/bl22/slit/axis/Gap/pos", `{"f64": 9}`, http.StatusBadRequest},
		{"pseudo move", http.MethodPost, "/bl22/slit/axis/Gap/pos", `{"f64": 4}`, http.StatusOK},
		{"lock gap", http.MethodPost, "/bl22/slit/axis/Gap/lock", `{"bool": true}`, http.StatusOK},
		{"locked move", http.MethodPost, "/bl22/slit/axis/Gap/pos", `{"f64": 2}`, http.StatusLocked},
		{"locked read", http.MethodGet, "/bl22/slit/axis/Gap/pos", "", http.StatusOK},
		{"other axis", http.MethodPost, "/bl22/slit/axis/Offset/pos", `{"f64": 1}`, http.StatusOK},
	}
	for _, tt := range tests {
		if w := do(m, tt.method, tt.path, tt.body); w.Code != tt.code {
			t.Errorf("%s: expected %d, got %d: %s", tt.name, tt.code, w.Code, w.Body.String())
		}
	}
	w := do(m, http.MethodGet, "/m1/axis/top/pos", "")
	if got := strings.TrimSpace(w.Body.String()); got != `{"f64":3}` {
		t.Errorf("top blade: %s", got)
	}
}

func TestFrontEndThroughMux(t *testing.T) {
	m := mux(t, testConfig(t))
	if w := do(m, http.MethodPost, "/fe22/value", `{"int": 1}`); w.Code != http.StatusOK {
		t.Fatalf("open: %d %s", w.Code, w.Body.String())
	}
	w := do(m, http.MethodGet, "/fe22/eps/attr/fe_is_open", "")
	if got := strings.TrimSpace(w.Body.String()); got != `{"bool":true}` {
		t.Errorf("EPS view of the open front end: %s", got)
	}
	do(m, http.MethodPost, "/fe22/eps/attr/fe_interlock", `{"bool": true}`)
	w = do(m, http.MethodGet, "/fe22/status", "")
	if !strings.Contains(w.Body.String(), "interlock") {
		t.Errorf("status should report the interlock: %s", w.Body.String())
	}
}

func TestMemorizedAcrossRestarts(t *testing.T) {
	c := testConfig(t)
	if w := do(mux(t, c), http.MethodPost, "/mask/param/aperture_origin", `{"f64": 1.5}`); w.Code != http.StatusOK {
		t.Fatalf("set param: %d %s", w.Code, w.Body.String())
	}
	m := mux(t, c)
	w := do(m, http.MethodGet, "/mask/param/aperture_origin", "")
	if got := strings.TrimSpace(w.Body.String()); got != `{"f64":1.5}` {
		t.Errorf("after restart: %s", got)
	}
}

func TestBackupRestoreRoutes(t *testing.T) {
	m := mux(t, testConfig(t))
	do(m, http.MethodPost, "/mask/param/offset_origin", `{"f64": -0.5}`)
	do(m, http.MethodPost, "/station/mntgrp", `{"str": "mg1"}`)

	w := do(m, http.MethodGet, "/backup", "")
	d, err := backup.Read(w.Body)
	if err != nil {
		t.Fatal(err)
	}
	if got := d.Controllers["mask"].Attributes["offset_origin"]; got != -0.5 {
		t.Errorf("offset_origin in backup: %v", got)
	}
	if d.Pools["bl22"].Properties["Addr"] != ":8000" {
		t.Errorf("pool properties: %v", d.Pools)
	}

	fresh := testConfig(t)
	m = mux(t, fresh)
	body, _ := json.Marshal(d)
	if w = do(m, http.MethodPost, "/restore", string(body)); w.Code != http.StatusOK {
		t.Fatalf("restore: %d %s", w.Code, w.Body.String())
	}
	w = do(m, http.MethodGet, "/mask/param/offset_origin", "")
	if got := strings.TrimSpace(w.Body.String()); got != `{"f64":-0.5}` {
		t.Errorf("restored offset_origin: %s", got)
	}
	w = do(m, http.MethodGet, "/station/mntgrp", "")
	if got := strings.TrimSpace(w.Body.String()); got != `{"str":"mg1"}` {
		t.Errorf("restored active measurement group: %s", got)
	}
	if w = do(m, http.MethodPost, "/restore", "not json"); w.Code != http.StatusBadRequest {
		t.Errorf("garbage restore: expected 400, got %d", w.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	m := mux(t, testConfig(t))
	do(m, http.MethodGet, "/bl22/slit/axis/Gap/pos", "")
	body := do(m, http.MethodGet, "/metrics", "").Body.String()
	for _, want := range []string{"beamline_pseudo_position", "beamline_pseudo_counter_value"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}

func TestNodeURL(t *testing.T) {
	if got := nodeURL(":8000"); got != "http://localhost:8000" {
		t.Errorf("nodeURL(:8000) = %s", got)
	}
	if got := nodeURL("bl22:9000"); got != "http://bl22:9000" {
		t.Errorf("nodeURL(bl22:9000) = %s", got)
	}
}
