package pool_test

import (
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/alba-synchrotron/beamctl/axis"
	"github.com/alba-synchrotron/beamctl/generichttp"
	"github.com/alba-synchrotron/beamctl/generichttp/motion"
	"github.com/alba-synchrotron/beamctl/mntgrp"
	"github.com/alba-synchrotron/beamctl/pool"
	"github.com/alba-synchrotron/beamctl/pseudocounter"
	"github.com/alba-synchrotron/beamctl/pseudomotor"
	"github.com/alba-synchrotron/beamctl/util"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func slitGroup(t *testing.T, m *axis.Mock, topLimit util.Limiter, opts pool.GroupOptions) *pool.Group {
	t.Helper()
	ctl, err := pseudomotor.NewCommonDirectionSlit(1)
	if err != nil {
		t.Fatal(err)
	}
	phys := []pool.Physical{
		{Name: "m1/top", Mov: m, Axis: "top", Limit: topLimit},
		{Name: "m1/bot", Mov: m, Axis: "bot"},
	}
	g, err := pool.NewGroup("slit", ctl, phys, opts)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func router(h generichttp.HTTPer) chi.Router {
	r := chi.NewRouter()
	h.RT().Bind(r)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, rd))
	return w
}

func TestGroupMoveKeepsOtherPseudo(t *testing.T) {
	m := axis.NewMock("top", "bot")
	m.MoveAbs("top", 3)
	m.MoveAbs("bot", 1)
	g := slitGroup(t, m, util.Limiter{}, pool.GroupOptions{})

	pos, err := g.Positions()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float64{2, 2}, pos, approx); diff != "" {
		t.Errorf("gap, offset (-want +got):\n%s", diff)
	}
	if err = g.MoveAbs("Gap", 4); err != nil {
		t.Fatal(err)
	}
	top, _ := m.GetPos("top")
	bot, _ := m.GetPos("bot")
	if diff := cmp.Diff([]float64{4, 0}, []float64{top, bot}, approx); diff != "" {
		t.Errorf("blades after gap move (-want +got):\n%s", diff)
	}
	off, _ := g.GetPos("Offset")
	if off != 2 {
		t.Errorf("offset changed to %v", off)
	}
	if err = g.MoveRel("Offset", -1); err != nil {
		t.Fatal(err)
	}
	pos, _ = g.Positions()
	if diff := cmp.Diff([]float64{4, 1}, pos, approx); diff != "" {
		t.Errorf("after relative offset move (-want +got):\n%s", diff)
	}
}

func TestGroupLimits(t *testing.T) {
	m := axis.NewMock("top", "bot")
	opts := pool.GroupOptions{Limits: map[string]util.Limiter{"Gap": {Min: 0, Max: 10}}}
	g := slitGroup(t, m, util.Limiter{Min: -1, Max: 1}, opts)

	if err := g.MoveAbs("Gap", 20); !errors.Is(err, motion.ErrLimit) {
		t.Errorf("pseudo limit: expected ErrLimit, got %v", err)
	}
	// gap 4 puts the top blade at 2, outside its own limits
	if err := g.MoveAbs("Gap", 4); !errors.Is(err, motion.ErrLimit) {
		t.Errorf("physical limit: expected ErrLimit, got %v", err)
	}
	if n := m.Moves("top") + m.Moves("bot"); n != 0 {
		t.Errorf("expected no motor to move, %d moves", n)
	}
	if err := g.MoveAbs("Gap", 2); err != nil {
		t.Errorf("move inside limits: %v", err)
	}
}

func TestGroupHTTPStatus(t *testing.T) {
	m := axis.NewMock("top", "bot")
	opts := pool.GroupOptions{Limits: map[string]util.Limiter{"Gap": {Min: 0, Max: 10}}}
	r := router(motion.NewHTTPMotionController(slitGroup(t, m, util.Limiter{}, opts)))

	tests := []struct {
		name, method, path, body string
		code                     int
	}{
		{"read", http.MethodGet, "/axis/Gap/pos", "", http.StatusOK},
		{"unknown axis", http.MethodGet, "/axis/nope/pos", "", http.StatusNotFound},
		{"outside limits", http.MethodPost, "/axis/Gap/pos", `{"f64": 20}`, http.StatusBadRequest},
		{"move", http.MethodPost, "/axis/Gap/pos", `{"f64": 5}`, http.StatusOK},
		{"unknown param", http.MethodGet, "/param/aperture_origin", "", http.StatusNotFound},
		{"home", http.MethodPost, "/axis/Gap/home", "", http.StatusNotImplemented},
		{"calc", http.MethodPost, "/calc/physical", `{"f64s": [2, 0]}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.method, tt.path, tt.body)
			if w.Code != tt.code {
				t.Errorf("expected %d, got %d: %s", tt.code, w.Code, w.Body.String())
			}
		})
	}
}

func TestGroupStop(t *testing.T) {
	m := axis.NewMock("top", "bot")
	g := slitGroup(t, m, util.Limiter{}, pool.GroupOptions{})
	if err := g.Stop("Gap"); err != nil {
		t.Fatal(err)
	}
	m.SetFault("bot", errors.New("amplifier off"))
	if err := g.Stop("Gap"); err == nil || !strings.Contains(err.Error(), "m1/bot") {
		t.Errorf("expected an error naming m1/bot, got %v", err)
	}
}

func TestTripodCrossedLimits(t *testing.T) {
	geom := pseudomotor.TripodGeometry{
		Jack1:              r3.Vec{X: -600, Y: 0, Z: 1400},
		Jack2:              r3.Vec{X: 500, Y: -400, Z: 1400},
		Jack3:              r3.Vec{X: 500, Y: 400, Z: 1400},
		Center:             r3.Vec{X: 50, Y: 20, Z: 1400},
		CosAzimuth:         pseudomotor.DefaultCosAzimuth,
		SinAzimuth:         pseudomotor.DefaultSinAzimuth,
		CrossedLimitsCheck: true,
	}
	ctl, err := pseudomotor.NewTripodTable(geom)
	if err != nil {
		t.Fatal(err)
	}
	m := axis.NewMock("j1", "j2", "j3")
	phys := []pool.Physical{{Name: "m/j1", Mov: m, Axis: "j1"}, {Name: "m/j2", Mov: m, Axis: "j2"}, {Name: "m/j3", Mov: m, Axis: "j3"}}
	quiet := log.New(io.Discard, "", 0)

	g, err := pool.NewGroup("tripod", ctl, phys, pool.GroupOptions{Logger: quiet})
	if err != nil {
		t.Fatal(err)
	}
	err = g.MoveAbs("z", 1)
	if !errors.Is(err, pseudomotor.ErrConfiguration) {
		t.Fatalf("expected a configuration error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Set limit pitch") {
		t.Errorf("expected the missing limits to be named, got %v", err)
	}

	wide := util.Limiter{Min: -1e4, Max: 1e4}
	ctl, _ = pseudomotor.NewTripodTable(geom)
	g, err = pool.NewGroup("tripod", ctl, phys, pool.GroupOptions{
		Logger: quiet,
		Limits: map[string]util.Limiter{"z": wide, "pitch": wide, "roll": wide},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err = g.MoveAbs("z", 1); err != nil {
		t.Fatalf("move with limits set: %v", err)
	}
	z, err := g.GetPos("z")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(1.0, z, approx); diff != "" {
		t.Errorf("z (-want +got):\n%s", diff)
	}
}

func TestMaskParamsMemorized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.cfg")
	quiet := log.New(io.Discard, "", 0)
	store, err := mntgrp.Open(path, quiet)
	if err != nil {
		t.Fatal(err)
	}
	build := func(s *mntgrp.Store) *pool.Group {
		m := axis.NewMock("m1", "m2")
		phys := []pool.Physical{{Name: "fe/m1", Mov: m, Axis: "m1"}, {Name: "fe/m2", Mov: m, Axis: "m2"}}
		g, err := pool.NewGroup("FEMask", pseudomotor.NewMoveableMask(quiet), phys, pool.GroupOptions{Store: s, Logger: quiet})
		if err != nil {
			t.Fatal(err)
		}
		return g
	}
	g := build(store)
	if diff := cmp.Diff([]string{"aperture_origin", "offset_origin"}, g.ParamNames()); diff != "" {
		t.Errorf("param names (-want +got):\n%s", diff)
	}
	w := do(router(motion.NewHTTPMotionController(g)), http.MethodPost, "/param/aperture_origin", `{"f64": 1.5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("set param: %d %s", w.Code, w.Body.String())
	}
	if gap, _ := g.GetPos("gap"); gap != 1.5 {
		t.Errorf("gap with origin 1.5 at closed blades: %v", gap)
	}

	reopened, err := mntgrp.Open(path, quiet)
	if err != nil {
		t.Fatal(err)
	}
	g = build(reopened)
	if err = g.LoadMemorized(); err != nil {
		t.Fatal(err)
	}
	v, err := g.GetParam("aperture_origin")
	if err != nil || v != 1.5 {
		t.Errorf("reloaded aperture_origin: %v, %v", v, err)
	}
	if _, err = g.GetParam("nope"); !errors.Is(err, pseudomotor.ErrUnknownParam) {
		t.Errorf("expected ErrUnknownParam, got %v", err)
	}
}

func TestLoadMemorizedEmptyStore(t *testing.T) {
	quiet := log.New(io.Discard, "", 0)
	store, err := mntgrp.Open(filepath.Join(t.TempDir(), "memory.cfg"), quiet)
	if err != nil {
		t.Fatal(err)
	}
	m := axis.NewMock("m1", "m2")
	phys := []pool.Physical{{Name: "fe/m1", Mov: m, Axis: "m1"}, {Name: "fe/m2", Mov: m, Axis: "m2"}}
	g, _ := pool.NewGroup("FEMask", pseudomotor.NewMoveableMask(quiet), phys, pool.GroupOptions{Store: store})
	if err = g.LoadMemorized(); err != nil {
		t.Errorf("nothing memorized should not be an error, got %v", err)
	}
}

func TestNewGroupArity(t *testing.T) {
	m := axis.NewMock("top")
	ctl, _ := pseudomotor.NewCommonDirectionSlit(1)
	if _, err := pool.NewGroup("slit", ctl, []pool.Physical{{Name: "m/top", Mov: m, Axis: "top"}}, pool.GroupOptions{}); err == nil {
		t.Error("expected an error binding one motor to a two motor controller")
	}
}

func mopiStation(t *testing.T) (*pool.Station, *axis.Mock) {
	t.Helper()
	s := pool.NewStation("bl29", "test")
	m := axis.NewMock("lon", "filt")
	if err := s.AddMotor(&pool.Motor{Name: "mopi", Type: "mock", Ctl: m, Axes: m.Axes()}); err != nil {
		t.Fatal(err)
	}
	var inputs []pool.Physical
	for _, ref := range []string{"mopi/lon", "mopi/filt"} {
		p, err := s.Resolve(ref)
		if err != nil {
			t.Fatal(err)
		}
		inputs = append(inputs, p)
	}
	ctl, err := pseudocounter.New("mopi")
	if err != nil {
		t.Fatal(err)
	}
	c, err := pool.NewCounterGroup("thickness", "mopi", ctl, inputs)
	if err != nil {
		t.Fatal(err)
	}
	if err = s.AddCounter(c); err != nil {
		t.Fatal(err)
	}
	return s, m
}

func TestStationResolve(t *testing.T) {
	s, _ := mopiStation(t)
	if _, err := s.Resolve("nope/lon"); !errors.Is(err, pool.ErrUnknownElement) {
		t.Errorf("unknown motor: expected ErrUnknownElement, got %v", err)
	}
	if _, err := s.Resolve("mopi/nope"); !errors.Is(err, pool.ErrUnknownAxis) {
		t.Errorf("unknown axis: expected ErrUnknownAxis, got %v", err)
	}
	if _, err := s.Resolve("mopi"); err == nil {
		t.Error("expected an error for a reference with no axis")
	}
	if err := s.AddMotor(&pool.Motor{Name: "thickness"}); err == nil {
		t.Error("expected an error reusing the counter name for a motor")
	}
}

func TestCounter(t *testing.T) {
	s, m := mopiStation(t)
	m.MoveAbs("lon", 57.75)
	c := s.Counters["thickness"]
	v, err := c.Value("mopi_filter_thickness")
	if err != nil || v != 5 {
		t.Errorf("expected 5, got %v, %v", v, err)
	}
	r := router(pool.NewHTTPCounter(c))
	w := do(r, http.MethodGet, "/counter/mopi_filter_thickness", "")
	if got := strings.TrimSpace(w.Body.String()); got != `{"f64":5}` {
		t.Errorf("expected {\"f64\":5}, got %s", got)
	}
	if w = do(r, http.MethodGet, "/counter/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown role: expected 404, got %d", w.Code)
	}
}

func TestMetrics(t *testing.T) {
	s, m := mopiStation(t)
	m.MoveAbs("lon", 57.75)
	mo := axis.NewMock("top", "bot")
	g := slitGroup(t, mo, util.Limiter{}, pool.GroupOptions{Metrics: s.Metrics})
	if err := g.MoveAbs("Gap", 4); err != nil {
		t.Fatal(err)
	}
	body := do(s.Metrics.Handler(), http.MethodGet, "/metrics", "").Body.String()
	for _, want := range []string{
		`beamline_pseudo_position{axis="Gap",group="slit"} 4`,
		`beamline_pseudo_moves_total{axis="Gap",group="slit"} 1`,
		`beamline_pseudo_counter_value{counter="thickness",role="mopi_filter_thickness"} 5`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}

func TestMeasurementGroup(t *testing.T) {
	s, m := mopiStation(t)
	m.MoveAbs("lon", 57.75)
	const ch = "thickness/mopi_filter_thickness"
	if err := s.AddMeasurementGroup(pool.NewMeasurementGroup("mg1", []string{"thickness/nope"})); err == nil {
		t.Error("expected an error for a channel the counter does not have")
	}
	mg := pool.NewMeasurementGroup("mg1", []string{ch, ch})
	if err := s.AddMeasurementGroup(mg); err != nil {
		t.Fatal(err)
	}
	if len(mg.Channels()) != 1 {
		t.Errorf("duplicate channel kept: %v", mg.Channels())
	}
	got, err := s.Acquire("mg1")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]float64{ch: 5}, got); diff != "" {
		t.Errorf("acquire (-want +got):\n%s", diff)
	}
	if skipped := mg.Disable(ch, "other"); !cmp.Equal(skipped, []string{"other"}) {
		t.Errorf("skipped %v", skipped)
	}
	got, _ = s.Acquire("mg1")
	if len(got) != 0 {
		t.Errorf("disabled channel acquired: %v", got)
	}
	if err = mg.SetConfiguration(`{"other": true}`); err == nil {
		t.Error("expected an error configuring an unknown channel")
	}
	if err = mg.SetConfiguration(`{"` + ch + `": true}`); err != nil || !mg.Enabled(ch) {
		t.Errorf("configure: %v, enabled %v", err, mg.Enabled(ch))
	}
	if _, err = s.Acquire("mg2"); !errors.Is(err, pool.ErrUnknownElement) {
		t.Errorf("expected ErrUnknownElement, got %v", err)
	}
}

func TestMeasurementGroupHTTP(t *testing.T) {
	s, _ := mopiStation(t)
	const ch = "thickness/mopi_filter_thickness"
	mg := pool.NewMeasurementGroup("mg1", []string{ch})
	s.AddMeasurementGroup(mg)
	quiet := log.New(io.Discard, "", 0)
	store, err := mntgrp.Open(filepath.Join(t.TempDir(), "mntgrp.cfg"), quiet)
	if err != nil {
		t.Fatal(err)
	}
	r := router(pool.NewHTTPMeasurementGroup(mg, store))

	if w := do(r, http.MethodPost, "/load", ""); w.Code != http.StatusNotFound {
		t.Errorf("load before save: expected 404, got %d", w.Code)
	}
	w := do(r, http.MethodPost, "/disable", `{"str": "`+ch+`, other"}`)
	if got := strings.TrimSpace(w.Body.String()); got != `["other"]` {
		t.Errorf("disable: expected [\"other\"] skipped, got %s", got)
	}
	if w = do(r, http.MethodPost, "/save", ""); w.Code != http.StatusOK {
		t.Fatalf("save: %d %s", w.Code, w.Body.String())
	}
	do(r, http.MethodPost, "/enable", `{"str": ""}`)
	if !mg.Enabled(ch) {
		t.Fatal("empty enable list should enable every channel")
	}
	w = do(r, http.MethodPost, "/load", "")
	if got := strings.TrimSpace(w.Body.String()); got != `{"bool":true}` || mg.Enabled(ch) {
		t.Errorf("load: %s, enabled %v", got, mg.Enabled(ch))
	}
	w = do(r, http.MethodGet, "/channels", "")
	if got := strings.TrimSpace(w.Body.String()); got != `[{"name":"`+ch+`","enabled":false}]` {
		t.Errorf("channels: %s", got)
	}
}

func TestStationHTTP(t *testing.T) {
	s, m := mopiStation(t)
	m.MoveAbs("lon", 57.75)
	s.AddMeasurementGroup(pool.NewMeasurementGroup("mg1", []string{"thickness/mopi_filter_thickness"}))
	r := router(pool.NewHTTPStation(s))

	if w := do(r, http.MethodGet, "/acquire", ""); w.Code != http.StatusBadRequest {
		t.Errorf("acquire with nothing selected: expected 400, got %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/mntgrp", `{"str": "mg2"}`); w.Code != http.StatusNotFound {
		t.Errorf("select unknown group: expected 404, got %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/mntgrp", `{"str": "mg1"}`); w.Code != http.StatusOK {
		t.Fatalf("select: %d", w.Code)
	}
	w := do(r, http.MethodGet, "/acquire", "")
	if got := strings.TrimSpace(w.Body.String()); got != `{"thickness/mopi_filter_thickness":5}` {
		t.Errorf("acquire: %s", got)
	}
	w = do(r, http.MethodGet, "/env", "")
	if got := strings.TrimSpace(w.Body.String()); got != `{"ActiveMntGrp":"mg1"}` {
		t.Errorf("env: %s", got)
	}
}
