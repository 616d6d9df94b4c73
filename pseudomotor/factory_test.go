package pseudomotor_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/alba-synchrotron/beamctl/pseudomotor"
)

func TestNewKnownTypes(t *testing.T) {
	cases := []struct {
		typ   string
		props pseudomotor.Properties
		roles []string
	}{
		{"Slit", pseudomotor.Properties{"sign": "-1"}, []string{"Gap", "Offset"}},
		{"two-legged-table", pseudomotor.Properties{"dist1": -250, "dist2": 300.5}, []string{"pos", "rot"}},
		{"TwoXStage", pseudomotor.Properties{"Tx1Coordinates": "-711.9, -300", "Tx2Coordinates": []interface{}{689, 400}}, []string{"x", "yaw"}},
		{"tripod", pseudomotor.Properties{
			"jack1coordinates":     "-600, 0, 1400",
			"Jack2Coordinates":     "500, -400, 1400",
			"Jack3Coordinates":     "500, 400, 1400",
			"CenterCoordinates":    "50, 20, 1400",
			"Azimuth":              -45,
			"CrossedPMLimitsCheck": "false",
		}, []string{"z", "pitch", "roll"}},
		{"moveable_mask", pseudomotor.Properties{"aperture_origin": 1.5}, []string{"gap", "offset"}},
		{"TwoCoupled", nil, []string{"Pseudo"}},
	}
	for _, c := range cases {
		ctl, err := pseudomotor.New(c.typ, c.props, pseudomotor.Options{})
		if err != nil {
			t.Errorf("%s: %v", c.typ, err)
			continue
		}
		if diff := cmp.Diff(c.roles, ctl.PseudoRoles()); diff != "" {
			t.Errorf("%s pseudo roles (-want +got):\n%s", c.typ, diff)
		}
	}
}

func TestNewMaskProperties(t *testing.T) {
	ctl, err := pseudomotor.New("mask", pseudomotor.Properties{"Aperture_Origin": 2, "offset_origin": "0.5"}, pseudomotor.Options{})
	if err != nil {
		t.Fatal(err)
	}
	p, ok := ctl.(pseudomotor.Parameterized)
	if !ok {
		t.Fatalf("expected %T to be parameterized", ctl)
	}
	ao, _ := p.GetParam(pseudomotor.ApertureOrigin)
	oo, _ := p.GetParam(pseudomotor.OffsetOrigin)
	if ao != 2 || oo != 0.5 {
		t.Errorf("expected origins 2, 0.5 got %f, %f", ao, oo)
	}
}

func TestNewRejects(t *testing.T) {
	cases := []struct {
		typ   string
		props pseudomotor.Properties
	}{
		{"undulator", nil},
		{"slit", pseudomotor.Properties{"sign": "up"}},
		{"twoleggedtable", pseudomotor.Properties{"dist1": 1, "dist2": 1}},
		{"twoxstage", pseudomotor.Properties{"Tx1Coordinates": "1, 2, 3", "Tx2Coordinates": "1, 3"}},
		{"twocoupled", pseudomotor.Properties{"tolerance": -2}},
	}
	for _, c := range cases {
		ctl, err := pseudomotor.New(c.typ, c.props, pseudomotor.Options{})
		if !errors.Is(err, pseudomotor.ErrInvalidConfiguration) {
			t.Errorf("%s %v: expected invalid configuration, got %v", c.typ, c.props, err)
		}
		if ctl != nil {
			t.Errorf("%s: expected no controller on error, got %T", c.typ, ctl)
		}
	}
}
