package main

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/w1xm/dsc_interface/bbox"
)

func TestStatusPoint(t *testing.T) {
	ts := time.Unix(1600000000, 0)
	p := statusPoint(bbox.Status{
		Position:           bbox.Position{Azimuth: 12, Altitude: -3},
		AzimuthResolution:  1800,
		AltitudeResolution: 22140,
	}, ts)
	if p.Name() != "dsc.position" {
		t.Errorf("name = %q", p.Name())
	}
	if !p.Time().Equal(ts) {
		t.Errorf("time = %v, want %v", p.Time(), ts)
	}
	got := make(map[string]interface{})
	for _, f := range p.FieldList() {
		got[f.Key] = f.Value
	}
	want := map[string]interface{}{
		"azimuth":             int64(12),
		"altitude":            int64(-3),
		"azimuth_resolution":  int64(1800),
		"altitude_resolution": int64(22140),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fields: (-want +got):\n%s", diff)
	}
}
