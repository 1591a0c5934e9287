package history

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"florad/internal/model/messages"
)

func TestParseRunsQueryClampsValues(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want runsParams
	}{
		{"defaults", "/history/runs", runsParams{Minutes: 1440, Limit: 20, TimeoutMS: 2000}},
		{"explicit", "/history/runs?minutes=60&limit=5&timeout_ms=500", runsParams{Minutes: 60, Limit: 5, TimeoutMS: 500}},
		{"clamped high", "/history/runs?minutes=99999&limit=9999&timeout_ms=60000", runsParams{Minutes: 7 * 24 * 60, Limit: 500, TimeoutMS: 5000}},
		{"clamped low", "/history/runs?minutes=0&limit=0&timeout_ms=1", runsParams{Minutes: 1, Limit: 1, TimeoutMS: 200}},
		{"garbage ignored", "/history/runs?limit=ten", runsParams{Minutes: 1440, Limit: 20, TimeoutMS: 2000}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tc.url, nil)
			if got := parseRunsQuery(r); got != tc.want {
				t.Fatalf("params = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestRunsFluxFiltersIrrigation(t *testing.T) {
	q := runsFlux("garden", 90, 7)
	for _, want := range []string{
		`from(bucket: "garden")`,
		"range(start: -90m)",
		`r._measurement == "irrigation"`,
		`r._field == "duration_s"`,
		"limit(n:7)",
	} {
		if !strings.Contains(q, want) {
			t.Fatalf("flux missing %q:\n%s", want, q)
		}
	}
}

// The runs query reads pump, kind and status back as tags; keep RunPoint's
// schema in step with it.
func TestRunPointSchemaMatchesRunsQuery(t *testing.T) {
	evt := messages.IrrigationResultEvent{
		ID:        "a1",
		Pump:      2,
		Kind:      messages.RunKindAuto,
		DurationS: 120,
		Status:    "ok",
		Timestamp: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
	p := RunPoint(evt)

	if p.Name() != "irrigation" {
		t.Fatalf("measurement = %q, want irrigation", p.Name())
	}
	for key, want := range map[string]string{"pump": "pump-2", "kind": "auto", "status": "ok"} {
		if got := tagValue(p, key); got != want {
			t.Fatalf("tag %s = %q, want %q", key, got, want)
		}
	}
	if !hasField(p, "duration_s") {
		t.Fatalf("missing duration_s field")
	}
}

func tagValue(p *write.Point, key string) string {
	for _, tag := range p.TagList() {
		if tag.Key == key {
			return tag.Value
		}
	}
	return ""
}

func hasField(p *write.Point, key string) bool {
	for _, f := range p.FieldList() {
		if f.Key == key {
			return true
		}
	}
	return false
}
