package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

// RunRecord is one row of the runs query, newest first.
type RunRecord struct {
	Pump      string `json:"pump"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	DurationS int    `json:"duration_s"`
	Time      string `json:"time"` // RFC3339
}

type runsParams struct {
	Minutes   int
	Limit     int
	TimeoutMS int
}

func parseRunsQuery(r *http.Request) runsParams {
	q := r.URL.Query()
	get := func(k string, def, min, max int) int {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				if n < min {
					return min
				}
				if max > 0 && n > max {
					return max
				}
				return n
			}
		}
		return def
	}
	return runsParams{
		Minutes:   get("minutes", 24*60, 1, 7*24*60),
		Limit:     get("limit", 20, 1, 500),
		TimeoutMS: get("timeout_ms", 2000, 200, 5000),
	}
}

func runsFlux(bucket string, minutes, limit int) string {
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == "irrigation")
  |> filter(fn: (r) => r._field == "duration_s")
  |> keep(columns: ["_time","_value","pump","kind","status"])
  |> sort(columns: ["_time"], desc: true)
  |> limit(n:%d)
`, bucket, minutes, limit)
}

// NewRunsHandler serves GET /history/runs?limit=20[&minutes=1440] from the
// irrigation measurement, newest first. Query failures degrade to an empty
// list with an X-Error header instead of a 5xx.
func NewRunsHandler(influx influxdb2.Client, org, bucket string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := parseRunsQuery(r)

		ctx, cancel := context.WithTimeout(r.Context(), time.Duration(p.TimeoutMS)*time.Millisecond)
		defer cancel()

		res, err := influx.QueryAPI(org).Query(ctx, runsFlux(bucket, p.Minutes, p.Limit))
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Error", "influx-query-error")
			_, _ = w.Write([]byte("[]"))
			return
		}
		defer res.Close()

		out := make([]RunRecord, 0, p.Limit)
		for res.Next() {
			rec := res.Record()

			var dur int
			switch v := rec.Value().(type) {
			case int64:
				dur = int(v)
			case float64:
				dur = int(v)
			}

			out = append(out, RunRecord{
				Pump:      stringAt(rec.ValueByKey("pump")),
				Kind:      stringAt(rec.ValueByKey("kind")),
				Status:    stringAt(rec.ValueByKey("status")),
				DurationS: dur,
				Time:      rec.Time().UTC().Format(time.RFC3339),
			})
		}
		if res.Err() != nil {
			w.Header().Set("X-Error", "influx-iter-error")
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
}

func stringAt(v interface{}) string {
	s, _ := v.(string)
	return s
}
