package monitor

import (
	"encoding/json"
	"net/http"
	"time"
)

// History write errors older than this do not count against health.
const writeErrorGrace = 30 * time.Second

// Routes registers the HTTP surface: liveness, readiness, the latest status
// report and, when instrumentation is on, the Prometheus endpoint.
func (s *Service) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.HandleFunc("/status", s.handleStatus)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
}

func (s *Service) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	type health struct {
		Status          string  `json:"status"`
		MQTTConnected   bool    `json:"mqtt_connected"`
		HistoryOK       bool    `json:"history_ok"`
		LastWriteErrorS float64 `json:"last_write_error_age_sec"`
	}
	errAge := s.hist.LastErrorAge()
	st := health{
		MQTTConnected:   s.client != nil && s.client.IsConnectionOpen(),
		HistoryOK:       errAge > writeErrorGrace,
		LastWriteErrorS: errAge.Seconds(),
	}
	switch {
	case st.MQTTConnected && st.HistoryOK:
		st.Status = "ok"
	case st.MQTTConnected || st.HistoryOK:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

func (s *Service) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	ticked := s.haveReport
	s.mu.RUnlock()

	ready := ticked && s.client != nil && s.client.IsConnectionOpen()
	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(struct {
		Ready bool `json:"ready"`
	}{Ready: ready})
}

// handleStatus serves the most recent status report as JSON.
func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	rep, ok := s.lastReport, s.haveReport
	s.mu.RUnlock()

	if !ok {
		http.Error(w, "no report yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rep)
}
