package handler

import (
	"fmt"
	"net/http"
)

// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	//200 반환
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// GET /metrics: 텍스트 포맷 카운터
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "in_flight %d\n", h.inFlight.Load())
	fmt.Fprintf(w, "led_on %d\n", boolToInt(h.led.State()))
	fmt.Fprintf(w, "led_toggles_total %d\n", h.toggles.Load())
	if h.stats == nil {
		return
	}
	st := h.stats()
	fmt.Fprintf(w, "connections_accepted_total %d\n", st.Accepted)
	fmt.Fprintf(w, "accept_errors_total %d\n", st.AcceptErrors)
	fmt.Fprintf(w, "requests_handled_total %d\n", st.Handled)
	fmt.Fprintf(w, "parse_failures_total %d\n", st.ParseFailures)
	fmt.Fprintf(w, "live_workers %d\n", st.LiveWorkers)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
