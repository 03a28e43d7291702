package handler

import (
	"net/http"

	"golang-network-labs/httpd/internal/server"
)

// /status 응답 스키마
type LEDStatus struct {
	// LED 상태
	On bool `json:"on" yaml:"on"`
	// 이번 프로세스에서 토글한 횟수
	Toggles uint64 `json:"toggles" yaml:"toggles"`
	// 서버 카운터
	Server *server.Stats `json:"server,omitempty" yaml:"server,omitempty"`
}

// GET /: 토글 버튼이 있는 페이지
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	page, err := renderIndex(h.led.State())
	if err != nil {
		h.log.Error("render index failed", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

// POST /toggle: LED 반전
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	// 반전 + 기록을 한 번에(기록 순서 = 실제 변경 순서)
	h.toggleMu.Lock()
	on, err := h.led.Toggle()
	h.toggles.Add(1)
	if h.store != nil {
		if rerr := h.store.RecordToggle(r.Context(), on); rerr != nil {
			h.log.Warn("record toggle failed", "err", rerr)
		}
	}
	h.toggleMu.Unlock()
	h.log.Info("led toggled", "on", on)

	// 장치 반영 실패
	if err != nil {
		h.log.Error("led sink failed", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GET /status: LED 상태(JSON/YAML)
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	out := LEDStatus{
		On:      h.led.State(),
		Toggles: h.toggles.Load(),
	}
	if h.stats != nil {
		st := h.stats()
		out.Server = &st
	}
	h.writeResponse(w, r, out)
}
