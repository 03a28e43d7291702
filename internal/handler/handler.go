package handler

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"golang-network-labs/httpd/internal/httpparse"
	"golang-network-labs/httpd/internal/led"
	"golang-network-labs/httpd/internal/middleware"
	"golang-network-labs/httpd/internal/response"
	"golang-network-labs/httpd/internal/server"
	"golang-network-labs/httpd/internal/store"
)

// 이벤트 기록 대상
type EventStore interface {
	RecordRequest(ctx context.Context, ev store.Event) error
	RecordToggle(ctx context.Context, on bool) error
}

// 핸들러 의존성
type Deps struct {
	LED *led.Output
	// nil이면 기록 안 함
	Store EventStore
	// nil이면 로그 버림
	Logger *slog.Logger
	// 서버 카운터(/metrics)
	Stats func() server.Stats
	// IP별 레이트리밋(RPS 0이면 끔)
	RateRPS   float64
	RateBurst int
}

// 핸들러 본체
type Handler struct {
	led    *led.Output
	store  EventStore
	log    *slog.Logger
	stats  func() server.Stats
	router http.Handler

	// 처리중 요청 수
	inFlight atomic.Int64
	// 토글 횟수
	toggles atomic.Uint64
	// 토글과 기록 순서를 맞춤
	toggleMu sync.Mutex
}

var _ server.Handler = (*Handler)(nil)

func New(d Deps) *Handler {
	h := &Handler{
		led:   d.LED,
		store: d.Store,
		log:   d.Logger,
		stats: d.Stats,
	}
	if h.log == nil {
		h.log = slog.New(slog.DiscardHandler)
	}

	// 라우터 구성
	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(h.log))
	r.Use(middleware.RateLimitPerIP(d.RateRPS, d.RateBurst))

	r.Get("/", h.Index)
	r.Post("/toggle", h.Toggle)
	r.Get("/status", h.Status)
	r.Get("/healthz", h.Healthz)
	r.Get("/metrics", h.Metrics)

	// 그 외는 전부 본문 없는 404
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	h.router = r
	return h
}

func notFound(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNotFound)
}

// 요청 하나 처리 후 conn에 응답 하나 전송
func (h *Handler) ServeRequest(req *httpparse.Request, conn net.Conn) {
	// inFlight 증가
	h.inFlight.Add(1)
	// 종료 시 감소
	defer h.inFlight.Add(-1)

	start := time.Now()
	reqID := newRequestID()
	ctx := context.Background()

	// 버퍼에 응답 모으기
	w := &bufferedWriter{header: http.Header{}}
	hr, err := toHTTPRequest(ctx, req, conn)
	if err != nil {
		h.log.Warn("bad request target", "url", req.URL, "err", err)
		w.WriteHeader(http.StatusBadRequest)
	} else {
		h.router.ServeHTTP(w, hr)
	}

	// 응답 한 번에 전송
	status := w.statusCode()
	b := response.New(status)
	for k, vv := range w.header {
		b.SetHeader(k, strings.Join(vv, ", "))
	}
	b.SetHeader("X-Request-Id", reqID)
	if !req.KeepAlive() {
		b.SetHeader("Connection", "close")
	}
	if err := b.Send(conn, w.body.Bytes()); err != nil {
		h.log.Debug("write response failed", "err", err)
	}

	// 요청 기록
	if h.store != nil {
		ev := store.Event{
			At:        start,
			RequestID: reqID,
			Method:    req.Method,
			Path:      req.Path(),
			Status:    status,
			Remote:    conn.RemoteAddr().String(),
			Duration:  time.Since(start),
		}
		if err := h.store.RecordRequest(ctx, ev); err != nil {
			h.log.Warn("record request failed", "err", err)
		}
	}
}

// 파싱된 요청 → net/http 요청
func toHTTPRequest(ctx context.Context, req *httpparse.Request, conn net.Conn) (*http.Request, error) {
	hr, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, err
	}
	major, minor, _ := http.ParseHTTPVersion(req.Proto)
	hr.Proto, hr.ProtoMajor, hr.ProtoMinor = req.Proto, major, minor
	hr.Header = http.Header(req.Header).Clone()
	hr.Host = req.Host()
	hr.RequestURI = req.URL
	hr.RemoteAddr = conn.RemoteAddr().String()
	hr.ContentLength = int64(len(req.Body))
	return hr, nil
}

// 응답 버퍼
type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (w *bufferedWriter) Header() http.Header {
	return w.header
}

func (w *bufferedWriter) WriteHeader(status int) {
	if w.status != 0 {
		return
	}
	w.status = status
}

func (w *bufferedWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	return w.body.Write(p)
}

func (w *bufferedWriter) statusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// request_id 생성
func newRequestID() string {
	// 8바이트 랜덤
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	// hex로 변환
	return hex.EncodeToString(b)
}
