package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang-network-labs/httpd/internal/httpparse"
)

var (
	// Start를 두 번 호출
	ErrServerAlreadyStarted = errors.New("server already started")

	// 시작 전에 Shutdown 호출
	ErrServerNotStarted = errors.New("server not started")

	// Shutdown 이후 ListenAndServe가 돌려주는 값
	ErrServerClosed = errors.New("server closed")
)

const (
	// 기본 동시 연결 수
	DefaultMaxWorkers = 5
	// 기본 수신 청크 크기
	DefaultChunkSize = 1024
	// 기본 종료 대기 시간
	DefaultShutdownTimeout = 5 * time.Second
)

// 핸들러
// req는 호출 동안만 유효하고, 응답은 conn에 직접 쓴다
type Handler interface {
	ServeRequest(req *httpparse.Request, conn net.Conn)
}

// 함수형 핸들러
type HandlerFunc func(req *httpparse.Request, conn net.Conn)

func (f HandlerFunc) ServeRequest(req *httpparse.Request, conn net.Conn) {
	f(req, conn)
}

// 서버 설정
type Config struct {
	// 리슨 주소(ex: ":8080")
	Addr string
	// 동시 워커 수 상한(0이면 기본값, 음수면 제한 없음)
	MaxWorkers int
	// recv 한 번에 읽는 최대 바이트
	ChunkSize int
	// 파서 상한
	ParseLimits httpparse.Limits
	// 요청 대기 타임아웃(0이면 무제한)
	IdleTimeout time.Duration
	// Close가 워커 종료를 기다리는 시간
	ShutdownTimeout time.Duration
	// nil이면 로그 버림
	Logger *slog.Logger
}

// 서버 상태
type State int32

const (
	StateUnstarted State = iota
	StateListening
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateListening:
		return "listening"
	case StateShuttingDown:
		return "shutting-down"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// 카운터 스냅샷
type Stats struct {
	Accepted      uint64 `json:"accepted" yaml:"accepted"`
	AcceptErrors  uint64 `json:"accept_errors" yaml:"accept_errors"`
	Handled       uint64 `json:"handled" yaml:"handled"`
	ParseFailures uint64 `json:"parse_failures" yaml:"parse_failures"`
	LiveWorkers   int    `json:"live_workers" yaml:"live_workers"`
}

type counters struct {
	accepted      atomic.Uint64
	acceptErrors  atomic.Uint64
	handled       atomic.Uint64
	parseFailures atomic.Uint64
}

// 서버 본체
type Server struct {
	// 설정 보관
	cfg Config
	log *slog.Logger

	mu      sync.Mutex
	state   State
	ln      net.Listener
	handler Handler

	// 워커 레지스트리
	registry *Registry

	// 억셉터 취소/종료 신호
	ctx        context.Context
	cancel     context.CancelFunc
	acceptDone chan struct{}

	stats counters
}

// 서버 생성
func New(cfg Config) *Server {
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = DefaultMaxWorkers
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Server{
		cfg:      cfg,
		log:      log,
		registry: NewRegistry(cfg.MaxWorkers),
	}
}

// 서버 시작(리슨 실패면 Unstarted 유지)
func (s *Server) Start(h Handler) error {
	s.mu.Lock()
	if s.state != StateUnstarted {
		s.mu.Unlock()
		return ErrServerAlreadyStarted
	}
	s.mu.Unlock()

	// 리슨 시작
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	if err := s.StartListener(ln, h); err != nil {
		_ = ln.Close()
		return err
	}
	return nil
}

// 이미 열린 리스너로 시작
func (s *Server) StartListener(ln net.Listener, h Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUnstarted {
		return ErrServerAlreadyStarted
	}
	if h == nil {
		return errors.New("server: nil handler")
	}

	s.ln = ln
	s.handler = h
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.acceptDone = make(chan struct{})
	s.state = StateListening

	go s.acceptLoop(ln)

	s.log.Info("server listening", "addr", ln.Addr().String(), "max_workers", s.cfg.MaxWorkers)
	return nil
}

// 시작 후 종료될 때까지 블록
func (s *Server) ListenAndServe(h Handler) error {
	if err := s.Start(h); err != nil {
		return err
	}
	<-s.acceptDone
	return ErrServerClosed
}

// 억셉트 루프
func (s *Server) acceptLoop(ln net.Listener) {
	defer close(s.acceptDone)

	for {
		// 워커 슬롯 확보(상한이면 여기서 대기)
		if err := s.registry.Reserve(s.ctx); err != nil {
			return
		}

		// 연결 수락
		conn, err := ln.Accept()
		if err != nil {
			s.registry.Release()
			if errors.Is(err, net.ErrClosed) || s.ctx.Err() != nil {
				return
			}
			// 수락 실패는 서버 전체에 치명적이지 않음
			s.stats.acceptErrors.Add(1)
			s.log.Warn("accept failed", "err", err)
			continue
		}

		// 정리 + 등록을 한 임계 구역에서
		e, err := s.registry.Register(conn)
		if err != nil {
			_ = conn.Close()
			s.registry.Release()
			return
		}
		s.stats.accepted.Add(1)

		// 연결은 고루틴 처리
		go s.serveConn(e)
	}
}

// 서버 종료: 억셉터 중단 → 모든 연결 닫기 → ctx 동안 워커 대기
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateUnstarted:
		s.mu.Unlock()
		return ErrServerNotStarted
	case StateShuttingDown, StateStopped:
		s.mu.Unlock()
		return nil
	}
	s.state = StateShuttingDown
	ln := s.ln
	s.mu.Unlock()

	s.log.Info("server shutting down", "live_workers", s.registry.Live())

	// 억셉터 종료
	s.cancel()
	var errs []error
	if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = append(errs, fmt.Errorf("close listener: %w", err))
	}
	select {
	case <-s.acceptDone:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}

	// 모든 워커 종료
	if err := s.registry.TerminateAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("terminate workers: %w", err))
	}

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()

	s.log.Info("server stopped")
	return errors.Join(errs...)
}

// ShutdownTimeout으로 종료
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return s.Shutdown(ctx)
}

// 현재 상태
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// 리슨 주소(시작 전이면 빈 문자열)
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// 워커 레지스트리
func (s *Server) Registry() *Registry {
	return s.registry
}

// 카운터 스냅샷
func (s *Server) Stats() Stats {
	return Stats{
		Accepted:      s.stats.accepted.Load(),
		AcceptErrors:  s.stats.acceptErrors.Load(),
		Handled:       s.stats.handled.Load(),
		ParseFailures: s.stats.parseFailures.Load(),
		LiveWorkers:   s.registry.Live(),
	}
}
