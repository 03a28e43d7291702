package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang-network-labs/httpd/internal/httpparse"
	"golang-network-labs/httpd/internal/response"
)

// 연결 처리
// 요청 수신 → 파싱 → 핸들러 호출을 연결이 끊길 때까지 반복
func (s *Server) serveConn(e *Entry) {
	// 연결을 닫은 뒤에 워커 종료 표시
	defer e.finish()

	conn := e.conn
	log := s.log.With("worker", e.id, "remote", conn.RemoteAddr().String())
	log.Debug("worker started")

	// 이전 사이클에서 남은 바이트
	var carry []byte
	for {
		req, rest, err := s.readRequest(conn, carry)
		carry = rest

		if err != nil {
			// 파싱 실패는 이번 요청만 버리고 계속
			if errors.Is(err, httpparse.ErrParse) {
				s.stats.parseFailures.Add(1)
				log.Warn("parse failed", "err", err)
				if werr := response.Empty(conn, 400); werr != nil {
					log.Debug("write 400 failed", "err", werr)
					return
				}
				continue
			}
			// 전송 에러/상대 종료는 연결 종료
			log.Debug("connection done", "err", err)
			return
		}

		keepAlive := req.KeepAlive()
		if !s.dispatch(req, conn, log) {
			return
		}
		if !keepAlive {
			log.Debug("client asked to close")
			return
		}
	}
}

// 수신 사이클 한 번: 남은 바이트 → conn 읽기 순으로 메시지 완료까지
// 메시지 뒤에 읽힌 바이트도 같이 반환
func (s *Server) readRequest(conn net.Conn, carry []byte) (*httpparse.Request, []byte, error) {
	p := httpparse.New(s.cfg.ParseLimits)

	// 남은 바이트 먼저 처리
	if len(carry) > 0 {
		n, err := p.Feed(carry)
		if err != nil {
			return nil, nil, err
		}
		if p.MessageComplete() {
			return finishRequest(p, carry[n:])
		}
	}

	// 수신 버퍼(사이클마다 새로 할당)
	buf := make([]byte, s.cfg.ChunkSize)
	for {
		if s.cfg.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}
		n, err := conn.Read(buf)
		if n > 0 {
			consumed, perr := p.Feed(buf[:n])
			if perr != nil {
				return nil, nil, perr
			}
			if p.MessageComplete() {
				rest := append([]byte(nil), buf[consumed:n]...)
				return finishRequest(p, rest)
			}
			// 미완료면 Feed는 에러 없이 청크 전체를 소비한다
		}
		if err != nil {
			return nil, nil, fmt.Errorf("recv: %w", err)
		}
	}
}

func finishRequest(p *httpparse.Parser, rest []byte) (*httpparse.Request, []byte, error) {
	if err := p.Finish(); err != nil {
		return nil, nil, err
	}
	return p.Request(), rest, nil
}

// 핸들러 호출, 패닉이면 false
func (s *Server) dispatch(req *httpparse.Request, conn net.Conn, log *slog.Logger) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("handler panic", "method", req.Method, "url", req.URL, "panic", r)
			ok = false
		}
	}()
	s.handler.ServeRequest(req, conn)
	s.stats.handled.Add(1)
	return true
}
