package httpparse

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// 잘못된 요청 바이트
	ErrParse = errors.New("malformed request")

	// 메시지가 끝나기 전에 Finish 호출
	ErrIncomplete = errors.New("incomplete request")
)

const (
	// 요청 라인 + 헤더 기본 상한
	DefaultMaxHeaderBytes = 8 << 10
	// 본문 기본 상한
	DefaultMaxBodyBytes = 1 << 20

	// chunk 크기 라인 상한
	maxChunkLineBytes = 1 << 10
)

// 파서 상한
type Limits struct {
	MaxHeaderBytes int
	MaxBodyBytes   int64
}

func (l Limits) withDefaults() Limits {
	if l.MaxHeaderBytes <= 0 {
		l.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if l.MaxBodyBytes <= 0 {
		l.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return l
}

type state uint8

const (
	stateRequestLine state = iota
	stateHeaders
	stateBody
	stateChunkSize
	stateChunkData
	stateChunkDataEnd
	stateTrailer
	stateDone
)

// 증분 요청 파서
// 메시지 끝에서 소비를 멈추고, 남은 바이트는 다음 요청 몫
type Parser struct {
	limits Limits
	state  state
	err    error

	// 줄 단위 누적 버퍼(청크 경계를 넘는 줄)
	line        []byte
	headerBytes int
	remaining   int64
	chunked     bool

	req Request
}

// 파서 생성
func New(limits Limits) *Parser {
	return &Parser{
		limits: limits.withDefaults(),
		req:    Request{Header: Header{}},
	}
}

// 메시지 완료 여부
func (p *Parser) MessageComplete() bool {
	return p.state == stateDone
}

// 파싱된 요청. MessageComplete 이전에는 일부만 채워져 있다.
func (p *Parser) Request() *Request {
	return &p.req
}

// 마무리 처리
func (p *Parser) Finish() error {
	if p.err != nil {
		return p.err
	}
	if p.state != stateDone {
		return ErrIncomplete
	}
	return nil
}

// 청크 입력, 현재 메시지가 소비한 바이트 수 반환
func (p *Parser) Feed(b []byte) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	if p.state == stateDone {
		return 0, fmt.Errorf("%w: message already complete", ErrParse)
	}

	n := 0
	for n < len(b) && p.state != stateDone {
		switch p.state {
		case stateBody:
			n += p.readBody(b[n:])

		case stateChunkData:
			n += p.readChunkData(b[n:])

		default:
			// 줄 단위 상태
			i := bytes.IndexByte(b[n:], '\n')
			if i < 0 {
				if err := p.appendLine(b[n:]); err != nil {
					return n, p.fail(err)
				}
				n = len(b)
				continue
			}
			if err := p.appendLine(b[n : n+i]); err != nil {
				return n, p.fail(err)
			}
			n += i + 1
			line := string(bytes.TrimSuffix(p.line, []byte{'\r'}))
			p.line = p.line[:0]
			if err := p.handleLine(line); err != nil {
				return n, p.fail(err)
			}
		}
	}
	return n, nil
}

func (p *Parser) fail(err error) error {
	p.err = fmt.Errorf("%w: %v", ErrParse, err)
	return p.err
}

// 줄 누적 + 상한 검사
func (p *Parser) appendLine(seg []byte) error {
	switch p.state {
	case stateRequestLine, stateHeaders:
		p.headerBytes += len(seg)
		if p.headerBytes > p.limits.MaxHeaderBytes {
			return errors.New("header too large")
		}
	default:
		if len(p.line)+len(seg) > maxChunkLineBytes {
			return errors.New("chunk line too long")
		}
	}
	p.line = append(p.line, seg...)
	return nil
}

func (p *Parser) handleLine(line string) error {
	switch p.state {
	case stateRequestLine:
		return p.parseRequestLine(line)
	case stateHeaders:
		if line == "" {
			return p.endHeaders()
		}
		return p.parseHeader(line)
	case stateChunkSize:
		return p.parseChunkSize(line)
	case stateChunkDataEnd:
		if line != "" {
			return errors.New("missing CRLF after chunk data")
		}
		p.state = stateChunkSize
		return nil
	case stateTrailer:
		// 트레일러는 무시
		if line == "" {
			p.state = stateDone
		}
		return nil
	}
	return fmt.Errorf("unexpected state %d", p.state)
}

func (p *Parser) parseRequestLine(line string) error {
	// 요청 앞의 빈 줄은 허용
	if line == "" {
		return nil
	}
	parts := strings.Split(line, " ")
	if len(parts) != 3 {
		return fmt.Errorf("bad request line %q", line)
	}
	method, target, proto := parts[0], parts[1], parts[2]
	if !validToken(method) {
		return fmt.Errorf("bad method %q", method)
	}
	if target == "" {
		return errors.New("empty request target")
	}
	if proto != "HTTP/1.1" && proto != "HTTP/1.0" {
		return fmt.Errorf("unsupported protocol %q", proto)
	}
	p.req.Method = method
	p.req.URL = target
	p.req.Proto = proto
	p.state = stateHeaders
	return nil
}

func (p *Parser) parseHeader(line string) error {
	// obs-fold 거부
	if line[0] == ' ' || line[0] == '\t' {
		return errors.New("obsolete header folding")
	}
	i := strings.IndexByte(line, ':')
	if i <= 0 {
		return fmt.Errorf("bad header line %q", line)
	}
	name := line[:i]
	if !validToken(name) {
		return fmt.Errorf("bad header name %q", name)
	}
	p.req.Header.Add(name, strings.TrimSpace(line[i+1:]))
	return nil
}

// 헤더 종료 → 본문 방식 결정
func (p *Parser) endHeaders() error {
	te := p.req.Header.Values("Transfer-Encoding")
	cl := p.req.Header.Values("Content-Length")

	if len(te) > 0 {
		if len(cl) > 0 {
			return errors.New("both Transfer-Encoding and Content-Length")
		}
		last := strings.TrimSpace(te[len(te)-1])
		if i := strings.LastIndexByte(last, ','); i >= 0 {
			last = strings.TrimSpace(last[i+1:])
		}
		if !strings.EqualFold(last, "chunked") {
			return fmt.Errorf("unsupported transfer encoding %q", last)
		}
		p.chunked = true
		p.req.ContentLength = -1
		p.state = stateChunkSize
		return nil
	}

	if len(cl) == 0 {
		p.state = stateDone
		return nil
	}
	n, err := parseContentLength(cl)
	if err != nil {
		return err
	}
	if n > p.limits.MaxBodyBytes {
		return fmt.Errorf("body of %d bytes exceeds limit", n)
	}
	p.req.ContentLength = n
	if n == 0 {
		p.state = stateDone
		return nil
	}
	p.remaining = n
	p.req.Body = make([]byte, 0, n)
	p.state = stateBody
	return nil
}

// 여러 값이 있으면 모두 같아야 한다
func parseContentLength(values []string) (int64, error) {
	var out int64 = -1
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			// 1*DIGIT만 허용(+, - 부호 거부)
			if !allDigits(part, false) {
				return 0, fmt.Errorf("bad Content-Length %q", v)
			}
			n, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("bad Content-Length %q", v)
			}
			if out >= 0 && n != out {
				return 0, errors.New("conflicting Content-Length values")
			}
			out = n
		}
	}
	return out, nil
}

func (p *Parser) readBody(b []byte) int {
	take := int64(len(b))
	if take > p.remaining {
		take = p.remaining
	}
	p.req.Body = append(p.req.Body, b[:take]...)
	p.remaining -= take
	if p.remaining == 0 {
		p.state = stateDone
	}
	return int(take)
}

func (p *Parser) parseChunkSize(line string) error {
	// chunk 확장은 무시
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if !allDigits(line, true) {
		return fmt.Errorf("bad chunk size %q", line)
	}
	size, err := strconv.ParseInt(line, 16, 64)
	if err != nil {
		return fmt.Errorf("bad chunk size %q", line)
	}
	if size == 0 {
		p.state = stateTrailer
		return nil
	}
	// 덧셈 오버플로 없이 남은 한도와 비교
	if size > p.limits.MaxBodyBytes-int64(len(p.req.Body)) {
		return errors.New("chunked body exceeds limit")
	}
	p.remaining = size
	p.state = stateChunkData
	return nil
}

func (p *Parser) readChunkData(b []byte) int {
	take := int64(len(b))
	if take > p.remaining {
		take = p.remaining
	}
	p.req.Body = append(p.req.Body, b[:take]...)
	p.remaining -= take
	if p.remaining == 0 {
		p.state = stateChunkDataEnd
	}
	return int(take)
}

// 숫자(hex면 16진수)로만 된 비어 있지 않은 문자열
func allDigits(s string, hex bool) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case hex && (c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'):
		default:
			return false
		}
	}
	return true
}

// RFC 9110 token
func validToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0:
		default:
			return false
		}
	}
	return true
}
