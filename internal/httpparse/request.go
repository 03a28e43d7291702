package httpparse

import (
	"net/textproto"
	"strings"
)

// 헤더 맵(키는 canonical 형태)
type Header map[string][]string

// 첫 번째 값 조회
func (h Header) Get(key string) string {
	vv := h[textproto.CanonicalMIMEHeaderKey(key)]
	if len(vv) == 0 {
		return ""
	}
	return vv[0]
}

// 값 추가
func (h Header) Add(key, value string) {
	k := textproto.CanonicalMIMEHeaderKey(key)
	h[k] = append(h[k], value)
}

// 키의 모든 값
func (h Header) Values(key string) []string {
	return h[textproto.CanonicalMIMEHeaderKey(key)]
}

// 파싱된 요청
//
// 워커가 한 요청 사이클 동안만 소유한다. 핸들러는 호출이 끝난 뒤
// 이 값을 보관하면 안 된다.
type Request struct {
	// 메서드(GET, POST ...)
	Method string
	// 요청 타깃(ex: "/toggle?x=1")
	URL string
	// 프로토콜(HTTP/1.0, HTTP/1.1)
	Proto string
	// 헤더
	Header Header
	// 본문 전체
	Body []byte
	// Content-Length 값, chunked면 -1
	ContentLength int64
}

// Host 헤더
func (r *Request) Host() string {
	return r.Header.Get("Host")
}

// 쿼리 뺀 경로
func (r *Request) Path() string {
	if i := strings.IndexByte(r.URL, '?'); i >= 0 {
		return r.URL[:i]
	}
	return r.URL
}

// 연결 유지 여부
// HTTP/1.1은 기본 유지, HTTP/1.0은 keep-alive 명시가 있을 때만 유지
func (r *Request) KeepAlive() bool {
	conn := strings.ToLower(strings.TrimSpace(r.Header.Get("Connection")))
	if r.Proto == "HTTP/1.1" {
		return conn != "close"
	}
	return conn == "keep-alive"
}
