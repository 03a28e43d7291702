package response

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"sort"
	"strconv"
)

// 응답 빌더
// 상태 코드와 헤더를 모았다가 Send 한 번으로 전체 응답을 쓴다
type Builder struct {
	status int
	header map[string]string
}

// 빌더 생성
func New(status int) *Builder {
	return &Builder{status: status, header: map[string]string{}}
}

// 헤더 설정(같은 키는 덮어씀)
func (b *Builder) SetHeader(key, value string) *Builder {
	b.header[textproto.CanonicalMIMEHeaderKey(key)] = value
	return b
}

// 보낼 상태 코드
func (b *Builder) Status() int {
	return b.status
}

// 응답 전송
// Content-Length는 항상 body 길이로 맞춘다
func (b *Builder) Send(w io.Writer, body []byte) error {
	bw := bufio.NewWriter(w)

	// 상태 라인
	text := http.StatusText(b.status)
	if text == "" {
		text = "status code " + strconv.Itoa(b.status)
	}
	if _, err := fmt.Fprintf(bw, "HTTP/1.1 %03d %s\r\n", b.status, text); err != nil {
		return err
	}

	// 헤더는 정렬해서 기록
	b.header["Content-Length"] = strconv.Itoa(len(body))
	keys := make([]string, 0, len(b.header))
	for k := range b.header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := fmt.Fprintf(bw, "%s: %s\r\n", k, b.header[k]); err != nil {
			return err
		}
	}
	if _, err := bw.WriteString("\r\n"); err != nil {
		return err
	}

	// 본문
	if len(body) > 0 {
		if _, err := bw.Write(body); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// 본문 없는 응답 한 줄 헬퍼
func Empty(w io.Writer, status int) error {
	return New(status).Send(w, nil)
}
