package httpparse

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 한 번에 전부 넣기
func parseWhole(t *testing.T, raw string) *Request {
	t.Helper()
	p := New(Limits{})
	n, err := p.Feed([]byte(raw))
	require.NoError(t, err)
	require.Equal(t, len(raw), n)
	require.True(t, p.MessageComplete())
	require.NoError(t, p.Finish())
	return p.Request()
}

// 주어진 경계로 나눠서 넣기
func parseSplit(t *testing.T, raw string, cuts []int) *Request {
	t.Helper()
	p := New(Limits{})
	prev := 0
	for _, c := range append(cuts, len(raw)) {
		chunk := []byte(raw[prev:c])
		n, err := p.Feed(chunk)
		require.NoError(t, err)
		require.Equal(t, len(chunk), n)
		prev = c
	}
	require.True(t, p.MessageComplete())
	require.NoError(t, p.Finish())
	return p.Request()
}

func TestParseSimpleGet(t *testing.T) {
	req := parseWhole(t, "GET / HTTP/1.1\r\nHost: x\r\n\r\n")

	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/", req.URL)
	assert.Equal(t, "HTTP/1.1", req.Proto)
	assert.Equal(t, "x", req.Host())
	assert.Empty(t, req.Body)
	assert.True(t, req.KeepAlive())
}

func TestParsePostWithBody(t *testing.T) {
	req := parseWhole(t, "POST /toggle?v=1 HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\nhello")

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/toggle?v=1", req.URL)
	assert.Equal(t, "/toggle", req.Path())
	assert.Equal(t, int64(5), req.ContentLength)
	assert.Equal(t, "hello", string(req.Body))
}

func TestParseChunkedBody(t *testing.T) {
	raw := "POST /up HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"3;ext=1\r\nhey\r\n2\r\n!!\r\n0\r\nX-Trailer: y\r\n\r\n"
	req := parseWhole(t, raw)

	assert.Equal(t, int64(-1), req.ContentLength)
	assert.Equal(t, "hey!!", string(req.Body))
}

func TestParseHeaders(t *testing.T) {
	req := parseWhole(t, "GET / HTTP/1.0\r\nhost: x\r\nx-multi: a\r\nX-Multi: b\r\nConnection: keep-alive\r\n\r\n")

	assert.Equal(t, []string{"a", "b"}, req.Header.Values("X-Multi"))
	assert.Equal(t, "x", req.Header.Get("HOST"))
	assert.True(t, req.KeepAlive())
}

func TestKeepAlive(t *testing.T) {
	tests := []struct {
		name  string
		proto string
		conn  string
		want  bool
	}{
		{"http11 default", "HTTP/1.1", "", true},
		{"http11 close", "HTTP/1.1", "close", false},
		{"http10 default", "HTTP/1.0", "", false},
		{"http10 keep-alive", "HTTP/1.0", "Keep-Alive", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Request{Proto: tt.proto, Header: Header{}}
			if tt.conn != "" {
				r.Header.Add("Connection", tt.conn)
			}
			assert.Equal(t, tt.want, r.KeepAlive())
		})
	}
}

func TestChunkingIndependence(t *testing.T) {
	streams := []string{
		"GET / HTTP/1.1\r\nHost: x\r\n\r\n",
		"POST /toggle HTTP/1.1\r\nHost: x\r\nContent-Length: 0\r\n\r\n",
		"POST /data HTTP/1.1\r\nHost: x\r\nContent-Length: 11\r\nX-A: 1\r\n\r\nhello world",
		"PUT /c HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\n4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n",
		"\r\nGET /lead HTTP/1.0\r\n\r\n",
	}

	rng := rand.New(rand.NewSource(42))
	for _, raw := range streams {
		want := parseWhole(t, raw)

		// 1바이트씩
		every := make([]int, 0, len(raw))
		for i := 1; i < len(raw); i++ {
			every = append(every, i)
		}
		assert.Equal(t, want, parseSplit(t, raw, every))

		// 임의 경계
		for round := 0; round < 50; round++ {
			var cuts []int
			for i := 1; i < len(raw); i++ {
				if rng.Intn(4) == 0 {
					cuts = append(cuts, i)
				}
			}
			assert.Equal(t, want, parseSplit(t, raw, cuts))
		}
	}
}

func TestFeedStopsAtMessageEnd(t *testing.T) {
	first := "GET /a HTTP/1.1\r\nHost: x\r\n\r\n"
	second := "GET /b HTTP/1.1\r\nHost: x\r\n\r\n"

	p := New(Limits{})
	n, err := p.Feed([]byte(first + second))
	require.NoError(t, err)
	assert.Equal(t, len(first), n)
	assert.True(t, p.MessageComplete())
	assert.Equal(t, "/a", p.Request().URL)

	// 완료 후 추가 입력은 거부
	n, err = p.Feed([]byte(second))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, ErrParse)
}

func TestMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"garbage line", "GARBAGE\r\n\r\n"},
		{"bad method", "G(T / HTTP/1.1\r\n\r\n"},
		{"bad proto", "GET / HTTP/2.0\r\n\r\n"},
		{"extra spaces", "GET  / HTTP/1.1\r\n\r\n"},
		{"header without colon", "GET / HTTP/1.1\r\nHost x\r\n\r\n"},
		{"bad header name", "GET / HTTP/1.1\r\nBad( : v\r\n\r\n"},
		{"folded header", "GET / HTTP/1.1\r\nA: b\r\n c\r\n\r\n"},
		{"bad content length", "POST / HTTP/1.1\r\nContent-Length: abc\r\n\r\n"},
		{"negative content length", "POST / HTTP/1.1\r\nContent-Length: -1\r\n\r\n"},
		{"signed content length", "POST / HTTP/1.1\r\nContent-Length: +5\r\n\r\nhello"},
		{"empty content length", "POST / HTTP/1.1\r\nContent-Length: \r\n\r\n"},
		{"signed chunk size", "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n+a\r\n"},
		{"conflicting content length", "POST / HTTP/1.1\r\nContent-Length: 5, 6\r\n\r\n"},
		{"cl te conflict", "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\nContent-Length: 5\r\n\r\n"},
		{"unknown encoding", "POST / HTTP/1.1\r\nTransfer-Encoding: gzip\r\n\r\n"},
		{"bad chunk size", "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\nzz\r\n"},
		{"missing chunk crlf", "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n1\r\nab\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(Limits{})
			n, err := p.Feed([]byte(tt.raw))
			require.ErrorIs(t, err, ErrParse)
			assert.Less(t, n, len(tt.raw)+1)
			assert.False(t, p.MessageComplete())
			assert.ErrorIs(t, p.Finish(), ErrParse)

			// 에러 이후에는 아무것도 소비하지 않는다
			n, err = p.Feed([]byte("GET / HTTP/1.1\r\n\r\n"))
			assert.Zero(t, n)
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}

func TestLimits(t *testing.T) {
	t.Run("header", func(t *testing.T) {
		p := New(Limits{MaxHeaderBytes: 32})
		_, err := p.Feed([]byte("GET / HTTP/1.1\r\nX-Long: aaaaaaaaaaaaaaaaaaaaaaaaaaaa\r\n\r\n"))
		assert.ErrorIs(t, err, ErrParse)
	})

	t.Run("header split across chunks", func(t *testing.T) {
		p := New(Limits{MaxHeaderBytes: 32})
		_, err := p.Feed([]byte("GET / HTTP/1.1\r\nX-Long: aaaaaaa"))
		require.NoError(t, err)
		_, err = p.Feed([]byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
		assert.ErrorIs(t, err, ErrParse)
	})

	t.Run("content length body", func(t *testing.T) {
		p := New(Limits{MaxBodyBytes: 4})
		_, err := p.Feed([]byte("POST / HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello"))
		assert.ErrorIs(t, err, ErrParse)
	})

	t.Run("chunked body", func(t *testing.T) {
		p := New(Limits{MaxBodyBytes: 4})
		_, err := p.Feed([]byte("POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n3\r\nabc\r\n3\r\n"))
		assert.ErrorIs(t, err, ErrParse)
	})

	t.Run("chunk size near max int64", func(t *testing.T) {
		p := New(Limits{MaxBodyBytes: 16})
		_, err := p.Feed([]byte("POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n1\r\na\r\n7fffffffffffffff\r\n"))
		require.ErrorIs(t, err, ErrParse)

		// 이후 입력은 본문으로 쌓이지 않는다
		n, err := p.Feed(bytes.Repeat([]byte("x"), 1<<20))
		assert.Zero(t, n)
		assert.ErrorIs(t, err, ErrParse)
		assert.LessOrEqual(t, len(p.Request().Body), 16)
	})

	t.Run("chunked body exactly at limit", func(t *testing.T) {
		p := New(Limits{MaxBodyBytes: 4})
		_, err := p.Feed([]byte("POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n2\r\nab\r\n2\r\ncd\r\n0\r\n\r\n"))
		require.NoError(t, err)
		assert.True(t, p.MessageComplete())
		assert.Equal(t, "abcd", string(p.Request().Body))
	})
}

func TestFinishIncomplete(t *testing.T) {
	p := New(Limits{})
	n, err := p.Feed([]byte("POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\nabc"))
	require.NoError(t, err)
	assert.Equal(t, len("POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\nabc"), n)
	assert.False(t, p.MessageComplete())
	assert.ErrorIs(t, p.Finish(), ErrIncomplete)
}
