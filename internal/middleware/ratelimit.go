package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// 정리 주기
	sweepEvery = time.Minute
	// 이 시간 이상 미사용이면 제거
	idleLimit = 5 * time.Minute
)

// IP별 레이트리밋
// rps가 0 이하면 제한하지 않음
func RateLimitPerIP(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst <= 0 {
		burst = 1
	}

	// 클라이언트 상태
	type client struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}

	// 동기화
	var (
		mu        sync.Mutex
		clients   = make(map[string]*client)
		lastSweep = time.Now()
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// IP 추출
			ip := clientIP(r)
			now := time.Now()

			mu.Lock()
			// 오래된 엔트리 정리(요청 경로에서 주기적으로)
			if now.Sub(lastSweep) > sweepEvery {
				for k, c := range clients {
					if now.Sub(c.lastSeen) > idleLimit {
						delete(clients, k)
					}
				}
				lastSweep = now
			}
			// limiter 조회/생성
			c, ok := clients[ip]
			if !ok {
				c = &client{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
				clients[ip] = c
			}
			// 마지막 접근 갱신
			c.lastSeen = now
			lim := c.limiter
			mu.Unlock()

			// 토큰 없으면 거절
			if !lim.Allow() {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}

			// 다음 핸들러 수행
			next.ServeHTTP(w, r)
		})
	}
}

// 클라이언트 IP 추출
func clientIP(r *http.Request) string {
	// 프록시 환경 고려
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// 첫 IP만 사용
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}

	// RemoteAddr 분해
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
