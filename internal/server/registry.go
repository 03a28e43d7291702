package server

import (
	"context"
	"errors"
	"net"
	"sort"
	"sync"
)

// 종료된 레지스트리에 등록 시도
var ErrRegistryClosed = errors.New("worker registry closed")

// 레지스트리 엔트리: 워커 한 개 = 연결 한 개
type Entry struct {
	id   uint64
	conn net.Conn
	done chan struct{}

	once    sync.Once
	release func()
}

// 레지스트리가 발급한 워커 ID
func (e *Entry) ID() uint64 { return e.id }

// 워커가 소유한 연결
func (e *Entry) Conn() net.Conn { return e.conn }

// 워커 종료 여부
func (e *Entry) terminated() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// 연결 닫기 → 종료 표시 → 슬롯 반납(여러 번 호출해도 한 번만)
func (e *Entry) finish() {
	e.once.Do(func() {
		_ = e.conn.Close()
		close(e.done)
		if e.release != nil {
			e.release()
		}
	})
}

// 워커 레지스트리
// ID는 재사용하지 않음, 슬롯 채널로 동시 워커 수 제한
type Registry struct {
	mu      sync.Mutex
	nextID  uint64
	workers map[uint64]*Entry
	closed  bool

	// 슬롯 채널(nil이면 제한 없음)
	slots    chan struct{}
	closedCh chan struct{}
}

// 레지스트리 생성
// max가 0 이하면 제한하지 않음
func NewRegistry(max int) *Registry {
	r := &Registry{
		workers:  make(map[uint64]*Entry),
		closedCh: make(chan struct{}),
	}
	if max > 0 {
		r.slots = make(chan struct{}, max)
	}
	return r
}

// 슬롯 확보(빈 슬롯/ctx 종료/레지스트리 종료까지 대기)
func (r *Registry) Reserve(ctx context.Context) error {
	if r.slots == nil {
		select {
		case <-r.closedCh:
			return ErrRegistryClosed
		default:
			return ctx.Err()
		}
	}
	select {
	case r.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.closedCh:
		return ErrRegistryClosed
	}
}

// 예약한 슬롯 반납
func (r *Registry) Release() {
	if r.slots == nil {
		return
	}
	select {
	case <-r.slots:
	default:
	}
}

// 정리 + 등록(한 임계 구역)
// 호출자가 확보한 슬롯은 엔트리로 넘어가고 워커 종료 시 반납
func (r *Registry) Register(conn net.Conn) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}

	// 먼저 종료된 워커 정리
	r.reapLocked()

	// 새 워커 등록
	r.nextID++
	e := &Entry{
		id:      r.nextID,
		conn:    conn,
		done:    make(chan struct{}),
		release: r.Release,
	}
	r.workers[e.id] = e
	return e, nil
}

// 종료된 워커 정리, 정리한 수 반환
func (r *Registry) Reap() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reapLocked()
}

func (r *Registry) reapLocked() int {
	n := 0
	for id, e := range r.workers {
		if e.terminated() {
			delete(r.workers, id)
			n++
		}
	}
	return n
}

// 전체 종료: 모든 연결 닫기 → 워커 대기 → 비우기
// ctx 만료 시 남은 워커는 연결이 닫힌 채로 제외
func (r *Registry) TerminateAll(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.closedCh)
	}
	entries := make([]*Entry, 0, len(r.workers))
	for _, e := range r.workers {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	// 락 밖에서 연결 닫기 → Read가 깨어남
	for _, e := range entries {
		_ = e.conn.Close()
	}

	var err error
	for _, e := range entries {
		select {
		case <-e.done:
		case <-ctx.Done():
			if err == nil {
				err = ctx.Err()
			}
		}
	}

	r.mu.Lock()
	clear(r.workers)
	r.mu.Unlock()
	return err
}

// 등록된 엔트리 수(정리 전 종료 워커 포함)
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}

// 실행 중인 워커 수
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.workers {
		if !e.terminated() {
			n++
		}
	}
	return n
}

// 워커 ID 목록(오름차순)
func (r *Registry) IDs() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uint64, 0, len(r.workers))
	for id := range r.workers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
