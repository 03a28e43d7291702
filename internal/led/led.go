package led

import (
	"fmt"
	"os"
	"sync"
)

// 출력 반영 대상
type Sink interface {
	Write(on bool) error
}

// 파일 기반 sink(ex: /sys/class/leds/led0/brightness)
type FileSink struct {
	Path string
}

func (s FileSink) Write(on bool) error {
	v := []byte("0\n")
	if on {
		v = []byte("1\n")
	}
	if err := os.WriteFile(s.Path, v, 0o644); err != nil {
		return fmt.Errorf("led sink %s: %w", s.Path, err)
	}
	return nil
}

// LED 출력
type Output struct {
	mu   sync.Mutex
	on   bool
	sink Sink
}

// 출력 생성. sink가 nil이면 메모리 상태만 유지
func New(initial bool, sink Sink) (*Output, error) {
	o := &Output{on: initial, sink: sink}
	if sink != nil {
		// 시작 상태 반영
		if err := sink.Write(initial); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// 현재 상태
func (o *Output) State() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.on
}

// 상태 반전 후 새 상태 반환
// sink 쓰기가 실패해도 메모리 상태는 바뀐다
func (o *Output) Toggle() (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.on = !o.on
	return o.on, o.write()
}

// 상태 지정
func (o *Output) Set(on bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.on = on
	return o.write()
}

func (o *Output) write() error {
	if o.sink == nil {
		return nil
	}
	return o.sink.Write(o.on)
}
