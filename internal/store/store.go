package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// DB 접속 설정
type Config struct {
	// sqlite3 | mysql
	Driver string
	// 직접 지정한 DSN(mysql이면 비어 있을 때 아래 값으로 생성)
	DSN  string
	Host string
	Port string
	Name string
	User string
	Pass string
}

// 요청 기록 한 건
type Event struct {
	At        time.Time
	RequestID string
	Method    string
	Path      string
	Status    int
	Remote    string
	Duration  time.Duration
}

// 저장소
type Store struct {
	db     *sql.DB
	driver string
}

// 드라이버별 스키마
var schemas = map[string][]string{
	"sqlite3": {
		`CREATE TABLE IF NOT EXISTS requests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			request_id TEXT NOT NULL,
			method TEXT NOT NULL,
			path TEXT NOT NULL,
			status INTEGER NOT NULL,
			remote TEXT,
			duration_us INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS led_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			state INTEGER NOT NULL
		)`,
	},
	"mysql": {
		`CREATE TABLE IF NOT EXISTS requests (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			ts VARCHAR(40) NOT NULL,
			request_id VARCHAR(32) NOT NULL,
			method VARCHAR(16) NOT NULL,
			path VARCHAR(2048) NOT NULL,
			status INT NOT NULL,
			remote VARCHAR(64),
			duration_us BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS led_events (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			ts VARCHAR(40) NOT NULL,
			state TINYINT NOT NULL
		)`,
	},
}

// DSN 결정
func (c Config) dsn() (string, error) {
	switch c.Driver {
	case "sqlite3":
		if c.DSN == "" {
			return "", errors.New("store: sqlite3 needs a dsn (file path)")
		}
		return c.DSN, nil
	case "mysql":
		if c.DSN != "" {
			return c.DSN, nil
		}
		port := c.Port
		if port == "" {
			port = "3306"
		}
		mc := mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Pass
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, port)
		mc.DBName = c.Name
		return mc.FormatDSN(), nil
	default:
		return "", fmt.Errorf("store: unsupported driver %q", c.Driver)
	}
}

// DB 연결 + 테이블 생성
func Open(ctx context.Context, cfg Config) (*Store, error) {
	dsn, err := cfg.dsn()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", cfg.Driver, err)
	}
	// sqlite는 쓰기 잠금 충돌 방지
	if cfg.Driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	// 테이블 없으면 생성
	for _, stmt := range schemas[cfg.Driver] {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: create schema: %w", err)
		}
	}
	return &Store{db: db, driver: cfg.Driver}, nil
}

// 요청 기록
func (s *Store) RecordRequest(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO requests(ts, request_id, method, path, status, remote, duration_us) VALUES (?,?,?,?,?,?,?)`,
		ev.At.UTC().Format(time.RFC3339Nano), ev.RequestID, ev.Method, ev.Path, ev.Status, nullable(ev.Remote), ev.Duration.Microseconds(),
	)
	if err != nil {
		return fmt.Errorf("store: insert request: %w", err)
	}
	return nil
}

// LED 토글 기록
func (s *Store) RecordToggle(ctx context.Context, on bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO led_events(ts, state) VALUES (?,?)`,
		time.Now().UTC().Format(time.RFC3339Nano), boolToInt(on),
	)
	if err != nil {
		return fmt.Errorf("store: insert led event: %w", err)
	}
	return nil
}

// 마지막 LED 상태(기록 없으면 found=false)
func (s *Store) LastLEDState(ctx context.Context) (on bool, found bool, err error) {
	var state int
	err = s.db.QueryRowContext(ctx, `SELECT state FROM led_events ORDER BY id DESC LIMIT 1`).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("store: last led state: %w", err)
	}
	return state != 0, true, nil
}

// 최근 요청 n건(최신순)
func (s *Store) RecentRequests(ctx context.Context, n int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, request_id, method, path, status, remote, duration_us FROM requests ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent requests: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ts     string
			remote sql.NullString
			us     int64
			ev     Event
		)
		if err := rows.Scan(&ts, &ev.RequestID, &ev.Method, &ev.Path, &ev.Status, &remote, &us); err != nil {
			return nil, fmt.Errorf("store: scan request: %w", err)
		}
		ev.At, _ = time.Parse(time.RFC3339Nano, ts)
		ev.Remote = remote.String
		ev.Duration = time.Duration(us) * time.Microsecond
		out = append(out, ev)
	}
	return out, rows.Err()
}

// 드라이버 이름
func (s *Store) Driver() string {
	return s.driver
}

func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// 빈 문자열은 NULL 처리
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
