package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// 전체 설정 묶음
type Config struct {
	HTTP HTTPConfig `yaml:"http"`
	LED  LEDConfig  `yaml:"led"`
	DB   DBConfig   `yaml:"db"`
	Rate RateConfig `yaml:"rate"`
	Log  LogConfig  `yaml:"log"`
}

// HTTP 서버 설정
type HTTPConfig struct {
	Port            int           `yaml:"port"`
	MaxWorkers      int           `yaml:"max_workers"`
	ChunkSize       int           `yaml:"chunk_size"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LED 설정
type LEDConfig struct {
	// 시작 상태
	Initial bool `yaml:"initial"`
	// 상태를 기록할 파일(ex: /sys/class/leds/led0/brightness)
	Sink string `yaml:"sink"`
	// 저장소의 마지막 토글 상태로 복원
	Restore bool `yaml:"restore"`
}

// DB 설정
// Driver가 비어 있으면 이벤트 기록 안 함
type DBConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Host   string `yaml:"host"`
	Port   string `yaml:"port"`
	Name   string `yaml:"name"`
	User   string `yaml:"user"`
	Pass   string `yaml:"pass"`
}

// IP RateLimit 설정(RPS 0이면 끔)
type RateConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// 로그 설정
type LogConfig struct {
	Level string `yaml:"level"`
}

// 기본값
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Port:            8080,
			MaxWorkers:      5,
			ChunkSize:       1024,
			MaxHeaderBytes:  8 << 10,
			MaxBodyBytes:    1 << 20,
			ShutdownTimeout: 5 * time.Second,
		},
		DB: DBConfig{
			Driver: "sqlite3",
			DSN:    "./events.db",
		},
		Log: LogConfig{Level: "info"},
	}
}

// 설정 로드: 기본값 → YAML 파일 → 환경변수 → 검증
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := decode(f, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// YAML 디코딩(모르는 키는 에러)
func decode(r io.Reader, cfg *Config) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

// 환경변수 덮어쓰기
func applyEnv(cfg *Config) {
	cfg.HTTP.Port = envInt("HTTP_PORT", cfg.HTTP.Port)
	cfg.HTTP.MaxWorkers = envInt("HTTP_MAX_WORKERS", cfg.HTTP.MaxWorkers)
	cfg.HTTP.ChunkSize = envInt("HTTP_CHUNK_SIZE", cfg.HTTP.ChunkSize)
	cfg.HTTP.IdleTimeout = envSeconds("HTTP_IDLE_TIMEOUT_SEC", cfg.HTTP.IdleTimeout)
	cfg.HTTP.ShutdownTimeout = envSeconds("HTTP_SHUTDOWN_TIMEOUT_SEC", cfg.HTTP.ShutdownTimeout)

	cfg.LED.Sink = envString("LED_SINK", cfg.LED.Sink)

	cfg.DB.Driver = envString("DB_DRIVER", cfg.DB.Driver)
	cfg.DB.DSN = envString("DB_DSN", cfg.DB.DSN)
	cfg.DB.Host = envString("DB_HOST", cfg.DB.Host)
	cfg.DB.Port = envString("DB_PORT", cfg.DB.Port)
	cfg.DB.Name = envString("DB_NAME", cfg.DB.Name)
	cfg.DB.User = envString("DB_USER", cfg.DB.User)
	cfg.DB.Pass = envString("DB_PASS", cfg.DB.Pass)

	cfg.Rate.RPS = envFloat("RATE_RPS", cfg.Rate.RPS)
	cfg.Rate.Burst = envInt("RATE_BURST", cfg.Rate.Burst)

	cfg.Log.Level = envString("LOG_LEVEL", cfg.Log.Level)
}

// 설정 검증
func (c Config) Validate() error {
	var errs []error
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port %d out of range", c.HTTP.Port))
	}
	if c.HTTP.ChunkSize < 0 {
		errs = append(errs, errors.New("http.chunk_size must not be negative"))
	}
	switch c.DB.Driver {
	case "", "sqlite3":
	case "mysql":
		if c.DB.DSN == "" && (c.DB.Host == "" || c.DB.Name == "" || c.DB.User == "") {
			errs = append(errs, errors.New("db: mysql needs dsn or host/name/user"))
		}
	default:
		errs = append(errs, fmt.Errorf("db.driver %q not supported", c.DB.Driver))
	}
	if c.Rate.RPS < 0 || c.Rate.Burst < 0 {
		errs = append(errs, errors.New("rate: rps and burst must not be negative"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// 리슨 주소
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.HTTP.Port)
}

// slog 레벨
func (c Config) LogLevel() slog.Level {
	l, _ := parseLevel(c.Log.Level)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

// 문자열 환경변수
func envString(key, def string) string {
	// 공백 제거
	v := strings.TrimSpace(os.Getenv(key))
	// 없으면 기본값
	if v == "" {
		return def
	}
	return v
}

// 초 단위 환경변수 → Duration
func envSeconds(key string, def time.Duration) time.Duration {
	// 공백 제거
	v := strings.TrimSpace(os.Getenv(key))
	// 없으면 기본값
	if v == "" {
		return def
	}
	// 정수 파싱
	n, err := strconv.Atoi(v)
	// 실패/음수면 기본값
	if err != nil || n < 0 {
		return def
	}
	// 초 단위 반환
	return time.Duration(n) * time.Second
}

// 정수 환경변수
func envInt(key string, def int) int {
	// 공백 제거
	v := strings.TrimSpace(os.Getenv(key))
	// 없으면 기본값
	if v == "" {
		return def
	}
	// 정수 파싱
	n, err := strconv.Atoi(v)
	// 실패/음수면 기본값
	if err != nil || n < 0 {
		return def
	}
	return n
}

// 실수 환경변수
func envFloat(key string, def float64) float64 {
	// 공백 제거
	v := strings.TrimSpace(os.Getenv(key))
	// 없으면 기본값
	if v == "" {
		return def
	}
	// 실수 파싱
	f, err := strconv.ParseFloat(v, 64)
	// 실패/음수면 기본값
	if err != nil || f < 0 {
		return def
	}
	return f
}
