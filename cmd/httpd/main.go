package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang-network-labs/httpd/internal/config"
	"golang-network-labs/httpd/internal/handler"
	"golang-network-labs/httpd/internal/httpparse"
	"golang-network-labs/httpd/internal/led"
	"golang-network-labs/httpd/internal/server"
	"golang-network-labs/httpd/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("httpd failed", "err", err)
		os.Exit(1)
	}
}

func run() error {
	// 설정 파일 경로
	cfgPath := flag.String("config", os.Getenv("HTTPD_CONFIG"), "path to YAML config")
	flag.Parse()

	// 설정 로드
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}

	// 로거
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	slog.SetDefault(log)

	ctx := context.Background()

	// 이벤트 저장소(선택)
	var st *store.Store
	if cfg.DB.Driver != "" {
		st, err = store.Open(ctx, store.Config{
			Driver: cfg.DB.Driver,
			DSN:    cfg.DB.DSN,
			Host:   cfg.DB.Host,
			Port:   cfg.DB.Port,
			Name:   cfg.DB.Name,
			User:   cfg.DB.User,
			Pass:   cfg.DB.Pass,
		})
		if err != nil {
			return err
		}
		defer st.Close()
	}

	// LED 시작 상태 결정
	initial := cfg.LED.Initial
	if cfg.LED.Restore && st != nil {
		on, found, err := st.LastLEDState(ctx)
		if err != nil {
			log.Warn("restore led state failed", "err", err)
		} else if found {
			initial = on
		}
	}
	var sink led.Sink
	if cfg.LED.Sink != "" {
		sink = led.FileSink{Path: cfg.LED.Sink}
	}
	out, err := led.New(initial, sink)
	if err != nil {
		return err
	}

	// 서버 생성
	srv := server.New(server.Config{
		Addr:       cfg.Addr(),
		MaxWorkers: cfg.HTTP.MaxWorkers,
		ChunkSize:  cfg.HTTP.ChunkSize,
		ParseLimits: httpparse.Limits{
			MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
			MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		},
		IdleTimeout:     cfg.HTTP.IdleTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		Logger:          log,
	})

	deps := handler.Deps{
		LED:       out,
		Logger:    log,
		Stats:     srv.Stats,
		RateRPS:   cfg.Rate.RPS,
		RateBurst: cfg.Rate.Burst,
	}
	// nil 포인터가 인터페이스에 들어가지 않도록
	if st != nil {
		deps.Store = st
	}

	// 서버 시작
	if err := srv.Start(handler.New(deps)); err != nil {
		return err
	}
	log.Info("server is listening", "url", "http://"+srv.Addr(), "led_on", out.State())

	// 종료 신호 대기
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout+time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, server.ErrServerNotStarted) {
		return err
	}
	return nil
}
