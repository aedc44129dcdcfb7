package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/rteval/parserd"
	"github.com/rteval/parserd/metrics"
	"github.com/rteval/parserd/sql"
	"github.com/rteval/parserd/transform"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const stylesheetName = "xmlparser.xsl"

func initFailed(err error) error {
	return &exitError{code: 2, err: err}
}

func runDaemon(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return initFailed(err)
	}
	logger, closeLog, err := setupLogging(cfg.Log, cfg.LogLevel)
	if err != nil {
		return initFailed(err)
	}
	defer closeLog()
	logger = logger.With("run", uuid.New().String())

	if err := writePIDFile(opts.pidFile); err != nil {
		return initFailed(err)
	}
	defer removePIDFile(opts.pidFile)

	threads := cfg.Threads
	if threads < 1 {
		threads = runtime.NumCPU()
	}
	engine, err := transform.NewEngine(filepath.Join(cfg.XSLTPath, stylesheetName), threads)
	if err != nil {
		return initFailed(err)
	}
	defer engine.Close()

	db, err := openDB(cfg.Database)
	if err != nil {
		return initFailed(err)
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.MetricsListen != "" {
		go serveMetrics(cfg.MetricsListen, reg, logger)
	}

	svc := parserd.NewService(sql.NewGateway(db), engine, parserd.Config{
		Workers:    threads,
		ReportRoot: cfg.ReportDir,
	}, logger, m)

	ctx := context.Background()
	if err := svc.Start(ctx); err != nil {
		if errors.Is(err, parserd.ErrWorkerStart) {
			return &exitError{code: 3, err: err}
		}
		return initFailed(err)
	}

	var sweeper *parserd.Sweeper
	if cfg.RetentionDays > 0 {
		sweeper = parserd.NewSweeper(sql.NewCleaner(db), &parserd.SweepConfig{
			Interval:  time.Hour,
			Retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		}, logger)
		if err := sweeper.Start(ctx); err != nil {
			return initFailed(err)
		}
	}

	go watchSignals(svc.Shutdown(), logger)

	<-svc.Done()
	if sweeper != nil {
		if err := sweeper.Stop(10 * time.Second); err != nil {
			logger.Error("sweeper stop failed", "error", err)
		}
	}
	if err := svc.Err(); err != nil {
		return &exitError{code: 1, err: err}
	}
	logger.Info("daemon exiting")
	return nil
}

// watchSignals triggers shutdown on the first termination signal. The
// channel stays registered, so repeated deliveries are observed and
// acknowledged instead of killing the process.
func watchSignals(sd *parserd.Shutdown, logger *slog.Logger) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	first := true
	for sig := range ch {
		if first {
			first = false
			logger.Info("signal received, shutting down", "signal", sig.String())
			sd.Trigger()
			continue
		}
		logger.Info("shutdown already in progress", "signal", sig.String())
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics listener failed", "addr", addr, "error", err)
	}
}
