package main

import (
	"fmt"
	"io"
	"log/slog"
	"log/syslog"
	"os"
	"path/filepath"
	"strings"
)

// Extra levels matching the syslog severities the daemon accepts. slog
// only names debug..error; the severities above error map onto higher
// custom values.
const (
	levelNotice slog.Level = 2
	levelCrit   slog.Level = 12
	levelAlert  slog.Level = 16
	levelEmerg  slog.Level = 20
)

func parseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "notice":
		return levelNotice, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "crit":
		return levelCrit, nil
	case "alert":
		return levelAlert, nil
	case "emerg":
		return levelEmerg, nil
	default:
		return 0, fmt.Errorf("unknown log level: %s", name)
	}
}

var facilities = map[string]syslog.Priority{
	"daemon": syslog.LOG_DAEMON,
	"user":   syslog.LOG_USER,
	"local0": syslog.LOG_LOCAL0,
	"local1": syslog.LOG_LOCAL1,
	"local2": syslog.LOG_LOCAL2,
	"local3": syslog.LOG_LOCAL3,
	"local4": syslog.LOG_LOCAL4,
	"local5": syslog.LOG_LOCAL5,
	"local6": syslog.LOG_LOCAL6,
	"local7": syslog.LOG_LOCAL7,
}

// setupLogging builds the daemon logger from the configured sink and
// level. The sink is either "syslog:<facility>" (bare "syslog" means the
// daemon facility) or an absolute file path.
//
// The returned closer flushes and releases the sink; call it on exit.
func setupLogging(sink, level string) (*slog.Logger, func(), error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	if sink == "syslog" || strings.HasPrefix(sink, "syslog:") {
		facility := strings.TrimPrefix(sink, "syslog")
		facility = strings.TrimPrefix(facility, ":")
		if facility == "" {
			facility = "daemon"
		}
		prio, ok := facilities[facility]
		if !ok {
			return nil, nil, fmt.Errorf("unknown syslog facility: %s", facility)
		}
		w, err := syslog.New(prio|syslog.LOG_INFO, "rteval-parserd")
		if err != nil {
			return nil, nil, fmt.Errorf("open syslog: %w", err)
		}
		return newLogger(w, opts), func() { _ = w.Close() }, nil
	}

	if !filepath.IsAbs(sink) {
		return nil, nil, fmt.Errorf("log sink must be syslog:<facility> or an absolute path, got %q", sink)
	}
	f, err := os.OpenFile(sink, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return newLogger(f, opts), func() { _ = f.Close() }, nil
}

func newLogger(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, opts))
}
