// Package config loads the daemon configuration from the rteval
// configuration file.
//
// The file is ini-style. The daemon reads the xmlrpc_parser section for
// its own knobs and the database section for connection parameters;
// other sections belong to other rteval components and are ignored.
// Command-line flags override file values.
package config

import (
	"fmt"
	"net"
	"strconv"

	"gopkg.in/ini.v1"
)

// Defaults for the file-system surface of the daemon.
const (
	DefaultConfigFile = "/etc/rteval.conf"
	DefaultPIDFile    = "/var/run/rteval-parserd.pid"
)

// Database holds the connection parameters for the submission database.
type Database struct {
	Server   string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// Addr returns the host:port the driver dials.
func (d Database) Addr() string {
	return net.JoinHostPort(d.Server, strconv.Itoa(d.Port))
}

// Config is the merged daemon configuration.
//
// Threads of zero means one worker per CPU core. Log is either
// "syslog:<facility>" or an absolute file path. RetentionDays of zero
// disables the retention sweeper.
type Config struct {
	Threads       int
	XSLTPath      string
	ReportDir     string
	Log           string
	LogLevel      string
	RetentionDays int
	MetricsListen string

	Database Database
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Threads:   0,
		XSLTPath:  "/usr/share/rteval",
		ReportDir: "/var/lib/rteval/reports",
		Log:       "syslog:daemon",
		LogLevel:  "info",
		Database: Database{
			Server:  "localhost",
			Port:    5432,
			Name:    "rteval",
			User:    "rteval",
			SSLMode: "disable",
		},
	}
}

// Load reads the configuration file at path on top of the defaults.
//
// A missing file is not an error; the defaults then stand as-is, which
// matches the historical daemon behavior of running without a config
// file. A present but unparsable file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	file, err := ini.LooseLoad(path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	parser := file.Section("xmlrpc_parser")
	cfg.Threads = parser.Key("threads").MustInt(cfg.Threads)
	cfg.XSLTPath = parser.Key("xsltpath").MustString(cfg.XSLTPath)
	cfg.ReportDir = parser.Key("reportdir").MustString(cfg.ReportDir)
	cfg.Log = parser.Key("log").MustString(cfg.Log)
	cfg.LogLevel = parser.Key("loglevel").MustString(cfg.LogLevel)
	cfg.RetentionDays = parser.Key("retention_days").MustInt(cfg.RetentionDays)
	cfg.MetricsListen = parser.Key("metrics_listen").MustString(cfg.MetricsListen)

	db := file.Section("database")
	cfg.Database.Server = db.Key("server").MustString(cfg.Database.Server)
	cfg.Database.Port = db.Key("port").MustInt(cfg.Database.Port)
	cfg.Database.Name = db.Key("database").MustString(cfg.Database.Name)
	cfg.Database.User = db.Key("user").MustString(cfg.Database.User)
	cfg.Database.Password = db.Key("password").MustString(cfg.Database.Password)
	cfg.Database.SSLMode = db.Key("sslmode").MustString(cfg.Database.SSLMode)

	return cfg, nil
}
