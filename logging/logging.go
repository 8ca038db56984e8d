// Package logging provides the structured logging infrastructure shared by
// every Titan-AAS component. It builds on logrus and routes error-level
// output to stderr while everything else goes to stdout, which keeps
// container log collectors free to treat the two streams differently.
package logging

import (
	"bytes"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Level names accepted in configuration.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Config controls how a component logger is constructed.
type Config struct {
	Level      string
	Format     string // "json" or "text"
	Service    string
	Version    string
	TimeFormat string
}

// OutputSplitter routes logrus output between stdout and stderr based on
// the formatted level field, so error lines can be collected separately
// from routine operational logs.
type OutputSplitter struct{}

// Write implements io.Writer, sending "level=error" lines to stderr.
func (OutputSplitter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte(`"level":"error"`)) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// New builds a root logrus.Logger from the given config.
func New(cfg Config) *logrus.Logger {
	logger := logrus.New()

	switch cfg.Level {
	case LevelDebug:
		logger.SetLevel(logrus.DebugLevel)
	case LevelWarn:
		logger.SetLevel(logrus.WarnLevel)
	case LevelError:
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: timeFormat})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{TimestampFormat: timeFormat, FullTimestamp: true})
	}

	logger.SetOutput(OutputSplitter{})
	return logger
}

// Component returns an entry pre-tagged with service, version, and
// component name, the shape every package in this repo logs through.
func Component(logger *logrus.Logger, service, version, component string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"service":   service,
		"version":   version,
		"component": component,
	})
}
