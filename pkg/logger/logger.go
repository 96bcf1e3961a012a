// Package logger wraps logrus with the server's logging conventions.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is a wrapper around logrus.Logger.
type Logger struct {
	*logrus.Logger
}

// Config contains logging configuration.
type Config struct {
	Level      string
	Format     string
	Output     string
	FilePrefix string
}

// New creates a logger instance. Unknown levels fall back to info;
// unknown formats fall back to text.
func New(cfg Config) *Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	switch strings.ToLower(cfg.Output) {
	case "file":
		prefix := cfg.FilePrefix
		if prefix == "" {
			prefix = "powerauth-server"
		}
		logDir := "logs"
		if err := os.MkdirAll(logDir, 0755); err != nil {
			log.Errorf("Failed to create logs directory: %v", err)
			break
		}
		logPath := filepath.Join(logDir, prefix+".log")
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Errorf("Failed to open log file: %v", err)
			break
		}
		log.SetOutput(io.MultiWriter(os.Stdout, file))
	default:
		log.SetOutput(os.Stdout)
	}

	return &Logger{Logger: log}
}

// NewDefault creates a logger with default configuration. The name is
// attached to every entry.
func NewDefault(name string) *Logger {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	log.SetOutput(os.Stdout)
	l := &Logger{Logger: log}
	if name != "" {
		l.AddHook(&componentHook{name: name})
	}
	return l
}

// componentHook stamps a component field on every entry.
type componentHook struct {
	name string
}

func (h *componentHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *componentHook) Fire(e *logrus.Entry) error {
	e.Data["component"] = h.name
	return nil
}
