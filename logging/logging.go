// Package logging sets up the structured, rotating-file logger shared by
// the binlogrelay CLI and the relay-log service.
package logging

import (
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dbstream/binlogrelay/config"
)

// New builds a logrus.Logger per cfg: structured output rotated through
// lumberjack when a file is configured, otherwise written to stderr.
func New(cfg config.LoggingConfig) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		log.SetLevel(level)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}

	if cfg.File != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    maxOrDefault(cfg.MaxSizeMB, 100),
			MaxBackups: maxOrDefault(cfg.MaxBackups, 5),
			MaxAge:     maxOrDefault(cfg.MaxAgeDays, 28),
			Compress:   true,
		})
	}
	return log
}

func maxOrDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
