// internal/infra/logger/logger.go
package logger

import (
	"os"
	"strings"

	"governance_reminder_bot/internal/infra/config"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger. Components log through entries returned by
// Component so every line carries its origin.
var Log = logrus.New()

// structuredEnvironments get JSON lines for log shipping.
var structuredEnvironments = map[string]bool{
	"production": true,
	"staging":    true,
}

// Init applies the configured level and output format to Log.
func Init(cfg *config.AppConfig) {
	Log.SetOutput(os.Stdout)
	Log.SetFormatter(formatterFor(cfg.Environment))

	level, ok := levelFor(cfg.LogLevel)
	Log.SetLevel(level)
	if !ok {
		Log.WithField("log_level", cfg.LogLevel).Warn("Unknown log level; using info")
	}

	Log.WithFields(logrus.Fields{
		"level":       Log.GetLevel().String(),
		"environment": cfg.Environment,
	}).Debug("Logger configured")
}

func levelFor(name string) (logrus.Level, bool) {
	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return logrus.InfoLevel, false
	}
	return level, true
}

func formatterFor(environment string) logrus.Formatter {
	if structuredEnvironments[strings.ToLower(environment)] {
		return &logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"}
	}
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		ForceColors:     true,
	}
}

// Component returns an entry scoped to one part of the bot.
func Component(name string) *logrus.Entry {
	return Log.WithField("component", name)
}
