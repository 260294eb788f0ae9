/*
Package logging builds the process's single zap logger from environment
variables, read once at startup into an explicit Config rather than
re-read piecemeal by each component.
*/
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the ambient logging configuration, resolved once from the
// environment at process startup.
type Config struct {
	Level         string // LOG_LEVEL: DEBUG, INFO, WARN, ERROR (default INFO)
	FilePath      string // LOG_FILE_PATH: empty means stderr only
	ShowTimestamp bool   // LOG_SHOW_TIMESTAMP
}

// ConfigFromEnv reads the logging environment variables exactly once.
func ConfigFromEnv() Config {
	return Config{
		Level:         envOr("LOG_LEVEL", "INFO"),
		FilePath:      os.Getenv("LOG_FILE_PATH"),
		ShowTimestamp: parseBool(os.Getenv("LOG_SHOW_TIMESTAMP")),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

// New builds a zap.Logger from cfg. Output always includes stderr; when
// FilePath is set, log lines are written to both.
func New(cfg Config) (*zap.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	if cfg.ShowTimestamp {
		encoderCfg.TimeKey = "ts"
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		encoderCfg.TimeKey = ""
	}
	encoder := zapcore.NewConsoleEncoder(encoderCfg)

	writers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stderr)}
	if cfg.FilePath != "" {
		f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", cfg.FilePath, err)
		}
		writers = append(writers, zapcore.AddSync(f))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(writers...), level)
	return zap.New(core), nil
}

func parseLevel(raw string) (zapcore.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "DEBUG":
		return zapcore.DebugLevel, nil
	case "INFO", "":
		return zapcore.InfoLevel, nil
	case "WARN":
		return zapcore.WarnLevel, nil
	case "ERROR":
		return zapcore.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("unknown LOG_LEVEL %q", raw)
	}
}
