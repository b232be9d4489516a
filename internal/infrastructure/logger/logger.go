package logger

import (
	"fmt"
	"os"
	"strings"

	"github.com/felicita/backend/internal/infrastructure/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Options holds logger configuration
type Options struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	Output     string // stdout, stderr, or file path
	TimeFormat string
}

// DefaultOptions returns options suitable for local development
func DefaultOptions() Options {
	return Options{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: timeLayout,
	}
}

// OptionsFromConfig maps the log section of the application config,
// forcing JSON output in production.
func OptionsFromConfig(app config.AppConfig, log config.LogConfig) Options {
	opts := DefaultOptions()
	if log.Level != "" {
		opts.Level = log.Level
	}
	if log.Format != "" {
		opts.Format = log.Format
	}
	if log.Output != "" {
		opts.Output = log.Output
	}
	if app.Env == "production" {
		opts.Format = "json"
	}
	return opts
}

// New creates a zap logger. Every entry carries the service name.
func New(service string, opts Options) (*zap.Logger, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	writer, err := createWriter(opts.Output)
	if err != nil {
		return nil, err
	}
	if opts.TimeFormat == "" {
		opts.TimeFormat = timeLayout
	}

	core := zapcore.NewCore(createEncoder(opts), writer, level)
	l := zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if service != "" {
		l = l.With(zap.String("service", service))
	}
	return l, nil
}

// NewFromConfig builds the process logger from the loaded configuration
func NewFromConfig(cfg *config.Config) (*zap.Logger, error) {
	return New(cfg.App.Name, OptionsFromConfig(cfg.App, cfg.Log))
}

func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

func createEncoder(opts Options) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(opts.TimeFormat),
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	if opts.Format == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(encoderConfig)
	}
	return zapcore.NewJSONEncoder(encoderConfig)
}

// createWriter opens the log destination. An unwritable file is an error:
// audit-relevant entries must not silently go elsewhere.
func createWriter(output string) (zapcore.WriteSyncer, error) {
	switch strings.ToLower(output) {
	case "", "stdout":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	default:
		file, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", output, err)
		}
		return zapcore.AddSync(file), nil
	}
}
