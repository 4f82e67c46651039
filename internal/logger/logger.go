package logger

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates the service logger: JSON in production, coloured console otherwise.
// An empty level picks info in production and debug elsewhere.
func New(env, level string) (*zap.Logger, error) {
	return NewWithWriter(env, level, os.Stdout)
}

// NewWithWriter builds the same logger as New but writes entries to w
func NewWithWriter(env, level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := parseLevel(env, level)
	if err != nil {
		return nil, err
	}

	var encoder zapcore.Encoder
	if env == "production" {
		encoder = zapcore.NewJSONEncoder(encoderConfig(env))
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig(env))
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), lvl)

	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
	), nil
}

func encoderConfig(env string) zapcore.EncoderConfig {
	if env == "production" {
		cfg := zap.NewProductionEncoderConfig()
		cfg.TimeKey = "timestamp"
		cfg.MessageKey = "message"
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		return cfg
	}

	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return cfg
}

func parseLevel(env, level string) (zapcore.Level, error) {
	if strings.TrimSpace(level) == "" {
		if env == "production" {
			return zapcore.InfoLevel, nil
		}
		return zapcore.DebugLevel, nil
	}
	return zapcore.ParseLevel(strings.ToLower(level))
}
