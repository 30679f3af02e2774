// Package logging builds the service's zap logger and an audit sink that
// writes login events through it.
package logging

import (
	"context"
	"strings"

	"github.com/MrEthical07/loginguard"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger for environment. Production gets ISO8601 timestamps,
// no stack traces, and sampling; anything else gets the development config.
func New(environment, level, format string) (*zap.Logger, error) {
	var config zap.Config

	if environment == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.DisableStacktrace = true
		config.Sampling = &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		}
	} else {
		config = zap.NewDevelopmentConfig()
		if format != "json" {
			config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	}
	config.Level = zap.NewAtomicLevelAt(ParseLevel(level))

	if format == "json" {
		config.Encoding = "json"
	} else {
		config.Encoding = "console"
	}

	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	return config.Build(zap.AddCaller())
}

func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// AuditSink logs audit events at info level, or warn for backend errors and
// lockouts.
type AuditSink struct {
	logger *zap.Logger
}

func NewAuditSink(logger *zap.Logger) *AuditSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditSink{logger: logger.Named("audit")}
}

func (s *AuditSink) Emit(_ context.Context, e loginguard.AuditEvent) {
	fields := []zap.Field{
		zap.String("event_type", e.EventType),
		zap.Time("at", e.Timestamp),
		zap.Bool("success", e.Success),
	}
	if e.Identity != "" {
		fields = append(fields, zap.String("identity", e.Identity))
	}
	if e.AccountRef != "" {
		fields = append(fields, zap.String("account_ref", e.AccountRef))
	}
	if e.IP != "" {
		fields = append(fields, zap.String("ip", e.IP))
	}
	if e.RequestID != "" {
		fields = append(fields, zap.String("request_id", e.RequestID))
	}
	if e.Failures > 0 {
		fields = append(fields, zap.Int("failures", e.Failures))
	}
	if e.Error != "" {
		fields = append(fields, zap.String("error", e.Error))
	}
	if len(e.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", e.Metadata))
	}

	switch e.EventType {
	case loginguard.AuditBackendError, loginguard.AuditLockoutTriggered:
		s.logger.Warn("audit", fields...)
	default:
		s.logger.Info("audit", fields...)
	}
}
