// Package log builds the zap loggers used across modelstore and an asynchronous
// fire-and-forget sink on top of them.
package log

import (
	"context"
	"fmt"
	"os"

	"github.com/on-the-ground/modelstore/internal/handlers"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level defines the severity level for log messages.
type Level string

const (
	// LevelInfo is used for general informational messages.
	LevelInfo Level = "info"

	// LevelWarn is used for potentially harmful situations.
	LevelWarn Level = "warn"

	// LevelError is used for error events that might still allow the application to continue running.
	LevelError Level = "error"

	// LevelDebug is used for debugging messages with detailed internal information.
	LevelDebug Level = "debug"
)

func (l Level) zapLevel() (zapcore.Level, error) {
	switch l {
	case LevelDebug:
		return zap.DebugLevel, nil
	case LevelInfo, "":
		return zap.InfoLevel, nil
	case LevelWarn:
		return zap.WarnLevel, nil
	case LevelError:
		return zap.ErrorLevel, nil
	default:
		return zap.InfoLevel, fmt.Errorf("unknown log level: %q", l)
	}
}

// ParseLevel validates a level name. The empty name means LevelInfo.
func ParseLevel(s string) (Level, error) {
	l := Level(s)
	if _, err := l.zapLevel(); err != nil {
		return "", err
	}
	if l == "" {
		l = LevelInfo
	}
	return l, nil
}

// New builds a production logger, or a development one when development is set.
func New(level Level, development bool) (*zap.Logger, error) {
	zl, err := level.zapLevel()
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zl)
	return cfg.Build()
}

// NewTest builds a debug console logger writing to stdout.
func NewTest() *zap.Logger {
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.Lock(os.Stdout),
		zap.DebugLevel,
	)
	return zap.New(consoleCore)
}

// Payload is one entry of the asynchronous sink. Entries sharing a Partition are written
// in submission order.
type Payload struct {
	Partition string
	Level     Level
	Message   string
	Fields    map[string]any
}

func (p Payload) PartitionKey() string {
	return p.Partition
}

// Async writes payloads to a zap logger from background workers.
type Async struct {
	handler handlers.FireAndForgetHandler[Payload]
}

// NewAsync starts the workers of an asynchronous sink. Close drains pending entries and
// syncs the logger.
func NewAsync(ctx context.Context, logger *zap.Logger, bufferSize, numWorkers int) *Async {
	return &Async{
		handler: handlers.NewFireAndForgetHandler(
			ctx,
			handlers.NewScopeConfig(bufferSize, numWorkers),
			logger,
			func(_ context.Context, payload Payload) {
				write(logger, payload)
			},
			func() {
				if err := logger.Sync(); err != nil {
					logger.Debug("failed to sync logger", zap.Error(err))
				}
			},
		),
	}
}

// Log queues an entry. It never blocks past ctx.
func (a *Async) Log(ctx context.Context, payload Payload) {
	a.handler.FireAndForgetEffect(ctx, payload)
}

// Close drains the queues and syncs the logger. Entries logged afterwards are dropped.
func (a *Async) Close() {
	a.handler.Close()
}

func write(logger *zap.Logger, payload Payload) {
	fields := make([]zap.Field, 0, len(payload.Fields))
	for k, v := range payload.Fields {
		fields = append(fields, zap.Any(k, v))
	}

	switch payload.Level {
	case LevelInfo:
		logger.Info(payload.Message, fields...)
	case LevelWarn:
		logger.Warn(payload.Message, fields...)
	case LevelError:
		logger.Error(payload.Message, fields...)
	case LevelDebug:
		logger.Debug(payload.Message, fields...)
	default:
		logger.Info(payload.Message, fields...)
	}
}
