// Package actionlog writes every dispatched action and every effect run to a zap logger
// from background workers. Entries of the same namespace keep their order.
package actionlog

import (
	"context"
	"time"

	"github.com/on-the-ground/modelstore/config"
	"github.com/on-the-ground/modelstore/log"
	"github.com/on-the-ground/modelstore/model"
	"github.com/on-the-ground/modelstore/plugin"
	"github.com/rickb777/date/v2/timespan"
	"go.uber.org/zap"
)

const (
	MsgAction       = "action dispatched"
	MsgEffectDone   = "effect done"
	MsgEffectFailed = "effect failed"
)

type Logger struct {
	sink *log.Async
}

// New starts the workers of the action log. Close must be called to flush it.
func New(ctx context.Context, logger *zap.Logger, cfg config.ActionLog) *Logger {
	return &Logger{
		sink: log.NewAsync(ctx, logger, cfg.BufferSize, cfg.NumWorkers),
	}
}

// Hooks returns the hooks to hand to runtime.UsePlugin.
func (l *Logger) Hooks() plugin.Hooks {
	return plugin.Hooks{
		OnAction: l.onAction,
		OnEffect: l.onEffect,
	}
}

// Close flushes pending entries. Entries logged afterwards are dropped.
func (l *Logger) Close() {
	l.sink.Close()
}

func (l *Logger) onAction(ctx context.Context, action model.Action, _ func() model.State) {
	l.sink.Log(ctx, log.Payload{
		Partition: partitionOf(action.Type),
		Level:     log.LevelDebug,
		Message:   MsgAction,
		Fields: map[string]any{
			"type":  action.Type,
			"inner": action.IsInner(),
		},
	})
}

func (l *Logger) onEffect(effect model.EffectFn, _ model.EffectContext, m model.Module, actionType string) model.EffectFn {
	return func(ctx context.Context, ec model.EffectContext, action model.Action) (v any, err error) {
		start := time.Now()
		defer func() {
			rec := recover()
			span := timespan.BetweenTimes(start, time.Now())
			payload := log.Payload{
				Partition: m.Namespace,
				Level:     log.LevelInfo,
				Message:   MsgEffectDone,
				Fields: map[string]any{
					"type":     actionType,
					"effectId": ec.ID(),
					"started":  span.Start(),
					"duration": span.Duration(),
				},
			}
			failure := err
			if rec != nil {
				failure = model.AsError(rec)
			}
			if failure != nil {
				payload.Level = log.LevelError
				payload.Message = MsgEffectFailed
				payload.Fields["error"] = failure.Error()
			}
			l.sink.Log(context.WithoutCancel(ctx), payload)
			if rec != nil {
				panic(rec)
			}
		}()
		return effect(ctx, ec, action)
	}
}

func partitionOf(actionType string) string {
	if ns, _, ok := model.SplitType(actionType); ok {
		return ns
	}
	return ""
}
