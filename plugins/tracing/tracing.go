// Package tracing records one OpenTelemetry span per effect run.
package tracing

import (
	"context"

	"github.com/on-the-ground/modelstore/model"
	"github.com/on-the-ground/modelstore/plugin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/on-the-ground/modelstore/plugins/tracing"

const (
	AttrNamespace = attribute.Key("modelstore.namespace")
	AttrEffectID  = attribute.Key("modelstore.effect_id")
)

// New returns hooks that start a span named after the qualified effect type around each
// effect run. A nil provider means the global one.
func New(tp trace.TracerProvider) plugin.Hooks {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	tracer := tp.Tracer(instrumentationName)

	return plugin.Hooks{
		OnEffect: func(effect model.EffectFn, _ model.EffectContext, m model.Module, actionType string) model.EffectFn {
			return func(ctx context.Context, ec model.EffectContext, action model.Action) (v any, err error) {
				ctx, span := tracer.Start(ctx, actionType,
					trace.WithSpanKind(trace.SpanKindInternal),
					trace.WithAttributes(
						AttrNamespace.String(m.Namespace),
						AttrEffectID.String(ec.ID()),
					),
				)
				defer func() {
					if rec := recover(); rec != nil {
						fail(span, model.AsError(rec))
						span.End()
						panic(rec)
					}
					if err != nil {
						fail(span, err)
					}
					span.End()
				}()
				return effect(ctx, ec, action)
			}
		},
	}
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
