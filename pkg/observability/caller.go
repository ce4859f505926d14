package observability

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/polyglot/pkg/transport"
)

// InstrumentCaller wraps next so every call records a client span and a
// remote call duration. Either metrics or tracer may be nil.
func InstrumentCaller(next transport.Caller, plugin string, metrics *DispatchMetrics, tracer trace.Tracer) transport.Caller {
	if tracer == nil {
		tracer = DefaultTracer()
	}
	return &instrumentedCaller{next: next, plugin: plugin, metrics: metrics, tracer: tracer}
}

type instrumentedCaller struct {
	next    transport.Caller
	plugin  string
	metrics *DispatchMetrics
	tracer  trace.Tracer
}

func (c *instrumentedCaller) SendRequest(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, "remote "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			AttrEndpoint.String(method),
			attribute.String("polyglot.plugin", c.plugin),
		),
	)
	defer span.End()

	start := time.Now()
	result, err := c.next.SendRequest(ctx, method, params)

	status := StatusOK
	switch {
	case err != nil:
		status = StatusError
		RecordError(span, err)
	case len(result) == 0 || string(result) == "null":
		status = StatusNull
	}
	c.metrics.RecordRemoteCall(method, status, time.Since(start))

	return result, err
}
