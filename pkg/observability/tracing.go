// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for the dispatch core.
package observability

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name used for dispatch spans.
const TracerName = "github.com/ajitpratap0/polyglot/dispatch"

// Span attribute keys.
const (
	AttrEndpoint  = attribute.Key("polyglot.endpoint")
	AttrLanguage  = attribute.Key("polyglot.language")
	AttrTier      = attribute.Key("polyglot.tier")
	AttrMode      = attribute.Key("polyglot.mode")
	AttrProviders = attribute.Key("polyglot.providers")
)

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	ExporterType ExporterType
	Endpoint     string // OTLP endpoint
	Headers      map[string]string
	Insecure     bool

	SampleRate   float64  // 0.0 to 1.0
	AlwaysSample []string // Endpoints to always sample
	NeverSample  []string // Endpoints to never sample

	// SetGlobal installs the provider as the global otel TracerProvider.
	SetGlobal bool

	ResourceAttributes map[string]string
}

// ExporterType defines the type of trace exporter.
type ExporterType string

const (
	ExporterTypeOTLPGRPC ExporterType = "otlp-grpc"
	ExporterTypeOTLPHTTP ExporterType = "otlp-http"
	// ExporterTypeNoop disables trace export.
	ExporterTypeNoop ExporterType = "noop"
)

// TracingProvider owns an OpenTelemetry TracerProvider for the process.
type TracingProvider struct {
	config         TracingConfig
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	mu             sync.Mutex
	shutdown       func(context.Context) error
}

// NewTracingProvider creates a tracing provider exporting through the
// configured exporter.
func NewTracingProvider(config TracingConfig) (*TracingProvider, error) {
	exporter, err := createExporter(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}
	return newTracingProvider(config, sdktrace.WithBatcher(exporter))
}

// NewTracingProviderWithProcessor creates a tracing provider feeding spans
// to processor, such as a tracetest.SpanRecorder.
func NewTracingProviderWithProcessor(config TracingConfig, processor sdktrace.SpanProcessor) (*TracingProvider, error) {
	return newTracingProvider(config, sdktrace.WithSpanProcessor(processor))
}

func newTracingProvider(config TracingConfig, export sdktrace.TracerProviderOption) (*TracingProvider, error) {
	if config.ServiceName == "" {
		config.ServiceName = "polyglot"
	}
	if config.ServiceVersion == "" {
		config.ServiceVersion = "unknown"
	}
	if config.Environment == "" {
		config.Environment = "development"
	}
	if config.SampleRate == 0 {
		config.SampleRate = 1.0
	}

	tp := sdktrace.NewTracerProvider(
		export,
		sdktrace.WithResource(createResource(config)),
		sdktrace.WithSampler(createSampler(config)),
	)

	if config.SetGlobal {
		otel.SetTracerProvider(tp)
	}

	return &TracingProvider{
		config:         config,
		tracerProvider: tp,
		tracer:         tp.Tracer(TracerName),
		shutdown:       tp.Shutdown,
	}, nil
}

func createResource(config TracingConfig) *resource.Resource {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
		semconv.DeploymentEnvironment(config.Environment),
	}
	for k, v := range config.ResourceAttributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

func createExporter(config TracingConfig) (sdktrace.SpanExporter, error) {
	switch config.ExporterType {
	case ExporterTypeOTLPGRPC:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(config.Endpoint),
			otlptracegrpc.WithHeaders(config.Headers),
		}
		if config.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptrace.New(context.Background(), otlptracegrpc.NewClient(opts...))
	case ExporterTypeOTLPHTTP:
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(config.Endpoint),
			otlptracehttp.WithHeaders(config.Headers),
		}
		if config.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptrace.New(context.Background(), otlptracehttp.NewClient(opts...))
	case ExporterTypeNoop, "":
		return noopExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", config.ExporterType)
	}
}

func createSampler(config TracingConfig) sdktrace.Sampler {
	if len(config.AlwaysSample) > 0 || len(config.NeverSample) > 0 {
		return &endpointSampler{
			defaultRate:  config.SampleRate,
			alwaysSample: makeStringSet(config.AlwaysSample),
			neverSample:  makeStringSet(config.NeverSample),
		}
	}
	return ratioSampler(config.SampleRate)
}

func ratioSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0.0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Tracer returns the tracer used for dispatch spans.
func (tp *TracingProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// Shutdown flushes and stops the tracer provider.
func (tp *TracingProvider) Shutdown(ctx context.Context) error {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if tp.shutdown == nil {
		return nil
	}
	err := tp.shutdown(ctx)
	tp.shutdown = nil
	return err
}

// DefaultTracer returns the dispatch tracer of the global TracerProvider.
func DefaultTracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// StartEndpointSpan starts the span covering one request on endpoint.
func StartEndpointSpan(ctx context.Context, tracer trace.Tracer, endpoint string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "dispatch "+endpoint,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(append([]attribute.KeyValue{AttrEndpoint.String(endpoint)}, attrs...)...),
	)
}

// RecordError marks span as failed with err.
func RecordError(span trace.Span, err error) {
	if err == nil || !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// endpointSampler samples by endpoint name.
type endpointSampler struct {
	defaultRate  float64
	alwaysSample map[string]struct{}
	neverSample  map[string]struct{}
}

func (s *endpointSampler) ShouldSample(params sdktrace.SamplingParameters) sdktrace.SamplingResult {
	endpoint := params.Name
	for _, attr := range params.Attributes {
		if attr.Key == AttrEndpoint {
			endpoint = attr.Value.AsString()
			break
		}
	}

	if _, ok := s.alwaysSample[endpoint]; ok {
		return sdktrace.SamplingResult{Decision: sdktrace.RecordAndSample}
	}
	if _, ok := s.neverSample[endpoint]; ok {
		return sdktrace.SamplingResult{Decision: sdktrace.Drop}
	}
	return ratioSampler(s.defaultRate).ShouldSample(params)
}

func (s *endpointSampler) Description() string {
	return fmt.Sprintf("EndpointSampler{defaultRate=%.2f}", s.defaultRate)
}

type noopExporter struct{}

func (noopExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }
func (noopExporter) Shutdown(context.Context) error                             { return nil }

func makeStringSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}
