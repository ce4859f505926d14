package dispatch

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/polyglot/pkg/envelope"
	"github.com/ajitpratap0/polyglot/pkg/errors"
	"github.com/ajitpratap0/polyglot/pkg/language"
	"github.com/ajitpratap0/polyglot/pkg/logging"
	"github.com/ajitpratap0/polyglot/pkg/observability"
	"github.com/ajitpratap0/polyglot/pkg/protocol"
	"github.com/ajitpratap0/polyglot/pkg/registry"
)

// Dispatch modes reported in metrics and spans.
const (
	ModeSingle    = "single"
	ModeBroadcast = "broadcast"
)

var errInvalidJSON = stderrors.New("body is not valid JSON")

// Dispatcher routes requests of one endpoint to the providers of the
// request's language, or to every language when none can be determined.
// It is safe for concurrent use.
type Dispatcher[Req, Resp any] struct {
	endpoint Endpoint[Req, Resp]
	config   Config
	registry *registry.Registry[Req, Resp]
	resolver language.Resolver
	syncer   BufferSyncer
	logger   logging.Logger
	metrics  *observability.DispatchMetrics
	tracer   trace.Tracer
}

// New creates the dispatcher for endpoint.
func New[Req, Resp any](endpoint Endpoint[Req, Resp], opts ...Option) (*Dispatcher[Req, Resp], error) {
	if err := endpoint.Validate(); err != nil {
		return nil, err
	}

	s := newSettings(opts)
	logger := s.logger.WithFields(
		logging.Component("dispatch"),
		logging.String("endpoint", endpoint.Name),
	)

	return &Dispatcher[Req, Resp]{
		endpoint: endpoint,
		config:   s.config,
		registry: registry.New[Req, Resp](endpoint.Name,
			registry.WithRegistrations(s.registrations),
			registry.WithPlugins(s.plugins),
			registry.WithLogger(s.logger),
			registry.WithMetrics(s.metrics),
			registry.WithTracer(s.tracer),
		),
		resolver: s.resolver,
		syncer:   s.syncer,
		logger:   logger,
		metrics:  s.metrics,
		tracer:   s.tracer,
	}, nil
}

// Name returns the endpoint name.
func (d *Dispatcher[Req, Resp]) Name() string { return d.endpoint.Name }

// Registry returns the endpoint's capability registry.
func (d *Dispatcher[Req, Resp]) Registry() *registry.Registry[Req, Resp] { return d.registry }

// Handle reads, decodes and dispatches one request. A body that is not
// valid JSON is handled as an empty object.
func (d *Dispatcher[Req, Resp]) Handle(ctx context.Context, packet *protocol.Packet) (*Resp, error) {
	var raw []byte
	if packet != nil && packet.Body != nil {
		var err error
		if raw, err = io.ReadAll(packet.Body); err != nil {
			return nil, errors.TransportError("read", err)
		}
	}

	body, ok := envelope.Normalize(raw)
	if !ok && len(bytes.TrimSpace(raw)) > 0 {
		err := errors.MalformedPayload(d.endpoint.Name, errInvalidJSON)
		d.logger.WithContext(ctx).WithError(err).Warn("Malformed request payload, using empty object",
			logging.Int("size", len(raw)),
		)
	}

	return d.HandleParsed(ctx, packet, envelope.Extract(body), body)
}

// HandleParsed dispatches a request whose body was already normalized and
// whose language envelope was already extracted.
func (d *Dispatcher[Req, Resp]) HandleParsed(ctx context.Context, packet *protocol.Packet, model envelope.LanguageModel, body []byte) (*Resp, error) {
	if packet == nil {
		packet = protocol.NewPacket(d.endpoint.Name, body)
	}
	if logging.RequestIDFromContext(ctx) == "" {
		ctx = logging.ContextWithRequestID(ctx, packet.ID)
	}

	start := time.Now()
	ctx, span := observability.StartEndpointSpan(ctx, d.tracer, d.endpoint.Name)
	defer span.End()

	resp, mode, lang, err := d.handle(ctx, packet, model, body)

	span.SetAttributes(observability.AttrMode.String(mode), observability.AttrLanguage.String(lang))
	d.metrics.RecordRequest(d.endpoint.Name, mode, outcome(resp, err), time.Since(start))

	logger := d.logger.WithContext(ctx).WithFields(
		logging.String("mode", mode),
		logging.String("language", lang),
		logging.Duration("duration", time.Since(start)),
	)
	if err != nil {
		observability.RecordError(span, err)
		if errors.IsCategory(err, errors.CategoryValidation) || errors.IsCategory(err, errors.CategoryNotFound) {
			logger.WithError(err).Warn("Request rejected")
		} else {
			logger.WithError(err).Error("Request failed")
		}
		return nil, err
	}

	logger.Debug("Request handled", logging.Bool("null", resp == nil))
	return resp, nil
}

func (d *Dispatcher[Req, Resp]) handle(ctx context.Context, packet *protocol.Packet, model envelope.LanguageModel, body []byte) (*Resp, string, string, error) {
	req := new(Req)
	if err := json.Unmarshal(body, req); err != nil {
		return nil, ModeSingle, "", errors.DeserializationMismatch(d.endpoint.Name, err)
	}

	if err := d.syncBuffer(ctx, packet, model, body, req); err != nil {
		return nil, ModeSingle, "", err
	}

	lang := d.selectLanguage(model)
	if lang == "" {
		resp, err := d.broadcast(ctx, req)
		return resp, ModeBroadcast, "", err
	}

	resp, err := d.single(ctx, lang, req)
	return resp, ModeSingle, lang, err
}

// selectLanguage picks the request language from the envelope according to
// the endpoint's capabilities. An empty result means broadcast.
func (d *Dispatcher[Req, Resp]) selectLanguage(model envelope.LanguageModel) string {
	caps := d.endpoint.Capabilities
	var lang string
	switch {
	case caps.HasLanguage:
		lang = model.Language
		if strings.TrimSpace(lang) == "" && !caps.Aggregatable {
			lang = d.config.DefaultLanguage
		}
	case caps.HasFileName:
		lang = d.resolver.ResolveLanguage(model.FileName)
	default:
		lang = d.resolver.ResolveLanguage("")
	}
	return strings.TrimSpace(lang)
}

func (d *Dispatcher[Req, Resp]) single(ctx context.Context, lang string, req *Req) (*Resp, error) {
	table, err := d.registry.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	buckets, ok := table.Lookup(lang)
	if !ok {
		return nil, errors.UnsupportedLanguage(lang, d.endpoint.Name)
	}

	if d.endpoint.Capabilities.Aggregatable {
		return d.aggregate(ctx, language.Normalize(lang), buckets, req)
	}
	return d.firstResponse(ctx, language.Normalize(lang), buckets, req)
}

// broadcast aggregates every language in discovery order, each language's
// result folded onto the results of the languages before it.
func (d *Dispatcher[Req, Resp]) broadcast(ctx context.Context, req *Req) (*Resp, error) {
	if !d.endpoint.Capabilities.Aggregatable {
		return nil, errors.BroadcastNotAggregable(d.endpoint.Name)
	}

	table, err := d.registry.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	var acc *Resp
	for _, lang := range table.Languages() {
		buckets, _ := table.Lookup(lang)
		resp, err := d.aggregate(ctx, lang, buckets, req)
		if err != nil {
			return nil, err
		}
		acc = d.fold(acc, resp)
	}
	return acc, nil
}

// Serve handles packet and returns the response as a JSON-RPC result. A null
// response is returned as a nil interface.
func (d *Dispatcher[Req, Resp]) Serve(ctx context.Context, packet *protocol.Packet) (interface{}, error) {
	resp, err := d.Handle(ctx, packet)
	if err != nil || resp == nil {
		return nil, err
	}
	return resp, nil
}
