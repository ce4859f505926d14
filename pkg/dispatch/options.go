package dispatch

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/polyglot/pkg/language"
	"github.com/ajitpratap0/polyglot/pkg/logging"
	"github.com/ajitpratap0/polyglot/pkg/observability"
	"github.com/ajitpratap0/polyglot/pkg/provider"
)

// Config holds dispatcher settings.
type Config struct {
	// DefaultLanguage is used for non-aggregating endpoints whose requests
	// carry an empty language.
	DefaultLanguage string `json:"defaultLanguage"`

	// BufferEndpoint names the endpoint buffer synchronization is forwarded to.
	BufferEndpoint string `json:"bufferEndpoint"`
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		DefaultLanguage: "csharp",
		BufferEndpoint:  "/updatebuffer",
	}
}

// Option configures a Dispatcher.
type Option func(*settings)

type settings struct {
	config        Config
	resolver      language.Resolver
	syncer        BufferSyncer
	logger        logging.Logger
	metrics       *observability.DispatchMetrics
	tracer        trace.Tracer
	registrations provider.RegistrationSource
	plugins       provider.PluginSource
}

func newSettings(opts []Option) settings {
	s := settings{config: DefaultConfig()}
	for _, opt := range opts {
		opt(&s)
	}
	if s.resolver == nil {
		s.resolver = language.NewExtensionResolver()
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	if s.tracer == nil {
		s.tracer = observability.DefaultTracer()
	}
	return s
}

// WithConfig replaces the dispatcher configuration.
func WithConfig(config Config) Option {
	return func(s *settings) { s.config = config }
}

// WithDefaultLanguage sets Config.DefaultLanguage.
func WithDefaultLanguage(lang string) Option {
	return func(s *settings) { s.config.DefaultLanguage = lang }
}

// WithBufferSync forwards pending buffers to syncer before each request.
func WithBufferSync(syncer BufferSyncer) Option {
	return func(s *settings) { s.syncer = syncer }
}

// WithResolver sets the resolver that maps file names to languages.
func WithResolver(resolver language.Resolver) Option {
	return func(s *settings) { s.resolver = resolver }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithMetrics records request, provider and registry metrics.
func WithMetrics(metrics *observability.DispatchMetrics) Option {
	return func(s *settings) { s.metrics = metrics }
}

// WithTracer sets the tracer used for request and tier spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *settings) { s.tracer = tracer }
}

// WithRegistrations sets the in-process provider feed.
func WithRegistrations(src provider.RegistrationSource) Option {
	return func(s *settings) { s.registrations = src }
}

// WithPlugins sets the plugin feed.
func WithPlugins(src provider.PluginSource) Option {
	return func(s *settings) { s.plugins = src }
}
