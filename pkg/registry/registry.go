// Package registry builds the per-endpoint capability table: for every
// language, the primary and auxiliary providers that can answer the endpoint.
package registry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/ajitpratap0/polyglot/pkg/errors"
	"github.com/ajitpratap0/polyglot/pkg/language"
	"github.com/ajitpratap0/polyglot/pkg/logging"
	"github.com/ajitpratap0/polyglot/pkg/observability"
	"github.com/ajitpratap0/polyglot/pkg/provider"
)

// Skip reasons reported for registrations left out of a table.
const (
	SkipTypeMismatch = "type_mismatch"
	SkipNoLanguage   = "no_language"
)

// Buckets holds the providers of one language, each tier in discovery order.
type Buckets[Req, Resp any] struct {
	Primary   []provider.Provider[Req, Resp]
	Auxiliary []provider.Provider[Req, Resp]
}

// Len returns the number of providers across both tiers.
func (b *Buckets[Req, Resp]) Len() int { return len(b.Primary) + len(b.Auxiliary) }

func (b *Buckets[Req, Resp]) add(p provider.Provider[Req, Resp]) {
	if p.Tier() == provider.Auxiliary {
		b.Auxiliary = append(b.Auxiliary, p)
		return
	}
	b.Primary = append(b.Primary, p)
}

// Table maps lower-cased language identifiers to their providers. Languages
// keep the order in which they were first discovered. A Table is never
// modified after it is built.
type Table[Req, Resp any] struct {
	languages *orderedmap.OrderedMap[string, *Buckets[Req, Resp]]
}

// Lookup returns the providers for lang, matched case-insensitively.
func (t *Table[Req, Resp]) Lookup(lang string) (*Buckets[Req, Resp], bool) {
	return t.languages.Get(language.Normalize(lang))
}

// Languages returns the table's languages in discovery order.
func (t *Table[Req, Resp]) Languages() []string {
	out := make([]string, 0, t.languages.Len())
	for pair := t.languages.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Len returns the number of languages.
func (t *Table[Req, Resp]) Len() int { return t.languages.Len() }

func (t *Table[Req, Resp]) bucket(lang string) *Buckets[Req, Resp] {
	if b, ok := t.languages.Get(lang); ok {
		return b
	}
	b := &Buckets[Req, Resp]{}
	t.languages.Set(lang, b)
	return b
}

// Stats describes a registry's build state.
type Stats struct {
	Builds    int64 `json:"builds"`
	Built     bool  `json:"built"`
	Languages int   `json:"languages"`
	Providers int   `json:"providers"`
}

// Option configures a Registry.
type Option func(*options)

type options struct {
	registrations provider.RegistrationSource
	plugins       provider.PluginSource
	logger        logging.Logger
	metrics       *observability.DispatchMetrics
	tracer        trace.Tracer
}

// WithRegistrations sets the in-process registration feed.
func WithRegistrations(src provider.RegistrationSource) Option {
	return func(o *options) { o.registrations = src }
}

// WithPlugins sets the plugin feed.
func WithPlugins(src provider.PluginSource) Option {
	return func(o *options) { o.plugins = src }
}

// WithLogger sets the logger used for build diagnostics.
func WithLogger(logger logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics records builds and skipped registrations. Remote providers
// also record their calls.
func WithMetrics(metrics *observability.DispatchMetrics) Option {
	return func(o *options) { o.metrics = metrics }
}

// WithTracer traces calls made by remote providers.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) { o.tracer = tracer }
}

// Registry lazily builds and memoizes the capability table of one endpoint.
// Concurrent first calls to Resolve share a single build. A failed build is
// not remembered; the next Resolve tries again.
type Registry[Req, Resp any] struct {
	endpoint string
	opts     options
	logger   logging.Logger

	flight singleflight.Group
	table  atomic.Pointer[Table[Req, Resp]]
	builds atomic.Int64
}

// New creates the registry for endpoint.
func New[Req, Resp any](endpoint string, opts ...Option) *Registry[Req, Resp] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}

	return &Registry[Req, Resp]{
		endpoint: endpoint,
		opts:     o,
		logger: o.logger.WithFields(
			logging.Component("registry"),
			logging.String("endpoint", endpoint),
		),
	}
}

// Endpoint returns the endpoint name the registry filters on.
func (r *Registry[Req, Resp]) Endpoint() string { return r.endpoint }

// Resolve returns the capability table, building it on first use.
func (r *Registry[Req, Resp]) Resolve(ctx context.Context) (*Table[Req, Resp], error) {
	if t := r.table.Load(); t != nil {
		return t, nil
	}

	v, err, _ := r.flight.Do(r.endpoint, func() (interface{}, error) {
		// a build may have completed between the fast path and Do
		if t := r.table.Load(); t != nil {
			return t, nil
		}

		t, err := r.build(ctx)
		if err != nil {
			r.opts.metrics.RecordRegistryBuild(r.endpoint, observability.StatusError)
			r.logger.WithError(err).Warn("Capability table build failed")
			return nil, err
		}

		r.table.Store(t)
		r.opts.metrics.RecordRegistryBuild(r.endpoint, observability.StatusOK)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Table[Req, Resp]), nil
}

// Stats reports how many builds ran and the shape of the current table.
func (r *Registry[Req, Resp]) Stats() Stats {
	s := Stats{Builds: r.builds.Load()}
	if t := r.table.Load(); t != nil {
		s.Built = true
		s.Languages = t.Len()
		for pair := t.languages.Oldest(); pair != nil; pair = pair.Next() {
			s.Providers += pair.Value.Len()
		}
	}
	return s
}

func (r *Registry[Req, Resp]) build(ctx context.Context) (*Table[Req, Resp], error) {
	r.builds.Add(1)
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, errors.RegistryBuildFailed(r.endpoint, err)
	}

	t := &Table[Req, Resp]{languages: orderedmap.New[string, *Buckets[Req, Resp]]()}

	if r.opts.registrations != nil {
		for _, reg := range r.opts.registrations.Registrations() {
			if reg.Endpoint != r.endpoint {
				continue
			}
			r.addRegistration(t, reg)
		}
	}

	if r.opts.plugins != nil {
		for _, plugin := range r.opts.plugins.Plugins() {
			if !plugin.Serves(r.endpoint) {
				continue
			}
			r.addPlugin(t, plugin)
		}
	}

	r.logger.Debug("Capability table built",
		logging.Strings("languages", t.Languages()),
		logging.Duration("duration", time.Since(start)),
	)
	return t, nil
}

func (r *Registry[Req, Resp]) addRegistration(t *Table[Req, Resp], reg provider.Registration) {
	lang := language.Normalize(reg.Language)
	if lang == "" {
		r.skip(reg, SkipNoLanguage)
		return
	}

	tier := provider.TierOf(reg.Auxiliary)
	var fn provider.Func[Req, Resp]
	switch h := reg.Handler.(type) {
	case provider.Func[Req, Resp]:
		fn = h
	case func(context.Context, *Req) (*Resp, error):
		fn = h
	default:
		r.skip(reg, SkipTypeMismatch)
		return
	}
	if fn == nil {
		r.skip(reg, SkipTypeMismatch)
		return
	}

	t.bucket(lang).add(provider.NewRegistered(lang, tier, fn))
}

func (r *Registry[Req, Resp]) addPlugin(t *Table[Req, Resp], plugin provider.Plugin) {
	if plugin.Caller != nil && (r.opts.metrics != nil || r.opts.tracer != nil) {
		plugin.Caller = observability.InstrumentCaller(plugin.Caller, plugin.Name, r.opts.metrics, r.opts.tracer)
	}

	for _, declared := range plugin.Languages {
		lang := language.Normalize(declared)
		if lang == "" {
			r.logger.Warn("Plugin declares an empty language", logging.String("plugin", plugin.Name))
			r.opts.metrics.RecordSkippedRegistration(r.endpoint, SkipNoLanguage)
			continue
		}
		t.bucket(lang).add(provider.NewRemote[Req, Resp](plugin, r.endpoint, lang))
	}
}

func (r *Registry[Req, Resp]) skip(reg provider.Registration, reason string) {
	r.logger.Warn("Skipping provider registration",
		logging.String("language", reg.Language),
		logging.Bool("auxiliary", reg.Auxiliary),
		logging.String("reason", reason),
		logging.String("handler", handlerType(reg.Handler)),
	)
	r.opts.metrics.RecordSkippedRegistration(r.endpoint, reason)
}

func handlerType(h any) string {
	if h == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", h)
}
