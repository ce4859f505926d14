package dispatch

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/polyglot/pkg/errors"
	"github.com/ajitpratap0/polyglot/pkg/observability"
	"github.com/ajitpratap0/polyglot/pkg/provider"
	"github.com/ajitpratap0/polyglot/pkg/registry"
)

type partialKey struct{}

// Partial returns the aggregate built by the primary tier of the language
// being handled. It is available to auxiliary providers of aggregating
// endpoints and reports false when the primary tier produced nothing.
func Partial[Resp any](ctx context.Context) (*Resp, bool) {
	acc, ok := ctx.Value(partialKey{}).(*Resp)
	return acc, ok && acc != nil
}

func withPartial[Resp any](ctx context.Context, acc *Resp) context.Context {
	if acc == nil {
		return ctx
	}
	return context.WithValue(ctx, partialKey{}, acc)
}

// fold merges results into acc in order, skipping null responses. The first
// non-null response becomes the aggregate unchanged.
func (d *Dispatcher[Req, Resp]) fold(acc *Resp, results ...*Resp) *Resp {
	for _, next := range results {
		if next == nil {
			continue
		}
		if acc == nil {
			acc = next
			continue
		}
		acc = d.endpoint.Merge(next, acc)
	}
	return acc
}

// aggregate runs the primary tier, folds it, then runs and folds the
// auxiliary tier.
func (d *Dispatcher[Req, Resp]) aggregate(ctx context.Context, lang string, b *registry.Buckets[Req, Resp], req *Req) (*Resp, error) {
	primary, err := d.runTier(ctx, lang, provider.Primary, b.Primary, req)
	if err != nil {
		return nil, err
	}
	acc := d.fold(nil, primary...)

	auxiliary, err := d.runTier(withPartial(ctx, acc), lang, provider.Auxiliary, b.Auxiliary, req)
	if err != nil {
		return nil, err
	}
	return d.fold(acc, auxiliary...), nil
}

// firstResponse returns the first non-null primary response in discovery
// order, falling back to the auxiliary tier when every primary is null.
func (d *Dispatcher[Req, Resp]) firstResponse(ctx context.Context, lang string, b *registry.Buckets[Req, Resp], req *Req) (*Resp, error) {
	for _, tier := range []provider.Tier{provider.Primary, provider.Auxiliary} {
		providers := b.Primary
		if tier == provider.Auxiliary {
			providers = b.Auxiliary
		}

		results, err := d.runTier(ctx, lang, tier, providers, req)
		if err != nil {
			return nil, err
		}
		for _, resp := range results {
			if resp != nil {
				return resp, nil
			}
		}
	}
	return nil, nil
}

// runTier starts every provider of the tier and waits for all of them.
// Results are indexed by discovery order. The first failure cancels the
// remaining providers' context and is returned.
func (d *Dispatcher[Req, Resp]) runTier(ctx context.Context, lang string, tier provider.Tier, providers []provider.Provider[Req, Resp], req *Req) ([]*Resp, error) {
	if len(providers) == 0 {
		return nil, nil
	}

	ctx, span := d.tracer.Start(ctx, "tier "+tier.String(),
		trace.WithAttributes(
			observability.AttrEndpoint.String(d.endpoint.Name),
			observability.AttrLanguage.String(lang),
			observability.AttrTier.String(tier.String()),
			observability.AttrProviders.Int(len(providers)),
		),
	)
	defer span.End()

	results := make([]*Resp, len(providers))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range providers {
		g.Go(func() error {
			start := time.Now()
			resp, err := p.Invoke(gctx, req)
			d.metrics.RecordProvider(d.endpoint.Name, lang, tier.String(), outcome(resp, err), time.Since(start))
			if err != nil {
				return errors.ProviderFailure(d.endpoint.Name, lang, tier.String(), err)
			}
			results[i] = resp
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	return results, nil
}

func outcome[Resp any](resp *Resp, err error) string {
	switch {
	case err != nil:
		return observability.StatusError
	case resp == nil:
		return observability.StatusNull
	default:
		return observability.StatusOK
	}
}
