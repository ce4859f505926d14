// Package provider defines the provider contract and its in-process and
// remote adapters, plus the registration and plugin feeds providers come from.
package provider

import (
	"bytes"
	"context"

	json "github.com/goccy/go-json"

	"github.com/ajitpratap0/polyglot/pkg/errors"
	"github.com/ajitpratap0/polyglot/pkg/transport"
)

// Tier orders providers within one language. Primary providers run first;
// auxiliary providers run after the primary tier has completed and may see
// its results.
type Tier int

const (
	Primary Tier = iota
	Auxiliary
)

func (t Tier) String() string {
	switch t {
	case Primary:
		return "primary"
	case Auxiliary:
		return "auxiliary"
	default:
		return "unknown"
	}
}

// TierOf maps a registration's auxiliary flag to its tier.
func TierOf(auxiliary bool) Tier {
	if auxiliary {
		return Auxiliary
	}
	return Primary
}

// Provider answers requests of one endpoint for one language. A nil response
// with a nil error means the provider had nothing to contribute.
type Provider[Req, Resp any] interface {
	Language() string
	Tier() Tier
	Invoke(ctx context.Context, req *Req) (*Resp, error)
}

// Func is an in-process provider implementation.
type Func[Req, Resp any] func(ctx context.Context, req *Req) (*Resp, error)

// Registered is a provider bound directly to an in-process Func.
type Registered[Req, Resp any] struct {
	language string
	tier     Tier
	fn       Func[Req, Resp]
}

// NewRegistered binds fn as the provider for language in tier.
func NewRegistered[Req, Resp any](language string, tier Tier, fn Func[Req, Resp]) *Registered[Req, Resp] {
	return &Registered[Req, Resp]{language: language, tier: tier, fn: fn}
}

func (p *Registered[Req, Resp]) Language() string { return p.language }
func (p *Registered[Req, Resp]) Tier() Tier       { return p.tier }

func (p *Registered[Req, Resp]) Invoke(ctx context.Context, req *Req) (*Resp, error) {
	if p.fn == nil {
		return nil, errors.ProviderNotConfigured(p.language)
	}
	return p.fn(ctx, req)
}

// Remote is a provider served by an out-of-process plugin. The request is
// sent as the params of a call named after the endpoint.
type Remote[Req, Resp any] struct {
	plugin   string
	endpoint string
	language string
	tier     Tier
	caller   transport.Caller
}

// NewRemote binds language of plugin to endpoint.
func NewRemote[Req, Resp any](plugin Plugin, endpoint, language string) *Remote[Req, Resp] {
	return &Remote[Req, Resp]{
		plugin:   plugin.Name,
		endpoint: endpoint,
		language: language,
		tier:     TierOf(plugin.Auxiliary),
		caller:   plugin.Caller,
	}
}

func (p *Remote[Req, Resp]) Language() string { return p.language }
func (p *Remote[Req, Resp]) Tier() Tier       { return p.tier }
func (p *Remote[Req, Resp]) Plugin() string   { return p.plugin }

func (p *Remote[Req, Resp]) Invoke(ctx context.Context, req *Req) (*Resp, error) {
	if p.caller == nil {
		return nil, errors.ProviderNotConfigured(p.plugin)
	}

	params, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidParams, "Failed to encode remote request",
			errors.CategoryValidation, errors.SeverityError)
	}

	result, err := p.caller.SendRequest(ctx, p.endpoint, json.RawMessage(params))
	if err != nil {
		return nil, err
	}
	if isNull(result) {
		return nil, nil
	}

	resp := new(Resp)
	if err := json.Unmarshal(result, resp); err != nil {
		return nil, errors.Wrap(err, errors.CodeProviderError, "Failed to decode remote response",
			errors.CategoryProvider, errors.SeverityError).
			WithContext(&errors.Context{Method: p.endpoint, Language: p.language, Component: "provider", Operation: "decode"})
	}
	return resp, nil
}

func isNull(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
