package provider

import (
	"github.com/ajitpratap0/polyglot/pkg/transport"
)

// Registration declares an in-process provider for one endpoint and language.
// Handler is a Func or a plain func(context.Context, *Req) (*Resp, error) for
// the endpoint's request and response types; anything else is skipped when
// the endpoint's registry is built.
type Registration struct {
	Endpoint  string
	Language  string
	Auxiliary bool
	Handler   any
}

// RegistrationSource enumerates in-process registrations. It is read once per
// registry build.
type RegistrationSource interface {
	Registrations() []Registration
}

// Registrations is a static RegistrationSource.
type Registrations []Registration

func (r Registrations) Registrations() []Registration { return r }

// Plugin describes an out-of-process provider host. Every declared language
// becomes one remote provider on each declared endpoint.
type Plugin struct {
	Name      string
	Endpoints []string
	Languages []string
	Auxiliary bool
	Caller    transport.Caller
}

// Serves reports whether the plugin declares endpoint. Endpoint names are
// matched exactly.
func (p Plugin) Serves(endpoint string) bool {
	for _, e := range p.Endpoints {
		if e == endpoint {
			return true
		}
	}
	return false
}

// PluginSource enumerates discovered plugins. It is read once per registry
// build.
type PluginSource interface {
	Plugins() []Plugin
}

// Plugins is a static PluginSource.
type Plugins []Plugin

func (p Plugins) Plugins() []Plugin { return p }
