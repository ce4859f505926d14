package polyglot

import (
	"github.com/ajitpratap0/polyglot/pkg/dispatch"
	"github.com/ajitpratap0/polyglot/pkg/language"
	"github.com/ajitpratap0/polyglot/pkg/provider"
	"github.com/ajitpratap0/polyglot/pkg/transport"
)

// Version represents the current version of the module.
const Version = "0.1.0"

// These exports provide direct access to the non-generic entry points.
var (
	// NewRouter creates an endpoint router.
	NewRouter = dispatch.NewRouter

	// DefaultConfig returns the default dispatcher configuration.
	DefaultConfig = dispatch.DefaultConfig

	// NewStdioTransport creates a new stdio transport.
	NewStdioTransport = transport.NewStdioTransport

	// NewExtensionResolver creates a file extension language resolver.
	NewExtensionResolver = language.NewExtensionResolver

	// LoadManifest parses a plugin manifest.
	LoadManifest = provider.LoadManifest
)
