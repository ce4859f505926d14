// Package polyglot is the request-dispatch core of a multi-language tooling
// server.
//
// A request arrives as a packet addressed to a named endpoint. The engine
// infers the request's language from its loosely typed JSON body, selects the
// providers registered for that language, runs them concurrently in tier
// order and, for endpoints whose responses can be merged, folds their partial
// answers into one response.
//
// # Overview
//
// The module consists of several packages:
//
//   - pkg/envelope: Case-insensitive extraction of the language and file name
//   - pkg/language: File name to language resolution
//   - pkg/provider: Provider contract with in-process and remote adapters
//   - pkg/registry: Lazily built per-endpoint capability tables
//   - pkg/dispatch: The dispatch engine, tiered aggregation, buffer sync and routing
//   - pkg/transport: JSON-RPC transports and reliable remote callers
//   - pkg/observability: Prometheus metrics and OpenTelemetry tracing
//   - pkg/errors, pkg/logging, pkg/protocol: Shared error, logging and wire types
//
// # Declaring an Endpoint
//
// An endpoint names its capabilities explicitly. Aggregatable endpoints
// provide a merge function that folds a new response into the running
// aggregate:
//
//	codeCheck, err := dispatch.New(dispatch.Endpoint[FileRequest, Diagnostics]{
//	    Name:         "/codecheck",
//	    Capabilities: dispatch.Capabilities{HasFileName: true, Aggregatable: true},
//	    Merge: func(next, acc *Diagnostics) *Diagnostics {
//	        return &Diagnostics{QuickFixes: append(acc.QuickFixes, next.QuickFixes...)}
//	    },
//	}, dispatch.WithRegistrations(provider.Registrations{
//	    {Endpoint: "/codecheck", Language: "go", Handler: checkGo},
//	    {Endpoint: "/codecheck", Language: "go", Auxiliary: true, Handler: lintGo},
//	}))
//
// # Serving
//
// Dispatchers are registered with a Router, which binds every endpoint to a
// transport as a JSON-RPC method:
//
//	router := polyglot.NewRouter(logger)
//	_ = router.Register(codeCheck)
//	stdio := polyglot.NewStdioTransport(os.Stdin, os.Stdout)
//	router.Bind(stdio)
//	err = stdio.Start(ctx)
//
// # Examples
//
// The examples directory holds polyglot-server, a stdio server with buffer
// synchronization, aggregation and optional plugin routing.
package polyglot
