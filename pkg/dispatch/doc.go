// Package dispatch routes the requests of one endpoint to the providers of
// the request's language.
//
// # Language selection
//
// The language comes from the request envelope according to the endpoint's
// Capabilities. Endpoints that carry a language use it directly; an empty
// language on a non-aggregating endpoint falls back to
// Config.DefaultLanguage. Endpoints that carry a file name resolve it through
// a language.Resolver. When no language can be determined the request is
// broadcast to every registered language, which requires an aggregatable
// endpoint.
//
// # Tiers
//
// Every language has a primary and an auxiliary tier. All providers of a
// tier are started together and awaited together; the auxiliary tier starts
// only after the primary tier's results have been folded. For aggregatable
// endpoints each non-null response is folded in discovery order with
// Merge(next, acc), and auxiliary providers can read the primary aggregate
// with Partial. Other endpoints return the first non-null response in
// discovery order, consulting the auxiliary tier only when every primary
// provider returned null.
//
// Providers of one tier share the decoded request and must not modify it.
//
// # Buffer synchronization
//
// A request carrying a buffer or changes for a named file is first forwarded
// to the configured BufferSyncer, normally the dispatcher of the buffer update
// endpoint:
//
//	update, _ := dispatch.New(updateEndpoint, opts...)
//	hover, _ := dispatch.New(hoverEndpoint, append(opts, dispatch.WithBufferSync(update))...)
package dispatch
