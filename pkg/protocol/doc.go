// Package protocol defines the wire-level types shared by the dispatch core.
//
// It contains the JSON-RPC 2.0 message envelopes used by the transports
// (Request, Response, Notification and Error) and the Packet type, which is
// the unit of work handed to a dispatcher: an endpoint name plus the raw,
// still undecoded request body.
//
// # Error Codes
//
// The standard JSON-RPC codes are complemented by the dispatch range:
//
//   - ProviderError (-32652): a capability provider failed
//   - UnsupportedLanguage (-32660): no provider registered for the language
//   - BroadcastNotAggregable (-32661): a language-less request targeted an
//     endpoint whose responses cannot be merged
package protocol
