package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// MalformedPayload reports a request body that was not valid JSON. The
// dispatcher logs it and continues with an empty object.
func MalformedPayload(endpoint string, cause error) Error {
	return Wrap(cause, CodeParseError, "Malformed request payload", CategoryProtocol, SeverityWarning).
		WithContext(&Context{Method: endpoint, Component: "dispatch", Operation: "normalize"}).
		WithData(map[string]interface{}{"endpoint": endpoint})
}

// DeserializationMismatch reports a body that could not be decoded into the
// endpoint's request type.
func DeserializationMismatch(endpoint string, cause error) Error {
	return Wrap(cause, CodeInvalidParams, "Request does not match endpoint parameters", CategoryValidation, SeverityError).
		WithContext(&Context{Method: endpoint, Component: "dispatch", Operation: "decode"}).
		WithData(map[string]interface{}{"endpoint": endpoint})
}

// UnsupportedLanguage reports a language with no registered provider.
func UnsupportedLanguage(language, endpoint string) Error {
	return Newf(CodeUnsupportedLanguage, CategoryNotFound, SeverityError,
		"No provider for language %q on %s", language, endpoint).
		WithContext(&Context{Method: endpoint, Language: language, Component: "dispatch", Operation: "lookup"}).
		WithData(map[string]interface{}{"language": language, "endpoint": endpoint})
}

// BroadcastNotAggregable reports a language-less request on an endpoint
// whose responses cannot be merged.
func BroadcastNotAggregable(endpoint string) Error {
	return Newf(CodeBroadcastNotAggregable, CategoryValidation, SeverityError,
		"Endpoint %s cannot broadcast: responses are not aggregatable", endpoint).
		WithContext(&Context{Method: endpoint, Component: "dispatch", Operation: "broadcast"}).
		WithData(map[string]interface{}{"endpoint": endpoint})
}

// ProviderFailure wraps an error raised by a capability provider.
func ProviderFailure(endpoint, language, tier string, cause error) Error {
	code := CodeProviderError
	category := CategoryProvider
	if stderrors.Is(cause, context.Canceled) || stderrors.Is(cause, context.DeadlineExceeded) {
		category = CategoryCancelled
	}
	return Wrap(cause, code, "Provider failed", category, SeverityError).
		WithContext(&Context{Method: endpoint, Language: language, Component: "dispatch", Operation: tier}).
		WithDetail(fmt.Sprintf("language=%s tier=%s", language, tier)).
		WithData(map[string]interface{}{"endpoint": endpoint, "language": language, "tier": tier})
}

// EndpointNotFound reports a packet addressed to an unknown endpoint.
func EndpointNotFound(name string) Error {
	return Newf(CodeMethodNotFound, CategoryProtocol, SeverityError, "Endpoint not found: %s", name).
		WithContext(&Context{Method: name, Component: "router", Operation: "lookup"})
}

// InvalidEndpoint reports an endpoint declaration that cannot be served.
func InvalidEndpoint(name, reason string) Error {
	return Newf(CodeInvalidEndpoint, CategoryValidation, SeverityCritical, "Invalid endpoint %s", name).
		WithDetail(reason)
}

// RegistryBuildFailed wraps an error raised while building a capability table.
func RegistryBuildFailed(endpoint string, cause error) Error {
	return Wrap(cause, CodeRegistryBuildFailed, "Failed to build capability registry", CategoryInternal, SeverityError).
		WithContext(&Context{Method: endpoint, Component: "registry", Operation: "build"})
}

// TransportError wraps a transport-level failure.
func TransportError(operation string, cause error) Error {
	return Wrap(cause, CodeTransportError, "Transport error", CategoryTransport, SeverityError).
		WithContext(&Context{Component: "transport", Operation: operation})
}

// TransportNotInitialized reports use of a transport before Initialize.
func TransportNotInitialized(operation string) Error {
	return New(CodeTransportNotInitialized, "Transport not initialized", CategoryTransport, SeverityError).
		WithContext(&Context{Component: "transport", Operation: operation})
}

// ProviderNotConfigured reports a provider variant without its backing handler.
func ProviderNotConfigured(name string) Error {
	return Newf(CodeProviderNotConfigured, CategoryProvider, SeverityError, "Provider %s is not configured", name)
}

// OperationCancelled reports a cancelled operation.
func OperationCancelled(operation string) Error {
	return Newf(CodeOperationCancelled, CategoryCancelled, SeverityInfo, "Operation %s was cancelled", operation)
}
