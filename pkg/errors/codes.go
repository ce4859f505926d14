package errors

// JSON-RPC 2.0 standard error codes.
const (
	CodeParseError     int = -32700
	CodeInvalidRequest int = -32600
	CodeMethodNotFound int = -32601
	CodeInvalidParams  int = -32602
	CodeInternalError  int = -32603
)

// Module-specific error codes.
const (
	// Operation errors (-32300 to -32399)
	CodeOperationCancelled int = -32300
	CodeOperationTimeout   int = -32301

	// Transport errors (-32500 to -32599)
	CodeTransportError          int = -32500
	CodeTransportNotInitialized int = -32504

	// Provider errors (-32650 to -32659)
	CodeProviderNotConfigured int = -32650
	CodeProviderUnavailable   int = -32651
	CodeProviderError         int = -32652

	// Dispatch errors (-32660 to -32679)
	CodeUnsupportedLanguage    int = -32660
	CodeBroadcastNotAggregable int = -32661
	CodeInvalidEndpoint        int = -32662
	CodeRegistryBuildFailed    int = -32663
)

// CodeInfo describes a registered error code.
type CodeInfo struct {
	Code        int
	Name        string
	Description string
	Category    Category
	Severity    Severity
}

var codeRegistry = map[int]CodeInfo{
	CodeParseError:     {CodeParseError, "ParseError", "Invalid JSON was received", CategoryProtocol, SeverityError},
	CodeInvalidRequest: {CodeInvalidRequest, "InvalidRequest", "Invalid Request object", CategoryProtocol, SeverityError},
	CodeMethodNotFound: {CodeMethodNotFound, "MethodNotFound", "Method does not exist", CategoryProtocol, SeverityError},
	CodeInvalidParams:  {CodeInvalidParams, "InvalidParams", "Invalid method parameters", CategoryValidation, SeverityError},
	CodeInternalError:  {CodeInternalError, "InternalError", "Internal JSON-RPC error", CategoryInternal, SeverityError},

	CodeOperationCancelled: {CodeOperationCancelled, "OperationCancelled", "Operation cancelled", CategoryCancelled, SeverityInfo},
	CodeOperationTimeout:   {CodeOperationTimeout, "OperationTimeout", "Operation timed out", CategoryCancelled, SeverityError},

	CodeTransportError:          {CodeTransportError, "TransportError", "Transport error", CategoryTransport, SeverityError},
	CodeTransportNotInitialized: {CodeTransportNotInitialized, "TransportNotInitialized", "Transport not initialized", CategoryTransport, SeverityError},

	CodeProviderNotConfigured: {CodeProviderNotConfigured, "ProviderNotConfigured", "Provider not configured", CategoryProvider, SeverityError},
	CodeProviderUnavailable:   {CodeProviderUnavailable, "ProviderUnavailable", "Provider unavailable", CategoryProvider, SeverityError},
	CodeProviderError:         {CodeProviderError, "ProviderError", "Provider error", CategoryProvider, SeverityError},

	CodeUnsupportedLanguage:    {CodeUnsupportedLanguage, "UnsupportedLanguage", "No provider registered for language", CategoryNotFound, SeverityError},
	CodeBroadcastNotAggregable: {CodeBroadcastNotAggregable, "BroadcastNotAggregable", "Broadcast on a non-aggregating endpoint", CategoryValidation, SeverityError},
	CodeInvalidEndpoint:        {CodeInvalidEndpoint, "InvalidEndpoint", "Invalid endpoint declaration", CategoryValidation, SeverityCritical},
	CodeRegistryBuildFailed:    {CodeRegistryBuildFailed, "RegistryBuildFailed", "Capability registry build failed", CategoryInternal, SeverityError},
}

// CodeInfoFor returns the registered information for code.
func CodeInfoFor(code int) (CodeInfo, bool) {
	info, ok := codeRegistry[code]
	return info, ok
}

// CodeName returns the name of code, or "UnknownError".
func CodeName(code int) string {
	if info, ok := codeRegistry[code]; ok {
		return info.Name
	}
	return "UnknownError"
}

// CodeCategory returns the category of code, defaulting to internal.
func CodeCategory(code int) Category {
	if info, ok := codeRegistry[code]; ok {
		return info.Category
	}
	return CategoryInternal
}

// CodeSeverity returns the severity of code, defaulting to error.
func CodeSeverity(code int) Severity {
	if info, ok := codeRegistry[code]; ok {
		return info.Severity
	}
	return SeverityError
}

// IsStandardJSONRPCCode checks if a code is in the reserved JSON-RPC range.
func IsStandardJSONRPCCode(code int) bool {
	return code >= -32768 && code <= -32000
}
