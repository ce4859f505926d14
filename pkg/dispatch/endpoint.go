package dispatch

import (
	"github.com/ajitpratap0/polyglot/pkg/errors"
)

// Capabilities describes which envelope fields an endpoint's requests carry
// and whether its responses can be merged.
type Capabilities struct {
	// HasLanguage means the request names its language explicitly.
	HasLanguage bool `json:"hasLanguage"`
	// HasFileName means the request names a file the language is resolved from.
	HasFileName bool `json:"hasFileName"`
	// Aggregatable means responses from several providers can be merged.
	Aggregatable bool `json:"aggregatable"`
}

// MergeFunc folds next into the running aggregate acc and returns the new
// aggregate. acc is never nil.
type MergeFunc[Resp any] func(next, acc *Resp) *Resp

// BufferState reports source text a request carries for its file.
type BufferState struct {
	FileName   string
	HasBuffer  bool
	HasChanges bool
}

// Pending reports whether the state must be synchronized before the request
// is handled.
func (s BufferState) Pending() bool {
	return s.FileName != "" && (s.HasBuffer || s.HasChanges)
}

// Endpoint declares one dispatchable endpoint. It is not modified after it
// is handed to a Dispatcher.
type Endpoint[Req, Resp any] struct {
	Name         string
	Capabilities Capabilities

	// Merge is required when Capabilities.Aggregatable is set.
	Merge MergeFunc[Resp]

	// Buffer, when set, reports a buffer or changes carried by the request.
	Buffer func(req *Req) BufferState
}

// Validate reports declarations that cannot be served.
func (e *Endpoint[Req, Resp]) Validate() error {
	if e.Name == "" {
		return errors.InvalidEndpoint(e.Name, "endpoint name is required")
	}
	if e.Capabilities.Aggregatable && e.Merge == nil {
		return errors.InvalidEndpoint(e.Name, "aggregatable endpoint requires a merge function")
	}
	return nil
}
