package errors

import (
	"context"
	stderrors "errors"

	"github.com/ajitpratap0/polyglot/pkg/protocol"
)

// ToProtocolError converts err into a JSON-RPC error object. Errors that
// are not part of this package's model map to InternalError, except
// cancellations which map to OperationCancelled.
func ToProtocolError(err error) *protocol.Error {
	if err == nil {
		return nil
	}

	var rpcErr *protocol.Error
	if e, ok := As(err); ok {
		data := map[string]interface{}{
			"category": string(e.Category()),
			"severity": string(e.Severity()),
		}
		if e.Details() != "" {
			data["details"] = e.Details()
		}
		if extra, ok := e.Data().(map[string]interface{}); ok {
			for k, v := range extra {
				data[k] = v
			}
		} else if e.Data() != nil {
			data["data"] = e.Data()
		}
		return &protocol.Error{
			Code:    protocol.ErrorCode(e.Code()),
			Message: e.Message(),
			Data:    data,
		}
	}

	if stderrors.As(err, &rpcErr) {
		return rpcErr
	}

	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return &protocol.Error{
			Code:    protocol.ErrorCode(CodeOperationCancelled),
			Message: err.Error(),
		}
	}

	return &protocol.Error{
		Code:    protocol.InternalError,
		Message: err.Error(),
	}
}

// FromProtocolError converts a JSON-RPC error object received from a peer
// into an Error.
func FromProtocolError(rpcErr *protocol.Error) Error {
	if rpcErr == nil {
		return nil
	}
	code := int(rpcErr.Code)
	e := New(code, rpcErr.Message, CodeCategory(code), CodeSeverity(code))
	if rpcErr.Data != nil {
		e = e.WithData(rpcErr.Data)
	}
	return e
}
