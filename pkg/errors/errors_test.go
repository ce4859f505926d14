package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/polyglot/pkg/protocol"
)

func TestBaseError(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(cause, CodeProviderError, "Provider failed", CategoryProvider, SeverityError)

	assert.Equal(t, CodeProviderError, err.Code())
	assert.Equal(t, "Provider failed: boom", err.Error())
	assert.True(t, stderrors.Is(err, cause))
	assert.NotNil(t, err.Context())
	assert.False(t, err.Context().Timestamp.IsZero())

	detailed := err.WithDetail("first").WithDetail("second")
	assert.Equal(t, "first; second", detailed.Details())
	assert.Empty(t, err.Details(), "WithDetail must not mutate the receiver")

	withCtx := err.WithContext(&Context{Component: "dispatch"})
	assert.Equal(t, "dispatch", withCtx.Context().Component)
	assert.False(t, withCtx.Context().Timestamp.IsZero())
}

func TestToJSON(t *testing.T) {
	err := New(CodeUnsupportedLanguage, "no provider", CategoryNotFound, SeverityError).
		WithData(map[string]interface{}{"language": "cobol"})

	data, marshalErr := json.Marshal(err)
	require.NoError(t, marshalErr)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, float64(CodeUnsupportedLanguage), decoded["code"])
	assert.Equal(t, "not_found", decoded["category"])
	assert.Equal(t, "cobol", decoded["data"].(map[string]interface{})["language"])
}

func TestDispatchConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      Error
		code     int
		category Category
	}{
		{"malformed payload", MalformedPayload("/hover", stderrors.New("bad json")), CodeParseError, CategoryProtocol},
		{"deserialization mismatch", DeserializationMismatch("/hover", stderrors.New("type")), CodeInvalidParams, CategoryValidation},
		{"unsupported language", UnsupportedLanguage("cobol", "/hover"), CodeUnsupportedLanguage, CategoryNotFound},
		{"broadcast not aggregable", BroadcastNotAggregable("/hover"), CodeBroadcastNotAggregable, CategoryValidation},
		{"provider failure", ProviderFailure("/hover", "go", "primary", stderrors.New("x")), CodeProviderError, CategoryProvider},
		{"provider cancelled", ProviderFailure("/hover", "go", "primary", context.Canceled), CodeProviderError, CategoryCancelled},
		{"endpoint not found", EndpointNotFound("/nope"), CodeMethodNotFound, CategoryProtocol},
		{"invalid endpoint", InvalidEndpoint("/x", "missing merge"), CodeInvalidEndpoint, CategoryValidation},
		{"registry build", RegistryBuildFailed("/x", stderrors.New("x")), CodeRegistryBuildFailed, CategoryInternal},
		{"transport", TransportError("send", stderrors.New("pipe")), CodeTransportError, CategoryTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code())
			assert.Equal(t, tt.category, tt.err.Category())
			assert.True(t, IsCode(tt.err, tt.code))
			assert.True(t, IsCategory(tt.err, tt.category))
		})
	}
}

func TestProviderFailureUnwraps(t *testing.T) {
	sentinel := stderrors.New("analysis crashed")
	err := ProviderFailure("/hover", "go", "auxiliary", sentinel)

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, "go", err.Context().Language)
	assert.Equal(t, "auxiliary", err.Context().Operation)
	assert.Contains(t, err.Error(), "analysis crashed")
}

func TestAsThroughWrapping(t *testing.T) {
	inner := UnsupportedLanguage("cobol", "/hover")
	wrapped := fmt.Errorf("handling request: %w", inner)

	e, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeUnsupportedLanguage, e.Code())

	_, ok = As(stderrors.New("plain"))
	assert.False(t, ok)
	_, ok = As(nil)
	assert.False(t, ok)
}

func TestToProtocolError(t *testing.T) {
	t.Run("structured", func(t *testing.T) {
		rpcErr := ToProtocolError(UnsupportedLanguage("cobol", "/hover"))
		require.NotNil(t, rpcErr)
		assert.Equal(t, protocol.UnsupportedLanguage, rpcErr.Code)
		data := rpcErr.Data.(map[string]interface{})
		assert.Equal(t, "cobol", data["language"])
		assert.Equal(t, "not_found", data["category"])
	})

	t.Run("plain", func(t *testing.T) {
		rpcErr := ToProtocolError(stderrors.New("oops"))
		assert.Equal(t, protocol.InternalError, rpcErr.Code)
		assert.Equal(t, "oops", rpcErr.Message)
	})

	t.Run("cancelled", func(t *testing.T) {
		rpcErr := ToProtocolError(fmt.Errorf("wait: %w", context.Canceled))
		assert.Equal(t, protocol.ErrorCode(CodeOperationCancelled), rpcErr.Code)
	})

	t.Run("passthrough", func(t *testing.T) {
		orig := &protocol.Error{Code: -1, Message: "peer"}
		assert.Same(t, orig, ToProtocolError(fmt.Errorf("remote: %w", orig)))
	})

	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, ToProtocolError(nil))
	})
}

func TestFromProtocolError(t *testing.T) {
	e := FromProtocolError(&protocol.Error{Code: protocol.InvalidParams, Message: "bad", Data: "x"})
	assert.Equal(t, CodeInvalidParams, e.Code())
	assert.Equal(t, CategoryValidation, e.Category())
	assert.Equal(t, "x", e.Data())
	assert.Nil(t, FromProtocolError(nil))
}

func TestCodeRegistry(t *testing.T) {
	assert.Equal(t, "UnsupportedLanguage", CodeName(CodeUnsupportedLanguage))
	assert.Equal(t, "UnknownError", CodeName(12345))
	assert.Equal(t, CategoryInternal, CodeCategory(12345))
	assert.True(t, IsStandardJSONRPCCode(CodeBroadcastNotAggregable))
	assert.False(t, IsStandardJSONRPCCode(1))

	info, ok := CodeInfoFor(CodeProviderError)
	require.True(t, ok)
	assert.Equal(t, CategoryProvider, info.Category)
}
