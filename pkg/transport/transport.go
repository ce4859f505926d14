package transport

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/ajitpratap0/polyglot/pkg/errors"
	"github.com/ajitpratap0/polyglot/pkg/logging"
	"github.com/ajitpratap0/polyglot/pkg/protocol"
)

// Caller sends JSON-RPC requests to a peer. It is the contract remote
// providers are invoked through.
type Caller interface {
	// SendRequest sends method with params and returns the raw result. A
	// JSON-RPC error reply is returned as a *protocol.Error.
	SendRequest(ctx context.Context, method string, params interface{}) (json.RawMessage, error)
}

// CallerFunc adapts a function to Caller.
type CallerFunc func(ctx context.Context, method string, params interface{}) (json.RawMessage, error)

func (f CallerFunc) SendRequest(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	return f(ctx, method, params)
}

// Transport is a bidirectional JSON-RPC connection.
type Transport interface {
	Caller

	SendNotification(ctx context.Context, method string, params interface{}) error

	RegisterRequestHandler(method string, handler RequestHandler)
	RegisterNotificationHandler(method string, handler NotificationHandler)

	// Start serves the connection until ctx is cancelled, Stop is called or
	// the peer closes it
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// RequestHandler handles incoming requests. params is the raw JSON of the
// request's params member.
type RequestHandler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// NotificationHandler handles incoming notifications.
type NotificationHandler func(ctx context.Context, params json.RawMessage) error

// ErrorHandler handles transport errors.
type ErrorHandler func(err error)

// ErrUnsupportedMethod is returned for notifications with no registered handler.
var ErrUnsupportedMethod = stderrors.New("unsupported method")

// BaseTransport holds handler tables, pending requests and id generation
// shared by transport implementations.
type BaseTransport struct {
	sync.RWMutex
	requestHandlers      map[string]RequestHandler
	notificationHandlers map[string]NotificationHandler
	pendingRequests      map[string]chan *protocol.Response
	nextID               int64
	requestIDPrefix      string
	logger               logging.Logger
}

// NewBaseTransport creates a new BaseTransport.
func NewBaseTransport(logger logging.Logger) *BaseTransport {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &BaseTransport{
		requestHandlers:      make(map[string]RequestHandler),
		notificationHandlers: make(map[string]NotificationHandler),
		pendingRequests:      make(map[string]chan *protocol.Response),
		nextID:               1,
		requestIDPrefix:      "req",
		logger:               logger.WithFields(logging.Component("transport")),
	}
}

// HandleRequest runs the handler registered for request.Method. Handler
// errors and panics are converted into JSON-RPC error responses.
func (t *BaseTransport) HandleRequest(ctx context.Context, request *protocol.Request) (resp *protocol.Response) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("panic in request handler",
				logging.String("method", request.Method),
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())))
			resp = protocol.NewErrorResponse(request.ID, &protocol.Error{
				Code:    protocol.InternalError,
				Message: fmt.Sprintf("Internal server error processing %s", request.Method),
			})
		}
	}()

	t.RLock()
	handler, ok := t.requestHandlers[request.Method]
	t.RUnlock()

	if !ok {
		return protocol.NewErrorResponse(request.ID, errors.ToProtocolError(errors.EndpointNotFound(request.Method)))
	}

	result, err := handler(logging.ContextWithRequestID(ctx, fmt.Sprintf("%v", request.ID)), request.Params)
	if err != nil {
		return protocol.NewErrorResponse(request.ID, errors.ToProtocolError(err))
	}

	resp, err = protocol.NewResponse(request.ID, result)
	if err != nil {
		return protocol.NewErrorResponse(request.ID, &protocol.Error{
			Code:    protocol.InternalError,
			Message: fmt.Sprintf("failed to marshal result: %v", err),
		})
	}
	return resp
}

// HandleResponse delivers response to the request waiting on its id.
func (t *BaseTransport) HandleResponse(response *protocol.Response) {
	id := fmt.Sprintf("%v", response.ID)

	t.Lock()
	ch, ok := t.pendingRequests[id]
	if ok {
		delete(t.pendingRequests, id)
	}
	t.Unlock()

	if !ok {
		t.logger.Warn("response for unknown request", logging.String("id", id))
		return
	}
	ch <- response
}

// HandleNotification runs the handler registered for notification.Method.
func (t *BaseTransport) HandleNotification(ctx context.Context, notification *protocol.Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error processing notification %s: %v", notification.Method, r)
		}
	}()

	t.RLock()
	handler, ok := t.notificationHandlers[notification.Method]
	t.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedMethod, notification.Method)
	}
	return handler(ctx, notification.Params)
}

// expectResponse registers a pending request; it must happen before the
// request is written so a fast reply is never lost.
func (t *BaseTransport) expectResponse(id string) chan *protocol.Response {
	ch := make(chan *protocol.Response, 1)
	t.Lock()
	t.pendingRequests[id] = ch
	t.Unlock()
	return ch
}

func (t *BaseTransport) forget(id string) {
	t.Lock()
	delete(t.pendingRequests, id)
	t.Unlock()
}

// WaitForResponse waits for the response on ch, registered for id.
func (t *BaseTransport) WaitForResponse(ctx context.Context, id string, ch chan *protocol.Response) (*protocol.Response, error) {
	select {
	case response, ok := <-ch:
		if !ok {
			return nil, errors.TransportError("wait_response", fmt.Errorf("transport closed while waiting for %s", id))
		}
		return response, nil
	case <-ctx.Done():
		t.forget(id)
		return nil, ctx.Err()
	}
}

// RegisterRequestHandler registers a handler for incoming requests.
func (t *BaseTransport) RegisterRequestHandler(method string, handler RequestHandler) {
	t.Lock()
	defer t.Unlock()
	t.requestHandlers[method] = handler
}

// RegisterNotificationHandler registers a handler for incoming notifications.
func (t *BaseTransport) RegisterNotificationHandler(method string, handler NotificationHandler) {
	t.Lock()
	defer t.Unlock()
	t.notificationHandlers[method] = handler
}

// GenerateID generates a unique request id.
func (t *BaseTransport) GenerateID() string {
	t.Lock()
	defer t.Unlock()
	id := t.nextID
	t.nextID++
	return fmt.Sprintf("%s_%d", t.requestIDPrefix, id)
}

// Cleanup fails every pending request.
func (t *BaseTransport) Cleanup() {
	t.Lock()
	defer t.Unlock()

	for _, ch := range t.pendingRequests {
		close(ch)
	}
	t.pendingRequests = make(map[string]chan *protocol.Response)
}
