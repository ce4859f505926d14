package dispatch

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/alphadose/haxmap"

	"github.com/ajitpratap0/polyglot/pkg/errors"
	"github.com/ajitpratap0/polyglot/pkg/logging"
	"github.com/ajitpratap0/polyglot/pkg/protocol"
	"github.com/ajitpratap0/polyglot/pkg/transport"
)

// Handler serves the packets of one endpoint. Every Dispatcher is a Handler.
type Handler interface {
	Name() string
	Serve(ctx context.Context, packet *protocol.Packet) (interface{}, error)
}

// HandlerRegistrar accepts JSON-RPC request handlers. Every transport is a
// HandlerRegistrar.
type HandlerRegistrar interface {
	RegisterRequestHandler(method string, handler transport.RequestHandler)
}

// Router maps endpoint names to their handlers.
type Router struct {
	handlers *haxmap.Map[string, Handler]
	logger   logging.Logger
}

// NewRouter creates an empty router.
func NewRouter(logger logging.Logger) *Router {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Router{
		handlers: haxmap.New[string, Handler](),
		logger:   logger.WithFields(logging.Component("router")),
	}
}

// Register adds h under its name. A name can be registered once.
func (r *Router) Register(h Handler) error {
	name := h.Name()
	if name == "" {
		return errors.InvalidEndpoint(name, "endpoint name is required")
	}

	if _, loaded := r.handlers.GetOrCompute(name, func() Handler { return h }); loaded {
		return errors.InvalidEndpoint(name, "endpoint is already registered")
	}
	r.logger.Debug("Endpoint registered", logging.String("endpoint", name))
	return nil
}

// Lookup returns the handler registered for name.
func (r *Router) Lookup(name string) (Handler, bool) {
	return r.handlers.Get(name)
}

// Endpoints returns the registered endpoint names in lexical order.
func (r *Router) Endpoints() []string {
	names := make([]string, 0, r.handlers.Len())
	r.handlers.ForEach(func(name string, _ Handler) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// Dispatch serves packet with the handler registered for its endpoint.
func (r *Router) Dispatch(ctx context.Context, packet *protocol.Packet) (interface{}, error) {
	if packet == nil {
		return nil, errors.EndpointNotFound("")
	}

	h, ok := r.Lookup(packet.Endpoint)
	if !ok {
		err := errors.EndpointNotFound(packet.Endpoint)
		r.logger.WithContext(ctx).WithError(err).Warn("Unknown endpoint")
		return nil, err
	}
	return h.Serve(ctx, packet)
}

// Bind registers every endpoint as a request handler of registrar. The
// JSON-RPC method is the endpoint name and params is the request body.
func (r *Router) Bind(registrar HandlerRegistrar) {
	for _, name := range r.Endpoints() {
		registrar.RegisterRequestHandler(name, func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			packet := protocol.NewPacket(name, params)
			if id := logging.RequestIDFromContext(ctx); id != "" {
				packet.ID = id
			}
			return r.Dispatch(ctx, packet)
		})
	}
}
