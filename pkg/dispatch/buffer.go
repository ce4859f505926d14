package dispatch

import (
	"context"

	"github.com/ajitpratap0/polyglot/pkg/envelope"
	"github.com/ajitpratap0/polyglot/pkg/observability"
	"github.com/ajitpratap0/polyglot/pkg/protocol"
)

// BufferSyncer receives a request's buffer or changes before the request
// itself is handled. Every Dispatcher is a BufferSyncer; the one bound to
// the buffer update endpoint is normally passed to WithBufferSync.
type BufferSyncer interface {
	SyncBuffer(ctx context.Context, packet *protocol.Packet, model envelope.LanguageModel, body []byte) error
}

// BufferSyncFunc adapts a function to BufferSyncer.
type BufferSyncFunc func(ctx context.Context, packet *protocol.Packet, model envelope.LanguageModel, body []byte) error

func (f BufferSyncFunc) SyncBuffer(ctx context.Context, packet *protocol.Packet, model envelope.LanguageModel, body []byte) error {
	return f(ctx, packet, model, body)
}

// SyncBuffer handles body as a request of this dispatcher's endpoint and
// discards the response.
func (d *Dispatcher[Req, Resp]) SyncBuffer(ctx context.Context, packet *protocol.Packet, model envelope.LanguageModel, body []byte) error {
	_, err := d.HandleParsed(ctx, packet, model, body)
	return err
}

// syncBuffer forwards the request to the configured syncer when it carries a
// buffer or changes for a named file.
func (d *Dispatcher[Req, Resp]) syncBuffer(ctx context.Context, packet *protocol.Packet, model envelope.LanguageModel, body []byte, req *Req) error {
	if d.syncer == nil || d.endpoint.Buffer == nil || d.endpoint.Name == d.config.BufferEndpoint {
		return nil
	}

	state := d.endpoint.Buffer(req)
	if !state.Pending() {
		return nil
	}

	err := d.syncer.SyncBuffer(ctx, packet.Retarget(d.config.BufferEndpoint, body), model, body)
	if err != nil {
		d.metrics.RecordBufferSync(d.endpoint.Name, observability.StatusError)
		return err
	}
	d.metrics.RecordBufferSync(d.endpoint.Name, observability.StatusOK)
	return nil
}
