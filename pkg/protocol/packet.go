package protocol

import (
	"bytes"
	"io"

	"github.com/google/uuid"
)

// Packet is one incoming request addressed to a named endpoint. Body holds
// the undecoded request payload.
type Packet struct {
	ID       string
	Endpoint string
	Body     io.Reader
}

// NewPacket creates a packet with a fresh id carrying body.
func NewPacket(endpoint string, body []byte) *Packet {
	return &Packet{
		ID:       uuid.NewString(),
		Endpoint: endpoint,
		Body:     bytes.NewReader(body),
	}
}

// WithBody returns a copy of p reading from body.
func (p *Packet) WithBody(body []byte) *Packet {
	cp := *p
	cp.Body = bytes.NewReader(body)
	return &cp
}

// Retarget returns a copy of p addressed to endpoint, reading from body.
func (p *Packet) Retarget(endpoint string, body []byte) *Packet {
	cp := p.WithBody(body)
	cp.Endpoint = endpoint
	return cp
}
