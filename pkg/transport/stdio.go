package transport

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/polyglot/pkg/errors"
	"github.com/ajitpratap0/polyglot/pkg/logging"
	"github.com/ajitpratap0/polyglot/pkg/protocol"
)

// DefaultMaxMessageSize bounds a single newline-delimited message.
const DefaultMaxMessageSize = 16 << 20

// StdioTransport exchanges newline-delimited JSON-RPC messages over a
// reader and a writer, typically a child process's stdout and stdin or the
// server's own stdin and stdout.
type StdioTransport struct {
	*BaseTransport

	reader         io.Reader
	writer         *bufio.Writer
	maxMessageSize int

	mutex        sync.Mutex // guards writer and errorHandler
	errorHandler ErrorHandler

	done     chan struct{}
	stopOnce sync.Once
}

// StdioOption configures a StdioTransport.
type StdioOption func(*StdioTransport)

// WithStdioLogger sets the transport logger.
func WithStdioLogger(logger logging.Logger) StdioOption {
	return func(t *StdioTransport) {
		t.BaseTransport.logger = logger.WithFields(logging.Component("transport"))
	}
}

// WithErrorHandler sets the handler receiving low-level transport errors.
func WithErrorHandler(handler ErrorHandler) StdioOption {
	return func(t *StdioTransport) {
		t.errorHandler = handler
	}
}

// WithMaxMessageSize overrides DefaultMaxMessageSize.
func WithMaxMessageSize(n int) StdioOption {
	return func(t *StdioTransport) {
		t.maxMessageSize = n
	}
}

// NewStdioTransport creates a transport reading from reader and writing to
// writer.
func NewStdioTransport(reader io.Reader, writer io.Writer, opts ...StdioOption) *StdioTransport {
	t := &StdioTransport{
		BaseTransport:  NewBaseTransport(nil),
		reader:         reader,
		writer:         bufio.NewWriter(writer),
		maxMessageSize: DefaultMaxMessageSize,
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start reads and processes messages until ctx is cancelled, Stop is called
// or the reader reaches EOF. Requests are handled concurrently; Start
// returns after every in-flight handler has finished.
func (t *StdioTransport) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	scannerDone := make(chan struct{})

	g.Go(func() error {
		defer close(scannerDone)

		scanner := bufio.NewScanner(t.reader)
		scanner.Buffer(make([]byte, 0, 64*1024), t.maxMessageSize)

		for scanner.Scan() {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-t.done:
				return nil
			default:
			}

			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			data := make([]byte, len(line))
			copy(data, line)

			t.processMessage(gctx, g, data)
		}

		if err := scanner.Err(); err != nil && !stderrors.Is(err, io.EOF) {
			select {
			case <-t.done:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			return errors.TransportError("scan_input", err)
		}
		return nil
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
			t.closeReader()
			return gctx.Err()
		case <-t.done:
			t.closeReader()
			return nil
		case <-scannerDone:
			return nil
		}
	})

	return g.Wait()
}

func (t *StdioTransport) closeReader() {
	if closer, ok := t.reader.(io.Closer); ok {
		_ = closer.Close()
	}
}

// Stop halts the transport, flushes pending output and fails every request
// still waiting for a response.
func (t *StdioTransport) Stop(ctx context.Context) error {
	var flushErr error

	t.stopOnce.Do(func() {
		close(t.done)

		t.mutex.Lock()
		flushErr = t.writer.Flush()
		t.mutex.Unlock()

		t.BaseTransport.Cleanup()
	})

	if flushErr != nil {
		return errors.TransportError("flush_on_stop", flushErr)
	}
	return nil
}

// Send writes data followed by a newline and flushes.
func (t *StdioTransport) Send(data []byte) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if _, err := t.writer.Write(data); err != nil {
		return errors.TransportError("write_data", err)
	}
	if err := t.writer.WriteByte('\n'); err != nil {
		return errors.TransportError("write_newline", err)
	}
	if err := t.writer.Flush(); err != nil {
		return errors.TransportError("flush_output", err)
	}
	return nil
}

// SetErrorHandler sets the handler receiving low-level transport errors.
func (t *StdioTransport) SetErrorHandler(handler ErrorHandler) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.errorHandler = handler
}

func (t *StdioTransport) processMessage(ctx context.Context, g *errgroup.Group, data []byte) {
	switch protocol.Classify(data) {
	case protocol.KindRequest:
		var req protocol.Request
		if err := json.Unmarshal(data, &req); err != nil {
			t.handleError(fmt.Errorf("error unmarshalling request: %w", err))
			return
		}
		g.Go(func() error {
			t.reply(t.BaseTransport.HandleRequest(ctx, &req))
			return nil
		})

	case protocol.KindResponse:
		var resp protocol.Response
		if err := json.Unmarshal(data, &resp); err != nil {
			t.handleError(fmt.Errorf("error unmarshalling response: %w", err))
			return
		}
		t.BaseTransport.HandleResponse(&resp)

	case protocol.KindNotification:
		var notif protocol.Notification
		if err := json.Unmarshal(data, &notif); err != nil {
			t.handleError(fmt.Errorf("error unmarshalling notification: %w", err))
			return
		}
		if err := t.BaseTransport.HandleNotification(ctx, &notif); err != nil {
			if stderrors.Is(err, ErrUnsupportedMethod) {
				t.logger.Debug("ignoring notification", logging.String("method", notif.Method))
				return
			}
			t.handleError(fmt.Errorf("error handling notification %s: %w", notif.Method, err))
		}

	default:
		t.handleError(fmt.Errorf("unknown message type received: %s", data))
	}
}

func (t *StdioTransport) reply(resp *protocol.Response) {
	respData, err := json.Marshal(resp)
	if err != nil {
		t.handleError(fmt.Errorf("error marshalling response for request %v: %w", resp.ID, err))
		return
	}
	if err := t.Send(respData); err != nil {
		t.handleError(fmt.Errorf("error sending response for request %v: %w", resp.ID, err))
	}
}

func (t *StdioTransport) handleError(err error) {
	t.mutex.Lock()
	handler := t.errorHandler
	t.mutex.Unlock()

	t.logger.WithError(err).Warn("transport error")
	if handler != nil {
		handler(err)
	}
}

// SendRequest sends a request and waits for its response.
func (t *StdioTransport) SendRequest(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	id := t.BaseTransport.GenerateID()

	req, err := protocol.NewRequest(id, method, params)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("error marshalling request: %w", err)
	}

	ch := t.BaseTransport.expectResponse(id)
	if err := t.Send(data); err != nil {
		t.BaseTransport.forget(id)
		return nil, err
	}

	resp, err := t.BaseTransport.WaitForResponse(ctx, id, ch)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}

// SendNotification sends a one-way message.
func (t *StdioTransport) SendNotification(ctx context.Context, method string, params interface{}) error {
	notification, err := protocol.NewNotification(method, params)
	if err != nil {
		return fmt.Errorf("error creating notification: %w", err)
	}
	data, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("error marshalling notification: %w", err)
	}
	return t.Send(data)
}

var _ Transport = (*StdioTransport)(nil)
