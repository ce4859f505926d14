package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/polyglot/pkg/protocol"
)

// serve runs tr until the returned stop function is called.
func serve(t *testing.T, tr *StdioTransport) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Start(ctx) }()

	return func() {
		require.NoError(t, tr.Stop(context.Background()))
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("transport did not stop")
		}
	}
}

// connectedPair returns two transports wired back to back.
func connectedPair() (client, server *StdioTransport) {
	clientIn, serverOut := io.Pipe()
	serverIn, clientOut := io.Pipe()
	return NewStdioTransport(clientIn, clientOut), NewStdioTransport(serverIn, serverOut)
}

func TestStdioTransport_Send(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStdioTransport(strings.NewReader(""), &buf)

	require.NoError(t, tr.Send([]byte(`{"a":1}`)))
	require.NoError(t, tr.Send([]byte(`{"a":2}`)))
	assert.Equal(t, "{\"a\":1}\n{\"a\":2}\n", buf.String())
}

func TestStdioTransport_ServesRequests(t *testing.T) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	tr := NewStdioTransport(inR, outW)
	tr.RegisterRequestHandler("/hover", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return map[string]json.RawMessage{"params": params}, nil
	})
	stop := serve(t, tr)
	defer stop()

	go func() {
		_, _ = inW.Write([]byte(`{"jsonrpc":"2.0","id":7,"method":"/hover","params":{"language":"go"}}` + "\n"))
	}()

	line, err := bufio.NewReader(outR).ReadBytes('\n')
	require.NoError(t, err)

	var resp protocol.Response
	require.NoError(t, json.Unmarshal(line, &resp))
	assert.Equal(t, float64(7), resp.ID)
	assert.Nil(t, resp.Error)
	assert.JSONEq(t, `{"params":{"language":"go"}}`, string(resp.Result))
}

func TestStdioTransport_RoundTrip(t *testing.T) {
	client, server := connectedPair()
	server.RegisterRequestHandler("/definition", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		var in struct{ N int }
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, err
		}
		return map[string]int{"n": in.N * 2}, nil
	})
	server.RegisterRequestHandler("/null", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return nil, nil
	})

	stopServer := serve(t, server)
	defer stopServer()
	stopClient := serve(t, client)
	defer stopClient()

	t.Run("concurrent calls", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 1; i <= 10; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				result, err := client.SendRequest(context.Background(), "/definition", map[string]int{"N": n})
				if assert.NoError(t, err) {
					var out map[string]int
					assert.NoError(t, json.Unmarshal(result, &out))
					assert.Equal(t, n*2, out["n"])
				}
			}(i)
		}
		wg.Wait()
	})

	t.Run("null result", func(t *testing.T) {
		result, err := client.SendRequest(context.Background(), "/null", nil)
		require.NoError(t, err)
		assert.Equal(t, "null", string(result))
	})

	t.Run("error reply", func(t *testing.T) {
		_, err := client.SendRequest(context.Background(), "/missing", nil)
		var rpcErr *protocol.Error
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, protocol.MethodNotFound, rpcErr.Code)
	})
}

func TestStdioTransport_Notifications(t *testing.T) {
	client, server := connectedPair()
	received := make(chan string, 1)
	server.RegisterNotificationHandler("didChange", func(ctx context.Context, params json.RawMessage) error {
		received <- string(params)
		return nil
	})

	stopServer := serve(t, server)
	defer stopServer()
	stopClient := serve(t, client)
	defer stopClient()

	require.NoError(t, client.SendNotification(context.Background(), "unhandled", nil))
	require.NoError(t, client.SendNotification(context.Background(), "didChange", map[string]string{"f": "a.cs"}))

	select {
	case params := <-received:
		assert.JSONEq(t, `{"f":"a.cs"}`, params)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestStdioTransport_MalformedInput(t *testing.T) {
	errs := make(chan error, 1)
	input := strings.NewReader("{not json}\n")
	tr := NewStdioTransport(input, io.Discard, WithErrorHandler(func(err error) { errs <- err }))

	require.NoError(t, tr.Start(context.Background()))

	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "unknown message type")
	default:
		t.Fatal("expected error handler to be called")
	}
}

func TestStdioTransport_ContextCancellation(t *testing.T) {
	inR, inW := io.Pipe()
	defer inW.Close()
	tr := NewStdioTransport(inR, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancellation")
	}
}

func TestStdioTransport_StopFailsPendingRequests(t *testing.T) {
	inR, inW := io.Pipe()
	defer inW.Close()
	tr := NewStdioTransport(inR, io.Discard)
	stop := serve(t, tr)

	errs := make(chan error, 1)
	go func() {
		_, err := tr.SendRequest(context.Background(), "/never", nil)
		errs <- err
	}()

	// wait until the request is pending
	require.Eventually(t, func() bool {
		tr.RLock()
		defer tr.RUnlock()
		return len(tr.pendingRequests) == 1
	}, time.Second, 5*time.Millisecond)

	stop()
	assert.Error(t, <-errs)
}
