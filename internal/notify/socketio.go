package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// EventName is the socket.io event run events are emitted under.
const EventName = "pipeline_event"

// SocketIOConfig describes the socket.io endpoint to stream events to.
type SocketIOConfig struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
}

// SocketIOObserver emits every run event to a socket.io server.
type SocketIOObserver struct {
	io *socket.Socket
}

// DialSocketIO connects to the endpoint and waits for the connection to be
// acknowledged.
func DialSocketIO(ctx context.Context, cfg SocketIOConfig) (*SocketIOObserver, error) {
	logger := ctxlog.FromContext(ctx).With("observer", "socketio", "url", cfg.URL)

	u, err := parseEndpoint(cfg.URL)
	if err != nil {
		return nil, err
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	opts := socket.DefaultOptions()
	opts.SetPath(socketPath(u))
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connected := make(chan error, 1)
	manager := socket.NewManager(fmt.Sprintf("%s://%s", u.Scheme, u.Host), opts)
	io := manager.Socket(cfg.Namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Debug("Connected to event endpoint.", "sid", io.Id())
		signal(connected, nil)
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			} else {
				err = fmt.Errorf("%v", errs[0])
			}
		}
		signal(connected, err)
	})
	io.Connect()

	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return &SocketIOObserver{io: io}, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}
}

func (o *SocketIOObserver) Notify(ctx context.Context, evt RunEvent) {
	payload, err := eventPayload(evt)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Dropping run event.", "type", string(evt.Type), "error", err)
		return
	}
	o.io.Emit(EventName, payload)
}

// Close disconnects from the server.
func (o *SocketIOObserver) Close() error {
	o.io.Disconnect()
	return nil
}

func signal(ch chan<- error, err error) {
	select {
	case ch <- err:
	default:
	}
}

func parseEndpoint(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported socket.io URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("socket.io URL %q has no host", raw)
	}
	return u, nil
}

func socketPath(u *url.URL) string {
	if u.Path == "" || u.Path == "/" {
		return "/socket.io/"
	}
	return u.Path
}

// eventPayload renders an event as the generic map socket.io serializes.
func eventPayload(evt RunEvent) (map[string]any, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
