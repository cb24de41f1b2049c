package stream

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket is a ByteStream over a websocket serial bridge. Every binary
// message received is appended to the receive buffer; text messages are ignored.
type WebSocket struct {
	conn *websocket.Conn

	mu  sync.Mutex
	buf rxBuffer
	err error

	done chan struct{}
}

// DialWebSocket connects to a ws:// or wss:// bridge with optional HTTP Basic auth.
func DialWebSocket(wsURL, username, password string, skipSSLVerify bool) (*WebSocket, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket connection failed: %w", err)
	}

	return newWebSocket(conn), nil
}

func newWebSocket(conn *websocket.Conn) *WebSocket {
	w := &WebSocket{conn: conn, done: make(chan struct{})}
	go w.readLoop()
	return w
}

// readLoop runs until the connection fails. Gorilla connections cannot
// recover from a read deadline, so reads happen here rather than in Available.
func (w *WebSocket) readLoop() {
	defer close(w.done)
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.mu.Lock()
			w.err = err
			w.mu.Unlock()
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		w.mu.Lock()
		w.buf.append(data)
		w.mu.Unlock()
	}
}

// Write sends p as a single binary message.
func (w *WebSocket) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, fmt.Errorf("write websocket: %w", err)
	}
	return len(p), nil
}

// ReadByte returns the oldest received byte.
func (w *WebSocket) ReadByte() (byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.buf.pop()
	if ok {
		return c, nil
	}
	if w.err != nil {
		return 0, fmt.Errorf("%w: %v", ErrConnectionClosed, w.err)
	}
	return 0, ErrNoData
}

// Available returns the number of buffered bytes. Once the connection has
// failed and the buffer is empty it reports ErrConnectionClosed.
func (w *WebSocket) Available() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := w.buf.len()
	if n == 0 && w.err != nil {
		return 0, fmt.Errorf("%w: %v", ErrConnectionClosed, w.err)
	}
	return n, nil
}

// Close closes the connection and waits for the reader to exit.
func (w *WebSocket) Close() error {
	err := w.conn.Close()
	<-w.done
	return err
}
