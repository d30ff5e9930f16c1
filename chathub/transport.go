package chathub

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/AltairaLabs/sydney/internal/streaming"
	"github.com/AltairaLabs/sydney/logger"
)

// Transport is one turn's connection to the chat hub. Implementations need not
// be safe for concurrent Receive calls; Close may be called from any goroutine.
type Transport interface {
	Send(data []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// Dialer opens a Transport for a turn.
type Dialer interface {
	Dial(ctx context.Context, rawURL string, headers http.Header) (Transport, error)
}

// WebSocketDialer dials the chat hub with gorilla/websocket.
type WebSocketDialer struct {
	Proxy       *url.URL
	DialTimeout time.Duration
}

// Dial connects and returns the open connection.
func (d *WebSocketDialer) Dial(ctx context.Context, rawURL string, headers http.Header) (Transport, error) {
	cfg := &streaming.ConnConfig{
		URL:         rawURL,
		Headers:     headers,
		DialTimeout: d.DialTimeout,
		Logger:      connLogger{},
	}
	if d.Proxy != nil {
		cfg.Proxy = http.ProxyURL(d.Proxy)
	}

	conn := streaming.NewConn(cfg)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to open chat hub connection: %w", err)
	}
	return conn, nil
}

// connLogger forwards transport logs to the package logger.
type connLogger struct{}

func (connLogger) Debug(msg string, keysAndValues ...any) {
	logger.Debug(msg, redactArgs(keysAndValues)...)
}

func (connLogger) Warn(msg string, keysAndValues ...any) {
	logger.Warn(msg, redactArgs(keysAndValues)...)
}

func redactArgs(kv []any) []any {
	out := make([]any, len(kv))
	for i, v := range kv {
		if s, ok := v.(string); ok {
			v = logger.RedactSensitiveData(s)
		}
		out[i] = v
	}
	return out
}
