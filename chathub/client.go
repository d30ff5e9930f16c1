// Package chathub implements the conversation engine of the chat service: the
// conversation handshake, attachment uploads, and the per-turn streaming
// exchange over the chat hub WebSocket.
//
// A Client holds what every conversation shares (credential, HTTP client,
// endpoints, protocol generation). A Conversation owns one server-side
// session and runs its turns one at a time, opening a fresh WebSocket for
// each turn.
package chathub

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/AltairaLabs/sydney/credentials"
	"github.com/AltairaLabs/sydney/logger"
	"github.com/AltairaLabs/sydney/protocol"
	"github.com/AltairaLabs/sydney/statestore"
	"github.com/AltairaLabs/sydney/telemetry"
)

const (
	defaultHTTPTimeout = 60 * time.Second
	maxResponseBytes   = 8 << 20
)

// Config configures a Client. Only Credential is required.
type Config struct {
	Credential credentials.Credential

	// Style is the default style of new conversations. Defaults to balanced.
	Style protocol.ConversationStyle

	// Generation selects where the handshake delivers signatures. Defaults to header.
	Generation protocol.Generation

	Locale    protocol.Locale
	Endpoints Endpoints

	// HTTPClient is used for the handshake, uploads and listing. When nil an
	// instrumented client honouring Proxy is built.
	HTTPClient *http.Client

	Proxy       *url.URL
	DialTimeout time.Duration

	// TurnRate limits turns per minute for each conversation. Zero disables pacing.
	TurnRate float64

	// Transcripts, when set, records every completed turn.
	Transcripts statestore.Store

	TracerProvider trace.TracerProvider

	// Dialer opens chat hub connections. Defaults to a WebSocketDialer.
	Dialer Dialer
}

// Client creates conversations against one account.
type Client struct {
	cred        credentials.Credential
	style       protocol.ConversationStyle
	generation  protocol.Generation
	locale      protocol.Locale
	endpoints   Endpoints
	httpClient  *http.Client
	dialer      Dialer
	turnRate    float64
	transcripts statestore.Store
	tracer      trace.Tracer
	newID       func() string
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Credential == nil {
		return nil, errors.New("chathub: credential is required")
	}
	if cfg.Style == 0 {
		cfg.Style = protocol.StyleBalanced
	}
	if !cfg.Style.Valid() {
		return nil, fmt.Errorf("chathub: invalid conversation style %d", cfg.Style)
	}
	if cfg.Generation == "" {
		cfg.Generation = protocol.GenerationHeader
	}
	if _, err := protocol.ParseGeneration(string(cfg.Generation)); err != nil {
		return nil, fmt.Errorf("chathub: %w", err)
	}
	if cfg.TurnRate < 0 {
		return nil, errors.New("chathub: turn rate must not be negative")
	}
	if cfg.Locale == (protocol.Locale{}) {
		cfg.Locale = protocol.DefaultLocale
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		base := http.DefaultTransport.(*http.Transport).Clone()
		if cfg.Proxy != nil {
			base.Proxy = http.ProxyURL(cfg.Proxy)
		}
		httpClient = telemetry.NewHTTPClient(cfg.TracerProvider, base)
		httpClient.Timeout = defaultHTTPTimeout
	}

	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &WebSocketDialer{Proxy: cfg.Proxy, DialTimeout: cfg.DialTimeout}
	}

	return &Client{
		cred:        cfg.Credential,
		style:       cfg.Style,
		generation:  cfg.Generation,
		locale:      cfg.Locale,
		endpoints:   cfg.Endpoints.withDefaults(),
		httpClient:  httpClient,
		dialer:      dialer,
		turnRate:    cfg.TurnRate,
		transcripts: cfg.Transcripts,
		tracer:      telemetry.Tracer(cfg.TracerProvider),
		newID:       uuid.NewString,
	}, nil
}

// NewConversation returns a conversation that is not yet open. A zero style
// uses the client default.
func (c *Client) NewConversation(style protocol.ConversationStyle) *Conversation {
	if style == 0 {
		style = c.style
	}
	conv := &Conversation{client: c, style: style, turns: semaphore.NewWeighted(1)}
	if c.turnRate > 0 {
		conv.limiter = rate.NewLimiter(rate.Limit(c.turnRate/60), 1)
	}
	return conv
}

// StartConversation creates and opens a conversation.
func (c *Client) StartConversation(ctx context.Context, style protocol.ConversationStyle) (*Conversation, error) {
	conv := c.NewConversation(style)
	if err := conv.Open(ctx); err != nil {
		return nil, err
	}
	return conv, nil
}

// Close releases idle HTTP connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// ConversationList is the answer of the list-conversations endpoint.
type ConversationList struct {
	Chats    []json.RawMessage `json:"chats"`
	Result   protocol.Result   `json:"result"`
	ClientID string            `json:"clientId"`
}

// ListConversations returns the conversations recorded for the account. It
// does not need an open conversation.
func (c *Client) ListConversations(ctx context.Context) (*ConversationList, error) {
	resp, err := c.do(ctx, "chats", http.MethodGet, c.endpoints.Chats, chatHeaders(), nil)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, &RequestError{Endpoint: "chats", Status: resp.status, Body: string(resp.body)}
	}

	var list ConversationList
	if err := json.Unmarshal(resp.body, &list); err != nil {
		return nil, fmt.Errorf("failed to decode conversation list: %w", err)
	}
	return &list, nil
}

type httpResult struct {
	status int
	header http.Header
	body   []byte
}

// do sends an authenticated request and reads the whole, decompressed body.
// Non-200 statuses are returned, not turned into errors.
func (c *Client) do(
	ctx context.Context,
	endpoint, method, rawURL string,
	headers http.Header,
	body io.Reader,
) (*httpResult, error) {
	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	if err := c.cred.Apply(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to apply credential: %w", err)
	}

	logger.APIRequest(endpoint, method, rawURL, flatten(req.Header), nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.APIResponse(endpoint, 0, "", err)
		return nil, fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	data, err := readBody(resp, maxResponseBytes)
	if err != nil {
		logger.APIResponse(endpoint, resp.StatusCode, "", err)
		return nil, fmt.Errorf("failed to read %s response: %w", endpoint, err)
	}
	logger.APIResponse(endpoint, resp.StatusCode, string(data), nil)

	return &httpResult{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

// readBody decodes gzip and deflate bodies. The chat header bundle asks for
// them explicitly, which turns off the transport's own decompression. HTTP
// deflate is zlib-wrapped; bare DEFLATE streams are accepted too.
func readBody(resp *http.Response, limit int64) ([]byte, error) {
	var r io.Reader = resp.Body
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	case "deflate":
		dr, err := deflateReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer dr.Close()
		r = dr
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, limit)
	}
	return data, nil
}

func deflateReader(body io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(body)
	head, err := br.Peek(2)
	if err != nil && len(head) < 2 {
		return flate.NewReader(br), nil
	}
	// zlib header: CM=8 in the low nibble, and the pair is a multiple of 31.
	if head[0]&0x0f == 8 && (uint16(head[0])<<8|uint16(head[1]))%31 == 0 {
		return zlib.NewReader(br)
	}
	return flate.NewReader(br), nil
}
