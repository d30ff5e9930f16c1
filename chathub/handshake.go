package chathub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AltairaLabs/sydney/credentials"
	"github.com/AltairaLabs/sydney/logger"
	metrics "github.com/AltairaLabs/sydney/metrics/prometheus"
	"github.com/AltairaLabs/sydney/protocol"
	"github.com/AltairaLabs/sydney/telemetry"
)

// Session is the server-issued state of one conversation.
type Session struct {
	ConversationID                 string
	ClientID                       string
	ConversationSignature          string
	EncryptedConversationSignature string

	// InvocationID is the sequence number of the next turn.
	InvocationID int

	// Throttling holds the message counters of the latest terminal frame that
	// carried them; nil until then.
	Throttling *protocol.Throttling
}

func (s *Session) clone() *Session {
	out := *s
	if s.Throttling != nil {
		t := *s.Throttling
		out.Throttling = &t
	}
	return &out
}

type createResponse struct {
	Result                         protocol.Result `json:"result"`
	ConversationID                 string          `json:"conversationId"`
	ClientID                       string          `json:"clientId"`
	ConversationSignature          string          `json:"conversationSignature"`
	EncryptedConversationSignature string          `json:"encryptedConversationSignature"`
}

// createSession performs the conversation handshake.
func (c *Client) createSession(ctx context.Context) (session *Session, err error) {
	ctx, span := c.tracer.Start(ctx, "sydney.handshake",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.AttrGeneration.String(string(c.generation))),
	)
	start := time.Now()
	defer func() {
		status := metrics.StatusSuccess
		if err != nil {
			status = metrics.StatusError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(telemetry.AttrConversationID.String(session.ConversationID))
		}
		metrics.RecordHandshake(string(c.generation), status, time.Since(start).Seconds())
		span.End()
	}()

	resp, err := c.do(ctx, "create", http.MethodGet, c.endpoints.Create, chatHeaders(), nil)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, &SessionCreationError{Status: resp.status}
	}

	var body createResponse
	if err := json.Unmarshal(resp.body, &body); err != nil {
		return nil, &SessionCreationError{Status: resp.status, Message: "invalid response body: " + err.Error()}
	}
	if body.Result.Value != protocol.ResultSuccess {
		msg := body.Result.Message
		if msg == "" {
			msg = fmt.Sprintf("unexpected result %q", body.Result.Value)
		}
		return nil, &SessionCreationError{Status: resp.status, Message: msg}
	}

	session = &Session{
		ConversationID: body.ConversationID,
		ClientID:       body.ClientID,
	}
	switch c.generation {
	case protocol.GenerationBody:
		session.ConversationSignature = body.ConversationSignature
		session.EncryptedConversationSignature = firstNonEmpty(
			resp.header.Get(protocol.HeaderEncryptedConversationSignature),
			body.EncryptedConversationSignature,
		)
	default:
		session.ConversationSignature = firstNonEmpty(
			resp.header.Get(protocol.HeaderConversationSignature),
			body.ConversationSignature,
		)
		session.EncryptedConversationSignature = firstNonEmpty(
			resp.header.Get(protocol.HeaderEncryptedConversationSignature),
			body.EncryptedConversationSignature,
		)
	}

	if missing := session.missingFields(c.generation); len(missing) > 0 {
		return nil, &SessionCreationError{
			Status:  resp.status,
			Message: "response is missing " + strings.Join(missing, ", "),
		}
	}

	logger.InfoContext(ctx, "Conversation created",
		"conversation_id", session.ConversationID,
		"generation", string(c.generation))
	return session, nil
}

func (s *Session) missingFields(gen protocol.Generation) []string {
	var missing []string
	if s.ConversationID == "" {
		missing = append(missing, "conversationId")
	}
	if s.ClientID == "" {
		missing = append(missing, "clientId")
	}
	if s.ConversationSignature == "" {
		missing = append(missing, "conversationSignature")
	}
	if gen == protocol.GenerationHeader && s.EncryptedConversationSignature == "" {
		missing = append(missing, "encryptedConversationSignature")
	}
	return missing
}

// hubURL is the chat hub address for a turn of s. The header generation
// authenticates the socket with the encrypted signature.
func (c *Client) hubURL(s *Session) string {
	if c.generation != protocol.GenerationHeader {
		return c.endpoints.ChatHub
	}
	sep := "?"
	if strings.Contains(c.endpoints.ChatHub, "?") {
		sep = "&"
	}
	return c.endpoints.ChatHub + sep + "sec_access_token=" + url.QueryEscape(s.EncryptedConversationSignature)
}

// hubHeaders are the WebSocket handshake headers, credential included.
func (c *Client) hubHeaders(ctx context.Context, rawURL string) (http.Header, error) {
	headers, err := credentials.Headers(ctx, c.cred, rawURL)
	if err != nil {
		return nil, err
	}
	for k, v := range chatHeaders() {
		headers[k] = v
	}
	return headers, nil
}

// turnSession is the view of s embedded in turn payloads. Only the body
// generation sends the signature inside the payload.
func (c *Client) turnSession(s *Session) protocol.Session {
	ps := protocol.Session{
		ConversationID: s.ConversationID,
		ClientID:       s.ClientID,
		InvocationID:   s.InvocationID,
	}
	if c.generation == protocol.GenerationBody {
		ps.ConversationSignature = s.ConversationSignature
	}
	return ps
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
