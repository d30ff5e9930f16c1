package chathub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AltairaLabs/sydney/internal/streaming"
	"github.com/AltairaLabs/sydney/logger"
	metrics "github.com/AltairaLabs/sydney/metrics/prometheus"
	"github.com/AltairaLabs/sydney/protocol"
	"github.com/AltairaLabs/sydney/statestore"
	"github.com/AltairaLabs/sydney/telemetry"
)

// Turn kinds.
const (
	KindChat    = "chat"
	KindCompose = "compose"
)

// Finish reasons of the last StreamChunk of a turn.
const (
	FinishComplete = "complete"
	FinishEmpty    = "empty"
	FinishError    = "error"
)

// StreamChunk is one step of a streaming turn.
type StreamChunk struct {
	// Delta is the text not yet delivered by earlier chunks. When the service
	// rewrites text it already sent, Delta skips as many characters as were
	// delivered, so the concatenated deltas can differ from the final answer.
	Delta string

	// Content is the full answer text so far. Use the last chunk's Content
	// when the exact final text matters.
	Content string

	// Suggestions are set on the final chunk when requested.
	Suggestions []string

	// Frame is the decoded frame behind the chunk when raw output was requested.
	Frame *protocol.ResponseFrame

	// FinishReason is empty until the final chunk.
	FinishReason string

	// Error is set on the final chunk of a failed turn.
	Error error
}

// Response is the result of a non-streaming turn.
type Response struct {
	Text        string
	Suggestions []string

	// Frame is the terminal frame when raw output was requested.
	Frame *protocol.ResponseFrame

	// Empty is set when the service ended the turn without an answer.
	Empty bool
}

// AskOptions tune a chat turn.
type AskOptions struct {
	// Citations selects the answer text annotated with source references.
	Citations bool

	// Suggestions requests the suggested follow-up prompts.
	Suggestions bool

	// Raw attaches the decoded frames to chunks and the response.
	Raw bool

	// NoSearch stops the service from running web searches for the turn.
	NoSearch bool

	// Attachment is uploaded before the turn is sent.
	Attachment *Attachment

	// Context is prior page text sent along with the prompt.
	Context string
}

// ComposeOptions tune a compose turn. Zero fields use professional, paragraph and short.
type ComposeOptions struct {
	Tone        protocol.Tone
	Format      protocol.ComposeFormat
	Length      protocol.ComposeLength
	Suggestions bool
	Raw         bool
}

func (o *ComposeOptions) withDefaults() ComposeOptions {
	out := *o
	if out.Tone == (protocol.Tone{}) {
		out.Tone = protocol.Preset(protocol.ToneProfessional)
	}
	if out.Format == 0 {
		out.Format = protocol.FormatParagraph
	}
	if out.Length == 0 {
		out.Length = protocol.LengthShort
	}
	return out
}

// turnSpec describes one turn independently of its kind.
type turnSpec struct {
	kind        string
	prompt      string
	style       string
	citations   bool
	suggestions bool
	raw         bool
	attachment  *Attachment
	build       func(s protocol.Session, ids protocol.TurnIDs, image *protocol.ImageRef) *protocol.TurnRequest
}

// emitFunc delivers a chunk to a streaming caller. A returned error aborts the turn.
type emitFunc func(ctx context.Context, chunk StreamChunk) error

// turnStats accumulates what the logs and metrics report about a turn.
type turnStats struct {
	frames int
	chars  int
}

// runTurn performs one turn on the open session. The caller holds turns and
// has registered ctx with begin.
func (c *Conversation) runTurn(ctx context.Context, spec *turnSpec, emit emitFunc) (resp *Response, err error) {
	s := c.session
	if s == nil {
		return nil, ErrNoActiveSession
	}
	cl := c.client

	invocation := s.InvocationID
	ctx = logger.WithLoggingContext(ctx, &logger.LoggingFields{
		ConversationID: s.ConversationID,
		InvocationID:   strconv.Itoa(invocation),
		TurnKind:       spec.kind,
		Style:          spec.style,
	})
	ctx, span := cl.tracer.Start(ctx, "sydney.turn",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			telemetry.AttrConversationID.String(s.ConversationID),
			telemetry.AttrInvocationID.Int(invocation),
			telemetry.AttrTurnKind.String(spec.kind),
			telemetry.AttrStyle.String(spec.style),
			telemetry.AttrGeneration.String(string(cl.generation)),
		),
	)
	defer span.End()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("turn pacing: %w", err)
		}
	}

	var image *protocol.ImageRef
	if spec.attachment != nil {
		ref, err := cl.upload(ctx, s, c.style, *spec.attachment)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		image = ref.imageRef()
	}

	logger.TurnStarted(ctx, spec.kind, spec.style, invocation)
	metrics.RecordTurnStart()
	start := time.Now()
	stats := &turnStats{}
	defer func() {
		outcome := outcomeOf(resp, err)
		metrics.RecordTurnEnd(spec.kind, outcome, time.Since(start).Seconds())
		metrics.RecordStreamedChars(spec.kind, stats.chars)
		span.SetAttributes(telemetry.AttrFrames.Int(stats.frames), telemetry.AttrOutcome.String(outcome))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.TurnFailed(ctx, spec.kind, err, "outcome", outcome)
			return
		}
		logger.TurnFinished(ctx, spec.kind, stats.frames, len(resp.Text), "outcome", outcome)
	}()

	resp, err = c.exchange(ctx, s, spec, image, emit, stats)
	if err != nil {
		return nil, err
	}

	c.record(ctx, s.ConversationID, invocation, spec, resp)
	return resp, nil
}

// exchange owns the transport of one turn: negotiate, send, and read frames
// until the terminal one. The transport is closed on every return path.
func (c *Conversation) exchange(
	ctx context.Context,
	s *Session,
	spec *turnSpec,
	image *protocol.ImageRef,
	emit emitFunc,
	stats *turnStats,
) (*Response, error) {
	cl := c.client
	hubURL := cl.hubURL(s)
	headers, err := cl.hubHeaders(ctx, hubURL)
	if err != nil {
		return nil, fmt.Errorf("failed to apply credential: %w", err)
	}

	t, err := cl.dialer.Dial(ctx, hubURL, headers)
	if err != nil {
		return nil, err
	}
	c.setTransport(t)
	defer func() {
		c.setTransport(nil)
		if cerr := t.Close(); cerr != nil {
			logger.DebugContext(ctx, "chat hub close failed", "error", cerr)
		}
	}()

	if err := send(ctx, t, protocol.Negotiation()); err != nil {
		return nil, err
	}
	// The acknowledgement of the negotiation frame carries nothing.
	ack, err := t.Receive(ctx)
	if err != nil {
		return nil, receiveError(err)
	}
	logger.FrameIn(ctx, ack)

	ids := protocol.TurnIDs{
		RequestID: cl.newID(),
		MessageID: cl.newID(),
		TraceID:   strings.ReplaceAll(cl.newID(), "-", ""),
	}
	req := spec.build(cl.turnSession(s), ids, image)
	if err := send(logger.WithRequestID(ctx, ids.RequestID), t, req); err != nil {
		return nil, err
	}
	c.updateSession(func(s *Session) { s.InvocationID++ })

	return c.consume(ctx, t, spec, emit, stats)
}

func (c *Conversation) consume(
	ctx context.Context,
	t Transport,
	spec *turnSpec,
	emit emitFunc,
	stats *turnStats,
) (*Response, error) {
	var delivered string
	for {
		data, err := t.Receive(ctx)
		if err != nil {
			return nil, receiveError(err)
		}
		logger.FrameIn(ctx, data)

		for frame, err := range protocol.DecodeFrames(data) {
			if err != nil {
				return nil, err
			}
			stats.frames++
			metrics.RecordFrame(frame.Type)

			switch frame.Type {
			case protocol.FrameTypeUpdate:
				if emit == nil {
					continue
				}
				text, ok := partialText(frame, spec.citations)
				if !ok {
					continue
				}
				delta := suffix(delivered, text)
				delivered = text
				if delta == "" && !spec.raw {
					continue
				}
				chunk := StreamChunk{Delta: delta, Content: text}
				if spec.raw {
					chunk.Frame = frame
				}
				stats.chars += utf8.RuneCountInString(delta)
				if err := emit(ctx, chunk); err != nil {
					return nil, err
				}

			case protocol.FrameTypeCompletion:
				resp, counters, err := terminal(frame, spec)
				if counters != nil {
					c.updateSession(func(s *Session) { s.Throttling = counters })
				}
				if err != nil {
					return nil, err
				}
				if emit != nil {
					delta := suffix(delivered, resp.Text)
					stats.chars += utf8.RuneCountInString(delta)
					chunk := StreamChunk{
						Delta:        delta,
						Content:      resp.Text,
						Suggestions:  resp.Suggestions,
						Frame:        resp.Frame,
						FinishReason: FinishComplete,
					}
					if resp.Empty {
						chunk.FinishReason = FinishEmpty
					}
					if err := emit(ctx, chunk); err != nil {
						return nil, err
					}
				}
				return resp, nil
			}
		}
	}
}

// partialText extracts the answer so far from an update frame. Frames without
// messages, and citation placeholders shown while the service searches, are
// not meaningful yet.
func partialText(frame *protocol.ResponseFrame, citations bool) (string, bool) {
	messages := frame.UpdateMessages()
	if len(messages) == 0 {
		return "", false
	}
	msg := &messages[0]
	if citations && msg.IsPlaceholder() {
		return "", false
	}
	return msg.Answer(citations), true
}

// terminal interprets a type 2 frame. The throttling block is checked before
// anything else; its counters are returned whenever the frame carries them.
func terminal(frame *protocol.ResponseFrame, spec *turnSpec) (*Response, *protocol.Throttling, error) {
	resp := &Response{}
	if spec.raw {
		resp.Frame = frame
	}

	item := frame.Item
	if item == nil {
		resp.Empty = true
		return resp, nil, nil
	}

	var counters *protocol.Throttling
	if item.Throttling != nil {
		t := *item.Throttling
		counters = &t
		if t.LimitReached() {
			return nil, counters, &ConversationLimitError{
				Count: t.NumUserMessagesInConversation,
				Max:   t.MaxNumUserMessagesInConversation,
			}
		}
	}

	if len(item.Messages) == 0 {
		if err := resultError(item.Result); err != nil {
			return nil, counters, err
		}
		resp.Empty = true
		return resp, counters, nil
	}

	last := &item.Messages[len(item.Messages)-1]
	resp.Text = last.Answer(spec.citations)
	if spec.suggestions {
		resp.Suggestions = last.Suggestions()
	}
	return resp, counters, nil
}

// suffix returns the part of next that was not delivered yet. The service
// resends the whole answer on every frame; when it rewrites earlier text the
// already delivered length is skipped in characters.
func suffix(delivered, next string) string {
	if strings.HasPrefix(next, delivered) {
		return next[len(delivered):]
	}
	n := utf8.RuneCountInString(delivered)
	for i := range next {
		if n == 0 {
			return next[i:]
		}
		n--
	}
	return ""
}

func send(ctx context.Context, t Transport, v any) error {
	data, err := protocol.Encode(v)
	if err != nil {
		return err
	}
	logger.FrameOut(ctx, data)
	if err := t.Send(data); err != nil {
		return fmt.Errorf("failed to send frame: %w", err)
	}
	return nil
}

func receiveError(err error) error {
	if errors.Is(err, streaming.ErrPeerClosed) || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrNoResponse, err)
	}
	return err
}

// record appends a completed turn to the transcript store. Failures are
// reported but never fail the turn.
func (c *Conversation) record(ctx context.Context, conversationID string, invocation int, spec *turnSpec, resp *Response) {
	store := c.client.transcripts
	if store == nil {
		return
	}
	err := store.Append(ctx, conversationID, statestore.Exchange{
		InvocationID: invocation,
		Kind:         spec.kind,
		Prompt:       spec.prompt,
		Response:     resp.Text,
		Suggestions:  resp.Suggestions,
		Style:        spec.style,
		At:           time.Now().UTC(),
	})
	if err != nil {
		metrics.RecordTranscriptError()
		logger.WarnContext(ctx, "failed to record transcript", "error", err)
	}
}

func outcomeOf(resp *Response, err error) string {
	var limit *ConversationLimitError
	var malformed *protocol.MalformedFrameError
	switch {
	case err == nil && resp != nil && resp.Empty:
		return metrics.OutcomeEmpty
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrThrottled):
		return metrics.OutcomeThrottled
	case errors.Is(err, ErrCaptchaChallenge):
		return metrics.OutcomeCaptcha
	case errors.As(err, &limit):
		return metrics.OutcomeLimit
	case errors.As(err, &malformed):
		return metrics.OutcomeMalformed
	case errors.Is(err, ErrNoResponse):
		return metrics.OutcomeNoResponse
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeCanceled
	default:
		return metrics.OutcomeError
	}
}
