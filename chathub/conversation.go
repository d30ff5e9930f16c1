package chathub

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/AltairaLabs/sydney/logger"
	"github.com/AltairaLabs/sydney/protocol"
)

// Conversation is one server-side conversation. Turns run one at a time: a
// turn started while another is in flight waits for it to finish, or for its
// own context to end. A streaming turn holds the conversation until its
// channel is closed.
type Conversation struct {
	client  *Client
	limiter *rate.Limiter

	// turns admits one turn, handshake or upload at a time.
	turns *semaphore.Weighted

	// mu guards style, session and the session's counters for readers
	// outside a turn. Writers also hold turns.
	mu      sync.Mutex
	style   protocol.ConversationStyle
	session *Session // nil when closed

	// stateMu guards the handles Close uses to abort an in-flight turn.
	stateMu   sync.Mutex
	cancel    context.CancelFunc
	transport Transport
}

// Open performs the handshake and starts a new server-side conversation. An
// already open conversation is replaced.
func (c *Conversation) Open(ctx context.Context) error {
	c.abort()
	if err := c.turns.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.turns.Release(1)
	return c.open(ctx)
}

func (c *Conversation) open(ctx context.Context) error {
	session, err := c.client.createSession(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
	return nil
}

// Close aborts any in-flight turn and forgets the session. It is safe to call
// more than once.
func (c *Conversation) Close() error {
	c.abort()
	if err := c.turns.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer c.turns.Release(1)
	c.forget()
	return nil
}

func (c *Conversation) forget() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		logger.Debug("Conversation closed", "conversation_id", c.session.ConversationID)
	}
	c.session = nil
}

// Reset closes the conversation and opens a new one. A zero style keeps the
// current style.
func (c *Conversation) Reset(ctx context.Context, style protocol.ConversationStyle) error {
	if style != 0 && !style.Valid() {
		return &protocol.UnknownStyleError{Kind: "style", Value: style.String()}
	}
	c.abort()
	if err := c.turns.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.turns.Release(1)

	c.forget()
	if style != 0 {
		c.mu.Lock()
		c.style = style
		c.mu.Unlock()
	}
	return c.open(ctx)
}

// Session returns a copy of the current session, or nil when closed. It does
// not wait for an in-flight turn.
func (c *Conversation) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return c.session.clone()
}

// Style returns the conversation style.
func (c *Conversation) Style() protocol.ConversationStyle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.style
}

// Upload registers an image with the conversation without sending a turn.
func (c *Conversation) Upload(ctx context.Context, a Attachment) (*AttachmentReference, error) {
	if err := c.turns.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.turns.Release(1)
	if c.session == nil {
		return nil, ErrNoActiveSession
	}
	return c.client.upload(ctx, c.session, c.style, a)
}

// Ask sends a chat turn and waits for the complete answer.
func (c *Conversation) Ask(ctx context.Context, prompt string, opts AskOptions) (*Response, error) {
	return c.run(ctx, func() *turnSpec { return c.chatSpec(prompt, opts) })
}

// AskStream sends a chat turn and streams the answer as it grows. The turn
// holds the conversation until the channel is closed: a caller that stops
// reading early must cancel ctx or call Close.
func (c *Conversation) AskStream(ctx context.Context, prompt string, opts AskOptions) (<-chan StreamChunk, error) {
	return c.stream(ctx, func() *turnSpec { return c.chatSpec(prompt, opts) })
}

// Compose sends a compose turn and waits for the complete text.
func (c *Conversation) Compose(ctx context.Context, prompt string, opts ComposeOptions) (*Response, error) {
	return c.run(ctx, func() *turnSpec { return c.composeSpec(prompt, opts) })
}

// ComposeStream sends a compose turn and streams the text as it grows. As
// with AskStream, a caller that stops reading must cancel ctx or call Close.
func (c *Conversation) ComposeStream(ctx context.Context, prompt string, opts ComposeOptions) (<-chan StreamChunk, error) {
	return c.stream(ctx, func() *turnSpec { return c.composeSpec(prompt, opts) })
}

func (c *Conversation) run(ctx context.Context, spec func() *turnSpec) (*Response, error) {
	if err := c.turns.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.turns.Release(1)
	ctx, done := c.begin(ctx)
	defer done()
	return c.runTurn(ctx, spec(), nil)
}

// stream runs a turn in a goroutine that owns the conversation until the
// returned channel is closed. Failures are delivered as a final chunk.
func (c *Conversation) stream(ctx context.Context, spec func() *turnSpec) (<-chan StreamChunk, error) {
	if err := c.turns.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if c.session == nil {
		c.turns.Release(1)
		return nil, ErrNoActiveSession
	}

	ctx, done := c.begin(ctx)
	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer c.turns.Release(1)
		defer done()

		emit := func(ctx context.Context, chunk StreamChunk) error {
			select {
			case out <- chunk:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if _, err := c.runTurn(ctx, spec(), emit); err != nil {
			select {
			case out <- StreamChunk{Error: err, FinishReason: FinishError}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

func (c *Conversation) chatSpec(prompt string, opts AskOptions) *turnSpec {
	style := c.style
	return &turnSpec{
		kind:        KindChat,
		prompt:      prompt,
		style:       style.String(),
		citations:   opts.Citations,
		suggestions: opts.Suggestions,
		raw:         opts.Raw,
		attachment:  opts.Attachment,
		build: func(s protocol.Session, ids protocol.TurnIDs, image *protocol.ImageRef) *protocol.TurnRequest {
			return protocol.BuildChatRequest(s, protocol.ChatParams{
				Prompt:     prompt,
				Style:      style,
				Search:     !opts.NoSearch,
				Context:    opts.Context,
				Attachment: image,
				Locale:     c.client.locale,
				IDs:        ids,
			})
		},
	}
}

func (c *Conversation) composeSpec(prompt string, opts ComposeOptions) *turnSpec {
	opts = opts.withDefaults()
	return &turnSpec{
		kind:        KindCompose,
		prompt:      prompt,
		style:       c.style.String(),
		suggestions: opts.Suggestions,
		raw:         opts.Raw,
		build: func(s protocol.Session, ids protocol.TurnIDs, _ *protocol.ImageRef) *protocol.TurnRequest {
			return protocol.BuildComposeRequest(s, protocol.ComposeParams{
				Prompt: prompt,
				Tone:   opts.Tone,
				Format: opts.Format,
				Length: opts.Length,
				Locale: c.client.locale,
				IDs:    ids,
			})
		},
	}
}

// abort cancels the in-flight turn, if any, and closes its transport so a
// blocked Receive returns.
func (c *Conversation) abort() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	if c.transport != nil {
		if err := c.transport.Close(); err != nil {
			logger.Debug("closing in-flight transport failed", "error", err)
		}
	}
}

// begin derives the context of a turn and registers it for abort. The
// returned func releases it.
func (c *Conversation) begin(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	c.stateMu.Lock()
	c.cancel = cancel
	c.stateMu.Unlock()
	return ctx, func() {
		c.stateMu.Lock()
		c.cancel = nil
		c.stateMu.Unlock()
		cancel()
	}
}

func (c *Conversation) setTransport(t Transport) {
	c.stateMu.Lock()
	c.transport = t
	c.stateMu.Unlock()
}

// updateSession applies f to the open session under mu. Only the turn holder
// calls it.
func (c *Conversation) updateSession(f func(s *Session)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		f(c.session)
	}
}
