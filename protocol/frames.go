package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/jmespath/go-jmespath"
)

// Frame type discriminators.
const (
	FrameTypeUpdate     = 1 // partial answer, may carry no messages yet
	FrameTypeCompletion = 2 // terminal frame of a turn
	FrameTypeInvocation = 4 // outbound turn submission
	FrameTypePing       = 6
)

// Result values carried in result.value.
const (
	ResultSuccess          = "Success"
	ResultThrottled        = "Throttled"
	ResultCaptchaChallenge = "CaptchaChallenge"
)

// ResponseFrame is one inbound frame. Fields the server omits stay at their
// zero value; a missing payload is a normal "nothing yet" signal.
type ResponseFrame struct {
	Type         int              `json:"type"`
	Target       string           `json:"target,omitempty"`
	InvocationID string           `json:"invocationId,omitempty"`
	Arguments    []UpdateArgument `json:"arguments,omitempty"`
	Item         *CompletionItem  `json:"item,omitempty"`

	raw json.RawMessage
}

// UpdateArgument is the payload of a type 1 frame.
type UpdateArgument struct {
	Messages  []Message `json:"messages,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
}

// CompletionItem is the payload of a type 2 frame.
type CompletionItem struct {
	Messages       []Message   `json:"messages,omitempty"`
	Result         *Result     `json:"result,omitempty"`
	Throttling     *Throttling `json:"throttling,omitempty"`
	ConversationID string      `json:"conversationId,omitempty"`
	RequestID      string      `json:"requestId,omitempty"`
}

// Result is the outcome block of handshakes and terminal frames.
type Result struct {
	Value   string `json:"value,omitempty"`
	Message string `json:"message,omitempty"`
}

// Throttling carries the per-conversation message counters.
type Throttling struct {
	NumUserMessagesInConversation    int `json:"numUserMessagesInConversation"`
	MaxNumUserMessagesInConversation int `json:"maxNumUserMessagesInConversation"`
}

// LimitReached reports whether the conversation has used all of its turns.
func (t *Throttling) LimitReached() bool {
	return t != nil && t.MaxNumUserMessagesInConversation > 0 &&
		t.NumUserMessagesInConversation >= t.MaxNumUserMessagesInConversation
}

// Message is one bot or user message inside a frame.
type Message struct {
	Text               string              `json:"text,omitempty"`
	Author             string              `json:"author,omitempty"`
	MessageType        string              `json:"messageType,omitempty"`
	AdaptiveCards      []AdaptiveCard      `json:"adaptiveCards,omitempty"`
	SuggestedResponses []SuggestedResponse `json:"suggestedResponses,omitempty"`
}

// AdaptiveCard holds the structured rendering of a message.
type AdaptiveCard struct {
	Type string        `json:"type,omitempty"`
	Body []CardElement `json:"body,omitempty"`
}

// CardElement is one block of an adaptive card body.
type CardElement struct {
	Type    string          `json:"type,omitempty"`
	Text    string          `json:"text,omitempty"`
	Inlines json.RawMessage `json:"inlines,omitempty"`
}

// SuggestedResponse is a follow-up prompt offered by the service.
type SuggestedResponse struct {
	Text string `json:"text"`
}

// Raw returns the exact JSON the frame was decoded from.
func (f *ResponseFrame) Raw() json.RawMessage {
	return f.raw
}

// UpdateMessages returns arguments[0].messages of an update frame, or nil.
func (f *ResponseFrame) UpdateMessages() []Message {
	if len(f.Arguments) == 0 {
		return nil
	}
	return f.Arguments[0].Messages
}

// Select evaluates a JMESPath expression against the raw frame.
func (f *ResponseFrame) Select(expression string) (any, error) {
	var doc any
	if err := json.Unmarshal(f.raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode frame for query: %w", err)
	}
	result, err := jmespath.Search(expression, doc)
	if err != nil {
		return nil, fmt.Errorf("invalid query %q: %w", expression, err)
	}
	return result, nil
}

// CitationText returns adaptiveCards[0].body[0].text, the answer annotated
// with source references.
func (m *Message) CitationText() (string, bool) {
	if len(m.AdaptiveCards) == 0 || len(m.AdaptiveCards[0].Body) == 0 {
		return "", false
	}
	return m.AdaptiveCards[0].Body[0].Text, true
}

// IsPlaceholder reports whether the card body is an interstitial "searching"
// block rather than answer text. Detection keys on the presence of inlines,
// which is a heuristic over an undocumented format.
func (m *Message) IsPlaceholder() bool {
	if len(m.AdaptiveCards) == 0 || len(m.AdaptiveCards[0].Body) == 0 {
		return false
	}
	return len(m.AdaptiveCards[0].Body[0].Inlines) > 0
}

// Answer returns the citation text when citations is set and available,
// otherwise the plain text.
func (m *Message) Answer(citations bool) string {
	if citations {
		if text, ok := m.CitationText(); ok {
			return text
		}
	}
	return m.Text
}

// Suggestions returns the suggested follow-up texts, or nil when none are attached.
func (m *Message) Suggestions() []string {
	if len(m.SuggestedResponses) == 0 {
		return nil
	}
	out := make([]string, 0, len(m.SuggestedResponses))
	for _, s := range m.SuggestedResponses {
		out = append(out, s.Text)
	}
	return out
}
