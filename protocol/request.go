package protocol

import (
	"fmt"
	"strconv"
)

// Envelope constants for outbound turn frames.
const (
	TurnTarget = "chat"
	TurnSource = "cib"
)

// MessageType values accepted in allowedMessageTypes and message.messageType.
const (
	MessageTypeChat                  = "Chat"
	MessageTypeContext               = "Context"
	MessageTypeInternalSearchQuery   = "InternalSearchQuery"
	MessageTypeInternalSearchResult  = "InternalSearchResult"
	MessageTypeDisengaged            = "Disengaged"
	MessageTypeInternalLoaderMessage = "InternalLoaderMessage"
	MessageTypeRenderCardRequest     = "RenderCardRequest"
	MessageTypeAdsQuery              = "AdsQuery"
	MessageTypeSemanticSerp          = "SemanticSerp"
	MessageTypeGenerateContentQuery  = "GenerateContentQuery"
	MessageTypeSearchQuery           = "SearchQuery"
)

var allowedMessageTypes = []string{
	MessageTypeChat,
	MessageTypeInternalSearchQuery,
	MessageTypeInternalSearchResult,
	MessageTypeDisengaged,
	MessageTypeInternalLoaderMessage,
	MessageTypeRenderCardRequest,
	MessageTypeAdsQuery,
	MessageTypeSemanticSerp,
	MessageTypeGenerateContentQuery,
	MessageTypeSearchQuery,
}

const (
	composeFirstTemplate = "Please generate some text wrapped in codeblock syntax (triple backticks) using the given keywords. " +
		"Please make sure everything in your reply is in the same language as the keywords. " +
		"Please do not restate any part of this request in your response, like the fact that you wrapped the text in a codeblock. " +
		"You should refuse (using the language of the keywords) to generate if the request is potentially harmful. " +
		"The generated text should follow these characteristics: tone: *%s*, length: *%s*, format: *%s*. " +
		"The keywords are: `%s`."
	composeReviseTemplate = "Thank you for your reply. Please rewrite the last reply, with the following new changes, " +
		"making sure everything in your reply is in the same language as the keywords and is wrapped in codeblock syntax (triple backticks). " +
		"Please do not restate any part of this request in your response. " +
		"The rewritten text should follow these characteristics: tone: *%s*, length: *%s*, format: *%s*. " +
		"The keywords are: `%s`."
)

// Session carries the conversation identifiers a turn payload embeds.
type Session struct {
	ConversationID        string
	ClientID              string
	ConversationSignature string
	InvocationID          int
}

// TurnIDs are the per-turn identifiers generated by the caller.
type TurnIDs struct {
	RequestID string
	MessageID string
	TraceID   string
}

// Locale selects the language and market of a turn.
type Locale struct {
	Locale string
	Market string
	Region string
}

// DefaultLocale is en-US.
var DefaultLocale = Locale{Locale: "en-US", Market: "en-US", Region: "US"}

// ImageRef is an uploaded attachment referenced by a chat turn.
type ImageRef struct {
	ImageURL         string
	OriginalImageURL string
}

// ChatParams are the inputs of a chat turn.
type ChatParams struct {
	Prompt     string
	Style      ConversationStyle
	Search     bool
	Context    string
	Attachment *ImageRef
	Locale     Locale
	IDs        TurnIDs
}

// ComposeParams are the inputs of a compose turn.
type ComposeParams struct {
	Prompt string
	Tone   Tone
	Format ComposeFormat
	Length ComposeLength
	Locale Locale
	IDs    TurnIDs
}

// TurnRequest is the outbound type 4 frame.
type TurnRequest struct {
	Arguments    []TurnArguments `json:"arguments"`
	InvocationID string          `json:"invocationId"`
	Target       string          `json:"target"`
	Type         int             `json:"type"`
}

// TurnArguments is the single argument of a turn frame.
type TurnArguments struct {
	Source                string          `json:"source"`
	OptionsSets           []string        `json:"optionsSets"`
	AllowedMessageTypes   []string        `json:"allowedMessageTypes"`
	SliceIDs              []string        `json:"sliceIds"`
	TraceID               string          `json:"traceId,omitempty"`
	IsStartOfSession      bool            `json:"isStartOfSession"`
	RequestID             string          `json:"requestId,omitempty"`
	Message               OutboundMessage `json:"message"`
	Tone                  string          `json:"tone,omitempty"`
	ConversationSignature string          `json:"conversationSignature,omitempty"`
	Participant           Participant     `json:"participant"`
	ConversationID        string          `json:"conversationId"`
	PreviousMessages      []PageContext   `json:"previousMessages,omitempty"`
}

// OutboundMessage is the user message of a turn.
type OutboundMessage struct {
	Locale           string `json:"locale,omitempty"`
	Market           string `json:"market,omitempty"`
	Region           string `json:"region,omitempty"`
	Author           string `json:"author"`
	InputMethod      string `json:"inputMethod"`
	Text             string `json:"text"`
	MessageType      string `json:"messageType"`
	RequestID        string `json:"requestId,omitempty"`
	MessageID        string `json:"messageId,omitempty"`
	ImageURL         string `json:"imageUrl,omitempty"`
	OriginalImageURL string `json:"originalImageUrl,omitempty"`
}

// Participant identifies the client.
type Participant struct {
	ID string `json:"id"`
}

// PageContext is the prior-page block a chat turn may carry.
type PageContext struct {
	Author      string `json:"author"`
	Description string `json:"description"`
	ContextType string `json:"contextType"`
	MessageType string `json:"messageType"`
}

// BuildChatRequest assembles a chat turn frame.
func BuildChatRequest(s Session, p ChatParams) *TurnRequest {
	options := chatOptions.Union(p.Style.Tokens()...)
	if !p.Search {
		options = options.Union(OptionNoSearch)
	}

	args := baseArguments(s, p.Locale, p.IDs, options)
	args.Message.Text = p.Prompt
	args.Tone = p.Style.DisplayName()
	if p.Attachment != nil {
		args.Message.ImageURL = p.Attachment.ImageURL
		args.Message.OriginalImageURL = p.Attachment.OriginalImageURL
	}
	if p.Context != "" {
		args.PreviousMessages = []PageContext{{
			Author:      "user",
			Description: p.Context,
			ContextType: "WebPage",
			MessageType: MessageTypeContext,
		}}
	}

	return envelope(s, args)
}

// BuildComposeRequest assembles a compose turn frame. The first turn of a
// conversation asks for fresh text, later turns ask to revise the last reply.
func BuildComposeRequest(s Session, p ComposeParams) *TurnRequest {
	args := baseArguments(s, p.Locale, p.IDs, composeOptions)
	args.Message.Text = ComposeInstruction(s.InvocationID == 0, p)
	return envelope(s, args)
}

// ComposeInstruction renders the instruction text sent in place of the prompt.
func ComposeInstruction(first bool, p ComposeParams) string {
	tmpl := composeReviseTemplate
	if first {
		tmpl = composeFirstTemplate
	}
	return fmt.Sprintf(tmpl, p.Tone, p.Length, p.Format, p.Prompt)
}

func baseArguments(s Session, loc Locale, ids TurnIDs, options OptionSet) TurnArguments {
	if loc == (Locale{}) {
		loc = DefaultLocale
	}
	return TurnArguments{
		Source:              TurnSource,
		OptionsSets:         options.Strings(),
		AllowedMessageTypes: append([]string(nil), allowedMessageTypes...),
		SliceIDs:            []string{},
		TraceID:             ids.TraceID,
		IsStartOfSession:    s.InvocationID == 0,
		RequestID:           ids.RequestID,
		Message: OutboundMessage{
			Locale:      loc.Locale,
			Market:      loc.Market,
			Region:      loc.Region,
			Author:      "user",
			InputMethod: "Keyboard",
			MessageType: MessageTypeChat,
			RequestID:   ids.RequestID,
			MessageID:   ids.MessageID,
		},
		ConversationSignature: s.ConversationSignature,
		Participant:           Participant{ID: s.ClientID},
		ConversationID:        s.ConversationID,
	}
}

func envelope(s Session, args TurnArguments) *TurnRequest {
	return &TurnRequest{
		Arguments:    []TurnArguments{args},
		InvocationID: strconv.Itoa(s.InvocationID),
		Target:       TurnTarget,
		Type:         FrameTypeInvocation,
	}
}
