package chathub

import (
	"errors"
	"fmt"

	"github.com/AltairaLabs/sydney/protocol"
)

var (
	// ErrNoActiveSession is returned when a turn is attempted on a closed conversation.
	ErrNoActiveSession = errors.New("no active conversation session")

	// ErrThrottled is the request-level rate limit signalled by a terminal frame.
	ErrThrottled = errors.New("request throttled")

	// ErrCaptchaChallenge means the service wants a human to solve a challenge
	// in a browser before it answers again. Retrying does not help.
	ErrCaptchaChallenge = errors.New("captcha challenge required")

	// ErrNoResponse is returned when the hub closed the socket before a terminal frame.
	ErrNoResponse = errors.New("no response received before the connection closed")

	// ErrResponseTooLarge is returned when an HTTP response body exceeds the read limit.
	ErrResponseTooLarge = errors.New("response body too large")
)

// SessionCreationError reports a rejected conversation handshake. Status is
// set when the HTTP exchange failed, Message when the service answered with a
// result other than Success.
type SessionCreationError struct {
	Status  int
	Message string
}

func (e *SessionCreationError) Error() string {
	if e.Message != "" {
		return "failed to create conversation: " + e.Message
	}
	return fmt.Sprintf("failed to create conversation, received status %d", e.Status)
}

// AttachmentUploadError reports a failed image upload.
type AttachmentUploadError struct {
	Status int
	Reason string
}

func (e *AttachmentUploadError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("failed to upload attachment, received status %d: %s", e.Status, e.Reason)
	}
	return "failed to upload attachment: " + e.Reason
}

// ConversationLimitError means the conversation has used all of its turns.
// Only a reset helps.
type ConversationLimitError struct {
	Count int
	Max   int
}

func (e *ConversationLimitError) Error() string {
	return fmt.Sprintf("conversation limit reached: %d of %d messages used", e.Count, e.Max)
}

// ResultError carries a non-success result from a terminal frame. It wraps
// ErrThrottled or ErrCaptchaChallenge.
type ResultError struct {
	Value   string
	Message string
	err     error
}

func (e *ResultError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%v: %s", e.err, e.Message)
	}
	return e.err.Error()
}

func (e *ResultError) Unwrap() error { return e.err }

// RequestError reports a non-200 answer from an auxiliary endpoint.
type RequestError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request to %s failed with status %d: %s", e.Endpoint, e.Status, e.Body)
}

func resultError(r *protocol.Result) error {
	if r == nil {
		return nil
	}
	switch r.Value {
	case protocol.ResultThrottled:
		return &ResultError{Value: r.Value, Message: r.Message, err: ErrThrottled}
	case protocol.ResultCaptchaChallenge:
		return &ResultError{Value: r.Value, Message: r.Message, err: ErrCaptchaChallenge}
	}
	return nil
}
