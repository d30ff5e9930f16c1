// Package protocol implements the chat hub wire format: record-separator framed
// JSON in both directions, typed inbound frames, conversation style presets and
// the builders for outbound turn payloads.
//
// Every frame on the wire is a JSON document followed by a single 0x1E byte.
// One transport message may carry zero, one or several frames.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
)

// Delimiter terminates every frame on the wire (ASCII record separator).
const Delimiter byte = 0x1e

// NegotiationFrame selects the hub's wire protocol.
type NegotiationFrame struct {
	Protocol string `json:"protocol"`
	Version  int    `json:"version"`
}

// Negotiation returns the frame sent first on every connection.
func Negotiation() NegotiationFrame {
	return NegotiationFrame{Protocol: "json", Version: 1}
}

// Encode serializes v as JSON and appends the frame delimiter.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal frame: %w", err)
	}
	return append(data, Delimiter), nil
}

// Decode splits chunk on the frame delimiter and yields each non-empty segment
// as raw JSON. A segment that is not valid JSON yields a *MalformedFrameError
// and ends the sequence.
func Decode(chunk []byte) iter.Seq2[json.RawMessage, error] {
	return func(yield func(json.RawMessage, error) bool) {
		rest := chunk
		for len(rest) > 0 {
			var segment []byte
			segment, rest, _ = bytes.Cut(rest, []byte{Delimiter})
			if len(segment) == 0 {
				continue
			}
			if !json.Valid(segment) {
				yield(nil, &MalformedFrameError{Segment: string(segment)})
				return
			}
			if !yield(json.RawMessage(segment), nil) {
				return
			}
		}
	}
}

// DecodeFrames is Decode followed by unmarshaling each segment into a ResponseFrame.
func DecodeFrames(chunk []byte) iter.Seq2[*ResponseFrame, error] {
	return func(yield func(*ResponseFrame, error) bool) {
		for raw, err := range Decode(chunk) {
			if err != nil {
				yield(nil, err)
				return
			}
			frame, err := ParseFrame(raw)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(frame, nil) {
				return
			}
		}
	}
}

// ParseFrame unmarshals a single unframed JSON document into a ResponseFrame.
func ParseFrame(raw json.RawMessage) (*ResponseFrame, error) {
	var frame ResponseFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, &MalformedFrameError{Segment: string(raw), Err: err}
	}
	frame.raw = append(json.RawMessage(nil), raw...)
	return &frame, nil
}
