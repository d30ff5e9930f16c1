package protocol

import "fmt"

// maxSegmentInError bounds how much of an undecodable segment is echoed in errors.
const maxSegmentInError = 120

// MalformedFrameError is returned when a non-empty frame segment is not valid JSON
// or does not match the frame structure.
type MalformedFrameError struct {
	Segment string
	Err     error
}

// Error implements the error interface.
func (e *MalformedFrameError) Error() string {
	seg := e.Segment
	if len(seg) > maxSegmentInError {
		seg = seg[:maxSegmentInError] + "..."
	}
	if e.Err != nil {
		return fmt.Sprintf("malformed frame %q: %v", seg, e.Err)
	}
	return fmt.Sprintf("malformed frame %q", seg)
}

// Unwrap returns the underlying decode error, if any.
func (e *MalformedFrameError) Unwrap() error {
	return e.Err
}

// UnknownStyleError is returned when a style, format or length name is not one
// of the known presets.
type UnknownStyleError struct {
	Kind  string // "style", "format" or "length"
	Value string
}

// Error implements the error interface.
func (e *UnknownStyleError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Value)
}
