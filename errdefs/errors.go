// Package errdefs defines the error taxonomy shared by the demuxer, the frame
// decoder and the decoding session.
//
// Three families exist:
//   - *FormatError: the container is malformed, truncated or unsupported. The
//     whole file fails and retrying does not help.
//   - *DecodeError: one frame failed to decode. Callers may skip the frame and
//     continue with others.
//   - *ResourceError: a pixel buffer could not be allocated. Fatal for the
//     current call only.
//
// Every family wraps one of the ErrXxx kind sentinels below, so callers match
// kinds with errors.Is and families with errors.As.
package errdefs

import (
	"errors"
	"fmt"
)

// Kind sentinels.
var (
	ErrBadSignature       = errors.New("bad signature")
	ErrTruncated          = errors.New("truncated data")
	ErrEmptyAnimation     = errors.New("animation has no frames")
	ErrFrameCountMismatch = errors.New("frame count mismatch")
	ErrInvalidChunk       = errors.New("invalid chunk")
	ErrInvalidHeader      = errors.New("invalid header")
	ErrChecksumMismatch   = errors.New("checksum mismatch")
	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrUnsupportedFeature = errors.New("unsupported feature")
	ErrCorrupt            = errors.New("corrupt frame data")
	ErrTooLarge           = errors.New("image too large")
	ErrFrameOutOfRange    = errors.New("frame index out of range")
)

// FormatError reports a malformed container.
type FormatError struct {
	Err    error  // kind sentinel
	Offset int    // byte offset into the source, -1 if unknown
	Detail string // optional human-readable context
}

func (e *FormatError) Error() string {
	msg := "format: " + e.Err.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Offset >= 0 {
		msg += fmt.Sprintf(" (offset %d)", e.Offset)
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }

// Format returns a *FormatError of the given kind.
func Format(kind error, offset int, format string, args ...any) error {
	return &FormatError{Err: kind, Offset: offset, Detail: fmt.Sprintf(format, args...)}
}

// DecodeError reports a frame whose payload could not be decoded.
type DecodeError struct {
	Frame int   // 0-based frame index, -1 if not attached to a frame
	Err   error // ErrUnsupportedFeature or ErrCorrupt
	Cause error // underlying codec error, may be nil
}

func (e *DecodeError) Error() string {
	msg := "decode"
	if e.Frame >= 0 {
		msg += fmt.Sprintf(" frame %d", e.Frame)
	}
	msg += ": " + e.Err.Error()
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the codec cause to errors.Is/As.
func (e *DecodeError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// Decode returns a *DecodeError not yet attached to a frame index.
func Decode(kind, cause error) error {
	return &DecodeError{Frame: -1, Err: kind, Cause: cause}
}

// WithFrame attaches a frame index to err when it is a *DecodeError without one.
func WithFrame(err error, frame int) error {
	var de *DecodeError
	if errors.As(err, &de) && de.Frame < 0 {
		c := *de
		c.Frame = frame
		return &c
	}
	return err
}

// ResourceError reports a refused pixel buffer allocation.
type ResourceError struct {
	Width, Height int
	Err           error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource: %dx%d buffer: %v", e.Width, e.Height, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// Resource returns a *ResourceError for a width x height buffer.
func Resource(width, height int) error {
	return &ResourceError{Width: width, Height: height, Err: ErrTooLarge}
}

// IsFormat reports whether err is, or wraps, a *FormatError.
func IsFormat(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// IsDecode reports whether err is, or wraps, a *DecodeError.
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// IsResource reports whether err is, or wraps, a *ResourceError.
func IsResource(err error) bool {
	var re *ResourceError
	return errors.As(err, &re)
}
