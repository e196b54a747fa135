package errdefs

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestFormatErrorKind(t *testing.T) {
	err := Format(ErrTruncated, 40, "chunk %q", "IDAT")
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("errors.Is(%v, ErrTruncated) = false", err)
	}
	if errors.Is(err, ErrBadSignature) {
		t.Errorf("errors.Is(%v, ErrBadSignature) = true", err)
	}
	if !IsFormat(err) || IsDecode(err) || IsResource(err) {
		t.Errorf("family helpers misclassify %v", err)
	}
	if !strings.Contains(err.Error(), "offset 40") {
		t.Errorf("Error() = %q, want offset", err.Error())
	}
}

func TestFormatErrorUnknownOffset(t *testing.T) {
	err := Format(ErrEmptyAnimation, -1, "")
	if got := err.Error(); got != "format: animation has no frames" {
		t.Errorf("Error() = %q", got)
	}
}

func TestDecodeErrorWrapsCause(t *testing.T) {
	err := Decode(ErrCorrupt, io.ErrClosedPipe)
	if !errors.Is(err, ErrCorrupt) || !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("DecodeError does not expose kind and cause: %v", err)
	}

	framed := WithFrame(err, 3)
	var de *DecodeError
	if !errors.As(framed, &de) {
		t.Fatalf("errors.As failed for %v", framed)
	}
	if de.Frame != 3 {
		t.Errorf("Frame = %d, want 3", de.Frame)
	}
	// The original is left untouched.
	var orig *DecodeError
	errors.As(err, &orig)
	if orig.Frame != -1 {
		t.Errorf("WithFrame mutated the original error")
	}
	// An index already set is kept.
	if again := WithFrame(framed, 7); !strings.Contains(again.Error(), "frame 3") {
		t.Errorf("WithFrame overwrote frame index: %v", again)
	}
}

func TestWithFrameIgnoresOtherErrors(t *testing.T) {
	fe := Format(ErrInvalidChunk, 0, "x")
	if got := WithFrame(fe, 1); got != fe {
		t.Errorf("WithFrame changed a FormatError")
	}
}

func TestResourceError(t *testing.T) {
	err := Resource(1<<20, 1<<20)
	if !IsResource(err) || !errors.Is(err, ErrTooLarge) {
		t.Errorf("Resource() = %v, not classified", err)
	}
}
