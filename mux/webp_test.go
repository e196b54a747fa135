package mux_test

import (
	"encoding/binary"
	"errors"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/deepteams/animimage/errdefs"
	"github.com/deepteams/animimage/internal/fixture"
	"github.com/deepteams/animimage/mux"
)

var (
	red   = color.NRGBA{R: 255, A: 255}
	green = color.NRGBA{G: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 128}
)

func threeFrameWebP(t *testing.T) []byte {
	t.Helper()
	data, err := fixture.AnimatedWebP(8, 6, []fixture.Frame{
		{Image: fixture.Solid(8, 6, red), Duration: 100 * time.Millisecond, Blend: mux.BlendNone},
		{Image: fixture.Solid(4, 2, blue), X: 2, Y: 4, Duration: 50 * time.Millisecond, Blend: mux.BlendOver},
		{Image: fixture.Solid(8, 6, green), Duration: 70 * time.Millisecond, Dispose: mux.DisposeBackground, Blend: mux.BlendOver},
	}, fixture.WebPOptions{LoopCount: 3, Background: 0xff112233})
	if err != nil {
		t.Fatalf("AnimatedWebP: %v", err)
	}
	return data
}

func TestOpenWebPHeader(t *testing.T) {
	d, err := mux.Open(threeFrameWebP(t), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	h := d.Header()
	want := mux.Header{
		Format:          mux.FormatWebP,
		CanvasWidth:     8,
		CanvasHeight:    6,
		FrameCount:      3,
		LoopCount:       3,
		BackgroundColor: 0xff112233,
		HasAlpha:        true,
	}
	if h != want {
		t.Errorf("Header = %+v, want %+v", h, want)
	}
}

func TestWebPIterator(t *testing.T) {
	d, err := mux.Open(threeFrameWebP(t), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	type geom struct {
		pos, w, h, x, y int
		dur             time.Duration
		dispose         mux.Dispose
		blend           mux.Blend
		alpha           bool
	}
	want := []geom{
		{1, 8, 6, 0, 0, 100 * time.Millisecond, mux.DisposeNone, mux.BlendNone, false},
		{2, 4, 2, 2, 4, 50 * time.Millisecond, mux.DisposeNone, mux.BlendOver, true},
		{3, 8, 6, 0, 0, 70 * time.Millisecond, mux.DisposeBackground, mux.BlendOver, false},
	}
	for i, w := range want {
		f, err := d.Next()
		if err != nil {
			t.Fatalf("Next %d: %v", i, err)
		}
		got := geom{f.Position, f.Width, f.Height, f.OffsetX, f.OffsetY, f.Duration, f.Dispose, f.Blend, f.HasAlpha}
		if got != w {
			t.Errorf("frame %d = %+v, want %+v", i, got, w)
		}
		if f.Payload.Codec != mux.CodecVP8L || f.Payload.Width != w.w || f.Payload.Height != w.h {
			t.Errorf("frame %d payload = %v %dx%d", i, f.Payload.Codec, f.Payload.Width, f.Payload.Height)
		}
	}
	for i := 0; i < 2; i++ {
		if _, err := d.Next(); err != io.EOF {
			t.Fatalf("Next after end = %v, want io.EOF", err)
		}
	}
}

func TestWebPFrameRandomAccess(t *testing.T) {
	data := threeFrameWebP(t)
	d, err := mux.Open(data, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	f, err := d.Frame(2)
	if err != nil {
		t.Fatalf("Frame(2): %v", err)
	}
	if f.Position != 2 || f.OffsetX != 2 || f.OffsetY != 4 {
		t.Errorf("Frame(2) = %+v", f)
	}
	// The payload is a copy of the source bytes.
	f.Payload.Data[0] ^= 0xff
	again, _ := d.Frame(2)
	if again.Payload.Data[0] == f.Payload.Data[0] {
		t.Errorf("payload aliases demuxer state")
	}
	// Random access does not move the iterator.
	first, err := d.Next()
	if err != nil || first.Position != 1 {
		t.Errorf("Next after Frame = %v, %v", first, err)
	}
	for _, p := range []int{0, 4, -1} {
		if _, err := d.Frame(p); !errors.Is(err, errdefs.ErrFrameOutOfRange) {
			t.Errorf("Frame(%d) err = %v, want ErrFrameOutOfRange", p, err)
		}
	}
}

func TestOpenStillWebP(t *testing.T) {
	data, err := fixture.StillWebP(fixture.Gradient(5, 3, 255))
	if err != nil {
		t.Fatalf("StillWebP: %v", err)
	}
	d, err := mux.Open(data, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	h := d.Header()
	if h.CanvasWidth != 5 || h.CanvasHeight != 3 || h.FrameCount != 1 || h.LoopCount != 0 {
		t.Errorf("Header = %+v", h)
	}
	f, err := d.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if f.Width != 5 || f.Height != 3 || f.Payload.Codec != mux.CodecVP8L || f.Blend != mux.BlendNone {
		t.Errorf("still frame = %+v", f)
	}
}

func TestOpenRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, errdefs.ErrTruncated},
		{"short", []byte{1, 2, 3}, errdefs.ErrTruncated},
		{"gif", []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00,\x00\x00\x00\x00"), errdefs.ErrUnsupportedFormat},
		{"jpeg", []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00"), errdefs.ErrUnsupportedFormat},
		{"bmp", []byte("BM\x3a\x00\x00\x00\x00\x00\x00\x00"), errdefs.ErrBadSignature},
		{"riff wave", []byte("RIFF\x04\x00\x00\x00WAVE"), errdefs.ErrBadSignature},
		{"riff short", []byte("RIFF\x04\x00"), errdefs.ErrTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mux.Open(tt.data, nil)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if !errdefs.IsFormat(err) {
				t.Errorf("err = %T, want *FormatError", err)
			}
		})
	}
}

func TestOpenWebPEmptyAnimation(t *testing.T) {
	data, err := fixture.AnimatedWebP(4, 4, nil, fixture.WebPOptions{})
	if err != nil {
		t.Fatalf("AnimatedWebP: %v", err)
	}
	if _, err := mux.Open(data, nil); !errors.Is(err, errdefs.ErrEmptyAnimation) {
		t.Fatalf("err = %v, want ErrEmptyAnimation", err)
	}
}

func TestOpenWebPFrameOutsideCanvas(t *testing.T) {
	data, err := fixture.AnimatedWebP(8, 6, []fixture.Frame{
		{Image: fixture.Solid(8, 6, red)},
		{Image: fixture.Solid(4, 4, red), X: 6, Y: 0},
	}, fixture.WebPOptions{})
	if err != nil {
		t.Fatalf("AnimatedWebP: %v", err)
	}
	if _, err := mux.Open(data, nil); !errors.Is(err, errdefs.ErrInvalidChunk) {
		t.Fatalf("err = %v, want ErrInvalidChunk", err)
	}
}

func TestOpenWebPTruncated(t *testing.T) {
	data := threeFrameWebP(t)
	// Keep the declared RIFF size so the last ANMF claims more than remains.
	cut := data[:len(data)-10]
	if _, err := mux.Open(cut, nil); !errors.Is(err, errdefs.ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

func TestOpenWebPTruncatedAtChunkBoundary(t *testing.T) {
	data := threeFrameWebP(t)
	last := -1
	for pos := 12; pos+8 <= len(data); {
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		if string(data[pos:pos+4]) == "ANMF" {
			last = pos
		}
		pos += 8 + size + size&1
	}
	if last < 0 {
		t.Fatal("no ANMF chunk")
	}
	// The cut drops the whole last frame, leaving a well-formed chunk list
	// that falls short of the declared RIFF size.
	cut := data[:last]
	if _, err := mux.Open(cut, nil); !errors.Is(err, errdefs.ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

func TestOpenWebPStrictRequiresANIM(t *testing.T) {
	data, err := fixture.AnimatedWebP(4, 4, []fixture.Frame{{Image: fixture.Solid(4, 4, red)}}, fixture.WebPOptions{NoANIM: true})
	if err != nil {
		t.Fatalf("AnimatedWebP: %v", err)
	}
	if _, err := mux.Open(data, nil); err != nil {
		t.Fatalf("lenient Open: %v", err)
	}
	if _, err := mux.Open(data, &mux.Options{Strict: true}); !errors.Is(err, errdefs.ErrInvalidChunk) {
		t.Fatalf("strict err = %v, want ErrInvalidChunk", err)
	}
}

func TestOpenWebPMaxFrames(t *testing.T) {
	_, err := mux.Open(threeFrameWebP(t), &mux.Options{MaxFrames: 2})
	if !errors.Is(err, errdefs.ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
}

func TestOpenWebPSizeMismatch(t *testing.T) {
	data := threeFrameWebP(t)
	// Find the first ANMF and bump its declared width.
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		if id == "ANMF" {
			data[pos+8+6]--
			break
		}
		pos += 8 + size + size&1
	}
	if _, err := mux.Open(data, nil); !errors.Is(err, errdefs.ErrInvalidChunk) {
		t.Fatalf("err = %v, want ErrInvalidChunk", err)
	}
}

func readTestFile(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "testdata", name))
	if err != nil {
		t.Fatalf("reading %s: %v", name, err)
	}
	return data
}

func TestOpenWebPLossy(t *testing.T) {
	tests := []struct {
		file      string
		wantAlpha bool
		alphaLen  int
	}{
		{"yellow_rose.lossy-with-alpha.webp", true, 3811},
		{"yellow_rose.lossy.webp", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			d, err := mux.Open(readTestFile(t, tt.file), &mux.Options{Strict: true})
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			h := d.Header()
			if h.CanvasWidth != 400 || h.CanvasHeight != 301 || h.FrameCount != 1 || h.HasAlpha != tt.wantAlpha {
				t.Errorf("Header = %+v", h)
			}
			f, err := d.Next()
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			if f.Payload.Codec != mux.CodecVP8 || f.HasAlpha != tt.wantAlpha {
				t.Errorf("frame codec %v alpha %v", f.Payload.Codec, f.HasAlpha)
			}
			if len(f.Payload.Alpha) != tt.alphaLen {
				t.Errorf("ALPH length = %d, want %d", len(f.Payload.Alpha), tt.alphaLen)
			}
			if f.Width != 400 || f.Height != 301 {
				t.Errorf("frame size %dx%d", f.Width, f.Height)
			}
		})
	}
}
