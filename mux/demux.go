package mux

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/deepteams/animimage/errdefs"
	"github.com/deepteams/animimage/internal/container"
)

// origin is the vertical reference a container measures frame offsets from.
type origin int

const (
	originTopLeft origin = iota
	originBottomLeft
)

// entry is the parsed control data for one frame. Slices point into the
// source buffer and are copied out by materialize.
type entry struct {
	width, height int
	x, y          int
	duration      time.Duration
	dispose       Dispose
	blend         Blend
	hasAlpha      bool

	codec Codec
	data  []byte   // VP8/VP8L bitstream
	alpha []byte   // ALPH body
	parts [][]byte // APNG IDAT/fdAT bodies, sequence numbers stripped
}

// Demuxer iterates the frames of one container. It is not safe for
// concurrent use; sessions serialize access themselves.
type Demuxer struct {
	header  Header
	origin  origin
	entries []entry
	next    int // 0-based index of the entry Next returns

	// APNG only: the chunks a standalone frame PNG is rebuilt from.
	ihdr   container.IHDR
	shared [][]byte
}

// Open parses the container in data. The format is detected from the magic
// bytes. data must stay unmodified while the Demuxer is in use.
func Open(data []byte, opts *Options) (*Demuxer, error) {
	o := opts.withDefaults()
	d := &Demuxer{}
	var err error
	switch {
	case container.HasPNGSignature(data):
		err = d.parseAPNG(data, o)
	case len(data) >= 4 && container.ReadLE32(data[0:4]) == container.FourCCRIFF:
		err = d.parseWebP(data, o)
	case isOtherImage(data):
		err = errdefs.Format(errdefs.ErrUnsupportedFormat, 0, "GIF or JPEG data")
	case len(data) < container.PNGSignatureSize:
		err = errdefs.Format(errdefs.ErrTruncated, 0, "%d bytes", len(data))
	default:
		err = errdefs.Format(errdefs.ErrBadSignature, 0, "neither PNG nor RIFF/WEBP")
	}
	if err != nil {
		return nil, err
	}

	if d.header.FrameCount == 0 {
		return nil, errdefs.Format(errdefs.ErrEmptyAnimation, -1, "")
	}
	if d.header.FrameCount > o.MaxFrames || len(d.entries) > o.MaxFrames {
		return nil, errdefs.Format(errdefs.ErrTooLarge, -1, "%d frames, limit %d",
			max(d.header.FrameCount, len(d.entries)), o.MaxFrames)
	}
	for i := range d.entries {
		e := &d.entries[i]
		e.y = normalizeOffsetY(d.origin, d.header.CanvasHeight, e.y, e.height)
	}
	return d, nil
}

// Header returns the container header.
func (d *Demuxer) Header() Header { return d.header }

// Next returns the next frame in stream order, or io.EOF after the last one.
// A container whose frames disagree with its declared count fails with
// ErrFrameCountMismatch instead of io.EOF.
func (d *Demuxer) Next() (*RawFrame, error) {
	declared := d.header.FrameCount
	if d.next >= len(d.entries) {
		if d.next != declared {
			return nil, errdefs.Format(errdefs.ErrFrameCountMismatch, -1,
				"declared %d frames, found %d", declared, len(d.entries))
		}
		return nil, io.EOF
	}
	if d.next >= declared {
		return nil, errdefs.Format(errdefs.ErrFrameCountMismatch, -1,
			"declared %d frames, found %d", declared, len(d.entries))
	}
	f := d.materialize(d.next)
	d.next++
	return f, nil
}

// Frame returns the frame at 1-based container position without moving the
// iterator. The payload is rebuilt and copied on every call.
func (d *Demuxer) Frame(position int) (*RawFrame, error) {
	if position < 1 || position > len(d.entries) {
		return nil, fmt.Errorf("mux: frame position %d of %d: %w", position, len(d.entries), errdefs.ErrFrameOutOfRange)
	}
	return d.materialize(position - 1), nil
}

func (d *Demuxer) materialize(i int) *RawFrame {
	e := &d.entries[i]
	f := &RawFrame{
		Position: i + 1,
		Width:    e.width,
		Height:   e.height,
		OffsetX:  e.x,
		OffsetY:  e.y,
		Duration: e.duration,
		Dispose:  e.dispose,
		Blend:    e.blend,
		HasAlpha: e.hasAlpha,
		Payload: Payload{
			Codec:  e.codec,
			Width:  e.width,
			Height: e.height,
		},
	}
	switch e.codec {
	case CodecPNG:
		f.Payload.Data = d.buildPNG(e)
	default:
		f.Payload.Data = copyBytes(e.data)
		if e.alpha != nil {
			f.Payload.Alpha = copyBytes(e.alpha)
		}
	}
	return f
}

// isOtherImage reports whether data starts like an image format this
// package recognizes but does not demux.
func isOtherImage(data []byte) bool {
	return bytes.HasPrefix(data, []byte("GIF87a")) ||
		bytes.HasPrefix(data, []byte("GIF89a")) ||
		bytes.HasPrefix(data, []byte{0xff, 0xd8, 0xff})
}

// normalizeOffsetY converts a y offset to a top-left origin. Containers that
// count from the bottom edge store the distance from the canvas bottom to
// the frame bottom.
func normalizeOffsetY(o origin, canvasHeight, rawY, frameHeight int) int {
	if o == originBottomLeft {
		return canvasHeight - rawY - frameHeight
	}
	return rawY
}

// fits reports whether a w x h frame at (x, y) lies inside the canvas.
func fits(x, y, w, h, canvasW, canvasH int) bool {
	return x >= 0 && y >= 0 && w > 0 && h > 0 && x+w <= canvasW && y+h <= canvasH
}

// copyBytes returns a copy of the slice to avoid retaining the original buffer.
func copyBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
