// Package mux demultiplexes animated WebP and APNG containers into frame
// records.
//
// A Demuxer is opened over a complete in-memory file. It exposes the canvas
// header, a one-directional iterator over frames in stream order, and lazy
// random access by 1-based container position. Every RawFrame carries its
// own copy of the compressed payload; nothing returned aliases the source.
package mux

import (
	"time"
)

// Dispose is the canvas cleanup applied after a frame is shown.
type Dispose int

const (
	DisposeNone       Dispose = iota // leave the canvas as is
	DisposeBackground                // clear the frame rectangle to transparent
	DisposePrevious                  // restore the canvas as it was before the frame
)

func (d Dispose) String() string {
	switch d {
	case DisposeNone:
		return "none"
	case DisposeBackground:
		return "background"
	case DisposePrevious:
		return "previous"
	}
	return "unknown"
}

// Blend is how a frame's pixels combine with the canvas.
type Blend int

const (
	BlendNone Blend = iota // overwrite the frame rectangle
	BlendOver              // alpha-composite over the canvas
)

func (b Blend) String() string {
	switch b {
	case BlendNone:
		return "none"
	case BlendOver:
		return "over"
	}
	return "unknown"
}

// Format identifies the container.
type Format int

const (
	FormatWebP Format = iota + 1
	FormatPNG         // PNG or APNG
)

func (f Format) String() string {
	switch f {
	case FormatWebP:
		return "webp"
	case FormatPNG:
		return "apng"
	}
	return "unknown"
}

// Codec identifies the bitstream inside a frame payload.
type Codec int

const (
	CodecVP8  Codec = iota + 1 // lossy WebP, optionally with an ALPH plane
	CodecVP8L                  // lossless WebP
	CodecPNG                   // a standalone PNG stream
)

func (c Codec) String() string {
	switch c {
	case CodecVP8:
		return "VP8"
	case CodecVP8L:
		return "VP8L"
	case CodecPNG:
		return "PNG"
	}
	return "unknown"
}

// Header is the container-level metadata. It does not change after Open.
type Header struct {
	Format       Format
	CanvasWidth  int
	CanvasHeight int
	// FrameCount is the count declared by the container: acTL for APNG, the
	// number of ANMF chunks for WebP, 1 for still images.
	FrameCount int
	// LoopCount is the number of plays, 0 meaning forever.
	LoopCount int
	// BackgroundColor is the WebP ANIM color as 0xAARRGGBB. Disposal always
	// clears to transparent; the value is informational.
	BackgroundColor uint32
	HasAlpha        bool
}

// Payload is the compressed data of one frame.
type Payload struct {
	Codec Codec
	// Data is the VP8/VP8L bitstream or, for CodecPNG, a self-contained PNG
	// file holding just this frame.
	Data []byte
	// Alpha is the ALPH chunk body for VP8 frames, nil otherwise.
	Alpha []byte
	// Width and Height are the frame size the bitstream must decode to.
	Width, Height int
}

// RawFrame is one frame as stored in the container, with offsets already
// normalized to a top-left origin.
type RawFrame struct {
	Position         int // 1-based container position
	Width, Height    int
	OffsetX, OffsetY int
	Duration         time.Duration
	Dispose          Dispose
	Blend            Blend
	HasAlpha         bool
	Payload          Payload
}

// Options controls container parsing.
type Options struct {
	// VerifyChecksums validates PNG chunk CRCs.
	VerifyChecksums bool
	// Strict rejects streams that decoders usually tolerate: missing IEND or
	// ANIM, out-of-order APNG sequence numbers, stray IDAT chunks.
	Strict bool
	// MaxFrames caps the number of frames, declared or found. Zero selects
	// DefaultMaxFrames.
	MaxFrames int
}

// DefaultMaxFrames is the frame limit applied when Options.MaxFrames is zero.
const DefaultMaxFrames = 10000

func (o *Options) withDefaults() Options {
	var out Options
	if o != nil {
		out = *o
	}
	if out.MaxFrames <= 0 {
		out.MaxFrames = DefaultMaxFrames
	}
	return out
}
