package animimage

import (
	"log/slog"

	"github.com/deepteams/animimage/mux"
	"github.com/deepteams/animimage/pixbuf"
)

// Options configures a decoding session. The zero value is usable.
type Options struct {
	// VerifyChecksums validates PNG chunk CRCs while parsing.
	VerifyChecksums bool
	// Strict rejects containers that decoders usually tolerate.
	Strict bool
	// PixelFormat is the byte order of returned buffers. Default BGRA.
	PixelFormat pixbuf.Format
	// MaxCanvasArea caps width*height of the canvas. Zero selects
	// pixbuf.DefaultMaxArea.
	MaxCanvasArea int64
	// MaxFrames caps the frame count. Zero selects mux.DefaultMaxFrames.
	MaxFrames int
	// Logger receives session events. Nil selects slog.Default().
	Logger *slog.Logger
}

func (o *Options) withDefaults() Options {
	var out Options
	if o != nil {
		out = *o
	}
	if out.MaxCanvasArea <= 0 {
		out.MaxCanvasArea = pixbuf.DefaultMaxArea
	}
	if out.MaxFrames <= 0 {
		out.MaxFrames = mux.DefaultMaxFrames
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return out
}

func (o Options) muxOptions() *mux.Options {
	return &mux.Options{
		VerifyChecksums: o.VerifyChecksums,
		Strict:          o.Strict,
		MaxFrames:       o.MaxFrames,
	}
}
