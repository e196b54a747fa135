package animimage

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/deepteams/animimage/animation"
	"github.com/deepteams/animimage/codec"
	"github.com/deepteams/animimage/mux"
	"github.com/deepteams/animimage/pixbuf"
)

// Frame is one resolved animation frame.
type Frame struct {
	animation.Descriptor
	// Buffer is the canvas-sized composite, owned by the caller.
	Buffer *pixbuf.Buffer
	// Partial is set when this frame, or a frame it was composited on,
	// came from truncated data. A truncated frame contributes no pixels:
	// its whole rectangle is left transparent, not only the missing rows.
	Partial bool
}

// Decoder is a decoding session over one animated image. Methods are safe
// for concurrent use; frame requests are served one at a time.
type Decoder struct {
	mu   sync.Mutex
	id   string
	opts Options
	log  *slog.Logger

	header        mux.Header
	frames        []animation.Descriptor
	needsBlending bool
	comp          *animation.Compositor
}

// Open parses data and plans its frames. data is retained and must not be
// modified while the Decoder is in use. A nil opts selects defaults.
func Open(data []byte, opts *Options) (*Decoder, error) {
	o := opts.withDefaults()
	id := uuid.NewString()
	d := &Decoder{
		id:   id,
		opts: o,
		log:  o.Logger.With("session", id),
	}
	if err := d.load(data); err != nil {
		return nil, err
	}
	return d, nil
}

// OpenReader reads r to the end and opens the result.
func OpenReader(r io.Reader, opts *Options) (*Decoder, error) {
	data, err := readAll(r)
	if err != nil {
		return nil, fmt.Errorf("animimage: reading data: %w", err)
	}
	return Open(data, opts)
}

// readAll reads all data from r. If r implements Len() int (e.g.
// *bytes.Reader), a single exact-sized allocation is used.
func readAll(r io.Reader) ([]byte, error) {
	if lr, ok := r.(interface{ Len() int }); ok {
		n := lr.Len()
		if n > 0 {
			data := make([]byte, n)
			_, err := io.ReadFull(r, data)
			return data, err
		}
	}
	return io.ReadAll(r)
}

// load parses data into a fresh header, frame list and compositor and
// installs them only when every step succeeds.
func (d *Decoder) load(data []byte) error {
	dm, err := mux.Open(data, d.opts.muxOptions())
	if err != nil {
		return err
	}
	h := dm.Header()
	if err := pixbuf.CheckArea(h.CanvasWidth, h.CanvasHeight, d.opts.MaxCanvasArea); err != nil {
		return err
	}

	descs := make([]animation.Descriptor, 0, h.FrameCount)
	for {
		f, err := dm.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		descs = append(descs, animation.NewDescriptor(frameIndex(f.Position), f, h.CanvasWidth, h.CanvasHeight))
	}
	planned, needsBlending := animation.PlanFrames(descs)

	src := animation.FrameSourceFunc(func(index int) (*codec.Result, error) {
		f, err := dm.Frame(containerPosition(index))
		if err != nil {
			return nil, err
		}
		return codec.Decode(f.Payload, f.Width, f.Height, image.Point{})
	})
	comp := animation.NewCompositor(h.CanvasWidth, h.CanvasHeight, planned, needsBlending, src)

	d.mu.Lock()
	d.header = h
	d.frames = planned
	d.needsBlending = needsBlending
	d.comp = comp
	d.mu.Unlock()

	log := d.log.With("format", h.Format.String())
	log.Info("animimage: opened",
		"width", h.CanvasWidth, "height", h.CanvasHeight,
		"frames", len(planned), "loops", h.LoopCount)
	log.Debug("animimage: planned",
		"needs_blending", needsBlending, "chains", countChains(planned))
	return nil
}

// containerPosition converts a 0-based frame index to the demuxer's 1-based
// position.
func containerPosition(index int) int { return index + 1 }

// frameIndex converts a 1-based demuxer position to a frame index.
func frameIndex(position int) int { return position - 1 }

func countChains(frames []animation.Descriptor) int {
	n := 0
	for _, f := range frames {
		if f.BlendFrom == f.Index {
			n++
		}
	}
	return n
}

// ID returns the session identifier attached to log records.
func (d *Decoder) ID() string { return d.id }

// Header returns the container header.
func (d *Decoder) Header() mux.Header {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.header
}

// FrameCount returns the number of frames.
func (d *Decoder) FrameCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.frames)
}

// Frames returns a copy of the planned frame descriptors.
func (d *Decoder) Frames() []animation.Descriptor {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]animation.Descriptor(nil), d.frames...)
}

// NeedsBlending reports whether any frame is composited on earlier frames.
func (d *Decoder) NeedsBlending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.needsBlending
}

// Frame resolves frame index (0-based). Frames may be requested in any
// order; the result is the same as decoding every frame from the start.
func (d *Decoder) Frame(index int) (*Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	res, err := d.comp.Resolve(index)
	if err != nil {
		d.log.Warn("animimage: frame failed", "frame", index, "err", err)
		return nil, err
	}
	if res.Decoded > 1 {
		d.log.Debug("animimage: replayed", "frame", index,
			"from", d.frames[index].BlendFrom, "decoded", res.Decoded)
	}
	buf, err := pixbuf.FromRGBA(res.Image, d.opts.PixelFormat)
	if err != nil {
		return nil, err
	}
	return &Frame{Descriptor: d.frames[index], Buffer: buf, Partial: res.Partial}, nil
}

// Canvas returns a copy of the last resolved canvas, transparent before the
// first frame request.
func (d *Decoder) Canvas() (*pixbuf.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	img, err := d.comp.Canvas()
	if err != nil {
		return nil, err
	}
	return pixbuf.FromRGBA(img, d.opts.PixelFormat)
}

// Reset drops the canvas. The next frame request starts from its chain
// base.
func (d *Decoder) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.comp.Reset()
}

// Update replaces the session's data, for example after more bytes of a
// download arrived. On failure the session keeps its previous state.
func (d *Decoder) Update(data []byte) error {
	return d.load(data)
}
