package animation

import (
	"fmt"
	"image"
	"sync"

	"golang.org/x/image/draw"

	"github.com/deepteams/animimage/codec"
	"github.com/deepteams/animimage/errdefs"
	"github.com/deepteams/animimage/internal/pool"
	"github.com/deepteams/animimage/pixbuf"
)

// FrameSource decodes the pixels of one frame. The returned image is
// frame-sized; the compositor places it on the canvas.
type FrameSource interface {
	DecodeFrame(index int) (*codec.Result, error)
}

// FrameSourceFunc adapts a function to FrameSource.
type FrameSourceFunc func(index int) (*codec.Result, error)

// DecodeFrame calls fn(index).
func (fn FrameSourceFunc) DecodeFrame(index int) (*codec.Result, error) { return fn(index) }

// Resolved is a fully composited frame.
type Resolved struct {
	// Image is canvas-sized and owned by the caller.
	Image *image.RGBA
	// Partial is set when this frame, or an earlier frame of its chain whose
	// pixels are still on the canvas, came from truncated data. Such a frame
	// contributes no pixels at all, not only its missing rows. The flag does
	// not depend on the order frames are resolved in.
	Partial bool
	// Decoded is the number of frame payloads decoded to produce Image.
	Decoded int
}

// canvasState is the last resolved canvas and what is needed to continue
// from it.
type canvasState struct {
	img   *image.RGBA
	prior *image.RGBA // canvas before the last frame, kept for DisposePrevious
}

// Compositor serves resolved frames for one animation. It is safe for
// concurrent use; calls are serialized.
type Compositor struct {
	mu            sync.Mutex
	width, height int
	frames        []Descriptor
	needsBlending bool
	src           FrameSource

	state   canvasState
	last    int    // index of the frame state.img holds, -1 when empty
	partial []bool // per frame: the last decode of it was partial
}

// NewCompositor returns an empty compositor over planned frames.
func NewCompositor(width, height int, frames []Descriptor, needsBlending bool, src FrameSource) *Compositor {
	return &Compositor{
		width:         width,
		height:        height,
		frames:        frames,
		needsBlending: needsBlending,
		src:           src,
		last:          -1,
		partial:       make([]bool, len(frames)),
	}
}

// Resolve returns frame index composited onto the canvas.
//
// A frame with BlendFrom == index, or any frame when no frame needs
// blending, is decoded on its own. A frame directly following the last
// resolved one is drawn onto the existing canvas after the previous frame's
// disposal. Anything else replays the chain from BlendFrom on a scratch
// canvas that replaces the current one only if every decode succeeds.
func (c *Compositor) Resolve(index int) (*Resolved, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.frames) {
		return nil, fmt.Errorf("animation: frame %d of %d: %w", index, len(c.frames), errdefs.ErrFrameOutOfRange)
	}
	f := c.frames[index]

	switch {
	case !c.needsBlending || f.BlendFrom == index:
		return c.resolveDirect(f)
	case c.last >= 0 && c.last+1 == index:
		return c.resolveNext(f)
	default:
		return c.replay(f)
	}
}

func (c *Compositor) decode(index int) (*codec.Result, error) {
	res, err := c.src.DecodeFrame(index)
	if err != nil {
		return nil, errdefs.WithFrame(err, index)
	}
	c.partial[index] = res.Partial
	return res, nil
}

func (c *Compositor) resolveDirect(f Descriptor) (*Resolved, error) {
	res, err := c.decode(f.Index)
	if err != nil {
		return nil, err
	}
	out := res.Image
	if !f.IsFullSize || out.Bounds() != image.Rect(0, 0, c.width, c.height) {
		if out, err = codec.Place(res.Image, c.width, c.height, f.Rect().Min); err != nil {
			return nil, err
		}
	}
	if c.needsBlending {
		// The frame starts a chain: seed the canvas as if it were drawn on
		// a transparent one.
		next := canvasState{img: c.newCanvas()}
		if f.Dispose == DisposePrevious {
			next.prior = c.newCanvas()
		}
		draw.Draw(next.img, next.img.Bounds(), out, out.Bounds().Min, draw.Src)
		c.swap(next, f.Index)
	}
	return &Resolved{Image: out, Partial: res.Partial, Decoded: 1}, nil
}

func (c *Compositor) resolveNext(f Descriptor) (*Resolved, error) {
	// Decode before touching the canvas so a failure leaves it intact.
	res, err := c.decode(f.Index)
	if err != nil {
		return nil, err
	}
	c.dispose(&c.state, c.frames[c.last])
	c.paint(&c.state, f, res.Image)
	c.last = f.Index
	return &Resolved{Image: cloneRGBA(c.state.img), Partial: c.chainPartial(f), Decoded: 1}, nil
}

func (c *Compositor) replay(target Descriptor) (*Resolved, error) {
	scratch := canvasState{img: c.newCanvas()}
	decoded := 0
	for j := target.BlendFrom; j <= target.Index; j++ {
		f := c.frames[j]
		if j < target.Index {
			// Intermediate frames whose pixels are undone by their own
			// disposal need no decode.
			switch f.Dispose {
			case DisposePrevious:
				continue
			case DisposeBackground:
				clearRect(scratch.img, f.Rect())
				continue
			}
		}
		res, err := c.decode(j)
		if err != nil {
			c.release(scratch)
			return nil, err
		}
		decoded++
		c.paint(&scratch, f, res.Image)
	}
	c.swap(scratch, target.Index)
	return &Resolved{Image: cloneRGBA(c.state.img), Partial: c.chainPartial(target), Decoded: decoded}, nil
}

// chainPartial reports whether f, or a frame of its chain whose pixels
// survive on the canvas, decoded partially. Frames disposed to background
// or to the previous state leave nothing behind and do not count. Every
// counted frame has been decoded by the time f is resolved, on either path.
func (c *Compositor) chainPartial(f Descriptor) bool {
	if c.partial[f.Index] {
		return true
	}
	for j := f.BlendFrom; j < f.Index; j++ {
		if c.frames[j].Dispose == DisposeNone && c.partial[j] {
			return true
		}
	}
	return false
}

// dispose applies f's disposal to s. f is the frame s currently shows.
func (c *Compositor) dispose(s *canvasState, f Descriptor) {
	switch f.Dispose {
	case DisposeBackground:
		clearRect(s.img, f.Rect())
	case DisposePrevious:
		if s.prior != nil {
			copy(s.img.Pix, s.prior.Pix)
		}
	}
}

// paint draws a frame-sized image at f's position, snapshotting the canvas
// first when f will later be disposed to the previous state.
func (c *Compositor) paint(s *canvasState, f Descriptor, img *image.RGBA) {
	if f.Dispose == DisposePrevious {
		if s.prior == nil {
			s.prior = c.newCanvas()
		}
		copy(s.prior.Pix, s.img.Pix)
	}
	op := draw.Src
	if f.Blend == BlendOver {
		op = draw.Over
	}
	src := img
	if img.Bounds().Size() != f.Rect().Size() {
		// A canvas-sized image from the frame source: take the frame region.
		src = img.SubImage(f.Rect()).(*image.RGBA)
	}
	draw.Draw(s.img, f.Rect(), src, src.Bounds().Min, op)
}

// Canvas returns a copy of the last resolved canvas, or a transparent
// canvas when nothing has been resolved with blending. The error is a
// *errdefs.ResourceError when the transparent canvas cannot be allocated.
func (c *Compositor) Canvas() (*image.RGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.img == nil {
		return pixbuf.NewRGBA(c.width, c.height)
	}
	return cloneRGBA(c.state.img), nil
}

// Last returns the index of the frame the canvas holds, or -1.
func (c *Compositor) Last() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Reset drops the canvas. The next Resolve starts from empty.
func (c *Compositor) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.release(c.state)
	c.state = canvasState{}
	c.last = -1
}

func (c *Compositor) swap(next canvasState, index int) {
	c.release(c.state)
	c.state = next
	c.last = index
}

func (c *Compositor) release(s canvasState) {
	if s.img != nil {
		pool.Put(s.img.Pix)
	}
	if s.prior != nil {
		pool.Put(s.prior.Pix)
	}
}

func (c *Compositor) newCanvas() *image.RGBA {
	stride := pixbuf.Stride(c.width)
	return &image.RGBA{
		Pix:    pool.GetZeroed(stride * c.height),
		Stride: stride,
		Rect:   image.Rect(0, 0, c.width, c.height),
	}
}

func clearRect(img *image.RGBA, r image.Rectangle) {
	draw.Draw(img, r, image.Transparent, image.Point{}, draw.Src)
}

// cloneRGBA returns a copy of img in freshly allocated memory.
func cloneRGBA(img *image.RGBA) *image.RGBA {
	c := *img
	c.Pix = append([]byte(nil), img.Pix...)
	return &c
}
