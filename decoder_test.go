package animimage_test

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deepteams/animimage"
	"github.com/deepteams/animimage/animation"
	"github.com/deepteams/animimage/errdefs"
	"github.com/deepteams/animimage/internal/fixture"
	"github.com/deepteams/animimage/mux"
	"github.com/deepteams/animimage/pixbuf"
)

var (
	red   = color.NRGBA{R: 255, A: 255}
	green = color.NRGBA{G: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 128}
)

func scenarioFrames() []fixture.Frame {
	return []fixture.Frame{
		{Image: fixture.Solid(8, 6, red), Duration: 100 * time.Millisecond},
		{Image: fixture.Solid(4, 2, blue), X: 2, Y: 4, Duration: 50 * time.Millisecond, Blend: mux.BlendOver},
		{Image: fixture.Solid(8, 6, green), Duration: 70 * time.Millisecond, Dispose: mux.DisposeBackground, Blend: mux.BlendOver},
	}
}

func scenarioWebP(t *testing.T) []byte {
	t.Helper()
	data, err := fixture.AnimatedWebP(8, 6, scenarioFrames(), fixture.WebPOptions{LoopCount: 2})
	require.NoError(t, err)
	return data
}

func scenarioAPNG(t *testing.T, opts fixture.APNGOptions) []byte {
	t.Helper()
	data, err := fixture.APNG(8, 6, scenarioFrames(), opts)
	require.NoError(t, err)
	return data
}

func quietOptions() *animimage.Options {
	return &animimage.Options{Logger: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))}
}

func blendFroms(ds []animation.Descriptor) []int {
	out := make([]int, len(ds))
	for i, d := range ds {
		out[i] = d.BlendFrom
	}
	return out
}

func bgraAt(b *pixbuf.Buffer, x, y int) [4]byte {
	i := b.PixOffset(x, y)
	return [4]byte{b.Pix[i], b.Pix[i+1], b.Pix[i+2], b.Pix[i+3]}
}

func TestOpenPlansFrames(t *testing.T) {
	d, err := animimage.Open(scenarioWebP(t), quietOptions())
	require.NoError(t, err)

	h := d.Header()
	require.Equal(t, mux.FormatWebP, h.Format)
	require.Equal(t, 8, h.CanvasWidth)
	require.Equal(t, 6, h.CanvasHeight)
	require.Equal(t, 2, h.LoopCount)
	require.Equal(t, 3, d.FrameCount())
	require.True(t, d.NeedsBlending())

	frames := d.Frames()
	require.Equal(t, []int{0, 0, 2}, blendFroms(frames))
	require.Equal(t, 50*time.Millisecond, frames[1].Duration)
	require.False(t, frames[1].IsFullSize)

	// The returned slice is a copy.
	frames[0].BlendFrom = 9
	require.Equal(t, 0, d.Frames()[0].BlendFrom)
}

func TestSessionIDsAreDistinct(t *testing.T) {
	data := scenarioWebP(t)
	a, err := animimage.Open(data, quietOptions())
	require.NoError(t, err)
	b, err := animimage.Open(data, quietOptions())
	require.NoError(t, err)
	require.NotEmpty(t, a.ID())
	require.NotEqual(t, a.ID(), b.ID())
}

func TestFramePixels(t *testing.T) {
	d, err := animimage.Open(scenarioWebP(t), quietOptions())
	require.NoError(t, err)

	f0, err := d.Frame(0)
	require.NoError(t, err)
	require.Equal(t, 0, f0.Index)
	require.False(t, f0.Partial)
	require.Equal(t, pixbuf.FormatBGRA, f0.Buffer.Format)
	require.Equal(t, 8, f0.Buffer.Width)
	require.Zero(t, f0.Buffer.Stride%pixbuf.RowAlign)
	require.Equal(t, [4]byte{0, 0, 255, 255}, bgraAt(f0.Buffer, 0, 0))

	f1, err := d.Frame(1)
	require.NoError(t, err)
	// Outside the sub-frame the red canvas shows through.
	require.Equal(t, [4]byte{0, 0, 255, 255}, bgraAt(f1.Buffer, 0, 0))
	// Inside it, half-transparent blue over red.
	px := bgraAt(f1.Buffer, 3, 5)
	require.NotZero(t, px[0])
	require.NotZero(t, px[2])
	require.Equal(t, byte(255), px[3])

	f2, err := d.Frame(2)
	require.NoError(t, err)
	require.Equal(t, [4]byte{0, 255, 0, 255}, bgraAt(f2.Buffer, 3, 5))
}

func TestRGBAFormat(t *testing.T) {
	opts := quietOptions()
	opts.PixelFormat = pixbuf.FormatRGBA
	d, err := animimage.Open(scenarioWebP(t), opts)
	require.NoError(t, err)
	f, err := d.Frame(0)
	require.NoError(t, err)
	require.Equal(t, pixbuf.FormatRGBA, f.Buffer.Format)
	require.Equal(t, [4]byte{255, 0, 0, 255}, bgraAt(f.Buffer, 1, 1))
}

func TestRandomAccessMatchesSequential(t *testing.T) {
	for name, data := range map[string][]byte{
		"webp": scenarioWebP(t),
		"apng": scenarioAPNG(t, fixture.APNGOptions{}),
	} {
		t.Run(name, func(t *testing.T) {
			want, err := animimage.DecodeAll(context.Background(), data, quietOptions())
			require.NoError(t, err)
			require.Len(t, want, 3)

			d, err := animimage.Open(data, quietOptions())
			require.NoError(t, err)
			for _, i := range []int{2, 1, 0, 1, 1, 2, 0} {
				got, err := d.Frame(i)
				require.NoError(t, err)
				require.Equal(t, want[i].Buffer.Pix, got.Buffer.Pix, "frame %d", i)
			}
		})
	}
}

func TestAPNGSession(t *testing.T) {
	d, err := animimage.Open(scenarioAPNG(t, fixture.APNGOptions{Plays: 4}), quietOptions())
	require.NoError(t, err)
	h := d.Header()
	require.Equal(t, mux.FormatPNG, h.Format)
	require.Equal(t, 4, h.LoopCount)
	// Every APNG frame carries the IHDR alpha channel, so the full-size Over
	// frame stays on frame 0's chain.
	require.Equal(t, []int{0, 0, 0}, blendFroms(d.Frames()))

	f, err := d.Frame(2)
	require.NoError(t, err)
	require.Equal(t, [4]byte{0, 255, 0, 255}, bgraAt(f.Buffer, 0, 0))
}

func TestOpenErrors(t *testing.T) {
	_, err := animimage.Open([]byte("GIF89a-not-supported-here"), quietOptions())
	require.True(t, errdefs.IsFormat(err))
	require.ErrorIs(t, err, errdefs.ErrUnsupportedFormat)

	_, err = animimage.Open([]byte("BM-neither-png-nor-webp"), quietOptions())
	require.ErrorIs(t, err, errdefs.ErrBadSignature)

	_, err = animimage.Open(scenarioAPNG(t, fixture.APNGOptions{DeclaredFrames: 5}), quietOptions())
	require.ErrorIs(t, err, errdefs.ErrFrameCountMismatch)

	opts := quietOptions()
	opts.MaxCanvasArea = 16
	_, err = animimage.Open(scenarioWebP(t), opts)
	require.True(t, errdefs.IsResource(err))
	require.ErrorIs(t, err, errdefs.ErrTooLarge)
}

func TestFrameOutOfRange(t *testing.T) {
	d, err := animimage.Open(scenarioWebP(t), quietOptions())
	require.NoError(t, err)
	_, err = d.Frame(3)
	require.ErrorIs(t, err, errdefs.ErrFrameOutOfRange)
	_, err = d.Frame(-1)
	require.ErrorIs(t, err, errdefs.ErrFrameOutOfRange)
}

func TestCanvasAndReset(t *testing.T) {
	d, err := animimage.Open(scenarioWebP(t), quietOptions())
	require.NoError(t, err)

	c, err := d.Canvas()
	require.NoError(t, err)
	require.Equal(t, [4]byte{}, bgraAt(c, 0, 0))

	_, err = d.Frame(0)
	require.NoError(t, err)
	c, err = d.Canvas()
	require.NoError(t, err)
	require.Equal(t, [4]byte{0, 0, 255, 255}, bgraAt(c, 0, 0))

	// The copy is detached from the session.
	c.Pix[0] = 7
	again, err := d.Canvas()
	require.NoError(t, err)
	require.Equal(t, byte(0), again.Pix[0])

	d.Reset()
	c, err = d.Canvas()
	require.NoError(t, err)
	require.Equal(t, [4]byte{}, bgraAt(c, 0, 0))
}

func TestPartialFrame(t *testing.T) {
	data := scenarioAPNG(t, fixture.APNGOptions{RowsLimit: 1})
	d, err := animimage.Open(data, quietOptions())
	require.NoError(t, err)
	f, err := d.Frame(1)
	require.NoError(t, err)
	require.True(t, f.Partial)
}

func TestUpdate(t *testing.T) {
	d, err := animimage.Open(scenarioWebP(t), quietOptions())
	require.NoError(t, err)

	err = d.Update([]byte("RIFF"))
	require.True(t, errdefs.IsFormat(err))
	require.Equal(t, mux.FormatWebP, d.Header().Format)
	require.Equal(t, 3, d.FrameCount())

	require.NoError(t, d.Update(scenarioAPNG(t, fixture.APNGOptions{})))
	require.Equal(t, mux.FormatPNG, d.Header().Format)
	f, err := d.Frame(0)
	require.NoError(t, err)
	require.Equal(t, [4]byte{0, 0, 255, 255}, bgraAt(f.Buffer, 0, 0))
}

func TestOpenReader(t *testing.T) {
	d, err := animimage.OpenReader(bytes.NewReader(scenarioWebP(t)), quietOptions())
	require.NoError(t, err)
	require.Equal(t, 3, d.FrameCount())
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	opts := &animimage.Options{Logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}
	d, err := animimage.Open(scenarioWebP(t), opts)
	require.NoError(t, err)
	_, err = d.Frame(1)
	require.NoError(t, err)
	_, err = d.Frame(7)
	require.Error(t, err)

	out := buf.String()
	require.Contains(t, out, "animimage: opened")
	require.Contains(t, out, "session="+d.ID())
	require.Contains(t, out, "format=webp")
	require.Contains(t, out, "animimage: planned")
	require.Contains(t, out, "animimage: replayed")
	require.Contains(t, out, "animimage: frame failed")
}

func TestDecodeAllCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := animimage.DecodeAll(ctx, scenarioWebP(t), quietOptions())
	require.ErrorIs(t, err, context.Canceled)
}

func TestDecodeBatch(t *testing.T) {
	inputs := [][]byte{
		scenarioWebP(t),
		[]byte("definitely not an image"),
		scenarioAPNG(t, fixture.APNGOptions{}),
		scenarioWebP(t),
	}
	results := animimage.DecodeBatch(context.Background(), inputs, quietOptions(), 2)
	require.Len(t, results, len(inputs))

	for i, r := range results {
		if i == 1 {
			require.Error(t, r.Err)
			require.True(t, errors.Is(r.Err, errdefs.ErrBadSignature), "%v", r.Err)
			continue
		}
		require.NoError(t, r.Err, "input %d", i)
		require.Len(t, r.Frames, 3)
	}
	require.Equal(t, results[0].Frames[1].Buffer.Pix, results[3].Frames[1].Buffer.Pix)
	require.True(t, strings.HasPrefix(results[1].Err.Error(), "format:"))
}

func TestDecodeBatchEmpty(t *testing.T) {
	require.Empty(t, animimage.DecodeBatch(context.Background(), nil, nil, 0))
}
