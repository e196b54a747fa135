package fixture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/klauspost/compress/zlib"

	"github.com/deepteams/animimage/internal/container"
	"github.com/deepteams/animimage/mux"
)

// APNGOptions tweaks the APNG layout.
type APNGOptions struct {
	Plays int
	// RGB writes color type 2 (no alpha channel) instead of 6.
	RGB bool
	// TRNS adds a tRNS chunk, which marks an RGB stream as having alpha.
	TRNS bool
	// Default, when set, is written as IDAT before the first fcTL and is not
	// part of the animation. Otherwise frame 0's data is the IDAT.
	Default image.Image
	// NoACTL writes a plain PNG from frame 0 only.
	NoACTL bool
	// DeclaredFrames overrides the acTL frame count when non-zero.
	DeclaredFrames int
	// SequenceSkip adds this amount to every sequence number after the first.
	SequenceSkip uint32
	// RowsLimit, when non-zero, compresses only that many rows of each frame.
	RowsLimit int
	// RawDispose overrides the dispose_op byte of the given frame indexes.
	RawDispose map[int]uint8
}

// APNG builds an APNG stream for frames on a canvasW x canvasH canvas.
func APNG(canvasW, canvasH int, frames []Frame, opts APNGOptions) ([]byte, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("fixture: no frames")
	}
	colorType := uint8(6)
	if opts.RGB {
		colorType = 2
	}
	out := []byte(container.PNGSignature)
	ihdr := container.IHDR{Width: uint32(canvasW), Height: uint32(canvasH), BitDepth: 8, ColorType: colorType}
	out = container.AppendPNGChunk(out, container.FourCCIHDR, ihdr.Bytes())

	if !opts.NoACTL {
		n := len(frames)
		if opts.DeclaredFrames != 0 {
			n = opts.DeclaredFrames
		}
		actl := make([]byte, container.ACTLSize)
		putBE32(actl[0:4], uint32(n))
		putBE32(actl[4:8], uint32(opts.Plays))
		out = container.AppendPNGChunk(out, container.FourCCacTL, actl)
	}
	if opts.TRNS {
		out = container.AppendPNGChunk(out, container.FourCCtRNS, []byte{0, 0, 0, 0, 0, 0})
	}

	var seq uint32
	nextSeq := func() uint32 {
		s := seq
		seq += 1 + opts.SequenceSkip
		return s
	}

	if opts.Default != nil {
		z, err := compress(opts.Default, colorType, 0)
		if err != nil {
			return nil, err
		}
		out = container.AppendPNGChunk(out, container.FourCCIDAT, z)
	}
	for i, f := range frames {
		z, err := compress(f.Image, colorType, opts.RowsLimit)
		if err != nil {
			return nil, err
		}
		if opts.NoACTL {
			out = container.AppendPNGChunk(out, container.FourCCIDAT, z)
			break
		}
		out = container.AppendPNGChunk(out, container.FourCCfcTL, fctl(nextSeq(), f, opts.RawDispose, i))
		if i == 0 && opts.Default == nil {
			out = container.AppendPNGChunk(out, container.FourCCIDAT, z)
			continue
		}
		fd := make([]byte, 4, 4+len(z))
		putBE32(fd, nextSeq())
		out = container.AppendPNGChunk(out, container.FourCCfdAT, append(fd, z...))
	}
	return container.AppendPNGChunk(out, container.FourCCIEND, nil), nil
}

func fctl(seq uint32, f Frame, raw map[int]uint8, i int) []byte {
	r := f.Image.Bounds()
	b := make([]byte, container.FCTLSize)
	putBE32(b[0:4], seq)
	putBE32(b[4:8], uint32(r.Dx()))
	putBE32(b[8:12], uint32(r.Dy()))
	putBE32(b[12:16], uint32(f.X))
	putBE32(b[16:20], uint32(f.Y))
	ms := uint16(f.Duration / time.Millisecond)
	b[20], b[21] = byte(ms>>8), byte(ms)
	b[22], b[23] = byte(1000>>8), byte(1000&0xff)
	b[24] = uint8(f.Dispose)
	if v, ok := raw[i]; ok {
		b[24] = v
	}
	if f.Blend == mux.BlendOver {
		b[25] = 1
	}
	return b
}

// compress returns the zlib stream of img's filter-0 scanlines. rows > 0
// truncates the image data to that many rows.
func compress(img image.Image, colorType uint8, rows int) ([]byte, error) {
	r := img.Bounds()
	bpp := 4
	if colorType == 2 {
		bpp = 3
	}
	h := r.Dy()
	if rows > 0 && rows < h {
		h = rows
	}
	raw := make([]byte, 0, h*(1+r.Dx()*bpp))
	for y := r.Min.Y; y < r.Min.Y+h; y++ {
		raw = append(raw, 0)
		for x := r.Min.X; x < r.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			raw = append(raw, c.R, c.G, c.B)
			if bpp == 4 {
				raw = append(raw, c.A)
			}
		}
	}
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("fixture: deflate: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("fixture: deflate: %w", err)
	}
	return buf.Bytes(), nil
}

func putBE32(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v>>24), byte(v>>16), byte(v>>8), byte(v)
}
