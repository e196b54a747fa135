// Package fixture assembles small animated WebP and APNG files in memory for
// tests. It is not an encoder: output is only as valid as the tests need and
// callers can corrupt it on purpose through the Options hooks.
package fixture

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	"github.com/HugoSmits86/nativewebp"

	"github.com/deepteams/animimage/internal/container"
	"github.com/deepteams/animimage/mux"
)

// Frame is one animation frame. Image bounds give the frame size; X and Y
// place it on the canvas (WebP requires even offsets).
type Frame struct {
	Image    image.Image
	X, Y     int
	Duration time.Duration
	Dispose  mux.Dispose
	Blend    mux.Blend
}

// Solid returns a w x h image filled with c.
func Solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

// Gradient returns a w x h image whose pixels differ, with alpha a.
func Gradient(w, h int, a uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 255 / max(w-1, 1)), G: uint8(y * 255 / max(h-1, 1)), B: 0x40, A: a})
		}
	}
	return img
}

// VP8L encodes img losslessly and returns the bare VP8L bitstream.
func VP8L(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := nativewebp.Encode(&buf, img, nil); err != nil {
		return nil, fmt.Errorf("fixture: encode: %w", err)
	}
	data := buf.Bytes()
	body, err := container.ReadRIFFHeader(data)
	if err != nil {
		return nil, err
	}
	chunks, err := container.WalkRIFFChunks(data[container.RIFFHeaderSize:container.RIFFHeaderSize+body], container.RIFFHeaderSize)
	if err != nil {
		return nil, err
	}
	for _, c := range chunks {
		if c.FourCC == container.FourCCVP8L {
			return append([]byte(nil), c.Data(data[container.RIFFHeaderSize:])...), nil
		}
	}
	return nil, fmt.Errorf("fixture: encoder produced no VP8L chunk")
}

// StillWebP returns a simple (non-VP8X) lossless WebP file.
func StillWebP(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := nativewebp.Encode(&buf, img, nil); err != nil {
		return nil, fmt.Errorf("fixture: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// riffChunk appends a RIFF chunk with its pad byte.
func riffChunk(dst []byte, id uint32, payload []byte) []byte {
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], id)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(payload)))
	dst = append(dst, hdr[:]...)
	dst = append(dst, payload...)
	if len(payload)&1 != 0 {
		dst = append(dst, 0)
	}
	return dst
}

// WebPOptions tweaks the animated WebP layout.
type WebPOptions struct {
	LoopCount  int
	Background uint32
	NoANIM     bool
}

// AnimatedWebP builds a VP8X file with one ANMF chunk per frame. Every
// frame is VP8L; frames with any translucent pixel get the alpha hint set.
func AnimatedWebP(canvasW, canvasH int, frames []Frame, opts WebPOptions) ([]byte, error) {
	var body []byte

	vp8x := make([]byte, container.VP8XChunkSize)
	vp8x[0] = container.VP8XAnimationFlag | container.VP8XAlphaFlag
	container.PutLE24(vp8x[4:7], canvasW-1)
	container.PutLE24(vp8x[7:10], canvasH-1)
	body = riffChunk(body, container.FourCCVP8X, vp8x)

	if !opts.NoANIM {
		anim := make([]byte, container.ANIMChunkSize)
		binary.LittleEndian.PutUint32(anim[0:4], opts.Background)
		binary.LittleEndian.PutUint16(anim[4:6], uint16(opts.LoopCount))
		body = riffChunk(body, container.FourCCANIM, anim)
	}

	for i, f := range frames {
		if f.X%2 != 0 || f.Y%2 != 0 {
			return nil, fmt.Errorf("fixture: frame %d offset %d,%d is odd", i, f.X, f.Y)
		}
		bs, err := VP8L(f.Image)
		if err != nil {
			return nil, err
		}
		if !opaque(f.Image) {
			bits := binary.LittleEndian.Uint32(bs[1:5])
			binary.LittleEndian.PutUint32(bs[1:5], bits|1<<28)
		}
		r := f.Image.Bounds()
		hdr := make([]byte, container.ANMFChunkSize)
		container.PutLE24(hdr[0:3], f.X/2)
		container.PutLE24(hdr[3:6], f.Y/2)
		container.PutLE24(hdr[6:9], r.Dx()-1)
		container.PutLE24(hdr[9:12], r.Dy()-1)
		container.PutLE24(hdr[12:15], int(f.Duration/time.Millisecond))
		if f.Dispose == mux.DisposeBackground {
			hdr[15] |= container.ANMFDisposeBackground
		}
		if f.Blend == mux.BlendNone {
			hdr[15] |= container.ANMFNoBlend
		}
		body = riffChunk(body, container.FourCCANMF, riffChunk(hdr, container.FourCCVP8L, bs))
	}
	return wrapRIFF(body), nil
}

func wrapRIFF(body []byte) []byte {
	out := make([]byte, container.RIFFHeaderSize, container.RIFFHeaderSize+len(body))
	binary.LittleEndian.PutUint32(out[0:4], container.FourCCRIFF)
	binary.LittleEndian.PutUint32(out[4:8], uint32(4+len(body)))
	binary.LittleEndian.PutUint32(out[8:12], container.FourCCWEBP)
	return append(out, body...)
}

func opaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}
