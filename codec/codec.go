// Package codec decodes one frame payload into premultiplied RGBA pixels,
// optionally placed onto a larger target at an offset.
//
// VP8 and VP8L bitstreams are wrapped back into a minimal WebP file and
// handed to golang.org/x/image/webp; PNG payloads go to image/png. Output
// rows are padded to pixbuf.RowAlign regardless of the source layout.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/webp"

	"github.com/deepteams/animimage/errdefs"
	"github.com/deepteams/animimage/internal/container"
	"github.com/deepteams/animimage/mux"
	"github.com/deepteams/animimage/pixbuf"
)

// Result is a decoded frame.
type Result struct {
	// Image is premultiplied, 32-byte row aligned, and sized to the target.
	Image *image.RGBA
	// Partial is set when the payload ended before all pixel data was
	// read. Image is then fully transparent: rows that did decode are
	// dropped too, since the underlying decoders return no image on a
	// short stream.
	Partial bool
}

// Decode decodes p onto a width x height target with the frame's top-left
// corner at offset. Pixels outside the frame are transparent. A zero offset
// with a target equal to the payload size returns the frame as decoded.
func Decode(p mux.Payload, width, height int, offset image.Point) (*Result, error) {
	if err := pixbuf.CheckArea(width, height, 0); err != nil {
		return nil, err
	}
	if err := pixbuf.CheckArea(p.Width, p.Height, 0); err != nil {
		return nil, err
	}

	src, err := decodeImage(p)
	if err != nil {
		if isPartial(err) {
			dst, aerr := pixbuf.NewRGBA(width, height)
			if aerr != nil {
				return nil, aerr
			}
			return &Result{Image: dst, Partial: true}, nil
		}
		return nil, classify(err)
	}
	if b := src.Bounds(); b.Dx() != p.Width || b.Dy() != p.Height {
		return nil, errdefs.Decode(errdefs.ErrCorrupt,
			fmt.Errorf("decoded %dx%d, payload declares %dx%d", b.Dx(), b.Dy(), p.Width, p.Height))
	}

	frame, err := premultiply(src)
	if err != nil {
		return nil, err
	}
	if offset == (image.Point{}) && width == p.Width && height == p.Height {
		return &Result{Image: frame}, nil
	}
	dst, err := Place(frame, width, height, offset)
	if err != nil {
		return nil, err
	}
	return &Result{Image: dst}, nil
}

// Place copies frame onto a new transparent width x height image with its
// origin at offset. It is a 1:1 affine translation.
func Place(frame image.Image, width, height int, offset image.Point) (*image.RGBA, error) {
	dst, err := pixbuf.NewRGBA(width, height)
	if err != nil {
		return nil, err
	}
	s2d := f64.Aff3{
		1, 0, float64(offset.X),
		0, 1, float64(offset.Y),
	}
	draw.NearestNeighbor.Transform(dst, s2d, frame, frame.Bounds(), draw.Src, nil)
	return dst, nil
}

// premultiply converts any decoded image to an aligned *image.RGBA.
func premultiply(src image.Image) (*image.RGBA, error) {
	b := src.Bounds()
	dst, err := pixbuf.NewRGBA(b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst, nil
}

func decodeImage(p mux.Payload) (image.Image, error) {
	switch p.Codec {
	case mux.CodecVP8L:
		return webp.Decode(bytes.NewReader(wrapSimple(container.FourCCVP8L, p.Data)))
	case mux.CodecVP8:
		if len(p.Alpha) > 0 {
			return webp.Decode(bytes.NewReader(wrapAlpha(p)))
		}
		return webp.Decode(bytes.NewReader(wrapSimple(container.FourCCVP8, p.Data)))
	case mux.CodecPNG:
		return png.Decode(bytes.NewReader(p.Data))
	default:
		return nil, errdefs.Decode(errdefs.ErrUnsupportedFeature, fmt.Errorf("codec %v", p.Codec))
	}
}

// wrapSimple builds "RIFF size WEBP" around a single bitstream chunk.
func wrapSimple(fourcc uint32, bitstream []byte) []byte {
	out := riffHeader(container.ChunkHeaderSize + int(container.PaddedSize(uint32(len(bitstream)))))
	return appendChunk(out, fourcc, bitstream)
}

// wrapAlpha builds an extended file: VP8X with the alpha flag, ALPH, VP8.
// The VP8X canvas must match the frame or the decoder rejects the ALPH plane.
func wrapAlpha(p mux.Payload) []byte {
	vp8x := make([]byte, container.VP8XChunkSize)
	vp8x[0] = container.VP8XAlphaFlag
	container.PutLE24(vp8x[4:7], p.Width-1)
	container.PutLE24(vp8x[7:10], p.Height-1)

	size := 3*container.ChunkHeaderSize + container.VP8XChunkSize +
		int(container.PaddedSize(uint32(len(p.Alpha)))) + int(container.PaddedSize(uint32(len(p.Data))))
	out := riffHeader(size)
	out = appendChunk(out, container.FourCCVP8X, vp8x)
	out = appendChunk(out, container.FourCCALPH, p.Alpha)
	return appendChunk(out, container.FourCCVP8, p.Data)
}

func riffHeader(bodySize int) []byte {
	out := make([]byte, container.RIFFHeaderSize, container.RIFFHeaderSize+bodySize)
	binary.LittleEndian.PutUint32(out[0:4], container.FourCCRIFF)
	binary.LittleEndian.PutUint32(out[4:8], uint32(4+bodySize))
	binary.LittleEndian.PutUint32(out[8:12], container.FourCCWEBP)
	return out
}

func appendChunk(dst []byte, fourcc uint32, payload []byte) []byte {
	var hdr [container.ChunkHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], fourcc)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(payload)))
	dst = append(dst, hdr[:]...)
	dst = append(dst, payload...)
	if len(payload)&1 != 0 {
		dst = append(dst, 0)
	}
	return dst
}

// isPartial reports the codec errors that mean "ran out of data".
func isPartial(err error) bool {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var fe png.FormatError
	return errors.As(err, &fe) && strings.Contains(string(fe), "not enough pixel data")
}

// classify maps a codec error onto the DecodeError kinds.
func classify(err error) error {
	if errdefs.IsDecode(err) {
		return err
	}
	var ue png.UnsupportedError
	if errors.As(err, &ue) || strings.Contains(err.Error(), "unsupported") {
		return errdefs.Decode(errdefs.ErrUnsupportedFeature, err)
	}
	return errdefs.Decode(errdefs.ErrCorrupt, err)
}
