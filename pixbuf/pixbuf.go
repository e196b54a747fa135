// Package pixbuf defines the pixel buffer handed out for every resolved
// frame: 4 bytes per pixel, premultiplied alpha, rows padded to a 32-byte
// boundary.
package pixbuf

import (
	"image"
	"image/color"

	"github.com/deepteams/animimage/errdefs"
)

// RowAlign is the byte boundary every row stride is rounded up to.
const RowAlign = 32

// DefaultMaxArea bounds width*height for any allocation made through this
// package when no explicit limit is given (1<<28 pixels, 1 GiB of pixels).
const DefaultMaxArea = 1 << 28

// Format tags the byte order of a pixel.
type Format int

const (
	// FormatBGRA stores B, G, R, A: a 32-bit ARGB word in little-endian
	// byte order. This is the default.
	FormatBGRA Format = iota
	// FormatRGBA stores R, G, B, A, the image.RGBA layout.
	FormatRGBA
)

func (f Format) String() string {
	switch f {
	case FormatBGRA:
		return "bgra"
	case FormatRGBA:
		return "rgba"
	default:
		return "unknown"
	}
}

// ParseFormat maps "bgra" or "rgba" to a Format.
func ParseFormat(s string) (Format, bool) {
	switch s {
	case "bgra", "argb", "":
		return FormatBGRA, true
	case "rgba":
		return FormatRGBA, true
	}
	return 0, false
}

// Buffer is a premultiplied 4-byte-per-pixel image. Pix holds Height rows of
// Stride bytes; only the first Width*4 bytes of each row are pixels.
type Buffer struct {
	Width, Height int
	Stride        int
	Format        Format
	Pix           []byte
}

// Stride returns the aligned row stride for width pixels.
func Stride(width int) int {
	return (width*4 + RowAlign - 1) &^ (RowAlign - 1)
}

// CheckArea rejects dimensions that are non-positive, overflow, or exceed
// maxArea pixels. A maxArea <= 0 selects DefaultMaxArea.
func CheckArea(width, height int, maxArea int64) error {
	if maxArea <= 0 {
		maxArea = DefaultMaxArea
	}
	if width <= 0 || height <= 0 {
		return errdefs.Resource(width, height)
	}
	if int64(width) > maxArea/int64(height) {
		return errdefs.Resource(width, height)
	}
	return nil
}

// New allocates a zeroed (fully transparent) buffer.
func New(width, height int, format Format) (*Buffer, error) {
	if err := CheckArea(width, height, 0); err != nil {
		return nil, err
	}
	stride := Stride(width)
	return &Buffer{
		Width:  width,
		Height: height,
		Stride: stride,
		Format: format,
		Pix:    make([]byte, stride*height),
	}, nil
}

// NewRGBA allocates a transparent *image.RGBA whose stride is aligned like a
// Buffer's, so it can be converted without re-packing rows.
func NewRGBA(width, height int) (*image.RGBA, error) {
	if err := CheckArea(width, height, 0); err != nil {
		return nil, err
	}
	stride := Stride(width)
	return &image.RGBA{
		Pix:    make([]byte, stride*height),
		Stride: stride,
		Rect:   image.Rect(0, 0, width, height),
	}, nil
}

// FromRGBA copies img into a new Buffer in the requested format. img must
// already hold premultiplied pixels, as *image.RGBA always does.
func FromRGBA(img *image.RGBA, format Format) (*Buffer, error) {
	r := img.Bounds()
	buf, err := New(r.Dx(), r.Dy(), format)
	if err != nil {
		return nil, err
	}
	n := buf.Width * 4
	for y := 0; y < buf.Height; y++ {
		src := img.Pix[img.PixOffset(r.Min.X, r.Min.Y+y):][:n]
		dst := buf.Pix[y*buf.Stride:][:n]
		if format == FormatRGBA {
			copy(dst, src)
			continue
		}
		for i := 0; i < n; i += 4 {
			dst[i+0] = src[i+2]
			dst[i+1] = src[i+1]
			dst[i+2] = src[i+0]
			dst[i+3] = src[i+3]
		}
	}
	return buf, nil
}

// PixOffset returns the index of the first byte of pixel (x, y).
func (b *Buffer) PixOffset(x, y int) int {
	return y*b.Stride + x*4
}

// RGBAAt returns the premultiplied pixel at (x, y) regardless of Format.
func (b *Buffer) RGBAAt(x, y int) color.RGBA {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return color.RGBA{}
	}
	p := b.Pix[b.PixOffset(x, y):][:4]
	if b.Format == FormatRGBA {
		return color.RGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
	}
	return color.RGBA{R: p[2], G: p[1], B: p[0], A: p[3]}
}

// ColorModel implements image.Image.
func (b *Buffer) ColorModel() color.Model { return color.RGBAModel }

// Bounds implements image.Image.
func (b *Buffer) Bounds() image.Rectangle { return image.Rect(0, 0, b.Width, b.Height) }

// At implements image.Image.
func (b *Buffer) At(x, y int) color.Color { return b.RGBAAt(x, y) }

// ToRGBA returns a tightly packed *image.RGBA copy of the buffer.
func (b *Buffer) ToRGBA() *image.RGBA {
	img := image.NewRGBA(b.Bounds())
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			img.SetRGBA(x, y, b.RGBAAt(x, y))
		}
	}
	return img
}

// Clone returns a deep copy of b.
func (b *Buffer) Clone() *Buffer {
	c := *b
	c.Pix = append([]byte(nil), b.Pix...)
	return &c
}
