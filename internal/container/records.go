package container

import (
	"time"

	"github.com/deepteams/animimage/errdefs"
)

// IHDR is the 13-byte PNG image header.
type IHDR struct {
	Width, Height     uint32
	BitDepth          uint8
	ColorType         uint8
	CompressionMethod uint8
	FilterMethod      uint8
	InterlaceMethod   uint8
}

// HasAlphaChannel reports whether the color type carries an alpha channel
// (gray+alpha or RGBA).
func (h IHDR) HasAlphaChannel() bool { return h.ColorType&4 != 0 }

// ParseIHDR decodes an IHDR payload.
func ParseIHDR(b []byte) (IHDR, error) {
	if len(b) != IHDRSize {
		return IHDR{}, errdefs.Format(errdefs.ErrInvalidChunk, -1, "IHDR length %d", len(b))
	}
	h := IHDR{
		Width:             ReadBE32(b[0:4]),
		Height:            ReadBE32(b[4:8]),
		BitDepth:          b[8],
		ColorType:         b[9],
		CompressionMethod: b[10],
		FilterMethod:      b[11],
		InterlaceMethod:   b[12],
	}
	if h.Width == 0 || h.Height == 0 || h.Width > 1<<31-1 || h.Height > 1<<31-1 {
		return IHDR{}, errdefs.Format(errdefs.ErrInvalidHeader, -1, "IHDR dimensions %dx%d", h.Width, h.Height)
	}
	return h, nil
}

// Bytes encodes h as a 13-byte IHDR payload.
func (h IHDR) Bytes() []byte {
	b := make([]byte, IHDRSize)
	putBE32(b[0:4], h.Width)
	putBE32(b[4:8], h.Height)
	b[8], b[9], b[10], b[11], b[12] = h.BitDepth, h.ColorType, h.CompressionMethod, h.FilterMethod, h.InterlaceMethod
	return b
}

// ACTL is the APNG animation control record.
type ACTL struct {
	NumFrames uint32
	NumPlays  uint32 // 0 = loop forever
}

// ParseACTL decodes an acTL payload.
func ParseACTL(b []byte) (ACTL, error) {
	if len(b) != ACTLSize {
		return ACTL{}, errdefs.Format(errdefs.ErrInvalidChunk, -1, "acTL length %d", len(b))
	}
	return ACTL{NumFrames: ReadBE32(b[0:4]), NumPlays: ReadBE32(b[4:8])}, nil
}

// FCTL is the 26-byte APNG frame control record.
type FCTL struct {
	Sequence         uint32
	Width, Height    uint32
	XOffset, YOffset uint32
	DelayNum         uint16
	DelayDen         uint16
	DisposeOp        uint8
	BlendOp          uint8
}

// ParseFCTL decodes an fcTL payload. Range checks against the canvas are
// left to the demuxer.
func ParseFCTL(b []byte) (FCTL, error) {
	if len(b) != FCTLSize {
		return FCTL{}, errdefs.Format(errdefs.ErrInvalidChunk, -1, "fcTL length %d", len(b))
	}
	return FCTL{
		Sequence:  ReadBE32(b[0:4]),
		Width:     ReadBE32(b[4:8]),
		Height:    ReadBE32(b[8:12]),
		XOffset:   ReadBE32(b[12:16]),
		YOffset:   ReadBE32(b[16:20]),
		DelayNum:  ReadBE16(b[20:22]),
		DelayDen:  ReadBE16(b[22:24]),
		DisposeOp: b[24],
		BlendOp:   b[25],
	}, nil
}

// Delay returns the frame duration. A zero denominator means 1/100 s.
func (f FCTL) Delay() time.Duration {
	den := int64(f.DelayDen)
	if den == 0 {
		den = DefaultDelayDenom
	}
	return time.Duration(int64(f.DelayNum) * int64(time.Second) / den)
}

func putBE32(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v>>24), byte(v>>16), byte(v>>8), byte(v)
}
