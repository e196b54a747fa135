package mux

import (
	"github.com/deepteams/animimage/errdefs"
	"github.com/deepteams/animimage/internal/container"
)

// pngColorPalette is the IHDR color type of indexed-color images.
const pngColorPalette = 3

// apngState tracks the frame being assembled while walking an APNG stream.
type apngState struct {
	o        Options
	seq      uint32 // next expected sequence number
	sawIDAT  bool
	sawFdAT  bool
	hasACTL  bool
	sawPLTE  bool
	cur      *entry
	curFirst bool // cur is the frame whose data lives in IDAT
}

// parseAPNG indexes a PNG or APNG stream. A PNG without acTL is a single
// full-canvas frame. IDAT data that precedes the first fcTL is the default
// image and is not part of the animation.
func (d *Demuxer) parseAPNG(data []byte, o Options) error {
	chunks, err := container.ReadPNGChunks(data, container.ChunkOptions{
		VerifyCRC:   o.VerifyChecksums,
		RequireIEND: o.Strict,
	})
	if err != nil {
		return err
	}
	if chunks[0].Type != container.FourCCIHDR {
		return errdefs.Format(errdefs.ErrInvalidHeader, chunks[0].Offset,
			"first chunk is %q, want IHDR", container.FourCCString(chunks[0].Type))
	}
	ihdr, err := container.ParseIHDR(chunks[0].Data(data))
	if err != nil {
		return atOffset(err, chunks[0].Offset)
	}
	d.ihdr = ihdr
	d.header.Format = FormatPNG
	d.header.CanvasWidth = int(ihdr.Width)
	d.header.CanvasHeight = int(ihdr.Height)
	d.header.HasAlpha = ihdr.HasAlphaChannel()
	d.origin = originTopLeft

	var (
		st      = apngState{o: o}
		actl    container.ACTL
		still   entry
		stillOK bool
	)
	for _, c := range chunks[1:] {
		body := c.Data(data)
		switch c.Type {
		case container.FourCCacTL:
			if st.hasACTL || st.sawIDAT {
				if o.Strict {
					return errdefs.Format(errdefs.ErrInvalidChunk, c.Offset, "misplaced acTL")
				}
				continue
			}
			if actl, err = container.ParseACTL(body); err != nil {
				return atOffset(err, c.Offset)
			}
			st.hasACTL = true

		case container.FourCCfcTL:
			fc, err := container.ParseFCTL(body)
			if err != nil {
				return atOffset(err, c.Offset)
			}
			if err := st.checkSequence(fc.Sequence, c.Offset); err != nil {
				return err
			}
			if err := d.closeFrame(&st, c.Offset); err != nil {
				return err
			}
			e, err := d.frameFromFCTL(fc, c.Offset)
			if err != nil {
				return err
			}
			if len(d.entries) >= o.MaxFrames {
				return errdefs.Format(errdefs.ErrTooLarge, c.Offset, "more than %d frames", o.MaxFrames)
			}
			st.cur = &e
			st.curFirst = !st.sawIDAT

		case container.FourCCIDAT:
			// Every IDAT belongs to the default image, which is the whole
			// picture when there is no acTL.
			still.parts = append(still.parts, body)
			stillOK = true
			if st.cur != nil {
				if st.curFirst {
					st.cur.parts = append(st.cur.parts, body)
				} else if o.Strict {
					return errdefs.Format(errdefs.ErrInvalidChunk, c.Offset, "IDAT after fdAT frames")
				}
			}
			st.sawIDAT = true

		case container.FourCCfdAT:
			if len(body) < container.FDATSequenceSize {
				return errdefs.Format(errdefs.ErrInvalidChunk, c.Offset, "fdAT size %d", len(body))
			}
			if err := st.checkSequence(container.ReadBE32(body[0:4]), c.Offset); err != nil {
				return err
			}
			if st.cur == nil || st.curFirst {
				return errdefs.Format(errdefs.ErrInvalidChunk, c.Offset, "fdAT without a frame control chunk")
			}
			st.cur.parts = append(st.cur.parts, body[container.FDATSequenceSize:])
			st.sawFdAT = true

		case container.FourCCIEND:

		case container.FourCCPLTE:
			st.sawPLTE = true
			if !st.sawIDAT && !st.sawFdAT {
				d.shared = append(d.shared, data[c.Offset:c.End()])
			}

		default:
			if c.Type == container.FourCCtRNS {
				d.header.HasAlpha = true
			}
			// Ancillary chunks ahead of the image data describe every frame.
			if !st.sawIDAT && !st.sawFdAT {
				d.shared = append(d.shared, data[c.Offset:c.End()])
			}
		}
	}
	if err := d.closeFrame(&st, -1); err != nil {
		return err
	}
	if o.Strict && ihdr.ColorType == pngColorPalette && !st.sawPLTE {
		return errdefs.Format(errdefs.ErrInvalidChunk, -1, "indexed-color PNG without PLTE")
	}

	if !st.hasACTL {
		// Plain PNG: fcTL chunks, if any, are ignored and the image is the frame.
		if !stillOK {
			d.entries = nil
			return errdefs.Format(errdefs.ErrInvalidChunk, -1, "PNG without IDAT")
		}
		still.width, still.height = d.header.CanvasWidth, d.header.CanvasHeight
		still.codec = CodecPNG
		still.hasAlpha = d.header.HasAlpha
		still.blend = BlendNone
		d.entries = []entry{still}
		d.header.FrameCount = 1
		return nil
	}

	d.header.FrameCount = int(actl.NumFrames)
	d.header.LoopCount = int(actl.NumPlays)
	for i := range d.entries {
		d.entries[i].hasAlpha = d.header.HasAlpha
	}
	// Nothing precedes the first frame, so restoring it means clearing.
	if len(d.entries) > 0 && d.entries[0].dispose == DisposePrevious {
		d.entries[0].dispose = DisposeBackground
	}
	return nil
}

// checkSequence validates fcTL/fdAT sequence numbers in strict mode.
func (st *apngState) checkSequence(seq uint32, off int) error {
	if st.o.Strict && seq != st.seq {
		return errdefs.Format(errdefs.ErrInvalidChunk, off, "sequence number %d, want %d", seq, st.seq)
	}
	st.seq = seq + 1
	return nil
}

// closeFrame appends the frame under construction, if any.
func (d *Demuxer) closeFrame(st *apngState, off int) error {
	if st.cur == nil {
		return nil
	}
	if len(st.cur.parts) == 0 {
		return errdefs.Format(errdefs.ErrInvalidChunk, off, "frame %d has no image data", len(d.entries)+1)
	}
	d.entries = append(d.entries, *st.cur)
	st.cur = nil
	return nil
}

func (d *Demuxer) frameFromFCTL(fc container.FCTL, off int) (entry, error) {
	cw, ch := uint64(d.header.CanvasWidth), uint64(d.header.CanvasHeight)
	if fc.Width == 0 || fc.Height == 0 ||
		uint64(fc.XOffset)+uint64(fc.Width) > cw || uint64(fc.YOffset)+uint64(fc.Height) > ch {
		return entry{}, errdefs.Format(errdefs.ErrInvalidChunk, off,
			"frame %dx%d+%d+%d outside %dx%d canvas", fc.Width, fc.Height, fc.XOffset, fc.YOffset, cw, ch)
	}
	if fc.DisposeOp > 2 {
		return entry{}, errdefs.Format(errdefs.ErrInvalidChunk, off, "dispose_op %d", fc.DisposeOp)
	}
	if fc.BlendOp > 1 {
		return entry{}, errdefs.Format(errdefs.ErrInvalidChunk, off, "blend_op %d", fc.BlendOp)
	}
	e := entry{
		width:    int(fc.Width),
		height:   int(fc.Height),
		x:        int(fc.XOffset),
		y:        int(fc.YOffset),
		duration: fc.Delay(),
		dispose:  Dispose(fc.DisposeOp),
		codec:    CodecPNG,
	}
	// APNG_BLEND_OP_SOURCE = 0, APNG_BLEND_OP_OVER = 1.
	if fc.BlendOp == 1 {
		e.blend = BlendOver
	}
	return e, nil
}

// buildPNG rebuilds a standalone PNG for one frame: the canvas IHDR resized
// to the frame, the shared ancillary chunks, the frame data as IDAT chunks,
// and IEND.
func (d *Demuxer) buildPNG(e *entry) []byte {
	size := container.PNGSignatureSize + container.PNGChunkOverhead*(2+len(e.parts)) + container.IHDRSize
	for _, s := range d.shared {
		size += len(s)
	}
	for _, p := range e.parts {
		size += len(p)
	}

	out := make([]byte, 0, size)
	out = append(out, container.PNGSignature...)
	hdr := d.ihdr
	hdr.Width, hdr.Height = uint32(e.width), uint32(e.height)
	out = container.AppendPNGChunk(out, container.FourCCIHDR, hdr.Bytes())
	for _, s := range d.shared {
		out = append(out, s...)
	}
	for _, p := range e.parts {
		out = container.AppendPNGChunk(out, container.FourCCIDAT, p)
	}
	return container.AppendPNGChunk(out, container.FourCCIEND, nil)
}
