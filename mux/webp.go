package mux

import (
	"time"

	"github.com/deepteams/animimage/errdefs"
	"github.com/deepteams/animimage/internal/container"
)

// parseWebP indexes a simple (VP8/VP8L) or extended (VP8X) WebP file.
func (d *Demuxer) parseWebP(data []byte, o Options) error {
	bodyLen, err := container.ReadRIFFHeader(data)
	if err != nil {
		return err
	}
	const base = container.RIFFHeaderSize
	body := data[base : base+bodyLen]
	chunks, err := container.WalkRIFFChunks(body, base)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return errdefs.Format(errdefs.ErrTruncated, base, "no chunks after RIFF header")
	}

	d.header.Format = FormatWebP
	d.origin = originTopLeft

	switch first := chunks[0]; first.FourCC {
	case container.FourCCVP8X:
		return d.parseExtended(body, chunks, o)
	case container.FourCCVP8, container.FourCCVP8L:
		e, err := imageEntry(body, chunks, base)
		if err != nil {
			return err
		}
		d.header.CanvasWidth, d.header.CanvasHeight = e.width, e.height
		d.header.FrameCount = 1
		d.header.HasAlpha = e.hasAlpha
		d.entries = []entry{e}
		return nil
	default:
		return errdefs.Format(errdefs.ErrInvalidChunk, base+first.Offset,
			"unexpected first chunk %q", container.FourCCString(first.FourCC))
	}
}

func (d *Demuxer) parseExtended(body []byte, chunks []container.RIFFChunk, o Options) error {
	const base = container.RIFFHeaderSize
	vp8x := chunks[0].Data(body)
	if len(vp8x) < container.VP8XChunkSize {
		return errdefs.Format(errdefs.ErrInvalidChunk, base, "VP8X size %d", len(vp8x))
	}
	flags := vp8x[0]
	cw := container.ReadLE24(vp8x[4:7]) + 1
	ch := container.ReadLE24(vp8x[7:10]) + 1
	if uint64(cw)*uint64(ch) > container.MaxImageArea {
		return errdefs.Format(errdefs.ErrInvalidHeader, base, "canvas %dx%d", cw, ch)
	}
	d.header.CanvasWidth, d.header.CanvasHeight = cw, ch
	d.header.HasAlpha = flags&container.VP8XAlphaFlag != 0

	if flags&container.VP8XAnimationFlag == 0 {
		// Still image: the first bitstream chunk is the only frame.
		for i, c := range chunks[1:] {
			if c.FourCC != container.FourCCVP8 && c.FourCC != container.FourCCVP8L && c.FourCC != container.FourCCALPH {
				continue
			}
			e, err := imageEntry(body, chunks[1+i:], base)
			if err != nil {
				return err
			}
			if e.width != cw || e.height != ch {
				return errdefs.Format(errdefs.ErrInvalidChunk, base+c.Offset,
					"bitstream %dx%d on %dx%d canvas", e.width, e.height, cw, ch)
			}
			d.header.HasAlpha = d.header.HasAlpha || e.hasAlpha
			d.header.FrameCount = 1
			d.entries = []entry{e}
			return nil
		}
		return errdefs.Format(errdefs.ErrEmptyAnimation, -1, "VP8X file without image data")
	}

	sawANIM := false
	for _, c := range chunks[1:] {
		off := base + c.Offset
		switch c.FourCC {
		case container.FourCCANIM:
			anim := c.Data(body)
			if len(anim) < container.ANIMChunkSize {
				return errdefs.Format(errdefs.ErrInvalidChunk, off, "ANIM size %d", len(anim))
			}
			d.header.BackgroundColor = container.ReadLE32(anim[0:4])
			d.header.LoopCount = int(anim[4]) | int(anim[5])<<8
			sawANIM = true
		case container.FourCCANMF:
			if len(d.entries) >= o.MaxFrames {
				return errdefs.Format(errdefs.ErrTooLarge, off, "more than %d frames", o.MaxFrames)
			}
			e, err := parseANMF(c.Data(body), off+container.ChunkHeaderSize)
			if err != nil {
				return err
			}
			if !fits(e.x, e.y, e.width, e.height, cw, ch) {
				return errdefs.Format(errdefs.ErrInvalidChunk, off,
					"frame %dx%d+%d+%d outside %dx%d canvas", e.width, e.height, e.x, e.y, cw, ch)
			}
			d.entries = append(d.entries, e)
		}
	}
	if !sawANIM && o.Strict {
		return errdefs.Format(errdefs.ErrInvalidChunk, -1, "animated file without ANIM chunk")
	}
	d.header.FrameCount = len(d.entries)
	for _, e := range d.entries {
		d.header.HasAlpha = d.header.HasAlpha || e.hasAlpha
	}
	return nil
}

// parseANMF decodes an ANMF payload. off is the payload's absolute offset.
func parseANMF(p []byte, off int) (entry, error) {
	if len(p) < container.ANMFChunkSize {
		return entry{}, errdefs.Format(errdefs.ErrInvalidChunk, off, "ANMF size %d", len(p))
	}
	flags := p[15]
	sub, err := container.WalkRIFFChunks(p[container.ANMFChunkSize:], off+container.ANMFChunkSize)
	if err != nil {
		return entry{}, err
	}
	e, err := imageEntry(p[container.ANMFChunkSize:], sub, off+container.ANMFChunkSize)
	if err != nil {
		return entry{}, err
	}
	w := container.ReadLE24(p[6:9]) + 1
	h := container.ReadLE24(p[9:12]) + 1
	if e.width != w || e.height != h {
		return entry{}, errdefs.Format(errdefs.ErrInvalidChunk, off,
			"ANMF declares %dx%d, bitstream is %dx%d", w, h, e.width, e.height)
	}
	e.x = container.ReadLE24(p[0:3]) * 2
	e.y = container.ReadLE24(p[3:6]) * 2
	e.duration = time.Duration(container.ReadLE24(p[12:15])) * time.Millisecond
	e.dispose = DisposeNone
	if flags&container.ANMFDisposeBackground != 0 {
		e.dispose = DisposeBackground
	}
	e.blend = BlendOver
	if flags&container.ANMFNoBlend != 0 {
		e.blend = BlendNone
	}
	return e, nil
}

// imageEntry reads an optional ALPH chunk followed by a VP8 or VP8L chunk
// from the start of chunks. Geometry is taken from the bitstream header;
// the caller fills in placement and timing.
func imageEntry(buf []byte, chunks []container.RIFFChunk, base int) (entry, error) {
	var e entry
	for _, c := range chunks {
		switch c.FourCC {
		case container.FourCCALPH:
			if e.alpha == nil {
				e.alpha = c.Data(buf)
			}
			continue
		case container.FourCCVP8:
			w, h, err := container.VP8Dimensions(c.Data(buf))
			if err != nil {
				return entry{}, atOffset(err, base+c.Offset)
			}
			e.codec, e.data, e.width, e.height = CodecVP8, c.Data(buf), w, h
			e.hasAlpha = len(e.alpha) > 0
		case container.FourCCVP8L:
			w, h, alpha, err := container.VP8LDimensions(c.Data(buf))
			if err != nil {
				return entry{}, atOffset(err, base+c.Offset)
			}
			// ALPH is meaningless next to a lossless bitstream.
			e.codec, e.data, e.alpha, e.width, e.height = CodecVP8L, c.Data(buf), nil, w, h
			e.hasAlpha = alpha
		default:
			continue
		}
		return e, nil
	}
	return entry{}, errdefs.Format(errdefs.ErrInvalidChunk, base, "no VP8 or VP8L bitstream")
}

// atOffset fills in the offset of a FormatError raised without one.
func atOffset(err error, off int) error {
	if fe, ok := err.(*errdefs.FormatError); ok && fe.Offset < 0 {
		c := *fe
		c.Offset = off
		return &c
	}
	return err
}
