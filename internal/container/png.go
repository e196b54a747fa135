package container

import (
	"hash/crc32"

	"github.com/deepteams/animimage/errdefs"
)

// PNGChunk is one record of a PNG chunk stream. Offset is the position of
// the chunk's length field in the source buffer. Payload bytes are not copied.
type PNGChunk struct {
	Type   uint32
	Offset int
	Length uint32
	CRC    uint32
}

// Data returns the chunk payload as a sub-slice of buf.
func (c PNGChunk) Data(buf []byte) []byte {
	start := c.Offset + ChunkHeaderSize
	return buf[start : start+int(c.Length)]
}

// End returns the offset just past the chunk's CRC.
func (c PNGChunk) End() int {
	return c.Offset + PNGChunkOverhead + int(c.Length)
}

// ChunkOptions controls ReadPNGChunks.
type ChunkOptions struct {
	// VerifyCRC checks every chunk's CRC-32 over type and payload.
	VerifyCRC bool
	// RequireIEND rejects a stream that ends without an IEND chunk.
	RequireIEND bool
}

// HasPNGSignature reports whether data starts with the 8-byte PNG signature.
func HasPNGSignature(data []byte) bool {
	if len(data) < PNGSignatureSize {
		return false
	}
	return ReadLE32(data[0:4]) == pngMagic0 && ReadLE32(data[4:8]) == pngMagic1
}

// ReadPNGChunks validates the PNG signature and splits data into chunk
// records. Reading stops after IEND; bytes after it are ignored.
func ReadPNGChunks(data []byte, opts ChunkOptions) ([]PNGChunk, error) {
	if len(data) < PNGMinFileSize {
		return nil, errdefs.Format(errdefs.ErrTruncated, 0, "%d bytes is too short for a PNG stream", len(data))
	}
	if !HasPNGSignature(data) {
		return nil, errdefs.Format(errdefs.ErrBadSignature, 0, "missing PNG signature")
	}

	var chunks []PNGChunk
	pos := PNGSignatureSize
	for pos < len(data) {
		if len(data)-pos < PNGChunkOverhead {
			return nil, errdefs.Format(errdefs.ErrTruncated, pos, "partial chunk header")
		}
		length := ReadBE32(data[pos : pos+4])
		typ := ReadLE32(data[pos+4 : pos+8])
		if uint64(length) > uint64(len(data)-pos-PNGChunkOverhead) {
			return nil, errdefs.Format(errdefs.ErrTruncated, pos,
				"chunk %q declares %d bytes, %d remain", FourCCString(typ), length, len(data)-pos-PNGChunkOverhead)
		}
		c := PNGChunk{Type: typ, Offset: pos, Length: length}
		c.CRC = ReadBE32(data[c.End()-4 : c.End()])
		if opts.VerifyCRC {
			if sum := crc32.ChecksumIEEE(data[pos+4 : c.End()-4]); sum != c.CRC {
				return nil, errdefs.Format(errdefs.ErrChecksumMismatch, pos,
					"chunk %q crc %08x, computed %08x", FourCCString(typ), c.CRC, sum)
			}
		}
		chunks = append(chunks, c)
		pos = c.End()
		if typ == FourCCIEND {
			return chunks, nil
		}
	}
	if opts.RequireIEND {
		return nil, errdefs.Format(errdefs.ErrTruncated, pos, "missing IEND")
	}
	return chunks, nil
}

// AppendPNGChunk appends a complete chunk (length, type, payload, CRC) to dst.
func AppendPNGChunk(dst []byte, typ uint32, payload []byte) []byte {
	var hdr [8]byte
	n := uint32(len(payload))
	hdr[0], hdr[1], hdr[2], hdr[3] = byte(n>>24), byte(n>>16), byte(n>>8), byte(n)
	hdr[4], hdr[5], hdr[6], hdr[7] = byte(typ), byte(typ>>8), byte(typ>>16), byte(typ>>24)
	dst = append(dst, hdr[:]...)
	dst = append(dst, payload...)

	crc := crc32.Update(crc32.ChecksumIEEE(hdr[4:8]), crc32.IEEETable, payload)
	return append(dst, byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))
}
