package container

import (
	"encoding/binary"

	"github.com/deepteams/animimage/errdefs"
)

// RIFFChunk is one chunk found inside a RIFF/WEBP file or an ANMF payload.
// Offset is the position of the chunk header relative to the start of the
// scanned buffer.
type RIFFChunk struct {
	FourCC uint32
	Offset int
	Size   uint32 // payload size without padding
}

// Data returns the chunk payload as a sub-slice of buf.
func (c RIFFChunk) Data(buf []byte) []byte {
	start := c.Offset + ChunkHeaderSize
	return buf[start : start+int(c.Size)]
}

// ReadRIFFHeader validates the 12-byte "RIFF size WEBP" header and returns
// the length of the RIFF body that follows it. A body shorter than declared
// is Truncated, except for a single missing pad byte at the end.
func ReadRIFFHeader(data []byte) (int, error) {
	if len(data) < RIFFHeaderSize {
		return 0, errdefs.Format(errdefs.ErrTruncated, 0, "RIFF header")
	}
	if ReadLE32(data[0:4]) != FourCCRIFF || ReadLE32(data[8:12]) != FourCCWEBP {
		return 0, errdefs.Format(errdefs.ErrBadSignature, 0, "not a RIFF/WEBP file")
	}
	size := ReadLE32(data[4:8])
	if size < 4 || size > MaxChunkPayload {
		return 0, errdefs.Format(errdefs.ErrInvalidHeader, 4, "RIFF size %d", size)
	}
	// The declared size counts the "WEBP" tag. Trailing bytes beyond it are
	// ignored.
	body := int(size) - 4
	avail := len(data) - RIFFHeaderSize
	switch {
	case body <= avail:
	case body == avail+1:
		body = avail
	default:
		return 0, errdefs.Format(errdefs.ErrTruncated, 4,
			"RIFF declares %d body bytes, %d present", body, avail)
	}
	return body, nil
}

// ReadRIFFChunkHeader reads a chunk FourCC and payload size at data[0:8].
func ReadRIFFChunkHeader(data []byte) (fourcc, size uint32, err error) {
	if len(data) < ChunkHeaderSize {
		return 0, 0, errdefs.ErrTruncated
	}
	fourcc = binary.LittleEndian.Uint32(data[0:4])
	size = binary.LittleEndian.Uint32(data[4:8])
	if size > MaxChunkPayload {
		return 0, 0, errdefs.ErrTooLarge
	}
	return fourcc, size, nil
}

// PaddedSize returns the payload size padded to an even number of bytes,
// as required by the RIFF format.
func PaddedSize(size uint32) uint32 {
	return size + (size & 1)
}

// WalkRIFFChunks splits buf into consecutive RIFF chunks. base is added to
// offsets reported in errors so callers can report absolute file positions.
// A missing pad byte after the final chunk is tolerated.
func WalkRIFFChunks(buf []byte, base int) ([]RIFFChunk, error) {
	var chunks []RIFFChunk
	pos := 0
	for pos < len(buf) {
		fourcc, size, err := ReadRIFFChunkHeader(buf[pos:])
		if err != nil {
			return nil, errdefs.Format(errdefs.ErrTruncated, base+pos, "chunk header")
		}
		end := pos + ChunkHeaderSize + int(size)
		if end > len(buf) {
			return nil, errdefs.Format(errdefs.ErrTruncated, base+pos,
				"chunk %q declares %d bytes, %d remain", FourCCString(fourcc), size, len(buf)-pos-ChunkHeaderSize)
		}
		chunks = append(chunks, RIFFChunk{FourCC: fourcc, Offset: pos, Size: size})
		pos = end + int(size&1)
	}
	return chunks, nil
}
