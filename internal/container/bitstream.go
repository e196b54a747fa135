package container

import (
	"encoding/binary"

	"github.com/deepteams/animimage/errdefs"
)

// VP8Dimensions reads the frame size from a VP8 keyframe header.
func VP8Dimensions(data []byte) (width, height int, err error) {
	if len(data) < VP8FrameHeaderSize {
		return 0, 0, errdefs.Format(errdefs.ErrTruncated, -1, "VP8 frame header")
	}
	frameTag := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16
	if frameTag&1 != 0 {
		return 0, 0, errdefs.Format(errdefs.ErrUnsupportedFeature, -1, "VP8 interframe")
	}
	// Start code is stored big-endian.
	sig := uint32(data[3])<<16 | uint32(data[4])<<8 | uint32(data[5])
	if sig != VP8Signature {
		return 0, 0, errdefs.Format(errdefs.ErrInvalidChunk, -1, "VP8 start code 0x%06x", sig)
	}
	width = int(binary.LittleEndian.Uint16(data[6:8])) & 0x3FFF
	height = int(binary.LittleEndian.Uint16(data[8:10])) & 0x3FFF
	if width == 0 || height == 0 {
		return 0, 0, errdefs.Format(errdefs.ErrInvalidHeader, -1, "VP8 dimensions %dx%d", width, height)
	}
	return width, height, nil
}

// VP8LDimensions reads the frame size and alpha hint from a VP8L header.
func VP8LDimensions(data []byte) (width, height int, hasAlpha bool, err error) {
	if len(data) < VP8LFrameHeaderSize {
		return 0, 0, false, errdefs.Format(errdefs.ErrTruncated, -1, "VP8L header")
	}
	if data[0] != VP8LMagicByte {
		return 0, 0, false, errdefs.Format(errdefs.ErrInvalidChunk, -1, "VP8L signature 0x%02x", data[0])
	}
	// 14 bits width-1, 14 bits height-1, 1 bit alpha, 3 bits version.
	bits := binary.LittleEndian.Uint32(data[1:5])
	width = int(bits&0x3FFF) + 1
	height = int((bits>>14)&0x3FFF) + 1
	hasAlpha = (bits>>28)&1 != 0
	if version := bits >> 29; version != VP8LVersion {
		return 0, 0, false, errdefs.Format(errdefs.ErrUnsupportedFeature, -1, "VP8L version %d", version)
	}
	return width, height, hasAlpha, nil
}
