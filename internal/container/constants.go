// Package container holds the low-level chunk readers shared by the WebP and
// APNG demuxers: FourCC packing, RIFF chunk primitives, the PNG chunk stream
// reader and the fixed-size APNG control records.
package container

import "encoding/binary"

// FourCC packs four tag bytes into a uint32 with b0 in the lowest-order byte.
// Known tags are compared against packed values directly, so the packing order
// must not change: FourCC(0x89, 0x50, 0x4E, 0x47) == 1196314761.
func FourCC(b0, b1, b2, b3 byte) uint32 {
	return uint32(b0) | uint32(b1)<<8 | uint32(b2)<<16 | uint32(b3)<<24
}

// FourCCString returns the four tag bytes of a packed FourCC.
func FourCCString(fourcc uint32) string {
	b := [4]byte{
		byte(fourcc),
		byte(fourcc >> 8),
		byte(fourcc >> 16),
		byte(fourcc >> 24),
	}
	return string(b[:])
}

// RIFF/WebP FourCC values.
var (
	FourCCRIFF = FourCC('R', 'I', 'F', 'F')
	FourCCWEBP = FourCC('W', 'E', 'B', 'P')
	FourCCVP8  = FourCC('V', 'P', '8', ' ')
	FourCCVP8L = FourCC('V', 'P', '8', 'L')
	FourCCVP8X = FourCC('V', 'P', '8', 'X')
	FourCCALPH = FourCC('A', 'L', 'P', 'H')
	FourCCANIM = FourCC('A', 'N', 'I', 'M')
	FourCCANMF = FourCC('A', 'N', 'M', 'F')
)

// PNG/APNG FourCC values.
var (
	FourCCIHDR = FourCC('I', 'H', 'D', 'R')
	FourCCPLTE = FourCC('P', 'L', 'T', 'E')
	FourCCtRNS = FourCC('t', 'R', 'N', 'S')
	FourCCIDAT = FourCC('I', 'D', 'A', 'T')
	FourCCIEND = FourCC('I', 'E', 'N', 'D')
	FourCCacTL = FourCC('a', 'c', 'T', 'L')
	FourCCfcTL = FourCC('f', 'c', 'T', 'L')
	FourCCfdAT = FourCC('f', 'd', 'A', 'T')
)

// PNG signature 89 50 4E 47 0D 0A 1A 0A, as two packed words.
var (
	pngMagic0 = FourCC(0x89, 0x50, 0x4E, 0x47)
	pngMagic1 = FourCC(0x0D, 0x0A, 0x1A, 0x0A)
)

// PNGSignature is the 8-byte PNG file signature.
const PNGSignature = "\x89PNG\r\n\x1a\n"

// VP8 / VP8L bitstream constants.
const (
	VP8Signature        = 0x9d012a // start code inside a VP8 keyframe header
	VP8FrameHeaderSize  = 10       // frame tag + start code + dimensions
	VP8LMagicByte       = 0x2f     // VP8L signature byte
	VP8LVersion         = 0        // only defined VP8L version
	VP8LFrameHeaderSize = 5        // signature byte + 32 packed bits
)

// Container structure sizes.
const (
	ChunkHeaderSize   = 8  // RIFF: fourcc + LE size. PNG: BE size + fourcc
	PNGChunkOverhead  = 12 // PNG length + type + CRC
	PNGSignatureSize  = 8
	PNGMinFileSize    = 32 // signature + IHDR chunk, rounded down
	RIFFHeaderSize    = 12 // "RIFFnnnnWEBP"
	ANMFChunkSize     = 16
	ANIMChunkSize     = 6
	VP8XChunkSize     = 10
	IHDRSize          = 13
	ACTLSize          = 8
	FCTLSize          = 26
	FDATSequenceSize  = 4
	MaxChunkPayload   = ^uint32(0) - ChunkHeaderSize - 1
	MaxImageArea      = uint64(1) << 32
	DefaultDelayDenom = 100 // APNG: a zero denominator means 1/100 s
)

// VP8X feature flags.
const (
	VP8XAnimationFlag = 0x02
	VP8XAlphaFlag     = 0x10
)

// ANMF flag bits.
const (
	ANMFDisposeBackground = 0x01
	ANMFNoBlend           = 0x02
)

// ReadLE24 reads a 24-bit little-endian integer.
func ReadLE24(b []byte) int {
	return int(b[0]) | int(b[1])<<8 | int(b[2])<<16
}

// PutLE24 writes v as a 24-bit little-endian integer.
func PutLE24(b []byte, v int) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

// ReadLE32 reads a little-endian uint32.
func ReadLE32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

// ReadBE32 reads a big-endian uint32.
func ReadBE32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }

// ReadBE16 reads a big-endian uint16.
func ReadBE16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
