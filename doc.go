// Package animimage decodes animated WebP and APNG images into fully
// composited canvas frames.
//
// A Decoder wraps one container. Opening it parses the container, builds
// a frame descriptor for every frame and plans which earlier canvas state
// each frame is drawn on. Frames are then resolved in any order: each call
// returns a canvas-sized, premultiplied pixel buffer that already carries
// the disposal and blending of every frame before it.
//
// The package supports:
//   - Animated WebP (VP8X + ANIM/ANMF, lossy and lossless frames, ALPH)
//   - Still WebP (VP8, VP8L, VP8X) as a single-frame animation
//   - APNG (acTL/fcTL/fdAT), and plain PNG as a single frame
//   - BGRA and RGBA output with 32-byte aligned rows
//
// Basic usage:
//
//	dec, err := animimage.Open(data, nil)
//	if err != nil {
//		return err
//	}
//	for i := 0; i < dec.FrameCount(); i++ {
//		f, err := dec.Frame(i)
//		...
//	}
//
// Errors come from package errdefs. A *errdefs.FormatError fails the whole
// file, a *errdefs.DecodeError fails one frame and a *errdefs.ResourceError
// means a buffer could not be allocated.
package animimage
