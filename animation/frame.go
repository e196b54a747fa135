// Package animation plans and composites animation frames.
//
// PlanFrames decides, for every frame, which earlier canvas state it has to
// be drawn on top of. The Compositor keeps the running canvas and resolves
// frames on demand, sequentially or by replaying from the planned base.
// Bitstream decoding is delegated to a FrameSource.
package animation

import (
	"image"
	"time"

	"github.com/deepteams/animimage/mux"
)

// Dispose and Blend are the container's methods; see package mux.
type (
	Dispose = mux.Dispose
	Blend   = mux.Blend
)

const (
	DisposeNone       = mux.DisposeNone
	DisposeBackground = mux.DisposeBackground
	DisposePrevious   = mux.DisposePrevious

	BlendNone = mux.BlendNone
	BlendOver = mux.BlendOver
)

// Descriptor is the planning view of one frame.
type Descriptor struct {
	Index            int // 0-based stream order
	Width, Height    int
	OffsetX, OffsetY int // top-left canvas coordinates
	Duration         time.Duration
	HasAlpha         bool
	Dispose          Dispose
	Blend            Blend
	// IsFullSize is set when the frame covers the canvas exactly.
	IsFullSize bool
	// BlendFrom is the index of the frame whose resolved canvas this frame
	// is composited on. BlendFrom == Index means the frame needs nothing
	// drawn before it. Always 0 <= BlendFrom <= Index after planning.
	BlendFrom int
}

// NewDescriptor builds the descriptor for frame index of a canvasW x canvasH
// animation. BlendFrom is left at Index until the frames are planned.
func NewDescriptor(index int, f *mux.RawFrame, canvasW, canvasH int) Descriptor {
	return Descriptor{
		Index:      index,
		Width:      f.Width,
		Height:     f.Height,
		OffsetX:    f.OffsetX,
		OffsetY:    f.OffsetY,
		Duration:   f.Duration,
		HasAlpha:   f.HasAlpha,
		Dispose:    f.Dispose,
		Blend:      f.Blend,
		IsFullSize: f.OffsetX == 0 && f.OffsetY == 0 && f.Width == canvasW && f.Height == canvasH,
		BlendFrom:  index,
	}
}

// Rect returns the frame's rectangle on the canvas.
func (d Descriptor) Rect() image.Rectangle {
	return image.Rect(d.OffsetX, d.OffsetY, d.OffsetX+d.Width, d.OffsetY+d.Height)
}

// SelfSufficient reports whether the frame's pixels alone define the whole
// canvas: it covers the canvas and either overwrites it or has no alpha.
func (d Descriptor) SelfSufficient() bool {
	return d.IsFullSize && (d.Blend == BlendNone || !d.HasAlpha)
}
