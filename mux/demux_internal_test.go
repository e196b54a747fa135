package mux

import "testing"

func TestNormalizeOffsetY(t *testing.T) {
	tests := []struct {
		o                    origin
		canvasH, rawY, frame int
		want                 int
	}{
		{originTopLeft, 100, 10, 20, 10},
		{originBottomLeft, 100, 10, 20, 70},
		{originBottomLeft, 100, 0, 100, 0},
		{originBottomLeft, 50, 0, 10, 40},
	}
	for _, tt := range tests {
		if got := normalizeOffsetY(tt.o, tt.canvasH, tt.rawY, tt.frame); got != tt.want {
			t.Errorf("normalizeOffsetY(%d, %d, %d, %d) = %d, want %d", tt.o, tt.canvasH, tt.rawY, tt.frame, got, tt.want)
		}
	}
}

func TestFits(t *testing.T) {
	tests := []struct {
		x, y, w, h int
		want       bool
	}{
		{0, 0, 10, 10, true},
		{2, 4, 8, 6, true},
		{2, 0, 9, 10, false},
		{0, 0, 0, 10, false},
		{-2, 0, 4, 4, false},
	}
	for _, tt := range tests {
		if got := fits(tt.x, tt.y, tt.w, tt.h, 10, 10); got != tt.want {
			t.Errorf("fits(%d,%d,%d,%d) = %v, want %v", tt.x, tt.y, tt.w, tt.h, got, tt.want)
		}
	}
}

func TestOptionsDefaults(t *testing.T) {
	var o *Options
	if got := o.withDefaults(); got.MaxFrames != DefaultMaxFrames || got.Strict {
		t.Errorf("nil withDefaults = %+v", got)
	}
	o = &Options{MaxFrames: 3, Strict: true}
	if got := o.withDefaults(); got.MaxFrames != 3 || !got.Strict {
		t.Errorf("withDefaults = %+v", got)
	}
}
