package animation

// PlanFrames assigns BlendFrom for every frame in one forward pass and
// reports whether any frame depends on an earlier canvas. The input is not
// modified; planning the result again yields the same assignments.
//
// A self-sufficient frame starts a new chain. A full-canvas frame disposed
// to background still depends on the current base, but leaves a clear canvas
// behind, so the frame after it starts a new chain. Every other frame builds
// on the current base.
func PlanFrames(frames []Descriptor) ([]Descriptor, bool) {
	out := make([]Descriptor, len(frames))
	copy(out, frames)

	lastIndependent := 0
	needsBlending := false
	for i := range out {
		f := &out[i]
		switch {
		case f.SelfSufficient():
			f.BlendFrom = i
			lastIndependent = i
		case f.IsFullSize && f.Dispose == DisposeBackground:
			f.BlendFrom = lastIndependent
			lastIndependent = i + 1
		default:
			f.BlendFrom = lastIndependent
		}
		if f.BlendFrom != i {
			needsBlending = true
		}
	}
	return out, needsBlending
}
