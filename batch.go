package animimage

import (
	"context"
	"runtime"
	"sync"
)

// DecodeAll opens data and resolves every frame in order. ctx is checked
// before each frame; a frame already being decoded runs to completion.
func DecodeAll(ctx context.Context, data []byte, opts *Options) ([]*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, err := Open(data, opts)
	if err != nil {
		return nil, err
	}
	n := d.FrameCount()
	frames := make([]*Frame, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := d.Frame(i)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// BatchResult is the outcome of one DecodeBatch input.
type BatchResult struct {
	Frames []*Frame
	Err    error
}

// DecodeBatch decodes every input with DecodeAll, each in its own session.
// At most workers sessions run at once; workers <= 0 selects GOMAXPROCS.
// Results are returned in input order.
func DecodeBatch(ctx context.Context, inputs [][]byte, opts *Options, workers int) []BatchResult {
	results := make([]BatchResult, len(inputs))
	if len(inputs) == 0 {
		return results
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(inputs) {
		workers = len(inputs)
	}

	work := make(chan int, len(inputs))
	for i := range inputs {
		work <- i
	}
	close(work)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				frames, err := DecodeAll(ctx, inputs[idx], opts)
				results[idx] = BatchResult{Frames: frames, Err: err}
			}
		}()
	}
	wg.Wait()
	return results
}
