// Package embedding provides text encoders and the bounded worker pool that runs them.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"

	"NewsRAG/internal/ports"
)

// DefaultWorkers bounds how many encodings run at once.
const DefaultWorkers = 4

// submitRetry is how long a caller waits for a free worker before submitting again.
const submitRetry = 5 * time.Millisecond

// Pool runs encodings of the wrapped encoder on a fixed number of workers.
// Callers block until their own encoding finishes or ctx is done, including
// while they wait for a free worker.
type Pool struct {
	encoder ports.Encoder
	workers *ants.Pool
}

var _ ports.Encoder = (*Pool)(nil)

// NewPool starts a pool of size workers in front of encoder.
func NewPool(encoder ports.Encoder, workers int) (*Pool, error) {
	if encoder == nil {
		return nil, fmt.Errorf("encoder is nil")
	}
	if workers < 1 {
		workers = DefaultWorkers
	}
	wp, err := ants.NewPool(workers, ants.WithPreAlloc(true), ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &Pool{encoder: encoder, workers: wp}, nil
}

type encodeResult struct {
	vec []float32
	err error
}

// Encode schedules text on the pool and waits for its vector.
func (p *Pool) Encode(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan encodeResult, 1)
	task := func() {
		defer func() {
			if r := recover(); r != nil {
				done <- encodeResult{err: fmt.Errorf("encoder panic: %v", r)}
			}
		}()
		vec, err := p.encoder.Encode(ctx, text)
		done <- encodeResult{vec: vec, err: err}
	}
	if err := p.submit(ctx, task); err != nil {
		return nil, err
	}

	select {
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		if dims := p.encoder.Dimensions(); dims > 0 && len(res.vec) != dims {
			return nil, fmt.Errorf("unexpected embedding dimensions: got %d, want %d", len(res.vec), dims)
		}
		return res.vec, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// submit hands task to a free worker, retrying while the pool is full.
func (p *Pool) submit(ctx context.Context, task func()) error {
	for {
		err := p.workers.Submit(task)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ants.ErrPoolOverload) {
			return fmt.Errorf("submit encoding: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(submitRetry):
		}
	}
}

// Dimensions reports the wrapped encoder's vector length.
func (p *Pool) Dimensions() int {
	return p.encoder.Dimensions()
}

// Close releases the workers.
func (p *Pool) Close() {
	p.workers.Release()
}
