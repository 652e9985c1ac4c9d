package usecase

import (
	"context"
	"sync"
)

// TerminalPool serializes terminal calls through a small fixed set of
// workers. The terminal bridge is one blocking connection; the pool
// keeps read paths responsive while a fetch blocks and caps how many
// terminal round-trips run at once.
type TerminalPool struct {
	jobs chan func()
	wg   sync.WaitGroup

	closeOnce sync.Once
}

func NewTerminalPool(workers int) *TerminalPool {
	if workers < 1 {
		workers = 1
	}
	p := &TerminalPool{jobs: make(chan func())}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job()
			}
		}()
	}
	return p
}

// Run executes fn on a pool worker and waits for it to finish. It
// returns the context's error when the caller gives up before a worker
// picks the job up or before fn returns; fn itself is expected to
// honor the same context.
func (p *TerminalPool) Run(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	job := func() {
		defer close(done)
		fn()
	}

	select {
	case p.jobs <- job:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the workers after in-flight jobs finish.
func (p *TerminalPool) Close() {
	p.closeOnce.Do(func() { close(p.jobs) })
	p.wg.Wait()
}
