package usecase_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/5nail000/MT5-Trading-Dashboard-2/internal/usecase"
)

func TestPoolRunsJobs(t *testing.T) {
	pool := usecase.NewTerminalPool(2)
	defer pool.Close()

	var n atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pool.Run(context.Background(), func() { n.Add(1) }); err != nil {
				t.Errorf("Run failed: %v", err)
			}
		}()
	}
	wg.Wait()
	if n.Load() != 10 {
		t.Errorf("jobs run = %d, want 10", n.Load())
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	pool := usecase.NewTerminalPool(2)
	defer pool.Close()

	var current, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Run(context.Background(), func() {
				c := current.Add(1)
				for {
					p := peak.Load()
					if c <= p || peak.CompareAndSwap(p, c) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				current.Add(-1)
			})
		}()
	}
	wg.Wait()
	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want at most 2 workers", peak.Load())
	}
}

func TestPoolRunHonorsContext(t *testing.T) {
	pool := usecase.NewTerminalPool(1)
	defer pool.Close()

	block := make(chan struct{})
	go pool.Run(context.Background(), func() { <-block })
	time.Sleep(10 * time.Millisecond) // let the worker pick it up

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := pool.Run(ctx, func() {})
	if err != context.DeadlineExceeded {
		t.Errorf("err = %v, want deadline exceeded while the worker is busy", err)
	}
	close(block)
}
