package workpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunLimitsConcurrency(t *testing.T) {
	p := New(2)

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Run(context.Background(), func() error {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				running.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > 2 {
		t.Fatalf("peak concurrency %d exceeds pool size 2", got)
	}
}

func TestRunReturnsJobError(t *testing.T) {
	p := New(1)
	want := errors.New("boom")
	if err := p.Run(context.Background(), func() error { return want }); err != want {
		t.Fatalf("got %v, want %v", err, want)
	}
}

func TestRunHonoursCancelledContext(t *testing.T) {
	p := New(1)

	// Occupy the single slot.
	block := make(chan struct{})
	go p.Run(context.Background(), func() error {
		<-block
		return nil
	})
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Run(ctx, func() error { return nil }); err == nil {
		t.Fatal("expected context error while pool is saturated")
	}
	close(block)
	p.Wait()
}
