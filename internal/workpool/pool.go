// Package workpool provides the bounded worker pool shared by office
// generation and PDF conversion. Document work blocks on disk and
// subprocesses, so it must never run on the event-dispatch goroutines.
package workpool

import (
	"context"
	"sync"
)

// Pool limits how many blocking jobs run at once.
type Pool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

func New(workers int) *Pool {
	if workers <= 0 {
		workers = 2
	}
	return &Pool{sem: make(chan struct{}, workers)}
}

// Run executes fn on the calling goroutine once a worker slot is free. It
// returns the context error without running fn when ctx is cancelled first.
func (p *Pool) Run(ctx context.Context, fn func() error) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	p.wg.Add(1)
	defer func() {
		<-p.sem
		p.wg.Done()
	}()
	return fn()
}

// Wait blocks until all running jobs finish.
func (p *Pool) Wait() {
	p.wg.Wait()
}
