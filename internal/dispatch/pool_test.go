package dispatch

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestPoolRunsSubmittedWork(t *testing.T) {
	p := NewPool(2)
	var ran atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		if err := p.Submit(func() {
			defer wg.Done()
			ran.Add(1)
		}); err != nil {
			wg.Done()
			t.Fatalf("submit: %v", err)
		}
	}
	wg.Wait()
	if got := ran.Load(); got != 8 {
		t.Fatalf("ran %d of 8", got)
	}
	p.Close()
}

func TestPoolSubmitDoesNotBlock(t *testing.T) {
	p := NewPool(1)
	release := make(chan struct{})
	// Occupy the worker and fill the queue.
	_ = p.Submit(func() { <-release })
	for {
		if err := p.Submit(func() { <-release }); err != nil {
			break // queue full, Submit returned instead of blocking
		}
	}
	close(release)
	p.Close()
}
