package dispatch

import (
	"errors"
	"sync"
)

var ErrPoolFull = errors.New("dispatch pool is full")

// Pool runs submitted functions on a fixed set of workers. Submit never
// blocks; a full queue is reported to the caller instead.
type Pool struct {
	queue chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{queue: make(chan func(), size*4)}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for fn := range p.queue {
		fn()
	}
}

func (p *Pool) Submit(fn func()) error {
	select {
	case p.queue <- fn:
		return nil
	default:
		return ErrPoolFull
	}
}

// Close stops accepting work and waits for in-flight functions to finish.
func (p *Pool) Close() {
	p.once.Do(func() { close(p.queue) })
	p.wg.Wait()
}
