package blockchain

import (
	"context"
	"sync"
)

// EventHandler applies one decoded event to the store. Implemented by
// the reconciler; each call is a self-contained idempotent unit, so an
// abandoned in-flight handler never leaves partial state behind.
type EventHandler interface {
	Apply(ctx context.Context, ev Event) error
}

// WorkerPool fans decoded events out to concurrent handlers. Handlers
// for events delivered close together may overlap; all ordering safety
// lives in the reconciler's existence checks, not here.
type WorkerPool struct {
	workers   int
	taskQueue chan Event
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewWorkerPool(workers, queueSize int) *WorkerPool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		workers:   workers,
		taskQueue: make(chan Event, queueSize),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (p *WorkerPool) Start(handler func(Event)) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(handler)
	}
}

func (p *WorkerPool) worker(handler func(Event)) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case ev := <-p.taskQueue:
			handler(ev)
		}
	}
}

// Submit queues an event; false when the queue is full. Dropped events
// are recovered by the periodic replay of the trailing block window.
func (p *WorkerPool) Submit(ev Event) bool {
	select {
	case p.taskQueue <- ev:
		return true
	default:
		return false
	}
}

// Stop cancels the workers and waits for in-flight handlers to finish.
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
}

func (p *WorkerPool) QueueLength() int {
	return len(p.taskQueue)
}
