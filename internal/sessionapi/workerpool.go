package sessionapi

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kalshi-dcm-demo/backend/internal/models"
	"github.com/kalshi-dcm-demo/backend/internal/obslog"
)

// orderProcessor is the ordermanager.Manager's single entry point,
// narrowed here so this package doesn't need to import ordermanager
// just to name the dependency.
type orderProcessor interface {
	ProcessOrder(ctx context.Context, order models.Order, sessionID string) error
}

// sessionQueue is one session's ordered inbound order queue: a single
// goroutine drains it so orders from the same session are always
// processed in arrival order (spec's per-session statelessness still
// holds — only the queueing is stateful), while different sessions'
// goroutines run fully concurrently.
type sessionQueue struct {
	orders chan models.Order
}

// WorkerPool fans inbound orders out to one ordered queue per session.
// Queue goroutines are supervised by an errgroup so a panic or fatal
// error in one session's processing is observable, and Shutdown can
// wait for every in-flight order to finish before returning.
type WorkerPool struct {
	manager orderProcessor
	logger  obslog.Logger

	mu      sync.Mutex
	queues  map[string]*sessionQueue
	group   *errgroup.Group
	groupCtx context.Context
	queueDepth int
}

func NewWorkerPool(ctx context.Context, manager orderProcessor, logger obslog.Logger, queueDepth int) *WorkerPool {
	group, groupCtx := errgroup.WithContext(ctx)
	return &WorkerPool{
		manager:    manager,
		logger:     logger,
		queues:     make(map[string]*sessionQueue),
		group:      group,
		groupCtx:   groupCtx,
		queueDepth: queueDepth,
	}
}

// Submit enqueues order for processing under sessionID, starting that
// session's worker goroutine on first use.
func (p *WorkerPool) Submit(order models.Order, sessionID string) error {
	p.mu.Lock()
	q, ok := p.queues[sessionID]
	if !ok {
		q = &sessionQueue{orders: make(chan models.Order, p.queueDepth)}
		p.queues[sessionID] = q
		p.group.Go(func() error {
			return p.runSession(sessionID, q)
		})
	}
	p.mu.Unlock()

	select {
	case q.orders <- order:
		return nil
	case <-p.groupCtx.Done():
		return p.groupCtx.Err()
	}
}

func (p *WorkerPool) runSession(sessionID string, q *sessionQueue) error {
	for {
		select {
		case order, ok := <-q.orders:
			if !ok {
				return nil
			}
			if err := p.manager.ProcessOrder(p.groupCtx, order, sessionID); err != nil {
				p.logger.LogDependencyFailure("ordermanager", "ProcessOrder", err)
			}
		case <-p.groupCtx.Done():
			return p.groupCtx.Err()
		}
	}
}

// Shutdown closes every session queue and waits for in-flight orders to
// finish, up to ctx's deadline.
func (p *WorkerPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	for _, q := range p.queues {
		close(q.orders)
	}
	p.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- p.group.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
