package smtpclient

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Task is one independent delivery: a queued message, its candidate hosts in
// preference order, and the session dialog to run against each.
type Task struct {
	Request *DeliveryRequest
	Hosts   []*Session
	Dialog  Dialog
}

// Pool delivers independent messages concurrently. Each task gets its own
// AttemptState and TransactionState; nothing mutable is shared between
// workers, matching the core's single-threaded-per-attempt design.
type Pool struct {
	driver *Driver
	size   int
	logger *slog.Logger
}

// NewPool returns a pool running at most size deliveries at once.
func NewPool(driver *Driver, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		driver: driver,
		size:   size,
		logger: slog.Default().With("component", "delivery-pool"),
	}
}

// Run processes all tasks and returns one result per task, in task order.
// Individual delivery failures are reported in the results, not as errors;
// the only error returned is context cancellation.
func (p *Pool) Run(ctx context.Context, tasks []Task) ([]*AttemptResult, error) {
	results := make([]*AttemptResult, len(tasks))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.size)

	for i, task := range tasks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = p.driver.Deliver(ctx, task.Request, task.Hosts, task.Dialog)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}

	p.logger.Debug("Delivery batch finished", "tasks", len(tasks))
	return results, nil
}
