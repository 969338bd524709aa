package smtpclient

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusmta/corvus/internal/outcome"
)

func TestPoolDeliversIndependentRequests(t *testing.T) {
	rec := outcome.NewMemoryRecorder()
	pool := NewPool(NewDriver(DefaultDriverConfig(), rec), 4)

	dialog := func(ctx context.Context, a *AttemptState) error {
		a.Request.EachPending(func(r *Recipient) {
			a.Delivered(r, "250 2.0.0 accepted")
		})
		return nil
	}

	var tasks []Task
	for i := 0; i < 10; i++ {
		req := testRequest(2)
		req.QueueID = fmt.Sprintf("Q%04d", i)
		tasks = append(tasks, Task{Request: req, Hosts: testHosts("mx1"), Dialog: dialog})
	}

	results, err := pool.Run(context.Background(), tasks)
	require.NoError(t, err)
	require.Len(t, results, 10)

	for i, res := range results {
		require.NotNil(t, res, "task %d", i)
		assert.Zero(t, res.Pending)
		assert.False(t, res.Failed())
	}

	_, _, sents := rec.Counts()
	assert.Equal(t, 20, sents)
}

func TestPoolIsolatesFailures(t *testing.T) {
	rec := outcome.NewMemoryRecorder()
	pool := NewPool(NewDriver(DefaultDriverConfig(), rec), 2)

	// Odd-numbered requests hard-fail; even-numbered ones deliver.
	dialog := func(ctx context.Context, a *AttemptState) error {
		if a.Request.TraceFlags == 1 {
			return a.MesgFail(554, "transaction failed")
		}
		a.Request.EachPending(func(r *Recipient) {
			a.Delivered(r, "250 2.0.0 accepted")
		})
		return nil
	}

	var tasks []Task
	for i := 0; i < 6; i++ {
		req := testRequest(1)
		req.QueueID = fmt.Sprintf("Q%04d", i)
		req.TraceFlags = i % 2
		tasks = append(tasks, Task{Request: req, Hosts: testHosts("mx" + fmt.Sprint(i)), Dialog: dialog})
	}

	results, err := pool.Run(context.Background(), tasks)
	require.NoError(t, err)

	for i, res := range results {
		assert.Zero(t, res.Pending, "task %d: every recipient must be dispositioned", i)
	}
	defers, bounces, sents := rec.Counts()
	assert.Zero(t, defers)
	assert.Equal(t, 3, bounces)
	assert.Equal(t, 3, sents)
}
