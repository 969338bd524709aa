package smtpclient

import (
	"errors"
	"io"
	"time"
)

// ErrDeadlineExhausted is returned by TimedReader once the request's
// deadline budget has drained. The session driver must treat it as a
// stream timeout and raise StreamExcept with StreamTimeout.
var ErrDeadlineExhausted = errors.New("smtpclient: request deadline exhausted")

// DeadlineBudget tracks the combined time allowance for sending one command
// and receiving its response. Each read drains the budget by its elapsed
// wall-clock time; when a minimum data rate is configured, bytes actually
// transferred grant time back, so a slow link moving real data keeps its
// deadline alive while a peer dribbling bytes below the floor rate (or
// stalled entirely) runs out. The ceiling caps the budget no matter how many
// extensions accrue, bounding the total time a trickling peer can hold a
// delivery agent.
type DeadlineBudget struct {
	remaining time.Duration
	ceiling   time.Duration
	floorRate int // bytes per second; 0 disables extensions
	exhausted bool
}

// StartBudget begins a new request/response round trip with the configured
// deadline, absolute ceiling and minimum acceptable data rate.
func StartBudget(deadline, ceiling time.Duration, floorRate int) *DeadlineBudget {
	return &DeadlineBudget{
		remaining: deadline,
		ceiling:   ceiling,
		floorRate: floorRate,
	}
}

// OnRead charges one read operation against the budget: elapsed time is
// subtracted, a floor-rate extension is granted for bytes transferred, and
// the result is clamped to the ceiling. Must be called synchronously after
// each read with that read's actual elapsed time. Once the budget is
// exhausted it stays exhausted for the remainder of the request.
func (b *DeadlineBudget) OnRead(n int, elapsed time.Duration) {
	if b.exhausted {
		return
	}

	b.remaining -= elapsed
	if b.floorRate > 0 && n > 0 {
		b.remaining += time.Duration(n) * time.Second / time.Duration(b.floorRate)
	}
	if b.remaining > b.ceiling {
		b.remaining = b.ceiling
	}
	if b.remaining <= 0 {
		b.exhausted = true
	}
}

// Remaining returns the current time allowance. Values <= 0 mean the request
// has timed out.
func (b *DeadlineBudget) Remaining() time.Duration {
	return b.remaining
}

// Exhausted reports whether the budget has drained. Terminal for the current
// request.
func (b *DeadlineBudget) Exhausted() bool {
	return b.exhausted
}

// TimedReader wraps the session's read side and charges every Read against a
// DeadlineBudget. When the budget drains, Read fails with
// ErrDeadlineExhausted and keeps failing for the rest of the request.
type TimedReader struct {
	r      io.Reader
	budget *DeadlineBudget
	now    func() time.Time
}

// NewTimedReader returns a reader whose budget accounting uses wall-clock
// time around each underlying Read.
func NewTimedReader(r io.Reader, budget *DeadlineBudget) *TimedReader {
	return &TimedReader{r: r, budget: budget, now: time.Now}
}

// Read implements io.Reader.
func (t *TimedReader) Read(p []byte) (int, error) {
	if t.budget.Exhausted() {
		return 0, ErrDeadlineExhausted
	}

	start := t.now()
	n, err := t.r.Read(p)
	t.budget.OnRead(n, t.now().Sub(start))

	if t.budget.Exhausted() {
		GetMetrics().DeadlineExhaustions.Inc()
		return n, ErrDeadlineExhausted
	}
	return n, err
}
