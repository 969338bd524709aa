package smtpclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/corvusmta/corvus/internal/outcome"
)

// Dialog runs the SMTP conversation with one candidate host: connect,
// handshake, envelope, data. Implementations own the wire protocol and
// report every failure through the AttemptState entry points (SiteFail,
// MesgFail, RcptFail, StreamExcept), returning the entry point's failure
// indicator. Accepted recipients are reported via AttemptState.Delivered.
// A nil return means the dialog completed; recipients left pending (for
// example after soft per-recipient skips) are offered to the next candidate.
type Dialog func(ctx context.Context, a *AttemptState) error

// DriverConfig tunes the candidate-host attempt loop.
type DriverConfig struct {
	// BreakerThreshold is the number of consecutive host failures before the
	// host's circuit breaker opens. Zero disables the breakers.
	BreakerThreshold uint32

	// BreakerCooldown is how long an open breaker suppresses attempts
	// against the host before probing it again.
	BreakerCooldown time.Duration
}

// DefaultDriverConfig returns sensible defaults.
func DefaultDriverConfig() DriverConfig {
	return DriverConfig{
		BreakerThreshold: 5,
		BreakerCooldown:  60 * time.Second,
	}
}

// AttemptResult summarizes one delivery attempt across all candidate hosts.
type AttemptResult struct {
	AttemptID string
	QueueID   string

	// Status is the cumulative status mask; non-zero means some outcome
	// record failed to persist and the message must be retried.
	Status int

	// Skipped reports whether any host or recipient was passed over and
	// still awaits another attempt.
	Skipped bool

	// Pending is the number of recipients left without a disposition,
	// either because a host was skipped or because the attempt was
	// cancelled before every candidate was tried.
	Pending int

	ErrorMask ErrorMask
	Duration  time.Duration
}

// Failed reports whether the surrounding queue manager must schedule
// another attempt for this message.
func (r *AttemptResult) Failed() bool {
	return r.Status != 0 || r.Skipped || r.Pending > 0
}

// Driver walks a message's candidate hosts in order, marks the transaction
// final before the last candidate, and hands each host to the session
// dialog. Hosts that keep failing trip a per-host circuit breaker and are
// skipped like a soft site failure. The driver owns outcome policy only;
// the wire protocol lives behind Dialog.
type Driver struct {
	config   DriverConfig
	recorder outcome.Recorder
	logger   *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewDriver creates a driver writing outcomes through the given recorder.
func NewDriver(config DriverConfig, recorder outcome.Recorder) *Driver {
	return &Driver{
		config:   config,
		recorder: recorder,
		logger:   slog.Default().With("component", "delivery-driver"),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (d *Driver) breaker(host string) *gobreaker.CircuitBreaker {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cb, ok := d.breakers[host]; ok {
		return cb
	}

	threshold := d.config.BreakerThreshold
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    host,
		Timeout: d.config.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return threshold > 0 && counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			d.logger.Info("Host circuit breaker state change",
				"host", name,
				"from", from.String(),
				"to", to.String())
		},
	})
	d.breakers[host] = cb
	return cb
}

// Deliver runs one delivery attempt for req against the candidate hosts in
// order. The last candidate is marked final before it is tried, so every
// recipient is dispositioned rather than skipped there. A hard site or
// message failure raises the final flag itself, which stops the loop.
func (d *Driver) Deliver(ctx context.Context, req *DeliveryRequest, hosts []*Session, dialog Dialog) *AttemptResult {
	start := time.Now()
	attemptID := uuid.New().String()

	a := NewAttemptState(req, d.recorder, d.logger)
	GetMetrics().AttemptsTotal.Inc()

	d.logger.Info("Starting delivery attempt",
		"attempt_id", attemptID,
		"queue_id", req.QueueID,
		"recipients", len(req.Recipients),
		"candidate_hosts", len(hosts))

	for i, sess := range hosts {
		if req.PendingCount() == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			break
		}

		if i == len(hosts)-1 {
			a.State.MarkFinal()
		}
		a.Session = sess

		err := d.tryHost(ctx, a, sess, dialog)
		if err != nil && !errors.Is(err, ErrSessionFailed) {
			d.logger.Error("Session dialog returned unexpected error",
				"queue_id", req.QueueID,
				"host", sess.String(),
				"error", err)
		}

		// A hard failure inside the dialog raises the final flag; stop
		// instead of walking hosts that would be skipped anyway.
		if a.State.FinalServer() {
			break
		}
	}

	result := &AttemptResult{
		AttemptID: attemptID,
		QueueID:   req.QueueID,
		Status:    a.State.Status(),
		Skipped:   a.State.Skipped(),
		Pending:   req.PendingCount(),
		ErrorMask: a.State.ErrorMask(),
		Duration:  time.Since(start),
	}
	GetMetrics().AttemptDuration.Observe(result.Duration.Seconds())

	d.logger.Info("Delivery attempt finished",
		"attempt_id", attemptID,
		"queue_id", req.QueueID,
		"status", result.Status,
		"skipped", result.Skipped,
		"pending", result.Pending,
		"duration", result.Duration)

	return result
}

func (d *Driver) tryHost(ctx context.Context, a *AttemptState, sess *Session, dialog Dialog) error {
	_, err := d.breaker(sess.Name).Execute(func() (interface{}, error) {
		return nil, dialog(ctx, a)
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		// The dialog never ran; treat the host like an unreachable site.
		GetMetrics().BreakerRejections.Inc()
		return a.SiteFail(421, fmt.Sprintf("connections to %s suppressed after repeated failures", sess))
	}
	return err
}
