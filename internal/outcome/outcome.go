package outcome

import (
	"time"
)

// Status codes returned by Recorder implementations. Zero means the record
// was persisted; any non-zero value is folded into the delivery attempt's
// cumulative status so the attempt is retried later instead of silently
// losing the recipient.
const (
	StatusOK         = 0
	StatusWriteError = 1 << 0
)

// Record carries everything needed to persist one per-recipient delivery
// outcome: which message, which recipient, which remote host, and why.
type Record struct {
	TraceFlags    int       `json:"trace_flags"`
	QueueID       string    `json:"queue_id"`
	OriginalAddr  string    `json:"original_addr"`
	EffectiveAddr string    `json:"effective_addr"`
	Offset        int64     `json:"offset"`
	Host          string    `json:"host"`
	ArrivalTime   time.Time `json:"arrival_time"`
	Reason        string    `json:"reason"`
}

// Recorder persists per-recipient delivery outcomes. Implementations must be
// synchronous: when a call returns StatusOK the record is durable and the
// caller may clear the recipient's finalization marker.
type Recorder interface {
	// Defer records a temporary failure; the recipient stays eligible for a
	// later delivery attempt.
	Defer(rec Record) int

	// Bounce records a permanent failure; a non-delivery notification will be
	// generated for the sender.
	Bounce(rec Record) int

	// Sent records a successful delivery to the remote host.
	Sent(rec Record) int

	// Completed marks the given queue-file offset as fully processed. Must be
	// called only after a successful Defer, Bounce or Sent for that offset.
	Completed(queueID string, offset int64)
}
