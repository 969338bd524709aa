package smtpclient

import (
	"fmt"
	"log/slog"

	"github.com/corvusmta/corvus/internal/outcome"
)

// Ledger finalizes recipients through the defer/bounce/sent collaborators.
// A recipient is finalized at most once: the queue-file offset is cleared
// only after the collaborator confirms the record was persisted, and
// EachPending never re-offers a cleared recipient.
type Ledger struct {
	recorder outcome.Recorder
	logger   *slog.Logger
}

// NewLedger returns a ledger writing through the given recorder.
func NewLedger(recorder outcome.Recorder, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{recorder: recorder, logger: logger.With("component", "recipient-ledger")}
}

func (l *Ledger) record(req *DeliveryRequest, sess *Session, rcpt *Recipient, reason string) outcome.Record {
	return outcome.Record{
		TraceFlags:    req.TraceFlags,
		QueueID:       req.QueueID,
		OriginalAddr:  rcpt.OriginalAddr,
		EffectiveAddr: rcpt.Addr,
		Offset:        rcpt.Offset,
		Host:          sess.String(),
		ArrivalTime:   req.ArrivalTime,
		Reason:        reason,
	}
}

// Finalize dispositions one pending recipient: soft errors defer, hard
// errors bounce. On a clean persist the completion collaborator is notified
// with the original offset and the recipient's marker is cleared; otherwise
// the recipient stays pending and the non-zero status is folded into the
// transaction state, turning a lost outcome record into a soft-fail of the
// whole attempt rather than a silent loss.
func (l *Ledger) Finalize(state *TransactionState, req *DeliveryRequest, sess *Session, rcpt *Recipient, disp Disposition, reason string) int {
	var status int
	switch disp {
	case DispositionSoft:
		status = l.recorder.Defer(l.record(req, sess, rcpt, reason))
	case DispositionHard:
		status = l.recorder.Bounce(l.record(req, sess, rcpt, reason))
	default:
		panic(fmt.Sprintf("smtpclient: Finalize called with disposition %v", disp))
	}

	if status == outcome.StatusOK {
		l.recorder.Completed(req.QueueID, rcpt.Offset)
		rcpt.Offset = 0
		if disp == DispositionSoft {
			GetMetrics().Defers.Inc()
		} else {
			GetMetrics().Bounces.Inc()
		}
	} else {
		GetMetrics().RecorderFailures.Inc()
		l.logger.Error("Failed to persist recipient outcome",
			"queue_id", req.QueueID,
			"recipient", rcpt.Addr,
			"disposition", disp.String(),
			"status", status)
	}

	state.FoldStatus(status)
	return status
}

// Delivered records one recipient accepted by the remote host. Same marker
// discipline as Finalize: the offset is cleared only after the sent record
// persisted.
func (l *Ledger) Delivered(state *TransactionState, req *DeliveryRequest, sess *Session, rcpt *Recipient, reason string) int {
	status := l.recorder.Sent(l.record(req, sess, rcpt, reason))
	if status == outcome.StatusOK {
		l.recorder.Completed(req.QueueID, rcpt.Offset)
		rcpt.Offset = 0
		GetMetrics().Delivered.Inc()
	} else {
		GetMetrics().RecorderFailures.Inc()
		l.logger.Error("Failed to persist sent record",
			"queue_id", req.QueueID,
			"recipient", rcpt.Addr,
			"status", status)
	}
	state.FoldStatus(status)
	return status
}
