package smtpclient

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/corvusmta/corvus/internal/logging"
	"github.com/corvusmta/corvus/internal/outcome"
)

// ErrSessionFailed is the failure indicator returned by the disposition
// entry points. It signals "this host attempt is over", not "recipients were
// dispositioned"; the session driver advances to the next candidate host
// unless the final-server flag is set.
var ErrSessionFailed = errors.New("smtpclient: host attempt failed")

// StreamError identifies a transport exception reported by the low-level
// stream layer.
type StreamError int

const (
	// StreamEOF means the connection was lost mid-dialog.
	StreamEOF StreamError = iota

	// StreamTimeout means the per-request deadline budget drained.
	StreamTimeout
)

// AttemptState carries everything one delivery attempt mutates: the request
// and its recipients, the currently active session, and the transaction
// state shared across all four disposition entry points. One instance per
// DeliveryRequest; not safe for concurrent use.
type AttemptState struct {
	Request *DeliveryRequest
	Session *Session
	State   *TransactionState

	ledger *Ledger
	logger *slog.Logger
}

// NewAttemptState prepares the disposition machinery for one delivery
// attempt of the given request.
func NewAttemptState(req *DeliveryRequest, recorder outcome.Recorder, logger *slog.Logger) *AttemptState {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "smtp-client", "queue_id", req.QueueID)
	return &AttemptState{
		Request: req,
		State:   &TransactionState{},
		ledger:  NewLedger(recorder, logger),
		logger:  logger,
	}
}

// checkCode accumulates the protocol-anomaly flag. Run on every reply code
// the entry points see, including the ones that took the skip branch.
func (a *AttemptState) checkCode(code int) {
	if IsProtocolAnomaly(code) {
		a.State.NoteError(ErrProtocol)
	}
}

// failAllPending dispositions every recipient still pending and raises the
// final-server flag so remaining candidate hosts are skipped.
func (a *AttemptState) failAllPending(disp Disposition, reason string) {
	a.Request.EachPending(func(rcpt *Recipient) {
		a.ledger.Finalize(a.State, a.Request, a.Session, rcpt, disp, reason)
	})
	a.State.MarkFinal()
}

// SiteFail handles failure of the initial handshake with a candidate host:
// unreachable, refused, or a mail loop. Soft error on a non-final server:
// log why the host is being skipped and leave every recipient pending for
// the next candidate. Otherwise defer (soft) or bounce (hard) all remaining
// recipients and raise the final-server flag. The first soft reason to
// disposition recipients is cached as the request's hop status.
func (a *AttemptState) SiteFail(code int, reason string) error {
	soft := Classify(code) == DispositionSoft

	if soft && !a.State.FinalServer() {
		a.logger.Info("Skipping host",
			"host", a.Session.String(),
			"code", code,
			"reason", logging.Sanitize(reason))
		a.State.NoteSkip()
		GetMetrics().HostSkips.Inc()
	} else {
		disp := DispositionHard
		if soft {
			disp = DispositionSoft
		}
		a.failAllPending(disp, reason)
		if soft && a.Request.HopStatus == "" {
			a.Request.HopStatus = reason
		}
	}

	a.checkCode(code)
	return ErrSessionFailed
}

// MesgFail handles rejection of the message envelope or content after a
// successful handshake. Same policy as SiteFail except the hop status cache
// is left alone: a message-level rejection explains this message, not the
// site, so it is useless as a "why we gave up on this host" note for other
// messages.
func (a *AttemptState) MesgFail(code int, reason string) error {
	soft := Classify(code) == DispositionSoft

	if soft && !a.State.FinalServer() {
		a.logger.Info("Skipping host",
			"host", a.Session.String(),
			"code", code,
			"reason", logging.Sanitize(reason))
		a.State.NoteSkip()
		GetMetrics().HostSkips.Inc()
	} else {
		disp := DispositionHard
		if soft {
			disp = DispositionSoft
		}
		a.failAllPending(disp, reason)
	}

	a.checkCode(code)
	return ErrSessionFailed
}

// RcptFail handles rejection of one specific recipient while others on the
// same host may still succeed. Soft error on a non-final server: log the
// skip and leave the recipient pending. Otherwise defer or bounce exactly
// this recipient.
//
// The final-server flag is deliberately left alone in every branch: a hard
// per-recipient rejection must not stop the driver from trying the next
// candidate host for the other, still-pending recipients; and in the soft
// disposition branch the flag was already set or we would not be here.
func (a *AttemptState) RcptFail(code int, rcpt *Recipient, reason string) {
	soft := Classify(code) == DispositionSoft

	if soft && !a.State.FinalServer() {
		a.logger.Info("Skipping recipient",
			"host", a.Session.String(),
			"recipient", rcpt.Addr,
			"code", code,
			"reason", logging.Sanitize(reason))
		a.State.NoteSkip()
		GetMetrics().RecipientSkips.Inc()
	} else {
		disp := DispositionHard
		if soft {
			disp = DispositionSoft
		}
		a.ledger.Finalize(a.State, a.Request, a.Session, rcpt, disp, reason)
	}

	a.checkCode(code)
}

// StreamExcept handles exceptions from the transport layer: a lost
// connection or an exhausted request deadline. Stream exceptions are always
// soft; they reflect a transient transport failure, never a remote policy
// decision, so recipients are deferred, never bounced. Non-final server:
// log why the host is being abandoned. Final server: defer all remaining
// recipients.
//
// An unrecognized kind is a caller contract violation and panics.
func (a *AttemptState) StreamExcept(kind StreamError, description string) error {
	var reason string
	switch kind {
	case StreamEOF:
		reason = fmt.Sprintf("lost connection with %s while %s", a.Session, description)
	case StreamTimeout:
		reason = fmt.Sprintf("conversation with %s timed out while %s", a.Session, description)
	default:
		panic(fmt.Sprintf("smtpclient: unknown stream exception %d", kind))
	}

	if !a.State.FinalServer() {
		a.logger.Info("Abandoning host",
			"host", a.Session.String(),
			"reason", logging.Sanitize(reason))
		a.State.NoteSkip()
		GetMetrics().HostSkips.Inc()
	} else {
		a.Request.EachPending(func(rcpt *Recipient) {
			a.ledger.Finalize(a.State, a.Request, a.Session, rcpt, DispositionSoft, reason)
		})
	}

	return ErrSessionFailed
}

// Delivered records one recipient accepted by the remote host during the
// session dialog.
func (a *AttemptState) Delivered(rcpt *Recipient, reason string) {
	if rcpt.Finalized() {
		return
	}
	a.ledger.Delivered(a.State, a.Request, a.Session, rcpt, reason)
}
