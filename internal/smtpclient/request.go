package smtpclient

import (
	"fmt"
	"time"
)

// Recipient is one destination address within a DeliveryRequest. Offset is
// the recipient's queue-file offset and doubles as the finalization marker:
// non-zero means the recipient still awaits disposition, zero means it has
// been delivered, deferred or bounced and must never be finalized again.
type Recipient struct {
	OriginalAddr string
	Addr         string
	Offset       int64
}

// Finalized reports whether the recipient has already been dispositioned.
func (r *Recipient) Finalized() bool {
	return r.Offset == 0
}

// DeliveryRequest is one queued message being delivered to an ordered set of
// recipients in this attempt. Insertion order is delivery priority and is
// preserved everywhere recipients are walked.
type DeliveryRequest struct {
	QueueID     string
	Recipients  []*Recipient
	ArrivalTime time.Time
	TraceFlags  int

	// HopStatus caches the first soft site-failure reason seen, for the
	// eventual bounce/defer explanation. Message-level rejections do not
	// populate it; they describe this message, not the site.
	HopStatus string
}

// EachPending walks the still-pending recipients in insertion order. The
// walk is lazy: a recipient finalized earlier in the same walk is skipped.
// This is the only sanctioned path to recipients awaiting disposition.
func (r *DeliveryRequest) EachPending(fn func(*Recipient)) {
	for _, rcpt := range r.Recipients {
		if rcpt.Finalized() {
			continue
		}
		fn(rcpt)
	}
}

// PendingCount returns how many recipients still await disposition.
func (r *DeliveryRequest) PendingCount() int {
	n := 0
	for _, rcpt := range r.Recipients {
		if !rcpt.Finalized() {
			n++
		}
	}
	return n
}

// Session identifies the remote host currently being talked to. It is scoped
// to one host attempt and replaced when moving to the next candidate.
type Session struct {
	Name string
	Addr string
}

// String renders the session identity as name[addr], the form used in
// outcome records and skip notices. A nil session renders as "none".
func (s *Session) String() string {
	if s == nil {
		return "none"
	}
	return fmt.Sprintf("%s[%s]", s.Name, s.Addr)
}
