package smtpclient

// ErrorMask accumulates error-classification bits across one delivery
// attempt. The surrounding system uses ErrProtocol to decide whether the
// postmaster should receive a session transcript.
type ErrorMask int

const (
	// ErrProtocol marks a protocol anomaly: a reply code of an unexpected
	// class, or one from the syntax-error range, suggesting the local client
	// rather than the remote host is at fault.
	ErrProtocol ErrorMask = 1 << iota
)

// TransactionState aggregates the mutable outcome of one DeliveryRequest's
// attempt: the cumulative status mask, the error-classification mask, the
// final-server flag, and whether any host or recipient was merely skipped.
// One instance per DeliveryRequest; not safe for concurrent use.
type TransactionState struct {
	status      int
	errorMask   ErrorMask
	finalServer bool
	skipped     bool
}

// FoldStatus ORs a finalization outcome code into the cumulative status.
func (s *TransactionState) FoldStatus(code int) {
	s.status |= code
}

// Status returns the cumulative status mask: zero when every finalization
// persisted cleanly, non-zero when any outcome record failed to write.
func (s *TransactionState) Status() int {
	return s.status
}

// NoteError ORs error-classification bits into the error mask.
func (s *TransactionState) NoteError(m ErrorMask) {
	s.errorMask |= m
}

// ErrorMask returns the accumulated error-classification bits.
func (s *TransactionState) ErrorMask() ErrorMask {
	return s.errorMask
}

// MarkFinal raises the final-server flag: no further candidate host will be
// tried, and every subsequent failure must disposition recipients instead of
// skipping them. The flag is monotonic; there is no way to clear it.
func (s *TransactionState) MarkFinal() {
	s.finalServer = true
}

// FinalServer reports whether the current host is the last that will be
// tried for this message.
func (s *TransactionState) FinalServer() bool {
	return s.finalServer
}

// NoteSkip records that a host or recipient was passed over for another
// candidate. Kept separate from the status mask so "we skipped something"
// is never confused with "an outcome record failed to persist".
func (s *TransactionState) NoteSkip() {
	s.skipped = true
}

// Skipped reports whether any informational skip occurred during the
// attempt.
func (s *TransactionState) Skipped() bool {
	return s.skipped
}

// Failed reports whether the attempt as a whole must be retried: either an
// outcome record failed to persist or some recipient was skipped and still
// awaits another attempt.
func (s *TransactionState) Failed() bool {
	return s.status != 0 || s.skipped
}
