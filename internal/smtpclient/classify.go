package smtpclient

// Disposition classifies a remote SMTP reply code for delivery policy
// purposes.
type Disposition int

const (
	// DispositionNone means the code is neither 4xx nor 5xx. The failure
	// entry points are only invoked on 4xx/5xx replies, so seeing this there
	// indicates a protocol anomaly.
	DispositionNone Disposition = iota

	// DispositionSoft is a 4xx reply: temporary, retry later.
	DispositionSoft

	// DispositionHard is a 5xx reply: permanent, the recipient is
	// undeliverable via this route.
	DispositionHard
)

// String returns a human-readable disposition name.
func (d Disposition) String() string {
	switch d {
	case DispositionSoft:
		return "soft"
	case DispositionHard:
		return "hard"
	default:
		return "none"
	}
}

// Classify maps a 3-digit SMTP reply code to a disposition based on its
// class digit.
func Classify(code int) Disposition {
	switch code / 100 {
	case 4:
		return DispositionSoft
	case 5:
		return DispositionHard
	default:
		return DispositionNone
	}
}

// IsProtocolAnomaly reports whether a reply code suggests that the local
// client misused the protocol, rather than the remote host rejecting the
// message. RFC 821 reserves x0z replies for syntax errors and unimplemented
// or superfluous commands, and RFC 1869 section 6.1 assigns 555 to MAIL/RCPT
// parameter problems. Callers accumulate ErrProtocol into the transaction's
// error mask when this returns true, so that the postmaster gets a session
// transcript.
func IsProtocolAnomaly(code int) bool {
	class := code / 100
	if class != 4 && class != 5 {
		return true
	}
	if code == 555 {
		return true
	}
	return code >= 500 && code < 510
}
