package smtpclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusmta/corvus/internal/outcome"
)

func newTestAttempt(t *testing.T, nrcpt int) (*AttemptState, *outcome.MemoryRecorder) {
	t.Helper()
	rec := outcome.NewMemoryRecorder()
	a := NewAttemptState(testRequest(nrcpt), rec, nil)
	a.Session = testSession()
	return a, rec
}

func TestSiteFailSoftNonFinalSkips(t *testing.T) {
	a, rec := newTestAttempt(t, 2)

	err := a.SiteFail(421, "too busy")
	assert.ErrorIs(t, err, ErrSessionFailed)

	// Recipients stay pending for the next candidate host.
	assert.Equal(t, 2, a.Request.PendingCount())
	defers, bounces, _ := rec.Counts()
	assert.Zero(t, defers)
	assert.Zero(t, bounces)

	assert.True(t, a.State.Skipped())
	assert.False(t, a.State.FinalServer())
	assert.Zero(t, a.State.Status())
	assert.Empty(t, a.Request.HopStatus)
}

func TestSiteFailSoftFinalDefersAll(t *testing.T) {
	a, rec := newTestAttempt(t, 2)
	a.State.MarkFinal()

	err := a.SiteFail(450, "temp fail")
	assert.ErrorIs(t, err, ErrSessionFailed)

	assert.Zero(t, a.Request.PendingCount())
	require.Len(t, rec.Defers, 2)
	for _, d := range rec.Defers {
		assert.Equal(t, "temp fail", d.Reason)
	}
	assert.Equal(t, "temp fail", a.Request.HopStatus)
	assert.True(t, a.State.FinalServer())
}

func TestSiteFailHardBouncesAllAndRaisesFinal(t *testing.T) {
	a, rec := newTestAttempt(t, 3)

	err := a.SiteFail(550, "access denied")
	assert.ErrorIs(t, err, ErrSessionFailed)

	assert.Zero(t, a.Request.PendingCount())
	require.Len(t, rec.Bounces, 3)
	assert.Empty(t, rec.Defers)
	assert.True(t, a.State.FinalServer())

	// A hard failure never populates the soft hop-status cache.
	assert.Empty(t, a.Request.HopStatus)
}

func TestSiteFailHopStatusOnlyFirstReasonWins(t *testing.T) {
	a, _ := newTestAttempt(t, 2)
	a.State.MarkFinal()

	a.SiteFail(450, "first reason")
	a.SiteFail(451, "second reason")
	assert.Equal(t, "first reason", a.Request.HopStatus)
}

func TestMesgFailDoesNotTouchHopStatus(t *testing.T) {
	a, rec := newTestAttempt(t, 3)

	// Only candidate host: a hard message rejection bounces everyone.
	err := a.MesgFail(550, "message rejected")
	assert.ErrorIs(t, err, ErrSessionFailed)

	assert.Zero(t, a.Request.PendingCount())
	require.Len(t, rec.Bounces, 3)
	for _, b := range rec.Bounces {
		assert.Equal(t, "message rejected", b.Reason)
	}
	assert.True(t, a.State.FinalServer())
	assert.Empty(t, a.Request.HopStatus)
}

func TestMesgFailSoftFinalDefersWithoutHopStatus(t *testing.T) {
	a, rec := newTestAttempt(t, 2)
	a.State.MarkFinal()

	a.MesgFail(452, "insufficient storage")
	require.Len(t, rec.Defers, 2)
	assert.Empty(t, a.Request.HopStatus)
}

func TestRcptFailSoftNonFinalSkipsOneRecipient(t *testing.T) {
	a, rec := newTestAttempt(t, 2)

	a.RcptFail(450, a.Request.Recipients[0], "mailbox busy")

	assert.Equal(t, 2, a.Request.PendingCount())
	defers, bounces, _ := rec.Counts()
	assert.Zero(t, defers)
	assert.Zero(t, bounces)
	assert.True(t, a.State.Skipped())
	assert.False(t, a.State.FinalServer())
}

func TestRcptFailHardBouncesOnlyThatRecipient(t *testing.T) {
	a, rec := newTestAttempt(t, 3)

	a.RcptFail(550, a.Request.Recipients[1], "user unknown")

	// Exactly one bounced; the others stay pending for the next host.
	assert.Equal(t, 2, a.Request.PendingCount())
	require.Len(t, rec.Bounces, 1)
	assert.Equal(t, int64(200), rec.Bounces[0].Offset)

	// A hard per-recipient rejection must not stop us from trying the next
	// candidate host for the remaining recipients.
	assert.False(t, a.State.FinalServer())
}

func TestRcptFailSoftFinalDefersRecipient(t *testing.T) {
	a, rec := newTestAttempt(t, 2)
	a.State.MarkFinal()

	a.RcptFail(452, a.Request.Recipients[0], "over quota")

	assert.Equal(t, 1, a.Request.PendingCount())
	require.Len(t, rec.Defers, 1)
	assert.True(t, a.State.FinalServer())
}

func TestStreamExceptNonFinalSkips(t *testing.T) {
	a, rec := newTestAttempt(t, 2)

	err := a.StreamExcept(StreamEOF, "sending RCPT TO")
	assert.ErrorIs(t, err, ErrSessionFailed)

	assert.Equal(t, 2, a.Request.PendingCount())
	defers, _, _ := rec.Counts()
	assert.Zero(t, defers)
	assert.True(t, a.State.Skipped())
}

func TestStreamExceptFinalDefersWithComposedReason(t *testing.T) {
	a, rec := newTestAttempt(t, 2)
	a.State.MarkFinal()

	a.StreamExcept(StreamTimeout, "receiving the initial server greeting")

	require.Len(t, rec.Defers, 2)
	assert.Equal(t,
		"conversation with mx1.example.net[192.0.2.10] timed out while receiving the initial server greeting",
		rec.Defers[0].Reason)

	// Transport trouble is always transient: never a bounce.
	assert.Empty(t, rec.Bounces)
}

func TestStreamExceptLostConnectionReason(t *testing.T) {
	a, rec := newTestAttempt(t, 1)
	a.State.MarkFinal()

	a.StreamExcept(StreamEOF, "sending message body")
	require.Len(t, rec.Defers, 1)
	assert.Equal(t,
		"lost connection with mx1.example.net[192.0.2.10] while sending message body",
		rec.Defers[0].Reason)
}

func TestStreamExceptUnknownKindPanics(t *testing.T) {
	a, _ := newTestAttempt(t, 1)
	assert.Panics(t, func() {
		a.StreamExcept(StreamError(42), "doing something")
	})
}

func TestProtocolAnomalyAccumulates(t *testing.T) {
	a, _ := newTestAttempt(t, 1)

	a.SiteFail(421, "busy")
	assert.Zero(t, a.State.ErrorMask()&ErrProtocol)

	// 501 is in the syntax-error range: our command was malformed.
	a.RcptFail(501, a.Request.Recipients[0], "syntax error in parameters")
	assert.NotZero(t, a.State.ErrorMask()&ErrProtocol)
}

func TestFinalServerFlagIsMonotonic(t *testing.T) {
	a, _ := newTestAttempt(t, 4)

	a.SiteFail(550, "no")
	require.True(t, a.State.FinalServer())

	// Nothing any entry point does afterwards clears the flag.
	a.MesgFail(450, "later")
	a.StreamExcept(StreamEOF, "sending QUIT")
	assert.True(t, a.State.FinalServer())
}

func TestRecipientAccountingInvariant(t *testing.T) {
	a, rec := newTestAttempt(t, 5)
	total := len(a.Request.Recipients)

	check := func() {
		d, b, s := rec.Counts()
		assert.Equal(t, total, a.Request.PendingCount()+d+b+s,
			"finalized + pending must always equal the recipient count")
	}

	check()
	a.RcptFail(550, a.Request.Recipients[2], "user unknown")
	check()
	a.RcptFail(450, a.Request.Recipients[0], "busy") // skip, stays pending
	check()
	a.SiteFail(550, "refused")
	check()
	assert.Zero(t, a.Request.PendingCount())
}

func TestPersistFailureFoldsIntoStatus(t *testing.T) {
	a, rec := newTestAttempt(t, 2)
	rec.FailNext(1, outcome.StatusWriteError)

	a.SiteFail(550, "refused")

	// One record failed to write: that recipient is still pending and the
	// attempt as a whole reports failure.
	assert.Equal(t, 1, a.Request.PendingCount())
	assert.Equal(t, outcome.StatusWriteError, a.State.Status())
	assert.True(t, a.State.Failed())
	require.Len(t, rec.Bounces, 1)
}

func TestSkipIsDistinctFromStatus(t *testing.T) {
	a, _ := newTestAttempt(t, 1)

	a.SiteFail(421, "busy")

	// A skip marks the attempt as failed without polluting the outcome-code
	// accumulator.
	assert.True(t, a.State.Skipped())
	assert.Zero(t, a.State.Status())
	assert.True(t, a.State.Failed())
}
