package smtpclient

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeadlineBudgetFloorRateExtension(t *testing.T) {
	// ceiling 100s, floor rate 500 B/s, starting budget 100s
	b := StartBudget(100*time.Second, 100*time.Second, 500)

	// 1000 bytes in 3s: 100 - 3 + 1000/500 = 99s
	b.OnRead(1000, 3*time.Second)
	assert.Equal(t, 99*time.Second, b.Remaining())
	assert.False(t, b.Exhausted())

	// a stall transfers nothing and earns nothing back
	b.OnRead(0, 49*time.Second)
	assert.Equal(t, 50*time.Second, b.Remaining())
	assert.False(t, b.Exhausted())

	b.OnRead(0, 60*time.Second)
	assert.Equal(t, -10*time.Second, b.Remaining())
	assert.True(t, b.Exhausted())
}

func TestDeadlineBudgetCeilingClamp(t *testing.T) {
	b := StartBudget(50*time.Second, 60*time.Second, 100)

	// 10000 bytes would grant 100s back; the ceiling caps the budget.
	b.OnRead(10000, 1*time.Second)
	assert.Equal(t, 60*time.Second, b.Remaining())
}

func TestDeadlineBudgetFloorRateDisabled(t *testing.T) {
	b := StartBudget(10*time.Second, 10*time.Second, 0)

	// Bytes transferred earn nothing when the floor rate is disabled.
	b.OnRead(1_000_000, 4*time.Second)
	assert.Equal(t, 6*time.Second, b.Remaining())
}

func TestDeadlineBudgetExhaustionIsTerminal(t *testing.T) {
	b := StartBudget(1*time.Second, 10*time.Second, 500)

	b.OnRead(0, 2*time.Second)
	require.True(t, b.Exhausted())

	// No later read rescues an exhausted budget, however fast.
	b.OnRead(1_000_000, time.Millisecond)
	assert.True(t, b.Exhausted())
	assert.LessOrEqual(t, b.Remaining(), time.Duration(0))
}

func TestTimedReaderFailsWhenExhausted(t *testing.T) {
	b := StartBudget(time.Nanosecond, time.Second, 0)
	b.OnRead(0, time.Second) // drain it

	r := NewTimedReader(bytes.NewReader([]byte("220 ok\r\n")), b)
	_, err := r.Read(make([]byte, 16))
	assert.ErrorIs(t, err, ErrDeadlineExhausted)
}

func TestTimedReaderPassesThrough(t *testing.T) {
	b := StartBudget(time.Minute, time.Minute, 0)
	r := NewTimedReader(bytes.NewReader([]byte("250 ok\r\n")), b)

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "250 ok\r\n", string(data))
	assert.False(t, b.Exhausted())
}
