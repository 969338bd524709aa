package outcome

import (
	"sync"
)

// Completion pairs a queue id with the queue-file offset that was fully
// processed.
type Completion struct {
	QueueID string
	Offset  int64
}

// MemoryRecorder is an in-memory Recorder used by tests and by setups that
// do not need durable outcome records. It can be told to fail upcoming
// writes to exercise the caller's persistence-failure handling.
type MemoryRecorder struct {
	mu          sync.Mutex
	Defers      []Record
	Bounces     []Record
	Sents       []Record
	Completions []Completion

	failNext   int
	failStatus int
}

// NewMemoryRecorder returns an empty in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// FailNext makes the next n Defer/Bounce/Sent calls return the given
// non-zero status without recording anything.
func (m *MemoryRecorder) FailNext(n, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
	m.failStatus = status
}

func (m *MemoryRecorder) takeFailure() (int, bool) {
	if m.failNext > 0 {
		m.failNext--
		return m.failStatus, true
	}
	return StatusOK, false
}

// Defer implements Recorder.
func (m *MemoryRecorder) Defer(rec Record) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status, failed := m.takeFailure(); failed {
		return status
	}
	m.Defers = append(m.Defers, rec)
	return StatusOK
}

// Bounce implements Recorder.
func (m *MemoryRecorder) Bounce(rec Record) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status, failed := m.takeFailure(); failed {
		return status
	}
	m.Bounces = append(m.Bounces, rec)
	return StatusOK
}

// Sent implements Recorder.
func (m *MemoryRecorder) Sent(rec Record) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status, failed := m.takeFailure(); failed {
		return status
	}
	m.Sents = append(m.Sents, rec)
	return StatusOK
}

// Completed implements Recorder.
func (m *MemoryRecorder) Completed(queueID string, offset int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Completions = append(m.Completions, Completion{QueueID: queueID, Offset: offset})
}

// Counts returns the number of recorded defers, bounces and sent records.
func (m *MemoryRecorder) Counts() (defers, bounces, sents int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Defers), len(m.Bounces), len(m.Sents)
}
