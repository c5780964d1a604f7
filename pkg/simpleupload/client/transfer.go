package client

import (
	"sync"
)

// Status is the lifecycle state of one file transfer
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusComplete  Status = "complete"
	StatusFailed    Status = "failed"
)

// Progress stays below this until storage acknowledges the upload
const maxInFlightProgress = 0.99

// Snapshot is a point-in-time view of a transfer
type Snapshot struct {
	File     File
	Status   Status
	Progress float64
	Err      error
}

// Transfer tracks one file: pending → uploading → complete | failed.
// A pending transfer may also fail directly when it is cancelled before it starts.
type Transfer struct {
	mu       sync.Mutex
	file     File
	status   Status
	progress float64
	parts    []float64
	err      error
	emit     func(Snapshot)
}

func newTransfer(file File, emit func(Snapshot)) *Transfer {
	return &Transfer{file: file, status: StatusPending, emit: emit}
}

// Snapshot returns the current state
func (t *Transfer) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Transfer) snapshotLocked() Snapshot {
	return Snapshot{File: t.file, Status: t.status, Progress: t.progress, Err: t.err}
}

func (t *Transfer) start(parts int) bool {
	return t.update(func() bool {
		if t.status != StatusPending {
			return false
		}
		t.status = StatusUploading
		if parts > 0 {
			t.parts = make([]float64, parts)
		}
		return true
	})
}

// setProgress records single-request progress as a fraction of bytes sent
func (t *Transfer) setProgress(fraction float64) bool {
	return t.update(func() bool {
		if t.status != StatusUploading {
			return false
		}
		p := clampInFlight(fraction)
		if p == t.progress {
			return false
		}
		t.progress = p
		return true
	})
}

// setPartProgress records one part's fraction; file progress is the mean of parts
func (t *Transfer) setPartProgress(index int, fraction float64) bool {
	return t.update(func() bool {
		if t.status != StatusUploading || index < 0 || index >= len(t.parts) {
			return false
		}
		t.parts[index] = fraction
		var sum float64
		for _, p := range t.parts {
			sum += p
		}
		p := clampInFlight(sum / float64(len(t.parts)))
		if p == t.progress {
			return false
		}
		t.progress = p
		return true
	})
}

func (t *Transfer) complete() bool {
	return t.update(func() bool {
		if t.status != StatusUploading {
			return false
		}
		t.status = StatusComplete
		t.progress = 1
		return true
	})
}

func (t *Transfer) fail(err error) bool {
	return t.update(func() bool {
		if t.status != StatusPending && t.status != StatusUploading {
			return false
		}
		t.status = StatusFailed
		t.err = err
		return true
	})
}

func (t *Transfer) update(apply func() bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	ok := apply()
	// emitted under the lock so observers see one transfer's snapshots in order
	if ok && t.emit != nil {
		t.emit(t.snapshotLocked())
	}
	return ok
}

func clampInFlight(fraction float64) float64 {
	switch {
	case fraction < 0:
		return 0
	case fraction > maxInFlightProgress:
		return maxInFlightProgress
	default:
		return fraction
	}
}
