package syncq

import (
	"time"

	"github.com/roach88/liftsync/internal/model"
)

// DispatchResult is the outcome of one action within a drain cycle.
type DispatchResult string

const (
	ResultSynced       DispatchResult = "synced"
	ResultRetry        DispatchResult = "retry"
	ResultDeadLettered DispatchResult = "dead-lettered"
)

// Recorder observes queue and sync activity. The connectivity observer
// and the metrics collectors implement it.
type Recorder interface {
	// PendingAdded is called after an action is appended.
	PendingAdded(delta int)
	// PendingSet reports the queue size after a cycle.
	PendingSet(n int)
	SyncStarted(at time.Time)
	// SyncFinished is called once per non-skipped cycle. err is nil on success.
	SyncFinished(at time.Time, err error)
	ActionDispatched(entity model.EntityKind, result DispatchResult)
}

// Waker asks the platform to schedule a background sync soon.
type Waker interface {
	RequestWake() error
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) PendingAdded(int) {}
func (NopRecorder) PendingSet(int) {}
func (NopRecorder) SyncStarted(time.Time) {}
func (NopRecorder) SyncFinished(time.Time, error) {}
func (NopRecorder) ActionDispatched(model.EntityKind, DispatchResult) {}

// Recorders fans every call out to rs in order. Nil entries are skipped.
func Recorders(rs ...Recorder) Recorder {
	out := make(multiRecorder, 0, len(rs))
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

type multiRecorder []Recorder

func (m multiRecorder) PendingAdded(delta int) {
	for _, r := range m {
		r.PendingAdded(delta)
	}
}

func (m multiRecorder) PendingSet(n int) {
	for _, r := range m {
		r.PendingSet(n)
	}
}

func (m multiRecorder) SyncStarted(at time.Time) {
	for _, r := range m {
		r.SyncStarted(at)
	}
}

func (m multiRecorder) SyncFinished(at time.Time, err error) {
	for _, r := range m {
		r.SyncFinished(at, err)
	}
}

func (m multiRecorder) ActionDispatched(entity model.EntityKind, result DispatchResult) {
	for _, r := range m {
		r.ActionDispatched(entity, result)
	}
}
