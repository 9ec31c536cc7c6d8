package connectivity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liftsync/internal/syncq"
)

type countingDrainer struct {
	mu    sync.Mutex
	calls int
	ran   chan struct{}
}

func (d *countingDrainer) Drain(context.Context) (syncq.Report, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	if d.ran != nil {
		d.ran <- struct{}{}
	}
	return syncq.Report{}, nil
}

func (d *countingDrainer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func TestScheduler_RunOnceSkipsDrainWhenOffline(t *testing.T) {
	p := NewStatic(false)
	d := &countingDrainer{}
	s := NewScheduler(NewObserver(p), d, time.Hour)

	s.RunOnce(context.Background())
	assert.Equal(t, 0, d.count())

	p.Set(true)
	s.RunOnce(context.Background())
	assert.Equal(t, 1, d.count())
}

func TestScheduler_RunOnceReconcilesOnReconnect(t *testing.T) {
	o := NewObserver(NewStatic(true))
	r := &fakeReconciler{}
	o.SetReconciler(r)
	d := &countingDrainer{}

	NewScheduler(o, d, time.Hour).RunOnce(context.Background())

	assert.Equal(t, 1, r.calls)
	assert.Equal(t, 1, d.count())
}

func TestScheduler_RequestWake(t *testing.T) {
	d := &countingDrainer{ran: make(chan struct{}, 4)}
	s := NewScheduler(NewObserver(NewStatic(true)), d, time.Hour)

	assert.ErrorIs(t, s.RequestWake(), ErrSchedulerStopped)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	require.NoError(t, s.RequestWake())
	select {
	case <-d.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("wake did not trigger a drain")
	}
	assert.Len(t, s.cron.Entries(), 1)
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	s := NewScheduler(NewObserver(NewStatic(true)), &countingDrainer{}, 0)
	assert.Equal(t, DefaultInterval, s.interval)

	s.Start(context.Background())
	s.Stop()
	s.Stop()
	assert.ErrorIs(t, s.RequestWake(), ErrSchedulerStopped)
}
