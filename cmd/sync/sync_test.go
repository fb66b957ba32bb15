package sync

import (
	"bytes"
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"

	"github.com/sidkik/launchpi/pkg/launch"
)

type fakeSynchronizer struct {
	calls chan struct{}
	errs  []error
}

func (s *fakeSynchronizer) Synchronize(context.Context, launch.ProgressMonitor) error {
	var err error
	if len(s.errs) > 0 {
		err, s.errs = s.errs[0], s.errs[1:]
	}
	s.calls <- struct{}{}
	return err
}

func TestSyncOnChange(t *testing.T) {
	stdout = bytes.NewBuffer(nil)
	fakeClock := clockwork.NewFakeClock()
	clock = fakeClock

	s := &fakeSynchronizer{
		calls: make(chan struct{}, 10),
		// A failed sync doesn't stop the loop.
		errs: []error{assert.AnError},
	}
	var saves int
	events := make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- syncOnChange(ctx, s, func() { saves++ }, events)
	}()

	// The initial sync happens right away.
	<-s.calls

	// Changes are synced once the classpath has been quiet for a while.
	events <- struct{}{}
	fakeClock.BlockUntil(1)
	fakeClock.Advance(quietPeriod)
	<-s.calls

	cancel()
	assert.NoError(t, <-done)
	assert.Equal(t, 2, saves)
}

func TestSyncOnChangeCanceled(t *testing.T) {
	stdout = bytes.NewBuffer(nil)
	s := &fakeSynchronizer{
		calls: make(chan struct{}, 1),
		errs:  []error{launch.Error{Kind: launch.Canceled, Err: context.Canceled}},
	}

	err := syncOnChange(context.Background(), s, func() {}, make(chan struct{}))
	assert.NoError(t, err)
	assert.Len(t, s.calls, 1)
}

func TestWaitForQuiet(t *testing.T) {
	fakeClock := clockwork.NewFakeClock()
	clock = fakeClock

	events := make(chan struct{})
	result := make(chan bool)
	go func() {
		result <- waitForQuiet(context.Background(), events)
	}()

	// Each event restarts the wait.
	fakeClock.BlockUntil(1)
	events <- struct{}{}
	fakeClock.BlockUntil(2)
	fakeClock.Advance(quietPeriod)
	assert.True(t, <-result)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, waitForQuiet(ctx, events))
}

func TestSyncOnce(t *testing.T) {
	out := bytes.NewBuffer(nil)
	stdout = out

	s := &fakeSynchronizer{calls: make(chan struct{}, 2), errs: []error{nil, assert.AnError}}
	assert.NoError(t, syncOnce(context.Background(), s))
	assert.Contains(t, out.String(), "Sync complete")

	out.Reset()
	assert.Equal(t, assert.AnError, syncOnce(context.Background(), s))
	assert.Contains(t, out.String(), "Sync failed")
}
