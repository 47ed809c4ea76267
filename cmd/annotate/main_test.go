package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"citymonitor/internal/detection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStatus struct {
	state atomic.Int32
}

func (s *stubStatus) Status() detection.Status {
	st := detection.Status{State: detection.LoopState(s.state.Load())}
	if st.State == detection.StateError {
		st.Error = "Failed to load custom model: 404 Not Found"
	}
	return st
}

func TestWatchStatus_FailsOnLoadError(t *testing.T) {
	status := &stubStatus{}
	status.state.Store(int32(detection.StateLoading))

	errs := make(chan error, 1)
	go func() { errs <- watchStatus(context.Background(), status, time.Millisecond) }()

	time.Sleep(10 * time.Millisecond)
	status.state.Store(int32(detection.StateError))

	select {
	case err := <-errs:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404 Not Found")
	case <-time.After(2 * time.Second):
		t.Fatal("watchStatus did not report the failed load")
	}
}

func TestWatchStatus_StopsWithContext(t *testing.T) {
	status := &stubStatus{}
	status.state.Store(int32(detection.StateDetecting))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.NoError(t, watchStatus(ctx, status, time.Millisecond))
}

func TestWaitForFrame(t *testing.T) {
	var written atomic.Uint64
	errs := make(chan error, 1)
	go func() { errs <- waitForFrame(context.Background(), written.Load, 3, time.Millisecond) }()

	written.Store(2)
	select {
	case <-errs:
		t.Fatal("returned before the last frame was written")
	case <-time.After(20 * time.Millisecond):
	}

	written.Store(3)
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, errDone)
	case <-time.After(2 * time.Second):
		t.Fatal("waitForFrame did not return after the last frame")
	}

	assert.ErrorIs(t, waitForFrame(context.Background(), written.Load, 0, time.Millisecond), errDone, "empty input finishes at once")
}
