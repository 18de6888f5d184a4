package assignment

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncerRunsAfterQuietPeriod(t *testing.T) {
	mock := clock.NewMock()
	d := NewDebouncer(mock, 300*time.Millisecond)

	ran := make(chan struct{})
	d.Schedule(func() { close(ran) }, func() { t.Error("task must not be dropped") })
	assert.True(t, d.Pending())

	mock.Add(299 * time.Millisecond)
	select {
	case <-ran:
		t.Fatal("ran before the delay elapsed")
	default:
	}

	mock.Add(time.Millisecond)
	wait(t, ran)
	assert.False(t, d.Pending())
}

func TestDebouncerDropsReplacedTask(t *testing.T) {
	mock := clock.NewMock()
	d := NewDebouncer(mock, 300*time.Millisecond)

	var dropped, firstRan atomic.Bool
	d.Schedule(func() { firstRan.Store(true) }, func() { dropped.Store(true) })

	mock.Add(200 * time.Millisecond)
	ran := make(chan struct{})
	d.Schedule(func() { close(ran) }, func() { t.Error("second task must not be dropped") })
	require.True(t, dropped.Load())

	mock.Add(300 * time.Millisecond)
	wait(t, ran)
	assert.False(t, firstRan.Load())
}

func TestDebouncerCancel(t *testing.T) {
	mock := clock.NewMock()
	d := NewDebouncer(mock, 300*time.Millisecond)

	var ran, dropped atomic.Bool
	d.Schedule(func() { ran.Store(true) }, func() { dropped.Store(true) })
	d.Cancel()
	d.Cancel()

	mock.Add(time.Second)
	assert.True(t, dropped.Load())
	assert.False(t, ran.Load())
	assert.False(t, d.Pending())
}
