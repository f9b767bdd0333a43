package watcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/HopNGo/TripWallet/internal/integrations/travelapi"
	"github.com/HopNGo/TripWallet/internal/models"
	"github.com/stretchr/testify/require"
)

type scriptedClient struct {
	mu       sync.Mutex
	statuses []string
	errs     []error
	calls    []time.Time
}

// nextResponse отдаёт по одному элементу сценария; последний повторяется.
func (c *scriptedClient) GetBookingStatus(ctx context.Context, bookingID string) (travelapi.BookingStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := len(c.calls)
	c.calls = append(c.calls, time.Now())

	if len(c.errs) > 0 {
		j := i
		if j >= len(c.errs) {
			j = len(c.errs) - 1
		}
		if c.errs[j] != nil {
			return travelapi.BookingStatus{}, c.errs[j]
		}
	}
	j := i
	if j >= len(c.statuses) {
		j = len(c.statuses) - 1
	}
	return travelapi.BookingStatus{Status: c.statuses[j], UpdatedAt: time.Now().UTC()}, nil
}

func (c *scriptedClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *scriptedClient) callTimes() []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Time{}, c.calls...)
}

func TestWatcher_ImmediateConfirmed(t *testing.T) {
	c := &scriptedClient{statuses: []string{models.BookingStatusConfirmed}}

	var gotSuccess travelapi.BookingStatus
	w := New(c, Config{
		BookingID: "b-1",
		Interval:  10 * time.Millisecond,
		OnSuccess: func(st travelapi.BookingStatus) { gotSuccess = st },
	})

	w.Start(context.Background())
	<-w.Done()

	// Успех на первом же опросе, второй запрос не выпускается.
	require.Equal(t, 1, c.callCount())
	require.Equal(t, models.BookingStatusConfirmed, gotSuccess.Status)

	snap := w.Snapshot()
	require.Equal(t, StateSucceeded, snap.State)
	require.True(t, snap.IsComplete)
	require.True(t, snap.IsSuccess)
	require.Equal(t, 1, snap.Attempts)

	// Никакого второго запроса и после паузы.
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, c.callCount())
}

func TestWatcher_PendingTimesOut(t *testing.T) {
	c := &scriptedClient{statuses: []string{models.BookingStatusPending}}

	timedOut := make(chan struct{})
	w := New(c, Config{
		BookingID:   "b-1",
		Interval:    10 * time.Millisecond,
		MaxAttempts: 3,
		OnTimeout:   func() { close(timedOut) },
	})

	w.Start(context.Background())
	<-w.Done()

	select {
	case <-timedOut:
	default:
		t.Fatal("timeout callback not invoked")
	}

	times := c.callTimes()
	require.Len(t, times, 3)
	for i := 1; i < len(times); i++ {
		require.GreaterOrEqual(t, times[i].Sub(times[i-1]), 10*time.Millisecond)
	}

	snap := w.Snapshot()
	require.Equal(t, StateTimedOut, snap.State)
	require.True(t, snap.IsFailure)
	require.Equal(t, 3, snap.Attempts)
}

func TestWatcher_CancelledFails(t *testing.T) {
	c := &scriptedClient{statuses: []string{models.BookingStatusPending, models.BookingStatusCancelled}}

	var gotFailure travelapi.BookingStatus
	var changes []string
	w := New(c, Config{
		BookingID:      "b-1",
		Interval:       5 * time.Millisecond,
		OnFailure:      func(st travelapi.BookingStatus) { gotFailure = st },
		OnStatusChange: func(st travelapi.BookingStatus) { changes = append(changes, st.Status) },
	})

	w.Start(context.Background())
	<-w.Done()

	require.Equal(t, models.BookingStatusCancelled, gotFailure.Status)
	require.Equal(t, []string{models.BookingStatusPending, models.BookingStatusCancelled}, changes)
	require.Equal(t, StateFailed, w.Snapshot().State)
}

func TestWatcher_StopPreventsFurtherRequests(t *testing.T) {
	c := &scriptedClient{statuses: []string{models.BookingStatusPending}}

	w := New(c, Config{BookingID: "b-1", Interval: 20 * time.Millisecond, MaxAttempts: 100})
	w.Start(context.Background())

	// Дожидаемся первого опроса, затем останавливаем, пока следующий запланирован.
	require.Eventually(t, func() bool { return c.callCount() >= 1 }, time.Second, time.Millisecond)
	w.Stop()
	<-w.Done()

	n := c.callCount()
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, n, c.callCount())
	require.Equal(t, StateIdle, w.Snapshot().State)
}

func TestWatcher_FetchErrorsConsumeBudget(t *testing.T) {
	boom := errors.New("status endpoint down")
	c := &scriptedClient{
		statuses: []string{models.BookingStatusPending},
		errs:     []error{boom, boom, boom},
	}

	timedOut := false
	w := New(c, Config{
		BookingID:   "b-1",
		Interval:    5 * time.Millisecond,
		MaxAttempts: 3,
		OnTimeout:   func() { timedOut = true },
	})

	w.Start(context.Background())
	<-w.Done()

	// Ошибки не прерывают цикл, но съедают тот же бюджет попыток.
	require.True(t, timedOut)
	require.Equal(t, 3, c.callCount())
	snap := w.Snapshot()
	require.Equal(t, StateTimedOut, snap.State)
	require.Contains(t, snap.LastError, "status endpoint down")
}

func TestWatcher_RestartAfterTerminal(t *testing.T) {
	c := &scriptedClient{statuses: []string{models.BookingStatusConfirmed}}
	w := New(c, Config{BookingID: "b-1", Interval: 5 * time.Millisecond})

	w.Start(context.Background())
	<-w.Done()
	require.Equal(t, StateSucceeded, w.Snapshot().State)

	w.Start(context.Background())
	<-w.Done()
	require.Equal(t, StateSucceeded, w.Snapshot().State)
	require.Equal(t, 2, c.callCount())
}

func TestWatcher_ContextCancelGoesIdle(t *testing.T) {
	c := &scriptedClient{statuses: []string{models.BookingStatusPending}}
	w := New(c, Config{BookingID: "b-1", Interval: 20 * time.Millisecond, MaxAttempts: 100})

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	require.Eventually(t, func() bool { return c.callCount() >= 1 }, time.Second, time.Millisecond)
	cancel()
	<-w.Done()

	require.Equal(t, StateIdle, w.Snapshot().State)
}
