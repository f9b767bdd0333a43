package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/HopNGo/TripWallet/internal/integrations/travelapi"
	"github.com/HopNGo/TripWallet/internal/models"
	"github.com/HopNGo/TripWallet/internal/services/syncer"
	"github.com/HopNGo/TripWallet/internal/services/watcher"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type confirmedClient struct{}

func (confirmedClient) GetBookingStatus(context.Context, string) (travelapi.BookingStatus, error) {
	return travelapi.BookingStatus{Status: models.BookingStatusConfirmed, UpdatedAt: time.Now()}, nil
}

type fakeWallet struct {
	mu      sync.Mutex
	online  bool
	syncErr error
	syncs   int
	watched []string
}

func (f *fakeWallet) SyncWithServer(context.Context) (syncer.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncs++
	if f.syncErr != nil {
		return syncer.Result{}, f.syncErr
	}
	return syncer.Result{Bookings: 3, SyncedAt: time.Now().UTC()}, nil
}

func (f *fakeWallet) WatchBooking(id string) *watcher.Watcher {
	f.mu.Lock()
	f.watched = append(f.watched, id)
	f.mu.Unlock()
	return watcher.New(confirmedClient{}, watcher.Config{BookingID: id, Interval: time.Millisecond, MaxAttempts: 3})
}

func (f *fakeWallet) Online() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online
}

func (f *fakeWallet) syncCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.syncs
}

type fakeRepo struct {
	mu      sync.Mutex
	pending []*models.Booking
}

func (f *fakeRepo) ListPendingBookings(context.Context, int) ([]*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending, nil
}

func (f *fakeRepo) setPending(bs []*models.Booking) {
	f.mu.Lock()
	f.pending = bs
	f.mu.Unlock()
}

type fakeLimiter struct {
	allowed bool
	calls   int
}

func (f *fakeLimiter) Allow(context.Context, string, int64, time.Duration) (bool, int64, error) {
	f.calls++
	return f.allowed, int64(f.calls), nil
}

func TestAgent_TriggerRunsSyncAndWatchesPending(t *testing.T) {
	w := &fakeWallet{online: true}
	repo := &fakeRepo{pending: []*models.Booking{
		{ID: "b1", Status: models.BookingStatusPending},
		{ID: "b2", Status: models.BookingStatusPending},
	}}
	a := New(w, repo, nil).WithSettings(time.Hour, 10, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	a.Trigger()
	require.Eventually(t, func() bool { return w.syncCount() == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return len(w.watched) == 2
	}, time.Second, time.Millisecond)

	st := a.Stats()
	require.Equal(t, int64(1), st.TotalSyncs)
	require.NotNil(t, st.LastSyncedAt)

	// watcher-ы подтверждаются мгновенно и вычищаются следующим циклом
	repo.setPending(nil)
	require.Eventually(t, func() bool {
		a.Trigger()
		return a.Stats().ActiveWatchers == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestAgent_OfflineSkipsSync(t *testing.T) {
	w := &fakeWallet{online: false}
	a := New(w, &fakeRepo{}, nil).WithSettings(time.Hour, 10, 0)

	a.runOnce(context.Background())
	require.Equal(t, 0, w.syncCount())
	require.Equal(t, int64(1), a.Stats().SkippedOffline)
}

func TestAgent_RateLimitBlocksSync(t *testing.T) {
	w := &fakeWallet{online: true}
	rl := &fakeLimiter{allowed: false}
	a := New(w, &fakeRepo{}, rl).WithSettings(time.Hour, 10, 60)

	a.runOnce(context.Background())
	require.Equal(t, 1, rl.calls)
	require.Equal(t, 0, w.syncCount())
}

func TestAgent_SyncErrorRecorded(t *testing.T) {
	w := &fakeWallet{online: true, syncErr: errors.New("remote api down")}
	a := New(w, &fakeRepo{}, nil).WithSettings(time.Hour, 10, 0)

	a.runOnce(context.Background())
	st := a.Stats()
	require.Equal(t, int64(1), st.TotalSyncErrors)
	require.Contains(t, st.LastError, "remote api down")
	require.Equal(t, int64(0), st.TotalSyncs)
}

func TestAgent_NoDuplicateWatchers(t *testing.T) {
	w := &fakeWallet{online: true}
	// pending-бронь не подтверждается, watcher остаётся активным
	repo := &fakeRepo{pending: []*models.Booking{{ID: "b1", Status: models.BookingStatusPending}}}
	a := New(w, repo, nil).WithSettings(time.Hour, 10, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.watchPending(ctx)
	a.watchPending(ctx)

	w.mu.Lock()
	watched := len(w.watched)
	w.mu.Unlock()
	require.Equal(t, 1, watched)
	require.Equal(t, 1, a.Stats().ActiveWatchers)
}

func TestBackoffDelay(t *testing.T) {
	require.Equal(t, 5*time.Second, backoffDelay(1))
	require.Equal(t, 15*time.Second, backoffDelay(2))
	require.Equal(t, 30*time.Second, backoffDelay(3))
	require.Equal(t, time.Minute, backoffDelay(4))
	require.Equal(t, time.Minute, backoffDelay(10))
}
