package agent

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HopNGo/TripWallet/internal/cache/rediscache"
	"github.com/HopNGo/TripWallet/internal/models"
	"github.com/HopNGo/TripWallet/internal/services/syncer"
	"github.com/HopNGo/TripWallet/internal/services/wallet"
	"github.com/HopNGo/TripWallet/internal/services/watcher"
	"github.com/pkg/errors"
)

// Wallet — срез wallet.Service, нужный фоновому агенту.
type Wallet interface {
	SyncWithServer(ctx context.Context) (syncer.Result, error)
	WatchBooking(bookingID string) *watcher.Watcher
	Online() bool
}

type Repository interface {
	ListPendingBookings(ctx context.Context, limit int) ([]*models.Booking, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// Agent — фоновый цикл устройства: периодический полный sync кошелька плюс
// наблюдатели за pending-бронированиями. Один watcher на бронирование;
// завершившиеся вычищаются на следующем цикле.
type Agent struct {
	wallet Wallet
	repo   Repository
	rl     RateLimiter

	syncInterval       time.Duration
	watchBatchSize     int
	rateLimitPerMinute int64

	triggerCh chan struct{}

	watchersMu sync.Mutex
	watchers   map[string]*watcher.Watcher

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	lastSyncedUnixNano  atomic.Int64
	totalSyncs          atomic.Int64
	totalSyncErrors     atomic.Int64
	skippedOffline      atomic.Int64
	failStreak          atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(w Wallet, repo Repository, rl RateLimiter) *Agent {
	return &Agent{
		wallet:             w,
		repo:               repo,
		rl:                 rl,
		syncInterval:       5 * time.Minute,
		watchBatchSize:     20,
		rateLimitPerMinute: 60,
		triggerCh:          make(chan struct{}, 1),
		watchers:           map[string]*watcher.Watcher{},
		startedAtUnixNano:  time.Now().UTC().UnixNano(),
	}
}

func (a *Agent) WithSettings(syncInterval time.Duration, watchBatchSize int, rlPerMin int64) *Agent {
	if syncInterval > 0 {
		a.syncInterval = syncInterval
	}
	if watchBatchSize > 0 {
		a.watchBatchSize = watchBatchSize
	}
	if rlPerMin > 0 {
		a.rateLimitPerMinute = rlPerMin
	}
	return a
}

// Trigger forces an immediate sync cycle (best-effort, non-blocking).
func (a *Agent) Trigger() {
	a.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case a.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt       time.Time  `json:"startedAt"`
	LastCycleAt     *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt   *time.Time `json:"lastTriggerAt,omitempty"`
	LastSyncedAt    *time.Time `json:"lastSyncedAt,omitempty"`
	TotalSyncs      int64      `json:"totalSyncs"`
	TotalSyncErrors int64      `json:"totalSyncErrors"`
	SkippedOffline  int64      `json:"skippedOffline"`
	ActiveWatchers  int        `json:"activeWatchers"`
	LastError       string     `json:"lastError,omitempty"`
}

func (a *Agent) Stats() Stats {
	st := Stats{
		StartedAt:       time.Unix(0, a.startedAtUnixNano).UTC(),
		TotalSyncs:      a.totalSyncs.Load(),
		TotalSyncErrors: a.totalSyncErrors.Load(),
		SkippedOffline:  a.skippedOffline.Load(),
	}
	if n := a.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := a.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	if n := a.lastSyncedUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastSyncedAt = &t
	}
	a.watchersMu.Lock()
	st.ActiveWatchers = len(a.watchers)
	a.watchersMu.Unlock()
	a.lastErrorMu.Lock()
	st.LastError = a.lastError
	a.lastErrorMu.Unlock()
	return st
}

func (a *Agent) Run(ctx context.Context) error {
	t := time.NewTicker(a.syncInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			a.stopWatchers()
			return ctx.Err()
		case <-t.C:
			a.runOnce(ctx)
		case <-a.triggerCh:
			a.runOnce(ctx)
		}
	}
}

func (a *Agent) runOnce(ctx context.Context) {
	now := time.Now().UTC()
	a.lastCycleUnixNano.Store(now.UnixNano())
	a.pruneWatchers()

	if !a.wallet.Online() {
		a.skippedOffline.Add(1)
		slog.Debug("sync skipped: offline")
		return
	}

	if a.rl != nil && a.rateLimitPerMinute > 0 {
		key := rediscache.MinuteKey("sync", now)
		allowed, n, err := a.rl.Allow(ctx, key, a.rateLimitPerMinute, 70*time.Second)
		if err != nil {
			a.recordError(err)
			return
		}
		if !allowed {
			slog.Warn("sync rate limit exceeded", "count", n)
			return
		}
	}

	res, err := a.wallet.SyncWithServer(ctx)
	switch {
	case errors.Is(err, wallet.ErrSyncInProgress):
		return
	case errors.Is(err, syncer.ErrOffline):
		a.skippedOffline.Add(1)
		return
	case err != nil:
		a.totalSyncErrors.Add(1)
		a.recordError(err)
		// Серия неудач разгружает сервер: пропускаем ближайшие тики.
		streak := a.failStreak.Add(1)
		if d := backoffDelay(streak); d > a.syncInterval {
			slog.Warn("sync failing, backing off", "streak", streak, "delay", d.String())
			select {
			case <-ctx.Done():
			case <-time.After(d - a.syncInterval):
			}
		}
		return
	}

	a.failStreak.Store(0)
	a.totalSyncs.Add(1)
	a.lastSyncedUnixNano.Store(res.SyncedAt.UnixNano())
	slog.Info("wallet synced",
		"itineraries", res.Itineraries,
		"bookings", res.Bookings,
		"tickets", res.Tickets,
		"replayed_ops", res.ReplayedOps)

	a.watchPending(ctx)
}

// watchPending навешивает наблюдателей на pending-бронирования из свежего
// снимка.
func (a *Agent) watchPending(ctx context.Context) {
	pending, err := a.repo.ListPendingBookings(ctx, a.watchBatchSize)
	if err != nil {
		a.recordError(err)
		return
	}

	a.watchersMu.Lock()
	defer a.watchersMu.Unlock()
	for _, b := range pending {
		if _, ok := a.watchers[b.ID]; ok {
			continue
		}
		w := a.wallet.WatchBooking(b.ID)
		a.watchers[b.ID] = w
		w.Start(ctx)
		slog.Info("watching booking", "booking_id", b.ID)
	}
}

func (a *Agent) pruneWatchers() {
	a.watchersMu.Lock()
	defer a.watchersMu.Unlock()
	for id, w := range a.watchers {
		select {
		case <-w.Done():
			delete(a.watchers, id)
		default:
		}
	}
}

func (a *Agent) stopWatchers() {
	a.watchersMu.Lock()
	defer a.watchersMu.Unlock()
	for id, w := range a.watchers {
		w.Stop()
		delete(a.watchers, id)
	}
}

func (a *Agent) recordError(err error) {
	slog.Error("agent cycle", "error", err.Error())
	a.lastErrorMu.Lock()
	a.lastError = err.Error()
	a.lastErrorMu.Unlock()
}

func backoffDelay(streak int64) time.Duration {
	switch {
	case streak <= 1:
		return 5 * time.Second
	case streak == 2:
		return 15 * time.Second
	case streak == 3:
		return 30 * time.Second
	default:
		return time.Minute
	}
}
