package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/HopNGo/TripWallet/internal/integrations/travelapi"
	"github.com/HopNGo/TripWallet/internal/models"
	"github.com/pkg/errors"
)

// ErrOffline возвращается до каких-либо сетевых вызовов, если проба
// связности считает устройство офлайн.
var ErrOffline = errors.New("cannot sync while offline")

type Storage interface {
	ReplaceAll(ctx context.Context, itins []*models.Itinerary, bookings []*models.Booking, tickets []*models.Ticket, syncedAt time.Time) error
	ListPendingOps(ctx context.Context) ([]*models.SyncOp, error)
	DeleteOp(ctx context.Context, id string) error
	BumpOpRetry(ctx context.Context, id string) (int32, error)
}

type Limits struct {
	Itineraries int
	Bookings    int
	Tickets     int
}

func DefaultLimits() Limits {
	return Limits{Itineraries: 50, Bookings: 100, Tickets: 100}
}

type Result struct {
	Itineraries int       `json:"itineraries"`
	Bookings    int       `json:"bookings"`
	Tickets     int       `json:"tickets"`
	ReplayedOps int       `json:"replayedOps"`
	SyncedAt    time.Time `json:"syncedAt"`
}

// Syncer выполняет полный destructive refresh локального кэша из remote API.
// Слияния нет: побеждает то, что сервер вернул в этой странице.
type Syncer struct {
	store  Storage
	client travelapi.Client
	online func() bool

	limits       Limits
	maxOpRetries int32
}

func New(store Storage, client travelapi.Client, online func() bool) *Syncer {
	return &Syncer{
		store:        store,
		client:       client,
		online:       online,
		limits:       DefaultLimits(),
		maxOpRetries: 5,
	}
}

func (s *Syncer) WithLimits(l Limits) *Syncer {
	if l.Itineraries > 0 {
		s.limits.Itineraries = l.Itineraries
	}
	if l.Bookings > 0 {
		s.limits.Bookings = l.Bookings
	}
	if l.Tickets > 0 {
		s.limits.Tickets = l.Tickets
	}
	return s
}

// Sync: реплей очереди отложенных записей, затем три ограниченные страницы
// конкурентно, затем одна транзакция полного обновления. Любая ошибка fetch
// отменяет sync целиком — прежний снимок остаётся авторитетным.
func (s *Syncer) Sync(ctx context.Context, userID string) (Result, error) {
	if s.online != nil && !s.online() {
		return Result{}, ErrOffline
	}

	startedAt := time.Now().UTC()

	replayed, err := s.replayQueue(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	var (
		wg       sync.WaitGroup
		itins    []*models.Itinerary
		bookings []*models.Booking
		tickets  []*models.Ticket
		itinsErr, bookingsErr, ticketsErr error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		itins, itinsErr = s.client.ListItineraries(ctx, userID, s.limits.Itineraries)
	}()
	go func() {
		defer wg.Done()
		bookings, bookingsErr = s.client.ListBookings(ctx, userID, s.limits.Bookings)
	}()
	go func() {
		defer wg.Done()
		tickets, ticketsErr = s.client.ListTickets(ctx, userID, s.limits.Tickets)
	}()
	wg.Wait()

	if itinsErr != nil {
		return Result{}, errors.Wrap(itinsErr, "fetch itineraries")
	}
	if bookingsErr != nil {
		return Result{}, errors.Wrap(bookingsErr, "fetch bookings")
	}
	if ticketsErr != nil {
		return Result{}, errors.Wrap(ticketsErr, "fetch tickets")
	}

	if err := s.store.ReplaceAll(ctx, itins, bookings, tickets, startedAt); err != nil {
		return Result{}, err
	}

	return Result{
		Itineraries: len(itins),
		Bookings:    len(bookings),
		Tickets:     len(tickets),
		ReplayedOps: replayed,
		SyncedAt:    startedAt,
	}, nil
}

// replayQueue отправляет офлайн-мутации на сервер перед pull. Best-effort:
// неудачная операция остаётся в очереди с увеличенным счётчиком попыток,
// перебравшая лимит — выбрасывается.
func (s *Syncer) replayQueue(ctx context.Context, userID string) (int, error) {
	ops, err := s.store.ListPendingOps(ctx)
	if err != nil {
		return 0, err
	}

	replayed := 0
	for _, op := range ops {
		if err := s.client.PushOperation(ctx, userID, op); err != nil {
			n, bumpErr := s.store.BumpOpRetry(ctx, op.ID)
			if bumpErr != nil {
				return replayed, bumpErr
			}
			if n > s.maxOpRetries {
				slog.Warn("dropping sync op after retry limit", "op_id", op.ID, "table", op.Table, "record_id", op.RecordID)
				if delErr := s.store.DeleteOp(ctx, op.ID); delErr != nil {
					return replayed, delErr
				}
			} else {
				slog.Error("replay sync op", "op_id", op.ID, "error", err.Error())
			}
			continue
		}
		if err := s.store.DeleteOp(ctx, op.ID); err != nil {
			return replayed, err
		}
		replayed++
	}
	return replayed, nil
}
