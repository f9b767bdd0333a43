package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/HopNGo/TripWallet/internal/broker/messages"
	"github.com/HopNGo/TripWallet/internal/cache"
	"github.com/HopNGo/TripWallet/internal/integrations/travelapi"
	"github.com/HopNGo/TripWallet/internal/models"
	"github.com/HopNGo/TripWallet/internal/services/syncer"
	"github.com/pkg/errors"
)

// ErrSyncInProgress возвращается при попытке запустить второй sync поверх идущего.
var ErrSyncInProgress = errors.New("sync already in progress")

type Storage interface {
	ListItineraries(ctx context.Context) ([]*models.Itinerary, error)
	ListBookings(ctx context.Context, itineraryID string) ([]*models.Booking, error)
	ListTickets(ctx context.Context, bookingID string) ([]*models.Ticket, error)
	GetItinerary(ctx context.Context, id string) (*models.Itinerary, bool, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, bool, error)
	GetTicket(ctx context.Context, id string) (*models.Ticket, bool, error)
	SaveItinerary(ctx context.Context, it *models.Itinerary) error
	SaveBooking(ctx context.Context, b *models.Booking) error
	SaveTicket(ctx context.Context, t *models.Ticket) error
	DeleteItinerary(ctx context.Context, id string) error
	DeleteBooking(ctx context.Context, id string) error
	DeleteTicket(ctx context.Context, id string) error
	UpdateBookingStatus(ctx context.Context, id, status string, confirmationCode *string) error
	EnqueueOp(ctx context.Context, op *models.SyncOp) error
	ClearAll(ctx context.Context) error
	Stats(ctx context.Context) (models.WalletStats, error)
}

type Syncer interface {
	Sync(ctx context.Context, userID string) (syncer.Result, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Service — презентационный слой кошелька: кэшируемые read-модели поверх
// локального хранилища, императивные действия sync/clear и отслеживание
// связности. Ошибки хранилища на чтении деградируют до пустой коллекции:
// доступность (пусть и пустого) представления важнее падения потребителя.
type Service struct {
	store  Storage
	syncs  Syncer
	client travelapi.Client
	userID string

	cache    cache.BytesCache
	cacheTTL time.Duration

	producer     Producer
	updatedTopic string
	statusTopic  string

	watchInterval    time.Duration
	watchMaxAttempts int

	online  atomic.Bool
	syncing atomic.Bool
}

func New(store Storage, syncs Syncer, client travelapi.Client, userID string) *Service {
	s := &Service{
		store:            store,
		syncs:            syncs,
		client:           client,
		userID:           userID,
		watchInterval:    2 * time.Second,
		watchMaxAttempts: 150,
	}
	// До первого результата пробы считаем устройство онлайн.
	s.online.Store(true)
	return s
}

func (s *Service) WithCache(c cache.BytesCache, ttl time.Duration) *Service {
	s.cache = c
	s.cacheTTL = ttl
	return s
}

func (s *Service) WithProducer(p Producer, updatedTopic, statusTopic string) *Service {
	s.producer = p
	s.updatedTopic = updatedTopic
	s.statusTopic = statusTopic
	return s
}

func (s *Service) WithWatchSettings(interval time.Duration, maxAttempts int) *Service {
	if interval > 0 {
		s.watchInterval = interval
	}
	if maxAttempts > 0 {
		s.watchMaxAttempts = maxAttempts
	}
	return s
}

func (s *Service) UserID() string { return s.userID }

func (s *Service) Online() bool { return s.online.Load() }

func (s *Service) Syncing() bool { return s.syncing.Load() }

func (s *Service) SetOnline(v bool) { s.online.Store(v) }

// RunConnectivityProbe пингует remote API с заданным интервалом и переключает
// флаг online. Go-замена браузерного сигнала online/offline.
func (s *Service) RunConnectivityProbe(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		probeCtx, cancel := context.WithTimeout(ctx, interval)
		err := s.client.Ping(probeCtx)
		cancel()

		was := s.online.Swap(err == nil)
		if was != (err == nil) {
			slog.Info("connectivity changed", "online", err == nil)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Itineraries — read-модель маршрутов; при ошибке хранилища пустой срез.
func (s *Service) Itineraries(ctx context.Context) []*models.Itinerary {
	out, err := s.store.ListItineraries(ctx)
	if err != nil {
		slog.Error("list itineraries", "error", err.Error())
		return []*models.Itinerary{}
	}
	return out
}

func (s *Service) Bookings(ctx context.Context, itineraryID string) []*models.Booking {
	out, err := s.store.ListBookings(ctx, itineraryID)
	if err != nil {
		slog.Error("list bookings", "error", err.Error())
		return []*models.Booking{}
	}
	return out
}

func (s *Service) Tickets(ctx context.Context, bookingID string) []*models.Ticket {
	out, err := s.store.ListTickets(ctx, bookingID)
	if err != nil {
		slog.Error("list tickets", "error", err.Error())
		return []*models.Ticket{}
	}
	return out
}

func (s *Service) Stats(ctx context.Context) models.WalletStats {
	st, err := s.store.Stats(ctx)
	if err != nil {
		slog.Error("wallet stats", "error", err.Error())
		return models.WalletStats{}
	}
	return st
}

func itineraryKey(id string) string { return fmt.Sprintf("wallet:itinerary:%s", id) }
func bookingKey(id string) string   { return fmt.Sprintf("wallet:booking:%s", id) }
func ticketKey(id string) string    { return fmt.Sprintf("wallet:ticket:%s", id) }

// GetItinerary — точечная выборка для детального экрана, мимо агрегатных
// read-моделей, сквозь best-effort кэш.
func (s *Service) GetItinerary(ctx context.Context, id string) (*models.Itinerary, bool, error) {
	if it, ok := cacheGet[models.Itinerary](ctx, s, itineraryKey(id)); ok {
		return it, true, nil
	}
	it, ok, err := s.store.GetItinerary(ctx, id)
	if err != nil || !ok {
		return nil, false, err
	}
	cacheSet(ctx, s, itineraryKey(id), it)
	return it, true, nil
}

func (s *Service) GetBooking(ctx context.Context, id string) (*models.Booking, bool, error) {
	if b, ok := cacheGet[models.Booking](ctx, s, bookingKey(id)); ok {
		return b, true, nil
	}
	b, ok, err := s.store.GetBooking(ctx, id)
	if err != nil || !ok {
		return nil, false, err
	}
	cacheSet(ctx, s, bookingKey(id), b)
	return b, true, nil
}

func (s *Service) GetTicket(ctx context.Context, id string) (*models.Ticket, bool, error) {
	if t, ok := cacheGet[models.Ticket](ctx, s, ticketKey(id)); ok {
		return t, true, nil
	}
	t, ok, err := s.store.GetTicket(ctx, id)
	if err != nil || !ok {
		return nil, false, err
	}
	cacheSet(ctx, s, ticketKey(id), t)
	return t, true, nil
}

// Кэш не обязан быть живым: любые его ошибки — только лог.
func cacheGet[T any](ctx context.Context, s *Service, key string) (*T, bool) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return nil, false
	}
	b, ok, err := s.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var v T
	if json.Unmarshal(b, &v) != nil {
		return nil, false
	}
	return &v, true
}

func cacheSet(ctx context.Context, s *Service, key string, v any) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, b, s.cacheTTL); err != nil {
		slog.Warn("cache set", "key", key, "error", err.Error())
	}
}

// SyncWithServer запускает полный sync. Отказывает сразу, если устройство
// офлайн или sync уже идёт; при успехе инвалидирует кэш и публикует событие.
func (s *Service) SyncWithServer(ctx context.Context) (syncer.Result, error) {
	if !s.online.Load() {
		return syncer.Result{}, syncer.ErrOffline
	}
	if !s.syncing.CompareAndSwap(false, true) {
		return syncer.Result{}, ErrSyncInProgress
	}
	defer s.syncing.Store(false)

	res, err := s.syncs.Sync(ctx, s.userID)
	if err != nil {
		return syncer.Result{}, err
	}

	if s.cache != nil {
		if err := s.cache.DelPrefix(ctx, "wallet:"); err != nil {
			slog.Warn("cache invalidate after sync", "error", err.Error())
		}
	}
	s.publishUpdated(ctx, res)
	return res, nil
}

func (s *Service) publishUpdated(ctx context.Context, res syncer.Result) {
	if s.producer == nil || s.updatedTopic == "" {
		return
	}
	msg := messages.WalletUpdated{
		UserID:      s.userID,
		Itineraries: res.Itineraries,
		Bookings:    res.Bookings,
		Tickets:     res.Tickets,
		ReplayedOps: res.ReplayedOps,
		SyncedAt:    res.SyncedAt,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := s.producer.Publish(ctx, s.updatedTopic, []byte(s.userID), b); err != nil {
		slog.Error("publish wallet.updated", "error", err.Error())
	}
}

// ClearAllData опустошает все коллекции кошелька и кэш одним действием.
func (s *Service) ClearAllData(ctx context.Context) error {
	if err := s.store.ClearAll(ctx); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.DelPrefix(ctx, "wallet:"); err != nil {
			slog.Warn("cache invalidate after clear", "error", err.Error())
		}
	}
	return nil
}
