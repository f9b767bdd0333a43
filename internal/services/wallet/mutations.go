package wallet

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/HopNGo/TripWallet/internal/models"
	"github.com/pkg/errors"
)

// Локальные мутации: запись уходит в хранилище сразу, а для remote API
// откладывается операцией в sync_queue до следующего sync.

func (s *Service) SaveItinerary(ctx context.Context, it *models.Itinerary) error {
	_, existed, err := s.store.GetItinerary(ctx, it.ID)
	if err != nil {
		return errors.Wrap(err, "check itinerary exists")
	}
	if err := s.store.SaveItinerary(ctx, it); err != nil {
		return err
	}
	s.dropCached(ctx, itineraryKey(it.ID))
	return s.enqueueWrite(ctx, existed, models.TableItineraries, it.ID, it)
}

func (s *Service) SaveBooking(ctx context.Context, b *models.Booking) error {
	_, existed, err := s.store.GetBooking(ctx, b.ID)
	if err != nil {
		return errors.Wrap(err, "check booking exists")
	}
	if err := s.store.SaveBooking(ctx, b); err != nil {
		return err
	}
	s.dropCached(ctx, bookingKey(b.ID))
	return s.enqueueWrite(ctx, existed, models.TableBookings, b.ID, b)
}

func (s *Service) SaveTicket(ctx context.Context, t *models.Ticket) error {
	_, existed, err := s.store.GetTicket(ctx, t.ID)
	if err != nil {
		return errors.Wrap(err, "check ticket exists")
	}
	if err := s.store.SaveTicket(ctx, t); err != nil {
		return err
	}
	s.dropCached(ctx, ticketKey(t.ID))
	return s.enqueueWrite(ctx, existed, models.TableTickets, t.ID, t)
}

func (s *Service) DeleteItinerary(ctx context.Context, id string) error {
	if err := s.store.DeleteItinerary(ctx, id); err != nil {
		return err
	}
	s.dropCached(ctx, itineraryKey(id))
	return s.enqueueDelete(ctx, models.TableItineraries, id)
}

func (s *Service) DeleteBooking(ctx context.Context, id string) error {
	if err := s.store.DeleteBooking(ctx, id); err != nil {
		return err
	}
	s.dropCached(ctx, bookingKey(id))
	return s.enqueueDelete(ctx, models.TableBookings, id)
}

func (s *Service) DeleteTicket(ctx context.Context, id string) error {
	if err := s.store.DeleteTicket(ctx, id); err != nil {
		return err
	}
	s.dropCached(ctx, ticketKey(id))
	return s.enqueueDelete(ctx, models.TableTickets, id)
}

func (s *Service) enqueueWrite(ctx context.Context, existed bool, table, recordID string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal sync payload")
	}
	op := models.SyncOpCreate
	if existed {
		op = models.SyncOpUpdate
	}
	return s.store.EnqueueOp(ctx, &models.SyncOp{
		Op:        op,
		Table:     table,
		RecordID:  recordID,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}

func (s *Service) enqueueDelete(ctx context.Context, table, recordID string) error {
	return s.store.EnqueueOp(ctx, &models.SyncOp{
		Op:        models.SyncOpDelete,
		Table:     table,
		RecordID:  recordID,
		Timestamp: time.Now(),
	})
}

func (s *Service) dropCached(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, key); err != nil {
		slog.Warn("cache del", "key", key, "error", err.Error())
	}
}
