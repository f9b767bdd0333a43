package wallet

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/HopNGo/TripWallet/internal/broker/messages"
	"github.com/HopNGo/TripWallet/internal/integrations/travelapi"
	"github.com/HopNGo/TripWallet/internal/models"
	"github.com/HopNGo/TripWallet/internal/services/watcher"
)

// WatchBooking собирает watcher для брони: терминальные статусы
// записываются в локальное хранилище и публикуются событием. Start за
// вызывающим.
func (s *Service) WatchBooking(bookingID string) *watcher.Watcher {
	cfg := watcher.Config{
		BookingID:   bookingID,
		Interval:    s.watchInterval,
		MaxAttempts: s.watchMaxAttempts,
		OnSuccess: func(st travelapi.BookingStatus) {
			s.applyTerminalStatus(bookingID, models.BookingStatusConfirmed, st)
		},
		OnFailure: func(st travelapi.BookingStatus) {
			s.applyTerminalStatus(bookingID, models.BookingStatusCancelled, st)
		},
		OnTimeout: func() {
			slog.Warn("booking watch timed out", "booking_id", bookingID)
		},
	}
	return watcher.New(s.client, cfg)
}

func (s *Service) applyTerminalStatus(bookingID, status string, st travelapi.BookingStatus) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	old := models.BookingStatusPending
	if b, ok, err := s.store.GetBooking(ctx, bookingID); err == nil && ok {
		old = b.Status
	}

	if err := s.store.UpdateBookingStatus(ctx, bookingID, status, nil); err != nil {
		slog.Error("update booking status", "booking_id", bookingID, "error", err.Error())
		return
	}
	s.dropCached(ctx, bookingKey(bookingID))

	s.publishStatusChanged(ctx, messages.BookingStatusChanged{
		BookingID:     bookingID,
		OldStatus:     old,
		NewStatus:     status,
		PaymentStatus: st.PaymentStatus,
		CheckedAt:     time.Now(),
	})
}

func (s *Service) publishStatusChanged(ctx context.Context, msg messages.BookingStatusChanged) {
	if s.producer == nil || s.statusTopic == "" {
		return
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := s.producer.Publish(ctx, s.statusTopic, []byte(msg.BookingID), b); err != nil {
		slog.Error("publish booking.status_changed", "error", err.Error())
	}
}

// ApplyStatusEvent применяет событие статуса к локальному хранилищу.
// Используется consumer-ом API-бинаря.
func (s *Service) ApplyStatusEvent(ctx context.Context, msg messages.BookingStatusChanged) error {
	if err := s.store.UpdateBookingStatus(ctx, msg.BookingID, msg.NewStatus, msg.ConfirmationCode); err != nil {
		return err
	}
	s.dropCached(ctx, bookingKey(msg.BookingID))
	return nil
}
