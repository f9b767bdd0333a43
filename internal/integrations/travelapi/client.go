package travelapi

import (
	"context"
	"time"

	"github.com/HopNGo/TripWallet/internal/models"
)

// BookingStatus — ответ статусного эндпоинта бронирования.
type BookingStatus struct {
	Status        string    `json:"status"`
	PaymentStatus *string   `json:"paymentStatus,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Client — удалённый travel API платформы.
type Client interface {
	ListItineraries(ctx context.Context, userID string, limit int) ([]*models.Itinerary, error)
	ListBookings(ctx context.Context, userID string, limit int) ([]*models.Booking, error)
	ListTickets(ctx context.Context, userID string, limit int) ([]*models.Ticket, error)
	GetBookingStatus(ctx context.Context, bookingID string) (BookingStatus, error)
	// PushOperation реплеит офлайн-мутацию на сервер.
	PushOperation(ctx context.Context, userID string, op *models.SyncOp) error
	// Ping — проба связности для определения online/offline.
	Ping(ctx context.Context) error
}
