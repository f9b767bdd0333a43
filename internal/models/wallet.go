package models

import (
	"encoding/json"
	"time"
)

// Статусы бронирований, нормализованные под remote API.
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
)

const (
	BookingTypeAccommodation = "accommodation"
	BookingTypeTransport     = "transport"
	BookingTypeActivity      = "activity"
)

const (
	TicketStatusValid     = "valid"
	TicketStatusUsed      = "used"
	TicketStatusExpired   = "expired"
	TicketStatusCancelled = "cancelled"
)

type Itinerary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Destinations []string  `json:"destinations"`
	StartDate    time.Time `json:"startDate"`
	EndDate      time.Time `json:"endDate"`
	TotalCost    float64   `json:"totalCost"`
	Currency     string    `json:"currency"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	SyncedAt     time.Time `json:"syncedAt"`
}

type Booking struct {
	ID          string  `json:"id"`
	ItineraryID string  `json:"itineraryId"`
	Type        string  `json:"type"`
	Cost        float64 `json:"cost"`
	Currency    string  `json:"currency"`
	Status      string  `json:"status"`
	// ConfirmationCode появляется только после подтверждения.
	ConfirmationCode *string         `json:"confirmationCode,omitempty"`
	Vendor           json.RawMessage `json:"vendor,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	SyncedAt         time.Time       `json:"syncedAt"`
}

type Ticket struct {
	ID            string          `json:"id"`
	BookingID     string          `json:"bookingId"`
	TicketNumber  string          `json:"ticketNumber"`
	QRCode        *string         `json:"qrCode,omitempty"`
	PassengerName string          `json:"passengerName"`
	Seat          *string         `json:"seat,omitempty"`
	Gate          *string         `json:"gate,omitempty"`
	DepartureTime time.Time       `json:"departureTime"`
	ArrivalTime   time.Time       `json:"arrivalTime"`
	Status        string          `json:"status"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	SyncedAt      time.Time       `json:"syncedAt"`
}

// Виды операций в очереди отложенной записи.
const (
	SyncOpCreate = "create"
	SyncOpUpdate = "update"
	SyncOpDelete = "delete"
)

const (
	TableItineraries = "itineraries"
	TableBookings    = "bookings"
	TableTickets     = "tickets"
)

// SyncOp — локальная мутация, сделанная офлайн и ожидающая отправки на сервер.
type SyncOp struct {
	ID        string          `json:"id"`
	Op        string          `json:"op"`
	Table     string          `json:"table"`
	RecordID  string          `json:"recordId"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Retries   int32           `json:"retries"`
}

// WalletStats — агрегаты по локальному хранилищу для презентационного слоя.
type WalletStats struct {
	Itineraries  int        `json:"itineraries"`
	Bookings     int        `json:"bookings"`
	Tickets      int        `json:"tickets"`
	PendingOps   int        `json:"pendingOps"`
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`
}
