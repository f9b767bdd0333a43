package messages

import "time"

// WalletUpdated публикуется после успешного полного sync локального кэша.
// Потребители по нему сбрасывают собственные кэши тех же сущностей.
type WalletUpdated struct {
	UserID      string    `json:"user_id"`
	Itineraries int       `json:"itineraries"`
	Bookings    int       `json:"bookings"`
	Tickets     int       `json:"tickets"`
	ReplayedOps int       `json:"replayed_ops,omitempty"`
	SyncedAt    time.Time `json:"synced_at"`
}

// BookingStatusChanged публикуется наблюдателем при терминальном переходе
// статуса бронирования.
type BookingStatusChanged struct {
	BookingID        string    `json:"booking_id"`
	OldStatus        string    `json:"old_status,omitempty"`
	NewStatus        string    `json:"new_status"`
	PaymentStatus    *string   `json:"payment_status,omitempty"`
	ConfirmationCode *string   `json:"confirmation_code,omitempty"`
	CheckedAt        time.Time `json:"checked_at"`
}
