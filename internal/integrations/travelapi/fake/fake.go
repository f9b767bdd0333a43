package fake

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/HopNGo/TripWallet/internal/integrations/travelapi"
	"github.com/HopNGo/TripWallet/internal/models"
)

// FakeClient — детерминированная заглушка travel API для демо и тестов.
// Состав коллекций выводится из userID, статусы — из hash(id), так что
// повторные вызовы дают одинаковый снимок.
type FakeClient struct{}

func New() *FakeClient { return &FakeClient{} }

func hash32(parts ...string) uint32 {
	h := fnv.New32a()
	for i, p := range parts {
		if i > 0 {
			_, _ = h.Write([]byte("|"))
		}
		_, _ = h.Write([]byte(p))
	}
	return h.Sum32()
}

func (f *FakeClient) ListItineraries(ctx context.Context, userID string, limit int) ([]*models.Itinerary, error) {
	n := int(hash32(userID)%3) + 1
	if n > limit {
		n = limit
	}
	now := time.Now().UTC()
	out := make([]*models.Itinerary, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("it-%s-%d", userID, i)
		start := now.AddDate(0, 0, 7*(i+1))
		out = append(out, &models.Itinerary{
			ID:           id,
			Title:        fmt.Sprintf("Trip %d", i+1),
			Destinations: []string{"Lisbon", "Porto"},
			StartDate:    start,
			EndDate:      start.AddDate(0, 0, 4),
			TotalCost:    500 + float64(i)*120,
			Currency:     "EUR",
			Status:       "upcoming",
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	return out, nil
}

func (f *FakeClient) ListBookings(ctx context.Context, userID string, limit int) ([]*models.Booking, error) {
	itins, _ := f.ListItineraries(ctx, userID, limit)
	now := time.Now().UTC()
	out := []*models.Booking{}
	types := []string{models.BookingTypeAccommodation, models.BookingTypeTransport, models.BookingTypeActivity}
	for _, it := range itins {
		for j := 0; j < 2 && len(out) < limit; j++ {
			id := fmt.Sprintf("b-%s-%d", it.ID, j)
			// Часть бронирований остаётся pending, чтобы агенту было за чем следить.
			status := models.BookingStatusConfirmed
			if hash32(id)%3 == 0 {
				status = models.BookingStatusPending
			}
			out = append(out, &models.Booking{
				ID:          id,
				ItineraryID: it.ID,
				Type:        types[int(hash32(id))%len(types)],
				Cost:        80 + float64(j)*40,
				Currency:    "EUR",
				Status:      status,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
	}
	return out, nil
}

func (f *FakeClient) ListTickets(ctx context.Context, userID string, limit int) ([]*models.Ticket, error) {
	bookings, _ := f.ListBookings(ctx, userID, limit)
	now := time.Now().UTC()
	out := []*models.Ticket{}
	for _, b := range bookings {
		if b.Status != models.BookingStatusConfirmed || len(out) >= limit {
			continue
		}
		id := fmt.Sprintf("t-%s", b.ID)
		out = append(out, &models.Ticket{
			ID:            id,
			BookingID:     b.ID,
			TicketNumber:  fmt.Sprintf("TW-%04d", hash32(id)%10000),
			PassengerName: "Demo Traveller",
			DepartureTime: now.AddDate(0, 0, 7),
			ArrivalTime:   now.AddDate(0, 0, 7).Add(3 * time.Hour),
			Status:        models.TicketStatusValid,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	return out, nil
}

func (f *FakeClient) GetBookingStatus(ctx context.Context, bookingID string) (travelapi.BookingStatus, error) {
	now := time.Now().UTC()
	// 20% бронирований считаем подтверждёнными, 10% отменёнными.
	v := hash32(bookingID, now.Format("20060102150405"))
	status := models.BookingStatusPending
	switch {
	case v%5 == 0:
		status = models.BookingStatusConfirmed
	case v%10 == 1:
		status = models.BookingStatusCancelled
	}
	ps := "authorized"
	return travelapi.BookingStatus{Status: status, PaymentStatus: &ps, UpdatedAt: now}, nil
}

func (f *FakeClient) PushOperation(ctx context.Context, userID string, op *models.SyncOp) error {
	return nil
}

func (f *FakeClient) Ping(ctx context.Context) error { return nil }
