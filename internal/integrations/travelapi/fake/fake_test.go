package fake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFakeClient_Deterministic(t *testing.T) {
	c := New()
	ctx := context.Background()

	a, err := c.ListItineraries(ctx, "u-1", 50)
	require.NoError(t, err)
	require.NotEmpty(t, a)

	b, err := c.ListItineraries(ctx, "u-1", 50)
	require.NoError(t, err)
	require.Len(t, b, len(a))
	require.Equal(t, a[0].ID, b[0].ID)
}

func TestFakeClient_BookingsBelongToItineraries(t *testing.T) {
	c := New()
	ctx := context.Background()

	itins, err := c.ListItineraries(ctx, "u-2", 50)
	require.NoError(t, err)
	ids := map[string]struct{}{}
	for _, it := range itins {
		ids[it.ID] = struct{}{}
	}

	bookings, err := c.ListBookings(ctx, "u-2", 100)
	require.NoError(t, err)
	require.NotEmpty(t, bookings)
	for _, b := range bookings {
		require.Contains(t, ids, b.ItineraryID)
	}
}

func TestFakeClient_StatusAndPing(t *testing.T) {
	c := New()
	st, err := c.GetBookingStatus(context.Background(), "b-1")
	require.NoError(t, err)
	require.NotEmpty(t, st.Status)
	require.NoError(t, c.Ping(context.Background()))
}
