package resthttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/HopNGo/TripWallet/internal/models"
	"github.com/stretchr/testify/require"
)

func TestClient_ListBookings_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/u-1/bookings", r.URL.Path)
		require.Equal(t, "100", r.URL.Query().Get("limit"))
		require.Equal(t, "Bearer demo", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "data": [
    {"id":"b-1","itineraryId":"it-1","type":"transport","cost":120,"currency":"EUR","status":"confirmed",
     "confirmationCode":"CNF-1","createdAt":"2026-08-01T10:00:00Z","updatedAt":"2026-08-01T10:00:00Z"},
    {"id":"b-2","itineraryId":"it-1","type":"activity","cost":35,"currency":"EUR","status":"pending",
     "createdAt":"2026-08-02T10:00:00Z","updatedAt":"2026-08-02T10:00:00Z"}
  ]
}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "demo")
	bookings, err := c.ListBookings(context.Background(), "u-1", 100)
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	require.Equal(t, "b-1", bookings[0].ID)
	require.NotNil(t, bookings[0].ConfirmationCode)
	require.Equal(t, models.BookingStatusPending, bookings[1].Status)
	require.Nil(t, bookings[1].ConfirmationCode)
}

func TestClient_GetBookingStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bookings/b-1/status", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"confirmed","paymentStatus":"captured","updatedAt":"2026-08-31T09:00:00Z"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	st, err := c.GetBookingStatus(context.Background(), "b-1")
	require.NoError(t, err)
	require.Equal(t, models.BookingStatusConfirmed, st.Status)
	require.NotNil(t, st.PaymentStatus)
	require.Equal(t, "captured", *st.PaymentStatus)
	require.WithinDuration(t, time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC), st.UpdatedAt, time.Second)
}

func TestClient_PushOperation(t *testing.T) {
	var got models.SyncOp
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/users/u-1/operations", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	op := &models.SyncOp{ID: "op-1", Op: models.SyncOpDelete, Table: models.TableBookings, RecordID: "b-9"}
	require.NoError(t, c.PushOperation(context.Background(), "u-1", op))
	require.Equal(t, "op-1", got.ID)
	require.Equal(t, models.SyncOpDelete, got.Op)
}

func TestClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.ListItineraries(context.Background(), "u-1", 50)
	require.Error(t, err)

	require.Error(t, c.Ping(context.Background()))
}

func TestClient_Ping_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL, "").Ping(context.Background()))
}
