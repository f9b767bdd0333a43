package wallet_api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/HopNGo/TripWallet/internal/integrations/travelapi"
	"github.com/HopNGo/TripWallet/internal/integrations/travelapi/fake"
	"github.com/HopNGo/TripWallet/internal/models"
	"github.com/HopNGo/TripWallet/internal/services/syncer"
	"github.com/HopNGo/TripWallet/internal/services/wallet"
	"github.com/HopNGo/TripWallet/internal/storage/walletdb"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	srv    *httptest.Server
	store  *walletdb.Storage
	online *bool
}

func newTestEnv(t *testing.T, client travelapi.Client) *testEnv {
	t.Helper()

	store, err := walletdb.New(filepath.Join(t.TempDir(), "wallet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	online := true
	syncs := syncer.New(store, client, func() bool { return online })
	svc := wallet.New(store, syncs, client, "user-1").
		WithWatchSettings(time.Millisecond, 3)

	api := New(svc)
	r := chi.NewRouter()
	api.Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, store: store, online: &online}
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestAPI_BookingCRUD(t *testing.T) {
	env := newTestEnv(t, fake.New())

	var notFound map[string]string
	require.Equal(t, http.StatusNotFound,
		doJSON(t, http.MethodGet, env.srv.URL+"/wallet/bookings/b1", nil, &notFound))

	in := models.Booking{ItineraryID: "it1", Type: models.BookingTypeAccommodation, Cost: 180, Currency: "EUR"}
	var saved models.Booking
	require.Equal(t, http.StatusOK,
		doJSON(t, http.MethodPut, env.srv.URL+"/wallet/bookings/b1", in, &saved))
	require.Equal(t, "b1", saved.ID)
	require.Equal(t, models.BookingStatusPending, saved.Status)

	var got models.Booking
	require.Equal(t, http.StatusOK,
		doJSON(t, http.MethodGet, env.srv.URL+"/wallet/bookings/b1", nil, &got))
	require.Equal(t, models.BookingTypeAccommodation, got.Type)

	var list []models.Booking
	require.Equal(t, http.StatusOK,
		doJSON(t, http.MethodGet, env.srv.URL+"/wallet/bookings?itineraryId=it1", nil, &list))
	require.Len(t, list, 1)
	require.Equal(t, http.StatusOK,
		doJSON(t, http.MethodGet, env.srv.URL+"/wallet/bookings?itineraryId=other", nil, &list))
	require.Empty(t, list)

	require.Equal(t, http.StatusOK,
		doJSON(t, http.MethodDelete, env.srv.URL+"/wallet/bookings/b1", nil, nil))
	require.Equal(t, http.StatusNotFound,
		doJSON(t, http.MethodGet, env.srv.URL+"/wallet/bookings/b1", nil, &notFound))

	// каждая мутация оставила операцию в очереди
	var stats models.WalletStats
	require.Equal(t, http.StatusOK,
		doJSON(t, http.MethodGet, env.srv.URL+"/wallet/stats", nil, &stats))
	require.Equal(t, 2, stats.PendingOps)
}

func TestAPI_SyncAndStatus(t *testing.T) {
	env := newTestEnv(t, fake.New())

	var status map[string]any
	require.Equal(t, http.StatusOK,
		doJSON(t, http.MethodGet, env.srv.URL+"/wallet/status", nil, &status))
	require.Equal(t, true, status["online"])
	require.Equal(t, "user-1", status["userId"])

	var res syncer.Result
	require.Equal(t, http.StatusOK,
		doJSON(t, http.MethodPost, env.srv.URL+"/wallet/sync", nil, &res))
	require.Greater(t, res.Itineraries, 0)

	var list []models.Itinerary
	require.Equal(t, http.StatusOK,
		doJSON(t, http.MethodGet, env.srv.URL+"/wallet/itineraries", nil, &list))
	require.Len(t, list, res.Itineraries)

	*env.online = false
	var errBody map[string]string
	require.Equal(t, http.StatusConflict,
		doJSON(t, http.MethodPost, env.srv.URL+"/wallet/sync", nil, &errBody))
	require.Contains(t, errBody["error"], "offline")
}

func TestAPI_ClearWallet(t *testing.T) {
	env := newTestEnv(t, fake.New())

	var res syncer.Result
	require.Equal(t, http.StatusOK,
		doJSON(t, http.MethodPost, env.srv.URL+"/wallet/sync", nil, &res))

	require.Equal(t, http.StatusOK,
		doJSON(t, http.MethodDelete, env.srv.URL+"/wallet/", nil, nil))

	var stats models.WalletStats
	require.Equal(t, http.StatusOK,
		doJSON(t, http.MethodGet, env.srv.URL+"/wallet/stats", nil, &stats))
	require.Equal(t, models.WalletStats{}, stats)
}

// statusClient отвечает pending первые n вызовов, затем confirmed.
type statusClient struct {
	*fake.FakeClient
	pendingFirst int
	calls        int
}

func (c *statusClient) GetBookingStatus(context.Context, string) (travelapi.BookingStatus, error) {
	c.calls++
	st := models.BookingStatusConfirmed
	if c.calls <= c.pendingFirst {
		st = models.BookingStatusPending
	}
	return travelapi.BookingStatus{Status: st, UpdatedAt: time.Now()}, nil
}

func TestAPI_WatchLifecycle(t *testing.T) {
	env := newTestEnv(t, &statusClient{FakeClient: fake.New(), pendingFirst: 1})

	in := models.Booking{ItineraryID: "it1", Type: models.BookingTypeTransport, Cost: 42, Currency: "EUR"}
	require.Equal(t, http.StatusOK,
		doJSON(t, http.MethodPut, env.srv.URL+"/wallet/bookings/b1", in, nil))

	var notFound map[string]string
	require.Equal(t, http.StatusNotFound,
		doJSON(t, http.MethodGet, env.srv.URL+"/wallet/bookings/b1/watch", nil, &notFound))

	var snap map[string]any
	require.Equal(t, http.StatusAccepted,
		doJSON(t, http.MethodPost, env.srv.URL+"/wallet/bookings/b1/watch", nil, &snap))

	require.Eventually(t, func() bool {
		var s map[string]any
		doJSON(t, http.MethodGet, env.srv.URL+"/wallet/bookings/b1/watch", nil, &s)
		return s["isSuccess"] == true
	}, 2*time.Second, 5*time.Millisecond)

	var got models.Booking
	require.Equal(t, http.StatusOK,
		doJSON(t, http.MethodGet, env.srv.URL+"/wallet/bookings/b1", nil, &got))
	require.Equal(t, models.BookingStatusConfirmed, got.Status)

	require.Equal(t, http.StatusOK,
		doJSON(t, http.MethodDelete, env.srv.URL+"/wallet/bookings/b1/watch", nil, &snap))
}
