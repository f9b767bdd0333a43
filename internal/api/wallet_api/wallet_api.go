package wallet_api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/HopNGo/TripWallet/internal/models"
	"github.com/HopNGo/TripWallet/internal/services/syncer"
	"github.com/HopNGo/TripWallet/internal/services/wallet"
	"github.com/HopNGo/TripWallet/internal/services/watcher"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

// WalletAPI — JSON-хендлеры поверх wallet.Service. Watcher-ы живут здесь:
// один на бронирование, повторный запуск на том же id переиспользует его.
type WalletAPI struct {
	svc *wallet.Service

	mu       sync.Mutex
	watchers map[string]*watcher.Watcher
}

func New(svc *wallet.Service) *WalletAPI {
	return &WalletAPI{
		svc:      svc,
		watchers: map[string]*watcher.Watcher{},
	}
}

func (a *WalletAPI) Routes(r chi.Router) {
	r.Route("/wallet", func(r chi.Router) {
		r.Get("/status", a.status)
		r.Get("/stats", a.stats)
		r.Post("/sync", a.sync)
		r.Delete("/", a.clear)

		r.Get("/itineraries", a.listItineraries)
		r.Get("/itineraries/{id}", a.getItinerary)
		r.Put("/itineraries/{id}", a.putItinerary)
		r.Delete("/itineraries/{id}", a.deleteItinerary)

		r.Get("/bookings", a.listBookings)
		r.Get("/bookings/{id}", a.getBooking)
		r.Put("/bookings/{id}", a.putBooking)
		r.Delete("/bookings/{id}", a.deleteBooking)
		r.Post("/bookings/{id}/watch", a.startWatch)
		r.Get("/bookings/{id}/watch", a.watchSnapshot)
		r.Delete("/bookings/{id}/watch", a.stopWatch)

		r.Get("/tickets", a.listTickets)
		r.Get("/tickets/{id}", a.getTicket)
		r.Put("/tickets/{id}", a.putTicket)
		r.Delete("/tickets/{id}", a.deleteTicket)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err.Error())
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func (a *WalletAPI) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"userId":       a.svc.UserID(),
		"online":       a.svc.Online(),
		"syncing":      a.svc.Syncing(),
		"lastSyncedAt": a.svc.Stats(r.Context()).LastSyncedAt,
	})
}

func (a *WalletAPI) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.Stats(r.Context()))
}

func (a *WalletAPI) sync(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.SyncWithServer(r.Context())
	switch {
	case errors.Is(err, syncer.ErrOffline):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, wallet.ErrSyncInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		slog.Error("sync with server", "error", err.Error())
		writeError(w, http.StatusBadGateway, "sync failed")
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func (a *WalletAPI) clear(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.ClearAllData(r.Context()); err != nil {
		slog.Error("clear wallet", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "clear failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

func (a *WalletAPI) listItineraries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.Itineraries(r.Context()))
}

func (a *WalletAPI) listBookings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.Bookings(r.Context(), r.URL.Query().Get("itineraryId")))
}

func (a *WalletAPI) listTickets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.Tickets(r.Context(), r.URL.Query().Get("bookingId")))
}

func (a *WalletAPI) getItinerary(w http.ResponseWriter, r *http.Request) {
	a.getOne(w, r, func(ctx context.Context, id string) (any, bool, error) {
		it, ok, err := a.svc.GetItinerary(ctx, id)
		return it, ok, err
	})
}

func (a *WalletAPI) getBooking(w http.ResponseWriter, r *http.Request) {
	a.getOne(w, r, func(ctx context.Context, id string) (any, bool, error) {
		b, ok, err := a.svc.GetBooking(ctx, id)
		return b, ok, err
	})
}

func (a *WalletAPI) getTicket(w http.ResponseWriter, r *http.Request) {
	a.getOne(w, r, func(ctx context.Context, id string) (any, bool, error) {
		t, ok, err := a.svc.GetTicket(ctx, id)
		return t, ok, err
	})
}

func (a *WalletAPI) getOne(w http.ResponseWriter, r *http.Request, get func(context.Context, string) (any, bool, error)) {
	id := chi.URLParam(r, "id")
	v, ok, err := get(r.Context(), id)
	if err != nil {
		slog.Error("get record", "id", id, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *WalletAPI) putItinerary(w http.ResponseWriter, r *http.Request) {
	var it models.Itinerary
	if err := json.NewDecoder(r.Body).Decode(&it); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	it.ID = chi.URLParam(r, "id")
	if err := a.svc.SaveItinerary(r.Context(), &it); err != nil {
		slog.Error("save itinerary", "id", it.ID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "save failed")
		return
	}
	writeJSON(w, http.StatusOK, &it)
}

func (a *WalletAPI) putBooking(w http.ResponseWriter, r *http.Request) {
	var b models.Booking
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	b.ID = chi.URLParam(r, "id")
	if b.Status == "" {
		b.Status = models.BookingStatusPending
	}
	if err := a.svc.SaveBooking(r.Context(), &b); err != nil {
		slog.Error("save booking", "id", b.ID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "save failed")
		return
	}
	writeJSON(w, http.StatusOK, &b)
}

func (a *WalletAPI) putTicket(w http.ResponseWriter, r *http.Request) {
	var t models.Ticket
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	t.ID = chi.URLParam(r, "id")
	if err := a.svc.SaveTicket(r.Context(), &t); err != nil {
		slog.Error("save ticket", "id", t.ID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "save failed")
		return
	}
	writeJSON(w, http.StatusOK, &t)
}

func (a *WalletAPI) deleteItinerary(w http.ResponseWriter, r *http.Request) {
	a.deleteOne(w, r, a.svc.DeleteItinerary)
}

func (a *WalletAPI) deleteBooking(w http.ResponseWriter, r *http.Request) {
	a.deleteOne(w, r, a.svc.DeleteBooking)
}

func (a *WalletAPI) deleteTicket(w http.ResponseWriter, r *http.Request) {
	a.deleteOne(w, r, a.svc.DeleteTicket)
}

func (a *WalletAPI) deleteOne(w http.ResponseWriter, r *http.Request, del func(context.Context, string) error) {
	id := chi.URLParam(r, "id")
	if err := del(r.Context(), id); err != nil {
		slog.Error("delete record", "id", id, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (a *WalletAPI) startWatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	a.mu.Lock()
	wt, ok := a.watchers[id]
	if !ok {
		wt = a.svc.WatchBooking(id)
		a.watchers[id] = wt
	}
	a.mu.Unlock()

	// Start внутри идемпотентен: активный polling не перезапускается.
	wt.Start(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusAccepted, wt.Snapshot())
}

func (a *WalletAPI) watchSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a.mu.Lock()
	wt, ok := a.watchers[id]
	a.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "no watcher for booking")
		return
	}
	writeJSON(w, http.StatusOK, wt.Snapshot())
}

func (a *WalletAPI) stopWatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a.mu.Lock()
	wt, ok := a.watchers[id]
	a.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "no watcher for booking")
		return
	}
	wt.Stop()
	writeJSON(w, http.StatusOK, wt.Snapshot())
}
