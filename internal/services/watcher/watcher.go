package watcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/HopNGo/TripWallet/internal/integrations/travelapi"
	"github.com/HopNGo/TripWallet/internal/models"
)

// State — фаза наблюдателя статуса бронирования.
type State string

const (
	StateIdle      State = "idle"
	StatePolling   State = "polling"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed-out"
)

type StatusClient interface {
	GetBookingStatus(ctx context.Context, bookingID string) (travelapi.BookingStatus, error)
}

type Config struct {
	BookingID   string
	Interval    time.Duration // default 2s
	MaxAttempts int           // default 150 (5 минут при интервале по умолчанию)

	OnStatusChange func(travelapi.BookingStatus)
	OnSuccess      func(travelapi.BookingStatus)
	OnFailure      func(travelapi.BookingStatus)
	OnTimeout      func()
}

// Watcher — ограниченный опрос статусного эндпоинта одного бронирования.
// confirmed → succeeded, cancelled → failed, исчерпание попыток → timed-out.
// Ошибки fetch не прерывают цикл, но расходуют общий бюджет попыток.
// В полёте всегда не больше одного запроса: следующий опрос планируется
// строго после завершения предыдущего.
type Watcher struct {
	client StatusClient
	cfg    Config

	mu         sync.Mutex
	state      State
	attempts   int
	lastStatus string
	lastErr    string
	startedAt  time.Time
	stopCh     chan struct{}
	doneCh     chan struct{}
}

func New(client StatusClient, cfg Config) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 150
	}
	return &Watcher{
		client: client,
		cfg:    cfg,
		state:  StateIdle,
	}
}

type Snapshot struct {
	State      State     `json:"state"`
	Attempts   int       `json:"attempts"`
	LastStatus string    `json:"lastStatus,omitempty"`
	LastError  string    `json:"lastError,omitempty"`
	StartedAt  time.Time `json:"startedAt,omitzero"`

	IsPolling  bool `json:"isPolling"`
	IsComplete bool `json:"isComplete"`
	IsSuccess  bool `json:"isSuccess"`
	IsFailure  bool `json:"isFailure"`
}

func (w *Watcher) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Snapshot{
		State:      w.state,
		Attempts:   w.attempts,
		LastStatus: w.lastStatus,
		LastError:  w.lastErr,
		StartedAt:  w.startedAt,
		IsPolling:  w.state == StatePolling,
		IsComplete: w.state == StateSucceeded || w.state == StateFailed || w.state == StateTimedOut,
		IsSuccess:  w.state == StateSucceeded,
		IsFailure:  w.state == StateFailed || w.state == StateTimedOut,
	}
}

// Start запускает цикл опроса. Повторный Start во время polling — no-op;
// из терминального состояния наблюдатель перезапускается с нуля.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.state == StatePolling {
		w.mu.Unlock()
		return
	}
	w.state = StatePolling
	w.attempts = 0
	w.lastStatus = ""
	w.lastErr = ""
	w.startedAt = time.Now().UTC()
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	go w.run(ctx, stopCh, doneCh)
}

// Stop принудительно переводит наблюдатель в idle и отменяет запланированный
// опрос. Безопасен в любом состоянии и из любого числа горутин.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.state != StatePolling {
		w.mu.Unlock()
		return
	}
	w.state = StateIdle
	close(w.stopCh)
	w.mu.Unlock()
}

// Done закрывается, когда цикл опроса завершился (терминально или по Stop).
func (w *Watcher) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.doneCh == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return w.doneCh
}

func (w *Watcher) run(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	timer := time.NewTimer(w.cfg.Interval)
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		// Stop мог сработать, пока предыдущий запрос был в полёте.
		if w.stopped(stopCh, ctx) {
			return
		}

		st, err := w.client.GetBookingStatus(ctx, w.cfg.BookingID)

		w.mu.Lock()
		if w.state != StatePolling {
			w.mu.Unlock()
			return
		}
		w.attempts = attempt
		if err != nil {
			w.lastErr = err.Error()
		} else {
			changed := st.Status != w.lastStatus
			w.lastStatus = st.Status
			w.lastErr = ""
			switch st.Status {
			case models.BookingStatusConfirmed:
				w.state = StateSucceeded
				w.mu.Unlock()
				if changed && w.cfg.OnStatusChange != nil {
					w.cfg.OnStatusChange(st)
				}
				if w.cfg.OnSuccess != nil {
					w.cfg.OnSuccess(st)
				}
				return
			case models.BookingStatusCancelled:
				w.state = StateFailed
				w.mu.Unlock()
				if changed && w.cfg.OnStatusChange != nil {
					w.cfg.OnStatusChange(st)
				}
				if w.cfg.OnFailure != nil {
					w.cfg.OnFailure(st)
				}
				return
			default:
				w.mu.Unlock()
				if changed && w.cfg.OnStatusChange != nil {
					w.cfg.OnStatusChange(st)
				}
				w.mu.Lock()
			}
		}

		if attempt >= w.cfg.MaxAttempts {
			w.state = StateTimedOut
			w.mu.Unlock()
			slog.Warn("booking status watch timed out", "booking_id", w.cfg.BookingID, "attempts", attempt)
			if w.cfg.OnTimeout != nil {
				w.cfg.OnTimeout()
			}
			return
		}
		w.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.cfg.Interval)

		select {
		case <-ctx.Done():
			w.toIdle()
			return
		case <-stopCh:
			return
		case <-timer.C:
		}
	}
}

func (w *Watcher) stopped(stopCh chan struct{}, ctx context.Context) bool {
	select {
	case <-stopCh:
		return true
	case <-ctx.Done():
		w.toIdle()
		return true
	default:
		return false
	}
}

func (w *Watcher) toIdle() {
	w.mu.Lock()
	if w.state == StatePolling {
		w.state = StateIdle
	}
	w.mu.Unlock()
}
