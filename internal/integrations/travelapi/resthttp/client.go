package resthttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/HopNGo/TripWallet/internal/integrations/travelapi"
	"github.com/HopNGo/TripWallet/internal/models"
	"github.com/pkg/errors"
)

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:9000"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Все list-эндпоинты отвечают конвертом {"data":[...]}.
type listEnvelope[T any] struct {
	Data []T `json:"data"`
}

func (c *Client) ListItineraries(ctx context.Context, userID string, limit int) ([]*models.Itinerary, error) {
	return listRecords[*models.Itinerary](ctx, c, userID, "itineraries", limit)
}

func (c *Client) ListBookings(ctx context.Context, userID string, limit int) ([]*models.Booking, error) {
	return listRecords[*models.Booking](ctx, c, userID, "bookings", limit)
}

func (c *Client) ListTickets(ctx context.Context, userID string, limit int) ([]*models.Ticket, error) {
	return listRecords[*models.Ticket](ctx, c, userID, "tickets", limit)
}

func listRecords[T any](ctx context.Context, c *Client, userID, collection string, limit int) ([]T, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	u.Path = fmt.Sprintf("/users/%s/%s", url.PathEscape(userID), collection)
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	var env listEnvelope[T]
	if err := c.getJSON(ctx, u.String(), &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *Client) GetBookingStatus(ctx context.Context, bookingID string) (travelapi.BookingStatus, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return travelapi.BookingStatus{}, errors.Wrap(err, "parse base url")
	}
	u.Path = fmt.Sprintf("/bookings/%s/status", url.PathEscape(bookingID))

	var st travelapi.BookingStatus
	if err := c.getJSON(ctx, u.String(), &st); err != nil {
		return travelapi.BookingStatus{}, err
	}
	return st, nil
}

func (c *Client) PushOperation(ctx context.Context, userID string, op *models.SyncOp) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return errors.Wrap(err, "parse base url")
	}
	u.Path = fmt.Sprintf("/users/%s/operations", url.PathEscape(userID))

	body, err := json.Marshal(op)
	if err != nil {
		return errors.Wrap(err, "marshal op")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")
	c.auth(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("travel api http %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return errors.Wrap(err, "parse base url")
	}
	u.Path = "/health"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return errors.Wrap(err, "new request")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("travel api http %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	c.auth(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("travel api rate limit (429)")
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("travel api http %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return errors.Wrap(err, "decode")
	}
	return nil
}

func (c *Client) auth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
