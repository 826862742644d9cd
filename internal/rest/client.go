package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/courtside/courtside/internal/domain"
)

// Client is the typed HTTP client for the court server's REST surface: the
// snapshot endpoints used by initial load and reconnect resync, plus the
// write fallbacks that mirror the push intents.
type Client struct {
	baseURL string
	client  *http.Client

	// headerMu guards headers: the token can be swapped at runtime while the
	// resync loop and auto-confirm fallback issue requests on other goroutines.
	headerMu sync.RWMutex
	headers  map[string]string
}

// NewClient returns a client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		headers: make(map[string]string),
	}
}

// SetHeader sets a header on every request (e.g. Authorization).
func (c *Client) SetHeader(key, value string) {
	c.headerMu.Lock()
	c.headers[key] = value
	c.headerMu.Unlock()
}

// SetToken installs a bearer token for the admin write paths.
func (c *Client) SetToken(token string) {
	c.SetHeader("Authorization", "Bearer "+token)
}

// SetTimeout overrides the default request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// QueueSnapshot fetches the authoritative queue state.
func (c *Client) QueueSnapshot(ctx context.Context) (domain.QueueState, error) {
	var out domain.QueueState
	if err := c.getJSON(ctx, "/api/queue", &out); err != nil {
		return domain.QueueState{}, fmt.Errorf("queue snapshot: %w", err)
	}
	return out, nil
}

// CurrentMatch fetches the match currently on court. Returns nil when the
// court is idle.
func (c *Client) CurrentMatch(ctx context.Context) (*domain.Match, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/match/current", nil)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("current match snapshot: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 || bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return nil, nil
	}
	var m domain.Match
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("decode current match: %w", err)
	}
	return &m, nil
}

// CourtStatus fetches the court's operating status.
func (c *Client) CourtStatus(ctx context.Context) (domain.CourtStatus, error) {
	var out domain.CourtStatus
	if err := c.getJSON(ctx, "/api/court-status", &out); err != nil {
		return domain.CourtStatus{}, fmt.Errorf("court status snapshot: %w", err)
	}
	return out, nil
}

// ConfirmResult is the REST fallback for the confirm-result push intent. It
// produces the same server-side transition.
func (c *Client) ConfirmResult(ctx context.Context, matchID, teamID string, confirmed bool) error {
	payload := map[string]any{
		"matchId":   matchID,
		"teamId":    teamID,
		"confirmed": confirmed,
	}
	if _, err := c.postJSON(ctx, "/api/match/confirm", payload); err != nil {
		return fmt.Errorf("confirm result: %w", err)
	}
	return nil
}

// TeamPosition is one {teamId, position} pair of a reorder request.
type TeamPosition struct {
	TeamID   string `json:"teamId"`
	Position int    `json:"position"`
}

// ReorderQueue submits the authoritative admin reorder.
func (c *Client) ReorderQueue(ctx context.Context, order []TeamPosition) error {
	body, err := json.Marshal(map[string]any{"order": order})
	if err != nil {
		return fmt.Errorf("encode reorder: %w", err)
	}
	if _, err := c.do(ctx, http.MethodPut, "/api/queue/reorder", bytes.NewReader(body)); err != nil {
		return fmt.Errorf("reorder queue: %w", err)
	}
	return nil
}

// ForceResolve completes a disputed match immediately (admin override).
func (c *Client) ForceResolve(ctx context.Context, matchID string, score1, score2 int) error {
	payload := map[string]any{
		"matchId": matchID,
		"score1":  score1,
		"score2":  score2,
	}
	if _, err := c.postJSON(ctx, "/api/match/force-resolve", payload); err != nil {
		return fmt.Errorf("force resolve: %w", err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", endpoint, err)
	}
	return c.do(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
}

func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.headerMu.RLock()
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	c.headerMu.RUnlock()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp.StatusCode, responseBody)
	}
	return responseBody, nil
}
