// Package oracle fetches the game's capability catalog from the rule oracle.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nstehr/masp/model"
)

// ErrUnreachable matches every failure to obtain a catalog: transport
// errors, timeouts, non-200 responses and undecodable bodies.
var ErrUnreachable = errors.New("oracle unreachable")

// Error names the oracle address so operators know which service to check.
type Error struct {
	Addr   string
	Status int // HTTP status, 0 when no response was received
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("oracle unreachable at %s: status %d", e.Addr, e.Status)
	}
	return fmt.Sprintf("oracle unreachable at %s: %v", e.Addr, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrUnreachable }

// Client talks to a single oracle. It never retries; the caller treats a
// failure as fatal for the current cycle.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Addr returns the configured oracle base URL.
func (c *Client) Addr() string { return c.baseURL }

// LearnRules issues one GET /tools and decodes the catalog in server order.
func (c *Client) LearnRules(ctx context.Context) (model.Catalog, error) {
	slog.Info("consulting rule oracle", "addr", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tools", nil)
	if err != nil {
		return nil, &Error{Addr: c.baseURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Addr: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Addr: c.baseURL, Status: resp.StatusCode}
	}

	var catalog model.Catalog
	if err := json.NewDecoder(resp.Body).Decode(&catalog); err != nil {
		return nil, &Error{Addr: c.baseURL, Err: fmt.Errorf("decode catalog: %w", err)}
	}
	for i := range catalog {
		if catalog[i].Args == nil {
			catalog[i].Args = []string{}
		}
	}

	slog.Info("rules learned", "capabilities", len(catalog), "names", catalog.Names())
	return catalog, nil
}
