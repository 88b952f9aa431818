// Package ipc is the client side of the habitd daemon API: plain HTTP JSON
// over the daemon's unix socket.
package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/runger/habitd/internal/analyzer"
	"github.com/runger/habitd/internal/suggestion"
)

// DefaultTimeout bounds a single daemon request. Analysis runs can take a
// while against a slow Home Assistant instance, so it is generous.
const DefaultTimeout = 2 * time.Minute

// Client talks to a running habitd daemon.
type Client struct {
	http *http.Client
}

// NewClient creates a client for the daemon socket at socketPath.
func NewClient(socketPath string) *Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
	}
	return &Client{
		http: &http.Client{Transport: transport, Timeout: DefaultTimeout},
	}
}

// SuggestionsPage is one page of the daemon's suggestion list.
type SuggestionsPage struct {
	Suggestions []suggestion.Suggestion `json:"suggestions"`
	Total       int                     `json:"total"`
	Page        int                     `json:"page"`
	Pages       int                     `json:"pages"`
	PageSize    int                     `json:"page_size"`
}

// StalePage is one page of the daemon's stale-automation list.
type StalePage struct {
	StaleAutomations []analyzer.StaleAutomation `json:"stale_automations"`
	Total            int                        `json:"total"`
	Page             int                        `json:"page"`
	Pages            int                        `json:"pages"`
	PageSize         int                        `json:"page_size"`
}

// AnalyzeResult is the daemon's response to a manual analysis trigger.
type AnalyzeResult struct {
	RunID       string `json:"run_id"`
	Suggestions int    `json:"suggestions"`
	Stale       int    `json:"stale"`
	RecordCount int    `json:"record_count"`
}

// Suggestions fetches one page of suggestions.
func (c *Client) Suggestions(ctx context.Context, page, pageSize int) (*SuggestionsPage, error) {
	var out SuggestionsPage
	path := fmt.Sprintf("/v1/suggestions?page=%d&page_size=%d", page, pageSize)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stale fetches one page of stale automations.
func (c *Client) Stale(ctx context.Context, page, pageSize int) (*StalePage, error) {
	var out StalePage
	path := fmt.Sprintf("/v1/stale?page=%d&page_size=%d", page, pageSize)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Analyze triggers an immediate analysis run and waits for it.
func (c *Client) Analyze(ctx context.Context) (*AnalyzeResult, error) {
	var out AnalyzeResult
	if err := c.post(ctx, "/v1/analyze", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Dismiss marks a suggestion or stale-automation id as dismissed.
func (c *Client) Dismiss(ctx context.Context, id string) error {
	return c.post(ctx, "/v1/dismiss", map[string]string{"id": id}, nil)
}

// Restore removes an id from the dismissed set.
func (c *Client) Restore(ctx context.Context, id string) error {
	return c.post(ctx, "/v1/restore", map[string]string{"id": id}, nil)
}

// Status fetches the daemon status document.
func (c *Client) Status(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.get(ctx, "/v1/status", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://habitd"+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://habitd"+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon error: %s", apiErr.Error)
		}
		return fmt.Errorf("daemon error: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
