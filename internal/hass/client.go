// Package hass is a minimal Home Assistant REST client covering the three
// surfaces habitd needs: the logbook (activity history), the states API
// (friendly names and automation states), and persistent notifications.
package hass

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/runger/habitd/internal/activity"
	"github.com/runger/habitd/internal/analyzer"
	"github.com/runger/habitd/internal/config"
)

// TokenEnvVar is checked for a long-lived access token before the
// ~/.ha_token fallback file.
const TokenEnvVar = "HABITD_HA_TOKEN"

// Client talks to one Home Assistant instance.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client from config. The token is resolved in order:
// explicit config value, token file, HABITD_HA_TOKEN, ~/.ha_token.
func NewClient(cfg config.HassConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("home_assistant.url is not configured")
	}
	token, err := resolveToken(cfg)
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

func resolveToken(cfg config.HassConfig) (string, error) {
	if cfg.Token != "" {
		return cfg.Token, nil
	}
	if cfg.TokenFile != "" {
		data, err := os.ReadFile(cfg.TokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read token file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	if token := os.Getenv(TokenEnvVar); token != "" {
		return token, nil
	}
	home, err := os.UserHomeDir()
	if err == nil {
		if data, err := os.ReadFile(filepath.Join(home, ".ha_token")); err == nil {
			if token := strings.TrimSpace(string(data)); token != "" {
				return token, nil
			}
		}
	}
	return "", fmt.Errorf("no Home Assistant token found: set home_assistant.token, %s, or ~/.ha_token", TokenEnvVar)
}

// Logbook fetches logbook entries between start and end and shapes them
// into activity records. Entries the server returns in unexpected shapes
// become mostly-empty records and are dropped downstream.
func (c *Client) Logbook(ctx context.Context, start, end time.Time) ([]activity.Record, error) {
	endpoint := fmt.Sprintf("%s/api/logbook/%s?end_time=%s",
		c.baseURL,
		url.PathEscape(start.UTC().Format(time.RFC3339)),
		url.QueryEscape(end.UTC().Format(time.RFC3339)))

	var raw []map[string]any
	if err := c.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("logbook query failed: %w", err)
	}

	records := make([]activity.Record, 0, len(raw))
	for _, entry := range raw {
		records = append(records, activity.FromRaw(entry))
	}
	return records, nil
}

// EntityState is one row from the states API.
type EntityState struct {
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// States fetches all current entity states.
func (c *Client) States(ctx context.Context) ([]EntityState, error) {
	var states []EntityState
	if err := c.getJSON(ctx, c.baseURL+"/api/states", &states); err != nil {
		return nil, fmt.Errorf("states query failed: %w", err)
	}
	return states, nil
}

// FriendlyNames extracts an entity_id -> friendly_name map from states.
func FriendlyNames(states []EntityState) map[string]string {
	names := make(map[string]string, len(states))
	for _, st := range states {
		if name, ok := st.Attributes["friendly_name"].(string); ok && name != "" {
			names[st.EntityID] = name
		}
	}
	return names
}

// AutomationStates shapes the automation entities out of states for stale
// detection.
func AutomationStates(states []EntityState) []analyzer.AutomationState {
	var automations []analyzer.AutomationState
	for _, st := range states {
		if !strings.HasPrefix(st.EntityID, "automation.") {
			continue
		}
		a := analyzer.AutomationState{
			EntityID: st.EntityID,
			State:    st.State,
		}
		if name, ok := st.Attributes["friendly_name"].(string); ok {
			a.FriendlyName = name
		}
		if last, ok := st.Attributes["last_triggered"].(string); ok {
			a.LastTriggered = last
		}
		automations = append(automations, a)
	}
	return automations
}

// Notify creates (or replaces) a persistent notification.
func (c *Client) Notify(ctx context.Context, notificationID, title, message string) error {
	payload, err := json.Marshal(map[string]string{
		"notification_id": notificationID,
		"title":           title,
		"message":         message,
	})
	if err != nil {
		return err
	}

	endpoint := c.baseURL + "/api/services/persistent_notification/create"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("notification request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("notification request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
