// Package video provisions meeting rooms for video consultations through
// the Daily REST API. There is no Go SDK for it; this is a thin HTTP
// client. Room creation is best-effort from the booking flow's point of
// view: callers treat failures as degraded, not fatal.
package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stillpoint/massage-bookings/pkg/config"
)

type Client struct {
	apiKey     string
	baseURL    string
	roomTTL    time.Duration
	httpClient *http.Client
}

type Room struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func NewClient(cfg config.VideoConfig) *Client {
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		roomTTL:    cfg.RoomTTL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithBaseURL overrides the API base URL (for testing).
func (c *Client) WithBaseURL(baseURL string) *Client {
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

type createRoomRequest struct {
	Name       string         `json:"name"`
	Properties roomProperties `json:"properties"`
}

type roomProperties struct {
	Exp             int64 `json:"exp"`
	EnablePrejoin   bool  `json:"enable_prejoin_ui"`
	MaxParticipants int   `json:"max_participants,omitempty"`
}

// CreateRoom provisions a room for a consultation and returns its URL.
func (c *Client) CreateRoom(ctx context.Context, consultationID int64, participantNames []string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("video provisioning disabled (missing VIDEO_API_KEY)")
	}

	payload := createRoomRequest{
		Name: fmt.Sprintf("consult-%d", consultationID),
		Properties: roomProperties{
			Exp:             time.Now().Add(c.roomTTL).Unix(),
			EnablePrejoin:   true,
			MaxParticipants: len(participantNames) + 1,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("video: marshal room request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rooms", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("video: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("video: http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("video: api status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var room Room
	if err := json.NewDecoder(resp.Body).Decode(&room); err != nil {
		return "", fmt.Errorf("video: decode response: %w", err)
	}
	if room.URL == "" {
		return "", fmt.Errorf("video: response missing room url")
	}

	return room.URL, nil
}
