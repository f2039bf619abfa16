// Package video crée les salles d'appel chez Daily.co.
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
)

// Room est une salle d'appel vidéo créée pour une réservation.
type Room struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// RoomProvider crée une salle expirant à expiresAt.
type RoomProvider interface {
	CreateRoom(ctx context.Context, name string, expiresAt time.Time) (*Room, error)
}

// DailyClient appelle l'API REST Daily.co.
type DailyClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewDailyClient(baseURL, apiKey string) *DailyClient {
	return &DailyClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type createRoomRequest struct {
	Name       string         `json:"name"`
	Privacy    string         `json:"privacy"`
	Properties roomProperties `json:"properties"`
}

type roomProperties struct {
	Exp             int64 `json:"exp"`
	MaxParticipants int   `json:"max_participants"`
	EnableChat      bool  `json:"enable_chat"`
}

func (c *DailyClient) CreateRoom(ctx context.Context, name string, expiresAt time.Time) (*Room, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("DAILY_API_KEY non configuré")
	}

	body, err := json.Marshal(createRoomRequest{
		Name:    name,
		Privacy: "private",
		Properties: roomProperties{
			Exp:             expiresAt.Unix(),
			MaxParticipants: 2,
			EnableChat:      true,
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rooms", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("appel Daily.co: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("Daily.co a répondu %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var room Room
	if err := json.NewDecoder(resp.Body).Decode(&room); err != nil {
		return nil, fmt.Errorf("réponse Daily.co invalide: %w", err)
	}
	return &room, nil
}
