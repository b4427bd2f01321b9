// Package esncard verifies ESNcard numbers against the public card service.
package esncard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/evorto/evorto-api/internal/pricing"
)

var ErrEmptyIdentifier = errors.New("card identifier is empty")

type Result struct {
	Identifier string
	Status     pricing.CardStatus
	ValidTo    *time.Time
}

type Verifier interface {
	Check(ctx context.Context, identifier string) (*Result, error)
}

type cardResponse struct {
	Code           string `json:"code"`
	Status         string `json:"status"`
	ExpirationDate string `json:"expiration-date"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Check looks a card up. Unknown cards come back as invalid, not as an error.
func (c *Client) Check(ctx context.Context, identifier string) (*Result, error) {
	identifier = strings.ToUpper(strings.TrimSpace(identifier))
	if identifier == "" {
		return nil, ErrEmptyIdentifier
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse esncard url: %w", err)
	}
	q := u.Query()
	q.Set("code", identifier)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("esncard lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("esncard lookup: unexpected status %d", resp.StatusCode)
	}

	var cards []cardResponse
	if err := json.NewDecoder(resp.Body).Decode(&cards); err != nil {
		return nil, fmt.Errorf("decode esncard response: %w", err)
	}

	res := &Result{Identifier: identifier, Status: pricing.CardInvalid}
	if len(cards) == 0 {
		return res, nil
	}

	card := cards[0]
	switch strings.ToLower(card.Status) {
	case "active":
		res.Status = pricing.CardVerified
	case "expired":
		res.Status = pricing.CardExpired
	}
	if card.ExpirationDate != "" {
		if t, err := time.Parse("2006-01-02", card.ExpirationDate); err == nil {
			end := t.Add(24*time.Hour - time.Second)
			res.ValidTo = &end
		}
	}
	return res, nil
}
