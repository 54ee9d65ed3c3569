// Package remote is the device-side client of the menuboard REST API. It
// implements favorites.Remote and pushclient.Records over HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukerupert/menuboard/internal/model"
)

// Config holds the connection settings for the API.
type Config struct {
	BaseURL string
	APIKey  string
	// Token is sent as a bearer token. It defaults to APIKey.
	Token   string
	Timeout time.Duration
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api: status %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Token == "" {
		cfg.Token = cfg.APIKey
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("apikey", c.cfg.APIKey)
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&e)
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ProductIDs returns the favorite product IDs of a customer at an establishment.
func (c *Client) ProductIDs(ctx context.Context, customerID, establishmentID string) ([]string, error) {
	q := url.Values{"customer_id": {customerID}, "establishment_id": {establishmentID}}
	var rows []model.Favorite
	if err := c.do(ctx, http.MethodGet, "/rest/v1/favorites", q, nil, &rows); err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ProductID)
	}
	return ids, nil
}

// Add inserts the given products as favorites in one request.
func (c *Client) Add(ctx context.Context, customerID, establishmentID string, productIDs ...string) error {
	if len(productIDs) == 0 {
		return nil
	}
	rows := make([]model.Favorite, 0, len(productIDs))
	for _, id := range productIDs {
		rows = append(rows, model.Favorite{CustomerID: customerID, EstablishmentID: establishmentID, ProductID: id})
	}
	if err := c.do(ctx, http.MethodPost, "/rest/v1/favorites", nil, rows, nil); err != nil {
		return fmt.Errorf("add favorites: %w", err)
	}
	return nil
}

func (c *Client) Remove(ctx context.Context, customerID, establishmentID, productID string) error {
	q := url.Values{"customer_id": {customerID}, "establishment_id": {establishmentID}, "product_id": {productID}}
	if err := c.do(ctx, http.MethodDelete, "/rest/v1/favorites", q, nil, nil); err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	return nil
}

func (c *Client) Clear(ctx context.Context, customerID, establishmentID string) error {
	q := url.Values{"customer_id": {customerID}, "establishment_id": {establishmentID}}
	if err := c.do(ctx, http.MethodDelete, "/rest/v1/favorites", q, nil, nil); err != nil {
		return fmt.Errorf("clear favorites: %w", err)
	}
	return nil
}

// Upsert stores sub, replacing any record with the same scope key.
func (c *Client) Upsert(ctx context.Context, sub *model.PushSubscription) (*model.PushSubscription, error) {
	var saved model.PushSubscription
	if err := c.do(ctx, http.MethodPut, "/rest/v1/push-subscriptions", nil, sub, &saved); err != nil {
		return nil, fmt.Errorf("save subscription: %w", err)
	}
	return &saved, nil
}

// DeleteByScope removes the subscription record stored under scope.
func (c *Client) DeleteByScope(ctx context.Context, scope model.SubscriptionScope) error {
	q := url.Values{}
	for k, v := range map[string]string{
		"establishment_id": scope.EstablishmentID,
		"customer_phone":   scope.CustomerPhone,
		"user_id":          scope.UserID,
		"endpoint":         scope.Endpoint,
	} {
		if v != "" {
			q.Set(k, v)
		}
	}
	if err := c.do(ctx, http.MethodDelete, "/rest/v1/push-subscriptions", q, nil, nil); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

// VAPIDKey returns the server's application server public key.
func (c *Client) VAPIDKey(ctx context.Context) (string, error) {
	var resp struct {
		PublicKey string `json:"public_key"`
	}
	if err := c.do(ctx, http.MethodGet, "/rest/v1/push/vapid-key", nil, nil, &resp); err != nil {
		return "", fmt.Errorf("get VAPID key: %w", err)
	}
	return resp.PublicKey, nil
}

// DispatchResult is the dispatch endpoint's answer.
type DispatchResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Dispatch asks the server to notify a customer of an order status change.
func (c *Client) Dispatch(ctx context.Context, change model.StatusChange) (DispatchResult, error) {
	var res DispatchResult
	if err := c.do(ctx, http.MethodPost, "/functions/v1/send-push-notification", nil, change, &res); err != nil {
		return DispatchResult{}, fmt.Errorf("dispatch: %w", err)
	}
	return res, nil
}

// FeedURL returns the websocket URL of the admin notification change feed.
func (c *Client) FeedURL() string {
	u := c.cfg.BaseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/realtime/v1/admin-notifications"
}

// Header returns the authentication headers sent with every request.
func (c *Client) Header() http.Header {
	h := http.Header{}
	h.Set("apikey", c.cfg.APIKey)
	h.Set("Authorization", "Bearer "+c.cfg.Token)
	return h
}
