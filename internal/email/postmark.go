package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/dukerupert/menuboard/internal/model"
)

const postmarkURL = "https://api.postmarkapp.com/email"

type Client struct {
	serverToken string
	fromEmail   string
	adminEmail  string
	baseURL     string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// NewClient creates a Postmark client that sends admin alerts to adminEmail.
// baseURL is the admin dashboard, linked from every alert.
func NewClient(serverToken, fromEmail, adminEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		adminEmail:  adminEmail,
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token and admin address are set.
func (c *Client) Configured() bool {
	return c.serverToken != "" && c.adminEmail != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
	Tag      string `json:"Tag,omitempty"`
}

// SendAdminAlert emails the admin address about a new admin notification.
func (c *Client) SendAdminAlert(ctx context.Context, n *model.AdminNotification) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token or admin address")
	}

	link := c.baseURL + "/admin/notifications"
	textBody := fmt.Sprintf("%s\n\n%s\n\nOpen the dashboard: %s", n.Title, n.Message, link)
	htmlBody := fmt.Sprintf(
		`<p><strong>%s</strong></p><p>%s</p><p><a href="%s">Open the dashboard</a></p>`,
		html.EscapeString(n.Title), html.EscapeString(n.Message), link,
	)

	return c.send(ctx, postmarkEmail{
		From:     c.fromEmail,
		To:       c.adminEmail,
		Subject:  "[Menuboard] " + n.Title,
		HtmlBody: htmlBody,
		TextBody: textBody,
		Tag:      n.Kind,
	})
}

func (c *Client) send(ctx context.Context, payload postmarkEmail) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", postmarkURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
