package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukerupert/menuboard/internal/model"
)

func testNotification() *model.AdminNotification {
	return &model.AdminNotification{
		Kind:    model.AdminKindNewEstablishment,
		Title:   "New establishment",
		Message: "Cafe <Central> signed up",
	}
}

func TestSendAdminAlert(t *testing.T) {
	var received postmarkEmail
	var gotToken string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Postmark-Server-Token")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	defer server.Close()

	client := NewClient("test-token", "noreply@example.com", "admin@example.com", "https://menu.test/",
		WithHTTPClient(&http.Client{Transport: &rewriteTransport{base: http.DefaultTransport, target: server.URL}}))

	if err := client.SendAdminAlert(context.Background(), testNotification()); err != nil {
		t.Fatalf("send admin alert: %v", err)
	}

	if gotToken != "test-token" {
		t.Errorf("server token = %q, want %q", gotToken, "test-token")
	}
	if received.To != "admin@example.com" {
		t.Errorf("To = %q, want %q", received.To, "admin@example.com")
	}
	if received.From != "noreply@example.com" {
		t.Errorf("From = %q, want %q", received.From, "noreply@example.com")
	}
	if received.Subject != "[Menuboard] New establishment" {
		t.Errorf("Subject = %q", received.Subject)
	}
	if received.Tag != model.AdminKindNewEstablishment {
		t.Errorf("Tag = %q", received.Tag)
	}
	if !strings.Contains(received.HtmlBody, "Cafe &lt;Central&gt;") {
		t.Errorf("HtmlBody not escaped: %q", received.HtmlBody)
	}
	if !strings.Contains(received.TextBody, "https://menu.test/admin/notifications") {
		t.Errorf("TextBody missing dashboard link: %q", received.TextBody)
	}
}

func TestSendAdminAlertNotConfigured(t *testing.T) {
	client := NewClient("", "noreply@example.com", "admin@example.com", "https://menu.test")

	if err := client.SendAdminAlert(context.Background(), testNotification()); err == nil {
		t.Fatal("expected error for unconfigured client")
	}
}

func TestSendAdminAlertAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewClient("test-token", "noreply@example.com", "admin@example.com", "https://menu.test")
	client.httpClient = &http.Client{Transport: &rewriteTransport{base: http.DefaultTransport, target: server.URL}}

	if err := client.SendAdminAlert(context.Background(), testNotification()); err == nil {
		t.Fatal("expected error for API failure")
	}
}

func TestConfigured(t *testing.T) {
	tests := []struct {
		token, admin string
		want         bool
	}{
		{"token", "admin@test.com", true},
		{"", "admin@test.com", false},
		{"token", "", false},
	}
	for _, tt := range tests {
		c := NewClient(tt.token, "from@test.com", tt.admin, "https://test.com")
		if got := c.Configured(); got != tt.want {
			t.Errorf("Configured(%q, %q) = %v, want %v", tt.token, tt.admin, got, tt.want)
		}
	}
}

// rewriteTransport redirects all requests to a test server URL.
type rewriteTransport struct {
	base   http.RoundTripper
	target string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = t.target[len("http://"):]
	return t.base.RoundTrip(req)
}
