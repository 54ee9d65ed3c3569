package model

import "time"

// PushSubscription is a device registration for push notifications. Customer
// subscriptions are keyed by (EstablishmentID, CustomerPhone); dashboard
// subscriptions by (UserID, Endpoint).
type PushSubscription struct {
	ID              string    `json:"id"`
	EstablishmentID string    `json:"establishment_id,omitempty"`
	CustomerPhone   string    `json:"customer_phone,omitempty"`
	CustomerID      string    `json:"customer_id,omitempty"`
	UserID          string    `json:"user_id,omitempty"`
	Endpoint        string    `json:"endpoint"`
	P256dh          string    `json:"p256dh"`
	Auth            string    `json:"auth"`
	UserAgent       string    `json:"user_agent,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SubscriptionScope identifies the single subscription record a device owns.
type SubscriptionScope struct {
	EstablishmentID string `json:"establishment_id,omitempty"`
	CustomerPhone   string `json:"customer_phone,omitempty"`
	UserID          string `json:"user_id,omitempty"`
	Endpoint        string `json:"endpoint,omitempty"`
}

// CustomerScope returns the scope of a customer-facing subscription.
func CustomerScope(establishmentID, customerPhone string) SubscriptionScope {
	return SubscriptionScope{EstablishmentID: establishmentID, CustomerPhone: customerPhone}
}

// UserScope returns the scope of a store dashboard subscription.
func UserScope(userID, endpoint string) SubscriptionScope {
	return SubscriptionScope{UserID: userID, Endpoint: endpoint}
}

// IsCustomer reports whether the scope is keyed by establishment and phone.
func (s SubscriptionScope) IsCustomer() bool {
	return s.CustomerPhone != ""
}

// Valid reports whether the scope names a complete key.
func (s SubscriptionScope) Valid() bool {
	if s.IsCustomer() {
		return s.EstablishmentID != ""
	}
	return s.UserID != "" && s.Endpoint != ""
}

// Key is a stable string form of the scope.
func (s SubscriptionScope) Key() string {
	if s.IsCustomer() {
		return "customer:" + s.EstablishmentID + ":" + s.CustomerPhone
	}
	return "user:" + s.UserID + ":" + s.Endpoint
}

// Scope returns the scope key the subscription is stored under.
func (p *PushSubscription) Scope() SubscriptionScope {
	if p.CustomerPhone != "" {
		return CustomerScope(p.EstablishmentID, p.CustomerPhone)
	}
	return UserScope(p.UserID, p.Endpoint)
}
