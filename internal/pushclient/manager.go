// Package pushclient manages a device's push subscription: the notification
// permission, the platform push registration, and the subscription record
// stored on the server.
//
// An embedding app calls New with a Platform backed by its push API and a
// remote.Client as Records, then drives Subscribe and Unsubscribe from its UI.
package pushclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/menuboard/internal/model"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrUnsupported is returned by every operation on a device without push support.
	ErrUnsupported = errors.New("push notifications are not supported")
	// ErrPermissionDenied is returned when the user does not grant notification permission.
	ErrPermissionDenied = errors.New("notification permission not granted")
)

// Permission is the platform's notification permission.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// State is the manager's view of the subscription lifecycle.
type State string

const (
	StateUnsupported  State = "unsupported"
	StateDefault      State = "default"
	StateDenied       State = "denied"
	StateUnsubscribed State = "granted-unsubscribed"
	StateSubscribed   State = "granted-subscribed"
)

// Registration is a platform push registration.
type Registration struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// Platform is the device's push, permission and service worker API.
type Platform interface {
	Supported() bool
	Permission() Permission
	RequestPermission(ctx context.Context) (Permission, error)
	// Ready blocks until the worker that receives pushes is active.
	Ready(ctx context.Context) error
	// Subscription returns the current registration, or nil if there is none.
	Subscription(ctx context.Context) (*Registration, error)
	Subscribe(ctx context.Context, applicationServerKey string) (*Registration, error)
	Unsubscribe(ctx context.Context) error
}

// Records is the server-side subscription table. store.PushStore and
// remote.Client implement it.
type Records interface {
	Upsert(ctx context.Context, sub *model.PushSubscription) (*model.PushSubscription, error)
	DeleteByScope(ctx context.Context, scope model.SubscriptionScope) error
}

// Identity says whose subscription this device holds. A customer identity has
// EstablishmentID and CustomerPhone; a dashboard identity has UserID.
type Identity struct {
	EstablishmentID string
	CustomerPhone   string
	CustomerID      string
	UserID          string
	UserAgent       string
}

func (id Identity) scope(endpoint string) model.SubscriptionScope {
	if id.CustomerPhone != "" {
		return model.CustomerScope(id.EstablishmentID, id.CustomerPhone)
	}
	return model.UserScope(id.UserID, endpoint)
}

// Manager drives one device's subscription. Concurrent Subscribe calls share a
// single attempt, and subscribe and unsubscribe never overlap.
type Manager struct {
	platform  Platform
	records   Records
	publicKey string
	identity  Identity
	logger    *slog.Logger

	group singleflight.Group
	opMu  sync.Mutex

	mu    sync.Mutex
	state State
}

// New returns a manager whose state reflects the platform's capability and
// current permission. Call Refresh to detect an existing registration.
func New(platform Platform, records Records, vapidPublicKey string, identity Identity, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		platform:  platform,
		records:   records,
		publicKey: vapidPublicKey,
		identity:  identity,
		logger:    logger,
	}
	m.state = m.permissionState()
	return m
}

func (m *Manager) permissionState() State {
	if !m.platform.Supported() {
		return StateUnsupported
	}
	switch m.platform.Permission() {
	case PermissionGranted:
		return StateUnsubscribed
	case PermissionDenied:
		return StateDenied
	default:
		return StateDefault
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Subscribed() bool {
	return m.State() == StateSubscribed
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Refresh re-reads the platform permission and registration.
func (m *Manager) Refresh(ctx context.Context) (State, error) {
	state := m.permissionState()
	if state == StateUnsubscribed {
		reg, err := m.platform.Subscription(ctx)
		if err != nil {
			return m.State(), fmt.Errorf("get push registration: %w", err)
		}
		if reg != nil {
			state = StateSubscribed
		}
	}
	m.setState(state)
	return state, nil
}

// Subscribe asks for permission, registers the device with the push service
// and stores the subscription record. Callers arriving while an attempt is in
// flight wait for and share its result.
func (m *Manager) Subscribe(ctx context.Context) error {
	if m.State() == StateUnsupported {
		return ErrUnsupported
	}
	_, err, shared := m.group.Do("subscribe", func() (any, error) {
		return nil, m.subscribe(ctx)
	})
	if shared {
		m.logger.Debug("joined in-flight subscribe")
	}
	return err
}

func (m *Manager) subscribe(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	perm, err := m.platform.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("request permission: %w", err)
	}
	if perm == PermissionDenied {
		m.setState(StateDenied)
		return ErrPermissionDenied
	}
	if perm != PermissionGranted {
		return ErrPermissionDenied
	}

	if err := m.platform.Ready(ctx); err != nil {
		return fmt.Errorf("wait for push worker: %w", err)
	}

	reg, err := m.platform.Subscription(ctx)
	if err != nil {
		return fmt.Errorf("get push registration: %w", err)
	}
	if reg == nil {
		reg, err = m.platform.Subscribe(ctx, m.publicKey)
		if err != nil {
			return fmt.Errorf("create push registration: %w", err)
		}
	}

	sub := &model.PushSubscription{
		EstablishmentID: m.identity.EstablishmentID,
		CustomerPhone:   m.identity.CustomerPhone,
		CustomerID:      m.identity.CustomerID,
		UserID:          m.identity.UserID,
		Endpoint:        reg.Endpoint,
		P256dh:          reg.P256dh,
		Auth:            reg.Auth,
		UserAgent:       m.identity.UserAgent,
	}
	if _, err := m.records.Upsert(ctx, sub); err != nil {
		return fmt.Errorf("save push subscription: %w", err)
	}

	m.setState(StateSubscribed)
	m.logger.Info("push subscription saved", "scope", sub.Scope().Key())
	return nil
}

// Unsubscribe deletes the subscription record and cancels the platform
// registration. Both steps are attempted even when the other fails; the state
// only changes when both succeed.
func (m *Manager) Unsubscribe(ctx context.Context) error {
	if m.State() == StateUnsupported {
		return ErrUnsupported
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	var errs []error

	reg, err := m.platform.Subscription(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("get push registration: %w", err))
	}

	endpoint := ""
	if reg != nil {
		endpoint = reg.Endpoint
	}
	if scope := m.identity.scope(endpoint); scope.Valid() {
		if err := m.records.DeleteByScope(ctx, scope); err != nil {
			errs = append(errs, fmt.Errorf("delete push subscription: %w", err))
		}
	}

	if reg != nil {
		if err := m.platform.Unsubscribe(ctx); err != nil {
			errs = append(errs, fmt.Errorf("cancel push registration: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	m.setState(m.permissionState())
	m.logger.Info("push subscription removed", "scope", m.identity.scope(endpoint).Key())
	return nil
}
