package push

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dukerupert/menuboard/internal/model"
)

// AdminSubscriptions lists dashboard subscriptions. store.PushStore implements it.
type AdminSubscriptions interface {
	ListByUser(ctx context.Context, userID string) ([]model.PushSubscription, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

// Alerter sends an out-of-band alert for an admin notification, such as an email.
type Alerter interface {
	SendAdminAlert(ctx context.Context, n *model.AdminNotification) error
}

// Notifier delivers admin notifications to the dashboard devices of the
// configured admin users, off the request path.
type Notifier struct {
	sender  Sender
	subs    AdminSubscriptions
	admins  []string
	alerter Alerter
	logger  *slog.Logger

	queue chan model.AdminNotification

	mu     sync.RWMutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewNotifier creates a notifier. alerter may be nil.
func NewNotifier(sender Sender, subs AdminSubscriptions, adminUserIDs []string, alerter Alerter, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		sender:  sender,
		subs:    subs,
		admins:  adminUserIDs,
		alerter: alerter,
		logger:  logger,
		queue:   make(chan model.AdminNotification, 64),
	}
}

// Notify queues n for delivery. It reports false if the queue is full.
func (n *Notifier) Notify(an model.AdminNotification) bool {
	select {
	case n.queue <- an:
		return true
	default:
		n.logger.Warn("admin notification queue full, dropping", "notification_id", an.ID)
		return false
	}
}

// Start begins the delivery loop.
func (n *Notifier) Start(ctx context.Context) {
	n.mu.Lock()
	ctx, n.cancel = context.WithCancel(ctx)
	n.done = make(chan struct{})
	n.mu.Unlock()

	go func() {
		defer close(n.done)
		for {
			select {
			case <-ctx.Done():
				return
			case an := <-n.queue:
				n.Deliver(ctx, &an)
			}
		}
	}()
}

// Stop stops the delivery loop and waits for it to exit.
func (n *Notifier) Stop() {
	n.mu.RLock()
	cancel := n.cancel
	done := n.done
	n.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Deliver pushes an to every admin device and sends the alert. Expired
// subscriptions are removed. It returns the number of devices reached.
func (n *Notifier) Deliver(ctx context.Context, an *model.AdminNotification) int {
	payload := Payload{
		Title: an.Title,
		Body:  an.Message,
		Icon:  "/icons/icon-192.png",
		Badge: "/icons/badge-72.png",
		Tag:   "admin-" + an.Kind,
		Data:  Data{URL: "/admin/notifications"},
	}

	sent := 0
	for _, userID := range n.admins {
		subs, err := n.subs.ListByUser(ctx, userID)
		if err != nil {
			n.logger.Error("list admin subscriptions", "user_id", userID, "error", err)
			continue
		}
		for _, sub := range subs {
			if err := n.sender.Send(ctx, &sub, payload); err != nil {
				if errors.Is(err, ErrExpired) {
					if err := n.subs.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
						n.logger.Error("delete expired admin subscription", "error", err)
					}
					continue
				}
				n.logger.Error("send admin notification", "user_id", userID, "error", err)
				continue
			}
			sent++
		}
	}

	if n.alerter != nil {
		if err := n.alerter.SendAdminAlert(ctx, an); err != nil {
			n.logger.Error("send admin alert", "notification_id", an.ID, "error", err)
		}
	}
	return sent
}
