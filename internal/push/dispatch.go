package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukerupert/menuboard/internal/model"
)

// ErrInvalidRequest is returned when a status change is missing a required field.
var ErrInvalidRequest = errors.New("invalid dispatch request")

// Outcome describes what Dispatch did with a status change.
type Outcome string

const (
	OutcomeSent           Outcome = "sent"
	OutcomeNoMessage      Outcome = "no_message"
	OutcomeNoSubscription Outcome = "no_subscription"
	OutcomeExpired        Outcome = "expired"
)

type message struct {
	title string
	body  string
}

// statusMessages maps an order status to its notification text. %s is the
// establishment name.
var statusMessages = map[string]message{
	model.OrderStatusConfirmed: {"Order confirmed", "%s confirmed your order."},
	model.OrderStatusPreparing: {"Preparing your order", "%s is preparing your order."},
	model.OrderStatusOnTheWay:  {"Order on the way", "Your order from %s is on the way."},
	model.OrderStatusDelivered: {"Order delivered", "Your order from %s was delivered. Enjoy!"},
	model.OrderStatusCancelled: {"Order cancelled", "%s cancelled your order."},
}

// NormalizeStatus maps accepted spellings of an order status to the canonical one.
func NormalizeStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	return strings.ReplaceAll(s, "_", "-")
}

// Sender delivers one payload to one subscription. *Service implements it.
type Sender interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error
}

// Subscriptions is the subscription table as seen by the dispatcher.
// store.PushStore implements it.
type Subscriptions interface {
	GetByScope(ctx context.Context, scope model.SubscriptionScope) (*model.PushSubscription, error)
	DeleteByID(ctx context.Context, id string) error
}

// Dispatcher turns order status changes into customer notifications.
type Dispatcher struct {
	sender  Sender
	subs    Subscriptions
	baseURL string
	logger  *slog.Logger
}

// NewDispatcher returns a dispatcher. baseURL prefixes the order link opened
// when the notification is clicked; it may be empty for app-relative links.
func NewDispatcher(sender Sender, subs Subscriptions, baseURL string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		sender:  sender,
		subs:    subs,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Validate checks the fields Dispatch requires.
func Validate(req model.StatusChange) error {
	var missing []string
	if req.EstablishmentID == "" {
		missing = append(missing, "establishmentId")
	}
	if req.CustomerPhone == "" {
		missing = append(missing, "customerPhone")
	}
	if req.NewStatus == "" {
		missing = append(missing, "newStatus")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return nil
}

// Dispatch notifies the customer of req's new status. Statuses without a
// message and customers without a subscription are not errors. A subscription
// the push service reports as gone is deleted. Other delivery failures are
// returned and the subscription is kept.
func (d *Dispatcher) Dispatch(ctx context.Context, req model.StatusChange) (Outcome, error) {
	if err := Validate(req); err != nil {
		return "", err
	}

	status := NormalizeStatus(req.NewStatus)
	msg, ok := statusMessages[status]
	if !ok {
		d.logger.Info("no message for order status", "status", req.NewStatus, "order_id", req.OrderID)
		return OutcomeNoMessage, nil
	}

	sub, err := d.subs.GetByScope(ctx, model.CustomerScope(req.EstablishmentID, req.CustomerPhone))
	if err != nil {
		return "", fmt.Errorf("find subscription: %w", err)
	}
	if sub == nil {
		d.logger.Info("no push subscription for customer", "establishment_id", req.EstablishmentID, "order_id", req.OrderID)
		return OutcomeNoSubscription, nil
	}

	payload := d.payload(req, msg)
	if err := d.sender.Send(ctx, sub, payload); err != nil {
		if errors.Is(err, ErrExpired) {
			if derr := d.subs.DeleteByID(ctx, sub.ID); derr != nil {
				return "", fmt.Errorf("delete expired subscription: %w", derr)
			}
			d.logger.Info("removed expired push subscription", "subscription_id", sub.ID, "establishment_id", req.EstablishmentID)
			return OutcomeExpired, nil
		}
		return "", fmt.Errorf("deliver order status: %w", err)
	}

	d.logger.Info("order status notification sent", "order_id", req.OrderID, "status", status)
	return OutcomeSent, nil
}

func (d *Dispatcher) payload(req model.StatusChange, msg message) Payload {
	name := req.EstablishmentName
	if name == "" {
		name = "the restaurant"
		if strings.HasPrefix(msg.body, "%s") {
			name = "The restaurant"
		}
	}
	body := fmt.Sprintf(msg.body, name)

	link := d.baseURL + "/" + req.EstablishmentID
	tag := "order"
	if req.OrderID != "" {
		link += "/orders/" + req.OrderID
		tag = "order-" + req.OrderID
	}

	return Payload{
		Title: msg.title,
		Body:  body,
		Icon:  "/icons/icon-192.png",
		Badge: "/icons/badge-72.png",
		Tag:   tag,
		Data: Data{
			URL:     link,
			OrderID: req.OrderID,
			Status:  req.NewStatus,
		},
		Actions: []Action{
			{Action: "open", Title: "View order"},
			{Action: "close", Title: "Close"},
		},
	}
}
