package model

// Order statuses that produce a customer push notification.
const (
	OrderStatusConfirmed = "confirmed"
	OrderStatusPreparing = "preparing"
	OrderStatusOnTheWay  = "on-the-way"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// StatusChange is the body accepted by the dispatch endpoint.
type StatusChange struct {
	OrderID           string `json:"orderId"`
	NewStatus         string `json:"newStatus"`
	EstablishmentID   string `json:"establishmentId"`
	CustomerPhone     string `json:"customerPhone"`
	EstablishmentName string `json:"establishmentName"`
}
