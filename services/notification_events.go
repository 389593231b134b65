package services

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yeremiapane/campus-food/models"
)

type EventType string

const (
	EventNewOrder            EventType = "new_order"
	EventOrderUpdate         EventType = "order_update"
	EventReopeningRequest    EventType = "reopening_request"
	EventReopeningResolution EventType = "reopening_resolution"
	EventReceiptRejected     EventType = "receipt_rejected"
)

// Event is the closed set of notifications the order core emits. Each variant
// carries a fixed field set that is serialised as the notification metadata.
type Event interface {
	Type() EventType
	Title() string
	Message() string
	OrderRef() uint
	isEvent()
}

type NewOrderEvent struct {
	OrderID        uint                 `json:"order_id"`
	CustomerID     uint                 `json:"customer_id"`
	ConcessionName string               `json:"concession_name"`
	TotalPrice     decimal.Decimal      `json:"total_price"`
	PaymentMethod  models.PaymentMethod `json:"payment_method"`
	ScheduleTime   *time.Time           `json:"schedule_time,omitempty"`
	ProofAttached  bool                 `json:"proof_attached"`
}

func (NewOrderEvent) Type() EventType { return EventNewOrder }
func (NewOrderEvent) Title() string   { return "New order" }
func (e NewOrderEvent) Message() string {
	if e.ProofAttached {
		return fmt.Sprintf("Order #%d has a payment receipt waiting for review.", e.OrderID)
	}
	return fmt.Sprintf("New %s order #%d received.", e.PaymentMethod, e.OrderID)
}
func (e NewOrderEvent) OrderRef() uint { return e.OrderID }
func (NewOrderEvent) isEvent()         {}

type OrderUpdateEvent struct {
	OrderID        uint               `json:"order_id"`
	Status         models.OrderStatus `json:"status"`
	ConcessionName string             `json:"concession_name"`
	DeclineReason  string             `json:"decline_reason,omitempty"`
}

func (OrderUpdateEvent) Type() EventType { return EventOrderUpdate }
func (OrderUpdateEvent) Title() string   { return "Order update" }
func (e OrderUpdateEvent) Message() string {
	switch e.Status {
	case models.OrderStatusSubmitted:
		return fmt.Sprintf("Your order #%d was sent to %s.", e.OrderID, e.ConcessionName)
	case models.OrderStatusAccepted:
		return fmt.Sprintf("%s accepted your order #%d.", e.ConcessionName, e.OrderID)
	case models.OrderStatusDeclined:
		return fmt.Sprintf("%s declined your order #%d. %s", e.ConcessionName, e.OrderID, e.DeclineReason)
	case models.OrderStatusReady:
		return fmt.Sprintf("Your order #%d from %s is ready for pickup.", e.OrderID, e.ConcessionName)
	case models.OrderStatusCompleted:
		return fmt.Sprintf("Your order #%d from %s is complete.", e.OrderID, e.ConcessionName)
	case models.OrderStatusCancelled:
		return fmt.Sprintf("Your order #%d from %s was cancelled.", e.OrderID, e.ConcessionName)
	}
	return fmt.Sprintf("Your order #%d is now %s.", e.OrderID, e.Status)
}
func (e OrderUpdateEvent) OrderRef() uint { return e.OrderID }
func (OrderUpdateEvent) isEvent()         {}

type ReopeningRequestEvent struct {
	OrderID    uint   `json:"order_id"`
	RequestID  uint   `json:"request_id"`
	CustomerID uint   `json:"customer_id"`
	ReasonCode string `json:"reason_code"`
	Reason     string `json:"reason"`
}

func (ReopeningRequestEvent) Type() EventType { return EventReopeningRequest }
func (ReopeningRequestEvent) Title() string   { return "Reopening request" }
func (e ReopeningRequestEvent) Message() string {
	return fmt.Sprintf("A customer asked to reopen declined order #%d: %s", e.OrderID, e.Reason)
}
func (e ReopeningRequestEvent) OrderRef() uint { return e.OrderID }
func (ReopeningRequestEvent) isEvent()         {}

type ReopeningResolutionEvent struct {
	OrderID   uint               `json:"order_id"`
	RequestID uint               `json:"request_id"`
	Approved  bool               `json:"approved"`
	Status    models.OrderStatus `json:"order_status"`
	Decision  string             `json:"decision"`
}

func (ReopeningResolutionEvent) Type() EventType { return EventReopeningResolution }
func (e ReopeningResolutionEvent) Title() string {
	if e.Approved {
		return "Reopening approved"
	}
	return "Reopening declined"
}
func (e ReopeningResolutionEvent) Message() string { return e.Decision }
func (e ReopeningResolutionEvent) OrderRef() uint  { return e.OrderID }
func (ReopeningResolutionEvent) isEvent()          {}

type ReceiptRejectedEvent struct {
	OrderID        uint      `json:"order_id"`
	ConcessionName string    `json:"concession_name"`
	ReasonCode     string    `json:"reason_code"`
	Reason         string    `json:"reason"`
	NewDeadline    time.Time `json:"new_deadline"`
}

func (ReceiptRejectedEvent) Type() EventType { return EventReceiptRejected }
func (ReceiptRejectedEvent) Title() string   { return "Payment receipt rejected" }
func (e ReceiptRejectedEvent) Message() string {
	return fmt.Sprintf("%s rejected the receipt for order #%d. %s", e.ConcessionName, e.OrderID, e.Reason)
}
func (e ReceiptRejectedEvent) OrderRef() uint { return e.OrderID }
func (ReceiptRejectedEvent) isEvent()         {}
