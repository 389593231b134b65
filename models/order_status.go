package models

type OrderStatus string

const (
	OrderStatusCart      OrderStatus = "cart"
	OrderStatusSubmitted OrderStatus = "submitted"
	OrderStatusAccepted  OrderStatus = "accepted"
	OrderStatusDeclined  OrderStatus = "declined"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var validNext = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusCart:      {OrderStatusSubmitted: true, OrderStatusCancelled: true},
	OrderStatusSubmitted: {OrderStatusAccepted: true, OrderStatusDeclined: true, OrderStatusCancelled: true},
	OrderStatusAccepted:  {OrderStatusReady: true, OrderStatusCancelled: true},
	// accepted is only reachable from declined through an approved reopening under the accept policy
	OrderStatusDeclined:  {OrderStatusSubmitted: true, OrderStatusAccepted: true},
	OrderStatusReady:     {OrderStatusCompleted: true},
	OrderStatusCompleted: {},
	OrderStatusCancelled: {},
}

func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

func (s OrderStatus) Valid() bool {
	_, ok := validNext[s]
	return ok
}
