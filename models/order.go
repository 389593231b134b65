package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCash  PaymentMethod = "cash"
	PaymentGCash PaymentMethod = "gcash"
)

func (p PaymentMethod) Valid() bool {
	return p == PaymentCash || p == PaymentGCash
}

// RequiresProof reports whether the method needs an uploaded payment screenshot.
func (p PaymentMethod) RequiresProof() bool {
	return p == PaymentGCash
}

type Order struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	CustomerID    uint            `gorm:"not null;index:idx_orders_customer_status" json:"customer_id"`
	ConcessionID  uint            `gorm:"not null;index" json:"concession_id"`
	Concession    Concession      `gorm:"foreignKey:ConcessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"concession"`
	Status        OrderStatus     `gorm:"type:varchar(20);not null;default:'cart';index:idx_orders_customer_status" json:"status"`
	InCart        bool            `gorm:"not null;default:true" json:"in_cart"`
	// CartKey is set only while the order is a cart, one per customer and concession.
	CartKey       *string         `gorm:"type:varchar(40);uniqueIndex" json:"-"`
	PaymentMethod PaymentMethod   `gorm:"type:varchar(10);not null;default:'cash'" json:"payment_method"`
	TotalPrice    decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"total_price"`
	ScheduleTime  *time.Time      `json:"schedule_time,omitempty"`

	// Payment proof
	ReceiptURL           *string    `gorm:"type:varchar(255)" json:"receipt_url,omitempty"`
	ReceiptSubmittedAt   *time.Time `json:"receipt_submitted_at,omitempty"`
	ReceiptDeadline      *time.Time `gorm:"index" json:"receipt_deadline,omitempty"`
	ReceiptRejectionCode *string    `gorm:"type:varchar(30)" json:"receipt_rejection_code,omitempty"`
	ReceiptRejectionText *string    `gorm:"type:text" json:"receipt_rejection_text,omitempty"`

	DeclineReasonCode *string    `gorm:"type:varchar(30)" json:"decline_reason_code,omitempty"`
	DeclineReasonText *string    `gorm:"type:text" json:"decline_reason_text,omitempty"`
	DeclinedAt        *time.Time `json:"declined_at,omitempty"`

	// Version is bumped by every write and guards compare-and-swap updates.
	Version   uint          `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time     `gorm:"not null" json:"updated_at"`
	Details   []OrderDetail `gorm:"foreignKey:OrderID" json:"details"`
}

// CartKeyFor is the value CartKey holds for a customer's cart at a concession.
func CartKeyFor(customerID, concessionID uint) string {
	return fmt.Sprintf("%d:%d", customerID, concessionID)
}

// HasLiveProof is true when a proof is uploaded and has not been rejected since.
func (o *Order) HasLiveProof() bool {
	return o.ReceiptSubmittedAt != nil
}

// DeclineReason rebuilds the tagged reason stored on the row.
func (o *Order) DeclineReason() (Reason, bool) {
	if o.DeclineReasonCode == nil {
		return Reason{}, false
	}
	return ReasonFromColumns(*o.DeclineReasonCode, o.DeclineReasonText), true
}

// DeclineMessage is the human readable decline reason shown to the customer.
func (o *Order) DeclineMessage() string {
	r, ok := o.DeclineReason()
	if !ok {
		return ""
	}
	return OrderDeclineMessage(r)
}

// Reference is the short code printed on slips and notifications.
func (o *Order) Reference() string {
	return fmt.Sprintf("ORD-%d-%06d", o.ConcessionID, o.ID)
}
