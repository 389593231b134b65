package models

import "time"

type ReopeningStatus string

const (
	ReopeningPending  ReopeningStatus = "pending"
	ReopeningApproved ReopeningStatus = "approved"
	ReopeningDeclined ReopeningStatus = "declined"
)

type ReopeningRequest struct {
	ID      uint  `gorm:"primaryKey" json:"id"`
	OrderID uint  `gorm:"not null;index" json:"order_id"`
	Order   Order `gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	// PendingKey holds the order id while the request is pending and NULL afterwards,
	// so the unique index allows a single pending request per order.
	PendingKey        *uint           `gorm:"uniqueIndex" json:"-"`
	CustomerID        uint            `gorm:"not null;index" json:"customer_id"`
	ReasonCode        string          `gorm:"type:varchar(30);not null" json:"reason_code"`
	CustomReason      *string         `gorm:"type:text" json:"custom_reason,omitempty"`
	Status            ReopeningStatus `gorm:"type:varchar(15);not null;default:'pending'" json:"status"`
	DeclineReasonCode *string         `gorm:"type:varchar(30)" json:"decline_reason_code,omitempty"`
	DeclineReasonText *string         `gorm:"type:text" json:"decline_reason_text,omitempty"`
	CreatedAt         time.Time       `gorm:"not null" json:"created_at"`
	ResolvedAt        *time.Time      `json:"resolved_at,omitempty"`
}

func (r *ReopeningRequest) Reason() Reason {
	return ReasonFromColumns(r.ReasonCode, r.CustomReason)
}

// DecisionMessage is what the customer reads once the request is resolved.
func (r *ReopeningRequest) DecisionMessage() string {
	switch r.Status {
	case ReopeningApproved:
		return ReopeningApprovalMessage
	case ReopeningDeclined:
		if r.DeclineReasonCode == nil {
			return ReopeningDeclineMessage(Known(ReasonOther))
		}
		return ReopeningDeclineMessage(ReasonFromColumns(*r.DeclineReasonCode, r.DeclineReasonText))
	}
	return ""
}
