package models

import (
	"time"
)

type Notification struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;index" json:"user_id"`
	Type      string     `gorm:"type:varchar(30);not null" json:"type"`
	Title     string     `gorm:"type:varchar(100);not null" json:"title"`
	Message   string     `gorm:"type:text;not null" json:"message"`
	OrderID   *uint      `gorm:"index" json:"order_id,omitempty"`
	Metadata  string     `gorm:"type:text" json:"metadata"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
}
