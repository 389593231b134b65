package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Catalog tables are owned by the menu service; the order core only reads them.

type Concession struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Name             string    `gorm:"type:varchar(255);not null" json:"name"`
	ConcessionaireID uint      `gorm:"not null;index" json:"concessionaire_id"`
	CreatedAt        time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null" json:"updated_at"`
}

type Item struct {
	ID              uint             `gorm:"primaryKey" json:"id"`
	ConcessionID    uint             `gorm:"not null;index" json:"concession_id"`
	Name            string           `gorm:"type:varchar(255);not null" json:"name"`
	Price           decimal.Decimal  `gorm:"type:decimal(10,2);not null;default:0" json:"price"`
	Available       bool             `gorm:"not null;default:true" json:"available"`
	VariationGroups []VariationGroup `gorm:"foreignKey:ItemID" json:"variation_groups,omitempty"`
	CreatedAt       time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"not null" json:"updated_at"`
}

type VariationGroup struct {
	ID                uint              `gorm:"primaryKey" json:"id"`
	ItemID            uint              `gorm:"not null;index" json:"item_id"`
	Name              string            `gorm:"type:varchar(100);not null" json:"name"`
	RequiredSelection bool              `gorm:"not null;default:false" json:"required_selection"`
	MinSelection      int               `gorm:"not null;default:0" json:"min_selection"`
	MultipleSelection bool              `gorm:"not null;default:false" json:"multiple_selection"`
	MaxSelection      int               `gorm:"not null;default:0" json:"max_selection"`
	Options           []VariationOption `gorm:"foreignKey:GroupID" json:"options"`
}

// MinRequired is the number of options a customer has to pick from the group.
func (g VariationGroup) MinRequired() int {
	if g.MinSelection > 0 {
		return g.MinSelection
	}
	if g.RequiredSelection {
		return 1
	}
	return 0
}

// MaxAllowed returns 0 when the group has no cap.
func (g VariationGroup) MaxAllowed() int {
	if !g.MultipleSelection {
		return 1
	}
	return g.MaxSelection
}

type VariationOption struct {
	ID      uint            `gorm:"primaryKey" json:"id"`
	GroupID uint            `gorm:"not null;index" json:"group_id"`
	Name    string          `gorm:"type:varchar(100);not null" json:"name"`
	Price   decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"price"`
}
