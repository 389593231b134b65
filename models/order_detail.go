package models

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderDetail struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	OrderID uint `gorm:"not null;index" json:"order_id"`
	// Omitting Order field from JSON to avoid recursive nesting
	Order             Order                  `gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	ItemID            uint                   `gorm:"not null" json:"item_id"`
	Item              Item                   `gorm:"foreignKey:ItemID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"item"`
	Quantity          int                    `gorm:"not null" json:"quantity"`
	UnitPriceSnapshot decimal.Decimal        `gorm:"type:decimal(10,2);not null" json:"unit_price_snapshot"`
	TotalPrice        decimal.Decimal        `gorm:"type:decimal(10,2);not null" json:"total_price"`
	Variations        []OrderDetailVariation `gorm:"foreignKey:OrderDetailID;constraint:OnDelete:CASCADE" json:"variations"`
	CreatedAt         time.Time              `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time              `gorm:"not null" json:"updated_at"`
}

// OrderDetailVariation is one chosen option, snapshotted at add time.
type OrderDetailVariation struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	OrderDetailID     uint            `gorm:"not null;index" json:"order_detail_id"`
	Position          int             `gorm:"not null" json:"position"`
	VariationGroupID  uint            `gorm:"not null" json:"variation_group_id"`
	VariationOptionID uint            `gorm:"not null" json:"variation_option_id"`
	Name              string          `gorm:"type:varchar(100);not null" json:"name"`
	Price             decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
}

// VariationKey identifies the chosen option set independent of pick order.
func (d *OrderDetail) VariationKey() string {
	return OptionKey(optionIDs(d.Variations))
}

func optionIDs(vs []OrderDetailVariation) []uint {
	ids := make([]uint, 0, len(vs))
	for _, v := range vs {
		ids = append(ids, v.VariationOptionID)
	}
	return ids
}

func OptionKey(ids []uint) string {
	sorted := append([]uint(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ",")
}
