package services

import (
	"context"
	"errors"

	"github.com/yeremiapane/campus-food/models"
	"gorm.io/gorm"
)

// Catalog is the read-only view of menus the order core depends on.
type Catalog interface {
	GetItem(ctx context.Context, itemID uint) (*models.Item, error)
	GetConcession(ctx context.Context, concessionID uint) (*models.Concession, error)
}

type GormCatalog struct {
	db *gorm.DB
}

func NewGormCatalog(db *gorm.DB) *GormCatalog {
	return &GormCatalog{db: db}
}

func (c *GormCatalog) GetItem(ctx context.Context, itemID uint) (*models.Item, error) {
	var item models.Item
	err := c.db.WithContext(ctx).
		Preload("VariationGroups", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("VariationGroups.Options", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		First(&item, itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("item %d", itemID)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *GormCatalog) GetConcession(ctx context.Context, concessionID uint) (*models.Concession, error) {
	var concession models.Concession
	err := c.db.WithContext(ctx).First(&concession, concessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("concession %d", concessionID)
	}
	if err != nil {
		return nil, err
	}
	return &concession, nil
}
