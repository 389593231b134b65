package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/yeremiapane/campus-food/models"
	"github.com/yeremiapane/campus-food/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AddItemInput struct {
	ConcessionID uint
	ItemID       uint
	Quantity     int
	OptionIDs    []uint
}

// CartGroup is one concession's draft order.
type CartGroup struct {
	ConcessionID   uint            `json:"concession_id"`
	ConcessionName string          `json:"concession_name"`
	Order          models.Order    `json:"order"`
	Subtotal       decimal.Decimal `json:"subtotal"`
}

type Cart struct {
	Groups []CartGroup     `json:"groups"`
	Total  decimal.Decimal `json:"total"`
}

// CartService keeps one cart-status order per customer and concession.
type CartService struct {
	db      *gorm.DB
	catalog Catalog
	orders  *OrderService
}

func NewCartService(db *gorm.DB, catalog Catalog, orders *OrderService) *CartService {
	return &CartService{db: db, catalog: catalog, orders: orders}
}

// AddItem puts an item in the customer's cart for the concession, merging
// with a line that has the same item and option set.
func (s *CartService) AddItem(ctx context.Context, customerID uint, in AddItemInput) (*models.Order, error) {
	if in.Quantity < 1 {
		return nil, ErrQuantity
	}
	if _, err := s.catalog.GetConcession(ctx, in.ConcessionID); err != nil {
		return nil, err
	}
	item, err := s.catalog.GetItem(ctx, in.ItemID)
	if err != nil {
		return nil, err
	}
	if item.ConcessionID != in.ConcessionID {
		return nil, notFoundf("item %d in concession %d", in.ItemID, in.ConcessionID)
	}
	if !item.Available {
		return nil, validationf("%s is not available", item.Name)
	}
	unit, variations, err := PriceSelection(item, in.OptionIDs)
	if err != nil {
		return nil, err
	}
	key := models.OptionKey(in.OptionIDs)

	var orderID uint
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.cartOrder(tx, customerID, in.ConcessionID)
		if err != nil {
			return err
		}
		orderID = order.ID

		var lines []models.OrderDetail
		if err := tx.Preload("Variations").
			Where("order_id = ? AND item_id = ?", order.ID, item.ID).
			Find(&lines).Error; err != nil {
			return err
		}

		merged := false
		for i := range lines {
			line := &lines[i]
			if line.VariationKey() != key {
				continue
			}
			qty := line.Quantity + in.Quantity
			if err := tx.Model(&models.OrderDetail{}).Where("id = ?", line.ID).Updates(map[string]interface{}{
				"quantity":            qty,
				"unit_price_snapshot": unit,
				"total_price":         LineTotal(unit, qty),
			}).Error; err != nil {
				return err
			}
			merged = true
			break
		}
		if !merged {
			line := models.OrderDetail{
				OrderID:           order.ID,
				ItemID:            item.ID,
				Quantity:          in.Quantity,
				UnitPriceSnapshot: unit,
				TotalPrice:        LineTotal(unit, in.Quantity),
				Variations:        variations,
			}
			if err := tx.Omit("Order", "Item").Create(&line).Error; err != nil {
				return err
			}
		}
		return s.recomputeTotal(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}
	return s.orders.loadFull(ctx, orderID)
}

func (s *CartService) cartOrder(tx *gorm.DB, customerID, concessionID uint) (*models.Order, error) {
	order, err := s.findCartOrder(tx, customerID, concessionID)
	if order != nil || err != nil {
		return order, err
	}

	key := models.CartKeyFor(customerID, concessionID)
	created := models.Order{
		CustomerID:    customerID,
		ConcessionID:  concessionID,
		Status:        models.OrderStatusCart,
		InCart:        true,
		CartKey:       &key,
		PaymentMethod: models.PaymentCash,
		TotalPrice:    decimal.Zero,
		Version:       1,
	}
	res := tx.Omit("Concession").Clauses(clause.OnConflict{DoNothing: true}).Create(&created)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// a concurrent add opened the cart first
		order, err := s.findCartOrder(tx, customerID, concessionID)
		if err != nil {
			return nil, err
		}
		if order == nil {
			return nil, fmt.Errorf("%w: cart order for concession %d is being changed", ErrConflict, concessionID)
		}
		return order, nil
	}
	utils.InfoLogger.Printf("cart order %d opened for customer %d at concession %d", created.ID, customerID, concessionID)
	return &created, nil
}

func (s *CartService) findCartOrder(tx *gorm.DB, customerID, concessionID uint) (*models.Order, error) {
	var order models.Order
	err := tx.Where("customer_id = ? AND concession_id = ? AND status = ?", customerID, concessionID, models.OrderStatusCart).
		Order("id asc").First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// recomputeTotal sets the order total to the sum of its lines under the version guard.
func (s *CartService) recomputeTotal(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	var totals []decimal.Decimal
	if err := tx.Model(&models.OrderDetail{}).Where("order_id = ?", order.ID).Pluck("total_price", &totals).Error; err != nil {
		return err
	}
	sum := decimal.Zero
	for _, t := range totals {
		sum = sum.Add(t)
	}
	return s.orders.update(ctx, tx, order, map[string]interface{}{"total_price": sum.Round(2)})
}

// cartLine loads a detail whose order is a cart order of the customer.
func (s *CartService) cartLine(tx *gorm.DB, customerID, detailID uint) (*models.OrderDetail, error) {
	var line models.OrderDetail
	err := tx.Preload("Order").First(&line, detailID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("order detail %d", detailID)
	}
	if err != nil {
		return nil, err
	}
	if line.Order.CustomerID != customerID || line.Order.Status != models.OrderStatusCart {
		return nil, notFoundf("order detail %d in cart", detailID)
	}
	return &line, nil
}

func (s *CartService) UpdateQuantity(ctx context.Context, customerID, detailID uint, quantity int) (*models.Order, error) {
	if quantity < 1 {
		return nil, ErrQuantity
	}
	var orderID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		line, err := s.cartLine(tx, customerID, detailID)
		if err != nil {
			return err
		}
		orderID = line.OrderID
		if err := tx.Model(&models.OrderDetail{}).Where("id = ?", line.ID).Updates(map[string]interface{}{
			"quantity":    quantity,
			"total_price": LineTotal(line.UnitPriceSnapshot, quantity),
		}).Error; err != nil {
			return err
		}
		order := line.Order
		return s.recomputeTotal(ctx, tx, &order)
	})
	if err != nil {
		return nil, err
	}
	return s.orders.loadFull(ctx, orderID)
}

// RemoveItem deletes a cart line. When it was the last one the order is
// deleted too and a nil order is returned.
func (s *CartService) RemoveItem(ctx context.Context, customerID, detailID uint) (*models.Order, error) {
	var orderID uint
	emptied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		line, err := s.cartLine(tx, customerID, detailID)
		if err != nil {
			return err
		}
		orderID = line.OrderID
		if err := tx.Where("order_detail_id = ?", line.ID).Delete(&models.OrderDetailVariation{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.OrderDetail{}, line.ID).Error; err != nil {
			return err
		}

		var left int64
		if err := tx.Model(&models.OrderDetail{}).Where("order_id = ?", orderID).Count(&left).Error; err != nil {
			return err
		}
		order := line.Order
		if left > 0 {
			return s.recomputeTotal(ctx, tx, &order)
		}

		res := tx.Where("id = ? AND status = ? AND version = ?", order.ID, models.OrderStatusCart, order.Version).
			Delete(&models.Order{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: cart order %d changed while it was being emptied", ErrConflict, order.ID)
		}
		emptied = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if emptied {
		utils.InfoLogger.Printf("cart order %d emptied and removed", orderID)
		return nil, nil
	}
	return s.orders.loadFull(ctx, orderID)
}

// GetCart lists the customer's draft orders, one group per concession.
func (s *CartService) GetCart(ctx context.Context, customerID uint) (*Cart, error) {
	var orders []models.Order
	err := withDetails(s.db.WithContext(ctx)).
		Where("customer_id = ? AND status = ?", customerID, models.OrderStatusCart).
		Order("concession_id asc").Order("id asc").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}

	cart := &Cart{Groups: make([]CartGroup, 0, len(orders)), Total: decimal.Zero}
	for _, o := range orders {
		cart.Groups = append(cart.Groups, CartGroup{
			ConcessionID:   o.ConcessionID,
			ConcessionName: o.Concession.Name,
			Order:          o,
			Subtotal:       o.TotalPrice,
		})
		cart.Total = cart.Total.Add(o.TotalPrice)
	}
	return cart, nil
}
