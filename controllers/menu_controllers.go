package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/yeremiapane/campus-food/models"
	"github.com/yeremiapane/campus-food/services"
	"github.com/yeremiapane/campus-food/utils"
	"gorm.io/gorm"
)

// MenuController is the read-only catalog view customers browse before adding to the cart.
type MenuController struct {
	DB      *gorm.DB
	Catalog services.Catalog
}

func NewMenuController(db *gorm.DB, catalog services.Catalog) *MenuController {
	return &MenuController{DB: db, Catalog: catalog}
}

type menuItem struct {
	models.Item
	StartingPrice decimal.Decimal `json:"starting_price"`
	PriceLabel    string          `json:"price_label"`
}

// GetConcessionMenu -> items of a concession with their "from" price
func (mc *MenuController) GetConcessionMenu(c *gin.Context) {
	concessionID, ok := paramID(c, "concession_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	concession, err := mc.Catalog.GetConcession(ctx, concessionID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	var items []models.Item
	if err := mc.DB.WithContext(ctx).
		Preload("VariationGroups", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("VariationGroups.Options", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Where("concession_id = ?", concessionID).
		Order("name asc").
		Find(&items).Error; err != nil {
		respondServiceError(c, err)
		return
	}

	out := make([]menuItem, 0, len(items))
	for i := range items {
		from := services.StartingPrice(&items[i])
		out = append(out, menuItem{Item: items[i], StartingPrice: from, PriceLabel: utils.FormatPeso(from)})
	}
	utils.RespondJSON(c, http.StatusOK, "Menu of "+concession.Name, out)
}
