package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/campus-food/services"
	"github.com/yeremiapane/campus-food/utils"
)

type CartController struct {
	Cart   *services.CartService
	Orders *services.OrderService
}

func NewCartController(cart *services.CartService, orders *services.OrderService) *CartController {
	return &CartController{Cart: cart, Orders: orders}
}

// GetCart -> draft orders grouped by concession
func (cc *CartController) GetCart(c *gin.Context) {
	customerID, _, ok := currentUser(c)
	if !ok {
		return
	}
	cart, err := cc.Cart.GetCart(c.Request.Context(), customerID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Cart", cart)
}

// AddItem -> add an item (with variation options) to the concession's cart order
func (cc *CartController) AddItem(c *gin.Context) {
	customerID, _, ok := currentUser(c)
	if !ok {
		return
	}
	var body struct {
		ConcessionID uint   `json:"concession_id" binding:"required"`
		ItemID       uint   `json:"item_id" binding:"required"`
		Quantity     int    `json:"quantity"`
		OptionIDs    []uint `json:"variation_option_ids"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := cc.Cart.AddItem(c.Request.Context(), customerID, services.AddItemInput{
		ConcessionID: body.ConcessionID,
		ItemID:       body.ItemID,
		Quantity:     body.Quantity,
		OptionIDs:    body.OptionIDs,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Item added to cart", order)
}

func (cc *CartController) UpdateQuantity(c *gin.Context) {
	customerID, _, ok := currentUser(c)
	if !ok {
		return
	}
	detailID, ok := paramID(c, "detail_id")
	if !ok {
		return
	}
	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := cc.Cart.UpdateQuantity(c.Request.Context(), customerID, detailID, body.Quantity)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Quantity updated", order)
}

func (cc *CartController) RemoveItem(c *gin.Context) {
	customerID, _, ok := currentUser(c)
	if !ok {
		return
	}
	detailID, ok := paramID(c, "detail_id")
	if !ok {
		return
	}

	order, err := cc.Cart.RemoveItem(c.Request.Context(), customerID, detailID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if order == nil {
		utils.RespondJSON(c, http.StatusOK, "Item removed, cart order emptied", nil)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Item removed", order)
}

// Checkout -> submit every cart order at once
func (cc *CartController) Checkout(c *gin.Context) {
	customerID, _, ok := currentUser(c)
	if !ok {
		return
	}
	in, ok := bindCheckout(c)
	if !ok {
		return
	}

	orders, err := cc.Orders.CheckoutCart(c.Request.Context(), customerID, in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Cart checked out", orders)
}
