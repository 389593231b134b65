package controllers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yeremiapane/campus-food/models"
	"github.com/yeremiapane/campus-food/services"
	"github.com/yeremiapane/campus-food/utils"
)

var receiptExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

type OrderController struct {
	Orders    *services.OrderService
	UploadDir string
}

func NewOrderController(orders *services.OrderService, uploadDir string) *OrderController {
	return &OrderController{Orders: orders, UploadDir: uploadDir}
}

func bindCheckout(c *gin.Context) (services.CheckoutInput, bool) {
	var body struct {
		PaymentMethod string     `json:"payment_method" binding:"required"`
		ScheduleTime  *time.Time `json:"schedule_time"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return services.CheckoutInput{}, false
	}
	return services.CheckoutInput{
		PaymentMethod: models.PaymentMethod(strings.ToLower(body.PaymentMethod)),
		ScheduleTime:  body.ScheduleTime,
	}, true
}

func bindReason(c *gin.Context) (models.Reason, bool) {
	var body struct {
		Reason     string `json:"reason" binding:"required"`
		CustomText string `json:"custom_reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return models.Reason{}, false
	}
	if models.ReasonCode(body.Reason) == models.ReasonOther {
		return models.Other(body.CustomText), true
	}
	return models.Known(models.ReasonCode(body.Reason)), true
}

// --- customer ---

// CheckoutOrder -> submit one cart order
func (oc *OrderController) CheckoutOrder(c *gin.Context) {
	customerID, _, ok := currentUser(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "order_id")
	if !ok {
		return
	}
	in, ok := bindCheckout(c)
	if !ok {
		return
	}

	order, err := oc.Orders.CheckoutSingleOrder(c.Request.Context(), customerID, orderID, in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order checked out", order)
}

func (oc *OrderController) ListMyOrders(c *gin.Context) {
	customerID, _, ok := currentUser(c)
	if !ok {
		return
	}
	orders, err := oc.Orders.ListForCustomer(c.Request.Context(), customerID, models.OrderStatus(c.Query("status")))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of orders", orders)
}

// GetOrderByID -> detail for the owner, the concession or an admin
func (oc *OrderController) GetOrderByID(c *gin.Context) {
	userID, role, ok := currentUser(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "order_id")
	if !ok {
		return
	}
	order, err := oc.Orders.Get(c.Request.Context(), userID, role, orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order detail", order)
}

func (oc *OrderController) CancelOrder(c *gin.Context) {
	customerID, _, ok := currentUser(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "order_id")
	if !ok {
		return
	}
	order, err := oc.Orders.Cancel(c.Request.Context(), customerID, orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order cancelled", order)
}

// UploadReceipt -> multipart "receipt" image for a gcash order
func (oc *OrderController) UploadReceipt(c *gin.Context) {
	customerID, _, ok := currentUser(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "order_id")
	if !ok {
		return
	}

	file, err := c.FormFile("receipt")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("receipt image is required"))
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !receiptExtensions[ext] {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("unsupported receipt type %q", ext))
		return
	}

	if err := oc.Orders.CheckProofUpload(c.Request.Context(), customerID, orderID); err != nil {
		respondServiceError(c, err)
		return
	}

	if err := os.MkdirAll(oc.UploadDir, 0755); err != nil {
		utils.RespondError(c, http.StatusInternalServerError, errors.New("error creating upload directory"))
		return
	}
	filename := fmt.Sprintf("order-%d-%s%s", orderID, uuid.NewString(), ext)
	dst := filepath.Join(oc.UploadDir, filename)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		utils.RespondError(c, http.StatusInternalServerError, errors.New("error saving receipt"))
		return
	}

	order, err := oc.Orders.UploadProof(c.Request.Context(), customerID, orderID, fmt.Sprintf("/orders/%d/receipt/%s", orderID, filename))
	if err != nil {
		// the order did not take the file
		os.Remove(dst)
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Receipt uploaded", order)
}

// GetReceipt -> the live proof image, for whoever may view the order
func (oc *OrderController) GetReceipt(c *gin.Context) {
	userID, role, ok := currentUser(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "order_id")
	if !ok {
		return
	}
	order, err := oc.Orders.Get(c.Request.Context(), userID, role, orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	// only the current proof is served; rejected ones are gone from the order
	name := filepath.Base(c.Param("file"))
	if order.ReceiptURL == nil || path.Base(*order.ReceiptURL) != name {
		utils.RespondError(c, http.StatusNotFound, errors.New("receipt not found"))
		return
	}
	if !receiptExtensions[strings.ToLower(filepath.Ext(name))] {
		utils.RespondError(c, http.StatusNotFound, errors.New("receipt not found"))
		return
	}
	c.Header("Cache-Control", "private, no-store")
	c.File(filepath.Join(oc.UploadDir, name))
}

// DownloadSlip -> PDF summary of the order
func (oc *OrderController) DownloadSlip(c *gin.Context) {
	userID, role, ok := currentUser(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "order_id")
	if !ok {
		return
	}
	order, err := oc.Orders.Get(c.Request.Context(), userID, role, orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := services.WriteOrderSlip(&buf, order); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, order.Reference()))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// --- concessionaire ---

func (oc *OrderController) ListConcessionOrders(c *gin.Context) {
	concessionaireID, _, ok := currentUser(c)
	if !ok {
		return
	}
	orders, err := oc.Orders.ListForConcession(c.Request.Context(), concessionaireID, models.OrderStatus(c.Query("status")))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of orders", orders)
}

type concessionAction func(c *gin.Context, concessionaireID, orderID uint) (*models.Order, error)

func (oc *OrderController) concessionAction(message string, action concessionAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		concessionaireID, _, ok := currentUser(c)
		if !ok {
			return
		}
		orderID, ok := paramID(c, "order_id")
		if !ok {
			return
		}
		order, err := action(c, concessionaireID, orderID)
		if errors.Is(err, errBound) {
			return
		}
		if err != nil {
			respondServiceError(c, err)
			return
		}
		utils.RespondJSON(c, http.StatusOK, message, order)
	}
}

func (oc *OrderController) AcceptOrder() gin.HandlerFunc {
	return oc.concessionAction("Order accepted", func(c *gin.Context, cid, oid uint) (*models.Order, error) {
		return oc.Orders.Accept(c.Request.Context(), cid, oid)
	})
}

func (oc *OrderController) DeclineOrder() gin.HandlerFunc {
	return oc.concessionAction("Order declined", func(c *gin.Context, cid, oid uint) (*models.Order, error) {
		reason, ok := bindReason(c)
		if !ok {
			return nil, errBound
		}
		return oc.Orders.Decline(c.Request.Context(), cid, oid, reason)
	})
}

func (oc *OrderController) RejectReceipt() gin.HandlerFunc {
	return oc.concessionAction("Receipt rejected", func(c *gin.Context, cid, oid uint) (*models.Order, error) {
		reason, ok := bindReason(c)
		if !ok {
			return nil, errBound
		}
		return oc.Orders.RejectReceipt(c.Request.Context(), cid, oid, reason)
	})
}

func (oc *OrderController) MarkReady() gin.HandlerFunc {
	return oc.concessionAction("Order ready", func(c *gin.Context, cid, oid uint) (*models.Order, error) {
		return oc.Orders.MarkReady(c.Request.Context(), cid, oid)
	})
}

func (oc *OrderController) CompleteOrder() gin.HandlerFunc {
	return oc.concessionAction("Order completed", func(c *gin.Context, cid, oid uint) (*models.Order, error) {
		return oc.Orders.Complete(c.Request.Context(), cid, oid)
	})
}
