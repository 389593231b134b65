package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/campus-food/models"
	"github.com/yeremiapane/campus-food/services"
	"github.com/yeremiapane/campus-food/utils"
)

type ReopeningController struct {
	Reopenings *services.ReopeningService
}

func NewReopeningController(reopenings *services.ReopeningService) *ReopeningController {
	return &ReopeningController{Reopenings: reopenings}
}

// GetStatus -> latest request, remaining count and window for the order
func (rc *ReopeningController) GetStatus(c *gin.Context) {
	userID, role, ok := currentUser(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "order_id")
	if !ok {
		return
	}
	view, err := rc.Reopenings.GetStatus(c.Request.Context(), userID, role, orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reopening status", view)
}

// CreateRequest -> customer appeals a declined order
func (rc *ReopeningController) CreateRequest(c *gin.Context) {
	customerID, _, ok := currentUser(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "order_id")
	if !ok {
		return
	}
	reason, ok := bindReason(c)
	if !ok {
		return
	}

	req, err := rc.Reopenings.CreateRequest(c.Request.Context(), orderID, customerID, reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Reopening request submitted", req)
}

func (rc *ReopeningController) ListPending(c *gin.Context) {
	concessionaireID, _, ok := currentUser(c)
	if !ok {
		return
	}
	pending, err := rc.Reopenings.ListPendingForConcession(c.Request.Context(), concessionaireID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Pending reopening requests", pending)
}

// Respond -> approve or decline; decline needs a reason
func (rc *ReopeningController) Respond(c *gin.Context) {
	concessionaireID, _, ok := currentUser(c)
	if !ok {
		return
	}
	requestID, ok := paramID(c, "request_id")
	if !ok {
		return
	}
	var body struct {
		Decision      string `json:"decision" binding:"required"`
		DeclineReason string `json:"decline_reason"`
		CustomReason  string `json:"custom_reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var declineReason *models.Reason
	if body.DeclineReason != "" {
		r := models.Known(models.ReasonCode(body.DeclineReason))
		if r.IsOther() {
			r = models.Other(body.CustomReason)
		}
		declineReason = &r
	}

	req, err := rc.Reopenings.RespondToRequest(c.Request.Context(), requestID, concessionaireID,
		strings.ToLower(body.Decision), declineReason)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, req.DecisionMessage(), req)
}
