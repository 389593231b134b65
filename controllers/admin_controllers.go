package controllers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/campus-food/models"
	"github.com/yeremiapane/campus-food/services"
	"github.com/yeremiapane/campus-food/utils"
	"gorm.io/gorm"
)

type AdminController struct {
	DB      *gorm.DB
	Scanner *services.ReceiptExpiryScanner
	Tokens  *utils.TokenIssuer
	// SweepToken lets an external cron trigger the sweep without a user token.
	SweepToken string
}

func NewAdminController(db *gorm.DB, scanner *services.ReceiptExpiryScanner, tokens *utils.TokenIssuer, sweepToken string) *AdminController {
	return &AdminController{DB: db, Scanner: scanner, Tokens: tokens, SweepToken: sweepToken}
}

// SweepAuth accepts either the shared X-Sweep-Token or an admin bearer token.
func (ac *AdminController) SweepAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := c.GetHeader("X-Sweep-Token"); token != "" {
			if ac.SweepToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(ac.SweepToken)) != 1 {
				utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid sweep token"))
				c.Abort()
				return
			}
			c.Next()
			return
		}

		bearer := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		claims, err := ac.Tokens.ParseToken(bearer)
		if bearer == "" || err != nil {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("sweep token or admin token required"))
			c.Abort()
			return
		}
		if claims.Role != models.RoleAdmin {
			utils.RespondError(c, http.StatusForbidden, errors.New("admin access required"))
			c.Abort()
			return
		}
		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// TriggerSweep runs the receipt expiry sweep now and returns its report.
func (ac *AdminController) TriggerSweep(c *gin.Context) {
	report, err := ac.Scanner.BulkSweep(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Receipt sweep finished", report)
}

// GetSweepMetrics -> scanner counters plus order counts per status
func (ac *AdminController) GetSweepMetrics(c *gin.Context) {
	var rows []struct {
		Status string
		Total  int64
	}
	if err := ac.DB.WithContext(c.Request.Context()).Model(&models.Order{}).
		Select("status, COUNT(*) AS total").Group("status").Scan(&rows).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	byStatus := make(map[string]int64, len(rows))
	for _, r := range rows {
		byStatus[r.Status] = r.Total
	}

	utils.RespondJSON(c, http.StatusOK, "Sweep metrics", gin.H{
		"sweeps":           ac.Scanner.Metrics(),
		"orders_by_status": byStatus,
	})
}
