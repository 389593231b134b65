package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/campus-food/utils"
)

// ReceiptUploadGuard caps the upload body and logs the outcome per order.
func ReceiptUploadGuard(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		utils.InfoLogger.Printf("Receipt upload started for order %s", c.Param("order_id"))

		c.Next()

		if c.Writer.Status() < 300 {
			utils.InfoLogger.Printf("Receipt stored for order %s", c.Param("order_id"))
		} else {
			utils.ErrorLogger.Printf("Receipt upload failed for order %s (status %d)", c.Param("order_id"), c.Writer.Status())
		}
	}
}
