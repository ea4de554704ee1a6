package handlers

import (
	"net/http"

	"futsal/internal/logger"
	"futsal/internal/models"

	"github.com/gin-gonic/gin"
)

// PaymentCallback - GET /api/payments/callback?pidx=&purchase_order_id=
// Возврат пользователя со страницы оплаты. Статус из запроса не доверяется: платеж проверяется в шлюзе.
func (h *Handlers) PaymentCallback(c *gin.Context) {
	var query models.PaymentCallbackQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logger.WithContext(c.Request.Context()).Info("Payment callback received",
		"reference", query.PurchaseOrderID,
		"payment_index", query.PIDX,
		"reported_status", query.Status)

	result, err := h.reservations.HandleGatewayCallback(c.Request.Context(), query.PurchaseOrderID, query.PIDX)
	if err != nil {
		handleServiceError(c, err, "handle payment callback")
		return
	}

	c.JSON(http.StatusOK, result)
}
