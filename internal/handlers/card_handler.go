package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/bike-rental/billing-service/internal/interfaces"
	"github.com/akylbek/bike-rental/billing-service/internal/models"
	"github.com/akylbek/bike-rental/billing-service/internal/telemetry"
)

const MsgInternalError = "Erro interno do servidor"

type CardHandler struct {
	gateway interfaces.PaymentGateway
}

func NewCardHandler(gateway interfaces.PaymentGateway) *CardHandler {
	return &CardHandler{gateway: gateway}
}

// ValidateCard checks card details against the gateway's tokenization
// endpoint. No charge record is created.
func (h *CardHandler) ValidateCard(c *gin.Context) {
	var card models.CardOnFile
	if !bindJSON(c, &card) {
		return
	}

	validation, err := h.gateway.ValidateCard(c.Request.Context(), card)
	if err != nil {
		telemetry.Logger.Error("Card validation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"mensagem": MsgInternalError})
		return
	}
	if !validation.Valid {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"codigo":   http.StatusUnprocessableEntity,
			"mensagem": validation.Message,
		})
		return
	}

	c.JSON(http.StatusOK, validation.Message)
}
