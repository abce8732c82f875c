package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/bike-rental/billing-service/internal/interfaces"
	"github.com/akylbek/bike-rental/billing-service/internal/models"
	"github.com/akylbek/bike-rental/billing-service/internal/telemetry"
)

const MsgEmailNotFound = "Email não encontrado"

type EmailHandler struct {
	notifier interfaces.Notifier
}

func NewEmailHandler(notifier interfaces.Notifier) *EmailHandler {
	return &EmailHandler{notifier: notifier}
}

func (h *EmailHandler) SendEmail(c *gin.Context) {
	var req models.EmailRequest
	if !bindJSON(c, &req) {
		return
	}

	record, err := h.notifier.Send(c.Request.Context(), req)
	if err != nil {
		telemetry.Logger.Error("Error sending email", zap.String("email", req.Email), zap.Error(err))
		c.JSON(http.StatusNotFound, gin.H{
			"codigo":   http.StatusNotFound,
			"mensagem": MsgEmailNotFound,
		})
		return
	}

	c.JSON(http.StatusOK, record)
}
