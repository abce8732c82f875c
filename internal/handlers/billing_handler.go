package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/akylbek/bike-rental/billing-service/internal/models"
	"github.com/akylbek/bike-rental/billing-service/internal/telemetry"
)

const (
	MsgValidationFailed = "Erro de validação"
	MsgStoreReset       = "Banco de dados restaurado com sucesso"
	MsgStoreResetFailed = "Erro ao restaurar o banco de dados"
)

// BillingService is the part of *service.BillingManager the HTTP layer drives.
type BillingService interface {
	ChargeNow(ctx context.Context, cyclistID int64, amount decimal.Decimal) models.ChargeResult
	Enqueue(ctx context.Context, cyclistID int64, amount decimal.Decimal) models.ChargeResult
	DrainQueue(ctx context.Context) models.DrainResult
	GetByID(ctx context.Context, chargeID int64) models.ChargeResult
	ResetStore(ctx context.Context) error
}

type BillingHandler struct {
	billing BillingService
}

func NewBillingHandler(billing BillingService) *BillingHandler {
	return &BillingHandler{billing: billing}
}

func (h *BillingHandler) ChargeNow(c *gin.Context) {
	var req models.ChargeRequest
	if !bindJSON(c, &req) {
		return
	}

	result := h.billing.ChargeNow(c.Request.Context(), *req.CyclistID, *req.Amount)
	writeChargeResult(c, result)
}

func (h *BillingHandler) Enqueue(c *gin.Context) {
	var req models.ChargeRequest
	if !bindJSON(c, &req) {
		return
	}

	result := h.billing.Enqueue(c.Request.Context(), *req.CyclistID, *req.Amount)
	writeChargeResult(c, result)
}

func (h *BillingHandler) GetCharge(c *gin.Context) {
	chargeID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		validationFailed(c)
		return
	}

	result := h.billing.GetByID(c.Request.Context(), chargeID)
	switch result.Outcome {
	case models.OutcomeSuccess:
		c.JSON(http.StatusOK, result.Charge)
	case models.OutcomeNotFound:
		c.JSON(http.StatusNotFound, gin.H{"mensagem": result.Reason})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"mensagem": result.Reason})
	}
}

func (h *BillingHandler) DrainQueue(c *gin.Context) {
	result := h.billing.DrainQueue(c.Request.Context())
	switch result.Outcome {
	case models.OutcomeSuccess:
		c.JSON(http.StatusOK, result.Charges)
	case models.OutcomeRejected:
		c.JSON(http.StatusConflict, gin.H{"mensagem": result.Reason})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"mensagem": result.Reason})
	}
}

func (h *BillingHandler) ResetStore(c *gin.Context) {
	if err := h.billing.ResetStore(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"mensagem": MsgStoreResetFailed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mensagem": MsgStoreReset})
}

// writeChargeResult maps NotFound and Rejected to 400 and transient failures
// to 500.
func writeChargeResult(c *gin.Context, result models.ChargeResult) {
	switch result.Outcome {
	case models.OutcomeSuccess:
		c.JSON(http.StatusOK, result.Charge)
	case models.OutcomeNotFound, models.OutcomeRejected:
		c.JSON(http.StatusBadRequest, gin.H{"mensagem": result.Reason})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"mensagem": result.Reason})
	}
}

func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		telemetry.Logger.Warn("Request validation failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		validationFailed(c)
		return false
	}
	return true
}

func validationFailed(c *gin.Context) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{
		"codigo":   http.StatusUnprocessableEntity,
		"mensagem": MsgValidationFailed,
	})
}
