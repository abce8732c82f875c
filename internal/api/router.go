package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akylbek/bike-rental/billing-service/internal/handlers"
	"github.com/akylbek/bike-rental/billing-service/internal/interfaces"
	"github.com/akylbek/bike-rental/billing-service/internal/telemetry"
)

func NewRouter(billing handlers.BillingService, gateway interfaces.PaymentGateway, notifier interfaces.Notifier) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": telemetry.ServiceName})
	})

	// Billing routes
	billingHandler := handlers.NewBillingHandler(billing)
	r.POST("/cobranca", billingHandler.ChargeNow)
	r.GET("/cobranca/:id", billingHandler.GetCharge)
	r.POST("/filaCobranca", billingHandler.Enqueue)
	r.POST("/processaCobrancasEmFila", billingHandler.DrainQueue)
	r.POST("/restaurarBanco", billingHandler.ResetStore)

	r.POST("/validaCartaoDeCredito", handlers.NewCardHandler(gateway).ValidateCard)
	r.POST("/enviarEmail", handlers.NewEmailHandler(notifier).SendEmail)

	return r
}
