package transport

import (
	"github.com/billbridge/oracle/controllers"
	"github.com/billbridge/oracle/lib/service"
	"github.com/labstack/echo/v4"
)

func RegisterEndpoints(svc *service.OracleService, e *echo.Echo, strictRateLimitMw echo.MiddlewareFunc, adminMw echo.MiddlewareFunc, logMw echo.MiddlewareFunc) {
	webhookCtrl := controllers.NewWebhookController(svc)
	verificationCtrl := controllers.NewVerificationController(svc)

	// The provider retries non-2xx deliveries on its own schedule; the
	// webhook route deliberately sits outside the strict rate limiter.
	e.POST("/webhooks/mollie", webhookCtrl.HandlePaymentWebhook, logMw)
	// kept for the platform's serverless-era callers
	e.POST("/api/verify-payment", webhookCtrl.HandlePaymentWebhook, logMw)

	cacheClient := CreateCacheClient(svc.Logger)
	e.GET("/v2/verifications/:payment_id", verificationCtrl.GetVerification, strictRateLimitMw, adminMw, logMw, cacheClient.Middleware())
	e.GET("/v2/bills/:bill_id/verification", verificationCtrl.GetBillVerification, strictRateLimitMw, adminMw, logMw, cacheClient.Middleware())

	e.GET("/healthz", controllers.NewHealthController().Check)
}
