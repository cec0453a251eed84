package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/billbridge/oracle/db/models"
	"github.com/billbridge/oracle/lib/responses"
	"github.com/billbridge/oracle/lib/service"
	"github.com/billbridge/oracle/mollie"
	"github.com/labstack/echo/v4"
)

// WebhookController : Payment webhook controller struct
type WebhookController struct {
	svc *service.OracleService
}

func NewWebhookController(svc *service.OracleService) *WebhookController {
	return &WebhookController{svc: svc}
}

// Mollie posts form-encoded bodies; internal callers post JSON. One bind
// struct covers both.
type PaymentWebhookRequestBody struct {
	ID string `json:"id" form:"id"`
}

type VerificationResponseBody struct {
	BillID               int64  `json:"billId"`
	PayerAddress         string `json:"payerAddress"`
	MakerAddress         string `json:"makerAddress"`
	FiatAmount           int64  `json:"fiatAmount"`
	PaymentReferenceHash string `json:"paymentReferenceHash"`
	Timestamp            int64  `json:"timestamp"`
	Signature            string `json:"signature"`
}

type PaymentVerifiedResponseBody struct {
	Success      bool                     `json:"success"`
	Verification VerificationResponseBody `json:"verification"`
	Message      string                   `json:"message"`
}

type PaymentAckResponseBody struct {
	Received bool   `json:"received"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

// HandlePaymentWebhook godoc
// @Summary      Verify a fiat payment
// @Description  Fetches the authoritative payment state from the provider and, when paid, returns a signed escrow-release attestation
// @Accept       json
// @Produce      json
// @Tags         Webhook
// @Param        webhook  body      PaymentWebhookRequestBody  True  "Payment event"
// @Success      200      {object}  PaymentVerifiedResponseBody
// @Failure      400      {object}  responses.ErrorResponse
// @Failure      500      {object}  responses.ErrorResponse
// @Router       /webhooks/mollie [post]
func (controller *WebhookController) HandlePaymentWebhook(c echo.Context) error {
	var body PaymentWebhookRequestBody

	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load webhook request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	paymentID := strings.TrimSpace(body.ID)
	if paymentID == "" {
		c.Logger().Error("Webhook delivery without payment id")
		return c.JSON(http.StatusBadRequest, responses.MissingPaymentIdError)
	}
	c.Set("PaymentID", paymentID)

	result, err := controller.svc.VerifyPayment(c.Request().Context(), paymentID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingMetadata), errors.Is(err, service.ErrInvalidMetadata):
			// redelivery will not fix a malformed event
			return c.JSON(http.StatusBadRequest, responses.InvalidMetadataError)
		case errors.Is(err, mollie.ErrProviderUnavailable):
			// non-2xx makes the provider redeliver once it is back up
			c.Logger().Errorf("Provider fetch failed: mollie_payment_id:%s error: %v", paymentID, err)
			return c.JSON(http.StatusInternalServerError, responses.ProviderUnavailableError)
		case errors.Is(err, service.ErrSigningFailure):
			c.Logger().Errorf("Signing failed: mollie_payment_id:%s error: %v", paymentID, err)
			return c.JSON(http.StatusInternalServerError, responses.SigningFailureError)
		default:
			c.Logger().Errorf("Verification failed: mollie_payment_id:%s error: %v", paymentID, err)
			return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
		}
	}

	if result.Ack {
		// ack non-actionable events so the provider stops redelivering
		return c.JSON(http.StatusOK, &PaymentAckResponseBody{
			Received: true,
			Status:   result.Status,
			Message:  "payment not yet paid, acknowledged",
		})
	}

	message := "payment verified"
	if result.Replayed {
		message = "payment already verified"
	}
	return c.JSON(http.StatusOK, &PaymentVerifiedResponseBody{
		Success:      true,
		Verification: verificationResponse(result.Verification),
		Message:      message,
	})
}

func verificationResponse(v *models.Verification) VerificationResponseBody {
	return VerificationResponseBody{
		BillID:               v.BillID,
		PayerAddress:         v.PayerAddress,
		MakerAddress:         v.MakerAddress,
		FiatAmount:           v.FiatAmount,
		PaymentReferenceHash: v.PaymentReferenceHash,
		Timestamp:            v.Timestamp,
		Signature:            v.Signature,
	}
}
