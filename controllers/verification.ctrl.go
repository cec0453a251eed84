package controllers

import (
	"net/http"
	"strconv"

	"github.com/billbridge/oracle/lib/responses"
	"github.com/billbridge/oracle/lib/service"
	"github.com/labstack/echo/v4"
)

// VerificationController : Audit record lookup controller struct
type VerificationController struct {
	svc *service.OracleService
}

func NewVerificationController(svc *service.OracleService) *VerificationController {
	return &VerificationController{svc: svc}
}

type GetVerificationResponseBody struct {
	MolliePaymentID string                   `json:"mollie_payment_id"`
	Status          string                   `json:"status"`
	Currency        string                   `json:"currency"`
	CreatedAt       int64                    `json:"created_at"`
	Verification    VerificationResponseBody `json:"verification"`
}

// GetVerification godoc
// @Summary      Retrieve a verification by payment id
// @Description  Returns the stored audit record for a provider payment id
// @Produce      json
// @Tags         Verification
// @Param        payment_id  path  string  true  "Provider payment id"
// @Success      200  {object}  GetVerificationResponseBody
// @Failure      404  {object}  responses.ErrorResponse
// @Router       /v2/verifications/{payment_id} [get]
func (controller *VerificationController) GetVerification(c echo.Context) error {
	paymentID := c.Param("payment_id")

	verification, err := controller.svc.Store.FindByPaymentID(c.Request().Context(), paymentID)
	if err != nil {
		c.Logger().Errorf("Failed to fetch verification: mollie_payment_id:%s error: %v", paymentID, err)
		return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
	}
	if verification == nil {
		return c.JSON(http.StatusNotFound, responses.VerificationNotFoundError)
	}

	return c.JSON(http.StatusOK, &GetVerificationResponseBody{
		MolliePaymentID: verification.MolliePaymentID,
		Status:          verification.Status,
		Currency:        verification.Currency,
		CreatedAt:       verification.CreatedAt.Unix(),
		Verification:    verificationResponse(verification),
	})
}

// GetBillVerification godoc
// @Summary      Retrieve a verification by bill id
// @Description  Returns the stored audit record for an on-chain bill id
// @Produce      json
// @Tags         Verification
// @Param        bill_id  path  int  true  "On-chain bill id"
// @Success      200  {object}  GetVerificationResponseBody
// @Failure      404  {object}  responses.ErrorResponse
// @Router       /v2/bills/{bill_id}/verification [get]
func (controller *VerificationController) GetBillVerification(c echo.Context) error {
	billID, err := strconv.ParseInt(c.Param("bill_id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	verification, err := controller.svc.Store.FindByBillID(c.Request().Context(), billID)
	if err != nil {
		c.Logger().Errorf("Failed to fetch verification: bill_id:%d error: %v", billID, err)
		return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
	}
	if verification == nil {
		return c.JSON(http.StatusNotFound, responses.VerificationNotFoundError)
	}

	return c.JSON(http.StatusOK, &GetVerificationResponseBody{
		MolliePaymentID: verification.MolliePaymentID,
		Status:          verification.Status,
		Currency:        verification.Currency,
		CreatedAt:       verification.CreatedAt.Unix(),
		Verification:    verificationResponse(verification),
	})
}
