package responses

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error          bool   `json:"error"`
	Code           int    `json:"code"`
	Message        string `json:"message"`
	HttpStatusCode int    `json:"-"`
}

var GeneralServerError = ErrorResponse{
	Error:          true,
	Code:           6,
	Message:        "Something went wrong. Please try again later",
	HttpStatusCode: 500,
}

var BadArgumentsError = ErrorResponse{
	Error:          true,
	Code:           8,
	Message:        "Bad arguments",
	HttpStatusCode: 400,
}

var MissingPaymentIdError = ErrorResponse{
	Error:          true,
	Code:           8,
	Message:        "missing payment id",
	HttpStatusCode: 400,
}

var InvalidMetadataError = ErrorResponse{
	Error:          true,
	Code:           9,
	Message:        "payment metadata missing or invalid",
	HttpStatusCode: 400,
}

var ProviderUnavailableError = ErrorResponse{
	Error:          true,
	Code:           10,
	Message:        "payment provider unavailable, delivery will be retried",
	HttpStatusCode: 500,
}

var SigningFailureError = ErrorResponse{
	Error:          true,
	Code:           11,
	Message:        "could not sign attestation",
	HttpStatusCode: 500,
}

var VerificationNotFoundError = ErrorResponse{
	Error:          true,
	Code:           12,
	Message:        "no verification found",
	HttpStatusCode: 404,
}

func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	c.Logger().Error(err)
	if hub := sentryecho.GetHubFromContext(c); hub != nil {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetExtra("RequestID", c.Response().Header().Get(echo.HeaderXRequestID))
			hub.CaptureException(err)
		})
	}
	if he, ok := err.(*echo.HTTPError); ok {
		c.JSON(he.Code, he.Message)
	} else {
		c.JSON(http.StatusInternalServerError, GeneralServerError)
	}
}
