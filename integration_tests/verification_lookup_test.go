package integration_tests

import (
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/billbridge/oracle/common"
	"github.com/billbridge/oracle/controllers"
	"github.com/billbridge/oracle/lib"
	"github.com/billbridge/oracle/lib/responses"
	"github.com/billbridge/oracle/lib/service"
	"github.com/billbridge/oracle/lib/tokens"
	"github.com/billbridge/oracle/mollie"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

const testAdminToken = "oracle-admin-token"

type VerificationLookupTestSuite struct {
	TestSuite
	service      *service.OracleService
	store        *memVerificationStore
	mockProvider *httptest.Server
}

func (suite *VerificationLookupTestSuite) SetupSuite() {
	payments := map[string]*mollie.Payment{
		"tr_lookup": {
			Resource: "payment",
			ID:       "tr_lookup",
			Status:   common.PaymentStatusPaid,
			Amount:   mollie.Amount{Value: "25.50", Currency: "EUR"},
			Metadata: mollie.Metadata{
				BillID:           "99",
				PayerAddress:     testPayerAddress,
				MakerAddress:     testMakerAddress,
				PaymentReference: "BILL-99",
			},
		},
	}
	suite.mockProvider = newMollieMockServer(payments)
	svc, store, err := OracleTestServiceInit(suite.mockProvider.URL)
	if err != nil {
		log.Fatalf("Error initializing test service: %v", err)
	}
	svc.Config.AdminToken = testAdminToken
	suite.service = svc
	suite.store = store

	e := echo.New()
	e.HTTPErrorHandler = responses.HTTPErrorHandler
	e.Validator = &lib.CustomValidator{Validator: validator.New()}
	suite.echo = e
	adminMw := tokens.AdminTokenMiddleware(svc.Config.AdminToken)
	webhookCtrl := controllers.NewWebhookController(suite.service)
	verificationCtrl := controllers.NewVerificationController(suite.service)
	suite.echo.POST("/webhooks/mollie", webhookCtrl.HandlePaymentWebhook)
	suite.echo.GET("/v2/verifications/:payment_id", verificationCtrl.GetVerification, adminMw)
	suite.echo.GET("/v2/bills/:bill_id/verification", verificationCtrl.GetBillVerification, adminMw)

	// verify one payment so the lookups have a record to find
	form := url.Values{}
	form.Set("id", "tr_lookup")
	req := httptest.NewRequest(http.MethodPost, "/webhooks/mollie", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	suite.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		log.Fatalf("Error seeding verification: status %d", rec.Code)
	}
}

func (suite *VerificationLookupTestSuite) getWithToken(path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	suite.echo.ServeHTTP(rec, req)
	return rec
}

func (suite *VerificationLookupTestSuite) TestLookupByPaymentId() {
	rec := suite.getWithToken("/v2/verifications/tr_lookup", testAdminToken)
	assert.Equal(suite.T(), http.StatusOK, rec.Code)

	lookupResponse := &controllers.GetVerificationResponseBody{}
	assert.NoError(suite.T(), json.NewDecoder(rec.Body).Decode(lookupResponse))
	assert.Equal(suite.T(), "tr_lookup", lookupResponse.MolliePaymentID)
	assert.Equal(suite.T(), common.VerificationStatusVerified, lookupResponse.Status)
	assert.Equal(suite.T(), int64(99), lookupResponse.Verification.BillID)
	assert.Equal(suite.T(), int64(2550), lookupResponse.Verification.FiatAmount)
}

func (suite *VerificationLookupTestSuite) TestLookupByBillId() {
	rec := suite.getWithToken("/v2/bills/99/verification", testAdminToken)
	assert.Equal(suite.T(), http.StatusOK, rec.Code)

	lookupResponse := &controllers.GetVerificationResponseBody{}
	assert.NoError(suite.T(), json.NewDecoder(rec.Body).Decode(lookupResponse))
	assert.Equal(suite.T(), "tr_lookup", lookupResponse.MolliePaymentID)
	assert.Equal(suite.T(), int64(99), lookupResponse.Verification.BillID)
}

func (suite *VerificationLookupTestSuite) TestLookupUnknownPaymentIsNotFound() {
	rec := suite.getWithToken("/v2/verifications/tr_nope", testAdminToken)
	errorResponse := &responses.ErrorResponse{}
	assert.Equal(suite.T(), http.StatusNotFound, rec.Code)
	assert.NoError(suite.T(), json.NewDecoder(rec.Body).Decode(errorResponse))
	assert.True(suite.T(), errorResponse.Error)
}

func (suite *VerificationLookupTestSuite) TestLookupBadBillIdIsRejected() {
	rec := suite.getWithToken("/v2/bills/not-a-number/verification", testAdminToken)
	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)
}

func (suite *VerificationLookupTestSuite) TestLookupWithoutTokenIsRejected() {
	rec := suite.getWithToken("/v2/verifications/tr_lookup", "")
	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)
}

func (suite *VerificationLookupTestSuite) TestLookupWithWrongTokenIsRejected() {
	rec := suite.getWithToken("/v2/verifications/tr_lookup", "wrong-token")
	assert.Equal(suite.T(), http.StatusUnauthorized, rec.Code)
}

func (suite *VerificationLookupTestSuite) TearDownSuite() {
	suite.mockProvider.Close()
}

func TestVerificationLookupSuite(t *testing.T) {
	suite.Run(t, new(VerificationLookupTestSuite))
}
