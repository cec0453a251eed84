package integration_tests

import (
	"bytes"
	"context"
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
	"github.com/billbridge/oracle/mollie"
	"github.com/billbridge/oracle/oracle"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type PaymentWebhookTestSuite struct {
	TestSuite
	service      *service.OracleService
	store        *memVerificationStore
	mockProvider *httptest.Server
}

func (suite *PaymentWebhookTestSuite) SetupSuite() {
	payments := map[string]*mollie.Payment{
		"tr_paid": {
			Resource: "payment",
			ID:       "tr_paid",
			Status:   common.PaymentStatusPaid,
			Amount:   mollie.Amount{Value: "150.00", Currency: "EUR"},
			Metadata: mollie.Metadata{
				BillID:           "42",
				PayerAddress:     testPayerAddress,
				MakerAddress:     testMakerAddress,
				PaymentReference: "BILL-42",
			},
		},
		"tr_open": {
			Resource: "payment",
			ID:       "tr_open",
			Status:   common.PaymentStatusOpen,
			Amount:   mollie.Amount{Value: "150.00", Currency: "EUR"},
		},
		"tr_no_metadata": {
			Resource: "payment",
			ID:       "tr_no_metadata",
			Status:   common.PaymentStatusPaid,
			Amount:   mollie.Amount{Value: "10.00", Currency: "EUR"},
		},
		"tr_bad_address": {
			Resource: "payment",
			ID:       "tr_bad_address",
			Status:   common.PaymentStatusPaid,
			Amount:   mollie.Amount{Value: "10.00", Currency: "EUR"},
			Metadata: mollie.Metadata{
				BillID:       "7",
				PayerAddress: "not-an-address",
				MakerAddress: testMakerAddress,
			},
		},
	}
	suite.mockProvider = newMollieMockServer(payments)
	svc, store, err := OracleTestServiceInit(suite.mockProvider.URL)
	if err != nil {
		log.Fatalf("Error initializing test service: %v", err)
	}
	suite.service = svc
	suite.store = store

	e := echo.New()
	e.HTTPErrorHandler = responses.HTTPErrorHandler
	e.Validator = &lib.CustomValidator{Validator: validator.New()}
	suite.echo = e
	webhookCtrl := controllers.NewWebhookController(suite.service)
	suite.echo.POST("/webhooks/mollie", webhookCtrl.HandlePaymentWebhook)
	suite.echo.POST("/api/verify-payment", webhookCtrl.HandlePaymentWebhook)
}

func (suite *PaymentWebhookTestSuite) postForm(path, paymentID string) *httptest.ResponseRecorder {
	form := url.Values{}
	form.Set("id", paymentID)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	suite.echo.ServeHTTP(rec, req)
	return rec
}

func (suite *PaymentWebhookTestSuite) postJSON(path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	assert.NoError(suite.T(), json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	suite.echo.ServeHTTP(rec, req)
	return rec
}

func (suite *PaymentWebhookTestSuite) TestPaidPaymentGetsAttestation() {
	rec := suite.postForm("/webhooks/mollie", "tr_paid")
	assert.Equal(suite.T(), http.StatusOK, rec.Code)

	verifiedResponse := &controllers.PaymentVerifiedResponseBody{}
	assert.NoError(suite.T(), json.NewDecoder(rec.Body).Decode(verifiedResponse))
	assert.True(suite.T(), verifiedResponse.Success)
	verification := verifiedResponse.Verification
	assert.Equal(suite.T(), int64(42), verification.BillID)
	assert.Equal(suite.T(), int64(15000), verification.FiatAmount)
	assert.Equal(suite.T(), testClockEpoch.Unix(), verification.Timestamp)
	assert.True(suite.T(), strings.HasPrefix(verification.Signature, "0x"))

	// audit record persisted as verified
	stored, err := suite.store.FindByPaymentID(context.Background(), "tr_paid")
	assert.NoError(suite.T(), err)
	assert.NotNil(suite.T(), stored)
	assert.Equal(suite.T(), common.VerificationStatusVerified, stored.Status)
	assert.Equal(suite.T(), "EUR", stored.Currency)
}

func (suite *PaymentWebhookTestSuite) TestSignatureRecoversToOracle() {
	rec := suite.postForm("/webhooks/mollie", "tr_paid")
	assert.Equal(suite.T(), http.StatusOK, rec.Code)

	verifiedResponse := &controllers.PaymentVerifiedResponseBody{}
	assert.NoError(suite.T(), json.NewDecoder(rec.Body).Decode(verifiedResponse))
	verification := verifiedResponse.Verification

	recovered, err := oracle.RecoverSigner(oracle.Attestation{
		BillID:           verification.BillID,
		PayerAddress:     ethAddress(verification.PayerAddress),
		MakerAddress:     ethAddress(verification.MakerAddress),
		FiatAmount:       verification.FiatAmount,
		PaymentReference: "BILL-42",
		Timestamp:        verification.Timestamp,
	}, verification.Signature)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), suite.service.Signer.Address(), recovered)
}

func (suite *PaymentWebhookTestSuite) TestNonPaidStatusIsAcked() {
	rec := suite.postForm("/webhooks/mollie", "tr_open")
	assert.Equal(suite.T(), http.StatusOK, rec.Code)

	ackResponse := &controllers.PaymentAckResponseBody{}
	assert.NoError(suite.T(), json.NewDecoder(rec.Body).Decode(ackResponse))
	assert.True(suite.T(), ackResponse.Received)
	assert.Equal(suite.T(), common.PaymentStatusOpen, ackResponse.Status)

	// no attestation for an unpaid payment
	stored, err := suite.store.FindByPaymentID(context.Background(), "tr_open")
	assert.NoError(suite.T(), err)
	assert.Nil(suite.T(), stored)
}

func (suite *PaymentWebhookTestSuite) TestJSONBodyIsAccepted() {
	rec := suite.postJSON("/api/verify-payment", &controllers.PaymentWebhookRequestBody{ID: "tr_open"})
	assert.Equal(suite.T(), http.StatusOK, rec.Code)

	ackResponse := &controllers.PaymentAckResponseBody{}
	assert.NoError(suite.T(), json.NewDecoder(rec.Body).Decode(ackResponse))
	assert.True(suite.T(), ackResponse.Received)
}

func (suite *PaymentWebhookTestSuite) TestMissingPaymentIdIsRejected() {
	rec := suite.postJSON("/webhooks/mollie", &controllers.PaymentWebhookRequestBody{ID: "  "})
	errorResponse := &responses.ErrorResponse{}
	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)
	assert.NoError(suite.T(), json.NewDecoder(rec.Body).Decode(errorResponse))
	assert.True(suite.T(), errorResponse.Error)
}

func (suite *PaymentWebhookTestSuite) TestMissingMetadataIsRejected() {
	rec := suite.postForm("/webhooks/mollie", "tr_no_metadata")
	errorResponse := &responses.ErrorResponse{}
	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)
	assert.NoError(suite.T(), json.NewDecoder(rec.Body).Decode(errorResponse))
}

func (suite *PaymentWebhookTestSuite) TestInvalidAddressIsRejected() {
	rec := suite.postForm("/webhooks/mollie", "tr_bad_address")
	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)
}

func (suite *PaymentWebhookTestSuite) TestUnknownPaymentIsProviderFailure() {
	// a 404 from the provider means we cannot confirm payment state; respond
	// 5xx so the provider redelivers
	rec := suite.postForm("/webhooks/mollie", "tr_does_not_exist")
	errorResponse := &responses.ErrorResponse{}
	assert.Equal(suite.T(), http.StatusInternalServerError, rec.Code)
	assert.NoError(suite.T(), json.NewDecoder(rec.Body).Decode(errorResponse))
}

func (suite *PaymentWebhookTestSuite) TestRedeliveryReturnsSameAttestation() {
	first := suite.postForm("/webhooks/mollie", "tr_paid")
	assert.Equal(suite.T(), http.StatusOK, first.Code)
	firstResponse := &controllers.PaymentVerifiedResponseBody{}
	assert.NoError(suite.T(), json.NewDecoder(first.Body).Decode(firstResponse))

	second := suite.postForm("/webhooks/mollie", "tr_paid")
	assert.Equal(suite.T(), http.StatusOK, second.Code)
	secondResponse := &controllers.PaymentVerifiedResponseBody{}
	assert.NoError(suite.T(), json.NewDecoder(second.Body).Decode(secondResponse))

	assert.Equal(suite.T(), firstResponse.Verification, secondResponse.Verification)
	assert.Equal(suite.T(), "payment already verified", secondResponse.Message)
}

func (suite *PaymentWebhookTestSuite) TestStoreFailureStillVerifies() {
	suite.store.mu.Lock()
	suite.store.failReads = true
	suite.store.failWrites = true
	suite.store.mu.Unlock()
	defer func() {
		suite.store.mu.Lock()
		suite.store.failReads = false
		suite.store.failWrites = false
		suite.store.mu.Unlock()
	}()

	rec := suite.postForm("/webhooks/mollie", "tr_paid")
	assert.Equal(suite.T(), http.StatusOK, rec.Code)

	verifiedResponse := &controllers.PaymentVerifiedResponseBody{}
	assert.NoError(suite.T(), json.NewDecoder(rec.Body).Decode(verifiedResponse))
	assert.True(suite.T(), verifiedResponse.Success)
	assert.NotEmpty(suite.T(), verifiedResponse.Verification.Signature)
}

func (suite *PaymentWebhookTestSuite) TearDownSuite() {
	suite.mockProvider.Close()
}

func TestPaymentWebhookSuite(t *testing.T) {
	suite.Run(t, new(PaymentWebhookTestSuite))
}
