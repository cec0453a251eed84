package integration_tests

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/billbridge/oracle/db/models"
	"github.com/billbridge/oracle/lib/service"
	"github.com/billbridge/oracle/mollie"
	"github.com/billbridge/oracle/oracle"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/suite"
	"github.com/ziflex/lecho/v3"
)

const (
	testOracleKeyHex = "4f3edf983ac636a65a842ce7c78d9aa706d3b113b37e2b8c3c6d53295d85f81b"
	testMollieAPIKey = "test_dHar4XY7LxsDOtmnkVtjNVWXLSlXsM"
	testPayerAddress = "0x1111111111111111111111111111111111111111"
	testMakerAddress = "0x2222222222222222222222222222222222222222"
)

// testClockEpoch pins the signing timestamp so attestations are deterministic
// across the whole suite.
var testClockEpoch = time.Unix(1700000000, 0)

// newMollieMockServer serves GET /payments/{id} from a fixed payment set,
// like the real provider API would. Unknown ids get a 404.
func newMollieMockServer(payments map[string]*mollie.Payment) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/payments/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/payments/"):]
		payment, found := payments[id]
		if !found {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(payment)
	})
	return httptest.NewServer(mux)
}

// memVerificationStore is an in-memory VerificationStore with the same
// uniqueness semantics the Postgres implementation gets from its constraint.
type memVerificationStore struct {
	mu         sync.Mutex
	nextID     int64
	byPayment  map[string]*models.Verification
	bills      map[int64]*models.Verification
	failReads  bool
	failWrites bool
}

func newMemVerificationStore() *memVerificationStore {
	return &memVerificationStore{
		byPayment: map[string]*models.Verification{},
		bills:     map[int64]*models.Verification{},
	}
}

func (s *memVerificationStore) InsertOrGet(ctx context.Context, v *models.Verification) (*models.Verification, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return nil, false, context.DeadlineExceeded
	}
	if stored, found := s.byPayment[v.MolliePaymentID]; found {
		return stored, false, nil
	}
	s.nextID++
	v.ID = s.nextID
	if v.CreatedAt.IsZero() {
		v.CreatedAt = testClockEpoch
	}
	s.byPayment[v.MolliePaymentID] = v
	return v, true, nil
}

func (s *memVerificationStore) FindByPaymentID(ctx context.Context, paymentID string) (*models.Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads {
		return nil, context.DeadlineExceeded
	}
	return s.byPayment[paymentID], nil
}

func (s *memVerificationStore) FindByBillID(ctx context.Context, billID int64) (*models.Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads {
		return nil, context.DeadlineExceeded
	}
	for _, v := range s.byPayment {
		if v.BillID == billID {
			return v, nil
		}
	}
	return nil, nil
}

func (s *memVerificationStore) UpdateBillVerification(ctx context.Context, v *models.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return context.DeadlineExceeded
	}
	s.bills[v.BillID] = v
	return nil
}

// OracleTestServiceInit wires a service against the given mock provider URL,
// with a real mollie client, real signer and the in-memory store.
func OracleTestServiceInit(providerURL string) (*service.OracleService, *memVerificationStore, error) {
	signer, err := oracle.NewSigner(testOracleKeyHex)
	if err != nil {
		return nil, nil, err
	}
	store := newMemVerificationStore()
	svc := &service.OracleService{
		Config: &service.Config{},
		Logger: lecho.New(io.Discard),
		Store:  store,
		Provider: mollie.NewClient(&mollie.Config{
			APIKey:         testMollieAPIKey,
			APIBaseURL:     providerURL,
			TimeoutSeconds: 5,
		}),
		Signer: signer,
		Clock:  func() time.Time { return testClockEpoch },
	}
	return svc, store, nil
}

func ethAddress(s string) ethcommon.Address {
	return ethcommon.HexToAddress(s)
}

type TestSuite struct {
	suite.Suite
	echo *echo.Echo
}
