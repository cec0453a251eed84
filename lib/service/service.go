package service

import (
	"time"

	"github.com/billbridge/oracle/mollie"
	"github.com/billbridge/oracle/oracle"
	"github.com/ziflex/lecho/v3"
)

// OracleService wires the verification pipeline: provider client, attestation
// signer, audit store and the optional event publisher. One instance per
// process; all fields are set at startup and never mutated afterwards.
type OracleService struct {
	Config    *Config
	Logger    *lecho.Logger
	Store     VerificationStore
	Provider  mollie.PaymentFetcher
	Signer    *oracle.Signer
	Publisher VerificationPublisher

	// Clock is the signing-time source; tests pin it. Defaults to time.Now.
	Clock func() time.Time
}

func (svc *OracleService) now() time.Time {
	if svc.Clock != nil {
		return svc.Clock()
	}
	return time.Now()
}
