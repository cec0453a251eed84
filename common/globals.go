package common

const (
	PaymentStatusPaid     = "paid"
	PaymentStatusPending  = "pending"
	PaymentStatusOpen     = "open"
	PaymentStatusCanceled = "canceled"
	PaymentStatusExpired  = "expired"
	PaymentStatusFailed   = "failed"

	VerificationStatusVerified = "verified"

	VerificationExchange   = "oracle_verification"
	VerificationRoutingKey = "verification.verified"
)
