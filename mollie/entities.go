package mollie

// Payment is the authoritative payment record as returned by the provider
// API. Metadata fields are set by the platform at payment-creation time but
// arrive untrusted here; the verification service validates them before any
// attestation is produced.
type Payment struct {
	Resource    string   `json:"resource"`
	ID          string   `json:"id"`
	Status      string   `json:"status"`
	Amount      Amount   `json:"amount"`
	Description string   `json:"description"`
	Metadata    Metadata `json:"metadata"`
	Method      string   `json:"method"`
	PaidAt      string   `json:"paidAt,omitempty"`
	CreatedAt   string   `json:"createdAt,omitempty"`
}

// Amount is a decimal string plus ISO currency code, e.g. {"150.00","EUR"}.
type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// Metadata carries the escrow linkage the platform attached to the payment.
type Metadata struct {
	BillID           string `json:"billId"`
	PayerAddress     string `json:"payerAddress"`
	MakerAddress     string `json:"makerAddress"`
	PaymentReference string `json:"paymentReference"`
}
