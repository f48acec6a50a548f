package gateway

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Webhook event names and payment statuses used by the settlement workflow.
const (
	EventWaitingForCapture = "payment.waiting_for_capture"
	EventSucceeded         = "payment.succeeded"
	EventCanceled          = "payment.canceled"

	StatusPending           = "pending"
	StatusWaitingForCapture = "waiting_for_capture"
	StatusSucceeded         = "succeeded"
	StatusCanceled          = "canceled"
)

// Receipt line tags required by the fiscal receipt rules.
const (
	MeasurePiece    = "piece"
	MeasureKilogram = "kilogram"

	PaymentModeFullPrepayment = "full_prepayment"
	PaymentModeFullPayment    = "full_payment"

	SubjectCommodity = "commodity"
	SubjectService   = "service"

	// VatNone is "without VAT".
	VatNone = 1
)

const CurrencyRUB = "RUB"

type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// NewAmount formats d with two decimals in roubles.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Value: d.StringFixed(2), Currency: CurrencyRUB}
}

// Decimal parses the amount value. Malformed values return zero.
func (a Amount) Decimal() decimal.Decimal {
	d, err := decimal.NewFromString(a.Value)
	if err != nil {
		return decimal.Zero
	}
	return d
}

type Customer struct {
	FullName string `json:"full_name,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

type ReceiptItem struct {
	Description    string `json:"description"`
	Quantity       string `json:"quantity"`
	Amount         Amount `json:"amount"`
	VatCode        int    `json:"vat_code"`
	PaymentMode    string `json:"payment_mode"`
	PaymentSubject string `json:"payment_subject"`
	Measure        string `json:"measure"`
}

type Receipt struct {
	Customer Customer      `json:"customer"`
	Items    []ReceiptItem `json:"items"`
}

// Total sums unit price times quantity over all receipt items.
func (r Receipt) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range r.Items {
		qty, err := decimal.NewFromString(it.Quantity)
		if err != nil {
			continue
		}
		total = total.Add(it.Amount.Decimal().Mul(qty).Round(2))
	}
	return total
}

type Confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type CreatePaymentRequest struct {
	Amount       Amount            `json:"amount"`
	Capture      bool              `json:"capture"`
	Confirmation Confirmation      `json:"confirmation"`
	Description  string            `json:"description,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Receipt      *Receipt          `json:"receipt,omitempty"`
}

type CaptureRequest struct {
	Amount  Amount   `json:"amount"`
	Receipt *Receipt `json:"receipt,omitempty"`
}

type Payment struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Paid         bool              `json:"paid"`
	Amount       Amount            `json:"amount"`
	Confirmation *Confirmation     `json:"confirmation,omitempty"`
	Description  string            `json:"description,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    string            `json:"created_at,omitempty"`
	ExpiresAt    string            `json:"expires_at,omitempty"`
}

// Notification is the webhook envelope delivered by the gateway.
type Notification struct {
	Type   string  `json:"type"`
	Event  string  `json:"event"`
	Object Payment `json:"object"`
}

// APIError is a non-2xx response from the gateway. Body keeps the raw
// payload so callers can echo it back.
type APIError struct {
	StatusCode  int    `json:"-"`
	Type        string `json:"type"`
	ID          string `json:"id"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Parameter   string `json:"parameter,omitempty"`
	Body        []byte `json:"-"`
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("gateway: %d %s: %s", e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("gateway: unexpected status %d", e.StatusCode)
}
