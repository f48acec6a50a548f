package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fasol-market/api/internal/database"
	"github.com/fasol-market/api/internal/enum"
	"github.com/fasol-market/api/internal/gateway"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Errors returned by the settlement services.
var (
	ErrEmptyCart           = errors.New("cart is required")
	ErrInvalidPrice        = errors.New("price must be > 0")
	ErrInvalidQuantity     = errors.New("quantity must be > 0")
	ErrNameRequired        = errors.New("customer_name is required")
	ErrPhoneRequired       = errors.New("phone is required")
	ErrAddressRequired     = errors.New("address is required")
	ErrDeliveryUnavailable = errors.New("delivery is unavailable for this order amount")
	ErrInvalidOrderID      = errors.New("order_id must be up to 32 letters, digits, '-' or '_'")
	ErrGateway             = errors.New("payment gateway error")
	ErrOrderNotFound       = errors.New("order not found or already processed")
	ErrLineNotFound        = errors.New("cart line not found")
	ErrNotWeighted         = errors.New("line is not weight-priced")
	ErrInvalidWeight       = errors.New("weight must be >= 0")
	ErrCartMismatch        = errors.New("final cart does not match held order")
	ErrCaptureExceedsHold  = errors.New("capture amount exceeds held amount")
	ErrNothingToCapture    = errors.New("capture amount is zero")
	ErrCaptureInProgress   = errors.New("capture already in progress for this order")
	ErrInvalidTransition   = errors.New("invalid fulfillment status transition")
	ErrConcurrentUpdate    = errors.New("order was modified concurrently")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PaymentGateway is the subset of the payment provider API used by the workflow.
// Satisfied by *gateway.Client.
type PaymentGateway interface {
	CreatePayment(ctx context.Context, req gateway.CreatePaymentRequest, idempotenceKey string) (*gateway.Payment, error)
	CapturePayment(ctx context.Context, paymentID string, req gateway.CaptureRequest, idempotenceKey string) (*gateway.Payment, error)
	CancelPayment(ctx context.Context, paymentID, idempotenceKey string) (*gateway.Payment, error)
}

// Event is published after a state transition has been committed.
type Event struct {
	Type       string    `json:"type"`
	Order      Order     `json:"order"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier delivers events to operators and downstream consumers.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// CartLine is a single cart item. Weight-priced lines carry the price per
// kilogram and a fractional quantity in kilograms.
type CartLine struct {
	ProductID        string           `json:"id,omitempty"`
	Name             string           `json:"name"`
	Price            decimal.Decimal  `json:"price"`
	Quantity         decimal.Decimal  `json:"quantity"`
	Unit             string           `json:"unit,omitempty"`
	OriginalQuantity *decimal.Decimal `json:"original_quantity,omitempty"`
}

// Weighted reports whether the line is priced by weight.
func (l CartLine) Weighted() bool {
	return l.Unit == enum.UnitKilogram
}

// Total is price × quantity rounded to kopecks.
func (l CartLine) Total() decimal.Decimal {
	return l.Price.Mul(l.Quantity).Round(2)
}

// checkPrecision rejects values the fiscal receipt would round. Prices stop
// at kopecks and weights at grams. Pieces are whole.
func (l CartLine) checkPrecision() error {
	if !l.Price.Equal(l.Price.Truncate(2)) {
		return fmt.Errorf("%w: at most 2 decimal places", ErrInvalidPrice)
	}
	if !l.Quantity.Equal(l.Quantity.Truncate(3)) {
		return fmt.Errorf("%w: at most 3 decimal places", ErrInvalidQuantity)
	}
	if !l.Weighted() && !l.Quantity.IsInteger() {
		return fmt.Errorf("%w: piece quantity must be whole", ErrInvalidQuantity)
	}
	return nil
}

// Order is the ledger payload. It is stored as JSONB and moves between the
// pending, assembly and paid tables as the settlement advances.
type Order struct {
	ID                string           `json:"id"`
	PaymentID         string           `json:"payment_id"`
	CustomerName      string           `json:"customer_name"`
	Phone             string           `json:"phone"`
	Address           string           `json:"address"`
	Comment           string           `json:"comment,omitempty"`
	DeliveryTime      string           `json:"delivery_time,omitempty"`
	Cart              []CartLine       `json:"cart"`
	Subtotal          decimal.Decimal  `json:"subtotal"`
	TotalWithReserve  decimal.Decimal  `json:"total_with_reserve"`
	ReserveDifference decimal.Decimal  `json:"reserve_difference"`
	DeliveryFee       decimal.Decimal  `json:"delivery_fee"`
	AmountToPay       decimal.Decimal  `json:"amount_to_pay"`
	CapturedAmount    *decimal.Decimal `json:"captured_amount,omitempty"`
	Status            string           `json:"status"`
	FulfillmentStatus string           `json:"fulfillment_status,omitempty"`
	Version           int32            `json:"version,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}

// HasWeightedLines reports whether any line can be adjusted by an operator.
func (o Order) HasWeightedLines() bool {
	for _, l := range o.Cart {
		if l.Weighted() {
			return true
		}
	}
	return false
}

// --- Ledger row decoding ---

func encodeOrder(o Order) ([]byte, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("encode order %s: %w", o.ID, err)
	}
	return b, nil
}

func decodeOrder(payload []byte) (Order, error) {
	var o Order
	if err := json.Unmarshal(payload, &o); err != nil {
		return Order{}, fmt.Errorf("decode order payload: %w", err)
	}
	return o, nil
}

// OrderFromAssembly decodes an awaiting-assembly row.
func OrderFromAssembly(row database.AssemblyOrder) (Order, error) {
	o, err := decodeOrder(row.Payload)
	if err != nil {
		return Order{}, err
	}
	o.Status = enum.OrderStatusAwaitingAssembly
	o.Version = row.Version
	return o, nil
}

// OrderFromPaid decodes a captured row.
func OrderFromPaid(row database.PaidOrder) (Order, error) {
	o, err := decodeOrder(row.Payload)
	if err != nil {
		return Order{}, err
	}
	captured := numericToDecimal(row.CapturedAmount)
	o.Status = enum.OrderStatusCaptured
	o.CapturedAmount = &captured
	o.FulfillmentStatus = row.FulfillmentStatus
	return o, nil
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

// quantityToNumeric keeps gram precision for stock quantities.
func quantityToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(3))
	return n
}
