package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/fasol-market/api/internal/database"
	"github.com/fasol-market/api/internal/enum"
	"github.com/fasol-market/api/internal/gateway"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/log"
)

// HoldStore defines the DB methods needed to place a hold.
// Satisfied by *database.Queries.
type HoldStore interface {
	NextDailyOrderNumber(ctx context.Context, arg database.NextDailyOrderNumberParams) (int32, error)
	OrderIDInUse(ctx context.Context, orderID string) (bool, error)
	CreatePendingHold(ctx context.Context, arg database.CreatePendingHoldParams) (database.PendingHold, error)
}

// HoldConfig carries the checkout settings.
type HoldConfig struct {
	Policy    DeliveryPolicy
	ReturnURL string
	Location  *time.Location // day boundary for order numbers
}

// CheckoutRequest is the storefront's checkout submission.
type CheckoutRequest struct {
	OrderID      string
	CustomerName string
	Phone        string
	Address      string
	Comment      string
	DeliveryTime string
	Cart         []CartLine
}

// HoldResult is the persisted order and the gateway's payment, which carries
// the payer's confirmation URL.
type HoldResult struct {
	Order   Order
	Payment *gateway.Payment
}

// HoldService places payment holds for checked-out carts.
type HoldService struct {
	store    HoldStore
	gateway  PaymentGateway
	notifier Notifier
	cfg      HoldConfig
	now      func() time.Time
}

// NewHoldService creates a new HoldService.
func NewHoldService(store HoldStore, gw PaymentGateway, notifier Notifier, cfg HoldConfig) *HoldService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &HoldService{store: store, gateway: gw, notifier: notifier, cfg: cfg, now: time.Now}
}

// Policy exposes the delivery policy for checkout previews.
func (s *HoldService) Policy() DeliveryPolicy {
	return s.cfg.Policy
}

// InitiateHold validates the cart, holds amountToPay at the gateway and
// records the order as pending confirmation under the returned payment id.
// A gateway rejection leaves nothing persisted.
func (s *HoldService) InitiateHold(ctx context.Context, req CheckoutRequest) (*HoldResult, error) {
	if err := validateCheckout(req); err != nil {
		return nil, err
	}

	quote, err := s.cfg.Policy.Quote(req.Cart)
	if err != nil {
		return nil, err
	}

	orderID, err := s.resolveOrderID(ctx, strings.TrimSpace(req.OrderID))
	if err != nil {
		return nil, err
	}

	cart := make([]CartLine, len(req.Cart))
	for i, line := range req.Cart {
		line.OriginalQuantity = nil
		cart[i] = line
	}

	order := Order{
		ID:                orderID,
		CustomerName:      strings.TrimSpace(req.CustomerName),
		Phone:             strings.TrimSpace(req.Phone),
		Address:           strings.TrimSpace(req.Address),
		Comment:           req.Comment,
		DeliveryTime:      req.DeliveryTime,
		Cart:              cart,
		Subtotal:          quote.Subtotal,
		TotalWithReserve:  quote.TotalWithReserve,
		ReserveDifference: quote.ReserveDifference,
		DeliveryFee:       quote.DeliveryFee,
		AmountToPay:       quote.AmountToPay,
		Status:            enum.OrderStatusPending,
		CreatedAt:         s.now().UTC(),
	}

	payment, err := s.gateway.CreatePayment(ctx, gateway.CreatePaymentRequest{
		Amount:  gateway.NewAmount(quote.AmountToPay),
		Capture: false,
		Confirmation: gateway.Confirmation{
			Type:      "redirect",
			ReturnURL: s.cfg.ReturnURL,
		},
		Description: fmt.Sprintf("Заказ №%s", orderID),
		Metadata:    map[string]string{"order_id": orderID},
		Receipt:     holdReceipt(order),
	}, uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGateway, err)
	}
	order.PaymentID = payment.ID

	payload, err := encodeOrder(order)
	if err == nil {
		_, err = s.store.CreatePendingHold(ctx, database.CreatePendingHoldParams{
			PaymentID:   payment.ID,
			OrderID:     orderID,
			Payload:     payload,
			AmountToPay: decimalToNumeric(quote.AmountToPay),
		})
	}
	if err != nil {
		// The hold exists at the gateway but not in the ledger; release it.
		s.releaseHold(ctx, payment.ID)
		return nil, fmt.Errorf("persist pending hold: %w", err)
	}

	log.Info().
		Str("order_id", orderID).
		Str("payment_id", payment.ID).
		Str("amount_to_pay", quote.AmountToPay.StringFixed(2)).
		Str("reserve", quote.ReserveDifference.StringFixed(2)).
		Msg("payment hold created")

	notify(ctx, s.notifier, enum.EventOrderHeld, order)
	return &HoldResult{Order: order, Payment: payment}, nil
}

func (s *HoldService) releaseHold(ctx context.Context, paymentID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	key := uuid.NewSHA1(uuid.NameSpaceURL, []byte("cancel:"+paymentID)).String()
	if _, err := s.gateway.CancelPayment(ctx, paymentID, key); err != nil {
		log.Error().Err(err).Str("payment_id", paymentID).Msg("release orphaned hold")
		return
	}
	log.Warn().Str("payment_id", paymentID).Msg("orphaned hold released")
}

// maxOrderNumberAttempts bounds how many daily numbers are tried before a
// checkout gives up. Numbers wrap at 1000, so a busy day can reach live ones.
const maxOrderNumberAttempts = 5

// resolveOrderID keeps the storefront's id when no pending or assembled order
// carries it and otherwise allocates a daily number.
func (s *HoldService) resolveOrderID(ctx context.Context, requested string) (string, error) {
	if requested != "" {
		inUse, err := s.store.OrderIDInUse(ctx, requested)
		if err != nil {
			return "", fmt.Errorf("check order id: %w", err)
		}
		if !inUse {
			return requested, nil
		}
		log.Warn().Str("order_id", requested).Msg("order id already in use, allocating a new one")
	}

	for range maxOrderNumberAttempts {
		id, err := nextOrderNumber(ctx, s.store, s.now().In(s.cfg.Location))
		if err != nil {
			return "", err
		}
		inUse, err := s.store.OrderIDInUse(ctx, id)
		if err != nil {
			return "", fmt.Errorf("check order id: %w", err)
		}
		if !inUse {
			return id, nil
		}
	}
	return "", fmt.Errorf("no free order number after %d attempts", maxOrderNumberAttempts)
}

type orderNumberer interface {
	NextDailyOrderNumber(ctx context.Context, arg database.NextDailyOrderNumberParams) (int32, error)
}

// nextOrderNumber allocates the next daily order number for the calendar day
// of now. The first number of a day is random in 1..1000 and numbers wrap
// from 1000 back to 1.
func nextOrderNumber(ctx context.Context, store orderNumberer, now time.Time) (string, error) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	n, err := store.NextDailyOrderNumber(ctx, database.NextDailyOrderNumberParams{
		Day:  pgtype.Date{Time: day, Valid: true},
		Seed: int32(rand.IntN(1000) + 1),
	})
	if err != nil {
		return "", fmt.Errorf("next order number: %w", err)
	}
	return strconv.Itoa(int(n)), nil
}

func validOrderID(id string) bool {
	if len(id) > 32 {
		return false
	}
	for _, c := range id {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

func validateCheckout(req CheckoutRequest) error {
	if !validOrderID(strings.TrimSpace(req.OrderID)) {
		return ErrInvalidOrderID
	}
	if len(req.Cart) == 0 {
		return ErrEmptyCart
	}
	for i, line := range req.Cart {
		if !line.Price.IsPositive() {
			return fmt.Errorf("cart[%d]: %w", i, ErrInvalidPrice)
		}
		if !line.Quantity.IsPositive() {
			return fmt.Errorf("cart[%d]: %w", i, ErrInvalidQuantity)
		}
		if err := line.checkPrecision(); err != nil {
			return fmt.Errorf("cart[%d]: %w", i, err)
		}
	}
	if strings.TrimSpace(req.CustomerName) == "" {
		return ErrNameRequired
	}
	if strings.TrimSpace(req.Phone) == "" {
		return ErrPhoneRequired
	}
	if strings.TrimSpace(req.Address) == "" {
		return ErrAddressRequired
	}
	return nil
}

// notify publishes after commit. Failures are logged and never undo the
// committed transition.
func notify(ctx context.Context, n Notifier, eventType string, o Order) {
	if n == nil {
		return
	}
	err := n.Notify(context.WithoutCancel(ctx), Event{
		Type:       eventType,
		Order:      o,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		log.Error().Err(err).Str("event", eventType).Str("order_id", o.ID).Msg("notify failed")
	}
}
