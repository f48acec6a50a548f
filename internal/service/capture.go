package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fasol-market/api/internal/database"
	"github.com/fasol-market/api/internal/enum"
	"github.com/fasol-market/api/internal/gateway"
	"github.com/fasol-market/api/internal/lock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const defaultCaptureLockTTL = 2 * time.Minute

// SettlementStore defines the DB methods needed to move an order from hold
// confirmation through capture. Satisfied by *database.Queries (and its WithTx variant).
type SettlementStore interface {
	GetPendingHoldForUpdate(ctx context.Context, paymentID string) (database.PendingHold, error)
	DeletePendingHold(ctx context.Context, paymentID string) error
	CreateAssemblyOrder(ctx context.Context, arg database.CreateAssemblyOrderParams) (database.AssemblyOrder, error)
	NextDailyOrderNumber(ctx context.Context, arg database.NextDailyOrderNumberParams) (int32, error)
	GetAssemblyOrder(ctx context.Context, orderID string) (database.AssemblyOrder, error)
	GetAssemblyOrderForUpdate(ctx context.Context, orderID string) (database.AssemblyOrder, error)
	ListAssemblyOrders(ctx context.Context) ([]database.AssemblyOrder, error)
	UpdateAssemblyPayload(ctx context.Context, arg database.UpdateAssemblyPayloadParams) (database.AssemblyOrder, error)
	DeleteAssemblyOrder(ctx context.Context, orderID string) error
	RecordStockApplication(ctx context.Context, arg database.RecordStockApplicationParams) (int64, error)
	DecrementProductRests(ctx context.Context, arg database.DecrementProductRestsParams) (string, error)
	CreatePaidOrder(ctx context.Context, arg database.CreatePaidOrderParams) (database.PaidOrder, error)
	GetLatestPaidOrderForUpdate(ctx context.Context, orderID string) (database.PaidOrder, error)
	ListPaidOrdersByStatus(ctx context.Context, statuses []string) ([]database.PaidOrder, error)
	UpdateFulfillmentStatus(ctx context.Context, arg database.UpdateFulfillmentStatusParams) (database.PaidOrder, error)
}

// NewSettlementStore creates a SettlementStore from a DBTX (pool or tx).
type NewSettlementStore func(db database.DBTX) SettlementStore

// Locker serializes work on a key. Acquire returns lock.ErrLocked when busy.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// ConfirmResult describes what a hold-confirmation event did.
type ConfirmResult string

const (
	ConfirmMoved            ConfirmResult = "moved"
	ConfirmIgnored          ConfirmResult = "ignored"
	ConfirmAlreadyProcessed ConfirmResult = "already_processed"
)

// CaptureRequest is the operator's capture command. A nil FinalCart captures
// the stored (possibly adjusted) cart.
type CaptureRequest struct {
	OrderID    string
	FinalCart  []CartLine
	CapturedBy uuid.UUID
}

// CaptureService advances held orders through confirmation, weight
// adjustment and final capture.
type CaptureService struct {
	store    SettlementStore
	pool     TxBeginner
	newStore NewSettlementStore
	gateway  PaymentGateway
	notifier Notifier
	locker   Locker
	lockTTL  time.Duration
	location *time.Location
	now      func() time.Time
}

// NewCaptureService creates a new CaptureService.
func NewCaptureService(store SettlementStore, pool TxBeginner, newStore NewSettlementStore, gw PaymentGateway, notifier Notifier, locker Locker) *CaptureService {
	return &CaptureService{
		store:    store,
		pool:     pool,
		newStore: newStore,
		gateway:  gw,
		notifier: notifier,
		locker:   locker,
		lockTTL:  defaultCaptureLockTTL,
		location: time.UTC,
		now:      time.Now,
	}
}

// SetLocation sets the shop time zone used when an order has to be
// renumbered at confirmation.
func (s *CaptureService) SetLocation(loc *time.Location) {
	if loc != nil {
		s.location = loc
	}
}

// ConfirmHold handles a gateway webhook. Only a successful hold moves the
// order to assembly; any other event is acknowledged and ignored. An unknown
// payment id is treated as already processed.
func (s *CaptureService) ConfirmHold(ctx context.Context, n gateway.Notification) (ConfirmResult, error) {
	paymentID := n.Object.ID
	if n.Event != gateway.EventWaitingForCapture || n.Object.Status != gateway.StatusWaitingForCapture || paymentID == "" {
		log.Info().
			Str("event", n.Event).
			Str("status", n.Object.Status).
			Str("payment_id", paymentID).
			Msg("webhook ignored")
		return ConfirmIgnored, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	hold, err := store.GetPendingHoldForUpdate(ctx, paymentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Info().Str("payment_id", paymentID).Msg("hold already processed or unknown")
			return ConfirmAlreadyProcessed, nil
		}
		return "", fmt.Errorf("get pending hold: %w", err)
	}

	order, err := decodeOrder(hold.Payload)
	if err != nil {
		return "", err
	}

	held := numericToDecimal(hold.AmountToPay)
	if got := n.Object.Amount.Decimal(); !got.Equal(held) {
		log.Warn().
			Str("payment_id", paymentID).
			Str("notified", got.StringFixed(2)).
			Str("ledger", held.StringFixed(2)).
			Msg("held amount differs from ledger")
	}

	order.ID = hold.OrderID
	order.Status = enum.OrderStatusAwaitingAssembly
	row, err := s.insertAssemblyOrder(ctx, store, hold, &order)
	if err != nil {
		return "", err
	}

	if err := store.DeletePendingHold(ctx, paymentID); err != nil {
		return "", fmt.Errorf("delete pending hold: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit tx: %w", err)
	}

	order.Version = row.Version
	log.Info().Str("order_id", order.ID).Str("payment_id", paymentID).Msg("hold confirmed, awaiting assembly")
	notify(ctx, s.notifier, enum.EventOrderAwaitingAssembly, order)
	return ConfirmMoved, nil
}

// insertAssemblyOrder stores the confirmed order. When another order awaiting
// assembly already holds its number, the order moves to a fresh daily number.
func (s *CaptureService) insertAssemblyOrder(ctx context.Context, store SettlementStore, hold database.PendingHold, order *Order) (database.AssemblyOrder, error) {
	for attempt := 0; ; attempt++ {
		payload, err := encodeOrder(*order)
		if err != nil {
			return database.AssemblyOrder{}, err
		}
		row, err := store.CreateAssemblyOrder(ctx, database.CreateAssemblyOrderParams{
			OrderID:     order.ID,
			PaymentID:   hold.PaymentID,
			Payload:     payload,
			AmountToPay: hold.AmountToPay,
			DeliveryFee: decimalToNumeric(order.DeliveryFee),
		})
		if err == nil {
			return row, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return database.AssemblyOrder{}, fmt.Errorf("create assembly order: %w", err)
		}
		if attempt == maxOrderNumberAttempts {
			return database.AssemblyOrder{}, fmt.Errorf("create assembly order: order id %s taken after %d renumbers", order.ID, attempt)
		}

		taken := order.ID
		order.ID, err = nextOrderNumber(ctx, store, s.now().In(s.location))
		if err != nil {
			return database.AssemblyOrder{}, err
		}
		log.Warn().
			Str("payment_id", hold.PaymentID).
			Str("taken_order_id", taken).
			Str("order_id", order.ID).
			Msg("order id already awaiting assembly, renumbered")
	}
}

// AdjustLine sets the weighed-out quantity of a weight-priced line. grams is
// converted to kilograms. The first adjustment keeps the ordered quantity in
// OriginalQuantity. It shares the capture lock, so a line cannot change while
// the order is being captured.
func (s *CaptureService) AdjustLine(ctx context.Context, orderID string, index, grams int) (*Order, error) {
	if grams < 0 {
		return nil, ErrInvalidWeight
	}

	release, err := s.lockOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer release()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	row, err := store.GetAssemblyOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get assembly order: %w", err)
	}

	order, err := OrderFromAssembly(row)
	if err != nil {
		return nil, err
	}

	if index < 0 || index >= len(order.Cart) {
		return nil, fmt.Errorf("cart[%d]: %w", index, ErrLineNotFound)
	}
	line := &order.Cart[index]
	if !line.Weighted() {
		return nil, fmt.Errorf("cart[%d]: %w", index, ErrNotWeighted)
	}

	if line.OriginalQuantity == nil {
		original := line.Quantity
		line.OriginalQuantity = &original
	}
	line.Quantity = decimal.New(int64(grams), -3)

	payload, err := encodeOrder(order)
	if err != nil {
		return nil, err
	}

	updated, err := store.UpdateAssemblyPayload(ctx, database.UpdateAssemblyPayloadParams{
		OrderID: orderID,
		Payload: payload,
		Version: row.Version,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConcurrentUpdate
		}
		return nil, fmt.Errorf("update assembly order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	order.Version = updated.Version
	log.Info().
		Str("order_id", orderID).
		Int("line", index).
		Str("quantity", line.Quantity.String()).
		Msg("line weight adjusted")
	notify(ctx, s.notifier, enum.EventOrderAdjusted, order)
	return &order, nil
}

// Capture settles an order for its final cart plus the delivery fee recorded
// at hold time. The amount never exceeds the hold. Stock is decremented and
// the order leaves assembly in one transaction after the gateway confirms.
func (s *CaptureService) Capture(ctx context.Context, req CaptureRequest) (*Order, error) {
	release, err := s.lockOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	defer release()

	row, err := s.store.GetAssemblyOrder(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get assembly order: %w", err)
	}

	order, err := OrderFromAssembly(row)
	if err != nil {
		return nil, err
	}

	final := req.FinalCart
	if final == nil {
		final = order.Cart
	}
	final, err = matchFinalCart(order.Cart, final)
	if err != nil {
		return nil, err
	}

	itemsTotal := ItemsTotal(final)
	deliveryFee := numericToDecimal(row.DeliveryFee)
	held := numericToDecimal(row.AmountToPay)
	amount := itemsTotal.Add(deliveryFee)

	if amount.GreaterThan(held) {
		log.Error().
			Str("order_id", req.OrderID).
			Str("payment_id", row.PaymentID).
			Str("capture", amount.StringFixed(2)).
			Str("held", held.StringFixed(2)).
			Msg("INTEGRITY: capture amount exceeds hold, manual investigation required")
		return nil, fmt.Errorf("%w: capture %s, held %s", ErrCaptureExceedsHold, amount.StringFixed(2), held.StringFixed(2))
	}
	if !itemsTotal.IsPositive() {
		return nil, ErrNothingToCapture
	}

	_, err = s.gateway.CapturePayment(ctx, row.PaymentID, gateway.CaptureRequest{
		Amount:  gateway.NewAmount(amount),
		Receipt: captureReceipt(order, final),
	}, captureIdempotenceKey(row.PaymentID))
	if err != nil {
		log.Error().Err(err).Str("order_id", req.OrderID).Msg("gateway capture failed")
		return nil, fmt.Errorf("%w: %w", ErrGateway, err)
	}

	order.Cart = final
	order.Status = enum.OrderStatusCaptured
	order.FulfillmentStatus = enum.FulfillmentNew
	order.CapturedAmount = &amount

	if err := s.commitCapture(ctx, row, order, req.CapturedBy); err != nil {
		// Funds are captured; a retry re-sends the same idempotence key and commits again.
		log.Error().Err(err).
			Str("order_id", req.OrderID).
			Str("payment_id", row.PaymentID).
			Msg("captured at gateway but ledger commit failed")
		return nil, err
	}

	log.Info().
		Str("order_id", req.OrderID).
		Str("payment_id", row.PaymentID).
		Str("captured", amount.StringFixed(2)).
		Str("released", held.Sub(amount).StringFixed(2)).
		Msg("payment captured")

	order.Version = 0
	notify(ctx, s.notifier, enum.EventOrderPaid, order)
	return &order, nil
}

// commitCapture is the durable commit point: stock decrement (once per
// payment), paid record and removal from assembly.
func (s *CaptureService) commitCapture(ctx context.Context, row database.AssemblyOrder, order Order, capturedBy uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	locked, err := store.GetAssemblyOrderForUpdate(ctx, row.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("lock assembly order: %w", err)
	}
	// the captured cart was computed from row; anything newer was not charged
	if locked.Version != row.Version {
		return fmt.Errorf("%w: version %d, captured at %d", ErrConcurrentUpdate, locked.Version, row.Version)
	}

	applied, err := store.RecordStockApplication(ctx, database.RecordStockApplicationParams{
		PaymentID: row.PaymentID,
		OrderID:   row.OrderID,
	})
	if err != nil {
		return fmt.Errorf("record stock application: %w", err)
	}
	if applied > 0 {
		if err := decrementStock(ctx, store, row.OrderID, order.Cart); err != nil {
			return err
		}
	} else {
		log.Warn().Str("payment_id", row.PaymentID).Msg("stock already applied for payment, skipping decrement")
	}

	payload, err := encodeOrder(order)
	if err != nil {
		return err
	}

	_, err = store.CreatePaidOrder(ctx, database.CreatePaidOrderParams{
		PaymentID:      row.PaymentID,
		OrderID:        row.OrderID,
		Payload:        payload,
		HeldAmount:     row.AmountToPay,
		CapturedAmount: decimalToNumeric(*order.CapturedAmount),
		CapturedBy:     pgtype.UUID{Bytes: [16]byte(capturedBy), Valid: capturedBy != uuid.Nil},
	})
	if err != nil {
		return fmt.Errorf("create paid order: %w", err)
	}

	if err := store.DeleteAssemblyOrder(ctx, row.OrderID); err != nil {
		return fmt.Errorf("delete assembly order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// lockOrder serializes capture and line adjustment of one order.
func (s *CaptureService) lockOrder(ctx context.Context, orderID string) (func(), error) {
	release, err := s.locker.Acquire(ctx, "capture:"+orderID, s.lockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return nil, ErrCaptureInProgress
		}
		return nil, fmt.Errorf("acquire capture lock: %w", err)
	}
	return release, nil
}

// captureIdempotenceKey is stable per payment so a retried capture is
// de-duplicated by the gateway.
func captureIdempotenceKey(paymentID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("capture:"+paymentID)).String()
}

// matchFinalCart checks every final line against a distinct held line with
// the same product and price, and carries the held OriginalQuantity over.
func matchFinalCart(held, final []CartLine) ([]CartLine, error) {
	if len(final) == 0 {
		return nil, ErrEmptyCart
	}

	used := make([]bool, len(held))
	out := make([]CartLine, len(final))
	for i, line := range final {
		if line.Quantity.IsNegative() {
			return nil, fmt.Errorf("cart[%d]: %w", i, ErrInvalidQuantity)
		}

		match := -1
		for j, h := range held {
			if !used[j] && lineKey(h) == lineKey(line) {
				match = j
				break
			}
		}
		if match < 0 {
			return nil, fmt.Errorf("cart[%d]: %w: %q was not held", i, ErrCartMismatch, line.Name)
		}
		h := held[match]
		if !h.Price.Equal(line.Price) {
			return nil, fmt.Errorf("cart[%d]: %w: price %s, held %s", i, ErrCartMismatch, line.Price.StringFixed(2), h.Price.StringFixed(2))
		}
		used[match] = true

		line.Unit = h.Unit
		if err := line.checkPrecision(); err != nil {
			return nil, fmt.Errorf("cart[%d]: %w", i, err)
		}
		if line.OriginalQuantity == nil {
			line.OriginalQuantity = h.OriginalQuantity
		}
		out[i] = line
	}
	return out, nil
}

func lineKey(l CartLine) string {
	if l.ProductID != "" {
		return "id:" + l.ProductID
	}
	return "name:" + l.Name
}

// --- Read side and fulfillment ---

// ListAssembly returns orders waiting for an operator, oldest first.
func (s *CaptureService) ListAssembly(ctx context.Context) ([]Order, error) {
	rows, err := s.store.ListAssemblyOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assembly orders: %w", err)
	}
	orders := make([]Order, 0, len(rows))
	for _, row := range rows {
		o, err := OrderFromAssembly(row)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// GetAssembly returns one order awaiting assembly.
func (s *CaptureService) GetAssembly(ctx context.Context, orderID string) (*Order, error) {
	row, err := s.store.GetAssemblyOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get assembly order: %w", err)
	}
	o, err := OrderFromAssembly(row)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListPaid returns captured orders in the given fulfillment statuses.
// No statuses means new and in_progress.
func (s *CaptureService) ListPaid(ctx context.Context, statuses []string) ([]Order, error) {
	if len(statuses) == 0 {
		statuses = []string{enum.FulfillmentNew, enum.FulfillmentInProgress}
	}
	rows, err := s.store.ListPaidOrdersByStatus(ctx, statuses)
	if err != nil {
		return nil, fmt.Errorf("list paid orders: %w", err)
	}
	orders := make([]Order, 0, len(rows))
	for _, row := range rows {
		o, err := OrderFromPaid(row)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// AdvanceFulfillment moves a captured order new -> in_progress -> completed.
func (s *CaptureService) AdvanceFulfillment(ctx context.Context, orderID, status string) (*Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	row, err := store.GetLatestPaidOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get paid order: %w", err)
	}

	if !IsValidFulfillmentTransition(row.FulfillmentStatus, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, row.FulfillmentStatus, status)
	}

	updated, err := store.UpdateFulfillmentStatus(ctx, database.UpdateFulfillmentStatusParams{
		PaymentID:         row.PaymentID,
		FulfillmentStatus: status,
	})
	if err != nil {
		return nil, fmt.Errorf("update fulfillment status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	order, err := OrderFromPaid(updated)
	if err != nil {
		return nil, err
	}
	notify(ctx, s.notifier, enum.EventFulfillmentUpdated, order)
	return &order, nil
}

// IsValidFulfillmentTransition reports whether next directly follows current.
func IsValidFulfillmentTransition(current, next string) bool {
	switch current {
	case enum.FulfillmentNew:
		return next == enum.FulfillmentInProgress
	case enum.FulfillmentInProgress:
		return next == enum.FulfillmentCompleted
	}
	return false
}
