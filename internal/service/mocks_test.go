package service

import (
	"context"
	"sync"
	"time"

	"github.com/fasol-market/api/internal/database"
	"github.com/fasol-market/api/internal/gateway"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr   error
	rollbackErr error
	commits     int
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	m.commits++
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error { return m.rollbackErr }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// mockLedger is an in-memory SettlementStore and HoldStore.
type mockLedger struct {
	mu       sync.Mutex
	pending  map[string]database.PendingHold   // by payment id
	assembly map[string]database.AssemblyOrder // by order id
	paid     map[string]database.PaidOrder     // by payment id
	applied  map[string]bool                   // stock_applications
	rests    map[string]decimal.Decimal        // products snapshot
	counter  int32

	decrementCalls []database.DecrementProductRestsParams
	createHoldErr  error
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		pending:  make(map[string]database.PendingHold),
		assembly: make(map[string]database.AssemblyOrder),
		paid:     make(map[string]database.PaidOrder),
		applied:  make(map[string]bool),
		rests:    make(map[string]decimal.Decimal),
	}
}

func (m *mockLedger) NextDailyOrderNumber(_ context.Context, arg database.NextDailyOrderNumberParams) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counter == 0 {
		m.counter = arg.Seed
	} else if m.counter >= 1000 {
		m.counter = 1
	} else {
		m.counter++
	}
	return m.counter, nil
}

func (m *mockLedger) OrderIDInUse(_ context.Context, orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assembly[orderID]; ok {
		return true, nil
	}
	for _, h := range m.pending {
		if h.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockLedger) CreatePendingHold(_ context.Context, arg database.CreatePendingHoldParams) (database.PendingHold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createHoldErr != nil {
		return database.PendingHold{}, m.createHoldErr
	}
	h := database.PendingHold{
		PaymentID:   arg.PaymentID,
		OrderID:     arg.OrderID,
		Payload:     arg.Payload,
		AmountToPay: arg.AmountToPay,
		CreatedAt:   time.Now(),
	}
	m.pending[arg.PaymentID] = h
	return h, nil
}

func (m *mockLedger) GetPendingHoldForUpdate(_ context.Context, paymentID string) (database.PendingHold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.pending[paymentID]
	if !ok {
		return database.PendingHold{}, pgx.ErrNoRows
	}
	return h, nil
}

func (m *mockLedger) DeletePendingHold(_ context.Context, paymentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, paymentID)
	return nil
}

func (m *mockLedger) CreateAssemblyOrder(_ context.Context, arg database.CreateAssemblyOrderParams) (database.AssemblyOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assembly[arg.OrderID]; ok {
		// ON CONFLICT DO NOTHING returns no row
		return database.AssemblyOrder{}, pgx.ErrNoRows
	}
	a := database.AssemblyOrder{
		OrderID:     arg.OrderID,
		PaymentID:   arg.PaymentID,
		Payload:     arg.Payload,
		AmountToPay: arg.AmountToPay,
		DeliveryFee: arg.DeliveryFee,
		Version:     1,
		ConfirmedAt: time.Now(),
		UpdatedAt:   time.Now(),
	}
	m.assembly[arg.OrderID] = a
	return a, nil
}

func (m *mockLedger) GetAssemblyOrder(_ context.Context, orderID string) (database.AssemblyOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assembly[orderID]
	if !ok {
		return database.AssemblyOrder{}, pgx.ErrNoRows
	}
	return a, nil
}

func (m *mockLedger) GetAssemblyOrderForUpdate(ctx context.Context, orderID string) (database.AssemblyOrder, error) {
	return m.GetAssemblyOrder(ctx, orderID)
}

func (m *mockLedger) ListAssemblyOrders(_ context.Context) ([]database.AssemblyOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.AssemblyOrder
	for _, a := range m.assembly {
		out = append(out, a)
	}
	return out, nil
}

func (m *mockLedger) UpdateAssemblyPayload(_ context.Context, arg database.UpdateAssemblyPayloadParams) (database.AssemblyOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assembly[arg.OrderID]
	if !ok || a.Version != arg.Version {
		return database.AssemblyOrder{}, pgx.ErrNoRows
	}
	a.Payload = arg.Payload
	a.Version++
	a.UpdatedAt = time.Now()
	m.assembly[arg.OrderID] = a
	return a, nil
}

func (m *mockLedger) DeleteAssemblyOrder(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.assembly, orderID)
	return nil
}

func (m *mockLedger) RecordStockApplication(_ context.Context, arg database.RecordStockApplicationParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applied[arg.PaymentID] {
		return 0, nil
	}
	m.applied[arg.PaymentID] = true
	return 1, nil
}

func (m *mockLedger) DecrementProductRests(_ context.Context, arg database.DecrementProductRestsParams) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decrementCalls = append(m.decrementCalls, arg)
	rest, ok := m.rests[arg.ID]
	if !ok {
		return "", pgx.ErrNoRows
	}
	next := rest.Sub(numericToDecimal(arg.Quantity))
	if next.IsNegative() {
		next = decimal.Zero
	}
	m.rests[arg.ID] = next
	return arg.ID, nil
}

func (m *mockLedger) CreatePaidOrder(_ context.Context, arg database.CreatePaidOrderParams) (database.PaidOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := database.PaidOrder{
		PaymentID:         arg.PaymentID,
		OrderID:           arg.OrderID,
		Payload:           arg.Payload,
		HeldAmount:        arg.HeldAmount,
		CapturedAmount:    arg.CapturedAmount,
		FulfillmentStatus: "new",
		CapturedBy:        arg.CapturedBy,
		CapturedAt:        time.Now(),
		UpdatedAt:         time.Now(),
	}
	m.paid[arg.PaymentID] = p
	return p, nil
}

func (m *mockLedger) GetLatestPaidOrderForUpdate(_ context.Context, orderID string) (database.PaidOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *database.PaidOrder
	for _, p := range m.paid {
		if p.OrderID != orderID {
			continue
		}
		if latest == nil || p.CapturedAt.After(latest.CapturedAt) {
			p := p
			latest = &p
		}
	}
	if latest == nil {
		return database.PaidOrder{}, pgx.ErrNoRows
	}
	return *latest, nil
}

func (m *mockLedger) ListPaidOrdersByStatus(_ context.Context, statuses []string) ([]database.PaidOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.PaidOrder
	for _, p := range m.paid {
		for _, s := range statuses {
			if p.FulfillmentStatus == s {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (m *mockLedger) UpdateFulfillmentStatus(_ context.Context, arg database.UpdateFulfillmentStatusParams) (database.PaidOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.paid[arg.PaymentID]
	if !ok {
		return database.PaidOrder{}, pgx.ErrNoRows
	}
	p.FulfillmentStatus = arg.FulfillmentStatus
	m.paid[arg.PaymentID] = p
	return p, nil
}

// mockGateway implements PaymentGateway with configurable behavior.
type mockGateway struct {
	createFn  func(ctx context.Context, req gateway.CreatePaymentRequest, key string) (*gateway.Payment, error)
	captureFn func(ctx context.Context, paymentID string, req gateway.CaptureRequest, key string) (*gateway.Payment, error)

	created   []gateway.CreatePaymentRequest
	captured  []gateway.CaptureRequest
	captureKs []string
	cancelled []string
}

func (m *mockGateway) CreatePayment(ctx context.Context, req gateway.CreatePaymentRequest, key string) (*gateway.Payment, error) {
	m.created = append(m.created, req)
	if m.createFn != nil {
		return m.createFn(ctx, req, key)
	}
	return &gateway.Payment{
		ID:     "pay-1",
		Status: gateway.StatusPending,
		Amount: req.Amount,
		Confirmation: &gateway.Confirmation{
			Type:            "redirect",
			ConfirmationURL: "https://pay.example/confirm/pay-1",
		},
	}, nil
}

func (m *mockGateway) CapturePayment(ctx context.Context, paymentID string, req gateway.CaptureRequest, key string) (*gateway.Payment, error) {
	m.captured = append(m.captured, req)
	m.captureKs = append(m.captureKs, key)
	if m.captureFn != nil {
		return m.captureFn(ctx, paymentID, req, key)
	}
	return &gateway.Payment{ID: paymentID, Status: gateway.StatusSucceeded, Paid: true, Amount: req.Amount}, nil
}

func (m *mockGateway) CancelPayment(_ context.Context, paymentID, _ string) (*gateway.Payment, error) {
	m.cancelled = append(m.cancelled, paymentID)
	return &gateway.Payment{ID: paymentID, Status: gateway.StatusCanceled}, nil
}

// recordingNotifier captures published events.
type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Notify(_ context.Context, e Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return nil
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, e := range n.events {
		out[i] = e.Type
	}
	return out
}

// --- Helpers ---

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func num(s string) pgtype.Numeric {
	return decimalToNumeric(dec(s))
}
