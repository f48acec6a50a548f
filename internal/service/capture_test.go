package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fasol-market/api/internal/database"
	"github.com/fasol-market/api/internal/gateway"
	"github.com/fasol-market/api/internal/lock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newTestCaptureService(ledger *mockLedger, gw *mockGateway, n Notifier) (*CaptureService, *mockTx) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	newStore := func(db database.DBTX) SettlementStore {
		return ledger
	}
	return NewCaptureService(ledger, pool, newStore, gw, n, lock.NewLocal()), tx
}

func holdConfirmed(paymentID, amount string) gateway.Notification {
	return gateway.Notification{
		Type:  "notification",
		Event: gateway.EventWaitingForCapture,
		Object: gateway.Payment{
			ID:     paymentID,
			Status: gateway.StatusWaitingForCapture,
			Amount: gateway.NewAmount(dec(amount)),
		},
	}
}

// placeAssemblyOrder runs the mixed cart through hold and confirmation.
func placeAssemblyOrder(t *testing.T, ledger *mockLedger) {
	t.Helper()
	hold := newTestHoldService(ledger, &mockGateway{}, nil)
	if _, err := hold.InitiateHold(context.Background(), mixedCartCheckout()); err != nil {
		t.Fatalf("InitiateHold: %v", err)
	}
	svc, _ := newTestCaptureService(ledger, &mockGateway{}, nil)
	res, err := svc.ConfirmHold(context.Background(), holdConfirmed("pay-1", "1400"))
	if err != nil || res != ConfirmMoved {
		t.Fatalf("ConfirmHold: %v %v", res, err)
	}
}

// --- ConfirmHold ---

func TestConfirmHold_MovesOrderExactlyOnce(t *testing.T) {
	ledger := newMockLedger()
	hold := newTestHoldService(ledger, &mockGateway{}, nil)
	if _, err := hold.InitiateHold(context.Background(), mixedCartCheckout()); err != nil {
		t.Fatalf("InitiateHold: %v", err)
	}

	n := &recordingNotifier{}
	svc, tx := newTestCaptureService(ledger, &mockGateway{}, n)

	res, err := svc.ConfirmHold(context.Background(), holdConfirmed("pay-1", "1400"))
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if res != ConfirmMoved {
		t.Fatalf("first delivery: got %q, want moved", res)
	}

	res, err = svc.ConfirmHold(context.Background(), holdConfirmed("pay-1", "1400"))
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if res != ConfirmAlreadyProcessed {
		t.Fatalf("second delivery: got %q, want already_processed", res)
	}

	if _, ok := ledger.pending["pay-1"]; ok {
		t.Error("order must leave the pending collection")
	}
	a, ok := ledger.assembly["42"]
	if !ok {
		t.Fatal("order must be in assembly")
	}
	if !numericToDecimal(a.DeliveryFee).Equal(dec("200")) {
		t.Errorf("delivery fee recorded: got %s", numericToDecimal(a.DeliveryFee))
	}
	if tx.commits != 1 {
		t.Errorf("commits: got %d, want 1", tx.commits)
	}
	if got := n.types(); len(got) != 1 || got[0] != "awaiting_assembly" {
		t.Errorf("events: got %v", got)
	}
}

func TestConfirmHold_RenumbersWhenOrderIDTaken(t *testing.T) {
	ledger := newMockLedger()
	hold := newTestHoldService(ledger, &mockGateway{}, nil)
	if _, err := hold.InitiateHold(context.Background(), mixedCartCheckout()); err != nil {
		t.Fatalf("InitiateHold: %v", err)
	}
	// another checkout reached assembly under 42 after this hold was placed
	ledger.assembly["42"] = database.AssemblyOrder{OrderID: "42", PaymentID: "pay-0", Version: 1}
	ledger.counter = 99

	n := &recordingNotifier{}
	svc, tx := newTestCaptureService(ledger, &mockGateway{}, n)

	res, err := svc.ConfirmHold(context.Background(), holdConfirmed("pay-1", "1400"))
	if err != nil {
		t.Fatalf("ConfirmHold: %v", err)
	}
	if res != ConfirmMoved {
		t.Fatalf("got %q, want moved", res)
	}
	if tx.commits != 1 {
		t.Errorf("commits: got %d, want 1", tx.commits)
	}
	if _, ok := ledger.pending["pay-1"]; ok {
		t.Error("hold must leave the pending collection")
	}
	if got := ledger.assembly["42"].PaymentID; got != "pay-0" {
		t.Errorf("existing order 42 overwritten by %s", got)
	}
	a, ok := ledger.assembly["100"]
	if !ok || a.PaymentID != "pay-1" {
		t.Fatalf("renumbered order: got %+v", a)
	}
	order, err := decodeOrder(a.Payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if order.ID != "100" {
		t.Errorf("payload order id: got %q, want 100", order.ID)
	}
	if len(n.events) != 1 || n.events[0].Order.ID != "100" {
		t.Errorf("events: got %+v", n.events)
	}
}

func TestConfirmHold_IgnoresOtherEvents(t *testing.T) {
	ledger := newMockLedger()
	hold := newTestHoldService(ledger, &mockGateway{}, nil)
	if _, err := hold.InitiateHold(context.Background(), mixedCartCheckout()); err != nil {
		t.Fatalf("InitiateHold: %v", err)
	}
	svc, tx := newTestCaptureService(ledger, &mockGateway{}, nil)

	events := []gateway.Notification{
		{Event: gateway.EventCanceled, Object: gateway.Payment{ID: "pay-1", Status: gateway.StatusCanceled}},
		{Event: gateway.EventSucceeded, Object: gateway.Payment{ID: "pay-1", Status: gateway.StatusSucceeded}},
		{Event: gateway.EventWaitingForCapture, Object: gateway.Payment{ID: "pay-1", Status: gateway.StatusPending}},
		{Event: gateway.EventWaitingForCapture, Object: gateway.Payment{Status: gateway.StatusWaitingForCapture}},
	}
	for _, e := range events {
		res, err := svc.ConfirmHold(context.Background(), e)
		if err != nil || res != ConfirmIgnored {
			t.Errorf("%s/%s: got %q %v, want ignored", e.Event, e.Object.Status, res, err)
		}
	}
	if _, ok := ledger.pending["pay-1"]; !ok {
		t.Error("pending hold must be untouched")
	}
	if tx.commits != 0 {
		t.Error("ignored events must not open a transaction")
	}
}

func TestConfirmHold_UnknownHoldIsNoop(t *testing.T) {
	ledger := newMockLedger()
	n := &recordingNotifier{}
	svc, _ := newTestCaptureService(ledger, &mockGateway{}, n)

	res, err := svc.ConfirmHold(context.Background(), holdConfirmed("pay-unknown", "100"))
	if err != nil {
		t.Fatalf("unknown hold must not error: %v", err)
	}
	if res != ConfirmAlreadyProcessed {
		t.Errorf("got %q, want already_processed", res)
	}
	if len(ledger.assembly) != 0 {
		t.Error("no state may be mutated")
	}
	if len(n.events) != 0 {
		t.Error("no notification may be sent")
	}
}

// --- AdjustLine ---

func TestAdjustLine_PreservesOriginalQuantity(t *testing.T) {
	ledger := newMockLedger()
	placeAssemblyOrder(t, ledger)
	n := &recordingNotifier{}
	svc, _ := newTestCaptureService(ledger, &mockGateway{}, n)

	o, err := svc.AdjustLine(context.Background(), "42", 0, 1800)
	if err != nil {
		t.Fatalf("first adjust: %v", err)
	}
	if !o.Cart[0].Quantity.Equal(dec("1.8")) {
		t.Errorf("quantity: got %s, want 1.8", o.Cart[0].Quantity)
	}
	if o.Cart[0].OriginalQuantity == nil || !o.Cart[0].OriginalQuantity.Equal(dec("2")) {
		t.Fatalf("original quantity: got %v, want 2", o.Cart[0].OriginalQuantity)
	}

	o, err = svc.AdjustLine(context.Background(), "42", 0, 1950)
	if err != nil {
		t.Fatalf("second adjust: %v", err)
	}
	if !o.Cart[0].Quantity.Equal(dec("1.95")) {
		t.Errorf("quantity: got %s, want 1.95", o.Cart[0].Quantity)
	}
	if !o.Cart[0].OriginalQuantity.Equal(dec("2")) {
		t.Errorf("original quantity changed to %s", o.Cart[0].OriginalQuantity)
	}
	if o.Version != 3 {
		t.Errorf("version: got %d, want 3", o.Version)
	}

	stored, _ := OrderFromAssembly(ledger.assembly["42"])
	if !stored.Cart[0].Quantity.Equal(dec("1.95")) {
		t.Errorf("persisted quantity: got %s", stored.Cart[0].Quantity)
	}
	if got := n.types(); len(got) != 2 || got[0] != "adjusted" {
		t.Errorf("events: got %v", got)
	}
}

func TestAdjustLine_Rejections(t *testing.T) {
	ledger := newMockLedger()
	placeAssemblyOrder(t, ledger)
	svc, _ := newTestCaptureService(ledger, &mockGateway{}, nil)

	tests := []struct {
		name    string
		orderID string
		index   int
		grams   int
		want    error
	}{
		{"negative weight", "42", 0, -5, ErrInvalidWeight},
		{"discrete line", "42", 1, 500, ErrNotWeighted},
		{"index out of range", "42", 5, 500, ErrLineNotFound},
		{"unknown order", "77", 0, 500, ErrOrderNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AdjustLine(context.Background(), tt.orderID, tt.index, tt.grams)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	if ledger.assembly["42"].Version != 1 {
		t.Error("rejected adjustments must not write")
	}
}

func TestAdjustLine_ZeroGramsAllowed(t *testing.T) {
	ledger := newMockLedger()
	placeAssemblyOrder(t, ledger)
	svc, _ := newTestCaptureService(ledger, &mockGateway{}, nil)

	o, err := svc.AdjustLine(context.Background(), "42", 0, 0)
	if err != nil {
		t.Fatalf("AdjustLine: %v", err)
	}
	if !o.Cart[0].Quantity.IsZero() {
		t.Errorf("quantity: got %s, want 0", o.Cart[0].Quantity)
	}
}

// --- Capture ---

func TestCapture_AdjustedCart(t *testing.T) {
	ledger := newMockLedger()
	ledger.rests["m1"] = dec("10")
	ledger.rests["b1"] = dec("5")
	placeAssemblyOrder(t, ledger)

	gw := &mockGateway{}
	n := &recordingNotifier{}
	svc, _ := newTestCaptureService(ledger, gw, n)

	if _, err := svc.AdjustLine(context.Background(), "42", 0, 1800); err != nil {
		t.Fatalf("AdjustLine: %v", err)
	}

	operator := uuid.New()
	o, err := svc.Capture(context.Background(), CaptureRequest{OrderID: "42", CapturedBy: operator})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	if len(gw.captured) != 1 {
		t.Fatalf("gateway captures: got %d, want 1", len(gw.captured))
	}
	req := gw.captured[0]
	if req.Amount.Value != "1150.00" {
		t.Errorf("capture amount: got %s, want 1150.00", req.Amount.Value)
	}
	for _, it := range req.Receipt.Items {
		if strings.Contains(it.Description, "Резервирование") {
			t.Error("final receipt must not include the reservation line")
		}
	}
	if len(req.Receipt.Items) != 3 {
		t.Errorf("final receipt items: got %d, want 3", len(req.Receipt.Items))
	}
	if !req.Receipt.Total().Equal(dec("1150")) {
		t.Errorf("final receipt total: got %s", req.Receipt.Total())
	}
	if gw.captureKs[0] != captureIdempotenceKey("pay-1") {
		t.Error("capture must use the deterministic idempotence key")
	}

	if !ledger.rests["m1"].Equal(dec("8.2")) {
		t.Errorf("meat stock: got %s, want 8.2", ledger.rests["m1"])
	}
	if !ledger.rests["b1"].Equal(dec("4")) {
		t.Errorf("bun stock: got %s, want 4", ledger.rests["b1"])
	}
	if len(ledger.decrementCalls) != 2 {
		t.Errorf("decrement calls: got %d, want one per line", len(ledger.decrementCalls))
	}

	if _, ok := ledger.assembly["42"]; ok {
		t.Error("order must leave assembly")
	}
	paid, ok := ledger.paid["pay-1"]
	if !ok {
		t.Fatal("paid order not recorded")
	}
	if !numericToDecimal(paid.CapturedAmount).Equal(dec("1150")) || !numericToDecimal(paid.HeldAmount).Equal(dec("1400")) {
		t.Errorf("paid amounts: captured %s held %s", numericToDecimal(paid.CapturedAmount), numericToDecimal(paid.HeldAmount))
	}
	if paid.CapturedBy.Bytes != [16]byte(operator) {
		t.Error("captured_by not recorded")
	}

	if o.Status != "captured" || o.CapturedAmount == nil || !o.CapturedAmount.Equal(dec("1150")) {
		t.Errorf("returned order: status %q captured %v", o.Status, o.CapturedAmount)
	}
	events := n.types()
	if events[len(events)-1] != "paid" {
		t.Errorf("last event: got %v, want paid", events)
	}
}

func TestCapture_ExplicitFinalCart(t *testing.T) {
	ledger := newMockLedger()
	placeAssemblyOrder(t, ledger)
	gw := &mockGateway{}
	svc, _ := newTestCaptureService(ledger, gw, nil)

	final := []CartLine{
		kg("meat", "m1", "500", "2.1"),
		piece("bun", "b1", "50", "1"),
	}
	o, err := svc.Capture(context.Background(), CaptureRequest{OrderID: "42", FinalCart: final})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	// 1050 + 50 + 200 = 1300 <= 1400
	if gw.captured[0].Amount.Value != "1300.00" {
		t.Errorf("amount: got %s", gw.captured[0].Amount.Value)
	}
	if o.Cart[0].Unit != "Kilogram" {
		t.Errorf("unit should come from the held line, got %q", o.Cart[0].Unit)
	}
}

func TestCapture_ExceedsHoldFailsClosed(t *testing.T) {
	ledger := newMockLedger()
	ledger.rests["m1"] = dec("10")
	placeAssemblyOrder(t, ledger)
	gw := &mockGateway{}
	n := &recordingNotifier{}
	svc, _ := newTestCaptureService(ledger, gw, n)

	// 500 * 2.5 + 50 + 200 = 1500 > 1400
	final := []CartLine{
		kg("meat", "m1", "500", "2.5"),
		piece("bun", "b1", "50", "1"),
	}
	_, err := svc.Capture(context.Background(), CaptureRequest{OrderID: "42", FinalCart: final})
	if !errors.Is(err, ErrCaptureExceedsHold) {
		t.Fatalf("got %v, want ErrCaptureExceedsHold", err)
	}
	if len(gw.captured) != 0 {
		t.Error("gateway must not be called")
	}
	if len(ledger.decrementCalls) != 0 || !ledger.rests["m1"].Equal(dec("10")) {
		t.Error("stock must not change")
	}
	if _, ok := ledger.assembly["42"]; !ok {
		t.Error("order must stay in assembly")
	}
	if len(n.events) != 0 {
		t.Error("no notification on integrity failure")
	}
}

func TestCapture_GatewayFailureLeavesOrderCapturable(t *testing.T) {
	ledger := newMockLedger()
	ledger.rests["m1"] = dec("10")
	placeAssemblyOrder(t, ledger)

	calls := 0
	gw := &mockGateway{
		captureFn: func(ctx context.Context, paymentID string, req gateway.CaptureRequest, key string) (*gateway.Payment, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("connection refused")
			}
			return &gateway.Payment{ID: paymentID, Status: gateway.StatusSucceeded}, nil
		},
	}
	n := &recordingNotifier{}
	svc, _ := newTestCaptureService(ledger, gw, n)

	_, err := svc.Capture(context.Background(), CaptureRequest{OrderID: "42"})
	if !errors.Is(err, ErrGateway) {
		t.Fatalf("got %v, want ErrGateway", err)
	}
	if _, ok := ledger.assembly["42"]; !ok {
		t.Fatal("order must remain in assembly")
	}
	if len(ledger.decrementCalls) != 0 {
		t.Error("stock must not be decremented")
	}
	if len(n.events) != 0 {
		t.Error("no notification on gateway failure")
	}

	// The order can be captured again; same idempotence key both times.
	if _, err := svc.Capture(context.Background(), CaptureRequest{OrderID: "42"}); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if gw.captureKs[0] != gw.captureKs[1] {
		t.Error("retries must reuse the idempotence key")
	}
	if len(ledger.decrementCalls) != 2 {
		t.Errorf("decrement calls after retry: got %d, want 2", len(ledger.decrementCalls))
	}
}

func TestCapture_StockAppliedOnlyOncePerPayment(t *testing.T) {
	ledger := newMockLedger()
	ledger.rests["m1"] = dec("10")
	placeAssemblyOrder(t, ledger)
	// A previous attempt already applied stock for this payment.
	ledger.applied["pay-1"] = true

	svc, _ := newTestCaptureService(ledger, &mockGateway{}, nil)
	if _, err := svc.Capture(context.Background(), CaptureRequest{OrderID: "42"}); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if len(ledger.decrementCalls) != 0 {
		t.Errorf("decrement calls: got %d, want 0", len(ledger.decrementCalls))
	}
	if !ledger.rests["m1"].Equal(dec("10")) {
		t.Errorf("stock changed to %s", ledger.rests["m1"])
	}
}

func TestCapture_NotFound(t *testing.T) {
	svc, _ := newTestCaptureService(newMockLedger(), &mockGateway{}, nil)
	_, err := svc.Capture(context.Background(), CaptureRequest{OrderID: "404"})
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("got %v, want ErrOrderNotFound", err)
	}
}

func TestCapture_SecondCaptureIsNotFound(t *testing.T) {
	ledger := newMockLedger()
	placeAssemblyOrder(t, ledger)
	gw := &mockGateway{}
	svc, _ := newTestCaptureService(ledger, gw, nil)

	if _, err := svc.Capture(context.Background(), CaptureRequest{OrderID: "42"}); err != nil {
		t.Fatalf("first capture: %v", err)
	}
	if _, err := svc.Capture(context.Background(), CaptureRequest{OrderID: "42"}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("second capture: got %v, want ErrOrderNotFound", err)
	}
	if len(gw.captured) != 1 {
		t.Errorf("gateway captures: got %d, want 1", len(gw.captured))
	}
}

func TestCapture_ConcurrentCaptureRejected(t *testing.T) {
	ledger := newMockLedger()
	placeAssemblyOrder(t, ledger)
	gw := &mockGateway{}

	locker := lock.NewLocal()
	svc := NewCaptureService(ledger, &mockTxBeginner{tx: &mockTx{}}, func(db database.DBTX) SettlementStore { return ledger }, gw, nil, locker)

	release, err := locker.Acquire(context.Background(), "capture:42", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	_, err = svc.Capture(context.Background(), CaptureRequest{OrderID: "42"})
	if !errors.Is(err, ErrCaptureInProgress) {
		t.Fatalf("got %v, want ErrCaptureInProgress", err)
	}
	if len(gw.captured) != 0 {
		t.Error("gateway must not be called while another capture runs")
	}
}

func TestAdjustLine_RejectedWhileCaptureRuns(t *testing.T) {
	ledger := newMockLedger()
	placeAssemblyOrder(t, ledger)

	var svc *CaptureService
	var adjustErr error
	gw := &mockGateway{
		captureFn: func(ctx context.Context, paymentID string, req gateway.CaptureRequest, key string) (*gateway.Payment, error) {
			_, adjustErr = svc.AdjustLine(ctx, "42", 0, 1800)
			return &gateway.Payment{ID: paymentID, Status: gateway.StatusSucceeded, Paid: true, Amount: req.Amount}, nil
		},
	}
	n := &recordingNotifier{}
	svc, _ = newTestCaptureService(ledger, gw, n)

	order, err := svc.Capture(context.Background(), CaptureRequest{OrderID: "42"})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if !errors.Is(adjustErr, ErrCaptureInProgress) {
		t.Fatalf("adjust during capture: got %v, want ErrCaptureInProgress", adjustErr)
	}
	if !order.Cart[0].Quantity.Equal(dec("2")) {
		t.Errorf("captured quantity: got %s, want 2", order.Cart[0].Quantity)
	}
	if got := gw.captured[0].Amount.Value; got != "1250.00" {
		t.Errorf("captured amount: got %s, want 1250.00", got)
	}
	for _, typ := range n.types() {
		if typ == "adjusted" {
			t.Error("rejected adjustment must not notify")
		}
	}
}

func TestCapture_FailsWhenOrderChangedDuringGatewayCall(t *testing.T) {
	ledger := newMockLedger()
	placeAssemblyOrder(t, ledger)
	ledger.rests["m1"] = dec("10")

	gw := &mockGateway{
		captureFn: func(ctx context.Context, paymentID string, req gateway.CaptureRequest, key string) (*gateway.Payment, error) {
			// a write that bypassed the order lock
			ledger.mu.Lock()
			a := ledger.assembly["42"]
			a.Version++
			ledger.assembly["42"] = a
			ledger.mu.Unlock()
			return &gateway.Payment{ID: paymentID, Status: gateway.StatusSucceeded, Paid: true, Amount: req.Amount}, nil
		},
	}
	svc, tx := newTestCaptureService(ledger, gw, nil)

	_, err := svc.Capture(context.Background(), CaptureRequest{OrderID: "42"})
	if !errors.Is(err, ErrConcurrentUpdate) {
		t.Fatalf("got %v, want ErrConcurrentUpdate", err)
	}
	if tx.commits != 0 {
		t.Error("nothing may be committed")
	}
	if len(ledger.paid) != 0 {
		t.Error("no paid record for a stale cart")
	}
	if _, ok := ledger.assembly["42"]; !ok {
		t.Error("order must stay in assembly")
	}
	if len(ledger.decrementCalls) != 0 || !ledger.rests["m1"].Equal(dec("10")) {
		t.Error("stock must not be decremented")
	}
}

func TestCapture_CartMismatch(t *testing.T) {
	ledger := newMockLedger()
	placeAssemblyOrder(t, ledger)
	gw := &mockGateway{}
	svc, _ := newTestCaptureService(ledger, gw, nil)

	tests := []struct {
		name  string
		final []CartLine
		want  error
	}{
		{"unknown product", []CartLine{piece("caviar", "z9", "50", "1")}, ErrCartMismatch},
		{"changed price", []CartLine{kg("meat", "m1", "400", "2")}, ErrCartMismatch},
		{"duplicate line", []CartLine{piece("bun", "b1", "50", "1"), piece("bun", "b1", "50", "1")}, ErrCartMismatch},
		{"negative quantity", []CartLine{piece("bun", "b1", "50", "-1")}, ErrInvalidQuantity},
		{"fractional piece", []CartLine{piece("bun", "b1", "50", "0.5")}, ErrInvalidQuantity},
		{"weight finer than a gram", []CartLine{kg("meat", "m1", "500", "1.2345")}, ErrInvalidQuantity},
		{"empty", []CartLine{}, ErrEmptyCart},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Capture(context.Background(), CaptureRequest{OrderID: "42", FinalCart: tt.final})
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
	if len(gw.captured) != 0 {
		t.Error("gateway must not be called for a mismatched cart")
	}
}

func TestCapture_NothingToCapture(t *testing.T) {
	ledger := newMockLedger()
	placeAssemblyOrder(t, ledger)
	svc, _ := newTestCaptureService(ledger, &mockGateway{}, nil)

	final := []CartLine{kg("meat", "m1", "500", "0"), piece("bun", "b1", "50", "0")}
	_, err := svc.Capture(context.Background(), CaptureRequest{OrderID: "42", FinalCart: final})
	if !errors.Is(err, ErrNothingToCapture) {
		t.Fatalf("got %v, want ErrNothingToCapture", err)
	}
}

func TestDecrementStock_SkipsUnknownProducts(t *testing.T) {
	ledger := newMockLedger()
	ledger.rests["known"] = dec("1")

	err := decrementStock(context.Background(), ledger, "42", []CartLine{
		piece("a", "missing", "10", "1"),
		piece("b", "known", "10", "3"),
		piece("c", "", "10", "1"),
	})
	if err != nil {
		t.Fatalf("decrementStock: %v", err)
	}
	if !ledger.rests["known"].Equal(decimal.Zero) {
		t.Errorf("stock floors at zero, got %s", ledger.rests["known"])
	}
	if len(ledger.decrementCalls) != 2 {
		t.Errorf("calls: got %d, want 2 (line without id skipped)", len(ledger.decrementCalls))
	}
}

// --- Fulfillment ---

func TestAdvanceFulfillment(t *testing.T) {
	ledger := newMockLedger()
	placeAssemblyOrder(t, ledger)
	n := &recordingNotifier{}
	svc, _ := newTestCaptureService(ledger, &mockGateway{}, n)
	if _, err := svc.Capture(context.Background(), CaptureRequest{OrderID: "42"}); err != nil {
		t.Fatalf("Capture: %v", err)
	}

	if _, err := svc.AdvanceFulfillment(context.Background(), "42", "completed"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("skip to completed: got %v, want ErrInvalidTransition", err)
	}

	o, err := svc.AdvanceFulfillment(context.Background(), "42", "in_progress")
	if err != nil {
		t.Fatalf("to in_progress: %v", err)
	}
	if o.FulfillmentStatus != "in_progress" {
		t.Errorf("status: got %q", o.FulfillmentStatus)
	}

	if _, err := svc.AdvanceFulfillment(context.Background(), "42", "completed"); err != nil {
		t.Fatalf("to completed: %v", err)
	}
	if _, err := svc.AdvanceFulfillment(context.Background(), "42", "new"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("backwards: got %v, want ErrInvalidTransition", err)
	}
	if _, err := svc.AdvanceFulfillment(context.Background(), "nope", "in_progress"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("unknown: got %v, want ErrOrderNotFound", err)
	}

	active, err := svc.ListPaid(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListPaid: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("completed orders are not active, got %d", len(active))
	}
	done, _ := svc.ListPaid(context.Background(), []string{"completed"})
	if len(done) != 1 || done[0].CapturedAmount == nil {
		t.Errorf("completed list: got %+v", done)
	}
}

func TestListAssembly(t *testing.T) {
	ledger := newMockLedger()
	placeAssemblyOrder(t, ledger)
	svc, _ := newTestCaptureService(ledger, &mockGateway{}, nil)

	orders, err := svc.ListAssembly(context.Background())
	if err != nil {
		t.Fatalf("ListAssembly: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != "42" || orders[0].Status != "awaiting_assembly" {
		t.Errorf("got %+v", orders)
	}

	if _, err := svc.GetAssembly(context.Background(), "x"); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("GetAssembly unknown: got %v", err)
	}
}
