package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fasol-market/api/internal/database"
	"github.com/fasol-market/api/internal/enum"
	"github.com/fasol-market/api/internal/inventory"
	"github.com/fasol-market/api/internal/service"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const (
	testSecret = "hook-secret"
	opChat     = int64(1001)
)

var testOperatorID = uuid.MustParse("00000000-0000-0000-0000-00000000000a")

// --- Mock implementations ---

type mockSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, c)
	return tgbotapi.Message{MessageID: len(m.sent)}, nil
}

func (m *mockSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (m *mockSender) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.sent {
		switch v := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, v.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, v.Text)
		}
	}
	return out
}

func (m *mockSender) edits() []tgbotapi.EditMessageTextConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []tgbotapi.EditMessageTextConfig
	for _, c := range m.sent {
		if e, ok := c.(tgbotapi.EditMessageTextConfig); ok {
			out = append(out, e)
		}
	}
	return out
}

func (m *mockSender) lastAnswer(t *testing.T) tgbotapi.CallbackConfig {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		t.Fatal("callback was not answered")
	}
	cb, ok := m.requests[len(m.requests)-1].(tgbotapi.CallbackConfig)
	if !ok {
		t.Fatalf("last request: got %T, want CallbackConfig", m.requests[len(m.requests)-1])
	}
	return cb
}

type mockStore struct {
	operators map[int64]database.Operator
	sessions  map[int64]database.OperatorSession
}

func newMockStore() *mockStore {
	return &mockStore{
		operators: map[int64]database.Operator{
			opChat: {ID: testOperatorID, FullName: "Ольга", Role: enum.OperatorRoleOperator, IsActive: true},
		},
		sessions: make(map[int64]database.OperatorSession),
	}
}

func (m *mockStore) GetOperatorByChatID(_ context.Context, chatID pgtype.Int8) (database.Operator, error) {
	op, ok := m.operators[chatID.Int64]
	if !ok || !chatID.Valid {
		return database.Operator{}, pgx.ErrNoRows
	}
	return op, nil
}

func (m *mockStore) UpsertOperatorSession(_ context.Context, arg database.UpsertOperatorSessionParams) (database.OperatorSession, error) {
	s := database.OperatorSession{
		ChatID:    arg.ChatID,
		Action:    arg.Action,
		OrderID:   arg.OrderID,
		LineIndex: arg.LineIndex,
		MessageID: arg.MessageID,
		CreatedAt: time.Now(),
	}
	m.sessions[arg.ChatID] = s
	return s, nil
}

func (m *mockStore) GetOperatorSession(_ context.Context, chatID int64) (database.OperatorSession, error) {
	s, ok := m.sessions[chatID]
	if !ok {
		return database.OperatorSession{}, pgx.ErrNoRows
	}
	return s, nil
}

func (m *mockStore) DeleteOperatorSession(_ context.Context, chatID int64) error {
	delete(m.sessions, chatID)
	return nil
}

type adjustCall struct {
	orderID      string
	index, grams int
}

type mockSettlement struct {
	orders map[string]service.Order

	captureErr error
	captures   []service.CaptureRequest
	adjusts    []adjustCall
	advances   []string
}

func newMockSettlement() *mockSettlement {
	return &mockSettlement{orders: map[string]service.Order{"42": testOrder()}}
}

func (m *mockSettlement) ListAssembly(_ context.Context) ([]service.Order, error) {
	var out []service.Order
	for _, o := range m.orders {
		out = append(out, o)
	}
	return out, nil
}

func (m *mockSettlement) GetAssembly(_ context.Context, orderID string) (*service.Order, error) {
	o, ok := m.orders[orderID]
	if !ok {
		return nil, service.ErrOrderNotFound
	}
	return &o, nil
}

func (m *mockSettlement) AdjustLine(_ context.Context, orderID string, index, grams int) (*service.Order, error) {
	m.adjusts = append(m.adjusts, adjustCall{orderID, index, grams})
	o, ok := m.orders[orderID]
	if !ok {
		return nil, service.ErrOrderNotFound
	}
	o.Cart[index].Quantity = decimal.NewFromInt(int64(grams)).Div(decimal.NewFromInt(1000))
	return &o, nil
}

func (m *mockSettlement) Capture(_ context.Context, req service.CaptureRequest) (*service.Order, error) {
	m.captures = append(m.captures, req)
	if m.captureErr != nil {
		return nil, m.captureErr
	}
	o := m.orders[req.OrderID]
	amount := decimal.RequireFromString("1150")
	o.CapturedAmount = &amount
	return &o, nil
}

func (m *mockSettlement) ListPaid(_ context.Context, statuses []string) ([]service.Order, error) {
	o := testOrder()
	o.Status = enum.OrderStatusCaptured
	o.FulfillmentStatus = statuses[0]
	return []service.Order{o}, nil
}

func (m *mockSettlement) AdvanceFulfillment(_ context.Context, orderID, status string) (*service.Order, error) {
	m.advances = append(m.advances, status)
	o := testOrder()
	o.FulfillmentStatus = status
	return &o, nil
}

type stubSyncer struct {
	err   error
	calls int
}

func (s *stubSyncer) SyncOnce(_ context.Context) (inventory.Result, error) {
	s.calls++
	return inventory.Result{Products: 12}, s.err
}

// --- Helpers ---

func testOrder() service.Order {
	return service.Order{
		ID:        "42",
		PaymentID: "pay-1",
		Cart: []service.CartLine{
			{ProductID: "m1", Name: "Говядина", Price: decimal.NewFromInt(500), Quantity: decimal.NewFromInt(2), Unit: enum.UnitKilogram},
			{ProductID: "b1", Name: "Булка", Price: decimal.NewFromInt(50), Quantity: decimal.NewFromInt(1)},
		},
		DeliveryFee: decimal.NewFromInt(200),
		AmountToPay: decimal.NewFromInt(1400),
		Status:      enum.OrderStatusAwaitingAssembly,
	}
}

func newTestHandler() (*Handler, *mockSender, *mockStore, *mockSettlement, *stubSyncer) {
	sender := &mockSender{}
	store := newMockStore()
	settlement := newMockSettlement()
	syncer := &stubSyncer{}
	return NewHandler(sender, store, settlement, syncer, testSecret), sender, store, settlement, syncer
}

func post(t *testing.T, h *Handler, secret string, update tgbotapi.Update) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(update)
	if err != nil {
		t.Fatalf("marshal update: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/bot/telegram", bytes.NewReader(body))
	req.Header.Set(SecretHeader, secret)
	rr := httptest.NewRecorder()
	h.Webhook(rr, req)
	return rr
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      text,
	}}
}

func callbackUpdate(chatID int64, messageID int, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		Data:    data,
		Message: &tgbotapi.Message{MessageID: messageID, Chat: &tgbotapi.Chat{ID: chatID}},
	}}
}

func containsText(texts []string, sub string) bool {
	for _, s := range texts {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// --- Tests ---

func TestWebhook_RejectsBadSecret(t *testing.T) {
	h, sender, _, _, _ := newTestHandler()

	rr := post(t, h, "wrong", textUpdate(opChat, "/orders"))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	if len(sender.sent) != 0 {
		t.Error("nothing may be sent for an unauthenticated update")
	}
}

func TestWebhook_InvalidBodyAcknowledged(t *testing.T) {
	h, _, _, _, _ := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/api/bot/telegram", strings.NewReader("{"))
	req.Header.Set(SecretHeader, testSecret)
	rr := httptest.NewRecorder()
	h.Webhook(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rr.Code)
	}
}

func TestWebhook_UnknownChatDenied(t *testing.T) {
	h, sender, _, settlement, _ := newTestHandler()

	rr := post(t, h, testSecret, textUpdate(555, "/orders"))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if got := sender.texts(); len(got) != 1 || got[0] != "🚫 Доступ запрещён." {
		t.Errorf("replies: got %v", got)
	}
	if len(settlement.captures) != 0 {
		t.Error("settlement must not be touched")
	}
}

func TestWebhook_UnknownChatCallbackDenied(t *testing.T) {
	h, sender, _, settlement, _ := newTestHandler()

	post(t, h, testSecret, callbackUpdate(555, 7, "capture:42"))
	ans := sender.lastAnswer(t)
	if !ans.ShowAlert || !strings.Contains(ans.Text, "нет доступа") {
		t.Errorf("answer: got %+v", ans)
	}
	if len(settlement.captures) != 0 {
		t.Error("capture must not run for unknown chat")
	}
}

func TestCommand_OrdersSendsAssemblyCards(t *testing.T) {
	h, sender, _, _, _ := newTestHandler()

	post(t, h, testSecret, textUpdate(opChat, "/orders"))
	if len(sender.sent) != 1 {
		t.Fatalf("sent: got %d, want 1", len(sender.sent))
	}
	msg, ok := sender.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("got %T", sender.sent[0])
	}
	if msg.ParseMode != tgbotapi.ModeHTML {
		t.Errorf("parse mode: got %q", msg.ParseMode)
	}
	if !strings.Contains(msg.Text, "42") {
		t.Errorf("card should mention order id, got %q", msg.Text)
	}
	if _, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); !ok {
		t.Errorf("card should carry inline keyboard, got %T", msg.ReplyMarkup)
	}
}

func TestCommand_MenuButtonsMapToCommands(t *testing.T) {
	h, sender, _, _, _ := newTestHandler()

	post(t, h, testSecret, textUpdate(opChat, "Новые заказы"))
	if len(sender.sent) != 1 {
		t.Fatalf("sent: got %d, want 1 paid card", len(sender.sent))
	}
}

func TestCommand_Start(t *testing.T) {
	h, sender, _, _, _ := newTestHandler()

	post(t, h, testSecret, textUpdate(opChat, "/start@fasol_bot"))
	msg := sender.sent[0].(tgbotapi.MessageConfig)
	if !strings.Contains(msg.Text, "Ольга") {
		t.Errorf("greeting: got %q", msg.Text)
	}
	kb, ok := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	if !ok {
		t.Fatalf("start should show reply keyboard, got %T", msg.ReplyMarkup)
	}

	shown := map[string]bool{}
	for _, row := range kb.Keyboard {
		for _, b := range row {
			if _, ok := menuCommands[b.Text]; !ok {
				t.Errorf("button %q has no command", b.Text)
			}
			shown[b.Text] = true
		}
	}
	for label := range menuCommands {
		if !shown[label] {
			t.Errorf("menu command %q missing from keyboard", label)
		}
	}
}

func TestCommand_Sync(t *testing.T) {
	h, sender, _, _, syncer := newTestHandler()

	post(t, h, testSecret, textUpdate(opChat, "/sync"))
	if syncer.calls != 1 {
		t.Fatalf("sync calls: got %d", syncer.calls)
	}
	if !containsText(sender.texts(), "Загружено 12 товаров") {
		t.Errorf("replies: got %v", sender.texts())
	}

	syncer.err = inventory.ErrSyncInProgress
	post(t, h, testSecret, textUpdate(opChat, "/sync"))
	if !containsText(sender.texts(), "уже выполняется") {
		t.Errorf("replies: got %v", sender.texts())
	}
}

func TestAdjustFlow(t *testing.T) {
	h, sender, store, settlement, _ := newTestHandler()

	post(t, h, testSecret, callbackUpdate(opChat, 77, "adjust:42:0"))

	session, ok := store.sessions[opChat]
	if !ok {
		t.Fatal("session not stored")
	}
	if session.OrderID != "42" || session.LineIndex != 0 || session.MessageID != 77 || session.Action != enum.SessionActionAdjust {
		t.Errorf("session: got %+v", session)
	}
	if ans := sender.lastAnswer(t); ans.ShowAlert {
		t.Errorf("adjust answer should not alert: %+v", ans)
	}
	if !containsText(sender.texts(), "Говядина") {
		t.Errorf("prompt should name the product, got %v", sender.texts())
	}

	post(t, h, testSecret, textUpdate(opChat, "1,64 кг"))

	if len(settlement.adjusts) != 1 {
		t.Fatalf("adjust calls: got %d", len(settlement.adjusts))
	}
	if got := settlement.adjusts[0]; got != (adjustCall{"42", 0, 1640}) {
		t.Errorf("adjust call: got %+v", got)
	}
	if _, ok := store.sessions[opChat]; ok {
		t.Error("session should be cleared after a successful adjustment")
	}
	edits := sender.edits()
	if len(edits) != 1 || edits[0].MessageID != 77 {
		t.Fatalf("card edit: got %+v", edits)
	}
	if !containsText(sender.texts(), "1640 гр.") {
		t.Errorf("confirmation: got %v", sender.texts())
	}
}

func TestAdjustFlow_InvalidWeightKeepsSession(t *testing.T) {
	h, sender, store, settlement, _ := newTestHandler()

	post(t, h, testSecret, callbackUpdate(opChat, 77, "adjust:42:0"))
	post(t, h, testSecret, textUpdate(opChat, "примерно много"))

	if len(settlement.adjusts) != 0 {
		t.Error("invalid weight must not reach the settlement")
	}
	if _, ok := store.sessions[opChat]; !ok {
		t.Error("session should survive a malformed weight")
	}
	if !containsText(sender.texts(), "❌") {
		t.Errorf("replies: got %v", sender.texts())
	}
}

func TestAdjustFlow_DiscreteLineRejected(t *testing.T) {
	h, sender, store, _, _ := newTestHandler()

	post(t, h, testSecret, callbackUpdate(opChat, 77, "adjust:42:1"))
	if _, ok := store.sessions[opChat]; ok {
		t.Error("no session for a discrete line")
	}
	if ans := sender.lastAnswer(t); !ans.ShowAlert {
		t.Errorf("answer should alert: %+v", ans)
	}
}

func TestAdjustFlow_ExpiredSessionIgnored(t *testing.T) {
	h, sender, store, settlement, _ := newTestHandler()
	store.sessions[opChat] = database.OperatorSession{
		ChatID:    opChat,
		Action:    enum.SessionActionAdjust,
		OrderID:   "42",
		CreatedAt: time.Now().Add(-2 * sessionTTL),
	}

	post(t, h, testSecret, textUpdate(opChat, "500"))
	if len(settlement.adjusts) != 0 {
		t.Error("expired session must not apply")
	}
	if !containsText(sender.texts(), "Не понял") {
		t.Errorf("replies: got %v", sender.texts())
	}
}

func TestCaptureCallback(t *testing.T) {
	h, sender, _, settlement, _ := newTestHandler()

	post(t, h, testSecret, callbackUpdate(opChat, 9, "capture:42"))

	if len(settlement.captures) != 1 {
		t.Fatalf("captures: got %d", len(settlement.captures))
	}
	req := settlement.captures[0]
	if req.OrderID != "42" || req.CapturedBy != testOperatorID || req.FinalCart != nil {
		t.Errorf("capture request: got %+v", req)
	}
	edits := sender.edits()
	if len(edits) != 1 || !strings.Contains(edits[0].Text, "1150.00") {
		t.Errorf("edit: got %+v", edits)
	}
	if ans := sender.lastAnswer(t); ans.ShowAlert {
		t.Errorf("success should not alert: %+v", ans)
	}
}

func TestCaptureCallback_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"already processed", service.ErrOrderNotFound, "уже обработан"},
		{"in progress", service.ErrCaptureInProgress, "уже выполняется"},
		{"exceeds hold", service.ErrCaptureExceedsHold, "превышает"},
		{"gateway", errors.Join(service.ErrGateway, errors.New("timeout")), "недоступен"},
		{"unexpected", errors.New("boom"), "Внутренняя ошибка"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, sender, _, settlement, _ := newTestHandler()
			settlement.captureErr = tt.err

			post(t, h, testSecret, callbackUpdate(opChat, 9, "capture:42"))

			ans := sender.lastAnswer(t)
			if !ans.ShowAlert || !strings.Contains(ans.Text, tt.want) {
				t.Errorf("answer: got %+v, want alert containing %q", ans, tt.want)
			}
			if len(sender.edits()) != 0 {
				t.Error("card must not be edited on failure")
			}
		})
	}
}

func TestFulfillmentCallbacks(t *testing.T) {
	h, sender, _, settlement, _ := newTestHandler()

	post(t, h, testSecret, callbackUpdate(opChat, 3, "take:42"))
	post(t, h, testSecret, callbackUpdate(opChat, 3, "done:42"))

	want := []string{enum.FulfillmentInProgress, enum.FulfillmentCompleted}
	if len(settlement.advances) != 2 || settlement.advances[0] != want[0] || settlement.advances[1] != want[1] {
		t.Errorf("advances: got %v, want %v", settlement.advances, want)
	}
	edits := sender.edits()
	if len(edits) != 2 {
		t.Fatalf("edits: got %d", len(edits))
	}
	if edits[1].ReplyMarkup != nil {
		t.Error("completed card should have no buttons")
	}
}

func TestParseCallback(t *testing.T) {
	tests := []struct {
		data string
		want callback
		ok   bool
	}{
		{"adjust:42:0", callback{"adjust", "42", 0}, true},
		{"capture:42", callback{"capture", "42", -1}, true},
		{"take:7", callback{"take", "7", -1}, true},
		{"adjust:42", callback{}, false},
		{"adjust:42:x", callback{}, false},
		{"adjust:42:-1", callback{}, false},
		{"capture:", callback{}, false},
		{"garbage", callback{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			got, ok := parseCallback(tt.data)
			if ok != tt.ok || got != tt.want {
				t.Errorf("parseCallback(%q) = %+v, %v; want %+v, %v", tt.data, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"/orders", "orders", true},
		{"/start@fasol_bot", "start", true},
		{"/sync now", "sync", true},
		{"orders", "", false},
		{"/", "", false},
	}
	for _, tt := range tests {
		got, ok := parseCommand(tt.text)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseCommand(%q) = %q, %v", tt.text, got, ok)
		}
	}
}
