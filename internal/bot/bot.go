// Package bot is the operator command channel over a Telegram webhook.
package bot

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fasol-market/api/internal/database"
	"github.com/fasol-market/api/internal/enum"
	"github.com/fasol-market/api/internal/inventory"
	"github.com/fasol-market/api/internal/notify"
	"github.com/fasol-market/api/internal/parser"
	"github.com/fasol-market/api/internal/service"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/log"
)

// SecretHeader carries the webhook secret registered with setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

const (
	sessionTTL     = 30 * time.Minute
	maxListedCards = 20
	handleTimeout  = 60 * time.Second
)

// --- Store interfaces ---

// Store defines the DB methods the bot needs.
type Store interface {
	GetOperatorByChatID(ctx context.Context, telegramChatID pgtype.Int8) (database.Operator, error)
	UpsertOperatorSession(ctx context.Context, arg database.UpsertOperatorSessionParams) (database.OperatorSession, error)
	GetOperatorSession(ctx context.Context, chatID int64) (database.OperatorSession, error)
	DeleteOperatorSession(ctx context.Context, chatID int64) error
}

// Settlement is the subset of *service.CaptureService driven from chat.
type Settlement interface {
	ListAssembly(ctx context.Context) ([]service.Order, error)
	GetAssembly(ctx context.Context, orderID string) (*service.Order, error)
	AdjustLine(ctx context.Context, orderID string, index, grams int) (*service.Order, error)
	Capture(ctx context.Context, req service.CaptureRequest) (*service.Order, error)
	ListPaid(ctx context.Context, statuses []string) ([]service.Order, error)
	AdvanceFulfillment(ctx context.Context, orderID, status string) (*service.Order, error)
}

// CatalogSyncer runs an on-demand catalog sync.
type CatalogSyncer interface {
	SyncOnce(ctx context.Context) (inventory.Result, error)
}

// --- Handler ---

type Handler struct {
	bot        notify.Sender
	store      Store
	settlement Settlement
	syncer     CatalogSyncer
	secret     string
	now        func() time.Time
}

// NewHandler creates a bot webhook handler. syncer may be nil.
func NewHandler(bot notify.Sender, store Store, settlement Settlement, syncer CatalogSyncer, secret string) *Handler {
	return &Handler{
		bot:        bot,
		store:      store,
		settlement: settlement,
		syncer:     syncer,
		secret:     secret,
		now:        time.Now,
	}
}

// Webhook receives Telegram updates. Anything that gets past the secret
// check is acknowledged with 200 so Telegram does not redeliver it.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	got := r.Header.Get(SecretHeader)
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		log.Warn().Err(err).Msg("bot: invalid update body")
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), handleTimeout)
	defer cancel()

	switch {
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		h.handleMessage(ctx, update.Message)
	}
	w.WriteHeader(http.StatusOK)
}

// authorize returns the active operator bound to chatID.
func (h *Handler) authorize(ctx context.Context, chatID int64) (*database.Operator, bool) {
	op, err := h.store.GetOperatorByChatID(ctx, pgtype.Int8{Int64: chatID, Valid: true})
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			log.Error().Err(err).Int64("chat_id", chatID).Msg("bot: operator lookup failed")
		}
		return nil, false
	}
	return &op, true
}

// --- Messages ---

var menuCommands = map[string]string{
	"На сборке":     "orders",
	"Новые заказы":  "new",
	"В работе":      "in_progress",
	"Все заказы":    "active",
	"Синхронизация": "sync",
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID
	op, ok := h.authorize(ctx, chatID)
	if !ok {
		h.reply(chatID, "🚫 Доступ запрещён.")
		return
	}

	text := strings.TrimSpace(msg.Text)
	cmd, isCmd := parseCommand(text)
	if !isCmd {
		cmd, isCmd = menuCommands[text]
	}
	if isCmd {
		h.handleCommand(ctx, chatID, op, cmd)
		return
	}

	session, err := h.store.GetOperatorSession(ctx, chatID)
	if err == nil && session.Action == enum.SessionActionAdjust && h.now().Sub(session.CreatedAt) < sessionTTL {
		h.applyWeight(ctx, chatID, session, text)
		return
	}
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("bot: load session")
	}

	h.reply(chatID, "Не понял. Используйте /orders, /new, /in_progress, /active или кнопки меню.")
}

// parseCommand returns the command name of "/name@bot args".
func parseCommand(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	name := strings.Fields(text)[0][1:]
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return name, name != ""
}

func (h *Handler) handleCommand(ctx context.Context, chatID int64, op *database.Operator, cmd string) {
	switch cmd {
	case "start":
		kb := tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton("На сборке")),
			tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton("Новые заказы"), tgbotapi.NewKeyboardButton("В работе")),
			tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton("Все заказы")),
			tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton("Синхронизация")),
		)
		kb.ResizeKeyboard = true
		m := tgbotapi.NewMessage(chatID, fmt.Sprintf("Привет, %s! Выберите действие:", op.FullName))
		m.ReplyMarkup = kb
		h.send(m)

	case "cancel":
		if err := h.store.DeleteOperatorSession(ctx, chatID); err != nil {
			log.Error().Err(err).Int64("chat_id", chatID).Msg("bot: clear session")
		}
		h.reply(chatID, "Действие отменено.")

	case "orders":
		orders, err := h.settlement.ListAssembly(ctx)
		if err != nil {
			log.Error().Err(err).Msg("bot: list assembly orders")
			h.reply(chatID, "⚠️ Не удалось загрузить заказы.")
			return
		}
		if len(orders) == 0 {
			h.reply(chatID, "Заказов на сборке нет.")
			return
		}
		for i, o := range orders {
			if i == maxListedCards {
				h.reply(chatID, fmt.Sprintf("…и ещё %d", len(orders)-maxListedCards))
				break
			}
			text, markup := notify.AssemblyCard(o)
			h.sendHTML(chatID, text, markup)
		}

	case "new":
		h.listPaid(ctx, chatID, []string{enum.FulfillmentNew}, "Нет новых заказов.")
	case "in_progress":
		h.listPaid(ctx, chatID, []string{enum.FulfillmentInProgress}, "Нет заказов в работе.")
	case "active":
		h.listPaid(ctx, chatID, []string{enum.FulfillmentNew, enum.FulfillmentInProgress}, "Активных заказов нет.")

	case "sync":
		if h.syncer == nil {
			h.reply(chatID, "Синхронизация каталога не настроена.")
			return
		}
		h.reply(chatID, "🚀 Начинаю синхронизацию товаров с Контур.Маркет...")
		res, err := h.syncer.SyncOnce(ctx)
		switch {
		case errors.Is(err, inventory.ErrSyncInProgress):
			h.reply(chatID, "⏳ Синхронизация уже выполняется.")
		case err != nil:
			log.Error().Err(err).Msg("bot: catalog sync")
			h.reply(chatID, "❌ Ошибка синхронизации: "+err.Error())
		default:
			h.reply(chatID, fmt.Sprintf("✅ Синхронизация завершена. Загружено %d товаров.", res.Products))
		}

	default:
		h.reply(chatID, "Неизвестная команда.")
	}
}

func (h *Handler) listPaid(ctx context.Context, chatID int64, statuses []string, empty string) {
	orders, err := h.settlement.ListPaid(ctx, statuses)
	if err != nil {
		log.Error().Err(err).Msg("bot: list paid orders")
		h.reply(chatID, "⚠️ Не удалось загрузить заказы.")
		return
	}
	if len(orders) == 0 {
		h.reply(chatID, empty)
		return
	}
	for i, o := range orders {
		if i == maxListedCards {
			h.reply(chatID, fmt.Sprintf("…и ещё %d", len(orders)-maxListedCards))
			break
		}
		text, markup := notify.PaidCard(o)
		m := tgbotapi.NewMessage(chatID, text)
		m.ParseMode = tgbotapi.ModeHTML
		if markup != nil {
			m.ReplyMarkup = *markup
		}
		h.send(m)
	}
}

// applyWeight consumes the pending adjustment with the operator's reply.
// A malformed weight keeps the session so the operator can retry.
func (h *Handler) applyWeight(ctx context.Context, chatID int64, session database.OperatorSession, text string) {
	grams, err := parser.ParseGrams(text)
	if err != nil {
		h.reply(chatID, "❌ "+err.Error()+". Например: 450 или 1.2кг. /cancel — отменить.")
		return
	}

	order, err := h.settlement.AdjustLine(ctx, session.OrderID, int(session.LineIndex), grams)
	if errors.Is(err, service.ErrConcurrentUpdate) {
		h.reply(chatID, "⚠️ Заказ изменился, введите вес ещё раз.")
		return
	}
	if delErr := h.store.DeleteOperatorSession(ctx, chatID); delErr != nil {
		log.Error().Err(delErr).Int64("chat_id", chatID).Msg("bot: clear session")
	}
	if err != nil {
		h.reply(chatID, "⚠️ "+operatorMessage(err))
		return
	}

	if session.MessageID > 0 {
		text, markup := notify.AssemblyCard(*order)
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, int(session.MessageID), text, markup)
		edit.ParseMode = tgbotapi.ModeHTML
		h.send(edit)
	}
	name := order.Cart[session.LineIndex].Name
	h.reply(chatID, fmt.Sprintf("✅ Вес для \"%s\" обновлён на %d гр.", name, grams))
}

// --- Callbacks ---

type callback struct {
	action  string
	orderID string
	index   int
}

func parseCallback(data string) (callback, bool) {
	parts := strings.Split(data, ":")
	if len(parts) < 2 || parts[1] == "" {
		return callback{}, false
	}
	cb := callback{action: parts[0], orderID: parts[1], index: -1}
	if cb.action == notify.CallbackAdjust {
		if len(parts) != 3 {
			return callback{}, false
		}
		idx, err := strconv.Atoi(parts[2])
		if err != nil || idx < 0 {
			return callback{}, false
		}
		cb.index = idx
	}
	return cb, true
}

func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.Message == nil || q.Message.Chat == nil {
		h.answer(q.ID, "Сообщение устарело.", true)
		return
	}
	chatID := q.Message.Chat.ID
	op, ok := h.authorize(ctx, chatID)
	if !ok {
		h.answer(q.ID, "🚫 У вас нет доступа.", true)
		return
	}

	cb, ok := parseCallback(q.Data)
	if !ok {
		h.answer(q.ID, "Неизвестное действие.", true)
		return
	}

	switch cb.action {
	case notify.CallbackAdjust:
		order, err := h.settlement.GetAssembly(ctx, cb.orderID)
		if err != nil {
			h.answer(q.ID, operatorMessage(err), true)
			return
		}
		if cb.index >= len(order.Cart) || !order.Cart[cb.index].Weighted() {
			h.answer(q.ID, "Товар в заказе не найден.", true)
			return
		}
		_, err = h.store.UpsertOperatorSession(ctx, database.UpsertOperatorSessionParams{
			ChatID:    chatID,
			Action:    enum.SessionActionAdjust,
			OrderID:   cb.orderID,
			LineIndex: int32(cb.index),
			MessageID: int32(q.Message.MessageID),
		})
		if err != nil {
			log.Error().Err(err).Int64("chat_id", chatID).Msg("bot: save session")
			h.answer(q.ID, "⚠️ Попробуйте ещё раз.", true)
			return
		}
		h.answer(q.ID, "", false)
		h.reply(chatID, fmt.Sprintf("✏️ Введите точный вес в граммах для товара \"%s\":", order.Cart[cb.index].Name))

	case notify.CallbackCapture:
		order, err := h.settlement.Capture(ctx, service.CaptureRequest{OrderID: cb.orderID, CapturedBy: op.ID})
		if err != nil {
			if !isOperatorError(err) {
				log.Error().Err(err).Str("order_id", cb.orderID).Msg("bot: capture")
			}
			h.answer(q.ID, "⚠️ "+operatorMessage(err), true)
			return
		}
		h.answer(q.ID, "Списано", false)
		amount := order.AmountToPay
		if order.CapturedAmount != nil {
			amount = *order.CapturedAmount
		}
		edit := tgbotapi.NewEditMessageText(chatID, q.Message.MessageID,
			fmt.Sprintf("✅ Заказ №%s оплачен: списано %s ₽.", order.ID, amount.StringFixed(2)))
		h.send(edit)

	case notify.CallbackTake, notify.CallbackDone:
		next := enum.FulfillmentInProgress
		if cb.action == notify.CallbackDone {
			next = enum.FulfillmentCompleted
		}
		order, err := h.settlement.AdvanceFulfillment(ctx, cb.orderID, next)
		if err != nil {
			h.answer(q.ID, operatorMessage(err), true)
			return
		}
		text, markup := notify.PaidCard(*order)
		var edit tgbotapi.EditMessageTextConfig
		if markup != nil {
			edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, q.Message.MessageID, text, *markup)
		} else {
			edit = tgbotapi.NewEditMessageText(chatID, q.Message.MessageID, text)
		}
		edit.ParseMode = tgbotapi.ModeHTML
		h.send(edit)
		h.answer(q.ID, "", false)

	default:
		h.answer(q.ID, "Неизвестное действие.", true)
	}
}

// --- Helpers ---

var operatorErrors = []struct {
	err error
	msg string
}{
	{service.ErrOrderNotFound, "Этот заказ уже обработан или не найден."},
	{service.ErrCaptureInProgress, "Списание по этому заказу уже выполняется."},
	{service.ErrCaptureExceedsHold, "Сумма превышает заблокированную. Проверьте вес."},
	{service.ErrNothingToCapture, "Нечего списывать: все позиции с нулевым весом."},
	{service.ErrGateway, "Платёжный сервис недоступен, попробуйте позже."},
	{service.ErrInvalidTransition, "Статус заказа уже изменён."},
	{service.ErrLineNotFound, "Товар в заказе не найден."},
	{service.ErrNotWeighted, "Этот товар не весовой."},
	{service.ErrInvalidWeight, "Неверный вес."},
	{service.ErrCartMismatch, "Корзина не совпадает с заказом."},
	{service.ErrConcurrentUpdate, "Заказ изменился во время списания, проверьте его и повторите."},
}

func isOperatorError(err error) bool {
	for _, e := range operatorErrors {
		if errors.Is(err, e.err) && e.err != service.ErrGateway {
			return true
		}
	}
	return false
}

func operatorMessage(err error) string {
	for _, e := range operatorErrors {
		if errors.Is(err, e.err) {
			return e.msg
		}
	}
	return "Внутренняя ошибка."
}

func (h *Handler) reply(chatID int64, text string) {
	h.send(tgbotapi.NewMessage(chatID, text))
}

func (h *Handler) sendHTML(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) {
	m := tgbotapi.NewMessage(chatID, text)
	m.ParseMode = tgbotapi.ModeHTML
	m.ReplyMarkup = markup
	h.send(m)
}

func (h *Handler) send(c tgbotapi.Chattable) {
	if _, err := h.bot.Send(c); err != nil {
		log.Warn().Err(err).Msg("bot: send")
	}
}

func (h *Handler) answer(callbackID, text string, alert bool) {
	cfg := tgbotapi.NewCallback(callbackID, text)
	cfg.ShowAlert = alert
	if _, err := h.bot.Request(cfg); err != nil {
		log.Warn().Err(err).Msg("bot: answer callback")
	}
}
