package notify

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/fasol-market/api/internal/enum"
	"github.com/fasol-market/api/internal/service"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
)

// Callback actions carried in inline button data as action:orderID[:index].
const (
	CallbackAdjust  = "adjust"
	CallbackCapture = "capture"
	CallbackTake    = "take"
	CallbackDone    = "done"
)

func callbackData(action, orderID string, index ...int) string {
	if len(index) > 0 {
		return fmt.Sprintf("%s:%s:%d", action, orderID, index[0])
	}
	return action + ":" + orderID
}

var fulfillmentLabels = map[string]string{
	enum.FulfillmentNew:        "Новый",
	enum.FulfillmentInProgress: "В работе",
	enum.FulfillmentCompleted:  "Завершён",
}

var thousand = decimal.NewFromInt(1000)

func grams(kg decimal.Decimal) string {
	return kg.Mul(thousand).StringFixed(0)
}

func quantityLabel(l service.CartLine) string {
	if l.Weighted() {
		return grams(l.Quantity) + " гр."
	}
	return l.Quantity.String() + " шт."
}

func shorten(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}

// AssemblyCard renders an order awaiting assembly with one adjust button per
// weight-priced line and a capture button.
func AssemblyCard(o service.Order) (string, tgbotapi.InlineKeyboardMarkup) {
	var b strings.Builder
	fmt.Fprintf(&b, "🛒 <b>Заказ на сборку:</b> <code>%s</code>\n", html.EscapeString(o.ID))
	fmt.Fprintf(&b, "👤 %s, %s\n", html.EscapeString(o.CustomerName), html.EscapeString(o.Phone))
	fmt.Fprintf(&b, "🏠 %s\n", html.EscapeString(o.Address))
	deliveryTime := o.DeliveryTime
	if deliveryTime == "" {
		deliveryTime = "Не указано"
	}
	fmt.Fprintf(&b, "⏰ %s\n", html.EscapeString(deliveryTime))
	if o.Comment != "" {
		fmt.Fprintf(&b, "💬 Комментарий: %s\n", html.EscapeString(o.Comment))
	}

	b.WriteString("\n📦 <b>Корзина:</b>\n")
	for i, l := range o.Cart {
		fmt.Fprintf(&b, "%d) %s — <b>%s</b>", i+1, html.EscapeString(l.Name), quantityLabel(l))
		if l.Weighted() {
			if l.OriginalQuantity != nil {
				fmt.Fprintf(&b, " (было ~%s гр.)", grams(*l.OriginalQuantity))
			} else {
				fmt.Fprintf(&b, " (заказано ~%s гр.)", grams(l.Quantity))
			}
		}
		b.WriteByte('\n')
	}

	toCapture := service.ItemsTotal(o.Cart).Add(o.DeliveryFee)
	fmt.Fprintf(&b, "\n💰 <b>Итого к списанию: ~%s ₽</b>\n", toCapture.StringFixed(2))
	if o.DeliveryFee.IsPositive() {
		fmt.Fprintf(&b, "🚚 Доставка: %s ₽\n", o.DeliveryFee.StringFixed(2))
	}
	fmt.Fprintf(&b, "<i>(Заморожено на карте: %s ₽)</i>", o.AmountToPay.StringFixed(2))

	var rows [][]tgbotapi.InlineKeyboardButton
	for i, l := range o.Cart {
		if !l.Weighted() {
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⚖️ Изменить: "+shorten(l.Name, 25), callbackData(CallbackAdjust, o.ID, i)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Подтвердить и списать", callbackData(CallbackCapture, o.ID)),
	))

	return b.String(), tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// PaidCard renders a captured order with the next fulfillment action, if any.
func PaidCard(o service.Order) (string, *tgbotapi.InlineKeyboardMarkup) {
	var b strings.Builder
	switch o.FulfillmentStatus {
	case enum.FulfillmentCompleted:
		b.WriteString("✅ <b>Заказ ЗАВЕРШЁН</b>\n")
	case enum.FulfillmentInProgress:
		b.WriteString("📋 <b>Заказ в работе</b>\n")
	default:
		b.WriteString("✅ <b>Поступил новый заказ</b>\n")
	}
	fmt.Fprintf(&b, "🧾 Номер: <code>%s</code>\n", html.EscapeString(o.ID))
	fmt.Fprintf(&b, "👤 Имя: %s\n", html.EscapeString(o.CustomerName))
	fmt.Fprintf(&b, "📞 Телефон: %s\n", html.EscapeString(o.Phone))
	fmt.Fprintf(&b, "🏠 Адрес: %s\n", html.EscapeString(o.Address))
	fmt.Fprintf(&b, "📌 Статус: <b>%s</b>\n", fulfillmentLabels[o.FulfillmentStatus])

	b.WriteString("\n📦 <b>Корзина:</b>\n")
	for i, l := range o.Cart {
		unit := "шт."
		if l.Weighted() {
			unit = "кг"
		}
		fmt.Fprintf(&b, "%d) %s — %s %s × %s₽\n", i+1, html.EscapeString(l.Name), l.Quantity.String(), unit, l.Price.StringFixed(2))
	}
	captured := decimal.Zero
	if o.CapturedAmount != nil {
		captured = *o.CapturedAmount
	}
	fmt.Fprintf(&b, "💰 <b>Списано: %s ₽</b>", captured.StringFixed(2))

	var markup *tgbotapi.InlineKeyboardMarkup
	switch o.FulfillmentStatus {
	case enum.FulfillmentNew:
		m := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Взять в работу", callbackData(CallbackTake, o.ID)),
		))
		markup = &m
	case enum.FulfillmentInProgress:
		m := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Завершить заказ", callbackData(CallbackDone, o.ID)),
		))
		markup = &m
	}
	return b.String(), markup
}
