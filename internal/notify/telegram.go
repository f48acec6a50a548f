package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/fasol-market/api/internal/enum"
	"github.com/fasol-market/api/internal/service"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// Sender is the subset of *tgbotapi.BotAPI used to talk to Telegram.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// ChatDirectory lists the chats of active operators.
type ChatDirectory interface {
	ListOperatorChatIDs(ctx context.Context) ([]int64, error)
}

// Telegram posts assembly and paid-order cards to every active operator.
type Telegram struct {
	bot   Sender
	chats ChatDirectory
}

func NewTelegram(bot Sender, chats ChatDirectory) *Telegram {
	return &Telegram{bot: bot, chats: chats}
}

func (t *Telegram) Notify(ctx context.Context, event service.Event) error {
	var msg func(chatID int64) tgbotapi.MessageConfig

	switch event.Type {
	case enum.EventOrderAwaitingAssembly:
		text, markup := AssemblyCard(event.Order)
		msg = func(chatID int64) tgbotapi.MessageConfig {
			m := tgbotapi.NewMessage(chatID, text)
			m.ParseMode = tgbotapi.ModeHTML
			m.ReplyMarkup = markup
			return m
		}
	case enum.EventOrderPaid:
		text, markup := PaidCard(event.Order)
		msg = func(chatID int64) tgbotapi.MessageConfig {
			m := tgbotapi.NewMessage(chatID, text)
			m.ParseMode = tgbotapi.ModeHTML
			if markup != nil {
				m.ReplyMarkup = *markup
			}
			return m
		}
	default:
		return nil
	}

	chatIDs, err := t.chats.ListOperatorChatIDs(ctx)
	if err != nil {
		return fmt.Errorf("list operator chats: %w", err)
	}
	if len(chatIDs) == 0 {
		log.Warn().Str("event", event.Type).Msg("no operator chats registered")
		return nil
	}

	var errs []error
	for _, id := range chatIDs {
		if _, err := t.bot.Send(msg(id)); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
