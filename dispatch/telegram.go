package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	appconfig "signalflow/config"
	"signalflow/logger"
	"signalflow/models"
	"signalflow/render"
)

// Transport delivers one rendered message to one target.
type Transport interface {
	Send(ctx context.Context, target models.PushTarget, text string, buttons []render.Button) error
}

// PermanentError marks failures that retries cannot fix, such as the
// bot being kicked from a chat.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// RateLimitedError carries the server-mandated pause.
type RateLimitedError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string { return e.Err.Error() }
func (e *RateLimitedError) Unwrap() error { return e.Err }

// TelegramTransport sends messages through the bot API with HTML
// formatting, forum topic routing and inline keyboards.
type TelegramTransport struct {
	bot *tgbotapi.BotAPI
	log *logger.Log
}

func NewTelegramTransport(cfg appconfig.TelegramConfig) (*TelegramTransport, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	if cfg.APITimeout > 0 {
		bot.Client = &http.Client{Timeout: cfg.APITimeout}
	}

	log := logger.GetLogger()
	log.WithComponent("telegram").WithFields(logger.Fields{
		"bot": bot.Self.UserName,
	}).Info("telegram transport ready")

	return &TelegramTransport{bot: bot, log: log}, nil
}

func (t *TelegramTransport) Send(ctx context.Context, target models.PushTarget, text string, buttons []render.Button) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := tgbotapi.Params{}
	params.AddNonEmpty("chat_id", target.NormalizedChatID())
	params.AddNonEmpty("message_thread_id", target.TopicID)
	params["text"] = text
	params["parse_mode"] = tgbotapi.ModeHTML
	params.AddBool("disable_web_page_preview", true)

	if len(buttons) > 0 {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(buttons))
		for _, b := range buttons {
			row = append(row, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
		}
		markup := tgbotapi.NewInlineKeyboardMarkup(row)
		if err := params.AddInterface("reply_markup", markup); err != nil {
			return fmt.Errorf("encode reply markup: %w", err)
		}
	}

	if _, err := t.bot.MakeRequest("sendMessage", params); err != nil {
		return classifySendError(err)
	}
	return nil
}

// classifySendError maps bot API failures onto the dispatcher's retry
// policy.
func classifySendError(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.RetryAfter > 0 {
			return &RateLimitedError{
				Err:        err,
				RetryAfter: time.Duration(apiErr.RetryAfter) * time.Second,
			}
		}
		switch apiErr.Code {
		case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound:
			return &PermanentError{Err: err}
		}
	}
	return err
}
