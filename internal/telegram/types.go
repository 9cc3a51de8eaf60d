package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/blackmichael/listing-bot/internal/domain"
)

// Request bodies. tgbotapi's Chattable configs are form-encoded, so the
// JSON bodies are declared here and only the shared types are reused.

type sendMessageRequest struct {
	ChatID      ChatID                         `json:"chat_id"`
	Text        string                         `json:"text"`
	ParseMode   string                         `json:"parse_mode,omitempty"`
	ReplyMarkup *tgbotapi.InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

type sendPhotoRequest struct {
	ChatID      ChatID                         `json:"chat_id"`
	Photo       string                         `json:"photo"`
	Caption     string                         `json:"caption,omitempty"`
	ParseMode   string                         `json:"parse_mode,omitempty"`
	ReplyMarkup *tgbotapi.InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

type sendMediaGroupRequest struct {
	ChatID ChatID            `json:"chat_id"`
	Media  []inputMediaPhoto `json:"media"`
}

type inputMediaPhoto struct {
	Type      string `json:"type"`
	Media     string `json:"media"`
	Caption   string `json:"caption,omitempty"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type answerCallbackQueryRequest struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
	ShowAlert       bool   `json:"show_alert,omitempty"`
}

type setWebhookRequest struct {
	URL         string `json:"url"`
	SecretToken string `json:"secret_token,omitempty"`
}

// InlineKeyboard converts a button layout to the Bot API markup. It returns
// nil for a nil or empty layout so that reply_markup is omitted.
func InlineKeyboard(layout *domain.ButtonLayout) *tgbotapi.InlineKeyboardMarkup {
	if layout == nil {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(layout.Rows))
	for _, row := range layout.Rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			switch {
			case b.Text == "":
			case b.CallbackData != "":
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.CallbackData))
			case b.URL != "":
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
			}
		}
		if len(buttons) > 0 {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
		}
	}
	if len(rows) == 0 {
		return nil
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

// CallbackQuery converts an update's callback query to the domain type. It
// returns nil if the update carries none.
func CallbackQuery(u *tgbotapi.Update) *domain.CallbackQuery {
	if u == nil || u.CallbackQuery == nil {
		return nil
	}
	q := &domain.CallbackQuery{
		ID:   u.CallbackQuery.ID,
		Data: u.CallbackQuery.Data,
	}
	if u.CallbackQuery.From != nil {
		q.FromID = u.CallbackQuery.From.ID
	}
	return q
}
