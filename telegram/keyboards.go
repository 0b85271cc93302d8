package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Button labels
const (
	BtnAccept  = "⚔️ Accept"
	BtnDecline = "🏳️ Decline"
)

// Callback data prefixes
const (
	CallbackAccept  = "accept:"
	CallbackDecline = "decline:"
)

// MatchOfferKeyboard lets an owner answer a match proposal in the chat.
func MatchOfferKeyboard(matchID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(BtnAccept, CallbackAccept+matchID),
			tgbotapi.NewInlineKeyboardButtonData(BtnDecline, CallbackDecline+matchID),
		),
	)
}
