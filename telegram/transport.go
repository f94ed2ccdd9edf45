// Package telegram is the chat side of the bot: a thin transport over the
// Telegram Bot API (text, photos, polls) and the long-poll update loop that
// routes incoming commands to the game engine and the oracles.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Transport sends messages, photos and polls to Telegram chats. It satisfies
// the game engine's transport interface.
type Transport struct {
	api *tgbotapi.BotAPI
}

// NewTransport wraps an authorized Bot API client.
func NewTransport(api *tgbotapi.BotAPI) *Transport {
	return &Transport{api: api}
}

// SendText sends a plain text message. The Bot API client has no context
// support; ctx is accepted for interface compatibility.
func (t *Transport) SendText(_ context.Context, chatID int64, text string) error {
	if _, err := t.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendPhoto sends an image by URL with a caption.
func (t *Transport) SendPhoto(_ context.Context, chatID int64, imageURL, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(imageURL))
	photo.Caption = caption
	if _, err := t.api.Send(photo); err != nil {
		return fmt.Errorf("send photo: %w", err)
	}
	return nil
}

// CreatePoll creates a non-anonymous two-option poll and returns the poll
// message id.
func (t *Transport) CreatePoll(_ context.Context, chatID int64, question string, options []string) (int, error) {
	poll := tgbotapi.NewPoll(chatID, question, options...)
	poll.IsAnonymous = false
	poll.AllowsMultipleAnswers = false
	msg, err := t.api.Send(poll)
	if err != nil {
		return 0, fmt.Errorf("send poll: %w", err)
	}
	return msg.MessageID, nil
}
