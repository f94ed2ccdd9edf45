package telegram

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/okralab/optionbot/testutil"
)

func newTestTransport(t *testing.T) (*Transport, *testutil.MockTelegramServer) {
	t.Helper()
	mock := testutil.NewMockTelegramServer(t)
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint("test-token", mock.Endpoint())
	if err != nil {
		t.Fatalf("bot api init: %v", err)
	}
	return NewTransport(api), mock
}

func TestSendText(t *testing.T) {
	tr, mock := newTestTransport(t)
	if err := tr.SendText(context.Background(), 42, "hello"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	reqs := mock.Requests("sendMessage")
	if len(reqs) != 1 {
		t.Fatalf("sendMessage requests = %d, want 1", len(reqs))
	}
	if got := reqs[0].Get("chat_id"); got != "42" {
		t.Errorf("chat_id = %q, want 42", got)
	}
	if got := reqs[0].Get("text"); got != "hello" {
		t.Errorf("text = %q, want hello", got)
	}
}

func TestSendTextFailure(t *testing.T) {
	tr, mock := newTestTransport(t)
	mock.FailMethod("sendMessage", "chat not found")
	if err := tr.SendText(context.Background(), 42, "hello"); err == nil {
		t.Fatal("expected error from failing sendMessage")
	}
}

func TestCreatePollNonAnonymous(t *testing.T) {
	tr, mock := newTestTransport(t)
	msgID, err := tr.CreatePoll(context.Background(), 42, "Higher or lower?", []string{"↗️ Higher", "↘️ Lower"})
	if err != nil {
		t.Fatalf("CreatePoll: %v", err)
	}
	if msgID == 0 {
		t.Error("expected non-zero poll message id")
	}
	reqs := mock.Requests("sendPoll")
	if len(reqs) != 1 {
		t.Fatalf("sendPoll requests = %d, want 1", len(reqs))
	}
	if got := reqs[0].Get("is_anonymous"); got != "false" {
		t.Errorf("is_anonymous = %q, want false (votes must be visible)", got)
	}
	if got := reqs[0].Get("question"); got != "Higher or lower?" {
		t.Errorf("question = %q", got)
	}
}

func TestSendPhoto(t *testing.T) {
	tr, mock := newTestTransport(t)
	if err := tr.SendPhoto(context.Background(), 42, "https://img.example/cat.png", "a cat"); err != nil {
		t.Fatalf("SendPhoto: %v", err)
	}
	reqs := mock.Requests("sendPhoto")
	if len(reqs) != 1 {
		t.Fatalf("sendPhoto requests = %d, want 1", len(reqs))
	}
	if got := reqs[0].Get("caption"); got != "a cat" {
		t.Errorf("caption = %q, want a cat", got)
	}
}
