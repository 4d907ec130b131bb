package telegram

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vkrMiniApp/bot/internal/pkg/backendclient"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, errors.New("unexpected chattable")
	}
	f.sent = append(f.sent, msg)

	return tgbotapi.Message{}, nil
}

type fakeProvisioner struct {
	got     []backendclient.ChatProjectRequest
	project *backendclient.Project
	err     error
	panics  bool
}

func (f *fakeProvisioner) EnsureChatProject(_ context.Context, req backendclient.ChatProjectRequest) (*backendclient.Project, error) {
	if f.panics {
		panic("boom")
	}
	f.got = append(f.got, req)
	return f.project, f.err
}

var testCfg = Config{
	WebAppURL:        "https://app.example.com",
	BotUsername:      "@vkr_bot",
	MiniAppShortName: "/app/",
}

func newHandler(p *fakeProvisioner) (*Handler, *fakeSender) {
	sender := &fakeSender{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(log, sender, p, testCfg), sender
}

func command(text string, chat *tgbotapi.Chat) *tgbotapi.Message {
	length := len(text)
	for i, r := range text {
		if r == ' ' {
			length = i
			break
		}
	}

	return &tgbotapi.Message{
		Text:     text,
		Chat:     chat,
		From:     &tgbotapi.User{ID: 7, FirstName: "Ann", UserName: "ann"},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}},
	}
}

var (
	privateChat = &tgbotapi.Chat{ID: 7, Type: "private"}
	groupChat   = &tgbotapi.Chat{ID: -100, Type: "supergroup", Title: "Team"}
)

func TestStart_SendsWebAppButton(t *testing.T) {
	h, sender := newHandler(&fakeProvisioner{})

	h.HandleMessage(context.Background(), command("/start", privateChat))

	require.Len(t, sender.sent, 1)
	kb, ok := sender.sent[0].ReplyMarkup.(inlineKeyboard)
	require.True(t, ok)
	require.NotNil(t, kb.InlineKeyboard[0][0].WebApp)
	assert.Equal(t, "https://app.example.com", kb.InlineKeyboard[0][0].WebApp.URL)
}

func TestApp_PrivateChatSkipsBackend(t *testing.T) {
	p := &fakeProvisioner{}
	h, sender := newHandler(p)

	h.HandleMessage(context.Background(), command("/app", privateChat))

	assert.Empty(t, p.got)
	require.Len(t, sender.sent, 1)
	kb := sender.sent[0].ReplyMarkup.(inlineKeyboard)
	assert.NotNil(t, kb.InlineKeyboard[0][0].WebApp)
}

func TestApp_GroupIssuesDeepLink(t *testing.T) {
	p := &fakeProvisioner{project: &backendclient.Project{ID: 3, ProjectKey: "abc-123"}}
	h, sender := newHandler(p)

	h.HandleMessage(context.Background(), command("/app@vkr_bot", groupChat))

	require.Len(t, p.got, 1)
	assert.Equal(t, int64(-100), p.got[0].ChatID)
	assert.Equal(t, "supergroup", p.got[0].ChatType)
	assert.Equal(t, "Team", p.got[0].Title)
	require.NotNil(t, p.got[0].User)
	assert.Equal(t, int64(7), p.got[0].User.ID)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(-100), sender.sent[0].ChatID)
	kb := sender.sent[0].ReplyMarkup.(inlineKeyboard)
	assert.Nil(t, kb.InlineKeyboard[0][0].WebApp)
	assert.Equal(t, "https://t.me/vkr_bot/app?startapp=abc-123", kb.InlineKeyboard[0][0].URL)
}

func TestApp_UntitledGroupGetsDefaultTitle(t *testing.T) {
	p := &fakeProvisioner{project: &backendclient.Project{ProjectKey: "k"}}
	h, _ := newHandler(p)

	h.HandleMessage(context.Background(), command("/app", &tgbotapi.Chat{ID: -5, Type: "group"}))

	require.Len(t, p.got, 1)
	assert.Equal(t, defaultChatTitle, p.got[0].Title)
}

func TestApp_BackendFailureIsReported(t *testing.T) {
	p := &fakeProvisioner{err: errors.New("backend 503: not configured")}
	h, sender := newHandler(p)

	h.HandleMessage(context.Background(), command("/app", groupChat))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Could not prepare the project for this chat: backend 503: not configured", sender.sent[0].Text)
	assert.Nil(t, sender.sent[0].ReplyMarkup)
}

func TestHandleMessage_RecoversFromPanic(t *testing.T) {
	h, sender := newHandler(&fakeProvisioner{panics: true})

	assert.NotPanics(t, func() {
		h.HandleMessage(context.Background(), command("/app", groupChat))
	})
	assert.Empty(t, sender.sent)
}

func TestHandleMessage_IgnoresOtherMessages(t *testing.T) {
	p := &fakeProvisioner{}
	h, sender := newHandler(p)

	h.HandleMessage(context.Background(), &tgbotapi.Message{Text: "hello", Chat: groupChat})
	h.HandleMessage(context.Background(), command("/help", groupChat))
	h.HandleMessage(context.Background(), nil)

	assert.Empty(t, p.got)
	assert.Empty(t, sender.sent)
}

func TestBuildStartAppLink(t *testing.T) {
	tests := []struct {
		username, shortName, key, want string
	}{
		{"vkr_bot", "app", "k1", "https://t.me/vkr_bot/app?startapp=k1"},
		{"@vkr_bot", "/app/", "k1", "https://t.me/vkr_bot/app?startapp=k1"},
		{" @@vkr_bot ", "app", "a b", "https://t.me/vkr_bot/app?startapp=a+b"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, BuildStartAppLink(tt.username, tt.shortName, tt.key))
	}
}
