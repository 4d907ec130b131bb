package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"vkrMiniApp/bot/internal/pkg/backendclient"
	"vkrMiniApp/pkg/logger/sl"
)

const (
	openAppMessage   = "Open the app with the button below."
	groupLinkMessage = "Open the Mini App with the button below to join this chat's project."
	defaultChatTitle = "New project"
)

type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Provisioner interface {
	EnsureChatProject(ctx context.Context, req backendclient.ChatProjectRequest) (*backendclient.Project, error)
}

type Config struct {
	WebAppURL        string
	BotUsername      string
	MiniAppShortName string
}

type Handler struct {
	log      *slog.Logger
	bot      Sender
	projects Provisioner
	cfg      Config
}

func NewHandler(log *slog.Logger, bot Sender, projects Provisioner, cfg Config) *Handler {
	return &Handler{
		log:      log,
		bot:      bot,
		projects: projects,
		cfg:      cfg,
	}
}

// Start polls updates until ctx is cancelled.
func Start(ctx context.Context, log *slog.Logger, bot *tgbotapi.BotAPI, h *Handler) error {
	log.Info("authorized on account", slog.String("username", bot.Self.UserName))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := bot.GetUpdatesChan(u)
	defer bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}

			go h.HandleMessage(ctx, update.Message)
		}
	}
}

// HandleMessage answers /start and /app. A panic is logged and swallowed so
// one bad update cannot stop the polling loop.
func (h *Handler) HandleMessage(ctx context.Context, message *tgbotapi.Message) {
	const op = "telegram.HandleMessage"

	log := h.log.With(slog.String("op", op))

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while handling update",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	if message == nil || message.Chat == nil || !message.IsCommand() {
		return
	}

	log = log.With(
		slog.Int64("chat_id", message.Chat.ID),
		slog.String("command", message.Command()),
	)

	switch message.Command() {
	case "start":
		h.reply(log, message.Chat.ID, openAppMessage, webAppKeyboard(h.cfg.WebAppURL))
	case "app":
		h.handleApp(ctx, log, message)
	}
}

func (h *Handler) handleApp(ctx context.Context, log *slog.Logger, message *tgbotapi.Message) {
	if message.Chat.IsPrivate() {
		h.reply(log, message.Chat.ID, openAppMessage, webAppKeyboard(h.cfg.WebAppURL))
		return
	}

	title := message.Chat.Title
	if title == "" {
		title = defaultChatTitle
	}

	req := backendclient.ChatProjectRequest{
		ChatID:   message.Chat.ID,
		ChatType: message.Chat.Type,
		Title:    title,
	}
	if from := message.From; from != nil && !from.IsBot {
		req.User = &backendclient.User{
			ID:           from.ID,
			FirstName:    from.FirstName,
			LastName:     from.LastName,
			Username:     from.UserName,
			LanguageCode: from.LanguageCode,
		}
	}

	project, err := h.projects.EnsureChatProject(ctx, req)
	if err != nil {
		log.Error("failed to prepare chat project", sl.Err(err))
		h.reply(log, message.Chat.ID, fmt.Sprintf("Could not prepare the project for this chat: %v", err), nil)
		return
	}

	link := BuildStartAppLink(h.cfg.BotUsername, h.cfg.MiniAppShortName, project.ProjectKey)

	log.Info("chat project link issued", slog.Int64("project_id", project.ID))

	h.reply(log, message.Chat.ID, groupLinkMessage, urlKeyboard(link, openAppText))
}

func (h *Handler) reply(log *slog.Logger, chatID int64, text string, markup any) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}

	if _, err := h.bot.Send(msg); err != nil {
		log.Error("failed to send message", sl.Err(err))
	}
}
