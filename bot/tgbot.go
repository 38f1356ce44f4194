package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"

	"ChatRelay/entity"
	"ChatRelay/internal/lib/sl"
	"ChatRelay/pkg/metrics"
)

const alertQueueSize = 64

// ChatLister provides the current chat list for the /chats command.
type ChatLister interface {
	Summarize(ctx context.Context) ([]entity.ConversationSummary, error)
}

// TgBot sends operator alerts to a single Telegram admin chat.
type TgBot struct {
	log         *slog.Logger
	api         *tgbotapi.Bot
	botUsername string
	adminId     int64
	chats       ChatLister
	alerts      chan string
}

func NewTgBot(botName, apiKey string, adminId int64, log *slog.Logger) (*TgBot, error) {
	tgBot := &TgBot{
		log:         log.With(sl.Module("tgbot")),
		adminId:     adminId,
		botUsername: botName,
		alerts:      make(chan string, alertQueueSize),
	}

	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	tgBot.api = api

	return tgBot, nil
}

func (t *TgBot) SetChatLister(chats ChatLister) {
	t.chats = chats
}

// Start polls for updates and blocks.
func (t *TgBot) Start() error {
	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(b *tgbotapi.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			t.log.Error("handling update", sl.Err(err))
			return ext.DispatcherActionNoop
		},
		MaxRoutines: ext.DefaultMaxRoutines,
	})
	dispatcher.AddHandler(handlers.NewCommand("chats", t.listChats))

	updater := ext.NewUpdater(dispatcher, nil)
	err := updater.StartPolling(t.api, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &tgbotapi.GetUpdatesOpts{
			Timeout: 9,
			RequestOpts: &tgbotapi.RequestOpts{
				Timeout: time.Second * 10,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("start polling: %w", err)
	}

	updater.Idle()
	return nil
}

// SendMessage queues an alert for the admin chat. It never blocks; alerts
// are dropped when the queue is full.
func (t *TgBot) SendMessage(msg string) {
	t.enqueue(msg)
}

// NotifyNewChat tells the operator that a new conversation was started.
func (t *TgBot) NotifyNewChat(userID, displayName string) {
	t.enqueue(fmt.Sprintf("New chat: %s (%s)", displayName, userID))
}

func (t *TgBot) enqueue(msg string) {
	select {
	case t.alerts <- msg:
	default:
		// Not logged: error records come back here.
		metrics.RecordAlertDropped()
	}
}

// RunAlerts sends queued alerts until ctx is done. Should be called in a goroutine.
func (t *TgBot) RunAlerts(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-t.alerts:
			t.plainResponse(t.adminId, msg)
		}
	}
}

func (t *TgBot) listChats(b *tgbotapi.Bot, ctx *ext.Context) error {
	if ctx.EffectiveUser == nil || ctx.EffectiveUser.Id != t.adminId {
		return nil
	}
	if t.chats == nil {
		t.plainResponse(t.adminId, "chat list not available")
		return nil
	}

	summaries, err := t.chats.Summarize(context.Background())
	if err != nil {
		return fmt.Errorf("summarize chats: %w", err)
	}
	t.plainResponse(t.adminId, FormatChatList(summaries))
	return nil
}

// FormatChatList renders open chats, most recent first.
func FormatChatList(summaries []entity.ConversationSummary) string {
	var b strings.Builder
	open := 0
	for _, s := range summaries {
		if s.IsClosed {
			continue
		}
		open++
		status := "offline"
		if s.Online {
			status = "online"
		}
		b.WriteString(fmt.Sprintf("%d. %s [%s] %s\n", open, s.DisplayName, status, s.LastActivityTime.Format("02.01 15:04")))
	}
	if open == 0 {
		return "no open chats"
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (t *TgBot) plainResponse(chatId int64, text string) {
	sanitized := sanitize(text)
	if sanitized == "" {
		t.log.With(
			slog.Int64("id", chatId),
		).Debug("empty message")
		return
	}

	_, err := t.api.SendMessage(chatId, sanitized, &tgbotapi.SendMessageOpts{
		ParseMode: "MarkdownV2",
	})
	if err != nil {
		// Retry as plain text.
		_, err = t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{})
		if err != nil {
			// Error records are forwarded to this bot, so this stays at Warn.
			t.log.With(
				slog.Int64("id", chatId),
			).Warn("sending message", sl.Err(err))
		}
	}
}

// sanitize escapes MarkdownV2 reserved characters.
func sanitize(input string) string {
	const reservedChars = "\\`_{}#+-.!|()[]*~>=<"

	var b strings.Builder
	for _, char := range input {
		if strings.ContainsRune(reservedChars, char) {
			b.WriteRune('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
