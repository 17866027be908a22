package messenger

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ytrelay/internal/config"
)

// Telegram delivers messages and files through the Telegram Bot API.
type Telegram struct {
	bot        *tgbotapi.BotAPI
	recipients []Recipient
	logger     *slog.Logger
}

// NewTelegram authenticates the bot token and builds the recipient list
// from configuration.
func NewTelegram(token string, recipients []config.TelegramRecipient, logger *slog.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	logger.Info("telegram bot authorized", slog.String("account", bot.Self.UserName))

	rs := make([]Recipient, 0, len(recipients))
	for _, r := range recipients {
		name := r.Name
		if name == "" {
			name = r.ChatID
		}
		rs = append(rs, Recipient{ID: r.ChatID, Name: name})
	}

	return &Telegram{bot: bot, recipients: rs, logger: logger}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Recipients() []Recipient { return t.recipients }

// SendMessage sends a plain text message to the chat.
func (t *Telegram) SendMessage(ctx context.Context, r Recipient, text string) error {
	if err := ctx.Err(); err != nil {
		return &SendError{Backend: t.Name(), Recipient: r.Name, Err: err}
	}

	chatID, err := parseChatID(r.ID)
	if err != nil {
		return &SendError{Backend: t.Name(), Recipient: r.Name, Err: err}
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		return &SendError{Backend: t.Name(), Recipient: r.Name, Err: err}
	}
	return nil
}

// SendFile uploads the artifact, picking the media type from the file
// extension so Telegram clients render an inline player where possible.
func (t *Telegram) SendFile(ctx context.Context, r Recipient, path string) error {
	if err := ctx.Err(); err != nil {
		return &SendError{Backend: t.Name(), Recipient: r.Name, Err: err}
	}

	chatID, err := parseChatID(r.ID)
	if err != nil {
		return &SendError{Backend: t.Name(), Recipient: r.Name, Err: err}
	}

	if _, err := t.bot.Send(fileChattable(chatID, path)); err != nil {
		return &SendError{Backend: t.Name(), Recipient: r.Name, Err: err}
	}
	return nil
}

// fileChattable picks the upload type from the file extension so clients
// render an inline player for media files.
func fileChattable(chatID int64, path string) tgbotapi.Chattable {
	file := tgbotapi.FilePath(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3", ".m4a", ".ogg", ".flac":
		return tgbotapi.NewAudio(chatID, file)
	case ".mp4", ".mkv", ".webm", ".mov":
		return tgbotapi.NewVideo(chatID, file)
	default:
		return tgbotapi.NewDocument(chatID, file)
	}
}

func parseChatID(id string) (int64, error) {
	chatID, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidChatID, id)
	}
	return chatID, nil
}
