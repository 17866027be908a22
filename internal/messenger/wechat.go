package messenger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/eatmoreapple/openwechat"

	"ytrelay/internal/config"
)

// WeChat delivers messages and files through the WeChat web protocol.
//
// Login is interactive on first use (QR code scan); afterwards the hot
// reload cache lets the bot resume the session without rescanning.
type WeChat struct {
	bot        *openwechat.Bot
	self       *openwechat.Self
	storage    io.Closer
	recipients []Recipient
	logger     *slog.Logger
}

// NewWeChat logs in, reusing the session cached at cachePath when it is
// still valid. A failed login returns an error so the caller can degrade
// to download-only operation.
func NewWeChat(cachePath string, recipients []config.WeChatRecipient, logger *slog.Logger) (*WeChat, error) {
	bot := openwechat.DefaultBot(openwechat.Desktop)
	storage := openwechat.NewFileHotReloadStorage(cachePath)

	if err := bot.HotLogin(storage, openwechat.NewRetryLoginOption()); err != nil {
		storage.Close()
		return nil, fmt.Errorf("wechat login: %w", err)
	}

	self, err := bot.GetCurrentUser()
	if err != nil {
		bot.Logout()
		storage.Close()
		return nil, fmt.Errorf("wechat current user: %w", err)
	}
	logger.Info("wechat logged in", slog.String("account", self.NickName))

	rs := make([]Recipient, 0, len(recipients))
	for _, r := range recipients {
		rs = append(rs, Recipient{ID: r.Name, Name: r.Name, Group: r.IsGroup})
	}

	return &WeChat{
		bot:        bot,
		self:       self,
		storage:    storage,
		recipients: rs,
		logger:     logger,
	}, nil
}

func (w *WeChat) Name() string { return "wechat" }

func (w *WeChat) Recipients() []Recipient { return w.recipients }

// SendMessage sends a text message to the friend or group.
func (w *WeChat) SendMessage(ctx context.Context, r Recipient, text string) error {
	if err := ctx.Err(); err != nil {
		return &SendError{Backend: w.Name(), Recipient: r.Name, Err: err}
	}

	if r.Group {
		group, err := w.findGroup(r.ID)
		if err != nil {
			return &SendError{Backend: w.Name(), Recipient: r.Name, Err: err}
		}
		if _, err := group.SendText(text); err != nil {
			return &SendError{Backend: w.Name(), Recipient: r.Name, Err: err}
		}
		return nil
	}

	friend, err := w.findFriend(r.ID)
	if err != nil {
		return &SendError{Backend: w.Name(), Recipient: r.Name, Err: err}
	}
	if _, err := friend.SendText(text); err != nil {
		return &SendError{Backend: w.Name(), Recipient: r.Name, Err: err}
	}
	return nil
}

// SendFile uploads the artifact to the friend or group.
func (w *WeChat) SendFile(ctx context.Context, r Recipient, path string) error {
	if err := ctx.Err(); err != nil {
		return &SendError{Backend: w.Name(), Recipient: r.Name, Err: err}
	}

	f, err := os.Open(path)
	if err != nil {
		return &SendError{Backend: w.Name(), Recipient: r.Name, Err: err}
	}
	defer f.Close()

	if r.Group {
		group, err := w.findGroup(r.ID)
		if err != nil {
			return &SendError{Backend: w.Name(), Recipient: r.Name, Err: err}
		}
		if _, err := group.SendFile(f); err != nil {
			return &SendError{Backend: w.Name(), Recipient: r.Name, Err: err}
		}
		return nil
	}

	friend, err := w.findFriend(r.ID)
	if err != nil {
		return &SendError{Backend: w.Name(), Recipient: r.Name, Err: err}
	}
	if _, err := friend.SendFile(f); err != nil {
		return &SendError{Backend: w.Name(), Recipient: r.Name, Err: err}
	}
	return nil
}

// Close logs out and releases the session cache.
func (w *WeChat) Close() error {
	if w.bot != nil {
		if err := w.bot.Logout(); err != nil {
			w.logger.Warn("wechat logout failed", slog.Any("error", err))
		}
	}
	if w.storage != nil {
		return w.storage.Close()
	}
	return nil
}

func (w *WeChat) findFriend(name string) (*openwechat.Friend, error) {
	friends, err := w.self.Friends()
	if err != nil {
		return nil, err
	}
	matches := friends.SearchByNickName(1, name)
	if matches.Count() == 0 {
		return nil, fmt.Errorf("%w: friend %q", ErrRecipientNotFound, name)
	}
	return matches.First(), nil
}

func (w *WeChat) findGroup(name string) (*openwechat.Group, error) {
	groups, err := w.self.Groups()
	if err != nil {
		return nil, err
	}
	matches := groups.SearchByNickName(1, name)
	if matches.Count() == 0 {
		return nil, fmt.Errorf("%w: group %q", ErrRecipientNotFound, name)
	}
	return matches.First(), nil
}
