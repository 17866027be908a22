// Package config manages the ytrelay YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ytrelay/internal/storage"
)

// Config holds all application configuration.
type Config struct {
	YouTube  YouTubeConfig  `yaml:"youtube"`
	WeChat   WeChatConfig   `yaml:"wechat"`
	Telegram TelegramConfig `yaml:"telegram"`
	App      AppConfig      `yaml:"app"`
}

// Channel describes one YouTube channel to watch. Identity is the URL.
type Channel struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	DaysToCheck uint   `yaml:"days_to_check"`
	MaxVideos   uint   `yaml:"max_videos"`
}

// YouTubeConfig holds channel list and download settings.
type YouTubeConfig struct {
	Channels                 []Channel `yaml:"channels"`
	DownloadDir              string    `yaml:"download_dir"`
	PreferredResolution      string    `yaml:"preferred_resolution"`
	ConvertToMP3             bool      `yaml:"convert_to_mp3"`
	KeepVideoAfterConversion bool      `yaml:"keep_video_after_conversion"`
}

// WeChatRecipient addresses a WeChat friend or group by display name.
type WeChatRecipient struct {
	Name    string `yaml:"name"`
	IsGroup bool   `yaml:"is_group"`
}

// WeChatConfig holds WeChat transport settings.
type WeChatConfig struct {
	Recipients           []WeChatRecipient `yaml:"recipients"`
	CachePath            string            `yaml:"cache_path"`
	SendMessageWithVideo bool              `yaml:"send_message_with_video"`
	MessageTemplate      string            `yaml:"message_template"`
}

// TelegramRecipient addresses a Telegram chat by its numeric ID.
// The name is for logs and config readability only.
type TelegramRecipient struct {
	ChatID string `yaml:"chat_id"`
	Name   string `yaml:"name"`
}

// TelegramConfig holds Telegram transport settings.
type TelegramConfig struct {
	BotToken             string              `yaml:"bot_token"`
	Recipients           []TelegramRecipient `yaml:"recipients"`
	SendMessageWithVideo bool                `yaml:"send_message_with_video"`
	MessageTemplate      string              `yaml:"message_template"`
}

// AppConfig holds process-wide settings.
type AppConfig struct {
	CheckIntervalHours uint   `yaml:"check_interval_hours"`
	LogLevel           string `yaml:"log_level"`
	LogFile            string `yaml:"log_file"`
}

const DefaultMessageTemplate = "New video from {channel}: {title}"

// Sentinel errors for config mutations.
var (
	ErrChannelExists   = errors.New("config: channel already exists")
	ErrRecipientExists = errors.New("config: recipient already exists")
)

// Default returns the configuration written on first run.
func Default() *Config {
	return &Config{
		YouTube: YouTubeConfig{
			Channels: []Channel{
				{
					Name:        "Example Channel",
					URL:         "https://www.youtube.com/@wongkim728",
					DaysToCheck: 7,
					MaxVideos:   3,
				},
			},
			DownloadDir:              "downloads",
			PreferredResolution:      "720p",
			ConvertToMP3:             true,
			KeepVideoAfterConversion: true,
		},
		WeChat: WeChatConfig{
			Recipients: []WeChatRecipient{
				{Name: "Friend Name", IsGroup: false},
			},
			CachePath:            "wechat_session.json",
			SendMessageWithVideo: true,
			MessageTemplate:      DefaultMessageTemplate,
		},
		Telegram: TelegramConfig{
			BotToken: "YOUR_BOT_TOKEN",
			Recipients: []TelegramRecipient{
				{ChatID: "CHAT_ID_1", Name: "Chat Name"},
			},
			SendMessageWithVideo: true,
			MessageTemplate:      DefaultMessageTemplate,
		},
		App: AppConfig{
			CheckIntervalHours: 24,
			LogLevel:           "INFO",
			LogFile:            "ytrelay.log",
		},
	}
}

// Load reads the configuration at path. A missing file is not an error:
// the defaults are written to path and returned. A file that exists but
// does not parse or validate is fatal.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			if err := cfg.Save(path); err != nil {
				return nil, fmt.Errorf("write default config: %w", err)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Unmarshal over the defaults so absent keys keep their documented
	// default instead of the zero value.
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path atomically.
func (c *Config) Save(path string) error {
	writer, err := storage.NewAtomicWriter(path)
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(c); err != nil {
		writer.Abort()
		return fmt.Errorf("encode config: %w", err)
	}
	if err := encoder.Close(); err != nil {
		writer.Abort()
		return fmt.Errorf("encode config: %w", err)
	}

	if err := writer.Commit(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	for i, ch := range c.YouTube.Channels {
		if ch.URL == "" {
			return fmt.Errorf("youtube.channels[%d]: url is required", i)
		}
	}
	if c.YouTube.DownloadDir == "" {
		return fmt.Errorf("youtube.download_dir is required")
	}
	if c.App.CheckIntervalHours == 0 {
		return fmt.Errorf("app.check_interval_hours must be positive")
	}
	switch c.App.LogLevel {
	case "", "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		return fmt.Errorf("app.log_level %q is not a known level", c.App.LogLevel)
	}
	return nil
}

// AddChannel appends a channel. Channels are identified by URL; adding a
// URL that is already configured returns ErrChannelExists.
func (c *Config) AddChannel(name, url string, daysToCheck, maxVideos uint) error {
	for _, ch := range c.YouTube.Channels {
		if ch.URL == url {
			return fmt.Errorf("%w: %s", ErrChannelExists, url)
		}
	}
	c.YouTube.Channels = append(c.YouTube.Channels, Channel{
		Name:        name,
		URL:         url,
		DaysToCheck: daysToCheck,
		MaxVideos:   maxVideos,
	})
	return nil
}

// AddWeChatRecipient appends a WeChat recipient, identified by name.
func (c *Config) AddWeChatRecipient(name string, isGroup bool) error {
	for _, r := range c.WeChat.Recipients {
		if r.Name == name {
			return fmt.Errorf("%w: %s", ErrRecipientExists, name)
		}
	}
	c.WeChat.Recipients = append(c.WeChat.Recipients, WeChatRecipient{
		Name:    name,
		IsGroup: isGroup,
	})
	return nil
}

// AddTelegramRecipient appends a Telegram recipient, identified by chat ID.
func (c *Config) AddTelegramRecipient(chatID, name string) error {
	for _, r := range c.Telegram.Recipients {
		if r.ChatID == chatID {
			return fmt.Errorf("%w: %s", ErrRecipientExists, chatID)
		}
	}
	c.Telegram.Recipients = append(c.Telegram.Recipients, TelegramRecipient{
		ChatID: chatID,
		Name:   name,
	})
	return nil
}
