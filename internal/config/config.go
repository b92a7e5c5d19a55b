package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// IndexDisabled as BADGERDB_PATH turns the persistent link index off.
const IndexDisabled = "none"

// Config holds all configuration for the application.
// Values are read by viper from a config file or environment variables.
type Config struct {
	DiscordToken           string   `mapstructure:"DISCORD_TOKEN"`
	GuildID                uint64   `mapstructure:"GUILD_ID"`
	SourceChannelID        uint64   `mapstructure:"SOURCE_CHANNEL_ID"`
	DestinationChannelName string   `mapstructure:"DESTINATION_CHANNEL_NAME"`
	DestinationCategoryID  uint64   `mapstructure:"DESTINATION_CATEGORY_ID"`
	FileUploadLimit        uint32   `mapstructure:"FILE_UPLOAD_LIMIT"`
	ApprovalEmoji          string   `mapstructure:"APPROVAL_EMOJI"`
	AdminUserIDs           []uint64 `mapstructure:"ADMIN_USER_IDS"`
	HistoryScanLimit       int      `mapstructure:"HISTORY_SCAN_LIMIT"`
	DownloadConcurrency    int      `mapstructure:"DOWNLOAD_CONCURRENCY"`
	BadgerDBPath           string   `mapstructure:"BADGERDB_PATH"`
	LogLevel               string   `mapstructure:"LOG_LEVEL"`

	AMQPURL      string `mapstructure:"AMQP_URL"`
	AMQPExchange string `mapstructure:"AMQP_EXCHANGE"`

	TelegramBotToken    string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	TelegramAlertChatID int64  `mapstructure:"TELEGRAM_ALERT_CHAT_ID"`
}

var defaults = map[string]any{
	"DISCORD_TOKEN":            "",
	"GUILD_ID":                 0,
	"SOURCE_CHANNEL_ID":        0,
	"DESTINATION_CHANNEL_NAME": "leaks",
	"DESTINATION_CATEGORY_ID":  0,
	"FILE_UPLOAD_LIMIT":        10 * 1024 * 1024,
	"APPROVAL_EMOJI":           "✅",
	"ADMIN_USER_IDS":           []uint64{},
	"HISTORY_SCAN_LIMIT":       0,
	"DOWNLOAD_CONCURRENCY":     4,
	"BADGERDB_PATH":            "./badger_data",
	"LOG_LEVEL":                "info",
	"AMQP_URL":                 "",
	"AMQP_EXCHANGE":            "relay",
	"TELEGRAM_BOT_TOKEN":       "",
	"TELEGRAM_ALERT_CHAT_ID":   0,
}

// LoadConfig reads configuration from file or environment variables.
// The config file is optional; every key can come from the environment.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Env vars are only consulted for keys viper knows about.
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	err = v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	err = v.Unmarshal(&config)
	if err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate checks that every required key is present and sane.
func (c Config) Validate() error {
	switch {
	case c.DiscordToken == "":
		return fmt.Errorf("DISCORD_TOKEN is not set")
	case c.GuildID == 0:
		return fmt.Errorf("GUILD_ID is not set")
	case c.SourceChannelID == 0:
		return fmt.Errorf("SOURCE_CHANNEL_ID is not set")
	case c.DestinationCategoryID == 0:
		return fmt.Errorf("DESTINATION_CATEGORY_ID is not set")
	case c.DestinationChannelName == "":
		return fmt.Errorf("DESTINATION_CHANNEL_NAME is empty")
	case c.ApprovalEmoji == "":
		return fmt.Errorf("APPROVAL_EMOJI is empty")
	case c.FileUploadLimit == 0:
		return fmt.Errorf("FILE_UPLOAD_LIMIT must be > 0")
	case c.HistoryScanLimit < 0:
		return fmt.Errorf("HISTORY_SCAN_LIMIT must be >= 0, got %d", c.HistoryScanLimit)
	case c.DownloadConcurrency < 1:
		return fmt.Errorf("DOWNLOAD_CONCURRENCY must be >= 1, got %d", c.DownloadConcurrency)
	case (c.TelegramBotToken == "") != (c.TelegramAlertChatID == 0):
		return fmt.Errorf("TELEGRAM_BOT_TOKEN and TELEGRAM_ALERT_CHAT_ID must be set together")
	}
	return nil
}

// IndexEnabled reports whether the persistent link index should be opened.
func (c Config) IndexEnabled() bool {
	return c.BadgerDBPath != "" && c.BadgerDBPath != IndexDisabled
}

// IsAdmin reports whether userID may run administrative commands.
func (c Config) IsAdmin(userID uint64) bool {
	for _, id := range c.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
