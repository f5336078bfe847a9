package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Settings are read from the environment. Credentials only ever come from
// here, never from the configuration file.
type Settings struct {
	ConfigPath   string `env:"GIFTEX_CONFIG_PATH,default=./config/config.json"`
	TemplatePath string `env:"GIFTEX_TEMPLATE_PATH"`
	LogLevel     string `env:"GIFTEX_LOG_LEVEL,default=INFO"`
	SMTPUsername string `env:"GIFTEX_SMTP_USERNAME"`
	SMTPPassword string `env:"GIFTEX_SMTP_PASSWORD"`
	IMAPUsername string `env:"GIFTEX_IMAP_USERNAME"`
	IMAPPassword string `env:"GIFTEX_IMAP_PASSWORD"`
}

// LoadSettings loads an optional .env file from the working directory and
// then reads Settings from the process environment.
func LoadSettings(dotenv ...string) (Settings, error) {
	if err := godotenv.Load(dotenv...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("config: loading .env failed: %w", err)
	}

	var settings Settings
	if _, err := env.UnmarshalFromEnviron(&settings); err != nil {
		return Settings{}, fmt.Errorf("config: reading environment failed: %w", err)
	}
	settings.SMTPPassword = strings.ReplaceAll(settings.SMTPPassword, " ", "")
	return settings, nil
}

// Level parses LogLevel, falling back to info.
func (s Settings) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return level
}
