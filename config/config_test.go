package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"

	"github.com/spachava753/giftex/exchange"
)

const sampleConfig = `{
  "distribution": {
    "ann": {"name": "Ann", "email": "ann@example.com", "admin": true},
    "bob": {"name": "Bob", "email": "bob@example.com", "blacklist": ["cat"]},
    "cat": {"name": "Cat", "email": "", "blacklist": ["bob"], "test": true}
  },
  "mailer": {
    "smtp_host": "smtp.example.com",
    "sender_name": "Santa",
    "sender_email": "santa@example.com"
  },
  "statekeeper": {"backend": "sqlite", "state_path": "./state/giftex.db"}
}`

func TestParse(t *testing.T) {
	file, err := Parse([]byte(sampleConfig))
	be.Err(t, err, nil)
	be.Equal(t, len(file.Distribution), 3)
	be.Equal(t, file.Mailer.SMTPPort, 587)
	be.Equal(t, file.Mailer.SMTPSecurity, "starttls")
	be.Equal(t, file.Mailer.SMTPAuth, "plain")
	be.Equal(t, file.Logger.LogPath, "./log")
	be.Equal(t, file.StateKeeper.Backend, "sqlite")
	be.Equal(t, file.StateKeeper.StatePath, "./state/giftex.db")

	people := file.People()
	be.Equal(t, people["bob"], exchange.Attributes{
		Name:      "Bob",
		Email:     "bob@example.com",
		Blacklist: []string{"cat"},
	})
	be.Equal(t, people["ann"].Admin, true)
	be.Equal(t, people["cat"].Test, true)
}

func TestPeopleTrimsEmail(t *testing.T) {
	file := File{Distribution: map[string]Person{
		"ann": {Name: "Ann", Email: " ann@example.com\n"},
	}}
	be.Equal(t, file.People()["ann"].Email, "ann@example.com")
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"malformed":         `{"distribution": `,
		"empty":             `{"distribution": {}}`,
		"missing name":      `{"distribution": {"ann": {"email": "ann@example.com"}}}`,
		"bad email":         `{"distribution": {"ann": {"name": "Ann", "email": "nope"}}}`,
		"unknown blacklist": `{"distribution": {"ann": {"name": "Ann", "blacklist": ["zed"]}}}`,
		"two admins":        `{"distribution": {"ann": {"name": "Ann", "admin": true}, "bob": {"name": "Bob", "admin": true}}}`,
		"bad backend":       `{"distribution": {"ann": {"name": "Ann"}}, "statekeeper": {"backend": "mongo"}}`,
		"bad security":      `{"distribution": {"ann": {"name": "Ann"}}, "mailer": {"smtp_security": "ssl3"}}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			be.Err(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	be.Err(t, os.WriteFile(path, []byte(sampleConfig), 0o600), nil)

	file, err := Load(path)
	be.Err(t, err, nil)
	be.Equal(t, file.Mailer.SenderName, "Santa")

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	be.Err(t, err, os.ErrNotExist)
}

func TestLoadSettings(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GIFTEX_CONFIG_PATH", "/etc/giftex.json")
	t.Setenv("GIFTEX_LOG_LEVEL", "debug")
	t.Setenv("GIFTEX_SMTP_USERNAME", "santa@example.com")
	t.Setenv("GIFTEX_SMTP_PASSWORD", "abcd efgh ijkl mnop")

	settings, err := LoadSettings()
	be.Err(t, err, nil)
	be.Equal(t, settings.ConfigPath, "/etc/giftex.json")
	be.Equal(t, settings.SMTPUsername, "santa@example.com")
	be.Equal(t, settings.SMTPPassword, "abcdefghijklmnop")
	be.Equal(t, settings.Level(), slog.LevelDebug)
}

func TestLoadSettingsFromDotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "giftex.env")
	be.Err(t, os.WriteFile(path, []byte("GIFTEX_IMAP_USERNAME=archive@example.com\n"), 0o600), nil)
	t.Setenv("GIFTEX_IMAP_USERNAME", "")
	os.Unsetenv("GIFTEX_IMAP_USERNAME")

	settings, err := LoadSettings(path)
	be.Err(t, err, nil)
	be.Equal(t, settings.IMAPUsername, "archive@example.com")
	be.Equal(t, settings.ConfigPath, "./config/config.json")
}

func TestSettingsLevelFallback(t *testing.T) {
	be.Equal(t, Settings{LogLevel: "chatty"}.Level(), slog.LevelInfo)
	be.Equal(t, Settings{LogLevel: "WARN"}.Level(), slog.LevelWarn)
}
