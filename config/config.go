package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/spachava753/giftex/exchange"
)

// ErrInvalidConfig wraps every validation failure from Load and Parse.
var ErrInvalidConfig = errors.New("config: invalid configuration")

var validate = validator.New()

// Person is one entry of the distribution section.
type Person struct {
	Name      string   `json:"name" validate:"required"`
	Email     string   `json:"email" validate:"omitempty,email"`
	Blacklist []string `json:"blacklist" validate:"dive,required"`
	Admin     bool     `json:"admin"`
	Test      bool     `json:"test"`
}

// Mailer holds the non-secret delivery settings.
type Mailer struct {
	SMTPHost     string `json:"smtp_host" validate:"omitempty,hostname|ip"`
	SMTPPort     int    `json:"smtp_port" validate:"omitempty,min=1,max=65535"`
	SMTPHelo     string `json:"smtp_helo"`
	SMTPSecurity string `json:"smtp_security" validate:"omitempty,oneof=tls starttls none"`
	SMTPAuth     string `json:"smtp_auth" validate:"omitempty,oneof=plain login none"`
	SenderName   string `json:"sender_name"`
	SenderEmail  string `json:"sender_email" validate:"omitempty,email"`
	Subject      string `json:"subject"`
	Template     string `json:"default_template"`
	IMAPAddress  string `json:"imap_address" validate:"omitempty,hostname_port"`
	IMAPMailbox  string `json:"imap_mailbox"`
	IMAPSecurity string `json:"imap_security" validate:"omitempty,oneof=tls none"`
}

// Logger holds run log settings.
type Logger struct {
	LogPath string `json:"log_path"`
}

// StateKeeper holds persistence settings.
type StateKeeper struct {
	Backend   string `json:"backend" validate:"omitempty,oneof=file sqlite badger"`
	StatePath string `json:"state_path"`
}

// File is the decoded configuration file.
type File struct {
	Distribution map[string]Person `json:"distribution" validate:"required,min=1,dive,keys,required,endkeys"`
	Mailer       Mailer            `json:"mailer"`
	Logger       Logger            `json:"logger"`
	StateKeeper  StateKeeper       `json:"statekeeper"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("config: reading %s failed: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a configuration document, applying defaults.
func Parse(data []byte) (File, error) {
	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return File{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := validate.Struct(file); err != nil {
		return File{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := file.checkReferences(); err != nil {
		return File{}, err
	}
	file.applyDefaults()
	return file, nil
}

func (f File) checkReferences() error {
	admins := lo.Filter(lo.Keys(f.Distribution), func(id string, _ int) bool {
		return f.Distribution[id].Admin
	})
	if len(admins) > 1 {
		slices.Sort(admins)
		return fmt.Errorf("%w: more than one admin (%s)", ErrInvalidConfig, strings.Join(admins, ", "))
	}
	for id, person := range f.Distribution {
		for _, other := range person.Blacklist {
			if _, ok := f.Distribution[other]; !ok {
				return fmt.Errorf("%w: %s blacklists unknown participant %q", ErrInvalidConfig, id, other)
			}
		}
	}
	return nil
}

func (f *File) applyDefaults() {
	if f.Mailer.SMTPPort == 0 {
		f.Mailer.SMTPPort = 587
	}
	if f.Mailer.SMTPSecurity == "" {
		f.Mailer.SMTPSecurity = "starttls"
	}
	if f.Mailer.SMTPAuth == "" {
		f.Mailer.SMTPAuth = "plain"
	}
	if f.Mailer.IMAPSecurity == "" {
		f.Mailer.IMAPSecurity = "tls"
	}
	if f.Mailer.IMAPMailbox == "" {
		f.Mailer.IMAPMailbox = "Gift Exchange"
	}
	if f.Logger.LogPath == "" {
		f.Logger.LogPath = "./log"
	}
	if f.StateKeeper.Backend == "" {
		f.StateKeeper.Backend = "file"
	}
	if f.StateKeeper.StatePath == "" {
		f.StateKeeper.StatePath = "./state"
	}
}

// People adapts the distribution section to the engine input.
func (f File) People() map[string]exchange.Attributes {
	return lo.MapValues(f.Distribution, func(p Person, _ string) exchange.Attributes {
		return exchange.Attributes{
			Name:      p.Name,
			Email:     strings.TrimSpace(p.Email),
			Blacklist: slices.Clone(p.Blacklist),
			Admin:     p.Admin,
			Test:      p.Test,
		}
	})
}
