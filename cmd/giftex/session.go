package main

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/spf13/afero"

	"github.com/spachava753/giftex/config"
	"github.com/spachava753/giftex/internal/app"
	"github.com/spachava753/giftex/mailer"
	"github.com/spachava753/giftex/runlog"
	"github.com/spachava753/giftex/state"
)

// session is everything one command invocation needs.
type session struct {
	fs       afero.Fs
	settings config.Settings
	file     config.File
	recorder *runlog.Recorder
	store    state.Store
	template *mailer.Template
	app      *app.App
}

// open loads settings and configuration and opens the state store. With
// dryRun messages are printed to stdout instead of being sent.
func (c *cli) open(dryRun bool) (*session, error) {
	settings, err := config.LoadSettings()
	if err != nil {
		return nil, err
	}
	path := c.configPath
	if path == "" {
		path = settings.ConfigPath
	}
	file, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	var console = c.stderr
	if !c.verbose {
		console = nil
	}
	recorder := runlog.New(settings.Level(), console)
	log := recorder.Logger()
	log.Debug("configuration loaded", "component", "main", "path", path, "participants", len(file.Distribution))

	fs := afero.NewOsFs()
	tmpl, err := c.loadTemplate(fs, settings, file)
	if err != nil {
		return nil, err
	}

	store, err := state.Open(state.Options{
		Backend: state.Backend(file.StateKeeper.Backend),
		Path:    file.StateKeeper.StatePath,
		Fs:      fs,
	})
	if err != nil {
		return nil, err
	}

	s := &session{
		fs:       fs,
		settings: settings,
		file:     file,
		recorder: recorder,
		store:    store,
		template: tmpl,
	}
	s.app = &app.App{
		Store:  store,
		People: file.People(),
		Logger: log,
		Senders: func(mode mailer.Mode) (app.Sender, error) {
			return s.sender(mode, dryRun, c)
		},
	}
	return s, nil
}

func (c *cli) loadTemplate(fs afero.Fs, settings config.Settings, file config.File) (*mailer.Template, error) {
	path := c.templatePath
	if path == "" {
		path = settings.TemplatePath
	}
	if path == "" {
		path = file.Mailer.Template
	}
	if path == "" {
		return mailer.DefaultTemplate(), nil
	}
	// The subject setting is only used by templates without a subject block.
	return mailer.LoadTemplate(fs, path, file.Mailer.Subject)
}

func (s *session) sender(mode mailer.Mode, dryRun bool, c *cli) (app.Sender, error) {
	opts := mailer.Options{
		Template: s.template,
		Sender:   s.senderAddress(),
		Mode:     mode,
		RunID:    s.recorder.RunID(),
		Logger:   s.recorder.Logger(),
	}

	if dryRun {
		opts.Transport = mailer.NewDisplayTransport(c.stdout)
	} else {
		transport, err := s.smtpTransport()
		if err != nil {
			return nil, err
		}
		opts.Transport = transport
		// Rehearsals are not archived.
		if mode != mailer.ModeTest && s.file.Mailer.IMAPAddress != "" {
			archiver, err := s.imapArchiver()
			if err != nil {
				return nil, err
			}
			opts.Archiver = archiver
		}
	}

	m, err := mailer.New(opts)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *session) senderAddress() mail.Address {
	address := s.file.Mailer.SenderEmail
	if address == "" {
		address = s.settings.SMTPUsername
	}
	return mail.Address{Name: s.file.Mailer.SenderName, Address: address}
}

func (s *session) smtpTransport() (*mailer.SMTPTransport, error) {
	cfg := s.file.Mailer
	transport, err := mailer.NewSMTPTransport(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Helo:     cfg.SMTPHelo,
		Security: mailer.Security(cfg.SMTPSecurity),
		Auth:     mailer.AuthMechanism(cfg.SMTPAuth),
		Username: s.settings.SMTPUsername,
		Password: s.settings.SMTPPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring smtp (use --dry-run to print messages instead): %w", err)
	}
	return transport, nil
}

func (s *session) imapArchiver() (*mailer.IMAPArchiver, error) {
	username, password := s.settings.IMAPUsername, s.settings.IMAPPassword
	if strings.TrimSpace(username) == "" {
		username, password = s.settings.SMTPUsername, s.settings.SMTPPassword
	}
	return mailer.NewIMAPArchiver(mailer.IMAPConfig{
		Address:  s.file.Mailer.IMAPAddress,
		Mailbox:  s.file.Mailer.IMAPMailbox,
		Username: username,
		Password: password,
		TLS:      s.file.Mailer.IMAPSecurity == "tls",
	})
}
