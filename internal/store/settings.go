package store

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/logmailer/internal/config"
	"github.com/logmailer/internal/crypto"
	"github.com/logmailer/internal/model"
)

// OptionMailSettings is the option holding the encrypted SMTP settings.
const OptionMailSettings = "logmailer_mail_settings"

type optionReadWriter interface {
	Get(ctx context.Context, name, def string) (string, error)
	Update(ctx context.Context, name, value string) error
}

// MailSettingsStore keeps SMTP settings encrypted in the option table.
type MailSettingsStore struct {
	options optionReadWriter
	crypter *crypto.Crypter
	seed    *model.MailSettings
}

// NewMailSettingsStore returns a store that seeds from cfg on first load.
func NewMailSettingsStore(options optionReadWriter, crypter *crypto.Crypter, cfg *config.Config) *MailSettingsStore {
	return &MailSettingsStore{options: options, crypter: crypter, seed: settingsFromConfig(cfg)}
}

// Load decrypts and returns the current settings. Seeds from config if no option exists.
func (s *MailSettingsStore) Load(ctx context.Context) (*model.MailSettings, error) {
	data, err := s.options.Get(ctx, OptionMailSettings, "")
	if err != nil {
		return nil, err
	}
	if data == "" {
		defaults := *s.seed
		if err := s.Save(ctx, &defaults); err != nil {
			return nil, err
		}
		return &defaults, nil
	}

	plaintext, err := s.crypter.DecryptString(data)
	if err != nil {
		slog.Error("settings: decryption failed", "err", err)
		return nil, err
	}
	var settings model.MailSettings
	if err := json.Unmarshal(plaintext, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Save encrypts and persists settings.
func (s *MailSettingsStore) Save(ctx context.Context, settings *model.MailSettings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	ciphertext, err := s.crypter.EncryptString(raw)
	if err != nil {
		return err
	}
	return s.options.Update(ctx, OptionMailSettings, ciphertext)
}

func settingsFromConfig(cfg *config.Config) *model.MailSettings {
	port := cfg.SMTPPort
	if port == 0 {
		port = 587
	}
	return &model.MailSettings{
		SMTPHost:        cfg.SMTPHost,
		SMTPPort:        port,
		SMTPUser:        cfg.SMTPUser,
		SMTPPass:        cfg.SMTPPass,
		SMTPFromAddress: cfg.SMTPFromEmail,
		SMTPFromName:    cfg.SMTPFromName,
	}
}
