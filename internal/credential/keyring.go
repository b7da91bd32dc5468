// Package credential keeps the IMAP account password out of the config
// file. The platform keyring is the primary home; the encrypted file
// backend is the fallback for headless hosts where no secret service
// is running.
package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

const passwordKey = "mail-password"

var ringConfig = keyring.Config{
	ServiceName: "fieldsync",
	AllowedBackends: []keyring.BackendType{
		keyring.KeychainBackend,
		keyring.SecretServiceBackend,
		keyring.WinCredBackend,
		keyring.PassBackend,
		keyring.FileBackend,
	},
	FileDir:                  "~/.config/fieldsync/credentials",
	FilePasswordFunc:         keyring.FixedStringPrompt("fieldsync-file-key"),
	KeychainTrustApplication: true,
}

// MailPassword returns the stored IMAP password, or an error when no
// entry exists in any available backend.
func MailPassword() (string, error) {
	ring, err := keyring.Open(ringConfig)
	if err != nil {
		return "", fmt.Errorf("opening keyring: %w", err)
	}

	item, err := ring.Get(passwordKey)
	if err != nil {
		return "", fmt.Errorf("reading mail password: %w", err)
	}
	return string(item.Data), nil
}

// SetMailPassword stores or replaces the IMAP password.
func SetMailPassword(value string) error {
	ring, err := keyring.Open(ringConfig)
	if err != nil {
		return fmt.Errorf("opening keyring: %w", err)
	}

	if err := ring.Set(keyring.Item{
		Key:   passwordKey,
		Label: "fieldsync mail password",
		Data:  []byte(value),
	}); err != nil {
		return fmt.Errorf("storing mail password: %w", err)
	}
	return nil
}

// DeleteMailPassword removes the stored IMAP password. Deleting an
// entry that was never set is an error; the caller decides whether
// that matters.
func DeleteMailPassword() error {
	ring, err := keyring.Open(ringConfig)
	if err != nil {
		return fmt.Errorf("opening keyring: %w", err)
	}

	if err := ring.Remove(passwordKey); err != nil {
		return fmt.Errorf("deleting mail password: %w", err)
	}
	return nil
}
