package app

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/quollhq/aegis/pkg/cryptox"
)

// sealKeyLength matches what cryptox.NewSealer accepts.
const sealKeyLength = cryptox.TokenSize256

// loadOrGenerateSealKey reads the TOTP sealing key from disk, generating a
// fresh one on first start. Losing this file orphans every sealed TOTP
// secret, so it must be backed up alongside the database.
func loadOrGenerateSealKey(path string) ([]byte, error) {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to prepare seal key directory: %w", err)
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		key := make([]byte, sealKeyLength)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate seal key: %w", err)
		}
		encoded := base64.RawURLEncoding.EncodeToString(key)
		if err := os.WriteFile(path, []byte(encoded), 0600); err != nil {
			return nil, fmt.Errorf("failed to write seal key: %w", err)
		}
		return key, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read seal key: %w", err)
	}

	key, err := base64.RawURLEncoding.DecodeString(string(raw))
	if err != nil {
		return nil, fmt.Errorf("seal key file is corrupt: %w", err)
	}
	if len(key) != sealKeyLength {
		return nil, fmt.Errorf("seal key must be %d bytes, got %d", sealKeyLength, len(key))
	}
	return key, nil
}
