package config

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
)

const (
	encPrefix   = "age:"
	identityEnv = "FLORAL_AGE_IDENTITY"
)

// Vault encrypts API secrets at rest with an age X25519 identity.
type Vault struct {
	identity *age.X25519Identity
}

// NewVault loads the identity from FLORAL_AGE_IDENTITY, then from
// identityPath, and generates and persists a new one at identityPath
// on first run. An empty identityPath keeps a generated identity in memory only.
func NewVault(identityPath string) (*Vault, error) {
	if raw := strings.TrimSpace(os.Getenv(identityEnv)); raw != "" {
		identity, err := age.ParseX25519Identity(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", identityEnv, err)
		}
		return &Vault{identity: identity}, nil
	}

	if identityPath == "" {
		return NewEphemeralVault()
	}

	if data, err := os.ReadFile(identityPath); err == nil {
		identity, err := parseIdentityFile(data)
		if err != nil {
			return nil, fmt.Errorf("failed to load identity %s: %w", identityPath, err)
		}
		return &Vault{identity: identity}, nil
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("failed to generate identity: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(identityPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create identity directory: %w", err)
	}
	content := fmt.Sprintf("# created: floral\n# public key: %s\n%s\n", identity.Recipient(), identity)
	if err := os.WriteFile(identityPath, []byte(content), 0600); err != nil {
		return nil, fmt.Errorf("failed to write identity file: %w", err)
	}
	return &Vault{identity: identity}, nil
}

// NewEphemeralVault generates an identity that lives only as long as the process.
func NewEphemeralVault() (*Vault, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("failed to generate identity: %w", err)
	}
	return &Vault{identity: identity}, nil
}

func parseIdentityFile(data []byte) (*age.X25519Identity, error) {
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return age.ParseX25519Identity(line)
	}
	return nil, fmt.Errorf("no identity found in file")
}

// Recipient is the public half of the vault identity.
func (v *Vault) Recipient() string {
	return v.identity.Recipient().String()
}

// Encrypt returns "age:" followed by the base64 ciphertext. Empty stays empty.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, v.identity.Recipient())
	if err != nil {
		return "", fmt.Errorf("failed to create encryptor: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("failed to write plaintext: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close encryptor: %w", err)
	}
	return encPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decrypt reverses Encrypt. Values without the prefix are returned unchanged.
func (v *Vault) Decrypt(encrypted string) (string, error) {
	if encrypted == "" || !strings.HasPrefix(encrypted, encPrefix) {
		return encrypted, nil
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(encrypted, encPrefix))
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(data), v.identity)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read decrypted data: %w", err)
	}
	return string(plaintext), nil
}

// MaskSecret returns a masked version safe for API display: "****abcd"
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}

func isMasked(s string) bool {
	return strings.HasPrefix(s, "****")
}
