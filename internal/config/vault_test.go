package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"
)

func TestVault_EncryptDecrypt(t *testing.T) {
	v, err := NewEphemeralVault()
	if err != nil {
		t.Fatalf("NewEphemeralVault: %v", err)
	}

	tests := []struct {
		name      string
		plaintext string
	}{
		{"api_key", "sk-abc123def456xyz"},
		{"empty", ""},
		{"long_key", "sk-proj-very-long-api-key-that-might-be-used-by-some-providers-1234567890"},
		{"special_chars", "sk-+/=!@#$%^&*()"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encrypted, err := v.Encrypt(tt.plaintext)
			if err != nil {
				t.Fatalf("Encrypt: %v", err)
			}

			if tt.plaintext == "" {
				if encrypted != "" {
					t.Fatal("expected empty encrypted for empty plaintext")
				}
				return
			}

			if !strings.HasPrefix(encrypted, "age:") {
				t.Fatalf("expected age: prefix, got %s", encrypted[:4])
			}
			if strings.Contains(encrypted, tt.plaintext) {
				t.Fatal("ciphertext leaks plaintext")
			}

			decrypted, err := v.Decrypt(encrypted)
			if err != nil {
				t.Fatalf("Decrypt: %v", err)
			}
			if decrypted != tt.plaintext {
				t.Fatalf("expected %q, got %q", tt.plaintext, decrypted)
			}
		})
	}
}

func TestVault_DecryptPlaintext(t *testing.T) {
	v, err := NewEphemeralVault()
	if err != nil {
		t.Fatalf("NewEphemeralVault: %v", err)
	}

	result, err := v.Decrypt("plain-text-value")
	if err != nil {
		t.Fatalf("Decrypt plain: %v", err)
	}
	if result != "plain-text-value" {
		t.Fatalf("expected plain-text-value, got %s", result)
	}
}

func TestVault_WrongIdentityFails(t *testing.T) {
	a, _ := NewEphemeralVault()
	b, _ := NewEphemeralVault()

	enc, err := a.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := b.Decrypt(enc); err == nil {
		t.Fatal("expected decryption with another identity to fail")
	}
}

func TestVault_PersistsIdentity(t *testing.T) {
	t.Setenv(identityEnv, "")
	path := filepath.Join(t.TempDir(), "keys", "identity.txt")

	first, err := NewVault(path)
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}
	enc, err := first.Encrypt("sk-persist")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("identity file not written: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("expected 0600, got %v", info.Mode().Perm())
	}

	second, err := NewVault(path)
	if err != nil {
		t.Fatalf("NewVault reload: %v", err)
	}
	if second.Recipient() != first.Recipient() {
		t.Fatal("reloaded identity differs")
	}
	got, err := second.Decrypt(enc)
	if err != nil || got != "sk-persist" {
		t.Fatalf("Decrypt after reload = %q, %v", got, err)
	}
}

func TestVault_IdentityFromEnv(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("GenerateX25519Identity: %v", err)
	}
	t.Setenv(identityEnv, identity.String())

	v, err := NewVault(filepath.Join(t.TempDir(), "unused.txt"))
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}
	if v.Recipient() != identity.Recipient().String() {
		t.Fatal("expected the environment identity to be used")
	}

	t.Setenv(identityEnv, "not-an-identity")
	if _, err := NewVault(""); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"ab", "****"},
		{"abcd", "****"},
		{"sk-abc123def", "****3def"},
		{"sk-proj-very-long-key-12345", "****2345"},
	}

	for _, tt := range tests {
		result := MaskSecret(tt.input)
		if result != tt.expected {
			t.Errorf("MaskSecret(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
