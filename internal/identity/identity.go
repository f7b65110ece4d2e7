// Package identity handles loading, generating, and persisting authority
// keypairs (ED25519). Key files are PEM encoded PKCS8 with 0600 permissions.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// LoadOrCreateIdentity loads an existing identity or creates a new one
// from the given key path. A missing or empty key file is replaced with a
// freshly generated keypair.
func LoadOrCreateIdentity(keyPath string) (*Identity, error) {
	info, err := os.Stat(keyPath)
	if os.IsNotExist(err) {
		return Generate(keyPath)
	}
	if err != nil {
		return nil, err
	}

	if info.Size() == 0 {
		return Generate(keyPath)
	}

	return Load(keyPath)
}

// Load reads an existing key file. Unlike LoadOrCreateIdentity it never
// writes; clients use it so a typo in --key does not mint a new authority.
func Load(keyPath string) (*Identity, error) {
	privKey, err := loadKeyPair(keyPath)
	if err != nil {
		return nil, fmt.Errorf("load key %s: %w", keyPath, err)
	}
	return NewIdentity(privKey), nil
}

// Generate creates a new keypair and writes it to keyPath, replacing any
// existing file.
func Generate(keyPath string) (*Identity, error) {
	privKey, err := generateAndSaveKeyPair(keyPath)
	if err != nil {
		return nil, fmt.Errorf("generate key %s: %w", keyPath, err)
	}
	return NewIdentity(privKey), nil
}

// ErrInsecureKeyFile is returned by Load when group or other users can read
// the key file.
var ErrInsecureKeyFile = errors.New("key file is accessible by other users")

func generateAndSaveKeyPair(keyPath string) (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	data, err := MarshalPEM(priv)
	if err != nil {
		return nil, err
	}
	if err := writeKeyFile(keyPath, data); err != nil {
		return nil, err
	}
	return priv, nil
}

// writeKeyFile writes through a temp file in the same directory so a crash
// never leaves a truncated key behind.
func writeKeyFile(keyPath string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(keyPath), ".key-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), keyPath)
}

func loadKeyPair(keyPath string) (ed25519.PrivateKey, error) {
	info, err := os.Stat(keyPath)
	if err != nil {
		return nil, err
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o077 != 0 {
		return nil, fmt.Errorf("%w (mode %v, want 0600)", ErrInsecureKeyFile, info.Mode().Perm())
	}

	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}
	return ParsePEM(data)
}

// MarshalPEM encodes priv as a PKCS8 "PRIVATE KEY" block.
func MarshalPEM(priv ed25519.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// ParsePEM decodes the first PEM block of data as an ed25519 PKCS8 key.
func ParsePEM(data []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key is %T, want ed25519", key)
	}
	return priv, nil
}
