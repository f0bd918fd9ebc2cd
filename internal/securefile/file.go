// Package securefile provides encrypted JSON file read/write with atomic
// writes, plus config-path resolution. Argon2id for KDF, XChaCha20-Poly1305
// for AEAD. seedframe uses it for the software authenticator's device secret;
// the credential handle and other non-secret state stay in plain JSON.
package securefile

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrInvalidPasswordOrCorrupt is returned when decryption fails. Kept
// generic so the error shape leaks nothing about which part failed.
var ErrInvalidPasswordOrCorrupt = errors.New("invalid password or corrupted file")

// envelope is the on-disk encryption envelope.
type envelope struct {
	Version int `json:"version"`

	ArgonTime    uint32 `json:"argon_time"`
	ArgonMemory  uint32 `json:"argon_memory_kib"`
	ArgonThreads uint8  `json:"argon_threads"`
	ArgonKeyLen  uint32 `json:"argon_key_len"`

	SaltB64  string `json:"salt_b64"`
	NonceB64 string `json:"nonce_b64"`
	CTB64    string `json:"ct_b64"`
}

// Defaults tuned for a desktop/laptop host. Memory is KiB.
var defaultKDF = envelope{
	Version:      1,
	ArgonTime:    2,
	ArgonMemory:  64 * 1024,
	ArgonThreads: 1,
	ArgonKeyLen:  32,
}

// WriteEncryptedJSON marshals v, encrypts it under password, and writes it
// atomically to path with 0600/0700 permissions.
func WriteEncryptedJSON[T any](path string, v T, password, aad []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}

	plain, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("rand salt: %w", err)
	}

	kdf := defaultKDF
	key := argon2.IDKey(password, salt, kdf.ArgonTime, kdf.ArgonMemory, kdf.ArgonThreads, kdf.ArgonKeyLen)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return fmt.Errorf("aead: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("rand nonce: %w", err)
	}

	out := kdf
	out.SaltB64 = base64.StdEncoding.EncodeToString(salt)
	out.NonceB64 = base64.StdEncoding.EncodeToString(nonce)
	out.CTB64 = base64.StdEncoding.EncodeToString(aead.Seal(nil, nonce, plain, aad))

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal enc file: %w", err)
	}
	return atomicWriteFile(path, b, 0o600)
}

// ReadEncryptedJSON reads path, decrypts it under password, and unmarshals
// the plaintext into T.
func ReadEncryptedJSON[T any](path string, password, aad []byte) (T, error) {
	var zero T

	b, err := os.ReadFile(path)
	if err != nil {
		return zero, err
	}

	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return zero, ErrInvalidPasswordOrCorrupt
	}
	if env.Version != 1 {
		return zero, fmt.Errorf("unsupported envelope version: %d", env.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(env.SaltB64)
	if err != nil {
		return zero, ErrInvalidPasswordOrCorrupt
	}
	nonce, err := base64.StdEncoding.DecodeString(env.NonceB64)
	if err != nil {
		return zero, ErrInvalidPasswordOrCorrupt
	}
	ct, err := base64.StdEncoding.DecodeString(env.CTB64)
	if err != nil {
		return zero, ErrInvalidPasswordOrCorrupt
	}

	key := argon2.IDKey(password, salt, env.ArgonTime, env.ArgonMemory, env.ArgonThreads, env.ArgonKeyLen)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return zero, fmt.Errorf("aead: %w", err)
	}

	plain, err := aead.Open(nil, nonce, ct, aad)
	if err != nil {
		return zero, ErrInvalidPasswordOrCorrupt
	}

	var v T
	if err := json.Unmarshal(plain, &v); err != nil {
		return zero, ErrInvalidPasswordOrCorrupt
	}
	return v, nil
}

// ConfigPathCandidates lists candidate locations for a config/state file,
// most preferred first. The first entry is the canonical write path.
func ConfigPathCandidates(app, filename string) ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("user home dir: %w", err)
	}
	return []string{
		filepath.Join(home, ".config", app, filename),
		filepath.Join(home, "."+app, filename),
	}, nil
}

func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
