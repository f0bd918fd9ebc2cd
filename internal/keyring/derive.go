// Package keyring turns the hardware-bound master secret into per-account
// signing keypairs. Derivation is the product's core correctness property:
// for a fixed (masterSeed, index) the output must be byte-identical across
// runs, devices and ceremonies. The info string version-namespaces the whole
// scheme; changing it re-keys every user and is a breaking change that must
// never happen silently.
package keyring

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/crypto/hkdf"
)

const (
	// MasterSeedLen is the exact secret length the hardware ceremony yields.
	MasterSeedLen = 32

	// schemeInfo namespaces the derivation scheme.
	schemeInfo = "seedframe-keyring-v1"
)

// ErrBadSeedLength rejects secrets that are not exactly MasterSeedLen bytes.
// Shorter or longer input is never truncated or padded.
var ErrBadSeedLength = fmt.Errorf("keyring: master seed must be %d bytes", MasterSeedLen)

// Expand is standard HKDF-SHA256 extract-and-expand.
func Expand(secret, salt, info []byte, length int) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, salt, info)
	out := make([]byte, length)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("hkdf expand: %w", err)
	}
	return out, nil
}

// accountSalt is the versioned derivation-path string for one account index.
func accountSalt(index uint32) []byte {
	return []byte(fmt.Sprintf("account-path:%d", index))
}

// DeriveAccountSeed expands the master seed into the 32-byte seed for one
// account index.
func DeriveAccountSeed(masterSeed []byte, index uint32) ([]byte, error) {
	if len(masterSeed) != MasterSeedLen {
		return nil, ErrBadSeedLength
	}
	return Expand(masterSeed, accountSalt(index), []byte(schemeInfo), 32)
}

// DeriveWalletAccount derives the ed25519 signing keypair at index.
func DeriveWalletAccount(masterSeed []byte, index uint32) (solana.PrivateKey, error) {
	seed, err := DeriveAccountSeed(masterSeed, index)
	if err != nil {
		return nil, err
	}
	key := solana.PrivateKey(ed25519.NewKeyFromSeed(seed))
	Zero(seed)
	return key, nil
}

// Zero wipes sensitive byte material in place.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
