package ceremony

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/seedframe-io/seedframe/internal/keyring"
	"github.com/seedframe-io/seedframe/internal/securefile"
)

const softDeviceAAD = "seedframe:softauth_device:v1"

// deviceFile is the encrypted-at-rest state of the software authenticator.
type deviceFile struct {
	DeviceSecretB64 string   `json:"device_secret_b64"`
	Handles         []string `json:"handles"`
}

// SoftAuthenticator emulates a platform authenticator in software for hosts
// without one. Its device secret lives in an argon2id-encrypted file; each
// credential's secret is derived from it so assertions are deterministic per
// handle, matching the hardware contract.
type SoftAuthenticator struct {
	path       string
	passphrase []byte
	state      deviceFile
}

// NewSoftAuthenticator opens (or initializes) the device file at path.
func NewSoftAuthenticator(path string, passphrase []byte) (*SoftAuthenticator, error) {
	a := &SoftAuthenticator{path: path, passphrase: append([]byte(nil), passphrase...)}

	state, err := securefile.ReadEncryptedJSON[deviceFile](path, a.passphrase, []byte(softDeviceAAD))
	switch {
	case err == nil:
		a.state = state
		return a, nil
	case errors.Is(err, os.ErrNotExist):
		secret := make([]byte, SecretLen)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate device secret: %w", err)
		}
		a.state = deviceFile{DeviceSecretB64: keyring.ToB64URL(secret)}
		keyring.Zero(secret)
		if err := a.persist(); err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("open device file: %w", err)
	}
}

func (a *SoftAuthenticator) persist() error {
	return securefile.WriteEncryptedJSON(a.path, a.state, a.passphrase, []byte(softDeviceAAD))
}

func (a *SoftAuthenticator) derive(handle string) ([]byte, error) {
	device, err := keyring.FromB64URL(a.state.DeviceSecretB64)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt device secret", ErrCeremonyFailed)
	}
	defer keyring.Zero(device)
	return keyring.Expand(device, []byte("credential:"+handle), []byte("seedframe-softauth-v1"), SecretLen)
}

// Register mints a fresh credential handle and returns its secret.
func (a *SoftAuthenticator) Register(ctx context.Context, user string) (string, []byte, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, ErrUserCancelled
	}
	_ = user // a hardware authenticator binds this; the soft one has a single owner

	handle := uuid.NewString()
	a.state.Handles = append(a.state.Handles, handle)
	if err := a.persist(); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrCeremonyFailed, err)
	}
	secret, err := a.derive(handle)
	if err != nil {
		return "", nil, err
	}
	return handle, secret, nil
}

// Assert re-derives the secret for a known handle. Unknown handles report
// ErrCredentialMissing. An empty handle picks the most recent credential,
// standing in for the hardware selection UI.
func (a *SoftAuthenticator) Assert(ctx context.Context, handle string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrUserCancelled
	}

	if handle == "" {
		if len(a.state.Handles) == 0 {
			return nil, ErrCredentialMissing
		}
		handle = a.state.Handles[len(a.state.Handles)-1]
	} else {
		known := false
		for _, h := range a.state.Handles {
			if h == handle {
				known = true
				break
			}
		}
		if !known {
			return nil, ErrCredentialMissing
		}
	}
	return a.derive(handle)
}

// Close wipes the in-memory passphrase.
func (a *SoftAuthenticator) Close() error {
	keyring.Zero(a.passphrase)
	return nil
}
