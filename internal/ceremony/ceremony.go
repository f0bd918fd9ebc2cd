// Package ceremony abstracts the hardware authentication ceremony: a
// user-present interaction that yields 32 bytes of hardware-bound secret
// entropy for a credential, without ever exposing the authenticator's own
// key material. Failures are classified by enumerated errors, never by
// matching error text; callers must treat anything that is not
// ErrCredentialMissing or ErrUserCancelled as retryable.
package ceremony

import (
	"context"
	"errors"
)

// SecretLen is the size of the derivation-capable secret every ceremony
// yields.
const SecretLen = 32

var (
	// ErrCredentialMissing means the authenticator no longer knows the
	// requested credential. This is the only error that may trigger
	// re-provisioning.
	ErrCredentialMissing = errors.New("ceremony: credential not found")
	// ErrUserCancelled means the user dismissed the ceremony prompt.
	ErrUserCancelled = errors.New("ceremony: cancelled by user")
	// ErrCeremonyFailed wraps ambiguous authenticator failures. Retryable.
	ErrCeremonyFailed = errors.New("ceremony: authenticator failure")
)

// Authenticator is the hardware-credential collaborator. Both operations can
// take indefinite wall-clock time while the user interacts with the device,
// so they honor ctx cancellation.
type Authenticator interface {
	// Register creates a new credential for user and returns its opaque
	// handle plus the credential's derivation secret.
	Register(ctx context.Context, user string) (handle string, secret []byte, err error)
	// Assert re-runs the ceremony for an existing credential. An empty
	// handle asks the authenticator to let the user pick one.
	Assert(ctx context.Context, handle string) (secret []byte, err error)
	// Close releases the underlying device.
	Close() error
}
