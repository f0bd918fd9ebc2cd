package ceremony

import (
	"context"
	"fmt"
	"runtime"

	"github.com/seedframe-io/seedframe/internal/securefile"
)

// NewRuntimeAuthenticator picks the authenticator backend for the current
// platform. Hardware-backed platform authenticators are wired per OS; hosts
// without one fall back to the software authenticator when allowed.
func NewRuntimeAuthenticator(ctx context.Context, allowSoftware bool, passphrase []byte) (Authenticator, error) {
	switch runtime.GOOS {
	case "linux", "windows", "darwin":
		// TODO: wire the platform WebAuthn/TPM backend once the
		// derivation extension lands in the vendored device library.
		if !allowSoftware {
			return nil, fmt.Errorf("no hardware authenticator backend for %s", runtime.GOOS)
		}
		paths, err := securefile.ConfigPathCandidates("seedframe", "softauth_device.json")
		if err != nil {
			return nil, fmt.Errorf("softauth: config path: %w", err)
		}
		return NewSoftAuthenticator(paths[0], passphrase)
	default:
		return nil, fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}
