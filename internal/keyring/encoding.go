package keyring

import "encoding/base64"

// ToB64URL encodes bytes as unpadded base64url, the opaque-byte transport
// encoding used across the wire surface.
func ToB64URL(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// FromB64URL decodes an unpadded base64url string. Padded input is accepted
// too, since some embedders send it.
func FromB64URL(s string) ([]byte, error) {
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(s)
}

// ToB64 encodes bytes as standard padded base64, used for serialized
// transactions.
func ToB64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// FromB64 decodes standard base64, padded or raw.
func FromB64(s string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
