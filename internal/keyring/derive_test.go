package keyring

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"testing"
)

func testMasterSeed() []byte {
	seed := make([]byte, MasterSeedLen)
	for i := range seed {
		seed[i] = byte(i)
	}
	return seed
}

// Golden vectors: HKDF-SHA256(master, "account-path:<i>", "seedframe-keyring-v1")
// with master = 00 01 .. 1f, computed against an independent implementation.
// These must never change; a mismatch means every user's keys moved.
func TestDeriveAccountSeedGoldenVectors(t *testing.T) {
	vectors := []struct {
		index   uint32
		seedHex string
		pubB58  string
	}{
		{0, "c55a35f912e8bf30c27ccdec826f9a8a45ed2c2250403845dfd9365b671730c5", "5QQX1Fx7nkX5mQzYKVeVor39CirN44tUuVmuPdeSCJqt"},
		{1, "f8d96c04ffb6cfa80b091c03c5483203040a45d04a7a6d798e01c857388d4474", "2B8gDdLV6EJPMwfFkPEjhXjiB5jN7tbU1VorGQktyUdS"},
		{2147483647, "2f807c554f61c35715e14490205e31c1e708dce0bcbfdf4d296302838ca532ce", "6LYqq1W8Q5MGRQNAZa9cjQe3WcQfuQzJvHF3PJMH6CcX"},
	}

	master := testMasterSeed()
	for _, v := range vectors {
		seed, err := DeriveAccountSeed(master, v.index)
		if err != nil {
			t.Fatalf("DeriveAccountSeed(%d): %v", v.index, err)
		}
		if got := hex.EncodeToString(seed); got != v.seedHex {
			t.Fatalf("index %d: seed = %s, want %s", v.index, got, v.seedHex)
		}

		key, err := DeriveWalletAccount(master, v.index)
		if err != nil {
			t.Fatalf("DeriveWalletAccount(%d): %v", v.index, err)
		}
		if got := key.PublicKey().String(); got != v.pubB58 {
			t.Fatalf("index %d: pubkey = %s, want %s", v.index, got, v.pubB58)
		}
	}
}

func TestDeriveIsDeterministic(t *testing.T) {
	master := testMasterSeed()
	a, err := DeriveAccountSeed(master, 7)
	if err != nil {
		t.Fatalf("DeriveAccountSeed: %v", err)
	}
	b, err := DeriveAccountSeed(master, 7)
	if err != nil {
		t.Fatalf("DeriveAccountSeed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("expected deterministic derivation")
	}
}

func TestIndexIndependence(t *testing.T) {
	master := testMasterSeed()
	seen := make(map[string]uint32)
	for _, i := range []uint32{0, 1, 2, 3, 100, 1000, 65535, 1 << 20, 1<<31 - 1, 1 << 31} {
		seed, err := DeriveAccountSeed(master, i)
		if err != nil {
			t.Fatalf("DeriveAccountSeed(%d): %v", i, err)
		}
		key := string(seed)
		if prev, dup := seen[key]; dup {
			t.Fatalf("indices %d and %d derived the same seed", prev, i)
		}
		seen[key] = i
	}
}

func TestDerivedKeySignsVerifiably(t *testing.T) {
	key, err := DeriveWalletAccount(testMasterSeed(), 0)
	if err != nil {
		t.Fatalf("DeriveWalletAccount: %v", err)
	}
	msg := []byte("hello")
	sig, err := key.Sign(msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	pub := ed25519.PublicKey(key.PublicKey().Bytes())
	if !ed25519.Verify(pub, msg, sig[:]) {
		t.Fatalf("signature did not verify against derived public key")
	}
}

func TestBadSeedLengthIsHardError(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33, 64} {
		_, err := DeriveAccountSeed(make([]byte, n), 0)
		if !errors.Is(err, ErrBadSeedLength) {
			t.Fatalf("len %d: err = %v, want ErrBadSeedLength", n, err)
		}
	}
}

func TestB64URLRoundTrip(t *testing.T) {
	data := []byte{0xff, 0x00, 0x7f, 0x80, 0x01}
	enc := ToB64URL(data)
	dec, err := FromB64URL(enc)
	if err != nil {
		t.Fatalf("FromB64URL: %v", err)
	}
	if !bytes.Equal(dec, data) {
		t.Fatalf("round trip mismatch")
	}
	// Padded input is tolerated.
	if _, err := FromB64URL("aGVsbG8="); err != nil {
		t.Fatalf("padded input rejected: %v", err)
	}
}
