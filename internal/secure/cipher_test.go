package secure

import (
	"strings"
	"testing"
)

func testKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func TestCipherRoundTrip(t *testing.T) {
	cipher, err := NewCipher(testKey())
	if err != nil {
		t.Fatalf("NewCipher() error = %v", err)
	}

	for _, plaintext := range []string{"", "COFFEE SHOP", "DIRECT DEBIT - ACME INSURANCE 2025", strings.Repeat("x", 4096)} {
		envelope, err := cipher.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt() error = %v", err)
		}
		if envelope == plaintext && plaintext != "" {
			t.Error("Encrypt() returned plaintext")
		}

		got, err := cipher.Decrypt(envelope)
		if err != nil {
			t.Fatalf("Decrypt() error = %v", err)
		}
		if got != plaintext {
			t.Errorf("round trip = %q, want %q", got, plaintext)
		}
	}
}

func TestCipherNonceVaries(t *testing.T) {
	cipher, err := NewCipher(testKey())
	if err != nil {
		t.Fatalf("NewCipher() error = %v", err)
	}

	a, _ := cipher.Encrypt("same input")
	b, _ := cipher.Encrypt("same input")
	if a == b {
		t.Error("two encryptions of the same input produced identical envelopes")
	}
}

func TestCipherRejectsBadKey(t *testing.T) {
	for _, size := range []int{0, 16, 31, 33} {
		if _, err := NewCipher(make([]byte, size)); err == nil {
			t.Errorf("NewCipher() with %d-byte key: expected error", size)
		}
	}
}

func TestCipherRejectsTamperedEnvelope(t *testing.T) {
	cipher, err := NewCipher(testKey())
	if err != nil {
		t.Fatalf("NewCipher() error = %v", err)
	}

	envelope, err := cipher.Encrypt("sensitive description")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	tampered := []byte(envelope)
	tampered[len(tampered)/2] ^= 'x'
	if _, err := cipher.Decrypt(string(tampered)); err == nil {
		t.Error("Decrypt() accepted a tampered envelope")
	}

	if _, err := cipher.Decrypt("not base64!!!"); err == nil {
		t.Error("Decrypt() accepted malformed base64")
	}

	if _, err := cipher.Decrypt("c2hvcnQ="); err == nil {
		t.Error("Decrypt() accepted an envelope shorter than the nonce")
	}
}

func TestCipherKeyIsolation(t *testing.T) {
	a, _ := NewCipher(testKey())
	b, _ := NewCipher([]byte("ffffffffffffffffffffffffffffffff"))

	envelope, err := a.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if _, err := b.Decrypt(envelope); err == nil {
		t.Error("Decrypt() with a different key succeeded")
	}
}
