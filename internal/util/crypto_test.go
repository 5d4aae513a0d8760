package util

import (
	"errors"
	"testing"
)

func TestEncryptRoundTripAndTamper(t *testing.T) {
	key := Derive32ByteKey("a-long-enough-session-encryption-key")
	sealed, err := EncryptString(key, `{"id":"ctx-1"}`)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	plain, err := DecryptString(key, sealed)
	if err != nil || plain != `{"id":"ctx-1"}` {
		t.Fatalf("round trip failed: %q %v", plain, err)
	}

	other := Derive32ByteKey("a-different-session-encryption-key")
	if _, err := DecryptString(other, sealed); err == nil {
		t.Fatalf("expected decrypt with wrong key to fail")
	}
	b := []byte(sealed)
	mid := len(b) / 2
	if b[mid] == 'A' {
		b[mid] = 'B'
	} else {
		b[mid] = 'A'
	}
	if _, err := DecryptString(key, string(b)); err == nil {
		t.Fatalf("expected tampered payload to fail")
	}
	if _, err := DecryptString(key, "!!"); !errors.Is(err, ErrMalformedCiphertext) {
		t.Fatalf("expected malformed ciphertext, got %v", err)
	}
	if _, err := DecryptString(key, "c2hvcnQ"); !errors.Is(err, ErrMalformedCiphertext) {
		t.Fatalf("expected short payload to be malformed, got %v", err)
	}
}
