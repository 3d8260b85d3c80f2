package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestCodec(t *testing.T, ttl time.Duration) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec([]byte("test-signing-key-0123456789abcdef"), ttl)
	if err != nil {
		t.Fatalf("NewTokenCodec() error = %v", err)
	}
	return codec
}

func TestTokenCodec_RoundTrip(t *testing.T) {
	codec := newTestCodec(t, time.Hour)

	token, err := codec.Issue("42")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Subject != "42" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "42")
	}
	if claims.TokenID() == "" {
		t.Error("token ID (jti) is empty")
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		t.Fatal("issued-at or expiry missing from claims")
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != time.Hour {
		t.Errorf("expiry - issuedAt = %v, want %v", got, time.Hour)
	}
}

func TestTokenCodec_UniqueTokenIDs(t *testing.T) {
	codec := newTestCodec(t, time.Hour)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		token, err := codec.Issue("42")
		if err != nil {
			t.Fatal(err)
		}
		claims, err := codec.Verify(token)
		if err != nil {
			t.Fatal(err)
		}
		if seen[claims.TokenID()] {
			t.Fatalf("duplicate token ID %q", claims.TokenID())
		}
		seen[claims.TokenID()] = true
	}
}

func TestTokenCodec_ZeroTTLExpiresImmediately(t *testing.T) {
	codec := newTestCodec(t, 0)

	token, err := codec.Issue("42")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	_, err = codec.Verify(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Verify() error = %v, want ErrTokenExpired", err)
	}
}

func TestTokenCodec_Expired(t *testing.T) {
	codec := newTestCodec(t, time.Hour)

	token, err := codec.IssueWithTTL("42", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	_, err = codec.Verify(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Verify() error = %v, want ErrTokenExpired", err)
	}
}

func TestTokenCodec_WrongKey(t *testing.T) {
	codec := newTestCodec(t, time.Hour)
	other, err := NewTokenCodec([]byte("a-different-signing-key"), time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	token, err := codec.Issue("42")
	if err != nil {
		t.Fatal(err)
	}

	_, err = other.Verify(token)
	if !errors.Is(err, ErrTokenBadSignature) {
		t.Errorf("Verify() error = %v, want ErrTokenBadSignature", err)
	}
}

func TestTokenCodec_Malformed(t *testing.T) {
	codec := newTestCodec(t, time.Hour)

	for _, garbage := range []string{"", "not-a-token", "a.b", "a.b.c.d", "...."} {
		_, err := codec.Verify(garbage)
		if !errors.Is(err, ErrTokenMalformed) {
			t.Errorf("Verify(%q) error = %v, want ErrTokenMalformed", garbage, err)
		}
	}
}

// Flipping any single byte of the token must never produce a false accept.
func TestTokenCodec_SingleByteTamperNeverAccepts(t *testing.T) {
	codec := newTestCodec(t, time.Hour)

	token, err := codec.Issue("42")
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < len(token); i++ {
		tampered := []byte(token)
		if tampered[i] == 'A' {
			tampered[i] = 'B'
		} else {
			tampered[i] = 'A'
		}
		if string(tampered) == token {
			continue
		}

		_, err := codec.Verify(string(tampered))
		if err == nil {
			t.Fatalf("tampered token accepted (byte %d)", i)
		}
		if !errors.Is(err, ErrTokenBadSignature) && !errors.Is(err, ErrTokenMalformed) && !errors.Is(err, ErrTokenExpired) {
			t.Fatalf("unexpected error class for tampered token: %v", err)
		}
	}
}

func TestNewTokenCodec_EmptyKey(t *testing.T) {
	if _, err := NewTokenCodec(nil, time.Hour); err == nil {
		t.Error("NewTokenCodec(nil) did not fail")
	}
}
