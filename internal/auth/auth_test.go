package auth

import (
	"testing"
	"time"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(hash, "s3cret-pass") {
		t.Fatalf("correct password rejected")
	}
	if CheckPassword(hash, "wrong-pass") {
		t.Fatalf("wrong password accepted")
	}
}

func TestJWTRoundTrip(t *testing.T) {
	tok, err := SignJWT(42, "test-secret", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	uid, err := ParseJWT(tok, "test-secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if uid != 42 {
		t.Fatalf("expected subject 42, got %d", uid)
	}

	if _, err := ParseJWT(tok, "other-secret"); err == nil {
		t.Fatalf("token verified with the wrong secret")
	}
}

func TestJWTExpiry(t *testing.T) {
	tok, err := SignJWT(7, "test-secret", -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseJWT(tok, "test-secret"); err == nil {
		t.Fatalf("expired token accepted")
	}
}
