package transport

import "testing"

func TestSelectBlockCryptKnownMethod(t *testing.T) {
	block, name := SelectBlockCrypt("aes-128", DeriveKey("a control key"))
	if block == nil {
		t.Fatal("expected a non-nil cipher")
	}
	if name != "aes-128" {
		t.Fatalf("effective cipher = %q, want aes-128", name)
	}
}

func TestSelectBlockCryptUnknownFallsBackToAES(t *testing.T) {
	_, name := SelectBlockCrypt("not-a-real-cipher", DeriveKey("a control key"))
	if name != "aes" {
		t.Fatalf("effective cipher = %q, want aes", name)
	}
}

func TestDeriveKeyLength(t *testing.T) {
	if len(DeriveKey("x")) != 32 {
		t.Fatalf("DeriveKey returned %d bytes, want 32", len(DeriveKey("x")))
	}
}
