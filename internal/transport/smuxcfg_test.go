package transport

import "testing"

func TestBuildSmuxConfigValid(t *testing.T) {
	cfg, err := BuildSmuxConfig(DefaultSmuxVersion, DefaultMaxReceiveBuf, DefaultMaxStreamBuf, DefaultMaxFrameSize, DefaultKeepAliveSecond)
	if err != nil {
		t.Fatalf("BuildSmuxConfig: %v", err)
	}
	if cfg.Version != DefaultSmuxVersion {
		t.Fatalf("Version = %d, want %d", cfg.Version, DefaultSmuxVersion)
	}
}

func TestBuildSmuxConfigRejectsBadVersion(t *testing.T) {
	if _, err := BuildSmuxConfig(99, DefaultMaxReceiveBuf, DefaultMaxStreamBuf, DefaultMaxFrameSize, DefaultKeepAliveSecond); err == nil {
		t.Fatal("expected an error for an unsupported smux version")
	}
}
