package transport

import "testing"

func TestParseMultiPortValid(t *testing.T) {
	tests := []struct {
		name string
		addr string
		host string
		min  uint64
		max  uint64
	}{
		{name: "SinglePort", addr: "0.0.0.0:29900", host: "0.0.0.0", min: 29900, max: 29900},
		{name: "Range", addr: "0.0.0.0:29900-29905", host: "0.0.0.0", min: 29900, max: 29905},
		{name: "IPv4Range", addr: "0.0.0.0:1-65535", host: "0.0.0.0", min: 1, max: 65535},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mp, err := ParseMultiPort(tt.addr)
			if err != nil {
				t.Fatalf("ParseMultiPort(%q) unexpected error: %v", tt.addr, err)
			}
			if mp.Host != tt.host {
				t.Fatalf("expected host %q, got %q", tt.host, mp.Host)
			}
			if mp.MinPort != tt.min || mp.MaxPort != tt.max {
				t.Fatalf("expected ports [%d,%d], got [%d,%d]", tt.min, tt.max, mp.MinPort, mp.MaxPort)
			}
		})
	}
}

func TestParseMultiPortInvalid(t *testing.T) {
	tests := []struct {
		name string
		addr string
	}{
		{name: "MissingPort", addr: "0.0.0.0"},
		{name: "ZeroPort", addr: "0.0.0.0:0"},
		{name: "PortTooLarge", addr: "0.0.0.0:70000"},
		{name: "MaxLessThanMin", addr: "0.0.0.0:3000-2000"},
		{name: "HighRange", addr: "0.0.0.0:65534-70000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseMultiPort(tt.addr); err == nil {
				t.Fatalf("ParseMultiPort(%q) expected error", tt.addr)
			}
		})
	}
}

func TestModeParamsKnownProfiles(t *testing.T) {
	nodelay, interval, resend, nc := ModeParams("fast3")
	if nodelay != 1 || interval != 10 || resend != 2 || nc != 1 {
		t.Fatalf("fast3 = %d,%d,%d,%d", nodelay, interval, resend, nc)
	}
	nodelay, interval, resend, nc = ModeParams("unknown")
	if nodelay != 0 || interval != 30 || resend != 2 || nc != 1 {
		t.Fatalf("default fallback = %d,%d,%d,%d", nodelay, interval, resend, nc)
	}
}
