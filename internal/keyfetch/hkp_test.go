package keyfetch

import (
	"strings"
	"testing"
)

func TestStripKeyIDPrefix(t *testing.T) {
	cases := map[string]string{
		"0xDEADBEEF": "DEADBEEF",
		"0XDEADBEEF": "DEADBEEF",
		"DEADBEEF":   "DEADBEEF",
	}
	for in, want := range cases {
		if got := stripKeyIDPrefix(in); got != want {
			t.Errorf("stripKeyIDPrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsHexIdentifier(t *testing.T) {
	cases := []struct {
		id   string
		want bool
	}{
		{"DEADBEEF", true},
		{"deadbeef01", true},
		{"short", false},
		{"not-hex-at-all", false},
		{"alice@example.com", false},
	}
	for _, tc := range cases {
		if got := isHexIdentifier(tc.id); got != tc.want {
			t.Errorf("isHexIdentifier(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}

func TestIsEmailIdentifier(t *testing.T) {
	if !isEmailIdentifier("alice@example.com") {
		t.Error("expected alice@example.com to be classified as an email")
	}
	if isEmailIdentifier("DEADBEEF") {
		t.Error("did not expect DEADBEEF to be classified as an email")
	}
}

func TestHKPRequestURLKeysOpenPGPOrgByEmail(t *testing.T) {
	url, err := hkpRequestURL("keys.openpgp.org", "alice@example.com")
	if err != nil {
		t.Fatalf("hkpRequestURL: %v", err)
	}
	want := "https://keys.openpgp.org/vks/v1/by-email/alice@example.com"
	if url != want {
		t.Errorf("url = %q, want %q", url, want)
	}
}

func TestHKPRequestURLKeysOpenPGPOrgRejectsPlainName(t *testing.T) {
	if _, err := hkpRequestURL("keys.openpgp.org", "alice"); err == nil {
		t.Fatal("expected error for a bare name against keys.openpgp.org")
	}
}

func TestHKPRequestURLFallbackServerUsesPksLookup(t *testing.T) {
	url, err := hkpRequestURL("keyserver.ubuntu.com", "alice")
	if err != nil {
		t.Fatalf("hkpRequestURL: %v", err)
	}
	if !strings.Contains(url, "pks/lookup") {
		t.Errorf("url = %q, want it to hit pks/lookup", url)
	}
}
