package envelope

import (
	"testing"
	"time"
)

func TestSniffDispatchesOnVersion(t *testing.T) {
	cases := []struct {
		name string
		data string
		want int
	}{
		{"v1", `{"version":1}`, 1},
		{"v2", `{"version":2}`, 2},
		{"v3", `{"version":3}`, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Sniff([]byte(tc.data))
			if err != nil {
				t.Fatalf("Sniff(%q) error: %v", tc.data, err)
			}
			if got != tc.want {
				t.Errorf("Sniff(%q) = %d, want %d", tc.data, got, tc.want)
			}
		})
	}
}

func TestSniffRejectsUnknownVersion(t *testing.T) {
	if _, err := Sniff([]byte(`{"version":99}`)); err == nil {
		t.Fatal("expected error for unknown version, got nil")
	}
}

func TestEncodeDecodeV2RoundTrip(t *testing.T) {
	env := V2{
		Metadata: Metadata{
			Sender: "self",
			Recipient: RecipientMeta{
				Type:        "friend",
				Name:        "alice",
				Fingerprint: "deadbeef",
			},
			Timestamp: time.Now().UTC().Truncate(time.Second),
		},
		EncryptedKey:     "a2V5",
		IV:               "aXY=",
		AuthTag:          "dGFn",
		EncryptedContent: "Y29udGVudA==",
	}

	data, err := EncodeV2(env)
	if err != nil {
		t.Fatalf("EncodeV2: %v", err)
	}

	decoded, err := DecodeV2(data)
	if err != nil {
		t.Fatalf("DecodeV2: %v", err)
	}
	if decoded.Metadata.Recipient.Name != "alice" {
		t.Errorf("recipient name = %q, want %q", decoded.Metadata.Recipient.Name, "alice")
	}
	if decoded.EncryptedKey != env.EncryptedKey {
		t.Errorf("encryptedKey = %q, want %q", decoded.EncryptedKey, env.EncryptedKey)
	}
}

func TestDecodeV2RejectsWrongVersion(t *testing.T) {
	if _, err := DecodeV2([]byte(`{"version":3}`)); err == nil {
		t.Fatal("expected error decoding a v3 payload as v2")
	}
}

func TestValidateIVAcceptsBothSizes(t *testing.T) {
	if err := ValidateIV(make([]byte, 12)); err != nil {
		t.Errorf("12-byte IV rejected: %v", err)
	}
	if err := ValidateIV(make([]byte, 16)); err != nil {
		t.Errorf("16-byte legacy IV rejected: %v", err)
	}
	if err := ValidateIV(make([]byte, 10)); err == nil {
		t.Error("10-byte IV should be rejected")
	}
}

func TestValidateAuthTagRequiresExactly16Bytes(t *testing.T) {
	if err := ValidateAuthTag(make([]byte, 16)); err != nil {
		t.Errorf("16-byte tag rejected: %v", err)
	}
	if err := ValidateAuthTag(make([]byte, 15)); err == nil {
		t.Error("15-byte tag should be rejected")
	}
}

func TestEncodeB64DecodeB64RoundTrip(t *testing.T) {
	original := []byte{0x00, 0x01, 0xFF, 0x10, 0x20}
	decoded, err := DecodeB64(EncodeB64(original))
	if err != nil {
		t.Fatalf("DecodeB64: %v", err)
	}
	if string(decoded) != string(original) {
		t.Errorf("round trip mismatch: got %v, want %v", decoded, original)
	}
}
