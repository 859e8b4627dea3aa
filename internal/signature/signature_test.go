package signature

import (
	"strings"
	"testing"
)

func TestVerify(t *testing.T) {
	secret := "top-secret"
	body := []byte(`{"object":"whatsapp_business_account","entry":[]}`)

	v := NewVerifier(secret)
	header := Sign(secret, body)

	if !strings.HasPrefix(header, "sha256=") {
		t.Fatalf("Sign should produce sha256= prefix, got %q", header)
	}
	if !v.Verify(body, header) {
		t.Error("unmodified payload with correct signature must verify")
	}

	cases := []struct {
		name   string
		body   []byte
		header string
	}{
		{"tampered body", []byte(`{"object":"tampered"}`), header},
		{"wrong secret", body, Sign("other-secret", body)},
		{"missing prefix", body, strings.TrimPrefix(header, "sha256=")},
		{"bad hex", body, "sha256=zzzz"},
		{"empty header", body, ""},
	}
	for _, tc := range cases {
		if v.Verify(tc.body, tc.header) {
			t.Errorf("%s: expected verification failure", tc.name)
		}
	}

	// Verification must depend on the exact raw bytes, not JSON equivalence.
	reordered := []byte(`{"entry":[],"object":"whatsapp_business_account"}`)
	if v.Verify(reordered, header) {
		t.Error("re-serialized JSON must not verify against the original signature")
	}
}

func TestVerifyEmptySecret(t *testing.T) {
	v := NewVerifier("")
	body := []byte("x")
	if v.Verify(body, Sign("", body)) {
		t.Error("an unconfigured secret must reject everything")
	}
}
