package auth

import (
	"strings"
	"testing"
)

func TestGenerateCodeVerifierLengthAndCharset(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 50; i++ {
		v, err := GenerateCodeVerifier()
		if err != nil {
			t.Fatalf("GenerateCodeVerifier: %v", err)
		}
		if len(v) != 128 {
			t.Fatalf("verifier length = %d, want 128", len(v))
		}
		for _, r := range v {
			if !strings.ContainsRune(verifierCharset, r) {
				t.Fatalf("verifier contains %q outside the unreserved set", r)
			}
		}
		if seen[v] {
			t.Fatal("duplicate verifier generated")
		}
		seen[v] = true
	}
}

func TestCodeChallengeKnownVector(t *testing.T) {
	// RFC 7636 appendix B.
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	want := "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"

	if got := CodeChallenge(verifier); got != want {
		t.Errorf("CodeChallenge = %q, want %q", got, want)
	}
}

func TestCodeChallengeHasNoPadding(t *testing.T) {
	v, err := GenerateCodeVerifier()
	if err != nil {
		t.Fatalf("GenerateCodeVerifier: %v", err)
	}
	challenge := CodeChallenge(v)
	if strings.Contains(challenge, "=") {
		t.Errorf("challenge %q contains padding", challenge)
	}
	if len(challenge) != 43 {
		t.Errorf("challenge length = %d, want 43", len(challenge))
	}
}

func TestGenerateStateIndependence(t *testing.T) {
	a, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState: %v", err)
	}
	b, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState: %v", err)
	}
	if len(a) < 32 {
		t.Errorf("state length = %d, want >= 32", len(a))
	}
	if a == b {
		t.Error("two states are identical")
	}
}
