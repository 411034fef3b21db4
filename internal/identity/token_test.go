package identity

import (
	"strings"
	"testing"
	"time"
)

func newTestIssuer(ttl time.Duration) *TokenIssuer {
	return NewTokenIssuer([]byte("test-secret-0123456789abcdef"), "https://portal.example.com", ttl)
}

func TestTokenRoundTrip(t *testing.T) {
	issuer := newTestIssuer(time.Hour)

	tok, err := issuer.Issue(42, "cra@site.example.com")
	if err != nil {
		t.Fatal(err)
	}

	claims, err := issuer.Verify(tok)
	if err != nil {
		t.Fatal(err)
	}
	if claims.ActorID != 42 {
		t.Errorf("actor id = %d, want 42", claims.ActorID)
	}
	if claims.Email != "cra@site.example.com" {
		t.Errorf("email = %q", claims.Email)
	}
	if claims.Role != "" {
		t.Errorf("plain session token must not carry a role, got %q", claims.Role)
	}
}

func TestAdminToken(t *testing.T) {
	issuer := newTestIssuer(time.Hour)

	tok, err := issuer.IssueAdminToken(1, 0)
	if err != nil {
		t.Fatal(err)
	}

	claims, err := issuer.Verify(tok)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Role != "admin" {
		t.Errorf("role = %q, want admin", claims.Role)
	}
}

func TestVerify_wrongSecret(t *testing.T) {
	issuer := newTestIssuer(time.Hour)
	other := NewTokenIssuer([]byte("different-secret"), "https://portal.example.com", time.Hour)

	tok, err := issuer.Issue(42, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Verify(tok); err == nil {
		t.Error("token signed with another secret must not verify")
	}
}

func TestVerify_wrongIssuer(t *testing.T) {
	issuer := newTestIssuer(time.Hour)
	other := NewTokenIssuer([]byte("test-secret-0123456789abcdef"), "https://elsewhere.example.com", time.Hour)

	tok, err := issuer.Issue(42, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Verify(tok); err == nil {
		t.Error("token from another issuer must not verify")
	}
}

func TestVerify_expired(t *testing.T) {
	issuer := newTestIssuer(-time.Minute)

	tok, err := issuer.Issue(42, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := issuer.Verify(tok); err == nil {
		t.Error("expired token must not verify")
	}
}

func TestVerify_garbage(t *testing.T) {
	issuer := newTestIssuer(time.Hour)
	for _, tok := range []string{"", "not-a-jwt", strings.Repeat("x", 300)} {
		if _, err := issuer.Verify(tok); err == nil {
			t.Errorf("Verify(%q) should fail", tok)
		}
	}
}

func TestAdminSecret(t *testing.T) {
	hash, err := HashAdminSecret("correct horse battery staple")
	if err != nil {
		t.Fatal(err)
	}

	sec := NewAdminSecret(hash)
	if !sec.Check("correct horse battery staple") {
		t.Error("correct secret rejected")
	}
	if sec.Check("wrong secret") {
		t.Error("wrong secret accepted")
	}
	if NewAdminSecret("").Check("anything") {
		t.Error("empty hash must reject everything")
	}
}
