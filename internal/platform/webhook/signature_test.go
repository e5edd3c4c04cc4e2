package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"testing"
)

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func staticSecret(value string) SecretProvider {
	return SecretProviderFunc(func(context.Context, string) (string, error) {
		return value, nil
	})
}

func TestSignatureVerifier_Valid(t *testing.T) {
	verifier, err := NewSignatureVerifier(staticSecret("shhh"), "webhook-secret")
	if err != nil {
		t.Fatalf("NewSignatureVerifier error: %v", err)
	}

	body := []byte(`{"id":5001}`)
	if err := verifier.Verify(context.Background(), body, signBody("shhh", body)); err != nil {
		t.Fatalf("Verify error: %v", err)
	}
}

func TestSignatureVerifier_Mismatch(t *testing.T) {
	verifier, err := NewSignatureVerifier(staticSecret("shhh"), "webhook-secret")
	if err != nil {
		t.Fatalf("NewSignatureVerifier error: %v", err)
	}

	body := []byte(`{"id":5001}`)
	err = verifier.Verify(context.Background(), body, signBody("wrong-secret", body))
	if !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}
}

func TestSignatureVerifier_TamperedBody(t *testing.T) {
	verifier, err := NewSignatureVerifier(staticSecret("shhh"), "webhook-secret")
	if err != nil {
		t.Fatalf("NewSignatureVerifier error: %v", err)
	}

	signature := signBody("shhh", []byte(`{"id":5001}`))
	err = verifier.Verify(context.Background(), []byte(`{"id":9999}`), signature)
	if !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}
}

func TestSignatureVerifier_MissingSignature(t *testing.T) {
	verifier, err := NewSignatureVerifier(staticSecret("shhh"), "webhook-secret")
	if err != nil {
		t.Fatalf("NewSignatureVerifier error: %v", err)
	}

	err = verifier.Verify(context.Background(), []byte(`{}`), "  ")
	if !errors.Is(err, ErrSignatureMissing) {
		t.Fatalf("expected ErrSignatureMissing, got %v", err)
	}
}

func TestSignatureVerifier_InvalidEncoding(t *testing.T) {
	verifier, err := NewSignatureVerifier(staticSecret("shhh"), "webhook-secret")
	if err != nil {
		t.Fatalf("NewSignatureVerifier error: %v", err)
	}

	err = verifier.Verify(context.Background(), []byte(`{}`), "%%% not base64 %%%")
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestSignatureVerifier_SecretCached(t *testing.T) {
	calls := 0
	provider := SecretProviderFunc(func(context.Context, string) (string, error) {
		calls++
		return "shhh", nil
	})
	verifier, err := NewSignatureVerifier(provider, "webhook-secret")
	if err != nil {
		t.Fatalf("NewSignatureVerifier error: %v", err)
	}

	body := []byte(`{"id":1}`)
	for i := 0; i < 3; i++ {
		if err := verifier.Verify(context.Background(), body, signBody("shhh", body)); err != nil {
			t.Fatalf("Verify error on attempt %d: %v", i, err)
		}
	}
	if calls != 1 {
		t.Fatalf("secret provider called %d times, want 1", calls)
	}
}

func TestSignatureVerifier_ProviderError(t *testing.T) {
	wantErr := errors.New("secret backend down")
	provider := SecretProviderFunc(func(context.Context, string) (string, error) {
		return "", wantErr
	})
	verifier, err := NewSignatureVerifier(provider, "webhook-secret")
	if err != nil {
		t.Fatalf("NewSignatureVerifier error: %v", err)
	}

	body := []byte(`{}`)
	if err := verifier.Verify(context.Background(), body, signBody("shhh", body)); !errors.Is(err, wantErr) {
		t.Fatalf("expected provider error, got %v", err)
	}
}
