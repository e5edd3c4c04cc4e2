// Package webhook verifies and routes storefront webhook deliveries.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
)

// Header names carried on storefront webhook deliveries.
const (
	HeaderSignature = "X-Shopify-Hmac-Sha256"
	HeaderTopic     = "X-Shopify-Topic"
	HeaderEventID   = "X-Shopify-Webhook-Id"
)

var (
	// ErrSignatureMissing indicates the delivery carried no signature header.
	ErrSignatureMissing = errors.New("webhook: signature missing")
	// ErrSignatureInvalid indicates the signature was not valid base64.
	ErrSignatureInvalid = errors.New("webhook: signature encoding invalid")
	// ErrSignatureMismatch indicates the digest did not match the shared secret.
	ErrSignatureMismatch = errors.New("webhook: signature mismatch")
)

// SecretProvider resolves the shared secret used for HMAC validation.
type SecretProvider interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// SecretProviderFunc adapts a function to the SecretProvider interface.
type SecretProviderFunc func(context.Context, string) (string, error)

// GetSecret implements SecretProvider.
func (f SecretProviderFunc) GetSecret(ctx context.Context, name string) (string, error) {
	if f == nil {
		return "", errors.New("webhook: secret provider not configured")
	}
	return f(ctx, name)
}

// SignatureVerifier checks that a delivery's HMAC-SHA256 digest over the raw
// body matches the shared secret. The digest is compared against the base64
// value the storefront sends in the signature header.
type SignatureVerifier struct {
	provider   SecretProvider
	secretName string

	secretCache sync.Map
}

// NewSignatureVerifier builds a verifier that loads the named secret lazily
// and caches it for subsequent deliveries.
func NewSignatureVerifier(provider SecretProvider, secretName string) (*SignatureVerifier, error) {
	if provider == nil {
		return nil, errors.New("webhook: secret provider is required")
	}
	if strings.TrimSpace(secretName) == "" {
		return nil, errors.New("webhook: secret name is required")
	}
	return &SignatureVerifier{provider: provider, secretName: strings.TrimSpace(secretName)}, nil
}

// Verify validates the signature header against the raw request body. The
// body must be the exact bytes received on the wire.
func (v *SignatureVerifier) Verify(ctx context.Context, body []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrSignatureMissing
	}

	provided, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return ErrSignatureInvalid
	}

	secret, err := v.loadSecret(ctx)
	if err != nil {
		return err
	}

	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(body)
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return ErrSignatureMismatch
	}
	return nil
}

func (v *SignatureVerifier) loadSecret(ctx context.Context) ([]byte, error) {
	if cached, ok := v.secretCache.Load(v.secretName); ok {
		if secret, ok := cached.([]byte); ok && len(secret) > 0 {
			return secret, nil
		}
	}

	raw, err := v.provider.GetSecret(ctx, v.secretName)
	if err != nil {
		return nil, err
	}
	secret := []byte(raw)
	if len(secret) == 0 {
		return nil, errors.New("webhook: secret is empty")
	}

	v.secretCache.Store(v.secretName, secret)
	return secret, nil
}
