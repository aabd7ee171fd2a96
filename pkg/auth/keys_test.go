package auth

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte(strings.Repeat("k", MinHMACSecretLength))

func rsaPEM(t *testing.T) []byte {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})
}

func ecPEM(t *testing.T, curve elliptic.Curve) []byte {
	t.Helper()
	priv, err := ecdsa.GenerateKey(curve, rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(priv)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
}

func edPEM(t *testing.T) []byte {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

func TestNewSigningKey(t *testing.T) {
	tests := []struct {
		name    string
		alg     string
		secret  []byte
		pem     func(t *testing.T) []byte
		wantAlg string
		wantErr bool
	}{
		{name: "HS256", alg: "HS256", secret: testSecret, wantAlg: "HS256"},
		{name: "lower case", alg: " hs512 ", secret: testSecret, wantAlg: "HS512"},
		{name: "short secret", alg: "HS256", secret: []byte("too-short"), wantErr: true},
		{name: "empty alg", alg: "", secret: testSecret, wantErr: true},
		{name: "none", alg: "none", secret: testSecret, wantErr: true},
		{name: "unknown", alg: "XX256", secret: testSecret, wantErr: true},
		{name: "RS256", alg: "RS256", pem: rsaPEM, wantAlg: "RS256"},
		{name: "RS256 without key", alg: "RS256", wantErr: true},
		{
			name:    "ES256",
			alg:     "ES256",
			pem:     func(t *testing.T) []byte { return ecPEM(t, elliptic.P256()) },
			wantAlg: "ES256",
		},
		{
			name:    "ES256 with P-384 key",
			alg:     "ES256",
			pem:     func(t *testing.T) []byte { return ecPEM(t, elliptic.P384()) },
			wantErr: true,
		},
		{name: "EdDSA", alg: "eddsa", pem: edPEM, wantAlg: "EdDSA"},
		{name: "RS256 with EC key", alg: "RS256", pem: func(t *testing.T) []byte { return ecPEM(t, elliptic.P256()) }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var keyPEM []byte
			if tt.pem != nil {
				keyPEM = tt.pem(t)
			}

			key, err := NewSigningKey(tt.alg, tt.secret, keyPEM)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMisconfigured)
				assert.Nil(t, key)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAlg, key.Algorithm())
		})
	}
}

func TestSigningKey_PublicKey(t *testing.T) {
	hmacKey, err := NewSigningKey("HS256", testSecret, nil)
	require.NoError(t, err)
	assert.Nil(t, hmacKey.PublicKey(), "HMAC secrets must not be exposed")

	rsaKey, err := NewSigningKey("RS256", nil, rsaPEM(t))
	require.NoError(t, err)
	assert.IsType(t, &rsa.PublicKey{}, rsaKey.PublicKey())
}

func TestNewHMACKey_CopiesSecret(t *testing.T) {
	secret := append([]byte(nil), testSecret...)
	key, err := NewHMACKey("HS256", secret)
	require.NoError(t, err)

	secret[0] = 'x'
	assert.Equal(t, testSecret, key.signKey)
}
