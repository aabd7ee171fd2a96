package auth

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// MinHMACSecretLength is the shortest accepted HMAC signing secret
const MinHMACSecretLength = 32

// SigningKey pairs a pinned JWS algorithm with the key material used to sign
// and verify under it. It is built once at startup and read-only afterwards.
type SigningKey struct {
	method    jwt.SigningMethod
	signKey   interface{}
	verifyKey interface{}
}

// NewSigningKey builds a key for alg. HMAC algorithms use secret; RSA, ECDSA
// and EdDSA algorithms use the PEM encoded private key.
func NewSigningKey(alg string, secret []byte, privateKeyPEM []byte) (*SigningKey, error) {
	alg = strings.ToUpper(strings.TrimSpace(alg))
	if alg == "EDDSA" {
		alg = "EdDSA"
	}
	switch alg {
	case "HS256", "HS384", "HS512":
		return NewHMACKey(alg, secret)
	case "RS256", "RS384", "RS512", "ES256", "ES384", "ES512", "EdDSA":
		return NewAsymmetricKey(alg, privateKeyPEM)
	case "", "NONE":
		return nil, fmt.Errorf("%w: signing algorithm is required", ErrMisconfigured)
	default:
		return nil, fmt.Errorf("%w: unsupported signing algorithm %q", ErrMisconfigured, alg)
	}
}

// NewHMACKey builds a symmetric key
func NewHMACKey(alg string, secret []byte) (*SigningKey, error) {
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an HMAC algorithm", ErrMisconfigured, alg)
	}
	if len(secret) < MinHMACSecretLength {
		return nil, fmt.Errorf("%w: signing secret must be at least %d bytes", ErrMisconfigured, MinHMACSecretLength)
	}

	key := make([]byte, len(secret))
	copy(key, secret)

	return &SigningKey{method: method, signKey: key, verifyKey: key}, nil
}

// NewAsymmetricKey builds a key from a PEM encoded private key
func NewAsymmetricKey(alg string, privateKeyPEM []byte) (*SigningKey, error) {
	if len(privateKeyPEM) == 0 {
		return nil, fmt.Errorf("%w: private key is required for %s", ErrMisconfigured, alg)
	}

	method := jwt.GetSigningMethod(alg)
	if method == nil {
		return nil, fmt.Errorf("%w: unsupported signing algorithm %q", ErrMisconfigured, alg)
	}

	var (
		signKey   interface{}
		verifyKey interface{}
	)
	switch method.(type) {
	case *jwt.SigningMethodRSA:
		priv, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("%w: parse RSA private key: %v", ErrMisconfigured, err)
		}
		signKey, verifyKey = priv, &priv.PublicKey
	case *jwt.SigningMethodECDSA:
		priv, err := jwt.ParseECPrivateKeyFromPEM(privateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("%w: parse EC private key: %v", ErrMisconfigured, err)
		}
		signKey, verifyKey = priv, &priv.PublicKey
	case *jwt.SigningMethodEd25519:
		priv, err := jwt.ParseEdPrivateKeyFromPEM(privateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("%w: parse Ed25519 private key: %v", ErrMisconfigured, err)
		}
		edKey, ok := priv.(ed25519.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an Ed25519 private key", ErrMisconfigured)
		}
		signKey, verifyKey = edKey, edKey.Public()
	default:
		return nil, fmt.Errorf("%w: %q is not an asymmetric algorithm", ErrMisconfigured, alg)
	}

	k := &SigningKey{method: method, signKey: signKey, verifyKey: verifyKey}

	// ECDSA curves must match the algorithm; catch that at startup.
	if err := k.probe(); err != nil {
		return nil, err
	}
	return k, nil
}

// Algorithm returns the pinned JWS algorithm name
func (k *SigningKey) Algorithm() string {
	return k.method.Alg()
}

// PublicKey returns the verification key for asymmetric algorithms, or nil
// for HMAC keys, which must never be published.
func (k *SigningKey) PublicKey() crypto.PublicKey {
	switch key := k.verifyKey.(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey:
		return key
	default:
		return nil
	}
}

func (k *SigningKey) probe() error {
	signed, err := k.method.Sign("probe", k.signKey)
	if err != nil {
		return fmt.Errorf("%w: key cannot sign with %s: %v", ErrMisconfigured, k.Algorithm(), err)
	}
	if err := k.method.Verify("probe", signed, k.verifyKey); err != nil {
		return fmt.Errorf("%w: key cannot verify with %s: %v", ErrMisconfigured, k.Algorithm(), err)
	}
	return nil
}
