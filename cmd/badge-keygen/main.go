package main

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/platinummonkey/badge/pkg/auth"
)

func main() {
	alg := flag.String("alg", "HS256", "Signing algorithm: HS256/HS384/HS512 print a secret, RS256/ES256/EdDSA print a PEM private key")
	size := flag.Int("bytes", 32, "Secret length in bytes for HMAC algorithms")
	flag.Parse()

	if err := generate(os.Stdout, *alg, *size); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func generate(w io.Writer, alg string, size int) error {
	switch alg {
	case "HS256", "HS384", "HS512":
		if size < auth.MinHMACSecretLength {
			return fmt.Errorf("secret must be at least %d bytes", auth.MinHMACSecretLength)
		}
		secret := make([]byte, size)
		if _, err := rand.Read(secret); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "BADGE_JWT_ALGORITHM=%s\nBADGE_JWT_SECRET=%s\n", alg, hex.EncodeToString(secret))
		return err
	}

	var key interface{}
	var err error
	switch alg {
	case "RS256", "RS384", "RS512":
		key, err = rsa.GenerateKey(rand.Reader, 2048)
	case "ES256":
		key, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case "ES384":
		key, err = ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	case "EdDSA":
		_, key, err = ed25519.GenerateKey(rand.Reader)
	default:
		return fmt.Errorf("unsupported algorithm %q", alg)
	}
	if err != nil {
		return err
	}

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return err
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	// Refuse to hand out a key the issuer would reject
	if _, err := auth.NewSigningKey(alg, nil, pemBytes); err != nil {
		return err
	}
	_, err = w.Write(pemBytes)
	return err
}
