// Package auth provides the stateless identity core for badge.
//
// # Overview
//
// A user proves who they are once, with an email and password, and receives a
// signed, short-lived token. Every later request presents that token and is
// verified without touching storage.
//
// # Key Components
//
// Credential verification: bcrypt with a tunable cost
//
//	hasher, _ := auth.NewPasswordHasher(12)
//	material, _ := hasher.Hash("s3cret")
//	ok := hasher.Verify("s3cret", material)
//
// Signing keys: one pinned algorithm per process
//
//	key, err := auth.NewSigningKey("HS256", secret, nil)
//	key, err := auth.NewSigningKey("RS256", nil, privateKeyPEM)
//
// Issuing:
//
//	issuer, _ := auth.NewIssuer(key, "badge", 30*time.Minute)
//	token, claims, err := issuer.Issue(user, 0)
//
// Verifying:
//
//	verifier, _ := auth.NewTokenVerifier(key, "badge", auth.WithLeeway(5*time.Second))
//	identity, err := verifier.Verify(ctx, token)
//
// Verification gates run in order: structure, signature, expiry, claims. Each
// failure wraps one of ErrTokenMalformed, ErrInvalidSignature, ErrExpired or
// ErrInvalidClaims. Callers facing clients collapse all of them into a single
// unauthenticated outcome and log Gate(err) instead.
//
// # Limitations
//
// There is no revocation. A token for a deleted account stays valid until it
// expires. Keys are loaded once at startup and never rotated.
package auth
