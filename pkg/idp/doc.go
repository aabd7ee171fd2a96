// Package idp adapts external identity providers to the auth interfaces.
//
// OIDCVerifier implements auth.Verifier for any OpenID Connect provider:
// discovery, JWKS caching and signature checks come from go-oidc, with the
// accepted algorithms pinned and the audience fixed to the client ID.
// NewFirebaseVerifier is the preset for Firebase Authentication, whose
// issuer is https://securetoken.google.com/<project>.
//
// Authenticator implements auth.Authenticator when passwords are held by
// the provider. Sign-up goes through a Provisioner, login through a
// PasswordAuthenticator:
//
//	FirebaseAdmin    Firebase Admin SDK CreateUser (sign-up)
//	FirebaseClient   Identity Toolkit REST signInWithPassword (login)
//	PasswordGrant    OAuth2 resource owner password grant (login)
//
// Provider accounts are mirrored into the local users table so that
// records and /auth/me have a local owner. The ID token returned by the
// provider is passed to the client unchanged as its access token.
package idp
