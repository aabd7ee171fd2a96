// Package config loads badge configuration from BADGE_* environment
// variables with caarlos0/env and validates it before anything starts.
//
//	cfg, err := config.Load()
//	if err != nil {
//		// every problem is listed; all wrap auth.ErrMisconfigured
//	}
//
// Authentication mode (BADGE_AUTH_MODE):
//
//	local     passwords in the users table, tokens signed by this service
//	          BADGE_JWT_ALGORITHM=HS256 needs BADGE_JWT_SECRET (>= 32 bytes);
//	          RS*/ES*/EdDSA need BADGE_JWT_PRIVATE_KEY_PATH
//	oidc      tokens from BADGE_OIDC_ISSUER_URL, audience BADGE_OIDC_CLIENT_ID
//	firebase  tokens from Firebase Auth; BADGE_FIREBASE_CREDENTIALS_PATH
//	          (service account) enables register through the Admin SDK,
//	          BADGE_FIREBASE_API_KEY enables login through the Identity Toolkit
//
// BADGE_AUDIT_LOG_DIR sends authentication events to rotated JSON files
// instead of the service log.
//
// Secrets (BADGE_JWT_SECRET, BADGE_DATABASE_URL, BADGE_OIDC_CLIENT_SECRET,
// BADGE_FIREBASE_API_KEY, BADGE_REDIS_URL) are removed from the process
// environment once read.
package config
