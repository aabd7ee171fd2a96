// Package users is the credential store: it persists UserIdentity records
// and their bcrypt verification material.
//
// Emails are compared in the form produced by NormalizeEmail (NFKC, then case
// folded). The normalized value carries a UNIQUE constraint, so concurrent
// registrations for one address cannot both succeed; the loser receives
// auth.ErrDuplicateEmail.
//
// Accounts owned by an external identity provider are mirrored with
// CreateExternalUser. They carry no verification material and cannot log in
// locally.
package users
