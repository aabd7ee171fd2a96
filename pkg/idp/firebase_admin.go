package idp

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/platinummonkey/badge/pkg/auth"
)

// MinFirebasePasswordLength is the shortest password Firebase Auth accepts
const MinFirebasePasswordLength = 6

// userCreator is the part of the Admin SDK auth client FirebaseAdmin uses
type userCreator interface {
	CreateUser(ctx context.Context, user *fbauth.UserToCreate) (*fbauth.UserRecord, error)
}

// FirebaseAdmin creates accounts with the Firebase Admin SDK. The account
// and its display name are written in one CreateUser call.
type FirebaseAdmin struct {
	users userCreator
}

// NewFirebaseAdmin initializes the Admin SDK for projectID. Credentials come
// from opts, usually option.WithCredentialsFile with the service account.
func NewFirebaseAdmin(ctx context.Context, projectID string, opts ...option.ClientOption) (*FirebaseAdmin, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: firebase project id is required", auth.ErrMisconfigured)
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize firebase app: %v", auth.ErrMisconfigured, err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize firebase auth: %v", auth.ErrMisconfigured, err)
	}
	return &FirebaseAdmin{users: client}, nil
}

// SignUp creates an email/password account. The Admin SDK returns no ID
// token, so the client signs in with the provider afterwards.
func (f *FirebaseAdmin) SignUp(ctx context.Context, email, password, displayName string) (*ExternalAccount, error) {
	if len(password) < MinFirebasePasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", auth.ErrMalformed, MinFirebasePasswordLength)
	}

	params := (&fbauth.UserToCreate{}).
		Email(strings.TrimSpace(email)).
		Password(password)
	if name := strings.TrimSpace(displayName); name != "" {
		params = params.DisplayName(name)
	}

	record, err := f.users.CreateUser(ctx, params)
	if err != nil {
		if fbauth.IsEmailAlreadyExists(err) {
			return nil, auth.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("firebase create user: %w", err)
	}
	if record == nil || record.UserInfo == nil {
		return nil, fmt.Errorf("firebase create user: empty user record")
	}

	return &ExternalAccount{
		ID:          record.UID,
		Email:       record.Email,
		DisplayName: record.DisplayName,
	}, nil
}
