// Package auth resolves an HTTP caller to a stable user ID.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// ErrUnauthenticated is returned when no user can be resolved.
var ErrUnauthenticated = errors.New("auth: unauthenticated")

// DefaultUserHeader carries the user ID in header mode.
const DefaultUserHeader = "X-User-ID"

// Authenticator resolves the user behind a request.
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

// tokenVerifier is the subset of *fbauth.Client used here.
type tokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// FirebaseAuthenticator verifies Firebase ID tokens sent as bearer tokens.
type FirebaseAuthenticator struct {
	verifier tokenVerifier
}

// NewFirebaseAuthenticator initializes a Firebase app with default
// credentials, or with credentialsFile when set.
func NewFirebaseAuthenticator(ctx context.Context, projectID, credentialsFile string) (*FirebaseAuthenticator, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	var conf *firebase.Config
	if projectID != "" {
		conf = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewFirebaseAuthenticator: initializing app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewFirebaseAuthenticator: getting auth client: %w", err)
	}
	return &FirebaseAuthenticator{verifier: client}, nil
}

func (f *FirebaseAuthenticator) Authenticate(r *http.Request) (string, error) {
	token, err := ExtractBearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	verified, err := f.verifier.VerifyIDToken(r.Context(), token)
	if err != nil {
		return "", fmt.Errorf("%w: verify ID token: %v", ErrUnauthenticated, err)
	}
	if verified.UID == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}
	return verified.UID, nil
}

// HeaderAuthenticator trusts a request header. Local development only.
type HeaderAuthenticator struct {
	Header string
}

func (h HeaderAuthenticator) Authenticate(r *http.Request) (string, error) {
	name := h.Header
	if name == "" {
		name = DefaultUserHeader
	}
	userID := strings.TrimSpace(r.Header.Get(name))
	if userID == "" {
		return "", fmt.Errorf("%w: missing %s header", ErrUnauthenticated, name)
	}
	return userID, nil
}

// ExtractBearerToken extracts the token from an Authorization header value.
func ExtractBearerToken(header string) (string, error) {
	if header == "" {
		return "", fmt.Errorf("authorization header is required")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("authorization header must be Bearer token")
	}
	return strings.TrimSpace(parts[1]), nil
}

type contextKey struct{}

// WithUserID stores the authenticated user ID in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserIDFromContext returns the authenticated user ID, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(contextKey{}).(string)
	return userID, ok && userID != ""
}
