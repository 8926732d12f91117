// Package auth defines the credential boundary for the sync core. Token
// acquisition itself (Firebase or otherwise) lives outside this module;
// the engine only ever asks "who am I" and "do I have a token right now".
package auth

import (
	"errors"

	"golang.org/x/oauth2"
)

// ErrNotAuthenticated is returned when an online operation needs a token and
// none is available. Callers treat it as "fall back to the offline path",
// never as a fatal error.
var ErrNotAuthenticated = errors.New("auth: no id token available")

// CredentialProvider supplies the current user identity and bearer token.
type CredentialProvider interface {
	// CurrentUserID returns the stable user identifier sent with every
	// backend request.
	CurrentUserID() string

	// CurrentIDToken returns the bearer token and whether one is present.
	CurrentIDToken() (string, bool)
}

// StaticProvider is a CredentialProvider backed by fixed values, typically
// loaded from the environment.
type StaticProvider struct {
	UserID string
	Token  string
}

// CurrentUserID returns the configured user id.
func (p StaticProvider) CurrentUserID() string { return p.UserID }

// CurrentIDToken returns the configured token, absent when empty.
func (p StaticProvider) CurrentIDToken() (string, bool) {
	return p.Token, p.Token != ""
}

// TokenSource adapts a CredentialProvider to oauth2.TokenSource so it can
// back an authenticated http.Client.
func TokenSource(p CredentialProvider) oauth2.TokenSource {
	return tokenSource{provider: p}
}

type tokenSource struct {
	provider CredentialProvider
}

func (ts tokenSource) Token() (*oauth2.Token, error) {
	tok, ok := ts.provider.CurrentIDToken()
	if !ok {
		return nil, ErrNotAuthenticated
	}
	return &oauth2.Token{AccessToken: tok}, nil
}
