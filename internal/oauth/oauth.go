// Package oauth implements the token exchange and revocation flows for the
// two supported identity providers.
package oauth

// Identity is the verified result of a provider login.
type Identity struct {
	ExtUserID string
	Name      string
	Email     string
	Picture   string
	// Token is the provider token material kept in the session for the
	// later disconnect call. Google stores a credentials JSON, Facebook
	// the long-lived access token.
	Token string
}

// AuthError carries the HTTP status the login endpoint must answer with.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}
