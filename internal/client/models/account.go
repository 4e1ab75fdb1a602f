package models

import (
	"strings"

	"github.com/dmitrijs2005/memosync/internal/cryptox"
	"github.com/golang-jwt/jwt/v5"
)

type AccountKind string

const (
	AccountLocal  AccountKind = "local"
	AccountRemote AccountKind = "remote"
)

// LocalAccountKey is the key of the single offline-only account.
const LocalAccountKey = "local"

// Account describes where memos live. Remote accounts carry the server
// address and the access token issued for it.
type Account struct {
	Kind        AccountKind
	Host        string
	AccessToken string
}

// TokenClaims is the subset of access token claims memosync reads. The token
// is never verified locally; the server remains the authority.
type TokenClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Claims parses the access token without verifying its signature.
func (a Account) Claims() (*TokenClaims, bool) {
	if a.AccessToken == "" {
		return nil, false
	}
	claims := &TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(a.AccessToken, claims); err != nil {
		return nil, false
	}
	return claims, true
}

// Key derives the account identity that scopes every stored record. For
// remote accounts it combines the host with the token subject, falling
// back to a digest of the token when it is not a JWT.
func (a Account) Key() string {
	if a.Kind != AccountRemote {
		return LocalAccountKey
	}

	host := strings.TrimRight(strings.ToLower(a.Host), "/")
	if c, ok := a.Claims(); ok && c.Subject != "" {
		return host + "|" + c.Subject
	}
	return host + "|" + cryptox.ShortDigest([]byte(a.AccessToken), 16)
}
