package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Roles  []string
}

func (i Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Identity, error)
}

// ExtractTokenFromRequest returns the bearer token of the Authorization header.
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header is missing")
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}
	return parts[1], nil
}

// tokenClaims covers the claim shapes we accept: a plain "role" claim from
// HMAC tokens and Keycloak-style realm roles from OIDC providers.
type tokenClaims struct {
	jwt.RegisteredClaims
	UserID      string   `json:"userId,omitempty"`
	Role        string   `json:"role,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

func (c tokenClaims) identity() (*Identity, error) {
	id := c.Subject
	if id == "" {
		id = c.UserID
	}
	if id == "" {
		return nil, errors.New("subject claim not found in token")
	}
	roles := append([]string{}, c.Roles...)
	roles = append(roles, c.RealmAccess.Roles...)
	if c.Role != "" {
		roles = append(roles, c.Role)
	}
	return &Identity{UserID: id, Roles: roles}, nil
}

// HMACVerifier validates HS256 tokens signed with a shared secret.
type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

func (v *HMACVerifier) Verify(_ context.Context, rawToken string) (*Identity, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(rawToken, &claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claims.identity()
}

// Sign issues an HS256 token. Used by tooling and tests.
func (v *HMACVerifier) Sign(userID, role string, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = userID
	return jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: claims,
		Role:             role,
	}).SignedString(v.secret)
}
