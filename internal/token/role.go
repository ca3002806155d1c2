package token

import (
	"github.com/golang-jwt/jwt/v5"

	"librarian/internal/model"
)

// RoleFromToken reads the first entry of the "roles" claim out of the
// token payload without verifying the signature; the client has no
// signing key and only needs the claim for UI gating, the server remains
// the authority on every request. Any malformed token, payload or claim
// yields RoleUnknown, never an error: a present-but-undecodable token is
// treated as authenticated with unknown privilege.
func RoleFromToken(tok string) model.Role {
	if tok == "" {
		return model.RoleUnknown
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return model.RoleUnknown
	}

	rawRoles, ok := claims["roles"].([]any)
	if !ok || len(rawRoles) == 0 {
		return model.RoleUnknown
	}
	first, ok := rawRoles[0].(string)
	if !ok {
		return model.RoleUnknown
	}

	switch first {
	case "ROLE_ADMIN":
		return model.RoleAdmin
	case "ROLE_LIBRARIAN":
		return model.RoleLibrarian
	case "ROLE_USER":
		return model.RoleUser
	default:
		return model.RoleUnknown
	}
}
