package auth

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/spec-kit/security-service/internal/domain"
)

// Claim keys embedded in every issued token.
const (
	ClaimName     = "name"
	ClaimTokenID  = "jti"
	ClaimFullName = "FullName"
	ClaimIsStaff  = "IsStaff"
)

// Principal is the authenticated identity a token is built from. It is only
// constructed from an active user record; the workflow rejects inactive
// users before claims are assembled.
type Principal struct {
	UserID     string
	Username   string
	FullName   string
	Staff      bool
	Active     bool
	Roles      []string
	Claims     []domain.Claim
	RoleClaims map[string][]domain.Claim
}

// BuildClaims assembles the ordered claim list for a principal:
// name, a fresh jti, direct claims, each role's claims in role order,
// then FullName and IsStaff. Duplicate keys across roles are kept as-is.
// A role missing from RoleClaims contributes nothing; that is not an error.
func BuildClaims(p *Principal) []domain.Claim {
	claims := make([]domain.Claim, 0, len(p.Claims)+len(p.Roles)+4)
	claims = append(claims,
		domain.Claim{Key: ClaimName, Value: p.Username},
		domain.Claim{Key: ClaimTokenID, Value: uuid.NewString()},
	)
	claims = append(claims, p.Claims...)
	for _, role := range p.Roles {
		claims = append(claims, p.RoleClaims[role]...)
	}
	claims = append(claims,
		domain.Claim{Key: ClaimFullName, Value: p.FullName},
		domain.Claim{Key: ClaimIsStaff, Value: strconv.FormatBool(p.Staff)},
	)
	return claims
}
