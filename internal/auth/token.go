package auth

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/security-service/internal/config"
	"github.com/spec-kit/security-service/internal/domain"
	"github.com/spec-kit/security-service/pkg/util"
)

// Error codes produced by token operations.
const (
	CodeInvalidToken         = "INVALID_TOKEN"
	CodeConfigurationMissing = "CONFIGURATION_MISSING"
)

// fallbackLifetimeMinutes bounds tokens issued while lifetime validation is
// disabled. Disabling the lifetime check does not mean an infinite token;
// it substitutes a one-year expiry.
const fallbackLifetimeMinutes = 60 * 24 * 365

// TokenManager issues and verifies signed bearer tokens. The config is
// immutable and shared read-only across requests; a nil config is rejected
// at first use rather than at construction.
type TokenManager struct {
	cfg *config.JwtConfig
}

// NewTokenManager builds a new manager.
func NewTokenManager(cfg *config.JwtConfig) *TokenManager {
	return &TokenManager{cfg: cfg}
}

// DecodedToken is the verified content of a bearer token.
type DecodedToken struct {
	Username string         `json:"username"`
	FullName string         `json:"fullName"`
	IsStaff  bool           `json:"isStaff"`
	Claims   []domain.Claim `json:"claims"`
}

// Issue signs the ordered claim list into a compact token string. The issuer
// and audience fields are set only when their validation toggles are on;
// expiry uses the configured lifetime, or the one-year fallback when
// lifetime validation is off.
func (tm *TokenManager) Issue(claims []domain.Claim) (string, error) {
	if err := tm.checkConfig(); err != nil {
		return "", err
	}

	payload := jwt.MapClaims{}
	for _, claim := range claims {
		appendClaim(payload, claim.Key, claim.Value)
	}

	if tm.cfg.ValidateIssuer {
		payload["iss"] = tm.cfg.ValidIssuer
	}
	if tm.cfg.ValidateAudience {
		payload["aud"] = tm.cfg.ValidAudience
	}

	lifetime := fallbackLifetimeMinutes
	if tm.cfg.ValidateLifetime {
		lifetime = tm.cfg.LifetimeMinutes
	}
	payload["exp"] = jwt.NewNumericDate(time.Now().Add(time.Duration(lifetime) * time.Minute))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)
	signed, err := token.SignedString([]byte(tm.cfg.SecretKey))
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Decode verifies the token signature and the registered fields enabled in
// the config, then returns the embedded claims. Any failure yields an
// INVALID_TOKEN outcome; a partially populated result is never returned.
func (tm *TokenManager) Decode(tokenStr string) (*DecodedToken, error) {
	if err := tm.checkConfig(); err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if !tm.cfg.ValidateLifetime {
		// Skips expiry checking entirely; issuer and audience are still
		// enforced manually below when their toggles are on.
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	parsed, err := jwt.ParseWithClaims(tokenStr, jwt.MapClaims{}, func(t *jwt.Token) (any, error) {
		return []byte(tm.cfg.SecretKey), nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, invalidToken(err)
	}

	payload, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, invalidToken(nil)
	}

	if tm.cfg.ValidateIssuer {
		issuer, err := payload.GetIssuer()
		if err != nil || issuer != tm.cfg.ValidIssuer {
			return nil, invalidToken(fmt.Errorf("issuer mismatch"))
		}
	}
	if tm.cfg.ValidateAudience {
		audience, err := payload.GetAudience()
		if err != nil || !containsAudience(audience, tm.cfg.ValidAudience) {
			return nil, invalidToken(fmt.Errorf("audience mismatch"))
		}
	}

	decoded := &DecodedToken{
		Username: stringClaim(payload, ClaimName),
		FullName: stringClaim(payload, ClaimFullName),
		Claims:   flattenClaims(payload),
	}
	decoded.IsStaff, _ = strconv.ParseBool(stringClaim(payload, ClaimIsStaff))
	return decoded, nil
}

func (tm *TokenManager) checkConfig() error {
	if tm.cfg == nil || tm.cfg.SecretKey == "" {
		return util.NewAuthFailure(CodeConfigurationMissing, "jwt configuration missing")
	}
	return nil
}

func invalidToken(err error) error {
	failure := util.NewAuthFailure(CodeInvalidToken, "invalid token")
	failure.Err = err
	return failure
}

// appendClaim keeps duplicate keys by promoting the value to a list, which
// is how repeated claims are represented on the wire.
func appendClaim(payload jwt.MapClaims, key, value string) {
	existing, ok := payload[key]
	if !ok {
		payload[key] = value
		return
	}
	switch v := existing.(type) {
	case []string:
		payload[key] = append(v, value)
	case string:
		payload[key] = []string{v, value}
	}
}

func containsAudience(audience jwt.ClaimStrings, expected string) bool {
	for _, aud := range audience {
		if aud == expected {
			return true
		}
	}
	return false
}

func stringClaim(payload jwt.MapClaims, key string) string {
	switch v := payload[key].(type) {
	case string:
		return v
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

// flattenClaims rebuilds the raw claim list from the decoded payload. Key
// order inside a JWT object is not significant after parsing, so the list
// is keyed alphabetically for stable output; list-valued claims expand back
// into one entry per value.
func flattenClaims(payload jwt.MapClaims) []domain.Claim {
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	claims := make([]domain.Claim, 0, len(keys))
	for _, key := range keys {
		switch v := payload[key].(type) {
		case string:
			claims = append(claims, domain.Claim{Key: key, Value: v})
		case []any:
			for _, item := range v {
				claims = append(claims, domain.Claim{Key: key, Value: fmt.Sprint(item)})
			}
		case []string:
			for _, item := range v {
				claims = append(claims, domain.Claim{Key: key, Value: item})
			}
		case float64:
			claims = append(claims, domain.Claim{Key: key, Value: strconv.FormatInt(int64(v), 10)})
		case bool:
			claims = append(claims, domain.Claim{Key: key, Value: strconv.FormatBool(v)})
		default:
			claims = append(claims, domain.Claim{Key: key, Value: fmt.Sprint(v)})
		}
	}
	return claims
}
