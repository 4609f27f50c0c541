package tenant

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tenantClaim is the JWT claim carrying the tenant identifier.
const tenantClaim = "tid"

// Claims is the verified content of a tenant bearer token.
type Claims struct {
	TenantID  ID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Verifier validates signed, time-bounded tenant tokens. Tokens are issued
// by the call-handling collaborator; this engine only verifies them.
type Verifier struct {
	secret    []byte
	directory Directory
}

// NewVerifier creates a verifier with the shared HMAC secret and the
// directory of known tenants.
func NewVerifier(secret []byte, directory Directory) *Verifier {
	return &Verifier{
		secret:    secret,
		directory: directory,
	}
}

// Verify parses and validates a bearer token and resolves it to a tenant.
// A missing, malformed, or expired token yields Unauthorized; a valid token
// for an unknown tenant yields Forbidden. There is no default tenant.
func (v *Verifier) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, AuthError{Code: Unauthorized, Reason: "missing token"}
	}

	parsed, err := jwt.Parse(token,
		func(t *jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, AuthError{Code: Unauthorized, Reason: "invalid token"}
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, AuthError{Code: Unauthorized, Reason: "invalid claims"}
	}

	tid, ok := mapClaims[tenantClaim].(string)
	if !ok || tid == "" {
		return nil, AuthError{Code: Unauthorized, Reason: "token has no tenant claim"}
	}

	if v.directory != nil && !v.directory.Exists(ID(tid)) {
		return nil, AuthError{Code: Forbidden, Reason: "unknown tenant"}
	}

	claims := &Claims{TenantID: ID(tid)}

	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}

	return claims, nil
}

// Issue mints a signed tenant token. It exists for local development and
// tests; production tokens come from the token-issuing authority.
func Issue(secret []byte, tenantID ID, ttl time.Duration) (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		tenantClaim: string(tenantID),
		"iat":       now.Unix(),
		"exp":       now.Add(ttl).Unix(),
	})

	return token.SignedString(secret)
}
