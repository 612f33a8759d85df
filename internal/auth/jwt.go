package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTenantClaim is the custom claim holding the tenant id.
const DefaultTenantClaim = "custom:tenant_id"

// JWTVerifier verifies HMAC-signed tokens. Tokens must carry exp and, when configured, the issuer.
type JWTVerifier struct {
	secret      []byte
	tenantClaim string
	parser      *jwt.Parser
}

// NewJWTVerifier creates a verifier. An empty tenantClaim selects DefaultTenantClaim.
func NewJWTVerifier(secret, issuer, tenantClaim string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret cannot be empty")
	}
	if tenantClaim == "" {
		tenantClaim = DefaultTenantClaim
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	return &JWTVerifier{
		secret:      []byte(secret),
		tenantClaim: tenantClaim,
		parser:      jwt.NewParser(opts...),
	}, nil
}

// Verify checks the token and extracts the tenant and subject claims.
func (v *JWTVerifier) Verify(_ context.Context, token string) (Claims, error) {
	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return Claims{}, err
	}

	subject, err := claims.GetSubject()
	if err != nil {
		return Claims{}, err
	}
	tenantID, _ := claims[v.tenantClaim].(string)
	if tenantID == "" {
		return Claims{}, fmt.Errorf("claim %q is missing", v.tenantClaim)
	}

	return Claims{TenantID: tenantID, Subject: subject}, nil
}
