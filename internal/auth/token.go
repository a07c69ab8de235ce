// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	uuid "github.com/satori/go.uuid"

	"github.com/Smile-SA/rating-operator-api/internal/rating"
)

const tokenIssuer = "rating-operator-api"

// Type representation for JWT claims issued by this service.
type tokenClaims struct {
	jwt.RegisteredClaims
	Tenant string `json:"tenant"`
}

// TokenResponse is returned by the login endpoint. The Token field contains
// a JWT that can be presented as a Bearer token.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn uint64 `json:"expires_in"`
	IssuedAt  string `json:"issued_at"`
}

// IssueToken renders a bearer token for the given tenant.
func (r *Resolver) IssueToken(tenantID string) (*TokenResponse, error) {
	now := r.timeNow()
	expiresAt := now.Add(r.cfg.TokenLifetime)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewV4().String(),
			Issuer:    tokenIssuer,
			Subject:   tenantID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Tenant: tenantID,
	}).SignedString(r.cfg.JWTSecret)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{
		Token:     token,
		ExpiresIn: uint64(expiresAt.Sub(now).Seconds()),
		IssuedAt:  now.Format(time.RFC3339),
	}, nil
}

// parseToken returns the tenant ID carried by a bearer token.
func (r *Resolver) parseToken(tokenStr string) (string, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return r.cfg.JWTSecret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return "", rating.ErrUnauthorized.With("%s", err.Error())
	}
	if !token.Valid {
		return "", rating.ErrUnauthorized.With("token invalid")
	}

	//check claims against our own clock (allow up to 3 seconds clock mismatch)
	now := r.timeNow()
	if !claims.VerifyExpiresAt(now.Add(-3*time.Second), true) {
		return "", rating.ErrUnauthorized.With("token expired")
	}
	if !claims.VerifyNotBefore(now.Add(3*time.Second), true) {
		return "", rating.ErrUnauthorized.With("token not valid yet")
	}
	if !claims.VerifyIssuer(tokenIssuer, true) {
		return "", rating.ErrUnauthorized.With("token has wrong issuer (expected %s)", tokenIssuer)
	}
	if claims.Tenant == "" {
		return "", rating.ErrUnauthorized.With("token does not identify a tenant")
	}
	return claims.Tenant, nil
}
