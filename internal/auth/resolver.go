// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"slices"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Smile-SA/rating-operator-api/internal/rating"
)

// AdminTokenHeader is the request header carrying the admin secret.
const AdminTokenHeader = "X-Rating-Admin-Token"

// Resolver maps incoming requests to a rating.Scope. This is the only place
// where identities are turned into access rights.
type Resolver struct {
	cfg        rating.Configuration
	namespaces rating.NamespaceStore
	tenants    rating.TenantStore

	//non-pure functions that can be replaced by deterministic doubles for unit tests
	timeNow func() time.Time
}

// NewResolver builds a Resolver.
func NewResolver(cfg rating.Configuration, namespaces rating.NamespaceStore, tenants rating.TenantStore) *Resolver {
	return &Resolver{cfg: cfg, namespaces: namespaces, tenants: tenants, timeNow: time.Now}
}

// OverrideTimeNow replaces time.Now with a test double.
func (r *Resolver) OverrideTimeNow(timeNow func() time.Time) *Resolver {
	r.timeNow = timeNow
	return r
}

// Resolve computes the scope of an incoming request:
//
//   - A request carrying the admin secret (in the X-Rating-Admin-Token header,
//     or in the "token" query or form field) gets the admin scope. A wrong
//     secret is rejected with Forbidden.
//   - A request carrying a bearer token gets the scope of its tenant. Broken
//     or expired tokens are rejected with Unauthorized.
//   - Everything else gets the public scope.
func (r *Resolver) Resolve(req *http.Request) (rating.Scope, error) {
	secret := req.Header.Get(AdminTokenHeader)
	if secret == "" {
		secret = req.FormValue("token")
	}
	if secret != "" {
		return r.CheckAdminSecret(secret)
	}

	authHeader := req.Header.Get("Authorization")
	if authHeader == "" {
		return rating.Public(), nil
	}
	tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return rating.Scope{}, rating.ErrUnauthorized.With("unsupported Authorization header")
	}
	tenantID, err := r.parseToken(tokenStr)
	if err != nil {
		return rating.Scope{}, err
	}
	return r.ScopeOfTenant(req.Context(), tenantID)
}

// CheckAdminSecret returns the admin scope if the given secret is correct.
func (r *Resolver) CheckAdminSecret(secret string) (rating.Scope, error) {
	if subtle.ConstantTimeCompare([]byte(secret), []byte(r.cfg.AdminAPIKey)) != 1 {
		return rating.Scope{}, rating.ErrForbidden.With("invalid admin token")
	}
	return rating.Admin(), nil
}

// ScopeOfTenant computes the scope of the given tenant. The tenant can read
// its own namespaces and those of every tenant sharing a group with it.
func (r *Resolver) ScopeOfTenant(ctx context.Context, tenantID string) (rating.Scope, error) {
	if tenantID == r.cfg.PublicTenantID {
		return rating.Public(), nil
	}

	groups, err := r.tenants.GroupsOfTenant(ctx, tenantID)
	if err != nil {
		return rating.Scope{}, rating.AsError(err)
	}
	tenantIDs := []string{tenantID}
	if len(groups) > 0 {
		members, err := r.tenants.MembersOfGroups(ctx, groups)
		if err != nil {
			return rating.Scope{}, rating.AsError(err)
		}
		tenantIDs = append(tenantIDs, members...)
		slices.Sort(tenantIDs)
		tenantIDs = slices.Compact(tenantIDs)
	}

	namespaces, err := r.namespaces.NamespacesOfTenants(ctx, tenantIDs)
	if err != nil {
		return rating.Scope{}, rating.AsError(err)
	}
	// tenants with at least one namespace also read frames without one
	if r.cfg.IncludeUnspecified && len(namespaces) > 0 && !slices.Contains(namespaces, rating.UnspecifiedNamespace) {
		namespaces = append(namespaces, rating.UnspecifiedNamespace)
	}
	return rating.ForTenant(tenantID, namespaces), nil
}

// Login checks a tenant's password and issues a bearer token.
func (r *Resolver) Login(ctx context.Context, tenantID, password string) (*TokenResponse, error) {
	if tenantID == "" || password == "" {
		return nil, rating.ErrValidation.With("missing tenant or password")
	}
	user, err := r.tenants.FindUser(ctx, tenantID)
	if err != nil {
		return nil, rating.AsError(err)
	}
	if user == nil {
		//response timing must not reveal which tenants exist
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, rating.ErrUnauthorized.With("wrong tenant or password")
	}
	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil {
		return nil, rating.ErrUnauthorized.With("wrong tenant or password")
	}
	return r.IssueToken(tenantID)
}

var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// HashPassword computes the hash stored in the users table.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", rating.ErrValidation.With("missing password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", rating.ErrValidation.With("cannot hash password: %s", err.Error())
	}
	return string(hash), nil
}
