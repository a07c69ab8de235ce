// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sapcc/go-bits/assert"
	"github.com/sapcc/go-bits/mock"
	"github.com/sapcc/go-bits/must"

	"github.com/Smile-SA/rating-operator-api/internal/auth"
	"github.com/Smile-SA/rating-operator-api/internal/models"
	"github.com/Smile-SA/rating-operator-api/internal/rating"
	"github.com/Smile-SA/rating-operator-api/internal/test"
)

const adminSecret = "correct-horse-battery-staple"

func setupResolver(t *testing.T) (*auth.Resolver, *test.MemoryStore, *mock.Clock) {
	t.Helper()
	store := test.NewMemoryStore()
	store.Namespaces = []models.Namespace{
		{Name: "ns-a", TenantID: "t1"},
		{Name: "ns-b", TenantID: "t2"},
		{Name: "ns-c", TenantID: "t3"},
		{Name: "shared", TenantID: "t1"},
		{Name: "shared", TenantID: "t3"},
		{Name: "kube-system", TenantID: "default"},
	}
	store.Groups = []models.GroupTenant{
		{TenantID: "t2", UserGroup: "finance"},
		{TenantID: "t3", UserGroup: "finance"},
	}
	cfg := rating.Configuration{
		AdminAPIKey:        adminSecret,
		JWTSecret:          []byte("secret-for-signing-tokens"),
		TokenLifetime:      time.Hour,
		PublicTenantID:     "default",
		IncludeUnspecified: true,
	}
	clock := mock.NewClock()
	clock.StepBy(1000 * time.Hour)
	r := auth.NewResolver(cfg, store, store).OverrideTimeNow(clock.Now)
	return r, store, clock
}

func bearer(t *testing.T, r *auth.Resolver, tenantID string) string {
	t.Helper()
	resp := must.ReturnT(r.IssueToken(tenantID))(t)
	return "Bearer " + resp.Token
}

func TestAdminSecret(t *testing.T) {
	r, _, _ := setupResolver(t)

	req := httptest.NewRequest(http.MethodGet, "/namespaces", http.NoBody)
	req.Header.Set(auth.AdminTokenHeader, adminSecret)
	scope := must.ReturnT(r.Resolve(req))(t)
	assert.DeepEqual(t, "scope", scope.String(), "admin")

	req = httptest.NewRequest(http.MethodGet, "/namespaces?token="+adminSecret, http.NoBody)
	scope = must.ReturnT(r.Resolve(req))(t)
	assert.DeepEqual(t, "scope", scope.String(), "admin")

	req = httptest.NewRequest(http.MethodPost, "/namespaces/tenant", strings.NewReader("token="+adminSecret))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	scope = must.ReturnT(r.Resolve(req))(t)
	assert.DeepEqual(t, "scope", scope.String(), "admin")

	req = httptest.NewRequest(http.MethodGet, "/namespaces?token=wrong", http.NoBody)
	_, err := r.Resolve(req)
	assert.DeepEqual(t, "is forbidden", rating.IsCode(err, rating.ErrForbidden), true)
}

func TestTenantScope(t *testing.T) {
	r, store, clock := setupResolver(t)

	//no credentials
	req := httptest.NewRequest(http.MethodGet, "/namespaces", http.NoBody)
	scope := must.ReturnT(r.Resolve(req))(t)
	assert.DeepEqual(t, "scope", scope.String(), "public")

	//a tenant without groups sees its own namespaces
	req.Header.Set("Authorization", bearer(t, r, "t1"))
	scope = must.ReturnT(r.Resolve(req))(t)
	assert.DeepEqual(t, "scope", scope.String(), `tenant "t1"`)
	assert.DeepEqual(t, "namespaces", scope.Namespaces(), []string{"ns-a", "shared", "unspecified"})
	assert.DeepEqual(t, "own namespace", scope.AuthorizeNamespace("ns-a"), error(nil))
	err := scope.AuthorizeNamespace("ns-b")
	assert.DeepEqual(t, "foreign namespace", rating.IsCode(err, rating.ErrForbidden), true)
	err = scope.AuthorizeNamespace("does-not-exist")
	assert.DeepEqual(t, "unknown namespace", rating.IsCode(err, rating.ErrForbidden), true)

	//group members see each other's namespaces
	req.Header.Set("Authorization", bearer(t, r, "t2"))
	scope = must.ReturnT(r.Resolve(req))(t)
	assert.DeepEqual(t, "namespaces", scope.Namespaces(), []string{"ns-b", "ns-c", "shared", "unspecified"})

	//a tenant without namespaces does not get "unspecified" either
	req.Header.Set("Authorization", bearer(t, r, "t4"))
	scope = must.ReturnT(r.Resolve(req))(t)
	assert.DeepEqual(t, "namespaces", scope.Namespaces(), []string{})

	//a tenant owning "unspecified" explicitly gets it only once
	store.Namespaces = append(store.Namespaces,
		models.Namespace{Name: "ns-d", TenantID: "t5"},
		models.Namespace{Name: rating.UnspecifiedNamespace, TenantID: "t5"},
	)
	req.Header.Set("Authorization", bearer(t, r, "t5"))
	scope = must.ReturnT(r.Resolve(req))(t)
	assert.DeepEqual(t, "namespaces", scope.Namespaces(), []string{"ns-d", "unspecified"})

	//the public tenant is not special-cased as a tenant
	req.Header.Set("Authorization", bearer(t, r, "default"))
	scope = must.ReturnT(r.Resolve(req))(t)
	assert.DeepEqual(t, "scope", scope.String(), "public")

	//broken and expired tokens
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	_, err = r.Resolve(req)
	assert.DeepEqual(t, "is unauthorized", rating.IsCode(err, rating.ErrUnauthorized), true)

	req.Header.Set("Authorization", bearer(t, r, "t1"))
	clock.StepBy(2 * time.Hour)
	_, err = r.Resolve(req)
	assert.DeepEqual(t, "error message", err.Error(), "authentication failed: token expired")
}

func TestLogin(t *testing.T) {
	r, store, _ := setupResolver(t)
	ctx := context.Background()
	hash := must.ReturnT(auth.HashPassword("swordfish"))(t)
	must.SucceedT(t, store.InsertUser(ctx, models.User{TenantID: "t1", PasswordHash: hash}, nil))

	_, err := r.Login(ctx, "t1", "wrong")
	assert.DeepEqual(t, "is unauthorized", rating.IsCode(err, rating.ErrUnauthorized), true)
	_, err = r.Login(ctx, "t9", "swordfish")
	assert.DeepEqual(t, "is unauthorized", rating.IsCode(err, rating.ErrUnauthorized), true)

	resp := must.ReturnT(r.Login(ctx, "t1", "swordfish"))(t)
	assert.DeepEqual(t, "expires in", resp.ExpiresIn, uint64(3600))

	req := httptest.NewRequest(http.MethodGet, "/current", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	scope := must.ReturnT(r.Resolve(req))(t)
	assert.DeepEqual(t, "tenant", scope.TenantID, "t1")
}
