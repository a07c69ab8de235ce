// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package processor

import (
	"context"

	"github.com/sapcc/go-bits/logg"

	"github.com/Smile-SA/rating-operator-api/internal/auth"
	"github.com/Smile-SA/rating-operator-api/internal/models"
	"github.com/Smile-SA/rating-operator-api/internal/rating"
)

// AssociateNamespace makes the given tenant the only owner of the namespace.
func (p *Processor) AssociateNamespace(ctx context.Context, scope rating.Scope, namespace, tenantID string) error {
	return p.linkNamespace(ctx, scope, namespace, tenantID, true)
}

// LinkNamespace shares the namespace with the given tenant, in addition to
// its existing owners.
func (p *Processor) LinkNamespace(ctx context.Context, scope rating.Scope, namespace, tenantID string) error {
	return p.linkNamespace(ctx, scope, namespace, tenantID, false)
}

func (p *Processor) linkNamespace(ctx context.Context, scope rating.Scope, namespace, tenantID string, exclusive bool) error {
	err := scope.RequireAdmin()
	if err != nil {
		return err
	}
	if namespace == "" || tenantID == "" {
		return rating.ErrValidation.With("namespace and tenant_id are required")
	}
	_, err = p.store.AssociateNamespace(ctx, namespace, tenantID, exclusive)
	if err != nil {
		return rating.AsError(err)
	}
	logg.Info("associated namespace %q with tenant %q (exclusive = %t)", namespace, tenantID, exclusive)
	return nil
}

// UnlinkNamespace removes the association between the namespace and the given
// tenant, or all associations of the namespace if tenantID is empty.
func (p *Processor) UnlinkNamespace(ctx context.Context, scope rating.Scope, namespace, tenantID string) error {
	err := scope.RequireAdmin()
	if err != nil {
		return err
	}
	if namespace == "" {
		return rating.ErrValidation.With("namespace is required")
	}
	count, err := p.store.UnlinkNamespace(ctx, namespace, tenantID)
	if err != nil {
		return rating.AsError(err)
	}
	if count == 0 {
		return rating.ErrNotFound.With("namespace %q is not associated with tenant %q", namespace, tenantID)
	}
	logg.Info("removed %d tenant association(s) of namespace %q", count, namespace)
	return nil
}

// TenantInfo describes a tenant in the tenant listing.
type TenantInfo struct {
	TenantID   string   `json:"tenant_id"`
	Groups     []string `json:"groups"`
	Namespaces []string `json:"namespaces"`
}

// ListTenants lists all tenants with credentials and their namespaces.
func (p *Processor) ListTenants(ctx context.Context, scope rating.Scope) (Listing[TenantInfo], error) {
	err := scope.RequireAdmin()
	if err != nil {
		return Listing[TenantInfo]{}, err
	}
	users, err := p.store.ListUsers(ctx)
	if err != nil {
		return Listing[TenantInfo]{}, rating.AsError(err)
	}
	result := make([]TenantInfo, 0, len(users))
	for _, u := range users {
		groups, err := p.store.GroupsOfTenant(ctx, u.TenantID)
		if err != nil {
			return Listing[TenantInfo]{}, rating.AsError(err)
		}
		namespaces, err := p.store.NamespacesOfTenants(ctx, []string{u.TenantID})
		if err != nil {
			return Listing[TenantInfo]{}, rating.AsError(err)
		}
		result = append(result, TenantInfo{
			TenantID:   u.TenantID,
			Groups:     emptyIfNil(groups),
			Namespaces: emptyIfNil(namespaces),
		})
	}
	return NewListing(result), nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// CreateTenant stores credentials for a new tenant.
func (p *Processor) CreateTenant(ctx context.Context, scope rating.Scope, tenantID, password string, groups []string) error {
	err := scope.RequireAdmin()
	if err != nil {
		return err
	}
	if tenantID == "" {
		return rating.ErrValidation.With("tenant is required")
	}
	existing, err := p.store.FindUser(ctx, tenantID)
	if err != nil {
		return rating.AsError(err)
	}
	if existing != nil {
		return rating.ErrValidation.With("tenant %q already exists", tenantID)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	err = p.store.InsertUser(ctx, models.User{TenantID: tenantID, PasswordHash: hash}, groups)
	if err != nil {
		return rating.AsError(err)
	}
	logg.Info("created tenant %q", tenantID)
	return nil
}

// DeleteTenant removes a tenant together with its namespace associations.
func (p *Processor) DeleteTenant(ctx context.Context, scope rating.Scope, tenantID string) error {
	err := scope.RequireAdmin()
	if err != nil {
		return err
	}
	count, err := p.store.DeleteUser(ctx, tenantID)
	if err != nil {
		return rating.AsError(err)
	}
	if count == 0 {
		return rating.ErrNotFound.With("no such tenant: %q", tenantID)
	}
	logg.Info("deleted tenant %q", tenantID)
	return nil
}

// Current reports the tenant behind the given scope. Admins and anonymous
// users have no tenant.
func (p *Processor) Current(scope rating.Scope) string {
	if scope.Kind == rating.TenantScope {
		return scope.TenantID
	}
	return ""
}
