// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package rating

import (
	"fmt"
	"slices"
)

// ScopeKind enumerates the three access tiers.
type ScopeKind int

// Possible values for ScopeKind.
const (
	PublicScope ScopeKind = iota
	TenantScope
	AdminScope
)

// Scope is the resolved visibility of a request: nothing but public
// catalogues, a fixed set of namespaces, or everything. It is computed once
// per request and passed explicitly into every operation.
type Scope struct {
	Kind       ScopeKind
	TenantID   string
	namespaces map[string]struct{}
}

// Public returns the scope of an unauthenticated request.
func Public() Scope {
	return Scope{Kind: PublicScope}
}

// Admin returns the scope of a request carrying the admin secret.
func Admin() Scope {
	return Scope{Kind: AdminScope}
}

// ForTenant returns the scope of a tenant that may read the given namespaces.
func ForTenant(tenantID string, namespaces []string) Scope {
	s := Scope{Kind: TenantScope, TenantID: tenantID, namespaces: make(map[string]struct{}, len(namespaces))}
	for _, ns := range namespaces {
		s.namespaces[ns] = struct{}{}
	}
	return s
}

// IsAdmin returns whether this is the admin scope.
func (s Scope) IsAdmin() bool {
	return s.Kind == AdminScope
}

// Namespaces returns the readable namespaces in sorted order. The result is
// nil for the admin scope, which can read everything.
func (s Scope) Namespaces() []string {
	if s.Kind != TenantScope {
		return nil
	}
	result := make([]string, 0, len(s.namespaces))
	for ns := range s.namespaces {
		result = append(result, ns)
	}
	slices.Sort(result)
	return result
}

// CanRead returns whether frames of the given namespace are visible.
func (s Scope) CanRead(namespace string) bool {
	switch s.Kind {
	case AdminScope:
		return true
	case TenantScope:
		_, ok := s.namespaces[namespace]
		return ok
	default:
		return false
	}
}

// AuthorizeNamespace returns Forbidden unless the namespace is readable.
// Whether the namespace exists is not considered.
func (s Scope) AuthorizeNamespace(namespace string) error {
	if err := s.RequireFrameAccess(); err != nil {
		return err
	}
	if !s.CanRead(namespace) {
		return ErrForbidden.With("no access to namespace %q", namespace)
	}
	return nil
}

// RequireFrameAccess returns Forbidden for the public scope, which never sees
// cost data.
func (s Scope) RequireFrameAccess() error {
	if s.Kind == PublicScope {
		return ErrForbidden.With("authentication required to read rating data")
	}
	return nil
}

// RequireAdmin returns Forbidden unless this is the admin scope.
func (s Scope) RequireAdmin() error {
	if s.Kind != AdminScope {
		return ErrForbidden.With("admin token required")
	}
	return nil
}

// Restrict narrows a FrameQuery to the namespaces in this scope.
func (s Scope) Restrict(q FrameQuery) FrameQuery {
	if s.Kind == AdminScope {
		q.AllNamespaces = true
		q.Namespaces = nil
	} else {
		q.AllNamespaces = false
		q.Namespaces = s.Namespaces()
	}
	return q
}

// String implements the fmt.Stringer interface.
func (s Scope) String() string {
	switch s.Kind {
	case AdminScope:
		return "admin"
	case TenantScope:
		return fmt.Sprintf("tenant %q", s.TenantID)
	default:
		return "public"
	}
}
