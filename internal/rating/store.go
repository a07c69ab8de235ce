// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package rating

import (
	"context"
	"slices"
	"time"

	"github.com/Smile-SA/rating-operator-api/internal/models"
)

// FrameQuery describes a selection of frames. Empty scalar filters match
// everything.
type FrameQuery struct {
	// Range restricts to frames intersecting [Start, End). Nil means unbounded.
	Range *TimeRange
	// Namespaces restricts the selection unless AllNamespaces is set. An empty
	// list with AllNamespaces unset selects nothing.
	AllNamespaces bool
	Namespaces    []string

	Namespace string
	Node      string
	Pod       string
	Metric    string
}

// Matches returns whether the frame is part of this selection.
func (q FrameQuery) Matches(f models.Frame) bool {
	if q.Range != nil && !q.Range.Intersects(f.FrameBegin, f.FrameEnd) {
		return false
	}
	if !q.AllNamespaces && !slices.Contains(q.Namespaces, f.Namespace) {
		return false
	}
	return matchesFilter(q.Namespace, f.Namespace) &&
		matchesFilter(q.Node, f.Node) &&
		matchesFilter(q.Pod, f.Pod) &&
		matchesFilter(q.Metric, f.Metric)
}

func matchesFilter(filter, value string) bool {
	return filter == "" || filter == value
}

// FrameSpan is the time covered by a selection of frames.
type FrameSpan struct {
	FirstBegin *time.Time `json:"start"`
	LastEnd    *time.Time `json:"end"`
}

// FrameRepository is the read path of the `frames` table.
type FrameRepository interface {
	SelectFrames(ctx context.Context, q FrameQuery) ([]models.Frame, error)
	FindFrameSpan(ctx context.Context, q FrameQuery) (FrameSpan, error)
	// FindOldestFrame returns nil if the selection is empty.
	FindOldestFrame(ctx context.Context, q FrameQuery) (*models.Frame, error)
	ListDistinctValues(ctx context.Context, dim Dimension, q FrameQuery) ([]string, error)
	ListFrameStatus(ctx context.Context) ([]models.FrameStatus, error)
}

// TemplateStore holds the append-only history of rating rule templates.
type TemplateStore interface {
	InsertTemplate(ctx context.Context, t models.Template) error
	// FindCurrentTemplate returns nil if no version exists.
	FindCurrentTemplate(ctx context.Context, name string) (*models.Template, error)
	ListCurrentTemplates(ctx context.Context) ([]models.Template, error)
	// ListTemplateVersions returns all versions, newest first.
	ListTemplateVersions(ctx context.Context, name string) ([]models.Template, error)
	DeleteTemplate(ctx context.Context, name string) (int64, error)
}

// InstanceStore holds the append-only history of rating rule instances.
type InstanceStore interface {
	// ReplaceOpenInstance atomically closes every open version for
	// inst.MetricName (end_time = inst.StartTime) and inserts inst.
	ReplaceOpenInstance(ctx context.Context, inst models.Instance) error
	// FindOpenInstance returns nil if there is no open version. If several
	// versions are open, the latest one wins.
	FindOpenInstance(ctx context.Context, metricName string) (*models.Instance, error)
	ListOpenInstances(ctx context.Context) ([]models.Instance, error)
	// ListInstanceVersions returns all versions, newest first.
	ListInstanceVersions(ctx context.Context, metricName string) ([]models.Instance, error)
	CloseInstance(ctx context.Context, metricName string, endTime time.Time) (int64, error)
	CountOpenInstancesForTemplate(ctx context.Context, templateName string) (int64, error)
}

// NamespaceStore holds the namespace-to-tenant associations.
type NamespaceStore interface {
	// ListNamespaces returns all associations for the given namespaces, or for
	// all namespaces if names is nil.
	ListNamespaces(ctx context.Context, names []string) ([]models.Namespace, error)
	NamespacesOfTenants(ctx context.Context, tenantIDs []string) ([]string, error)
	TenantsOfNamespace(ctx context.Context, namespace string) ([]string, error)
	// AssociateNamespace adds an association. If exclusive is set, all other
	// associations of the namespace are removed in the same transaction.
	AssociateNamespace(ctx context.Context, namespace, tenantID string, exclusive bool) (int64, error)
	// UnlinkNamespace removes the association with the given tenant, or all
	// associations if tenantID is empty.
	UnlinkNamespace(ctx context.Context, namespace, tenantID string) (int64, error)
	RecordNamespaceStatus(ctx context.Context, namespace string, lastInsert time.Time) error
}

// TenantStore holds tenant credentials and group memberships.
type TenantStore interface {
	// FindUser returns nil if the tenant does not exist.
	FindUser(ctx context.Context, tenantID string) (*models.User, error)
	InsertUser(ctx context.Context, user models.User, groups []string) error
	ListUsers(ctx context.Context) ([]models.User, error)
	// DeleteUser also removes the tenant's group memberships and namespace
	// associations. If the tenant does not exist, nothing is removed.
	DeleteUser(ctx context.Context, tenantID string) (int64, error)
	GroupsOfTenant(ctx context.Context, tenantID string) ([]string, error)
	MembersOfGroups(ctx context.Context, groups []string) ([]string, error)
}

// Store bundles all storage interfaces. It is implemented by *DB and by the
// in-memory store used in tests.
type Store interface {
	FrameRepository
	TemplateStore
	InstanceStore
	NamespaceStore
	TenantStore
}
