// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package test

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Smile-SA/rating-operator-api/internal/models"
	"github.com/Smile-SA/rating-operator-api/internal/rating"
)

// MemoryStore is an in-memory implementation of rating.Store with the same
// observable semantics as the Postgres implementation.
type MemoryStore struct {
	mutex           sync.Mutex
	Frames          []models.Frame
	FrameStatus     []models.FrameStatus
	Templates       []models.Template
	Instances       []models.Instance
	Namespaces      []models.Namespace
	NamespaceStatus map[string]time.Time
	Users           []models.User
	Groups          []models.GroupTenant
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{NamespaceStatus: make(map[string]time.Time)}
}

var _ rating.Store = &MemoryStore{}

// AddFrames inserts frames into the store.
func (s *MemoryStore) AddFrames(frames ...models.Frame) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.Frames = append(s.Frames, frames...)
}

////////////////////////////////////////////////////////////////////////////////
// FrameRepository

func (s *MemoryStore) selectFrames(q rating.FrameQuery) []models.Frame {
	var result []models.Frame
	for _, f := range s.Frames {
		if q.Matches(f) {
			result = append(result, f)
		}
	}
	slices.SortStableFunc(result, func(lhs, rhs models.Frame) int {
		return lhs.FrameBegin.Compare(rhs.FrameBegin)
	})
	return result
}

// SelectFrames implements the rating.FrameRepository interface.
func (s *MemoryStore) SelectFrames(_ context.Context, q rating.FrameQuery) ([]models.Frame, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.selectFrames(q), nil
}

// FindFrameSpan implements the rating.FrameRepository interface.
func (s *MemoryStore) FindFrameSpan(_ context.Context, q rating.FrameQuery) (rating.FrameSpan, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var span rating.FrameSpan
	for _, f := range s.selectFrames(q) {
		if span.FirstBegin == nil || f.FrameBegin.Before(*span.FirstBegin) {
			span.FirstBegin = &f.FrameBegin
		}
		if span.LastEnd == nil || f.FrameEnd.After(*span.LastEnd) {
			span.LastEnd = &f.FrameEnd
		}
	}
	return span, nil
}

// FindOldestFrame implements the rating.FrameRepository interface.
func (s *MemoryStore) FindOldestFrame(_ context.Context, q rating.FrameQuery) (*models.Frame, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	frames := s.selectFrames(q)
	if len(frames) == 0 {
		return nil, nil
	}
	return &frames[0], nil
}

// ListDistinctValues implements the rating.FrameRepository interface.
func (s *MemoryStore) ListDistinctValues(_ context.Context, dim rating.Dimension, q rating.FrameQuery) ([]string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var result []string
	for _, f := range s.selectFrames(q) {
		result = append(result, dim.ValueOf(f))
	}
	slices.Sort(result)
	return slices.Compact(result), nil
}

// ListFrameStatus implements the rating.FrameRepository interface.
func (s *MemoryStore) ListFrameStatus(_ context.Context) ([]models.FrameStatus, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return slices.Clone(s.FrameStatus), nil
}

////////////////////////////////////////////////////////////////////////////////
// TemplateStore

// InsertTemplate implements the rating.TemplateStore interface.
func (s *MemoryStore) InsertTemplate(_ context.Context, t models.Template) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, existing := range s.Templates {
		if existing.Name == t.Name && existing.ID.Equal(t.ID) {
			return rating.ErrStorage.With("duplicate key value violates unique constraint \"template_pkey\"")
		}
	}
	s.Templates = append(s.Templates, t)
	return nil
}

func (s *MemoryStore) templateVersions(name string) []models.Template {
	var result []models.Template
	for _, t := range s.Templates {
		if t.Name == name {
			result = append(result, t)
		}
	}
	slices.SortFunc(result, func(lhs, rhs models.Template) int {
		return rhs.ID.Compare(lhs.ID)
	})
	return result
}

// FindCurrentTemplate implements the rating.TemplateStore interface.
func (s *MemoryStore) FindCurrentTemplate(_ context.Context, name string) (*models.Template, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	versions := s.templateVersions(name)
	if len(versions) == 0 {
		return nil, nil
	}
	return &versions[0], nil
}

// ListCurrentTemplates implements the rating.TemplateStore interface.
func (s *MemoryStore) ListCurrentTemplates(_ context.Context) ([]models.Template, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var names []string
	for _, t := range s.Templates {
		names = append(names, t.Name)
	}
	slices.Sort(names)
	var result []models.Template
	for _, name := range slices.Compact(names) {
		result = append(result, s.templateVersions(name)[0])
	}
	return result, nil
}

// ListTemplateVersions implements the rating.TemplateStore interface.
func (s *MemoryStore) ListTemplateVersions(_ context.Context, name string) ([]models.Template, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.templateVersions(name), nil
}

// DeleteTemplate implements the rating.TemplateStore interface.
func (s *MemoryStore) DeleteTemplate(_ context.Context, name string) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	before := len(s.Templates)
	s.Templates = slices.DeleteFunc(s.Templates, func(t models.Template) bool { return t.Name == name })
	return int64(before - len(s.Templates)), nil
}

////////////////////////////////////////////////////////////////////////////////
// InstanceStore

// ReplaceOpenInstance implements the rating.InstanceStore interface.
func (s *MemoryStore) ReplaceOpenInstance(_ context.Context, inst models.Instance) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, existing := range s.Instances {
		if existing.MetricName == inst.MetricName && existing.StartTime.Equal(inst.StartTime) {
			return rating.ErrStorage.With("duplicate key value violates unique constraint \"instance_pkey\"")
		}
	}
	s.closeInstance(inst.MetricName, inst.StartTime)
	s.Instances = append(s.Instances, inst)
	return nil
}

func (s *MemoryStore) closeInstance(metricName string, endTime time.Time) int64 {
	var count int64
	for idx, inst := range s.Instances {
		if inst.MetricName == metricName && inst.IsOpen() {
			s.Instances[idx].EndTime = &endTime
			count++
		}
	}
	return count
}

func (s *MemoryStore) instanceVersions(metricName string) []models.Instance {
	var result []models.Instance
	for _, inst := range s.Instances {
		if inst.MetricName == metricName {
			result = append(result, inst)
		}
	}
	slices.SortFunc(result, func(lhs, rhs models.Instance) int {
		return rhs.StartTime.Compare(lhs.StartTime)
	})
	return result
}

// FindOpenInstance implements the rating.InstanceStore interface.
func (s *MemoryStore) FindOpenInstance(_ context.Context, metricName string) (*models.Instance, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, inst := range s.instanceVersions(metricName) {
		if inst.IsOpen() {
			return &inst, nil
		}
	}
	return nil, nil
}

// ListOpenInstances implements the rating.InstanceStore interface.
func (s *MemoryStore) ListOpenInstances(_ context.Context) ([]models.Instance, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	latest := make(map[string]models.Instance)
	for _, inst := range s.Instances {
		if !inst.IsOpen() {
			continue
		}
		if existing, ok := latest[inst.MetricName]; !ok || inst.StartTime.After(existing.StartTime) {
			latest[inst.MetricName] = inst
		}
	}
	result := make([]models.Instance, 0, len(latest))
	for _, inst := range latest {
		result = append(result, inst)
	}
	slices.SortFunc(result, func(lhs, rhs models.Instance) int {
		return cmp.Compare(lhs.MetricName, rhs.MetricName)
	})
	return result, nil
}

// ListInstanceVersions implements the rating.InstanceStore interface.
func (s *MemoryStore) ListInstanceVersions(_ context.Context, metricName string) ([]models.Instance, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.instanceVersions(metricName), nil
}

// CloseInstance implements the rating.InstanceStore interface.
func (s *MemoryStore) CloseInstance(_ context.Context, metricName string, endTime time.Time) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.closeInstance(metricName, endTime), nil
}

// CountOpenInstancesForTemplate implements the rating.InstanceStore interface.
func (s *MemoryStore) CountOpenInstancesForTemplate(_ context.Context, templateName string) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var count int64
	for _, inst := range s.Instances {
		if inst.TemplateName == templateName && inst.IsOpen() {
			count++
		}
	}
	return count, nil
}

////////////////////////////////////////////////////////////////////////////////
// NamespaceStore

// ListNamespaces implements the rating.NamespaceStore interface.
func (s *MemoryStore) ListNamespaces(_ context.Context, names []string) ([]models.Namespace, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var result []models.Namespace
	for _, ns := range s.Namespaces {
		if names == nil || slices.Contains(names, ns.Name) {
			result = append(result, ns)
		}
	}
	slices.SortFunc(result, func(lhs, rhs models.Namespace) int {
		return cmp.Or(cmp.Compare(lhs.Name, rhs.Name), cmp.Compare(lhs.TenantID, rhs.TenantID))
	})
	return result, nil
}

// NamespacesOfTenants implements the rating.NamespaceStore interface.
func (s *MemoryStore) NamespacesOfTenants(_ context.Context, tenantIDs []string) ([]string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var result []string
	for _, ns := range s.Namespaces {
		if slices.Contains(tenantIDs, ns.TenantID) {
			result = append(result, ns.Name)
		}
	}
	slices.Sort(result)
	return slices.Compact(result), nil
}

// TenantsOfNamespace implements the rating.NamespaceStore interface.
func (s *MemoryStore) TenantsOfNamespace(_ context.Context, namespace string) ([]string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var result []string
	for _, ns := range s.Namespaces {
		if ns.Name == namespace {
			result = append(result, ns.TenantID)
		}
	}
	slices.Sort(result)
	return result, nil
}

// AssociateNamespace implements the rating.NamespaceStore interface.
func (s *MemoryStore) AssociateNamespace(_ context.Context, namespace, tenantID string, exclusive bool) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if exclusive {
		s.Namespaces = slices.DeleteFunc(s.Namespaces, func(ns models.Namespace) bool {
			return ns.Name == namespace && ns.TenantID != tenantID
		})
	}
	association := models.Namespace{Name: namespace, TenantID: tenantID}
	if slices.Contains(s.Namespaces, association) {
		return 0, nil
	}
	s.Namespaces = append(s.Namespaces, association)
	return 1, nil
}

// UnlinkNamespace implements the rating.NamespaceStore interface.
func (s *MemoryStore) UnlinkNamespace(_ context.Context, namespace, tenantID string) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	before := len(s.Namespaces)
	s.Namespaces = slices.DeleteFunc(s.Namespaces, func(ns models.Namespace) bool {
		return ns.Name == namespace && (tenantID == "" || ns.TenantID == tenantID)
	})
	return int64(before - len(s.Namespaces)), nil
}

// RecordNamespaceStatus implements the rating.NamespaceStore interface.
func (s *MemoryStore) RecordNamespaceStatus(_ context.Context, namespace string, lastInsert time.Time) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.NamespaceStatus[namespace] = lastInsert
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// TenantStore

// FindUser implements the rating.TenantStore interface.
func (s *MemoryStore) FindUser(_ context.Context, tenantID string) (*models.User, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, u := range s.Users {
		if u.TenantID == tenantID {
			return &u, nil
		}
	}
	return nil, nil
}

// InsertUser implements the rating.TenantStore interface.
func (s *MemoryStore) InsertUser(_ context.Context, user models.User, groups []string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, u := range s.Users {
		if u.TenantID == user.TenantID {
			return rating.ErrStorage.With("duplicate key value violates unique constraint \"users_pkey\"")
		}
	}
	s.Users = append(s.Users, user)
	for _, group := range groups {
		s.Groups = append(s.Groups, models.GroupTenant{TenantID: user.TenantID, UserGroup: group})
	}
	return nil
}

// ListUsers implements the rating.TenantStore interface.
func (s *MemoryStore) ListUsers(_ context.Context) ([]models.User, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	result := slices.Clone(s.Users)
	slices.SortFunc(result, func(lhs, rhs models.User) int {
		return cmp.Compare(lhs.TenantID, rhs.TenantID)
	})
	return result, nil
}

// DeleteUser implements the rating.TenantStore interface.
func (s *MemoryStore) DeleteUser(_ context.Context, tenantID string) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	before := len(s.Users)
	s.Users = slices.DeleteFunc(s.Users, func(u models.User) bool { return u.TenantID == tenantID })
	if len(s.Users) == before {
		return 0, nil
	}
	s.Groups = slices.DeleteFunc(s.Groups, func(g models.GroupTenant) bool { return g.TenantID == tenantID })
	s.Namespaces = slices.DeleteFunc(s.Namespaces, func(ns models.Namespace) bool { return ns.TenantID == tenantID })
	return int64(before - len(s.Users)), nil
}

// GroupsOfTenant implements the rating.TenantStore interface.
func (s *MemoryStore) GroupsOfTenant(_ context.Context, tenantID string) ([]string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var result []string
	for _, g := range s.Groups {
		if g.TenantID == tenantID {
			result = append(result, g.UserGroup)
		}
	}
	slices.Sort(result)
	return slices.Compact(result), nil
}

// MembersOfGroups implements the rating.TenantStore interface.
func (s *MemoryStore) MembersOfGroups(_ context.Context, groups []string) ([]string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var result []string
	for _, g := range s.Groups {
		if slices.Contains(groups, g.UserGroup) {
			result = append(result, g.TenantID)
		}
	}
	slices.Sort(result)
	return slices.Compact(result), nil
}
