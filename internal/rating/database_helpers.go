// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package rating

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/sapcc/go-bits/sqlext"

	"github.com/Smile-SA/rating-operator-api/internal/models"
)

// whereClause renders the predicates of this query, pushing range and
// dimension filters down into the database.
func (q FrameQuery) whereClause() (string, []any) {
	var (
		conditions []string
		args       []any
	)
	add := func(condition string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if q.Range != nil {
		add("frame_begin < $%d", q.Range.End)
		add("frame_end > $%d", q.Range.Start)
	}
	if !q.AllNamespaces {
		if len(q.Namespaces) == 0 {
			return "FALSE", nil
		}
		add("namespace = ANY($%d)", pq.Array(q.Namespaces))
	}
	for _, filter := range []struct {
		Column string
		Value  string
	}{
		{"namespace", q.Namespace},
		{"node", q.Node},
		{"pod", q.Pod},
		{"metric", q.Metric},
	} {
		if filter.Value != "" {
			add(filter.Column+" = $%d", filter.Value)
		}
	}

	if len(conditions) == 0 {
		return "TRUE", nil
	}
	return strings.Join(conditions, " AND "), args
}

////////////////////////////////////////////////////////////////////////////////
// FrameRepository

// SelectFrames implements the FrameRepository interface.
func (db *DB) SelectFrames(ctx context.Context, q FrameQuery) ([]models.Frame, error) {
	where, args := q.whereClause()
	query := `SELECT * FROM frames WHERE ` + where + ` ORDER BY frame_begin, namespace, node, pod, metric`
	var frames []models.Frame
	_, err := db.WithContext(ctx).Select(&frames, query, args...)
	return frames, err
}

// FindFrameSpan implements the FrameRepository interface.
func (db *DB) FindFrameSpan(ctx context.Context, q FrameQuery) (FrameSpan, error) {
	where, args := q.whereClause()
	query := `SELECT MIN(frame_begin), MAX(frame_end) FROM frames WHERE ` + where
	var span FrameSpan
	err := db.WithContext(ctx).QueryRow(query, args...).Scan(&span.FirstBegin, &span.LastEnd)
	return span, err
}

// FindOldestFrame implements the FrameRepository interface.
func (db *DB) FindOldestFrame(ctx context.Context, q FrameQuery) (*models.Frame, error) {
	where, args := q.whereClause()
	query := `SELECT * FROM frames WHERE ` + where + ` ORDER BY frame_begin, namespace, node, pod, metric LIMIT 1`
	var frame models.Frame
	err := db.WithContext(ctx).SelectOne(&frame, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &frame, err
}

// ListDistinctValues implements the FrameRepository interface.
func (db *DB) ListDistinctValues(ctx context.Context, dim Dimension, q FrameQuery) ([]string, error) {
	if !dim.IsValid() {
		return nil, fmt.Errorf("unknown dimension: %q", dim)
	}
	where, args := q.whereClause()
	query := fmt.Sprintf(`SELECT DISTINCT %[1]s FROM frames WHERE %[2]s ORDER BY %[1]s`, string(dim), where)
	var result []string
	_, err := db.WithContext(ctx).Select(&result, query, args...)
	return result, err
}

// ListFrameStatus implements the FrameRepository interface.
func (db *DB) ListFrameStatus(ctx context.Context) ([]models.FrameStatus, error) {
	var result []models.FrameStatus
	_, err := db.WithContext(ctx).Select(&result, `SELECT * FROM frame_status ORDER BY metric`)
	return result, err
}

////////////////////////////////////////////////////////////////////////////////
// TemplateStore

// InsertTemplate implements the TemplateStore interface.
func (db *DB) InsertTemplate(ctx context.Context, t models.Template) error {
	return db.WithContext(ctx).Insert(&t)
}

var findCurrentTemplateQuery = sqlext.SimplifyWhitespace(`
	SELECT * FROM template WHERE query_name = $1 ORDER BY id DESC LIMIT 1
`)

// FindCurrentTemplate implements the TemplateStore interface.
func (db *DB) FindCurrentTemplate(ctx context.Context, name string) (*models.Template, error) {
	var t models.Template
	err := db.WithContext(ctx).SelectOne(&t, findCurrentTemplateQuery, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &t, err
}

var listCurrentTemplatesQuery = sqlext.SimplifyWhitespace(`
	SELECT DISTINCT ON (query_name) * FROM template ORDER BY query_name, id DESC
`)

// ListCurrentTemplates implements the TemplateStore interface.
func (db *DB) ListCurrentTemplates(ctx context.Context) ([]models.Template, error) {
	var result []models.Template
	_, err := db.WithContext(ctx).Select(&result, listCurrentTemplatesQuery)
	return result, err
}

// ListTemplateVersions implements the TemplateStore interface.
func (db *DB) ListTemplateVersions(ctx context.Context, name string) ([]models.Template, error) {
	var result []models.Template
	_, err := db.WithContext(ctx).Select(&result, `SELECT * FROM template WHERE query_name = $1 ORDER BY id DESC`, name)
	return result, err
}

// DeleteTemplate implements the TemplateStore interface.
func (db *DB) DeleteTemplate(ctx context.Context, name string) (int64, error) {
	result, err := db.WithContext(ctx).Exec(`DELETE FROM template WHERE query_name = $1`, name)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

////////////////////////////////////////////////////////////////////////////////
// InstanceStore

var closeOpenInstancesQuery = sqlext.SimplifyWhitespace(`
	UPDATE instance SET end_time = $2 WHERE metric_name = $1 AND end_time IS NULL
`)

// ReplaceOpenInstance implements the InstanceStore interface.
func (db *DB) ReplaceOpenInstance(ctx context.Context, inst models.Instance) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer sqlext.RollbackUnlessCommitted(tx)
	exec := tx.WithContext(ctx)

	_, err = exec.Exec(closeOpenInstancesQuery, inst.MetricName, inst.StartTime)
	if err != nil {
		return err
	}
	err = exec.Insert(&inst)
	if err != nil {
		return err
	}
	return tx.Commit()
}

var findOpenInstanceQuery = sqlext.SimplifyWhitespace(`
	SELECT * FROM instance WHERE metric_name = $1 AND end_time IS NULL
	ORDER BY start_time DESC LIMIT 1
`)

// FindOpenInstance implements the InstanceStore interface.
func (db *DB) FindOpenInstance(ctx context.Context, metricName string) (*models.Instance, error) {
	var inst models.Instance
	err := db.WithContext(ctx).SelectOne(&inst, findOpenInstanceQuery, metricName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &inst, err
}

var listOpenInstancesQuery = sqlext.SimplifyWhitespace(`
	SELECT DISTINCT ON (metric_name) * FROM instance WHERE end_time IS NULL
	ORDER BY metric_name, start_time DESC
`)

// ListOpenInstances implements the InstanceStore interface.
func (db *DB) ListOpenInstances(ctx context.Context) ([]models.Instance, error) {
	var result []models.Instance
	_, err := db.WithContext(ctx).Select(&result, listOpenInstancesQuery)
	return result, err
}

// ListInstanceVersions implements the InstanceStore interface.
func (db *DB) ListInstanceVersions(ctx context.Context, metricName string) ([]models.Instance, error) {
	var result []models.Instance
	_, err := db.WithContext(ctx).Select(&result, `SELECT * FROM instance WHERE metric_name = $1 ORDER BY start_time DESC`, metricName)
	return result, err
}

// CloseInstance implements the InstanceStore interface.
func (db *DB) CloseInstance(ctx context.Context, metricName string, endTime time.Time) (int64, error) {
	result, err := db.WithContext(ctx).Exec(closeOpenInstancesQuery, metricName, endTime)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountOpenInstancesForTemplate implements the InstanceStore interface.
func (db *DB) CountOpenInstancesForTemplate(ctx context.Context, templateName string) (int64, error) {
	return db.WithContext(ctx).SelectInt(
		`SELECT COUNT(*) FROM instance WHERE template_name = $1 AND end_time IS NULL`, templateName)
}

////////////////////////////////////////////////////////////////////////////////
// NamespaceStore

// ListNamespaces implements the NamespaceStore interface.
func (db *DB) ListNamespaces(ctx context.Context, names []string) ([]models.Namespace, error) {
	var result []models.Namespace
	var err error
	if names == nil {
		_, err = db.WithContext(ctx).Select(&result, `SELECT * FROM namespaces ORDER BY namespace, tenant_id`)
	} else {
		_, err = db.WithContext(ctx).Select(&result,
			`SELECT * FROM namespaces WHERE namespace = ANY($1) ORDER BY namespace, tenant_id`, pq.Array(names))
	}
	return result, err
}

// NamespacesOfTenants implements the NamespaceStore interface.
func (db *DB) NamespacesOfTenants(ctx context.Context, tenantIDs []string) ([]string, error) {
	var result []string
	_, err := db.WithContext(ctx).Select(&result,
		`SELECT DISTINCT namespace FROM namespaces WHERE tenant_id = ANY($1) ORDER BY namespace`, pq.Array(tenantIDs))
	return result, err
}

// TenantsOfNamespace implements the NamespaceStore interface.
func (db *DB) TenantsOfNamespace(ctx context.Context, namespace string) ([]string, error) {
	var result []string
	_, err := db.WithContext(ctx).Select(&result,
		`SELECT tenant_id FROM namespaces WHERE namespace = $1 ORDER BY tenant_id`, namespace)
	return result, err
}

var (
	associateNamespaceQuery = sqlext.SimplifyWhitespace(`
		INSERT INTO namespaces (namespace, tenant_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`)
	unlinkOtherTenantsQuery = `DELETE FROM namespaces WHERE namespace = $1 AND tenant_id != $2`
)

// AssociateNamespace implements the NamespaceStore interface.
func (db *DB) AssociateNamespace(ctx context.Context, namespace, tenantID string, exclusive bool) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer sqlext.RollbackUnlessCommitted(tx)
	exec := tx.WithContext(ctx)

	var affected int64
	if exclusive {
		result, err := exec.Exec(unlinkOtherTenantsQuery, namespace, tenantID)
		if err != nil {
			return 0, err
		}
		affected, err = result.RowsAffected()
		if err != nil {
			return 0, err
		}
	}
	result, err := exec.Exec(associateNamespaceQuery, namespace, tenantID)
	if err != nil {
		return 0, err
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return affected + inserted, tx.Commit()
}

// UnlinkNamespace implements the NamespaceStore interface.
func (db *DB) UnlinkNamespace(ctx context.Context, namespace, tenantID string) (int64, error) {
	var (
		result sql.Result
		err    error
	)
	if tenantID == "" {
		result, err = db.WithContext(ctx).Exec(`DELETE FROM namespaces WHERE namespace = $1`, namespace)
	} else {
		result, err = db.WithContext(ctx).Exec(`DELETE FROM namespaces WHERE namespace = $1 AND tenant_id = $2`, namespace, tenantID)
	}
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

var recordNamespaceStatusQuery = sqlext.SimplifyWhitespace(`
	INSERT INTO namespace_status (namespace, last_insert) VALUES ($1, $2)
	ON CONFLICT (namespace) DO UPDATE SET last_insert = EXCLUDED.last_insert
`)

// RecordNamespaceStatus implements the NamespaceStore interface.
func (db *DB) RecordNamespaceStatus(ctx context.Context, namespace string, lastInsert time.Time) error {
	_, err := db.WithContext(ctx).Exec(recordNamespaceStatusQuery, namespace, lastInsert)
	return err
}

////////////////////////////////////////////////////////////////////////////////
// TenantStore

// FindUser implements the TenantStore interface.
func (db *DB) FindUser(ctx context.Context, tenantID string) (*models.User, error) {
	var user models.User
	err := db.WithContext(ctx).SelectOne(&user, `SELECT * FROM users WHERE tenant_id = $1`, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &user, err
}

// InsertUser implements the TenantStore interface.
func (db *DB) InsertUser(ctx context.Context, user models.User, groups []string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer sqlext.RollbackUnlessCommitted(tx)
	exec := tx.WithContext(ctx)

	err = exec.Insert(&user)
	if err != nil {
		return err
	}
	for _, group := range groups {
		err = exec.Insert(&models.GroupTenant{TenantID: user.TenantID, UserGroup: group})
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListUsers implements the TenantStore interface.
func (db *DB) ListUsers(ctx context.Context) ([]models.User, error) {
	var result []models.User
	_, err := db.WithContext(ctx).Select(&result, `SELECT * FROM users ORDER BY tenant_id`)
	return result, err
}

// DeleteUser implements the TenantStore interface.
func (db *DB) DeleteUser(ctx context.Context, tenantID string) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer sqlext.RollbackUnlessCommitted(tx)
	exec := tx.WithContext(ctx)

	// group_tenant rows are removed by ON DELETE CASCADE
	result, err := exec.Exec(`DELETE FROM users WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return 0, err
	}
	deleted, err := result.RowsAffected()
	if err != nil || deleted == 0 {
		// unknown tenants keep their namespace associations
		return 0, err
	}
	_, err = exec.Exec(`DELETE FROM namespaces WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return 0, err
	}
	return deleted, tx.Commit()
}

// GroupsOfTenant implements the TenantStore interface.
func (db *DB) GroupsOfTenant(ctx context.Context, tenantID string) ([]string, error) {
	var result []string
	_, err := db.WithContext(ctx).Select(&result,
		`SELECT user_group FROM group_tenant WHERE tenant_id = $1 ORDER BY user_group`, tenantID)
	return result, err
}

// MembersOfGroups implements the TenantStore interface.
func (db *DB) MembersOfGroups(ctx context.Context, groups []string) ([]string, error) {
	var result []string
	_, err := db.WithContext(ctx).Select(&result,
		`SELECT DISTINCT tenant_id FROM group_tenant WHERE user_group = ANY($1) ORDER BY tenant_id`, pq.Array(groups))
	return result, err
}

var _ Store = &DB{}
