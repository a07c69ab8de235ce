// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package rating

import (
	"database/sql"

	"github.com/go-gorp/gorp/v3"
	"github.com/sapcc/go-bits/easypg"

	"github.com/Smile-SA/rating-operator-api/internal/models"
)

var sqlMigrations = map[string]string{
	"001_initial.up.sql": `
		CREATE TABLE namespaces (
			namespace TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			PRIMARY KEY (namespace, tenant_id)
		);

		CREATE TABLE namespace_status (
			namespace   TEXT        NOT NULL PRIMARY KEY,
			last_insert TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE frames (
			frame_begin  TIMESTAMP        NOT NULL,
			frame_end    TIMESTAMP        NOT NULL,
			namespace    TEXT             NOT NULL,
			node         TEXT             NOT NULL,
			pod          TEXT             NOT NULL,
			metric       TEXT             NOT NULL,
			quantity     DOUBLE PRECISION NOT NULL,
			frame_price  NUMERIC          DEFAULT NULL,
			matched_rule TEXT             DEFAULT NULL,
			PRIMARY KEY (frame_begin, namespace, node, pod, metric)
		);
		CREATE INDEX frames_pod_idx ON frames (pod);

		CREATE TABLE frame_status (
			metric      TEXT        NOT NULL PRIMARY KEY,
			report_name TEXT        NOT NULL DEFAULT '',
			last_insert TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE users (
			tenant_id     TEXT NOT NULL PRIMARY KEY,
			password_hash TEXT NOT NULL
		);

		CREATE TABLE group_tenant (
			tenant_id  TEXT NOT NULL REFERENCES users ON DELETE CASCADE,
			user_group TEXT NOT NULL,
			PRIMARY KEY (tenant_id, user_group)
		);
	`,
	"001_initial.down.sql": `
		DROP TABLE group_tenant;
		DROP TABLE users;
		DROP TABLE frame_status;
		DROP TABLE frames;
		DROP TABLE namespace_status;
		DROP TABLE namespaces;
	`,
	"002_add_rule_history.up.sql": `
		CREATE TABLE template (
			id              TIMESTAMPTZ NOT NULL,
			query_name      TEXT        NOT NULL,
			query_group     TEXT        NOT NULL DEFAULT '',
			query_template  TEXT        NOT NULL,
			query_variables TEXT        NOT NULL DEFAULT '',
			PRIMARY KEY (query_name, id)
		);

		CREATE TABLE instance (
			metric_name    TEXT        NOT NULL,
			template_name  TEXT        NOT NULL,
			timeframe      TEXT        NOT NULL,
			start_time     TIMESTAMPTZ NOT NULL,
			end_time       TIMESTAMPTZ DEFAULT NULL,
			variables      TEXT        NOT NULL DEFAULT '{}',
			resolved_query TEXT        NOT NULL,
			PRIMARY KEY (metric_name, start_time)
		);
		CREATE INDEX instance_open_idx ON instance (metric_name) WHERE end_time IS NULL;
	`,
	"002_add_rule_history.down.sql": `
		DROP TABLE instance;
		DROP TABLE template;
	`,
}

// DB adds convenience functions on top of gorp.DbMap.
type DB struct {
	gorp.DbMap
}

// DBConfiguration returns the easypg.Configuration object that needs to be passed to easypg.Connect().
func DBConfiguration() easypg.Configuration {
	return easypg.Configuration{
		Migrations: sqlMigrations,
	}
}

// InitORM wraps a database connection into a DB instance.
func InitORM(dbConn *sql.DB) *DB {
	db := &DB{DbMap: gorp.DbMap{Db: dbConn, Dialect: gorp.PostgresDialect{}}}
	initModels(&db.DbMap)
	return db
}

func initModels(db *gorp.DbMap) {
	db.AddTableWithName(models.Namespace{}, "namespaces").SetKeys(false, "namespace", "tenant_id")
	db.AddTableWithName(models.NamespaceStatus{}, "namespace_status").SetKeys(false, "namespace")
	db.AddTableWithName(models.Frame{}, "frames").SetKeys(false, "frame_begin", "namespace", "node", "pod", "metric")
	db.AddTableWithName(models.FrameStatus{}, "frame_status").SetKeys(false, "metric")
	db.AddTableWithName(models.User{}, "users").SetKeys(false, "tenant_id")
	db.AddTableWithName(models.GroupTenant{}, "group_tenant").SetKeys(false, "tenant_id", "user_group")
	db.AddTableWithName(models.Template{}, "template").SetKeys(false, "query_name", "id")
	db.AddTableWithName(models.Instance{}, "instance").SetKeys(false, "metric_name", "start_time")
}
