// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package models

import "time"

// Namespace contains a record from the `namespaces` table. A namespace may be
// shared by several tenants, so there can be more than one record per name.
type Namespace struct {
	Name     string `db:"namespace" json:"namespace"`
	TenantID string `db:"tenant_id" json:"tenant_id"`
}

// NamespaceStatus contains a record from the `namespace_status` table.
type NamespaceStatus struct {
	Name       string    `db:"namespace"`
	LastInsert time.Time `db:"last_insert"`
}
