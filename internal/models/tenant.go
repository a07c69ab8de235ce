// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package models

// User contains a record from the `users` table.
type User struct {
	TenantID     string `db:"tenant_id"`
	PasswordHash string `db:"password_hash"`
}

// GroupTenant contains a record from the `group_tenant` table. Members of the
// same group can read each other's namespaces.
type GroupTenant struct {
	TenantID  string `db:"tenant_id"`
	UserGroup string `db:"user_group"`
}
