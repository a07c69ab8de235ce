// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package models

import (
	"slices"
	"strings"
	"time"
)

// Template contains a record from the `template` table. Every edit inserts a
// new record, so the current version of a template is the one with the
// highest ID for its name.
type Template struct {
	// ID is the creation timestamp of this version.
	ID    time.Time `db:"id"`
	Name  string    `db:"query_name"`
	Group string    `db:"query_group"`
	Query string    `db:"query_template"`
	// VariablesStr is a comma-separated list of the declared variable names.
	VariablesStr string `db:"query_variables"`
}

// Variables returns the declared variable names in sorted order.
func (t Template) Variables() []string {
	if t.VariablesStr == "" {
		return nil
	}
	result := strings.Split(t.VariablesStr, ",")
	slices.Sort(result)
	return result
}

// SetVariables fills VariablesStr from the given list.
func (t *Template) SetVariables(names []string) {
	sorted := slices.Clone(names)
	slices.Sort(sorted)
	t.VariablesStr = strings.Join(slices.Compact(sorted), ",")
}
