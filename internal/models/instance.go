// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package models

import "time"

// Instance contains a record from the `instance` table: one version of a
// rating rule instance. The open version (EndTime == nil) of a metric is the
// one currently in effect.
type Instance struct {
	MetricName   string     `db:"metric_name"`
	TemplateName string     `db:"template_name"`
	Timeframe    string     `db:"timeframe"`
	StartTime    time.Time  `db:"start_time"`
	EndTime      *time.Time `db:"end_time"`
	// VariablesJSON holds the bound variables as a JSON object.
	VariablesJSON string `db:"variables"`
	ResolvedQuery string `db:"resolved_query"`
}

// IsOpen returns whether this version has not been superseded or deleted.
func (i Instance) IsOpen() bool {
	return i.EndTime == nil
}
