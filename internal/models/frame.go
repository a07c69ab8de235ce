// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Frame contains a record from the `frames` table. Frames are written by the
// ingestion pipeline and never updated by this service.
type Frame struct {
	FrameBegin time.Time `db:"frame_begin" json:"frame_begin"`
	FrameEnd   time.Time `db:"frame_end" json:"frame_end"`
	Namespace  string    `db:"namespace" json:"namespace"`
	Node       string    `db:"node" json:"node"`
	Pod        string    `db:"pod" json:"pod"`
	Metric     string    `db:"metric" json:"metric"`
	Quantity   float64   `db:"quantity" json:"quantity"`
	// Price is invalid (NULL) until the frame has been rated.
	Price decimal.NullDecimal `db:"frame_price" json:"frame_price"`
	// MatchedRule names the instance (by metric name) that priced this frame.
	MatchedRule *string `db:"matched_rule" json:"matched_rule"`
}

// IsRated returns whether this frame carries a price.
func (f Frame) IsRated() bool {
	return f.Price.Valid
}

// FrameStatus contains a record from the `frame_status` table.
type FrameStatus struct {
	Metric     string    `db:"metric" json:"metric"`
	ReportName string    `db:"report_name" json:"report_name"`
	LastInsert time.Time `db:"last_insert" json:"last_insert"`
}
