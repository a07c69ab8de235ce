// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package aggregation

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Smile-SA/rating-operator-api/internal/models"
	"github.com/Smile-SA/rating-operator-api/internal/rating"
)

// Report is the uniform envelope of all read operations. Total is the number
// of rows in Results, not a monetary sum.
type Report struct {
	Results []Row `json:"results"`
	Total   int   `json:"total"`
	// Unrated counts the selected frames without a price. They are excluded
	// from all sums.
	Unrated int `json:"unrated"`
}

// GroupKey is the value of one grouping dimension within a Row.
type GroupKey struct {
	Dimension rating.Dimension
	Value     string
}

// Row is one result row of a report. Which fields are filled depends on the
// operation that produced it.
type Row struct {
	// Bucket is set by the "rating" operation.
	Bucket *time.Time
	Keys   []GroupKey
	Price  decimal.Decimal

	// Frame is set by the "max" operation.
	Frame *models.Frame

	// MatchedRule and Ratio are set by the "ratio" operation. An empty
	// MatchedRule stands for frames without a matching rule.
	MatchedRule *string
	Ratio       *decimal.Decimal
}

// MarshalJSON implements the json.Marshaler interface. The row is flattened
// into a single object, e.g. {"frame_begin": ..., "namespace": "foo", "frame_price": 1.5}.
func (r Row) MarshalJSON() ([]byte, error) {
	fields := make(map[string]any, len(r.Keys)+4)
	if r.Frame != nil {
		fields["frame_begin"] = r.Frame.FrameBegin
		fields["frame_end"] = r.Frame.FrameEnd
		fields["namespace"] = r.Frame.Namespace
		fields["node"] = r.Frame.Node
		fields["pod"] = r.Frame.Pod
		fields["metric"] = r.Frame.Metric
		fields["quantity"] = r.Frame.Quantity
		fields["matched_rule"] = r.Frame.MatchedRule
	}
	if r.Bucket != nil {
		fields["frame_begin"] = *r.Bucket
	}
	for _, key := range r.Keys {
		fields[string(key.Dimension)] = key.Value
	}
	if r.Ratio != nil {
		fields["matched_rule"] = r.MatchedRule
		fields["ratio"] = json.Number(r.Ratio.String())
	}
	fields["frame_price"] = json.Number(r.Price.String())
	return json.Marshal(fields)
}
