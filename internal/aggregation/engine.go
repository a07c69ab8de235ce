// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package aggregation

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Smile-SA/rating-operator-api/internal/models"
	"github.com/Smile-SA/rating-operator-api/internal/rating"
)

// Operation is the reduction applied to the selected frames.
type Operation string

// Possible values for Operation.
const (
	OpRating      Operation = "rating"
	OpTotalRating Operation = "total_rating"
	OpMax         Operation = "max"
	OpRatio       Operation = "ratio"
)

// RatioPrecision is the number of decimal places of computed ratios.
const RatioPrecision = 6

// Request describes how the selected frames are reduced into a report.
type Request struct {
	GroupBy    []rating.Dimension
	Aggregator Aggregator
	Operation  Operation
}

// Validate checks the request for consistency.
func (req Request) Validate() error {
	for _, dim := range req.GroupBy {
		if !dim.IsValid() {
			return rating.ErrValidation.With("cannot group by %q", dim)
		}
	}
	switch req.Operation {
	case OpRating:
		return nil
	case OpTotalRating, OpMax, OpRatio:
		if req.Aggregator != NoAggregator {
			return rating.ErrValidation.With("aggregator %q cannot be combined with %s", req.Aggregator, req.Operation)
		}
		return nil
	default:
		return rating.ErrValidation.With("unknown operation: %q", req.Operation)
	}
}

// Run selects the frames matching the query and reduces them into a report.
func Run(ctx context.Context, frames rating.FrameRepository, q rating.FrameQuery, req Request) (Report, error) {
	err := req.Validate()
	if err != nil {
		return Report{}, err
	}
	selected, err := frames.SelectFrames(ctx, q)
	if err != nil {
		return Report{}, rating.AsError(err)
	}
	return Aggregate(req, selected), nil
}

// Aggregate reduces already selected frames into a report. The request must
// have been validated.
func Aggregate(req Request, frames []models.Frame) Report {
	var (
		priced  []models.Frame
		unrated int
	)
	for _, f := range frames {
		if f.IsRated() {
			priced = append(priced, f)
		} else {
			unrated++
		}
	}

	var rows []Row
	switch req.Operation {
	case OpRating:
		rows = reduceRating(req, priced)
	case OpTotalRating:
		rows = reduceTotalRating(req, priced)
	case OpMax:
		rows = reduceMax(req, priced)
	case OpRatio:
		rows = reduceRatio(req, priced)
	}
	if rows == nil {
		rows = []Row{}
	}
	return Report{Results: rows, Total: len(rows), Unrated: unrated}
}

type groupKey struct {
	Bucket time.Time
	Values string
}

func (req Request) keysOf(f models.Frame) []GroupKey {
	keys := make([]GroupKey, len(req.GroupBy))
	for idx, dim := range req.GroupBy {
		keys[idx] = GroupKey{Dimension: dim, Value: dim.ValueOf(f)}
	}
	return keys
}

func joinKeys(keys []GroupKey) string {
	values := make([]string, len(keys))
	for idx, key := range keys {
		values[idx] = key.Value
	}
	return strings.Join(values, "\x00")
}

func compareKeys(lhs, rhs []GroupKey) int {
	for idx := range lhs {
		if c := cmp.Compare(lhs[idx].Value, rhs[idx].Value); c != 0 {
			return c
		}
	}
	return 0
}

// sumGroups adds up prices per group. Groups are returned in first-seen order.
func sumGroups(frames []models.Frame, keyOf func(models.Frame) (groupKey, Row)) []Row {
	index := make(map[groupKey]int)
	var rows []Row
	for _, f := range frames {
		key, row := keyOf(f)
		idx, exists := index[key]
		if !exists {
			idx = len(rows)
			index[key] = idx
			row.Price = decimal.Zero
			rows = append(rows, row)
		}
		rows[idx].Price = rows[idx].Price.Add(f.Price.Decimal)
	}
	return rows
}

func reduceRating(req Request, frames []models.Frame) []Row {
	rows := sumGroups(frames, func(f models.Frame) (groupKey, Row) {
		bucket := req.Aggregator.BucketOf(f.FrameBegin)
		keys := req.keysOf(f)
		return groupKey{bucket, joinKeys(keys)}, Row{Bucket: &bucket, Keys: keys}
	})
	slices.SortFunc(rows, func(lhs, rhs Row) int {
		return cmp.Or(lhs.Bucket.Compare(*rhs.Bucket), compareKeys(lhs.Keys, rhs.Keys))
	})
	return rows
}

func reduceTotalRating(req Request, frames []models.Frame) []Row {
	rows := sumGroups(frames, func(f models.Frame) (groupKey, Row) {
		keys := req.keysOf(f)
		return groupKey{Values: joinKeys(keys)}, Row{Keys: keys}
	})
	if len(req.GroupBy) == 0 && len(rows) == 0 {
		rows = []Row{{Keys: []GroupKey{}, Price: decimal.Zero}}
	}
	slices.SortFunc(rows, func(lhs, rhs Row) int {
		return compareKeys(lhs.Keys, rhs.Keys)
	})
	return rows
}

func reduceMax(req Request, frames []models.Frame) []Row {
	index := make(map[string]int)
	var rows []Row
	for _, f := range frames {
		keys := req.keysOf(f)
		key := joinKeys(keys)
		idx, exists := index[key]
		if !exists {
			index[key] = len(rows)
			rows = append(rows, Row{Keys: keys, Price: f.Price.Decimal, Frame: &f})
			continue
		}
		current := rows[idx].Frame
		c := f.Price.Decimal.Cmp(current.Price.Decimal)
		if c > 0 || (c == 0 && f.FrameBegin.Before(current.FrameBegin)) {
			rows[idx].Price = f.Price.Decimal
			rows[idx].Frame = &f
		}
	}
	slices.SortFunc(rows, func(lhs, rhs Row) int {
		return compareKeys(lhs.Keys, rhs.Keys)
	})
	return rows
}

func reduceRatio(req Request, frames []models.Frame) []Row {
	totals := make(map[string]decimal.Decimal)
	for _, f := range frames {
		key := joinKeys(req.keysOf(f))
		totals[key] = totals[key].Add(f.Price.Decimal)
	}

	rows := sumGroups(frames, func(f models.Frame) (groupKey, Row) {
		keys := req.keysOf(f)
		rule := ""
		if f.MatchedRule != nil {
			rule = *f.MatchedRule
		}
		return groupKey{Values: joinKeys(keys) + "\x00" + rule}, Row{Keys: keys, MatchedRule: f.MatchedRule}
	})
	for idx := range rows {
		total := totals[joinKeys(rows[idx].Keys)]
		ratio := decimal.Zero
		if !total.IsZero() {
			ratio = rows[idx].Price.DivRound(total, RatioPrecision)
		}
		rows[idx].Ratio = &ratio
	}
	slices.SortFunc(rows, func(lhs, rhs Row) int {
		return cmp.Or(compareKeys(lhs.Keys, rhs.Keys), cmp.Compare(ruleName(lhs), ruleName(rhs)))
	})
	return rows
}

func ruleName(r Row) string {
	if r.MatchedRule == nil {
		return ""
	}
	return *r.MatchedRule
}
