// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package aggregation

import (
	"time"

	"github.com/Smile-SA/rating-operator-api/internal/rating"
)

// Aggregator is a calendar bucketing granularity for rating reports.
type Aggregator string

// Possible values for Aggregator.
const (
	NoAggregator Aggregator = ""
	Daily        Aggregator = "daily"
	Weekly       Aggregator = "weekly"
	Monthly      Aggregator = "monthly"
)

// ParseAggregator validates a user-supplied aggregator name.
func ParseAggregator(input string) (Aggregator, error) {
	switch a := Aggregator(input); a {
	case Daily, Weekly, Monthly:
		return a, nil
	default:
		return NoAggregator, rating.ErrValidation.With("unknown aggregator: %q (expected daily, weekly or monthly)", input)
	}
}

// BucketOf returns the start of the bucket containing t. Buckets are computed
// on the wall clock of t in its own location, so a frame never straddles two
// buckets. Weeks start on Monday. Without an aggregator, every timestamp is
// its own bucket.
func (a Aggregator) BucketOf(t time.Time) time.Time {
	year, month, day := t.Date()
	switch a {
	case Daily:
		return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
	case Weekly:
		daysSinceMonday := (int(t.Weekday()) + 6) % 7
		return time.Date(year, month, day-daysSinceMonday, 0, 0, 0, 0, t.Location())
	case Monthly:
		return time.Date(year, month, 1, 0, 0, 0, 0, t.Location())
	default:
		return t
	}
}

// ToDateRange returns the range from the start of the current UTC month until now.
func ToDateRange(now time.Time) rating.TimeRange {
	now = now.UTC()
	return rating.TimeRange{Start: Monthly.BucketOf(now), End: now}
}
