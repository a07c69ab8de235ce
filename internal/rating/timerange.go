// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package rating

import (
	"time"
)

// DefaultRangeLength is the length of the time range used when a request
// does not specify one.
const DefaultRangeLength = 2 * time.Hour

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// DefaultTimeRange returns [now - 2h, now) in UTC. Frame timestamps are
// stored without a zone, so every bound handed to the store must be UTC.
func DefaultTimeRange(now time.Time) TimeRange {
	now = now.UTC()
	return TimeRange{Start: now.Add(-DefaultRangeLength), End: now}
}

// Intersects returns whether the half-open interval [begin, end) overlaps
// with this range.
func (r TimeRange) Intersects(begin, end time.Time) bool {
	return begin.Before(r.End) && end.After(r.Start)
}

// Validate returns a validation error if the range is empty or inverted.
func (r TimeRange) Validate() error {
	if !r.Start.Before(r.End) {
		return ErrValidation.With("start (%s) must be before end (%s)",
			r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
	}
	return nil
}

// accepted timestamp layouts, most specific first
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.000Z",
	"2006-01-02 15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a timestamp in one of the layouts accepted by the API.
// Timestamps without zone information are interpreted as UTC.
func ParseTimestamp(input string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, input)
		if err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrValidation.With("malformed timestamp: %q", input)
}

// ParseTimeRange builds a TimeRange from the optional "start" and "end"
// request parameters. Missing bounds default to [now - 2h, now).
func ParseTimeRange(start, end string, now time.Time) (TimeRange, error) {
	r := DefaultTimeRange(now)
	var err error
	if start != "" {
		r.Start, err = ParseTimestamp(start)
		if err != nil {
			return TimeRange{}, err
		}
	}
	if end != "" {
		r.End, err = ParseTimestamp(end)
		if err != nil {
			return TimeRange{}, err
		}
	}
	return r, r.Validate()
}
