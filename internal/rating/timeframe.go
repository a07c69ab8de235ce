// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package rating

import (
	"fmt"
	"strconv"
	"time"
)

// Timeframe is the evaluation interval of a rating rule instance. It is
// stored as a whole number of seconds with an "s" suffix, e.g. "3600s".
type Timeframe time.Duration

// ParseTimeframe accepts Go duration syntax ("1h", "3600s") or a bare number
// of seconds ("3600").
func ParseTimeframe(input string) (Timeframe, error) {
	if input == "" {
		return 0, ErrValidation.With("missing timeframe")
	}
	var d time.Duration
	if secs, err := strconv.ParseInt(input, 10, 64); err == nil {
		d = time.Duration(secs) * time.Second
	} else {
		d, err = time.ParseDuration(input)
		if err != nil {
			return 0, ErrValidation.With("malformed timeframe: %q", input)
		}
	}
	if d <= 0 {
		return 0, ErrValidation.With("timeframe must be positive, got %q", input)
	}
	if d%time.Second != 0 {
		return 0, ErrValidation.With("timeframe must be a multiple of 1 second, got %q", input)
	}
	return Timeframe(d), nil
}

// String returns the canonical representation, e.g. "3600s".
func (t Timeframe) String() string {
	return fmt.Sprintf("%ds", int64(time.Duration(t)/time.Second))
}
