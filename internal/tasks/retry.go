// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package tasks

import (
	"context"
	"fmt"
	"time"
)

type retryOpts struct {
	period      time.Duration
	maxAttempts int
}

// retry runs action until it succeeds, maxAttempts is exhausted or ctx
// expires. The last error from action is returned.
func retry(ctx context.Context, o retryOpts, action func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		err = action(ctx)
		if err == nil {
			return nil
		}
		if attempt == o.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		case <-time.After(o.period):
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", o.maxAttempts, err)
}
