// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package processor

import (
	"context"

	"github.com/sapcc/go-bits/logg"

	promdriver "github.com/Smile-SA/rating-operator-api/internal/drivers/prometheus"
	"github.com/Smile-SA/rating-operator-api/internal/rating"
)

// Preview evaluates the resolved query of the open instance for the given
// metric against the query backend, so that operators can check a rule
// before the rating pipeline picks it up.
func (p *Processor) Preview(ctx context.Context, scope rating.Scope, metricName string) (Listing[promdriver.Sample], error) {
	err := scope.RequireAdmin()
	if err != nil {
		return Listing[promdriver.Sample]{}, err
	}
	if p.backend == nil {
		return Listing[promdriver.Sample]{}, rating.ErrValidation.With("no query backend configured")
	}
	inst, err := p.rules.GetInstance(ctx, metricName)
	if err != nil {
		return Listing[promdriver.Sample]{}, err
	}
	samples, err := p.backend.Query(ctx, inst.ResolvedQuery, p.timeNow())
	if err != nil {
		logg.Error("while previewing instance %q: %s", metricName, err.Error())
		return Listing[promdriver.Sample]{}, rating.ErrValidation.Wrap(err)
	}
	return NewListing(samples), nil
}
