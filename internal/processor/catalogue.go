// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package processor

import (
	"context"
	"slices"

	"github.com/Smile-SA/rating-operator-api/internal/models"
	"github.com/Smile-SA/rating-operator-api/internal/rating"
)

// Namespaces lists the namespace associations visible in the given scope.
// Anonymous users see the namespaces of the public tenant.
func (p *Processor) Namespaces(ctx context.Context, scope rating.Scope) (Listing[models.Namespace], error) {
	var (
		namespaces []models.Namespace
		err        error
	)
	switch scope.Kind {
	case rating.AdminScope:
		namespaces, err = p.store.ListNamespaces(ctx, nil)
	case rating.TenantScope:
		namespaces, err = p.store.ListNamespaces(ctx, scope.Namespaces())
	default:
		var names []string
		names, err = p.store.NamespacesOfTenants(ctx, []string{p.cfg.PublicTenantID})
		if err == nil && len(names) > 0 {
			namespaces, err = p.store.ListNamespaces(ctx, names)
		}
	}
	if err != nil {
		return Listing[models.Namespace]{}, rating.AsError(err)
	}
	return NewListing(namespaces), nil
}

// DistinctValues lists the values of the given dimension among the frames
// visible in the given scope, e.g. all nodes.
func (p *Processor) DistinctValues(ctx context.Context, scope rating.Scope, dim rating.Dimension, start, end string) (Listing[string], error) {
	err := scope.RequireFrameAccess()
	if err != nil {
		return Listing[string]{}, err
	}
	timeRange, err := rating.ParseTimeRange(start, end, p.timeNow())
	if err != nil {
		return Listing[string]{}, err
	}
	values, err := p.store.ListDistinctValues(ctx, dim, scope.Restrict(rating.FrameQuery{Range: &timeRange}))
	if err != nil {
		return Listing[string]{}, rating.AsError(err)
	}
	return NewListing(values), nil
}

// MetricInfo describes a metric produced by an open rating rule instance.
type MetricInfo struct {
	Metric       string `json:"metric"`
	TemplateName string `json:"template_name"`
	Timeframe    string `json:"timeframe"`
}

// Metrics lists the metrics that are currently being rated. This catalogue
// is public.
func (p *Processor) Metrics(ctx context.Context) (Listing[MetricInfo], error) {
	instances, err := p.store.ListOpenInstances(ctx)
	if err != nil {
		return Listing[MetricInfo]{}, rating.AsError(err)
	}
	result := make([]MetricInfo, 0, len(instances))
	for _, inst := range instances {
		result = append(result, MetricInfo{
			Metric:       inst.MetricName,
			TemplateName: inst.TemplateName,
			Timeframe:    inst.Timeframe,
		})
	}
	return NewListing(result), nil
}

// PodLifetime reports the first and last frame of the given pod.
func (p *Processor) PodLifetime(ctx context.Context, scope rating.Scope, pod string) (Listing[rating.FrameSpan], error) {
	err := scope.RequireFrameAccess()
	if err != nil {
		return Listing[rating.FrameSpan]{}, err
	}
	span, err := p.store.FindFrameSpan(ctx, scope.Restrict(rating.FrameQuery{Pod: pod}))
	if err != nil {
		return Listing[rating.FrameSpan]{}, rating.AsError(err)
	}
	if span.FirstBegin == nil {
		return Listing[rating.FrameSpan]{}, rating.ErrNotFound.With("no frames for pod %q", pod)
	}
	return NewListing([]rating.FrameSpan{span}), nil
}

// OldestFrame returns the oldest frame visible in the given scope, if any.
func (p *Processor) OldestFrame(ctx context.Context, scope rating.Scope) (Listing[models.Frame], error) {
	err := scope.RequireFrameAccess()
	if err != nil {
		return Listing[models.Frame]{}, err
	}
	frame, err := p.store.FindOldestFrame(ctx, scope.Restrict(rating.FrameQuery{}))
	if err != nil {
		return Listing[models.Frame]{}, rating.AsError(err)
	}
	if frame == nil {
		return NewListing[models.Frame](nil), nil
	}
	return NewListing([]models.Frame{*frame}), nil
}

// FrameStatus lists when each metric was last written by the ingestion
// pipeline. Only admins can see this.
func (p *Processor) FrameStatus(ctx context.Context, scope rating.Scope) (Listing[models.FrameStatus], error) {
	err := scope.RequireAdmin()
	if err != nil {
		return Listing[models.FrameStatus]{}, err
	}
	status, err := p.store.ListFrameStatus(ctx)
	if err != nil {
		return Listing[models.FrameStatus]{}, rating.AsError(err)
	}
	slices.SortFunc(status, func(lhs, rhs models.FrameStatus) int {
		return lhs.LastInsert.Compare(rhs.LastInsert)
	})
	return NewListing(status), nil
}
