// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package processor

import (
	"context"

	"github.com/Smile-SA/rating-operator-api/internal/aggregation"
	"github.com/Smile-SA/rating-operator-api/internal/rating"
)

// ReportRequest describes a cost report.
type ReportRequest struct {
	GroupBy    []rating.Dimension
	Operation  aggregation.Operation
	Aggregator aggregation.Aggregator

	// Scalar filters. Empty values match everything.
	Namespace string
	Node      string
	Pod       string
	Metric    string

	// Start and End are the raw request parameters. Missing values default to
	// the last two hours.
	Start string
	End   string
	// ToDate replaces the time range with the current month up to now.
	ToDate bool
}

// Report computes a cost report over the frames visible in the given scope.
func (p *Processor) Report(ctx context.Context, scope rating.Scope, req ReportRequest) (aggregation.Report, error) {
	err := scope.RequireFrameAccess()
	if err != nil {
		return aggregation.Report{}, err
	}
	if req.Namespace != "" {
		err = scope.AuthorizeNamespace(req.Namespace)
		if err != nil {
			return aggregation.Report{}, err
		}
	}

	var timeRange rating.TimeRange
	if req.ToDate {
		timeRange = aggregation.ToDateRange(p.timeNow())
	} else {
		timeRange, err = rating.ParseTimeRange(req.Start, req.End, p.timeNow())
		if err != nil {
			return aggregation.Report{}, err
		}
	}

	q := scope.Restrict(rating.FrameQuery{
		Range:     &timeRange,
		Namespace: req.Namespace,
		Node:      req.Node,
		Pod:       req.Pod,
		Metric:    req.Metric,
	})
	report, err := aggregation.Run(ctx, p.store, q, aggregation.Request{
		GroupBy:    req.GroupBy,
		Aggregator: req.Aggregator,
		Operation:  req.Operation,
	})
	if err != nil {
		return aggregation.Report{}, err
	}

	ReportCounter.WithLabelValues(string(req.Operation), string(req.Aggregator)).Inc()
	UnratedFramesCounter.Add(float64(report.Unrated))
	return report, nil
}
