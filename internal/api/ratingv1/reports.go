// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package ratingv1

import (
	"bytes"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/respondwith"

	"github.com/Smile-SA/rating-operator-api/internal/aggregation"
	"github.com/Smile-SA/rating-operator-api/internal/processor"
	"github.com/Smile-SA/rating-operator-api/internal/rating"
)

// reportRoute describes one report endpoint. Filters are taken from the path
// variables {namespace}, {node}, {pod} and {metric}, the aggregator from
// {aggregator}, and the time range from the "start" and "end" query
// parameters.
type reportRoute struct {
	Path      string
	GroupBy   []rating.Dimension
	Operation aggregation.Operation
	ToDate    bool
}

var (
	byNamespace = []rating.Dimension{rating.DimensionNamespace}
	byNode      = []rating.Dimension{rating.DimensionNode}
	byPod       = []rating.Dimension{rating.DimensionPod}
	byMetric    = []rating.Dimension{rating.DimensionMetric}
)

func with(dims []rating.Dimension, extra rating.Dimension) []rating.Dimension {
	return append(append([]rating.Dimension(nil), dims...), extra)
}

// Order matters: literal segments must be registered before the variable
// segments they would otherwise be shadowed by.
var reportRoutes = []reportRoute{
	{Path: "/namespaces/rating", GroupBy: byNamespace, Operation: aggregation.OpRating},
	{Path: "/namespaces/rating/{aggregator}", GroupBy: byNamespace, Operation: aggregation.OpRating},
	{Path: "/namespaces/total_rating", GroupBy: byNamespace, Operation: aggregation.OpTotalRating},
	{Path: "/namespaces/metrics/rating", GroupBy: with(byNamespace, rating.DimensionMetric), Operation: aggregation.OpRating},
	{Path: "/namespaces/{namespace}/rating", GroupBy: byNamespace, Operation: aggregation.OpRating},
	{Path: "/namespaces/{namespace}/total_rating", Operation: aggregation.OpTotalRating},
	{Path: "/namespaces/{namespace}/metrics/{metric}/rating", GroupBy: with(byNamespace, rating.DimensionMetric), Operation: aggregation.OpRating},
	{Path: "/namespaces/{namespace}/{aggregator}", GroupBy: byNamespace, Operation: aggregation.OpRating},

	{Path: "/nodes/rating", GroupBy: byNode, Operation: aggregation.OpRating},
	{Path: "/nodes/rating/{aggregator}", GroupBy: byNode, Operation: aggregation.OpRating},
	{Path: "/nodes/total_rating", GroupBy: byNode, Operation: aggregation.OpTotalRating},
	{Path: "/nodes/metrics/rating", GroupBy: with(byNode, rating.DimensionMetric), Operation: aggregation.OpRating},
	{Path: "/nodes/metrics/{metric}/rating", GroupBy: with(byNode, rating.DimensionMetric), Operation: aggregation.OpRating},
	{Path: "/nodes/{node}/rating", GroupBy: byNode, Operation: aggregation.OpRating},
	{Path: "/nodes/{node}/total_rating", Operation: aggregation.OpTotalRating},
	{Path: "/nodes/{node}/{aggregator}", GroupBy: byNode, Operation: aggregation.OpRating},

	{Path: "/pods/rating", GroupBy: byPod, Operation: aggregation.OpRating},
	{Path: "/pods/rating/{aggregator}", GroupBy: byPod, Operation: aggregation.OpRating},
	{Path: "/pods/total_rating", GroupBy: byPod, Operation: aggregation.OpTotalRating},
	{Path: "/pods/metrics/rating", GroupBy: with(byPod, rating.DimensionMetric), Operation: aggregation.OpRating},
	{Path: "/pods/{pod}/rating", GroupBy: byPod, Operation: aggregation.OpRating},
	{Path: "/pods/{pod}/total_rating", Operation: aggregation.OpTotalRating},
	{Path: "/pods/{pod}/metrics/{metric}/rating", GroupBy: with(byPod, rating.DimensionMetric), Operation: aggregation.OpRating},
	{Path: "/pods/{pod}/metrics/{metric}/total_rating", Operation: aggregation.OpTotalRating},
	{Path: "/pods/{pod}/{aggregator}", GroupBy: byPod, Operation: aggregation.OpRating},

	{Path: "/metrics/rating", GroupBy: byMetric, Operation: aggregation.OpRating},
	{Path: "/metrics/rating/{aggregator}", GroupBy: byMetric, Operation: aggregation.OpRating},
	{Path: "/metrics/{metric}/rating", GroupBy: byMetric, Operation: aggregation.OpRating},
	{Path: "/metrics/{metric}/total_rating", Operation: aggregation.OpTotalRating},
	{Path: "/metrics/{metric}/max", Operation: aggregation.OpMax},
	{Path: "/metrics/{metric}/ratio", Operation: aggregation.OpRatio},
	{Path: "/metrics/{metric}/todate", Operation: aggregation.OpTotalRating, ToDate: true},
	{Path: "/metrics/{metric}/{aggregator}", GroupBy: byMetric, Operation: aggregation.OpRating},
}

func (a *API) handleGetReport(route reportRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpapi.IdentifyEndpoint(r, route.Path)
		scope, ok := a.resolveScope(w, r)
		if !ok {
			return
		}

		vars := mux.Vars(r)
		aggregator := aggregation.NoAggregator
		if input, exists := vars["aggregator"]; exists {
			var err error
			aggregator, err = aggregation.ParseAggregator(input)
			if respondWithError(w, err) {
				return
			}
		}
		query := r.URL.Query()
		report, err := a.processor.Report(r.Context(), scope, processor.ReportRequest{
			GroupBy:    route.GroupBy,
			Operation:  route.Operation,
			Aggregator: aggregator,
			Namespace:  vars["namespace"],
			Node:       vars["node"],
			Pod:        vars["pod"],
			Metric:     vars["metric"],
			Start:      query.Get("start"),
			End:        query.Get("end"),
			ToDate:     route.ToDate,
		})
		if respondWithError(w, err) {
			return
		}
		respondwith.JSON(w, http.StatusOK, report)
	}
}

func (a *API) handleGetNamespaces(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/namespaces")
	scope, ok := a.resolveScope(w, r)
	if !ok {
		return
	}
	result, err := a.processor.Namespaces(r.Context(), scope)
	if respondWithError(w, err) {
		return
	}
	respondwith.JSON(w, http.StatusOK, result)
}

func (a *API) handleGetDistinctValues(dim rating.Dimension) http.HandlerFunc {
	endpoint := "/" + string(dim) + "s"
	return func(w http.ResponseWriter, r *http.Request) {
		httpapi.IdentifyEndpoint(r, endpoint)
		scope, ok := a.resolveScope(w, r)
		if !ok {
			return
		}
		query := r.URL.Query()
		result, err := a.processor.DistinctValues(r.Context(), scope, dim, query.Get("start"), query.Get("end"))
		if respondWithError(w, err) {
			return
		}
		respondwith.JSON(w, http.StatusOK, result)
	}
}

func (a *API) handleGetPodLifetime(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/pods/:pod/lifetime")
	scope, ok := a.resolveScope(w, r)
	if !ok {
		return
	}
	result, err := a.processor.PodLifetime(r.Context(), scope, mux.Vars(r)["pod"])
	if respondWithError(w, err) {
		return
	}
	respondwith.JSON(w, http.StatusOK, result)
}

func (a *API) handleGetMetrics(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/metrics")
	//public catalogue, but broken credentials are still rejected
	_, ok := a.resolveScope(w, r)
	if !ok {
		return
	}
	result, err := a.processor.Metrics(r.Context())
	if respondWithError(w, err) {
		return
	}
	respondwith.JSON(w, http.StatusOK, result)
}

func (a *API) handleGetOldestFrame(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/rated/frames/oldest")
	scope, ok := a.resolveScope(w, r)
	if !ok {
		return
	}
	result, err := a.processor.OldestFrame(r.Context(), scope)
	if respondWithError(w, err) {
		return
	}
	respondwith.JSON(w, http.StatusOK, result)
}

func (a *API) handleGetFrameStatus(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/rated/frames/status")
	scope, ok := a.resolveScope(w, r)
	if !ok {
		return
	}
	result, err := a.processor.FrameStatus(r.Context(), scope)
	if respondWithError(w, err) {
		return
	}
	respondwith.JSON(w, http.StatusOK, result)
}

func (a *API) handleGetRulesMetrics(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/rules_metrics")
	var buf bytes.Buffer
	err := a.processor.RulesExposition(r.Context(), &buf)
	if respondWithError(w, err) {
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck
}
