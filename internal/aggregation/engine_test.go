// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package aggregation_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sapcc/go-bits/assert"
	"github.com/sapcc/go-bits/must"
	"github.com/shopspring/decimal"

	"github.com/Smile-SA/rating-operator-api/internal/aggregation"
	"github.com/Smile-SA/rating-operator-api/internal/models"
	"github.com/Smile-SA/rating-operator-api/internal/rating"
	"github.com/Smile-SA/rating-operator-api/internal/test"
)

func ts(input string) time.Time {
	return must.Return(time.Parse(time.RFC3339, input))
}

func price(value string) decimal.NullDecimal {
	if value == "" {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.RequireFromString(value))
}

func rule(name string) *string {
	return &name
}

func frame(begin, namespace, pod, metric, value string) models.Frame {
	b := ts(begin)
	return models.Frame{
		FrameBegin: b,
		FrameEnd:   b.Add(time.Hour),
		Namespace:  namespace,
		Node:       "node-1",
		Pod:        pod,
		Metric:     metric,
		Quantity:   1,
		Price:      price(value),
	}
}

func TestTotalRatingExcludesUnratedFrames(t *testing.T) {
	frames := []models.Frame{
		frame("2024-01-01T00:00:00Z", "default", "pod-1", "cpu", "1.0"),
		frame("2024-01-01T01:00:00Z", "default", "pod-1", "cpu", "2.0"),
		frame("2024-01-01T02:00:00Z", "default", "pod-1", "cpu", ""),
	}
	report := aggregation.Aggregate(aggregation.Request{Operation: aggregation.OpTotalRating}, frames)
	assert.DeepEqual(t, "row count", report.Total, 1)
	assert.DeepEqual(t, "unrated", report.Unrated, 1)
	assert.DeepEqual(t, "total price", report.Results[0].Price.String(), "3")

	buf := must.Return(json.Marshal(report))
	assert.DeepEqual(t, "JSON", string(buf), `{"results":[{"frame_price":3}],"total":1,"unrated":1}`)

	//an empty selection still reports a total
	report = aggregation.Aggregate(aggregation.Request{Operation: aggregation.OpTotalRating}, nil)
	buf = must.Return(json.Marshal(report))
	assert.DeepEqual(t, "JSON", string(buf), `{"results":[{"frame_price":0}],"total":1,"unrated":0}`)

	//grouped totals only report groups with priced frames
	report = aggregation.Aggregate(aggregation.Request{
		Operation: aggregation.OpTotalRating,
		GroupBy:   []rating.Dimension{rating.DimensionNamespace},
	}, nil)
	buf = must.Return(json.Marshal(report))
	assert.DeepEqual(t, "JSON", string(buf), `{"results":[],"total":0,"unrated":0}`)
}

func TestDefaultRangeExcludesOldFrames(t *testing.T) {
	now := ts("2024-01-01T12:00:00Z")
	store := test.NewMemoryStore()
	store.AddFrames(
		frame("2024-01-01T09:00:00Z", "default", "pod-1", "cpu", "5"),
		frame("2024-01-01T11:00:00Z", "default", "pod-1", "cpu", "2"),
	)
	//the first frame ends at 10:00, exactly where the default range starts

	timeRange := must.Return(rating.ParseTimeRange("", "", now))
	assert.DeepEqual(t, "default range", timeRange, rating.TimeRange{
		Start: ts("2024-01-01T10:00:00Z"),
		End:   now,
	})

	q := rating.FrameQuery{Range: &timeRange, AllNamespaces: true}
	report, err := aggregation.Run(context.Background(), store, q, aggregation.Request{Operation: aggregation.OpTotalRating})
	must.SucceedT(t, err)
	assert.DeepEqual(t, "total price", report.Results[0].Price.String(), "2")
}

func TestToDateRangeIsUTC(t *testing.T) {
	//01:00 on March 1st in Paris is still February in UTC
	now := time.Date(2024, 3, 1, 1, 0, 0, 0, time.FixedZone("CET", 60*60))
	r := aggregation.ToDateRange(now)
	assert.DeepEqual(t, "start", r.Start, ts("2024-02-01T00:00:00Z"))
	assert.DeepEqual(t, "end", r.End, ts("2024-03-01T00:00:00Z"))
}

func TestRatingBuckets(t *testing.T) {
	frames := []models.Frame{
		frame("2024-01-01T10:00:00Z", "ns-b", "pod-2", "cpu", "1"),
		frame("2024-01-01T10:00:00Z", "ns-a", "pod-1", "cpu", "2"),
		frame("2024-01-01T11:00:00Z", "ns-a", "pod-1", "cpu", "3"),
		frame("2024-01-02T09:00:00Z", "ns-a", "pod-1", "memory", "4"),
		frame("2024-01-08T09:00:00Z", "ns-a", "pod-1", "memory", "5"),
	}
	byNamespace := []rating.Dimension{rating.DimensionNamespace}

	//without aggregator, every frame_begin is a bucket
	report := aggregation.Aggregate(aggregation.Request{Operation: aggregation.OpRating, GroupBy: byNamespace}, frames)
	buf := must.Return(json.Marshal(report.Results))
	assert.DeepEqual(t, "JSON", string(buf), `[`+
		`{"frame_begin":"2024-01-01T10:00:00Z","frame_price":2,"namespace":"ns-a"},`+
		`{"frame_begin":"2024-01-01T10:00:00Z","frame_price":1,"namespace":"ns-b"},`+
		`{"frame_begin":"2024-01-01T11:00:00Z","frame_price":3,"namespace":"ns-a"},`+
		`{"frame_begin":"2024-01-02T09:00:00Z","frame_price":4,"namespace":"ns-a"},`+
		`{"frame_begin":"2024-01-08T09:00:00Z","frame_price":5,"namespace":"ns-a"}]`)

	//2024-01-01 is a Monday, so the first four frames share a week
	report = aggregation.Aggregate(aggregation.Request{Operation: aggregation.OpRating, Aggregator: aggregation.Weekly}, frames)
	buf = must.Return(json.Marshal(report.Results))
	assert.DeepEqual(t, "JSON", string(buf), `[`+
		`{"frame_begin":"2024-01-01T00:00:00Z","frame_price":10},`+
		`{"frame_begin":"2024-01-08T00:00:00Z","frame_price":5}]`)

	report = aggregation.Aggregate(aggregation.Request{Operation: aggregation.OpRating, Aggregator: aggregation.Daily, GroupBy: byNamespace}, frames)
	assert.DeepEqual(t, "daily rows", report.Total, 4)
	assert.DeepEqual(t, "first daily row", report.Results[0].Price.String(), "5")
}

func TestMonthlyTotalEqualsSumOfDays(t *testing.T) {
	var frames []models.Frame
	start := ts("2024-02-01T00:00:00Z")
	for hour := 0; hour < 29*24; hour += 5 {
		begin := start.Add(time.Duration(hour) * time.Hour).Format(time.RFC3339)
		value := decimal.NewFromInt(int64(hour%7) + 1).Div(decimal.NewFromInt(3)).StringFixed(4)
		if hour%11 == 0 {
			value = ""
		}
		frames = append(frames, frame(begin, "default", "pod-1", "cpu", value))
	}

	monthly := aggregation.Aggregate(aggregation.Request{Operation: aggregation.OpRating, Aggregator: aggregation.Monthly}, frames)
	total := aggregation.Aggregate(aggregation.Request{Operation: aggregation.OpTotalRating}, frames)
	daily := aggregation.Aggregate(aggregation.Request{Operation: aggregation.OpRating, Aggregator: aggregation.Daily}, frames)

	sumOfDays := decimal.Zero
	for _, row := range daily.Results {
		sumOfDays = sumOfDays.Add(row.Price)
	}
	assert.DeepEqual(t, "days in month", daily.Total, 29)
	assert.DeepEqual(t, "month rows", monthly.Total, 1)
	assert.DeepEqual(t, "month == sum of days", monthly.Results[0].Price.String(), sumOfDays.String())
	assert.DeepEqual(t, "total == sum of days", total.Results[0].Price.String(), sumOfDays.String())
	assert.DeepEqual(t, "unrated on both sides", daily.Unrated, total.Unrated)
}

func TestMaxAndRatio(t *testing.T) {
	frames := []models.Frame{
		frame("2024-01-01T10:00:00Z", "ns-a", "pod-1", "cpu", "4"),
		frame("2024-01-01T09:00:00Z", "ns-a", "pod-2", "cpu", "4"),
		frame("2024-01-01T11:00:00Z", "ns-a", "pod-1", "cpu", "1"),
		frame("2024-01-01T11:00:00Z", "ns-a", "pod-1", "cpu", ""),
	}
	frames[0].MatchedRule = rule("rule-a")
	frames[1].MatchedRule = rule("rule-b")
	frames[2].MatchedRule = rule("rule-a")

	//ties go to the earliest frame
	report := aggregation.Aggregate(aggregation.Request{Operation: aggregation.OpMax}, frames)
	assert.DeepEqual(t, "max rows", report.Total, 1)
	assert.DeepEqual(t, "max frame", report.Results[0].Frame.Pod, "pod-2")
	assert.DeepEqual(t, "max price", report.Results[0].Price.String(), "4")

	report = aggregation.Aggregate(aggregation.Request{Operation: aggregation.OpRatio}, frames)
	buf := must.Return(json.Marshal(report))
	assert.DeepEqual(t, "JSON", string(buf), `{"results":[`+
		`{"frame_price":5,"matched_rule":"rule-a","ratio":0.555556},`+
		`{"frame_price":4,"matched_rule":"rule-b","ratio":0.444444}],"total":2,"unrated":1}`)

	//a zero total yields a zero ratio
	frames = []models.Frame{frame("2024-01-01T10:00:00Z", "ns-a", "pod-1", "cpu", "0")}
	report = aggregation.Aggregate(aggregation.Request{Operation: aggregation.OpRatio}, frames)
	assert.DeepEqual(t, "ratio", report.Results[0].Ratio.String(), "0")
}

func TestRequestValidation(t *testing.T) {
	_, err := aggregation.ParseAggregator("hourly")
	assert.DeepEqual(t, "is validation error", rating.IsCode(err, rating.ErrValidation), true)

	agg, err := aggregation.ParseAggregator("monthly")
	must.SucceedT(t, err)
	err = aggregation.Request{Operation: aggregation.OpMax, Aggregator: agg}.Validate()
	assert.DeepEqual(t, "is validation error", rating.IsCode(err, rating.ErrValidation), true)

	err = aggregation.Request{Operation: aggregation.OpRating, GroupBy: []rating.Dimension{"container"}}.Validate()
	assert.DeepEqual(t, "is validation error", rating.IsCode(err, rating.ErrValidation), true)

	now := ts("2024-03-15T08:30:00Z")
	assert.DeepEqual(t, "to-date range", aggregation.ToDateRange(now), rating.TimeRange{
		Start: ts("2024-03-01T00:00:00Z"),
		End:   now,
	})
}
