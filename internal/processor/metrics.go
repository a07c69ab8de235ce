// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package processor

import "github.com/prometheus/client_golang/prometheus"

var (
	//ReportCounter is a prometheus.CounterVec.
	ReportCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rating_api_reports",
			Help: "Counter for rating reports computed by the API.",
		},
		[]string{"operation", "aggregator"},
	)
	//UnratedFramesCounter is a prometheus.Counter.
	UnratedFramesCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rating_api_unrated_frames_seen",
			Help: "Counter for frames without price that were excluded from reports.",
		},
	)
)

func init() {
	prometheus.MustRegister(ReportCounter)
	prometheus.MustRegister(UnratedFramesCounter)
}
