// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package tasks

import "github.com/prometheus/client_golang/prometheus"

var (
	openInstancesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rating_rule_instances_open",
		Help: "Number of rating rule instances that are currently in effect.",
	})
	templateInstancesGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rating_rule_template_instances",
		Help: "Number of open rating rule instances per template.",
	}, []string{"template_name"})
	frameLastInsertGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rating_frames_last_insert_timestamp",
		Help: "UNIX timestamp of the last frame insertion by the rating pipeline, per metric.",
	}, []string{"metric"})
	namespacesDiscoveredCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rating_namespaces_discovered",
		Help: "Counter for namespaces that were associated with a tenant by the janitor.",
	})
)

func init() {
	prometheus.MustRegister(openInstancesGauge)
	prometheus.MustRegister(templateInstancesGauge)
	prometheus.MustRegister(frameLastInsertGauge)
	prometheus.MustRegister(namespacesDiscoveredCounter)
}
