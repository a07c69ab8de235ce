// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package tasks

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sapcc/go-bits/jobloop"
)

// RuleGaugeJob is a job. Each run refreshes the gauges describing the open
// rating rule instances.
func (j *Janitor) RuleGaugeJob(registerer prometheus.Registerer) jobloop.Job {
	return (&jobloop.CronJob{
		Metadata: jobloop.JobMetadata{
			ReadableName: "refresh rating rule gauges",
			CounterOpts: prometheus.CounterOpts{
				Name: "rating_rule_gauge_refreshes",
				Help: "Counter for refreshes of the rating rule gauges.",
			},
		},
		Interval:     time.Minute,
		InitialDelay: j.addJitter(5 * time.Second),
		Task:         j.refreshRuleGauges,
	}).Setup(registerer)
}

func (j *Janitor) refreshRuleGauges(ctx context.Context, _ prometheus.Labels) error {
	templates, err := j.store.ListCurrentTemplates(ctx)
	if err != nil {
		return err
	}
	instances, err := j.store.ListOpenInstances(ctx)
	if err != nil {
		return err
	}

	counts := make(map[string]int, len(templates))
	for _, tmpl := range templates {
		counts[tmpl.Name] = 0
	}
	for _, inst := range instances {
		counts[inst.TemplateName]++
	}

	//deleted templates must not linger in the output
	templateInstancesGauge.Reset()
	for name, count := range counts {
		templateInstancesGauge.WithLabelValues(name).Set(float64(count))
	}
	openInstancesGauge.Set(float64(len(instances)))
	return nil
}

// FrameStatusJob is a job. Each run exposes the last insertion time of every
// metric in the frame_status table as a gauge, so that stalled ingestion can
// be alerted on.
func (j *Janitor) FrameStatusJob(registerer prometheus.Registerer) jobloop.Job {
	return (&jobloop.CronJob{
		Metadata: jobloop.JobMetadata{
			ReadableName: "refresh frame status gauges",
			CounterOpts: prometheus.CounterOpts{
				Name: "rating_frame_status_refreshes",
				Help: "Counter for refreshes of the frame status gauges.",
			},
		},
		Interval:     time.Minute,
		InitialDelay: j.addJitter(5 * time.Second),
		Task:         j.refreshFrameStatus,
	}).Setup(registerer)
}

func (j *Janitor) refreshFrameStatus(ctx context.Context, _ prometheus.Labels) error {
	status, err := j.store.ListFrameStatus(ctx)
	if err != nil {
		return err
	}
	frameLastInsertGauge.Reset()
	for _, s := range status {
		frameLastInsertGauge.WithLabelValues(s.Metric).Set(float64(s.LastInsert.Unix()))
	}
	return nil
}
