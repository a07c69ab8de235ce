// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package processor

import (
	"context"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/Smile-SA/rating-operator-api/internal/rating"
)

// RulesExposition writes one `rating_rule_info` sample per open rating rule
// instance in the Prometheus text format. Scrapers use this to discover which
// metrics are being rated.
func (p *Processor) RulesExposition(ctx context.Context, w io.Writer) error {
	instances, err := p.store.ListOpenInstances(ctx)
	if err != nil {
		return rating.AsError(err)
	}

	//a fresh registry per call, so that deleted instances disappear immediately
	gauge := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rating_rule_info",
			Help: "Rating rule instances that are currently in effect.",
		},
		[]string{"metric_name", "template_name", "timeframe"},
	)
	registry := prometheus.NewPedanticRegistry()
	err = registry.Register(gauge)
	if err != nil {
		return err
	}
	for _, inst := range instances {
		gauge.WithLabelValues(inst.MetricName, inst.TemplateName, inst.Timeframe).Set(1)
	}

	families, err := registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		err := enc.Encode(mf)
		if err != nil {
			return err
		}
	}
	return nil
}
