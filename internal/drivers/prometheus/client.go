// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

// Package prometheus evaluates resolved rating rule queries against a
// Prometheus-compatible backend for previews.
package prometheus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	promapi "github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	prommodel "github.com/prometheus/common/model"
	"github.com/sapcc/go-bits/logg"
)

// Client runs instant queries.
type Client struct {
	api     promv1.API
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the query timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// NewClient creates a Client connected to the given endpoint.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	client, err := promapi.NewClient(promapi.Config{Address: endpoint})
	if err != nil {
		return nil, fmt.Errorf("creating prometheus client: %w", err)
	}
	c := &Client{
		api:     promv1.NewAPI(client),
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Sample is one element of an instant vector.
type Sample struct {
	Labels    map[string]string `json:"labels"`
	Value     float64           `json:"value"`
	Timestamp time.Time         `json:"timestamp"`
}

// Query evaluates the given PromQL expression at the given instant. Scalar
// results are returned as a single sample without labels.
func (c *Client) Query(ctx context.Context, query string, ts time.Time) ([]Sample, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	value, warnings, err := c.api.Query(ctx, query, ts)
	if err != nil {
		return nil, fmt.Errorf("cannot evaluate %q: %w", query, err)
	}
	if len(warnings) > 0 {
		logg.Info("Prometheus returned warnings for %q: %s", query, strings.Join(warnings, "; "))
	}

	switch value := value.(type) {
	case prommodel.Vector:
		result := make([]Sample, 0, len(value))
		for _, sample := range value {
			labels := make(map[string]string, len(sample.Metric))
			for name, val := range sample.Metric {
				labels[string(name)] = string(val)
			}
			result = append(result, Sample{
				Labels:    labels,
				Value:     float64(sample.Value),
				Timestamp: sample.Timestamp.Time().UTC(),
			})
		}
		return result, nil
	case *prommodel.Scalar:
		return []Sample{{
			Labels:    map[string]string{},
			Value:     float64(value.Value),
			Timestamp: value.Timestamp.Time().UTC(),
		}}, nil
	default:
		return nil, errors.New("expected an instant vector or scalar, got " + value.Type().String())
	}
}
