// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package processor

import (
	"context"
	"time"

	promdriver "github.com/Smile-SA/rating-operator-api/internal/drivers/prometheus"
	"github.com/Smile-SA/rating-operator-api/internal/rating"
	"github.com/Smile-SA/rating-operator-api/internal/rules"
)

// QueryBackend evaluates PromQL queries. It is implemented by the Prometheus driver.
type QueryBackend interface {
	Query(ctx context.Context, query string, ts time.Time) ([]promdriver.Sample, error)
}

// Processor composes access control, frame selection, aggregation and rule
// management into the operations offered by the API. Every method takes the
// rating.Scope of the request explicitly.
type Processor struct {
	cfg     rating.Configuration
	store   rating.Store
	rules   *rules.Rules
	backend QueryBackend //optional

	//non-pure functions that can be replaced by deterministic doubles for unit tests
	timeNow func() time.Time
}

// New creates a new Processor.
func New(cfg rating.Configuration, store rating.Store) *Processor {
	return &Processor{
		cfg:     cfg,
		store:   store,
		rules:   rules.New(store, store),
		timeNow: time.Now,
	}
}

// OverrideTimeNow replaces time.Now with a test double.
func (p *Processor) OverrideTimeNow(timeNow func() time.Time) *Processor {
	p.timeNow = timeNow
	p.rules.OverrideTimeNow(timeNow)
	return p
}

// WithMirror configures where rule changes are mirrored to.
func (p *Processor) WithMirror(mirror rules.RuleMirror) *Processor {
	p.rules.WithMirror(mirror)
	return p
}

// WithQueryBackend configures the backend used for instance previews.
func (p *Processor) WithQueryBackend(backend QueryBackend) *Processor {
	p.backend = backend
	return p
}

// Rules gives access to the template store and instance compiler.
func (p *Processor) Rules() *rules.Rules {
	return p.rules
}

// Listing is the envelope of all catalogue operations.
type Listing[T any] struct {
	Results []T `json:"results"`
	Total   int `json:"total"`
}

// NewListing wraps the given items into a Listing.
func NewListing[T any](items []T) Listing[T] {
	if items == nil {
		items = []T{}
	}
	return Listing[T]{Results: items, Total: len(items)}
}
