// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"context"
	"regexp"
	"time"

	"github.com/sapcc/go-bits/logg"

	"github.com/Smile-SA/rating-operator-api/internal/models"
	"github.com/Smile-SA/rating-operator-api/internal/rating"
)

// RuleMirror publishes rule changes to an external system, e.g. as Kubernetes
// custom resources. The database stays authoritative, so mirror failures are
// only logged.
type RuleMirror interface {
	PutTemplate(ctx context.Context, t models.Template) error
	DeleteTemplate(ctx context.Context, name string) error
	PutInstance(ctx context.Context, inst models.Instance) error
	DeleteInstance(ctx context.Context, metricName string) error
}

// Rules implements the template store and instance compiler on top of the
// append-only history tables.
type Rules struct {
	templates rating.TemplateStore
	instances rating.InstanceStore
	mirror    RuleMirror

	//non-pure functions that can be replaced by deterministic doubles for unit tests
	timeNow func() time.Time
}

// New creates a new Rules instance.
func New(templates rating.TemplateStore, instances rating.InstanceStore) *Rules {
	return &Rules{templates: templates, instances: instances, timeNow: time.Now}
}

// OverrideTimeNow replaces time.Now with a test double.
func (r *Rules) OverrideTimeNow(timeNow func() time.Time) *Rules {
	r.timeNow = timeNow
	return r
}

// WithMirror configures a RuleMirror that is notified after each mutation.
func (r *Rules) WithMirror(mirror RuleMirror) *Rules {
	r.mirror = mirror
	return r
}

// Names of templates and metrics end up in PromQL recording rules and in
// custom resource names, so they are restricted to a conservative alphabet.
var ruleNameRx = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]{0,199}$`)

func validateRuleName(kind, name string) error {
	if name == "" {
		return rating.ErrValidation.With("missing %s", kind)
	}
	if !ruleNameRx.MatchString(name) {
		return rating.ErrValidation.With("invalid %s: %q", kind, name)
	}
	return nil
}

func (r *Rules) notifyMirror(action string, notify func(RuleMirror) error) {
	if r.mirror == nil {
		return
	}
	err := notify(r.mirror)
	if err != nil {
		logg.Error("could not mirror %s: %s", action, err.Error())
	}
}
