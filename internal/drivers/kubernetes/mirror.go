// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package kubernetesdriver

import (
	"context"

	"github.com/sapcc/go-bits/logg"

	"github.com/Smile-SA/rating-operator-api/internal/models"
	"github.com/Smile-SA/rating-operator-api/internal/rating"
)

// CRDMirror publishes rating rule templates and instances as custom resources,
// so that the rating operator can pick them up. It implements the
// rules.RuleMirror interface.
type CRDMirror struct {
	Config *Configuration
}

// NewCRDMirror builds a CRDMirror.
func NewCRDMirror(cfg *Configuration) *CRDMirror {
	return &CRDMirror{Config: cfg}
}

func (m *CRDMirror) apply(ctx context.Context, mo ManagedObject) error {
	currentState, err := mo.GetCurrentState(ctx, m.Config)
	if err != nil {
		return err
	}
	_, err = mo.CreateOrUpdate(ctx, currentState, m.Config)
	if err == nil {
		logg.Debug("mirrored %s %s", mo.Kind, mo.Name)
	}
	return err
}

// PutTemplate implements the rules.RuleMirror interface.
func (m *CRDMirror) PutTemplate(ctx context.Context, t models.Template) error {
	return m.apply(ctx, ManagedObject{
		Kind: ObjectKindTemplate,
		Name: ObjectKindTemplate.ObjectName(t.Name),
		Spec: map[string]any{
			"query_name":      t.Name,
			"query_group":     t.Group,
			"query_template":  t.Query,
			"query_variables": t.VariablesStr,
		},
	})
}

// DeleteTemplate implements the rules.RuleMirror interface.
func (m *CRDMirror) DeleteTemplate(ctx context.Context, name string) error {
	mo := ManagedObject{Kind: ObjectKindTemplate, Name: ObjectKindTemplate.ObjectName(name)}
	return mo.Delete(ctx, m.Config)
}

// PutInstance implements the rules.RuleMirror interface.
func (m *CRDMirror) PutInstance(ctx context.Context, inst models.Instance) error {
	vars, err := rating.ParseVariablesJSON(inst.VariablesJSON)
	if err != nil {
		return err
	}
	spec := map[string]any{
		"name":          inst.MetricName,
		"metric":        inst.ResolvedQuery,
		"template_name": inst.TemplateName,
		"timeframe":     inst.Timeframe,
	}
	for name, value := range vars {
		if _, exists := spec[name]; !exists {
			spec[name] = value.String()
		}
	}
	return m.apply(ctx, ManagedObject{
		Kind: ObjectKindInstance,
		Name: ObjectKindInstance.ObjectName(inst.MetricName),
		Spec: spec,
	})
}

// DeleteInstance implements the rules.RuleMirror interface.
func (m *CRDMirror) DeleteInstance(ctx context.Context, metricName string) error {
	mo := ManagedObject{Kind: ObjectKindInstance, Name: ObjectKindInstance.ObjectName(metricName)}
	return mo.Delete(ctx, m.Config)
}
