// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"context"
	"time"

	"github.com/sapcc/go-bits/logg"

	"github.com/Smile-SA/rating-operator-api/internal/models"
	"github.com/Smile-SA/rating-operator-api/internal/rating"
)

// Instance is how an instance version appears in the API.
type Instance struct {
	MetricName    string           `json:"metric_name"`
	TemplateName  string           `json:"template_name"`
	Timeframe     string           `json:"timeframe"`
	StartTime     time.Time        `json:"start_time"`
	EndTime       *time.Time       `json:"end_time"`
	Variables     rating.Variables `json:"variables"`
	ResolvedQuery string           `json:"resolved_query"`
}

// RenderInstance converts a database record into its API representation.
func RenderInstance(inst models.Instance) (Instance, error) {
	vars, err := rating.ParseVariablesJSON(inst.VariablesJSON)
	if err != nil {
		return Instance{}, rating.ErrStorage.With("cannot decode variables of instance %q: %s", inst.MetricName, err.Error())
	}
	return Instance{
		MetricName:    inst.MetricName,
		TemplateName:  inst.TemplateName,
		Timeframe:     inst.Timeframe,
		StartTime:     inst.StartTime,
		EndTime:       inst.EndTime,
		Variables:     vars,
		ResolvedQuery: inst.ResolvedQuery,
	}, nil
}

func renderInstances(dbInstances []models.Instance) ([]Instance, error) {
	result := make([]Instance, 0, len(dbInstances))
	for _, inst := range dbInstances {
		rendered, err := RenderInstance(inst)
		if err != nil {
			return nil, err
		}
		result = append(result, rendered)
	}
	return result, nil
}

// CompileRequest contains the parameters of Compile and Edit.
type CompileRequest struct {
	TemplateName string
	MetricName   string
	Timeframe    string
	// Variables must bind exactly the variables declared by the template.
	Variables rating.Variables
}

// Compile binds a template to concrete variable values and stores the result
// as the new open instance for req.MetricName. A previously open instance for
// the same metric is closed in the same transaction.
func (r *Rules) Compile(ctx context.Context, scope rating.Scope, req CompileRequest) (Instance, error) {
	err := scope.RequireAdmin()
	if err != nil {
		return Instance{}, err
	}
	err = validateRuleName("metric_name", req.MetricName)
	if err != nil {
		return Instance{}, err
	}
	err = validateRuleName("template_name", req.TemplateName)
	if err != nil {
		return Instance{}, err
	}
	return r.compile(ctx, req)
}

// Edit is like Compile, but requires an open instance for req.MetricName.
// Empty fields in the request are taken from the open instance.
func (r *Rules) Edit(ctx context.Context, scope rating.Scope, req CompileRequest) (Instance, error) {
	err := scope.RequireAdmin()
	if err != nil {
		return Instance{}, err
	}
	current, err := r.findOpenInstance(ctx, req.MetricName)
	if err != nil {
		return Instance{}, err
	}

	if req.TemplateName == "" {
		req.TemplateName = current.TemplateName
	} else {
		err = validateRuleName("template_name", req.TemplateName)
		if err != nil {
			return Instance{}, err
		}
	}
	if req.Timeframe == "" {
		req.Timeframe = current.Timeframe
	}
	if req.Variables == nil {
		req.Variables, err = rating.ParseVariablesJSON(current.VariablesJSON)
		if err != nil {
			return Instance{}, rating.ErrStorage.With("cannot decode variables of instance %q: %s", current.MetricName, err.Error())
		}
	}
	return r.compile(ctx, req)
}

func (r *Rules) compile(ctx context.Context, req CompileRequest) (Instance, error) {
	timeframe, err := rating.ParseTimeframe(req.Timeframe)
	if err != nil {
		return Instance{}, err
	}
	tmpl, err := r.findCurrentTemplate(ctx, req.TemplateName)
	if err != nil {
		return Instance{}, err
	}

	missing, extra := symmetricDifference(tmpl.Variables(), req.Variables.Names())
	if len(missing) > 0 || len(extra) > 0 {
		return Instance{}, rating.ErrValidation.Wrap(rating.VariableMismatchError{
			TemplateName: tmpl.Name,
			Missing:      missing,
			Extra:        extra,
		})
	}

	resolved, err := Substitute(tmpl.Query, req.Variables)
	if err != nil {
		return Instance{}, err
	}
	varsJSON, err := req.Variables.ToJSON()
	if err != nil {
		return Instance{}, rating.ErrValidation.With("cannot encode variables: %s", err.Error())
	}

	inst := models.Instance{
		MetricName:    req.MetricName,
		TemplateName:  tmpl.Name,
		Timeframe:     timeframe.String(),
		StartTime:     r.timeNow(),
		VariablesJSON: varsJSON,
		ResolvedQuery: resolved,
	}
	err = r.instances.ReplaceOpenInstance(ctx, inst)
	if err != nil {
		return Instance{}, err
	}
	logg.Info("compiled template %q into instance %q with timeframe %s", inst.TemplateName, inst.MetricName, inst.Timeframe)

	r.notifyMirror("instance "+inst.MetricName, func(m RuleMirror) error { return m.PutInstance(ctx, inst) })
	return RenderInstance(inst)
}

func (r *Rules) findOpenInstance(ctx context.Context, metricName string) (*models.Instance, error) {
	if metricName == "" {
		return nil, rating.ErrValidation.With("missing metric_name")
	}
	inst, err := r.instances.FindOpenInstance(ctx, metricName)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, rating.ErrNotFound.With("no such instance: %q", metricName)
	}
	return inst, nil
}

// GetInstance returns the open instance for the given metric.
func (r *Rules) GetInstance(ctx context.Context, metricName string) (Instance, error) {
	inst, err := r.findOpenInstance(ctx, metricName)
	if err != nil {
		return Instance{}, err
	}
	return RenderInstance(*inst)
}

// ListInstances returns all open instances.
func (r *Rules) ListInstances(ctx context.Context) ([]Instance, error) {
	dbInstances, err := r.instances.ListOpenInstances(ctx)
	if err != nil {
		return nil, err
	}
	return renderInstances(dbInstances)
}

// InstanceHistory returns all versions of the instance for the given metric,
// newest first.
func (r *Rules) InstanceHistory(ctx context.Context, metricName string) ([]Instance, error) {
	versions, err := r.instances.ListInstanceVersions(ctx, metricName)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, rating.ErrNotFound.With("no such instance: %q", metricName)
	}
	return renderInstances(versions)
}

// DeleteInstance closes the open instance for the given metric. Its history
// is kept.
func (r *Rules) DeleteInstance(ctx context.Context, scope rating.Scope, metricName string) error {
	err := scope.RequireAdmin()
	if err != nil {
		return err
	}
	_, err = r.findOpenInstance(ctx, metricName)
	if err != nil {
		return err
	}
	_, err = r.instances.CloseInstance(ctx, metricName, r.timeNow())
	if err != nil {
		return err
	}
	logg.Info("closed instance %q", metricName)

	r.notifyMirror("deletion of instance "+metricName, func(m RuleMirror) error { return m.DeleteInstance(ctx, metricName) })
	return nil
}
