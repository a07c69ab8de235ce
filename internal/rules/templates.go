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

// Template is how a template version appears in the API.
type Template struct {
	ID        time.Time `json:"id"`
	Name      string    `json:"query_name"`
	Group     string    `json:"query_group"`
	Query     string    `json:"query_template"`
	Variables []string  `json:"query_variables"`
}

// RenderTemplate converts a database record into its API representation.
func RenderTemplate(t models.Template) Template {
	vars := t.Variables()
	if vars == nil {
		vars = []string{}
	}
	return Template{
		ID:        t.ID,
		Name:      t.Name,
		Group:     t.Group,
		Query:     t.Query,
		Variables: vars,
	}
}

// TemplateSpec contains the user-supplied fields of a new template.
type TemplateSpec struct {
	Name      string
	Group     string
	Query     string
	Variables []string
}

// TemplatePatch contains the fields of a template edit. Nil fields keep the
// value of the current version.
type TemplatePatch struct {
	Name      string
	Group     *string
	Query     *string
	Variables *[]string
}

// ListTemplates returns the current version of every template.
func (r *Rules) ListTemplates(ctx context.Context) ([]Template, error) {
	dbTemplates, err := r.templates.ListCurrentTemplates(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]Template, 0, len(dbTemplates))
	for _, t := range dbTemplates {
		result = append(result, RenderTemplate(t))
	}
	return result, nil
}

// GetTemplate returns the current version of the named template.
func (r *Rules) GetTemplate(ctx context.Context, name string) (Template, error) {
	t, err := r.findCurrentTemplate(ctx, name)
	if err != nil {
		return Template{}, err
	}
	return RenderTemplate(*t), nil
}

// TemplateHistory returns all versions of the named template, newest first.
func (r *Rules) TemplateHistory(ctx context.Context, name string) ([]Template, error) {
	versions, err := r.templates.ListTemplateVersions(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, rating.ErrNotFound.With("no such template: %q", name)
	}
	result := make([]Template, 0, len(versions))
	for _, t := range versions {
		result = append(result, RenderTemplate(t))
	}
	return result, nil
}

func (r *Rules) findCurrentTemplate(ctx context.Context, name string) (*models.Template, error) {
	t, err := r.templates.FindCurrentTemplate(ctx, name)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, rating.ErrNotFound.With("no such template: %q", name)
	}
	return t, nil
}

// AddTemplate creates the first version of a template.
func (r *Rules) AddTemplate(ctx context.Context, scope rating.Scope, spec TemplateSpec) (Template, error) {
	err := scope.RequireAdmin()
	if err != nil {
		return Template{}, err
	}
	err = validateRuleName("query_name", spec.Name)
	if err != nil {
		return Template{}, err
	}
	existing, err := r.templates.FindCurrentTemplate(ctx, spec.Name)
	if err != nil {
		return Template{}, err
	}
	if existing != nil {
		return Template{}, rating.ErrValidation.With("template %q already exists, use edit instead", spec.Name)
	}
	return r.insertTemplate(ctx, spec)
}

// EditTemplate appends a new version to an existing template.
func (r *Rules) EditTemplate(ctx context.Context, scope rating.Scope, patch TemplatePatch) (Template, error) {
	err := scope.RequireAdmin()
	if err != nil {
		return Template{}, err
	}
	current, err := r.findCurrentTemplate(ctx, patch.Name)
	if err != nil {
		return Template{}, err
	}

	spec := TemplateSpec{
		Name:      current.Name,
		Group:     current.Group,
		Query:     current.Query,
		Variables: current.Variables(),
	}
	if patch.Group != nil {
		spec.Group = *patch.Group
	}
	if patch.Query != nil {
		spec.Query = *patch.Query
	}
	if patch.Variables != nil {
		spec.Variables = *patch.Variables
	}
	return r.insertTemplate(ctx, spec)
}

func (r *Rules) insertTemplate(ctx context.Context, spec TemplateSpec) (Template, error) {
	if spec.Query == "" {
		return Template{}, rating.ErrValidation.With("missing query_template")
	}
	err := checkTemplateVariables(spec.Query, spec.Variables)
	if err != nil {
		return Template{}, err
	}

	t := models.Template{
		ID:    r.timeNow(),
		Name:  spec.Name,
		Group: spec.Group,
		Query: spec.Query,
	}
	t.SetVariables(spec.Variables)
	err = r.templates.InsertTemplate(ctx, t)
	if err != nil {
		return Template{}, err
	}
	logg.Info("stored version %s of template %q", t.ID.Format(time.RFC3339Nano), t.Name)

	r.notifyMirror("template "+t.Name, func(m RuleMirror) error { return m.PutTemplate(ctx, t) })
	return RenderTemplate(t), nil
}

// DeleteTemplate removes a template that is not used by any open instance.
func (r *Rules) DeleteTemplate(ctx context.Context, scope rating.Scope, name string) error {
	err := scope.RequireAdmin()
	if err != nil {
		return err
	}
	_, err = r.findCurrentTemplate(ctx, name)
	if err != nil {
		return err
	}
	count, err := r.instances.CountOpenInstancesForTemplate(ctx, name)
	if err != nil {
		return err
	}
	if count > 0 {
		return rating.ErrConflict.With("template %q is still used by %d instance(s)", name, count)
	}
	_, err = r.templates.DeleteTemplate(ctx, name)
	if err != nil {
		return err
	}
	logg.Info("deleted template %q", name)

	r.notifyMirror("deletion of template "+name, func(m RuleMirror) error { return m.DeleteTemplate(ctx, name) })
	return nil
}
