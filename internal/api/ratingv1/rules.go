// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package ratingv1

import (
	"net/http"

	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/respondwith"

	"github.com/Smile-SA/rating-operator-api/internal/processor"
	"github.com/Smile-SA/rating-operator-api/internal/rules"
)

////////////////////////////////////////////////////////////////////////////////
// templates

func (a *API) handleGetTemplates(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/templates/list")
	if _, ok := a.resolveScope(w, r); !ok {
		return
	}
	templates, err := a.processor.Rules().ListTemplates(r.Context())
	if respondWithError(w, err) {
		return
	}
	respondwith.JSON(w, http.StatusOK, processor.NewListing(templates))
}

func (a *API) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/templates/get")
	if _, ok := a.resolveScope(w, r); !ok {
		return
	}
	template, err := a.processor.Rules().GetTemplate(r.Context(), r.URL.Query().Get("query_name"))
	if respondWithError(w, err) {
		return
	}
	respondwith.JSON(w, http.StatusOK, processor.NewListing([]rules.Template{template}))
}

func (a *API) handleGetTemplateHistory(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/templates/history")
	if _, ok := a.resolveScope(w, r); !ok {
		return
	}
	templates, err := a.processor.Rules().TemplateHistory(r.Context(), r.URL.Query().Get("query_name"))
	if respondWithError(w, err) {
		return
	}
	respondwith.JSON(w, http.StatusOK, processor.NewListing(templates))
}

func (a *API) handlePostTemplateAdd(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/templates/add")
	scope, p, ok := a.resolveMutation(w, r)
	if !ok {
		return
	}
	variables, err := p.Strings("query_variables")
	if respondWithError(w, err) {
		return
	}
	template, err := a.processor.Rules().AddTemplate(r.Context(), scope, rules.TemplateSpec{
		Name:      p.String("query_name"),
		Group:     p.String("query_group"),
		Query:     p.String("query_template"),
		Variables: variables,
	})
	if respondWithError(w, err) {
		return
	}
	respondwith.JSON(w, http.StatusCreated, processor.NewListing([]rules.Template{template}))
}

func (a *API) handlePostTemplateEdit(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/templates/edit")
	scope, p, ok := a.resolveMutation(w, r)
	if !ok {
		return
	}
	patch := rules.TemplatePatch{
		Name:  p.String("query_name"),
		Group: p.StringPtr("query_group"),
		Query: p.StringPtr("query_template"),
	}
	if p.Has("query_variables") {
		variables, err := p.Strings("query_variables")
		if respondWithError(w, err) {
			return
		}
		patch.Variables = &variables
	}
	template, err := a.processor.Rules().EditTemplate(r.Context(), scope, patch)
	if respondWithError(w, err) {
		return
	}
	respondwith.JSON(w, http.StatusOK, processor.NewListing([]rules.Template{template}))
}

func (a *API) handlePostTemplateDelete(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/templates/delete")
	scope, p, ok := a.resolveMutation(w, r)
	if !ok {
		return
	}
	err := a.processor.Rules().DeleteTemplate(r.Context(), scope, p.String("query_name"))
	if respondWithError(w, err) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

////////////////////////////////////////////////////////////////////////////////
// instances

// keys of an instance request that are not template variables
var instanceReservedKeys = []string{"metric_name", "template_name", "timeframe", "token", "metric"}

func (a *API) handleGetInstances(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/instances/list")
	if _, ok := a.resolveScope(w, r); !ok {
		return
	}
	instances, err := a.processor.Rules().ListInstances(r.Context())
	if respondWithError(w, err) {
		return
	}
	respondwith.JSON(w, http.StatusOK, processor.NewListing(instances))
}

func (a *API) handleGetInstance(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/instances/get")
	if _, ok := a.resolveScope(w, r); !ok {
		return
	}
	instance, err := a.processor.Rules().GetInstance(r.Context(), r.URL.Query().Get("metric_name"))
	if respondWithError(w, err) {
		return
	}
	respondwith.JSON(w, http.StatusOK, processor.NewListing([]rules.Instance{instance}))
}

func (a *API) handleGetInstanceHistory(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/instances/history")
	if _, ok := a.resolveScope(w, r); !ok {
		return
	}
	instances, err := a.processor.Rules().InstanceHistory(r.Context(), r.URL.Query().Get("metric_name"))
	if respondWithError(w, err) {
		return
	}
	respondwith.JSON(w, http.StatusOK, processor.NewListing(instances))
}

func (a *API) handleGetInstancePreview(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/instances/preview")
	scope, ok := a.resolveScope(w, r)
	if !ok {
		return
	}
	samples, err := a.processor.Preview(r.Context(), scope, r.URL.Query().Get("metric_name"))
	if respondWithError(w, err) {
		return
	}
	respondwith.JSON(w, http.StatusOK, samples)
}

func parseCompileRequest(w http.ResponseWriter, p payload) (rules.CompileRequest, bool) {
	req := rules.CompileRequest{
		MetricName:   p.String("metric_name"),
		TemplateName: p.String("template_name"),
		Timeframe:    p.String("timeframe"),
	}
	variables, err := p.Variables(instanceReservedKeys...)
	if respondWithError(w, err) {
		return rules.CompileRequest{}, false
	}
	if len(variables) > 0 {
		req.Variables = variables
	}
	return req, true
}

func (a *API) handlePostInstanceAdd(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/instances/add")
	scope, p, ok := a.resolveMutation(w, r)
	if !ok {
		return
	}
	req, ok := parseCompileRequest(w, p)
	if !ok {
		return
	}
	instance, err := a.processor.Rules().Compile(r.Context(), scope, req)
	if respondWithError(w, err) {
		return
	}
	respondwith.JSON(w, http.StatusCreated, processor.NewListing([]rules.Instance{instance}))
}

func (a *API) handlePostInstanceEdit(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/instances/edit")
	scope, p, ok := a.resolveMutation(w, r)
	if !ok {
		return
	}
	req, ok := parseCompileRequest(w, p)
	if !ok {
		return
	}
	instance, err := a.processor.Rules().Edit(r.Context(), scope, req)
	if respondWithError(w, err) {
		return
	}
	respondwith.JSON(w, http.StatusOK, processor.NewListing([]rules.Instance{instance}))
}

func (a *API) handlePostInstanceDelete(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/instances/delete")
	scope, p, ok := a.resolveMutation(w, r)
	if !ok {
		return
	}
	metricName := p.String("metric_name")
	if metricName == "" {
		metricName = p.String("metric")
	}
	err := a.processor.Rules().DeleteInstance(r.Context(), scope, metricName)
	if respondWithError(w, err) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
