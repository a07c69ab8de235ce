// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package ratingv1

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/respondwith"

	"github.com/Smile-SA/rating-operator-api/internal/auth"
	"github.com/Smile-SA/rating-operator-api/internal/processor"
	"github.com/Smile-SA/rating-operator-api/internal/rating"
)

// API contains state variables used by the rating API implementation.
type API struct {
	resolver  *auth.Resolver
	processor *processor.Processor
}

// NewAPI constructs a new API instance.
func NewAPI(resolver *auth.Resolver, p *processor.Processor) *API {
	return &API{resolver, p}
}

// AddTo implements the httpapi.API interface.
func (a *API) AddTo(r *mux.Router) {
	r.Methods("GET").Path("/alive").HandlerFunc(a.handleGetAlive)
	r.Methods("POST").Path("/login").HandlerFunc(a.handlePostLogin)
	r.Methods("GET").Path("/current").HandlerFunc(a.handleGetCurrent)

	r.Methods("GET").Path("/namespaces").HandlerFunc(a.handleGetNamespaces)
	r.Methods("POST").Path("/namespaces/tenant").HandlerFunc(a.handlePostNamespaceTenant)
	r.Methods("GET").Path("/nodes").HandlerFunc(a.handleGetDistinctValues(rating.DimensionNode))
	r.Methods("GET").Path("/pods").HandlerFunc(a.handleGetDistinctValues(rating.DimensionPod))
	r.Methods("GET").Path("/pods/{pod}/lifetime").HandlerFunc(a.handleGetPodLifetime)
	r.Methods("GET").Path("/metrics").HandlerFunc(a.handleGetMetrics)
	r.Methods("GET").Path("/rated/frames/oldest").HandlerFunc(a.handleGetOldestFrame)
	r.Methods("GET").Path("/rated/frames/status").HandlerFunc(a.handleGetFrameStatus)
	r.Methods("GET").Path("/rules_metrics").HandlerFunc(a.handleGetRulesMetrics)

	//must come after the catalogue routes since some of the report routes
	//end in a catch-all {aggregator} segment
	for _, route := range reportRoutes {
		r.Methods("GET").Path(route.Path).HandlerFunc(a.handleGetReport(route))
	}

	r.Methods("GET").Path("/templates/list").HandlerFunc(a.handleGetTemplates)
	r.Methods("GET").Path("/templates/get").HandlerFunc(a.handleGetTemplate)
	r.Methods("GET").Path("/templates/history").HandlerFunc(a.handleGetTemplateHistory)
	r.Methods("POST").Path("/templates/add").HandlerFunc(a.handlePostTemplateAdd)
	r.Methods("POST").Path("/templates/edit").HandlerFunc(a.handlePostTemplateEdit)
	r.Methods("POST").Path("/templates/delete").HandlerFunc(a.handlePostTemplateDelete)

	r.Methods("GET").Path("/instances/list").HandlerFunc(a.handleGetInstances)
	r.Methods("GET").Path("/instances/get").HandlerFunc(a.handleGetInstance)
	r.Methods("GET").Path("/instances/history").HandlerFunc(a.handleGetInstanceHistory)
	r.Methods("GET").Path("/instances/preview").HandlerFunc(a.handleGetInstancePreview)
	r.Methods("POST").Path("/instances/add").HandlerFunc(a.handlePostInstanceAdd)
	r.Methods("POST").Path("/instances/edit").HandlerFunc(a.handlePostInstanceEdit)
	r.Methods("POST").Path("/instances/delete").HandlerFunc(a.handlePostInstanceDelete)

	r.Methods("GET").Path("/tenants").HandlerFunc(a.handleGetTenants)
	r.Methods("POST").Path("/tenants/add").HandlerFunc(a.handlePostTenantAdd)
	r.Methods("POST").Path("/tenants/link").HandlerFunc(a.handlePostTenantLink)
	r.Methods("POST").Path("/tenants/unlink").HandlerFunc(a.handlePostTenantUnlink)
	r.Methods("POST").Path("/tenants/delete").HandlerFunc(a.handlePostTenantDelete)
}

// respondWithError renders the error (if any) and returns whether it did so.
func respondWithError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return false
	}
	rerr := rating.AsError(err)
	if rerr.Code == rating.ErrStorage {
		//do not show database internals to the client
		logg.Error(rerr.Error())
		rerr = rating.ErrStorage.With("")
	}
	rerr.WriteAsTextTo(w)
	return true
}

// resolveScope authenticates the request. If false is returned, an error
// response has already been written.
func (a *API) resolveScope(w http.ResponseWriter, r *http.Request) (rating.Scope, bool) {
	scope, err := a.resolver.Resolve(r)
	if respondWithError(w, err) {
		return rating.Scope{}, false
	}
	return scope, true
}

// resolveMutation is like resolveScope, but also parses the request payload
// and accepts the admin secret in its "token" field.
func (a *API) resolveMutation(w http.ResponseWriter, r *http.Request) (rating.Scope, payload, bool) {
	p, err := parsePayload(r)
	if respondWithError(w, err) {
		return rating.Scope{}, nil, false
	}
	scope, ok := a.resolveScope(w, r)
	if !ok {
		return rating.Scope{}, nil, false
	}
	if !scope.IsAdmin() {
		if secret := p.String("token"); secret != "" {
			scope, err = a.resolver.CheckAdminSecret(secret)
			if respondWithError(w, err) {
				return rating.Scope{}, nil, false
			}
		}
	}
	return scope, p, true
}

func (a *API) handleGetAlive(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/alive")
	httpapi.SkipRequestLog(r)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("I'm alive!\n")) //nolint:errcheck
}

func (a *API) handleGetCurrent(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/current")
	scope, ok := a.resolveScope(w, r)
	if !ok {
		return
	}
	respondwith.JSON(w, http.StatusOK, map[string]string{"results": a.processor.Current(scope)})
}
