// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package ratingv1

import (
	"net/http"

	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/respondwith"
)

func (a *API) handlePostLogin(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/login")
	p, err := parsePayload(r)
	if respondWithError(w, err) {
		return
	}
	token, err := a.resolver.Login(r.Context(), p.String("tenant"), p.String("password"))
	if respondWithError(w, err) {
		return
	}
	respondwith.JSON(w, http.StatusOK, token)
}

func (a *API) handlePostNamespaceTenant(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/namespaces/tenant")
	scope, p, ok := a.resolveMutation(w, r)
	if !ok {
		return
	}
	err := a.processor.AssociateNamespace(r.Context(), scope, p.String("namespace"), p.String("tenant_id"))
	if respondWithError(w, err) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleGetTenants(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/tenants")
	scope, ok := a.resolveScope(w, r)
	if !ok {
		return
	}
	result, err := a.processor.ListTenants(r.Context(), scope)
	if respondWithError(w, err) {
		return
	}
	respondwith.JSON(w, http.StatusOK, result)
}

func (a *API) handlePostTenantAdd(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/tenants/add")
	scope, p, ok := a.resolveMutation(w, r)
	if !ok {
		return
	}
	groups, err := p.Strings("groups")
	if respondWithError(w, err) {
		return
	}
	err = a.processor.CreateTenant(r.Context(), scope, p.String("tenant"), p.String("password"), groups)
	if respondWithError(w, err) {
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (a *API) handlePostTenantLink(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/tenants/link")
	scope, p, ok := a.resolveMutation(w, r)
	if !ok {
		return
	}
	err := a.processor.LinkNamespace(r.Context(), scope, p.String("namespace"), p.String("tenant_id"))
	if respondWithError(w, err) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handlePostTenantUnlink(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/tenants/unlink")
	scope, p, ok := a.resolveMutation(w, r)
	if !ok {
		return
	}
	err := a.processor.UnlinkNamespace(r.Context(), scope, p.String("namespace"), p.String("tenant_id"))
	if respondWithError(w, err) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handlePostTenantDelete(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/tenants/delete")
	scope, p, ok := a.resolveMutation(w, r)
	if !ok {
		return
	}
	err := a.processor.DeleteTenant(r.Context(), scope, p.String("tenant"))
	if respondWithError(w, err) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
