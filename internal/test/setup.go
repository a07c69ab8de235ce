// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package test

import (
	"net/http"
	"testing"
	"time"

	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/mock"
	"github.com/sapcc/go-bits/osext"

	"github.com/Smile-SA/rating-operator-api/internal/api/ratingv1"
	"github.com/Smile-SA/rating-operator-api/internal/auth"
	"github.com/Smile-SA/rating-operator-api/internal/processor"
	"github.com/Smile-SA/rating-operator-api/internal/rating"
)

// AdminAPIKey is the admin secret configured by Setup.
const AdminAPIKey = "correct-horse-battery-staple"

// SetupOptions contains optional arguments for test.Setup().
type SetupOptions struct {
	IncludeUnspecified bool
}

// Setup contains all the pieces that a unit test needs to run requests
// against the rating API.
type Setup struct {
	Config    rating.Configuration
	Store     *MemoryStore
	Clock     *mock.Clock
	Resolver  *auth.Resolver
	Processor *processor.Processor
	Handler   http.Handler
}

// NewSetup sets up a rating.Configuration with an in-memory store and a mock
// clock for a unit test. The clock starts one day after the epoch.
func NewSetup(t *testing.T, opts SetupOptions) Setup {
	t.Helper()
	logg.ShowDebug = osext.GetenvBool("RATING_DEBUG")

	cfg := rating.Configuration{
		AdminAPIKey:        AdminAPIKey,
		JWTSecret:          []byte("not-a-secret-at-all"),
		TokenLifetime:      time.Hour,
		PublicTenantID:     "default",
		IncludeUnspecified: opts.IncludeUnspecified,
	}
	store := NewMemoryStore()
	clock := mock.NewClock()
	clock.StepBy(24 * time.Hour)

	resolver := auth.NewResolver(cfg, store, store).OverrideTimeNow(clock.Now)
	proc := processor.New(cfg, store).OverrideTimeNow(clock.Now)
	handler := httpapi.Compose(
		ratingv1.NewAPI(resolver, proc),
		httpapi.WithoutLogging(),
	)

	return Setup{
		Config:    cfg,
		Store:     store,
		Clock:     clock,
		Resolver:  resolver,
		Processor: proc,
		Handler:   handler,
	}
}

// AdminHeaders returns request headers carrying the admin secret.
func AdminHeaders() map[string]string {
	return map[string]string{auth.AdminTokenHeader: AdminAPIKey}
}

// TenantHeaders returns request headers carrying a freshly issued bearer
// token for the given tenant.
func (s Setup) TenantHeaders(t *testing.T, tenantID string) map[string]string {
	t.Helper()
	token, err := s.Resolver.IssueToken(tenantID)
	if err != nil {
		t.Fatal(err.Error())
	}
	return map[string]string{"Authorization": "Bearer " + token.Token}
}
