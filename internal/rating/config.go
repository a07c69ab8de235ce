// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package rating

import (
	"net/url"
	"os"
	"time"

	"github.com/sapcc/go-bits/easypg"
	"github.com/sapcc/go-bits/errext"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/must"
	"github.com/sapcc/go-bits/osext"
)

// Configuration contains all configuration values that are shared between
// the components of this service.
type Configuration struct {
	AdminAPIKey   string
	JWTSecret     []byte
	TokenLifetime time.Duration
	// PublicTenantID names the tenant whose namespaces are visible without
	// authentication. Identities carrying this tenant ID are treated as public.
	PublicTenantID string
	// IncludeUnspecified adds the "unspecified" namespace to every non-empty
	// tenant scope. Frames that cannot be attributed to a namespace end up there.
	IncludeUnspecified bool

	// RulesNamespace is the Kubernetes namespace holding the rating rule
	// custom resources, if KubernetesMirror is set.
	RulesNamespace   string
	KubernetesMirror bool
	PrometheusURL    *url.URL

	NamespaceSyncInterval time.Duration
}

// UnspecifiedNamespace collects frames that could not be attributed to a namespace.
const UnspecifiedNamespace = "unspecified"

// GetDatabaseURLFromEnvironment reads the RATING_DB_* environment variables.
func GetDatabaseURLFromEnvironment() (dbURL url.URL, dbName string) {
	dbName = osext.GetenvOrDefault("RATING_DB_NAME", "rating")
	return must.Return(easypg.URLFrom(easypg.URLParts{
		HostName:          osext.GetenvOrDefault("RATING_DB_HOSTNAME", "localhost"),
		Port:              osext.GetenvOrDefault("RATING_DB_PORT", "5432"),
		UserName:          osext.GetenvOrDefault("RATING_DB_USERNAME", "postgres"),
		Password:          os.Getenv("RATING_DB_PASSWORD"),
		ConnectionOptions: os.Getenv("RATING_DB_CONNECTION_OPTIONS"),
		DatabaseName:      dbName,
	})), dbName
}

// ParseConfiguration obtains a rating.Configuration instance from the
// corresponding environment variables. Aborts on error.
func ParseConfiguration() Configuration {
	logg.Debug("parsing configuration...")

	cfg := Configuration{
		AdminAPIKey:        osext.MustGetenv("RATING_ADMIN_API_KEY"),
		JWTSecret:          []byte(osext.MustGetenv("RATING_JWT_SECRET")),
		PublicTenantID:     osext.GetenvOrDefault("RATING_PUBLIC_TENANT", "default"),
		IncludeUnspecified: osext.GetenvOrDefault("RATING_INCLUDE_UNSPECIFIED", "true") == "true",
		RulesNamespace:     osext.GetenvOrDefault("RATING_NAMESPACE", "rating"),
		KubernetesMirror:   osext.GetenvBool("RATING_KUBERNETES_MIRROR"),
	}

	var errs errext.ErrorSet
	parseDuration := func(key, defaultValue string) time.Duration {
		d, err := time.ParseDuration(osext.GetenvOrDefault(key, defaultValue))
		if err != nil {
			errs.Addf("malformed %s: %s", key, err.Error())
		} else if d <= 0 {
			errs.Addf("malformed %s: must be positive", key)
		}
		return d
	}
	cfg.TokenLifetime = parseDuration("RATING_TOKEN_LIFETIME", "24h")
	cfg.NamespaceSyncInterval = parseDuration("RATING_NAMESPACE_SYNC_INTERVAL", "5m")

	if len(cfg.AdminAPIKey) < 16 {
		errs.Addf("RATING_ADMIN_API_KEY must be at least 16 characters long")
	}

	if promURLStr := os.Getenv("RATING_PROMETHEUS_URL"); promURLStr != "" {
		promURL, err := url.Parse(promURLStr)
		if err != nil {
			errs.Addf("malformed RATING_PROMETHEUS_URL: %s", err.Error())
		} else {
			cfg.PrometheusURL = promURL
		}
	}

	errs.LogFatalIfError()
	return cfg
}
