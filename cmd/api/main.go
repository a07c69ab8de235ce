// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package apicmd

import (
	"net/http"
	"time"

	"github.com/dlmiddlecote/sqlstats"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sapcc/go-bits/easypg"
	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/httpapi/pprofapi"
	"github.com/sapcc/go-bits/httpext"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/must"
	"github.com/sapcc/go-bits/osext"
	"github.com/spf13/cobra"

	"github.com/Smile-SA/rating-operator-api/internal/api/ratingv1"
	"github.com/Smile-SA/rating-operator-api/internal/auth"
	kubernetesdriver "github.com/Smile-SA/rating-operator-api/internal/drivers/kubernetes"
	promdriver "github.com/Smile-SA/rating-operator-api/internal/drivers/prometheus"
	"github.com/Smile-SA/rating-operator-api/internal/processor"
	"github.com/Smile-SA/rating-operator-api/internal/rating"
)

// AddCommandTo mounts this command into the command hierarchy.
func AddCommandTo(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Run the rating-api server component.",
		Long:  "Run the rating-api server component. Configuration is read from environment variables as described in README.md.",
		Args:  cobra.NoArgs,
		Run:   run,
	}
	parent.AddCommand(cmd)
}

func run(cmd *cobra.Command, args []string) {
	_, _ = cmd, args

	cfg := rating.ParseConfiguration()
	ctx := httpext.ContextWithSIGINT(cmd.Context(), 10*time.Second)

	dbURL, dbName := rating.GetDatabaseURLFromEnvironment()
	dbConn := must.Return(easypg.Connect(dbURL, rating.DBConfiguration()))
	prometheus.MustRegister(sqlstats.NewStatsCollector(dbName, dbConn))
	db := rating.InitORM(dbConn)

	resolver := auth.NewResolver(cfg, db, db)
	proc := processor.New(cfg, db)
	if cfg.KubernetesMirror {
		kcfg := must.Return(kubernetesdriver.NewConfiguration(cfg.RulesNamespace))
		proc.WithMirror(kubernetesdriver.NewCRDMirror(kcfg))
		logg.Info("mirroring rating rules into namespace %q", cfg.RulesNamespace)
	}
	if cfg.PrometheusURL != nil {
		proc.WithQueryBackend(must.Return(promdriver.NewClient(cfg.PrometheusURL.String())))
	}

	// wire up HTTP handlers
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"HEAD", "GET", "POST"},
		AllowedHeaders: []string{"Content-Type", "User-Agent", "Authorization", auth.AdminTokenHeader},
	})
	handler := httpapi.Compose(
		ratingv1.NewAPI(resolver, proc),
		httpapi.HealthCheckAPI{
			SkipRequestLog: true,
			Check: func() error {
				return db.Db.PingContext(ctx)
			},
		},
		httpapi.WithGlobalMiddleware(func(h http.Handler) http.Handler { return gzhttp.GzipHandler(h) }),
		httpapi.WithGlobalMiddleware(corsMiddleware.Handler),
		pprofapi.API{IsAuthorized: pprofapi.IsRequestFromLocalhost},
	)
	mux := http.NewServeMux()
	mux.Handle("/", handler)
	// "/metrics" is taken by the rating API itself
	mux.Handle("/system/metrics", promhttp.Handler())

	// start HTTP server
	apiListenAddress := osext.GetenvOrDefault("RATING_API_LISTEN_ADDRESS", ":5012")
	logg.Info("listening on %s", apiListenAddress)
	must.Succeed(httpext.ListenAndServeContext(ctx, apiListenAddress, mux))
}
