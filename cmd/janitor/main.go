// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package janitorcmd

import (
	"net/http"
	"time"

	"github.com/dlmiddlecote/sqlstats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sapcc/go-bits/easypg"
	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/httpext"
	"github.com/sapcc/go-bits/must"
	"github.com/sapcc/go-bits/osext"
	"github.com/spf13/cobra"

	kubernetesdriver "github.com/Smile-SA/rating-operator-api/internal/drivers/kubernetes"
	"github.com/Smile-SA/rating-operator-api/internal/rating"
	"github.com/Smile-SA/rating-operator-api/internal/tasks"
)

// AddCommandTo mounts this command into the command hierarchy.
func AddCommandTo(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "janitor",
		Short: "Run the rating-janitor server component.",
		Long:  "Run the rating-janitor server component. Configuration is read from environment variables as described in README.md.",
		Args:  cobra.NoArgs,
		Run:   run,
	}
	parent.AddCommand(cmd)
}

func run(cmd *cobra.Command, args []string) {
	cfg := rating.ParseConfiguration()
	ctx := httpext.ContextWithSIGINT(cmd.Context(), 10*time.Second)

	dbURL, dbName := rating.GetDatabaseURLFromEnvironment()
	dbConn := must.Return(easypg.Connect(dbURL, rating.DBConfiguration()))
	prometheus.MustRegister(sqlstats.NewStatsCollector(dbName, dbConn))
	db := rating.InitORM(dbConn)

	// start task loops
	janitor := tasks.NewJanitor(cfg, db)
	go janitor.RuleGaugeJob(nil).Run(ctx)
	go janitor.FrameStatusJob(nil).Run(ctx)
	if cfg.KubernetesMirror || osext.GetenvBool("RATING_NAMESPACE_SYNC") {
		kcfg := must.Return(kubernetesdriver.NewConfiguration(cfg.RulesNamespace))
		janitor.WithNamespaceSource(kubernetesdriver.NamespaceLister{Config: kcfg})
		go janitor.NamespaceSyncJob(nil).Run(ctx)
	}

	// start HTTP server for Prometheus metrics and health check
	handler := httpapi.Compose(httpapi.HealthCheckAPI{
		SkipRequestLog: true,
		Check: func() error {
			return db.Db.PingContext(ctx)
		},
	})
	mux := http.NewServeMux()
	mux.Handle("/", handler)
	mux.Handle("/metrics", promhttp.Handler())
	listenAddress := osext.GetenvOrDefault("RATING_JANITOR_LISTEN_ADDRESS", ":8080")
	must.Succeed(httpext.ListenAndServeContext(ctx, listenAddress, mux))
}
