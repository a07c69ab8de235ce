// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package migratecmd

import (
	"github.com/sapcc/go-bits/easypg"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/must"
	"github.com/spf13/cobra"

	"github.com/Smile-SA/rating-operator-api/internal/rating"
)

// AddCommandTo mounts this command into the command hierarchy.
func AddCommandTo(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit.",
		Long:  "Apply pending database migrations and exit. The api and janitor commands do this on startup as well, but running it as a separate step allows for init containers.",
		Args:  cobra.NoArgs,
		Run:   run,
	}
	parent.AddCommand(cmd)
}

func run(cmd *cobra.Command, args []string) {
	dbURL, dbName := rating.GetDatabaseURLFromEnvironment()
	dbConn := must.Return(easypg.Connect(dbURL, rating.DBConfiguration()))
	defer dbConn.Close()
	logg.Info("database %q is up to date", dbName)
}
