// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/osext"
	"github.com/spf13/cobra"

	apicmd "github.com/Smile-SA/rating-operator-api/cmd/api"
	janitorcmd "github.com/Smile-SA/rating-operator-api/cmd/janitor"
	migratecmd "github.com/Smile-SA/rating-operator-api/cmd/migrate"
)

func main() {
	logg.ShowDebug = osext.GetenvBool("RATING_DEBUG")

	rootCmd := &cobra.Command{
		Use:   "rating-operator-api",
		Short: "Rating API for Kubernetes resource consumption",
		Long:  "The rating API computes priced reports over rated frames and manages the rating rules and tenants behind them.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help() //nolint:errcheck
		},
	}
	migratecmd.AddCommandTo(rootCmd)

	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Server commands.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help() //nolint:errcheck
		},
	}
	apicmd.AddCommandTo(serverCmd)
	janitorcmd.AddCommandTo(serverCmd)
	rootCmd.AddCommand(serverCmd)

	if err := rootCmd.Execute(); err != nil {
		logg.Fatal(err.Error())
	}
}
