// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/bulkrunner/internal/workflow"
)

var (
	configFile string

	// exitStatus is set by the operation that ran.
	exitStatus = workflow.OK
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bulkrunner",
	Short: "Load and unload PostgreSQL tables in bulk",
	Long: `Move records between CSV or JSON-lines files and PostgreSQL tables, with bounded
concurrency, optional batching by partition key and a per-run error budget.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "f", "", "configuration file (default ./bulkrunner.yaml when present)")
	rootCmd.AddCommand(loadCmd, unloadCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// The process exits with the operation's status code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if exitStatus == workflow.OK {
			exitStatus = workflow.AbortedFatalError
		}
	}
	os.Exit(exitStatus.Code())
}
