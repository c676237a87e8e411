package cmd

import (
	"github.com/arena-labs/syncer/src/utils/model"

	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		defer cancel()
		return model.Migrate(ctx, conf)
	},
}
