package cmd

import (
	"github.com/arena-labs/syncer/src/pool"
	"github.com/arena-labs/syncer/src/utils/logger"
	"github.com/arena-labs/syncer/src/utils/model"
	"github.com/arena-labs/syncer/src/utils/oracle"
	"github.com/arena-labs/syncer/src/utils/repository"

	"github.com/spf13/cobra"
)

var provisionCount int

func init() {
	provisionCmd.Flags().IntVar(&provisionCount, "count", 10, "number of accounts to create")
	poolCmd.AddCommand(provisionCmd)
	RootCmd.AddCommand(poolCmd)
}

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Randomness pool maintenance",
}

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create randomness accounts and add them to the pool",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		defer cancel()
		log := logger.NewSublogger("pool-cmd")

		db, err := model.NewConnection(ctx, conf, "arena-provision")
		if err != nil {
			return
		}
		sqlDB, err := db.DB()
		if err != nil {
			return
		}
		defer sqlDB.Close()

		manager := pool.NewManager(conf).
			WithStore(repository.NewGormStore(db)).
			WithOracle(oracle.NewClient(conf))

		created, err := manager.Provision(ctx, provisionCount)
		log.WithField("created", created).Info("Provisioned randomness accounts")
		return
	},
}
