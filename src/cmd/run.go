package cmd

import (
	"github.com/arena-labs/syncer/src/syncer"

	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Index match events, refund expired matches and maintain the randomness pool",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		controller, err := syncer.NewController(conf)
		if err != nil {
			return
		}

		err = controller.Start()
		if err != nil {
			return
		}

		select {
		case <-ctx.Done():
		case <-controller.CtxRunning.Done():
		}

		controller.StopWait()

		// Unblocks post run if the controller stopped on its own
		cancel()

		return
	},
}
