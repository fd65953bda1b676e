package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neudev/attemptd/internal/attempt"
	"github.com/neudev/attemptd/internal/repository"
)

var clearCmd = &cobra.Command{
	Use:   "clear [activity-id]",
	Short: "Delete the locally saved attempt without submitting it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(args[0])
		if err != nil {
			return err
		}
		defer env.closeLog()

		ctx := context.Background()
		store, closeStore, err := repository.Open(ctx, env.cfg, env.log)
		if err != nil {
			return err
		}
		defer closeStore()

		if err := store.Clear(ctx, attempt.KeyFor(env.identity, env.activityID)); err != nil {
			return fmt.Errorf("clear attempt: %w", err)
		}
		fmt.Printf("Cleared saved attempt for activity %d\n", env.activityID)
		return nil
	},
}
