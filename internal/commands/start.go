package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neudev/attemptd/internal/attempt"
	"github.com/neudev/attemptd/internal/backend"
	"github.com/neudev/attemptd/internal/compiler"
	"github.com/neudev/attemptd/internal/repository"
	"github.com/neudev/attemptd/internal/tui"
)

var startCmd = &cobra.Command{
	Use:   "start [activity-id]",
	Short: "Open an activity and show the countdown",
	Long: `Open (or resume) a timed activity. Quitting the view submits the attempt.

Examples:
  attempt start 42
  ACCESS_TOKEN=... attempt start 42`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(args[0])
		if err != nil {
			return err
		}
		defer env.closeLog()

		ctx := cmd.Context()

		store, closeStore, err := repository.Open(ctx, env.cfg, env.log)
		if err != nil {
			return err
		}
		defer closeStore()

		m := attempt.NewManager(attempt.KeyFor(env.identity, env.activityID), store,
			backend.NewClient(env.cfg.APIURL, env.identity, env.cfg.HTTPTimeout, env.log),
			attempt.Options{
				Runner:       compiler.NewClient(env.cfg.CompilerURL, env.log),
				PollInterval: env.cfg.PollInterval,
				SyncInterval: env.cfg.SyncInterval,
				Log:          env.log,
			})
		if err := m.Start(ctx); err != nil {
			return fmt.Errorf("start attempt: %w", err)
		}

		events, unsubscribe := m.Subscribe()
		uiErr := tui.RunAttemptTUI(m, events)
		unsubscribe()

		// Leaving the view is the teardown trigger.
		closeErr := m.Close(ctx)
		printOutcome(m.Snapshot())

		if uiErr != nil {
			return uiErr
		}
		if closeErr != nil {
			return fmt.Errorf("submit on exit failed, progress is kept locally: %w", closeErr)
		}
		return nil
	},
}

func printOutcome(v attempt.View) {
	o := v.Outcome
	if o == nil {
		fmt.Println("Attempt not submitted. Run 'attempt start' again to resume.")
		return
	}

	fmt.Printf("Submitted (%s)\n", o.Trigger)
	fmt.Printf("Score: %.0f/%d\n", o.FinalScore, o.MaxPoints)
	fmt.Printf("Test cases passed: %d/%d\n", o.PassedTestCases, o.TotalTestCases)
	if o.Rank != nil {
		fmt.Printf("Rank: %d\n", *o.Rank)
	}
	fmt.Printf("Time taken: %s\n", formatSeconds(o.TimeTaken))
}
