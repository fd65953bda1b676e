package commands

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/neudev/attemptd/internal/attempt"
	"github.com/neudev/attemptd/internal/duration"
	"github.com/neudev/attemptd/internal/model"
	"github.com/neudev/attemptd/internal/repository"
)

var statusCmd = &cobra.Command{
	Use:   "status [activity-id]",
	Short: "Show the locally saved attempt",
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

		now := time.Now()
		rec, status := attempt.LoadLocal(ctx, store, attempt.KeyFor(env.identity, env.activityID), now, env.log)
		if status == attempt.LocalAbsent {
			fmt.Printf("No saved attempt for activity %d\n", env.activityID)
			return nil
		}

		printRecord(rec, status, now)
		return nil
	},
}

func printRecord(rec *model.SessionRecord, status attempt.LocalStatus, now time.Time) {
	remaining := attempt.Remaining(rec, now)
	if remaining < 0 {
		remaining = 0
	}

	fmt.Printf("Status: %s\n", status)
	fmt.Printf("Remaining: %s\n", duration.Format(remaining))
	fmt.Printf("Deadline: %s\n", time.UnixMilli(rec.EndTime).Local().Format("2006-01-02 15:04:05"))
	if rec.SelectedLanguage != "" {
		fmt.Printf("Language: %s\n", rec.SelectedLanguage)
	}
	fmt.Printf("Files: %d\n", len(rec.Files))
	fmt.Printf("Draft score: %d\n", rec.DraftScore)

	ids := make([]int64, 0, len(rec.ItemTimes))
	for id := range rec.ItemTimes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		t := rec.ItemTimes[id]
		secs := t.Accumulated
		running := ""
		if t.Start != nil {
			secs += (now.UnixMilli() - *t.Start) / 1000
			running = " (running)"
		}
		marker := " "
		if rec.SelectedItem != nil && *rec.SelectedItem == id {
			marker = "*"
		}
		fmt.Printf(" %s item %d: %s%s\n", marker, id, formatSeconds(secs), running)
	}
}

func formatSeconds(secs int64) string {
	return (time.Duration(secs) * time.Second).String()
}
