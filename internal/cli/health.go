package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// HealthCmd returns the health command: persisted per-source health detail.
func HealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show per-source health detail",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			sources, err := a.sources.List(ctx)
			if err != nil {
				return err
			}
			statuses, err := a.health.List(ctx)
			if err != nil {
				return err
			}

			names := make(map[int64]string, len(sources))
			for _, s := range sources {
				names[s.ID] = s.Name
			}

			if len(statuses) == 0 {
				fmt.Println("no health data recorded yet")
				return nil
			}

			for _, hs := range statuses {
				name := names[hs.SourceID]
				if name == "" {
					name = fmt.Sprintf("source %d", hs.SourceID)
				}
				fmt.Printf("%s: %s\n", name, colorHealth(hs.Status))
				fmt.Printf("  consecutive failures: %d\n", hs.ConsecutiveFailures)
				fmt.Printf("  avg response time:    %.0f ms\n", hs.AvgResponseTimeMs)
				fmt.Printf("  last success:         %s\n", formatTime(hs.LastSuccessAt))
				fmt.Printf("  last failure:         %s\n", formatTime(hs.LastFailureAt))
			}
			return nil
		},
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}
