package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/joungwon-dreams/joungwon-stocks-sub002/internal/collect"
)

// SourcesCmd returns the sources command: the registry with health state.
func SourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List registered sources and their health",
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

			byID := make(map[int64]collect.HealthStatus, len(statuses))
			for _, hs := range statuses {
				byID[hs.SourceID] = hs
			}

			fmt.Printf("%-12s %-14s %-5s %-10s %-8s %s\n", "NAME", "KIND", "TIER", "RATE/MIN", "ACTIVE", "HEALTH")
			for _, s := range sources {
				health := "-"
				if hs, ok := byID[s.ID]; ok {
					health = colorHealth(hs.Status)
					if hs.ConsecutiveFailures > 0 {
						health += fmt.Sprintf(" (%d consecutive failures)", hs.ConsecutiveFailures)
					}
				}
				active := "yes"
				if !s.IsActive {
					active = "no"
				}
				fmt.Printf("%-12s %-14s %-5d %-10d %-8s %s\n",
					s.Name, s.AdapterKind, s.Tier, s.RateLimitPerMinute, active, health)
			}
			return nil
		},
	}
}

func colorHealth(state collect.HealthState) string {
	switch state {
	case collect.HealthActive:
		return color.New(color.FgGreen).Sprint(string(state))
	case collect.HealthDegraded:
		return color.New(color.FgYellow).Sprint(string(state))
	case collect.HealthFailed:
		return color.New(color.FgRed).Sprint(string(state))
	default:
		return string(state)
	}
}
