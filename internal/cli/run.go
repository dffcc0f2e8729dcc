package cli

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/joungwon-dreams/joungwon-stocks-sub002/internal/collect"
)

// RunCmd returns the run command: one collection pass over the registry.
func RunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [symbols...]",
		Short: "Run one collection pass",
		Long: `Run one collection pass over every active source.

With symbol arguments, only those tickers are collected. Without arguments,
the default top-ranked active targets are used. Individual fetch failures
are isolated per (source, target) pair and never abort the run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := a.orch.Initialize(ctx); err != nil {
				return err
			}

			summary, err := a.orch.Run(ctx, targetsFromArgs(args))
			if summary != nil {
				printSummary(summary)
			}
			return err
		},
	}
}

func printSummary(s *collect.RunSummary) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Printf("\nRun %s: %d targets, %d units in %s\n",
		s.RunID, s.Targets, s.Total.Units(), s.CompletedAt.Sub(s.StartedAt).Round(10*time.Millisecond))
	fmt.Printf("  %s %d   %s %d   %s %d   skipped %d\n",
		green("success"), s.Total.Success,
		red("failed"), s.Total.Failed,
		yellow("timeout"), s.Total.Timeout,
		s.Total.Skipped,
	)

	tiers := make([]int, 0, len(s.ByTier))
	for tier := range s.ByTier {
		tiers = append(tiers, tier)
	}
	sort.Ints(tiers)
	for _, tier := range tiers {
		t := s.ByTier[tier]
		fmt.Printf("  tier %d: %d ok, %d failed, %d timeout, %d skipped\n",
			tier, t.Success, t.Failed, t.Timeout, t.Skipped)
	}

	names := make([]string, 0, len(s.BySource))
	for name := range s.BySource {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t := s.BySource[name]
		marker := green("✓")
		if t.Failed+t.Timeout > 0 {
			marker = red("✗")
		}
		fmt.Printf("  %s %-12s %d ok, %d failed, %d timeout, %d skipped\n",
			marker, name, t.Success, t.Failed, t.Timeout, t.Skipped)
	}
}
