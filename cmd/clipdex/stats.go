package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"clipdex/internal/checkpoint"
	"clipdex/internal/services"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show checkpoint, mapping, and run counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := checkpoint.Open(cfg)
			if err != nil {
				return fmt.Errorf("open checkpoint store: %w", err)
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			stageRows := make([][]string, 0, 4)
			for _, stage := range []checkpoint.Stage{
				checkpoint.StageSearch,
				checkpoint.StageScore,
				checkpoint.StageVerify,
				checkpoint.StageUpload,
			} {
				stageRows = append(stageRows, []string{
					titleCase(string(stage)),
					strconv.Itoa(stats.CheckpointsByStage[stage]),
				})
			}
			fmt.Fprintln(out, "Completed units by stage:")
			writeTable(out, []string{"Stage", "Done"}, stageRows, []columnAlignment{alignLeft, alignRight})

			if len(stats.FailuresByClass) > 0 {
				classRows := make([][]string, 0, len(stats.FailuresByClass))
				for _, class := range []string{
					services.ClassTransient,
					services.ClassQuality,
					services.ClassResource,
					services.ClassFatal,
				} {
					count, ok := stats.FailuresByClass[class]
					if !ok {
						continue
					}
					classRows = append(classRows, []string{titleCase(class), strconv.Itoa(count)})
				}
				fmt.Fprintln(out, "Failures by class:")
				writeTable(out, []string{"Class", "Count"}, classRows, []columnAlignment{alignLeft, alignRight})
			}

			fmt.Fprintf(out, "Mappings: %d words across %d videos\n", stats.Mappings, stats.VideosMapped)
			fmt.Fprintf(out, "Runs: %d\n", stats.Runs)
			if last := stats.LastRun; last != nil {
				fmt.Fprintf(out, "Last run %s: %s, %d uploaded, %d failed, started %s\n",
					shortRunID(last.ID),
					titleCase(last.Status),
					last.Uploaded,
					last.Failed,
					last.StartedAt.Local().Format(time.RFC3339))
			}
			return nil
		},
	}
}
