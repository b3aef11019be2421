package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"clipdex/internal/checkpoint"
	"clipdex/internal/services"
)

func newFailuresCommand(ctx *commandContext) *cobra.Command {
	var (
		stageFilter string
		classFilter string
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "failures",
		Short: "List recorded unit failures",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stage, err := parseStageFilter(stageFilter)
			if err != nil {
				return err
			}
			class, err := parseClassFilter(classFilter)
			if err != nil {
				return err
			}

			store, err := checkpoint.Open(cfg)
			if err != nil {
				return fmt.Errorf("open checkpoint store: %w", err)
			}
			defer store.Close()

			// Stage filtering happens here, so the query limit applies after it.
			queryLimit := limit
			if stage != "" {
				queryLimit = 0
			}
			failures, err := store.Failures(cmd.Context(), class, queryLimit)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(failures))
			for _, failure := range failures {
				if stage != "" && failure.Stage != stage {
					continue
				}
				rows = append(rows, []string{
					titleCase(string(failure.Stage)),
					failure.Key,
					titleCase(failure.Class),
					failure.Reason,
					shortRunID(failure.RunID),
					failure.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				})
				if limit > 0 && len(rows) >= limit {
					break
				}
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No failures recorded")
				return nil
			}
			writeTable(out, []string{"Stage", "Key", "Class", "Reason", "Run", "When"}, rows, nil)
			return nil
		},
	}

	cmd.Flags().StringVar(&stageFilter, "stage", "", "Filter by stage (search, score, verify, upload)")
	cmd.Flags().StringVar(&classFilter, "class", "", "Filter by failure class (transient, quality, resource)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows to show (0 shows everything)")

	return cmd
}

func parseStageFilter(value string) (checkpoint.Stage, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "", nil
	}
	switch stage := checkpoint.Stage(value); stage {
	case checkpoint.StageSearch, checkpoint.StageScore, checkpoint.StageVerify, checkpoint.StageUpload:
		return stage, nil
	}
	return "", services.Wrap(services.ErrConfiguration, "", "failures",
		fmt.Sprintf("unknown stage %q (want search, score, verify, or upload)", value), nil)
}

func parseClassFilter(value string) (string, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	switch value {
	case "", services.ClassTransient, services.ClassQuality, services.ClassResource, services.ClassFatal:
		return value, nil
	}
	return "", services.Wrap(services.ErrConfiguration, "", "failures",
		fmt.Sprintf("unknown class %q (want transient, quality, resource, or fatal)", value), nil)
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
