package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/deepp5/catrack/internal/bootstrap"
	"github.com/deepp5/catrack/internal/domain/types"
)

func newRebuildCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the baseline for a machine and mode from its labelled clips",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := ctx.key()
			if err != nil {
				return err
			}
			var res types.RebuildResult
			err = ctx.withRuntime(cmd, func(c context.Context, rt *bootstrap.Runtime) error {
				res, err = rt.Service.RebuildBaseline(c, key)
				return err
			})
			if err != nil {
				return err
			}
			return ctx.emit(cmd, res, func() string {
				minBad := "-"
				if res.MinBad != nil {
					minBad = formatScore(*res.MinBad)
				}
				return renderFields([][2]string{
					{"Machine", res.MachineID},
					{"Mode", res.Mode},
					{"Good clips", strconv.Itoa(res.NumGood)},
					{"Bad clips", strconv.Itoa(res.NumBad)},
					{"Skipped", strconv.Itoa(res.NumSkip)},
					{"Max good score", formatScore(res.MaxGood)},
					{"Min bad score", minBad},
					{"Threshold", formatScore(res.Threshold)},
					{"Separated", yesNo(res.Separated)},
				})
			})
		},
	}
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var mediaID string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Score one stored clip against the current baseline",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := ctx.key()
			if err != nil {
				return err
			}
			var res types.CheckResult
			err = ctx.withRuntime(cmd, func(c context.Context, rt *bootstrap.Runtime) error {
				res, err = rt.Service.ScoreClip(c, mediaID, key)
				return err
			})
			if err != nil {
				return err
			}
			return ctx.emit(cmd, res, func() string {
				return renderFields([][2]string{
					{"Media", res.MediaID},
					{"Score", formatScore(res.AnomalyScore)},
					{"Threshold", formatScore(res.Threshold)},
					{"Label", res.PredictedLabel},
				})
			})
		},
	}
	cmd.Flags().StringVar(&mediaID, "media", "", "Media ID to score")
	_ = cmd.MarkFlagRequired("media")
	return cmd
}

func newBaselineCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "baseline",
		Short: "Show the stored baseline for a machine and mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := ctx.key()
			if err != nil {
				return err
			}
			var view types.BaselineView
			err = ctx.withRuntime(cmd, func(c context.Context, rt *bootstrap.Runtime) error {
				view, err = rt.Service.GetBaseline(c, key)
				return err
			})
			if err != nil {
				return err
			}
			return ctx.emit(cmd, view, func() string {
				return renderFields([][2]string{
					{"Machine", view.MachineID},
					{"Mode", view.Mode},
					{"Dimensions", strconv.Itoa(len(view.FeatureMean))},
					{"Threshold", formatScore(view.Threshold)},
					{"Good clips", strconv.Itoa(view.NumGood)},
					{"Bad clips", strconv.Itoa(view.NumBad)},
					{"Updated", view.UpdatedAt.Format(time.RFC3339)},
				})
			})
		},
	}
}

func newAssessmentsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "assessments",
		Short: "List recent clip assessments, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := ctx.key()
			if err != nil {
				return err
			}
			if limit < 1 {
				return fmt.Errorf("--limit must be positive")
			}
			var list []types.AssessmentView
			err = ctx.withRuntime(cmd, func(c context.Context, rt *bootstrap.Runtime) error {
				list, err = rt.Service.ListAssessments(c, key, limit)
				return err
			})
			if err != nil {
				return err
			}
			return ctx.emit(cmd, list, func() string {
				rows := make([][]string, 0, len(list))
				for _, a := range list {
					rows = append(rows, []string{
						a.CreatedAt.Format(time.RFC3339),
						a.MediaID,
						formatScore(a.AnomalyScore),
						formatScore(a.Threshold),
						a.PredictedLabel,
					})
				}
				return renderTable(
					[]string{"When", "Media", "Score", "Threshold", "Label"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum records to show")
	return cmd
}
