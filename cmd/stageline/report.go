package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stageline/internal/app"
	"stageline/internal/domain"
	"stageline/internal/stage"
)

func activityCmd() *cobra.Command {
	var pages int
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Recent pipeline activity, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, b *app.Board) error {
				if err := b.Feed.Load(ctx); err != nil {
					return err
				}
				for i := 1; i < pages && b.Feed.HasMore(); i++ {
					if err := b.Feed.More(ctx); err != nil {
						return err
					}
				}
				lines := b.Feed.Lines()
				if viper.GetBool("json") {
					return printJSON(lines)
				}
				for _, l := range lines {
					when := l.ChangedAt
					if t, ok := domain.ParseTime(l.ChangedAt); ok {
						when = humanize.Time(t)
					}
					fmt.Printf("%s %s (%s)\n", l.Icon, l.Text, when)
				}
				if b.Feed.HasMore() {
					fmt.Printf("... %d of %d shown (use --pages to load more)\n", len(lines), b.Feed.Total())
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to load")
	return cmd
}

func statsCmd() *cobra.Command {
	var jobID int64
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Pipeline dashboard numbers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, b *app.Board) error {
				s, err := b.Client.Stats(ctx, jobID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(s)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendRows([]table.Row{
					{"Candidates", s.TotalCandidates},
					{"Jobs", s.UniqueJobs},
					{"Interviewing", s.InterviewCount},
					{"Placed", s.PlacedCount},
					{"Placed this month", s.PlacedThisMonth},
					{"Pipeline value", "$" + humanize.Commaf(s.TotalPipelineValue)},
				})
				tw.AppendSeparator()
				for _, st := range stage.Ordered() {
					if n := s.StageCounts[st]; n > 0 {
						tw.AppendRow(table.Row{string(st), n})
					}
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&jobID, "job", 0, "only this job")
	return cmd
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <attorney-id>...",
		Short: "Show which pipelines attorneys are already in",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, b *app.Board) error {
				found, err := b.Client.Check(ctx, args)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(found)
				}
				ids := make([]string, 0, len(found))
				for id := range found {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Attorney", "Stage", "Job", "Employer"})
				for _, id := range ids {
					for _, p := range found[id] {
						tw.AppendRow(table.Row{id, string(p.Stage), p.JobTitle, p.EmployerName})
					}
				}
				tw.Render()
				return nil
			})
		},
	}
}

func stagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "List pipeline stages",
		RunE: func(cmd *cobra.Command, args []string) error {
			if viper.GetBool("json") {
				type row struct {
					Name  stage.Stage `json:"name"`
					Theme stage.Theme `json:"theme"`
					Gated bool        `json:"gated"`
				}
				var rows []row
				for _, s := range stage.Ordered() {
					rows = append(rows, row{Name: s, Theme: s.Theme(), Gated: stage.RequiresGate(s)})
				}
				return printJSON(rows)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"#", "Stage", "Theme", "Note step"})
			for i, s := range stage.Ordered() {
				gate := ""
				if stage.RequiresGate(s) {
					gate = stage.PromptFor(s).Label
				}
				tw.AppendRow(table.Row{i + 1, string(s), string(s.Theme()), gate})
			}
			tw.Render()
			return nil
		},
	}
}

// withClient builds the board side without loading the pipeline.
func withClient(ctx context.Context, fn func(context.Context, *app.Board) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	b, err := app.NewBoard(cfg, viper.GetString("api-url"), domain.Filter{}, logger)
	if err != nil {
		return err
	}
	return fn(ctx, b)
}
