package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stageline/internal/app"
	"stageline/internal/board"
	"stageline/internal/domain"
	"stageline/internal/stage"
	"stageline/internal/transition"
)

type filterFlags struct {
	jobID      int64
	employerID int64
	search     string
	stage      string
}

func (f *filterFlags) bind(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.jobID, "job", 0, "job id")
	cmd.Flags().Int64Var(&f.employerID, "employer", 0, "employer id")
	cmd.Flags().StringVar(&f.search, "search", "", "candidate name or firm")
	cmd.Flags().StringVar(&f.stage, "stage", "", "only this stage")
}

func (f filterFlags) filter() (domain.Filter, error) {
	out := domain.Filter{JobID: f.jobID, EmployerID: f.employerID, Search: f.search}
	if f.stage != "" {
		s, err := stage.Parse(f.stage)
		if err != nil {
			return out, err
		}
		out.Stage = s
	}
	return out, nil
}

func boardCmd() *cobra.Command {
	var ff filterFlags
	var sortMode string
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show the pipeline board",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := ff.filter()
			if err != nil {
				return err
			}
			return withBoard(cmd.Context(), f, func(ctx context.Context, b *app.Board) error {
				if sortMode != "" {
					mode, err := board.ParseSortMode(sortMode)
					if err != nil {
						return err
					}
					b.Store.SetSort(mode)
				}
				cols := b.Store.Snapshot().Columns()
				if viper.GetBool("json") {
					return printJSON(cols)
				}
				renderBoard(os.Stdout, cols)
				return nil
			})
		},
	}
	ff.bind(cmd)
	cmd.Flags().StringVar(&sortMode, "sort", "", "newest, oldest or alpha (overrides board.sort)")
	return cmd
}

func renderBoard(w io.Writer, cols []board.Column) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Stage", "ID", "Candidate", "Firm", "Job", "Fee", "Updated"})
	for i, col := range cols {
		if i > 0 {
			tw.AppendSeparator()
		}
		label := fmt.Sprintf("%s (%d)", col.Stage, len(col.Entries))
		if len(col.Entries) == 0 {
			tw.AppendRow(table.Row{label, "", "", "", "", "", ""})
			continue
		}
		for j, e := range col.Entries {
			if j > 0 {
				label = ""
			}
			tw.AppendRow(table.Row{label, e.ID, e.DisplayName(), e.AttorneyFirm, jobLabel(e), feeLabel(e.PlacementFee), touchedLabel(e)})
		}
	}
	tw.Render()
}

func jobLabel(e domain.PipelineEntry) string {
	if e.EmployerName == "" {
		return e.JobTitle
	}
	return e.JobTitle + " @ " + e.EmployerName
}

func feeLabel(fee *float64) string {
	if fee == nil {
		return ""
	}
	return "$" + humanize.Commaf(*fee)
}

func touchedLabel(e domain.PipelineEntry) string {
	t, ok := e.LastTouched()
	if !ok {
		return ""
	}
	return humanize.Time(t)
}

func moveCmd() *cobra.Command {
	var note, startDate string
	var cancel, yes bool
	cmd := &cobra.Command{
		Use:   "move <entry-id> <stage>",
		Short: "Move a candidate to another stage",
		Long: `Moves into Rejected, Withdrawn, Offer Extended and Placed ask for a note.
Pass --note (and --start-date for Placed) or --yes to skip the prompt, or --cancel to abandon the move.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			to, err := stage.Parse(args[1])
			if err != nil {
				return err
			}
			if err := checkGateFlags(to, note, startDate, cancel, yes); err != nil {
				return err
			}
			return withBoard(cmd.Context(), domain.Filter{}, func(ctx context.Context, b *app.Board) error {
				entry, ok := b.Store.Find(id)
				if !ok {
					return fmt.Errorf("pipeline entry %d not found", id)
				}
				res := b.Engine.RequestMove(ctx, id, entry.Stage, to)
				if res.Outcome != transition.OutcomeGated {
					return report(res, fmt.Sprintf("%s is already in %s", entry.DisplayName(), to))
				}
				if cancel {
					return report(b.Engine.Cancel(ctx), "")
				}
				in := transition.GateInput{Note: note, StartDate: startDate}
				if !yes && note == "" && startDate == "" {
					in, err = readGate(cmd.InOrStdin(), cmd.OutOrStdout(), res.Pending.Prompt)
					if err != nil {
						b.Engine.Cancel(ctx)
						return err
					}
				}
				return report(b.Engine.Confirm(ctx, in), "")
			})
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "note for a gated move")
	cmd.Flags().StringVar(&startDate, "start-date", "", "start date for a placement")
	cmd.Flags().BoolVar(&cancel, "cancel", false, "abandon a gated move")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm a gated move without a note")
	return cmd
}

// checkGateFlags rejects note step flags that the target stage would ignore.
func checkGateFlags(to stage.Stage, note, startDate string, cancel, yes bool) error {
	if !stage.RequiresGate(to) {
		flags := []struct {
			name string
			set  bool
		}{{"--note", note != ""}, {"--start-date", startDate != ""}, {"--cancel", cancel}, {"--yes", yes}}
		for _, f := range flags {
			if f.set {
				return fmt.Errorf("%s only applies to moves into gated stages; %s moves directly", f.name, to)
			}
		}
		return nil
	}
	if startDate != "" && !stage.PromptFor(to).StartDate {
		return fmt.Errorf("--start-date only applies to moves into %s", stage.Placed)
	}
	if cancel && (note != "" || startDate != "" || yes) {
		return fmt.Errorf("--cancel cannot be combined with --note, --start-date or --yes")
	}
	return nil
}

// readGate asks for the note step of a gated move. An empty answer is fine.
func readGate(in io.Reader, out io.Writer, p stage.Prompt) (transition.GateInput, error) {
	r := bufio.NewReader(in)
	var gi transition.GateInput
	var err error
	fmt.Fprintf(out, "Move to %s\n%s [%s]: ", p.Stage, p.Label, p.Placeholder)
	if gi.Note, err = readLine(r); err != nil {
		return gi, err
	}
	if p.StartDate {
		fmt.Fprint(out, "Start Date (optional): ")
		if gi.StartDate, err = readLine(r); err != nil {
			return gi, err
		}
	}
	return gi, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func noteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "note <entry-id> <text>",
		Short: "Replace a candidate's notes",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			text := strings.Join(args[1:], " ")
			return withBoard(cmd.Context(), domain.Filter{}, func(ctx context.Context, b *app.Board) error {
				return report(b.Engine.SetNote(ctx, id, text), "")
			})
		},
	}
}

func feeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fee <entry-id> <amount>",
		Short: "Set a candidate's placement fee",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withBoard(cmd.Context(), domain.Filter{}, func(ctx context.Context, b *app.Board) error {
				return report(b.Engine.SetPlacementFee(ctx, id, args[1]), "")
			})
		},
	}
}

func removeCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "remove <entry-id>",
		Short: "Remove a candidate from the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withBoard(cmd.Context(), domain.Filter{}, func(ctx context.Context, b *app.Board) error {
				confirmed := yes
				if !confirmed {
					name := "this candidate"
					if e, ok := b.Store.Find(id); ok {
						name = e.DisplayName()
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Remove %s from this pipeline? [y/N]: ", name)
					answer, err := readLine(bufio.NewReader(cmd.InOrStdin()))
					if err != nil {
						return err
					}
					confirmed = strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes")
				}
				res := b.Engine.Remove(ctx, id, confirmed)
				if errors.Is(res.Err, transition.ErrNotConfirmed) {
					fmt.Println("Nothing removed.")
					return nil
				}
				return report(res, "")
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation")
	return cmd
}

func addCmd() *cobra.Command {
	var jobID int64
	var attorneys []string
	var initial, notes, fee, addedBy, source string
	cmd := &cobra.Command{
		Use:   "add --job <id> --attorney <id>=<name>[@<firm>] ...",
		Short: "Add candidates to a job's pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := domain.AddRequest{JobID: jobID, Notes: notes, AddedBy: addedBy}
			for _, raw := range attorneys {
				c, err := parseCandidate(raw)
				if err != nil {
					return err
				}
				c.Source = source
				req.Candidates = append(req.Candidates, c)
			}
			if len(req.Candidates) == 0 {
				return errors.New("at least one --attorney is required")
			}
			if initial != "" {
				s, err := stage.Parse(initial)
				if err != nil {
					return err
				}
				req.Stage = s
			}
			if fee != "" {
				v := transition.ParseFee(fee)
				req.PlacementFee = &v
			}
			return withBoard(cmd.Context(), domain.Filter{JobID: jobID}, func(ctx context.Context, b *app.Board) error {
				sum := b.Engine.AddCandidates(ctx, req)
				if sum.Err != nil {
					return sum.Err
				}
				if viper.GetBool("json") {
					return printJSON(sum.Results)
				}
				fmt.Println(sum.Message)
				for _, w := range sum.Warnings {
					fmt.Println("warning:", w)
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&jobID, "job", 0, "job id")
	cmd.Flags().StringArrayVar(&attorneys, "attorney", nil, "candidate as <id>=<name>[@<firm>] (repeatable)")
	cmd.Flags().StringVar(&initial, "stage", "", "initial stage (default Identified)")
	cmd.Flags().StringVar(&notes, "notes", "", "notes for every added entry")
	cmd.Flags().StringVar(&fee, "fee", "", "placement fee for every added entry")
	cmd.Flags().StringVar(&addedBy, "added-by", "", "who added the candidates")
	cmd.Flags().StringVar(&source, "source", domain.SourceFP, "attorney source (fp or custom)")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

// parseCandidate reads <id>=<name>[@<firm>].
func parseCandidate(raw string) (domain.Candidate, error) {
	id, rest, ok := strings.Cut(raw, "=")
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		return domain.Candidate{}, fmt.Errorf("invalid attorney %q (want <id>=<name>[@<firm>])", raw)
	}
	name, firm, _ := strings.Cut(rest, "@")
	return domain.Candidate{AttorneyID: id, Name: strings.TrimSpace(name), CurrentFirm: strings.TrimSpace(firm)}, nil
}

// withBoard loads the board for f from the API and hands it to fn.
func withBoard(ctx context.Context, f domain.Filter, fn func(context.Context, *app.Board) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	b, err := app.NewBoard(cfg, viper.GetString("api-url"), f, logger)
	if err != nil {
		return err
	}
	if err := b.Engine.Reload(ctx); err != nil {
		return fmt.Errorf("load pipeline: %w", err)
	}
	return fn(ctx, b)
}

// report prints the outcome of a board operation. noop is shown for no-op
// results when set.
func report(res transition.Result, noop string) error {
	if res.Err != nil {
		return res.Err
	}
	switch res.Outcome {
	case transition.OutcomeCancelled:
		fmt.Println("Move cancelled.")
	case transition.OutcomeNoop:
		if noop != "" {
			fmt.Println(noop)
		}
	default:
		fmt.Println(res.Message)
	}
	return nil
}
