package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alexanderramin/smartplan/internal/cli/formatter"
	"github.com/alexanderramin/smartplan/internal/domain"
	"github.com/alexanderramin/smartplan/internal/localstore"
	"github.com/alexanderramin/smartplan/internal/plan"
	"github.com/spf13/cobra"
)

var errNoLastGoal = errors.New("no saved goal yet; run 'smartplan new' first")

func newRecallCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "recall",
		Short: "Show the last goal plan saved on this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entry, err := loadLastGoal(app)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, formatter.Dim("Saved "+formatter.HumanTimestamp(entry.SavedAt(), app.now())))
			return printPlan(out, app, &entry.GoalPlan)
		},
	}
}

func loadLastGoal(app *App) (*localstore.LastGoalEntry, error) {
	cache, err := app.lastGoal()
	if err != nil {
		return nil, err
	}
	entry, err := cache.Load()
	if errors.Is(err, localstore.ErrNotFound) {
		return nil, errNoLastGoal
	}
	if err != nil {
		return nil, fmt.Errorf("reading last goal: %w", err)
	}
	return entry, nil
}

func newPlansCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "plans",
		Aliases: []string{"ls"},
		Short:   "List saved plans",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plans, err := app.plans()
			if err != nil {
				return err
			}
			list, err := plans.ListPlans(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatPlanList(list, app.now()))
			return nil
		},
	}
}

func newShowCmd(app *App) *cobra.Command {
	var raw, asJSON bool

	cmd := &cobra.Command{
		Use:   "show <guid>",
		Short: "Show a saved plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plans, err := app.plans()
			if err != nil {
				return err
			}
			gp, err := plans.LoadPlan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case asJSON:
				return writeJSON(out, gp)
			case raw:
				_, err := io.WriteString(out, gp.Markdown)
				return err
			default:
				return printPlan(out, app, gp)
			}
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the markdown source")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the plan as JSON")
	cmd.MarkFlagsMutuallyExclusive("raw", "json")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newExportCmd(app *App) *cobra.Command {
	var (
		formatName string
		outPath    string
		last       bool
	)

	cmd := &cobra.Command{
		Use:   "export [guid]",
		Short: "Download a plan as markdown or plain text",
		Long: `Writes a saved plan to a file named my-goal-plan.md or my-goal-plan.txt.
Use --last to export the plan cached on this machine. --out - prints to stdout.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := plan.ParseFormat(formatName)
			if err != nil {
				return err
			}

			var gp *domain.GoalPlan
			switch {
			case len(args) == 1 && last:
				return errors.New("pass either a plan GUID or --last, not both")
			case len(args) == 1:
				plans, err := app.plans()
				if err != nil {
					return err
				}
				if gp, err = plans.LoadPlan(cmd.Context(), args[0]); err != nil {
					return err
				}
			case last:
				entry, err := loadLastGoal(app)
				if err != nil {
					return err
				}
				gp = &entry.GoalPlan
			default:
				return errors.New("a plan GUID or --last is required")
			}

			content, name, err := plan.Export(gp.Markdown, format)
			if err != nil {
				return err
			}
			if outPath == "-" {
				_, err := io.WriteString(cmd.OutOrStdout(), content)
				return err
			}
			path := exportPath(outPath, name)
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success("Saved "+path))
			return nil
		},
	}
	cmd.Flags().StringVarP(&formatName, "format", "f", string(plan.FormatMarkdown), "md or txt")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file or directory (- for stdout)")
	cmd.Flags().BoolVar(&last, "last", false, "export the last plan cached on this machine")
	return cmd
}

// exportPath resolves --out: empty means the download name in the working
// directory, an existing directory gets the download name appended.
func exportPath(out, name string) string {
	if out == "" {
		return name
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return filepath.Join(out, name)
	}
	return out
}
