package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/alexanderramin/smartplan/internal/cli/formatter"
	"github.com/alexanderramin/smartplan/internal/domain"
	"github.com/alexanderramin/smartplan/internal/wizard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

type newOptions struct {
	what    string
	why     string
	when    string
	profile map[string]string
	noTUI   bool
	yes     bool
	outDir  string
}

func (o newOptions) preGoal() domain.PreGoal {
	pre := domain.PreGoal{What: o.what, Why: o.why, When: o.when}
	if len(o.profile) > 0 {
		pre.Profile = make(map[string]any, len(o.profile))
		for k, v := range o.profile {
			pre.Profile[k] = v
		}
	}
	return pre
}

func newNewCmd(app *App) *cobra.Command {
	var opts newOptions

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a SMART goal and a milestone plan",
		Long: `Walks through the planning wizard: describe what you want, why and by when,
review the SMART goal, then get milestones and tasks.

The interactive wizard runs when stdin is a terminal. Otherwise, or with
--no-tui, missing answers are read line by line from stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctrl, err := app.newController()
			if err != nil {
				return err
			}
			if !opts.noTUI && app.interactive() {
				return runWizardTUI(cmd.Context(), app, ctrl, opts)
			}
			return runWizardLines(cmd, app, ctrl, opts)
		},
	}

	cmd.Flags().StringVar(&opts.what, "what", "", "what you want to achieve")
	cmd.Flags().StringVar(&opts.why, "why", "", "why it matters to you")
	cmd.Flags().StringVar(&opts.when, "when", "", "target date (YYYY-MM-DD)")
	cmd.Flags().StringToStringVar(&opts.profile, "profile", nil, "profile facts as key=value pairs")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "use the line-based flow even on a terminal")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "accept the SMART goal without asking")
	cmd.Flags().StringVar(&opts.outDir, "out-dir", ".", "directory for plan downloads from the wizard")
	return cmd
}

func runWizardTUI(ctx context.Context, app *App, ctrl *wizard.Controller, opts newOptions) error {
	m := newWizardModel(ctx, app, ctrl, opts)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// runWizardLines drives the same controller as the TUI with plain prompts.
func runWizardLines(cmd *cobra.Command, app *App, ctrl *wizard.Controller, opts newOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	in := app.input()

	pre := opts.preGoal()
	var job wizard.Job
	var err error
	retry := false
	for {
		if err := askPreGoal(in, out, &pre, retry); err != nil {
			return err
		}
		job, err = ctrl.Submit(pre)
		if errors.Is(err, wizard.ErrValidation) {
			fmt.Fprintln(out, formatter.StyleRed.Render(err.Error()))
			fmt.Fprint(out, formatter.FormatFieldErrors(ctrl.Snapshot().FieldErrors))
			return err
		}
		if err != nil {
			return err
		}
		err = runStage(ctx, app, ctrl, job, cmd.ErrOrStderr(), "Writing your SMART goal...")
		if err == nil {
			break
		}
		fmt.Fprintln(out, formatter.Banner(err.Error()))
		if opts.yes {
			return err
		}
		fmt.Fprintln(out, formatter.Dim("Press Enter to keep an answer or type a new one."))
		retry = true
	}

	for {
		st := ctrl.Snapshot()
		fmt.Fprintln(out, formatter.FormatSmartGoal(st.SmartGoal))

		choice := byte('a')
		if !opts.yes {
			choice, err = promptChoice(in, out, "[a]ccept, [e]dit or [c]ancel? ", "aec", 'a')
			if err != nil {
				return fmt.Errorf("reading answer: %w", err)
			}
		}

		switch choice {
		case 'c':
			if err := ctrl.Reset(); err != nil {
				return err
			}
			fmt.Fprintln(out, formatter.Dim("Cancelled. Nothing was saved."))
			return nil
		case 'e':
			job, err = editSmartGoal(in, out, ctrl)
			if errors.Is(err, wizard.ErrEmptySmartGoal) {
				fmt.Fprintln(out, formatter.Banner(err.Error()))
				continue
			}
		default:
			job, err = ctrl.Accept()
		}
		if err != nil {
			return err
		}

		if err := runStage(ctx, app, ctrl, job, cmd.ErrOrStderr(), "Planning milestones and tasks..."); err != nil {
			fmt.Fprintln(out, formatter.Banner(err.Error()))
			if opts.yes {
				return err
			}
			continue
		}
		break
	}

	gp := ctrl.Snapshot().Plan
	if err := printPlan(out, app, gp); err != nil {
		return err
	}
	fmt.Fprintln(out, formatter.Success("Plan saved. Run 'smartplan export --last' to download it."))
	return nil
}

// askPreGoal prompts for unanswered questions. With again set every
// question is asked, and an empty answer keeps the current value.
func askPreGoal(in io.Reader, out io.Writer, pre *domain.PreGoal, again bool) error {
	questions := []struct {
		dst    *string
		prompt string
	}{
		{&pre.What, "What do you want to achieve? "},
		{&pre.Why, "Why does it matter to you? "},
		{&pre.When, "By when (YYYY-MM-DD)? "},
	}
	for _, q := range questions {
		msg := q.prompt
		if *q.dst != "" {
			if !again {
				continue
			}
			msg += "[" + *q.dst + "] "
		}
		answer, err := promptLine(in, out, msg)
		if err != nil {
			return fmt.Errorf("reading answer: %w", err)
		}
		if answer != "" || !again {
			*q.dst = answer
		}
	}
	return nil
}

func editSmartGoal(in io.Reader, out io.Writer, ctrl *wizard.Controller) (wizard.Job, error) {
	if err := ctrl.Edit(); err != nil {
		return wizard.Job{}, err
	}
	text, err := promptLine(in, out, "New SMART goal: ")
	if err != nil {
		_ = ctrl.CancelEdit()
		return wizard.Job{}, fmt.Errorf("reading answer: %w", err)
	}
	if err := ctrl.SetDraft(text); err != nil {
		return wizard.Job{}, err
	}
	job, err := ctrl.SaveAndAccept()
	if err != nil {
		_ = ctrl.CancelEdit()
	}
	return job, err
}

// runStage executes job and applies its result, with a spinner on
// terminals.
func runStage(ctx context.Context, app *App, ctrl *wizard.Controller, job wizard.Job, w io.Writer, label string) error {
	if app.interactive() {
		stop := formatter.StartSpinner(w, label)
		defer stop()
	}
	return ctrl.Run(ctx, job)
}

func printPlan(out io.Writer, app *App, gp *domain.GoalPlan) error {
	if gp == nil {
		return errors.New("no plan to show")
	}
	rendered, err := formatter.RenderMarkdown(gp.Markdown, 0, app.markdownStyle())
	if err != nil {
		app.logger().Warn("rendering plan failed, printing markdown", "error", err)
		rendered = gp.Markdown
	}
	fmt.Fprintln(out, rendered)
	fmt.Fprintln(out, formatter.FormatPlanFooter(gp))
	return nil
}
