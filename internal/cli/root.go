package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/alexanderramin/smartplan/internal/cli/formatter"
	"github.com/alexanderramin/smartplan/internal/config"
	"github.com/alexanderramin/smartplan/internal/pipeline"
	"github.com/alexanderramin/smartplan/internal/prompt"
	"github.com/alexanderramin/smartplan/internal/server"
	"github.com/alexanderramin/smartplan/internal/wizard"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var errNotConfigured = errors.New("not configured")

// App holds the services used by CLI commands. main fills it from Setup;
// tests fill it directly.
type App struct {
	Plans    pipeline.PlanService
	LastGoal wizard.LastGoalCache
	Prompts  *prompt.Store
	Server   *server.Server
	Config   *config.Config
	Logger   *slog.Logger

	// In is read by the line-based flows. Nil means os.Stdin.
	In io.Reader
	// IsInteractive reports whether stdin is a terminal.
	IsInteractive func() bool
	Now           func() time.Time
	// MarkdownStyle overrides the glamour style chosen from IsInteractive.
	MarkdownStyle string

	// Setup runs before each command with the root's persistent flags.
	Setup func(fs *pflag.FlagSet) error
}

// NewRootCmd creates the "smartplan" command tree.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:          "smartplan",
		Short:        "Turn a rough goal into a SMART goal and a milestone plan",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if app.Setup == nil {
				return nil
			}
			return app.Setup(cmd.Root().PersistentFlags())
		},
	}
	root.PersistentFlags().String("config", "", "config file (default ~/.smartplan/config.yaml)")
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newNewCmd(app),
		newRecallCmd(app),
		newPlansCmd(app),
		newShowCmd(app),
		newExportCmd(app),
		newFeedbackCmd(app),
		newPromptsCmd(app),
		newServeCmd(app),
		newTokenCmd(app),
	)
	return root
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *App) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (a *App) input() io.Reader {
	if a.In != nil {
		return a.In
	}
	return os.Stdin
}

func (a *App) interactive() bool {
	return a.IsInteractive != nil && a.IsInteractive()
}

func (a *App) markdownStyle() string {
	if a.MarkdownStyle != "" {
		return a.MarkdownStyle
	}
	return formatter.MarkdownStyleFor(a.interactive())
}

func (a *App) prompts() *prompt.Store {
	if a.Prompts != nil {
		return a.Prompts
	}
	return prompt.Default()
}

func (a *App) plans() (pipeline.PlanService, error) {
	if a.Plans == nil {
		return nil, fmt.Errorf("plan service is %w", errNotConfigured)
	}
	return a.Plans, nil
}

func (a *App) lastGoal() (wizard.LastGoalCache, error) {
	if a.LastGoal == nil {
		return nil, fmt.Errorf("local goal cache is %w", errNotConfigured)
	}
	return a.LastGoal, nil
}

func (a *App) newController() (*wizard.Controller, error) {
	plans, err := a.plans()
	if err != nil {
		return nil, err
	}
	return wizard.New(plans, a.LastGoal,
		wizard.WithClock(a.now),
		wizard.WithLogger(a.logger()),
	), nil
}
