package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/smartplan/internal/cli/formatter"
	"github.com/alexanderramin/smartplan/internal/prompt"
	"github.com/alexanderramin/smartplan/internal/server"
	"github.com/spf13/cobra"
)

func newFeedbackCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "feedback <text>",
		Short: "Send feedback about the generated plans",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plans, err := app.plans()
			if err != nil {
				return err
			}
			key, err := plans.SubmitFeedback(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success("Thanks! Feedback saved as "+key))
			return nil
		},
	}
}

func newPromptsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:       "prompts [stage]",
		Short:     "Show the prompt templates for each generation stage",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(prompt.StageSmartGoal), string(prompt.StagePlan)},
		RunE: func(cmd *cobra.Command, args []string) error {
			store := app.prompts()
			out := cmd.OutOrStdout()

			stages := store.Stages()
			if len(args) == 1 {
				stages = []prompt.Stage{prompt.Stage(args[0])}
			}
			for i, stage := range stages {
				tmpl, err := store.Template(stage)
				if err != nil {
					return err
				}
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintln(out, formatter.Header(string(stage)))
				if tmpl.Description != "" {
					fmt.Fprintln(out, formatter.Dim(tmpl.Description))
				}
				if len(tmpl.Placeholders) > 0 {
					fmt.Fprintln(out, formatter.Dim("Placeholders: "+strings.Join(tmpl.Placeholders, ", ")))
				}
				fmt.Fprintf(out, "\n%s\n%s\n\n%s\n%s\n",
					formatter.Bold("System"), strings.TrimSpace(tmpl.System),
					formatter.Bold("User"), strings.TrimSpace(tmpl.User))
			}
			return nil
		},
	}
}

func newServeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if app.Server == nil {
				return fmt.Errorf("http server is %w", errNotConfigured)
			}
			addr := ":8080"
			if app.Config != nil && app.Config.Server.Addr != "" {
				addr = app.Config.Server.Addr
			}
			app.logger().Info("http server listening", "addr", addr)
			return app.Server.ListenAndServe(cmd.Context(), addr)
		},
	}
}

func newTokenCmd(app *App) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if app.Config == nil || app.Config.Server.AuthSecret == "" {
				return errors.New("server.auth_secret is not set; API auth is disabled")
			}
			if ttl <= 0 {
				ttl = app.Config.Server.TokenTTL
			}
			tok, err := server.IssueToken([]byte(app.Config.Server.AuthSecret), subject, ttl, app.now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject, usually a user id")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default server.token_ttl)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
