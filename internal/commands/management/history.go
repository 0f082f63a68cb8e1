// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package management holds commands over stored state: run history.
package management

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/squash/internal/cli/format"
	"github.com/tombee/squash/internal/commands/completion"
	"github.com/tombee/squash/internal/commands/shared"
	"github.com/tombee/squash/internal/generation"
	"github.com/tombee/squash/internal/pipeline"
	"github.com/tombee/squash/internal/store"
	"github.com/tombee/squash/pkg/errors"
)

// openStore is replaced in tests.
var openStore = func(ctx context.Context) (store.Store, func(), error) {
	app, err := shared.NewApp(ctx, shared.AppOptions{Store: true})
	if err != nil {
		return nil, nil, err
	}
	return app.Store, app.Close, nil
}

// NewHistoryCommand creates the history command group.
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use: "history",
		Annotations: map[string]string{
			"group": "management",
		},
		Short: "View past pipeline runs",
		Long: `Commands for listing, viewing, and deleting recorded runs.

Every ask and analyze run is recorded in the run history database (DB_PATH)
unless --no-history is given.`,
	}

	cmd.AddCommand(newHistoryListCommand())
	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryDeleteCommand())

	return cmd
}

func newHistoryListCommand() *cobra.Command {
	var (
		filter store.RunFilter
		failed bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List past runs",
		Long: `List recorded runs, newest first, optionally filtered by status.

See also: squash history show, squash ask`,
		Example: `  # List the 20 most recent runs
  squash history list

  # Only runs with stage errors
  squash history list --failed

  # Page through older runs
  squash history list --limit 50 --offset 50

  # Get runs as JSON
  squash history list --json | jq '.runs[] | select(.status=="completed")'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if failed {
				filter.Status = store.StatusCompletedWithErrors
			}
			if filter.Limit < 0 || filter.Offset < 0 {
				return shared.NewInputError("--limit and --offset must be non-negative", nil)
			}
			return withStore(cmd.Context(), func(ctx context.Context, s store.Store) error {
				return historyList(ctx, cmd.OutOrStdout(), s, filter)
			})
		},
	}

	cmd.Flags().StringVar(&filter.Status, "status", "", "Filter by status (running, completed, completed_with_errors, not_started)")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "Maximum runs to list")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "Runs to skip")
	cmd.Flags().BoolVar(&failed, "failed", false, "Show only runs with stage errors (shorthand for --status completed_with_errors)")
	_ = cmd.RegisterFlagCompletionFunc("status", completion.CompleteRunStatus)

	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run",
		Long: `Display a recorded run. With --output md the stored result is rendered
as the same report ask prints.

See also: squash history list`,
		Example: `  # Run summary
  squash history show 4f1c...

  # Re-render the report
  squash history show 4f1c... --output md

  # Extract the top feature
  squash history show 4f1c... --json | jq -r '.top_feature'`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completion.CompleteRunIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch output {
			case "", "summary", "md", "markdown":
			default:
				return shared.NewInputError(fmt.Sprintf("unknown output format %q (want summary or md)", output), nil)
			}
			return withStore(cmd.Context(), func(ctx context.Context, s store.Store) error {
				return historyShow(ctx, cmd.OutOrStdout(), s, args[0], output)
			})
		},
	}

	output = "summary"
	cmd.Flags().VarP(shared.NewEnumFlag(&output, "summary", "md", "markdown"), "output", "o", "Output: summary or md")
	return cmd
}

func newHistoryDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "delete <run-id>",
		Short:             "Delete a run",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completion.CompleteRunIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s store.Store) error {
				return historyDelete(ctx, cmd.OutOrStdout(), s, args[0])
			})
		},
	}
}

func withStore(ctx context.Context, fn func(context.Context, store.Store) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	s, closeFn, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, s)
}

type listResponse struct {
	shared.JSONResponse
	Runs []*store.Run `json:"runs"`
}

func historyList(ctx context.Context, out io.Writer, s store.Store, filter store.RunFilter) error {
	runs, err := s.ListRuns(ctx, filter)
	if err != nil {
		return shared.NewRunError("failed to list runs", err)
	}
	for _, run := range runs {
		run.Result = nil
	}

	if shared.GetJSON() {
		if runs == nil {
			runs = []*store.Run{}
		}
		return shared.EmitJSONTo(out, listResponse{JSONResponse: shared.NewJSONResponse("history list", true), Runs: runs})
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found")
		return nil
	}

	fmt.Fprintln(out, "ID        STATUS                  TOP FEATURE           STARTED              QUERY")
	fmt.Fprintln(out, "--------  ----------------------  --------------------  -------------------  -----")
	for _, run := range runs {
		status := fmt.Sprintf("%-22s", run.Status)
		fmt.Fprintf(out, "%-8s  %s  %-20s  %s  %s\n",
			truncate(run.ID, 8),
			shared.RenderRunStatus(status),
			truncate(orDash(run.TopFeature), 20),
			formatTime(run.StartedAt),
			truncate(run.Query, 50))
	}
	return nil
}

type showResponse struct {
	shared.JSONResponse
	*store.Run
}

func historyShow(ctx context.Context, out io.Writer, s store.Store, id string, output string) error {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		var notFound *errors.NotFoundError
		if errors.As(err, &notFound) {
			return shared.NewInputError(fmt.Sprintf("run %s not found", id), fmt.Errorf("run 'squash history list' to see recorded runs"))
		}
		return shared.NewRunError("failed to get run", err)
	}

	if shared.GetJSON() {
		return shared.EmitJSONTo(out, showResponse{JSONResponse: shared.NewJSONResponse("history show", true), Run: run})
	}

	if output == "md" || output == "markdown" {
		if len(run.Result) == 0 {
			return shared.NewInputError(fmt.Sprintf("run %s has no stored result", id), fmt.Errorf("status is %s", run.Status))
		}
		var st pipeline.State
		if err := json.Unmarshal(run.Result, &st); err != nil {
			return shared.NewRunError("stored result is unreadable", err)
		}
		rendered, err := format.Markdown(generation.ReportMarkdown(st.Report()), isStdout(out) && format.IsTTY(), 0)
		if err != nil {
			return shared.NewRunError("failed to render report", err)
		}
		fmt.Fprintln(out, rendered)
		return nil
	}

	fmt.Fprintf(out, "Run ID:      %s\n", run.ID)
	fmt.Fprintf(out, "Query:       %s\n", run.Query)
	fmt.Fprintf(out, "Status:      %s\n", shared.RenderRunStatus(run.Status))
	if run.QueryType != "" {
		fmt.Fprintf(out, "Query type:  %s\n", run.QueryType)
	}
	if run.Stage != "" {
		fmt.Fprintf(out, "Last stage:  %s\n", run.Stage)
	}
	if run.TopFeature != "" {
		fmt.Fprintf(out, "Top feature: %s\n", run.TopFeature)
	}
	fmt.Fprintf(out, "Started:     %s\n", formatTime(run.StartedAt))
	if run.FinishedAt != nil {
		fmt.Fprintf(out, "Finished:    %s (%s)\n", formatTime(*run.FinishedAt),
			shared.FormatElapsed(run.FinishedAt.Sub(run.StartedAt)))
	}
	for _, f := range run.Files {
		fmt.Fprintf(out, "File:        %s\n", f)
	}
	if run.Error != "" {
		fmt.Fprintf(out, "Error:       %s\n", shared.RenderError(run.Error))
	}
	return nil
}

func historyDelete(ctx context.Context, out io.Writer, s store.Store, id string) error {
	if err := s.DeleteRun(ctx, id); err != nil {
		var notFound *errors.NotFoundError
		if errors.As(err, &notFound) {
			return shared.NewInputError(fmt.Sprintf("run %s not found", id), nil)
		}
		return shared.NewRunError("failed to delete run", err)
	}
	if shared.GetJSON() {
		return shared.EmitJSONTo(out, shared.NewJSONResponse("history delete", true))
	}
	fmt.Fprintf(out, "Run %s deleted\n", id)
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, max int) string {
	if len([]rune(s)) <= max {
		return s
	}
	return string([]rune(s)[:max-3]) + "..."
}

func isStdout(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && f.Fd() == 1
}
