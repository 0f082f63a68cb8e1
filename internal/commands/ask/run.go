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

package ask

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/tombee/squash/internal/cli/format"
	"github.com/tombee/squash/internal/cli/prompt"
	"github.com/tombee/squash/internal/cli/timeline"
	"github.com/tombee/squash/internal/commands/shared"
	"github.com/tombee/squash/internal/generation"
	"github.com/tombee/squash/internal/httpapi"
	"github.com/tombee/squash/internal/log"
	"github.com/tombee/squash/internal/pipeline"
	"github.com/tombee/squash/internal/processing"
	"github.com/tombee/squash/pkg/llm"
)

type options struct {
	query      string
	files      []string
	method     string
	output     string
	timeline   bool
	noPrompt   bool
	noHistory  bool
	allUploads bool

	prompter prompt.Prompter
	out      io.Writer
	errOut   io.Writer

	// app carries test overrides for settings, provider and metrics.
	app shared.AppOptions
}

// Response is the JSON output of ask and analyze.
type Response struct {
	shared.JSONResponse
	httpapi.QueryResponse
	Usage *llm.UsageAggregate `json:"usage,omitempty"`
}

func run(ctx context.Context, opts *options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	asJSON := shared.GetJSON() || opts.output == "json"
	switch opts.output {
	case "", "md", "markdown", "json":
	default:
		return shared.NewInputError(fmt.Sprintf("unknown output format %q (want md or json)", opts.output), nil)
	}

	files, err := resolveFiles(opts.files)
	if err != nil {
		return err
	}

	appOpts := opts.app
	appOpts.Engine = true
	appOpts.Store = !opts.noHistory
	appOpts.ScoringMethod = opts.method
	app, err := shared.NewApp(ctx, appOpts)
	if err != nil {
		return err
	}
	defer app.Close()

	uploads, err := processing.ListUploads(app.Settings.UploadDir)
	if err != nil {
		return shared.NewConfigError("failed to list uploads", err)
	}
	if opts.allUploads {
		for _, u := range uploads {
			files = append(files, u.Path)
		}
	}

	query := opts.query
	if query == "" {
		if opts.noPrompt || opts.prompter == nil || !opts.prompter.IsInteractive() {
			return shared.NewInputError("a query is required", fmt.Errorf("pass it as an argument or run interactively"))
		}
		choices := make([]prompt.Choice, len(uploads))
		for i, u := range uploads {
			choices[i] = prompt.Choice{Label: u.Filename, Path: u.Path}
		}
		answer, err := opts.prompter.PromptQuery(ctx, choices)
		if errors.Is(err, prompt.ErrAborted) {
			return &shared.ExitError{Code: shared.ExitInterrupted, Message: "aborted"}
		}
		if err != nil {
			return shared.NewInputError("failed to read query", err)
		}
		query = answer.Text
		files = append(files, answer.Files...)
	}
	if err := prompt.ValidateQuery(query); err != nil {
		return shared.NewInputError("invalid query", err)
	}

	var spinner *shared.Spinner
	if !asJSON && !shared.GetQuiet() {
		if opts.errOut == os.Stderr {
			spinner = shared.NewSpinner()
		} else {
			spinner = shared.NewSpinnerTo(opts.errOut)
		}
		spinner.Attach(app.Events)
		spinner.Start("Starting")
	}
	var spans *timeline.Recorder
	if opts.timeline {
		spans = timeline.NewRecorder()
		spans.Attach(app.Events)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	st := app.Engine.Run(runCtx, query, files)
	interrupted := runCtx.Err() != nil && ctx.Err() == nil
	stop()
	if spinner != nil {
		elapsed := spinner.Stop()
		app.Logger.Debug("run finished", log.RunIDKey, st.RunID, "elapsed", shared.FormatElapsed(elapsed))
	}

	if app.Recorder != nil {
		if _, err := app.Recorder.Finish(context.WithoutCancel(ctx), st); err != nil {
			app.Logger.Warn("failed to save run", log.RunIDKey, st.RunID, log.Error(err))
		}
	}

	if interrupted {
		return &shared.ExitError{Code: shared.ExitInterrupted, Message: "interrupted"}
	}
	if st.Phase == pipeline.PhaseStart {
		if asJSON {
			_ = shared.EmitJSONError(opts.out, "ask", jsonErrors(st))
		}
		return shared.NewRunError("run did not start", errors.New(st.Error))
	}

	usage := app.Usage.Total()
	if asJSON {
		resp := Response{
			JSONResponse:  shared.NewJSONResponse("ask", len(st.Errors) == 0),
			QueryResponse: httpapi.FormatResults(st),
			Usage:         &usage,
		}
		if err := shared.EmitJSONTo(opts.out, resp); err != nil {
			return shared.NewRunError("failed to write output", err)
		}
	} else if err := writeReport(opts, st, spans, usage); err != nil {
		return err
	}

	if n := len(st.Errors); n > 0 {
		if !asJSON {
			for _, e := range st.Errors {
				fmt.Fprintln(opts.errOut, shared.RenderWarn(fmt.Sprintf("%s: %s", e.Stage, e.Message)))
			}
		}
		return shared.NewPartialResultError(n)
	}
	return nil
}

func writeReport(opts *options, st *pipeline.State, spans *timeline.Recorder, usage llm.UsageAggregate) error {
	tty := isStdout(opts.out) && format.IsTTY()
	width := 100
	if tty {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
			width = w
		}
	}

	rendered, err := format.Markdown(generation.ReportMarkdown(st.Report()), tty, min(width, 120))
	if err != nil {
		return shared.NewRunError("failed to render report", err)
	}
	fmt.Fprintln(opts.out, rendered)

	if spans != nil {
		r, err := timeline.NewRendererWidth(width)
		if err != nil {
			return shared.NewRunError("failed to render timeline", err)
		}
		out, err := r.Render(st.RunID, spans.Spans(), usage.TotalTokens)
		if err != nil {
			return shared.NewRunError("failed to render timeline", err)
		}
		fmt.Fprintln(opts.out, out)
	}

	if !shared.GetQuiet() {
		fmt.Fprintf(opts.errOut, "%s %s tokens across %d requests\n",
			shared.RenderLabel("Run "+st.RunID+":"), llm.FormatTokens(usage.TotalTokens), usage.TotalRequests)
	}
	return nil
}

func jsonErrors(st *pipeline.State) []shared.JSONError {
	errs := make([]shared.JSONError, 0, len(st.Errors))
	for _, e := range st.Errors {
		errs = append(errs, shared.JSONError{Code: "stage_error", Message: e.Message, Stage: e.Stage})
	}
	if len(errs) == 0 && st.Error != "" {
		errs = append(errs, shared.JSONError{Code: "run_error", Message: st.Error})
	}
	return errs
}

// resolveFiles expands globs and checks every named document exists.
func resolveFiles(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	files, err := processing.ResolveFiles(patterns)
	if err != nil {
		return nil, shared.NewInputError("invalid --file pattern", err)
	}
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			return nil, shared.NewInputError(fmt.Sprintf("cannot read %s", f), err)
		}
		if info.IsDir() {
			return nil, shared.NewInputError(fmt.Sprintf("%s is a directory", f), nil)
		}
	}
	return files, nil
}
