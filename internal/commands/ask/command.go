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

// Package ask runs the decision pipeline from the command line.
package ask

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/squash/internal/cli/prompt"
	"github.com/tombee/squash/internal/commands/completion"
	"github.com/tombee/squash/internal/commands/shared"
	"github.com/tombee/squash/internal/processing"
)

// AnalyzeQuery is the question asked by the analyze command.
const AnalyzeQuery = "What should we build next based on all available data?"

// NewCommand creates the ask command.
func NewCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "ask [query]",
		Short: "Ask a product question",
		Annotations: map[string]string{
			"group": "execution",
		},
		Long: `Ask routes a question through the pipeline: route, collect, aggregate,
analyze, generate and review.

The query type decides what is produced. Feature discovery yields a
recommendation, a feature spec, UI proposals and a task breakdown. Task
breakdown questions skip discovery. Analysis questions stop after scoring.

With no query on an interactive terminal, ask prompts for one and offers
the uploaded documents as context.

Examples:
  squash ask "What should we build next?"
  squash ask "Why are enterprise customers churning?" -f interviews.pdf
  squash ask "Break down bulk export into tasks" --output json
  squash ask --method ice -f 'research/**/*.docx' "Which pain point matters most?"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.query = args[0]
			}
			opts.prompter = prompt.NewHuhPrompter(!opts.noPrompt && !shared.IsNonInteractive())
			opts.out = cmd.OutOrStdout()
			opts.errOut = cmd.ErrOrStderr()
			return run(cmd.Context(), opts)
		},
	}
	addRunFlags(cmd, opts)
	cmd.Flags().BoolVar(&opts.noPrompt, "no-prompt", false, "Fail instead of prompting when no query is given")
	return cmd
}

// NewAnalyzeCommand creates the analyze command, a discovery run over every
// uploaded document.
func NewAnalyzeCommand() *cobra.Command {
	opts := &options{allUploads: true}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Find the next feature to build from all uploads",
		Annotations: map[string]string{
			"group": "execution",
		},
		Long: `Analyze runs feature discovery over every uploaded document and all
configured data sources, asking:

  ` + AnalyzeQuery,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.query = AnalyzeQuery
			opts.prompter = prompt.NewHuhPrompter(false)
			opts.out = cmd.OutOrStdout()
			opts.errOut = cmd.ErrOrStderr()
			return run(cmd.Context(), opts)
		},
	}
	addRunFlags(cmd, opts)
	return cmd
}

func addRunFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().StringSliceVarP(&opts.files, "file", "f", nil, "Document to include (repeatable, globs allowed)")
	opts.output = "md"
	cmd.Flags().Var(shared.NewEnumFlag(&opts.method, "rice", "ice", "custom"), "method", "Scoring method: rice, ice or custom (env: SCORING_METHOD)")
	cmd.Flags().VarP(shared.NewEnumFlag(&opts.output, "md", "markdown", "json"), "output", "o", "Output format: md or json")
	cmd.Flags().BoolVar(&opts.timeline, "timeline", false, "Show a timeline of stage durations")
	cmd.Flags().BoolVar(&opts.noHistory, "no-history", false, "Do not record the run in history")

	_ = cmd.RegisterFlagCompletionFunc("method", completion.CompleteScoringMethods)
	_ = cmd.RegisterFlagCompletionFunc("output", completion.CompleteOutputFormats)
	exts := make([]string, len(processing.SupportedExtensions))
	for i, ext := range processing.SupportedExtensions {
		exts[i] = strings.TrimPrefix(ext, ".")
	}
	_ = cmd.MarkFlagFilename("file", exts...)
}

func isStdout(w any) bool {
	f, ok := w.(*os.File)
	return ok && f == os.Stdout
}
