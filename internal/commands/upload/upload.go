// Package upload manages the documents available to pipeline runs.
package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/squash/internal/commands/shared"
	"github.com/tombee/squash/internal/config"
	"github.com/tombee/squash/internal/processing"
)

// NewCommand creates the upload command.
func NewCommand() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "upload [file...]",
		Short: "Add documents for analysis",
		Annotations: map[string]string{
			"group": "data",
		},
		Long: `Upload copies documents into the upload directory (UPLOAD_DIR), where
ask and analyze can use them. Each file is parsed on upload so problems
surface early.

Supported types: ` + strings.Join(processing.SupportedExtensions, ", ") + `

Examples:
  squash upload interviews.pdf survey.docx
  squash upload 'research/**/*.md'
  squash upload --list`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !list && len(args) == 0 {
				return shared.NewInputError("no files given", fmt.Errorf("pass files to upload or --list"))
			}
			return run(cmd.Context(), cmd.OutOrStdout(), nil, args, list)
		},
	}
	cmd.Flags().BoolVarP(&list, "list", "l", false, "List uploaded documents")
	return cmd
}

// Result describes one uploaded document.
type Result struct {
	Filename      string `json:"filename"`
	FileType      string `json:"file_type,omitempty"`
	Size          int64  `json:"size,omitempty"`
	NumPages      int    `json:"num_pages,omitempty"`
	NumParagraphs int    `json:"num_paragraphs,omitempty"`
	NumTables     int    `json:"num_tables,omitempty"`
}

type response struct {
	shared.JSONResponse
	Files []Result `json:"files"`
}

func run(ctx context.Context, out io.Writer, settings *config.Settings, args []string, list bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if settings == nil {
		var err error
		if settings, err = config.Load(ctx, nil); err != nil {
			return shared.NewConfigError("failed to load settings", err)
		}
	}
	if err := settings.EnsureDirs(); err != nil {
		return shared.NewConfigError("failed to create upload directory", err)
	}

	var results []Result
	if list {
		files, err := processing.ListUploads(settings.UploadDir)
		if err != nil {
			return shared.NewConfigError("failed to list uploads", err)
		}
		for _, f := range files {
			results = append(results, Result{Filename: f.Filename, Size: f.Size})
		}
	} else {
		paths, err := processing.ResolveFiles(args)
		if err != nil {
			return shared.NewInputError("invalid file pattern", err)
		}
		if len(paths) == 0 {
			return shared.NewInputError("no files matched", nil)
		}
		for _, p := range paths {
			r, err := Store(settings.UploadDir, p)
			if err != nil {
				return err
			}
			results = append(results, r)
		}
	}

	if shared.GetJSON() {
		if results == nil {
			results = []Result{}
		}
		return shared.EmitJSONTo(out, response{JSONResponse: shared.NewJSONResponse("upload", true), Files: results})
	}

	if list {
		if len(results) == 0 {
			fmt.Fprintf(out, "No documents in %s\n", settings.UploadDir)
			return nil
		}
		for _, r := range results {
			fmt.Fprintf(out, "%-40s %s\n", r.Filename, shared.RenderLabel(formatSize(r.Size)))
		}
		return nil
	}
	for _, r := range results {
		fmt.Fprintln(out, shared.RenderOK(fmt.Sprintf("%s (%s)", r.Filename, describe(r))))
	}
	return nil
}

// Store copies src into dir and parses the copy. A copy that fails to
// parse is removed. A file already in dir is only parsed.
func Store(dir, src string) (Result, error) {
	name := filepath.Base(src)
	if !processing.IsSupported(name) {
		return Result{}, shared.NewInputError(
			fmt.Sprintf("%s: unsupported file type (supported: %s)", name, strings.Join(processing.SupportedExtensions, ", ")), nil)
	}

	in, err := os.Open(src)
	if err != nil {
		return Result{}, shared.NewInputError(fmt.Sprintf("cannot read %s", src), err)
	}
	defer in.Close()

	dst := filepath.Join(dir, name)
	if abs, _ := filepath.Abs(src); abs != "" {
		if absDst, _ := filepath.Abs(dst); abs == absDst {
			return parse(dst, name)
		}
	}
	f, err := os.Create(dst)
	if err != nil {
		return Result{}, shared.NewConfigError("failed to write upload", err)
	}
	n, err := io.Copy(f, in)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return Result{}, shared.NewConfigError("failed to write upload", err)
	}

	r, err := parse(dst, name)
	if err != nil {
		_ = os.Remove(dst)
		return Result{}, err
	}
	r.Size = n
	return r, nil
}

func parse(path, name string) (Result, error) {
	doc := processing.ParseDocument(path)
	if doc.Error != "" {
		return Result{}, shared.NewInputError(fmt.Sprintf("%s: %s", name, doc.Error), nil)
	}
	return Result{
		Filename:      name,
		FileType:      doc.FileType,
		NumPages:      doc.NumPages,
		NumParagraphs: doc.NumParagraphs,
		NumTables:     doc.NumTables,
	}, nil
}

func describe(r Result) string {
	parts := []string{r.FileType}
	if r.NumPages > 0 {
		parts = append(parts, fmt.Sprintf("%d pages", r.NumPages))
	}
	if r.NumParagraphs > 0 {
		parts = append(parts, fmt.Sprintf("%d paragraphs", r.NumParagraphs))
	}
	if r.NumTables > 0 {
		parts = append(parts, fmt.Sprintf("%d tables", r.NumTables))
	}
	return strings.Join(parts, ", ")
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
