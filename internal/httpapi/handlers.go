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

package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tombee/squash/internal/analysis"
	"github.com/tombee/squash/internal/connector"
	"github.com/tombee/squash/internal/generation"
	"github.com/tombee/squash/internal/log"
	"github.com/tombee/squash/internal/pipeline"
	"github.com/tombee/squash/internal/processing"
	"github.com/tombee/squash/internal/store"
	"github.com/tombee/squash/pkg/errors"
)

const (
	maxOpportunities = 10
	defaultRunLimit  = 20
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	MockMode bool   `json:"mock_mode"`
	Servers  int    `json:"servers"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "healthy",
		Version:  s.opts.Version,
		MockMode: s.opts.MockMode,
		Servers:  len(s.opts.Servers.GetAllServerInfo()),
	})
}

// UploadResponse is the body of a successful POST /api/upload.
type UploadResponse struct {
	Success  bool          `json:"success"`
	Filename string        `json:"filename"`
	FileType string        `json:"file_type"`
	Details  UploadDetails `json:"details"`
}

// UploadDetails summarizes the parsed document.
type UploadDetails struct {
	NumPages      int `json:"num_pages,omitempty"`
	NumParagraphs int `json:"num_paragraphs,omitempty"`
	NumTables     int `json:"num_tables,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) || !processing.IsSupported(name) {
		writeError(w, http.StatusBadRequest,
			"unsupported file type; supported: "+strings.Join(processing.SupportedExtensions, ", "))
		return
	}

	path, err := saveUpload(s.opts.UploadDir, name, file)
	if err != nil {
		s.logger.Error("upload failed", "filename", name, log.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	if inv, ok := s.opts.Documents.(interface{ Invalidate(string) }); ok {
		inv.Invalidate(path)
	}

	doc := s.opts.Documents.Parse(path)
	if doc.Error != "" {
		writeError(w, http.StatusBadRequest, doc.Error)
		return
	}
	s.logger.Info("file uploaded", "filename", name, "file_type", doc.FileType)
	writeJSON(w, http.StatusOK, UploadResponse{
		Success:  true,
		Filename: name,
		FileType: doc.FileType,
		Details: UploadDetails{
			NumPages:      doc.NumPages,
			NumParagraphs: doc.NumParagraphs,
			NumTables:     doc.NumTables,
		},
	})
}

func saveUpload(dir, name string, src io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", err
	}
	return path, dst.Close()
}

func (s *Server) handleFiles(w http.ResponseWriter, _ *http.Request) {
	files, err := processing.ListUploads(s.opts.UploadDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

type queryRequest struct {
	Query string   `json:"query"`
	Files []string `json:"files"`
}

// QueryResponse is the display form of a finished run.
type QueryResponse struct {
	RunID     string                 `json:"run_id"`
	QueryType string                 `json:"query_type"`
	Completed bool                   `json:"completed"`
	Errors    []pipeline.ErrorRecord `json:"errors,omitempty"`

	TopFeature *analysis.Opportunity `json:"top_feature,omitempty"`

	FeatureSpec         *generation.FeatureSpec `json:"feature_spec,omitempty"`
	FeatureSpecMarkdown string                  `json:"feature_spec_markdown,omitempty"`

	UIProposals         *generation.UIProposals `json:"ui_proposals,omitempty"`
	UIProposalsMarkdown string                  `json:"ui_proposals_markdown,omitempty"`

	TaskBreakdown         *generation.TaskBreakdown `json:"task_breakdown,omitempty"`
	TaskBreakdownMarkdown string                    `json:"task_breakdown_markdown,omitempty"`

	AllOpportunities []analysis.Opportunity `json:"all_opportunities,omitempty"`
}

// FormatResults converts a run state to its display form.
func FormatResults(st *pipeline.State) QueryResponse {
	resp := QueryResponse{
		RunID:      st.RunID,
		QueryType:  st.QueryType,
		Completed:  st.Completed,
		Errors:     st.Errors,
		TopFeature: st.TopFeature,
	}
	if st.FeatureSpec != nil {
		resp.FeatureSpec = st.FeatureSpec
		resp.FeatureSpecMarkdown = generation.SpecMarkdown(st.FeatureSpec)
	}
	if st.UIProposals != nil {
		resp.UIProposals = st.UIProposals
		resp.UIProposalsMarkdown = generation.UIProposalsMarkdown(st.UIProposals)
	}
	if st.TaskBreakdown != nil {
		resp.TaskBreakdown = st.TaskBreakdown
		resp.TaskBreakdownMarkdown = generation.TasksMarkdown(st.TaskBreakdown)
	}
	if n := len(st.ScoredFeatures); n > 0 {
		resp.AllOpportunities = st.ScoredFeatures[:min(n, maxOpportunities)]
	}
	return resp
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	req, err := parseQueryRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	files := s.resolveUploads(req.Files)
	s.logger.Info("query received", "files", len(files))

	st := s.opts.Runner.Run(r.Context(), req.Query, files)
	if s.opts.Recorder != nil {
		if _, err := s.opts.Recorder.Finish(context.WithoutCancel(r.Context()), st); err != nil {
			s.logger.Warn("failed to save run", log.RunIDKey, st.RunID, log.Error(err))
		}
	}
	if st.Phase == pipeline.PhaseStart {
		writeError(w, http.StatusServiceUnavailable, st.Error)
		return
	}
	writeJSON(w, http.StatusOK, FormatResults(st))
}

func parseQueryRequest(r *http.Request) (queryRequest, error) {
	var req queryRequest
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			return req, fmt.Errorf("invalid JSON body: %w", err)
		}
		return req, nil
	}

	if ct == "multipart/form-data" {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			return req, fmt.Errorf("invalid form: %w", err)
		}
	} else if err := r.ParseForm(); err != nil {
		return req, fmt.Errorf("invalid form: %w", err)
	}
	req.Query = r.FormValue("query")
	req.Files = append(r.Form["files"], r.Form["files[]"]...)
	return req, nil
}

// resolveUploads maps upload names to paths, dropping names that do not
// exist in the upload directory.
func (s *Server) resolveUploads(names []string) []string {
	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(s.opts.UploadDir, filepath.Base(name))
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			paths = append(paths, path)
		}
	}
	return paths
}

func (s *Server) handleServers(w http.ResponseWriter, _ *http.Request) {
	servers := s.opts.Servers.GetAllServerInfo()
	if servers == nil {
		servers = []connector.ServerInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"servers": servers})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.opts.Runs == nil {
		writeError(w, http.StatusNotFound, "run history is disabled")
		return
	}
	filter := store.RunFilter{Status: r.URL.Query().Get("status"), Limit: defaultRunLimit}
	for key, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := r.URL.Query().Get(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, key+" must be a non-negative integer")
			return
		}
		*dst = n
	}

	runs, err := s.opts.Runs.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// Listings omit the stored state; fetch a run for its result.
	for _, run := range runs {
		run.Result = nil
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.opts.Runs == nil {
		writeError(w, http.StatusNotFound, "run history is disabled")
		return
	}
	run, err := s.opts.Runs.GetRun(r.Context(), r.PathValue("id"))
	var notFound *errors.NotFoundError
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, run)
	}
}
