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

package completion

import (
	"context"
	"os"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/spf13/cobra"

	"github.com/tombee/squash/internal/config"
	"github.com/tombee/squash/internal/store"
	"github.com/tombee/squash/internal/store/sqlite"
)

const (
	runCacheTTL     = 2 * time.Second
	runQueryTimeout = 500 * time.Millisecond
	maxRunChoices   = 50
	maxQueryHint    = 40
)

var runCache = cache.New(runCacheTTL, time.Minute)

// RunLoader lists recent runs for completion. Tests replace it.
var RunLoader = loadRecentRuns

// CompleteRunIDs completes run IDs with their query as the description.
func CompleteRunIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		runs := cachedRuns(cmd.Context())
		completions := make([]string, 0, len(runs))
		for _, r := range runs {
			completions = append(completions, r.ID+"\t"+describeRun(r))
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	})
}

func cachedRuns(ctx context.Context) []*store.Run {
	if v, ok := runCache.Get("runs"); ok {
		return v.([]*store.Run)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, runQueryTimeout)
	defer cancel()
	runs, err := RunLoader(ctx)
	if err != nil {
		return nil
	}
	runCache.SetDefault("runs", runs)
	return runs
}

func describeRun(r *store.Run) string {
	q := r.Query
	if len(q) > maxQueryHint {
		q = q[:maxQueryHint-3] + "..."
	}
	if r.Status == "" {
		return q
	}
	return q + " (" + r.Status + ")"
}

// loadRecentRuns opens the run history read from DB_PATH. A missing
// database yields no runs rather than creating one.
func loadRecentRuns(ctx context.Context) ([]*store.Run, error) {
	settings, err := config.FromEnv(ctx, os.Getenv, nil)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(settings.DBPath); err != nil {
		return nil, err
	}
	db, err := sqlite.New(sqlite.Config{Path: settings.DBPath})
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return db.ListRuns(ctx, store.RunFilter{Limit: maxRunChoices})
}
