// Copyright 2026 The flowbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package gitchanges reports what a swarm run left behind in a repository.
//
// The working tree is inspected with go-git so a missing git binary does
// not break change detection; the human-readable diffs still come from the
// git CLI because callers expect real patch text. Diff collection is
// best-effort: a repository with no commits yet simply yields empty diffs.
package gitchanges

import (
	"context"
	"fmt"
	"sort"
	"time"

	git "github.com/go-git/go-git/v5"
	log "github.com/sirupsen/logrus"

	"github.com/async-code/flowbridge/internal/runner"
)

// diffTimeout bounds each git diff invocation.
const diffTimeout = 30 * time.Second

// Changes describes the uncommitted delta of a working tree.
type Changes struct {
	// Diff is the unstaged patch text.
	Diff string `json:"diff"`

	// StagedDiff is the patch text of the index against HEAD.
	StagedDiff string `json:"staged_diff"`

	// ChangedFiles lists modified, added, deleted, and untracked paths,
	// sorted for stable responses.
	ChangedFiles []string `json:"changed_files"`

	// HasChanges reports whether anything above is non-empty.
	HasChanges bool `json:"has_changes"`
}

// Collector inspects repositories after task runs.
type Collector struct {
	runner runner.Runner
}

// NewCollector returns a Collector that shells out through r for diffs.
func NewCollector(r runner.Runner) *Collector {
	return &Collector{runner: r}
}

// Collect gathers the uncommitted changes under repoPath. It fails only
// when the path is not a git repository; diff collection problems degrade
// to empty patch text.
func (c *Collector) Collect(ctx context.Context, repoPath string) (*Changes, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", repoPath, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("worktree %s: %w", repoPath, err)
	}

	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("status %s: %w", repoPath, err)
	}

	files := make([]string, 0, len(status))
	for file, st := range status {
		if st.Staging == git.Unmodified && st.Worktree == git.Unmodified {
			continue
		}
		files = append(files, file)
	}
	sort.Strings(files)

	changes := &Changes{
		Diff:         c.diff(ctx, repoPath),
		StagedDiff:   c.diff(ctx, repoPath, "--cached"),
		ChangedFiles: files,
	}
	changes.HasChanges = changes.Diff != "" || changes.StagedDiff != "" || len(files) > 0
	return changes, nil
}

// diff runs git diff with the given extra flags and returns its stdout.
// Failures are logged and reported as empty text.
func (c *Collector) diff(ctx context.Context, dir string, extra ...string) string {
	inv := runner.Invocation{
		Name:    "git",
		Args:    append([]string{"diff"}, extra...),
		Dir:     dir,
		Timeout: diffTimeout,
	}
	res, err := c.runner.Run(ctx, inv)
	if err != nil {
		log.Warnf("git diff in %s failed: %v", dir, err)
		return ""
	}
	return res.Stdout
}
