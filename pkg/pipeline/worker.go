// Copyright 2024 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"context"
	"fmt"

	"github.com/abcxyz/pkg/logging"

	"github.com/abcxyz/github-graph-miner/pkg/collector"
	"github.com/abcxyz/github-graph-miner/pkg/gitclone"
	"github.com/abcxyz/github-graph-miner/pkg/githubclient"
	"github.com/abcxyz/github-graph-miner/pkg/loader"
	"github.com/abcxyz/github-graph-miner/pkg/process"
	"github.com/abcxyz/github-graph-miner/pkg/querytree"
	"github.com/abcxyz/github-graph-miner/pkg/record"
	"github.com/abcxyz/github-graph-miner/pkg/storage"
	"github.com/abcxyz/github-graph-miner/pkg/tokenpool"
)

// Worker mines one repository end-to-end: clone, API collection, CSV
// staging, and the bulk database load. A worker is sequential, the pool is
// the only source of parallelism.
type Worker struct {
	cfg    *Config
	tokens *tokenpool.Pool
	db     *loader.Loader
	owner  string
	name   string
}

// NewWorker creates a worker for one repository.
func NewWorker(cfg *Config, tokens *tokenpool.Pool, db *loader.Loader, owner, name string) *Worker {
	return &Worker{
		cfg:    cfg,
		tokens: tokens,
		db:     db,
		owner:  owner,
		name:   name,
	}
}

// Run executes the full pipeline for the worker's repository. A failing
// collection phase is logged and skipped, leaving a partial graph. Clone,
// file-system, and database errors abort the repository.
func (w *Worker) Run(ctx context.Context) error {
	logger := logging.FromContext(ctx)

	s := storage.New(w.owner, w.name, w.cfg.DataDir)
	if err := s.DeleteFiles(); err != nil {
		return fmt.Errorf("failed to delete stale intermediate files: %w", err)
	}

	clone, err := gitclone.New(ctx, w.owner, w.name, w.cfg.CloneDir, w.cfg.CommitContent)
	if err != nil {
		return fmt.Errorf("failed to clone repository: %w", err)
	}
	defer func() {
		if err := clone.Cleanup(); err != nil {
			logger.ErrorContext(ctx, "failed to remove repository clone", "error", err)
		}
	}()

	factory := githubclient.NewFactory(w.tokens, w.owner, w.name)
	defer func() {
		if err := factory.Destroy(ctx); err != nil {
			logger.ErrorContext(ctx, "failed to return api tokens", "error", err)
		}
	}()

	gql, err := factory.GraphQL(ctx)
	if err != nil {
		return fmt.Errorf("failed to start graphql client: %w", err)
	}
	gc := collector.NewGraphQL(gql, w.owner, w.name)

	// Every later phase hangs records off the project id, so this fetch is
	// the one collection step that must succeed.
	project, err := gc.Project(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch project metadata: %w", err)
	}
	var procOpts []process.Option
	if w.cfg.PullRequestFileContent {
		procOpts = append(procOpts, process.WithDeferredPullRequestFiles())
	}
	proc := process.New(s, project.ID, procOpts...)
	if err := proc.Project(project); err != nil {
		return fmt.Errorf("failed to process project: %w", err)
	}

	var partialIssues, partialPullRequests []int

	w.phase(ctx, "commits", func(ctx context.Context) error {
		return clone.Commits(proc.Commit)
	})
	w.phase(ctx, "file actions", func(ctx context.Context) error {
		return clone.FileActions(ctx, proc.FileAction)
	})
	w.phase(ctx, "branches", func(ctx context.Context) error {
		return clone.Branches(proc.Branch)
	})

	w.phase(ctx, "issues", func(ctx context.Context) error {
		tree := querytree.NewTree([]querytree.RootKind{querytree.RootIssues}, nil)
		partial, err := gc.Rounds(ctx, tree, func(page *record.Repository) error {
			if page.Issues == nil {
				return nil
			}
			for i := range page.Issues.Nodes {
				if err := proc.Issue(&page.Issues.Nodes[i]); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		partialIssues = partial[querytree.RootIssues]
		return nil
	})

	w.phase(ctx, "pull requests", func(ctx context.Context) error {
		tree := querytree.NewTree([]querytree.RootKind{querytree.RootPullRequests}, nil)
		partial, err := gc.Rounds(ctx, tree, func(page *record.Repository) error {
			if page.PullRequests == nil {
				return nil
			}
			for i := range page.PullRequests.Nodes {
				if err := proc.PullRequest(&page.PullRequests.Nodes[i]); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		partialPullRequests = partial[querytree.RootPullRequests]
		return nil
	})

	w.phase(ctx, "discussions", func(ctx context.Context) error {
		tree := querytree.NewTree([]querytree.RootKind{querytree.RootDiscussions}, nil)
		partial, err := gc.Rounds(ctx, tree, func(page *record.Repository) error {
			if page.Discussions == nil {
				return nil
			}
			for i := range page.Discussions.Nodes {
				if err := proc.Discussion(&page.Discussions.Nodes[i]); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		// Discussions with overflowing comment lists are re-fetched page by
		// page, the storage dedup collapses the repeated core record.
		for _, number := range partial[querytree.RootDiscussions] {
			cursor := ""
			for {
				d, err := gc.Discussion(ctx, number, cursor)
				if err != nil {
					return err
				}
				if err := proc.Discussion(d); err != nil {
					return err
				}
				if !d.Comments.PageInfo.HasNextPage {
					break
				}
				cursor = d.Comments.PageInfo.EndCursor
			}
		}
		return nil
	})

	w.phase(ctx, "stargazers and watchers", func(ctx context.Context) error {
		tree := querytree.NewTree([]querytree.RootKind{querytree.RootStargazers, querytree.RootWatchers}, nil)
		_, err := gc.Rounds(ctx, tree, func(page *record.Repository) error {
			if page.Stargazers != nil {
				if err := proc.Stargazers(page.Stargazers.Nodes); err != nil {
					return err
				}
			}
			if page.Watchers != nil {
				if err := proc.Watchers(page.Watchers.Nodes); err != nil {
					return err
				}
			}
			return nil
		})
		return err
	})

	w.phase(ctx, "releases", func(ctx context.Context) error {
		tree := querytree.NewTree([]querytree.RootKind{querytree.RootReleases}, nil)
		_, err := gc.Rounds(ctx, tree, func(page *record.Repository) error {
			if page.Releases == nil {
				return nil
			}
			for i := range page.Releases.Nodes {
				if err := proc.Release(&page.Releases.Nodes[i]); err != nil {
					return err
				}
			}
			return nil
		})
		return err
	})

	w.phase(ctx, "labels", func(ctx context.Context) error {
		tree := querytree.NewTree([]querytree.RootKind{querytree.RootLabels}, nil)
		_, err := gc.Rounds(ctx, tree, func(page *record.Repository) error {
			if page.Labels == nil {
				return nil
			}
			return proc.Labels(page.Labels.Nodes)
		})
		return err
	})

	rest, err := factory.REST(ctx)
	if err != nil {
		return fmt.Errorf("failed to start rest client: %w", err)
	}
	rc := collector.NewREST(rest)

	w.phase(ctx, "remaining issues", func(ctx context.Context) error {
		for _, number := range partialIssues {
			issue, err := rc.Issue(ctx, number)
			if err != nil {
				return err
			}
			if err := proc.Issue(issue); err != nil {
				return err
			}
		}
		return nil
	})

	w.phase(ctx, "remaining pull requests", func(ctx context.Context) error {
		for _, number := range partialPullRequests {
			pr, err := rc.PullRequest(ctx, number)
			if err != nil {
				return err
			}
			if err := proc.PullRequest(pr); err != nil {
				return err
			}
		}
		return nil
	})

	w.phase(ctx, "dependencies", func(ctx context.Context) error {
		packages, err := rc.SBOM(ctx)
		if err != nil {
			return err
		}
		return proc.Dependencies(packages)
	})

	w.phase(ctx, "commit metadata", func(ctx context.Context) error {
		return rc.Commits(ctx, proc.CommitMeta)
	})

	if w.cfg.PullRequestFileContent {
		w.phase(ctx, "pull request files", func(ctx context.Context) error {
			var actions []*record.PullRequestFileAction
			if err := rc.PullRequestFileActions(ctx, func(a *record.PullRequestFileAction) error {
				actions = append(actions, a)
				return nil
			}); err != nil {
				return err
			}
			return proc.PullRequestFileActions(actions)
		})
	}

	w.phase(ctx, "workflows", func(ctx context.Context) error {
		workflows, err := rc.Workflows(ctx)
		if err != nil {
			return err
		}
		for _, workflow := range workflows {
			if err := proc.Workflow(workflow); err != nil {
				return err
			}
		}
		return nil
	})

	// Return the token before the load, the database phase does not call
	// the API anymore.
	if err := factory.Destroy(ctx); err != nil {
		logger.ErrorContext(ctx, "failed to return api tokens", "error", err)
	}

	if err := s.Flush(); err != nil {
		return fmt.Errorf("failed to flush intermediate files: %w", err)
	}
	if err := w.db.Insert(ctx, s, project.ID); err != nil {
		return fmt.Errorf("failed to load repository graph: %w", err)
	}
	if err := s.DeleteFiles(); err != nil {
		return fmt.Errorf("failed to delete intermediate files: %w", err)
	}

	logger.InfoContext(ctx, "finished repository",
		"repository", w.owner+"/"+w.name,
		"project_id", project.ID)
	return nil
}

// phase runs one collection step. Collection errors degrade the repository
// to a partial graph instead of aborting it.
func (w *Worker) phase(ctx context.Context, name string, fn func(context.Context) error) {
	logger := logging.FromContext(ctx)
	logger.InfoContext(ctx, "collecting",
		"repository", w.owner+"/"+w.name,
		"phase", name)
	if err := fn(ctx); err != nil {
		logger.ErrorContext(ctx, "collection phase failed, continuing with partial data",
			"repository", w.owner+"/"+w.name,
			"phase", name,
			"error", err)
	}
}
