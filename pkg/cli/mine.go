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

package cli

import (
	"context"
	"fmt"

	"github.com/abcxyz/pkg/cli"
	"github.com/abcxyz/pkg/logging"

	"github.com/abcxyz/github-graph-miner/pkg/loader"
	"github.com/abcxyz/github-graph-miner/pkg/pipeline"
	"github.com/abcxyz/github-graph-miner/pkg/tokenpool"
	"github.com/abcxyz/github-graph-miner/pkg/version"
)

var _ cli.Command = (*MineCommand)(nil)

// The MineCommand mines every repository in the configured list into the
// graph database, running up to the configured number of workers.
type MineCommand struct {
	cli.BaseCommand

	cfg *pipeline.Config

	// testFlagSetOpts is only used for testing.
	testFlagSetOpts []cli.Option
}

func (c *MineCommand) Desc() string {
	return `Mine the configured repositories into the graph database`
}

func (c *MineCommand) Help() string {
	return `
Usage: {{ COMMAND }} [options]

  Mine every repository in the repository list: clone it, collect its data
  through the GitHub APIs, and bulk-load the property graph into the
  database.
`
}

func (c *MineCommand) Flags() *cli.FlagSet {
	c.cfg = &pipeline.Config{}
	set := cli.NewFlagSet(c.testFlagSetOpts...)
	return c.cfg.ToFlags(set)
}

func (c *MineCommand) Run(ctx context.Context, args []string) error {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	args = f.Args()
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %q", args)
	}

	logger := logging.FromContext(ctx)
	logger.DebugContext(ctx, "running command",
		"name", version.Name,
		"commit", version.Commit,
		"version", version.Version)

	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	repos, err := pipeline.LoadRepositoryList(c.cfg.RepositoryList)
	if err != nil {
		return fmt.Errorf("failed to load repository list: %w", err)
	}
	logger.InfoContext(ctx, "loaded repository list",
		"repositories", len(repos),
		"threads", c.cfg.Threads)

	db, err := loader.New(ctx, c.cfg.DatabaseURI, c.cfg.DatabaseUsername, c.cfg.DatabasePassword)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := db.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "failed to close database connection", "error", err)
		}
	}()

	tokens := tokenpool.New(c.cfg.GitHubTokens)
	pool := pipeline.NewPool(c.cfg, tokens, db)
	if err := pool.Run(ctx, repos); err != nil {
		return fmt.Errorf("mining failed: %w", err)
	}
	return nil
}
