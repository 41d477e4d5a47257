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

// Package pipeline schedules repository workers: each worker mines one
// repository end-to-end, from clone and API collection through the bulk
// database load.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/sethvargo/go-envconfig"

	"github.com/abcxyz/pkg/cfgloader"
	"github.com/abcxyz/pkg/cli"
)

// Config defines the set of environment variables required for running the
// mining pipeline.
type Config struct {
	Threads                int      `env:"THREADS,default=1"`
	GitHubTokens           []string `env:"GITHUB_TOKENS"`
	RepositoryList         string   `env:"REPOSITORY_LIST,default=repository_list.txt"`
	DataDir                string   `env:"DATA_DIR"`
	CloneDir               string   `env:"CLONE_DIR"`
	CommitContent          bool     `env:"COMMIT_CONTENT"`
	PullRequestFileContent bool     `env:"PULL_REQUEST_FILE_CONTENT"`
	DatabaseURI            string   `env:"DATABASE_URI,default=neo4j://localhost:7687"`
	DatabaseUsername       string   `env:"DATABASE_USERNAME"`
	DatabasePassword       string   `env:"DATABASE_PASSWORD"`
}

// Validate validates the pipeline config after load.
func (cfg *Config) Validate() error {
	var merr error
	if cfg.Threads <= 0 {
		merr = errors.Join(merr, fmt.Errorf("THREADS is required to be a positive integer"))
	}

	if len(cfg.GitHubTokens) == 0 {
		merr = errors.Join(merr, fmt.Errorf("GITHUB_TOKENS is required"))
	}

	if cfg.RepositoryList == "" {
		merr = errors.Join(merr, fmt.Errorf("REPOSITORY_LIST is required"))
	}

	if cfg.DataDir == "" {
		merr = errors.Join(merr, fmt.Errorf("DATA_DIR is required"))
	}

	if cfg.CloneDir == "" {
		merr = errors.Join(merr, fmt.Errorf("CLONE_DIR is required"))
	}

	if cfg.DatabaseURI == "" {
		merr = errors.Join(merr, fmt.Errorf("DATABASE_URI is required"))
	}

	if cfg.DatabaseUsername == "" {
		merr = errors.Join(merr, fmt.Errorf("DATABASE_USERNAME is required"))
	}

	if cfg.DatabasePassword == "" {
		merr = errors.Join(merr, fmt.Errorf("DATABASE_PASSWORD is required"))
	}

	return merr
}

// NewConfig creates a new Config from environment variables.
func NewConfig(ctx context.Context) (*Config, error) {
	return newConfig(ctx, envconfig.OsLookuper())
}

func newConfig(ctx context.Context, lu envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := cfgloader.Load(ctx, &cfg, cfgloader.WithLookuper(lu)); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline config: %w", err)
	}
	return &cfg, nil
}

// ToFlags binds the config to the [cli.FlagSet] and returns it.
func (cfg *Config) ToFlags(set *cli.FlagSet) *cli.FlagSet {
	f := set.NewSection("PIPELINE OPTIONS")

	f.IntVar(&cli.IntVar{
		Name:    "threads",
		Target:  &cfg.Threads,
		EnvVar:  "THREADS",
		Default: 1,
		Usage:   `The maximum number of concurrent repository workers.`,
	})

	f.StringSliceVar(&cli.StringSliceVar{
		Name:   "github-tokens",
		Target: &cfg.GitHubTokens,
		EnvVar: "GITHUB_TOKENS",
		Usage:  `The GitHub personal access tokens shared by all workers.`,
	})

	f.StringVar(&cli.StringVar{
		Name:    "repository-list",
		Target:  &cfg.RepositoryList,
		EnvVar:  "REPOSITORY_LIST",
		Default: "repository_list.txt",
		Usage:   `The path to the newline-delimited list of repository URLs to mine.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "data-dir",
		Target: &cfg.DataDir,
		EnvVar: "DATA_DIR",
		Usage:  `The directory for intermediate CSV files. The database must read it as its import directory.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "clone-dir",
		Target: &cfg.CloneDir,
		EnvVar: "CLONE_DIR",
		Usage:  `The directory for temporary repository clones.`,
	})

	f.BoolVar(&cli.BoolVar{
		Name:   "commit-content",
		Target: &cfg.CommitContent,
		EnvVar: "COMMIT_CONTENT",
		Usage:  `Store textual commit diffs for relevant file types.`,
	})

	f.BoolVar(&cli.BoolVar{
		Name:   "pull-request-file-content",
		Target: &cfg.PullRequestFileContent,
		EnvVar: "PULL_REQUEST_FILE_CONTENT",
		Usage:  `Capture pull request file patches through the REST API.`,
	})

	d := set.NewSection("DATABASE OPTIONS")

	d.StringVar(&cli.StringVar{
		Name:    "database-uri",
		Target:  &cfg.DatabaseURI,
		EnvVar:  "DATABASE_URI",
		Default: "neo4j://localhost:7687",
		Usage:   `The graph database connection URI.`,
	})

	d.StringVar(&cli.StringVar{
		Name:   "database-username",
		Target: &cfg.DatabaseUsername,
		EnvVar: "DATABASE_USERNAME",
		Usage:  `The graph database username.`,
	})

	d.StringVar(&cli.StringVar{
		Name:   "database-password",
		Target: &cfg.DatabasePassword,
		EnvVar: "DATABASE_PASSWORD",
		Usage:  `The graph database password.`,
	})

	return set
}
