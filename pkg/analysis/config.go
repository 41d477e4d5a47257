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

package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/sethvargo/go-envconfig"

	"github.com/abcxyz/pkg/cfgloader"
	"github.com/abcxyz/pkg/cli"
)

// Config defines the environment variables for running metric queries.
type Config struct {
	DatabaseURI      string `env:"DATABASE_URI,default=neo4j://localhost:7687"`
	DatabaseUsername string `env:"DATABASE_USERNAME"`
	DatabasePassword string `env:"DATABASE_PASSWORD"`
	ProjectID        string `env:"PROJECT_ID"`
}

// Validate validates the analysis config after load.
func (cfg *Config) Validate() error {
	var merr error
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
	var cfg Config
	if err := cfgloader.Load(ctx, &cfg, cfgloader.WithLookuper(envconfig.OsLookuper())); err != nil {
		return nil, fmt.Errorf("failed to parse analysis config: %w", err)
	}
	return &cfg, nil
}

// ToFlags binds the config to the [cli.FlagSet] and returns it.
func (cfg *Config) ToFlags(set *cli.FlagSet) *cli.FlagSet {
	f := set.NewSection("DATABASE OPTIONS")

	f.StringVar(&cli.StringVar{
		Name:    "database-uri",
		Target:  &cfg.DatabaseURI,
		EnvVar:  "DATABASE_URI",
		Default: "neo4j://localhost:7687",
		Usage:   `The graph database connection URI.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "database-username",
		Target: &cfg.DatabaseUsername,
		EnvVar: "DATABASE_USERNAME",
		Usage:  `The graph database username.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "database-password",
		Target: &cfg.DatabasePassword,
		EnvVar: "DATABASE_PASSWORD",
		Usage:  `The graph database password.`,
	})

	a := set.NewSection("ANALYSIS OPTIONS")

	a.StringVar(&cli.StringVar{
		Name:   "project-id",
		Target: &cfg.ProjectID,
		EnvVar: "PROJECT_ID",
		Usage:  `The project to analyze. When omitted, the known projects are listed.`,
	})

	return set
}
