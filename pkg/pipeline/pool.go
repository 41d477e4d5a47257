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
	"time"

	"github.com/abcxyz/pkg/logging"

	"github.com/abcxyz/github-graph-miner/pkg/loader"
	"github.com/abcxyz/github-graph-miner/pkg/tokenpool"
)

// DefaultReapInterval is how often the pool looks for finished workers.
const DefaultReapInterval = 15 * time.Second

// Pool schedules one worker per repository with a global concurrency cap.
// The token pool is the only state the workers share.
type Pool struct {
	cfg          *Config
	tokens       *tokenpool.Pool
	db           *loader.Loader
	reapInterval time.Duration
	run          func(ctx context.Context, repo Repository) error
}

// PoolOption tunes pool behavior.
type PoolOption func(*Pool)

// WithReapInterval overrides the finished-worker polling interval.
func WithReapInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.reapInterval = d }
}

// withRunFunc substitutes the per-repository work, for tests.
func withRunFunc(run func(ctx context.Context, repo Repository) error) PoolOption {
	return func(p *Pool) { p.run = run }
}

// NewPool creates a pool over a shared token pool and database connection.
func NewPool(cfg *Config, tokens *tokenpool.Pool, db *loader.Loader, opts ...PoolOption) *Pool {
	p := &Pool{
		cfg:          cfg,
		tokens:       tokens,
		db:           db,
		reapInterval: DefaultReapInterval,
	}
	p.run = func(ctx context.Context, repo Repository) error {
		return NewWorker(p.cfg, p.tokens, p.db, repo.Owner, repo.Name).Run(ctx)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run mines every repository, keeping at most Threads workers in flight.
// A failed repository is logged and never blocks the rest of the queue.
func (p *Pool) Run(ctx context.Context, repos []Repository) error {
	logger := logging.FromContext(ctx)

	queue := make([]Repository, len(repos))
	copy(queue, repos)

	var inFlight []chan struct{}
	for len(queue) > 0 || len(inFlight) > 0 {
		if len(inFlight) < p.cfg.Threads && len(queue) > 0 {
			next := queue[0]
			queue = queue[1:]
			logger.InfoContext(ctx, "starting repository worker",
				"repository", next.Owner+"/"+next.Name)

			done := make(chan struct{})
			go func() {
				defer close(done)
				if err := p.run(ctx, next); err != nil {
					logger.ErrorContext(ctx, "repository worker failed",
						"repository", next.Owner+"/"+next.Name,
						"error", err)
				}
			}()
			inFlight = append(inFlight, done)
			continue
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("pool interrupted: %w", ctx.Err())
		case <-time.After(p.reapInterval):
		}

		kept := inFlight[:0]
		for _, done := range inFlight {
			select {
			case <-done:
			default:
				kept = append(kept, done)
			}
		}
		inFlight = kept
	}
	return nil
}
