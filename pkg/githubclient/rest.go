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

package githubclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/go-github/v56/github"
	"github.com/sethvargo/go-retry"

	"github.com/abcxyz/github-graph-miner/pkg/tokenpool"
	"github.com/abcxyz/pkg/logging"
)

// REST wraps one token-bearing go-github client for a single repository.
// It is owned by one worker and not safe for concurrent use.
type REST struct {
	pool  *tokenpool.Pool
	owner string
	name  string

	token   string
	client  *github.Client
	started bool
}

// NewREST creates a stopped REST wrapper bound to the repository.
func NewREST(pool *tokenpool.Pool, owner, name string) *REST {
	return &REST{pool: pool, owner: owner, name: name}
}

// Start acquires a token and builds the client. Starting an already started
// wrapper is a no-op.
func (r *REST) Start(ctx context.Context) error {
	if r.started {
		return nil
	}
	token, err := r.pool.Acquire(ctx, tokenpool.KindREST)
	if err != nil {
		return fmt.Errorf("failed to acquire rest token: %w", err)
	}
	r.token = token
	r.client = github.NewClient(nil).WithAuthToken(token)
	r.started = true
	return nil
}

// Destroy returns the token to the pool, immediately reusable.
func (r *REST) Destroy(ctx context.Context) error {
	return r.destroy(ctx, time.Now())
}

func (r *REST) destroy(ctx context.Context, notBefore time.Time) error {
	if !r.started {
		return nil
	}
	r.started = false
	r.client = nil
	if err := r.pool.Release(tokenpool.KindREST, r.token, notBefore); err != nil {
		return fmt.Errorf("failed to release rest token: %w", err)
	}
	r.token = ""
	return nil
}

// Owner returns the bound repository owner.
func (r *REST) Owner() string { return r.owner }

// Name returns the bound repository name.
func (r *REST) Name() string { return r.name }

// Client returns the underlying go-github client, starting the wrapper if
// needed. The returned client is invalidated by token rotation; fetch it
// again after every Do.
func (r *REST) Client(ctx context.Context) (*github.Client, error) {
	if !r.started {
		if err := r.Start(ctx); err != nil {
			return nil, err
		}
	}
	return r.client, nil
}

// Do runs one REST call against the current client. A rate-limit rejection
// or abuse detection rotates the token and retries once; any other failure
// also gets a single retry after a restart. The remaining budget is checked
// after every successful call.
func (r *REST) Do(ctx context.Context, call func(ctx context.Context, client *github.Client) (*github.Response, error)) error {
	logger := logging.FromContext(ctx)

	backoff := retry.WithMaxRetries(1, retry.NewConstant(time.Second))
	return retry.Do(ctx, backoff, func(ctx context.Context) error { //nolint:wrapcheck
		client, err := r.Client(ctx)
		if err != nil {
			return err
		}
		resp, err := call(ctx, client)
		if err != nil {
			notBefore := time.Now()
			var rateErr *github.RateLimitError
			if errors.As(err, &rateErr) {
				notBefore = rateErr.Rate.Reset.Time
			}
			logger.WarnContext(ctx, "rest call failed, rotating token",
				"owner", r.owner,
				"name", r.name,
				"error", err)
			if derr := r.destroy(ctx, notBefore); derr != nil {
				return fmt.Errorf("failed to rotate rest token: %w", derr)
			}
			return retry.RetryableError(fmt.Errorf("rest call failed: %w", err))
		}
		if resp != nil {
			if berr := r.checkBudget(ctx, resp); berr != nil {
				return berr
			}
		}
		return nil
	})
}

// checkBudget rotates the token when the remaining budget reaches the
// low-water mark, quarantining it until the reported reset instant.
func (r *REST) checkBudget(ctx context.Context, resp *github.Response) error {
	if resp.Rate.Remaining > MinRemaining {
		return nil
	}
	logger := logging.FromContext(ctx)
	logger.InfoContext(ctx, "rest budget exhausted, rotating token",
		"owner", r.owner,
		"name", r.name,
		"remaining", resp.Rate.Remaining,
		"reset_at", resp.Rate.Reset.Time.Format(time.RFC3339))
	if err := r.destroy(ctx, resp.Rate.Reset.Time); err != nil {
		return err
	}
	return r.Start(ctx)
}
