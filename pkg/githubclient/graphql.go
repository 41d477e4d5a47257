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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/abcxyz/github-graph-miner/pkg/record"
	"github.com/abcxyz/github-graph-miner/pkg/tokenpool"
	"github.com/abcxyz/pkg/logging"
)

// MinRemaining is the low-water mark of remaining API budget. At or below
// it the current token is quarantined until its reported reset instant.
const MinRemaining = 50

// courtesyDelay is slept after every GraphQL call.
const courtesyDelay = 500 * time.Millisecond

const defaultGraphQLEndpoint = "https://api.github.com/graphql"

// Result is the decoded envelope of one GraphQL execution.
type Result struct {
	Repository json.RawMessage
	RateLimit  record.RateLimit
}

// GraphQL wraps one token-bearing GraphQL transport for a single repository.
// It is owned by one worker and not safe for concurrent use.
type GraphQL struct {
	pool     *tokenpool.Pool
	owner    string
	name     string
	endpoint string

	token   string
	client  *http.Client
	started bool
}

// NewGraphQL creates a stopped GraphQL wrapper bound to the repository.
func NewGraphQL(pool *tokenpool.Pool, owner, name string) *GraphQL {
	return &GraphQL{
		pool:     pool,
		owner:    owner,
		name:     name,
		endpoint: defaultGraphQLEndpoint,
	}
}

// Start acquires a token and builds the transport. Starting an already
// started wrapper is a no-op.
func (g *GraphQL) Start(ctx context.Context) error {
	if g.started {
		return nil
	}
	token, err := g.pool.Acquire(ctx, tokenpool.KindGraphQL)
	if err != nil {
		return fmt.Errorf("failed to acquire graphql token: %w", err)
	}
	g.token = token
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	g.client = oauth2.NewClient(ctx, ts)
	g.started = true
	return nil
}

// Destroy returns the token to the pool, immediately reusable.
func (g *GraphQL) Destroy(ctx context.Context) error {
	return g.destroy(ctx, time.Now())
}

func (g *GraphQL) destroy(ctx context.Context, notBefore time.Time) error {
	if !g.started {
		return nil
	}
	g.started = false
	g.client = nil
	if err := g.pool.Release(tokenpool.KindGraphQL, g.token, notBefore); err != nil {
		return fmt.Errorf("failed to release graphql token: %w", err)
	}
	g.token = ""
	return nil
}

// V4Client returns a githubv4 client sharing this wrapper's transport, for
// queries with a static shape.
func (g *GraphQL) V4Client() *githubv4.Client {
	return githubv4.NewClient(g.client)
}

// Execute wraps the inner selection in the repository and rateLimit envelope
// and dispatches it.
func (g *GraphQL) Execute(ctx context.Context, inner string) (*Result, error) {
	query := fmt.Sprintf("query {\nrepository(owner: %s, name: %s) {\n%s\n}\nrateLimit { remaining cost resetAt }\n}",
		strconv.Quote(g.owner), strconv.Quote(g.name), inner)
	return g.ExecuteRaw(ctx, query)
}

// ExecuteRaw dispatches the query verbatim; it must include a rateLimit
// block. A transport failure triggers one transparent restart-and-retry
// cycle; low remaining budget rotates the token after the call.
func (g *GraphQL) ExecuteRaw(ctx context.Context, query string) (*Result, error) {
	logger := logging.FromContext(ctx)

	var result *Result
	backoff := retry.WithMaxRetries(1, retry.NewConstant(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		res, err := g.post(ctx, query)
		if err != nil {
			logger.WarnContext(ctx, "graphql call failed, restarting client",
				"owner", g.owner,
				"name", g.name,
				"error", err)
			if derr := g.Destroy(ctx); derr != nil {
				return fmt.Errorf("failed to restart graphql client: %w", derr)
			}
			if serr := g.Start(ctx); serr != nil {
				return fmt.Errorf("failed to restart graphql client: %w", serr)
			}
			return retry.RetryableError(err)
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("graphql execution failed: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("graphql execution interrupted: %w", ctx.Err())
	case <-time.After(courtesyDelay):
	}

	if err := g.CheckBudget(ctx, result.RateLimit.Remaining, result.RateLimit.ResetAt); err != nil {
		return nil, err
	}
	return result, nil
}

// CheckBudget rotates the token when the remaining budget reaches the
// low-water mark, quarantining it until resetAt.
func (g *GraphQL) CheckBudget(ctx context.Context, remaining int, resetAt string) error {
	if remaining > MinRemaining {
		return nil
	}
	logger := logging.FromContext(ctx)
	notBefore := time.Now()
	if t, err := time.Parse(time.RFC3339, resetAt); err == nil {
		notBefore = t
	}
	logger.InfoContext(ctx, "graphql budget exhausted, rotating token",
		"owner", g.owner,
		"name", g.name,
		"remaining", remaining,
		"reset_at", resetAt)
	if err := g.destroy(ctx, notBefore); err != nil {
		return err
	}
	return g.Start(ctx)
}

type graphQLRequest struct {
	Query string `json:"query"`
}

type graphQLResponse struct {
	Data struct {
		Repository json.RawMessage  `json:"repository"`
		RateLimit  record.RateLimit `json:"rateLimit"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (g *GraphQL) post(ctx context.Context, query string) (*Result, error) {
	if !g.started {
		if err := g.Start(ctx); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(&graphQLRequest{Query: query})
	if err != nil {
		return nil, fmt.Errorf("failed to encode graphql request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graphql request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read graphql response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("graphql returned status %d: %s", resp.StatusCode, string(raw))
	}

	var decoded graphQLResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode graphql response: %w", err)
	}
	if len(decoded.Errors) > 0 {
		return nil, fmt.Errorf("graphql returned errors: %s", decoded.Errors[0].Message)
	}
	return &Result{
		Repository: decoded.Data.Repository,
		RateLimit:  decoded.Data.RateLimit,
	}, nil
}
