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

// Package githubclient holds the token-bearing GraphQL and REST wrappers and
// the per-worker factory that keeps at most one of them alive at a time.
package githubclient

import (
	"context"
	"errors"

	"github.com/abcxyz/github-graph-miner/pkg/tokenpool"
)

// Factory hands out clients for one repository while holding at most one
// token. Requesting one protocol destroys the client of the other, so a
// worker never pins two tokens.
type Factory struct {
	graphql *GraphQL
	rest    *REST
}

// NewFactory creates a factory bound to the repository.
func NewFactory(pool *tokenpool.Pool, owner, name string) *Factory {
	return &Factory{
		graphql: NewGraphQL(pool, owner, name),
		rest:    NewREST(pool, owner, name),
	}
}

// GraphQL returns a started GraphQL wrapper, destroying the REST wrapper
// first when it holds a token.
func (f *Factory) GraphQL(ctx context.Context) (*GraphQL, error) {
	if err := f.rest.Destroy(ctx); err != nil {
		return nil, err
	}
	if err := f.graphql.Start(ctx); err != nil {
		return nil, err
	}
	return f.graphql, nil
}

// REST returns a started REST wrapper, destroying the GraphQL wrapper first
// when it holds a token.
func (f *Factory) REST(ctx context.Context) (*REST, error) {
	if err := f.graphql.Destroy(ctx); err != nil {
		return nil, err
	}
	if err := f.rest.Start(ctx); err != nil {
		return nil, err
	}
	return f.rest, nil
}

// Destroy releases whichever client still holds a token.
func (f *Factory) Destroy(ctx context.Context) error {
	return errors.Join(f.graphql.Destroy(ctx), f.rest.Destroy(ctx))
}
