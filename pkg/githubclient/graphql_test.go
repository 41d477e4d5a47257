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
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abcxyz/github-graph-miner/pkg/tokenpool"
)

func newTestGraphQL(tb testing.TB, tokens []string, handler http.HandlerFunc) *GraphQL {
	tb.Helper()

	srv := httptest.NewServer(handler)
	tb.Cleanup(srv.Close)

	g := NewGraphQL(tokenpool.New(tokens), "octo", "hello-world")
	g.endpoint = srv.URL
	return g
}

func TestGraphQL_ExecuteWrapsQuery(t *testing.T) {
	t.Parallel()

	var gotQuery string
	g := newTestGraphQL(t, []string{"tok-a"}, func(w http.ResponseWriter, r *http.Request) {
		var req graphQLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		gotQuery = req.Query
		fmt.Fprint(w, `{"data": {"repository": {"labels": {}}, "rateLimit": {"remaining": 4999, "cost": 1, "resetAt": "2026-01-01T00:00:00Z"}}}`)
	})

	ctx := context.Background()
	res, err := g.Execute(ctx, `labels(first: 100) { nodes { id } }`)
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		`repository(owner: "octo", name: "hello-world")`,
		`rateLimit { remaining cost resetAt }`,
		`labels(first: 100)`,
	} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query missing %q:\n%s", want, gotQuery)
		}
	}
	if got, want := res.RateLimit.Remaining, 4999; got != want {
		t.Errorf("remaining = %d, want %d", got, want)
	}
	if string(res.Repository) != `{"labels": {}}` {
		t.Errorf("unexpected repository document: %s", res.Repository)
	}
}

func TestGraphQL_RotatesTokenOnLowBudget(t *testing.T) {
	t.Parallel()

	var seen []string
	g := newTestGraphQL(t, []string{"tok-a", "tok-b"}, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		resetAt := time.Now().Add(-time.Minute).UTC().Format(time.RFC3339)
		fmt.Fprintf(w, `{"data": {"repository": {}, "rateLimit": {"remaining": 10, "cost": 1, "resetAt": %q}}}`, resetAt)
	})

	ctx := context.Background()
	if _, err := g.Execute(ctx, `labels(first: 1) { totalCount }`); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Execute(ctx, `labels(first: 1) { totalCount }`); err != nil {
		t.Fatal(err)
	}

	if len(seen) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(seen))
	}
	if seen[0] == seen[1] {
		t.Errorf("expected a different token after rotation, both calls used %q", seen[0])
	}
}

func TestGraphQL_RetriesOnceOnTransportFailure(t *testing.T) {
	t.Parallel()

	calls := 0
	g := newTestGraphQL(t, []string{"tok-a"}, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"data": {"repository": {}, "rateLimit": {"remaining": 4000, "cost": 1, "resetAt": "2026-01-01T00:00:00Z"}}}`)
	})

	ctx := context.Background()
	if _, err := g.Execute(ctx, `labels(first: 1) { totalCount }`); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestGraphQL_SurfacesGraphQLErrors(t *testing.T) {
	t.Parallel()

	g := newTestGraphQL(t, []string{"tok-a"}, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": {}, "errors": [{"message": "Could not resolve to a Repository"}]}`)
	})

	ctx := context.Background()
	_, err := g.Execute(ctx, `labels(first: 1) { totalCount }`)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "Could not resolve to a Repository") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFactory_AtMostOneClient(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := tokenpool.New([]string{"tok-a"})
	f := NewFactory(pool, "octo", "hello-world")

	if _, err := f.GraphQL(ctx); err != nil {
		t.Fatal(err)
	}
	// With a single token in the pool, switching protocols only works if the
	// factory releases the GraphQL token first.
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := f.REST(ctx2); err != nil {
		t.Fatalf("factory did not release the graphql token: %v", err)
	}
	if err := f.Destroy(ctx); err != nil {
		t.Fatal(err)
	}
}
