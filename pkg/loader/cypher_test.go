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

package loader

import (
	"strings"
	"testing"

	"github.com/abcxyz/github-graph-miner/pkg/graph"
)

func TestPropertyFragment(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		prop graph.Property
		want string
	}{
		{
			name: "string",
			prop: graph.Property{Name: "title", Type: graph.TypeString},
			want: "title: CASE row.title WHEN null THEN '' ELSE row.title END",
		},
		{
			name: "integer",
			prop: graph.Property{Name: "number", Type: graph.TypeInteger},
			want: "number: CASE row.number WHEN null THEN toInteger('-1') WHEN '' THEN toInteger('-1') ELSE toInteger(row.number) END",
		},
		{
			name: "float",
			prop: graph.Property{Name: "progressPercentage", Type: graph.TypeFloat},
			want: "progressPercentage: CASE row.progressPercentage WHEN null THEN toFloat('-1') WHEN '' THEN toFloat('-1') ELSE toFloat(row.progressPercentage) END",
		},
		{
			name: "boolean",
			prop: graph.Property{Name: "locked", Type: graph.TypeBoolean},
			want: "locked: CASE row.locked WHEN 'True' THEN true WHEN 'False' THEN false ELSE false END",
		},
		{
			name: "datetime",
			prop: graph.Property{Name: "createdAt", Type: graph.TypeDatetime},
			want: "createdAt: CASE row.createdAt WHEN null THEN datetime('0001-01-01T01:01:01Z') WHEN '' THEN datetime('0001-01-01T01:01:01Z') ELSE datetime(row.createdAt) END",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := propertyFragment(tc.prop); got != tc.want {
				t.Errorf("propertyFragment = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNodeInsertQuery(t *testing.T) {
	t.Parallel()

	// Per-repository kinds are created, shared kinds merged.
	create := nodeInsertQuery(graph.NodeIssue, "file:///x_Issue.csv")
	if !strings.Contains(create, "CREATE (:Issue {") {
		t.Errorf("issue query uses wrong operator:\n%s", create)
	}
	if !strings.Contains(create, "LOAD CSV WITH HEADERS FROM 'file:///x_Issue.csv' AS row") {
		t.Errorf("issue query misses load clause:\n%s", create)
	}
	if !strings.Contains(create, "IN TRANSACTIONS OF 300 ROWS") {
		t.Errorf("issue query misses batching:\n%s", create)
	}

	merge := nodeInsertQuery(graph.NodeUser, "file:///x_User.csv")
	if !strings.Contains(merge, "MERGE (:User {") {
		t.Errorf("user query uses wrong operator:\n%s", merge)
	}
}

func TestRelInsertQuery(t *testing.T) {
	t.Parallel()

	withProps := relInsertQuery(graph.RelCreatesIssue, "file:///x_CREATES_ISSUE.csv")
	for _, want := range []string{
		"MATCH (s:User {id: row.source_id})",
		"MATCH (d:Issue {id: row.destination_id})",
		"CREATE (s)-[:CREATES_ISSUE {createdAt:",
	} {
		if !strings.Contains(withProps, want) {
			t.Errorf("query misses %q:\n%s", want, withProps)
		}
	}

	bare := relInsertQuery(graph.RelParentOfCommit, "file:///x_PARENT_OF.csv")
	for _, want := range []string{
		"MATCH (s:Commit {hash: row.source_id})",
		"MATCH (d:Commit {hash: row.destination_id})",
		"CREATE (s)-[:PARENT_OF]->(d)",
	} {
		if !strings.Contains(bare, want) {
			t.Errorf("query misses %q:\n%s", want, bare)
		}
	}
}

func TestIndexQueries(t *testing.T) {
	t.Parallel()

	queries := indexQueries()
	set := make(map[string]struct{}, len(queries))
	for _, q := range queries {
		set[q] = struct{}{}
	}

	for _, want := range []string{
		"CREATE INDEX Commit_indices IF NOT EXISTS FOR (n:Commit) ON (n.hash)",
		"CREATE INDEX Issue_createdAt_indices IF NOT EXISTS FOR (n:Issue) ON (n.createdAt)",
		"CREATE INDEX AUTHOR_OF_authoredAt_indices IF NOT EXISTS FOR ()-[r:AUTHOR_OF]-() ON (r.authoredAt)",
	} {
		if _, ok := set[want]; !ok {
			t.Errorf("index queries miss %q", want)
		}
	}
}

func TestCrossLinkQuery(t *testing.T) {
	t.Parallel()

	q := crossLinkQuery("R_1")
	for _, want := range []string{
		"MATCH (p:Project {id: 'R_1'})",
		"apoc.path.subgraphAll",
		"apoc.text.regexGroups(n.message",
		"LINKS_PULL_REQUEST",
		"LINKS_ISSUE",
		`CASE g[1] WHEN null THEN "NO_ACTION"`,
	} {
		if !strings.Contains(q, want) {
			t.Errorf("cross link query misses %q", want)
		}
	}
}

func TestMergedFileQuery(t *testing.T) {
	t.Parallel()

	q := mergedFileQuery("R_1")
	for _, want := range []string{
		"PullRequestEvent {__typename: 'MergedEvent'}",
		"WHERE f.path = prf.path",
		"CREATE (prf)-[:FILE_AFTER_MERGE]->(f)",
	} {
		if !strings.Contains(q, want) {
			t.Errorf("merged file query misses %q", want)
		}
	}
}
