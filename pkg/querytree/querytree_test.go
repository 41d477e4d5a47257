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

package querytree

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTree_QueryCoversOnlyActiveRoots(t *testing.T) {
	t.Parallel()

	tree := NewTree([]RootKind{RootIssues, RootLabels}, nil)

	query, ok := tree.Query()
	if !ok {
		t.Fatal("Query returned no active roots on first round")
	}
	if !strings.Contains(query, "issues(first: 30)") {
		t.Errorf("query missing issues root:\n%s", query)
	}
	if !strings.Contains(query, "labels(first: 100)") {
		t.Errorf("query missing labels root:\n%s", query)
	}

	// Exhaust labels, keep issues paging.
	repository := `{
		"issues": {
			"nodes": [],
			"pageInfo": {"endCursor": "CUR_1", "hasNextPage": true}
		},
		"labels": {
			"nodes": [],
			"pageInfo": {"endCursor": "", "hasNextPage": false}
		}
	}`
	if _, err := tree.Parse([]byte(repository)); err != nil {
		t.Fatal(err)
	}

	query, ok = tree.Query()
	if !ok {
		t.Fatal("Query returned no active roots while issues still pages")
	}
	if strings.Contains(query, "labels(") {
		t.Errorf("query still covers exhausted labels root:\n%s", query)
	}
	if !strings.Contains(query, `issues(first: 30, after: "CUR_1")`) {
		t.Errorf("query missing issues cursor:\n%s", query)
	}
	if tree.Finished() {
		t.Error("tree finished while issues still pages")
	}
}

func TestTree_ParseDetectsPartiallyCollected(t *testing.T) {
	t.Parallel()

	tree := NewTree([]RootKind{RootPullRequests}, nil)

	repository := `{
		"pullRequests": {
			"nodes": [
				{
					"number": 7,
					"comments": {"nodes": [], "pageInfo": {"endCursor": "x", "hasNextPage": true}}
				},
				{
					"number": 8,
					"comments": {"nodes": [], "pageInfo": {"endCursor": "", "hasNextPage": false}},
					"reviews": {
						"nodes": [
							{"comments": {"nodes": [], "pageInfo": {"hasNextPage": true}}}
						],
						"pageInfo": {"hasNextPage": false}
					}
				},
				{
					"number": 9,
					"comments": {"nodes": [], "pageInfo": {"hasNextPage": false}}
				}
			],
			"pageInfo": {"endCursor": "", "hasNextPage": false}
		}
	}`

	partial, err := tree.Parse([]byte(repository))
	if err != nil {
		t.Fatal(err)
	}

	want := map[RootKind][]int{RootPullRequests: {7, 8}}
	if diff := cmp.Diff(want, partial); diff != "" {
		t.Errorf("partially-collected diff (-want, +got):\n%s", diff)
	}
	if !tree.Finished() {
		t.Error("tree not finished after final page")
	}
}

func TestTree_ExceptionsDoNotKeepLoopAlive(t *testing.T) {
	t.Parallel()

	tree := NewTree([]RootKind{RootIssues, RootWatchers}, []RootKind{RootWatchers})

	repository := `{
		"issues": {
			"nodes": [],
			"pageInfo": {"endCursor": "", "hasNextPage": false}
		},
		"watchers": {
			"nodes": [],
			"pageInfo": {"endCursor": "W", "hasNextPage": true}
		}
	}`
	if _, err := tree.Parse([]byte(repository)); err != nil {
		t.Fatal(err)
	}

	if !tree.Finished() {
		t.Error("tree kept alive by exception root")
	}
}

func TestDiscussionQuery(t *testing.T) {
	t.Parallel()

	q := DiscussionQuery(42, "")
	if !strings.Contains(q, "discussion(number: 42)") {
		t.Errorf("query missing discussion number:\n%s", q)
	}
	if !strings.Contains(q, "comments(first: 100)") {
		t.Errorf("first page must carry no cursor:\n%s", q)
	}

	q = DiscussionQuery(42, "CUR")
	if !strings.Contains(q, `comments(first: 100, after: "CUR")`) {
		t.Errorf("query missing comment cursor:\n%s", q)
	}
}
