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

// Package querytree composes the repository selection of one GraphQL round
// from a chosen set of secondary roots, tracks each root's cursor, and scans
// returned documents for records whose nested pages overflowed.
package querytree

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RootKind names a secondary root inside repository(owner, name){…}.
type RootKind string

const (
	RootLabels       RootKind = "labels"
	RootReleases     RootKind = "releases"
	RootDiscussions  RootKind = "discussions"
	RootIssues       RootKind = "issues"
	RootPullRequests RootKind = "pullRequests"
	RootWatchers     RootKind = "watchers"
	RootStargazers   RootKind = "stargazers"
)

// Default page sizes per root. Changing them changes only throughput.
var defaultPageSizes = map[RootKind]int{
	RootLabels:       100,
	RootReleases:     100,
	RootDiscussions:  30,
	RootIssues:       30,
	RootPullRequests: 15,
	RootWatchers:     50,
	RootStargazers:   50,
}

var rootSelections = map[RootKind]string{
	RootLabels:       labelFields,
	RootReleases:     releaseSelection,
	RootDiscussions:  discussionSelection,
	RootIssues:       issueSelection,
	RootPullRequests: pullRequestSelection,
	RootWatchers:     userSelection,
	RootStargazers:   userSelection,
}

// Root is the cursor state of one secondary root.
type Root struct {
	kind        RootKind
	pageSize    int
	cursor      string
	hasNextPage bool
	first       bool
}

// NewRoot creates a root with its default page size, ready for its first
// execution.
func NewRoot(kind RootKind) *Root {
	return &Root{
		kind:     kind,
		pageSize: defaultPageSizes[kind],
		first:    true,
	}
}

// Kind returns the root's kind.
func (r *Root) Kind() RootKind { return r.kind }

// Done reports whether the root has no further pages.
func (r *Root) Done() bool { return !r.first && !r.hasNextPage }

// fragment renders the root's selection for the next round.
func (r *Root) fragment() string {
	args := fmt.Sprintf("first: %d", r.pageSize)
	if !r.first && r.cursor != "" {
		args += ", after: " + strconv.Quote(r.cursor)
	}
	return fmt.Sprintf("%s(%s) {\nnodes {\n%s\n}\ntotalCount\n%s\n}",
		r.kind, args, rootSelections[r.kind], pageInfoSelection)
}

// Tree drives the multi-root pagination loop.
type Tree struct {
	roots      []*Root
	exceptions map[RootKind]struct{}
}

// NewTree creates a tree over the given roots. Roots named in exceptions do
// not keep the loop alive: the tree is finished as soon as every
// non-exception root is exhausted.
func NewTree(kinds []RootKind, exceptions []RootKind) *Tree {
	t := &Tree{exceptions: make(map[RootKind]struct{}, len(exceptions))}
	for _, k := range kinds {
		t.roots = append(t.roots, NewRoot(k))
	}
	for _, k := range exceptions {
		t.exceptions[k] = struct{}{}
	}
	return t
}

// Finished reports whether every non-exception root is exhausted.
func (t *Tree) Finished() bool {
	for _, r := range t.roots {
		if _, excepted := t.exceptions[r.kind]; excepted {
			continue
		}
		if !r.Done() {
			return false
		}
	}
	return true
}

// Query renders the inner repository selection for the next round, covering
// only roots that still have pages. Returns false when no root is active.
func (t *Tree) Query() (string, bool) {
	var fragments []string
	for _, r := range t.roots {
		if r.Done() {
			continue
		}
		fragments = append(fragments, r.fragment())
	}
	if len(fragments) == 0 {
		return "", false
	}
	return strings.Join(fragments, "\n"), true
}

// Parse consumes the raw repository document of one round: it advances every
// active root's cursor from its pageInfo and scans each returned record for
// nested overflow, returning the partially-collected record numbers per root.
func (t *Tree) Parse(repository []byte) (map[RootKind][]int, error) {
	var doc map[string]any
	if err := json.Unmarshal(repository, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode repository document: %w", err)
	}

	partial := make(map[RootKind][]int)
	for _, r := range t.roots {
		if r.Done() {
			continue
		}
		rootDoc, ok := doc[string(r.kind)].(map[string]any)
		if !ok {
			// The server returned nothing for this root; stop paging it.
			r.first = false
			r.hasNextPage = false
			continue
		}
		r.first = false
		r.hasNextPage = false
		if pi, ok := rootDoc["pageInfo"].(map[string]any); ok {
			if c, ok := pi["endCursor"].(string); ok {
				r.cursor = c
			}
			if h, ok := pi["hasNextPage"].(bool); ok {
				r.hasNextPage = h
			}
		}
		nodes, _ := rootDoc["nodes"].([]any)
		for _, n := range nodes {
			item, ok := n.(map[string]any)
			if !ok {
				continue
			}
			if !hasNestedNextPage(item) {
				continue
			}
			if num, ok := item["number"].(float64); ok {
				partial[r.kind] = append(partial[r.kind], int(num))
			}
		}
	}
	return partial, nil
}

// hasNestedNextPage walks the record looking for any pageInfo reporting
// hasNextPage: true. The record's own pageInfo is not in scope here; callers
// pass individual nodes.
func hasNestedNextPage(v any) bool {
	switch value := v.(type) {
	case map[string]any:
		if pi, ok := value["pageInfo"].(map[string]any); ok {
			if h, ok := pi["hasNextPage"].(bool); ok && h {
				return true
			}
		}
		for _, child := range value {
			if hasNestedNextPage(child) {
				return true
			}
		}
	case []any:
		for _, child := range value {
			if hasNestedNextPage(child) {
				return true
			}
		}
	}
	return false
}

// DiscussionQuery renders the selection fetching one discussion with a
// specific comment page. An empty cursor requests the first page.
func DiscussionQuery(number int, commentCursor string) string {
	args := "first: 100"
	if commentCursor != "" {
		args += ", after: " + strconv.Quote(commentCursor)
	}
	return fmt.Sprintf(`discussion(number: %d) {
%s
comments(%s) {
  nodes {
    %s
    replies(first: 100) {
      nodes { %s }
      %s
    }
  }
  %s
}
}`, number, discussionCoreSelection, args, discussionCommentFields, discussionCommentFields, pageInfoSelection, pageInfoSelection)
}

// discussionCoreSelection is the discussion selection without its comments
// connection, used by the per-discussion continuation query.
const discussionCoreSelection = `id number title body closed closedAt createdAt upvoteCount
category { name }
author { ` + actorSelection + ` }
labels(first: 50) {
  nodes { ` + labelFields + ` }
  ` + pageInfoSelection + `
}`
