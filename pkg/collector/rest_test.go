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

package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-github/v56/github"

	"github.com/abcxyz/github-graph-miner/pkg/record"
)

// fakeREST satisfies restClient with a plain client pointed at a test
// server, without any token lifecycle.
type fakeREST struct {
	client *github.Client
}

func (f *fakeREST) Do(ctx context.Context, call func(ctx context.Context, client *github.Client) (*github.Response, error)) error {
	_, err := call(ctx, f.client)
	return err //nolint:wrapcheck
}

func (f *fakeREST) Owner() string { return "octo" }
func (f *fakeREST) Name() string  { return "hello-world" }

func newTestREST(tb testing.TB, routes map[string]string) *REST {
	tb.Helper()

	mux := http.NewServeMux()
	for path, body := range routes {
		body := body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, body)
		})
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		tb.Errorf("unexpected request: %s", r.URL.Path)
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	tb.Cleanup(srv.Close)

	client := github.NewClient(nil)
	base, err := url.Parse(srv.URL + "/")
	if err != nil {
		tb.Fatal(err)
	}
	client.BaseURL = base
	return NewREST(&fakeREST{client: client})
}

func TestREST_Issue(t *testing.T) {
	t.Parallel()

	c := newTestREST(t, map[string]string{
		"/repos/octo/hello-world/issues/9": `{
			"node_id": "I_9", "number": 9, "title": "crash on start", "body": "trace",
			"state": "open", "locked": false, "created_at": "2024-01-02T03:04:05Z",
			"user": {"node_id": "U_1", "login": "alice"},
			"assignees": [{"node_id": "U_2", "login": "bob"}, {"login": "ghost"}],
			"labels": [{"node_id": "L_1", "name": "bug"}],
			"milestone": {
				"node_id": "M_1", "number": 1, "title": "v1", "state": "open",
				"open_issues": 0, "closed_issues": 0,
				"creator": {"node_id": "U_1", "login": "alice"}
			}
		}`,
		"/repos/octo/hello-world/issues/9/comments": `[
			{"node_id": "IC_1", "body": "same here", "created_at": "2024-01-03T00:00:00Z",
			 "user": {"node_id": "U_2", "login": "bob"}}
		]`,
		"/repos/octo/hello-world/issues/9/timeline": `[
			{"id": 501, "event": "labeled", "created_at": "2024-01-02T04:00:00Z"},
			{"id": 502, "event": "converted_to_discussion", "created_at": "2024-01-04T00:00:00Z"},
			{"id": 503, "event": "closed", "created_at": "2024-01-05T00:00:00Z",
			 "actor": {"node_id": "U_1", "login": "alice"}}
		]`,
	})

	got, err := c.Issue(context.Background(), 9)
	if err != nil {
		t.Fatal(err)
	}

	if got.ID != "I_9" || got.State != "OPEN" {
		t.Errorf("issue = (%s, %s), want (I_9, OPEN)", got.ID, got.State)
	}
	if len(got.Assignees.Nodes) != 1 || got.Assignees.Nodes[0].ID != "U_2" {
		t.Errorf("assignees without node id must be dropped, got %v", got.Assignees.Nodes)
	}
	if got.Milestone == nil {
		t.Fatal("milestone missing")
	}
	if got.Milestone.ProgressPercentage != nil {
		t.Errorf("empty milestone progress = %v, want nil", *got.Milestone.ProgressPercentage)
	}
	wantTimeline := []record.TimelineItem{
		{ID: "502", Typename: "ConvertedToDiscussionEvent", CreatedAt: "2024-01-04T00:00:00Z"},
		{ID: "503", Typename: "ClosedEvent", CreatedAt: "2024-01-05T00:00:00Z",
			Actor: &record.Actor{ID: "U_1", Login: "alice"}},
	}
	if diff := cmp.Diff(wantTimeline, got.TimelineItems.Nodes); diff != "" {
		t.Errorf("timeline diff (-want, +got):\n%s", diff)
	}
	if len(got.Comments.Nodes) != 1 || got.Comments.Nodes[0].ID != "IC_1" {
		t.Errorf("comments = %v, want one IC_1", got.Comments.Nodes)
	}
}

func TestREST_PullRequest(t *testing.T) {
	t.Parallel()

	c := newTestREST(t, map[string]string{
		"/repos/octo/hello-world/pulls/5": `{
			"node_id": "PR_5", "number": 5, "title": "add feature", "body": "",
			"state": "closed", "draft": true, "created_at": "2024-02-01T00:00:00Z",
			"merged_at": "2024-02-03T00:00:00Z",
			"user": {"node_id": "U_1", "login": "alice"},
			"base": {"ref": "main", "sha": "aaa111",
				"repo": {"node_id": "R_1", "url": "https://api.github.com/repos/octo/hello-world"}},
			"head": {"ref": "feature", "sha": "bbb222",
				"repo": {"node_id": "R_1", "url": "https://api.github.com/repos/octo/hello-world"}},
			"requested_reviewers": [{"node_id": "U_3", "login": "carol"}],
			"assignees": [{"node_id": "U_2", "login": "bob"}],
			"labels": [{"node_id": "L_2", "name": "feature"}],
			"milestone": {
				"node_id": "M_1", "number": 1, "title": "v1", "state": "open",
				"open_issues": 1, "closed_issues": 3
			}
		}`,
		"/repos/octo/hello-world/issues/5/comments": `[]`,
		"/repos/octo/hello-world/issues/5/timeline": `[
			{"id": 601, "event": "merged", "commit_id": "ccc333",
			 "created_at": "2024-02-03T00:00:00Z",
			 "actor": {"node_id": "U_1", "login": "alice"}}
		]`,
		"/repos/octo/hello-world/pulls/5/reviews": `[
			{"id": 900, "node_id": "REV_900", "state": "approved", "body": "lgtm",
			 "submitted_at": "2024-02-02T00:00:00Z", "commit_id": "bbb222",
			 "user": {"node_id": "U_3", "login": "carol"}}
		]`,
		"/repos/octo/hello-world/pulls/5/comments": `[
			{"id": 1001, "node_id": "RC_1001", "pull_request_review_id": 900,
			 "body": "nit", "path": "main.go", "commit_id": "bbb222",
			 "original_commit_id": "bbb222", "created_at": "2024-02-02T00:00:00Z",
			 "user": {"node_id": "U_3", "login": "carol"}},
			{"id": 1002, "node_id": "RC_1002", "pull_request_review_id": 900,
			 "in_reply_to_id": 1001,
			 "body": "done", "path": "main.go", "commit_id": "bbb222",
			 "original_commit_id": "bbb222", "created_at": "2024-02-02T01:00:00Z",
			 "user": {"node_id": "U_1", "login": "alice"}},
			{"id": 1003, "node_id": "RC_1003", "pull_request_review_id": 900,
			 "in_reply_to_id": 9999,
			 "body": "stale reply", "path": "main.go", "commit_id": "bbb222",
			 "original_commit_id": "bbb222", "created_at": "2024-02-02T02:00:00Z",
			 "user": {"node_id": "U_1", "login": "alice"}}
		]`,
		"/repos/octo/hello-world/pulls/5/files": `[
			{"sha": "f1", "filename": "main.go", "status": "modified",
			 "additions": 10, "deletions": 2, "changes": 12, "patch": "@@ -1 +1 @@"}
		]`,
	})

	got, err := c.PullRequest(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}

	if got.ID != "PR_5" || got.State != "CLOSED" || !got.IsDraft {
		t.Errorf("pull request = (%s, %s, draft: %t)", got.ID, got.State, got.IsDraft)
	}
	if got.BaseRepository == nil || got.BaseRepository.ID != "R_1" {
		t.Errorf("base repository = %v, want R_1", got.BaseRepository)
	}
	if got.BaseRefName != "main" || got.HeadRefOid != "bbb222" {
		t.Errorf("refs = (%s, %s), want (main, bbb222)", got.BaseRefName, got.HeadRefOid)
	}
	if got.Milestone == nil || got.Milestone.ProgressPercentage == nil {
		t.Fatal("milestone progress missing")
	}
	if *got.Milestone.ProgressPercentage != 75 {
		t.Errorf("milestone progress = %v, want 75", *got.Milestone.ProgressPercentage)
	}

	if len(got.TimelineItems.Nodes) != 1 {
		t.Fatalf("timeline = %v, want one merged event", got.TimelineItems.Nodes)
	}
	merged := got.TimelineItems.Nodes[0]
	if merged.Typename != "MergedEvent" || merged.Commit == nil || merged.Commit.Oid != "ccc333" {
		t.Errorf("merged event = %+v", merged)
	}

	if len(got.Reviews.Nodes) != 1 {
		t.Fatalf("reviews = %v, want one", got.Reviews.Nodes)
	}
	review := got.Reviews.Nodes[0]
	if review.ID != "REV_900" || review.State != "APPROVED" {
		t.Errorf("review = (%s, %s)", review.ID, review.State)
	}
	if len(review.Comments.Nodes) != 3 {
		t.Fatalf("review comments = %d, want 3", len(review.Comments.Nodes))
	}
	byID := make(map[string]record.ReviewComment)
	for _, comment := range review.Comments.Nodes {
		byID[comment.ID] = comment
	}
	if byID["RC_1001"].ReplyTo != nil {
		t.Errorf("RC_1001 replyTo = %v, want nil", byID["RC_1001"].ReplyTo)
	}
	if byID["RC_1002"].ReplyTo == nil || byID["RC_1002"].ReplyTo.ID != "RC_1001" {
		t.Errorf("RC_1002 replyTo = %v, want RC_1001", byID["RC_1002"].ReplyTo)
	}
	// A reply to a comment outside the collected set is dropped.
	if byID["RC_1003"].ReplyTo != nil {
		t.Errorf("RC_1003 replyTo = %v, want nil", byID["RC_1003"].ReplyTo)
	}

	// The refetched files carry exactly the fields of the paged file shape,
	// with the change type uppercased, so the records hash identically.
	wantFiles := []record.PullRequestFile{
		{Path: "main.go", ChangeType: "MODIFIED", Additions: 10, Deletions: 2},
	}
	if diff := cmp.Diff(wantFiles, got.Files.Nodes); diff != "" {
		t.Errorf("files diff (-want, +got):\n%s", diff)
	}
}

func TestREST_SBOM(t *testing.T) {
	t.Parallel()

	c := newTestREST(t, map[string]string{
		"/repos/octo/hello-world/dependency-graph/sbom": `{
			"sbom": {
				"packages": [
					{"name": "npm:left-pad", "versionInfo": "1.3.0", "licenseDeclared": "MIT"},
					{"name": "go:golang.org/x/sync", "versionInfo": "0.5.0"}
				]
			}
		}`,
	})

	got, err := c.SBOM(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []*record.SBOMPackage{
		{Name: "npm:left-pad", VersionInfo: "1.3.0", LicenseDeclared: "MIT"},
		{Name: "go:golang.org/x/sync", VersionInfo: "0.5.0"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("sbom diff (-want, +got):\n%s", diff)
	}
}
