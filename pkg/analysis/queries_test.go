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
	"strings"
	"testing"
)

func TestQueriesScopeToProject(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		query string
		wants []string
	}{
		{
			name:  "commits_per_month",
			query: commitsPerMonthQuery("R_1"),
			wants: []string{"Project {id: 'R_1'}", "Branch {name: 'origin/HEAD'}", "COUNT(c)"},
		},
		{
			name:  "commit_count_by_author",
			query: commitCountByAuthorQuery("R_1"),
			wants: []string{"[:AUTHOR_OF]", "ORDER BY commit_count DESC"},
		},
		{
			name:  "avg_issue_close_time",
			query: avgIssueCloseTimeQuery("R_1"),
			wants: []string{"duration.between(creates_issue.createdAt, closes_issue.createdAt)", "AVG(open_duration)"},
		},
		{
			name:  "avg_issue_response_time",
			query: avgIssueResponseTimeQuery("R_1"),
			wants: []string{"MIN(duration.between(ci.createdAt, coi.createdAt))"},
		},
		{
			name:  "avg_pull_request_merge_time",
			query: avgPullRequestMergeTimeQuery("R_1"),
			wants: []string{"PullRequestEvent {__typename: 'MergedEvent'}"},
		},
		{
			name:  "new_issue_authors",
			query: newIssueAuthorsQuery("R_1"),
			wants: []string{"apoc.coll.subtract(usernames, previous_usernames)"},
		},
		{
			name:  "label_usage",
			query: labelUsageQuery("R_1"),
			wants: []string{"[:PROJECT_HAS_LABEL]", "ISSUE_HAS_LABEL", "PULL_REQUEST_HAS_LABEL"},
		},
		{
			name:  "closed_issues",
			query: closedIssuesQuery("R_1"),
			wants: []string{"Issue {state: 'CLOSED'}", "all_issues - closed_issues AS opened_issues"},
		},
		{
			name:  "closed_pull_requests",
			query: closedPullRequestsQuery("R_1"),
			wants: []string{"s_pr.state <> 'OPEN'", "closed_pull_requests"},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			for _, want := range tc.wants {
				if !strings.Contains(tc.query, want) {
					t.Errorf("query misses %q:\n%s", want, tc.query)
				}
			}
		})
	}
}
