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

import "fmt"

// Commit history metrics anchor on the default branch, which the clone
// records under the remote-qualified name origin/HEAD.

func commitsPerMonthQuery(projectID string) string {
	return fmt.Sprintf(`MATCH (p:Project {id: '%s'})-[:HAS_COMMIT_MONTH]->(pcm:ProjectCommitMonth)<-[:COMMIT_IN_MONTH]-(c:Commit)<-[:CONTAINS_COMMIT]-(b:Branch {name: 'origin/HEAD'})
RETURN pcm.year AS year, pcm.month AS month, COUNT(c) AS commit_count`, projectID)
}

func commitCountByAuthorQuery(projectID string) string {
	return fmt.Sprintf(`MATCH (p:Project {id: '%s'})-[:HAS_COMMIT_MONTH]->(pcm:ProjectCommitMonth)<-[:COMMIT_IN_MONTH]-(c:Commit),
(c)<-[:AUTHOR_OF]-(u:User),
(c)<-[:CONTAINS_COMMIT]-(b:Branch {name: 'origin/HEAD'})
RETURN u.login AS author_login, COUNT(c) AS commit_count
ORDER BY commit_count DESC`, projectID)
}

func avgIssueCloseTimeQuery(projectID string) string {
	return fmt.Sprintf(`MATCH (p:Project {id: '%s'})-[:HAS_ISSUE_MONTH]->(im:ProjectIssueMonth)<-[:ISSUE_IN_MONTH]-(i:Issue),
(i)<-[closes_issue:CLOSES_ISSUE]-(:User),
(i)<-[creates_issue:CREATES_ISSUE]-(:User)
WITH im.year AS year, im.month AS month, duration.between(creates_issue.createdAt, closes_issue.createdAt) AS open_duration
RETURN year, month, AVG(open_duration) AS avg_duration, COUNT(open_duration) AS samples`, projectID)
}

func avgPullRequestCloseTimeQuery(projectID string) string {
	return fmt.Sprintf(`MATCH (p:Project {id: '%s'})-[:HAS_PULL_REQUEST_MONTH]->(prm:ProjectPullRequestMonth)<-[:PULL_REQUEST_IN_MONTH]-(pr:PullRequest),
(pr)-[:HAS_EVENT]->(:PullRequestEvent {__typename: 'ClosedEvent'})<-[cpre:CREATES_PULL_REQUEST_EVENT]-(:User),
(pr)<-[cpr:CREATES_PULL_REQUEST]-(prc:User)
WITH prm.year AS year, prm.month AS month, duration.between(cpr.createdAt, cpre.createdAt) AS open_duration
RETURN year, month, AVG(open_duration) AS avg_duration, COUNT(open_duration) AS samples`, projectID)
}

func avgPullRequestMergeTimeQuery(projectID string) string {
	return fmt.Sprintf(`MATCH (p:Project {id: '%s'})-[:HAS_PULL_REQUEST_MONTH]->(prm:ProjectPullRequestMonth)<-[:PULL_REQUEST_IN_MONTH]-(pr:PullRequest),
(pr)-[:HAS_EVENT]->(:PullRequestEvent {__typename: 'MergedEvent'})<-[cpre:CREATES_PULL_REQUEST_EVENT]-(:User),
(pr)<-[cpr:CREATES_PULL_REQUEST]-(:User)
WITH prm.year AS year, prm.month AS month, duration.between(cpr.createdAt, cpre.createdAt) AS merge_duration
RETURN year, month, AVG(merge_duration) AS avg_duration, COUNT(merge_duration) AS samples`, projectID)
}

func avgIssueResponseTimeQuery(projectID string) string {
	return fmt.Sprintf(`MATCH (:Project {id: '%s'})-[:HAS_ISSUE_MONTH]->(pim:ProjectIssueMonth)<-[:ISSUE_IN_MONTH]-(i:Issue)<-[ci:CREATES_ISSUE]-(:User)
CALL {
    WITH i, ci
    MATCH (i)<-[coi:COMMENTS_ON_ISSUE]-(:User)
    RETURN MIN(duration.between(ci.createdAt, coi.createdAt)) AS response_time
}
RETURN pim.year AS year, pim.month AS month, AVG(response_time) AS avg_duration, COUNT(response_time) AS samples`, projectID)
}

func newIssueAuthorsQuery(projectID string) string {
	return fmt.Sprintf(`MATCH (:Project {id: '%s'})-[im:HAS_ISSUE_MONTH]->(:ProjectIssueMonth)<-[:ISSUE_IN_MONTH]-(i:Issue)<-[:CREATES_ISSUE]-(u:User)
WITH im.date_month AS date_month, COLLECT(DISTINCT u.login) AS usernames
CALL {
    WITH date_month, usernames
    MATCH (:Project {id: '%s'})-[s_im:HAS_ISSUE_MONTH]->(:ProjectIssueMonth)<-[:ISSUE_IN_MONTH]-(s_i:Issue)<-[:CREATES_ISSUE]-(s_u:User)
    WHERE ((s_im.date_month.year * 12) + s_im.date_month.month) < ((date_month.year * 12) + date_month.month)
    RETURN COLLECT(DISTINCT s_u.login) AS previous_usernames
}
RETURN date_month, SIZE(apoc.coll.subtract(usernames, previous_usernames)) AS new_authors_count`, projectID, projectID)
}

func newPullRequestAuthorsQuery(projectID string) string {
	return fmt.Sprintf(`MATCH (:Project {id: '%s'})-[prm:HAS_PULL_REQUEST_MONTH]->(:ProjectPullRequestMonth)<-[:PULL_REQUEST_IN_MONTH]-(pr:PullRequest)<-[:CREATES_PULL_REQUEST]-(u:User)
WITH prm.date_month AS date_month, COLLECT(DISTINCT u.login) AS usernames
CALL {
    WITH date_month, usernames
    MATCH (:Project {id: '%s'})-[s_prm:HAS_PULL_REQUEST_MONTH]->(:ProjectPullRequestMonth)<-[:PULL_REQUEST_IN_MONTH]-(:PullRequest)<-[:CREATES_PULL_REQUEST]-(s_u:User)
    WHERE ((s_prm.date_month.year * 12) + s_prm.date_month.month) < ((date_month.year * 12) + date_month.month)
    RETURN COLLECT(DISTINCT s_u.login) AS previous_usernames
}
RETURN date_month, SIZE(apoc.coll.subtract(usernames, previous_usernames)) AS new_authors_count`, projectID, projectID)
}

func labelUsageQuery(projectID string) string {
	return fmt.Sprintf(`MATCH (:Project {id: '%s'})-[:PROJECT_HAS_LABEL]->(l:Label)
CALL {
    WITH l
    MATCH (l)<-[ihl:ISSUE_HAS_LABEL]-(:Issue)
    RETURN COUNT(ihl) AS issue_label_count
}
CALL {
    WITH l
    MATCH (l)<-[prhl:PULL_REQUEST_HAS_LABEL]-(:PullRequest)
    RETURN COUNT(prhl) AS pull_request_label_count
}
RETURN l.name AS label_name, issue_label_count, pull_request_label_count`, projectID)
}

func closedIssuesQuery(projectID string) string {
	return fmt.Sprintf(`MATCH (:Project {id: '%s'})-[him:HAS_ISSUE_MONTH]->(:ProjectIssueMonth)
WITH him.date_month AS date_month
CALL {
    WITH date_month
    MATCH (:Project {id: '%s'})-[s__him:HAS_ISSUE_MONTH]->(:ProjectIssueMonth)<-[:ISSUE_IN_MONTH]-(s__i:Issue)
    WHERE s__him.date_month <= date_month
    WITH DISTINCT(s__i)
    RETURN COUNT(s__i) AS all_issues
}
CALL {
    WITH date_month
    MATCH (:Project {id: '%s'})-[s_him:HAS_ISSUE_MONTH]->(:ProjectIssueMonth)<-[:ISSUE_IN_MONTH]-(s_i:Issue {state: 'CLOSED'})
    OPTIONAL MATCH (s_i)<-[s_ci:CLOSES_ISSUE]-(:User)
    WITH s_i, CASE WHEN (s_ci IS NOT null) AND (((s_ci.createdAt.year * 12) + s_ci.createdAt.month) <= ((date_month.year * 12) + date_month.month)) THEN True WHEN (s_ci IS null) AND s_him.date_month <= date_month THEN True ELSE False END AS in_time
    WHERE in_time
    WITH DISTINCT(s_i)
    RETURN COUNT(s_i) AS closed_issues
}
RETURN date_month, all_issues - closed_issues AS opened_issues, closed_issues`, projectID, projectID, projectID)
}

func closedPullRequestsQuery(projectID string) string {
	return fmt.Sprintf(`MATCH (:Project {id: '%s'})-[hprm:HAS_PULL_REQUEST_MONTH]->(:ProjectPullRequestMonth)
WITH hprm.date_month AS date_month
CALL {
    WITH date_month
    MATCH (:Project {id: '%s'})-[s__hprm:HAS_PULL_REQUEST_MONTH]->(:ProjectPullRequestMonth)<-[:PULL_REQUEST_IN_MONTH]-(s__pr:PullRequest)
    WHERE ((s__hprm.date_month.year * 12) + s__hprm.date_month.month) <= ((date_month.year * 12) + date_month.month)
    RETURN COUNT(s__pr) AS all_pull_requests
}
CALL {
    WITH date_month
    MATCH (:Project {id: '%s'})-[hprm:HAS_PULL_REQUEST_MONTH]->(:ProjectPullRequestMonth)<-[:PULL_REQUEST_IN_MONTH]-(s_pr:PullRequest)
    OPTIONAL MATCH (s_pr)-[:HAS_EVENT]->(s_pre:PullRequestEvent {__typename: 'ClosedEvent'})<-[s_cpre:CREATES_PULL_REQUEST_EVENT]-(:User)
    WITH CASE
        WHEN s_pre IS NOT null AND s_pr.state <> 'OPEN' AND (((s_cpre.createdAt.year * 12) + s_cpre.createdAt.month) <= ((date_month.year * 12) + date_month.month)) THEN True
        WHEN s_pre IS null AND s_pr.state <> 'OPEN' AND hprm.date_month <= date_month THEN True
        ELSE False END AS is_closed, s_pr
    WITH DISTINCT(s_pr), is_closed
    WHERE is_closed
    RETURN COUNT(is_closed) AS closed_pull_requests
}
RETURN date_month, all_pull_requests - closed_pull_requests AS open_pull_requests, closed_pull_requests`, projectID, projectID, projectID)
}

func issueCommentCountQuery(projectID string) string {
	return fmt.Sprintf(`MATCH (:Project {id: '%s'})-[:HAS_ISSUE_MONTH]->(:ProjectIssueMonth)<-[:ISSUE_IN_MONTH]-(i:Issue)<-[:COMMENTS_ON_ISSUE]-(u:User)
RETURN u.login AS author_login, COUNT(i) AS comment_count`, projectID)
}

func discussionCommentCountQuery(projectID string) string {
	return fmt.Sprintf(`MATCH (p:Project {id: '%s'})-[:PROJECT_HAS_DISCUSSION]->(d:Discussion)-[:HAS_COMMENT]->(dc:DiscussionComment)<-[:CREATES_DISCUSSION_COMMENT]-(u:User)
RETURN u.login AS author_login, COUNT(dc) AS comment_count`, projectID)
}

const listProjectsQuery = `MATCH (p:Project)
RETURN p.id AS project_id, p.name AS project_name`
