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

// Package record defines the unified record model shared by the GraphQL and
// REST collectors. Field names and nesting mirror the GraphQL schema; the
// REST collector maps its responses onto the same structs so that downstream
// processors never know which source produced a record.
package record

// PageInfo carries the cursor state of one connection.
type PageInfo struct {
	EndCursor   string `json:"endCursor"`
	HasNextPage bool   `json:"hasNextPage"`
}

// Connection is a paginated list of nodes.
type Connection[T any] struct {
	Nodes      []T      `json:"nodes"`
	PageInfo   PageInfo `json:"pageInfo"`
	TotalCount int      `json:"totalCount"`
}

// Actor is a user reference as it appears on authored content.
type Actor struct {
	ID        string `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
}

// CommitRef is a bare commit reference.
type CommitRef struct {
	Oid string `json:"oid"`
}

// RepoRef is a bare repository reference.
type RepoRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Ref is a bare node-id reference.
type Ref struct {
	ID string `json:"id"`
}

// Label is a repository label.
type Label struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
}

// Language is a programming language detected in the repository.
type Language struct {
	Name string `json:"name"`
}

// TopicEdge wraps a repository topic.
type TopicEdge struct {
	Topic Topic `json:"topic"`
}

// Topic is a repository topic.
type Topic struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// License is the declared repository license.
type License struct {
	SpdxID string `json:"spdxId"`
}

// Owner is the repository owner: either a user or an organization. The
// typename discriminates; organization fields are aliased in the project
// query so both shapes can live in one struct.
type Owner struct {
	Typename string `json:"__typename"`

	// User shape.
	ID        string `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`

	// Organization shape.
	OrgID             string `json:"orgId"`
	OrgLogin          string `json:"orgLogin"`
	OrgName           string `json:"orgName"`
	OrganizationEmail string `json:"organizationEmail"`
	OrgDescription    string `json:"orgDescription"`
}

// IsOrganization reports whether the owner is an organization.
func (o *Owner) IsOrganization() bool {
	return o.Typename == "Organization" || (o.OrgID != "" && o.ID == "")
}

// Project is the repository metadata document.
type Project struct {
	ID               string                `json:"id"`
	URL              string                `json:"url"`
	Name             string                `json:"name"`
	Description      string                `json:"description"`
	IsArchived       bool                  `json:"isArchived"`
	ArchivedAt       string                `json:"archivedAt"`
	IsMirror         bool                  `json:"isMirror"`
	MirrorURL        string                `json:"mirrorUrl"`
	IsLocked         bool                  `json:"isLocked"`
	LockReason       string                `json:"lockReason"`
	DiskUsage        int                   `json:"diskUsage"`
	Visibility       string                `json:"visibility"`
	ForkingAllowed   bool                  `json:"forkingAllowed"`
	HasWikiEnabled   bool                  `json:"hasWikiEnabled"`
	Languages        Connection[Language]  `json:"languages"`
	RepositoryTopics Connection[TopicEdge] `json:"repositoryTopics"`
	LicenseInfo      *License              `json:"licenseInfo"`
	Owner            *Owner                `json:"owner"`
	CreatedAt        string                `json:"createdAt"`
}

// Milestone groups issues and pull requests toward a target.
type Milestone struct {
	ID                 string   `json:"id"`
	Number             int      `json:"number"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	DueOn              string   `json:"dueOn"`
	ClosedAt           string   `json:"closedAt"`
	CreatedAt          string   `json:"createdAt"`
	State              string   `json:"state"`
	ProgressPercentage *float64 `json:"progressPercentage"`
	Creator            *Actor   `json:"creator"`
}

// Comment is an issue or pull request comment.
type Comment struct {
	ID        string `json:"id"`
	Body      string `json:"body"`
	CreatedAt string `json:"createdAt"`
	Author    *Actor `json:"author"`
}

// TimelineItem is a typed timeline event. Only MergedEvent, ClosedEvent and
// ConvertedToDiscussionEvent are requested.
type TimelineItem struct {
	Typename  string     `json:"__typename"`
	ID        string     `json:"id"`
	CreatedAt string     `json:"createdAt"`
	Actor     *Actor     `json:"actor"`
	Commit    *CommitRef `json:"commit"`
}

// Issue is one repository issue with its nested collections.
type Issue struct {
	ID               string                   `json:"id"`
	Number           int                      `json:"number"`
	Title            string                   `json:"title"`
	Body             string                   `json:"body"`
	State            string                   `json:"state"`
	Locked           bool                     `json:"locked"`
	ActiveLockReason string                   `json:"activeLockReason"`
	CreatedAt        string                   `json:"createdAt"`
	Author           *Actor                   `json:"author"`
	Milestone        *Milestone               `json:"milestone"`
	Assignees        Connection[Actor]        `json:"assignees"`
	Labels           Connection[Label]        `json:"labels"`
	Comments         Connection[Comment]      `json:"comments"`
	TimelineItems    Connection[TimelineItem] `json:"timelineItems"`
}

// ReviewComment is a pull request review comment. RawID carries the
// REST-scoped numeric id used for reply rewriting; GraphQL records leave it
// nil.
type ReviewComment struct {
	ID                string     `json:"id"`
	RawID             *int64     `json:"rawId"`
	Body              string     `json:"body"`
	CreatedAt         string     `json:"createdAt"`
	DiffHunk          string     `json:"diffHunk"`
	Path              string     `json:"path"`
	StartLine         *int       `json:"startLine"`
	OriginalStartLine *int       `json:"originalStartLine"`
	Line              *int       `json:"line"`
	OriginalLine      *int       `json:"originalLine"`
	Author            *Actor     `json:"author"`
	ReplyTo           *Ref       `json:"replyTo"`
	Commit            *CommitRef `json:"commit"`
	OriginalCommit    *CommitRef `json:"originalCommit"`
}

// Review is a pull request review with its comments.
type Review struct {
	ID          string                    `json:"id"`
	State       string                    `json:"state"`
	Body        string                    `json:"body"`
	SubmittedAt string                    `json:"submittedAt"`
	CreatedAt   string                    `json:"createdAt"`
	Author      *Actor                    `json:"author"`
	Commit      *CommitRef                `json:"commit"`
	Comments    Connection[ReviewComment] `json:"comments"`
}

// ReviewRequest is a pending review request.
type ReviewRequest struct {
	RequestedReviewer *Actor `json:"requestedReviewer"`
}

// PullRequestFile is one changed file of a pull request. Sha, Changes and
// Patch are only populated by the REST pass.
type PullRequestFile struct {
	Path       string `json:"path"`
	ChangeType string `json:"changeType"`
	Additions  int    `json:"additions"`
	Deletions  int    `json:"deletions"`
	Sha        string `json:"sha"`
	Changes    *int   `json:"changes"`
	Patch      string `json:"patch"`
}

// PullRequest is one pull request with its nested collections.
type PullRequest struct {
	ID               string                      `json:"id"`
	Number           int                         `json:"number"`
	Title            string                      `json:"title"`
	Body             string                      `json:"body"`
	State            string                      `json:"state"`
	IsDraft          bool                        `json:"isDraft"`
	Locked           bool                        `json:"locked"`
	ActiveLockReason string                      `json:"activeLockReason"`
	CreatedAt        string                      `json:"createdAt"`
	MergedAt         string                      `json:"mergedAt"`
	BaseRepository   *RepoRef                    `json:"baseRepository"`
	HeadRepository   *RepoRef                    `json:"headRepository"`
	BaseRefOid       string                      `json:"baseRefOid"`
	BaseRefName      string                      `json:"baseRefName"`
	HeadRefOid       string                      `json:"headRefOid"`
	HeadRefName      string                      `json:"headRefName"`
	Author           *Actor                      `json:"author"`
	Milestone        *Milestone                  `json:"milestone"`
	ReviewRequests   Connection[ReviewRequest]   `json:"reviewRequests"`
	Assignees        Connection[Actor]           `json:"assignees"`
	Labels           Connection[Label]           `json:"labels"`
	Comments         Connection[Comment]         `json:"comments"`
	TimelineItems    Connection[TimelineItem]    `json:"timelineItems"`
	Reviews          Connection[Review]          `json:"reviews"`
	Files            Connection[PullRequestFile] `json:"files"`
}

// DiscussionComment is one discussion comment with its replies.
type DiscussionComment struct {
	ID          string                        `json:"id"`
	Body        string                        `json:"body"`
	CreatedAt   string                        `json:"createdAt"`
	UpvoteCount int                           `json:"upvoteCount"`
	IsAnswer    bool                          `json:"isAnswer"`
	Author      *Actor                        `json:"author"`
	Replies     Connection[DiscussionComment] `json:"replies"`
}

// DiscussionCategory names the forum category of a discussion.
type DiscussionCategory struct {
	Name string `json:"name"`
}

// Discussion is one repository discussion.
type Discussion struct {
	ID          string                        `json:"id"`
	Number      int                           `json:"number"`
	Title       string                        `json:"title"`
	Body        string                        `json:"body"`
	Closed      bool                          `json:"closed"`
	ClosedAt    string                        `json:"closedAt"`
	CreatedAt   string                        `json:"createdAt"`
	UpvoteCount int                           `json:"upvoteCount"`
	Category    DiscussionCategory            `json:"category"`
	Author      *Actor                        `json:"author"`
	Labels      Connection[Label]             `json:"labels"`
	Comments    Connection[DiscussionComment] `json:"comments"`
}

// Release is one repository release.
type Release struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	TagName      string     `json:"tagName"`
	CreatedAt    string     `json:"createdAt"`
	PublishedAt  string     `json:"publishedAt"`
	IsDraft      bool       `json:"isDraft"`
	IsPrerelease bool       `json:"isPrerelease"`
	Author       *Actor     `json:"author"`
	TagCommit    *CommitRef `json:"tagCommit"`
}

// Repository is the envelope of one multi-root GraphQL round. Only the roots
// requested in that round are non-nil.
type Repository struct {
	Labels       *Connection[Label]       `json:"labels"`
	Releases     *Connection[Release]     `json:"releases"`
	Discussions  *Connection[Discussion]  `json:"discussions"`
	Issues       *Connection[Issue]       `json:"issues"`
	PullRequests *Connection[PullRequest] `json:"pullRequests"`
	Watchers     *Connection[Actor]       `json:"watchers"`
	Stargazers   *Connection[Actor]       `json:"stargazers"`
}

// RateLimit is the API budget snapshot attached to every GraphQL query.
type RateLimit struct {
	Remaining int    `json:"remaining"`
	Cost      int    `json:"cost"`
	ResetAt   string `json:"resetAt"`
}

// CommitComment is a comment on a commit, fetched via REST.
type CommitComment struct {
	ID        string `json:"id"`
	Body      string `json:"body"`
	Path      string `json:"path"`
	Position  *int   `json:"position"`
	Line      *int   `json:"line"`
	CreatedAt string `json:"createdAt"`
	User      *Actor `json:"user"`
}

// CommitMeta is the REST commit metadata: author, committer and comments.
// Commit content itself comes from the local clone.
type CommitMeta struct {
	Hash        string          `json:"hash"`
	AuthoredAt  string          `json:"authoredAt"`
	Author      *Actor          `json:"author"`
	CommittedAt string          `json:"committedAt"`
	Committer   *Actor          `json:"committer"`
	Comments    []CommitComment `json:"commitComments"`
}

// WorkflowRun is one run of a workflow.
type WorkflowRun struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	Conclusion      string `json:"conclusion"`
	CreatedAt       string `json:"createdAt"`
	StartedAt       string `json:"startedAt"`
	Attempts        int    `json:"attempts"`
	HeadCommit      string `json:"headCommit"`
	Actor           *Actor `json:"actor"`
	TriggeringActor *Actor `json:"triggeringActor"`
}

// Workflow is a CI workflow definition with its runs.
type Workflow struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	ConfigPath string        `json:"configPath"`
	CreatedAt  string        `json:"createdAt"`
	State      string        `json:"state"`
	Runs       []WorkflowRun `json:"workflowRuns"`
}

// SBOMPackage is one dependency from the repository's SBOM.
type SBOMPackage struct {
	Name            string `json:"name"`
	VersionInfo     string `json:"versionInfo"`
	LicenseDeclared string `json:"licenseDeclared"`
}

// PullRequestFileAction is one changed file of a pull request including its
// patch text, fetched via REST when content capture is enabled.
type PullRequestFileAction struct {
	PullRequestID string `json:"pullRequestId"`
	Sha           string `json:"sha"`
	Path          string `json:"path"`
	ChangeType    string `json:"changeType"`
	Additions     int    `json:"additions"`
	Deletions     int    `json:"deletions"`
	Changes       int    `json:"changes"`
	Patch         string `json:"patch"`
}
