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
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v56/github"

	"github.com/abcxyz/github-graph-miner/pkg/record"
)

// restClient is the slice of the token-bearing REST wrapper the collector
// needs; tests substitute a plain client behind it.
type restClient interface {
	Do(ctx context.Context, call func(ctx context.Context, client *github.Client) (*github.Response, error)) error
	Owner() string
	Name() string
}

// REST collects records through the REST API, mapping responses onto the
// same record shapes the GraphQL collector produces.
type REST struct {
	client restClient
}

// NewREST creates a collector over an already constructed wrapper.
func NewREST(client restClient) *REST {
	return &REST{client: client}
}

// Issue re-fetches one issue with all of its nested collections.
func (c *REST) Issue(ctx context.Context, number int) (*record.Issue, error) {
	owner, name := c.client.Owner(), c.client.Name()

	var issue *github.Issue
	if err := c.client.Do(ctx, func(ctx context.Context, gh *github.Client) (*github.Response, error) {
		got, resp, err := gh.Issues.Get(ctx, owner, name, number)
		if err == nil {
			issue = got
		}
		return resp, err
	}); err != nil {
		return nil, fmt.Errorf("failed to fetch issue %d: %w", number, err)
	}

	out := &record.Issue{
		ID:               issue.GetNodeID(),
		Number:           issue.GetNumber(),
		Title:            issue.GetTitle(),
		Body:             issue.GetBody(),
		State:            strings.ToUpper(issue.GetState()),
		Locked:           issue.GetLocked(),
		ActiveLockReason: issue.GetActiveLockReason(),
		CreatedAt:        timestampString(issue.GetCreatedAt()),
		Author:           actorFromUser(issue.User),
		Milestone:        milestoneFrom(issue.Milestone),
	}
	for _, assignee := range issue.Assignees {
		if assignee.GetNodeID() == "" {
			continue
		}
		out.Assignees.Nodes = append(out.Assignees.Nodes, *actorFromUser(assignee))
	}
	for _, label := range issue.Labels {
		out.Labels.Nodes = append(out.Labels.Nodes, record.Label{
			ID:   label.GetNodeID(),
			Name: label.GetName(),
		})
	}

	comments, err := c.issueComments(ctx, number)
	if err != nil {
		return nil, err
	}
	out.Comments.Nodes = comments

	timeline, err := c.timeline(ctx, number)
	if err != nil {
		return nil, err
	}
	out.TimelineItems.Nodes = timeline

	return out, nil
}

// PullRequest re-fetches one pull request with all of its nested
// collections. Review comment reply references are rewritten from numeric
// REST ids to node ids; references to comments outside the collected set
// are dropped.
func (c *REST) PullRequest(ctx context.Context, number int) (*record.PullRequest, error) {
	owner, name := c.client.Owner(), c.client.Name()

	var pr *github.PullRequest
	if err := c.client.Do(ctx, func(ctx context.Context, gh *github.Client) (*github.Response, error) {
		got, resp, err := gh.PullRequests.Get(ctx, owner, name, number)
		if err == nil {
			pr = got
		}
		return resp, err
	}); err != nil {
		return nil, fmt.Errorf("failed to fetch pull request %d: %w", number, err)
	}

	out := &record.PullRequest{
		ID:               pr.GetNodeID(),
		Number:           pr.GetNumber(),
		Title:            pr.GetTitle(),
		Body:             pr.GetBody(),
		State:            strings.ToUpper(pr.GetState()),
		IsDraft:          pr.GetDraft(),
		Locked:           pr.GetLocked(),
		ActiveLockReason: pr.GetActiveLockReason(),
		CreatedAt:        timestampString(pr.GetCreatedAt()),
		MergedAt:         timestampString(pr.GetMergedAt()),
		Author:           actorFromUser(pr.User),
		Milestone:        milestoneFrom(pr.Milestone),
	}
	if base := pr.GetBase(); base != nil {
		out.BaseRefOid = base.GetSHA()
		out.BaseRefName = base.GetRef()
		if repo := base.GetRepo(); repo != nil {
			out.BaseRepository = &record.RepoRef{ID: repo.GetNodeID(), URL: repo.GetURL()}
		}
	}
	if head := pr.GetHead(); head != nil {
		out.HeadRefOid = head.GetSHA()
		out.HeadRefName = head.GetRef()
		if repo := head.GetRepo(); repo != nil {
			out.HeadRepository = &record.RepoRef{ID: repo.GetNodeID(), URL: repo.GetURL()}
		}
	}
	for _, reviewer := range pr.RequestedReviewers {
		if reviewer.GetNodeID() == "" {
			continue
		}
		out.ReviewRequests.Nodes = append(out.ReviewRequests.Nodes, record.ReviewRequest{
			RequestedReviewer: actorFromUser(reviewer),
		})
	}
	for _, assignee := range pr.Assignees {
		if assignee.GetNodeID() == "" {
			continue
		}
		out.Assignees.Nodes = append(out.Assignees.Nodes, *actorFromUser(assignee))
	}
	for _, label := range pr.Labels {
		out.Labels.Nodes = append(out.Labels.Nodes, record.Label{
			ID:   label.GetNodeID(),
			Name: label.GetName(),
		})
	}

	comments, err := c.issueComments(ctx, number)
	if err != nil {
		return nil, err
	}
	out.Comments.Nodes = comments

	timeline, err := c.timeline(ctx, number)
	if err != nil {
		return nil, err
	}
	out.TimelineItems.Nodes = timeline

	reviews, err := c.reviews(ctx, number)
	if err != nil {
		return nil, err
	}
	out.Reviews.Nodes = reviews

	files, err := c.pullRequestFiles(ctx, number)
	if err != nil {
		return nil, err
	}
	out.Files.Nodes = files

	return out, nil
}

// Commits streams the REST metadata of every commit: author, committer and
// comments. Comments are fetched only for commits that report at least one.
func (c *REST) Commits(ctx context.Context, fn func(*record.CommitMeta) error) error {
	owner, name := c.client.Owner(), c.client.Name()

	var commits []*github.RepositoryCommit
	if err := c.paginate(ctx, func(ctx context.Context, gh *github.Client, opts github.ListOptions) (*github.Response, error) {
		got, resp, err := gh.Repositories.ListCommits(ctx, owner, name, &github.CommitsListOptions{ListOptions: opts})
		if err == nil {
			commits = append(commits, got...)
		}
		return resp, err
	}); err != nil {
		return fmt.Errorf("failed to list commits: %w", err)
	}

	for _, commit := range commits {
		if commit.GetSHA() == "" {
			continue
		}
		meta := &record.CommitMeta{
			Hash:        commit.GetSHA(),
			AuthoredAt:  timestampString(commit.GetCommit().GetAuthor().GetDate()),
			Author:      actorFromUser(commit.Author),
			CommittedAt: timestampString(commit.GetCommit().GetCommitter().GetDate()),
			Committer:   actorFromUser(commit.Committer),
		}
		if commit.GetCommit().GetCommentCount() > 0 {
			comments, err := c.commitComments(ctx, commit.GetSHA())
			if err != nil {
				return err
			}
			meta.Comments = comments
		}
		if err := fn(meta); err != nil {
			return err
		}
	}
	return nil
}

// Workflows fetches every workflow with its runs.
func (c *REST) Workflows(ctx context.Context) ([]*record.Workflow, error) {
	owner, name := c.client.Owner(), c.client.Name()

	var workflows []*github.Workflow
	if err := c.paginate(ctx, func(ctx context.Context, gh *github.Client, opts github.ListOptions) (*github.Response, error) {
		got, resp, err := gh.Actions.ListWorkflows(ctx, owner, name, &opts)
		if err == nil {
			workflows = append(workflows, got.Workflows...)
		}
		return resp, err
	}); err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	out := make([]*record.Workflow, 0, len(workflows))
	for _, wf := range workflows {
		mapped := &record.Workflow{
			ID:         wf.GetNodeID(),
			Title:      wf.GetName(),
			ConfigPath: wf.GetPath(),
			CreatedAt:  timestampString(wf.GetCreatedAt()),
			State:      wf.GetState(),
		}

		var runs []*github.WorkflowRun
		if err := c.paginate(ctx, func(ctx context.Context, gh *github.Client, opts github.ListOptions) (*github.Response, error) {
			got, resp, err := gh.Actions.ListWorkflowRunsByID(ctx, owner, name, wf.GetID(), &github.ListWorkflowRunsOptions{ListOptions: opts})
			if err == nil {
				runs = append(runs, got.WorkflowRuns...)
			}
			return resp, err
		}); err != nil {
			return nil, fmt.Errorf("failed to list runs of workflow %d: %w", wf.GetID(), err)
		}
		for _, run := range runs {
			mapped.Runs = append(mapped.Runs, record.WorkflowRun{
				ID:              run.GetNodeID(),
				Status:          run.GetStatus(),
				Conclusion:      run.GetConclusion(),
				CreatedAt:       timestampString(run.GetCreatedAt()),
				StartedAt:       timestampString(run.GetRunStartedAt()),
				Attempts:        run.GetRunAttempt(),
				HeadCommit:      run.GetHeadSHA(),
				Actor:           actorFromUser(run.Actor),
				TriggeringActor: actorFromUser(run.TriggeringActor),
			})
		}
		out = append(out, mapped)
	}
	return out, nil
}

// SBOM fetches the repository's dependency manifest.
func (c *REST) SBOM(ctx context.Context) ([]*record.SBOMPackage, error) {
	owner, name := c.client.Owner(), c.client.Name()

	var sbom *github.SBOM
	if err := c.client.Do(ctx, func(ctx context.Context, gh *github.Client) (*github.Response, error) {
		got, resp, err := gh.DependencyGraph.GetSBOM(ctx, owner, name)
		if err == nil {
			sbom = got
		}
		return resp, err
	}); err != nil {
		return nil, fmt.Errorf("failed to fetch sbom: %w", err)
	}
	if sbom == nil || sbom.GetSBOM() == nil {
		return nil, nil
	}

	out := make([]*record.SBOMPackage, 0, len(sbom.GetSBOM().Packages))
	for _, pkg := range sbom.GetSBOM().Packages {
		out = append(out, &record.SBOMPackage{
			Name:            pkg.GetName(),
			VersionInfo:     pkg.GetVersionInfo(),
			LicenseDeclared: pkg.GetLicenseDeclared(),
		})
	}
	return out, nil
}

// PullRequestFileActions streams the changed files of every pull request
// including patch text. This walks every pull request and is expensive.
func (c *REST) PullRequestFileActions(ctx context.Context, fn func(*record.PullRequestFileAction) error) error {
	owner, name := c.client.Owner(), c.client.Name()

	var pulls []*github.PullRequest
	if err := c.paginate(ctx, func(ctx context.Context, gh *github.Client, opts github.ListOptions) (*github.Response, error) {
		got, resp, err := gh.PullRequests.List(ctx, owner, name, &github.PullRequestListOptions{State: "all", ListOptions: opts})
		if err == nil {
			pulls = append(pulls, got...)
		}
		return resp, err
	}); err != nil {
		return fmt.Errorf("failed to list pull requests: %w", err)
	}

	for _, pr := range pulls {
		files, err := c.commitFiles(ctx, pr.GetNumber())
		if err != nil {
			return err
		}
		for _, f := range files {
			action := &record.PullRequestFileAction{
				PullRequestID: pr.GetNodeID(),
				Sha:           f.GetSHA(),
				Path:          f.GetFilename(),
				ChangeType:    strings.ToUpper(f.GetStatus()),
				Additions:     f.GetAdditions(),
				Deletions:     f.GetDeletions(),
				Changes:       f.GetChanges(),
				Patch:         f.GetPatch(),
			}
			if err := fn(action); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *REST) issueComments(ctx context.Context, number int) ([]record.Comment, error) {
	owner, name := c.client.Owner(), c.client.Name()

	var out []record.Comment
	if err := c.paginate(ctx, func(ctx context.Context, gh *github.Client, opts github.ListOptions) (*github.Response, error) {
		got, resp, err := gh.Issues.ListComments(ctx, owner, name, number, &github.IssueListCommentsOptions{ListOptions: opts})
		if err != nil {
			return resp, err
		}
		for _, comment := range got {
			out = append(out, record.Comment{
				ID:        comment.GetNodeID(),
				Body:      comment.GetBody(),
				CreatedAt: timestampString(comment.GetCreatedAt()),
				Author:    actorFromUser(comment.User),
			})
		}
		return resp, nil
	}); err != nil {
		return nil, fmt.Errorf("failed to list comments of %d: %w", number, err)
	}
	return out, nil
}

// timeline maps the REST timeline onto the typed events the processors act
// on. Unrecognized event kinds are skipped.
func (c *REST) timeline(ctx context.Context, number int) ([]record.TimelineItem, error) {
	owner, name := c.client.Owner(), c.client.Name()

	var out []record.TimelineItem
	if err := c.paginate(ctx, func(ctx context.Context, gh *github.Client, opts github.ListOptions) (*github.Response, error) {
		got, resp, err := gh.Issues.ListIssueTimeline(ctx, owner, name, number, &opts)
		if err != nil {
			return resp, err
		}
		for _, event := range got {
			item := record.TimelineItem{
				ID:        strconv.FormatInt(event.GetID(), 10),
				CreatedAt: timestampString(event.GetCreatedAt()),
				Actor:     actorFromUser(event.Actor),
			}
			switch event.GetEvent() {
			case "merged":
				item.Typename = "MergedEvent"
				item.Commit = &record.CommitRef{Oid: event.GetCommitID()}
			case "closed":
				item.Typename = "ClosedEvent"
			case "converted_to_discussion":
				item.Typename = "ConvertedToDiscussionEvent"
			default:
				continue
			}
			out = append(out, item)
		}
		return resp, nil
	}); err != nil {
		return nil, fmt.Errorf("failed to list timeline of %d: %w", number, err)
	}
	return out, nil
}

// reviews fetches the reviews and review comments of one pull request and
// joins them: comments attach to their review, and reply references are
// rewritten from numeric ids to node ids.
func (c *REST) reviews(ctx context.Context, number int) ([]record.Review, error) {
	owner, name := c.client.Owner(), c.client.Name()

	var rawComments []*github.PullRequestComment
	if err := c.paginate(ctx, func(ctx context.Context, gh *github.Client, opts github.ListOptions) (*github.Response, error) {
		got, resp, err := gh.PullRequests.ListComments(ctx, owner, name, number, &github.PullRequestListCommentsOptions{ListOptions: opts})
		if err == nil {
			rawComments = append(rawComments, got...)
		}
		return resp, err
	}); err != nil {
		return nil, fmt.Errorf("failed to list review comments of %d: %w", number, err)
	}

	// Numeric id to node id, for reply rewriting.
	nodeIDs := make(map[int64]string, len(rawComments))
	for _, comment := range rawComments {
		nodeIDs[comment.GetID()] = comment.GetNodeID()
	}
	byReview := make(map[int64][]record.ReviewComment)
	for _, comment := range rawComments {
		rawID := comment.GetID()
		mapped := record.ReviewComment{
			ID:                comment.GetNodeID(),
			RawID:             &rawID,
			Body:              comment.GetBody(),
			CreatedAt:         timestampString(comment.GetCreatedAt()),
			DiffHunk:          comment.GetDiffHunk(),
			Path:              comment.GetPath(),
			StartLine:         comment.StartLine,
			OriginalStartLine: comment.OriginalStartLine,
			Line:              comment.Line,
			OriginalLine:      comment.OriginalLine,
			Author:            actorFromUser(comment.User),
			Commit:            &record.CommitRef{Oid: comment.GetCommitID()},
			OriginalCommit:    &record.CommitRef{Oid: comment.GetOriginalCommitID()},
		}
		if replyTo := comment.GetInReplyTo(); replyTo != 0 {
			if nodeID, ok := nodeIDs[replyTo]; ok {
				mapped.ReplyTo = &record.Ref{ID: nodeID}
			}
		}
		reviewID := comment.GetPullRequestReviewID()
		byReview[reviewID] = append(byReview[reviewID], mapped)
	}

	var rawReviews []*github.PullRequestReview
	if err := c.paginate(ctx, func(ctx context.Context, gh *github.Client, opts github.ListOptions) (*github.Response, error) {
		got, resp, err := gh.PullRequests.ListReviews(ctx, owner, name, number, &opts)
		if err == nil {
			rawReviews = append(rawReviews, got...)
		}
		return resp, err
	}); err != nil {
		return nil, fmt.Errorf("failed to list reviews of %d: %w", number, err)
	}

	out := make([]record.Review, 0, len(rawReviews))
	for _, review := range rawReviews {
		submitted := timestampString(review.GetSubmittedAt())
		out = append(out, record.Review{
			ID:          review.GetNodeID(),
			State:       strings.ToUpper(review.GetState()),
			Body:        review.GetBody(),
			SubmittedAt: submitted,
			CreatedAt:   submitted,
			Author:      actorFromUser(review.User),
			Commit:      &record.CommitRef{Oid: review.GetCommitID()},
			Comments:    record.Connection[record.ReviewComment]{Nodes: byReview[review.GetID()]},
		})
	}
	return out, nil
}

func (c *REST) pullRequestFiles(ctx context.Context, number int) ([]record.PullRequestFile, error) {
	files, err := c.commitFiles(ctx, number)
	if err != nil {
		return nil, err
	}
	// Only the fields of the GraphQL file shape: the refetched record must
	// hash to the same content-addressed node as the page it replaces.
	out := make([]record.PullRequestFile, 0, len(files))
	for _, f := range files {
		out = append(out, record.PullRequestFile{
			Path:       f.GetFilename(),
			ChangeType: strings.ToUpper(f.GetStatus()),
			Additions:  f.GetAdditions(),
			Deletions:  f.GetDeletions(),
		})
	}
	return out, nil
}

func (c *REST) commitFiles(ctx context.Context, number int) ([]*github.CommitFile, error) {
	owner, name := c.client.Owner(), c.client.Name()

	var out []*github.CommitFile
	if err := c.paginate(ctx, func(ctx context.Context, gh *github.Client, opts github.ListOptions) (*github.Response, error) {
		got, resp, err := gh.PullRequests.ListFiles(ctx, owner, name, number, &opts)
		if err == nil {
			out = append(out, got...)
		}
		return resp, err
	}); err != nil {
		return nil, fmt.Errorf("failed to list files of %d: %w", number, err)
	}
	return out, nil
}

func (c *REST) commitComments(ctx context.Context, sha string) ([]record.CommitComment, error) {
	owner, name := c.client.Owner(), c.client.Name()

	var out []record.CommitComment
	if err := c.paginate(ctx, func(ctx context.Context, gh *github.Client, opts github.ListOptions) (*github.Response, error) {
		got, resp, err := gh.Repositories.ListCommitComments(ctx, owner, name, sha, &opts)
		if err != nil {
			return resp, err
		}
		for _, comment := range got {
			out = append(out, record.CommitComment{
				ID:        comment.GetNodeID(),
				Body:      comment.GetBody(),
				Path:      comment.GetPath(),
				Position:  comment.Position,
				CreatedAt: timestampString(comment.GetCreatedAt()),
				User:      actorFromUser(comment.User),
			})
		}
		return resp, nil
	}); err != nil {
		return nil, fmt.Errorf("failed to list comments of commit %s: %w", sha, err)
	}
	return out, nil
}

// paginate runs call once per page until the server reports no next page.
func (c *REST) paginate(ctx context.Context, call func(ctx context.Context, gh *github.Client, opts github.ListOptions) (*github.Response, error)) error {
	opts := github.ListOptions{PerPage: 100}
	for {
		var resp *github.Response
		if err := c.client.Do(ctx, func(ctx context.Context, gh *github.Client) (*github.Response, error) {
			r, err := call(ctx, gh, opts)
			resp = r
			return r, err
		}); err != nil {
			return err
		}
		if resp == nil || resp.NextPage == 0 {
			return nil
		}
		opts.Page = resp.NextPage
	}
}

func actorFromUser(u *github.User) *record.Actor {
	if u == nil {
		return nil
	}
	return &record.Actor{
		ID:    u.GetNodeID(),
		Login: u.GetLogin(),
		Name:  u.GetName(),
		Email: u.GetEmail(),
	}
}

func milestoneFrom(m *github.Milestone) *record.Milestone {
	if m == nil {
		return nil
	}
	out := &record.Milestone{
		ID:          m.GetNodeID(),
		Number:      m.GetNumber(),
		Title:       m.GetTitle(),
		Description: m.GetDescription(),
		DueOn:       timestampString(m.GetDueOn()),
		ClosedAt:    timestampString(m.GetClosedAt()),
		CreatedAt:   timestampString(m.GetCreatedAt()),
		State:       strings.ToUpper(m.GetState()),
		Creator:     actorFromUser(m.Creator),
	}
	// Avoid dividing by zero on milestones with no issues at all.
	if total := m.GetOpenIssues() + m.GetClosedIssues(); total > 0 {
		progress := 100 * float64(m.GetClosedIssues()) / float64(total)
		out.ProgressPercentage = &progress
	}
	return out
}

func timestampString(ts github.Timestamp) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}
