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

package process

import (
	"github.com/abcxyz/github-graph-miner/pkg/graph"
	"github.com/abcxyz/github-graph-miner/pkg/record"
)

// PullRequest emits one pull request with its month bucket, branch and
// commit anchors, participants, labels, comments, merge and close events,
// reviews with their comment threads, and changed files.
func (p *Processor) PullRequest(pr *record.PullRequest) error {
	node := graph.NewNode(graph.NodePullRequest).
		Set("id", pr.ID).
		Set("number", pr.Number).
		Set("title", pr.Title).
		Set("body", pr.Body).
		Set("state", pr.State).
		Set("isDraft", pr.IsDraft).
		Set("locked", pr.Locked).
		Set("activeLockReason", pr.ActiveLockReason).
		Set("createdAt", pr.CreatedAt).
		Set("mergedAt", pr.MergedAt)
	if pr.BaseRepository != nil {
		node.Set("baseRepositoryURL", pr.BaseRepository.URL)
	}
	if pr.HeadRepository != nil {
		node.Set("headRepositoryURL", pr.HeadRepository.URL)
	}
	if err := p.storage.AddNode(node); err != nil {
		return err
	}

	bucket, err := p.pullRequestMonth(pr.CreatedAt)
	if err != nil {
		return err
	}
	if bucket != nil {
		if err := p.storage.AddRel(graph.NewRel(graph.RelPullRequestInMonth, node, bucket)); err != nil {
			return err
		}
	}

	if err := p.pullRequestBranches(node, pr); err != nil {
		return err
	}

	if pr.BaseRefOid != "" {
		if err := p.storage.AddRel(graph.NewRel(graph.RelIsPullRequestBaseCommit, node, commitRef(pr.BaseRefOid))); err != nil {
			return err
		}
	}
	if pr.HeadRefOid != "" {
		if err := p.storage.AddRel(graph.NewRel(graph.RelIsPullRequestHeadCommit, node, commitRef(pr.HeadRefOid))); err != nil {
			return err
		}
	}

	author, err := p.userNode(pr.Author)
	if err != nil {
		return err
	}
	creates := graph.NewRel(graph.RelCreatesPullRequest, author, node).
		Set("createdAt", pr.CreatedAt)
	if err := p.storage.AddRel(creates); err != nil {
		return err
	}

	if pr.Milestone != nil && pr.Milestone.ID != "" {
		milestone, err := p.milestone(pr.Milestone)
		if err != nil {
			return err
		}
		if err := p.storage.AddRel(graph.NewRel(graph.RelRequiresPullRequest, milestone, node)); err != nil {
			return err
		}
	}

	for _, request := range pr.ReviewRequests.Nodes {
		reviewer, err := p.userNode(request.RequestedReviewer)
		if err != nil {
			return err
		}
		if err := p.storage.AddRel(graph.NewRel(graph.RelRequestsReviewer, node, reviewer)); err != nil {
			return err
		}
	}

	for i := range pr.Assignees.Nodes {
		assignee, err := p.userNode(&pr.Assignees.Nodes[i])
		if err != nil {
			return err
		}
		if err := p.storage.AddRel(graph.NewRel(graph.RelGetsAssignedPullRequest, assignee, node)); err != nil {
			return err
		}
	}

	for i := range pr.Labels.Nodes {
		label, err := p.labelNode(&pr.Labels.Nodes[i])
		if err != nil {
			return err
		}
		if err := p.storage.AddRel(graph.NewRel(graph.RelPullRequestHasLabel, node, label)); err != nil {
			return err
		}
	}

	for _, comment := range pr.Comments.Nodes {
		commenter, err := p.userNode(comment.Author)
		if err != nil {
			return err
		}
		comments := graph.NewRel(graph.RelCommentsOnPullRequest, commenter, node).
			Set("id", comment.ID).
			Set("body", comment.Body).
			Set("createdAt", comment.CreatedAt)
		if err := p.storage.AddRel(comments); err != nil {
			return err
		}
	}

	for i := range pr.TimelineItems.Nodes {
		if err := p.pullRequestEvent(node, &pr.TimelineItems.Nodes[i]); err != nil {
			return err
		}
	}

	for i := range pr.Reviews.Nodes {
		if err := p.review(node, &pr.Reviews.Nodes[i]); err != nil {
			return err
		}
	}

	if !p.deferFiles {
		for i := range pr.Files.Nodes {
			if err := p.pullRequestFile(node, pr.ID, &pr.Files.Nodes[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// pullRequestBranches anchors the pull request to its target branch, and to
// its source branch when the head lives in the same repository. Branch ids
// use the remote-qualified name so they line up with the clone-derived
// branch nodes.
func (p *Processor) pullRequestBranches(node *graph.Node, pr *record.PullRequest) error {
	if pr.BaseRepository != nil && pr.BaseRefName != "" {
		target := graph.NewNode(graph.NodeBranch).
			Set("id", p.storage.BranchID(pr.BaseRepository.ID, "origin/"+pr.BaseRefName)).
			Set("name", "origin/"+pr.BaseRefName)
		if err := p.storage.AddRel(graph.NewRel(graph.RelPullRequestHasTargetBranch, node, target)); err != nil {
			return err
		}
	}
	if pr.HeadRepository != nil && pr.BaseRepository != nil &&
		pr.HeadRepository.ID == pr.BaseRepository.ID && pr.HeadRefName != "" {
		source := graph.NewNode(graph.NodeBranch).
			Set("id", p.storage.BranchID(pr.HeadRepository.ID, "origin/"+pr.HeadRefName)).
			Set("name", "origin/"+pr.HeadRefName)
		if err := p.storage.AddRel(graph.NewRel(graph.RelPullRequestHasSourceBranch, node, source)); err != nil {
			return err
		}
	}
	return nil
}

// pullRequestEvent emits merge and close timeline events. Other timeline
// item types carry no graph semantics and are skipped.
func (p *Processor) pullRequestEvent(node *graph.Node, item *record.TimelineItem) error {
	if item.Typename != "MergedEvent" && item.Typename != "ClosedEvent" {
		return nil
	}
	event := graph.NewNode(graph.NodePullRequestEvent).
		Set("id", item.ID).
		Set("__typename", item.Typename)
	if err := p.storage.AddNode(event); err != nil {
		return err
	}

	if item.Typename == "MergedEvent" && item.Commit != nil && item.Commit.Oid != "" {
		if err := p.storage.AddRel(graph.NewRel(graph.RelPullRequestEventLinksCommit, event, commitRef(item.Commit.Oid))); err != nil {
			return err
		}
	}

	if item.Actor != nil {
		actor, err := p.userNode(item.Actor)
		if err != nil {
			return err
		}
		creates := graph.NewRel(graph.RelCreatesPullRequestEvent, actor, event).
			Set("createdAt", item.CreatedAt)
		if err := p.storage.AddRel(creates); err != nil {
			return err
		}
	}
	return p.storage.AddRel(graph.NewRel(graph.RelPullRequestHasEvent, node, event))
}

func (p *Processor) review(node *graph.Node, review *record.Review) error {
	reviewNode := graph.NewNode(graph.NodePullRequestReview).
		Set("id", review.ID).
		Set("state", review.State).
		Set("body", review.Body).
		Set("submittedAt", review.SubmittedAt).
		Set("createdAt", review.CreatedAt)
	if review.Commit != nil && review.Commit.Oid != "" {
		reviewNode.Set("commitHash", review.Commit.Oid)
	}
	if err := p.storage.AddNode(reviewNode); err != nil {
		return err
	}

	if review.Commit != nil && review.Commit.Oid != "" {
		if err := p.storage.AddRel(graph.NewRel(graph.RelReviewReviewsCommit, reviewNode, commitRef(review.Commit.Oid))); err != nil {
			return err
		}
	}

	author, err := p.userNode(review.Author)
	if err != nil {
		return err
	}
	creates := graph.NewRel(graph.RelCreatesPullRequestReview, author, reviewNode).
		Set("createdAt", review.CreatedAt)
	if err := p.storage.AddRel(creates); err != nil {
		return err
	}
	if err := p.storage.AddRel(graph.NewRel(graph.RelPullRequestHasReview, node, reviewNode)); err != nil {
		return err
	}

	for i := range review.Comments.Nodes {
		if err := p.reviewComment(node, reviewNode, &review.Comments.Nodes[i]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) reviewComment(pr, review *graph.Node, comment *record.ReviewComment) error {
	node := graph.NewNode(graph.NodePullRequestReviewComment).
		Set("id", comment.ID).
		Set("body", comment.Body).
		Set("createdAt", comment.CreatedAt).
		Set("diffHunk", comment.DiffHunk).
		Set("path", comment.Path)
	if comment.RawID != nil {
		node.Set("rawId", *comment.RawID)
	}
	setInt(node, "startLine", comment.StartLine)
	setInt(node, "originalStartLine", comment.OriginalStartLine)
	setInt(node, "line", comment.Line)
	setInt(node, "originalLine", comment.OriginalLine)
	if comment.ReplyTo != nil {
		node.Set("replyToId", comment.ReplyTo.ID)
	}
	if comment.Commit != nil && comment.Commit.Oid != "" {
		node.Set("commitHash", comment.Commit.Oid)
	}
	if comment.OriginalCommit != nil && comment.OriginalCommit.Oid != "" {
		node.Set("originalCommitHash", comment.OriginalCommit.Oid)
	}
	if err := p.storage.AddNode(node); err != nil {
		return err
	}

	if comment.Commit != nil && comment.Commit.Oid != "" {
		if err := p.storage.AddRel(graph.NewRel(graph.RelReviewCommentCommentsCommit, node, commitRef(comment.Commit.Oid))); err != nil {
			return err
		}
	}
	if comment.OriginalCommit != nil && comment.OriginalCommit.Oid != "" {
		if err := p.storage.AddRel(graph.NewRel(graph.RelReviewCommentCommentsOriginalCommit, node, commitRef(comment.OriginalCommit.Oid))); err != nil {
			return err
		}
	}

	author, err := p.userNode(comment.Author)
	if err != nil {
		return err
	}
	creates := graph.NewRel(graph.RelCreatesPullRequestReviewComment, author, node).
		Set("createdAt", comment.CreatedAt)
	if err := p.storage.AddRel(creates); err != nil {
		return err
	}

	// Comments detached from any review hang directly off the pull request.
	if review.Get("id") == "" || review.Get("id") == graph.SentinelString {
		if err := p.storage.AddRel(graph.NewRel(graph.RelIsSingleReviewComment, node, pr)); err != nil {
			return err
		}
	} else {
		if err := p.storage.AddRel(graph.NewRel(graph.RelCommentsOnPullRequestReview, node, review)); err != nil {
			return err
		}
	}

	if comment.ReplyTo != nil && comment.ReplyTo.ID != "" {
		target := graph.NewNode(graph.NodePullRequestReviewComment).
			Set("id", comment.ReplyTo.ID)
		if err := p.storage.AddRel(graph.NewRel(graph.RelIsReplyToReviewComment, node, target)); err != nil {
			return err
		}
	}
	return nil
}

// pullRequestFile emits one changed file. The node id hashes the file's
// content properties so the same change reported by both APIs collapses
// into one node.
func (p *Processor) pullRequestFile(node *graph.Node, prID string, file *record.PullRequestFile) error {
	fileNode := graph.NewNode(graph.NodePullRequestFile).
		Set("pullRequestId", prID).
		Set("sha", file.Sha).
		Set("path", file.Path).
		Set("changeType", file.ChangeType).
		Set("additions", file.Additions).
		Set("deletions", file.Deletions).
		Set("patch", file.Patch)
	setInt(fileNode, "changes", file.Changes)
	fileNode.Set("id", graph.ContentID(fileNode))
	if err := p.storage.AddNode(fileNode); err != nil {
		return err
	}
	return p.storage.AddRel(graph.NewRel(graph.RelPullRequestProposesChange, node, fileNode))
}

// PullRequestFileActions emits the REST-collected changed files, which carry
// the full patch text. Files already seen through the GraphQL path collapse
// into the same content-addressed nodes.
func (p *Processor) PullRequestFileActions(actions []*record.PullRequestFileAction) error {
	for _, action := range actions {
		pr := graph.NewNode(graph.NodePullRequest).Set("id", action.PullRequestID)
		changes := action.Changes
		file := &record.PullRequestFile{
			Path:       action.Path,
			ChangeType: action.ChangeType,
			Additions:  action.Additions,
			Deletions:  action.Deletions,
			Sha:        action.Sha,
			Changes:    &changes,
			Patch:      action.Patch,
		}
		if err := p.pullRequestFile(pr, action.PullRequestID, file); err != nil {
			return err
		}
	}
	return nil
}
