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

// Issue emits one issue with its month bucket, author, milestone, assignees,
// labels, comments, and the timeline events that close it or convert it to a
// discussion. The issue node itself is written last because the timeline
// walk can still flip its convertedToDiscussion flag.
func (p *Processor) Issue(issue *record.Issue) error {
	node := graph.NewNode(graph.NodeIssue).
		Set("id", issue.ID).
		Set("number", issue.Number).
		Set("title", issue.Title).
		Set("body", issue.Body).
		Set("state", issue.State).
		Set("locked", issue.Locked).
		Set("activeLockReason", issue.ActiveLockReason).
		Set("createdAt", issue.CreatedAt)

	bucket, err := p.issueMonth(issue.CreatedAt)
	if err != nil {
		return err
	}
	if bucket != nil {
		if err := p.storage.AddRel(graph.NewRel(graph.RelIssueInMonth, node, bucket)); err != nil {
			return err
		}
	}

	author, err := p.userNode(issue.Author)
	if err != nil {
		return err
	}
	creates := graph.NewRel(graph.RelCreatesIssue, author, node).
		Set("createdAt", issue.CreatedAt)
	if err := p.storage.AddRel(creates); err != nil {
		return err
	}

	if issue.Milestone != nil && issue.Milestone.ID != "" {
		milestone, err := p.milestone(issue.Milestone)
		if err != nil {
			return err
		}
		if err := p.storage.AddRel(graph.NewRel(graph.RelRequiresIssue, milestone, node)); err != nil {
			return err
		}
	}

	for i := range issue.Assignees.Nodes {
		assignee, err := p.userNode(&issue.Assignees.Nodes[i])
		if err != nil {
			return err
		}
		if err := p.storage.AddRel(graph.NewRel(graph.RelGetsAssignedIssue, assignee, node)); err != nil {
			return err
		}
	}

	for i := range issue.Labels.Nodes {
		label, err := p.labelNode(&issue.Labels.Nodes[i])
		if err != nil {
			return err
		}
		if err := p.storage.AddRel(graph.NewRel(graph.RelIssueHasLabel, node, label)); err != nil {
			return err
		}
	}

	for _, comment := range issue.Comments.Nodes {
		commenter, err := p.userNode(comment.Author)
		if err != nil {
			return err
		}
		comments := graph.NewRel(graph.RelCommentsOnIssue, commenter, node).
			Set("id", comment.ID).
			Set("createdAt", comment.CreatedAt).
			Set("body", comment.Body)
		if err := p.storage.AddRel(comments); err != nil {
			return err
		}
	}

	converted := false
	for _, item := range issue.TimelineItems.Nodes {
		switch item.Typename {
		case "ClosedEvent":
			actor, err := p.userNode(item.Actor)
			if err != nil {
				return err
			}
			closes := graph.NewRel(graph.RelClosesIssue, actor, node).
				Set("id", item.ID).
				Set("createdAt", item.CreatedAt)
			if err := p.storage.AddRel(closes); err != nil {
				return err
			}
		case "ConvertedToDiscussionEvent":
			converted = true
		}
	}
	node.Set("convertedToDiscussion", converted)

	return p.storage.AddNode(node)
}
