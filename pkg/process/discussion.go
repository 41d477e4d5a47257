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

// Discussion emits one discussion with its labels and comment tree. Comment
// nesting is one level deep: top-level comments and their replies.
func (p *Processor) Discussion(discussion *record.Discussion) error {
	node := graph.NewNode(graph.NodeDiscussion).
		Set("id", discussion.ID).
		Set("number", discussion.Number).
		Set("title", discussion.Title).
		Set("body", discussion.Body).
		Set("closed", discussion.Closed).
		Set("closedAt", discussion.ClosedAt).
		Set("createdAt", discussion.CreatedAt).
		Set("upvoteCount", discussion.UpvoteCount).
		Set("categoryName", discussion.Category.Name)
	if err := p.storage.AddNode(node); err != nil {
		return err
	}
	if err := p.storage.AddRel(graph.NewRel(graph.RelProjectHasDiscussion, p.projectRef(), node)); err != nil {
		return err
	}

	author, err := p.userNode(discussion.Author)
	if err != nil {
		return err
	}
	creates := graph.NewRel(graph.RelCreatesDiscussion, author, node).
		Set("createdAt", discussion.CreatedAt)
	if err := p.storage.AddRel(creates); err != nil {
		return err
	}

	for i := range discussion.Labels.Nodes {
		label, err := p.labelNode(&discussion.Labels.Nodes[i])
		if err != nil {
			return err
		}
		if err := p.storage.AddRel(graph.NewRel(graph.RelDiscussionHasLabel, node, label)); err != nil {
			return err
		}
	}

	for i := range discussion.Comments.Nodes {
		comment := &discussion.Comments.Nodes[i]
		commentNode, err := p.discussionComment(node, comment)
		if err != nil {
			return err
		}
		if comment.IsAnswer {
			if err := p.storage.AddRel(graph.NewRel(graph.RelAnswersDiscussion, commentNode, node)); err != nil {
				return err
			}
		}
		for j := range comment.Replies.Nodes {
			replyNode, err := p.discussionComment(node, &comment.Replies.Nodes[j])
			if err != nil {
				return err
			}
			if err := p.storage.AddRel(graph.NewRel(graph.RelReplyToDiscussionComment, replyNode, commentNode)); err != nil {
				return err
			}
		}
	}
	return nil
}

// discussionComment emits one comment node with its author and the link from
// the owning discussion.
func (p *Processor) discussionComment(discussion *graph.Node, comment *record.DiscussionComment) (*graph.Node, error) {
	node := graph.NewNode(graph.NodeDiscussionComment).
		Set("id", comment.ID).
		Set("body", comment.Body).
		Set("isAnswer", comment.IsAnswer).
		Set("createdAt", comment.CreatedAt).
		Set("upvoteCount", comment.UpvoteCount)
	if err := p.storage.AddNode(node); err != nil {
		return nil, err
	}

	author, err := p.userNode(comment.Author)
	if err != nil {
		return nil, err
	}
	creates := graph.NewRel(graph.RelCreatesDiscussionComment, author, node).
		Set("createdAt", comment.CreatedAt)
	if err := p.storage.AddRel(creates); err != nil {
		return nil, err
	}
	if err := p.storage.AddRel(graph.NewRel(graph.RelDiscussionHasComment, discussion, node)); err != nil {
		return nil, err
	}
	return node, nil
}
