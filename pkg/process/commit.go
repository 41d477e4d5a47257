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
	"github.com/abcxyz/github-graph-miner/pkg/gitclone"
	"github.com/abcxyz/github-graph-miner/pkg/graph"
	"github.com/abcxyz/github-graph-miner/pkg/record"
)

// Commit emits one clone-extracted commit with its month bucket and parent
// links. Authorship comes later from the API metadata, which carries the
// account identities the local history lacks.
func (p *Processor) Commit(commit *gitclone.Commit) error {
	node := graph.NewNode(graph.NodeCommit).
		Set("hash", commit.Hash).
		Set("message", commit.Message).
		Set("merge", commit.Merge)
	if err := p.storage.AddNode(node); err != nil {
		return err
	}

	bucket, err := p.commitMonth(commit.CommittedAt.UTC().Format(graph.TimeFormat))
	if err != nil {
		return err
	}
	if bucket != nil {
		if err := p.storage.AddRel(graph.NewRel(graph.RelCommitInMonth, node, bucket)); err != nil {
			return err
		}
	}

	for _, parent := range commit.ParentHashes {
		if err := p.storage.AddRel(graph.NewRel(graph.RelParentOfCommit, commitRef(parent), node)); err != nil {
			return err
		}
	}
	return nil
}

// CommitMeta attaches the API-side commit metadata: author and committer
// identities and commit comments.
func (p *Processor) CommitMeta(meta *record.CommitMeta) error {
	node := commitRef(meta.Hash)

	author, err := p.userNode(meta.Author)
	if err != nil {
		return err
	}
	authorOf := graph.NewRel(graph.RelAuthorOfCommit, author, node).
		Set("authoredAt", meta.AuthoredAt)
	if err := p.storage.AddRel(authorOf); err != nil {
		return err
	}

	committer, err := p.userNode(meta.Committer)
	if err != nil {
		return err
	}
	committerOf := graph.NewRel(graph.RelCommitterOfCommit, committer, node).
		Set("committedAt", meta.CommittedAt)
	if err := p.storage.AddRel(committerOf); err != nil {
		return err
	}

	for i := range meta.Comments {
		comment := &meta.Comments[i]
		commenter, err := p.userNode(comment.User)
		if err != nil {
			return err
		}
		comments := graph.NewRel(graph.RelCommentsOnCommit, commenter, node).
			Set("id", comment.ID).
			Set("body", comment.Body).
			Set("path", comment.Path).
			Set("createdAt", comment.CreatedAt)
		if comment.Position != nil {
			comments.Set("position", *comment.Position)
		}
		if comment.Line != nil {
			comments.Set("line", *comment.Line)
		}
		if err := p.storage.AddRel(comments); err != nil {
			return err
		}
	}
	return nil
}

// FileAction emits one file-level change: the action node, the file states
// around it, and the link from the performing commit. File nodes are
// content-addressed so unchanged states collapse across actions.
func (p *Processor) FileAction(action *gitclone.FileAction) error {
	node := graph.NewNode(graph.NodeFileAction).
		Set("fileActionId", graph.NewOpaqueID()).
		Set("changeType", action.ChangeType).
		Set("copiedFile", action.CopiedFile).
		Set("renamedFile", action.RenamedFile).
		Set("newFile", action.NewFile).
		Set("deletedFile", action.DeletedFile).
		Set("diff", action.Diff).
		Set("addedLines", action.AddedLines).
		Set("deletedLines", action.DeletedLines)
	if err := p.storage.AddNode(node); err != nil {
		return err
	}

	if !action.NewFile {
		before := p.fileNode(action.MimeTypeBefore, action.PathBefore, action.FileShaBefore, action.FileSizeBefore)
		if err := p.storage.AddNode(before); err != nil {
			return err
		}
		if err := p.storage.AddRel(graph.NewRel(graph.RelFileBeforeAction, node, before)); err != nil {
			return err
		}
	}
	if !action.DeletedFile {
		after := p.fileNode(action.MimeTypeAfter, action.PathAfter, action.FileShaAfter, action.FileSizeAfter)
		if err := p.storage.AddNode(after); err != nil {
			return err
		}
		if err := p.storage.AddRel(graph.NewRel(graph.RelFileAfterAction, node, after)); err != nil {
			return err
		}
	}

	return p.storage.AddRel(graph.NewRel(graph.RelPerformsFileAction, commitRef(action.ChildCommitSha), node))
}

func (p *Processor) fileNode(mimeType, path, sha string, size int64) *graph.Node {
	node := graph.NewNode(graph.NodeFile).
		Set("mimeType", mimeType).
		Set("path", path).
		Set("fileSha", sha).
		Set("fileSize", size)
	return node.Set("fileId", graph.ContentID(node))
}

// Branch emits one remote branch with its head and full reachable commit
// set.
func (p *Processor) Branch(branch *gitclone.Branch) error {
	node := graph.NewNode(graph.NodeBranch).
		Set("id", p.storage.BranchID(p.projectID, branch.Name)).
		Set("name", branch.Name)
	if err := p.storage.AddNode(node); err != nil {
		return err
	}
	if err := p.storage.AddRel(graph.NewRel(graph.RelProjectHasBranch, p.projectRef(), node)); err != nil {
		return err
	}
	if branch.HeadCommitSha != "" {
		if err := p.storage.AddRel(graph.NewRel(graph.RelBranchHasHeadCommit, node, commitRef(branch.HeadCommitSha))); err != nil {
			return err
		}
	}
	for _, sha := range branch.CommitShas {
		if err := p.storage.AddRel(graph.NewRel(graph.RelBranchContainsCommit, node, commitRef(sha))); err != nil {
			return err
		}
	}
	return nil
}
