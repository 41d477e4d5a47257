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

// Package gitclone retrieves commit history, branches, and per-commit file
// changes from a local clone of the repository.
package gitclone

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/diff"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/abcxyz/pkg/logging"
)

// Commit is the locally extracted metadata of one commit.
type Commit struct {
	Hash         string
	Message      string
	Merge        bool
	CommittedAt  time.Time
	ParentHashes []string
}

// Branch is one remote branch with its full reachable history.
type Branch struct {
	Name          string
	HeadCommitSha string
	CommitShas    []string
}

// FileAction is one file-level change between a commit and one of its
// parents.
type FileAction struct {
	ChildCommitSha  string
	ParentCommitSha string
	ChangeType      string

	MimeTypeBefore string
	PathBefore     string
	FileShaBefore  string
	FileSizeBefore int64

	MimeTypeAfter string
	PathAfter     string
	FileShaAfter  string
	FileSizeAfter int64

	// CopiedFile is never set: the diff enumeration has no copy
	// detection, so copies surface as adds.
	CopiedFile  bool
	RenamedFile bool
	NewFile     bool
	DeletedFile bool

	Diff         string
	AddedLines   int
	DeletedLines int
}

// Clone is a local checkout of one repository.
type Clone struct {
	owner   string
	name    string
	dir     string
	content bool
	repo    *git.Repository
}

// New clones the repository under root and returns a handle on it. The
// checkout lives at root/<owner>-<name> until Cleanup.
func New(ctx context.Context, owner, name, root string, content bool) (*Clone, error) {
	logger := logging.FromContext(ctx)

	url := "https://github.com/" + owner + "/" + name + ".git"
	dir := filepath.Join(root, owner+"-"+name)
	logger.InfoContext(ctx, "cloning repository",
		"url", url,
		"dir", dir)

	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{URL: url})
	if err != nil {
		return nil, fmt.Errorf("failed to clone %s: %w", url, err)
	}
	return &Clone{
		owner:   owner,
		name:    name,
		dir:     dir,
		content: content,
		repo:    repo,
	}, nil
}

// open wraps an existing repository; used by tests.
func open(owner, name string, repo *git.Repository, content bool) *Clone {
	return &Clone{owner: owner, name: name, content: content, repo: repo}
}

// Cleanup deletes the checkout.
func (c *Clone) Cleanup() error {
	if c.dir == "" {
		return nil
	}
	if err := os.RemoveAll(c.dir); err != nil {
		return fmt.Errorf("failed to remove clone: %w", err)
	}
	return nil
}

// Commits streams every commit reachable from any remote branch, each
// exactly once.
func (c *Clone) Commits(fn func(*Commit) error) error {
	return c.forEachCommit(func(commit *object.Commit) error {
		parents := make([]string, 0, commit.NumParents())
		for _, p := range commit.ParentHashes {
			parents = append(parents, p.String())
		}
		return fn(&Commit{
			Hash:         commit.Hash.String(),
			Message:      commit.Message,
			Merge:        commit.NumParents() > 1,
			CommittedAt:  commit.Committer.When.UTC(),
			ParentHashes: parents,
		})
	})
}

// Branches streams every remote branch with its head and reachable commits.
func (c *Clone) Branches(fn func(*Branch) error) error {
	return c.forEachRemoteRef(func(ref *plumbing.Reference) error {
		branch := &Branch{
			Name:          ref.Name().Short(),
			HeadCommitSha: ref.Hash().String(),
		}
		iter, err := c.repo.Log(&git.LogOptions{From: ref.Hash()})
		if err != nil {
			return fmt.Errorf("failed to walk branch %s: %w", branch.Name, err)
		}
		defer iter.Close()
		if err := iter.ForEach(func(commit *object.Commit) error {
			branch.CommitShas = append(branch.CommitShas, commit.Hash.String())
			return nil
		}); err != nil {
			return fmt.Errorf("failed to walk branch %s: %w", branch.Name, err)
		}
		return fn(branch)
	})
}

// FileActions streams the file changes of every (commit, parent) pair. Diff
// text is attached only when content collection is enabled and the changed
// file's type is relevant.
func (c *Clone) FileActions(ctx context.Context, fn func(*FileAction) error) error {
	return c.forEachCommit(func(commit *object.Commit) error {
		return commit.Parents().ForEach(func(parent *object.Commit) error {
			return c.diffActions(ctx, parent, commit, fn)
		})
	})
}

func (c *Clone) diffActions(ctx context.Context, parent, child *object.Commit, fn func(*FileAction) error) error {
	parentTree, err := parent.Tree()
	if err != nil {
		return fmt.Errorf("failed to resolve tree of %s: %w", parent.Hash, err)
	}
	childTree, err := child.Tree()
	if err != nil {
		return fmt.Errorf("failed to resolve tree of %s: %w", child.Hash, err)
	}
	changes, err := object.DiffTreeWithOptions(ctx, parentTree, childTree, object.DefaultDiffTreeOptions)
	if err != nil {
		return fmt.Errorf("failed to diff %s against %s: %w", child.Hash, parent.Hash, err)
	}

	for _, change := range changes {
		from, to, err := change.Files()
		if err != nil {
			// Unresolvable blob, for example a submodule pointer.
			continue
		}

		action := &FileAction{
			ChildCommitSha:  child.Hash.String(),
			ParentCommitSha: parent.Hash.String(),
			MimeTypeBefore:  "unknown",
			MimeTypeAfter:   "unknown",
			FileSizeBefore:  -1,
			FileSizeAfter:   -1,
			NewFile:         from == nil,
			DeletedFile:     to == nil,
		}
		action.RenamedFile = from != nil && to != nil && change.From.Name != change.To.Name
		switch {
		case action.NewFile:
			action.ChangeType = "A"
		case action.DeletedFile:
			action.ChangeType = "D"
		case action.RenamedFile:
			action.ChangeType = "R"
		default:
			action.ChangeType = "M"
		}

		if from != nil {
			action.PathBefore = change.From.Name
			action.FileShaBefore = from.Hash.String()
			action.FileSizeBefore = from.Size
			action.MimeTypeBefore = detectMime(from)
		}
		if to != nil {
			action.PathAfter = change.To.Name
			action.FileShaAfter = to.Hash.String()
			action.FileSizeAfter = to.Size
			action.MimeTypeAfter = detectMime(to)
		}

		patch, err := change.PatchContext(ctx)
		if err == nil && patch != nil {
			countPatchLines(patch, action)
			if c.content && IsMimeRelevant(action.MimeTypeAfter) {
				action.Diff = patch.String()
			}
		}

		if err := fn(action); err != nil {
			return err
		}
	}
	return nil
}

// countPatchLines tallies added and deleted lines from the patch chunks.
func countPatchLines(patch *object.Patch, action *FileAction) {
	for _, fp := range patch.FilePatches() {
		for _, chunk := range fp.Chunks() {
			lines := strings.Count(chunk.Content(), "\n")
			if !strings.HasSuffix(chunk.Content(), "\n") && chunk.Content() != "" {
				lines++
			}
			switch chunk.Type() {
			case diff.Add:
				action.AddedLines += lines
			case diff.Delete:
				action.DeletedLines += lines
			case diff.Equal:
			}
		}
	}
}

// detectMime sniffs the file's content type from its first bytes.
func detectMime(file *object.File) string {
	reader, err := file.Blob.Reader()
	if err != nil {
		return "unknown"
	}
	defer reader.Close()

	buf := make([]byte, 512)
	n, err := io.ReadFull(reader, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "unknown"
	}
	mime := http.DetectContentType(buf[:n])
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	return mime
}

func (c *Clone) forEachCommit(fn func(*object.Commit) error) error {
	seen := make(map[plumbing.Hash]struct{})
	return c.forEachRemoteRef(func(ref *plumbing.Reference) error {
		iter, err := c.repo.Log(&git.LogOptions{From: ref.Hash()})
		if err != nil {
			return fmt.Errorf("failed to walk %s: %w", ref.Name(), err)
		}
		defer iter.Close()
		return iter.ForEach(func(commit *object.Commit) error {
			if _, ok := seen[commit.Hash]; ok {
				return nil
			}
			seen[commit.Hash] = struct{}{}
			return fn(commit)
		})
	})
}

func (c *Clone) forEachRemoteRef(fn func(*plumbing.Reference) error) error {
	refs, err := c.repo.References()
	if err != nil {
		return fmt.Errorf("failed to list references: %w", err)
	}
	defer refs.Close()
	if err := refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference || !ref.Name().IsRemote() {
			return nil
		}
		return fn(ref)
	}); err != nil {
		return fmt.Errorf("failed to iterate references: %w", err)
	}
	return nil
}

// IsMimeRelevant reports whether content of the given type is worth
// collecting. Binary and media types are blocklisted.
func IsMimeRelevant(mimeType string) bool {
	if mimeType == "" {
		return false
	}
	for _, prefix := range []string{
		"image/",
		"audio/",
		"video/",
		"model/",
		"chemical/",
		"application/vnd",
		"application/octet-stream",
	} {
		if strings.HasPrefix(mimeType, prefix) {
			return false
		}
	}
	return true
}
