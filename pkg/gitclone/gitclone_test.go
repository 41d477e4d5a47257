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

package gitclone

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/google/go-cmp/cmp"
)

func TestIsMimeRelevant(t *testing.T) {
	t.Parallel()

	cases := []struct {
		mimeType string
		want     bool
	}{
		{"text/plain", true},
		{"text/html", true},
		{"application/json", true},
		{"application/xml", true},
		{"", false},
		{"image/png", false},
		{"audio/mpeg", false},
		{"video/mp4", false},
		{"model/gltf+json", false},
		{"chemical/x-pdb", false},
		{"application/vnd.ms-excel", false},
		{"application/octet-stream", false},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.mimeType, func(t *testing.T) {
			t.Parallel()

			if got := IsMimeRelevant(tc.mimeType); got != tc.want {
				t.Errorf("IsMimeRelevant(%q) = %t, want %t", tc.mimeType, got, tc.want)
			}
		})
	}
}

// newTestClone builds an in-memory repository with two commits on a remote
// branch:
//
//	c1: adds a.txt ("one\n")
//	c2: rewrites a.txt ("one\ntwo\n") and adds b.txt
//
// A second remote branch points at c1 so deduplication is observable.
func newTestClone(tb testing.TB, content bool) (*Clone, []string) {
	tb.Helper()

	repo, err := git.Init(memory.NewStorage(), memfs.New())
	if err != nil {
		tb.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		tb.Fatal(err)
	}
	fs := wt.Filesystem

	sig := &object.Signature{
		Name:  "octo",
		Email: "octo@example.com",
		When:  time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC),
	}

	write := func(path, data string) {
		if err := util.WriteFile(fs, path, []byte(data), 0o644); err != nil {
			tb.Fatal(err)
		}
		if _, err := wt.Add(path); err != nil {
			tb.Fatal(err)
		}
	}

	write("a.txt", "one\n")
	c1, err := wt.Commit("add a", &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		tb.Fatal(err)
	}

	write("a.txt", "one\ntwo\n")
	write("b.txt", "hello\n")
	sig2 := *sig
	sig2.When = sig.When.Add(time.Hour)
	c2, err := wt.Commit("extend a, add b", &git.CommitOptions{Author: &sig2, Committer: &sig2})
	if err != nil {
		tb.Fatal(err)
	}

	for name, hash := range map[string]plumbing.Hash{
		"refs/remotes/origin/main":    c2,
		"refs/remotes/origin/feature": c1,
	} {
		ref := plumbing.NewHashReference(plumbing.ReferenceName(name), hash)
		if err := repo.Storer.SetReference(ref); err != nil {
			tb.Fatal(err)
		}
	}

	return open("octo", "hello-world", repo, content), []string{c1.String(), c2.String()}
}

func TestClone_CommitsDeduplicatesAcrossBranches(t *testing.T) {
	t.Parallel()

	clone, shas := newTestClone(t, false)

	var got []string
	merges := 0
	if err := clone.Commits(func(c *Commit) error {
		got = append(got, c.Hash)
		if c.Merge {
			merges++
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	sort.Strings(got)
	want := append([]string{}, shas...)
	sort.Strings(want)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("commits diff (-want, +got):\n%s", diff)
	}
	if merges != 0 {
		t.Errorf("expected no merge commits, got %d", merges)
	}
}

func TestClone_Branches(t *testing.T) {
	t.Parallel()

	clone, shas := newTestClone(t, false)

	got := make(map[string]*Branch)
	if err := clone.Branches(func(b *Branch) error {
		got[b.Name] = b
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	main, ok := got["origin/main"]
	if !ok {
		t.Fatalf("missing branch origin/main, got %v", got)
	}
	if main.HeadCommitSha != shas[1] {
		t.Errorf("origin/main head = %s, want %s", main.HeadCommitSha, shas[1])
	}
	if len(main.CommitShas) != 2 {
		t.Errorf("origin/main commits = %d, want 2", len(main.CommitShas))
	}

	feature, ok := got["origin/feature"]
	if !ok {
		t.Fatalf("missing branch origin/feature, got %v", got)
	}
	if feature.HeadCommitSha != shas[0] {
		t.Errorf("origin/feature head = %s, want %s", feature.HeadCommitSha, shas[0])
	}
	if len(feature.CommitShas) != 1 {
		t.Errorf("origin/feature commits = %d, want 1", len(feature.CommitShas))
	}
}

func TestClone_FileActions(t *testing.T) {
	t.Parallel()

	clone, shas := newTestClone(t, true)
	ctx := context.Background()

	actions := make(map[string]*FileAction)
	if err := clone.FileActions(ctx, func(a *FileAction) error {
		actions[a.PathAfter] = a
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	modified, ok := actions["a.txt"]
	if !ok {
		t.Fatalf("missing action for a.txt, got %v", actions)
	}
	if modified.ChangeType != "M" {
		t.Errorf("a.txt change type = %q, want M", modified.ChangeType)
	}
	if modified.ChildCommitSha != shas[1] || modified.ParentCommitSha != shas[0] {
		t.Errorf("a.txt commits = (%s, %s), want (%s, %s)",
			modified.ChildCommitSha, modified.ParentCommitSha, shas[1], shas[0])
	}
	if modified.AddedLines != 1 || modified.DeletedLines != 0 {
		t.Errorf("a.txt line counts = (+%d, -%d), want (+1, -0)",
			modified.AddedLines, modified.DeletedLines)
	}
	if modified.MimeTypeAfter != "text/plain" {
		t.Errorf("a.txt mime = %q, want text/plain", modified.MimeTypeAfter)
	}
	if modified.Diff == "" {
		t.Error("a.txt diff empty with content collection enabled")
	}

	added, ok := actions["b.txt"]
	if !ok {
		t.Fatalf("missing action for b.txt, got %v", actions)
	}
	if added.ChangeType != "A" || !added.NewFile {
		t.Errorf("b.txt change type = %q (new: %t), want A (new: true)", added.ChangeType, added.NewFile)
	}
	if added.FileSizeBefore != -1 || added.MimeTypeBefore != "unknown" {
		t.Errorf("b.txt before sentinels = (%d, %q), want (-1, unknown)",
			added.FileSizeBefore, added.MimeTypeBefore)
	}
	if added.AddedLines != 1 {
		t.Errorf("b.txt added lines = %d, want 1", added.AddedLines)
	}
}

func TestClone_FileActionsWithoutContent(t *testing.T) {
	t.Parallel()

	clone, _ := newTestClone(t, false)
	ctx := context.Background()

	if err := clone.FileActions(ctx, func(a *FileAction) error {
		if a.Diff != "" {
			t.Errorf("diff collected for %s with content disabled", a.PathAfter)
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}
