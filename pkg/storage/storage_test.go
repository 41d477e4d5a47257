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

package storage

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/abcxyz/github-graph-miner/pkg/graph"
)

func readCSV(tb testing.TB, path string) [][]string {
	tb.Helper()

	f, err := os.Open(path)
	if err != nil {
		tb.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		tb.Fatalf("failed to read %s: %v", path, err)
	}
	return rows
}

func TestStorage_AddNodeDeduplicates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New("octo", "repo", dir)

	user := graph.NewNode(graph.NodeUser).Set("id", "U_1").Set("login", "octocat")
	if err := s.AddNode(user); err != nil {
		t.Fatal(err)
	}
	// Same key again, different incidental property values.
	again := graph.NewNode(graph.NodeUser).Set("id", "U_1").Set("login", "other")
	if err := s.AddNode(again); err != nil {
		t.Fatal(err)
	}
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}

	sum := sha256.Sum256([]byte("octo/repo"))
	path := filepath.Join(dir, hex.EncodeToString(sum[:])+"_User.csv")
	rows := readCSV(t, path)

	want := [][]string{
		{"id", "login", "name", "email", "createdAt"},
		{"U_1", "octocat", "-", "-", "0001-01-01T01:01:01Z"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("User file diff (-want, +got):\n%s", diff)
	}
}

func TestStorage_AddRelDeduplicates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New("octo", "repo", dir)

	user := graph.NewNode(graph.NodeUser).Set("id", "U_1")
	issue := graph.NewNode(graph.NodeIssue).Set("id", "I_1")

	first := graph.NewRel(graph.RelCreatesIssue, user, issue).Set("createdAt", "2023-06-02T10:00:00Z")
	duplicate := graph.NewRel(graph.RelCreatesIssue, user, issue).Set("createdAt", "2023-06-02T10:00:00Z")
	distinct := graph.NewRel(graph.RelCreatesIssue, user, issue).Set("createdAt", "2024-01-01T00:00:00Z")

	for _, r := range []*graph.Rel{first, duplicate, distinct} {
		if err := s.AddRel(r); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}

	sum := sha256.Sum256([]byte("octo/repo"))
	path := filepath.Join(dir, hex.EncodeToString(sum[:])+"_CREATES_ISSUE.csv")
	rows := readCSV(t, path)

	want := [][]string{
		{"source_id", "destination_id", "createdAt"},
		{"U_1", "I_1", "2023-06-02T10:00:00Z"},
		{"U_1", "I_1", "2024-01-01T00:00:00Z"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("CREATES_ISSUE file diff (-want, +got):\n%s", diff)
	}
}

func TestStorage_MonthIDs(t *testing.T) {
	t.Parallel()

	s := New("octo", "repo", t.TempDir())

	a := s.IssueMonthID("2023-06-02T10:00:00Z")
	b := s.IssueMonthID("2023-06-30T23:59:59Z")
	c := s.IssueMonthID("2023-07-01T00:00:00Z")

	if a != b {
		t.Errorf("same month produced different bucket ids: %q vs %q", a, b)
	}
	if a == c {
		t.Errorf("different months produced the same bucket id: %q", a)
	}
	if got := s.CommitMonthID("2023-06-02T10:00:00Z"); got == a {
		t.Error("issue and commit buckets share an id space")
	}
}

func TestStorage_LoadPaths(t *testing.T) {
	t.Parallel()

	s := New("octo", "repo", t.TempDir())

	if _, ok := s.NodeLoadPath(graph.NodeUser); ok {
		t.Error("NodeLoadPath reported a file before any write")
	}

	if err := s.AddNode(graph.NewNode(graph.NodeUser).Set("id", "U_1")); err != nil {
		t.Fatal(err)
	}
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}

	path, ok := s.NodeLoadPath(graph.NodeUser)
	if !ok {
		t.Fatal("NodeLoadPath did not find the written file")
	}
	sum := sha256.Sum256([]byte("octo/repo"))
	if want := "file:///" + hex.EncodeToString(sum[:]) + "_User.csv"; path != want {
		t.Errorf("NodeLoadPath = %q, want %q", path, want)
	}
}

func TestStorage_DeleteFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New("octo", "repo", dir)

	if err := s.AddNode(graph.NewNode(graph.NodeUser).Set("id", "U_1")); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteFiles(); err != nil {
		t.Fatal(err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("files remain after DeleteFiles: %v", matches)
	}
}
