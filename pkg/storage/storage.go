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

// Package storage buffers the graph produced by the processors: an in-memory
// dedup container plus per-kind CSV files that the loader later streams into
// the database. One Storage belongs to exactly one repository worker; it is
// not safe for concurrent use.
package storage

import (
	"github.com/abcxyz/github-graph-miner/pkg/graph"
)

// Storage is the preprocessor storage for a single repository run.
type Storage struct {
	container *container
	files     *fileHandler

	issueMonthIDs       map[string]string
	pullRequestMonthIDs map[string]string
	commitMonthIDs      map[string]string
}

// New creates the storage for one repository. dir is the shared intermediate
// file directory; files are namespaced by a hash of owner/name.
func New(owner, name, dir string) *Storage {
	return &Storage{
		container:           newContainer(),
		files:               newFileHandler(owner, name, dir),
		issueMonthIDs:       make(map[string]string),
		pullRequestMonthIDs: make(map[string]string),
		commitMonthIDs:      make(map[string]string),
	}
}

// AddNode appends the node to its kind's file unless an equal key was already
// written during this run.
func (s *Storage) AddNode(n *graph.Node) error {
	kind := n.Kind()
	if !s.container.addNode(kind, n.Key()) {
		return nil
	}
	return s.files.append(kind.Label(), kind.Header(), n.Values())
}

// AddRel appends the relationship to its kind's file unless an identical
// (source, kind, destination, properties) tuple was already written.
func (s *Storage) AddRel(r *graph.Rel) error {
	kind := r.Kind()
	if !s.container.addRel(kind, r.SourceID(), graph.RelContentHash(r)) {
		return nil
	}
	return s.files.append(kind.Name(), kind.Header(), r.Values())
}

// BranchID returns the stable branch identifier for the project and branch
// name.
func (s *Storage) BranchID(projectID, branchName string) string {
	return graph.BranchID(projectID, branchName)
}

// IssueMonthID returns the run-scoped bucket id for the month of the given
// ISO-8601 timestamp, minting it on first reference.
func (s *Storage) IssueMonthID(timestamp string) string {
	return monthID(s.issueMonthIDs, timestamp)
}

// PullRequestMonthID returns the run-scoped bucket id for the month of the
// given ISO-8601 timestamp, minting it on first reference.
func (s *Storage) PullRequestMonthID(timestamp string) string {
	return monthID(s.pullRequestMonthIDs, timestamp)
}

// CommitMonthID returns the run-scoped bucket id for the month of the given
// ISO-8601 timestamp, minting it on first reference.
func (s *Storage) CommitMonthID(timestamp string) string {
	return monthID(s.commitMonthIDs, timestamp)
}

// monthID memoizes by the year-month prefix of the timestamp.
func monthID(memo map[string]string, timestamp string) string {
	key := timestamp
	if len(key) > 7 {
		key = key[:7]
	}
	if id, ok := memo[key]; ok {
		return id
	}
	id := graph.NewOpaqueID()
	memo[key] = id
	return id
}

// NodeLoadPath returns the file:///<basename> load path of the kind's CSV
// file, or false when nothing of that kind was written.
func (s *Storage) NodeLoadPath(kind graph.NodeKind) (string, bool) {
	return s.files.loadPath(kind.Label())
}

// RelLoadPath returns the file:///<basename> load path of the kind's CSV
// file, or false when nothing of that kind was written.
func (s *Storage) RelLoadPath(kind graph.RelKind) (string, bool) {
	return s.files.loadPath(kind.Name())
}

// Flush flushes and closes all open files. Call before handing the files to
// the loader.
func (s *Storage) Flush() error {
	return s.files.close()
}

// DeleteFiles removes every intermediate file of this repository, including
// leftovers from earlier runs.
func (s *Storage) DeleteFiles() error {
	return s.files.deleteAll()
}
