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

// Package process translates collected records into the property graph. Each
// method walks one record shape, emits its nodes and relationships into the
// preprocessor storage, and substitutes the reserved sentinel user wherever
// an actor reference is missing.
package process

import (
	"time"

	"github.com/abcxyz/github-graph-miner/pkg/graph"
	"github.com/abcxyz/github-graph-miner/pkg/record"
	"github.com/abcxyz/github-graph-miner/pkg/storage"
)

// Processor emits graph elements for one repository run.
type Processor struct {
	storage    *storage.Storage
	projectID  string
	deferFiles bool
}

// Option tunes processor behavior.
type Option func(*Processor)

// WithDeferredPullRequestFiles skips the changed files reported on a pull
// request record. Used when the dedicated REST file pass runs, which carries
// the full patch text for the same files.
func WithDeferredPullRequestFiles() Option {
	return func(p *Processor) { p.deferFiles = true }
}

// New creates a processor writing into s. projectID is the GraphQL node id of
// the repository, which anchors every project-scoped relationship.
func New(s *storage.Storage, projectID string, opts ...Option) *Processor {
	p := &Processor{storage: s, projectID: projectID}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// projectRef returns a key-only project node for use as a relationship
// endpoint. The full project node is written by Project.
func (p *Processor) projectRef() *graph.Node {
	return graph.NewNode(graph.NodeProject).Set("id", p.projectID)
}

func commitRef(hash string) *graph.Node {
	return graph.NewNode(graph.NodeCommit).Set("hash", hash)
}

// userNode stores and returns the user node for actor. A missing actor (a
// deleted account, or one hidden by privacy settings) resolves to the
// sentinel user so authorship relationships never dangle.
func (p *Processor) userNode(actor *record.Actor) (*graph.Node, error) {
	if actor == nil || actor.ID == "" {
		n := graph.SentinelUser()
		if err := p.storage.AddNode(n); err != nil {
			return nil, err
		}
		return n, nil
	}
	n := graph.NewNode(graph.NodeUser).
		Set("id", actor.ID).
		Set("login", actor.Login).
		Set("name", actor.Name).
		Set("email", actor.Email).
		Set("createdAt", actor.CreatedAt)
	if err := p.storage.AddNode(n); err != nil {
		return nil, err
	}
	return n, nil
}

// labelNode stores and returns the node for one label.
func (p *Processor) labelNode(l *record.Label) (*graph.Node, error) {
	n := graph.NewNode(graph.NodeLabel).
		Set("id", l.ID).
		Set("name", l.Name).
		Set("color", l.Color).
		Set("description", l.Description).
		Set("createdAt", l.CreatedAt)
	if err := p.storage.AddNode(n); err != nil {
		return nil, err
	}
	return n, nil
}

// monthBucket stores the time-bucket node for the month of timestamp and
// links the project to it. The id comes from mint, so every record of the
// same month within a run lands in the same bucket. A timestamp that does
// not parse yields no bucket.
func (p *Processor) monthBucket(kind graph.NodeKind, rel graph.RelKind, mint func(string) string, timestamp string) (*graph.Node, error) {
	t, err := time.Parse(graph.TimeFormat, timestamp)
	if err != nil {
		return nil, nil
	}
	bucket := graph.NewNode(kind).
		Set("id", mint(timestamp)).
		Set("year", t.Year()).
		Set("month", int(t.Month()))
	if err := p.storage.AddNode(bucket); err != nil {
		return nil, err
	}
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthRel := graph.NewRel(rel, p.projectRef(), bucket).
		Set("date_month", first.Format(graph.TimeFormat))
	if err := p.storage.AddRel(monthRel); err != nil {
		return nil, err
	}
	return bucket, nil
}

func (p *Processor) issueMonth(timestamp string) (*graph.Node, error) {
	return p.monthBucket(graph.NodeProjectIssueMonth, graph.RelProjectHasIssueMonth, p.storage.IssueMonthID, timestamp)
}

func (p *Processor) pullRequestMonth(timestamp string) (*graph.Node, error) {
	return p.monthBucket(graph.NodeProjectPullRequestMonth, graph.RelProjectHasPullRequestMonth, p.storage.PullRequestMonthID, timestamp)
}

func (p *Processor) commitMonth(timestamp string) (*graph.Node, error) {
	return p.monthBucket(graph.NodeProjectCommitMonth, graph.RelProjectHasCommitMonth, p.storage.CommitMonthID, timestamp)
}

// milestone stores the milestone node with its creator and project links and
// returns it for the caller's REQUIRES_* relationship.
func (p *Processor) milestone(m *record.Milestone) (*graph.Node, error) {
	n := graph.NewNode(graph.NodeMilestone).
		Set("id", m.ID).
		Set("number", m.Number).
		Set("title", m.Title).
		Set("description", m.Description).
		Set("dueOn", m.DueOn).
		Set("closedAt", m.ClosedAt).
		Set("createdAt", m.CreatedAt).
		Set("state", m.State)
	if m.ProgressPercentage != nil {
		n.Set("progressPercentage", *m.ProgressPercentage)
	}
	if err := p.storage.AddNode(n); err != nil {
		return nil, err
	}

	creator, err := p.userNode(m.Creator)
	if err != nil {
		return nil, err
	}
	creates := graph.NewRel(graph.RelCreatesMilestone, creator, n).
		Set("createdAt", m.CreatedAt)
	if err := p.storage.AddRel(creates); err != nil {
		return nil, err
	}
	if err := p.storage.AddRel(graph.NewRel(graph.RelProjectHasMilestone, p.projectRef(), n)); err != nil {
		return nil, err
	}
	return n, nil
}

func setInt(n *graph.Node, name string, v *int) {
	if v != nil {
		n.Set(name, *v)
	}
}
