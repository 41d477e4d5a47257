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

// Package analysis computes repository metrics over the loaded graph:
// commit activity, issue and pull request latencies, contributor dynamics,
// and label usage.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// Analysis runs metric queries over one database connection.
type Analysis struct {
	driver neo4j.DriverWithContext
}

// New connects to the database and verifies connectivity.
func New(ctx context.Context, uri, username, password string) (*Analysis, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to reach database at %s: %w", uri, err)
	}
	return &Analysis{driver: driver}, nil
}

// Close releases the driver connection.
func (a *Analysis) Close(ctx context.Context) error {
	if err := a.driver.Close(ctx); err != nil {
		return fmt.Errorf("failed to close database driver: %w", err)
	}
	return nil
}

// Project identifies one mined repository in the database.
type Project struct {
	ID   string
	Name string
}

// MonthCount is a per-month counter keyed by calendar year and month.
type MonthCount struct {
	Year  int64
	Month int64
	Count int64
}

// AuthorCount is a per-user counter.
type AuthorCount struct {
	Login string
	Count int64
}

// MonthDuration is a per-month duration average with the number of samples
// it aggregates.
type MonthDuration struct {
	Year    int64
	Month   int64
	Avg     dbtype.Duration
	Samples int64
}

// MonthDelta is a per-month counter keyed by the first-of-month timestamp.
type MonthDelta struct {
	Month time.Time
	Count int64
}

// MonthOpenClosed is the running split of open versus closed records at the
// end of a month.
type MonthOpenClosed struct {
	Month  time.Time
	Open   int64
	Closed int64
}

// LabelUsage counts how often a label appears on issues and pull requests.
type LabelUsage struct {
	Name         string
	Issues       int64
	PullRequests int64
}

// ListProjects returns every project currently in the database.
func (a *Analysis) ListProjects(ctx context.Context) ([]Project, error) {
	var out []Project
	err := a.query(ctx, listProjectsQuery, func(record *neo4j.Record) {
		out = append(out, Project{
			ID:   asString(record.Values[0]),
			Name: asString(record.Values[1]),
		})
	})
	return out, err
}

// CommitsPerMonth counts default-branch commits per calendar month.
func (a *Analysis) CommitsPerMonth(ctx context.Context, projectID string) ([]MonthCount, error) {
	var out []MonthCount
	err := a.query(ctx, commitsPerMonthQuery(projectID), func(record *neo4j.Record) {
		out = append(out, MonthCount{
			Year:  asInt64(record.Values[0]),
			Month: asInt64(record.Values[1]),
			Count: asInt64(record.Values[2]),
		})
	})
	return out, err
}

// CommitCountByAuthor counts authored default-branch commits per user, most
// active first.
func (a *Analysis) CommitCountByAuthor(ctx context.Context, projectID string) ([]AuthorCount, error) {
	return a.authorCounts(ctx, commitCountByAuthorQuery(projectID))
}

// IssueCommentCounts counts issue comments per commenting user.
func (a *Analysis) IssueCommentCounts(ctx context.Context, projectID string) ([]AuthorCount, error) {
	return a.authorCounts(ctx, issueCommentCountQuery(projectID))
}

// DiscussionCommentCounts counts discussion comments per authoring user.
func (a *Analysis) DiscussionCommentCounts(ctx context.Context, projectID string) ([]AuthorCount, error) {
	return a.authorCounts(ctx, discussionCommentCountQuery(projectID))
}

func (a *Analysis) authorCounts(ctx context.Context, query string) ([]AuthorCount, error) {
	var out []AuthorCount
	err := a.query(ctx, query, func(record *neo4j.Record) {
		out = append(out, AuthorCount{
			Login: asString(record.Values[0]),
			Count: asInt64(record.Values[1]),
		})
	})
	return out, err
}

// AvgIssueCloseTimePerMonth averages the time between issue creation and
// closing per month.
func (a *Analysis) AvgIssueCloseTimePerMonth(ctx context.Context, projectID string) ([]MonthDuration, error) {
	return a.monthDurations(ctx, avgIssueCloseTimeQuery(projectID))
}

// AvgIssueResponseTimePerMonth averages the time to the first comment on an
// issue per month.
func (a *Analysis) AvgIssueResponseTimePerMonth(ctx context.Context, projectID string) ([]MonthDuration, error) {
	return a.monthDurations(ctx, avgIssueResponseTimeQuery(projectID))
}

// AvgPullRequestCloseTimePerMonth averages the time between pull request
// creation and closing per month.
func (a *Analysis) AvgPullRequestCloseTimePerMonth(ctx context.Context, projectID string) ([]MonthDuration, error) {
	return a.monthDurations(ctx, avgPullRequestCloseTimeQuery(projectID))
}

// AvgPullRequestMergeTimePerMonth averages the time between pull request
// creation and merge per month.
func (a *Analysis) AvgPullRequestMergeTimePerMonth(ctx context.Context, projectID string) ([]MonthDuration, error) {
	return a.monthDurations(ctx, avgPullRequestMergeTimeQuery(projectID))
}

func (a *Analysis) monthDurations(ctx context.Context, query string) ([]MonthDuration, error) {
	var out []MonthDuration
	err := a.query(ctx, query, func(record *neo4j.Record) {
		entry := MonthDuration{
			Year:    asInt64(record.Values[0]),
			Month:   asInt64(record.Values[1]),
			Samples: asInt64(record.Values[3]),
		}
		if d, ok := record.Values[2].(dbtype.Duration); ok {
			entry.Avg = d
		}
		out = append(out, entry)
	})
	return out, err
}

// NewIssueAuthorsPerMonth counts users whose first issue in the project
// falls into each month.
func (a *Analysis) NewIssueAuthorsPerMonth(ctx context.Context, projectID string) ([]MonthDelta, error) {
	return a.monthDeltas(ctx, newIssueAuthorsQuery(projectID))
}

// NewPullRequestAuthorsPerMonth counts users whose first pull request in the
// project falls into each month.
func (a *Analysis) NewPullRequestAuthorsPerMonth(ctx context.Context, projectID string) ([]MonthDelta, error) {
	return a.monthDeltas(ctx, newPullRequestAuthorsQuery(projectID))
}

func (a *Analysis) monthDeltas(ctx context.Context, query string) ([]MonthDelta, error) {
	var out []MonthDelta
	err := a.query(ctx, query, func(record *neo4j.Record) {
		out = append(out, MonthDelta{
			Month: asTime(record.Values[0]),
			Count: asInt64(record.Values[1]),
		})
	})
	return out, err
}

// LabelUsageCounts counts issues and pull requests per project label.
func (a *Analysis) LabelUsageCounts(ctx context.Context, projectID string) ([]LabelUsage, error) {
	var out []LabelUsage
	err := a.query(ctx, labelUsageQuery(projectID), func(record *neo4j.Record) {
		out = append(out, LabelUsage{
			Name:         asString(record.Values[0]),
			Issues:       asInt64(record.Values[1]),
			PullRequests: asInt64(record.Values[2]),
		})
	})
	return out, err
}

// ClosedIssuesPerMonth returns the running open/closed issue split per
// month.
func (a *Analysis) ClosedIssuesPerMonth(ctx context.Context, projectID string) ([]MonthOpenClosed, error) {
	return a.monthOpenClosed(ctx, closedIssuesQuery(projectID))
}

// ClosedPullRequestsPerMonth returns the running open/closed pull request
// split per month.
func (a *Analysis) ClosedPullRequestsPerMonth(ctx context.Context, projectID string) ([]MonthOpenClosed, error) {
	return a.monthOpenClosed(ctx, closedPullRequestsQuery(projectID))
}

func (a *Analysis) monthOpenClosed(ctx context.Context, query string) ([]MonthOpenClosed, error) {
	var out []MonthOpenClosed
	err := a.query(ctx, query, func(record *neo4j.Record) {
		out = append(out, MonthOpenClosed{
			Month:  asTime(record.Values[0]),
			Open:   asInt64(record.Values[1]),
			Closed: asInt64(record.Values[2]),
		})
	})
	return out, err
}

// query runs one read query and hands every record to scan.
func (a *Analysis) query(ctx context.Context, query string, scan func(record *neo4j.Record)) error {
	session := a.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, nil)
	if err != nil {
		return fmt.Errorf("failed to run metric query: %w", err)
	}
	for result.Next(ctx) {
		scan(result.Record())
	}
	if err := result.Err(); err != nil {
		return fmt.Errorf("failed to stream metric results: %w", err)
	}
	return nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	n, _ := v.(int64)
	return n
}

func asTime(v any) time.Time {
	t, _ := v.(time.Time)
	return t
}
