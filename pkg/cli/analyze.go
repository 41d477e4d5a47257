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

package cli

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/abcxyz/pkg/cli"
	"github.com/abcxyz/pkg/logging"

	"github.com/abcxyz/github-graph-miner/pkg/analysis"
)

var _ cli.Command = (*AnalyzeCommand)(nil)

// The AnalyzeCommand runs the metric queries over an already mined project
// and prints the results.
type AnalyzeCommand struct {
	cli.BaseCommand

	cfg *analysis.Config

	// testFlagSetOpts is only used for testing.
	testFlagSetOpts []cli.Option
}

func (c *AnalyzeCommand) Desc() string {
	return `Compute metrics for a mined repository`
}

func (c *AnalyzeCommand) Help() string {
	return `
Usage: {{ COMMAND }} [options]

  Compute activity metrics over a mined project: commit history, issue and
  pull request latencies, contributor dynamics, and label usage. Without
  -project-id the known projects are listed.
`
}

func (c *AnalyzeCommand) Flags() *cli.FlagSet {
	c.cfg = &analysis.Config{}
	set := cli.NewFlagSet(c.testFlagSetOpts...)
	return c.cfg.ToFlags(set)
}

func (c *AnalyzeCommand) Run(ctx context.Context, args []string) error {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	args = f.Args()
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %q", args)
	}

	logger := logging.FromContext(ctx)

	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a, err := analysis.New(ctx, c.cfg.DatabaseURI, c.cfg.DatabaseUsername, c.cfg.DatabasePassword)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := a.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "failed to close database connection", "error", err)
		}
	}()

	if c.cfg.ProjectID == "" {
		return c.listProjects(ctx, a)
	}
	return c.report(ctx, a, c.cfg.ProjectID)
}

func (c *AnalyzeCommand) listProjects(ctx context.Context, a *analysis.Analysis) error {
	projects, err := a.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}
	if len(projects) == 0 {
		c.Outf("no mined projects found")
		return nil
	}
	for _, p := range projects {
		c.Outf("%s\t%s", p.ID, p.Name)
	}
	return nil
}

func (c *AnalyzeCommand) report(ctx context.Context, a *analysis.Analysis, projectID string) error {
	commits, err := a.CommitsPerMonth(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to compute commit history: %w", err)
	}
	c.Outf("commits per month:")
	for _, m := range commits {
		c.Outf("  %04d-%02d\t%d", m.Year, m.Month, m.Count)
	}

	authors, err := a.CommitCountByAuthor(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to compute commit authors: %w", err)
	}
	c.Outf("commits per author:")
	for _, au := range authors {
		c.Outf("  %s\t%d", au.Login, au.Count)
	}

	issueClose, err := a.AvgIssueCloseTimePerMonth(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to compute issue close times: %w", err)
	}
	c.Outf("average issue close time per month:")
	for _, m := range issueClose {
		c.Outf("  %04d-%02d\t%s\t(%d issues)", m.Year, m.Month, formatDuration(m.Avg), m.Samples)
	}

	issueResponse, err := a.AvgIssueResponseTimePerMonth(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to compute issue response times: %w", err)
	}
	c.Outf("average issue response time per month:")
	for _, m := range issueResponse {
		c.Outf("  %04d-%02d\t%s\t(%d issues)", m.Year, m.Month, formatDuration(m.Avg), m.Samples)
	}

	prClose, err := a.AvgPullRequestCloseTimePerMonth(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to compute pull request close times: %w", err)
	}
	c.Outf("average pull request close time per month:")
	for _, m := range prClose {
		c.Outf("  %04d-%02d\t%s\t(%d pull requests)", m.Year, m.Month, formatDuration(m.Avg), m.Samples)
	}

	prMerge, err := a.AvgPullRequestMergeTimePerMonth(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to compute pull request merge times: %w", err)
	}
	c.Outf("average pull request merge time per month:")
	for _, m := range prMerge {
		c.Outf("  %04d-%02d\t%s\t(%d pull requests)", m.Year, m.Month, formatDuration(m.Avg), m.Samples)
	}

	newIssueAuthors, err := a.NewIssueAuthorsPerMonth(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to compute new issue authors: %w", err)
	}
	c.Outf("new issue authors per month:")
	for _, m := range newIssueAuthors {
		c.Outf("  %04d-%02d\t%d", m.Month.Year(), m.Month.Month(), m.Count)
	}

	newPRAuthors, err := a.NewPullRequestAuthorsPerMonth(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to compute new pull request authors: %w", err)
	}
	c.Outf("new pull request authors per month:")
	for _, m := range newPRAuthors {
		c.Outf("  %04d-%02d\t%d", m.Month.Year(), m.Month.Month(), m.Count)
	}

	issueSplit, err := a.ClosedIssuesPerMonth(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to compute issue state history: %w", err)
	}
	c.Outf("open/closed issues per month:")
	for _, m := range issueSplit {
		c.Outf("  %04d-%02d\t%d open\t%d closed", m.Month.Year(), m.Month.Month(), m.Open, m.Closed)
	}

	prSplit, err := a.ClosedPullRequestsPerMonth(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to compute pull request state history: %w", err)
	}
	c.Outf("open/closed pull requests per month:")
	for _, m := range prSplit {
		c.Outf("  %04d-%02d\t%d open\t%d closed", m.Month.Year(), m.Month.Month(), m.Open, m.Closed)
	}

	issueComments, err := a.IssueCommentCounts(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to compute issue comment counts: %w", err)
	}
	c.Outf("issue comments per author:")
	for _, au := range issueComments {
		c.Outf("  %s\t%d", au.Login, au.Count)
	}

	discussionComments, err := a.DiscussionCommentCounts(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to compute discussion comment counts: %w", err)
	}
	c.Outf("discussion comments per author:")
	for _, au := range discussionComments {
		c.Outf("  %s\t%d", au.Login, au.Count)
	}

	labels, err := a.LabelUsageCounts(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to compute label usage: %w", err)
	}
	c.Outf("label usage:")
	for _, l := range labels {
		c.Outf("  %s\t%d issues\t%d pull requests", l.Name, l.Issues, l.PullRequests)
	}
	return nil
}

// formatDuration renders a database duration in calendar-aware units.
func formatDuration(d dbtype.Duration) string {
	hours := d.Seconds / 3600
	minutes := (d.Seconds % 3600) / 60
	return fmt.Sprintf("%dmo %dd %dh %dm", d.Months, d.Days, hours, minutes)
}
