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

// Package collector turns GitHub API responses into the unified record
// model. The GraphQL collector drives the multi-root pagination loop; the
// REST collector re-fetches records whose nested pages overflowed.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shurcooL/githubv4"

	"github.com/abcxyz/github-graph-miner/pkg/githubclient"
	"github.com/abcxyz/github-graph-miner/pkg/querytree"
	"github.com/abcxyz/github-graph-miner/pkg/record"
)

// GraphQL collects repository data through the GraphQL API.
type GraphQL struct {
	client *githubclient.GraphQL
	owner  string
	name   string
}

// NewGraphQL creates a collector over an already constructed wrapper.
func NewGraphQL(client *githubclient.GraphQL, owner, name string) *GraphQL {
	return &GraphQL{client: client, owner: owner, name: name}
}

// Rounds drives the query tree to exhaustion, handing each decoded page to
// fn as soon as it arrives. It returns the numbers of records whose nested
// collections overflowed their first page, per root, deduplicated and
// sorted.
func (c *GraphQL) Rounds(ctx context.Context, tree *querytree.Tree, fn func(*record.Repository) error) (map[querytree.RootKind][]int, error) {
	partial := make(map[querytree.RootKind]map[int]struct{})

	for !tree.Finished() {
		inner, ok := tree.Query()
		if !ok {
			break
		}
		res, err := c.client.Execute(ctx, inner)
		if err != nil {
			return nil, err
		}

		page := &record.Repository{}
		if err := json.Unmarshal(res.Repository, page); err != nil {
			return nil, fmt.Errorf("failed to decode repository page: %w", err)
		}
		roundPartial, err := tree.Parse(res.Repository)
		if err != nil {
			return nil, err
		}
		for kind, numbers := range roundPartial {
			if partial[kind] == nil {
				partial[kind] = make(map[int]struct{})
			}
			for _, n := range numbers {
				partial[kind][n] = struct{}{}
			}
		}

		if err := fn(page); err != nil {
			return nil, err
		}
	}

	out := make(map[querytree.RootKind][]int, len(partial))
	for kind, set := range partial {
		numbers := make([]int, 0, len(set))
		for n := range set {
			numbers = append(numbers, n)
		}
		sort.Ints(numbers)
		out[kind] = numbers
	}
	return out, nil
}

// projectQuery is the static repository metadata query. The owner fragment
// aliases organization fields so both owner kinds decode into one struct.
type projectQuery struct {
	Repository struct {
		ID             githubv4.String
		URL            githubv4.String    `graphql:"url"`
		Name           githubv4.String
		Description    *githubv4.String
		IsArchived     githubv4.Boolean
		ArchivedAt     *githubv4.DateTime
		IsMirror       githubv4.Boolean
		MirrorURL      *githubv4.String   `graphql:"mirrorUrl"`
		IsLocked       githubv4.Boolean
		LockReason     *githubv4.String
		DiskUsage      githubv4.Int
		Visibility     githubv4.String
		ForkingAllowed githubv4.Boolean
		HasWikiEnabled githubv4.Boolean
		CreatedAt      githubv4.DateTime
		Languages      struct {
			Nodes []struct {
				Name githubv4.String
			}
		} `graphql:"languages(first: 100)"`
		RepositoryTopics struct {
			Nodes []struct {
				Topic struct {
					ID   githubv4.String
					Name githubv4.String
				}
			}
		} `graphql:"repositoryTopics(first: 100)"`
		LicenseInfo *struct {
			SpdxID *githubv4.String `graphql:"spdxId"`
		}
		Owner struct {
			Typename githubv4.String `graphql:"__typename"`
			User     struct {
				ID        githubv4.String
				Login     githubv4.String
				Name      *githubv4.String
				Email     githubv4.String
				CreatedAt githubv4.DateTime
			} `graphql:"... on User"`
			Organization struct {
				ID          githubv4.String
				Login       githubv4.String
				Name        *githubv4.String
				Email       *githubv4.String
				Description *githubv4.String
				CreatedAt   githubv4.DateTime
			} `graphql:"... on Organization"`
		}
	} `graphql:"repository(owner: $owner, name: $name)"`
	RateLimit struct {
		Remaining githubv4.Int
		Cost      githubv4.Int
		ResetAt   githubv4.DateTime
	}
}

// Project fetches the repository metadata document.
func (c *GraphQL) Project(ctx context.Context) (*record.Project, error) {
	var q projectQuery
	vars := map[string]any{
		"owner": githubv4.String(c.owner),
		"name":  githubv4.String(c.name),
	}
	if err := c.client.V4Client().Query(ctx, &q, vars); err != nil {
		return nil, fmt.Errorf("failed to fetch project metadata: %w", err)
	}
	if err := c.client.CheckBudget(ctx, int(q.RateLimit.Remaining), q.RateLimit.ResetAt.UTC().Format(time.RFC3339)); err != nil {
		return nil, err
	}

	repo := q.Repository
	project := &record.Project{
		ID:             string(repo.ID),
		URL:            string(repo.URL),
		Name:           string(repo.Name),
		Description:    optString(repo.Description),
		IsArchived:     bool(repo.IsArchived),
		IsMirror:       bool(repo.IsMirror),
		MirrorURL:      optString(repo.MirrorURL),
		IsLocked:       bool(repo.IsLocked),
		LockReason:     optString(repo.LockReason),
		DiskUsage:      int(repo.DiskUsage),
		Visibility:     string(repo.Visibility),
		ForkingAllowed: bool(repo.ForkingAllowed),
		HasWikiEnabled: bool(repo.HasWikiEnabled),
		CreatedAt:      dateTimeString(&repo.CreatedAt),
		ArchivedAt:     dateTimeString(repo.ArchivedAt),
	}
	for _, l := range repo.Languages.Nodes {
		project.Languages.Nodes = append(project.Languages.Nodes, record.Language{Name: string(l.Name)})
	}
	for _, t := range repo.RepositoryTopics.Nodes {
		project.RepositoryTopics.Nodes = append(project.RepositoryTopics.Nodes, record.TopicEdge{
			Topic: record.Topic{ID: string(t.Topic.ID), Name: string(t.Topic.Name)},
		})
	}
	if repo.LicenseInfo != nil {
		project.LicenseInfo = &record.License{SpdxID: optString(repo.LicenseInfo.SpdxID)}
	}

	owner := &record.Owner{Typename: string(repo.Owner.Typename)}
	if owner.Typename == "Organization" {
		org := repo.Owner.Organization
		owner.OrgID = string(org.ID)
		owner.OrgLogin = string(org.Login)
		owner.OrgName = optString(org.Name)
		owner.OrganizationEmail = optString(org.Email)
		owner.OrgDescription = optString(org.Description)
		owner.CreatedAt = dateTimeString(&org.CreatedAt)
	} else {
		user := repo.Owner.User
		owner.ID = string(user.ID)
		owner.Login = string(user.Login)
		owner.Name = optString(user.Name)
		owner.Email = string(user.Email)
		owner.CreatedAt = dateTimeString(&user.CreatedAt)
	}
	project.Owner = owner
	return project, nil
}

// Discussion fetches one discussion with the comment page at cursor. An
// empty cursor requests the first page.
func (c *GraphQL) Discussion(ctx context.Context, number int, cursor string) (*record.Discussion, error) {
	res, err := c.client.Execute(ctx, querytree.DiscussionQuery(number, cursor))
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Discussion record.Discussion `json:"discussion"`
	}
	if err := json.Unmarshal(res.Repository, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode discussion %d: %w", number, err)
	}
	return &envelope.Discussion, nil
}

func optString(s *githubv4.String) string {
	if s == nil {
		return ""
	}
	return string(*s)
}

func dateTimeString(t *githubv4.DateTime) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
