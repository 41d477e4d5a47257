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

// Project emits the project node with its license, owner, topic, and
// language context. Organization-owned and user-owned repositories produce
// different owner subgraphs.
func (p *Processor) Project(project *record.Project) error {
	node := graph.NewNode(graph.NodeProject).
		Set("id", project.ID).
		Set("url", project.URL).
		Set("name", project.Name).
		Set("description", project.Description).
		Set("isArchived", project.IsArchived).
		Set("archivedAt", project.ArchivedAt).
		Set("isMirror", project.IsMirror).
		Set("mirrorUrl", project.MirrorURL).
		Set("isLocked", project.IsLocked).
		Set("lockReason", project.LockReason).
		Set("diskUsage", project.DiskUsage).
		Set("visibility", project.Visibility).
		Set("forkingAllowed", project.ForkingAllowed).
		Set("hasWikiEnabled", project.HasWikiEnabled)
	if err := p.storage.AddNode(node); err != nil {
		return err
	}

	if project.LicenseInfo != nil && project.LicenseInfo.SpdxID != "" {
		license := graph.NewNode(graph.NodeLicense).
			Set("spdxId", project.LicenseInfo.SpdxID)
		if err := p.storage.AddNode(license); err != nil {
			return err
		}
		if err := p.storage.AddRel(graph.NewRel(graph.RelProjectIsLicensed, node, license)); err != nil {
			return err
		}
	}

	if err := p.owner(node, project.Owner); err != nil {
		return err
	}

	for _, edge := range project.RepositoryTopics.Nodes {
		topic := graph.NewNode(graph.NodeTopic).
			Set("id", edge.Topic.ID).
			Set("name", edge.Topic.Name)
		if err := p.storage.AddNode(topic); err != nil {
			return err
		}
		if err := p.storage.AddRel(graph.NewRel(graph.RelProjectHasTopic, node, topic)); err != nil {
			return err
		}
	}

	for _, lang := range project.Languages.Nodes {
		language := graph.NewNode(graph.NodeLanguage).Set("name", lang.Name)
		if err := p.storage.AddNode(language); err != nil {
			return err
		}
		if err := p.storage.AddRel(graph.NewRel(graph.RelProjectContainsLanguage, node, language)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) owner(project *graph.Node, owner *record.Owner) error {
	if owner != nil && owner.IsOrganization() {
		org := graph.NewNode(graph.NodeOrganization).
			Set("orgId", owner.OrgID).
			Set("orgLogin", owner.OrgLogin).
			Set("orgName", owner.OrgName).
			Set("organizationEmail", owner.OrganizationEmail).
			Set("orgDescription", owner.OrgDescription).
			Set("createdAt", owner.CreatedAt)
		if err := p.storage.AddNode(org); err != nil {
			return err
		}
		owns := graph.NewRel(graph.RelOrganizationOwnsProject, org, project).
			Set("createdAt", owner.CreatedAt)
		return p.storage.AddRel(owns)
	}

	var actor *record.Actor
	if owner != nil {
		actor = &record.Actor{
			ID:        owner.ID,
			Login:     owner.Login,
			Name:      owner.Name,
			Email:     owner.Email,
			CreatedAt: owner.CreatedAt,
		}
	}
	user, err := p.userNode(actor)
	if err != nil {
		return err
	}
	owns := graph.NewRel(graph.RelUserOwnsProject, user, project)
	if owner != nil {
		owns.Set("createdAt", owner.CreatedAt)
	}
	return p.storage.AddRel(owns)
}
