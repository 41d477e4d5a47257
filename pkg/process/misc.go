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

// Labels emits the repository's label inventory.
func (p *Processor) Labels(labels []record.Label) error {
	for i := range labels {
		label, err := p.labelNode(&labels[i])
		if err != nil {
			return err
		}
		if err := p.storage.AddRel(graph.NewRel(graph.RelProjectHasLabel, p.projectRef(), label)); err != nil {
			return err
		}
	}
	return nil
}

// Stargazers links each stargazer to the project.
func (p *Processor) Stargazers(actors []record.Actor) error {
	return p.projectAudience(graph.RelStarsProject, actors)
}

// Watchers links each watcher to the project.
func (p *Processor) Watchers(actors []record.Actor) error {
	return p.projectAudience(graph.RelWatchesProject, actors)
}

func (p *Processor) projectAudience(kind graph.RelKind, actors []record.Actor) error {
	for i := range actors {
		user, err := p.userNode(&actors[i])
		if err != nil {
			return err
		}
		if err := p.storage.AddRel(graph.NewRel(kind, user, p.projectRef())); err != nil {
			return err
		}
	}
	return nil
}

// Release emits one release with its author and, when the release tag
// resolved, the tagged commit.
func (p *Processor) Release(release *record.Release) error {
	node := graph.NewNode(graph.NodeRelease).
		Set("id", release.ID).
		Set("name", release.Name).
		Set("tagName", release.TagName).
		Set("createdAt", release.CreatedAt).
		Set("publishedAt", release.PublishedAt).
		Set("isDraft", release.IsDraft).
		Set("isPrerelease", release.IsPrerelease)
	if err := p.storage.AddNode(node); err != nil {
		return err
	}
	if err := p.storage.AddRel(graph.NewRel(graph.RelProjectHasRelease, p.projectRef(), node)); err != nil {
		return err
	}

	author, err := p.userNode(release.Author)
	if err != nil {
		return err
	}
	creates := graph.NewRel(graph.RelCreatesRelease, author, node).
		Set("createdAt", release.CreatedAt)
	if err := p.storage.AddRel(creates); err != nil {
		return err
	}

	if release.TagCommit != nil && release.TagCommit.Oid != "" {
		if err := p.storage.AddRel(graph.NewRel(graph.RelReleaseTagsCommit, node, commitRef(release.TagCommit.Oid))); err != nil {
			return err
		}
	}
	return nil
}

// Dependencies emits the SBOM packages. Dependency nodes are shared across
// repositories, keyed by name and version.
func (p *Processor) Dependencies(packages []*record.SBOMPackage) error {
	for _, pkg := range packages {
		node := graph.NewNode(graph.NodeDependency).
			Set("nameAndVersion", pkg.Name+"-"+pkg.VersionInfo).
			Set("name", pkg.Name).
			Set("versionInfo", pkg.VersionInfo).
			Set("licenseDeclared", pkg.LicenseDeclared)
		if err := p.storage.AddNode(node); err != nil {
			return err
		}
		if err := p.storage.AddRel(graph.NewRel(graph.RelProjectDependsOn, p.projectRef(), node)); err != nil {
			return err
		}
	}
	return nil
}

// Workflow emits one workflow definition and all of its runs.
func (p *Processor) Workflow(workflow *record.Workflow) error {
	node := graph.NewNode(graph.NodeWorkflow).
		Set("id", workflow.ID).
		Set("title", workflow.Title).
		Set("configPath", workflow.ConfigPath).
		Set("createdAt", workflow.CreatedAt).
		Set("state", workflow.State)
	if err := p.storage.AddNode(node); err != nil {
		return err
	}
	if err := p.storage.AddRel(graph.NewRel(graph.RelProjectHasWorkflow, p.projectRef(), node)); err != nil {
		return err
	}

	for i := range workflow.Runs {
		if err := p.workflowRun(node, &workflow.Runs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) workflowRun(workflow *graph.Node, run *record.WorkflowRun) error {
	node := graph.NewNode(graph.NodeWorkflowRun).
		Set("id", run.ID).
		Set("status", run.Status).
		Set("conclusion", run.Conclusion).
		Set("createdAt", run.CreatedAt).
		Set("startedAt", run.StartedAt).
		Set("attempts", run.Attempts)
	if err := p.storage.AddNode(node); err != nil {
		return err
	}
	if err := p.storage.AddRel(graph.NewRel(graph.RelWorkflowHasRun, workflow, node)); err != nil {
		return err
	}

	if run.HeadCommit != "" {
		if err := p.storage.AddRel(graph.NewRel(graph.RelWorkflowRunHasHeadCommit, node, commitRef(run.HeadCommit))); err != nil {
			return err
		}
	}

	if run.Actor != nil {
		actor, err := p.userNode(run.Actor)
		if err != nil {
			return err
		}
		creates := graph.NewRel(graph.RelCreatesWorkflowRun, actor, node).
			Set("createdAt", run.CreatedAt)
		if err := p.storage.AddRel(creates); err != nil {
			return err
		}
	}
	if run.TriggeringActor != nil {
		trigger, err := p.userNode(run.TriggeringActor)
		if err != nil {
			return err
		}
		triggers := graph.NewRel(graph.RelTriggersWorkflowRun, trigger, node).
			Set("startedAt", run.StartedAt)
		if err := p.storage.AddRel(triggers); err != nil {
			return err
		}
	}
	return nil
}
