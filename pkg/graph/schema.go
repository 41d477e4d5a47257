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

package graph

// NodeKind enumerates the node types of the graph.
type NodeKind int

const (
	NodeBranch NodeKind = iota
	NodeCommit
	NodeDependency
	NodeDiscussion
	NodeDiscussionComment
	NodeFile
	NodeFileAction
	NodeIssue
	NodeLabel
	NodeLanguage
	NodeLicense
	NodeMilestone
	NodeOrganization
	NodeProject
	NodeProjectCommitMonth
	NodeProjectIssueMonth
	NodeProjectPullRequestMonth
	NodePullRequest
	NodePullRequestEvent
	NodePullRequestFile
	NodePullRequestReview
	NodePullRequestReviewComment
	NodeRelease
	NodeTopic
	NodeUser
	NodeWorkflow
	NodeWorkflowRun
)

// RelKind enumerates the relationship types of the graph.
type RelKind int

const (
	RelAnswersDiscussion RelKind = iota
	RelAuthorOfCommit
	RelBranchContainsCommit
	RelBranchHasHeadCommit
	RelClosesIssue
	RelCommentsOnCommit
	RelCommentsOnIssue
	RelCommentsOnPullRequest
	RelCommentsOnPullRequestReview
	RelCommitInMonth
	RelCommitterOfCommit
	RelCreatesDiscussion
	RelCreatesDiscussionComment
	RelCreatesIssue
	RelCreatesMilestone
	RelCreatesPullRequest
	RelCreatesPullRequestEvent
	RelCreatesPullRequestReview
	RelCreatesPullRequestReviewComment
	RelCreatesRelease
	RelCreatesWorkflowRun
	RelDiscussionHasComment
	RelDiscussionHasLabel
	RelFileAfterAction
	RelFileBeforeAction
	RelGetsAssignedIssue
	RelGetsAssignedPullRequest
	RelIsPullRequestBaseCommit
	RelIsPullRequestHeadCommit
	RelIsReplyToReviewComment
	RelIsSingleReviewComment
	RelIssueHasLabel
	RelIssueInMonth
	RelOrganizationOwnsProject
	RelParentOfCommit
	RelPerformsFileAction
	RelProjectContainsLanguage
	RelProjectDependsOn
	RelProjectHasBranch
	RelProjectHasCommitMonth
	RelProjectHasDiscussion
	RelProjectHasIssueMonth
	RelProjectHasLabel
	RelProjectHasMilestone
	RelProjectHasPullRequestMonth
	RelProjectHasRelease
	RelProjectHasTopic
	RelProjectHasWorkflow
	RelProjectIsLicensed
	RelPullRequestEventLinksCommit
	RelPullRequestHasEvent
	RelPullRequestHasLabel
	RelPullRequestHasReview
	RelPullRequestHasSourceBranch
	RelPullRequestHasTargetBranch
	RelPullRequestInMonth
	RelPullRequestProposesChange
	RelReleaseTagsCommit
	RelReplyToDiscussionComment
	RelRequestsReviewer
	RelRequiresIssue
	RelRequiresPullRequest
	RelReviewCommentCommentsCommit
	RelReviewCommentCommentsOriginalCommit
	RelReviewReviewsCommit
	RelStarsProject
	RelTriggersWorkflowRun
	RelUserOwnsProject
	RelWatchesProject
	RelWorkflowHasRun
	RelWorkflowRunHasHeadCommit
)

// Property couples a property name with its declared type. The declaration
// order of a kind's properties is the column order of its CSV file.
type Property struct {
	Name string
	Type DataType
}

type nodeSchema struct {
	label     string
	key       string
	shareable bool
	props     []prop
	types     map[string]DataType
}

type relSchema struct {
	name        string
	source      NodeKind
	destination NodeKind
	props       []prop
	types       map[string]DataType
}

type prop struct {
	name string
	typ  DataType
}

func s(name string) prop { return prop{name, TypeString} }
func i(name string) prop { return prop{name, TypeInteger} }
func f(name string) prop { return prop{name, TypeFloat} }
func b(name string) prop { return prop{name, TypeBoolean} }
func d(name string) prop { return prop{name, TypeDatetime} }

func newNodeSchema(label, key string, shareable bool, props ...prop) nodeSchema {
	types := make(map[string]DataType, len(props))
	for _, p := range props {
		types[p.name] = p.typ
	}
	return nodeSchema{label: label, key: key, shareable: shareable, props: props, types: types}
}

func newRelSchema(name string, src, dst NodeKind, props ...prop) relSchema {
	types := make(map[string]DataType, len(props))
	for _, p := range props {
		types[p.name] = p.typ
	}
	return relSchema{name: name, source: src, destination: dst, props: props, types: types}
}

var nodeSchemas = map[NodeKind]nodeSchema{
	NodeBranch: newNodeSchema("Branch", "id", false,
		s("id"), s("name")),
	NodeCommit: newNodeSchema("Commit", "hash", false,
		s("hash"), s("message"), b("merge")),
	NodeDependency: newNodeSchema("Dependency", "nameAndVersion", true,
		s("nameAndVersion"), s("name"), s("versionInfo"), s("licenseDeclared"), b("dev")),
	NodeDiscussion: newNodeSchema("Discussion", "id", false,
		s("id"), i("number"), s("title"), s("body"), b("closed"), d("closedAt"),
		d("createdAt"), i("upvoteCount"), s("categoryName")),
	NodeDiscussionComment: newNodeSchema("DiscussionComment", "id", false,
		s("id"), s("body"), b("isAnswer"), d("createdAt"), i("upvoteCount")),
	NodeFile: newNodeSchema("File", "fileId", true,
		s("fileId"), s("mimeType"), s("path"), s("fileSha"), i("fileSize")),
	NodeFileAction: newNodeSchema("FileAction", "fileActionId", false,
		s("fileActionId"), s("changeType"), b("copiedFile"), b("renamedFile"),
		b("newFile"), b("deletedFile"), s("diff"), i("addedLines"), i("deletedLines")),
	NodeIssue: newNodeSchema("Issue", "id", false,
		s("id"), i("number"), s("title"), s("body"), s("state"), b("locked"),
		s("activeLockReason"), d("createdAt"), b("convertedToDiscussion")),
	NodeLabel: newNodeSchema("Label", "id", false,
		s("id"), s("name"), s("color"), s("description"), d("createdAt")),
	NodeLanguage: newNodeSchema("Language", "name", true,
		s("name")),
	NodeLicense: newNodeSchema("License", "spdxId", true,
		s("spdxId")),
	NodeMilestone: newNodeSchema("Milestone", "id", false,
		s("id"), i("number"), s("title"), s("description"), d("dueOn"), d("closedAt"),
		d("createdAt"), s("state"), f("progressPercentage")),
	NodeOrganization: newNodeSchema("Organization", "orgId", true,
		s("orgId"), s("orgLogin"), s("orgName"), s("organizationEmail"),
		s("orgDescription"), d("createdAt")),
	NodeProject: newNodeSchema("Project", "id", false,
		s("id"), s("url"), s("name"), s("description"), b("isArchived"), d("archivedAt"),
		b("isMirror"), s("mirrorUrl"), b("isLocked"), s("lockReason"), i("diskUsage"),
		s("visibility"), b("forkingAllowed"), b("hasWikiEnabled")),
	NodeProjectCommitMonth: newNodeSchema("ProjectCommitMonth", "id", false,
		s("id"), i("year"), i("month")),
	NodeProjectIssueMonth: newNodeSchema("ProjectIssueMonth", "id", false,
		s("id"), i("year"), i("month")),
	NodeProjectPullRequestMonth: newNodeSchema("ProjectPullRequestMonth", "id", false,
		s("id"), i("year"), i("month")),
	NodePullRequest: newNodeSchema("PullRequest", "id", false,
		s("id"), i("number"), s("title"), s("body"), s("state"), b("isDraft"),
		b("locked"), s("activeLockReason"), d("createdAt"), d("mergedAt"),
		s("baseRepositoryURL"), s("headRepositoryURL")),
	NodePullRequestEvent: newNodeSchema("PullRequestEvent", "id", false,
		s("id"), s("__typename"), s("additionalData")),
	NodePullRequestFile: newNodeSchema("PullRequestFile", "id", false,
		s("id"), s("pullRequestId"), s("sha"), s("path"), s("changeType"),
		i("additions"), i("deletions"), i("changes"), s("patch")),
	NodePullRequestReview: newNodeSchema("PullRequestReview", "id", false,
		s("id"), s("state"), s("body"), d("submittedAt"), d("createdAt"), s("commitHash")),
	NodePullRequestReviewComment: newNodeSchema("PullRequestReviewComment", "id", false,
		s("id"), i("rawId"), s("body"), d("createdAt"), s("diffHunk"), s("path"),
		i("startLine"), i("originalStartLine"), i("line"), i("originalLine"),
		s("replyToId"), s("commitHash"), s("originalCommitHash")),
	NodeRelease: newNodeSchema("Release", "id", false,
		s("id"), s("name"), s("tagName"), d("createdAt"), d("publishedAt"),
		b("isDraft"), b("isPrerelease")),
	NodeTopic: newNodeSchema("Topic", "id", true,
		s("id"), s("name")),
	NodeUser: newNodeSchema("User", "id", true,
		s("id"), s("login"), s("name"), s("email"), d("createdAt")),
	NodeWorkflow: newNodeSchema("Workflow", "id", false,
		s("id"), s("title"), s("configPath"), d("createdAt"), s("state")),
	NodeWorkflowRun: newNodeSchema("WorkflowRun", "id", false,
		s("id"), s("status"), s("conclusion"), s("state"), d("createdAt"),
		d("startedAt"), i("attempts")),
}

var relSchemas = map[RelKind]relSchema{
	RelAnswersDiscussion:    newRelSchema("ANSWERS_DISCUSSION", NodeDiscussionComment, NodeDiscussion),
	RelAuthorOfCommit:       newRelSchema("AUTHOR_OF", NodeUser, NodeCommit, d("authoredAt")),
	RelBranchContainsCommit: newRelSchema("CONTAINS_COMMIT", NodeBranch, NodeCommit),
	RelBranchHasHeadCommit:  newRelSchema("HAS_HEAD_COMMIT", NodeBranch, NodeCommit),
	RelClosesIssue:          newRelSchema("CLOSES_ISSUE", NodeUser, NodeIssue, s("id"), d("createdAt")),
	RelCommentsOnCommit: newRelSchema("COMMENTS_ON_COMMIT", NodeUser, NodeCommit,
		s("id"), s("body"), s("path"), i("position"), i("line"), d("createdAt")),
	RelCommentsOnIssue:       newRelSchema("COMMENTS_ON_ISSUE", NodeUser, NodeIssue, s("id"), d("createdAt"), s("body")),
	RelCommentsOnPullRequest: newRelSchema("COMMENTS_ON_PULL_REQUEST", NodeUser, NodePullRequest, s("id"), s("body"), d("createdAt")),
	RelCommentsOnPullRequestReview: newRelSchema("COMMENTS_ON_PULL_REQUEST_REVIEW",
		NodePullRequestReviewComment, NodePullRequestReview),
	RelCommitInMonth:                   newRelSchema("COMMIT_IN_MONTH", NodeCommit, NodeProjectCommitMonth),
	RelCommitterOfCommit:               newRelSchema("COMMITTER_OF", NodeUser, NodeCommit, d("committedAt")),
	RelCreatesDiscussion:               newRelSchema("CREATES_DISCUSSION", NodeUser, NodeDiscussion, d("createdAt")),
	RelCreatesDiscussionComment:        newRelSchema("CREATES_DISCUSSION_COMMENT", NodeUser, NodeDiscussionComment, d("createdAt")),
	RelCreatesIssue:                    newRelSchema("CREATES_ISSUE", NodeUser, NodeIssue, d("createdAt")),
	RelCreatesMilestone:                newRelSchema("CREATES_MILESTONE", NodeUser, NodeMilestone, d("createdAt")),
	RelCreatesPullRequest:              newRelSchema("CREATES_PULL_REQUEST", NodeUser, NodePullRequest, d("createdAt")),
	RelCreatesPullRequestEvent:         newRelSchema("CREATES_PULL_REQUEST_EVENT", NodeUser, NodePullRequestEvent, d("createdAt")),
	RelCreatesPullRequestReview:        newRelSchema("CREATES_PULL_REQUEST_REVIEW", NodeUser, NodePullRequestReview, d("createdAt")),
	RelCreatesPullRequestReviewComment: newRelSchema("CREATES_PULL_REQUEST_REVIEW_COMMENT", NodeUser, NodePullRequestReviewComment, d("createdAt")),
	RelCreatesRelease:                  newRelSchema("CREATES_RELEASE", NodeUser, NodeRelease, d("createdAt")),
	RelCreatesWorkflowRun:              newRelSchema("CREATES_WORKFLOW_RUN", NodeUser, NodeWorkflowRun, d("createdAt")),
	RelDiscussionHasComment:            newRelSchema("HAS_COMMENT", NodeDiscussion, NodeDiscussionComment),
	RelDiscussionHasLabel:              newRelSchema("DISCUSSION_HAS_LABEL", NodeDiscussion, NodeLabel),
	RelFileAfterAction:                 newRelSchema("AFTER_ACTION", NodeFileAction, NodeFile),
	RelFileBeforeAction:                newRelSchema("BEFORE_ACTION", NodeFileAction, NodeFile),
	RelGetsAssignedIssue:               newRelSchema("GETS_ASSIGNED_ISSUE", NodeUser, NodeIssue),
	RelGetsAssignedPullRequest:         newRelSchema("GETS_ASSIGNED_PULL_REQUEST", NodeUser, NodePullRequest),
	RelIsPullRequestBaseCommit:         newRelSchema("IS_PULL_REQUEST_BASE_COMMIT", NodePullRequest, NodeCommit),
	RelIsPullRequestHeadCommit:         newRelSchema("IS_PULL_REQUEST_HEAD_COMMIT", NodePullRequest, NodeCommit),
	RelIsReplyToReviewComment:          newRelSchema("IS_REPLY_TO", NodePullRequestReviewComment, NodePullRequestReviewComment),
	RelIsSingleReviewComment:           newRelSchema("IS_SINGLE_COMMENT", NodePullRequestReviewComment, NodePullRequest),
	RelIssueHasLabel:                   newRelSchema("ISSUE_HAS_LABEL", NodeIssue, NodeLabel),
	RelIssueInMonth:                    newRelSchema("ISSUE_IN_MONTH", NodeIssue, NodeProjectIssueMonth),
	RelOrganizationOwnsProject:         newRelSchema("ORGANIZATION_OWNS_PROJECT", NodeOrganization, NodeProject, d("createdAt")),
	RelParentOfCommit:                  newRelSchema("PARENT_OF", NodeCommit, NodeCommit),
	RelPerformsFileAction:              newRelSchema("PERFORMS", NodeCommit, NodeFileAction),
	RelProjectContainsLanguage:         newRelSchema("CONTAINS_LANGUAGE", NodeProject, NodeLanguage),
	RelProjectDependsOn:                newRelSchema("DEPENDS_ON", NodeProject, NodeDependency),
	RelProjectHasBranch:                newRelSchema("HAS_BRANCH", NodeProject, NodeBranch),
	RelProjectHasCommitMonth:           newRelSchema("HAS_COMMIT_MONTH", NodeProject, NodeProjectCommitMonth, d("date_month")),
	RelProjectHasDiscussion:            newRelSchema("PROJECT_HAS_DISCUSSION", NodeProject, NodeDiscussion),
	RelProjectHasIssueMonth:            newRelSchema("HAS_ISSUE_MONTH", NodeProject, NodeProjectIssueMonth, d("date_month")),
	RelProjectHasLabel:                 newRelSchema("PROJECT_HAS_LABEL", NodeProject, NodeLabel),
	RelProjectHasMilestone:             newRelSchema("HAS_MILESTONE", NodeProject, NodeMilestone),
	RelProjectHasPullRequestMonth:      newRelSchema("HAS_PULL_REQUEST_MONTH", NodeProject, NodeProjectPullRequestMonth, d("date_month")),
	RelProjectHasRelease:               newRelSchema("HAS_RELEASE", NodeProject, NodeRelease),
	RelProjectHasTopic:                 newRelSchema("HAS_TOPIC", NodeProject, NodeTopic),
	RelProjectHasWorkflow:              newRelSchema("HAS_WORKFLOW", NodeProject, NodeWorkflow),
	RelProjectIsLicensed:               newRelSchema("IS_LICENSED", NodeProject, NodeLicense),
	RelPullRequestEventLinksCommit:     newRelSchema("LINKS_COMMIT", NodePullRequestEvent, NodeCommit),
	RelPullRequestHasEvent:             newRelSchema("HAS_EVENT", NodePullRequest, NodePullRequestEvent),
	RelPullRequestHasLabel:             newRelSchema("PULL_REQUEST_HAS_LABEL", NodePullRequest, NodeLabel),
	RelPullRequestHasReview:            newRelSchema("HAS_REVIEW", NodePullRequest, NodePullRequestReview),
	RelPullRequestHasSourceBranch:      newRelSchema("HAS_SOURCE_BRANCH", NodePullRequest, NodeBranch),
	RelPullRequestHasTargetBranch:      newRelSchema("HAS_TARGET_BRANCH", NodePullRequest, NodeBranch),
	RelPullRequestInMonth:              newRelSchema("PULL_REQUEST_IN_MONTH", NodePullRequest, NodeProjectPullRequestMonth),
	RelPullRequestProposesChange:       newRelSchema("PROPOSES_CHANGE", NodePullRequest, NodePullRequestFile),
	RelReleaseTagsCommit:               newRelSchema("TAGS_COMMIT", NodeRelease, NodeCommit),
	RelReplyToDiscussionComment:        newRelSchema("REPLY_TO", NodeDiscussionComment, NodeDiscussionComment),
	RelRequestsReviewer:                newRelSchema("REQUESTS_REVIEWER", NodePullRequest, NodeUser),
	RelRequiresIssue:                   newRelSchema("REQUIRES_ISSUE", NodeMilestone, NodeIssue),
	RelRequiresPullRequest:             newRelSchema("REQUIRES_PULL_REQUEST", NodeMilestone, NodePullRequest),
	RelReviewCommentCommentsCommit: newRelSchema("COMMENTS_COMMIT",
		NodePullRequestReviewComment, NodeCommit),
	RelReviewCommentCommentsOriginalCommit: newRelSchema("COMMENTS_ORIGINAL_COMMIT",
		NodePullRequestReviewComment, NodeCommit),
	RelReviewReviewsCommit:      newRelSchema("REVIEWS_COMMIT", NodePullRequestReview, NodeCommit),
	RelStarsProject:             newRelSchema("STARS_PROJECT", NodeUser, NodeProject),
	RelTriggersWorkflowRun:      newRelSchema("TRIGGERS_WORKFLOW_RUN", NodeUser, NodeWorkflowRun, d("startedAt")),
	RelUserOwnsProject:          newRelSchema("USER_OWNS_PROJECT", NodeUser, NodeProject, d("createdAt")),
	RelWatchesProject:           newRelSchema("WATCHES_PROJECT", NodeUser, NodeProject),
	RelWorkflowHasRun:           newRelSchema("HAS_WORKFLOW_RUN", NodeWorkflow, NodeWorkflowRun),
	RelWorkflowRunHasHeadCommit: newRelSchema("RUN_HAS_HEAD_COMMIT", NodeWorkflowRun, NodeCommit),
}

// NodeKinds returns every node kind in a stable order.
func NodeKinds() []NodeKind {
	out := make([]NodeKind, 0, len(nodeSchemas))
	for k := NodeBranch; k <= NodeWorkflowRun; k++ {
		out = append(out, k)
	}
	return out
}

// RelKinds returns every relationship kind in a stable order.
func RelKinds() []RelKind {
	out := make([]RelKind, 0, len(relSchemas))
	for k := RelAnswersDiscussion; k <= RelWorkflowRunHasHeadCommit; k++ {
		out = append(out, k)
	}
	return out
}

// Label returns the node label used in the database and in file names.
func (k NodeKind) Label() string { return nodeSchemas[k].label }

// KeyName returns the name of the kind's key property.
func (k NodeKind) KeyName() string { return nodeSchemas[k].key }

// Shareable reports whether nodes of this kind are deduplicated across
// repositories (loaded with MERGE instead of CREATE).
func (k NodeKind) Shareable() bool { return nodeSchemas[k].shareable }

// Properties returns the kind's properties in declaration order.
func (k NodeKind) Properties() []Property {
	schema := nodeSchemas[k]
	out := make([]Property, len(schema.props))
	for i, p := range schema.props {
		out[i] = Property{Name: p.name, Type: p.typ}
	}
	return out
}

// Header returns the CSV header columns for the node kind.
func (k NodeKind) Header() []string {
	schema := nodeSchemas[k]
	out := make([]string, len(schema.props))
	for i, p := range schema.props {
		out[i] = p.name
	}
	return out
}

// Name returns the relationship type name used in the database and in file
// names.
func (k RelKind) Name() string { return relSchemas[k].name }

// Endpoints returns the declared source and destination node kinds.
func (k RelKind) Endpoints() (source, destination NodeKind) {
	schema := relSchemas[k]
	return schema.source, schema.destination
}

// Properties returns the kind's properties in declaration order.
func (k RelKind) Properties() []Property {
	schema := relSchemas[k]
	out := make([]Property, len(schema.props))
	for i, p := range schema.props {
		out[i] = Property{Name: p.name, Type: p.typ}
	}
	return out
}

// HasProperties reports whether the relationship kind carries properties.
func (k RelKind) HasProperties() bool { return len(relSchemas[k].props) > 0 }

// Header returns the CSV header columns for the relationship kind.
func (k RelKind) Header() []string {
	schema := relSchemas[k]
	out := make([]string, 0, len(schema.props)+2)
	out = append(out, "source_id", "destination_id")
	for _, p := range schema.props {
		out = append(out, p.name)
	}
	return out
}
