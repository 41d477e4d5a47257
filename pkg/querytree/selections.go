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

package querytree

// Selection-set text for each secondary root. Nested collections request a
// fixed first page; records whose nested pages overflow are completed later
// via REST.

const actorSelection = `__typename ... on User { id login name email createdAt }`

const userSelection = `id login name email createdAt`

const pageInfoSelection = `pageInfo { endCursor hasNextPage }`

const milestoneSelection = `milestone {
  id number title description dueOn closedAt createdAt state progressPercentage
  creator { ` + actorSelection + ` }
}`

const labelFields = `id name color description createdAt`

const pullRequestSelection = `id number mergedAt title body isDraft locked createdAt activeLockReason state
baseRepository { id url }
headRepository { id url }
headRefOid headRefName baseRefOid baseRefName
author { ` + actorSelection + ` }
reviewRequests(first: 100) {
  nodes { requestedReviewer { ` + actorSelection + ` } }
  ` + pageInfoSelection + `
}
` + milestoneSelection + `
assignees(first: 10) {
  nodes { ` + userSelection + ` }
  ` + pageInfoSelection + `
}
comments(first: 50) {
  nodes { id body createdAt author { ` + actorSelection + ` } }
  ` + pageInfoSelection + `
}
timelineItems(first: 100, itemTypes: [MERGED_EVENT, CLOSED_EVENT]) {
  nodes {
    __typename
    ... on MergedEvent { id createdAt actor { ` + actorSelection + ` } commit { oid } }
    ... on ClosedEvent { id createdAt actor { ` + actorSelection + ` } }
  }
  ` + pageInfoSelection + `
}
reviews(first: 100) {
  nodes {
    id state body submittedAt createdAt
    author { ` + actorSelection + ` }
    commit { oid }
    comments(first: 100) {
      nodes {
        id body createdAt diffHunk path startLine originalStartLine line originalLine
        author { ` + actorSelection + ` }
        replyTo { id }
        commit { oid }
        originalCommit { oid }
      }
      ` + pageInfoSelection + `
    }
  }
  ` + pageInfoSelection + `
}
labels(first: 10) {
  nodes { ` + labelFields + ` }
  ` + pageInfoSelection + `
}
files(first: 50) {
  nodes { additions deletions path changeType }
  ` + pageInfoSelection + `
}`

const issueSelection = `id number title body state locked activeLockReason createdAt
author { ` + actorSelection + ` }
` + milestoneSelection + `
assignees(first: 20) {
  nodes { ` + userSelection + ` }
  ` + pageInfoSelection + `
}
labels(first: 50) {
  nodes { ` + labelFields + ` }
  ` + pageInfoSelection + `
}
comments(first: 100) {
  nodes { id body createdAt author { ` + actorSelection + ` } }
  ` + pageInfoSelection + `
}
timelineItems(first: 100, itemTypes: [CLOSED_EVENT, CONVERTED_TO_DISCUSSION_EVENT]) {
  nodes {
    __typename
    ... on ClosedEvent { id createdAt actor { ` + actorSelection + ` } }
    ... on ConvertedToDiscussionEvent { id createdAt actor { ` + actorSelection + ` } }
  }
  ` + pageInfoSelection + `
}`

const discussionCommentFields = `id body createdAt upvoteCount isAnswer
author { ` + actorSelection + ` }`

const discussionSelection = `id number title body closed closedAt createdAt upvoteCount
category { name }
author { ` + actorSelection + ` }
labels(first: 50) {
  nodes { ` + labelFields + ` }
  ` + pageInfoSelection + `
}
comments(first: 30) {
  nodes {
    ` + discussionCommentFields + `
    replies(first: 100) {
      nodes { ` + discussionCommentFields + ` }
      ` + pageInfoSelection + `
    }
  }
  ` + pageInfoSelection + `
}`

const releaseSelection = `id name tagName createdAt publishedAt isDraft isPrerelease
author { ` + userSelection + ` }
tagCommit { oid }`
