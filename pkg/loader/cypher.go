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

package loader

import (
	"fmt"
	"strings"

	"github.com/abcxyz/github-graph-miner/pkg/graph"
)

// batchRows is the transaction batch size for CSV ingestion.
const batchRows = 300

// propertyFragment renders the Cypher expression assigning one typed CSV
// column. Sentinel and empty values map to typed null substitutes so a row
// never fails the whole batch.
func propertyFragment(p graph.Property) string {
	name := p.Name
	switch p.Type {
	case graph.TypeInteger:
		return fmt.Sprintf("%s: CASE row.%s WHEN null THEN toInteger('-1') WHEN '' THEN toInteger('-1') ELSE toInteger(row.%s) END", name, name, name)
	case graph.TypeFloat:
		return fmt.Sprintf("%s: CASE row.%s WHEN null THEN toFloat('-1') WHEN '' THEN toFloat('-1') ELSE toFloat(row.%s) END", name, name, name)
	case graph.TypeBoolean:
		return fmt.Sprintf("%s: CASE row.%s WHEN 'True' THEN true WHEN 'False' THEN false ELSE false END", name, name)
	case graph.TypeDatetime:
		return fmt.Sprintf("%s: CASE row.%s WHEN null THEN datetime('%s') WHEN '' THEN datetime('%s') ELSE datetime(row.%s) END", name, name, graph.SentinelDatetime, graph.SentinelDatetime, name)
	default:
		return fmt.Sprintf("%s: CASE row.%s WHEN null THEN '' ELSE row.%s END", name, name, name)
	}
}

func propertyFragments(props []graph.Property) string {
	out := make([]string, len(props))
	for i, p := range props {
		out[i] = propertyFragment(p)
	}
	return strings.Join(out, ", ")
}

// nodeInsertQuery builds the batched CSV ingestion query for one node kind.
// Shareable kinds merge on their full property set so repeated loads across
// repositories collapse into one node.
func nodeInsertQuery(kind graph.NodeKind, loadPath string) string {
	operator := "CREATE"
	if kind.Shareable() {
		operator = "MERGE"
	}
	return fmt.Sprintf(`LOAD CSV WITH HEADERS FROM '%s' AS row
CALL {
    WITH row
    %s (:%s {%s})
} IN TRANSACTIONS OF %d ROWS`,
		loadPath, operator, kind.Label(), propertyFragments(kind.Properties()), batchRows)
}

// relInsertQuery builds the batched CSV ingestion query for one relationship
// kind. Endpoints are matched on their kinds' key properties.
func relInsertQuery(kind graph.RelKind, loadPath string) string {
	source, destination := kind.Endpoints()
	if kind.HasProperties() {
		return fmt.Sprintf(`LOAD CSV WITH HEADERS FROM '%s' AS row
CALL {
    WITH row
    MATCH (s:%s {%s: row.source_id})
    MATCH (d:%s {%s: row.destination_id})
    CREATE (s)-[:%s {%s}]->(d)
} IN TRANSACTIONS OF %d ROWS`,
			loadPath, source.Label(), source.KeyName(),
			destination.Label(), destination.KeyName(),
			kind.Name(), propertyFragments(kind.Properties()), batchRows)
	}
	return fmt.Sprintf(`LOAD CSV WITH HEADERS FROM '%s' AS row
CALL {
    WITH row
    MATCH (s:%s {%s: row.source_id})
    MATCH (d:%s {%s: row.destination_id})
    WITH s, d
    CREATE (s)-[:%s]->(d)
} IN TRANSACTIONS OF %d ROWS`,
		loadPath, source.Label(), source.KeyName(),
		destination.Label(), destination.KeyName(),
		kind.Name(), batchRows)
}

// indexQueries builds one index per node key, one per datetime node
// property, and one per datetime relationship property.
func indexQueries() []string {
	var out []string
	for _, kind := range graph.NodeKinds() {
		out = append(out, fmt.Sprintf("CREATE INDEX %s_indices IF NOT EXISTS FOR (n:%s) ON (n.%s)",
			kind.Label(), kind.Label(), kind.KeyName()))
		for _, p := range kind.Properties() {
			if p.Type == graph.TypeDatetime {
				out = append(out, fmt.Sprintf("CREATE INDEX %s_%s_indices IF NOT EXISTS FOR (n:%s) ON (n.%s)",
					kind.Label(), p.Name, kind.Label(), p.Name))
			}
		}
	}
	for _, kind := range graph.RelKinds() {
		for _, p := range kind.Properties() {
			if p.Type == graph.TypeDatetime {
				out = append(out, fmt.Sprintf("CREATE INDEX %s_%s_indices IF NOT EXISTS FOR ()-[r:%s]-() ON (r.%s)",
					kind.Name(), p.Name, kind.Name(), p.Name))
			}
		}
	}
	return out
}

// referencePattern matches textual references like "fixes #234" or a bare
// "#234", capturing the optional closing verb and the number.
const referencePattern = `.*(?i)(?:(fix|close|closes|closed|fix|fixes|fixed|resolve|resolves|resolved)? #(\d+)).*`

// crossLinkQuery builds the post-load pass that turns textual references in
// titles, bodies, and commit messages into LINKS_ISSUE and
// LINKS_PULL_REQUEST relationships. It walks the project subgraph through
// apoc, excluding labels that cannot carry references.
func crossLinkQuery(projectID string) string {
	return fmt.Sprintf(`MATCH (p:Project {id: '%s'})
CALL apoc.path.subgraphAll(p, {
labelFilter: '-Topic|-File|-Language|-Dependency|-User|-License|-Branch'
})
YIELD nodes AS nodes_list
UNWIND nodes_list AS n
UNWIND apoc.text.regexGroups(n.message, '%s') +
apoc.text.regexGroups(n.title, '%s') +
apoc.text.regexGroups(n.body, '%s') AS g
WITH n, g
WHERE size(g) > 0
CALL {
    WITH n, g
    MATCH (:Project {id: '%s'})-[:HAS_PULL_REQUEST_MONTH]->(pprm:ProjectPullRequestMonth),
    (pprm)<-[:PULL_REQUEST_IN_MONTH]-(pr:PullRequest)
    WHERE pr.number = toInteger(g[2])
    CREATE (n)-[:LINKS_PULL_REQUEST {action: CASE g[1] WHEN null THEN "NO_ACTION" ELSE toString(g[1]) END}]->(pr)
}
CALL {
    WITH n, g
    MATCH (:Project {id: '%s'})-[:HAS_ISSUE_MONTH]->(pim:ProjectIssueMonth),
    (pim)<-[:ISSUE_IN_MONTH]-(i:Issue)
    WHERE i.number = toInteger(g[2])
    CREATE (n)-[:LINKS_ISSUE {action: CASE g[1] WHEN null THEN "NO_ACTION" ELSE toString(g[1]) END}]->(i)
}`,
		projectID, referencePattern, referencePattern, referencePattern, projectID, projectID)
}

// mergedFileQuery builds the post-load pass that links each proposed pull
// request file to the repository file state produced by the merge commit.
func mergedFileQuery(projectID string) string {
	return fmt.Sprintf(`MATCH (p:Project {id: '%s'})-[:HAS_PULL_REQUEST_MONTH]->(prm:ProjectPullRequestMonth)<-[:PULL_REQUEST_IN_MONTH]-(pr:PullRequest)-[:PROPOSES_CHANGE]->(prf:PullRequestFile),
(pr)-[:HAS_EVENT]->(pre:PullRequestEvent {__typename: 'MergedEvent'})-[:LINKS_COMMIT]->(c:Commit)-[:PERFORMS]->(fc:FileAction)-[:AFTER_ACTION]->(f:File)
WHERE f.path = prf.path
CREATE (prf)-[:FILE_AFTER_MERGE]->(f)`, projectID)
}
