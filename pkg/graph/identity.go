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

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// BranchID derives the stable identifier of a branch from the owning project
// and the branch name. Same inputs always produce the same id.
func BranchID(projectID, branchName string) string {
	sum := sha256.Sum256([]byte(projectID + ":" + branchName))
	return hex.EncodeToString(sum[:])
}

// ContentID hashes a node's declared properties, with its key property
// blanked, into a content-derived identifier. File and PullRequestFile nodes
// use it so that identical content yields the same node.
func ContentID(n *Node) string {
	schema := nodeSchemas[n.kind]
	parts := make([]string, 0, len(schema.props))
	for _, p := range schema.props {
		value := n.Get(p.name)
		if p.name == schema.key {
			value = ""
		}
		parts = append(parts, p.name+":"+value)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// RelContentHash hashes a relationship's endpoints and property values for
// in-run deduplication.
func RelContentHash(r *Rel) string {
	values := r.Values()
	sum := sha256.Sum256([]byte(r.sourceID + ":" + strings.Join(values[2:], "|") + ":" + r.destinationID))
	return hex.EncodeToString(sum[:])
}

// NewOpaqueID returns a fresh run-scoped identifier. Used for FileAction
// nodes and time-bucket nodes, whose correctness depends only on stability
// within a single run.
func NewOpaqueID() string {
	return uuid.NewString()
}

// SentinelUser returns the reserved user node substituted for missing actor
// references.
func SentinelUser() *Node {
	return NewNode(NodeUser).
		Set("id", SentinelUserID).
		Set("login", SentinelUserID).
		Set("name", SentinelUserID).
		Set("email", SentinelUserID)
}
