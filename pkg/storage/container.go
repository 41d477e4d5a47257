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

package storage

import (
	"github.com/abcxyz/github-graph-miner/pkg/graph"
)

// container tracks the node keys and relationship content hashes already
// written during a run. It exists only to deduplicate; the CSV files are the
// actual output.
type container struct {
	nodes map[graph.NodeKind]map[string]struct{}
	rels  map[graph.RelKind]map[string]map[string]struct{}
}

func newContainer() *container {
	return &container{
		nodes: make(map[graph.NodeKind]map[string]struct{}),
		rels:  make(map[graph.RelKind]map[string]map[string]struct{}),
	}
}

// addNode records the node's key. It reports false when the key was already
// present.
func (c *container) addNode(kind graph.NodeKind, key string) bool {
	keys, ok := c.nodes[kind]
	if !ok {
		keys = make(map[string]struct{})
		c.nodes[kind] = keys
	}
	if _, ok := keys[key]; ok {
		return false
	}
	keys[key] = struct{}{}
	return true
}

// addRel records the relationship's content hash under its source key. It
// reports false when an identical relationship was already present.
func (c *container) addRel(kind graph.RelKind, sourceID, hash string) bool {
	sources, ok := c.rels[kind]
	if !ok {
		sources = make(map[string]map[string]struct{})
		c.rels[kind] = sources
	}
	hashes, ok := sources[sourceID]
	if !ok {
		hashes = make(map[string]struct{})
		sources[sourceID] = hashes
	}
	if _, ok := hashes[hash]; ok {
		return false
	}
	hashes[hash] = struct{}{}
	return true
}
