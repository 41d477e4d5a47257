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

// Package graph defines the property-graph data model: node and relationship
// kinds, their typed property schemas, identity rules, and the text coercion
// applied to every property before it reaches the intermediate CSV files.
package graph

import (
	"fmt"
	"strconv"
	"time"
)

// DataType enumerates the property value types understood by the loader.
type DataType int

const (
	TypeString DataType = iota
	TypeInteger
	TypeFloat
	TypeBoolean
	TypeDatetime
)

// Sentinel values written when a property is absent or fails coercion.
const (
	SentinelString   = "-"
	SentinelInteger  = "-1"
	SentinelFloat    = "-1.0"
	SentinelBoolean  = "False"
	SentinelDatetime = "0001-01-01T01:01:01Z"
)

// TimeFormat is the datetime layout used across the intermediate files.
const TimeFormat = "2006-01-02T15:04:05Z"

// SentinelUserID identifies the reserved user substituted for missing actor
// references.
const SentinelUserID = "default"

func sentinel(t DataType) string {
	switch t {
	case TypeInteger:
		return SentinelInteger
	case TypeFloat:
		return SentinelFloat
	case TypeBoolean:
		return SentinelBoolean
	case TypeDatetime:
		return SentinelDatetime
	default:
		return SentinelString
	}
}

// Coerce converts an arbitrary value to the text representation of the given
// type. Values that do not fit the declared type resolve to the type's
// sentinel rather than an error.
func Coerce(t DataType, value any) string {
	if value == nil {
		return sentinel(t)
	}
	switch t {
	case TypeString:
		if s, ok := value.(string); ok {
			return s
		}
	case TypeInteger:
		switch v := value.(type) {
		case int:
			return strconv.Itoa(v)
		case int64:
			return strconv.FormatInt(v, 10)
		case float64:
			return strconv.FormatInt(int64(v), 10)
		case string:
			if _, err := strconv.ParseInt(v, 10, 64); err == nil {
				return v
			}
		}
	case TypeFloat:
		switch v := value.(type) {
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case float32:
			return strconv.FormatFloat(float64(v), 'f', -1, 64)
		case int:
			return strconv.FormatFloat(float64(v), 'f', -1, 64)
		}
	case TypeBoolean:
		if b, ok := value.(bool); ok {
			if b {
				return "True"
			}
			return "False"
		}
	case TypeDatetime:
		switch v := value.(type) {
		case time.Time:
			if !v.IsZero() {
				return v.UTC().Format(TimeFormat)
			}
		case string:
			if _, err := time.Parse(TimeFormat, v); err == nil {
				return v
			}
		}
	}
	return sentinel(t)
}

// Node is a tagged graph node: a kind plus the coerced text values of its
// declared properties. Properties not declared for the kind are ignored on
// write, matching the permissive extraction of heterogeneous API documents.
type Node struct {
	kind  NodeKind
	props map[string]string
}

// NewNode creates an empty node of the given kind.
func NewNode(kind NodeKind) *Node {
	return &Node{kind: kind, props: make(map[string]string)}
}

// Kind returns the node kind.
func (n *Node) Kind() NodeKind { return n.kind }

// Set coerces value per the kind's declared type for name and stores it.
// Undeclared names are dropped. Returns the node for chaining.
func (n *Node) Set(name string, value any) *Node {
	t, ok := nodeSchemas[n.kind].types[name]
	if !ok {
		return n
	}
	n.props[name] = Coerce(t, value)
	return n
}

// Get returns the stored text value for name, or the type sentinel when the
// property has not been set.
func (n *Node) Get(name string) string {
	if v, ok := n.props[name]; ok {
		return v
	}
	t, ok := nodeSchemas[n.kind].types[name]
	if !ok {
		return ""
	}
	return sentinel(t)
}

// Key returns the value of the kind's key property.
func (n *Node) Key() string {
	return n.Get(nodeSchemas[n.kind].key)
}

// Values returns the property values in declaration order, substituting the
// sentinel for any property never set. This is the node's CSV row.
func (n *Node) Values() []string {
	schema := nodeSchemas[n.kind]
	out := make([]string, len(schema.props))
	for i, p := range schema.props {
		if v, ok := n.props[p.name]; ok {
			out[i] = v
		} else {
			out[i] = sentinel(p.typ)
		}
	}
	return out
}

// Rel is a directed, typed relationship between two nodes identified by key.
type Rel struct {
	kind          RelKind
	sourceID      string
	destinationID string
	props         map[string]string
}

// NewRel creates a relationship of the given kind from src to dst, capturing
// their keys. The endpoint kinds must match the relationship's declared
// endpoints; a mismatch is a programming error.
func NewRel(kind RelKind, src, dst *Node) *Rel {
	schema := relSchemas[kind]
	if src.Kind() != schema.source || dst.Kind() != schema.destination {
		panic(fmt.Sprintf("relationship %s connects %s->%s, got %s->%s",
			schema.name, nodeSchemas[schema.source].label, nodeSchemas[schema.destination].label,
			nodeSchemas[src.Kind()].label, nodeSchemas[dst.Kind()].label))
	}
	return &Rel{
		kind:          kind,
		sourceID:      src.Key(),
		destinationID: dst.Key(),
		props:         make(map[string]string),
	}
}

// Kind returns the relationship kind.
func (r *Rel) Kind() RelKind { return r.kind }

// SourceID returns the key of the source node.
func (r *Rel) SourceID() string { return r.sourceID }

// DestinationID returns the key of the destination node.
func (r *Rel) DestinationID() string { return r.destinationID }

// Set coerces value per the kind's declared type for name and stores it.
// Undeclared names are dropped. Returns the relationship for chaining.
func (r *Rel) Set(name string, value any) *Rel {
	t, ok := relSchemas[r.kind].types[name]
	if !ok {
		return r
	}
	r.props[name] = Coerce(t, value)
	return r
}

// Values returns source id, destination id, then the property values in
// declaration order. This is the relationship's CSV row.
func (r *Rel) Values() []string {
	schema := relSchemas[r.kind]
	out := make([]string, 0, len(schema.props)+2)
	out = append(out, r.sourceID, r.destinationID)
	for _, p := range schema.props {
		if v, ok := r.props[p.name]; ok {
			out = append(out, v)
		} else {
			out = append(out, sentinel(p.typ))
		}
	}
	return out
}
