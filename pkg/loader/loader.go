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

// Package loader streams the intermediate CSV files into Neo4j and runs the
// post-load linking passes. The database must be able to read the data
// directory through its import path, since ingestion happens via LOAD CSV.
package loader

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/abcxyz/pkg/logging"

	"github.com/abcxyz/github-graph-miner/pkg/graph"
	"github.com/abcxyz/github-graph-miner/pkg/storage"
)

// Loader owns one driver connection, shared by all repository insertions.
type Loader struct {
	driver neo4j.DriverWithContext
}

// New connects to the database and verifies connectivity.
func New(ctx context.Context, uri, username, password string) (*Loader, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to reach database at %s: %w", uri, err)
	}
	return &Loader{driver: driver}, nil
}

// Close releases the driver connection.
func (l *Loader) Close(ctx context.Context) error {
	if err := l.driver.Close(ctx); err != nil {
		return fmt.Errorf("failed to close database driver: %w", err)
	}
	return nil
}

// Insert loads every CSV file the storage produced, then runs the
// cross-linking passes for the project. The storage must be flushed first.
func (l *Loader) Insert(ctx context.Context, s *storage.Storage, projectID string) error {
	logger := logging.FromContext(ctx)

	logger.DebugContext(ctx, "creating database indexes")
	for _, query := range indexQueries() {
		if err := l.run(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	for _, kind := range graph.NodeKinds() {
		loadPath, ok := s.NodeLoadPath(kind)
		if !ok {
			continue
		}
		logger.DebugContext(ctx, "inserting nodes", "label", kind.Label())
		if err := l.run(ctx, nodeInsertQuery(kind, loadPath)); err != nil {
			return fmt.Errorf("failed to insert %s nodes: %w", kind.Label(), err)
		}
	}

	for _, kind := range graph.RelKinds() {
		loadPath, ok := s.RelLoadPath(kind)
		if !ok {
			continue
		}
		logger.DebugContext(ctx, "inserting relationships", "type", kind.Name())
		if err := l.run(ctx, relInsertQuery(kind, loadPath)); err != nil {
			return fmt.Errorf("failed to insert %s relationships: %w", kind.Name(), err)
		}
	}

	logger.DebugContext(ctx, "linking textual issue and pull request references")
	if err := l.run(ctx, crossLinkQuery(projectID)); err != nil {
		return fmt.Errorf("failed to link textual references: %w", err)
	}

	logger.DebugContext(ctx, "linking pull request files to merged file states")
	if err := l.run(ctx, mergedFileQuery(projectID)); err != nil {
		return fmt.Errorf("failed to link merged files: %w", err)
	}
	return nil
}

// run executes one query in an auto-commit session. CALL {} IN TRANSACTIONS
// requires an implicit transaction, so everything goes through session.Run.
func (l *Loader) run(ctx context.Context, query string) error {
	session := l.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, nil)
	if err != nil {
		return err //nolint:wrapcheck // wrapped by caller
	}
	if _, err := result.Consume(ctx); err != nil {
		return err //nolint:wrapcheck // wrapped by caller
	}
	return nil
}
