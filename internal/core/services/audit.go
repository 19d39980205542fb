// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package services contains the business logic for interacting with data
// sources. This file defines the AuditService, which answers questions about
// the durable attempt history in BigQuery: what was tried for a scene, how
// providers perform, and which scenes ended up escalated.
package services

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/jaycherian/gcp-go-promo-quality/internal/core/commands"
)

// ProviderOutcomeCount is one row of the provider performance aggregate.
type ProviderOutcomeCount struct {
	ProviderUsed string `bigquery:"provider_used"`
	Outcome      string `bigquery:"outcome"`
	Attempts     int64  `bigquery:"attempts"`
}

// EscalatedScene is one row of the escalation summary: a scene whose ladder
// was exhausted without a success.
type EscalatedScene struct {
	SceneID   string  `bigquery:"scene_id"`
	Attempts  int64   `bigquery:"attempts"`
	BestScore float64 `bigquery:"best_score"`
}

// AuditService encapsulates the client and configuration needed to query the
// regeneration attempt audit trail.
type AuditService struct {
	BigqueryClient *bigquery.Client // Client for interacting with Google BigQuery.
	DatasetName    string           // The name of the BigQuery dataset.
	AttemptTable   string           // The name of the table holding attempt rows.
}

// GetFQN (Get Fully Qualified Name) returns the complete, queryable name for
// the attempt table in BigQuery, formatted with dots instead of colons.
//
// Outputs:
//   - string: The fully qualified table name.
func (s *AuditService) GetFQN() string {
	fqn := s.BigqueryClient.Dataset(s.DatasetName).Table(s.AttemptTable).FullyQualifiedName()
	return strings.Replace(fqn, ":", ".", -1)
}

// AttemptsForScene retrieves the ordered attempt history of one scene from
// the audit table.
//
// Inputs:
//   - ctx: The context for the request, used for cancellation and tracing.
//   - sceneID: The scene whose history is requested.
//
// Outputs:
//   - []*commands.AttemptRow: The attempt rows in attempt order.
//   - error: An error if the query or row scanning fails.
func (s *AuditService) AttemptsForScene(ctx context.Context, sceneID string) (out []*commands.AttemptRow, err error) {
	out = make([]*commands.AttemptRow, 0)
	queryText := fmt.Sprintf(QryAttemptsByScene, s.GetFQN(), sceneID)
	q := s.BigqueryClient.Query(queryText)
	itr, err := q.Read(ctx)
	if err != nil {
		return out, fmt.Errorf("failed to read from BigQuery: %w", err)
	}
	for {
		r := &commands.AttemptRow{}
		err := itr.Next(r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return out, fmt.Errorf("failed to iterate results: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// OutcomeCounts aggregates attempt outcomes per provider across the whole
// audit table.
//
// Inputs:
//   - ctx: The context for the request.
//
// Outputs:
//   - []*ProviderOutcomeCount: One row per provider/outcome pair.
//   - error: An error if the query or row scanning fails.
func (s *AuditService) OutcomeCounts(ctx context.Context) (out []*ProviderOutcomeCount, err error) {
	out = make([]*ProviderOutcomeCount, 0)
	queryText := fmt.Sprintf(QryOutcomeCounts, s.GetFQN())
	q := s.BigqueryClient.Query(queryText)
	itr, err := q.Read(ctx)
	if err != nil {
		return out, fmt.Errorf("failed to read from BigQuery: %w", err)
	}
	for {
		r := &ProviderOutcomeCount{}
		err := itr.Next(r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return out, fmt.Errorf("failed to iterate results: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// RecentEscalations lists scenes whose attempt ladder was exhausted without
// a success, most attempts first.
//
// Inputs:
//   - ctx: The context for the request.
//   - maxResults: The maximum number of scenes to return.
//
// Outputs:
//   - []*EscalatedScene: The escalated scenes.
//   - error: An error if the query or row scanning fails.
func (s *AuditService) RecentEscalations(ctx context.Context, maxResults int) (out []*EscalatedScene, err error) {
	out = make([]*EscalatedScene, 0)
	queryText := fmt.Sprintf(QryRecentEscalations, s.GetFQN(), maxResults)
	q := s.BigqueryClient.Query(queryText)
	itr, err := q.Read(ctx)
	if err != nil {
		return out, fmt.Errorf("failed to read from BigQuery: %w", err)
	}
	for {
		r := &EscalatedScene{}
		err := itr.Next(r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return out, fmt.Errorf("failed to iterate results: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}
