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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// command responsible for persisting regeneration attempts to BigQuery.
//
// Logic Flow:
// Every regeneration attempt, successful or not, is appended to a BigQuery
// audit table. This is the durable counterpart of the in-memory attempt
// ledger: the ledger drives strategy decisions, the BigQuery table answers
// "what did we try and why" long after the process exits.
//
//  1. It retrieves the `model.RegenerationAttempt` from the context.
//  2. It flattens the attempt into an `AttemptRow`. BigQuery's struct
//     uploader cannot represent Go maps, so the nested assessment travels as
//     a JSON string column.
//  3. It gets a BigQuery `Inserter` and streams the row into the table. The
//     Go client library maps struct fields to table columns based on the
//     `bigquery` struct tags.
//  4. It performs error handling and updates telemetry counters.
package commands

import (
	"encoding/json"
	"fmt"
	"log"

	"cloud.google.com/go/bigquery"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/cor"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/model"
)

// AttemptRow is the flattened BigQuery representation of one regeneration
// attempt.
type AttemptRow struct {
	SceneID        string  `bigquery:"scene_id"`
	AttemptNumber  int     `bigquery:"attempt_number"`
	Timestamp      string  `bigquery:"timestamp"` // RFC 3339.
	Approach       string  `bigquery:"approach"`
	ProviderUsed   string  `bigquery:"provider_used"`
	PromptUsed     string  `bigquery:"prompt_used"`
	ArtifactURI    string  `bigquery:"artifact_uri"`
	Outcome        string  `bigquery:"outcome"`
	OverallScore   float64 `bigquery:"overall_score"`
	AssessmentJSON string  `bigquery:"assessment_json"` // The full assessment as a JSON document.
}

// AttemptPersistToBigQuery is a command that saves a regeneration attempt to
// a BigQuery table.
type AttemptPersistToBigQuery struct {
	cor.BaseCommand
	client       *bigquery.Client // The client for interacting with the BigQuery service.
	dataset      string           // The name of the BigQuery dataset.
	table        string           // The name of the target table within the dataset.
	attemptParam string           // The context key for the input `model.RegenerationAttempt` object.
}

// NewAttemptPersistToBigQuery is the constructor for the AttemptPersistToBigQuery command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - client: An initialized *bigquery.Client.
//   - dataset: The name of the BigQuery dataset.
//   - table: The name of the target table.
//   - attemptParam: The name of the context parameter holding the attempt to be saved.
//
// Outputs:
//   - *AttemptPersistToBigQuery: A pointer to the newly instantiated command.
func NewAttemptPersistToBigQuery(name string, client *bigquery.Client, dataset string, table string, attemptParam string) *AttemptPersistToBigQuery {
	return &AttemptPersistToBigQuery{BaseCommand: *cor.NewBaseCommand(name), client: client, dataset: dataset, table: table, attemptParam: attemptParam}
}

// IsExecutable overrides the default behavior to ensure that the attempt to
// be persisted exists in the context before execution.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution.
//
// Outputs:
//   - bool: True if the attempt exists in the context, otherwise false.
func (s *AttemptPersistToBigQuery) IsExecutable(context cor.Context) bool {
	return context != nil && context.Get(s.attemptParam) != nil
}

// Execute contains the core logic for writing the attempt to BigQuery.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution.
func (s *AttemptPersistToBigQuery) Execute(context cor.Context) {
	// Retrieve the attempt from the context.
	attempt := context.Get(s.attemptParam).(*model.RegenerationAttempt)

	row := &AttemptRow{
		SceneID:       attempt.SceneID,
		AttemptNumber: attempt.AttemptNumber,
		Timestamp:     attempt.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Approach:      string(attempt.Approach),
		ProviderUsed:  attempt.ProviderUsed,
		PromptUsed:    attempt.PromptUsed,
		Outcome:       string(attempt.Outcome),
	}
	if attempt.Artifact != nil {
		row.ArtifactURI = attempt.Artifact.URI
	}
	if attempt.ResultAssessment != nil {
		row.OverallScore = attempt.ResultAssessment.OverallScore
		assessmentJSON, err := json.Marshal(attempt.ResultAssessment)
		if err != nil {
			s.GetErrorCounter().Add(context.GetContext(), 1)
			context.AddError(s.GetName(), fmt.Errorf("failed to marshal assessment for scene %s: %w", attempt.SceneID, err))
			return
		}
		row.AssessmentJSON = string(assessmentJSON)
	}

	// Get an Inserter for the target table. This provides a streaming interface
	// for inserting rows into BigQuery, which is highly efficient.
	i := s.client.Dataset(s.dataset).Table(s.table).Inserter()

	if err := i.Put(context.GetContext(), row); err != nil {
		log.Printf("failed to write attempt to database. scene %s attempt %d error %s\n", attempt.SceneID, attempt.AttemptNumber, err)
		s.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(s.GetName(), fmt.Errorf("bigquery insert failed for scene '%s': %w", attempt.SceneID, err))
		return
	}

	// On success, update telemetry and pass the attempt to the next command.
	s.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(cor.CtxOut, attempt)
}
