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

// Package services contains the business logic for interacting with data sources.
// This file, `queries.go`, centralizes all the BigQuery SQL query strings used
// by the application's services. Storing queries as constants in a dedicated
// file improves maintainability, readability, and reusability. The queries use
// `fmt.Sprintf` format verbs (e.g., %s, %d) as placeholders for dynamic values
// that will be injected at runtime.
package services

const (
	// QryAttemptsByScene retrieves the full regeneration history of one scene
	// from the audit table, in attempt order. This is the durable counterpart
	// of the in-memory ledger and survives process restarts.
	//
	// Placeholders:
	// - `%s`: The fully qualified name of the attempt audit table.
	// - `%s`: The scene ID whose history is requested.
	QryAttemptsByScene = "SELECT scene_id, attempt_number, timestamp, approach, provider_used, prompt_used, artifact_uri, outcome, overall_score, assessment_json FROM `%s` WHERE scene_id = '%s' ORDER BY attempt_number asc"

	// QryOutcomeCounts aggregates attempt outcomes per provider. The review
	// dashboard uses it to show which providers earn their place in the
	// fallback ordering.
	//
	// How it works:
	// - `GROUP BY provider_used, outcome`: One row per provider/outcome pair.
	// - `COUNT(*)`: The number of attempts in that bucket.
	//
	// Placeholders:
	// - `%s`: The fully qualified name of the attempt audit table.
	QryOutcomeCounts = "SELECT provider_used, outcome, COUNT(*) as attempts FROM `%s` GROUP BY provider_used, outcome ORDER BY provider_used, outcome"

	// QryRecentEscalations finds scenes that burned their whole ladder: three
	// or more recorded attempts with no successful one. These are the scenes
	// sitting in the human review queue.
	//
	// Placeholders:
	// - `%s`: The fully qualified name of the attempt audit table.
	// - `%d`: The maximum number of scenes to return.
	QryRecentEscalations = "SELECT scene_id, COUNT(*) as attempts, MAX(overall_score) as best_score FROM `%s` GROUP BY scene_id HAVING COUNT(*) >= 3 AND COUNTIF(outcome = 'success') = 0 ORDER BY attempts desc LIMIT %d"
)
