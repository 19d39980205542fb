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

// Package services_test contains the integration test suite for the services
// package. This file specifically tests the functionality of the AuditService
// against a live BigQuery backend.
package services_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/jaycherian/gcp-go-promo-quality/internal/cloud"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/services"
	test "github.com/jaycherian/gcp-go-promo-quality/internal/testutil"
	"github.com/zeebo/assert"
)

// TestAuditService is an integration test for the query methods of the
// AuditService. It initializes a full application stack (configuration, cloud
// clients), then creates an instance of the AuditService. It executes the
// provider performance aggregate and the escalation summary against the live
// attempt table and asserts that both operations complete without errors.
// This test validates the end-to-end flow from the query templates to the
// row structs the dashboard endpoints serve.
//
// Inputs:
//   - t: The testing framework's test handler.
func TestAuditService(t *testing.T) {
	// Create a new context with a cancel function. This allows us to gracefully
	// manage the lifecycle of the cloud clients and any background operations.
	ctx, cancel := context.WithCancel(context.Background())
	// The defer statement ensures that cancel() is called when the function exits,
	// which is crucial for releasing resources and preventing leaks.
	defer cancel()

	// Load the application configuration from .toml files using a test helper.
	// This helper sets the necessary environment variables to load test-specific configs.
	config := test.GetConfig()

	// Initialize all necessary Google Cloud service clients (Storage, Pub/Sub, GenAI, BigQuery)
	// based on the loaded configuration. This creates the 'live' environment for the test.
	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	// Use a test helper to fail the test immediately if client initialization fails.
	test.HandleErr(err, t)
	// Ensure that all client connections are closed when the test function completes.
	defer cloudClients.Close()

	// Retrieve the scoring model from the initialized clients. While not directly
	// used in this test, this confirms that the agent models were loaded
	// correctly from the configuration.
	scoringModel := cloudClients.AgentModels["scene-scorer"]
	assert.NotNil(t, scoringModel)

	// Instantiate the AuditService with its dependencies: the BigQuery client
	// and the names of the dataset and attempt table to query.
	auditService := &services.AuditService{
		BigqueryClient: cloudClients.BigQueryClient,
		DatasetName:    config.BigQueryDataSource.DatasetName,
		AttemptTable:   config.BigQueryDataSource.AttemptTable,
	}

	// Execute the provider performance aggregate: one row per provider and
	// outcome pair across the whole attempt table.
	counts, err := auditService.OutcomeCounts(ctx)
	assert.Nil(t, err)
	for _, c := range counts {
		fmt.Printf("%s - %s: %d\n", c.ProviderUsed, c.Outcome, c.Attempts)
	}

	// Execute the escalation summary: scenes whose attempt ladder was
	// exhausted without a success, most attempts first.
	escalations, err := auditService.RecentEscalations(ctx, 5)
	assert.Nil(t, err)
	for _, e := range escalations {
		fmt.Printf("%s - %d attempt(s), best score %.1f\n", e.SceneID, e.Attempts, e.BestScore)
	}
}
