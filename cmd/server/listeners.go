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

// Package main contains the logic for setting up and starting the Pub/Sub message listeners.
// These listeners are responsible for initiating backend processing in response to events,
// such as new artifacts landing in the artifact bucket.
//
// Functions:
//   - SetupListeners: Initializes and starts the listener for the artifact topic,
//     attaching the trigger pipeline that scores each new artifact.
package main

import (
	"context"
	"log"

	"github.com/jaycherian/gcp-go-promo-quality/internal/cloud"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/workflow"
)

// SetupListeners configures and starts the background Pub/Sub listeners.
// It attaches the artifact trigger pipeline to the artifact topic listener, so
// every artifact written to the artifact bucket is scored as soon as its GCS
// notification arrives.
//
// Inputs:
//   - config: The application's configuration, containing settings for storage, topics, etc.
//   - cloudClients: A struct containing all the initialized Google Cloud service clients.
//   - ctx: The application's root context, used to manage the lifecycle of the listeners.
//
// Outputs:
//   - This function does not return any value. It starts the listeners as background goroutines.
func SetupListeners(config *cloud.Config, cloudClients *cloud.ServiceClients, ctx context.Context) {
	if _, ok := config.TopicSubscriptions["ArtifactTopic"]; !ok {
		log.Fatal("no ArtifactTopic subscription configured")
	}

	// The project service resolves scene IDs from artifact paths and records
	// the verdicts the pipeline produces.
	triggerPipeline := workflow.NewArtifactTriggerPipeline(state.evaluation, state.projectService, state.projectService)

	// Assign the trigger pipeline as the command executed by the artifact topic listener.
	cloudClients.PubSubListeners["ArtifactTopic"].SetCommand(triggerPipeline)
	// Start the listener in a background goroutine. It will now begin receiving
	// and processing messages from its subscription.
	cloudClients.PubSubListeners["ArtifactTopic"].Listen(ctx)
}
