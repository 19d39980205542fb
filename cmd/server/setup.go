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

// Package main contains the setup and initialization logic for the application's state.
// This file is responsible for creating and managing a centralized state manager
// that holds all shared dependencies, such as configuration, Google Cloud service clients,
// the generation provider registry, and the evaluation and regeneration pipelines.
//
// It ensures that the application is configured correctly based on the environment,
// initializes all necessary clients (Storage, BigQuery, IAM, etc.), and starts
// background processes like the artifact trigger listener.
//
// Functions:
//   - SetupOS: Configures necessary environment variables for the application,
//     pointing to the correct configuration files.
//   - GetConfig: A singleton function that loads the application's configuration
//     from TOML files. It ensures the configuration is loaded only once.
//   - InitState: The core initialization function that creates all service clients,
//     configures the application services (ProjectService, ArtifactService,
//     AuditService), builds the provider registry, and starts the Pub/Sub listeners.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jaycherian/gcp-go-promo-quality/internal/cloud"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/commands"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/generation"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/ledger"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/model"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/services"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/strategy"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/workflow"
)

// StateManager holds all the shared dependencies for the application, acting as a
// centralized container for service clients and configurations. This avoids the
// need for global variables and makes dependency management cleaner.
type StateManager struct {
	config          *cloud.Config
	cloud           *cloud.ServiceClients
	projectService  *services.ProjectService
	artifactService *services.ArtifactService
	auditService    *services.AuditService
	attempts        *ledger.AttemptLedger
	evaluation      *workflow.SceneEvaluationWorkflow
	regeneration    *workflow.SceneRegenerationWorkflow
}

// state is a package-level variable that holds the single instance of StateManager.
var state = &StateManager{}

// SetupOS sets the necessary environment variables that the configuration loader
// uses to find the correct TOML files.
//
// This function sets the prefix for the configuration directory and specifies
// the runtime environment (e.g., "local", "test", "prod"), allowing for
// environment-specific overrides of the base configuration.
//
// Outputs:
//   - error: An error if setting any of the environment variables fails.
func SetupOS() (err error) {
	// Set the directory where configuration files are located.
	err = os.Setenv(cloud.EnvConfigFilePrefix, "configs")
	if err != nil {
		return err
	}
	// Set the current runtime environment to "local". The config loader will
	// look for a ".env.local.toml" file to override base settings.
	err = os.Setenv(cloud.EnvConfigRuntime, "local")
	return err
}

// GetConfig provides a singleton instance of the application configuration.
// It ensures that the configuration is loaded from the file system only once.
// On the first call, it sets up the OS environment and loads the configuration
// from the TOML files. Subsequent calls return the cached configuration.
//
// Outputs:
//   - *cloud.Config: A pointer to the loaded application configuration struct.
func GetConfig() *cloud.Config {
	// If the config has not been loaded yet...
	if state.config == nil {
		// Set up the environment variables required for config loading.
		err := SetupOS()
		if err != nil {
			log.Fatalf("failed to setup os: %v\n", err)
		}
		// Create a new, empty config struct.
		config := cloud.NewConfig()
		// Load the configuration from the .toml files into the struct.
		cloud.LoadConfig(&config)
		// Store the loaded config in the state manager.
		state.config = config
	}
	// Return the cached config.
	return state.config
}

// BuildRegistry constructs the generation provider registry from the provider
// declarations in the configuration. Each declaration becomes a concrete
// provider implementation registered under its routing name.
//
// Inputs:
//   - config: The loaded application configuration.
//   - cloudClients: The initialized Google Cloud service clients.
//
// Outputs:
//   - *generation.Registry: The registry with every configured provider registered.
func BuildRegistry(config *cloud.Config, cloudClients *cloud.ServiceClients) *generation.Registry {
	store := generation.NewArtifactStore(cloudClients.StorageClient, config.Storage.ArtifactBucket)
	timeout := time.Duration(config.Routing.GenerationTimeoutInSeconds) * time.Second

	registry := generation.NewRegistry(timeout)
	for name, provider := range config.Providers {
		switch provider.Kind {
		case "vertex-image":
			registry.Register(generation.NewVertexImageProvider(name, cloudClients.GenAIClient, provider.Model, store, provider.RateLimit))
		case "vertex-video":
			registry.Register(generation.NewVertexVideoProvider(name, cloudClients.GenAIClient, provider.Model, store, provider.RateLimit))
		case "stock":
			registry.Register(generation.NewStockFootageProvider(name, cloudClients.StorageClient, config.Storage.StockLibraryBucket, config.Storage.StockLibraryPrefix))
		default:
			log.Fatalf("unknown provider kind %q for provider %q", provider.Kind, name)
		}
	}
	return registry
}

// BuildRouting converts the provider and routing tables from the configuration
// into the routing structure consumed by the strategy engine. Every name in
// the fallback order must reference a declared provider.
//
// Inputs:
//   - config: The loaded application configuration.
//
// Outputs:
//   - strategy.Routing: The provider directory and feasibility rules.
func BuildRouting(config *cloud.Config) strategy.Routing {
	order := make([]strategy.ProviderProfile, 0, len(config.Routing.FallbackOrder))
	for _, name := range config.Routing.FallbackOrder {
		provider, ok := config.Providers[name]
		if !ok {
			log.Fatalf("fallback order references undeclared provider %q", name)
		}
		mediaTypes := make([]model.MediaType, 0, len(provider.MediaTypes))
		for _, mt := range provider.MediaTypes {
			mediaTypes = append(mediaTypes, model.MediaType(mt))
		}
		order = append(order, strategy.ProviderProfile{
			Name:              name,
			MediaTypes:        mediaTypes,
			Capabilities:      provider.Capabilities,
			SupportsReference: provider.SupportsReference,
		})
	}
	return strategy.Routing{
		FallbackOrder:       order,
		ImpossibleTags:      config.Routing.ImpossibleTags,
		MaxRequiredElements: config.Routing.MaxRequiredElements,
	}
}

// InitState initializes the entire application state.
// It orchestrates the creation of all necessary services and clients based on the
// application configuration and wires them together.
//
// Inputs:
//   - ctx: The root context.Context for the application, used for managing
//     the lifecycle of client connections and background processes.
//
// This function performs the following steps:
//  1. Loads the application configuration.
//  2. Initializes all Google Cloud service clients (Storage, Pub/Sub, GenAI, BigQuery, IAM).
//  3. Instantiates the application-specific services (ProjectService, ArtifactService, AuditService).
//  4. Builds the provider registry and the evaluation and regeneration pipelines.
//  5. Sets up and starts the Pub/Sub listener that reacts to new artifacts.
func InitState(ctx context.Context) {
	// Get the application configuration.
	config := GetConfig()

	// Initialize all the base Google Cloud service clients.
	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		panic(err)
	}

	// Store the initialized clients in the global state.
	state.cloud = cloudClients

	// Initialize the in-process services.
	state.projectService = services.NewProjectService(config.QualityPolicy, config.Application.ThreadPoolSize)
	state.artifactService = &services.ArtifactService{
		StorageClient: cloudClients.StorageClient,
		IAMClient:     cloudClients.IAMClient,
		SignerEmail:   config.Application.SignerServiceAccountEmail,
	}
	state.auditService = &services.AuditService{
		BigqueryClient: cloudClients.BigQueryClient,
		DatasetName:    config.BigQueryDataSource.DatasetName,
		AttemptTable:   config.BigQueryDataSource.AttemptTable,
	}
	state.attempts = ledger.NewAttemptLedger()

	// Build the evaluation pipeline around the configured scorer model.
	state.evaluation = workflow.NewSceneEvaluationPipeline(config, cloudClients, "scene-scorer")

	// Build the regeneration orchestrator: the provider registry, the routing
	// table, the attempt persistence command, and the escalation publisher.
	persist := commands.NewAttemptPersistToBigQuery(
		"write-attempt-to-bigquery",
		cloudClients.BigQueryClient,
		config.BigQueryDataSource.DatasetName,
		config.BigQueryDataSource.AttemptTable,
		commands.GetAttemptParamName())
	escalate := commands.NewEscalationPublisher(
		"publish-escalation",
		cloudClients.PubsubClient.Topic(config.Topics.Escalation),
		commands.GetEscalationParamName())

	state.regeneration = workflow.NewSceneRegenerationPipeline(
		state.evaluation,
		BuildRegistry(config, cloudClients),
		state.attempts,
		state.projectService,
		BuildRouting(config),
		config.QualityPolicy,
		persist,
		escalate)

	// Configure and start the Pub/Sub listener that reacts to artifact bucket events.
	SetupListeners(config, cloudClients, ctx)
}
