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

// Package cloud defines the data structures for application configuration,
// loaded from TOML files. It provides a structured way to manage settings
// for various components, including Google Cloud services, the scoring
// models, the media generation providers, and the quality policy itself.
//
// This file centralizes all configuration-related structs, making it easy
// to understand and manage the application's configurable parameters.
//
// Structs:
//   - BigQueryDataSource: Configuration for BigQuery dataset and tables.
//   - PromptTemplates: Holds the text templates for prompts sent to the scoring models.
//   - VertexAiLLMModel: Configuration for a Vertex AI Large Language Model (LLM).
//   - TopicSubscription: Configuration for a single Pub/Sub topic subscription.
//   - Storage: Configuration for Google Cloud Storage buckets.
//   - GenerationProvider: Declares one media provider and its capabilities.
//   - Routing: Provider fallback order and content feasibility rules.
//   - Config: The top-level struct that aggregates all other configuration structs.
//
// Functions:
//   - NewConfig: A constructor that initializes a new Config object with empty maps.
package cloud

import (
	"google.golang.org/genai"

	"github.com/jaycherian/gcp-go-promo-quality/internal/core/quality"
)

// DefaultSafetySettings defines the default content safety thresholds for GenAI models.
// These settings are configured to be non-restrictive, allowing all content categories
// (Dangerous Content, Harassment, Hate Speech, Sexually Explicit) to pass through without
// being blocked. The scorer has to describe whatever the generators produced, including
// content it will then reject, so blocking at the model layer would blind the gate.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
}

// BigQueryDataSource represents the configuration for a BigQuery data source.
type BigQueryDataSource struct {
	DatasetName  string `toml:"dataset"`       // The name of the BigQuery dataset.
	AttemptTable string `toml:"attempt_table"` // The name of the table holding the regeneration attempt audit trail.
}

// PromptTemplates holds the templates for different types of prompts.
type PromptTemplates struct {
	ScoringPrompt string `toml:"scoring"` // The template for scoring an artifact against its expected description.
}

// VertexAiLLMModel represents the configuration for a Vertex AI large language model (LLM).
type VertexAiLLMModel struct {
	Model              string  `toml:"model"`               // The name of the Vertex AI LLM.
	SystemInstructions string  `toml:"system_instructions"` // The system instructions for the LLM.
	Temperature        float32 `toml:"temperature"`         // The temperature parameter for the LLM.
	TopP               float32 `toml:"top_p"`               // The top_p parameter for the LLM.
	TopK               float32 `toml:"top_k"`               // The top_k parameter for the LLM.
	MaxTokens          int32   `toml:"max_tokens"`          // The maximum number of tokens for the LLM output.
	OutputFormat       string  `toml:"output_format"`       // The desired output format for the LLM.
	EnableGoogle       bool    `toml:"enable_google"`       // Whether to enable Google Search for the LLM.
	RateLimit          int     `toml:"rate_limit"`          // The rate limit for the LLM in requests per second.
}

// TopicSubscription represents the configuration for a Pub/Sub topic subscription.
type TopicSubscription struct {
	Name             string `toml:"name"`               // The name of the Pub/Sub subscription.
	DeadLetterTopic  string `toml:"dead_letter_topic"`  // The name of the dead-letter topic for the subscription.
	TimeoutInSeconds int    `toml:"timeout_in_seconds"` // The timeout for the subscription in seconds.
}

// Storage represents the configuration for storage buckets.
type Storage struct {
	ArtifactBucket     string `toml:"artifact_bucket"`      // The bucket generated artifacts are written to.
	StockLibraryBucket string `toml:"stock_library_bucket"` // The bucket holding the curated stock footage library.
	StockLibraryPrefix string `toml:"stock_library_prefix"` // The object prefix of the stock library within its bucket.
}

// GenerationProvider declares one media generation provider: which kind of
// backend it is, which model it invokes, and what the routing layer may ask
// of it. The key in the providers map is the provider's routing name.
type GenerationProvider struct {
	Kind              string   `toml:"kind"`               // The backend kind: "vertex-image", "vertex-video", or "stock".
	Model             string   `toml:"model"`              // The Vertex AI model to invoke. Unused for stock providers.
	MediaTypes        []string `toml:"media_types"`        // The media types the provider can produce ("image", "video").
	Capabilities      []string `toml:"capabilities"`       // Content tags the provider handles well (e.g. "outdoor", "product").
	SupportsReference bool     `toml:"supports_reference"` // Whether the provider accepts a seed artifact.
	RateLimit         int      `toml:"rate_limit"`         // The rate limit for the provider in requests per second.
}

// Topics represents the Pub/Sub topics the application publishes to.
type Topics struct {
	Escalation string `toml:"escalation"` // The topic escalation notices are published to.
}

// Routing holds the rules the strategy engine uses to pick providers and to
// judge whether a scene's content is generatable at all.
type Routing struct {
	FallbackOrder              []string `toml:"fallback_order"`               // Provider names in preference order for capability routing.
	ImpossibleTags             []string `toml:"impossible_tags"`              // Content tags no provider can render faithfully.
	MaxRequiredElements        int      `toml:"max_required_elements"`        // Above this many required elements a prompt is considered infeasible.
	GenerationTimeoutInSeconds int      `toml:"generation_timeout_in_seconds"` // The per-call deadline applied to every provider invocation.
}

// Config represents the overall configuration for the application, loaded from TOML files.
// It acts as the root container for all other configuration structs.
type Config struct {
	// Application holds general application settings.
	Application struct {
		Name                      string `toml:"name"`                         // The name of the application.
		GoogleProjectId           string `toml:"google_project_id"`            // The Google Cloud project ID.
		GoogleLocation            string `toml:"location"`                     // The Google Cloud location.
		ThreadPoolSize            int    `toml:"thread_pool_size"`             // The size of the worker pool for parallel scene evaluation.
		SignerServiceAccountEmail string `toml:"signer_service_account_email"` // The service account email used for signing GCS URLs.
	} `toml:"application"`
	Storage            Storage                       `toml:"storage"`               // Storage configuration.
	BigQueryDataSource BigQueryDataSource            `toml:"big_query_data_source"` // BigQuery data source configuration.
	PromptTemplates    PromptTemplates               `toml:"prompt_templates"`      // Prompt templates configuration.
	QualityPolicy      quality.QualityPolicy         `toml:"quality_policy"`        // Thresholds and limits for the quality gate.
	Routing            Routing                       `toml:"routing"`               // Provider routing and feasibility rules.
	Topics             Topics                        `toml:"topics"`                // Topics the application publishes to.
	TopicSubscriptions map[string]TopicSubscription  `toml:"topic_subscriptions"`   // A map of Pub/Sub topic subscriptions, keyed by a logical name (e.g., "EvalTrigger").
	AgentModels        map[string]VertexAiLLMModel   `toml:"agent_models"`          // A map of Vertex AI LLM models, keyed by a logical name (e.g., "scene-scorer").
	Providers          map[string]GenerationProvider `toml:"providers"`             // A map of media generation providers, keyed by routing name (e.g., "veo").
}

// NewConfig is a constructor function that creates a new, initialized Config instance.
// It's important to initialize the maps within the struct to avoid nil pointer panics
// when the configuration loader tries to populate them.
//
// Outputs:
//   - *Config: A pointer to a new Config struct with its map fields initialized.
func NewConfig() *Config {
	return &Config{
		QualityPolicy:      quality.DefaultQualityPolicy(),
		TopicSubscriptions: make(map[string]TopicSubscription),
		AgentModels:        make(map[string]VertexAiLLMModel),
		Providers:          make(map[string]GenerationProvider),
	}
}
