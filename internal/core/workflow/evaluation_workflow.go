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

// Package workflow defines the high-level business logic orchestrations,
// combining various commands into coherent pipelines. This file implements
// the scene evaluation workflow: scoring one artifact against its scene's
// expected description and deriving a verdict.
package workflow

import (
	goctx "context"
	"errors"
	"text/template"

	"github.com/jaycherian/gcp-go-promo-quality/internal/cloud"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/commands"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/cor"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/model"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/quality"
)

// SceneEvaluationWorkflow orchestrates the scoring of a single artifact.
// It's structured as a Chain of Responsibility (cor.Chain) that executes a
// sequence of commands: prompt the scoring model, parse and validate its
// JSON answer, and derive the verdict under the configured policy.
//
// The workflow is invoked directly by the API layer and the regeneration
// orchestrator, and indirectly by the Pub/Sub trigger workflow when a new
// artifact lands in the artifact bucket.
type SceneEvaluationWorkflow struct {
	cor.BaseCommand
	config          *cloud.Config
	scoringModel    *cloud.QuotaAwareScoringModel
	policy          quality.QualityPolicy
	scoringTemplate *template.Template
	chain           cor.Chain // The underlying chain of commands to be executed.
}

// Execute runs the evaluation chain. The context must already carry the
// scene and artifact under their well-known parameter names.
//
// Inputs:
//   - context: The chain of responsibility context for this execution.
func (m *SceneEvaluationWorkflow) Execute(context cor.Context) {
	m.chain.Execute(context)
}

// Evaluate is the synchronous entry point used by the orchestrator and the
// API layer. It runs the chain and applies the oracle failure policy: one
// retry on a scoring oracle error, then a degraded assessment rather than a
// silent pass.
//
// Inputs:
//   - ctx: The Go context carrying cancellation and tracing.
//   - scene: The scene the artifact was generated for.
//   - artifact: The artifact to score.
//
// Outputs:
//   - *model.SceneVerdict: The derived verdict. On persistent oracle failure
//     this carries the degraded assessment, never a fabricated score.
//   - error: A non-oracle error, e.g. a broken prompt template.
func (m *SceneEvaluationWorkflow) Evaluate(ctx goctx.Context, scene *model.Scene, artifact *model.ArtifactRef) (*model.SceneVerdict, error) {
	retries := m.policy.Normalize().OracleRetries

	var oracleErr *quality.ScoringOracleError
	for try := 0; ; try++ {
		chainCtx := cor.NewBaseContext()
		chainCtx.SetContext(ctx)
		chainCtx.Add(commands.GetSceneParamName(), scene)
		chainCtx.Add(commands.GetArtifactParamName(), artifact)

		m.chain.Execute(chainCtx)

		if !chainCtx.HasErrors() {
			return chainCtx.Get(commands.GetVerdictParamName()).(*model.SceneVerdict), nil
		}

		// Separate oracle failures from everything else: only the former are
		// retried and eventually degraded.
		oracle := false
		var firstErr error
		for _, e := range chainCtx.GetErrors() {
			if firstErr == nil {
				firstErr = e
			}
			if errors.As(e, &oracleErr) {
				oracle = true
			}
		}
		if !oracle {
			return nil, firstErr
		}
		if try < retries {
			continue
		}

		// The oracle stayed down through the retry budget. Record the outage
		// as a degraded assessment and let the evaluator derive the verdict
		// from it.
		assessment := quality.DegradedAssessment(oracleErr)
		return quality.Evaluate(scene, assessment, m.policy), nil
	}
}

// initializeChain builds the sequence of commands that make up this workflow.
// Each command is an atomic unit of work. The output of one command serves
// as the input for the next, creating a processing pipeline.
// This method is called by the constructor.
func (m *SceneEvaluationWorkflow) initializeChain() {
	out := cor.NewBaseChain(m.GetName())

	// Step 1: Prompt the scoring model with the artifact and the scene's
	// expected description, producing a raw JSON assessment string.
	out.AddCommand(commands.NewSceneScoreCreator("score-scene-artifact", m.config, m.scoringModel, m.scoringTemplate))

	// Step 2: Parse the JSON string into a `model.Assessment` and sanitize
	// the untrusted output (clamped scores, coerced issue categories,
	// recomputed weighted aggregate).
	out.AddCommand(commands.NewAssessmentJsonToStruct("convert-assessment"))

	// Step 3: Apply the hard-fail overrides and derive the verdict under the
	// configured policy thresholds.
	out.AddCommand(commands.NewVerdictBuilder("build-verdict", m.policy))

	m.chain = out
}

// NewSceneEvaluationPipeline is the constructor for the SceneEvaluationWorkflow.
// It sets up all dependencies, compiles the scoring prompt template, and
// initializes the command chain.
//
// Inputs:
//   - config: The application's overall configuration.
//   - serviceClients: A struct containing initialized clients for GCP services.
//   - agentModelName: The name of the Vertex AI agent model config to use (e.g., "scene-scorer").
//
// Returns:
//   - A pointer to a newly created and fully initialized SceneEvaluationWorkflow.
func NewSceneEvaluationPipeline(
	config *cloud.Config,
	serviceClients *cloud.ServiceClients,
	agentModelName string) *SceneEvaluationWorkflow {

	// Parse the scoring prompt template from the configuration file.
	scoringTemplate, err := template.New("scoring-template").Parse(config.PromptTemplates.ScoringPrompt)
	if err != nil {
		panic(err) // Panic on failure, as the app cannot run without valid templates.
	}

	pipeline := &SceneEvaluationWorkflow{
		BaseCommand:     *cor.NewBaseCommand("scene-evaluation-pipeline"),
		config:          config,
		scoringModel:    serviceClients.AgentModels[agentModelName],
		policy:          config.QualityPolicy.Normalize(),
		scoringTemplate: scoringTemplate,
	}
	pipeline.initializeChain()
	return pipeline
}

// VerdictSink receives the verdict produced by a trigger-driven evaluation.
// The project service implements this to keep its verdict table current.
type VerdictSink interface {
	RecordVerdict(verdict *model.SceneVerdict)
}

// ArtifactTriggerWorkflow is the Pub/Sub-facing variant of the evaluation
// pipeline. It prepends the GCS notification parser to the evaluation chain
// and records the resulting verdict in the sink.
type ArtifactTriggerWorkflow struct {
	cor.BaseCommand
	evaluation *SceneEvaluationWorkflow
	resolver   commands.SceneResolver
	sink       VerdictSink
	chain      cor.Chain
}

// Execute runs the trigger chain and, when a verdict was derived, records it.
//
// Inputs:
//   - context: The chain context carrying the raw Pub/Sub message as input.
func (m *ArtifactTriggerWorkflow) Execute(context cor.Context) {
	m.chain.Execute(context)
	if verdict, ok := context.Get(commands.GetVerdictParamName()).(*model.SceneVerdict); ok && !context.HasErrors() {
		m.sink.RecordVerdict(verdict)
	}
}

// initializeChain builds the trigger-driven chain: notification parsing
// followed by the shared evaluation pipeline.
func (m *ArtifactTriggerWorkflow) initializeChain() {
	out := cor.NewBaseChain(m.GetName())

	// Step 1: Parse the incoming GCS notification, extract the scene ID from
	// the artifact path, and resolve the scene under evaluation.
	out.AddCommand(commands.NewArtifactTriggerToScene("artifact-trigger-to-scene", m.resolver))

	// Step 2: Run the shared evaluation pipeline against the resolved scene
	// and artifact.
	out.AddCommand(m.evaluation)

	m.chain = out
}

// NewArtifactTriggerPipeline is the constructor for the ArtifactTriggerWorkflow.
//
// Inputs:
//   - evaluation: The shared evaluation pipeline to run after trigger parsing.
//   - resolver: The scene lookup used to turn object paths into scenes.
//   - sink: Where derived verdicts are recorded.
//
// Returns:
//   - A pointer to a newly created and fully initialized ArtifactTriggerWorkflow.
func NewArtifactTriggerPipeline(
	evaluation *SceneEvaluationWorkflow,
	resolver commands.SceneResolver,
	sink VerdictSink) *ArtifactTriggerWorkflow {

	pipeline := &ArtifactTriggerWorkflow{
		BaseCommand: *cor.NewBaseCommand("artifact-trigger-pipeline"),
		evaluation:  evaluation,
		resolver:    resolver,
		sink:        sink,
	}
	pipeline.initializeChain()
	return pipeline
}
