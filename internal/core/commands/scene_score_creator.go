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
// command that asks the scoring model to grade an artifact.
//
// Logic Flow:
// This command is the heart of the evaluation pipeline. It takes the scene's
// expected description and the generated artifact and asks a multi-modal
// model to compare them dimension by dimension.
//
//  1. It retrieves the scene and the artifact reference from the context.
//  2. It constructs a detailed prompt for the scoring model using a Go template.
//     The prompt carries the expected description as JSON and instructs the
//     model on the rubric dimensions and the JSON shape of the response.
//  3. The prompt is populated with a complete example of the desired output
//     structure to guide the model's response (few-shot prompting).
//  4. It sends the artifact reference and the generated prompt to the scoring
//     model in a multi-modal request.
//  5. It receives the raw JSON string response from the model.
//  6. It places this JSON string into the context for the next command in the
//     chain (`AssessmentJsonToStruct`) to parse and validate.
package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"

	"go.opentelemetry.io/otel/metric"

	"github.com/jaycherian/gcp-go-promo-quality/internal/cloud"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/cor"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/model"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/quality"
	"google.golang.org/genai"
)

// SceneScoreCreator is a command that uses the scoring model to grade an
// artifact against its scene's expected description.
type SceneScoreCreator struct {
	cor.BaseCommand
	config                   *cloud.Config                 // Application configuration, used for prompt templating.
	scoringModel             *cloud.QuotaAwareScoringModel // The rate-limited scoring model client.
	template                 *template.Template            // The Go template for building the prompt.
	geminiInputTokenCounter  metric.Int64Counter           // OTel counter for input tokens.
	geminiOutputTokenCounter metric.Int64Counter           // OTel counter for output tokens.
	geminiRetryCounter       metric.Int64Counter           // OTel counter for retries.
}

// NewSceneScoreCreator is the constructor for the SceneScoreCreator command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - config: The application's configuration object.
//   - scoringModel: The rate-limited wrapper for the scoring model client.
//   - template: A parsed Go template for the prompt.
//
// Outputs:
//   - *SceneScoreCreator: A pointer to the newly instantiated command, including initialized telemetry counters.
func NewSceneScoreCreator(
	name string,
	config *cloud.Config,
	scoringModel *cloud.QuotaAwareScoringModel,
	template *template.Template) *SceneScoreCreator {

	out := &SceneScoreCreator{
		BaseCommand:  *cor.NewBaseCommand(name),
		config:       config,
		scoringModel: scoringModel,
		template:     template}

	// Initialize OpenTelemetry counters for monitoring Gemini API usage for this specific command.
	out.geminiInputTokenCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.input", out.GetName()))
	out.geminiOutputTokenCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.output", out.GetName()))
	out.geminiRetryCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.retry", out.GetName()))

	return out
}

// IsExecutable requires both a scene and an artifact in the context; a chain
// triggered without them has nothing to score.
func (t *SceneScoreCreator) IsExecutable(context cor.Context) bool {
	return context != nil &&
		context.Get(GetSceneParamName()) != nil &&
		context.Get(GetArtifactParamName()) != nil
}

// GenerateParams creates the map of dynamic data to be injected into the prompt template.
//
// Inputs:
//   - context: The shared `cor.Context`, used to read the scene under evaluation.
//
// Outputs:
//   - map[string]interface{}: A map of keys and values for template substitution.
func (t *SceneScoreCreator) GenerateParams(context cor.Context) map[string]interface{} {
	params := make(map[string]interface{})
	scene := context.Get(GetSceneParamName()).(*model.Scene)

	// The expected description travels as JSON so the model sees exactly the
	// fields the evaluator will check against its answer.
	expectedJSON, _ := json.Marshal(scene.Expected)
	params["EXPECTED_JSON"] = string(expectedJSON)

	// Enumerate the rubric dimensions so the model scores all of them.
	dimStr := ""
	for _, dim := range model.Dimensions {
		dimStr += fmt.Sprintf("%s (weight %.2f); ", dim, quality.DimensionWeights[dim])
	}
	params["DIMENSIONS"] = dimStr

	// Provide a complete, well-formed JSON example in the prompt. This technique (few-shot prompting)
	// significantly improves the reliability and structure of the model's output.
	exampleAssessment, _ := json.Marshal(model.GetExampleAssessment())
	params["EXAMPLE_JSON"] = string(exampleAssessment)
	return params
}

// Execute contains the core logic for prompting the scoring model.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution.
func (t *SceneScoreCreator) Execute(context cor.Context) {
	// Retrieve the artifact reference from the context.
	artifact := context.Get(GetArtifactParamName()).(*model.ArtifactRef)

	// Use a buffer to execute the Go template, substituting the dynamic params.
	var buffer bytes.Buffer
	err := t.template.Execute(&buffer, t.GenerateParams(context))
	if err != nil {
		t.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(t.GetName(), fmt.Errorf("failed to execute prompt template: %w", err))
		return
	}

	// Prepare the parts for the multi-modal request: the prompt text plus the
	// artifact itself, referenced by its GCS URI.
	contents := []*genai.Content{
		{Parts: []*genai.Part{
			{Text: buffer.String()},
			{FileData: &genai.FileData{
				FileURI:  artifact.URI,
				MIMEType: artifact.MIMEType,
			}},
		},
			Role: "user"},
	}

	// Call the helper function to send the request to the model. This helper
	// encapsulates retry logic and telemetry updates.
	out, err := cloud.GenerateMultiModalResponse(context.GetContext(), t.geminiInputTokenCounter, t.geminiOutputTokenCounter, t.geminiRetryCounter, 0, t.scoringModel, contents)
	if err != nil {
		t.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(t.GetName(), &quality.ScoringOracleError{SceneID: sceneID(context), Err: err})
		return
	}

	// On success, update the success counter and place the raw JSON string
	// response into the context for the next command.
	t.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(t.GetOutputParam(), out)
}

// sceneID reads the scene ID out of the context for error reporting, without
// assuming the scene is present.
func sceneID(context cor.Context) string {
	if scene, ok := context.Get(GetSceneParamName()).(*model.Scene); ok {
		return scene.ID
	}
	return ""
}
