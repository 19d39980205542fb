// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines a
// command that acts as a data transformation step in the workflow.
//
// Logic Flow:
// This command follows the `SceneScoreCreator` in the chain. It takes the
// raw JSON string output from the scoring model and transforms it into a
// strongly-typed, validated `model.Assessment`. Validation happens here
// rather than downstream because the model's output is untrusted: scores may
// fall outside [0,100], dimensions may be missing, and issue categories may
// be invented.
//
//  1. It receives the raw JSON string from the context (output of the previous command).
//  2. It uses Go's standard `json.Unmarshal` function to parse the JSON string
//     into a `model.Assessment` struct.
//  3. It sanitizes the assessment through `quality.ValidateAssessment`, which
//     clamps scores, coerces unknown issue categories, and recomputes the
//     weighted overall score.
//  4. It puts the validated `model.Assessment` back into the context, ready
//     for the next command (`VerdictBuilder`).
package commands

import (
	"encoding/json"

	"github.com/jaycherian/gcp-go-promo-quality/internal/core/cor"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/model"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/quality"
)

// AssessmentJsonToStruct is a command that parses and validates the scoring
// model's JSON output.
type AssessmentJsonToStruct struct {
	cor.BaseCommand // Embeds the BaseCommand for common functionality.
}

// NewAssessmentJsonToStruct is the constructor for the AssessmentJsonToStruct command.
//
// Inputs:
//   - name: A string name for this command instance.
//
// Outputs:
//   - *AssessmentJsonToStruct: A pointer to the newly instantiated command.
func NewAssessmentJsonToStruct(name string) *AssessmentJsonToStruct {
	return &AssessmentJsonToStruct{BaseCommand: *cor.NewBaseCommand(name)}
}

// Execute contains the core logic for parsing and validating the assessment.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution.
func (s *AssessmentJsonToStruct) Execute(context cor.Context) {
	// Retrieve the raw JSON string from the context, which was the output of the previous command.
	in := context.Get(s.GetInputParam()).(string)

	// Create an empty Assessment struct to hold the parsed data.
	doc := &model.Assessment{}

	// Unmarshal (parse) the JSON string into the Go struct.
	err := json.Unmarshal([]byte(in), &doc)
	if err != nil {
		// A malformed response is an oracle failure, typed so the caller can
		// apply its retry-then-degrade policy.
		s.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(s.GetName(), &quality.ScoringOracleError{SceneID: sceneID(context), Err: err})
		return
	}

	// Sanitize the untrusted output and recompute the weighted overall score.
	doc = quality.ValidateAssessment(doc)

	// If parsing is successful, increment the success counter.
	s.GetSuccessCounter().Add(context.GetContext(), 1)

	// Place the validated assessment into its well-known key and the
	// general-purpose output slot for the next command in the chain.
	context.Add(GetAssessmentParamName(), doc)
	context.Add(cor.CtxOut, doc)
}
