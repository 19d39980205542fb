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
// well-known context parameter names shared by the evaluation commands, so
// that each step in a chain can find the objects placed by earlier steps
// without relying on positional piping alone.
package commands

// Well-known context keys for the evaluation chain.
const (
	sceneParam      = "__SCENE__"      // The *model.Scene under evaluation.
	artifactParam   = "__ARTIFACT__"   // The *model.ArtifactRef being scored.
	assessmentParam = "__ASSESSMENT__" // The validated *model.Assessment.
	verdictParam    = "__VERDICT__"    // The derived *model.SceneVerdict.
	attemptParam    = "__ATTEMPT__"    // The *model.RegenerationAttempt to persist.
	escalationParam = "__ESCALATION__" // The *model.EscalationNotice to publish.
)

// GetSceneParamName returns the context key under which the scene being
// evaluated is stored.
func GetSceneParamName() string { return sceneParam }

// GetArtifactParamName returns the context key under which the artifact
// being scored is stored.
func GetArtifactParamName() string { return artifactParam }

// GetAssessmentParamName returns the context key under which the validated
// assessment is stored.
func GetAssessmentParamName() string { return assessmentParam }

// GetVerdictParamName returns the context key under which the derived
// verdict is stored.
func GetVerdictParamName() string { return verdictParam }

// GetAttemptParamName returns the context key under which a regeneration
// attempt awaiting persistence is stored.
func GetAttemptParamName() string { return attemptParam }

// GetEscalationParamName returns the context key under which an escalation
// notice awaiting publication is stored.
func GetEscalationParamName() string { return escalationParam }
