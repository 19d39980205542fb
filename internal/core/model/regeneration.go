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

// Package model defines the core data structures for the quality gate.
// This file, `regeneration.go`, contains the retry side of the data model:
// the RegenerationAttempt rows that form a scene's append-only attempt
// history, and the RegenerationStrategy decisions produced by the strategy
// engine. A strategy is produced fresh on every regeneration cycle and is not
// stored beyond the single attempt it authorizes; the attempt rows, by
// contrast, are never mutated or deleted.
package model

import "time"

// AttemptOutcome classifies how one regeneration attempt ended.
type AttemptOutcome string

const (
	// OutcomeSuccess means the attempt's verdict passed (approved or parked
	// for human review) and the regeneration loop stopped.
	OutcomeSuccess AttemptOutcome = "success"
	// OutcomeImproved means the attempt still failed but produced an artifact
	// and beat the best prior score. The artifact remains usable as a seed
	// for reference-based regeneration.
	OutcomeImproved AttemptOutcome = "improved"
	// OutcomeFailed covers both quality failures with no improvement and
	// provider errors where no artifact was produced at all.
	OutcomeFailed AttemptOutcome = "failed"
)

// StrategyApproach is the closed set of regeneration approaches. The
// orchestrator switches exhaustively over this type; there are no free-form
// recommendation strings.
type StrategyApproach string

const (
	ApproachRetry             StrategyApproach = "retry"
	ApproachAlternateProvider StrategyApproach = "alternate-provider"
	ApproachReferenceBased    StrategyApproach = "reference-based"
	ApproachSimplifyPrompt    StrategyApproach = "simplify-prompt"
	ApproachStockFootage      StrategyApproach = "stock-footage"
	ApproachEscalate          StrategyApproach = "escalate"
)

// MotionLevel controls how much motion and visual complexity a strategy asks
// a provider for. Reference-based retries drop the level to stabilize output.
type MotionLevel string

const (
	MotionFull    MotionLevel = "full"
	MotionReduced MotionLevel = "reduced"
	MotionMinimal MotionLevel = "minimal"
)

// RegenerationAttempt is one row of a scene's attempt history. Rows are
// append-only: the ordered sequence per scene is the sole input the strategy
// engine uses to pick the next approach.
type RegenerationAttempt struct {
	SceneID          string           `json:"scene_id"`
	AttemptNumber    int              `json:"attempt_number"` // 0-based position in the scene's history.
	Timestamp        time.Time        `json:"timestamp"`
	Approach         StrategyApproach `json:"approach"`
	ProviderUsed     string           `json:"provider_used"`
	PromptUsed       string           `json:"prompt_used"`
	Artifact         *ArtifactRef     `json:"artifact,omitempty"`          // Nil when the provider failed before producing anything.
	ResultAssessment *Assessment      `json:"result_assessment,omitempty"` // Nil on provider error; failures are recorded, never skipped.
	Outcome          AttemptOutcome   `json:"outcome"`
}

// StrategyParams is the typed parameter block for a chosen approach. Only the
// fields relevant to the approach are populated.
type StrategyParams struct {
	ReferenceArtifact *ArtifactRef `json:"reference_artifact,omitempty"` // Seed artifact for reference-based generation.
	SimplifiedPrompt  string       `json:"simplified_prompt,omitempty"`  // Reduced prompt for simplify-prompt attempts.
	Motion            MotionLevel  `json:"motion,omitempty"`
	AvoidProviders    []string     `json:"avoid_providers,omitempty"` // Providers already falsified by the history.
}

// RegenerationStrategy is one decision from the strategy engine: which
// approach to try next, with what provider and parameters, and how confident
// the engine is that the approach will help.
type RegenerationStrategy struct {
	Approach       StrategyApproach `json:"approach"`
	TargetProvider string           `json:"target_provider,omitempty"`
	Params         StrategyParams   `json:"params"`
	Confidence     float64          `json:"confidence"` // 0..1.
	Warning        string           `json:"warning,omitempty"`
	Reasoning      string           `json:"reasoning,omitempty"` // Informational only, e.g. recurring failure patterns.
}

// EscalationNotice is the payload handed to the human review queue when the
// attempt ladder reaches its terminal tier.
type EscalationNotice struct {
	ProjectID       string                 `json:"project_id"`
	SceneID         string                 `json:"scene_id"`
	FinalAssessment *Assessment            `json:"final_assessment,omitempty"`
	AttemptHistory  []*RegenerationAttempt `json:"attempt_history"`
	Suggestion      StrategyApproach       `json:"suggestion"` // Typically stock-footage.
	EscalatedAt     time.Time              `json:"escalated_at"`
}
