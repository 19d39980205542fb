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

// Package quality implements the scoring rubric, the scene evaluator, and
// the project-level quality gate. This file defines the error taxonomy of
// the subsystem. Every provider or oracle failure degrades into a recorded
// attempt or a surfaced error; nothing here is allowed to crash the process.
package quality

import (
	"fmt"

	"github.com/jaycherian/gcp-go-promo-quality/internal/core/model"
)

// ScoringOracleError wraps a timeout or malformed response from the vision
// scorer. The evaluator retries once and then records the failure as a minor
// technical issue rather than silently passing the scene.
type ScoringOracleError struct {
	SceneID string
	Err     error
}

func (e *ScoringOracleError) Error() string {
	return fmt.Sprintf("scoring oracle failed for scene %s: %v", e.SceneID, e.Err)
}

func (e *ScoringOracleError) Unwrap() error { return e.Err }

// GenerationProviderError wraps a network, quota, or timeout failure from a
// media provider. The orchestrator treats it exactly like a low-quality
// result: record a failed attempt and climb the ladder.
type GenerationProviderError struct {
	Provider string
	Err      error
}

func (e *GenerationProviderError) Error() string {
	return fmt.Sprintf("provider %s failed to generate: %v", e.Provider, e.Err)
}

func (e *GenerationProviderError) Unwrap() error { return e.Err }

// PolicyViolationError is returned when a render is requested while the gate
// blocks it and no effective override is present. It is rejected at the API
// boundary and never silently bypassed.
type PolicyViolationError struct {
	ProjectID       string
	BlockingReasons []model.BlockingReason
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("project %s cannot render: %d blocking reason(s)", e.ProjectID, len(e.BlockingReasons))
}

// BudgetExhaustedError signals that a scene's attempt ladder reached its
// terminal escalate tier. It is surfaced to the human review queue and to the
// caller, but it is not a fatal condition.
type BudgetExhaustedError struct {
	SceneID  string
	Attempts int
}

func (e *BudgetExhaustedError) Error() string {
	return fmt.Sprintf("scene %s exhausted its regeneration budget after %d attempt(s)", e.SceneID, e.Attempts)
}
