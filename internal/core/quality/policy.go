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
// the project-level quality gate. This file defines the QualityPolicy: every
// tunable threshold the gate and evaluator consult. The policy is loaded from
// TOML configuration and passed into each call by value, so per-project and
// per-test overrides never touch shared state.
package quality

import "github.com/jaycherian/gcp-go-promo-quality/internal/core/model"

// QualityPolicy holds the overridable thresholds applied by the scene
// evaluator and the quality gate.
type QualityPolicy struct {
	AutoApproveThreshold float64 `toml:"auto_approve_threshold"` // Scores at or above this are approved without a human (default 85).
	HardFailFloor        float64 `toml:"hard_fail_floor"`        // Scores below this are rejected regardless of user approval (default 50).
	MinimumProjectScore  float64 `toml:"minimum_project_score"`  // Projects averaging below this cannot render (default 70).
	MaxAttempts          int     `toml:"max_attempts"`           // Prior attempts after which the ladder escalates (default 3).
	ProjectAttemptBudget int     `toml:"project_attempt_budget"` // Total attempts across all scenes; 0 disables the cap.
	OracleRetries        int     `toml:"oracle_retries"`         // Retries of a failed scoring call before degrading (default 1).
}

// DefaultQualityPolicy returns the policy used when no overrides are
// configured. The values mirror the documented defaults of the gate.
func DefaultQualityPolicy() QualityPolicy {
	return QualityPolicy{
		AutoApproveThreshold: 85,
		HardFailFloor:        50,
		MinimumProjectScore:  70,
		MaxAttempts:          3,
		ProjectAttemptBudget: 0,
		OracleRetries:        1,
	}
}

// Normalize fills in zero-valued fields with defaults so a partially
// populated TOML table still yields a usable policy.
func (p QualityPolicy) Normalize() QualityPolicy {
	def := DefaultQualityPolicy()
	if p.AutoApproveThreshold <= 0 {
		p.AutoApproveThreshold = def.AutoApproveThreshold
	}
	if p.HardFailFloor <= 0 {
		p.HardFailFloor = def.HardFailFloor
	}
	if p.MinimumProjectScore <= 0 {
		p.MinimumProjectScore = def.MinimumProjectScore
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.OracleRetries < 0 {
		p.OracleRetries = def.OracleRetries
	}
	return p
}

// DimensionWeights defines the weighted aggregate used for the overall score.
// Content match deliberately carries the largest weight: a beautiful artifact
// that shows the wrong thing must not outscore a plain one that shows the
// right thing.
var DimensionWeights = map[model.DimensionName]float64{
	model.DimensionContentMatch:     0.40,
	model.DimensionFraming:          0.15,
	model.DimensionTechnicalQuality: 0.15,
	model.DimensionBrandCompliance:  0.15,
	model.DimensionCoherence:        0.15,
}
