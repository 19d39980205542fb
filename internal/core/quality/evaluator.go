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
// the project-level quality gate. This file contains the evaluator: the pure
// function that turns an untrusted scoring-oracle response into a validated
// Assessment and a SceneVerdict.
//
// Logic Flow:
//  1. **Validation**: The oracle's output is untrusted. Dimension scores are
//     clamped to [0,100], missing dimensions default to zero, unknown issue
//     categories and severities are coerced to minor technical issues.
//  2. **Aggregation**: The overall score is the weighted mean over the rubric
//     dimensions, with content match weighted heaviest.
//  3. **Hard-fail overrides**: Applied after scoring, independent of the raw
//     numbers. A missing required overlay caps the score at 45, a framing
//     conflict at 55, detected AI-garbled text at 60. Each adds a critical
//     issue, so a technically sharp artifact with the wrong content can never
//     sneak past the gate.
//  4. **Status derivation**: rejected below the hard-fail floor or on any
//     critical issue (user approval never clears a rejection), approved at or
//     above the auto-approve threshold or on explicit user approval,
//     needs_review otherwise.
//
// The evaluator is deterministic given the oracle output: the same
// (scene, assessment) pair always yields the same verdict.
package quality

import (
	"fmt"
	"strings"
	"time"

	"github.com/jaycherian/gcp-go-promo-quality/internal/core/model"
)

// Score caps applied by the hard-fail overrides. These are rubric semantics,
// not tunables: they encode the invariant that required content beats polish.
const (
	capMissingOverlay  = 45.0
	capFramingConflict = 55.0
	capAITextDetected  = 60.0
)

// ValidateAssessment sanitizes a raw oracle response in place and recomputes
// the overall score from the weighted rubric. The oracle may time out, skip
// dimensions, or invent issue categories; none of that may corrupt the
// verdict downstream.
//
// Inputs:
//   - a: The assessment parsed from the oracle's JSON output.
//
// Outputs:
//   - *model.Assessment: The same assessment, sanitized, with OverallScore set.
func ValidateAssessment(a *model.Assessment) *model.Assessment {
	if a.DimensionScores == nil {
		a.DimensionScores = make(map[model.DimensionName]float64)
	}
	// Clamp known dimensions and drop anything the rubric does not define.
	clean := make(map[model.DimensionName]float64, len(model.Dimensions))
	for _, dim := range model.Dimensions {
		clean[dim] = clamp(a.DimensionScores[dim], 0, 100)
	}
	a.DimensionScores = clean

	// Coerce malformed issues rather than dropping them: a misnamed category
	// still represents a problem the oracle saw.
	for _, issue := range a.Issues {
		if !knownCategory(issue.Category) {
			issue.Category = model.IssueTechnicalQuality
			issue.Severity = model.SeverityMinor
		}
		switch issue.Severity {
		case model.SeverityCritical, model.SeverityMajor, model.SeverityMinor:
		default:
			issue.Severity = model.SeverityMinor
		}
	}

	// AI-garbled text is always critical, whatever the oracle said.
	for _, issue := range a.Issues {
		if issue.Category == model.IssueAITextDetected {
			issue.Severity = model.SeverityCritical
		}
	}

	a.OverallScore = weightedScore(a.DimensionScores)
	return a
}

// weightedScore computes the rubric aggregate from the per-dimension scores.
func weightedScore(scores map[model.DimensionName]float64) float64 {
	var total, weightSum float64
	for dim, weight := range DimensionWeights {
		total += scores[dim] * weight
		weightSum += weight
	}
	if weightSum == 0 {
		return 0
	}
	return total / weightSum
}

// Evaluate derives the SceneVerdict for one artifact. The assessment must
// already be validated; Evaluate applies the hard-fail overrides and the
// status derivation on top of it.
//
// Inputs:
//   - scene: The scene the artifact was generated for, including its user
//     approval flags and expected description.
//   - assessment: The validated assessment of the artifact.
//   - policy: The thresholds to apply.
//
// Outputs:
//   - *model.SceneVerdict: The derived verdict, carrying the (possibly
//     capped) assessment.
func Evaluate(scene *model.Scene, assessment *model.Assessment, policy QualityPolicy) *model.SceneVerdict {
	policy = policy.Normalize()
	applyHardFailOverrides(scene, assessment)

	verdict := &model.SceneVerdict{
		SceneID:      scene.ID,
		OverallScore: assessment.OverallScore,
		UserApproved: scene.UserApproved,
		Assessment:   assessment,
		EvaluatedAt:  time.Now(),
	}

	switch {
	// Rejection wins over everything, including a stale user approval. It can
	// only be cleared by regenerating the artifact.
	case assessment.OverallScore < policy.HardFailFloor || assessment.HasCritical() || scene.UserRejected:
		verdict.Status = model.VerdictRejected
	case assessment.OverallScore >= policy.AutoApproveThreshold:
		verdict.Status = model.VerdictApproved
		verdict.AutoApproved = true
	case scene.UserApproved:
		verdict.Status = model.VerdictApproved
	default:
		verdict.Status = model.VerdictNeedsReview
	}
	return verdict
}

// applyHardFailOverrides enforces the content-over-polish rules. Each rule
// caps the overall score and appends a critical issue so the status
// derivation rejects the scene.
func applyHardFailOverrides(scene *model.Scene, a *model.Assessment) {
	// Required overlay text missing from the matched-elements list.
	if scene.Expected.OverlayText != "" && !hasOverlayElement(a.MatchedElements) {
		a.OverallScore = min(a.OverallScore, capMissingOverlay)
		a.Issues = append(a.Issues, &model.Issue{
			Category:    model.IssueContentMismatch,
			Severity:    model.SeverityCritical,
			Description: fmt.Sprintf("required overlay text %q not found in artifact", scene.Expected.OverlayText),
		})
	}

	// Scene declares a framing class and the oracle saw a different one.
	if scene.Expected.Framing != "" && a.ReportedFraming != "" && a.ReportedFraming != scene.Expected.Framing {
		a.OverallScore = min(a.OverallScore, capFramingConflict)
		a.Issues = append(a.Issues, &model.Issue{
			Category:    model.IssueFraming,
			Severity:    model.SeverityCritical,
			Description: fmt.Sprintf("expected %s framing but artifact shows %s", scene.Expected.Framing, a.ReportedFraming),
		})
	}

	// Garbled or hallucinated text caps the score even when the oracle rated
	// the dimensions generously.
	if a.HasIssueCategory(model.IssueAITextDetected) {
		a.OverallScore = min(a.OverallScore, capAITextDetected)
	}
}

// hasOverlayElement reports whether the matched-elements list contains a
// text or overlay entry. Matching is tolerant of phrasing since the list
// comes from a language model.
func hasOverlayElement(matched []string) bool {
	for _, element := range matched {
		lower := strings.ToLower(element)
		if strings.Contains(lower, "overlay") || strings.Contains(lower, "text") {
			return true
		}
	}
	return false
}

// knownCategory reports whether a category is part of the rubric taxonomy.
func knownCategory(c model.IssueCategory) bool {
	switch c {
	case model.IssueContentMismatch, model.IssueFraming, model.IssueTechnicalQuality,
		model.IssueBrandCompliance, model.IssueCoherence, model.IssueAITextDetected,
		model.IssueProviderError, model.IssueScoringOracle:
		return true
	}
	return false
}

// DegradedAssessment builds the assessment recorded when the scoring oracle
// failed even after a retry. The failure surfaces as a minor technical issue
// with zeroed dimension scores; it is never silently passed.
func DegradedAssessment(err error) *model.Assessment {
	a := &model.Assessment{
		DimensionScores: make(map[model.DimensionName]float64),
		Issues: []*model.Issue{{
			Category:    model.IssueScoringOracle,
			Severity:    model.SeverityMinor,
			Description: fmt.Sprintf("scoring oracle unavailable: %v", err),
		}},
	}
	return ValidateAssessment(a)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
