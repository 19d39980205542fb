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

// Package quality_test contains unit tests for the scene evaluator: oracle
// output validation, weighted scoring, the hard-fail overrides, and the
// status derivation.
package quality_test

import (
	"errors"
	"testing"

	"github.com/jaycherian/gcp-go-promo-quality/internal/core/model"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/quality"
	"github.com/stretchr/testify/assert"
)

// uniformScores returns an assessment scoring every rubric dimension the same.
func uniformScores(score float64) map[model.DimensionName]float64 {
	out := make(map[model.DimensionName]float64, len(model.Dimensions))
	for _, dim := range model.Dimensions {
		out[dim] = score
	}
	return out
}

func plainScene() *model.Scene {
	return model.NewScene("project-1", 0, model.SceneTypeHook, model.MediaTypeVideo, model.ExpectedDescription{
		Narration:        "a barista pours latte art in a sunlit cafe",
		RequiredElements: []string{"barista", "coffee cup"},
	})
}

func TestValidateAssessmentClampsAndFills(t *testing.T) {
	a := &model.Assessment{
		DimensionScores: map[model.DimensionName]float64{
			model.DimensionContentMatch:     150, // above range
			model.DimensionTechnicalQuality: -20, // below range
			// framing, brand_compliance, coherence omitted entirely
		},
	}
	quality.ValidateAssessment(a)

	assert.Equal(t, 100.0, a.DimensionScores[model.DimensionContentMatch])
	assert.Equal(t, 0.0, a.DimensionScores[model.DimensionTechnicalQuality])
	assert.Equal(t, 0.0, a.DimensionScores[model.DimensionFraming])
	assert.Len(t, a.DimensionScores, len(model.Dimensions))
	// Weighted aggregate: only content_match contributes, at weight 0.40.
	assert.InDelta(t, 40.0, a.OverallScore, 0.001)
}

func TestValidateAssessmentCoercesUnknownIssues(t *testing.T) {
	a := &model.Assessment{
		DimensionScores: uniformScores(90),
		Issues: []*model.Issue{
			{Category: "made-up-category", Severity: "catastrophic", Description: "?"},
			{Category: model.IssueFraming, Severity: "huge", Description: "odd framing"},
		},
	}
	quality.ValidateAssessment(a)

	assert.Equal(t, model.IssueTechnicalQuality, a.Issues[0].Category)
	assert.Equal(t, model.SeverityMinor, a.Issues[0].Severity)
	assert.Equal(t, model.IssueFraming, a.Issues[1].Category)
	assert.Equal(t, model.SeverityMinor, a.Issues[1].Severity)
}

func TestValidateAssessmentForcesAITextCritical(t *testing.T) {
	a := &model.Assessment{
		DimensionScores: uniformScores(95),
		Issues: []*model.Issue{
			{Category: model.IssueAITextDetected, Severity: model.SeverityMinor, Description: "garbled sign"},
		},
	}
	quality.ValidateAssessment(a)
	assert.Equal(t, model.SeverityCritical, a.Issues[0].Severity)
}

func TestEvaluateAutoApprove(t *testing.T) {
	scene := plainScene()
	a := quality.ValidateAssessment(&model.Assessment{DimensionScores: uniformScores(92)})
	verdict := quality.Evaluate(scene, a, quality.DefaultQualityPolicy())

	assert.Equal(t, model.VerdictApproved, verdict.Status)
	assert.True(t, verdict.AutoApproved)
	assert.InDelta(t, 92.0, verdict.OverallScore, 0.001)
}

func TestEvaluateNeedsReviewMidScore(t *testing.T) {
	scene := plainScene()
	a := quality.ValidateAssessment(&model.Assessment{DimensionScores: uniformScores(70)})
	verdict := quality.Evaluate(scene, a, quality.DefaultQualityPolicy())

	assert.Equal(t, model.VerdictNeedsReview, verdict.Status)
	assert.False(t, verdict.AutoApproved)
}

func TestEvaluateUserApprovalPromotesReview(t *testing.T) {
	scene := plainScene()
	scene.UserApproved = true
	a := quality.ValidateAssessment(&model.Assessment{DimensionScores: uniformScores(70)})
	verdict := quality.Evaluate(scene, a, quality.DefaultQualityPolicy())

	assert.Equal(t, model.VerdictApproved, verdict.Status)
	assert.False(t, verdict.AutoApproved)
	assert.True(t, verdict.UserApproved)
}

func TestEvaluateUserApprovalNeverClearsRejection(t *testing.T) {
	scene := plainScene()
	scene.UserApproved = true
	a := quality.ValidateAssessment(&model.Assessment{DimensionScores: uniformScores(30)})
	verdict := quality.Evaluate(scene, a, quality.DefaultQualityPolicy())

	assert.Equal(t, model.VerdictRejected, verdict.Status)
}

func TestEvaluateUserRejectionForcesRejected(t *testing.T) {
	scene := plainScene()
	scene.UserRejected = true
	a := quality.ValidateAssessment(&model.Assessment{DimensionScores: uniformScores(95)})
	verdict := quality.Evaluate(scene, a, quality.DefaultQualityPolicy())

	assert.Equal(t, model.VerdictRejected, verdict.Status)
}

func TestEvaluateMissingOverlayCapsScore(t *testing.T) {
	scene := plainScene()
	scene.Expected.OverlayText = "50% OFF TODAY"
	a := quality.ValidateAssessment(&model.Assessment{
		DimensionScores: uniformScores(95),
		MatchedElements: []string{"barista", "coffee cup"}, // no overlay entry
	})
	verdict := quality.Evaluate(scene, a, quality.DefaultQualityPolicy())

	assert.Equal(t, model.VerdictRejected, verdict.Status)
	assert.LessOrEqual(t, verdict.OverallScore, 45.0)
	assert.True(t, a.HasIssueCategory(model.IssueContentMismatch))
	assert.True(t, a.HasCritical())
}

func TestEvaluateOverlayPresentNoCap(t *testing.T) {
	scene := plainScene()
	scene.Expected.OverlayText = "50% OFF TODAY"
	a := quality.ValidateAssessment(&model.Assessment{
		DimensionScores: uniformScores(95),
		MatchedElements: []string{"barista", "overlay text '50% OFF TODAY'"},
	})
	verdict := quality.Evaluate(scene, a, quality.DefaultQualityPolicy())

	assert.Equal(t, model.VerdictApproved, verdict.Status)
	assert.InDelta(t, 95.0, verdict.OverallScore, 0.001)
}

func TestEvaluateFramingConflictCapsScore(t *testing.T) {
	scene := plainScene()
	scene.Expected.Framing = model.FramingCloseUp
	a := quality.ValidateAssessment(&model.Assessment{
		DimensionScores: uniformScores(95),
		ReportedFraming: model.FramingWide,
	})
	verdict := quality.Evaluate(scene, a, quality.DefaultQualityPolicy())

	assert.Equal(t, model.VerdictRejected, verdict.Status)
	assert.LessOrEqual(t, verdict.OverallScore, 55.0)
	assert.True(t, a.HasIssueCategory(model.IssueFraming))
}

func TestEvaluateFramingUnreportedNoConflict(t *testing.T) {
	scene := plainScene()
	scene.Expected.Framing = model.FramingCloseUp
	a := quality.ValidateAssessment(&model.Assessment{
		DimensionScores: uniformScores(95),
		// ReportedFraming left empty: the oracle did not classify the shot.
	})
	verdict := quality.Evaluate(scene, a, quality.DefaultQualityPolicy())

	assert.Equal(t, model.VerdictApproved, verdict.Status)
}

func TestEvaluateAITextCapsScore(t *testing.T) {
	scene := plainScene()
	a := quality.ValidateAssessment(&model.Assessment{
		DimensionScores: uniformScores(95),
		Issues: []*model.Issue{
			{Category: model.IssueAITextDetected, Severity: model.SeverityMajor, Description: "unreadable storefront sign"},
		},
	})
	verdict := quality.Evaluate(scene, a, quality.DefaultQualityPolicy())

	assert.Equal(t, model.VerdictRejected, verdict.Status)
	assert.LessOrEqual(t, verdict.OverallScore, 60.0)
}

func TestEvaluateDeterministic(t *testing.T) {
	scene := plainScene()
	scene.Expected.Framing = model.FramingCloseUp

	build := func() *model.Assessment {
		return quality.ValidateAssessment(&model.Assessment{
			DimensionScores: uniformScores(88),
			ReportedFraming: model.FramingWide,
		})
	}
	first := quality.Evaluate(scene, build(), quality.DefaultQualityPolicy())
	second := quality.Evaluate(scene, build(), quality.DefaultQualityPolicy())

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.OverallScore, second.OverallScore)
}

func TestDegradedAssessmentNeverPasses(t *testing.T) {
	a := quality.DegradedAssessment(errors.New("deadline exceeded"))
	verdict := quality.Evaluate(plainScene(), a, quality.DefaultQualityPolicy())

	assert.Equal(t, model.VerdictRejected, verdict.Status)
	assert.Equal(t, 0.0, verdict.OverallScore)
	assert.True(t, a.HasIssueCategory(model.IssueScoringOracle))
}

func TestNormalizeFillsZeroPolicy(t *testing.T) {
	p := quality.QualityPolicy{}.Normalize()
	def := quality.DefaultQualityPolicy()

	assert.Equal(t, def.AutoApproveThreshold, p.AutoApproveThreshold)
	assert.Equal(t, def.HardFailFloor, p.HardFailFloor)
	assert.Equal(t, def.MinimumProjectScore, p.MinimumProjectScore)
	assert.Equal(t, def.MaxAttempts, p.MaxAttempts)
}
