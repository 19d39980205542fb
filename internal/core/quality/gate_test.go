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

// Package quality_test contains unit tests for the project-level quality
// gate: report aggregation, the independent blocking reasons, and the
// force-override semantics.
package quality_test

import (
	"errors"
	"testing"

	"github.com/jaycherian/gcp-go-promo-quality/internal/core/model"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/quality"
	"github.com/stretchr/testify/assert"
)

func approvedVerdict(sceneID string, score float64) *model.SceneVerdict {
	return &model.SceneVerdict{SceneID: sceneID, Status: model.VerdictApproved, OverallScore: score}
}

func reviewVerdict(sceneID string, score float64, userApproved bool) *model.SceneVerdict {
	return &model.SceneVerdict{SceneID: sceneID, Status: model.VerdictNeedsReview, OverallScore: score, UserApproved: userApproved}
}

func rejectedVerdict(sceneID string, score float64) *model.SceneVerdict {
	return &model.SceneVerdict{SceneID: sceneID, Status: model.VerdictRejected, OverallScore: score}
}

func reasonCodes(report *model.ProjectQualityReport) []string {
	codes := make([]string, 0, len(report.BlockingReasons))
	for _, r := range report.BlockingReasons {
		codes = append(codes, r.Code)
	}
	return codes
}

func TestBuildReportAllApproved(t *testing.T) {
	report := quality.BuildReport("proj", []*model.SceneVerdict{
		approvedVerdict("s1", 90),
		approvedVerdict("s2", 86),
	}, quality.DefaultQualityPolicy())

	assert.True(t, report.CanRender)
	assert.Empty(t, report.BlockingReasons)
	assert.Equal(t, 2, report.ApprovedCount)
	assert.InDelta(t, 88.0, report.OverallScore, 0.001)
}

func TestBuildReportPendingBlocks(t *testing.T) {
	report := quality.BuildReport("proj", []*model.SceneVerdict{
		approvedVerdict("s1", 90),
		model.NewPendingVerdict("s2"),
	}, quality.DefaultQualityPolicy())

	assert.False(t, report.CanRender)
	assert.Equal(t, 1, report.PendingCount)
	assert.Contains(t, reasonCodes(report), model.BlockPendingScenes)
	// Pending scenes contribute no score to the project mean.
	assert.InDelta(t, 90.0, report.OverallScore, 0.001)
}

func TestBuildReportRejectedAndLowScore(t *testing.T) {
	report := quality.BuildReport("proj", []*model.SceneVerdict{
		approvedVerdict("s1", 88),
		rejectedVerdict("s2", 30),
	}, quality.DefaultQualityPolicy())

	assert.False(t, report.CanRender)
	codes := reasonCodes(report)
	assert.Contains(t, codes, model.BlockRejectedScenes)
	// Mean of 88 and 30 is 59, below the default project minimum of 70.
	assert.Contains(t, codes, model.BlockLowProjectScore)
}

func TestBuildReportUnapprovedReviewBlocks(t *testing.T) {
	report := quality.BuildReport("proj", []*model.SceneVerdict{
		approvedVerdict("s1", 90),
		reviewVerdict("s2", 75, false),
	}, quality.DefaultQualityPolicy())

	assert.False(t, report.CanRender)
	assert.Equal(t, []string{model.BlockUnapprovedReview}, reasonCodes(report))
}

func TestBuildReportUserApprovedReviewClears(t *testing.T) {
	report := quality.BuildReport("proj", []*model.SceneVerdict{
		approvedVerdict("s1", 90),
		reviewVerdict("s2", 75, true),
	}, quality.DefaultQualityPolicy())

	assert.True(t, report.CanRender)
}

func TestBuildReportCriticalIssuesBlock(t *testing.T) {
	v := approvedVerdict("s1", 90)
	v.Assessment = &model.Assessment{Issues: []*model.Issue{
		{Category: model.IssueBrandCompliance, Severity: model.SeverityCritical, Description: "competitor logo visible"},
	}}
	report := quality.BuildReport("proj", []*model.SceneVerdict{v}, quality.DefaultQualityPolicy())

	assert.False(t, report.CanRender)
	assert.Equal(t, 1, report.CriticalIssueCount)
	assert.Contains(t, reasonCodes(report), model.BlockCriticalIssues)
}

func TestBuildReportReasonsAccumulateSorted(t *testing.T) {
	report := quality.BuildReport("proj", []*model.SceneVerdict{
		rejectedVerdict("s1", 20),
		reviewVerdict("s2", 65, false),
		model.NewPendingVerdict("s3"),
	}, quality.DefaultQualityPolicy())

	codes := reasonCodes(report)
	assert.Equal(t, []string{
		model.BlockLowProjectScore,
		model.BlockPendingScenes,
		model.BlockRejectedScenes,
		model.BlockUnapprovedReview,
	}, codes)
}

func TestBuildReportDeterministic(t *testing.T) {
	verdicts := []*model.SceneVerdict{
		rejectedVerdict("s1", 20),
		model.NewPendingVerdict("s2"),
	}
	first := quality.BuildReport("proj", verdicts, quality.DefaultQualityPolicy())
	second := quality.BuildReport("proj", verdicts, quality.DefaultQualityPolicy())

	assert.Equal(t, reasonCodes(first), reasonCodes(second))
	assert.Equal(t, first.OverallScore, second.OverallScore)
}

func TestAuthorizeRenderClean(t *testing.T) {
	report := quality.BuildReport("proj", []*model.SceneVerdict{approvedVerdict("s1", 90)}, quality.DefaultQualityPolicy())
	assert.NoError(t, quality.AuthorizeRender(report, false))
}

func TestAuthorizeRenderBlockedReturnsReasons(t *testing.T) {
	report := quality.BuildReport("proj", []*model.SceneVerdict{rejectedVerdict("s1", 20)}, quality.DefaultQualityPolicy())
	err := quality.AuthorizeRender(report, false)

	var violation *quality.PolicyViolationError
	assert.True(t, errors.As(err, &violation))
	assert.Equal(t, "proj", violation.ProjectID)
	assert.NotEmpty(t, violation.BlockingReasons)
}

func TestAuthorizeRenderForceOverrideWaivesAll(t *testing.T) {
	report := quality.BuildReport("proj", []*model.SceneVerdict{
		rejectedVerdict("s1", 20),
		reviewVerdict("s2", 60, false),
	}, quality.DefaultQualityPolicy())

	assert.Error(t, quality.AuthorizeRender(report, false))
	assert.NoError(t, quality.AuthorizeRender(report, true))
}

func TestAuthorizeRenderForceOverrideNeverClearsPending(t *testing.T) {
	report := quality.BuildReport("proj", []*model.SceneVerdict{
		rejectedVerdict("s1", 20),
		model.NewPendingVerdict("s2"),
	}, quality.DefaultQualityPolicy())

	err := quality.AuthorizeRender(report, true)
	var violation *quality.PolicyViolationError
	assert.True(t, errors.As(err, &violation))
	assert.Len(t, violation.BlockingReasons, 1)
	assert.Equal(t, model.BlockPendingScenes, violation.BlockingReasons[0].Code)
}
