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
// the project-level quality gate. This file contains the gate itself: the
// pure function that folds every scene verdict of a project into a single
// ProjectQualityReport and a render-permission decision.
//
// Blocking reasons accumulate independently, so a project can be blocked for
// rejected scenes AND a low average AND unapproved reviews at the same time.
// A force-render override may bypass every reason except pending
// (never-evaluated) scenes; an unevaluated scene is an unconditional block.
package quality

import (
	"fmt"
	"sort"
	"time"

	"github.com/jaycherian/gcp-go-promo-quality/internal/core/model"
)

// BuildReport aggregates the current verdicts of a project into a quality
// report. It is a pure function: the same verdict list and policy always
// produce the same report (the GeneratedAt stamp aside), with no side effects
// and no network calls.
//
// Inputs:
//   - projectID: The project the verdicts belong to.
//   - verdicts: One current verdict per scene, including pending entries for
//     scenes that were never evaluated.
//   - policy: The thresholds to apply.
//
// Outputs:
//   - *model.ProjectQualityReport: The computed report. CanRender is true iff
//     the blocking-reason list is empty.
func BuildReport(projectID string, verdicts []*model.SceneVerdict, policy QualityPolicy) *model.ProjectQualityReport {
	policy = policy.Normalize()

	report := &model.ProjectQualityReport{
		ProjectID:       projectID,
		BlockingReasons: make([]model.BlockingReason, 0),
		SceneVerdicts:   verdicts,
		GeneratedAt:     time.Now(),
	}

	var scoreSum float64
	var scored int
	for _, v := range verdicts {
		switch v.Status {
		case model.VerdictApproved:
			report.ApprovedCount++
		case model.VerdictNeedsReview:
			report.NeedsReviewCount++
		case model.VerdictRejected:
			report.RejectedCount++
		case model.VerdictPending:
			report.PendingCount++
		}
		if v.Status != model.VerdictPending {
			scoreSum += v.OverallScore
			scored++
		}
		if v.Assessment != nil {
			report.CriticalIssueCount += v.Assessment.CriticalCount()
		}
	}
	if scored > 0 {
		report.OverallScore = scoreSum / float64(scored)
	}

	// Each reason is checked independently; none short-circuits the others.
	if report.PendingCount > 0 {
		report.BlockingReasons = append(report.BlockingReasons, model.BlockingReason{
			Code:    model.BlockPendingScenes,
			Message: fmt.Sprintf("%d scene(s) have never been evaluated", report.PendingCount),
		})
	}
	if report.CriticalIssueCount > 0 {
		report.BlockingReasons = append(report.BlockingReasons, model.BlockingReason{
			Code:    model.BlockCriticalIssues,
			Message: fmt.Sprintf("%d critical issue(s) present", report.CriticalIssueCount),
		})
	}
	if report.RejectedCount > 0 {
		report.BlockingReasons = append(report.BlockingReasons, model.BlockingReason{
			Code:    model.BlockRejectedScenes,
			Message: fmt.Sprintf("%d scene(s) rejected", report.RejectedCount),
		})
	}
	if unapproved := countUnapprovedReview(verdicts); unapproved > 0 {
		report.BlockingReasons = append(report.BlockingReasons, model.BlockingReason{
			Code:    model.BlockUnapprovedReview,
			Message: fmt.Sprintf("%d scene(s) need review and lack user approval", unapproved),
		})
	}
	if scored > 0 && report.OverallScore < policy.MinimumProjectScore {
		report.BlockingReasons = append(report.BlockingReasons, model.BlockingReason{
			Code:    model.BlockLowProjectScore,
			Message: fmt.Sprintf("project score %.1f below minimum %.1f", report.OverallScore, policy.MinimumProjectScore),
		})
	}

	// Stable ordering keeps repeated report builds byte-identical.
	sort.Slice(report.BlockingReasons, func(i, j int) bool {
		return report.BlockingReasons[i].Code < report.BlockingReasons[j].Code
	})

	report.CanRender = len(report.BlockingReasons) == 0
	return report
}

// AuthorizeRender decides whether a render request may proceed. A force
// override bypasses every blocking reason except pending scenes; a scene
// that was never evaluated is an unconditional block no flag can clear.
//
// Inputs:
//   - report: The current quality report for the project.
//   - forceOverride: The project-level force-render flag from the request.
//
// Outputs:
//   - error: Nil when rendering may proceed, otherwise a *PolicyViolationError
//     carrying the effective blocking reasons.
func AuthorizeRender(report *model.ProjectQualityReport, forceOverride bool) error {
	if report.CanRender {
		return nil
	}
	effective := report.BlockingReasons
	if forceOverride {
		effective = nil
		for _, reason := range report.BlockingReasons {
			if reason.Code == model.BlockPendingScenes {
				effective = append(effective, reason)
			}
		}
	}
	if len(effective) == 0 {
		return nil
	}
	return &PolicyViolationError{ProjectID: report.ProjectID, BlockingReasons: effective}
}

// countUnapprovedReview counts needs_review verdicts still waiting for an
// explicit user approval.
func countUnapprovedReview(verdicts []*model.SceneVerdict) (n int) {
	for _, v := range verdicts {
		if v.Status == model.VerdictNeedsReview && !v.UserApproved {
			n++
		}
	}
	return n
}
