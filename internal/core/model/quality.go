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
// This file, `quality.go`, contains the scene and evaluation side of the data
// model: the Scene owned by a project, the Assessment produced by scoring one
// generated artifact against that scene, the SceneVerdict derived from an
// Assessment plus policy, and the ProjectQualityReport aggregated over all
// scenes of a project.
//
// Assessments are immutable once produced. The ProjectQualityReport is a pure
// projection over the current verdicts; it is recomputed on demand and never
// persisted as a source of truth.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SceneType classifies the narrative role of a scene within a promo video.
type SceneType string

const (
	SceneTypeHook     SceneType = "hook"
	SceneTypeProblem  SceneType = "problem"
	SceneTypeSolution SceneType = "solution"
	SceneTypeBenefit  SceneType = "benefit"
	SceneTypeProof    SceneType = "proof"
	SceneTypeCTA      SceneType = "cta"
	SceneTypeStandard SceneType = "standard"
)

// MediaType identifies the kind of artifact a scene expects.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// FramingClass is the camera framing a scene declares for its artifact.
// An empty value means the scene has no framing requirement.
type FramingClass string

const (
	FramingWide     FramingClass = "wide"
	FramingCloseUp  FramingClass = "close-up"
	FramingFullBody FramingClass = "full-body"
)

// DimensionName identifies one axis of the scoring rubric.
type DimensionName string

const (
	DimensionContentMatch     DimensionName = "content_match"
	DimensionFraming          DimensionName = "framing"
	DimensionTechnicalQuality DimensionName = "technical_quality"
	DimensionBrandCompliance  DimensionName = "brand_compliance"
	DimensionCoherence        DimensionName = "coherence"
)

// Dimensions lists every rubric dimension in a stable order. Validators use
// it to fill in dimensions the scoring oracle omitted.
var Dimensions = []DimensionName{
	DimensionContentMatch,
	DimensionFraming,
	DimensionTechnicalQuality,
	DimensionBrandCompliance,
	DimensionCoherence,
}

// Severity ranks how badly an issue impacts a scene.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
)

// IssueCategory groups issues reported by the scoring oracle or by the
// evaluator's hard-fail rules.
type IssueCategory string

const (
	IssueContentMismatch  IssueCategory = "content_mismatch"
	IssueFraming          IssueCategory = "framing"
	IssueTechnicalQuality IssueCategory = "technical_quality"
	IssueBrandCompliance  IssueCategory = "brand_compliance"
	IssueCoherence        IssueCategory = "coherence"
	IssueAITextDetected   IssueCategory = "ai-text-detected"
	IssueProviderError    IssueCategory = "provider_error"
	IssueScoringOracle    IssueCategory = "scoring_oracle"
)

// VerdictStatus is the pass/fail classification of a scene's current artifact.
type VerdictStatus string

const (
	// VerdictPending marks a scene that has never been evaluated. Pending
	// scenes are an unconditional render block that no override can clear.
	VerdictPending     VerdictStatus = "pending"
	VerdictApproved    VerdictStatus = "approved"
	VerdictNeedsReview VerdictStatus = "needs_review"
	VerdictRejected    VerdictStatus = "rejected"
)

// ExpectedDescription captures what a scene's artifact is supposed to show.
// It is produced at script-parse time and consumed by the scoring prompt and
// the evaluator's hard-fail rules.
type ExpectedDescription struct {
	Narration        string       `json:"narration" toml:"narration"`                 // The voice-over or on-screen narration for the scene.
	RequiredElements []string     `json:"required_elements" toml:"required_elements"` // Visual elements that must appear in the artifact.
	OverlayText      string       `json:"overlay_text,omitempty" toml:"overlay_text"` // Required on-screen text; empty means none is required.
	Framing          FramingClass `json:"framing,omitempty" toml:"framing"`           // Declared framing class; empty means no requirement.
	ContentTags      []string     `json:"content_tags,omitempty" toml:"content_tags"` // Tags used for capability routing across providers.
}

// ArtifactRef is an opaque handle to one generated media unit, typically a
// GCS object written by a provider.
type ArtifactRef struct {
	URI      string `json:"uri"`       // Location of the artifact (e.g. a GCS URI).
	MIMEType string `json:"mime_type"` // Detected or declared MIME type.
	Provider string `json:"provider"`  // Name of the provider that generated it.
}

// Scene is one shot in the project timeline. It persists for the project's
// lifetime; only the regeneration orchestrator replaces its current artifact,
// and only when a replacement actually passes evaluation.
type Scene struct {
	ID              string              `json:"id"`
	ProjectID       string              `json:"project_id"`
	Index           int                 `json:"index"` // Position in the timeline, 0-based.
	SceneType       SceneType           `json:"scene_type"`
	Expected        ExpectedDescription `json:"expected_description"`
	DurationSeconds float64             `json:"duration_seconds"`
	MediaType       MediaType           `json:"media_type"`
	CurrentArtifact *ArtifactRef        `json:"current_artifact,omitempty"` // The artifact currently attached to the scene, nil before first generation.
	CurrentProvider string              `json:"current_provider,omitempty"`
	UserApproved    bool                `json:"user_approved"` // Explicit human approval for a needs_review verdict.
	UserRejected    bool                `json:"user_rejected"` // Explicit human rejection; treated the same as a rejected verdict.
}

// NewScene is the constructor for a Scene. The ID is a UUIDv5 hash of the
// project ID and timeline index so that re-parsing the same script yields
// stable scene identities.
func NewScene(projectID string, index int, sceneType SceneType, mediaType MediaType, expected ExpectedDescription) *Scene {
	return &Scene{
		ID:        uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s/%d", projectID, index))).String(),
		ProjectID: projectID,
		Index:     index,
		SceneType: sceneType,
		MediaType: mediaType,
		Expected:  expected,
	}
}

// Issue is one problem the scorer (or a hard-fail rule) found in an artifact.
type Issue struct {
	Category    IssueCategory `json:"category"`
	Severity    Severity      `json:"severity"`
	Description string        `json:"description"`
}

// Assessment is the structured output of scoring one artifact against one
// scene. It is immutable once produced; superseded assessments remain in the
// attempt history for the strategy engine to learn from.
type Assessment struct {
	DimensionScores map[DimensionName]float64 `json:"dimension_scores"`           // Per-dimension scores in [0,100].
	Issues          []*Issue                  `json:"issues"`                     // Problems found, ordered as reported.
	MatchedElements []string                  `json:"matched_elements,omitempty"` // Required elements the scorer confirmed on screen.
	ReportedFraming FramingClass              `json:"reported_framing,omitempty"` // Framing class the scorer actually observed.
	OverallScore    float64                   `json:"overall_score"`              // Weighted aggregate; content_match carries the largest weight.
	ImprovedPrompt  string                    `json:"improved_prompt,omitempty"`  // Optional prompt rewrite suggested by the scorer.
}

// HasCritical reports whether any issue in the assessment is critical.
func (a *Assessment) HasCritical() bool {
	for _, issue := range a.Issues {
		if issue.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// CriticalCount returns the number of critical issues in the assessment.
func (a *Assessment) CriticalCount() (n int) {
	for _, issue := range a.Issues {
		if issue.Severity == SeverityCritical {
			n++
		}
	}
	return n
}

// HasIssueCategory reports whether the assessment contains an issue with the
// given category, at any severity.
func (a *Assessment) HasIssueCategory(category IssueCategory) bool {
	for _, issue := range a.Issues {
		if issue.Category == category {
			return true
		}
	}
	return false
}

// SceneVerdict is the policy-derived classification of a scene's current
// artifact. Only the latest verdict per scene is "current"; older verdicts
// survive inside the attempt history.
type SceneVerdict struct {
	SceneID      string        `json:"scene_id"`
	Status       VerdictStatus `json:"status"`
	OverallScore float64       `json:"overall_score"`
	UserApproved bool          `json:"user_approved"`
	AutoApproved bool          `json:"auto_approved"` // True when the score cleared the auto-approve threshold on its own.
	Assessment   *Assessment   `json:"assessment,omitempty"`
	EvaluatedAt  time.Time     `json:"evaluated_at"`
}

// Passing reports whether the verdict allows the regeneration loop to stop:
// either the scene is approved, or it is parked for human review.
func (v *SceneVerdict) Passing() bool {
	return v.Status == VerdictApproved || v.Status == VerdictNeedsReview
}

// NewPendingVerdict returns the verdict assigned to a scene that has never
// been evaluated.
func NewPendingVerdict(sceneID string) *SceneVerdict {
	return &SceneVerdict{SceneID: sceneID, Status: VerdictPending}
}

// BlockingReason is one independent reason a project may not render. The code
// is a stable machine-readable identifier; the message is for humans.
type BlockingReason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Render-blocking reason codes. Reasons accumulate independently; they are
// not mutually exclusive.
const (
	BlockCriticalIssues   = "critical_issues"
	BlockRejectedScenes   = "rejected_scenes"
	BlockUnapprovedReview = "unapproved_review"
	BlockLowProjectScore  = "low_project_score"
	BlockPendingScenes    = "pending_scenes"
)

// ProjectQualityReport aggregates the current verdicts of every scene in a
// project into a single render-permission decision.
type ProjectQualityReport struct {
	ProjectID          string           `json:"project_id"`
	OverallScore       float64          `json:"overall_score"` // Mean of evaluated scene overall scores.
	ApprovedCount      int              `json:"approved_count"`
	NeedsReviewCount   int              `json:"needs_review_count"`
	RejectedCount      int              `json:"rejected_count"`
	PendingCount       int              `json:"pending_count"`
	CriticalIssueCount int              `json:"critical_issue_count"`
	BlockingReasons    []BlockingReason `json:"blocking_reasons"`
	CanRender          bool             `json:"can_render"`
	SceneVerdicts      []*SceneVerdict  `json:"scene_verdicts,omitempty"`
	GeneratedAt        time.Time        `json:"generated_at"`
}
