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

// Package strategy implements the regeneration strategy engine: the state
// machine that decides, after each failed verdict, how the next attempt
// should differ from the ones that already failed.
//
// Logic Flow:
// The engine is purely a function of the scene's attempt history. It keeps
// no counters of its own, so re-running a decision with the same history is
// idempotent and trivially testable. The tier is decided by the number of
// prior attempts alone:
//
//	0 prior  -> retry with the best-fit provider (capability routing), or
//	            simplify-prompt when the content is classified impossible.
//	1 prior  -> reference-based when the last attempt left a usable artifact,
//	            else alternate-provider from the fixed fallback ordering.
//	2 prior  -> reference-based with minimal motion when any artifact exists,
//	            else an aggressively simplified prompt.
//	>=3      -> escalate: suggest stock footage and hand the scene to humans.
//
// Failure-pattern detection (the same issue category recurring across
// attempts) never changes the tier; it only tunes parameters inside the tier,
// such as which providers to avoid.
package strategy

import (
	"fmt"
	"strings"

	"github.com/jaycherian/gcp-go-promo-quality/internal/core/model"
)

// ProviderProfile describes one media provider for routing purposes. The
// ordering of profiles in Routing.FallbackOrder is the fixed fallback
// ordering the alternate-provider tier walks through.
type ProviderProfile struct {
	Name              string            // Provider identifier used by the generator registry.
	MediaTypes        []model.MediaType // Media types the provider can produce.
	Capabilities      []string          // Content tags the provider handles well.
	SupportsReference bool              // Whether the provider accepts a seed artifact.
}

// Routing carries the provider directory and the impossible-content
// heuristics. It is built once from configuration and passed into every
// Select call, keeping the engine free of shared state.
type Routing struct {
	FallbackOrder       []ProviderProfile // Fixed provider ordering for capability routing and fallbacks.
	ImpossibleTags      []string          // Content tags the heuristic flags as unsatisfiable.
	MaxRequiredElements int               // Above this many required elements, content is classified impossible.
}

// Input bundles everything a strategy decision may consult.
type Input struct {
	Scene   *model.Scene                 // The scene being regenerated.
	History []*model.RegenerationAttempt // Ordered attempt history, possibly empty.
	Latest  *model.Assessment            // Assessment of the most recent attempt, nil before the first.
	Routing Routing
}

// Confidence levels per tier. Values outside the documented ladder entries
// were chosen to keep confidence monotonically tied to how proven the
// approach is.
const (
	confRetry          = 0.9
	confAlternate      = 0.6
	confReference      = 0.7
	confReferenceRetry = 0.5
	confSimplify       = 0.4
	confEscalate       = 0.8
)

// Select picks the next regeneration strategy for a scene. The returned
// strategy authorizes exactly one attempt and is not stored beyond it.
//
// Inputs:
//   - in: The scene, its full ordered attempt history, and the routing table.
//
// Outputs:
//   - *model.RegenerationStrategy: The chosen approach with typed parameters.
func Select(in Input) *model.RegenerationStrategy {
	attempts := len(in.History)
	recurring := recurringCategory(in.History)

	var out *model.RegenerationStrategy
	switch {
	case attempts == 0:
		out = selectFirst(in)
	case attempts == 1:
		out = selectSecond(in, recurring)
	case attempts == 2:
		out = selectThird(in, recurring)
	default:
		out = &model.RegenerationStrategy{
			Approach:   model.ApproachEscalate,
			Confidence: confEscalate,
			Params:     model.StrategyParams{},
			Reasoning:  fmt.Sprintf("attempt budget exhausted after %d attempts; suggesting stock footage", attempts),
		}
	}

	if recurring != "" && out.Approach != model.ApproachEscalate {
		out.Reasoning = strings.TrimSpace(out.Reasoning + fmt.Sprintf(" recurring issue category: %s.", recurring))
	}
	return out
}

// selectFirst handles the zero-prior-attempts tier: best-fit provider via
// capability routing, unless the content is classified impossible.
func selectFirst(in Input) *model.RegenerationStrategy {
	if isImpossibleContent(in.Scene, in.Routing) {
		return &model.RegenerationStrategy{
			Approach:       model.ApproachSimplifyPrompt,
			TargetProvider: routeProvider(in, nil),
			Confidence:     confSimplify,
			Warning:        "scene content is too specific to generate reliably; the prompt was simplified and intent may be lost",
			Params: model.StrategyParams{
				SimplifiedPrompt: simplifyPrompt(in.Scene.Expected, false),
			},
			Reasoning: "content classified impossible before the first attempt",
		}
	}
	return &model.RegenerationStrategy{
		Approach:       model.ApproachRetry,
		TargetProvider: routeProvider(in, nil),
		Confidence:     confRetry,
		Params:         model.StrategyParams{Motion: model.MotionFull},
		Reasoning:      "first attempt with the best-fit provider for the scene's content tags.",
	}
}

// selectSecond handles the one-prior-attempt tier: reuse partial progress as
// a reference seed when it exists, otherwise switch providers.
func selectSecond(in Input, recurring model.IssueCategory) *model.RegenerationStrategy {
	previous := in.History[len(in.History)-1]
	avoid := avoidList(in.History, recurring)

	if previous.Outcome == model.OutcomeImproved && previous.Artifact != nil {
		return &model.RegenerationStrategy{
			Approach:       model.ApproachReferenceBased,
			TargetProvider: routeReferenceProvider(in, avoid),
			Confidence:     confReference,
			Params: model.StrategyParams{
				ReferenceArtifact: previous.Artifact,
				Motion:            model.MotionReduced,
				AvoidProviders:    avoid,
			},
			Reasoning: "previous attempt improved; seeding the next provider with its artifact.",
		}
	}
	return &model.RegenerationStrategy{
		Approach:       model.ApproachAlternateProvider,
		TargetProvider: routeProvider(in, append(avoid, previous.ProviderUsed)),
		Confidence:     confAlternate,
		Params: model.StrategyParams{
			Motion:         model.MotionFull,
			AvoidProviders: append(avoid, previous.ProviderUsed),
		},
		Reasoning: "previous approach falsified; moving to the next provider in the fallback ordering.",
	}
}

// selectThird handles the two-prior-attempts tier: the last cheap fixes
// before giving up.
func selectThird(in Input, recurring model.IssueCategory) *model.RegenerationStrategy {
	avoid := avoidList(in.History, recurring)

	if artifact := latestArtifact(in.History); artifact != nil {
		return &model.RegenerationStrategy{
			Approach:       model.ApproachReferenceBased,
			TargetProvider: routeReferenceProvider(in, avoid),
			Confidence:     confReferenceRetry,
			Params: model.StrategyParams{
				ReferenceArtifact: artifact,
				Motion:            model.MotionMinimal,
				AvoidProviders:    avoid,
			},
			Reasoning: "final reference-based attempt with drastically reduced motion and complexity.",
		}
	}
	return &model.RegenerationStrategy{
		Approach:       model.ApproachSimplifyPrompt,
		TargetProvider: routeProvider(in, avoid),
		Confidence:     confSimplify,
		Warning:        "prompt reduced to subject and lighting only; creative intent may be lost",
		Params: model.StrategyParams{
			SimplifiedPrompt: simplifyPrompt(in.Scene.Expected, true),
			Motion:           model.MotionMinimal,
			AvoidProviders:   avoid,
		},
		Reasoning: "no usable artifact from prior attempts; trying an aggressively simplified prompt.",
	}
}

// routeProvider picks the first provider in the fallback ordering that
// matches the scene's media type and content tags and is not on the avoid
// list. When tags match nothing, it falls back to the first media-type match,
// and finally to the first provider overall.
func routeProvider(in Input, avoid []string) string {
	var mediaMatch string
	for _, p := range in.Routing.FallbackOrder {
		if contains(avoid, p.Name) || !supportsMedia(p, in.Scene.MediaType) {
			continue
		}
		if mediaMatch == "" {
			mediaMatch = p.Name
		}
		if overlaps(p.Capabilities, in.Scene.Expected.ContentTags) {
			return p.Name
		}
	}
	if mediaMatch != "" {
		return mediaMatch
	}
	if len(in.Routing.FallbackOrder) > 0 {
		return in.Routing.FallbackOrder[0].Name
	}
	return ""
}

// routeReferenceProvider is routeProvider restricted to providers that accept
// a seed artifact.
func routeReferenceProvider(in Input, avoid []string) string {
	for _, p := range in.Routing.FallbackOrder {
		if p.SupportsReference && supportsMedia(p, in.Scene.MediaType) && !contains(avoid, p.Name) {
			return p.Name
		}
	}
	return routeProvider(in, avoid)
}

// isImpossibleContent applies the extreme-specificity heuristic: either a
// flagged content tag or an unreasonable number of required elements.
func isImpossibleContent(scene *model.Scene, routing Routing) bool {
	for _, tag := range scene.Expected.ContentTags {
		if contains(routing.ImpossibleTags, tag) {
			return true
		}
	}
	limit := routing.MaxRequiredElements
	if limit <= 0 {
		limit = 6
	}
	return len(scene.Expected.RequiredElements) > limit
}

// simplifyPrompt reduces an expected description to its essentials. The
// aggressive form keeps only the subject and a lighting hint.
func simplifyPrompt(expected model.ExpectedDescription, aggressive bool) string {
	subject := expected.Narration
	if len(expected.RequiredElements) > 0 {
		subject = expected.RequiredElements[0]
	}
	if aggressive {
		return subject + ", soft natural lighting"
	}
	parts := []string{subject}
	if len(expected.RequiredElements) > 1 {
		parts = append(parts, expected.RequiredElements[1])
	}
	parts = append(parts, "soft natural lighting")
	return strings.Join(parts, ", ")
}

// recurringCategory returns the issue category that appears in at least two
// attempts of the history, or empty when none does. Only the first recurring
// category (in attempt order) is reported.
func recurringCategory(history []*model.RegenerationAttempt) model.IssueCategory {
	seen := make(map[model.IssueCategory]int)
	for _, attempt := range history {
		if attempt.ResultAssessment == nil {
			continue
		}
		counted := make(map[model.IssueCategory]bool)
		for _, issue := range attempt.ResultAssessment.Issues {
			if counted[issue.Category] {
				continue
			}
			counted[issue.Category] = true
			seen[issue.Category]++
			if seen[issue.Category] >= 2 {
				return issue.Category
			}
		}
	}
	return ""
}

// avoidList builds the providers to steer away from: when an issue category
// recurs, every provider that produced it is considered falsified for the
// remaining tiers.
func avoidList(history []*model.RegenerationAttempt, recurring model.IssueCategory) []string {
	if recurring == "" {
		return nil
	}
	var avoid []string
	for _, attempt := range history {
		if attempt.ResultAssessment == nil {
			continue
		}
		if attempt.ResultAssessment.HasIssueCategory(recurring) && !contains(avoid, attempt.ProviderUsed) {
			avoid = append(avoid, attempt.ProviderUsed)
		}
	}
	return avoid
}

// latestArtifact scans the history backwards for the most recent attempt
// that produced an artifact at all.
func latestArtifact(history []*model.RegenerationAttempt) *model.ArtifactRef {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Artifact != nil {
			return history[i].Artifact
		}
	}
	return nil
}

func supportsMedia(p ProviderProfile, mt model.MediaType) bool {
	if len(p.MediaTypes) == 0 {
		return true
	}
	for _, m := range p.MediaTypes {
		if m == mt {
			return true
		}
	}
	return false
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if strings.EqualFold(x, y) {
				return true
			}
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
