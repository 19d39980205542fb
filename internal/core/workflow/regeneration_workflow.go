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

// Package workflow defines the high-level business logic orchestrations,
// combining various commands into coherent pipelines. This file implements
// the regeneration orchestrator: the bounded generate-score-decide loop that
// runs when a scene fails its evaluation.
//
// Unlike the evaluation pipeline, the orchestrator is an imperative loop
// rather than a command chain: each iteration's strategy depends on the
// outcome of the previous one, so the control flow cannot be laid out as a
// fixed sequence of commands. The loop terminates in one of three ways:
// a passing verdict, a context cancellation, or escalation to the human
// review queue once the attempt ladder is exhausted.
package workflow

import (
	goctx "context"
	"errors"
	"strings"
	"time"

	"github.com/jaycherian/gcp-go-promo-quality/internal/core/commands"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/cor"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/generation"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/ledger"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/model"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/quality"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/strategy"
)

// errMissingScene is reported when the orchestrator is executed on a chain
// whose context carries no scene.
var errMissingScene = errors.New("no scene present in context")

// Evaluator scores one artifact and derives its verdict. The evaluation
// pipeline implements this; tests substitute fakes.
type Evaluator interface {
	Evaluate(ctx goctx.Context, scene *model.Scene, artifact *model.ArtifactRef) (*model.SceneVerdict, error)
}

// SceneLister exposes the scene IDs of a project's timeline. The project
// service implements this; the orchestrator totals attempts across those
// scenes when the project-level attempt budget is enabled.
type SceneLister interface {
	SceneIDs(projectID string) []string
}

// SceneRegenerationWorkflow drives the regeneration loop for one scene at a
// time. All state between iterations lives in the attempt ledger, so the
// workflow itself is stateless and safe to share across goroutines; the
// ledger's per-scene lock guarantees no two loops run for the same scene.
type SceneRegenerationWorkflow struct {
	cor.BaseCommand
	evaluator Evaluator
	registry  *generation.Registry
	attempts  *ledger.AttemptLedger
	scenes    SceneLister // Timeline lookup for the project budget; nil disables the project cap.
	routing   strategy.Routing
	policy    quality.QualityPolicy
	persist   cor.Command // Persists each attempt to the audit table; nil disables persistence.
	escalate  cor.Command // Publishes escalation notices; nil disables publication.
}

// NewSceneRegenerationPipeline is the constructor for the SceneRegenerationWorkflow.
//
// Inputs:
//   - evaluator: The evaluation pipeline (or a test fake).
//   - registry: The provider registry generation requests go through.
//   - attempts: The shared append-only attempt ledger.
//   - scenes: The project timeline lookup; nil disables the project-level
//     attempt budget even when the policy configures one.
//   - routing: The provider directory and feasibility rules.
//   - policy: The quality policy; MaxAttempts bounds the per-scene loop and
//     ProjectAttemptBudget caps total spend across a project's scenes.
//   - persist: Optional command persisting attempts to BigQuery.
//   - escalate: Optional command publishing escalation notices.
//
// Returns:
//   - A pointer to a newly created and fully initialized SceneRegenerationWorkflow.
func NewSceneRegenerationPipeline(
	evaluator Evaluator,
	registry *generation.Registry,
	attempts *ledger.AttemptLedger,
	scenes SceneLister,
	routing strategy.Routing,
	policy quality.QualityPolicy,
	persist cor.Command,
	escalate cor.Command) *SceneRegenerationWorkflow {

	return &SceneRegenerationWorkflow{
		BaseCommand: *cor.NewBaseCommand("scene-regeneration-pipeline"),
		evaluator:   evaluator,
		registry:    registry,
		attempts:    attempts,
		scenes:      scenes,
		routing:     routing,
		policy:      policy.Normalize(),
		persist:     persist,
		escalate:    escalate,
	}
}

// Execute adapts the orchestrator to the Command interface so it can sit on
// a chain behind a trigger. The scene is read from its well-known parameter.
//
// Inputs:
//   - context: The chain context carrying the scene to regenerate.
func (m *SceneRegenerationWorkflow) Execute(context cor.Context) {
	scene, ok := context.Get(commands.GetSceneParamName()).(*model.Scene)
	if !ok {
		context.AddError(m.GetName(), errMissingScene)
		return
	}
	verdict, err := m.RegenerateScene(context.GetContext(), scene)
	if err != nil {
		context.AddError(m.GetName(), err)
		return
	}
	context.Add(commands.GetVerdictParamName(), verdict)
	context.Add(cor.CtxOut, verdict)
}

// RegenerateScene runs the bounded regeneration loop for one scene.
//
// Each iteration asks the strategy engine for the next approach, invokes the
// chosen provider, scores the result, classifies the outcome, and appends
// the attempt to the ledger. The scene's current artifact is replaced only
// by an artifact that actually passes evaluation.
//
// Inputs:
//   - ctx: The Go context; cancellation between iterations stops the loop.
//   - scene: The scene to regenerate.
//
// Outputs:
//   - *model.SceneVerdict: The verdict of the last scored attempt. Nil when
//     no attempt produced an artifact that could be scored.
//   - error: A *quality.BudgetExhaustedError on escalation, the provider or
//     oracle error that aborted the loop, or the context's error.
func (m *SceneRegenerationWorkflow) RegenerateScene(ctx goctx.Context, scene *model.Scene) (*model.SceneVerdict, error) {
	unlock := m.attempts.LockScene(scene.ID)
	defer unlock()

	var lastVerdict *model.SceneVerdict
	var latest *model.Assessment

	for {
		// Cancellation is honored between attempts; an in-flight provider
		// call is bounded separately by the registry's timeout.
		if err := ctx.Err(); err != nil {
			return lastVerdict, err
		}

		history := m.attempts.History(scene.ID)
		decision := strategy.Select(strategy.Input{
			Scene:   scene,
			History: history,
			Latest:  latest,
			Routing: m.routing,
		})

		if decision.Approach == model.ApproachEscalate ||
			len(history) >= m.policy.MaxAttempts ||
			m.projectBudgetSpent(scene.ProjectID) {
			m.publishEscalation(ctx, scene, latest, history)
			return lastVerdict, &quality.BudgetExhaustedError{SceneID: scene.ID, Attempts: len(history)}
		}

		prompt := m.promptFor(scene, decision, latest)
		attempt := &model.RegenerationAttempt{
			SceneID:      scene.ID,
			Approach:     decision.Approach,
			ProviderUsed: decision.TargetProvider,
			PromptUsed:   prompt,
		}

		artifact, genErr := m.registry.Generate(ctx, decision.TargetProvider, &generation.Request{
			Scene:     scene,
			Prompt:    prompt,
			Reference: decision.Params.ReferenceArtifact,
			Motion:    decision.Params.Motion,
		})
		if genErr != nil {
			// A provider failure is a consumed attempt, not a loop abort: the
			// next tier of the ladder routes around the failed provider.
			attempt.Outcome = model.OutcomeFailed
			m.record(ctx, attempt)
			latest = nil
			continue
		}
		attempt.Artifact = artifact

		verdict, err := m.evaluator.Evaluate(ctx, scene, artifact)
		if err != nil {
			attempt.Outcome = model.OutcomeFailed
			m.record(ctx, attempt)
			return lastVerdict, err
		}
		attempt.ResultAssessment = verdict.Assessment

		switch {
		case verdict.Passing():
			attempt.Outcome = model.OutcomeSuccess
		case verdict.OverallScore > bestScore(history):
			// Still rejected, but measurably better than anything before it:
			// the next tier may use this artifact as a reference seed.
			attempt.Outcome = model.OutcomeImproved
		default:
			attempt.Outcome = model.OutcomeFailed
		}
		m.record(ctx, attempt)

		lastVerdict = verdict
		latest = verdict.Assessment

		if verdict.Passing() {
			scene.CurrentArtifact = artifact
			scene.CurrentProvider = artifact.Provider
			return verdict, nil
		}
	}
}

// projectBudgetSpent reports whether the attempts already recorded across the
// whole project's timeline have reached the configured project-level budget.
// A zero budget or a missing timeline lookup leaves the per-scene ladder as
// the only bound.
func (m *SceneRegenerationWorkflow) projectBudgetSpent(projectID string) bool {
	if m.policy.ProjectAttemptBudget <= 0 || m.scenes == nil {
		return false
	}
	return m.attempts.TotalForScenes(m.scenes.SceneIDs(projectID)) >= m.policy.ProjectAttemptBudget
}

// record appends the attempt to the ledger and streams it to the audit table
// when a persistence command is attached. Persistence failures are logged by
// the command itself and never abort the loop.
func (m *SceneRegenerationWorkflow) record(ctx goctx.Context, attempt *model.RegenerationAttempt) {
	m.attempts.Append(attempt)
	if m.persist == nil {
		return
	}
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(ctx)
	chainCtx.Add(commands.GetAttemptParamName(), attempt)
	m.persist.Execute(chainCtx)
}

// publishEscalation hands the scene to the human review queue with its full
// attempt history and a stock-footage suggestion.
func (m *SceneRegenerationWorkflow) publishEscalation(ctx goctx.Context, scene *model.Scene, latest *model.Assessment, history []*model.RegenerationAttempt) {
	notice := &model.EscalationNotice{
		ProjectID:       scene.ProjectID,
		SceneID:         scene.ID,
		FinalAssessment: latest,
		AttemptHistory:  history,
		Suggestion:      model.ApproachStockFootage,
		EscalatedAt:     time.Now(),
	}
	if m.escalate == nil {
		return
	}
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(ctx)
	chainCtx.Add(commands.GetEscalationParamName(), notice)
	m.escalate.Execute(chainCtx)
}

// promptFor resolves the prompt text for one attempt: an explicit simplified
// prompt from the strategy wins, then the scorer's suggested rewrite, then
// the prompt assembled from the scene's expected description.
func (m *SceneRegenerationWorkflow) promptFor(scene *model.Scene, decision *model.RegenerationStrategy, latest *model.Assessment) string {
	if decision.Params.SimplifiedPrompt != "" {
		return decision.Params.SimplifiedPrompt
	}
	if latest != nil && latest.ImprovedPrompt != "" {
		return latest.ImprovedPrompt
	}
	return basePrompt(scene.Expected)
}

// basePrompt assembles the default generation prompt from the expected
// description's narration, required elements, overlay text, and framing.
func basePrompt(expected model.ExpectedDescription) string {
	parts := make([]string, 0, 4)
	if expected.Narration != "" {
		parts = append(parts, expected.Narration)
	}
	if len(expected.RequiredElements) > 0 {
		parts = append(parts, "showing "+strings.Join(expected.RequiredElements, ", "))
	}
	if expected.OverlayText != "" {
		parts = append(parts, "with on-screen text reading \""+expected.OverlayText+"\"")
	}
	if expected.Framing != "" {
		parts = append(parts, string(expected.Framing)+" framing")
	}
	return strings.Join(parts, ", ")
}

// bestScore returns the highest overall score any prior attempt achieved,
// or zero for an empty history.
func bestScore(history []*model.RegenerationAttempt) (best float64) {
	for _, attempt := range history {
		if attempt.ResultAssessment != nil && attempt.ResultAssessment.OverallScore > best {
			best = attempt.ResultAssessment.OverallScore
		}
	}
	return best
}
