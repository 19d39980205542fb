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

// Package workflow_test contains unit tests for the scene regeneration
// orchestrator. The evaluator and the providers are replaced with fakes, so
// the tests exercise the loop's real control flow: the attempt ladder, the
// ledger recording, outcome classification, and escalation.
package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jaycherian/gcp-go-promo-quality/internal/core/commands"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/cor"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/generation"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/ledger"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/model"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/quality"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/strategy"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/workflow"
	"github.com/stretchr/testify/assert"
)

// fakeEvaluator returns scripted verdicts (or errors) in call order. The last
// entry repeats once the script runs out.
type fakeEvaluator struct {
	verdicts []*model.SceneVerdict
	errs     []error
	calls    int
}

func (f *fakeEvaluator) Evaluate(_ context.Context, _ *model.Scene, _ *model.ArtifactRef) (*model.SceneVerdict, error) {
	i := f.calls
	f.calls++
	if i >= len(f.verdicts) {
		i = len(f.verdicts) - 1
	}
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return f.verdicts[i], nil
}

// fakeGenerator produces deterministic artifact refs, or fails every call.
type fakeGenerator struct {
	name  string
	fail  bool
	calls int
	last  *generation.Request
}

func (g *fakeGenerator) Name() string { return g.name }

func (g *fakeGenerator) Generate(_ context.Context, req *generation.Request) (*model.ArtifactRef, error) {
	g.calls++
	g.last = req
	if g.fail {
		return nil, errors.New("backend unavailable")
	}
	return &model.ArtifactRef{
		URI:      fmt.Sprintf("gs://bucket/artifacts/%s/%s-%d.mp4", req.Scene.ID, g.name, g.calls),
		MIMEType: "video/mp4",
	}, nil
}

// captureCommand records every chain context it is executed with. It stands
// in for the persistence and escalation commands.
type captureCommand struct {
	cor.BaseCommand
	contexts []cor.Context
}

func newCaptureCommand(name string) *captureCommand {
	return &captureCommand{BaseCommand: *cor.NewBaseCommand(name)}
}

func (c *captureCommand) Execute(context cor.Context) {
	c.contexts = append(c.contexts, context)
}

func regenRouting() strategy.Routing {
	return strategy.Routing{
		FallbackOrder: []strategy.ProviderProfile{
			{
				Name:              "veo",
				MediaTypes:        []model.MediaType{model.MediaTypeVideo},
				Capabilities:      []string{"outdoor"},
				SupportsReference: true,
			},
			{
				Name:       "stock",
				MediaTypes: []model.MediaType{model.MediaTypeVideo, model.MediaTypeImage},
			},
		},
	}
}

// sceneList is a fixed project timeline, standing in for the project service.
type sceneList []string

func (s sceneList) SceneIDs(_ string) []string { return s }

func regenScene() *model.Scene {
	return model.NewScene("proj", 0, model.SceneTypeStandard, model.MediaTypeVideo, model.ExpectedDescription{
		Narration:        "runners cross a city bridge at dawn",
		RequiredElements: []string{"runners", "bridge"},
		ContentTags:      []string{"outdoor"},
	})
}

func verdictFor(sceneID string, status model.VerdictStatus, score float64) *model.SceneVerdict {
	return &model.SceneVerdict{
		SceneID:      sceneID,
		Status:       status,
		OverallScore: score,
		Assessment:   &model.Assessment{OverallScore: score},
	}
}

func newRegistry(generators ...generation.Generator) *generation.Registry {
	registry := generation.NewRegistry(0)
	for _, g := range generators {
		registry.Register(g)
	}
	return registry
}

func TestRegenerateSceneSucceedsFirstAttempt(t *testing.T) {
	scene := regenScene()
	veo := &fakeGenerator{name: "veo"}
	stock := &fakeGenerator{name: "stock"}
	evaluator := &fakeEvaluator{verdicts: []*model.SceneVerdict{
		verdictFor(scene.ID, model.VerdictApproved, 90),
	}}
	attempts := ledger.NewAttemptLedger()

	pipeline := workflow.NewSceneRegenerationPipeline(
		evaluator, newRegistry(veo, stock), attempts, nil, regenRouting(),
		quality.DefaultQualityPolicy(), nil, nil)

	verdict, err := pipeline.RegenerateScene(context.Background(), scene)

	assert.NoError(t, err)
	assert.Equal(t, model.VerdictApproved, verdict.Status)
	assert.Equal(t, 1, attempts.Count(scene.ID))
	assert.Equal(t, model.OutcomeSuccess, attempts.History(scene.ID)[0].Outcome)
	// A passing attempt replaces the scene's current artifact.
	assert.NotNil(t, scene.CurrentArtifact)
	assert.Equal(t, "veo", scene.CurrentProvider)
}

func TestRegenerateSceneSecondAttemptSeedsReference(t *testing.T) {
	scene := regenScene()
	veo := &fakeGenerator{name: "veo"}
	stock := &fakeGenerator{name: "stock"}
	evaluator := &fakeEvaluator{verdicts: []*model.SceneVerdict{
		verdictFor(scene.ID, model.VerdictRejected, 60), // improved over empty history
		verdictFor(scene.ID, model.VerdictApproved, 88),
	}}
	attempts := ledger.NewAttemptLedger()

	pipeline := workflow.NewSceneRegenerationPipeline(
		evaluator, newRegistry(veo, stock), attempts, nil, regenRouting(),
		quality.DefaultQualityPolicy(), nil, nil)

	verdict, err := pipeline.RegenerateScene(context.Background(), scene)

	assert.NoError(t, err)
	assert.Equal(t, model.VerdictApproved, verdict.Status)

	history := attempts.History(scene.ID)
	assert.Len(t, history, 2)
	assert.Equal(t, model.ApproachRetry, history[0].Approach)
	assert.Equal(t, model.OutcomeImproved, history[0].Outcome)
	assert.Equal(t, model.ApproachReferenceBased, history[1].Approach)
	assert.Equal(t, model.OutcomeSuccess, history[1].Outcome)
	// The second call carried the first attempt's artifact as a seed.
	assert.NotNil(t, veo.last.Reference)
	assert.Equal(t, history[0].Artifact, veo.last.Reference)
}

func TestRegenerateSceneExhaustsBudgetAndEscalates(t *testing.T) {
	scene := regenScene()
	veo := &fakeGenerator{name: "veo"}
	stock := &fakeGenerator{name: "stock"}
	evaluator := &fakeEvaluator{verdicts: []*model.SceneVerdict{
		verdictFor(scene.ID, model.VerdictRejected, 30),
	}}
	attempts := ledger.NewAttemptLedger()
	escalate := newCaptureCommand("capture-escalation")

	pipeline := workflow.NewSceneRegenerationPipeline(
		evaluator, newRegistry(veo, stock), attempts, nil, regenRouting(),
		quality.DefaultQualityPolicy(), nil, escalate)

	verdict, err := pipeline.RegenerateScene(context.Background(), scene)

	var exhausted *quality.BudgetExhaustedError
	assert.True(t, errors.As(err, &exhausted))
	assert.Equal(t, scene.ID, exhausted.SceneID)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, 3, attempts.Count(scene.ID))
	// The last failing verdict is still surfaced to the caller.
	assert.NotNil(t, verdict)
	assert.Equal(t, model.VerdictRejected, verdict.Status)
	// No failing artifact may replace the scene's current one.
	assert.Nil(t, scene.CurrentArtifact)

	// The escalation notice carries the full history and a stock suggestion.
	assert.Len(t, escalate.contexts, 1)
	notice, ok := escalate.contexts[0].Get(commands.GetEscalationParamName()).(*model.EscalationNotice)
	assert.True(t, ok)
	assert.Equal(t, scene.ID, notice.SceneID)
	assert.Equal(t, model.ApproachStockFootage, notice.Suggestion)
	assert.Len(t, notice.AttemptHistory, 3)
}

func TestRegenerateSceneProjectBudgetBlocksBeforeGenerating(t *testing.T) {
	scene := regenScene()
	veo := &fakeGenerator{name: "veo"}
	evaluator := &fakeEvaluator{verdicts: []*model.SceneVerdict{
		verdictFor(scene.ID, model.VerdictApproved, 90),
	}}
	attempts := ledger.NewAttemptLedger()
	escalate := newCaptureCommand("capture-escalation")

	// A sibling scene already spent the whole project budget.
	sibling := model.NewScene("proj", 1, model.SceneTypeStandard, model.MediaTypeVideo, model.ExpectedDescription{
		Narration: "a close-up of the finish line tape",
	})
	attempts.Append(&model.RegenerationAttempt{SceneID: sibling.ID, Outcome: model.OutcomeFailed})
	attempts.Append(&model.RegenerationAttempt{SceneID: sibling.ID, Outcome: model.OutcomeFailed})

	policy := quality.DefaultQualityPolicy()
	policy.ProjectAttemptBudget = 1

	pipeline := workflow.NewSceneRegenerationPipeline(
		evaluator, newRegistry(veo), attempts, sceneList{scene.ID, sibling.ID}, regenRouting(),
		policy, nil, escalate)

	verdict, err := pipeline.RegenerateScene(context.Background(), scene)

	var exhausted *quality.BudgetExhaustedError
	assert.True(t, errors.As(err, &exhausted))
	assert.Equal(t, scene.ID, exhausted.SceneID)
	// The cap stops the loop before any provider call or ledger row.
	assert.Equal(t, 0, veo.calls)
	assert.Equal(t, 0, attempts.Count(scene.ID))
	assert.Equal(t, 0, evaluator.calls)
	assert.Nil(t, verdict)
	assert.Len(t, escalate.contexts, 1)
}

func TestRegenerateSceneProjectBudgetDisabledByDefault(t *testing.T) {
	scene := regenScene()
	veo := &fakeGenerator{name: "veo"}
	stock := &fakeGenerator{name: "stock"}
	evaluator := &fakeEvaluator{verdicts: []*model.SceneVerdict{
		verdictFor(scene.ID, model.VerdictApproved, 90),
	}}
	attempts := ledger.NewAttemptLedger()

	// Heavy prior spend elsewhere in the project must not block when the
	// budget is left at its zero default.
	attempts.Append(&model.RegenerationAttempt{SceneID: "sibling", Outcome: model.OutcomeFailed})
	attempts.Append(&model.RegenerationAttempt{SceneID: "sibling", Outcome: model.OutcomeFailed})

	pipeline := workflow.NewSceneRegenerationPipeline(
		evaluator, newRegistry(veo, stock), attempts, sceneList{scene.ID, "sibling"}, regenRouting(),
		quality.DefaultQualityPolicy(), nil, nil)

	verdict, err := pipeline.RegenerateScene(context.Background(), scene)

	assert.NoError(t, err)
	assert.Equal(t, model.VerdictApproved, verdict.Status)
	assert.Equal(t, 1, veo.calls)
}

func TestRegenerateSceneProviderFailureConsumesAttempt(t *testing.T) {
	scene := regenScene()
	veo := &fakeGenerator{name: "veo", fail: true}
	stock := &fakeGenerator{name: "stock", fail: true}
	evaluator := &fakeEvaluator{verdicts: []*model.SceneVerdict{
		verdictFor(scene.ID, model.VerdictApproved, 90),
	}}
	attempts := ledger.NewAttemptLedger()

	pipeline := workflow.NewSceneRegenerationPipeline(
		evaluator, newRegistry(veo, stock), attempts, nil, regenRouting(),
		quality.DefaultQualityPolicy(), nil, nil)

	_, err := pipeline.RegenerateScene(context.Background(), scene)

	var exhausted *quality.BudgetExhaustedError
	assert.True(t, errors.As(err, &exhausted))
	// Every provider failure burned an attempt without ever reaching scoring.
	assert.Equal(t, 3, attempts.Count(scene.ID))
	assert.Equal(t, 0, evaluator.calls)
	for _, attempt := range attempts.History(scene.ID) {
		assert.Equal(t, model.OutcomeFailed, attempt.Outcome)
		assert.Nil(t, attempt.Artifact)
	}
}

func TestRegenerateSceneOracleErrorAborts(t *testing.T) {
	scene := regenScene()
	veo := &fakeGenerator{name: "veo"}
	oracleErr := &quality.ScoringOracleError{SceneID: scene.ID, Err: errors.New("model overloaded")}
	evaluator := &fakeEvaluator{
		verdicts: []*model.SceneVerdict{nil},
		errs:     []error{oracleErr},
	}
	attempts := ledger.NewAttemptLedger()

	pipeline := workflow.NewSceneRegenerationPipeline(
		evaluator, newRegistry(veo), attempts, nil, regenRouting(),
		quality.DefaultQualityPolicy(), nil, nil)

	_, err := pipeline.RegenerateScene(context.Background(), scene)

	assert.ErrorIs(t, err, oracleErr)
	// The aborted attempt is still recorded as consumed.
	assert.Equal(t, 1, attempts.Count(scene.ID))
	assert.Equal(t, model.OutcomeFailed, attempts.History(scene.ID)[0].Outcome)
}

func TestRegenerateScenePersistsEveryAttempt(t *testing.T) {
	scene := regenScene()
	veo := &fakeGenerator{name: "veo"}
	stock := &fakeGenerator{name: "stock"}
	evaluator := &fakeEvaluator{verdicts: []*model.SceneVerdict{
		verdictFor(scene.ID, model.VerdictRejected, 55),
		verdictFor(scene.ID, model.VerdictApproved, 90),
	}}
	attempts := ledger.NewAttemptLedger()
	persist := newCaptureCommand("capture-attempts")

	pipeline := workflow.NewSceneRegenerationPipeline(
		evaluator, newRegistry(veo, stock), attempts, nil, regenRouting(),
		quality.DefaultQualityPolicy(), persist, nil)

	_, err := pipeline.RegenerateScene(context.Background(), scene)

	assert.NoError(t, err)
	assert.Len(t, persist.contexts, attempts.Count(scene.ID))
	for _, chainCtx := range persist.contexts {
		_, ok := chainCtx.Get(commands.GetAttemptParamName()).(*model.RegenerationAttempt)
		assert.True(t, ok)
	}
}

func TestRegenerateSceneHonorsCancellation(t *testing.T) {
	scene := regenScene()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pipeline := workflow.NewSceneRegenerationPipeline(
		&fakeEvaluator{verdicts: []*model.SceneVerdict{verdictFor(scene.ID, model.VerdictApproved, 90)}},
		newRegistry(&fakeGenerator{name: "veo"}),
		ledger.NewAttemptLedger(), nil, regenRouting(),
		quality.DefaultQualityPolicy(), nil, nil)

	_, err := pipeline.RegenerateScene(ctx, scene)
	assert.ErrorIs(t, err, context.Canceled)
}
