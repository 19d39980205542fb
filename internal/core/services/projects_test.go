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

// Package services_test contains unit tests for the ProjectService: scene
// registration, verdict tracking, the human review actions, and the parallel
// project evaluation fan-out.
package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jaycherian/gcp-go-promo-quality/internal/core/model"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/quality"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/services"
	"github.com/stretchr/testify/assert"
)

// scriptedEvaluator returns a fixed verdict status per scene ID. It is safe
// for the concurrent fan-out in EvaluateProject.
type scriptedEvaluator struct {
	mu       sync.Mutex
	statuses map[string]model.VerdictStatus
	scores   map[string]float64
	err      error
	calls    int
}

func (f *scriptedEvaluator) Evaluate(_ context.Context, scene *model.Scene, _ *model.ArtifactRef) (*model.SceneVerdict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &model.SceneVerdict{
		SceneID:      scene.ID,
		Status:       f.statuses[scene.ID],
		OverallScore: f.scores[scene.ID],
	}, nil
}

func newService() *services.ProjectService {
	return services.NewProjectService(quality.DefaultQualityPolicy(), 2)
}

func sceneWithArtifact(projectID string, index int) *model.Scene {
	scene := model.NewScene(projectID, index, model.SceneTypeStandard, model.MediaTypeVideo, model.ExpectedDescription{
		Narration: "a courier hands over a parcel",
	})
	scene.CurrentArtifact = &model.ArtifactRef{
		URI:      "gs://bucket/artifacts/" + scene.ID + "/clip.mp4",
		MIMEType: "video/mp4",
	}
	return scene
}

func TestAddAndResolveScene(t *testing.T) {
	s := newService()
	scene := sceneWithArtifact("proj", 0)
	s.AddScene(scene)

	resolved, err := s.ResolveScene(scene.ID)
	assert.NoError(t, err)
	assert.Equal(t, scene, resolved)

	_, err = s.ResolveScene("missing")
	assert.Error(t, err)
}

func TestSceneIDsPreserveOrder(t *testing.T) {
	s := newService()
	first := sceneWithArtifact("proj", 0)
	second := sceneWithArtifact("proj", 1)
	s.AddScene(first)
	s.AddScene(second)
	// Re-adding an existing scene must not duplicate its timeline entry.
	s.AddScene(first)

	assert.Equal(t, []string{first.ID, second.ID}, s.SceneIDs("proj"))
}

func TestVerdictDefaultsToPending(t *testing.T) {
	s := newService()
	scene := sceneWithArtifact("proj", 0)
	s.AddScene(scene)

	verdict := s.Verdict(scene.ID)
	assert.Equal(t, model.VerdictPending, verdict.Status)
}

func TestApproveSceneRequiresVerdict(t *testing.T) {
	s := newService()
	scene := sceneWithArtifact("proj", 0)
	s.AddScene(scene)

	_, err := s.ApproveScene(scene.ID)
	assert.Error(t, err)
}

func TestApproveScenePromotesNeedsReview(t *testing.T) {
	s := newService()
	scene := sceneWithArtifact("proj", 0)
	s.AddScene(scene)
	s.RecordVerdict(&model.SceneVerdict{SceneID: scene.ID, Status: model.VerdictNeedsReview, OverallScore: 72})

	verdict, err := s.ApproveScene(scene.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.VerdictApproved, verdict.Status)
	assert.True(t, verdict.UserApproved)
	assert.True(t, scene.UserApproved)
}

func TestApproveSceneNeverClearsRejection(t *testing.T) {
	s := newService()
	scene := sceneWithArtifact("proj", 0)
	s.AddScene(scene)
	s.RecordVerdict(&model.SceneVerdict{SceneID: scene.ID, Status: model.VerdictRejected, OverallScore: 30})

	_, err := s.ApproveScene(scene.ID)
	assert.Error(t, err)
	assert.Equal(t, model.VerdictRejected, s.Verdict(scene.ID).Status)
}

func TestRejectSceneOverridesApproval(t *testing.T) {
	s := newService()
	scene := sceneWithArtifact("proj", 0)
	s.AddScene(scene)
	s.RecordVerdict(&model.SceneVerdict{SceneID: scene.ID, Status: model.VerdictApproved, OverallScore: 90, UserApproved: true})

	verdict, err := s.RejectScene(scene.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.VerdictRejected, verdict.Status)
	assert.False(t, verdict.UserApproved)
	assert.True(t, scene.UserRejected)
}

func TestEvaluateProjectRecordsVerdicts(t *testing.T) {
	s := newService()
	first := sceneWithArtifact("proj", 0)
	second := sceneWithArtifact("proj", 1)
	s.AddScene(first)
	s.AddScene(second)

	evaluator := &scriptedEvaluator{
		statuses: map[string]model.VerdictStatus{
			first.ID:  model.VerdictApproved,
			second.ID: model.VerdictApproved,
		},
		scores: map[string]float64{first.ID: 90, second.ID: 88},
	}

	report, err := s.EvaluateProject(context.Background(), "proj", evaluator)
	assert.NoError(t, err)
	assert.Equal(t, 2, evaluator.calls)
	assert.Equal(t, 2, report.ApprovedCount)
	assert.True(t, report.CanRender)
	assert.InDelta(t, 89.0, report.OverallScore, 0.001)
}

func TestEvaluateProjectSkipsScenesWithoutArtifact(t *testing.T) {
	s := newService()
	evaluated := sceneWithArtifact("proj", 0)
	bare := model.NewScene("proj", 1, model.SceneTypeStandard, model.MediaTypeVideo, model.ExpectedDescription{Narration: "no artifact yet"})
	s.AddScene(evaluated)
	s.AddScene(bare)

	evaluator := &scriptedEvaluator{
		statuses: map[string]model.VerdictStatus{evaluated.ID: model.VerdictApproved},
		scores:   map[string]float64{evaluated.ID: 90},
	}

	report, err := s.EvaluateProject(context.Background(), "proj", evaluator)
	assert.NoError(t, err)
	assert.Equal(t, 1, evaluator.calls)
	assert.Equal(t, 1, report.PendingCount)
	assert.False(t, report.CanRender)
}

func TestEvaluateProjectSurfacesFirstError(t *testing.T) {
	s := newService()
	s.AddScene(sceneWithArtifact("proj", 0))

	evaluator := &scriptedEvaluator{err: errors.New("oracle down")}
	_, err := s.EvaluateProject(context.Background(), "proj", evaluator)
	assert.Error(t, err)
}

func TestAuthorizeRenderForceOverride(t *testing.T) {
	s := newService()
	scene := sceneWithArtifact("proj", 0)
	s.AddScene(scene)
	s.RecordVerdict(&model.SceneVerdict{SceneID: scene.ID, Status: model.VerdictRejected, OverallScore: 30})

	_, err := s.AuthorizeRender("proj", false)
	var violation *quality.PolicyViolationError
	assert.True(t, errors.As(err, &violation))

	_, err = s.AuthorizeRender("proj", true)
	assert.NoError(t, err)
}
