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

// Package services contains the business logic for interacting with data
// sources. This file defines the ProjectService: the in-process registry of
// projects, scenes, and their current verdicts, and the fan-out that
// evaluates a whole project's scenes in parallel.
//
// The service is the single writer of verdict state. Scenes are evaluated
// concurrently, but verdict recording and the report join go through the
// service's lock, so a report is always built from a consistent snapshot.
package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/jaycherian/gcp-go-promo-quality/internal/core/model"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/quality"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/workflow"
)

// ProjectService tracks the scenes of each promo project and the verdict
// currently attached to each scene. It implements the SceneResolver and
// VerdictSink interfaces consumed by the trigger workflow.
type ProjectService struct {
	mu            sync.RWMutex
	scenes        map[string]*model.Scene         // All known scenes by ID.
	projectScenes map[string][]string             // Ordered scene IDs per project.
	verdicts      map[string]*model.SceneVerdict  // Latest verdict per scene ID.
	policy        quality.QualityPolicy           // Thresholds used for report building.
	workers       int                             // Worker pool size for parallel evaluation.
}

// NewProjectService is the constructor for ProjectService.
//
// Inputs:
//   - policy: The quality policy applied when building reports.
//   - workers: The worker pool size for EvaluateProject; values below one
//     are coerced to one.
//
// Outputs:
//   - *ProjectService: An empty, ready-to-use service.
func NewProjectService(policy quality.QualityPolicy, workers int) *ProjectService {
	if workers < 1 {
		workers = 1
	}
	return &ProjectService{
		scenes:        make(map[string]*model.Scene),
		projectScenes: make(map[string][]string),
		verdicts:      make(map[string]*model.SceneVerdict),
		policy:        policy.Normalize(),
		workers:       workers,
	}
}

// AddScene registers a scene under its project. A scene that has never been
// evaluated reports a pending verdict.
func (s *ProjectService) AddScene(scene *model.Scene) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.scenes[scene.ID]; !exists {
		s.projectScenes[scene.ProjectID] = append(s.projectScenes[scene.ProjectID], scene.ID)
	}
	s.scenes[scene.ID] = scene
}

// ResolveScene looks up a scene by ID. It implements commands.SceneResolver.
func (s *ProjectService) ResolveScene(sceneID string) (*model.Scene, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scene, ok := s.scenes[sceneID]
	if !ok {
		return nil, fmt.Errorf("unknown scene %s", sceneID)
	}
	return scene, nil
}

// SceneIDs returns the ordered scene IDs of a project.
func (s *ProjectService) SceneIDs(projectID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.projectScenes[projectID]))
	copy(out, s.projectScenes[projectID])
	return out
}

// RecordVerdict stores the latest verdict for a scene, replacing any earlier
// one. It implements workflow.VerdictSink.
func (s *ProjectService) RecordVerdict(verdict *model.SceneVerdict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verdicts[verdict.SceneID] = verdict
}

// Verdict returns the latest verdict for a scene, or a pending verdict when
// the scene has never been evaluated.
func (s *ProjectService) Verdict(sceneID string) *model.SceneVerdict {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.verdicts[sceneID]; ok {
		return v
	}
	return model.NewPendingVerdict(sceneID)
}

// ReviewQueue returns the verdicts of a project's scenes that are waiting on
// a human decision, in timeline order.
func (s *ProjectService) ReviewQueue(projectID string) []*model.SceneVerdict {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.SceneVerdict, 0)
	for _, sceneID := range s.projectScenes[projectID] {
		if v, ok := s.verdicts[sceneID]; ok && v.Status == model.VerdictNeedsReview && !v.UserApproved {
			out = append(out, v)
		}
	}
	return out
}

// ApproveScene marks a needs_review scene as human-approved. Approval never
// clears a rejection; a rejected scene must be regenerated instead.
//
// Inputs:
//   - sceneID: The scene the reviewer approved.
//
// Outputs:
//   - *model.SceneVerdict: The updated verdict.
//   - error: An error when the scene is unknown or its verdict cannot accept
//     an approval.
func (s *ProjectService) ApproveScene(sceneID string) (*model.SceneVerdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scene, ok := s.scenes[sceneID]
	if !ok {
		return nil, fmt.Errorf("unknown scene %s", sceneID)
	}
	verdict, ok := s.verdicts[sceneID]
	if !ok {
		return nil, fmt.Errorf("scene %s has no verdict to approve", sceneID)
	}
	if verdict.Status == model.VerdictRejected {
		return nil, fmt.Errorf("scene %s is rejected; approval requires a passing regeneration", sceneID)
	}

	scene.UserApproved = true
	scene.UserRejected = false
	verdict.UserApproved = true
	if verdict.Status == model.VerdictNeedsReview {
		verdict.Status = model.VerdictApproved
	}
	return verdict, nil
}

// RejectScene marks a scene as human-rejected. The rejection overrides any
// prior approval and forces the verdict to rejected.
func (s *ProjectService) RejectScene(sceneID string) (*model.SceneVerdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scene, ok := s.scenes[sceneID]
	if !ok {
		return nil, fmt.Errorf("unknown scene %s", sceneID)
	}
	scene.UserRejected = true
	scene.UserApproved = false

	verdict, ok := s.verdicts[sceneID]
	if !ok {
		verdict = model.NewPendingVerdict(sceneID)
		s.verdicts[sceneID] = verdict
	}
	if verdict.Status != model.VerdictPending {
		verdict.Status = model.VerdictRejected
	}
	verdict.UserApproved = false
	return verdict, nil
}

// EvaluateProject scores every scene of a project that has a current
// artifact, fanning the work out over the service's worker pool. Scenes
// without an artifact keep their pending verdict.
//
// Inputs:
//   - ctx: The Go context; cancellation stops workers from picking up new scenes.
//   - projectID: The project whose scenes are evaluated.
//   - evaluator: The evaluation pipeline (or a test fake).
//
// Outputs:
//   - *model.ProjectQualityReport: The report built from the refreshed verdicts.
//   - error: The first evaluation error encountered, if any.
func (s *ProjectService) EvaluateProject(ctx context.Context, projectID string, evaluator workflow.Evaluator) (*model.ProjectQualityReport, error) {
	s.mu.RLock()
	jobs := make([]*model.Scene, 0, len(s.projectScenes[projectID]))
	for _, id := range s.projectScenes[projectID] {
		scene := s.scenes[id]
		if scene.CurrentArtifact != nil {
			jobs = append(jobs, scene)
		}
	}
	s.mu.RUnlock()

	// Fan the scenes out over a fixed-size worker pool. Each worker pulls
	// from the shared channel until it is drained or the context dies.
	sceneChan := make(chan *model.Scene, len(jobs))
	for _, scene := range jobs {
		sceneChan <- scene
	}
	close(sceneChan)

	var wg sync.WaitGroup
	errOnce := sync.Once{}
	var firstErr error
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for scene := range sceneChan {
				if ctx.Err() != nil {
					return
				}
				verdict, err := evaluator.Evaluate(ctx, scene, scene.CurrentArtifact)
				if err != nil {
					errOnce.Do(func() { firstErr = err })
					continue
				}
				s.RecordVerdict(verdict)
			}
		}()
	}
	wg.Wait()

	return s.Report(projectID), firstErr
}

// Report joins the project's current verdicts into a quality report. Scenes
// never evaluated contribute pending verdicts, which block rendering.
func (s *ProjectService) Report(projectID string) *model.ProjectQualityReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	verdicts := make([]*model.SceneVerdict, 0, len(s.projectScenes[projectID]))
	for _, id := range s.projectScenes[projectID] {
		if v, ok := s.verdicts[id]; ok {
			verdicts = append(verdicts, v)
		} else {
			verdicts = append(verdicts, model.NewPendingVerdict(id))
		}
	}
	return quality.BuildReport(projectID, verdicts, s.policy)
}

// AuthorizeRender checks the project's current report against the gate.
//
// Inputs:
//   - projectID: The project asking to render.
//   - forceOverride: When true, every block except pending scenes is waived.
//
// Outputs:
//   - *model.ProjectQualityReport: The report the decision was based on.
//   - error: A *quality.PolicyViolationError when rendering stays blocked.
func (s *ProjectService) AuthorizeRender(projectID string, forceOverride bool) (*model.ProjectQualityReport, error) {
	report := s.Report(projectID)
	if err := quality.AuthorizeRender(report, forceOverride); err != nil {
		return report, err
	}
	return report, nil
}
