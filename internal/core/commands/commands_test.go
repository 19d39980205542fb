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

// Package commands_test contains unit tests for the evaluation chain
// commands that run without cloud clients: the artifact trigger parser, the
// assessment JSON converter, and the verdict builder.
package commands_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/jaycherian/gcp-go-promo-quality/internal/core/commands"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/cor"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/model"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/quality"
	test "github.com/jaycherian/gcp-go-promo-quality/internal/testutil"
	"github.com/stretchr/testify/assert"
)

// mapResolver is a SceneResolver backed by a plain map.
type mapResolver map[string]*model.Scene

func (r mapResolver) ResolveScene(sceneID string) (*model.Scene, error) {
	if scene, ok := r[sceneID]; ok {
		return scene, nil
	}
	return nil, fmt.Errorf("unknown scene %s", sceneID)
}

func newChainContext(in any) cor.Context {
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(context.Background())
	if in != nil {
		chainCtx.Add(cor.CtxIn, in)
	}
	return chainCtx
}

func TestArtifactTriggerResolvesScene(t *testing.T) {
	scene := model.NewScene("proj", 0, model.SceneTypeStandard, model.MediaTypeVideo, model.ExpectedDescription{
		Narration: "a courier hands over a parcel",
	})
	cmd := commands.NewArtifactTriggerToScene("trigger", mapResolver{scene.ID: scene})

	chainCtx := newChainContext(test.GetTestArtifactMessageText(scene.ID))
	cmd.Execute(chainCtx)

	assert.False(t, chainCtx.HasErrors())
	assert.Equal(t, scene, chainCtx.Get(commands.GetSceneParamName()))

	artifact, ok := chainCtx.Get(commands.GetArtifactParamName()).(*model.ArtifactRef)
	assert.True(t, ok)
	assert.Equal(t, fmt.Sprintf("gs://promo_artifacts/artifacts/%s/clip-001.mp4", scene.ID), artifact.URI)
	assert.Equal(t, "video/mp4", artifact.MIMEType)
}

func TestArtifactTriggerRejectsNonArtifactPath(t *testing.T) {
	cmd := commands.NewArtifactTriggerToScene("trigger", mapResolver{})

	chainCtx := newChainContext(`{"bucket": "promo_artifacts", "name": "uploads/random.mp4", "contentType": "video/mp4"}`)
	cmd.Execute(chainCtx)

	assert.True(t, chainCtx.HasErrors())
	assert.Nil(t, chainCtx.Get(commands.GetSceneParamName()))
}

func TestArtifactTriggerUnknownSceneErrors(t *testing.T) {
	cmd := commands.NewArtifactTriggerToScene("trigger", mapResolver{})

	chainCtx := newChainContext(test.GetTestArtifactMessageText("never-registered"))
	cmd.Execute(chainCtx)

	assert.True(t, chainCtx.HasErrors())
}

func TestAssessmentJsonToStructValidates(t *testing.T) {
	raw, _ := json.Marshal(&model.Assessment{
		DimensionScores: map[model.DimensionName]float64{
			model.DimensionContentMatch: 120, // out of range, must be clamped
		},
	})
	cmd := commands.NewAssessmentJsonToStruct("convert")

	chainCtx := newChainContext(string(raw))
	cmd.Execute(chainCtx)

	assert.False(t, chainCtx.HasErrors())
	assessment, ok := chainCtx.Get(commands.GetAssessmentParamName()).(*model.Assessment)
	assert.True(t, ok)
	assert.Equal(t, 100.0, assessment.DimensionScores[model.DimensionContentMatch])
	assert.Len(t, assessment.DimensionScores, len(model.Dimensions))
}

func TestAssessmentJsonToStructMalformedIsOracleError(t *testing.T) {
	cmd := commands.NewAssessmentJsonToStruct("convert")

	chainCtx := newChainContext("this is not json")
	cmd.Execute(chainCtx)

	assert.True(t, chainCtx.HasErrors())
	var oracleErr *quality.ScoringOracleError
	found := false
	for _, err := range chainCtx.GetErrors() {
		if errors.As(err, &oracleErr) {
			found = true
		}
	}
	assert.True(t, found)
}

func TestVerdictBuilderDerivesVerdict(t *testing.T) {
	scene := model.NewScene("proj", 0, model.SceneTypeStandard, model.MediaTypeVideo, model.ExpectedDescription{
		Narration: "a courier hands over a parcel",
	})
	assessment := quality.ValidateAssessment(&model.Assessment{
		DimensionScores: map[model.DimensionName]float64{
			model.DimensionContentMatch:     95,
			model.DimensionFraming:          95,
			model.DimensionTechnicalQuality: 95,
			model.DimensionBrandCompliance:  95,
			model.DimensionCoherence:        95,
		},
	})

	cmd := commands.NewVerdictBuilder("build-verdict", quality.DefaultQualityPolicy())
	chainCtx := newChainContext(nil)
	chainCtx.Add(commands.GetSceneParamName(), scene)
	chainCtx.Add(commands.GetAssessmentParamName(), assessment)
	cmd.Execute(chainCtx)

	assert.False(t, chainCtx.HasErrors())
	verdict, ok := chainCtx.Get(commands.GetVerdictParamName()).(*model.SceneVerdict)
	assert.True(t, ok)
	assert.Equal(t, model.VerdictApproved, verdict.Status)
	assert.True(t, verdict.AutoApproved)
}
