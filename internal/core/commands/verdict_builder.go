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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// final command of the evaluation chain: deriving a verdict from the
// validated assessment.
//
// Logic Flow:
//  1. It retrieves the scene and the validated assessment from the context.
//  2. It calls the evaluator, which applies the hard-fail overrides and the
//     status derivation against the configured policy thresholds.
//  3. It places the resulting `model.SceneVerdict` into the context as the
//     chain's final output.
package commands

import (
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/cor"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/model"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/quality"
)

// VerdictBuilder is a command that turns a validated assessment into a scene
// verdict under the configured quality policy.
type VerdictBuilder struct {
	cor.BaseCommand
	policy quality.QualityPolicy // The thresholds applied during status derivation.
}

// NewVerdictBuilder is the constructor for the VerdictBuilder command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - policy: The quality policy whose thresholds drive the verdict.
//
// Outputs:
//   - *VerdictBuilder: A pointer to the newly instantiated command.
func NewVerdictBuilder(name string, policy quality.QualityPolicy) *VerdictBuilder {
	return &VerdictBuilder{BaseCommand: *cor.NewBaseCommand(name), policy: policy}
}

// IsExecutable requires both the scene and a validated assessment; without
// them there is nothing to judge.
func (s *VerdictBuilder) IsExecutable(context cor.Context) bool {
	return context != nil &&
		context.Get(GetSceneParamName()) != nil &&
		context.Get(GetAssessmentParamName()) != nil
}

// Execute contains the core logic for deriving the verdict.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution.
func (s *VerdictBuilder) Execute(context cor.Context) {
	scene := context.Get(GetSceneParamName()).(*model.Scene)
	assessment := context.Get(GetAssessmentParamName()).(*model.Assessment)

	verdict := quality.Evaluate(scene, assessment, s.policy)

	s.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(GetVerdictParamName(), verdict)
	context.Add(cor.CtxOut, verdict)
}
