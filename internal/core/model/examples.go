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

// Package model defines the data structures for the application. This file,
// `examples.go`, provides factory functions for creating hardcoded, example
// instances of the data models.
//
// These example objects are crucial for "few-shot" prompting with the
// vision scoring model. By embedding a concrete example of the desired JSON
// output structure in the scoring prompt, we guide the model to return data
// that is consistent, correctly formatted, and easily parsable.
package model

// GetExampleAssessment creates a sample Assessment object. It is serialized
// into the scoring prompt so the vision model knows the exact JSON shape to
// return: one score per rubric dimension, a matched-elements list, and a
// structured issue list.
//
// Outputs:
//   - *Assessment: A pointer to a hardcoded Assessment object.
func GetExampleAssessment() *Assessment {
	return &Assessment{
		DimensionScores: map[DimensionName]float64{
			DimensionContentMatch:     82,
			DimensionFraming:          90,
			DimensionTechnicalQuality: 74,
			DimensionBrandCompliance:  95,
			DimensionCoherence:        88,
		},
		MatchedElements: []string{"product bottle", "kitchen counter", "overlay text"},
		Issues: []*Issue{
			{
				Category:    IssueTechnicalQuality,
				Severity:    SeverityMajor,
				Description: "Visible warping on the label in the final second of the clip.",
			},
			{
				Category:    IssueCoherence,
				Severity:    SeverityMinor,
				Description: "Lighting shifts between the first and second shot.",
			},
		},
		ImprovedPrompt: "A glass bottle of citrus soda on a sunlit kitchen counter, static camera, soft morning light",
	}
}

// GetExampleExpectedDescription creates a sample ExpectedDescription used in
// tests and in the scoring prompt preamble that explains what the scene was
// supposed to contain.
//
// Outputs:
//   - ExpectedDescription: A hardcoded expected description for a hook scene.
func GetExampleExpectedDescription() ExpectedDescription {
	return ExpectedDescription{
		Narration:        "Meet the last water bottle you'll ever buy.",
		RequiredElements: []string{"steel water bottle", "hiking trail"},
		OverlayText:      "NEVER BUY PLASTIC AGAIN",
		Framing:          FramingCloseUp,
		ContentTags:      []string{"product", "outdoor"},
	}
}
