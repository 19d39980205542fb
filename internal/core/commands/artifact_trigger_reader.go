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
// initial command of the pub/sub-triggered evaluation workflow.
//
// Logic Flow:
// This command serves as the entry point for evaluations triggered by an
// artifact landing in the artifact bucket. GCS publishes a detailed
// notification message to a Pub/Sub topic when a new object is created.
// This command parses that message and turns it into the scene and artifact
// the rest of the chain operates on.
//
//  1. The command receives the raw Pub/Sub message data as a JSON string from the context.
//  2. It unmarshals this JSON string into a `cloud.GCSPubSubNotification` struct.
//  3. It extracts the scene ID from the object path. Artifacts are written
//     under "artifacts/<sceneID>/<file>", so the second path segment
//     identifies the scene.
//  4. It resolves the scene through the attached SceneResolver.
//  5. It places the scene and the artifact reference into the context under
//     their well-known keys for the scoring command to pick up.
package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jaycherian/gcp-go-promo-quality/internal/cloud"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/cor"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/model"
)

// SceneResolver looks up a scene by its ID. The project service implements
// this; the command depends on the narrow interface so the commands package
// stays free of service wiring.
type SceneResolver interface {
	ResolveScene(sceneID string) (*model.Scene, error)
}

// ArtifactTriggerToScene is a command that parses a GCS Pub/Sub notification
// for a newly written artifact and resolves the scene it belongs to.
type ArtifactTriggerToScene struct {
	cor.BaseCommand
	resolver SceneResolver // Resolves scene IDs extracted from object paths.
}

// NewArtifactTriggerToScene is the constructor for the ArtifactTriggerToScene command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - resolver: The scene lookup used to turn object paths into scenes.
//
// Outputs:
//   - *ArtifactTriggerToScene: A pointer to the newly instantiated command.
func NewArtifactTriggerToScene(name string, resolver SceneResolver) *ArtifactTriggerToScene {
	return &ArtifactTriggerToScene{BaseCommand: *cor.NewBaseCommand(name), resolver: resolver}
}

// Execute contains the core logic for parsing the GCS notification message
// and resolving the scene under evaluation.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution, containing
//     the raw message data in the input parameter.
func (c *ArtifactTriggerToScene) Execute(context cor.Context) {
	// Retrieve the raw JSON message string from the context.
	in := context.Get(c.GetInputParam()).(string)

	// Parse the JSON string into the GCSPubSubNotification struct.
	var out cloud.GCSPubSubNotification
	err := json.Unmarshal([]byte(in), &out)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to unmarshal GCS notification: %w", err))
		return
	}

	// Artifacts are laid out as "artifacts/<sceneID>/<file>"; anything else
	// in the bucket is not an evaluation trigger.
	parts := strings.Split(out.Name, "/")
	if len(parts) < 3 || parts[0] != "artifacts" {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("object %q is not an artifact path", out.Name))
		return
	}
	sceneID := parts[1]

	scene, err := c.resolver.ResolveScene(sceneID)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to resolve scene %s: %w", sceneID, err))
		return
	}

	artifact := &model.ArtifactRef{
		URI:      fmt.Sprintf("gs://%s/%s", out.Bucket, out.Name),
		MIMEType: out.ContentType,
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)

	// Keep the simplified GCS object available for any command that needs
	// the raw location, then publish the scene and artifact under their
	// well-known keys.
	context.Add(cloud.GetGCSObjectName(), &cloud.GCSObject{Bucket: out.Bucket, Name: out.Name, MIMEType: out.ContentType})
	context.Add(GetSceneParamName(), scene)
	context.Add(GetArtifactParamName(), artifact)
	context.Add(c.GetOutputParam(), artifact)
}
