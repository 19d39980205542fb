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

// Package generation defines the MediaGenerator boundary. This file contains
// the Vertex AI providers: an image provider backed by Imagen and a video
// provider backed by Veo, both reached through the genai client. Each
// provider carries its own rate limiter, since Vertex quotas are enforced
// per model family rather than per application.
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/jaycherian/gcp-go-promo-quality/internal/core/model"
)

// VertexImageProvider generates still images with an Imagen model and stores
// the result in the artifact bucket.
type VertexImageProvider struct {
	name      string
	client    *genai.Client // Client for Vertex AI.
	modelName string        // The Imagen model to invoke.
	store     *ArtifactStore
	limiter   *rate.Limiter // Request-per-second limiter for the model's quota.
}

// NewVertexImageProvider is the constructor for VertexImageProvider.
func NewVertexImageProvider(name string, client *genai.Client, modelName string, store *ArtifactStore, requestsPerSecond int) *VertexImageProvider {
	return &VertexImageProvider{
		name:      name,
		client:    client,
		modelName: modelName,
		store:     store,
		limiter:   rate.NewLimiter(rate.Every(time.Second), requestsPerSecond),
	}
}

// Name returns the provider identifier used in routing configuration.
func (p *VertexImageProvider) Name() string { return p.name }

// Generate produces one image for the request. Reference seeds are not
// supported by this provider; routing configuration marks it accordingly.
func (p *VertexImageProvider) Generate(ctx context.Context, req *Request) (*model.ArtifactRef, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := p.client.Models.GenerateImages(ctx, p.modelName, promptWithMotion(req), &genai.GenerateImagesConfig{
		NumberOfImages: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("imagen generation failed: %w", err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, errors.New("imagen returned an empty response")
	}

	return p.store.Put(ctx, req.Scene.ID, resp.GeneratedImages[0].Image.ImageBytes, model.MediaTypeImage)
}

// VertexVideoProvider generates short clips with a Veo model. Veo runs as a
// long-running operation, so Generate polls until the operation completes or
// the context deadline fires.
type VertexVideoProvider struct {
	name         string
	client       *genai.Client
	modelName    string        // The Veo model to invoke.
	store        *ArtifactStore
	limiter      *rate.Limiter
	pollInterval time.Duration // How often to poll the long-running operation.
}

// NewVertexVideoProvider is the constructor for VertexVideoProvider.
func NewVertexVideoProvider(name string, client *genai.Client, modelName string, store *ArtifactStore, requestsPerSecond int) *VertexVideoProvider {
	return &VertexVideoProvider{
		name:         name,
		client:       client,
		modelName:    modelName,
		store:        store,
		limiter:      rate.NewLimiter(rate.Every(time.Second), requestsPerSecond),
		pollInterval: 10 * time.Second,
	}
}

// Name returns the provider identifier used in routing configuration.
func (p *VertexVideoProvider) Name() string { return p.name }

// Generate produces one clip for the request. When a reference artifact is
// supplied it is passed to Veo as the seed image, which is what makes this
// provider eligible for reference-based regeneration.
func (p *VertexVideoProvider) Generate(ctx context.Context, req *Request) (*model.ArtifactRef, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var seed *genai.Image
	if req.Reference != nil {
		seed = &genai.Image{GCSURI: req.Reference.URI, MIMEType: req.Reference.MIMEType}
	}

	operation, err := p.client.Models.GenerateVideos(ctx, p.modelName, promptWithMotion(req), seed, &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("veo generation failed to start: %w", err)
	}

	// Poll the long-running operation until it completes. The registry's
	// deadline bounds the total wait through ctx.
	for !operation.Done {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.pollInterval):
		}
		operation, err = p.client.Operations.GetVideosOperation(ctx, operation, nil)
		if err != nil {
			return nil, fmt.Errorf("veo operation polling failed: %w", err)
		}
	}

	if operation.Response == nil || len(operation.Response.GeneratedVideos) == 0 || operation.Response.GeneratedVideos[0].Video == nil {
		return nil, errors.New("veo returned an empty response")
	}
	video := operation.Response.GeneratedVideos[0].Video

	// Veo may return bytes inline or a URI into its own staging bucket. When
	// only a URI comes back we keep it as the artifact ref directly.
	if len(video.VideoBytes) > 0 {
		return p.store.Put(ctx, req.Scene.ID, video.VideoBytes, model.MediaTypeVideo)
	}
	if video.URI != "" {
		return &model.ArtifactRef{URI: video.URI, MIMEType: video.MIMEType}, nil
	}
	return nil, errors.New("veo response contained neither bytes nor a URI")
}

// promptWithMotion folds the strategy's motion level into the prompt text.
// Providers are prompt-driven; lowering motion through wording is the only
// control that works uniformly across model families.
func promptWithMotion(req *Request) string {
	switch req.Motion {
	case model.MotionReduced:
		return req.Prompt + ", slow steady camera, limited motion"
	case model.MotionMinimal:
		return req.Prompt + ", static camera, single subject, minimal motion"
	default:
		return req.Prompt
	}
}
