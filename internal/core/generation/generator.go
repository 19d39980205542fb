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

// Package generation defines the MediaGenerator boundary: the capability-
// addressable registry of media providers the regeneration orchestrator
// draws from. Providers differ wildly in latency and failure semantics, so
// the registry normalizes them behind a single Generate call with a uniform
// timeout, and wraps every failure in a GenerationProviderError so the
// orchestrator can treat provider errors exactly like quality failures.
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jaycherian/gcp-go-promo-quality/internal/core/model"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/quality"
)

// Request carries everything a provider needs for one generation call. Only
// the fields relevant to the chosen strategy are populated.
type Request struct {
	Scene     *model.Scene       // The scene the artifact is for.
	Prompt    string             // The prompt to generate from (possibly simplified).
	Reference *model.ArtifactRef // Optional seed artifact for reference-based generation.
	Motion    model.MotionLevel  // Requested motion/complexity level.
}

// Generator is one media provider. Implementations must honor context
// cancellation and return quickly once the deadline passes; the registry
// enforces the deadline but cannot interrupt a provider that ignores it.
type Generator interface {
	// Name returns the provider identifier used in routing configuration.
	Name() string

	// Generate produces one artifact for the request or fails. A nil error
	// implies a non-nil artifact ref.
	Generate(ctx context.Context, req *Request) (*model.ArtifactRef, error)
}

// Registry holds the registered providers and applies the per-call timeout.
type Registry struct {
	providers map[string]Generator
	timeout   time.Duration // Applied to every Generate call.
}

// NewRegistry is the constructor for Registry.
//
// Inputs:
//   - timeout: The per-call deadline. Zero disables the deadline.
//
// Outputs:
//   - *Registry: An empty registry.
func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{
		providers: make(map[string]Generator),
		timeout:   timeout,
	}
}

// Register adds a provider under its own name. Registering the same name
// twice replaces the earlier provider.
func (r *Registry) Register(g Generator) *Registry {
	r.providers[g.Name()] = g
	return r
}

// Names returns the registered provider names, for diagnostics.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	return out
}

// Generate invokes the named provider with the registry's timeout. A timeout
// is indistinguishable from any other provider failure by design: the
// regeneration ladder treats both as a failed attempt.
//
// Inputs:
//   - ctx: The caller's context; cancellation aborts the wait.
//   - providerName: The provider selected by the strategy engine.
//   - req: The generation request.
//
// Outputs:
//   - *model.ArtifactRef: The generated artifact on success.
//   - error: A *quality.GenerationProviderError on any failure.
func (r *Registry) Generate(ctx context.Context, providerName string, req *Request) (*model.ArtifactRef, error) {
	provider, ok := r.providers[providerName]
	if !ok {
		return nil, &quality.GenerationProviderError{
			Provider: providerName,
			Err:      errors.New("provider not registered"),
		}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	artifact, err := provider.Generate(ctx, req)
	if err != nil {
		return nil, &quality.GenerationProviderError{Provider: providerName, Err: err}
	}
	if artifact == nil {
		return nil, &quality.GenerationProviderError{
			Provider: providerName,
			Err:      fmt.Errorf("provider returned no artifact for scene %s", req.Scene.ID),
		}
	}
	artifact.Provider = providerName
	return artifact, nil
}
