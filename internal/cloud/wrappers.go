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

// Package cloud provides components for interacting with Google Cloud services.
// This file implements a wrapper around the standard Generative AI client.
// This wrapper uses the Decorator design pattern to add extra functionality
// to an existing object without altering its code. Specifically, it adds
// rate limiting and a retry mechanism to the scoring model.
//
// Why this is important:
//   - Rate Limiting: Services like Vertex AI have quotas on how many requests
//     you can make per minute. This wrapper prevents the application from
//     exceeding those limits, which would otherwise result in errors.
//   - Retry Logic: Network requests can sometimes fail for transient reasons.
//     The wrapper automatically retries a failed request, making the application
//     more resilient and reliable.
//
// Structs:
//   - QuotaAwareScoringModel: A struct that wraps the genai model handle
//     and adds a rate limiter.
//
// Functions:
//   - NewQuotaAwareModel: A constructor to create a new instance of the wrapped model.
//   - GenerateContent: An overridden method that intercepts calls to the AI model
//     to enforce rate limiting and retries.
package cloud

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// retryCountKey is the context key under which the current retry count is
// stored between recursive GenerateContent calls.
type retryCountKey struct{}

// QuotaAwareScoringModel is a decorator struct that wraps the genai model
// handle along with its generation settings to add rate-limiting
// capabilities. All scoring calls go through `GenerateContent`, which is
// where the rate-limit and retry logic lives.
type QuotaAwareScoringModel struct {
	GenerateConfig *genai.GenerateContentConfig // The generation settings applied to every call.
	ModelName      string                       // The Vertex AI model this wrapper invokes.
	ModelHandle    *genai.Models                // The underlying genai model handle.
	RateLimit      rate.Limiter                 // A rate limiter from Go's x/time module to control request frequency.
}

// NewQuotaAwareModel is a constructor function that creates a new
// QuotaAwareScoringModel. It takes the generation settings and a rate limit
// (in requests per second) and returns our enhanced, quota-aware model.
//
// Inputs:
//   - generateConfig: The generation settings to apply on each call.
//   - name: The Vertex AI model name to invoke.
//   - handle: The genai model handle from the client.
//   - requestsPerSecond: An integer specifying the maximum number of API calls allowed per second.
//
// Outputs:
//   - *QuotaAwareScoringModel: A pointer to the newly created wrapper.
func NewQuotaAwareModel(generateConfig *genai.GenerateContentConfig, name string, handle *genai.Models, requestsPerSecond int) *QuotaAwareScoringModel {
	return &QuotaAwareScoringModel{
		GenerateConfig: generateConfig,
		ModelName:      name,
		ModelHandle:    handle,
		// Creates a new rate limiter that allows a burst of `requestsPerSecond` events
		// and replenishes the "token bucket" at a rate of 1 token per second.
		RateLimit: *rate.NewLimiter(rate.Every(time.Second/1), requestsPerSecond),
	}
}

// GenerateContent invokes the wrapped model with the wrapper's generation
// settings. This is where the rate-limiting and retry logic is implemented.
//
// Logic Flow:
//  1. Check the rate limiter.
//  2. If a request is allowed:
//     a. Call the underlying `GenerateContent` method.
//     b. If it fails, check the retry count.
//     c. If retries are available, wait and recursively call itself to try again.
//     d. If no retries are left, return the error.
//  3. If a request is NOT allowed (rate-limited):
//     a. Wait for a short period.
//     b. Recursively call itself to re-queue the request.
//
// Inputs:
//   - ctx: The context for the request. It's used here to manage retry state.
//   - content: The parts of the multi-modal prompt (text, images, video).
//
// Outputs:
//   - *genai.GenerateContentResponse: The response from the AI model if successful.
//   - error: An error if the request fails after all retries or if another issue occurs.
func (q *QuotaAwareScoringModel) GenerateContent(ctx context.Context, content []*genai.Content) (resp *genai.GenerateContentResponse, err error) {
	// The `Allow()` method checks if an event can happen now. It's a non-blocking check.
	if !q.RateLimit.Allow() {
		// If the rate limiter did not allow the request, wait for 5 seconds.
		// This pauses the execution of this specific request, effectively "queueing" it.
		time.Sleep(time.Second * 5)
		// After waiting, recursively call this function to try obtaining a token again.
		return q.GenerateContent(ctx, content)
	}

	resp, err = q.ModelHandle.GenerateContent(ctx, q.ModelName, content, q.GenerateConfig)
	if err != nil {
		// If an error occurred during the API call, start the retry logic.
		// Get the current retry count from the context. `Value()` returns an
		// interface{}, so we must type-assert it to an `int`.
		retryCount, ok := ctx.Value(retryCountKey{}).(int)
		if !ok {
			// This is the first attempt.
			retryCount = 0
		}
		if retryCount >= MaxRetries {
			// If we have exceeded the maximum number of retries, give up and return an error.
			return nil, errors.New("failed generation on max retries")
		}
		// If more retries are allowed, create a new context with an incremented retry count.
		errCtx := context.WithValue(ctx, retryCountKey{}, retryCount+1)
		// Wait before retrying to give the service time to recover.
		time.Sleep(time.Second * 30)
		// Recursively call this function to try again.
		return q.GenerateContent(errCtx, content)
	}
	// If the API call was successful, return the response and a nil error.
	return resp, err
}
