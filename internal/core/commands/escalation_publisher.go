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
// command that hands an exhausted scene to the human review queue.
//
// Logic Flow:
// When the regeneration ladder reaches its terminal tier, the orchestrator
// builds an `model.EscalationNotice` carrying the full attempt history and
// the final assessment. This command publishes that notice to a Pub/Sub
// topic, where the review tooling subscribes.
//
//  1. It retrieves the `model.EscalationNotice` from the context.
//  2. It marshals the notice to JSON.
//  3. It publishes the message and blocks on the server acknowledgement, so
//     a lost notice surfaces as a chain error instead of disappearing.
package commands

import (
	"encoding/json"
	"fmt"
	"log"

	"cloud.google.com/go/pubsub"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/cor"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/model"
)

// EscalationPublisher is a command that publishes escalation notices to the
// review queue topic.
type EscalationPublisher struct {
	cor.BaseCommand
	topic           *pubsub.Topic // The review queue topic.
	escalationParam string        // The context key for the input `model.EscalationNotice`.
}

// NewEscalationPublisher is the constructor for the EscalationPublisher command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - topic: The Pub/Sub topic the review tooling subscribes to.
//   - escalationParam: The name of the context parameter holding the notice to publish.
//
// Outputs:
//   - *EscalationPublisher: A pointer to the newly instantiated command.
func NewEscalationPublisher(name string, topic *pubsub.Topic, escalationParam string) *EscalationPublisher {
	return &EscalationPublisher{BaseCommand: *cor.NewBaseCommand(name), topic: topic, escalationParam: escalationParam}
}

// IsExecutable overrides the default behavior to ensure that the notice to
// publish exists in the context before execution.
func (s *EscalationPublisher) IsExecutable(context cor.Context) bool {
	return context != nil && context.Get(s.escalationParam) != nil
}

// Execute contains the core logic for publishing the escalation notice.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution.
func (s *EscalationPublisher) Execute(context cor.Context) {
	notice := context.Get(s.escalationParam).(*model.EscalationNotice)

	payload, err := json.Marshal(notice)
	if err != nil {
		s.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(s.GetName(), fmt.Errorf("failed to marshal escalation notice for scene %s: %w", notice.SceneID, err))
		return
	}

	// Publish and wait for the server to confirm delivery. The Get call
	// blocks until the message is durably accepted by Pub/Sub.
	result := s.topic.Publish(context.GetContext(), &pubsub.Message{Data: payload})
	if _, err := result.Get(context.GetContext()); err != nil {
		s.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(s.GetName(), fmt.Errorf("failed to publish escalation for scene %s: %w", notice.SceneID, err))
		return
	}

	s.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(cor.CtxOut, notice)
	log.Printf("escalated scene %s to the review queue", notice.SceneID)
}
