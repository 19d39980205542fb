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

// Package ledger provides the append-only attempt ledger: one ordered row
// per regeneration attempt per scene. The ledger is the strategy engine's
// only memory. Attempts are never mutated or deleted, and attempt numbers
// are assigned from the history length at append time rather than carried by
// callers.
//
// Concurrency: the ledger is safe for concurrent writers across different
// scenes. Writes for the same scene are serialized by the same per-scene
// lock that guards the scene's regeneration loop, which callers acquire via
// LockScene.
package ledger

import (
	"sync"
	"time"

	"github.com/jaycherian/gcp-go-promo-quality/internal/core/model"
)

// AttemptLedger is the in-memory ledger implementation. A BigQuery audit
// trail is written separately by the persistence command; this structure is
// the source of truth for strategy decisions.
type AttemptLedger struct {
	mu       sync.RWMutex
	attempts map[string][]*model.RegenerationAttempt // Ordered history per scene ID.

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex // Per-scene regeneration locks.
}

// NewAttemptLedger is the constructor for AttemptLedger.
//
// Outputs:
//   - *AttemptLedger: An empty, ready-to-use ledger.
func NewAttemptLedger() *AttemptLedger {
	return &AttemptLedger{
		attempts: make(map[string][]*model.RegenerationAttempt),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Append records one attempt at the end of a scene's history. The attempt
// number is assigned from the current history length, and a zero timestamp
// is stamped with the current time.
//
// Inputs:
//   - attempt: The attempt to record. SceneID must be set.
//
// Outputs:
//   - *model.RegenerationAttempt: The recorded attempt with its assigned
//     attempt number.
func (l *AttemptLedger) Append(attempt *model.RegenerationAttempt) *model.RegenerationAttempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	attempt.AttemptNumber = len(l.attempts[attempt.SceneID])
	if attempt.Timestamp.IsZero() {
		attempt.Timestamp = time.Now()
	}
	l.attempts[attempt.SceneID] = append(l.attempts[attempt.SceneID], attempt)
	return attempt
}

// History returns a copy of the ordered attempt history for a scene. The
// copy protects the ledger's append-only guarantee from caller mutation of
// the slice; the rows themselves are shared and must be treated as immutable.
func (l *AttemptLedger) History(sceneID string) []*model.RegenerationAttempt {
	l.mu.RLock()
	defer l.mu.RUnlock()
	history := l.attempts[sceneID]
	out := make([]*model.RegenerationAttempt, len(history))
	copy(out, history)
	return out
}

// Count returns the number of attempts recorded for a scene.
func (l *AttemptLedger) Count(sceneID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.attempts[sceneID])
}

// TotalForScenes sums the attempt counts across a set of scenes. The
// orchestrator uses it to enforce the project-level attempt budget.
func (l *AttemptLedger) TotalForScenes(sceneIDs []string) (total int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, id := range sceneIDs {
		total += len(l.attempts[id])
	}
	return total
}

// LockScene acquires the per-scene regeneration lock and returns the unlock
// function. No two regeneration loops for the same scene may run
// concurrently; this lock enforces that rather than relying on caller
// discipline.
//
// Inputs:
//   - sceneID: The scene whose loop is starting.
//
// Outputs:
//   - func(): The unlock function, to be deferred by the caller.
func (l *AttemptLedger) LockScene(sceneID string) func() {
	l.lockMu.Lock()
	lock, ok := l.locks[sceneID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[sceneID] = lock
	}
	l.lockMu.Unlock()

	lock.Lock()
	return lock.Unlock
}
