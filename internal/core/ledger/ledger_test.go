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

// Package ledger_test contains unit tests for the append-only attempt
// ledger: attempt numbering, history isolation, and the per-scene lock.
package ledger_test

import (
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-promo-quality/internal/core/ledger"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/model"
	"github.com/stretchr/testify/assert"
)

func attempt(sceneID string) *model.RegenerationAttempt {
	return &model.RegenerationAttempt{
		SceneID:      sceneID,
		Approach:     model.ApproachRetry,
		ProviderUsed: "veo",
		Outcome:      model.OutcomeFailed,
	}
}

func TestAppendAssignsSequentialNumbers(t *testing.T) {
	l := ledger.NewAttemptLedger()

	first := l.Append(attempt("scene-1"))
	second := l.Append(attempt("scene-1"))
	other := l.Append(attempt("scene-2"))

	assert.Equal(t, 0, first.AttemptNumber)
	assert.Equal(t, 1, second.AttemptNumber)
	// Numbering is per scene, not global.
	assert.Equal(t, 0, other.AttemptNumber)
}

func TestAppendStampsZeroTimestamp(t *testing.T) {
	l := ledger.NewAttemptLedger()

	stamped := l.Append(attempt("scene-1"))
	assert.False(t, stamped.Timestamp.IsZero())

	explicit := attempt("scene-1")
	explicit.Timestamp = time.Date(2024, 10, 11, 3, 4, 8, 0, time.UTC)
	kept := l.Append(explicit)
	assert.Equal(t, explicit.Timestamp, kept.Timestamp)
}

func TestHistoryReturnsIsolatedCopy(t *testing.T) {
	l := ledger.NewAttemptLedger()
	l.Append(attempt("scene-1"))
	l.Append(attempt("scene-1"))

	history := l.History("scene-1")
	assert.Len(t, history, 2)

	// Mutating the returned slice must not disturb the ledger.
	history[0] = nil
	fresh := l.History("scene-1")
	assert.NotNil(t, fresh[0])
	assert.Equal(t, 0, fresh[0].AttemptNumber)
}

func TestHistoryEmptyForUnknownScene(t *testing.T) {
	l := ledger.NewAttemptLedger()
	assert.Empty(t, l.History("never-seen"))
	assert.Equal(t, 0, l.Count("never-seen"))
}

func TestTotalForScenes(t *testing.T) {
	l := ledger.NewAttemptLedger()
	l.Append(attempt("scene-1"))
	l.Append(attempt("scene-1"))
	l.Append(attempt("scene-2"))

	assert.Equal(t, 3, l.TotalForScenes([]string{"scene-1", "scene-2"}))
	assert.Equal(t, 2, l.TotalForScenes([]string{"scene-1"}))
	assert.Equal(t, 0, l.TotalForScenes(nil))
}

func TestLockSceneSerializesSameScene(t *testing.T) {
	l := ledger.NewAttemptLedger()
	unlock := l.LockScene("scene-1")

	acquired := make(chan struct{})
	go func() {
		inner := l.LockScene("scene-1")
		close(acquired)
		inner()
	}()

	// The goroutine must not acquire the lock while we hold it.
	select {
	case <-acquired:
		t.Fatal("second lock acquired while first was held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired after unlock")
	}
}

func TestLockSceneIndependentScenes(t *testing.T) {
	l := ledger.NewAttemptLedger()
	unlock := l.LockScene("scene-1")
	defer unlock()

	done := make(chan struct{})
	go func() {
		other := l.LockScene("scene-2")
		other()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock for a different scene blocked")
	}
}
