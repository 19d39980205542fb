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
// the ArtifactStore, which writes provider output bytes to the artifact
// bucket and hands back an opaque ArtifactRef. The store sniffs the real
// content type of the bytes before upload: providers occasionally return
// error pages or truncated payloads with a confident MIME header, and a
// non-media blob must fail here rather than reach the scorer.
package generation

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/jaycherian/gcp-go-promo-quality/internal/core/model"
)

// ArtifactStore writes generated media to a GCS bucket.
type ArtifactStore struct {
	client *storage.Client // Client for Google Cloud Storage.
	bucket string          // Destination bucket for generated artifacts.
}

// NewArtifactStore is the constructor for ArtifactStore.
//
// Inputs:
//   - client: An authenticated GCS client.
//   - bucket: The bucket generated artifacts are written to.
//
// Outputs:
//   - *ArtifactStore: The configured store.
func NewArtifactStore(client *storage.Client, bucket string) *ArtifactStore {
	return &ArtifactStore{client: client, bucket: bucket}
}

// Put sniffs, validates, and uploads one artifact's bytes, returning the ref
// the rest of the system treats as opaque.
//
// Inputs:
//   - ctx: The context for the upload.
//   - sceneID: The scene the artifact belongs to; used in the object path.
//   - data: The raw media bytes from the provider.
//   - mediaType: The media type the scene expects, used to validate the sniff.
//
// Outputs:
//   - *model.ArtifactRef: The stored artifact's reference.
//   - error: An error when the bytes are not the expected kind of media or
//     the upload fails.
func (s *ArtifactStore) Put(ctx context.Context, sceneID string, data []byte, mediaType model.MediaType) (*model.ArtifactRef, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("provider returned zero bytes for scene %s", sceneID)
	}

	kind, err := filetype.Match(data)
	if err != nil {
		return nil, fmt.Errorf("failed to sniff artifact content type: %w", err)
	}
	switch mediaType {
	case model.MediaTypeImage:
		if !filetype.IsImage(data) {
			return nil, fmt.Errorf("expected an image artifact but got %q", kind.MIME.Value)
		}
	case model.MediaTypeVideo:
		if !filetype.IsVideo(data) {
			return nil, fmt.Errorf("expected a video artifact but got %q", kind.MIME.Value)
		}
	}

	objectName := fmt.Sprintf("artifacts/%s/%s.%s", sceneID, uuid.NewString(), kind.Extension)
	writer := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	writer.ContentType = kind.MIME.Value
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("failed to write artifact to bucket: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize artifact upload: %w", err)
	}

	return &model.ArtifactRef{
		URI:      fmt.Sprintf("gs://%s/%s", s.bucket, objectName),
		MIMEType: kind.MIME.Value,
	}, nil
}
