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

// Package services contains the business logic for interacting with data
// sources. This file defines the ArtifactService, which generates secure,
// time-limited URLs for reviewing generated artifacts stored in Google
// Cloud Storage (GCS). Reviewers see artifacts in a browser; the buckets
// themselves stay private.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"cloud.google.com/go/storage"
)

// ArtifactService encapsulates the clients and configuration needed to hand
// out review links for generated artifacts.
type ArtifactService struct {
	StorageClient *storage.Client                   // Client for interacting with Google Cloud Storage.
	IAMClient     *credentials.IamCredentialsClient // Client for interacting with IAM, used for signing URLs.
	SignerEmail   string                            // The service account email used to sign URLs.
}

// GenerateSignedURL creates a time-limited, secure URL to access a private
// GCS artifact. The URL is signed through the IAM Credentials API using the
// configured service account, so no local key material is needed.
//
// Inputs:
//   - ctx: The context for the request.
//   - gcsURI: The artifact URI (e.g., "gs://bucket/artifacts/scene/clip.mp4").
//   - expires: The duration for which the URL will be valid.
//
// Outputs:
//   - string: The generated signed URL.
//   - error: An error if parsing the URI or signing the URL fails.
func (s *ArtifactService) GenerateSignedURL(ctx context.Context, gcsURI string, expires time.Duration) (string, error) {
	// ---- 1. Parse the GCS URI ----
	// The URI needs to be broken down into its bucket and object components.
	// Example URI: gs://my-bucket/artifacts/scene-id/clip.mp4
	const prefix = "gs://"
	if !strings.HasPrefix(gcsURI, prefix) {
		return "", fmt.Errorf("invalid GCS URI format: %s", gcsURI)
	}
	path := strings.TrimPrefix(gcsURI, prefix)
	parts := strings.SplitN(path, "/", 2)
	if len(parts) < 2 {
		return "", fmt.Errorf("invalid GCS URI: unable to determine bucket and object from %s", gcsURI)
	}
	bucketName := parts[0]
	objectName := parts[1]

	// ---- 2. Define Signing Options ----
	// Configure the parameters for the V4 signing process. The SignBytes
	// callback delegates the actual signature to the IAM Credentials API,
	// which is the recommended approach when running on GCP infrastructure.
	opts := &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4, // Use the modern and more secure V4 signing scheme.
		Method:         "GET",                   // The URL will only be valid for GET requests.
		Expires:        time.Now().Add(expires), // Set the expiration time.
		GoogleAccessID: s.SignerEmail,
		SignBytes: func(b []byte) ([]byte, error) {
			req := &credentialspb.SignBlobRequest{
				Name:    fmt.Sprintf("projects/-/serviceAccounts/%s", s.SignerEmail),
				Payload: b, // The byte slice to be signed.
			}
			resp, err := s.IAMClient.SignBlob(ctx, req)
			if err != nil {
				return nil, fmt.Errorf("IAMClient.SignBlob: %w", err)
			}
			return resp.SignedBlob, nil
		},
	}

	// ---- 3. Generate and Return the URL ----
	u, err := s.StorageClient.Bucket(bucketName).SignedURL(objectName, opts)
	if err != nil {
		return "", fmt.Errorf("Bucket(%q).Object(%q).SignedURL: %w", bucketName, objectName, err)
	}
	return u, nil
}
