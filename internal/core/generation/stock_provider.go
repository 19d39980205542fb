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
// the stock-footage provider: the terminal fallback of the regeneration
// ladder. It does not generate anything; it picks the best-tagged clip from
// a curated stock library bucket, where objects are organized by content tag
// prefix (e.g. stock/outdoor/hiking-01.mp4).
package generation

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/jaycherian/gcp-go-promo-quality/internal/core/model"
)

// StockFootageProvider serves pre-licensed clips from a GCS stock library.
type StockFootageProvider struct {
	name   string
	client *storage.Client
	bucket string // The stock library bucket.
	prefix string // Root prefix within the bucket, e.g. "stock/".
}

// NewStockFootageProvider is the constructor for StockFootageProvider.
func NewStockFootageProvider(name string, client *storage.Client, bucket, prefix string) *StockFootageProvider {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &StockFootageProvider{name: name, client: client, bucket: bucket, prefix: prefix}
}

// Name returns the provider identifier used in routing configuration.
func (p *StockFootageProvider) Name() string { return p.name }

// Generate selects the first library object whose tag prefix matches one of
// the scene's content tags, falling back to the library root when no tag
// matches. Stock clips are already encoded and licensed, so the object is
// referenced in place rather than copied.
func (p *StockFootageProvider) Generate(ctx context.Context, req *Request) (*model.ArtifactRef, error) {
	prefixes := make([]string, 0, len(req.Scene.Expected.ContentTags)+1)
	for _, tag := range req.Scene.Expected.ContentTags {
		prefixes = append(prefixes, p.prefix+strings.ToLower(tag)+"/")
	}
	prefixes = append(prefixes, p.prefix)

	for _, prefix := range prefixes {
		it := p.client.Bucket(p.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
		for {
			attrs, err := it.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("failed to list stock library %q: %w", prefix, err)
			}
			if !matchesMediaType(attrs.ContentType, req.Scene.MediaType) {
				continue
			}
			return &model.ArtifactRef{
				URI:      fmt.Sprintf("gs://%s/%s", p.bucket, attrs.Name),
				MIMEType: attrs.ContentType,
			}, nil
		}
	}
	return nil, fmt.Errorf("no stock footage available for scene %s", req.Scene.ID)
}

// matchesMediaType checks a library object's content type against the kind
// of media the scene expects.
func matchesMediaType(contentType string, mt model.MediaType) bool {
	switch mt {
	case model.MediaTypeImage:
		return strings.HasPrefix(contentType, "image/")
	case model.MediaTypeVideo:
		return strings.HasPrefix(contentType, "video/")
	}
	return true
}
