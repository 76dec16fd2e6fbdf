package profile

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/mindmirror/mindmirror/internal/cache"
	"github.com/mindmirror/mindmirror/internal/trait"
)

// BundleView serves the full characteristics bundle through the cache
// layer. Reads populate on miss; the accumulation flow invalidates the
// entry whenever a synthesis commits, so a cached bundle is at most one
// TTL stale and never survives a write.
type BundleView struct {
	store *Store
	layer *cache.Layer
}

// NewBundleView creates the cached bundle reader.
func NewBundleView(store *Store, layer *cache.Layer) *BundleView {
	return &BundleView{store: store, layer: layer}
}

// Get returns every live characteristic for the user, keyed by kind,
// serving from cache when possible.
func (v *BundleView) Get(ctx context.Context, userID uuid.UUID) (map[trait.Kind]*trait.Record, error) {
	data, err := v.layer.GetOrLoad(ctx, cache.FamilyBundle, userID.String(), func(ctx context.Context) ([]byte, error) {
		bundle, err := v.store.GetBundle(ctx, userID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(bundle)
	})
	if err != nil {
		return nil, err
	}

	var bundle map[trait.Kind]*trait.Record
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("decoding cached bundle: %w", err)
	}
	if bundle == nil {
		bundle = make(map[trait.Kind]*trait.Record)
	}
	return bundle, nil
}
