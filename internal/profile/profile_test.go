package profile_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/mindmirror/mindmirror/internal/profile"
	"github.com/mindmirror/mindmirror/internal/testutil"
	"github.com/mindmirror/mindmirror/internal/trait"
)

func setupStore(t *testing.T) *profile.Store {
	t.Helper()
	tdb, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)
	return profile.New(tdb.Pool, testutil.DiscardLogger())
}

func TestGetNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	store := setupStore(t)

	_, err := store.Get(context.Background(), uuid.New(), trait.KindSocial)
	if !errors.Is(err, profile.ErrNotFound) {
		t.Fatalf("Get() on empty store error = %v, want ErrNotFound", err)
	}
}

func TestUpsertAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	store := setupStore(t)
	ctx := context.Background()
	userID := uuid.New()

	rec := &trait.Record{
		UserID:        userID,
		Kind:          trait.KindSocial,
		Fields:        map[string]any{"empathy": 0.7, "extraversion": nil},
		EvidenceCount: 1,
	}
	if err := store.Upsert(ctx, rec, 0); err != nil {
		t.Fatalf("Upsert() unexpected error: %v", err)
	}
	if rec.CreatedAt.IsZero() || rec.UpdatedAt.IsZero() {
		t.Error("Upsert() did not backfill timestamps")
	}

	got, err := store.Get(ctx, userID, trait.KindSocial)
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if got.EvidenceCount != 1 {
		t.Errorf("evidence count = %d, want 1", got.EvidenceCount)
	}
	if got.Fields["empathy"] != 0.7 {
		t.Errorf("fields = %v, want empathy 0.7", got.Fields)
	}
	if v, ok := got.Fields["extraversion"]; !ok || v != nil {
		t.Errorf("extraversion = %v (present=%v), want stored null", v, ok)
	}
	if got.Accuracy() != 0.04 {
		t.Errorf("Accuracy() = %v, want 0.04 for one synthesis", got.Accuracy())
	}
}

func TestUpsertReplacesWholesale(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	store := setupStore(t)
	ctx := context.Background()
	userID := uuid.New()

	first := &trait.Record{
		UserID:        userID,
		Kind:          trait.KindSocial,
		Fields:        map[string]any{"empathy": 0.3, "altruism": 0.9},
		EvidenceCount: 1,
	}
	if err := store.Upsert(ctx, first, 0); err != nil {
		t.Fatalf("Upsert() unexpected error: %v", err)
	}

	// The second write drops altruism entirely; no field-level merge.
	second := &trait.Record{
		UserID:        userID,
		Kind:          trait.KindSocial,
		Fields:        map[string]any{"empathy": 0.8},
		EvidenceCount: 2,
	}
	if err := store.Upsert(ctx, second, 1); err != nil {
		t.Fatalf("Upsert() unexpected error: %v", err)
	}

	got, err := store.Get(ctx, userID, trait.KindSocial)
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if got.EvidenceCount != 2 {
		t.Errorf("evidence count = %d, want 2", got.EvidenceCount)
	}
	if got.Fields["empathy"] != 0.8 {
		t.Errorf("empathy = %v, want 0.8", got.Fields["empathy"])
	}
	if _, ok := got.Fields["altruism"]; ok {
		t.Error("altruism survived a wholesale replace")
	}
}

func TestUpsertConflict(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	store := setupStore(t)
	ctx := context.Background()
	userID := uuid.New()

	base := &trait.Record{
		UserID:        userID,
		Kind:          trait.KindSocial,
		Fields:        map[string]any{"empathy": 0.5},
		EvidenceCount: 1,
	}
	if err := store.Upsert(ctx, base, 0); err != nil {
		t.Fatalf("Upsert() unexpected error: %v", err)
	}

	// A writer that read count 0 before the commit above must lose.
	stale := &trait.Record{
		UserID:        userID,
		Kind:          trait.KindSocial,
		Fields:        map[string]any{"empathy": 0.9},
		EvidenceCount: 1,
	}
	err := store.Upsert(ctx, stale, 0)
	if !errors.Is(err, profile.ErrConflict) {
		t.Fatalf("Upsert() with stale expected count error = %v, want ErrConflict", err)
	}

	// The stored record is unchanged.
	got, err := store.Get(ctx, userID, trait.KindSocial)
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if got.Fields["empathy"] != 0.5 || got.EvidenceCount != 1 {
		t.Errorf("record changed after rejected write: %+v", got)
	}
}

func TestUpsertRejectsInvalidFields(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	store := setupStore(t)

	rec := &trait.Record{
		UserID:        uuid.New(),
		Kind:          trait.KindSocial,
		Fields:        map[string]any{"empathy": 2.0},
		EvidenceCount: 1,
	}
	err := store.Upsert(context.Background(), rec, 0)
	if !errors.Is(err, trait.ErrInvalidFields) {
		t.Fatalf("Upsert() with out-of-range field error = %v, want ErrInvalidFields", err)
	}
}

func TestGetBundle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	store := setupStore(t)
	ctx := context.Background()
	userID := uuid.New()

	// Empty bundle for a fresh user.
	bundle, err := store.GetBundle(ctx, userID)
	if err != nil {
		t.Fatalf("GetBundle() unexpected error: %v", err)
	}
	if len(bundle) != 0 {
		t.Errorf("GetBundle() for fresh user = %d records, want 0", len(bundle))
	}

	for _, kind := range []trait.Kind{trait.KindSocial, trait.KindHumor} {
		specs, err := trait.Fields(kind)
		if err != nil {
			t.Fatalf("Fields() unexpected error: %v", err)
		}
		fields := map[string]any{}
		for _, spec := range specs {
			if spec.Type == trait.FieldFloat {
				fields[spec.Name] = 0.5
				break
			}
		}
		rec := &trait.Record{UserID: userID, Kind: kind, Fields: fields, EvidenceCount: 1}
		if err := store.Upsert(ctx, rec, 0); err != nil {
			t.Fatalf("Upsert(%s) unexpected error: %v", kind, err)
		}
	}
	// Another user's record must not appear in the bundle.
	other := &trait.Record{
		UserID:        uuid.New(),
		Kind:          trait.KindSocial,
		Fields:        map[string]any{"empathy": 0.1},
		EvidenceCount: 1,
	}
	if err := store.Upsert(ctx, other, 0); err != nil {
		t.Fatalf("Upsert() unexpected error: %v", err)
	}

	bundle, err = store.GetBundle(ctx, userID)
	if err != nil {
		t.Fatalf("GetBundle() unexpected error: %v", err)
	}
	if len(bundle) != 2 {
		t.Fatalf("GetBundle() = %d records, want 2", len(bundle))
	}
	for _, kind := range []trait.Kind{trait.KindSocial, trait.KindHumor} {
		rec, ok := bundle[kind]
		if !ok {
			t.Errorf("bundle missing kind %s", kind)
			continue
		}
		if rec.UserID != userID || rec.Kind != kind {
			t.Errorf("bundle[%s] = %+v, want matching user and kind", kind, rec)
		}
	}
}
