package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/google/uuid"

	sb "github.com/goliatone/go-stratabase"
	"github.com/goliatone/go-stratabase/pkg/state"
)

var objectID = uuid.MustParse("0b7f8a52-5d0e-4c1e-9a43-5f2d8f6a0001")

func userRef(id string) state.Ref {
	return state.Ref{
		Domain: "notifications",
		Scope:  sb.NewScope("user", sb.ScopePriorityUser, sb.WithScopeMetadata(map[string]any{"user_id": id})),
	}
}

func TestStoreSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	store, err := Open(path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	ctx := context.Background()
	updated := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	saved, err := store.Save(ctx, userRef("u1"), state.Layer{
		objectID: {"email": true, "digest": "weekly"},
	}, state.Meta{SnapshotID: "s1", ETag: "v1", UpdatedAt: updated, Extra: map[string]string{"by": "ops"}})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	assert.Equal(t, saved.ETag, "v1")
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })
	layer, meta, ok, err := reopened.Load(ctx, userRef("u1"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assert.Equal(t, ok, true)
	assert.Equal(t, meta.SnapshotID, "s1")
	assert.Equal(t, meta.ETag, "v1")
	assert.Equal(t, meta.UpdatedAt.Equal(updated), true)
	assert.Equal(t, meta.Extra["by"], "ops")
	assert.Equal(t, layer[objectID]["email"], true)
	assert.Equal(t, layer[objectID]["digest"], "weekly")
	assert.Equal(t, reopened.Path(), path)
}

func TestStoreMissingAndOverwrite(t *testing.T) {
	store, err := Open("")
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()
	store.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	_, _, ok, err := store.Load(ctx, userRef("nobody"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assert.Equal(t, ok, false)

	first, err := store.Save(ctx, userRef("u2"), state.Layer{objectID: {"n": 1}}, state.Meta{ETag: "a"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	assert.Equal(t, first.UpdatedAt.Year(), 2025)
	if _, err := store.Save(ctx, userRef("u2"), state.Layer{objectID: {"n": 2}}, state.Meta{ETag: "b"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	layer, meta, _, err := store.Load(ctx, userRef("u2"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assert.Equal(t, layer[objectID]["n"], 2)
	assert.Equal(t, meta.ETag, "b")
	assert.Equal(t, meta.Extra == nil, true)

	keys, err := store.Keys(ctx, "notifications")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	assert.Equal(t, keys, []string{"user/u2/notifications"})

	removed, err := store.Delete(ctx, userRef("u2"))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	assert.Equal(t, removed, true)
	removed, _ = store.Delete(ctx, userRef("u2"))
	assert.Equal(t, removed, false)
}

func TestStoreRejectsUnkeyableRefs(t *testing.T) {
	store, err := Open("")
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	bad := state.Ref{Domain: "d", Scope: sb.NewScope("user", 1)}
	if _, err := store.Save(context.Background(), bad, state.Layer{}, state.Meta{}); err == nil {
		t.Fatalf("expected missing user_id error")
	}
}

func TestResolverOverSQLite(t *testing.T) {
	store, err := Open("")
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()
	system := state.Ref{Domain: "notifications", Scope: sb.NewScope(state.SystemScope, 0)}
	if _, err := store.Save(ctx, system, state.Layer{objectID: {"digest": "daily", "email": false}}, state.Meta{}); err != nil {
		t.Fatalf("save system: %v", err)
	}
	resolver := state.Resolver{Store: store}
	res, _, err := resolver.Mutate(ctx, userRef("u3"), state.Meta{}, func(layer state.Layer) error {
		layer[objectID] = map[string]any{"digest": "weekly"}
		return nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	assert.Equal(t, res.Store.OverrideLayerCount(), 1)

	resolved, err := resolver.Resolve(ctx, "notifications", system.Scope, userRef("u3").Scope)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	digest, _ := sb.SearchForFirstSetValue[string](resolved.Store, objectID, "digest")
	email, _ := sb.SearchForFirstSetValue[bool](resolved.Store, objectID, "email")
	assert.Equal(t, digest, "weekly")
	assert.Equal(t, email, false)
	assert.Equal(t, resolved.Store.LayerName(0), "user")
}
