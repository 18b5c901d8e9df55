package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	sb "github.com/goliatone/go-stratabase"
)

var ErrETagMismatch = errors.New("state: etag mismatch")

// SystemScope names the scope whose snapshot seeds the baseline layer.
const SystemScope = "system"

const defaultsScope = "defaults"

// Layer is the persisted content of one stratum: property bags keyed by
// object id.
type Layer map[uuid.UUID]map[string]any

// Ref identifies one persisted snapshot for one domain.
type Ref struct {
	Domain string
	Scope  sb.Scope
}

// Meta is storage-owned metadata used for trace/audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads/saves one snapshot for a single scope reference.
type Store[T any] interface {
	Load(ctx context.Context, ref Ref) (snapshot T, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error)
}

// Resolver loads per-scope layer snapshots and assembles them into a store.
type Resolver struct {
	Store Store[Layer]
	// Options are applied to every assembled store.
	Options []sb.Option
}

// Resolution is an assembled store plus the metadata of every loaded
// snapshot keyed by scope name.
type Resolution struct {
	Store *sb.Stratabase
	Meta  map[string]Meta
}

type Mutator func(Layer) error

func (r Ref) Identifier() (string, error) {
	switch r.Scope.Name {
	case SystemScope:
		return fmt.Sprintf("system/%s", r.Domain), nil
	case "tenant", "org", "team", "user":
		metadataKey := r.Scope.Name + "_id"
		id, ok := r.Scope.Metadata[metadataKey]
		if !ok {
			return "", fmt.Errorf("missing metadata key %q for scope %q", metadataKey, r.Scope.Name)
		}
		idString, ok := id.(string)
		if !ok || idString == "" {
			return "", fmt.Errorf("missing metadata key %q for scope %q", metadataKey, r.Scope.Name)
		}
		return fmt.Sprintf("%s/%s/%s", r.Scope.Name, idString, r.Domain), nil
	default:
		return "", fmt.Errorf("unsupported scope name %q", r.Scope.Name)
	}
}

// Resolve loads domain for every scope. The system scope, when present, is
// loaded into the baseline; the other scopes become override layers ordered
// by priority. Scopes without a snapshot contribute empty layers.
func (r Resolver) Resolve(ctx context.Context, domain string, scopes ...sb.Scope) (*Resolution, error) {
	if r.Store == nil {
		return nil, fmt.Errorf("state: store is required")
	}
	if domain == "" {
		return nil, fmt.Errorf("state: domain is required")
	}
	if len(scopes) == 0 {
		return nil, fmt.Errorf("state: at least one scope is required")
	}

	var system *sb.Scope
	overrides := make([]sb.Scope, 0, len(scopes))
	for i := range scopes {
		if scopes[i].Name == SystemScope {
			system = &scopes[i]
			continue
		}
		overrides = append(overrides, scopes[i])
	}

	res, err := r.assemble(overrides)
	if err != nil {
		return nil, err
	}
	found := 0
	if system != nil {
		ok, err := r.loadInto(ctx, res, domain, *system, true)
		if err != nil {
			return nil, err
		}
		if ok {
			found++
		}
	}
	for _, scope := range overrides {
		ok, err := r.loadInto(ctx, res, domain, scope, false)
		if err != nil {
			return nil, err
		}
		if ok {
			found++
		}
	}
	if found == 0 {
		return nil, fmt.Errorf("state: no layers found for domain %q", domain)
	}
	return res, nil
}

// ResolveWithDefaults behaves like Resolve but seeds the baseline with
// defaults. Every scope, system included, becomes an override layer.
func (r Resolver) ResolveWithDefaults(ctx context.Context, domain string, defaults Layer, scopes ...sb.Scope) (*Resolution, error) {
	if r.Store == nil {
		return nil, fmt.Errorf("state: store is required")
	}
	if domain == "" {
		return nil, fmt.Errorf("state: domain is required")
	}
	for _, scope := range scopes {
		if scope.Name == defaultsScope {
			return nil, fmt.Errorf("state: scope name %q is reserved", defaultsScope)
		}
	}

	res, err := r.assemble(scopes)
	if err != nil {
		return nil, err
	}
	res.Store.ImportLayer(sb.BaselineLayer, defaults)
	for _, scope := range scopes {
		if _, err := r.loadInto(ctx, res, domain, scope, false); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r Resolver) assemble(scopes []sb.Scope) (*Resolution, error) {
	store, err := sb.NewWithScopes(scopes, r.Options...)
	if err != nil {
		return nil, fmt.Errorf("state: scopes: %w", err)
	}
	return &Resolution{Store: store, Meta: map[string]Meta{}}, nil
}

// loadInto imports the snapshot of scope into the baseline or into the layer
// named after the scope.
func (r Resolver) loadInto(ctx context.Context, res *Resolution, domain string, scope sb.Scope, baseline bool) (bool, error) {
	snapshot, meta, ok, err := r.Store.Load(ctx, Ref{Domain: domain, Scope: scope})
	if err != nil {
		return false, fmt.Errorf("state: load %q for scope %q: %w", domain, scope.Name, err)
	}
	if !ok {
		return false, nil
	}
	layer := sb.BaselineLayer
	if !baseline {
		idx, named := res.Store.LayerIndex(scope.Name)
		if !named {
			return false, fmt.Errorf("state: scope %q has no layer", scope.Name)
		}
		layer = idx
	}
	res.Store.ImportLayer(layer, snapshot)
	res.Meta[scope.Name] = cloneMeta(meta)
	return true, nil
}

// Mutate loads one snapshot, applies fn, checks the result serializes, then
// saves it. The returned store holds the saved snapshot in the layer named
// after ref.Scope.
func (r Resolver) Mutate(ctx context.Context, ref Ref, meta Meta, fn Mutator) (*Resolution, Meta, error) {
	if r.Store == nil {
		return nil, Meta{}, fmt.Errorf("state: store is required")
	}
	if ref.Domain == "" {
		return nil, Meta{}, fmt.Errorf("state: domain is required")
	}
	if ref.Scope.Name == "" {
		return nil, Meta{}, fmt.Errorf("state: scope name is required")
	}
	if fn == nil {
		return nil, Meta{}, fmt.Errorf("state: mutator is required")
	}

	snapshot, loadedMeta, ok, err := r.Store.Load(ctx, ref)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("state: load %q for scope %q: %w", ref.Domain, ref.Scope.Name, err)
	}
	if !ok || snapshot == nil {
		snapshot = Layer{}
		loadedMeta = Meta{}
	}

	if meta.ETag != "" && loadedMeta.ETag != "" && meta.ETag != loadedMeta.ETag {
		return nil, loadedMeta, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loadedMeta.ETag)
	}

	if err := fn(snapshot); err != nil {
		return nil, loadedMeta, err
	}
	if _, err := EncodeLayer(snapshot); err != nil {
		return nil, loadedMeta, err
	}

	saveMeta := mergeMeta(loadedMeta, meta)
	savedMeta, err := r.Store.Save(ctx, ref, snapshot, saveMeta)
	if err != nil {
		return nil, loadedMeta, fmt.Errorf("state: save %q for scope %q: %w", ref.Domain, ref.Scope.Name, err)
	}

	scopes := []sb.Scope{ref.Scope}
	if ref.Scope.Name == SystemScope {
		scopes = nil
	}
	res, err := r.assemble(scopes)
	if err != nil {
		return nil, loadedMeta, err
	}
	layer := sb.BaselineLayer
	if scopes != nil {
		layer = 0
	}
	res.Store.ImportLayer(layer, snapshot)
	res.Meta[ref.Scope.Name] = cloneMeta(savedMeta)
	return res, savedMeta, nil
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}
