// Package state loads and saves per-scope layer snapshots and assembles them
// into a layered store.
//
// Responsibilities:
//   - Store[T] only loads/saves a single snapshot for a single Ref.
//   - Resolver loads snapshots for several scopes and imports each into the
//     matching layer of a store built with stratabase.NewWithScopes.
//   - The stratabase package stays persistence-agnostic; all persistence
//     logic lives behind Store implementations (MemoryStore, FileStore and
//     the sqlitestore subpackage ship with this package).
//
// Data flow:
//
//	Store -> Resolver -> stratabase.NewWithScopes(...).ImportLayer(...) -> *Resolution
//
// Provenance:
//
//	Resolution.Meta keeps the Meta of every loaded snapshot keyed by scope
//	name. Combine it with Stratabase.ResolveWithTrace to attribute a value
//	to the snapshot that supplied it.
//
// Deterministic keys:
//
//	Ref.Identifier() provides a canonical storage key based on the unified
//	scope model (`system/tenant/org/team/user`).
package state
