package openapi

import (
	"fmt"
	"regexp"
)

// componentRegistry publishes object and array schemas that occur more than
// once, or that were forced, under components/schemas.
type componentRegistry struct {
	entries   map[string]*componentEntry
	usedNames map[string]struct{}
}

type componentEntry struct {
	name   string
	schema map[string]any
	count  int
	force  bool
}

func newComponentRegistry() *componentRegistry {
	return &componentRegistry{
		entries:   map[string]*componentEntry{},
		usedNames: map[string]struct{}{},
	}
}

func componentRef(name string) string {
	return "#/components/schemas/" + name
}

// count records one occurrence of node.
func (r *componentRegistry) count(nameHint string, node *schemaNode) {
	digest := node.Digest()
	if digest == "" {
		return
	}
	if entry, ok := r.entries[digest]; ok {
		entry.count++
		return
	}
	r.entries[digest] = &componentEntry{name: r.uniqueName(nameHint), count: 1}
}

// force publishes node under name regardless of its occurrence count.
func (r *componentRegistry) force(name string, node *schemaNode) string {
	digest := node.Digest()
	entry, ok := r.entries[digest]
	if !ok {
		entry = &componentEntry{name: r.uniqueName(name), count: 1}
		r.entries[digest] = entry
	}
	entry.force = true
	return componentRef(entry.name)
}

// reference returns the component reference for node when it is published.
func (r *componentRegistry) reference(node *schemaNode) (string, *componentEntry) {
	entry, ok := r.entries[node.Digest()]
	if !ok || (!entry.force && entry.count < 2) {
		return "", nil
	}
	return componentRef(entry.name), entry
}

func (r *componentRegistry) published() []*componentEntry {
	var out []*componentEntry
	for _, entry := range r.entries {
		if entry.force || entry.count >= 2 {
			out = append(out, entry)
		}
	}
	return out
}

func (r *componentRegistry) uniqueName(name string) string {
	safe := sanitizeComponentName(name)
	if safe == "" {
		safe = "Schema"
	}
	candidate := safe
	for suffix := 1; ; suffix++ {
		if _, exists := r.usedNames[candidate]; !exists {
			r.usedNames[candidate] = struct{}{}
			return candidate
		}
		candidate = fmt.Sprintf("%s%d", safe, suffix)
	}
}

var componentNameRegexp = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

func sanitizeComponentName(name string) string {
	name = componentNameRegexp.ReplaceAllString(name, "_")
	for len(name) > 0 && name[0] == '_' {
		name = name[1:]
	}
	for len(name) > 0 && name[len(name)-1] == '_' {
		name = name[:len(name)-1]
	}
	if name != "" && name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}
