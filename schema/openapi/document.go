package openapi

import (
	"fmt"
	"sort"
	"strings"
)

type documentBuilder struct {
	config   generatorConfig
	registry *componentRegistry
	root     *schemaNode
}

func newDocumentBuilder(config generatorConfig, root *schemaNode) *documentBuilder {
	return &documentBuilder{
		config:   config,
		registry: newComponentRegistry(),
		root:     root,
	}
}

func (b *documentBuilder) build() (map[string]any, error) {
	if b.root == nil {
		return nil, fmt.Errorf("openapi: root schema cannot be nil")
	}

	b.countShared("", b.root)

	var body map[string]any
	if b.config.rootComponent != "" {
		ref := b.registry.force(b.config.rootComponent, b.root)
		b.render(b.root, b.config.rootComponent)
		body = map[string]any{"$ref": ref}
	} else {
		body = b.render(b.root, "Object")
	}

	document := map[string]any{
		"openapi": b.config.version,
		"info":    b.info(),
		"paths":   b.paths(body),
	}
	if schemas := b.components(); len(schemas) > 0 {
		document["components"] = map[string]any{"schemas": schemas}
	}
	if err := validateDocument(document); err != nil {
		return nil, err
	}
	return document, nil
}

// countShared walks nested objects so that repeated shapes become components.
// The root itself is never counted.
func (b *documentBuilder) countShared(name string, node *schemaNode) {
	if node == nil {
		return
	}
	if name != "" && shareable(node) {
		b.registry.count(name, node)
	}
	for _, key := range sortedKeys(node.Properties) {
		b.countShared(joinName(name, key), node.Properties[key])
	}
	if node.Items != nil {
		b.countShared(joinName(name, "item"), node.Items)
	}
	for i, variant := range node.OneOf {
		b.countShared(joinName(name, fmt.Sprintf("variant%d", i)), variant)
	}
}

func shareable(node *schemaNode) bool {
	return node.Type == "object" && len(node.Properties) > 0
}

// render emits node, replacing published descendants by references.
func (b *documentBuilder) render(node *schemaNode, name string) map[string]any {
	result := node.baseMap()
	if node.Type == "object" {
		props := make(map[string]any, len(node.Properties))
		for _, key := range sortedKeys(node.Properties) {
			props[key] = b.child(node.Properties[key], joinName(name, key))
		}
		result["properties"] = props
	}
	if len(node.Required) > 0 {
		result["required"] = sortedCopy(node.Required)
	}
	if node.Items != nil {
		result["items"] = b.child(node.Items, joinName(name, "item"))
	}
	if len(node.OneOf) > 0 {
		variants := make([]any, len(node.OneOf))
		for i, variant := range node.OneOf {
			variants[i] = b.child(variant, joinName(name, fmt.Sprintf("variant%d", i)))
		}
		result["oneOf"] = variants
	}
	if _, entry := b.registry.reference(node); entry != nil && entry.schema == nil {
		entry.schema = result
	}
	return result
}

func (b *documentBuilder) child(node *schemaNode, name string) map[string]any {
	ref, entry := b.registry.reference(node)
	if entry == nil {
		return b.render(node, name)
	}
	if entry.schema == nil {
		b.render(node, entry.name)
	}
	return map[string]any{"$ref": ref}
}

func (b *documentBuilder) components() map[string]any {
	published := b.registry.published()
	if len(published) == 0 {
		return nil
	}
	schemas := make(map[string]any, len(published))
	for _, entry := range published {
		if entry.schema != nil {
			schemas[entry.name] = entry.schema
		}
	}
	return schemas
}

func (b *documentBuilder) info() map[string]any {
	info := map[string]any{
		"title":   b.config.title,
		"version": b.config.infoVersion,
	}
	if b.config.description != "" {
		info["description"] = b.config.description
	}
	return info
}

func (b *documentBuilder) paths(body map[string]any) map[string]any {
	operation := map[string]any{
		"operationId": b.config.operationID,
		"requestBody": map[string]any{
			"required": true,
			"content": map[string]any{
				b.config.contentType: map[string]any{"schema": body},
			},
		},
		"responses": map[string]any{
			"204": map[string]any{"description": "Stored"},
		},
	}
	if strings.Contains(b.config.path, "{id}") {
		operation["parameters"] = []any{
			map[string]any{
				"name":     "id",
				"in":       "path",
				"required": true,
				"schema":   map[string]any{"type": "string", "format": "uuid"},
			},
		}
	}
	return map[string]any{
		b.config.path: map[string]any{b.config.method: operation},
	}
}

func validateDocument(document map[string]any) error {
	if version, _ := document["openapi"].(string); version == "" {
		return fmt.Errorf("openapi: document missing version")
	}
	info, _ := document["info"].(map[string]any)
	if title, _ := info["title"].(string); title == "" {
		return fmt.Errorf("openapi: info.title must be set")
	}
	if version, _ := info["version"].(string); version == "" {
		return fmt.Errorf("openapi: info.version must be set")
	}
	paths, _ := document["paths"].(map[string]any)
	if len(paths) == 0 {
		return fmt.Errorf("openapi: document has no paths")
	}
	return nil
}

func joinName(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return prefix + "_" + segment
}

func sortedKeys(props map[string]*schemaNode) []string {
	keys := make([]string, 0, len(props))
	for key := range props {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
