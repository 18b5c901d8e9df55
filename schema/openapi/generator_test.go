package openapi

import (
	"testing"

	sb "github.com/goliatone/go-stratabase"
	"github.com/google/uuid"
)

func requestSchema(t *testing.T, document map[string]any, path, method string) map[string]any {
	t.Helper()
	paths, _ := document["paths"].(map[string]any)
	item, _ := paths[path].(map[string]any)
	operation, _ := item[method].(map[string]any)
	if operation == nil {
		t.Fatalf("expected %s %s operation, got paths %v", method, path, paths)
	}
	body, _ := operation["requestBody"].(map[string]any)
	content, _ := body["content"].(map[string]any)
	media, _ := content["application/json"].(map[string]any)
	schema, _ := media["schema"].(map[string]any)
	if schema == nil {
		t.Fatalf("expected request schema, got %v", body)
	}
	return schema
}

func generate(t *testing.T, value any, opts ...GeneratorOption) map[string]any {
	t.Helper()
	doc, err := NewGenerator(opts...).Generate(value)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if doc.Format != sb.SchemaFormatOpenAPI {
		t.Fatalf("expected openapi format, got %q", doc.Format)
	}
	document, ok := doc.Document.(map[string]any)
	if !ok {
		t.Fatalf("expected map document, got %T", doc.Document)
	}
	return document
}

func property(t *testing.T, schema map[string]any, name string) map[string]any {
	t.Helper()
	props, _ := schema["properties"].(map[string]any)
	prop, _ := props[name].(map[string]any)
	if prop == nil {
		t.Fatalf("expected property %q in %v", name, props)
	}
	return prop
}

func TestGeneratorDescribesResolvedProperties(t *testing.T) {
	document := generate(t, map[string]any{
		"name":    "widget",
		"count":   3,
		"ratio":   0.5,
		"enabled": true,
		"owner":   uuid.MustParse("00000000-0000-0000-0000-00000000000a"),
		"tags":    []any{"a", "b"},
	})

	if got := document["openapi"]; got != "3.0.3" {
		t.Fatalf("expected default version 3.0.3, got %v", got)
	}
	schema := requestSchema(t, document, "/objects/{id}", "put")
	if schema["type"] != "object" {
		t.Fatalf("expected object root, got %v", schema["type"])
	}

	cases := map[string][2]string{
		"name":    {"string", ""},
		"count":   {"integer", "int64"},
		"ratio":   {"number", "double"},
		"enabled": {"boolean", ""},
		"owner":   {"string", "uuid"},
	}
	for name, want := range cases {
		prop := property(t, schema, name)
		if prop["type"] != want[0] {
			t.Fatalf("%s: expected type %s, got %v", name, want[0], prop["type"])
		}
		format, _ := prop["format"].(string)
		if format != want[1] {
			t.Fatalf("%s: expected format %q, got %q", name, want[1], format)
		}
	}

	tags := property(t, schema, "tags")
	items, _ := tags["items"].(map[string]any)
	if tags["type"] != "array" || items["type"] != "string" {
		t.Fatalf("expected array of strings, got %v", tags)
	}

	required, _ := schema["required"].([]string)
	if len(required) != 6 || required[0] != "count" {
		t.Fatalf("expected every set property required in order, got %v", required)
	}
}

func TestGeneratorMixedListUsesOneOf(t *testing.T) {
	document := generate(t, map[string]any{
		"members": []any{"guest", uuid.New(), "admin"},
	})
	schema := requestSchema(t, document, "/objects/{id}", "put")
	items, _ := property(t, schema, "members")["items"].(map[string]any)
	variants, _ := items["oneOf"].([]any)
	if len(variants) != 2 {
		t.Fatalf("expected string and uuid variants, got %v", items)
	}
	formats := map[string]bool{}
	for _, variant := range variants {
		v, _ := variant.(map[string]any)
		format, _ := v["format"].(string)
		formats[format] = true
	}
	if !formats["uuid"] || !formats[""] {
		t.Fatalf("expected a plain string and a uuid variant, got %v", variants)
	}
}

func TestGeneratorSharesRepeatedObjects(t *testing.T) {
	address := func(city string) map[string]any {
		return map[string]any{"city": city, "zip": "00000"}
	}
	document := generate(t, map[string]any{
		"billing":  address("Lisbon"),
		"shipping": address("Porto"),
		"note":     map[string]any{"text": "once"},
	})

	components, _ := document["components"].(map[string]any)
	schemas, _ := components["schemas"].(map[string]any)
	if len(schemas) != 1 {
		t.Fatalf("expected one shared component, got %v", schemas)
	}
	if _, ok := schemas["billing"]; !ok {
		t.Fatalf("expected component named after first occurrence, got %v", schemas)
	}

	schema := requestSchema(t, document, "/objects/{id}", "put")
	for _, name := range []string{"billing", "shipping"} {
		if ref := property(t, schema, name)["$ref"]; ref != "#/components/schemas/billing" {
			t.Fatalf("%s: expected shared reference, got %v", name, ref)
		}
	}
	if _, inline := property(t, schema, "note")["properties"]; !inline {
		t.Fatalf("expected single-use object inline")
	}
}

func TestGeneratorOptions(t *testing.T) {
	document := generate(t, map[string]any{"name": "x"},
		WithOpenAPIVersion("3.1.0"),
		WithInfo("Tenants", "2.0.0", "tenant settings"),
		WithOperation("/tenants/{id}", "PATCH", "patchTenant"),
		WithRootComponent("Tenant"),
	)

	if got := document["openapi"]; got != "3.1.0" {
		t.Fatalf("expected version 3.1.0, got %v", got)
	}
	info, _ := document["info"].(map[string]any)
	if info["title"] != "Tenants" || info["version"] != "2.0.0" || info["description"] != "tenant settings" {
		t.Fatalf("unexpected info %v", info)
	}

	schema := requestSchema(t, document, "/tenants/{id}", "patch")
	if schema["$ref"] != "#/components/schemas/Tenant" {
		t.Fatalf("expected root reference, got %v", schema)
	}
	components, _ := document["components"].(map[string]any)
	schemas, _ := components["schemas"].(map[string]any)
	root, _ := schemas["Tenant"].(map[string]any)
	if root == nil || property(t, root, "name")["type"] != "string" {
		t.Fatalf("expected Tenant component, got %v", schemas)
	}

	paths, _ := document["paths"].(map[string]any)
	operation, _ := paths["/tenants/{id}"].(map[string]any)["patch"].(map[string]any)
	if operation["operationId"] != "patchTenant" {
		t.Fatalf("expected operation id patchTenant, got %v", operation["operationId"])
	}
	params, _ := operation["parameters"].([]any)
	if len(params) != 1 {
		t.Fatalf("expected id path parameter, got %v", params)
	}
}

func TestGeneratorEmptyAndNilValues(t *testing.T) {
	for _, value := range []any{nil, map[string]any{}} {
		schema := requestSchema(t, generate(t, value), "/objects/{id}", "put")
		props, _ := schema["properties"].(map[string]any)
		if schema["type"] != "object" || len(props) != 0 {
			t.Fatalf("expected empty object for %v, got %v", value, schema)
		}
	}

	schema := requestSchema(t, generate(t, map[string]any{"gone": nil}), "/objects/{id}", "put")
	if property(t, schema, "gone")["nullable"] != true {
		t.Fatalf("expected nil property nullable")
	}
	if _, ok := schema["required"]; ok {
		t.Fatalf("expected nil property not required, got %v", schema["required"])
	}
}

func TestGeneratorRejectsNonStringKeys(t *testing.T) {
	_, err := NewGenerator().Generate(map[string]any{"bad": map[int]string{1: "x"}})
	if err == nil {
		t.Fatalf("expected error for integer map keys")
	}
}

func TestGeneratorInvalidInfoFails(t *testing.T) {
	g := generator{config: defaultGeneratorConfig()}
	g.config.title = ""
	if _, err := g.Generate(map[string]any{}); err == nil {
		t.Fatalf("expected validation error for empty title")
	}
}
