// Package openapi renders the resolved properties of a stratabase object as
// an OpenAPI 3 document whose single operation accepts that object.
package openapi

import (
	sb "github.com/goliatone/go-stratabase"
)

type generator struct {
	config generatorConfig
}

// NewGenerator constructs an OpenAPI schema generator.
func NewGenerator(opts ...GeneratorOption) sb.SchemaGenerator {
	cfg := defaultGeneratorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return generator{config: cfg}
}

// Option wires the OpenAPI generator into a store.
func Option(opts ...GeneratorOption) sb.Option {
	return sb.WithSchemaGenerator(NewGenerator(opts...))
}

func (g generator) Generate(value any) (sb.SchemaDocument, error) {
	root, err := buildSchemaGraph(value)
	if err != nil {
		return sb.SchemaDocument{}, err
	}
	document, err := newDocumentBuilder(g.config, root).build()
	if err != nil {
		return sb.SchemaDocument{}, err
	}
	return sb.SchemaDocument{
		Format:   sb.SchemaFormatOpenAPI,
		Document: document,
	}, nil
}
