package openapi

import "strings"

type generatorConfig struct {
	version       string
	title         string
	infoVersion   string
	description   string
	path          string
	method        string
	operationID   string
	contentType   string
	rootComponent string
}

func defaultGeneratorConfig() generatorConfig {
	return generatorConfig{
		version:     "3.0.3",
		title:       "Stratabase Object",
		infoVersion: "1.0.0",
		path:        "/objects/{id}",
		method:      "put",
		operationID: "putObject",
		contentType: "application/json",
	}
}

// GeneratorOption configures the OpenAPI generator.
type GeneratorOption func(*generatorConfig)

// WithOpenAPIVersion overrides the document version (3.0.3 by default).
func WithOpenAPIVersion(version string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if version != "" {
			cfg.version = version
		}
	}
}

// WithInfo sets the info block. Empty values keep the defaults.
func WithInfo(title, version, description string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if title != "" {
			cfg.title = title
		}
		if version != "" {
			cfg.infoVersion = version
		}
		cfg.description = description
	}
}

// WithOperation sets the single operation the document describes. The path
// should carry an {id} parameter naming the object.
func WithOperation(path, method, operationID string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if path != "" {
			cfg.path = path
		}
		if method != "" {
			cfg.method = strings.ToLower(method)
		}
		if operationID != "" {
			cfg.operationID = operationID
		}
	}
}

// WithContentType sets the request body content type.
func WithContentType(contentType string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if contentType != "" {
			cfg.contentType = contentType
		}
	}
}

// WithRootComponent publishes the object schema under components with name.
func WithRootComponent(name string) GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.rootComponent = name
	}
}
