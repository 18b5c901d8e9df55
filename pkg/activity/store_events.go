package activity

import (
	"strings"
	"time"
)

const (
	VerbPropertySet     = "stratabase.property.set"
	VerbPropertyCleared = "stratabase.property.cleared"
	VerbObjectCleared   = "stratabase.object.cleared"

	ObjectTypeProperty = "stratabase.property"
	ObjectTypeObject   = "stratabase.object"
)

// LayerContext identifies the layer a mutation touched.
type LayerContext struct {
	Index    int
	Name     string
	Label    string
	Metadata map[string]any
}

// PropertyEventInput describes the common fields for store mutation events.
type PropertyEventInput struct {
	ActorID        string
	UserID         string
	TenantID       string
	ObjectID       string
	Property       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	OldValue       any
	NewValue       any
	Layer          LayerContext
	Count          int
	OccurredAt     time.Time
}

// BuildPropertySetEvent constructs an event for a property written to a layer.
func BuildPropertySetEvent(input PropertyEventInput) Event {
	return buildStoreEvent(VerbPropertySet, ObjectTypeProperty, input)
}

// BuildPropertyClearedEvent constructs an event for a property removed from a
// layer.
func BuildPropertyClearedEvent(input PropertyEventInput) Event {
	return buildStoreEvent(VerbPropertyCleared, ObjectTypeProperty, input)
}

// BuildObjectClearedEvent constructs an event for an object removed from
// every layer. Count carries the number of removed properties.
func BuildObjectClearedEvent(input PropertyEventInput) Event {
	event := buildStoreEvent(VerbObjectCleared, ObjectTypeObject, input)
	event.Metadata = ensureMetadata(event.Metadata)
	event.Metadata["removed"] = input.Count
	return event
}

func buildStoreEvent(verb, objectType string, input PropertyEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.Property != "" {
		metadata = ensureMetadata(metadata)
		metadata["property"] = input.Property
	}
	if input.Layer.Name != "" {
		metadata = ensureMetadata(metadata)
		metadata["layer"] = input.Layer.Name
		metadata["layer_index"] = input.Layer.Index
		if input.Layer.Label != "" {
			metadata["layer_label"] = input.Layer.Label
		}
		if len(input.Layer.Metadata) > 0 {
			metadata["layer_metadata"] = cloneMap(input.Layer.Metadata)
		}
	}
	if input.OldValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["old_value"] = input.OldValue
	}
	if input.NewValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["new_value"] = input.NewValue
	}

	recipients := input.Recipients
	if len(recipients) > 0 {
		recipients = append([]string{}, input.Recipients...)
	}

	objectID := strings.TrimSpace(input.ObjectID)
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:           verb,
		ActorID:        strings.TrimSpace(input.ActorID),
		UserID:         strings.TrimSpace(input.UserID),
		TenantID:       strings.TrimSpace(input.TenantID),
		ObjectType:     objectType,
		ObjectID:       objectID,
		Channel:        strings.TrimSpace(input.Channel),
		DefinitionCode: strings.TrimSpace(input.DefinitionCode),
		Recipients:     recipients,
		Metadata:       metadata,
		OccurredAt:     input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
