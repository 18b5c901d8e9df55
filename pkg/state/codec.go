package state

import (
	"fmt"

	sb "github.com/goliatone/go-stratabase"
)

// EncodeLayer writes layer as a serialized store document holding layer as
// its baseline. Store implementations persisting text use it so snapshots
// share the store's wire format.
func EncodeLayer(layer Layer) (string, error) {
	holder := sb.New(0)
	holder.ImportLayer(sb.BaselineLayer, layer)
	text, err := sb.SerializeToJSON(holder)
	if err != nil {
		return "", fmt.Errorf("state: encode layer: %w", err)
	}
	return text, nil
}

// DecodeLayer reads a document written by EncodeLayer.
func DecodeLayer(text string) (Layer, error) {
	holder, err := sb.DeserializeFromJSON(text)
	if err != nil {
		return nil, fmt.Errorf("state: decode layer: %w", err)
	}
	return Layer(holder.ExportLayer(sb.BaselineLayer)), nil
}
