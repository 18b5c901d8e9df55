package stratabase

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Trace captures, for one property, what every layer holds, strongest layer
// first.
type Trace struct {
	ID       string       `json:"id"`
	Property string       `json:"property"`
	Layers   []Provenance `json:"layers"`
}

// Provenance details what a single layer holds for a traced property.
type Provenance struct {
	Layer  int    `json:"layer"`
	Name   string `json:"name"`
	Scope  *Scope `json:"scope,omitempty"`
	Value  any    `json:"value,omitempty"`
	Found  bool   `json:"found"`
	Active bool   `json:"active,omitempty"`
}

// ResolveWithTrace returns the effective value of property together with the
// contribution of every layer.
func (s *Stratabase) ResolveWithTrace(id uuid.UUID, property string) (any, Trace) {
	trace := Trace{ID: id.String(), Property: property}
	var (
		value any
		found bool
	)
	for layer := s.OverrideLayerCount() - 1; layer >= BaselineLayer; layer-- {
		v, ok := s.lookup(layer, id, property)
		entry := Provenance{Layer: layer, Name: s.LayerName(layer), Found: ok}
		if scope, named := s.LayerScope(layer); named {
			entry.Scope = &scope
		}
		if ok {
			entry.Value = cloneValue(v)
			if !found {
				value, found = v, true
				entry.Active = true
			}
		}
		trace.Layers = append(trace.Layers, entry)
	}
	return value, trace
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a JSON payload that was previously generated via
// ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
