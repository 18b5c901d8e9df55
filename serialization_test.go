package stratabase

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func populatedStore(layers int) *Stratabase {
	sb := New(layers)
	sb.SetBaselineValue(objectA, "name", "Ada")
	sb.SetBaselineValue(objectA, "age", 36)
	sb.SetBaselineValue(objectA, "ratio", 1.5)
	sb.SetBaselineValue(objectA, "whole", 2.0)
	sb.SetBaselineValue(objectA, "active", true)
	sb.SetBaselineValue(objectA, "nothing", nil)
	sb.SetBaselineValue(objectA, "quote", "say \"hi\"\n")
	sb.SetBaselineValue(objectB, "nested", map[string]any{"k": []any{1, "two", false}})

	list := GenerateListPropertyAccess[string](sb, objectA, "tags")
	list.CreateAdd("base-1", "base-2").StoreInBaseline()
	for layer := 0; layer < layers; layer++ {
		sb.SetOverrideValue(layer, objectA, "name", fmt.Sprintf("layer-%d", layer))
		list.CreateInsert(layer, fmt.Sprintf("tag-%d", layer)).StoreInOverride(layer)
	}
	list.Dispose()
	return sb
}

func assertSameLayers(t *testing.T, want, got *Stratabase) {
	t.Helper()
	if got.OverrideLayerCount() != want.OverrideLayerCount() {
		t.Fatalf("expected %d layers, got %d", want.OverrideLayerCount(), got.OverrideLayerCount())
	}
	for layer := BaselineLayer; layer < want.OverrideLayerCount(); layer++ {
		w, g := want.ExportLayer(layer), got.ExportLayer(layer)
		if !reflect.DeepEqual(w, g) {
			t.Fatalf("layer %d differs:\nwant %#v\ngot  %#v", layer, w, g)
		}
	}
}

func TestSerializeEmptyStore(t *testing.T) {
	text, err := SerializeToJSON(New(0))
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if text != `{"BaselineData":{},"OverrideLayers":[]}` {
		t.Fatalf("unexpected document %s", text)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	for layers := 0; layers <= 5; layers++ {
		t.Run(fmt.Sprintf("layers=%d", layers), func(t *testing.T) {
			original := populatedStore(layers)
			text, err := SerializeToJSON(original)
			if err != nil {
				t.Fatalf("serialize: %v", err)
			}
			restored, err := DeserializeFromJSON(text)
			if err != nil {
				t.Fatalf("deserialize: %v", err)
			}
			assertSameLayers(t, original, restored)

			again, err := SerializeToJSON(restored)
			if err != nil {
				t.Fatalf("serialize restored: %v", err)
			}
			if again != text {
				t.Fatalf("expected stable output\nfirst  %s\nsecond %s", text, again)
			}

			if got, want := MergedList(restored, objectA, "tags"), MergedList(original, objectA, "tags"); !reflect.DeepEqual(got, want) || len(got) != layers+2 {
				t.Fatalf("expected merged tags %v, got %v", want, got)
			}
			if layers > 0 {
				if name, _ := SearchForFirstSetValue[string](restored, objectA, "name"); name != fmt.Sprintf("layer-%d", layers-1) {
					t.Fatalf("unexpected resolved name %q", name)
				}
			}
		})
	}
}

func TestSerializeIndented(t *testing.T) {
	sb := New(1)
	sb.SetOverrideValue(0, objectA, "n", 1)
	text, err := SerializeToJSON(sb, WithIndent("  "))
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if !strings.Contains(text, "\n  \"OverrideLayers\"") {
		t.Fatalf("expected indented output, got %s", text)
	}
	restored, err := DeserializeFromJSON(text)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	assertSameLayers(t, sb, restored)
}

func TestSelectiveSerialization(t *testing.T) {
	sb := New(3)
	sb.SetBaselineValue(objectA, "p", "base")
	sb.SetOverrideValue(0, objectA, "p", "zero")
	sb.SetOverrideValue(1, objectA, "p", "one")
	sb.SetOverrideValue(2, objectA, "p", "two")

	text, err := SerializeToJSON(sb, WithoutBaseline(), WithOverrideLayers(1))
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	want := `{"BaselineData":null,"OverrideLayers":[null,{"` + objectA.String() + `":{"p":"one"}},null]}`
	if text != want {
		t.Fatalf("unexpected document\nwant %s\ngot  %s", want, text)
	}

	restored, err := DeserializeFromJSON(text)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if restored.OverrideLayerCount() != 3 {
		t.Fatalf("expected 3 layers, got %d", restored.OverrideLayerCount())
	}
	if restored.HasBaselineValueSet(objectA, "p") || restored.HasOverrideValueSet(0, objectA, "p") {
		t.Fatalf("expected skipped layers empty")
	}
	if v, layer, _ := restored.Resolve(objectA, "p"); v != "one" || layer != 1 {
		t.Fatalf("expected one from layer 1, got %v from %d", v, layer)
	}
}

func TestSerializeKeepsTypedValues(t *testing.T) {
	type point struct {
		X int `json:"x"`
		Y int `json:"y"`
	}
	ref := uuid.MustParse("00000000-0000-4000-8000-00000000000a")
	sb := New(1)
	sb.SetBaselineValue(objectA, "ref", ref)
	sb.SetBaselineValue(objectA, "point", point{X: 1, Y: 2})
	sb.SetBaselineValue(objectA, "refs", map[string]any{"owner": ref, "ids": []any{ref, int32(7)}})
	sb.SetOverrideValue(0, objectA, "big", int64(1<<40))
	sb.SetOverrideValue(0, objectA, "max", uint64(math.MaxUint64))
	sb.SetOverrideValue(0, objectA, "small", int8(-3))
	sb.SetOverrideValue(0, objectA, "ratio", float32(0.5))

	list := GenerateListPropertyAccess[uuid.UUID](sb, objectA, "members")
	list.CreateAdd(ref).StoreInBaseline()
	list.Dispose()

	text, err := SerializeToJSON(sb)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if !strings.Contains(text, `"ref":{"$uuid":"`+ref.String()+`"}`) || !strings.Contains(text, `"big":{"$int64":"1099511627776"}`) {
		t.Fatalf("expected tagged values in %s", text)
	}
	restored, err := DeserializeFromJSON(text)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	if got, ok := TryGetBaselineValue[uuid.UUID](restored, objectA, "ref"); !ok || got != ref {
		t.Fatalf("expected uuid %s, got %v", ref, got)
	}
	if got, ok := TryGetOverrideValue[int64](restored, 0, objectA, "big"); !ok || got != 1<<40 {
		t.Fatalf("expected int64 1<<40, got %v", got)
	}
	if got, _ := TryGetOverrideValue[uint64](restored, 0, objectA, "max"); got != math.MaxUint64 {
		t.Fatalf("expected max uint64, got %v", got)
	}
	if got, _ := TryGetOverrideValue[int8](restored, 0, objectA, "small"); got != -3 {
		t.Fatalf("expected int8 -3, got %v", got)
	}
	if got, _ := TryGetOverrideValue[float32](restored, 0, objectA, "ratio"); got != 0.5 {
		t.Fatalf("expected float32 0.5, got %v", got)
	}
	wantRefs := map[string]any{"owner": ref, "ids": []any{ref, int32(7)}}
	if got := restored.GetAllBaselinePropertiesFor(objectA)["refs"]; !reflect.DeepEqual(got, wantRefs) {
		t.Fatalf("expected nested typed values %#v, got %#v", wantRefs, got)
	}
	if got := restored.GetAllBaselinePropertiesFor(objectA)["point"]; !reflect.DeepEqual(got, map[string]any{"x": 1, "y": 2}) {
		t.Fatalf("expected struct normalized to a map, got %#v", got)
	}
	if got := MergedList(restored, objectA, "members"); !reflect.DeepEqual(got, []any{ref}) {
		t.Fatalf("expected typed list element, got %#v", got)
	}
}

func TestDeserializeRejectsBadTags(t *testing.T) {
	prefix := `{"BaselineData":{"` + objectA.String() + `":{"v":`
	for _, body := range []string{
		`{"$uuid":"nope"}`,
		`{"$uuid":1}`,
		`{"$int8":"300"}`,
		`{"$uint64":"-1"}`,
		`{"$float32":"x"}`,
	} {
		if _, err := DeserializeFromJSON(prefix + body + `}}}`); !errors.Is(err, ErrInvalidDocument) {
			t.Fatalf("expected ErrInvalidDocument for %s, got %v", body, err)
		}
	}
}

func TestSerializeRejectsNonFiniteFloats(t *testing.T) {
	sb := New(0)
	var zero float64
	sb.SetBaselineValue(objectA, "bad", zero/zero)
	if _, err := SerializeToJSON(sb); err == nil {
		t.Fatalf("expected NaN to be rejected")
	}
}

func TestDeserializeFiresNoEvents(t *testing.T) {
	text, err := SerializeToJSON(populatedStore(2))
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	restored, err := DeserializeFromJSON(text)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	fired := 0
	restored.Subscribe(func(Change) { fired++ })
	list := GenerateListPropertyAccess[string](restored, objectA, "tags")
	defer list.Dispose()
	if fired != 0 {
		t.Fatalf("expected no events, got %d", fired)
	}
	if list.Count() != 4 {
		t.Fatalf("expected 4 merged tags, got %d", list.Count())
	}
	if layer, _ := list.TryFindLayerIndexForElement("tag-1"); layer != 1 {
		t.Fatalf("expected tag-1 bound to layer 1, got %d", layer)
	}
}

func TestDeserializeRejectsInvalidDocuments(t *testing.T) {
	cases := map[string]string{
		"syntax":        `{"BaselineData":`,
		"array root":    `[]`,
		"layers object": `{"OverrideLayers":{}}`,
		"bad id":        `{"BaselineData":{"not-a-uuid":{}}}`,
		"bad bag":       `{"BaselineData":{"` + objectA.String() + `":1}}`,
		"bad list":      `{"BaselineData":{"` + objectA.String() + `":{"l":{"$list":1}}}}`,
		"bad index":     `{"BaselineData":{"` + objectA.String() + `":{"l":{"$list":[{"Index":"x"}]}}}}`,
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := DeserializeFromJSON(text); err == nil {
				t.Fatalf("expected error for %s", text)
			}
		})
	}

	_, err := DeserializeFromJSON(`{"OverrideLayers":{}}`)
	if !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
}

func TestDeserializeMissingSections(t *testing.T) {
	sb, err := DeserializeFromJSON(`{}`)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if sb.OverrideLayerCount() != 0 || len(sb.IDs()) != 0 {
		t.Fatalf("expected empty store")
	}
}

func TestSaveAndLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "store.json")
	original := populatedStore(2)
	if !SaveToFile(path, original) {
		t.Fatalf("expected save to succeed")
	}
	restored, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertSameLayers(t, original, restored)

	if _, err := LoadFromFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestSaveToFileReportsFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	if SaveToFile(filepath.Join(blocker, "store.json"), New(0)) {
		t.Fatalf("expected save under a regular file to fail")
	}

	sb := New(0)
	var zero float64
	sb.SetBaselineValue(objectA, "bad", zero/zero)
	if SaveToFile(filepath.Join(dir, "nan.json"), sb) {
		t.Fatalf("expected unserializable store to fail")
	}
}
