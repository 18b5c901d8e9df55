package jsontext

import (
	"errors"
	"reflect"
	"testing"
)

func TestIndexerSkipsQuotedSeparators(t *testing.T) {
	ix := NewIndexer(`{"a": "x,y"}`)

	wantOffsets := []int{0, 1, 3, 4, 6, 10, 11}
	wantChars := "{\"\":\"\"}"
	if ix.Len() != len(wantOffsets) {
		t.Fatalf("expected %d separators, got %d", len(wantOffsets), ix.Len())
	}
	for i := range wantOffsets {
		offset, ch := ix.At(i)
		if offset != wantOffsets[i] || ch != wantChars[i] {
			t.Fatalf("separator %d: want %q@%d got %q@%d", i, wantChars[i], wantOffsets[i], ch, offset)
		}
	}
	if got := ix.Next(',', 0); got != -1 {
		t.Fatalf("expected quoted comma to be skipped, got offset %d", got)
	}
	if got, ch := ix.NextAny(5, ',', '}'); got != 11 || ch != '}' {
		t.Fatalf("expected closing brace at 11, got %q@%d", ch, got)
	}
}

func TestIndexerHonoursEscapes(t *testing.T) {
	ix := NewIndexer(`["a\"b", 1]`)
	if got := ix.Next('"', 2); got != 6 {
		t.Fatalf("expected escaped quote to be skipped, closing quote at 6, got %d", got)
	}
	if got := ix.Next(',', 0); got != 7 {
		t.Fatalf("expected comma at 7, got %d", got)
	}
}

func TestIndexerSkipsComments(t *testing.T) {
	ix := NewIndexer("[1, /* 2, */ 3]", WithCommentSpan("/*", "*/"))
	if got := ix.Next(',', 3); got != -1 {
		t.Fatalf("expected comma inside comment to be skipped, got %d", got)
	}
	end, ok := ix.CommentEnd(4)
	if !ok || end != 12 {
		t.Fatalf("expected comment ending at 12, got %d (ok=%v)", end, ok)
	}
	if _, ok := ix.CommentEnd(5); ok {
		t.Fatalf("no comment starts at 5")
	}
}

func TestParseDocumentWithQuotedComma(t *testing.T) {
	result := ParseDocument(`{"a": "x,y", "b": [1,2]}`)
	if result.HasErrors() {
		t.Fatalf("unexpected error: %v", result.Err())
	}
	tree := result.Tree
	root := tree.Root()
	if got := tree.Keys(root); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("expected keys [a b], got %v", got)
	}

	a, _ := tree.Lookup(root, "a")
	if got := tree.String(a); got != "x,y" {
		t.Fatalf("expected a=x,y, got %q", got)
	}

	b, ok := tree.Lookup(root, "b")
	if !ok || tree.Kind(b) != KindArray {
		t.Fatalf("expected b to be an array")
	}
	if got := tree.Value(b); !reflect.DeepEqual(got, []any{1, 2}) {
		t.Fatalf("expected [1 2], got %#v", got)
	}
	if got := tree.Text(b); got != "[1,2]" {
		t.Fatalf("expected source range [1,2], got %q", got)
	}
}

func TestParseBareTokensAndComments(t *testing.T) {
	text := "{\n  name: widget, // trailing note\n  ratio: 3.5,\n  count: -2,\n  flag: true,\n  none: null\n}"
	result := Parse(text, WithCommentSpan("//", "\n"))
	if result.HasErrors() {
		t.Fatalf("unexpected error: %v", result.Err())
	}
	want := map[string]any{
		"name":  "widget",
		"ratio": 3.5,
		"count": -2,
		"flag":  true,
		"none":  nil,
	}
	if got := result.Tree.Value(result.Tree.Root()); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected value:\nwant: %#v\n got: %#v", want, got)
	}
}

func TestParseSingleQuotedStrings(t *testing.T) {
	result := ParseArray(`['it''s', "a'b"]`)
	if !result.HasErrors() {
		// 'it' followed by 's' is not a valid element sequence
		t.Fatalf("expected adjacent quoted runs to fail")
	}

	result = ParseArray(`['one', "a'b"]`)
	if result.HasErrors() {
		t.Fatalf("unexpected error: %v", result.Err())
	}
	if got := result.Tree.Value(result.Tree.Root()); !reflect.DeepEqual(got, []any{"one", "a'b"}) {
		t.Fatalf("unexpected values %#v", got)
	}
}

func TestParseFailures(t *testing.T) {
	cases := []struct {
		name string
		text string
		fn   func(string, ...Option) *ParseResult
	}{
		{name: "empty", text: "   ", fn: Parse},
		{name: "unterminated array", text: "[1, 2", fn: ParseArray},
		{name: "unterminated document", text: `{"a": 1`, fn: ParseDocument},
		{name: "missing colon", text: `{"a" 1}`, fn: ParseDocument},
		{name: "unterminated string", text: `{"a": "x}`, fn: ParseDocument},
		{name: "wrong root", text: `[1]`, fn: ParseDocument},
		{name: "trailing content", text: `[1] [2]`, fn: Parse},
		{name: "missing value", text: `[1,,2]`, fn: ParseArray},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := tc.fn(tc.text)
			if result == nil {
				t.Fatalf("parse must never return nil")
			}
			if !result.HasErrors() {
				t.Fatalf("expected errors for %q", tc.text)
			}
			err := result.Err()
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
			var syntaxErr *SyntaxError
			if !errors.As(err, &syntaxErr) {
				t.Fatalf("expected SyntaxError, got %T", err)
			}
		})
	}
}

func TestParseNodeOffsets(t *testing.T) {
	text := `[10, {"k": "v"}, [ ]]`
	result := ParseArray(text)
	if result.HasErrors() {
		t.Fatalf("unexpected error: %v", result.Err())
	}
	tree := result.Tree
	children := tree.Children(tree.Root())
	if len(children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(children))
	}
	want := []string{"10", `{"k": "v"}`, "[ ]"}
	for i, child := range children {
		if got := tree.Text(child); got != want[i] {
			t.Fatalf("child %d: want %q got %q", i, want[i], got)
		}
		if tree.Parent(child) != tree.Root() {
			t.Fatalf("child %d has wrong parent", i)
		}
	}
	if tree.Parent(tree.Root()) != NoNode {
		t.Fatalf("root must not have a parent")
	}
}

func TestBuilderCompactOutput(t *testing.T) {
	doc := NewDocumentBuilder()
	doc.AddProperty("name", "x").AddProperty("n", 1)
	doc.StartArray("items").AddArrayItem(true).AddArrayItem(nil).AddArrayItem(2.0)
	doc.StartProperty("nested").StartDocument().AddProperty("deep", Literal("raw"))

	result := doc.Finalize()
	if result.HasErrors() {
		t.Fatalf("unexpected error: %v", result.Err())
	}
	want := `{"name":"x","n":1,"items":[true,null,2.0],"nested":{"deep":raw}}`
	if result.Tree.Source != want {
		t.Fatalf("unexpected output:\nwant: %s\n got: %s", want, result.Tree.Source)
	}
}

func TestBuilderIndentedOutput(t *testing.T) {
	doc := NewDocumentBuilder(WithIndent("  "), WithUnquotedKeys())
	doc.AddProperty("a", 1)
	doc.StartArray("b").AddArrayItem("two")
	doc.StartDocument("empty")

	result := doc.Finalize()
	want := "{\n  a: 1,\n  b: [\n    \"two\"\n  ],\n  empty: {}\n}"
	if result.Tree.Source != want {
		t.Fatalf("unexpected output:\nwant: %q\n got: %q", want, result.Tree.Source)
	}
}

func TestBuilderMatchesParser(t *testing.T) {
	for _, opts := range [][]Option{
		nil,
		{WithIndent("\t")},
		{WithSpaceAfterSeparators(), WithSingleQuotes()},
	} {
		doc := NewDocumentBuilder(opts...)
		doc.AddProperty("text", "he said \"hi\"\n")
		doc.AddProperty("list", []any{1, "two", map[string]any{"z": 1, "a": false}})
		inner := doc.StartArray("matrix")
		inner.StartArray().AddArrayItem(1).AddArrayItem(2)
		inner.StartDocument().AddProperty("k", nil)

		built := doc.Finalize()
		if built.HasErrors() {
			t.Fatalf("unexpected build error: %v", built.Err())
		}
		parsed := Parse(built.Tree.Source)
		if parsed.HasErrors() {
			t.Fatalf("unexpected parse error for %q: %v", built.Tree.Source, parsed.Err())
		}
		if built.Tree.Len() != parsed.Tree.Len() {
			t.Fatalf("node counts differ: built %d parsed %d", built.Tree.Len(), parsed.Tree.Len())
		}
		for i := 0; i < built.Tree.Len(); i++ {
			b := built.Tree.Node(NodeID(i))
			p := parsed.Tree.Node(NodeID(i))
			if !reflect.DeepEqual(b, p) {
				t.Fatalf("node %d differs:\nbuilt:  %#v\nparsed: %#v", i, b, p)
			}
		}
		text, _ := parsed.Tree.Lookup(parsed.Tree.Root(), "text")
		if got := parsed.Tree.String(text); got != "he said \"hi\"\n" {
			t.Fatalf("escape round trip failed, got %q", got)
		}
	}
}

func TestAppendNewShiftsFollowingNodes(t *testing.T) {
	result := ParseDocument(`{"list": [1, 2], "after": "x"}`)
	if result.HasErrors() {
		t.Fatalf("unexpected error: %v", result.Err())
	}
	tree := result.Tree
	list, _ := tree.Lookup(tree.Root(), "list")
	after, _ := tree.Lookup(tree.Root(), "after")

	added, err := tree.AppendNew(list, 3)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if tree.Source != `{"list": [1, 2,3], "after": "x"}` {
		t.Fatalf("unexpected source %q", tree.Source)
	}
	if got := tree.Text(added); got != "3" {
		t.Fatalf("expected new node text 3, got %q", got)
	}
	if got := tree.Text(after); got != `"x"` {
		t.Fatalf("expected following node to be re-tracked, got %q", got)
	}
	if got := tree.Text(list); got != "[1, 2,3]" {
		t.Fatalf("expected array range to grow, got %q", got)
	}
	if got := tree.Text(tree.Root()); got != tree.Source {
		t.Fatalf("expected root to cover the whole source, got %q", got)
	}

	reparsed := Parse(tree.Source)
	if !reflect.DeepEqual(reparsed.Tree.Value(reparsed.Tree.Root()), tree.Value(tree.Root())) {
		t.Fatalf("incremental edit diverged from a full parse")
	}
}

func TestAppendNewIntoEmptyAndNestedArrays(t *testing.T) {
	result := ParseArray(`[[], "tail"]`)
	tree := result.Tree
	inner := tree.Children(tree.Root())[0]

	doc := NewDocumentBuilder().AddProperty("k", "v")
	added, err := tree.AppendNew(inner, doc)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if tree.Source != `[[{"k":"v"}], "tail"]` {
		t.Fatalf("unexpected source %q", tree.Source)
	}
	if tree.Kind(added) != KindDocument || tree.Parent(added) != inner {
		t.Fatalf("expected appended document under the inner array")
	}
	k, ok := tree.Lookup(added, "k")
	if !ok || tree.Text(k) != `"v"` {
		t.Fatalf("expected nested node offsets to be rebased, got %q", tree.Text(k))
	}
	tail := tree.Children(tree.Root())[1]
	if tree.Text(tail) != `"tail"` {
		t.Fatalf("expected sibling to shift, got %q", tree.Text(tail))
	}

	if _, err := tree.AppendNew(tail, 1); !errors.Is(err, ErrNotArray) {
		t.Fatalf("expected ErrNotArray, got %v", err)
	}
}

func TestAppendNewKeepsBuilderFormatting(t *testing.T) {
	arr := NewArrayBuilder(WithIndent("  "))
	arr.AddArrayItem(1)
	result := arr.Finalize()
	tree := result.Tree

	if _, err := tree.AppendNew(tree.Root(), 2); err != nil {
		t.Fatalf("append: %v", err)
	}
	if want := "[\n  1,\n  2\n]"; tree.Source != want {
		t.Fatalf("unexpected source:\nwant: %q\n got: %q", want, tree.Source)
	}
}

func TestUnescapeSurrogatePairs(t *testing.T) {
	if got := Unescape(`\ud83d\ude00 \u00e9 \/`); got != "\U0001F600 \u00e9 /" {
		t.Fatalf("unexpected unescape result %q", got)
	}
	if got := Escape("a\"b\\c\x01", '"'); got != `a\"b\\c\u0001` {
		t.Fatalf("unexpected escape result %q", got)
	}
}
