package jsontext

import "strings"

// Parse parses a document, array or scalar.
func Parse(text string, opts ...Option) *ParseResult {
	return newParser(text, opts).run(KindInvalid)
}

// ParseDocument parses text whose top-level value must be a document.
func ParseDocument(text string, opts ...Option) *ParseResult {
	return newParser(text, opts).run(KindDocument)
}

// ParseArray parses text whose top-level value must be an array.
func ParseArray(text string, opts ...Option) *ParseResult {
	return newParser(text, opts).run(KindArray)
}

type parser struct {
	text string
	ix   *Indexer
	tree *Tree
}

func newParser(text string, opts []Option) *parser {
	cfg := applyOptions(opts)
	tree := newTree(text)
	tree.format = cfg.format
	return &parser{
		text: text,
		ix:   newIndexer(text, cfg.comments),
		tree: tree,
	}
}

func (p *parser) run(want Kind) *ParseResult {
	start := p.skip(0)
	if start >= len(p.text) {
		return failure(start, "empty input")
	}
	switch want {
	case KindDocument:
		if p.text[start] != '{' {
			return failure(start, "expected '{'")
		}
	case KindArray:
		if p.text[start] != '[' {
			return failure(start, "expected '['")
		}
	}

	root, next, err := p.value(start)
	if err != nil {
		return &ParseResult{Errors: []*SyntaxError{err}}
	}
	if rest := p.skip(next); rest < len(p.text) {
		return failure(rest, "unexpected trailing content")
	}
	p.tree.attach(NoNode, root)
	p.tree.root = root
	return success(p.tree)
}

// skip advances past whitespace and comments.
func (p *parser) skip(pos int) int {
	for pos < len(p.text) {
		switch p.text[pos] {
		case ' ', '\t', '\r', '\n':
			pos++
			continue
		}
		if end, ok := p.ix.CommentEnd(pos); ok {
			pos = end
			continue
		}
		break
	}
	return pos
}

func (p *parser) value(pos int) (NodeID, int, *SyntaxError) {
	if pos >= len(p.text) {
		return NoNode, pos, &SyntaxError{Offset: pos, Msg: "unexpected end of input"}
	}
	switch p.text[pos] {
	case '{':
		return p.document(pos)
	case '[':
		return p.array(pos)
	case '"', '\'':
		raw, end, err := p.quoted(pos)
		if err != nil {
			return NoNode, pos, err
		}
		id := p.tree.add(Node{Kind: KindValue, Start: pos, End: end, Raw: raw, Quoted: true})
		return id, end, nil
	case ',', ':', '}', ']':
		return NoNode, pos, &SyntaxError{Offset: pos, Msg: "expected value"}
	default:
		return p.bare(pos)
	}
}

// quoted returns the verbatim content of the string starting at pos and the
// offset just past its closing quote.
func (p *parser) quoted(pos int) (string, int, *SyntaxError) {
	q := p.text[pos]
	closing := p.ix.Next(q, pos+1)
	if closing < 0 {
		return "", pos, &SyntaxError{Offset: pos, Msg: "unterminated string"}
	}
	return p.text[pos+1 : closing], closing + 1, nil
}

func (p *parser) bare(pos int) (NodeID, int, *SyntaxError) {
	end := p.tokenEnd(pos, ',', '}', ']', '\n')
	token := strings.TrimRight(p.text[pos:end], " \t\r")
	if token == "" {
		return NoNode, pos, &SyntaxError{Offset: pos, Msg: "expected value"}
	}
	id := p.tree.add(Node{Kind: KindValue, Start: pos, End: pos + len(token), Raw: token})
	return id, pos + len(token), nil
}

// tokenEnd returns the offset of the first terminator or comment after pos.
func (p *parser) tokenEnd(pos int, terminators ...byte) int {
	end, _ := p.ix.NextAny(pos, terminators...)
	if end < 0 {
		end = len(p.text)
	}
	if comment, ok := p.ix.NextComment(pos); ok && comment < end {
		end = comment
	}
	return end
}

func (p *parser) array(pos int) (NodeID, int, *SyntaxError) {
	id := p.tree.add(Node{Kind: KindArray, Start: pos})
	cursor := p.skip(pos + 1)
	if cursor < len(p.text) && p.text[cursor] == ']' {
		p.tree.nodes[id].End = cursor + 1
		return id, cursor + 1, nil
	}
	for {
		child, next, err := p.value(cursor)
		if err != nil {
			return NoNode, pos, err
		}
		p.tree.attach(id, child)

		cursor = p.skip(next)
		if cursor >= len(p.text) {
			return NoNode, pos, &SyntaxError{Offset: pos, Msg: "unterminated array"}
		}
		switch p.text[cursor] {
		case ']':
			p.tree.nodes[id].End = cursor + 1
			return id, cursor + 1, nil
		case ',':
			cursor = p.skip(cursor + 1)
			if cursor < len(p.text) && p.text[cursor] == ']' {
				p.tree.nodes[id].End = cursor + 1
				return id, cursor + 1, nil
			}
		default:
			return NoNode, pos, &SyntaxError{Offset: cursor, Msg: "expected ',' or ']'"}
		}
	}
}

func (p *parser) document(pos int) (NodeID, int, *SyntaxError) {
	id := p.tree.add(Node{Kind: KindDocument, Start: pos})
	cursor := p.skip(pos + 1)
	if cursor < len(p.text) && p.text[cursor] == '}' {
		p.tree.nodes[id].End = cursor + 1
		return id, cursor + 1, nil
	}
	for {
		if cursor >= len(p.text) {
			return NoNode, pos, &SyntaxError{Offset: pos, Msg: "unterminated document"}
		}
		key, next, err := p.key(cursor)
		if err != nil {
			return NoNode, pos, err
		}
		cursor = p.skip(next)
		if cursor >= len(p.text) || p.text[cursor] != ':' {
			return NoNode, pos, &SyntaxError{Offset: cursor, Msg: "expected ':'"}
		}

		child, next, err := p.value(p.skip(cursor + 1))
		if err != nil {
			return NoNode, pos, err
		}
		p.tree.nodes[child].Key = key
		p.tree.attach(id, child)

		cursor = p.skip(next)
		if cursor >= len(p.text) {
			return NoNode, pos, &SyntaxError{Offset: pos, Msg: "unterminated document"}
		}
		switch p.text[cursor] {
		case '}':
			p.tree.nodes[id].End = cursor + 1
			return id, cursor + 1, nil
		case ',':
			cursor = p.skip(cursor + 1)
			if cursor < len(p.text) && p.text[cursor] == '}' {
				p.tree.nodes[id].End = cursor + 1
				return id, cursor + 1, nil
			}
		default:
			return NoNode, pos, &SyntaxError{Offset: cursor, Msg: "expected ',' or '}'"}
		}
	}
}

func (p *parser) key(pos int) (string, int, *SyntaxError) {
	switch p.text[pos] {
	case '"', '\'':
		raw, end, err := p.quoted(pos)
		if err != nil {
			return "", pos, err
		}
		return Unescape(raw), end, nil
	case ',', ':', '{', '}', '[', ']':
		return "", pos, &SyntaxError{Offset: pos, Msg: "expected key"}
	}
	end := p.tokenEnd(pos, ':', ',', '}', '\n')
	key := strings.TrimRight(p.text[pos:end], " \t\r")
	if key == "" {
		return "", pos, &SyntaxError{Offset: pos, Msg: "expected key"}
	}
	return key, pos + len(key), nil
}
