package docx

import (
	"fmt"
	"strings"
)

// maxTagSpan bounds how far a tag may stretch across run boundaries
// before the opening braces are treated as literal text.
const maxTagSpan = 2000

// resolve walks the document body left to right, expanding repeating
// sections and substituting simple tags. Tags split across run
// boundaries by the word processor are matched through the markup.
func resolve(body string, ctx Context) (string, error) {
	var out strings.Builder
	i := 0
	for {
		name, s, e, ok := nextTag(body, i)
		if !ok {
			out.WriteString(body[i:])
			break
		}
		switch {
		case strings.HasPrefix(name, "#"):
			next, err := expandSection(&out, body, ctx, strings.TrimSpace(name[1:]), i, s, e)
			if err != nil {
				return "", err
			}
			i = next
		case strings.HasPrefix(name, "/"):
			return "", &SyntaxError{
				Tag:    strings.TrimSpace(name[1:]),
				Offset: s,
				Reason: "section close without matching open",
			}
		default:
			out.WriteString(body[i:s])
			repl, err := renderValue(ctx[name], name, s)
			if err != nil {
				return "", err
			}
			out.WriteString(repl)
			i = e
		}
	}
	return out.String(), nil
}

// expandSection repeats the templated region between {{#name}} and
// {{/name}} once per element. When both markers sit inside the same
// table row the whole row is repeated, preserving the formatting of the
// template's first instance; otherwise only the inner fragment repeats.
func expandSection(out *strings.Builder, body string, ctx Context, name string, consumed, s, e int) (int, error) {
	closeS, closeE, err := findClose(body, e, name)
	if err != nil {
		return 0, err
	}

	items, err := sectionItems(ctx[name], name, s)
	if err != nil {
		return 0, err
	}

	unit := body[e:closeS]
	next := closeE
	if rowS, rowE, ok := enclosingRow(body, s, closeE); ok && rowS >= consumed {
		out.WriteString(body[consumed:rowS])
		unit = body[rowS:s] + body[e:closeS] + body[closeE:rowE]
		next = rowE
	} else {
		out.WriteString(body[consumed:s])
	}

	for _, sub := range items {
		rendered, err := resolve(unit, overlay(ctx, sub))
		if err != nil {
			return 0, err
		}
		out.WriteString(rendered)
	}
	return next, nil
}

// findClose locates the matching close marker, honouring nested
// sections of the same name.
func findClose(body string, from int, name string) (int, int, error) {
	depth := 0
	i := from
	for {
		tag, s, e, ok := nextTag(body, i)
		if !ok {
			return 0, 0, &SyntaxError{Tag: name, Offset: from, Reason: "unclosed section"}
		}
		switch strings.TrimSpace(tag) {
		case "#" + name:
			depth++
		case "/" + name:
			if depth == 0 {
				return s, e, nil
			}
			depth--
		}
		i = e
	}
}

func sectionItems(v any, tag string, offset int) ([]Context, error) {
	switch items := v.(type) {
	case nil:
		return nil, nil
	case []Context:
		return items, nil
	case []map[string]any:
		out := make([]Context, len(items))
		for i, m := range items {
			out[i] = Context(m)
		}
		return out, nil
	case []any:
		out := make([]Context, 0, len(items))
		for _, el := range items {
			switch sub := el.(type) {
			case Context:
				out = append(out, sub)
			case map[string]any:
				out = append(out, Context(sub))
			default:
				return nil, &SyntaxError{Tag: tag, Offset: offset, Reason: "section element is not a sub-context"}
			}
		}
		return out, nil
	default:
		return nil, &SyntaxError{Tag: tag, Offset: offset, Reason: "section expects an array of sub-contexts"}
	}
}

func overlay(parent Context, sub Context) Context {
	merged := make(Context, len(parent)+len(sub))
	for k, v := range parent {
		merged[k] = v
	}
	for k, v := range sub {
		merged[k] = v
	}
	return merged
}

func renderValue(v any, tag string, offset int) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return escapeInline(val), nil
	case []RichRun:
		return runsXML(val), nil
	case []Context, []map[string]any:
		return "", &SyntaxError{Tag: tag, Offset: offset, Reason: "repeating value used outside a section"}
	default:
		return escapeInline(fmt.Sprint(val)), nil
	}
}

// nextTag returns the next {{name}} marker at or after from. The
// returned span covers the raw bytes from the first opening brace to
// just past the closing brace, markup included.
func nextTag(body string, from int) (name string, start, end int, found bool) {
	i := from
	for {
		rel := strings.IndexByte(body[i:], '{')
		if rel < 0 {
			return "", 0, 0, false
		}
		pos := i + rel
		i = pos + 1
		if !inTextNode(body, pos) {
			continue
		}
		second := nextContent(body, pos+1)
		if second >= len(body) || body[second] != '{' {
			continue
		}
		var b strings.Builder
		p := nextContent(body, second+1)
		for {
			if p >= len(body) || p-pos > maxTagSpan {
				b.Reset()
				break
			}
			if body[p] == '}' {
				q := nextContent(body, p+1)
				if q < len(body) && body[q] == '}' {
					return strings.TrimSpace(b.String()), pos, q + 1, true
				}
				// single closing brace: literal
				b.Reset()
				break
			}
			b.WriteByte(body[p])
			p = nextContent(body, p+1)
		}
	}
}

// nextContent returns the index of the next content byte at or after i,
// skipping XML markup.
func nextContent(body string, i int) int {
	for i < len(body) {
		if body[i] != '<' {
			return i
		}
		rel := strings.IndexByte(body[i:], '>')
		if rel < 0 {
			return len(body)
		}
		i += rel + 1
	}
	return i
}

// inTextNode reports whether pos sits inside the character content of a
// w:t element.
func inTextNode(body string, pos int) bool {
	before := body[:pos]
	if strings.LastIndexByte(before, '<') > strings.LastIndexByte(before, '>') {
		return false
	}
	seg := before
	for {
		o := strings.LastIndex(seg, "<w:t")
		if o < 0 {
			// section fragments may start inside a text node
			return !strings.Contains(before, "<w:") && !strings.Contains(before, "</w:")
		}
		rest := body[o+4:]
		if rest != "" && (rest[0] == '>' || rest[0] == ' ') {
			return strings.LastIndex(before, "</w:t>") < o
		}
		seg = seg[:o]
	}
}

// enclosingRow finds the table row containing both span ends, if any.
func enclosingRow(body string, start, end int) (int, int, bool) {
	rs := strings.LastIndex(body[:start], "<w:tr")
	if rs < 0 {
		return 0, 0, false
	}
	if rest := body[rs+5:]; rest == "" || (rest[0] != '>' && rest[0] != ' ') {
		return 0, 0, false
	}
	if strings.Contains(body[rs:start], "</w:tr>") {
		return 0, 0, false
	}
	rel := strings.Index(body[end:], "</w:tr>")
	if rel < 0 {
		return 0, 0, false
	}
	re := end + rel + len("</w:tr>")
	if strings.Contains(body[end:re-len("</w:tr>")], "<w:tr") {
		return 0, 0, false
	}
	return rs, re, true
}
