package processor

import (
	"strings"
)

// A placeholder rarely survives editing as one contiguous text run; word
// processors split it across runs with formatting tags in between. The scanner
// therefore walks the raw XML, skips everything inside tags, and matches the
// placeholder grammar against the remaining character stream, the same way the
// processor matches split placeholders during replacement.

// maxTokenLen caps how many clean characters a candidate token may span before
// the opening brace is treated as literal text.
const maxTokenLen = 256

type tokenKind int

const (
	tokenField tokenKind = iota
	tokenOption
	tokenMirror
)

// token is one parsed placeholder occurrence.
type token struct {
	kind  tokenKind
	name  string
	label string // option label, only for tokenOption
}

// span locates one placeholder occurrence inside a part's raw XML. start is
// the byte offset of the opening brace, end the offset just past the closing
// brace; tags inside the span belong to run boundaries that are dropped when
// the span is replaced.
type span struct {
	raw   string
	start int
	end   int
}

// scanSpans finds placeholder candidate spans in xml. Candidates are any
// brace-delimited clean-text runs; grammar validation happens in parseToken so
// that literal braces fall through untouched.
func scanSpans(xml string) []span {
	var spans []span

	i := 0
	for i < len(xml) {
		c := xml[i]
		if c == '<' {
			end := strings.IndexByte(xml[i:], '>')
			if end == -1 {
				break
			}
			i += end + 1
			continue
		}
		if c != '{' {
			i++
			continue
		}

		if s, ok := matchSpan(xml, i); ok {
			spans = append(spans, s)
			i = s.end
		} else {
			i++
		}
	}

	return spans
}

// matchSpan tries to read one {...} token starting at the opening brace at
// offset start, skipping XML tags. A second opening brace or an oversized
// token aborts the match.
func matchSpan(xml string, start int) (span, bool) {
	var clean strings.Builder
	clean.WriteByte('{')

	i := start + 1
	for i < len(xml) {
		c := xml[i]
		if c == '<' {
			end := strings.IndexByte(xml[i:], '>')
			if end == -1 {
				return span{}, false
			}
			i += end + 1
			continue
		}
		if c == '{' {
			return span{}, false
		}
		clean.WriteByte(c)
		i++
		if c == '}' {
			return span{raw: clean.String(), start: start, end: i}, true
		}
		if clean.Len() > maxTokenLen {
			return span{}, false
		}
	}

	return span{}, false
}

// parseToken validates a raw {...} span against the placeholder grammar.
// reason is non-empty when the span looked like a placeholder but is malformed
// in a way a template author should hear about.
func parseToken(raw string) (tok token, ok bool, reason string) {
	inner := raw[1 : len(raw)-1]

	switch {
	case strings.HasPrefix(inner, "#"):
		rest := inner[1:]
		sep := strings.IndexByte(rest, '#')
		if sep <= 0 {
			return token{}, false, "dropdown option is missing its closing '#'"
		}
		name := rest[:sep]
		if !isIdentifier(name) {
			return token{}, false, ""
		}
		label := strings.TrimSpace(unescapeXML(rest[sep+1:]))
		return token{kind: tokenOption, name: name, label: label}, true, ""

	case strings.HasPrefix(inner, "@"):
		name := inner[1:]
		if !isIdentifier(name) {
			return token{}, false, ""
		}
		return token{kind: tokenMirror, name: name}, true, ""

	default:
		if !isIdentifier(inner) {
			return token{}, false, ""
		}
		return token{kind: tokenField, name: inner}, true, ""
	}
}

// isIdentifier reports whether s is a valid variable name: letters, digits and
// underscores only.
func isIdentifier(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// escapeXML escapes substitution text for the package's markup so that field
// values containing markup characters cannot corrupt the payload.
func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

var xmlUnescaper = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&amp;", "&",
)

// unescapeXML reverses entity encoding in text lifted out of a payload, so
// option labels compare equal to the plain values callers submit.
func unescapeXML(s string) string {
	return xmlUnescaper.Replace(s)
}
