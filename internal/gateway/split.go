package gateway

import (
	"strings"
	"unicode"
)

// Split breaks a script into individual statements on top-level semicolons.
// Semicolons inside string literals, quoted identifiers, comments and
// CREATE TRIGGER bodies do not terminate a statement. Statements that are
// empty or consist only of comments are dropped; the returned statements
// carry no trailing semicolon.
func Split(script string) []string {
	var (
		out   []string
		start int
		words wordTracker
	)

	flush := func(end int) {
		stmt := strings.TrimSpace(script[start:end])
		if hasCode(stmt) {
			out = append(out, stmt)
		}
		words = wordTracker{}
	}

	for i := 0; i < len(script); {
		c := script[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(script, i, c)
		case c == '[':
			i = skipUntil(script, i+1, "]")
		case c == '-' && strings.HasPrefix(script[i:], "--"):
			i = skipUntil(script, i+2, "\n")
		case c == '/' && strings.HasPrefix(script[i:], "/*"):
			i = skipUntil(script, i+2, "*/")
		case c == ';':
			if words.inBody() {
				i++
				continue
			}
			flush(i)
			i++
			start = i
		case isWordByte(c):
			j := i
			for j < len(script) && isWordByte(script[j]) {
				j++
			}
			words.add(script[i:j])
			i = j
		default:
			i++
		}
	}
	flush(len(script))
	return out
}

// wordTracker follows the keywords of the current statement far enough to
// know whether a semicolon sits inside a trigger body.
type wordTracker struct {
	count   int
	create  bool
	trigger bool
	depth   int
}

func (w *wordTracker) add(word string) {
	upper := strings.ToUpper(word)
	w.count++

	if w.count == 1 {
		w.create = upper == "CREATE"
		return
	}
	// CREATE [TEMP|TEMPORARY] TRIGGER
	if w.create && w.count <= 3 && upper == "TRIGGER" {
		w.trigger = true
		return
	}
	if !w.trigger {
		return
	}
	switch upper {
	case "BEGIN", "CASE":
		w.depth++
	case "END":
		if w.depth > 0 {
			w.depth--
		}
	}
}

func (w *wordTracker) inBody() bool {
	return w.trigger && w.depth > 0
}

// skipQuoted returns the index after the quoted token starting at i.
// A doubled quote character is an escaped quote.
func skipQuoted(s string, i int, quote byte) int {
	for j := i + 1; j < len(s); j++ {
		if s[j] != quote {
			continue
		}
		if j+1 < len(s) && s[j+1] == quote {
			j++
			continue
		}
		return j + 1
	}
	return len(s)
}

func skipUntil(s string, i int, terminator string) int {
	if i > len(s) {
		return len(s)
	}
	idx := strings.Index(s[i:], terminator)
	if idx < 0 {
		return len(s)
	}
	return i + idx + len(terminator)
}

func isWordByte(c byte) bool {
	return c == '_' || c >= 0x80 || unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c))
}

// hasCode reports whether stmt contains anything besides comments and space.
func hasCode(stmt string) bool {
	for i := 0; i < len(stmt); {
		switch {
		case strings.HasPrefix(stmt[i:], "--"):
			i = skipUntil(stmt, i+2, "\n")
		case strings.HasPrefix(stmt[i:], "/*"):
			i = skipUntil(stmt, i+2, "*/")
		case stmt[i] == ' ' || stmt[i] == '\t' || stmt[i] == '\n' || stmt[i] == '\r':
			i++
		default:
			return true
		}
	}
	return false
}
