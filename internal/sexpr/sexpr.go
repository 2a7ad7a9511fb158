// Package sexpr scans the parenthesized structured-text format used by KiCad
// library files.
//
// It is deliberately not a full grammar: the only operations the importer
// needs are locating complete top-level blocks by their leading keyword and
// reading a block's name token. The scanner tracks nesting depth and string
// literals (including escaped quotes) so delimiter characters inside strings
// never affect nesting. Unexpected top-level content is passed over silently,
// which keeps hand-edited library files intact.
package sexpr

import "strings"

// TopLevelBlocks returns every complete block nested directly under the file's
// outer form whose leading token equals keyword. Blocks are returned verbatim,
// including their delimiters, in document order.
func TopLevelBlocks(text, keyword string) []string {
	var blocks []string
	depth := 0
	inString := false
	escape := false
	i := 0
	for i < len(text) {
		ch := text[i]
		if inString {
			switch {
			case escape:
				escape = false
			case ch == '\\':
				escape = true
			case ch == '"':
				inString = false
			}
			i++
			continue
		}

		switch ch {
		case '"':
			inString = true
			i++
		case '(':
			depthBefore := depth
			depth++
			if depthBefore == 1 && leadingToken(text, i) == keyword {
				end := matchingParen(text, i)
				if end != -1 {
					blocks = append(blocks, text[i:end+1])
					i = end + 1
					depth = depthBefore
					continue
				}
			}
			i++
		case ')':
			if depth > 0 {
				depth--
			}
			i++
		default:
			i++
		}
	}
	return blocks
}

// BlockName returns the first token following the block's keyword, unquoting
// string literals with escape handling. It returns "" when the block does not
// start with "(keyword" or carries no name.
func BlockName(block, keyword string) string {
	text := strings.TrimLeft(block, " \t\r\n")
	prefix := "(" + keyword
	if !strings.HasPrefix(text, prefix) {
		return ""
	}
	i := len(prefix)
	for i < len(text) && isSpace(text[i]) {
		i++
	}
	if i >= len(text) {
		return ""
	}
	if text[i] == '"' {
		i++
		var b strings.Builder
		escape := false
		for i < len(text) {
			ch := text[i]
			if escape {
				b.WriteByte(ch)
				escape = false
			} else if ch == '\\' {
				escape = true
			} else if ch == '"' {
				break
			} else {
				b.WriteByte(ch)
			}
			i++
		}
		return strings.TrimSpace(b.String())
	}
	start := i
	for i < len(text) && !isSpace(text[i]) && text[i] != '(' && text[i] != ')' {
		i++
	}
	return strings.TrimSpace(text[start:i])
}

// leadingToken reads the bare atom immediately after the opening paren at pos.
func leadingToken(text string, pos int) string {
	j := pos + 1
	for j < len(text) && isSpace(text[j]) {
		j++
	}
	start := j
	for j < len(text) && !isSpace(text[j]) && text[j] != '(' && text[j] != ')' {
		j++
	}
	return text[start:j]
}

// matchingParen returns the index of the parenthesis closing the one at start,
// or -1 when the block is unterminated.
func matchingParen(text string, start int) int {
	if start < 0 || start >= len(text) || text[start] != '(' {
		return -1
	}
	depth := 0
	inString := false
	escape := false
	for idx := start; idx < len(text); idx++ {
		ch := text[idx]
		if inString {
			switch {
			case escape:
				escape = false
			case ch == '\\':
				escape = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return idx
			}
		}
	}
	return -1
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}
