package filter

import "strings"

// regexMeta lists the regex metacharacters that, once a shell-escaped
// literal is de-escaped, still need a backslash in the PCRE output so they
// match literally instead of being interpreted (spec §4.F).
const regexMeta = `.|+(){}[]^$*?\`

// Translate rewrites a shell-like glob pattern into an anchored PCRE-style
// regular expression (spec §4.F/§6/§8), applying these rules left to
// right with a single-character escape state:
//
//   - `\c` keeps c literally: the backslash is consumed, and c is emitted
//     escaped if it is itself a regex metacharacter, bare otherwise.
//   - Outside a character class, `*` becomes `.*` and `?` becomes `.`.
//   - Any of `.|+(){}` is backslash-escaped when not already escaped.
//   - `[…]` is passed through verbatim; the escape state is reset on
//     entering a class.
//   - The result is anchored `^…$`; RE2 (Go's regexp engine) has no
//     lookahead, but needs none here: outside multiline mode `$` already
//     anchors to end-of-text and `.` already excludes `\n`, so a plain
//     `$` already disallows embedded newlines.
//
// Translate is total: every input string produces some output string, no
// error is possible.
func Translate(pattern string) string {
	var out strings.Builder
	out.WriteByte('^')

	escaped := false
	inClass := false

	for i := 0; i < len(pattern); i++ {
		c := pattern[i]

		if escaped {
			if strings.IndexByte(regexMeta, c) >= 0 {
				out.WriteByte('\\')
			}
			out.WriteByte(c)
			escaped = false
			continue
		}

		switch {
		case c == '\\':
			escaped = true
		case inClass:
			out.WriteByte(c)
			if c == ']' {
				inClass = false
			}
		case c == '[':
			inClass = true
			escaped = false
			out.WriteByte(c)
		case c == '*':
			out.WriteString(".*")
		case c == '?':
			out.WriteByte('.')
		case strings.IndexByte(`.|+(){}`, c) >= 0:
			out.WriteByte('\\')
			out.WriteByte(c)
		default:
			out.WriteByte(c)
		}
	}

	// A trailing, unterminated escape has no next character to consume;
	// treat it as a literal backslash, escaped.
	if escaped {
		out.WriteString(`\\`)
	}

	out.WriteByte('$')
	return out.String()
}
