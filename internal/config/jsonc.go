package config

import "strings"

// StripJSONC removes line comments, block comments and trailing commas from a
// JSONC document while preserving newlines, so that positions reported by the
// JSON parser still point at the right line of the original text.
func StripJSONC(input string) string {
	var out strings.Builder
	out.Grow(len(input))

	const (
		stateNormal = iota
		stateString
		stateLineComment
		stateBlockComment
	)

	state := stateNormal
	escaped := false
	runes := []rune(input)

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		switch state {
		case stateString:
			out.WriteRune(r)
			if escaped {
				escaped = false
			} else if r == '\\' {
				escaped = true
			} else if r == '"' {
				state = stateNormal
			}

		case stateLineComment:
			if r == '\n' {
				out.WriteRune('\n')
				state = stateNormal
			}

		case stateBlockComment:
			if r == '\n' {
				out.WriteRune('\n')
			} else if r == '*' && i+1 < len(runes) && runes[i+1] == '/' {
				i++
				state = stateNormal
			}

		default:
			if r == '"' {
				state = stateString
				out.WriteRune(r)
				continue
			}
			if r == '/' && i+1 < len(runes) {
				if runes[i+1] == '/' {
					state = stateLineComment
					i++
					continue
				}
				if runes[i+1] == '*' {
					state = stateBlockComment
					i++
					continue
				}
			}
			if r == ',' && nextSignificantCloses(runes, i+1) {
				// trailing comma before } or ]
				continue
			}
			out.WriteRune(r)
		}
	}

	return out.String()
}

// nextSignificantCloses reports whether the next non-whitespace, non-comment
// rune is a closing brace or bracket.
func nextSignificantCloses(runes []rune, from int) bool {
	for i := from; i < len(runes); i++ {
		r := runes[i]
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			continue
		}
		if r == '/' && i+1 < len(runes) {
			if runes[i+1] == '/' {
				for i < len(runes) && runes[i] != '\n' {
					i++
				}
				continue
			}
			if runes[i+1] == '*' {
				i += 2
				for i+1 < len(runes) && !(runes[i] == '*' && runes[i+1] == '/') {
					i++
				}
				i++
				continue
			}
		}
		return r == '}' || r == ']'
	}
	return false
}
