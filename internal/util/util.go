// Package util provides small helpers shared across the gateway: JSON repair
// for model-produced tool arguments and API key masking for logs.
package util

import "bytes"

// HideAPIKey masks the middle of an API key so it can be logged safely.
// Keys of eight characters or fewer are fully masked.
func HideAPIKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "********"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// FixJSON converts single-quoted pseudo-JSON, which some models emit for tool
// arguments, into RFC 8259 JSON. Double-quoted strings pass through verbatim;
// single-quoted strings become double-quoted with embedded double quotes
// escaped. Anything else is left untouched.
func FixJSON(input string) string {
	var out bytes.Buffer

	inDouble := false
	inSingle := false
	escaped := false

	for _, r := range input {
		if inDouble {
			out.WriteRune(r)
			if escaped {
				escaped = false
				continue
			}
			if r == '\\' {
				escaped = true
				continue
			}
			if r == '"' {
				inDouble = false
			}
			continue
		}

		if inSingle {
			if escaped {
				escaped = false
				switch r {
				case '\'':
					out.WriteRune('\'')
				case '\\':
					out.WriteString(`\\`)
				default:
					out.WriteByte('\\')
					out.WriteRune(r)
				}
				continue
			}
			switch r {
			case '\\':
				escaped = true
			case '\'':
				out.WriteByte('"')
				inSingle = false
			case '"':
				out.WriteString(`\"`)
			default:
				out.WriteRune(r)
			}
			continue
		}

		switch r {
		case '"':
			inDouble = true
			out.WriteRune(r)
		case '\'':
			inSingle = true
			out.WriteByte('"')
		default:
			out.WriteRune(r)
		}
	}

	if inSingle {
		out.WriteByte('"')
	}
	return out.String()
}
