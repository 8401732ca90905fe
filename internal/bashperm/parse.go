// Package bashperm decides whether a shell command string may execute.
// Decisions are structural: a command is parsed into {head, args, isComplex}
// and matched against allow/deny patterns — never against the raw string, so
// quoting games cannot change the outcome.
package bashperm

import "strings"

// Command is the parsed form of a shell command string.
type Command struct {
	Raw       string
	Head      string
	Args      []string
	IsComplex bool // contains |, &&, ||, ;, redirection or substitution
}

// complexity markers that allow component-wise splitting.
var splitOperators = []string{"&&", "||", "|", ";"}

// ParseCommand tokenizes a single shell command. Quoted arguments are
// unquoted before matching: `git "log"` and `git log` are the same command.
func ParseCommand(raw string) Command {
	cmd := Command{Raw: raw, IsComplex: isComplex(raw)}
	tokens := tokenize(raw)
	if len(tokens) == 0 {
		return cmd
	}
	cmd.Head = tokens[0]
	cmd.Args = tokens[1:]
	return cmd
}

// isComplex reports whether raw contains shell control operators,
// redirection, or substitution outside of quotes.
func isComplex(raw string) bool {
	var inSingle, inDouble bool
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		switch {
		case inSingle:
			if ch == '\'' {
				inSingle = false
			}
		case inDouble:
			if ch == '\\' {
				i++
			} else if ch == '"' {
				inDouble = false
			}
		default:
			switch ch {
			case '\'':
				inSingle = true
			case '"':
				inDouble = true
			case '|', ';', '<', '>', '`':
				return true
			case '&':
				if i+1 < len(raw) && raw[i+1] == '&' {
					return true
				}
			case '$':
				if i+1 < len(raw) && raw[i+1] == '(' {
					return true
				}
			}
		}
	}
	return false
}

// SplitComplex splits a complex command into its simple components across
// |, &&, || and ;. It returns ok=false when the command contains redirection
// or substitution, which cannot be split safely and must therefore be denied
// as a whole.
func SplitComplex(raw string) (components []string, ok bool) {
	if containsUnsplittable(raw) {
		return nil, false
	}

	var parts []string
	var cur strings.Builder
	var inSingle, inDouble bool

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			parts = append(parts, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		switch {
		case inSingle:
			cur.WriteByte(ch)
			if ch == '\'' {
				inSingle = false
			}
		case inDouble:
			cur.WriteByte(ch)
			if ch == '\\' && i+1 < len(raw) {
				i++
				cur.WriteByte(raw[i])
			} else if ch == '"' {
				inDouble = false
			}
		case ch == '\'':
			inSingle = true
			cur.WriteByte(ch)
		case ch == '"':
			inDouble = true
			cur.WriteByte(ch)
		case ch == '&' && i+1 < len(raw) && raw[i+1] == '&':
			flush()
			i++
		case ch == '|' && i+1 < len(raw) && raw[i+1] == '|':
			flush()
			i++
		case ch == '|' || ch == ';':
			flush()
		default:
			cur.WriteByte(ch)
		}
	}
	flush()

	if len(parts) == 0 {
		return nil, false
	}
	return parts, true
}

// containsUnsplittable reports redirection or substitution outside quotes.
func containsUnsplittable(raw string) bool {
	var inSingle, inDouble bool
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		switch {
		case inSingle:
			if ch == '\'' {
				inSingle = false
			}
		case inDouble:
			if ch == '\\' {
				i++
			} else if ch == '"' {
				inDouble = false
			}
		default:
			switch ch {
			case '\'':
				inSingle = true
			case '"':
				inDouble = true
			case '<', '>', '`':
				return true
			case '$':
				if i+1 < len(raw) && raw[i+1] == '(' {
					return true
				}
			}
		}
	}
	return false
}

// tokenize splits a simple command into whitespace-separated tokens,
// stripping surrounding quotes. Escapes inside double quotes are honoured.
func tokenize(raw string) []string {
	var tokens []string
	var cur strings.Builder
	var inSingle, inDouble, started bool

	flush := func() {
		if started {
			tokens = append(tokens, cur.String())
			cur.Reset()
			started = false
		}
	}

	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		switch {
		case inSingle:
			if ch == '\'' {
				inSingle = false
			} else {
				cur.WriteByte(ch)
			}
		case inDouble:
			switch {
			case ch == '\\' && i+1 < len(raw):
				i++
				cur.WriteByte(raw[i])
			case ch == '"':
				inDouble = false
			default:
				cur.WriteByte(ch)
			}
		case ch == '\'':
			inSingle = true
			started = true
		case ch == '"':
			inDouble = true
			started = true
		case ch == ' ' || ch == '\t' || ch == '\n':
			flush()
		case ch == '\\' && i+1 < len(raw):
			i++
			cur.WriteByte(raw[i])
			started = true
		default:
			cur.WriteByte(ch)
			started = true
		}
	}
	flush()
	return tokens
}
