package runner

import (
	"fmt"
	"strings"
)

// SplitArgs tokenizes s like a POSIX shell, respecting single and double
// quotes and backslash escapes outside quotes. No variable expansion or
// globbing is performed. This allows test commands in sigma.yaml such as:
//
//	npx -y jest --silent
//	"/opt/go 1.24/bin/go"
//
// to be parsed correctly instead of being fragmented by whitespace splitting.
func SplitArgs(s string) ([]string, error) {
	var args []string
	var cur strings.Builder
	inSingle := false
	inDouble := false
	quoted := false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case inSingle:
			if ch == '\'' {
				inSingle = false
			} else {
				cur.WriteByte(ch)
			}
		case inDouble:
			if ch == '\\' && i+1 < len(s) {
				next := s[i+1]
				// Characters escapable inside double quotes per POSIX
				if next == '"' || next == '\\' || next == '$' || next == '`' || next == '\n' {
					cur.WriteByte(next)
					i++
				} else {
					cur.WriteByte(ch)
				}
			} else if ch == '"' {
				inDouble = false
			} else {
				cur.WriteByte(ch)
			}
		case ch == '\\':
			if i+1 < len(s) {
				cur.WriteByte(s[i+1])
				i++
			}
		case ch == '\'':
			inSingle, quoted = true, true
		case ch == '"':
			inDouble, quoted = true, true
		case ch == ' ' || ch == '\t' || ch == '\n':
			if cur.Len() > 0 || quoted {
				args = append(args, cur.String())
				cur.Reset()
				quoted = false
			}
		default:
			cur.WriteByte(ch)
		}
	}

	if inSingle {
		return nil, fmt.Errorf("unterminated single quote in %q", s)
	}
	if inDouble {
		return nil, fmt.Errorf("unterminated double quote in %q", s)
	}
	if cur.Len() > 0 || quoted {
		args = append(args, cur.String())
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("command must not be empty or whitespace")
	}
	return args, nil
}
