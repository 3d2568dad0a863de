package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// parsePythonLiteral parses Python literal notation: dicts, lists, tuples,
// single- or double-quoted strings, numbers, True, False and None. It is
// the middle strategy in the chain, covering the subprocess dialect that
// strict JSON rejects. The whole input must be a single literal.
func parsePythonLiteral(text string) (any, error) {
	s := &literalScanner{input: text}
	s.skipSpace()
	v, err := s.value()
	if err != nil {
		return nil, err
	}
	s.skipSpace()
	if s.pos != len(s.input) {
		return nil, fmt.Errorf("trailing data at offset %d", s.pos)
	}
	return v, nil
}

type literalScanner struct {
	input string
	pos   int
}

func (s *literalScanner) errf(format string, args ...any) error {
	return fmt.Errorf("offset %d: %s", s.pos, fmt.Sprintf(format, args...))
}

func (s *literalScanner) skipSpace() {
	for s.pos < len(s.input) {
		switch s.input[s.pos] {
		case ' ', '\t', '\n', '\r':
			s.pos++
		default:
			return
		}
	}
}

func (s *literalScanner) peek() (byte, error) {
	if s.pos >= len(s.input) {
		return 0, s.errf("unexpected end of input")
	}
	return s.input[s.pos], nil
}

func (s *literalScanner) value() (any, error) {
	c, err := s.peek()
	if err != nil {
		return nil, err
	}
	switch {
	case c == '{':
		return s.dict()
	case c == '[':
		return s.list(']')
	case c == '(':
		return s.list(')')
	case c == '\'' || c == '"':
		return s.str()
	case c == '-' || c == '+' || (c >= '0' && c <= '9') || c == '.':
		return s.number()
	default:
		return s.keyword()
	}
}

func (s *literalScanner) keyword() (any, error) {
	for kw, v := range map[string]any{"True": true, "False": false, "None": nil} {
		if strings.HasPrefix(s.input[s.pos:], kw) {
			s.pos += len(kw)
			return v, nil
		}
	}
	return nil, s.errf("unexpected character %q", s.input[s.pos])
}

func (s *literalScanner) dict() (any, error) {
	s.pos++ // consume '{'
	out := make(map[string]any)
	s.skipSpace()
	if c, err := s.peek(); err != nil {
		return nil, err
	} else if c == '}' {
		s.pos++
		return out, nil
	}
	for {
		s.skipSpace()
		key, err := s.value()
		if err != nil {
			return nil, err
		}
		// Python dict keys can be any hashable literal; coerce to
		// string so the result shape matches JSON objects.
		keyStr, ok := key.(string)
		if !ok {
			keyStr = fmt.Sprintf("%v", key)
		}
		s.skipSpace()
		if c, err := s.peek(); err != nil {
			return nil, err
		} else if c != ':' {
			return nil, s.errf("expected ':' in dict, got %q", c)
		}
		s.pos++
		s.skipSpace()
		val, err := s.value()
		if err != nil {
			return nil, err
		}
		out[keyStr] = val

		s.skipSpace()
		c, err := s.peek()
		if err != nil {
			return nil, err
		}
		switch c {
		case ',':
			s.pos++
			s.skipSpace()
			// Tolerate a trailing comma before the closing brace.
			if c, err := s.peek(); err == nil && c == '}' {
				s.pos++
				return out, nil
			}
		case '}':
			s.pos++
			return out, nil
		default:
			return nil, s.errf("expected ',' or '}' in dict, got %q", c)
		}
	}
}

// list parses both Python lists and tuples; tuples come back as slices so
// downstream consumers see a single sequence shape.
func (s *literalScanner) list(closing byte) (any, error) {
	s.pos++ // consume opening bracket
	out := make([]any, 0)
	s.skipSpace()
	if c, err := s.peek(); err != nil {
		return nil, err
	} else if c == closing {
		s.pos++
		return out, nil
	}
	for {
		s.skipSpace()
		v, err := s.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)

		s.skipSpace()
		c, err := s.peek()
		if err != nil {
			return nil, err
		}
		switch c {
		case ',':
			s.pos++
			s.skipSpace()
			if c, err := s.peek(); err == nil && c == closing {
				s.pos++
				return out, nil
			}
		case closing:
			s.pos++
			return out, nil
		default:
			return nil, s.errf("expected ',' or %q in sequence, got %q", closing, c)
		}
	}
}

func (s *literalScanner) str() (string, error) {
	quote := s.input[s.pos]
	s.pos++
	var b strings.Builder
	for {
		if s.pos >= len(s.input) {
			return "", s.errf("unterminated string")
		}
		c := s.input[s.pos]
		switch c {
		case quote:
			s.pos++
			return b.String(), nil
		case '\\':
			s.pos++
			if s.pos >= len(s.input) {
				return "", s.errf("unterminated escape")
			}
			esc := s.input[s.pos]
			switch esc {
			case '\'', '"', '\\':
				b.WriteByte(esc)
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case 'b':
				b.WriteByte('\b')
			case 'f':
				b.WriteByte('\f')
			case '0':
				b.WriteByte(0)
			case 'x':
				if s.pos+2 >= len(s.input) {
					return "", s.errf("truncated \\x escape")
				}
				n, err := strconv.ParseUint(s.input[s.pos+1:s.pos+3], 16, 8)
				if err != nil {
					return "", s.errf("invalid \\x escape: %v", err)
				}
				b.WriteByte(byte(n))
				s.pos += 2
			case 'u':
				if s.pos+4 >= len(s.input) {
					return "", s.errf("truncated \\u escape")
				}
				n, err := strconv.ParseUint(s.input[s.pos+1:s.pos+5], 16, 32)
				if err != nil {
					return "", s.errf("invalid \\u escape: %v", err)
				}
				b.WriteRune(rune(n))
				s.pos += 4
			default:
				return "", s.errf("unsupported escape \\%c", esc)
			}
			s.pos++
		default:
			r, size := utf8.DecodeRuneInString(s.input[s.pos:])
			b.WriteRune(r)
			s.pos += size
		}
	}
}

// number returns float64 for every numeric literal so values compare equal
// to the same input parsed as JSON.
func (s *literalScanner) number() (any, error) {
	start := s.pos
	if c := s.input[s.pos]; c == '-' || c == '+' {
		s.pos++
	}
	seenDigit := false
	for s.pos < len(s.input) {
		c := s.input[s.pos]
		if (c >= '0' && c <= '9') || c == '.' || c == 'e' || c == 'E' {
			if c >= '0' && c <= '9' {
				seenDigit = true
			}
			s.pos++
			continue
		}
		if (c == '-' || c == '+') && (s.input[s.pos-1] == 'e' || s.input[s.pos-1] == 'E') {
			s.pos++
			continue
		}
		break
	}
	if !seenDigit {
		return nil, s.errf("invalid number")
	}
	f, err := strconv.ParseFloat(s.input[start:s.pos], 64)
	if err != nil {
		return nil, s.errf("invalid number %q: %v", s.input[start:s.pos], err)
	}
	return f, nil
}
