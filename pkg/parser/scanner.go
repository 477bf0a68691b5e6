package parser

import (
	"bytes"
	"iter"
)

// Scanner is a single pass lexer that only cares about where directives
// can start. It tracks comments, string and character literals, raw
// strings and numbers with digit separators so that '#include' inside any
// of them is ignored. Trigraphs are not supported.
type Scanner struct {
	comments bool
}

// NewScanner returns the default extractor.
func NewScanner(opts Options) *Scanner {
	return &Scanner{comments: !opts.KeepComments}
}

// Includes implements Extractor.
func (s *Scanner) Includes(content []byte) iter.Seq[Include] {
	return func(yield func(Include) bool) {
		st := &scanState{src: content, line: 1, comments: s.comments}
		st.run(yield)
	}
}

var rawPrefixes = map[string]bool{"R": true, "LR": true, "uR": true, "UR": true, "u8R": true}

type scanState struct {
	src      []byte
	pos      int
	line     int
	comments bool
}

func (s *scanState) eof() bool { return s.pos >= len(s.src) }

// at returns the byte k positions ahead, or 0 past the end.
func (s *scanState) at(k int) byte {
	if s.pos+k >= len(s.src) {
		return 0
	}
	return s.src[s.pos+k]
}

// splice skips backslash-newline sequences.
func (s *scanState) splice() {
	for s.pos < len(s.src) && s.src[s.pos] == '\\' {
		n := s.pos + 1
		if n < len(s.src) && s.src[n] == '\r' {
			n++
		}
		if n >= len(s.src) || s.src[n] != '\n' {
			return
		}
		s.pos = n + 1
		s.line++
	}
}

func (s *scanState) run(yield func(Include) bool) {
	atStart := true
	for {
		s.splice()
		if s.eof() {
			return
		}
		c := s.src[s.pos]
		switch {
		case c == '\n':
			s.pos++
			s.line++
			atStart = true
		case isBlank(c):
			s.pos++
		case c == '/' && s.comments && s.at(1) == '/':
			s.skipLineComment()
		case c == '/' && s.comments && s.at(1) == '*':
			s.skipBlockComment()
		case c == '"' || c == '\'':
			s.skipQuoted(c)
			atStart = false
		case isDigit(c) || (c == '.' && isDigit(s.at(1))):
			s.skipNumber()
			atStart = false
		case isIdentStart(c):
			s.skipIdentifier()
			atStart = false
		case c == '#' && atStart:
			line := s.line
			s.pos++
			atStart = false
			if inc, ok := s.directive(); ok {
				inc.Line = line
				if !yield(inc) {
					return
				}
			}
		default:
			s.pos++
			atStart = false
		}
	}
}

func (s *scanState) skipLineComment() {
	s.pos += 2
	for {
		s.splice()
		if s.eof() || s.src[s.pos] == '\n' {
			return
		}
		s.pos++
	}
}

func (s *scanState) skipBlockComment() {
	s.pos += 2
	for !s.eof() {
		switch {
		case s.src[s.pos] == '\n':
			s.line++
		case s.src[s.pos] == '*' && s.at(1) == '/':
			s.pos += 2
			return
		}
		s.pos++
	}
}

// skipQuoted consumes a string or character literal. An unterminated
// literal ends at the newline, which is left for the caller.
func (s *scanState) skipQuoted(quote byte) {
	s.pos++
	for {
		s.splice()
		if s.eof() || s.src[s.pos] == '\n' {
			return
		}
		c := s.src[s.pos]
		s.pos++
		switch c {
		case '\\':
			s.splice()
			if !s.eof() && s.src[s.pos] != '\n' {
				s.pos++
			}
		case quote:
			return
		}
	}
}

// skipNumber consumes a pp-number, so the ' in 1'000 is not a char literal.
func (s *scanState) skipNumber() {
	s.pos++
	for {
		s.splice()
		if s.eof() {
			return
		}
		c := s.src[s.pos]
		switch {
		case isIdentChar(c) || c == '.':
			s.pos++
		case c == '\'' && isIdentChar(s.at(1)):
			s.pos += 2
		case (c == '+' || c == '-') && bytes.IndexByte([]byte("eEpP"), s.src[s.pos-1]) >= 0:
			s.pos++
		default:
			return
		}
	}
}

func (s *scanState) skipIdentifier() {
	var name []byte
	for {
		s.splice()
		if s.eof() || !isIdentChar(s.src[s.pos]) {
			break
		}
		name = append(name, s.src[s.pos])
		s.pos++
	}
	if !s.eof() && s.src[s.pos] == '"' && rawPrefixes[string(name)] {
		s.skipRawString()
	}
}

// skipRawString consumes R"delim( ... )delim". Splices inside the body are
// not undone, which only matters for line counting.
func (s *scanState) skipRawString() {
	open := bytes.IndexByte(s.src[s.pos+1:], '(')
	if open < 0 || open > 16 || !validRawDelim(s.src[s.pos+1:s.pos+1+open]) {
		s.skipQuoted('"')
		return
	}
	delim := s.src[s.pos+1 : s.pos+1+open]
	bodyStart := s.pos + 1 + open + 1

	closing := make([]byte, 0, len(delim)+2)
	closing = append(closing, ')')
	closing = append(closing, delim...)
	closing = append(closing, '"')

	end := bytes.Index(s.src[bodyStart:], closing)
	if end < 0 {
		s.line += bytes.Count(s.src[s.pos:], []byte{'\n'})
		s.pos = len(s.src)
		return
	}
	stop := bodyStart + end + len(closing)
	s.line += bytes.Count(s.src[s.pos:stop], []byte{'\n'})
	s.pos = stop
}

func validRawDelim(d []byte) bool {
	for _, c := range d {
		if c <= ' ' || c == '\\' || c == ')' || c == '(' || c == '"' || c > '~' {
			return false
		}
	}
	return true
}

// skipInline skips blanks and, when comments are honored, comments that do
// not end the line.
func (s *scanState) skipInline() {
	for {
		s.splice()
		if s.eof() {
			return
		}
		c := s.src[s.pos]
		switch {
		case isBlank(c):
			s.pos++
		case c == '/' && s.comments && s.at(1) == '*':
			s.skipBlockComment()
		default:
			return
		}
	}
}

// directive parses what follows a '#'. The position is left on the same
// logical line when the directive is not a well formed include.
func (s *scanState) directive() (Include, bool) {
	s.skipInline()

	var name []byte
	for {
		s.splice()
		if s.eof() || !isIdentChar(s.src[s.pos]) {
			break
		}
		name = append(name, s.src[s.pos])
		s.pos++
	}
	if string(name) != "include" {
		return Include{}, false
	}

	s.skipInline()
	if s.eof() {
		return Include{}, false
	}

	var inc Include
	var closer byte
	switch s.src[s.pos] {
	case '"':
		inc.Form, closer = Quoted, '"'
	case '<':
		inc.Form, closer = Angled, '>'
	default:
		return Include{}, false
	}
	s.pos++

	var path []byte
	for {
		s.splice()
		if s.eof() || s.src[s.pos] == '\n' {
			return Include{}, false
		}
		c := s.src[s.pos]
		s.pos++
		if c == closer {
			break
		}
		path = append(path, c)
	}
	if len(bytes.TrimSpace(path)) == 0 {
		return Include{}, false
	}
	inc.Path = string(path)
	return inc, true
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\v' || c == '\f'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentChar(c byte) bool { return isIdentStart(c) || isDigit(c) }
