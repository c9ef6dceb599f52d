package adapters

import "unicode/utf8"

// region classifies each byte of a source file
type region uint8

const (
	regionCode region = iota
	regionComment
	regionString
)

// syntax describes the comment and string forms of a language
type syntax struct {
	lineComments  []string
	blockComments [][2]string
	quotes        string // single-byte string delimiters
	charQuote     bool   // ' delimits short char literals only (C, Java, Rust)
	tripleQuote   bool   // """ text blocks (Java, Kotlin)
	rawStrings    bool   // r"..." and r#"..."# (Rust)
	delimStrings  bool   // R"delim(...)delim" (C++)
}

var (
	cSyntax = syntax{
		lineComments:  []string{"//"},
		blockComments: [][2]string{{"/*", "*/"}},
		quotes:        `"`,
		charQuote:     true,
		delimStrings:  true,
	}
	javaSyntax = syntax{
		lineComments:  []string{"//"},
		blockComments: [][2]string{{"/*", "*/"}},
		quotes:        `"`,
		charQuote:     true,
		tripleQuote:   true,
	}
	rustSyntax = syntax{
		lineComments:  []string{"//"},
		blockComments: [][2]string{{"/*", "*/"}},
		quotes:        `"`,
		charQuote:     true,
		rawStrings:    true,
	}
	rubySyntax = syntax{
		lineComments:  []string{"#"},
		blockComments: [][2]string{{"\n=begin", "\n=end"}},
		quotes:        "\"'`",
	}
)

// mask classifies every byte of src as code, comment or string literal.
// Comment delimiters inside strings and quotes inside comments are inert.
func (s syntax) mask(src []byte) []region {
	out := make([]region, len(src))
	n := len(src)

	fill := func(from, to int, r region) {
		if to > n {
			to = n
		}
		for k := from; k < to; k++ {
			out[k] = r
		}
	}

	i := 0
	for i < n {
		if end, ok := s.blockComment(src, i); ok {
			fill(i, end, regionComment)
			i = end
			continue
		}
		if s.lineComment(src, i) {
			end := indexByteFrom(src, i, '\n')
			fill(i, end, regionComment)
			i = end
			continue
		}
		if s.rawStrings {
			if end, ok := rawString(src, i); ok {
				fill(i, end, regionString)
				i = end
				continue
			}
		}
		if s.delimStrings {
			if end, ok := delimString(src, i); ok {
				fill(i, end, regionString)
				i = end
				continue
			}
		}
		if s.tripleQuote && hasPrefixAt(src, i, `"""`) {
			end := indexFrom(src, i+3, `"""`)
			if end < n {
				end += 3
			}
			fill(i, end, regionString)
			i = end
			continue
		}

		c := src[i]
		if c == '\'' && s.charQuote {
			if end, ok := charLiteral(src, i); ok {
				fill(i, end, regionString)
				i = end
				continue
			}
			i++
			continue
		}
		if isQuote(c, s.quotes) {
			end := quotedEnd(src, i, c)
			fill(i, end, regionString)
			i = end
			continue
		}
		i++
	}
	return out
}

func (s syntax) lineComment(src []byte, i int) bool {
	for _, lc := range s.lineComments {
		if hasPrefixAt(src, i, lc) {
			return true
		}
	}
	return false
}

func (s syntax) blockComment(src []byte, i int) (int, bool) {
	for _, bc := range s.blockComments {
		open, close := bc[0], bc[1]
		// Line-anchored openers (Ruby =begin) also match at offset 0
		if open[0] == '\n' && i == 0 && hasPrefixAt(src, 0, open[1:]) {
			return indexFrom(src, len(open)-1, close) + len(close), true
		}
		if hasPrefixAt(src, i, open) {
			end := indexFrom(src, i+len(open), close)
			if end >= len(src) {
				return len(src), true
			}
			return end + len(close), true
		}
	}
	return 0, false
}

// quotedEnd returns the offset after the closing quote. Unterminated strings
// stop at end of line.
func quotedEnd(src []byte, start int, q byte) int {
	for i := start + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case q:
			return i + 1
		case '\n':
			if q != '`' {
				return i
			}
		}
	}
	return len(src)
}

// charLiteral matches 'x', '\n', '\x41', '\u{1F600}'. Anything else is not
// a literal (Rust lifetimes, apostrophes in identifiers).
func charLiteral(src []byte, start int) (int, bool) {
	if start+2 >= len(src) {
		return 0, false
	}
	if src[start+1] == '\\' {
		limit := start + 12
		if limit > len(src) {
			limit = len(src)
		}
		for i := start + 2; i < limit; i++ {
			switch src[i] {
			case '\'':
				return i + 1, true
			case '\n':
				return 0, false
			}
		}
		return 0, false
	}
	_, size := utf8.DecodeRune(src[start+1:])
	end := start + 1 + size
	if src[start+1] == '\'' || src[start+1] == '\n' || end >= len(src) || src[end] != '\'' {
		return 0, false
	}
	return end + 1, true
}

// rawString matches Rust r"..." / r#"..."# / br"..." at i
func rawString(src []byte, i int) (int, bool) {
	if i > 0 && isIdentByte(src[i-1]) {
		return 0, false
	}
	j := i
	if j < len(src) && src[j] == 'b' {
		j++
	}
	if j >= len(src) || src[j] != 'r' {
		return 0, false
	}
	j++
	hashes := 0
	for j < len(src) && src[j] == '#' {
		hashes++
		j++
	}
	if j >= len(src) || src[j] != '"' {
		return 0, false
	}
	closing := "\"" + repeatHash(hashes)
	end := indexFrom(src, j+1, closing)
	if end >= len(src) {
		return len(src), true
	}
	return end + len(closing), true
}

// delimString matches C++ R"delim(...)delim" with an optional L, u, U or u8
// prefix at i. The delimiter is at most 16 characters.
func delimString(src []byte, i int) (int, bool) {
	if i > 0 && isIdentByte(src[i-1]) {
		return 0, false
	}
	j := i
	for _, p := range []string{"u8", "L", "u", "U"} {
		if hasPrefixAt(src, j, p+`R"`) {
			j += len(p)
			break
		}
	}
	if !hasPrefixAt(src, j, `R"`) {
		return 0, false
	}
	j += 2
	start := j
	for j < len(src) && j-start <= 16 {
		switch src[j] {
		case '(':
			closing := ")" + string(src[start:j]) + `"`
			end := indexFrom(src, j+1, closing)
			if end >= len(src) {
				return len(src), true
			}
			return end + len(closing), true
		case ' ', ')', '\\', '\t', '\n', '"':
			return 0, false
		}
		j++
	}
	return 0, false
}

func repeatHash(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '#'
	}
	return string(b)
}

func isQuote(c byte, quotes string) bool {
	for k := 0; k < len(quotes); k++ {
		if quotes[k] == c {
			return true
		}
	}
	return false
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func hasPrefixAt(src []byte, i int, prefix string) bool {
	if i+len(prefix) > len(src) {
		return false
	}
	return string(src[i:i+len(prefix)]) == prefix
}

func indexByteFrom(src []byte, from int, c byte) int {
	for k := from; k < len(src); k++ {
		if src[k] == c {
			return k
		}
	}
	return len(src)
}

func indexFrom(src []byte, from int, needle string) int {
	for k := from; k+len(needle) <= len(src); k++ {
		if string(src[k:k+len(needle)]) == needle {
			return k
		}
	}
	return len(src)
}

// lineAt returns the 1-based line of a byte offset
func lineAt(src []byte, offset int) int {
	line := 1
	for k := 0; k < offset && k < len(src); k++ {
		if src[k] == '\n' {
			line++
		}
	}
	return line
}
