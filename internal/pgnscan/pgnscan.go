// Package pgnscan decodes PGN game records directly from an in-memory corpus.
//
// Unlike a streaming parser it addresses games by byte offset, so many
// goroutines can decode disjoint games from one shared buffer. Only the
// main line is kept; every {comment} or ;comment is attached to the move
// it follows.
package pgnscan

import (
	"bytes"
	"errors"
	"strings"
)

var bom = []byte("\xEF\xBB\xBF")

var (
	ErrUnterminatedComment   = errors.New("unterminated comment")
	ErrUnterminatedVariation = errors.New("unterminated variation")
)

// Move is one main-line move with its annotation text.
type Move struct {
	SAN     string
	Comment string
}

// Game is a decoded game record.
type Game struct {
	Offset  int
	Tags    map[string]string
	Moves   []Move
	Comment string // text before the first move
	Result  string // termination marker, empty if missing
}

// Reader decodes games from a read-only buffer. It holds no cursor and is
// safe for concurrent use.
type Reader struct {
	buf []byte
}

// NewReader returns a Reader over buf. buf must not be modified afterwards.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Len returns the size of the underlying buffer.
func (r *Reader) Len() int {
	return len(r.buf)
}

// SkipGame decodes the tag section at off and skips the movetext that
// follows. It returns the offset just past the game, or ok=false when no
// tag section starts at off.
func (r *Reader) SkipGame(off int) (next int, ok bool) {
	_, pos, ok := r.readTags(off, false)
	if !ok {
		return off, false
	}
	next, _, err := r.readMovetext(pos, nil)
	if err != nil {
		// a broken body still ends the corpus; Game reports the error
		return len(r.buf), true
	}
	return next, true
}

// Game decodes the game record starting at off. It returns a nil game when
// no tag section starts at off.
func (r *Reader) Game(off int) (*Game, int, error) {
	tags, pos, ok := r.readTags(off, true)
	if !ok {
		return nil, off, nil
	}

	g := &Game{Offset: off, Tags: tags}
	next, result, err := r.readMovetext(pos, g)
	if err != nil {
		return nil, next, err
	}
	g.Result = result
	return g, next, nil
}

// Remaining returns the number of bytes from off to the end of the buffer,
// not counting leading whitespace and escape lines. It is zero when nothing
// but blank space follows off.
func (r *Reader) Remaining(off int) int {
	if off >= len(r.buf) {
		return 0
	}
	return len(r.buf) - r.skipSpaceAndEscapes(off)
}

// readTags reads consecutive [Name "value"] lines. ok reports whether at
// least one tag line was present.
func (r *Reader) readTags(off int, collect bool) (map[string]string, int, bool) {
	var tags map[string]string
	if collect {
		tags = make(map[string]string)
	}

	pos := off
	found := false
	for {
		pos = r.skipSpaceAndEscapes(pos)
		if pos >= len(r.buf) || r.buf[pos] != '[' {
			break
		}
		found = true
		end := r.lineEnd(pos)
		if collect {
			if name, value, ok := parseTag(r.buf[pos:end]); ok {
				tags[name] = value
			}
		}
		pos = end
	}
	return tags, pos, found
}

// skipSpaceAndEscapes skips whitespace, "%" escape lines and byte order
// marks at the start of a line.
func (r *Reader) skipSpaceAndEscapes(pos int) int {
	lineStart := pos == 0 || r.buf[pos-1] == '\n'
	for pos < len(r.buf) {
		c := r.buf[pos]
		switch {
		case c == '\n':
			lineStart = true
			pos++
		case isSpace(c):
			pos++
		case c == '%' && lineStart:
			pos = r.lineEnd(pos)
		case c == bom[0] && lineStart && bytes.HasPrefix(r.buf[pos:], bom):
			pos += len(bom)
		default:
			return pos
		}
	}
	return pos
}

// lineEnd returns the offset just past the newline ending the line at pos.
func (r *Reader) lineEnd(pos int) int {
	for pos < len(r.buf) {
		if r.buf[pos] == '\n' {
			return pos + 1
		}
		pos++
	}
	return pos
}

// readMovetext walks the movetext at pos up to a termination marker, the
// next tag section or the end of the buffer. Moves and comments are stored
// in g when it is non-nil.
func (r *Reader) readMovetext(pos int, g *Game) (next int, result string, err error) {
	buf := r.buf
	depth := 0
	lineStart := true

	for pos < len(buf) {
		c := buf[pos]
		switch {
		case c == '\n':
			lineStart = true
			pos++
			continue
		case isSpace(c):
			pos++
			continue
		case c == '[' && lineStart:
			if depth > 0 {
				return pos, "", ErrUnterminatedVariation
			}
			return pos, "", nil
		case c == '%' && lineStart:
			pos = r.lineEnd(pos)
			continue
		case c == bom[0] && lineStart && bytes.HasPrefix(buf[pos:], bom):
			pos += len(bom)
			continue
		}
		lineStart = false

		switch c {
		case '{':
			end := bytes.IndexByte(buf[pos+1:], '}')
			if end < 0 {
				return len(buf), "", ErrUnterminatedComment
			}
			end += pos + 1
			if g != nil && depth == 0 {
				g.addComment(string(buf[pos+1 : end]))
			}
			pos = end + 1
		case ';':
			end := r.lineEnd(pos)
			if g != nil && depth == 0 {
				g.addComment(string(buf[pos+1 : end]))
			}
			pos = end
			lineStart = true
		case '(':
			depth++
			pos++
		case ')':
			if depth > 0 {
				depth--
			}
			pos++
		case '}', '[', ']':
			pos++
		case '$':
			pos++
			for pos < len(buf) && isDigit(buf[pos]) {
				pos++
			}
		default:
			start := pos
			for pos < len(buf) && !isDelimiter(buf[pos]) {
				pos++
			}
			if depth > 0 {
				continue
			}
			tok := string(buf[start:pos])
			if isTermination(tok) {
				next, err := r.skipTrailer(pos)
				return next, tok, err
			}
			if san := stripMoveNumber(tok); san != "" && g != nil {
				g.Moves = append(g.Moves, Move{SAN: san})
			}
		}
	}

	if depth > 0 {
		return pos, "", ErrUnterminatedVariation
	}
	return pos, "", nil
}

// skipTrailer skips whatever follows a termination marker up to the next
// tag section or the end of the buffer. Comments are honored so that a
// bracket inside one does not start a game.
func (r *Reader) skipTrailer(pos int) (int, error) {
	buf := r.buf
	lineStart := false
	blank := true // nothing but whitespace since the marker
	for pos < len(buf) {
		c := buf[pos]
		switch {
		case c == '\n':
			lineStart = true
			pos++
			continue
		case isSpace(c):
			pos++
			continue
		case c == '[' && (lineStart || blank):
			return pos, nil
		case c == '%' && lineStart:
			pos = r.lineEnd(pos)
			continue
		case c == bom[0] && lineStart && bytes.HasPrefix(buf[pos:], bom):
			pos += len(bom)
			continue
		}
		lineStart = false
		blank = false

		switch c {
		case '{':
			end := bytes.IndexByte(buf[pos+1:], '}')
			if end < 0 {
				return len(buf), ErrUnterminatedComment
			}
			pos += end + 2
		case ';':
			pos = r.lineEnd(pos)
			lineStart = true
		default:
			pos++
		}
	}
	return pos, nil
}

func (g *Game) addComment(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	target := &g.Comment
	if n := len(g.Moves); n > 0 {
		target = &g.Moves[n-1].Comment
	}
	if *target == "" {
		*target = text
	} else {
		*target += " " + text
	}
}

// parseTag parses a [Name "value"] line.
func parseTag(line []byte) (name, value string, ok bool) {
	s := strings.TrimSpace(string(line))
	s, ok = strings.CutPrefix(s, "[")
	if !ok {
		return "", "", false
	}
	s = strings.TrimSpace(s)

	i := 0
	for i < len(s) && !isSpace(s[i]) && s[i] != '"' {
		i++
	}
	name = s[:i]
	s = strings.TrimSpace(s[i:])
	if name == "" || !strings.HasPrefix(s, "\"") {
		return "", "", false
	}

	var b strings.Builder
	for j := 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			if j+1 < len(s) {
				j++
				b.WriteByte(s[j])
			}
		case '"':
			return name, b.String(), true
		default:
			b.WriteByte(s[j])
		}
	}
	return "", "", false
}

// stripMoveNumber removes a leading "12." or "12..." from a token.
func stripMoveNumber(tok string) string {
	i := 0
	for i < len(tok) && isDigit(tok[i]) {
		i++
	}
	if i == len(tok) {
		return ""
	}
	if tok[i] != '.' && i > 0 {
		// castling written with zeros
		return tok
	}
	return strings.TrimLeft(tok[i:], ".")
}

func isTermination(tok string) bool {
	switch tok {
	case "1-0", "0-1", "1/2-1/2", "*":
		return true
	}
	return false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isDelimiter(c byte) bool {
	return isSpace(c) || c == '{' || c == '}' || c == '(' || c == ')' || c == ';' || c == '[' || c == ']' || c == '$'
}
