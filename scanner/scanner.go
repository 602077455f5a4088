// Package scanner tokenizes PDF syntax from an io.ReaderAt and assembles
// tokens into sdf objects.
package scanner

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/NityaNandPandey/AndroidPDF/recovery"
)

type TokenType int

const (
	TokenDict        TokenType = iota // '<<'
	TokenDictEnd                      // '>>'
	TokenArray                        // '['
	TokenArrayEnd                     // ']'
	TokenName                         // '/Name'
	TokenString                       // literal or hex string
	TokenNumber                       // integer or real
	TokenBoolean                      // true/false
	TokenNull                         // null
	TokenKeyword                      // obj, endobj, stream, R, content operators
)

func (t TokenType) String() string {
	switch t {
	case TokenDict:
		return "<<"
	case TokenDictEnd:
		return ">>"
	case TokenArray:
		return "["
	case TokenArrayEnd:
		return "]"
	case TokenName:
		return "name"
	case TokenString:
		return "string"
	case TokenNumber:
		return "number"
	case TokenBoolean:
		return "boolean"
	case TokenNull:
		return "null"
	case TokenKeyword:
		return "keyword"
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

type Token struct {
	Type  TokenType
	Str   string // name (decoded) or keyword
	Bytes []byte // string payload
	Hex   bool   // string was written in hex form
	Int   int64
	Float float64
	IsInt bool
	Bool  bool
	Pos   int64
}

// Config bounds what the scanner accepts. Zero values disable a limit.
type Config struct {
	MaxStringLength int64
	MaxDepth        int
	MaxStreamLength int64
	MaxInlineImage  int64
	WindowSize      int64
	Recovery        recovery.Strategy
	// Content switches off indirect reference detection ("1 0 R"), which
	// does not occur in content streams.
	Content bool
}

// Scanner reads tokens. Data is pulled from the underlying reader in
// windows as the position advances.
type Scanner struct {
	reader    io.ReaderAt
	data      []byte
	pos       int64
	cfg       Config
	chunkSize int64
	eof       bool
	recLoc    recovery.Location
	depth     int
}

func New(r io.ReaderAt, cfg Config) *Scanner {
	chunk := cfg.WindowSize
	if chunk <= 0 {
		chunk = 64 * 1024
	}
	return &Scanner{reader: r, cfg: cfg, chunkSize: chunk}
}

// NewBytes scans an in-memory buffer.
func NewBytes(b []byte, cfg Config) *Scanner {
	return &Scanner{data: b, cfg: cfg, eof: true, chunkSize: 1}
}

func (s *Scanner) Position() int64 { return s.pos }

func (s *Scanner) Seek(offset int64) error {
	if offset < 0 {
		return errors.New("seek out of range")
	}
	if err := s.ensure(offset - 1); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if offset > int64(len(s.data)) {
		return errors.New("seek out of range")
	}
	s.pos = offset
	return nil
}

// SetRecoveryLocation tags subsequent recovery reports with loc.
func (s *Scanner) SetRecoveryLocation(loc recovery.Location) { s.recLoc = loc }

// Next returns the next token, or io.EOF.
func (s *Scanner) Next() (Token, error) {
	if err := s.skipWSAndComments(); err != nil {
		return Token{}, err
	}
	start := s.pos
	c := s.data[s.pos]
	switch c {
	case '<':
		if s.peekAhead(1) == '<' {
			s.pos += 2
			return Token{Type: TokenDict, Pos: start}, nil
		}
		return s.scanHexString()
	case '>':
		if s.peekAhead(1) == '>' {
			s.pos += 2
			return Token{Type: TokenDictEnd, Pos: start}, nil
		}
		s.pos++
		return Token{Type: TokenKeyword, Str: ">", Pos: start}, nil
	case '[':
		s.pos++
		return Token{Type: TokenArray, Pos: start}, nil
	case ']':
		s.pos++
		return Token{Type: TokenArrayEnd, Pos: start}, nil
	case '(':
		return s.scanLiteralString()
	case '/':
		return s.scanName()
	case '{', '}':
		s.pos++
		return Token{Type: TokenKeyword, Str: string(c), Pos: start}, nil
	}
	if isDigitStart(c) {
		return s.scanNumber()
	}
	return s.scanKeyword()
}

func (s *Scanner) skipWSAndComments() error {
	for {
		if err := s.ensure(s.pos); err != nil {
			return err
		}
		c := s.data[s.pos]
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			for {
				s.pos++
				if err := s.ensure(s.pos); err != nil {
					return err
				}
				if isEOL(s.data[s.pos]) {
					break
				}
			}
			continue
		}
		return nil
	}
}

// ensure makes data[n] addressable or returns io.EOF.
func (s *Scanner) ensure(n int64) error {
	for int64(len(s.data)) <= n {
		if s.eof {
			return io.EOF
		}
		if err := s.loadMore(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scanner) loadMore() error {
	buf := make([]byte, s.chunkSize)
	n, err := s.reader.ReadAt(buf, int64(len(s.data)))
	if n > 0 {
		s.data = append(s.data, buf[:n]...)
	}
	if err == io.EOF || (err == nil && n == 0) {
		s.eof = true
		return nil
	}
	return err
}

func (s *Scanner) peekAhead(n int64) byte {
	if err := s.ensure(s.pos + n); err != nil {
		return 0
	}
	return s.data[s.pos+n]
}

// at returns the byte at pos and whether it exists.
func (s *Scanner) at(pos int64) (byte, bool) {
	if err := s.ensure(pos); err != nil {
		return 0, false
	}
	return s.data[pos], true
}

func (s *Scanner) scanName() (Token, error) {
	start := s.pos
	s.pos++
	var out bytes.Buffer
	for {
		c, ok := s.at(s.pos)
		if !ok || isDelimiter(c) {
			break
		}
		if c == '#' {
			a, aok := s.at(s.pos + 1)
			b, bok := s.at(s.pos + 2)
			if aok && bok && isHex(a) && isHex(b) {
				out.WriteByte(fromHex(a)<<4 | fromHex(b))
				s.pos += 3
				continue
			}
		}
		out.WriteByte(c)
		s.pos++
	}
	return Token{Type: TokenName, Str: out.String(), Pos: start}, nil
}

func (s *Scanner) scanLiteralString() (Token, error) {
	start := s.pos
	s.pos++
	var buf bytes.Buffer
	depth := 1
	for depth > 0 {
		c, ok := s.at(s.pos)
		if !ok {
			if err := s.recover(errors.New("unterminated literal string"), "literal"); err != nil {
				return Token{}, err
			}
			break
		}
		s.pos++
		switch c {
		case '\\':
			esc, ok := s.at(s.pos)
			if !ok {
				continue
			}
			s.pos++
			switch {
			case esc == '\r':
				if n, ok := s.at(s.pos); ok && n == '\n' {
					s.pos++
				}
			case esc == '\n':
			case esc >= '0' && esc <= '7':
				val := int(esc - '0')
				for k := 0; k < 2; k++ {
					d, ok := s.at(s.pos)
					if !ok || d < '0' || d > '7' {
						break
					}
					val = val<<3 + int(d-'0')
					s.pos++
				}
				buf.WriteByte(byte(val))
			default:
				buf.WriteByte(translateEscape(esc))
			}
			continue
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				continue
			}
		case '\r':
			// EOL inside a string is normalized to LF.
			if n, ok := s.at(s.pos); ok && n == '\n' {
				s.pos++
			}
			c = '\n'
		}
		buf.WriteByte(c)
		if s.cfg.MaxStringLength > 0 && int64(buf.Len()) > s.cfg.MaxStringLength {
			return Token{}, fmt.Errorf("literal string at %d exceeds %d bytes", start, s.cfg.MaxStringLength)
		}
	}
	return Token{Type: TokenString, Bytes: buf.Bytes(), Pos: start}, nil
}

func (s *Scanner) scanHexString() (Token, error) {
	start := s.pos
	s.pos++
	var out []byte
	var hi byte
	half := false
	for {
		c, ok := s.at(s.pos)
		if !ok {
			if err := s.recover(errors.New("unterminated hex string"), "hex"); err != nil {
				return Token{}, err
			}
			break
		}
		s.pos++
		if c == '>' {
			break
		}
		if isWhitespace(c) {
			continue
		}
		if !isHex(c) {
			if err := s.recover(fmt.Errorf("invalid hex digit %q", c), "hex"); err != nil {
				return Token{}, err
			}
			continue
		}
		if half {
			out = append(out, hi<<4|fromHex(c))
		} else {
			hi = fromHex(c)
		}
		half = !half
		if s.cfg.MaxStringLength > 0 && int64(len(out)) > s.cfg.MaxStringLength {
			return Token{}, fmt.Errorf("hex string at %d exceeds %d bytes", start, s.cfg.MaxStringLength)
		}
	}
	if half {
		out = append(out, hi<<4)
	}
	return Token{Type: TokenString, Bytes: out, Hex: true, Pos: start}, nil
}

func (s *Scanner) scanNumber() (Token, error) {
	start := s.pos
	var buf []byte
	for {
		c, ok := s.at(s.pos)
		if !ok || !(c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9')) {
			break
		}
		buf = append(buf, c)
		s.pos++
	}
	str := string(buf)
	if i, err := strconv.ParseInt(str, 10, 64); err == nil {
		return Token{Type: TokenNumber, Int: i, Float: float64(i), IsInt: true, Pos: start}, nil
	}
	f, err := parseReal(str)
	if err != nil {
		if rerr := s.recover(fmt.Errorf("invalid number %q", str), "number"); rerr != nil {
			return Token{}, rerr
		}
	}
	return Token{Type: TokenNumber, Float: f, Pos: start}, nil
}

// parseReal accepts the sloppy forms found in the wild ("--5", "1.2.3", "-").
func parseReal(str string) (float64, error) {
	if f, err := strconv.ParseFloat(str, 64); err == nil {
		return f, nil
	}
	neg := false
	for len(str) > 0 && (str[0] == '-' || str[0] == '+') {
		neg = neg != (str[0] == '-')
		str = str[1:]
	}
	if i := bytes.IndexByte([]byte(str), '.'); i >= 0 {
		if j := bytes.IndexAny([]byte(str[i+1:]), "+-."); j >= 0 {
			str = str[:i+1+j]
		}
	}
	if str == "" || str == "." {
		return 0, nil
	}
	f, err := strconv.ParseFloat(str, 64)
	if neg {
		f = -f
	}
	return f, err
}

func (s *Scanner) scanKeyword() (Token, error) {
	start := s.pos
	for {
		c, ok := s.at(s.pos)
		if !ok || isDelimiter(c) {
			break
		}
		s.pos++
	}
	if s.pos == start {
		// A stray delimiter such as ')'.
		s.pos++
		return Token{Type: TokenKeyword, Str: string(s.data[start]), Pos: start}, nil
	}
	kw := string(s.data[start:s.pos])
	switch kw {
	case "true", "false":
		return Token{Type: TokenBoolean, Bool: kw == "true", Str: kw, Pos: start}, nil
	case "null":
		return Token{Type: TokenNull, Str: kw, Pos: start}, nil
	}
	return Token{Type: TokenKeyword, Str: kw, Pos: start}, nil
}

// ReadStream reads a stream payload. The scanner must be positioned right
// after the "stream" keyword. A negative length makes it search for
// "endstream".
func (s *Scanner) ReadStream(length int64) ([]byte, error) {
	c, ok := s.at(s.pos)
	switch {
	case ok && c == '\r':
		s.pos++
		if n, ok := s.at(s.pos); ok && n == '\n' {
			s.pos++
		}
	case ok && c == '\n':
		s.pos++
	case ok && c == ' ':
		// Tolerate "stream \n".
		s.pos++
		if n, ok := s.at(s.pos); ok && n == '\n' {
			s.pos++
		}
	}
	dataStart := s.pos
	if s.cfg.MaxStreamLength > 0 && length > s.cfg.MaxStreamLength {
		return nil, fmt.Errorf("stream at %d declares %d bytes, limit %d", dataStart, length, s.cfg.MaxStreamLength)
	}
	if length >= 0 {
		end := dataStart + length
		if s.followedByEndstream(end) {
			payload := append([]byte(nil), s.data[dataStart:end]...)
			s.skipEndstream(end)
			return payload, nil
		}
		if err := s.recover(fmt.Errorf("stream /Length %d does not reach endstream", length), "stream"); err != nil {
			return nil, err
		}
	}
	return s.scanToEndstream(dataStart)
}

func (s *Scanner) followedByEndstream(end int64) bool {
	p := end
	for i := 0; i < 3; i++ {
		c, ok := s.at(p)
		if !ok || !isWhitespace(c) {
			break
		}
		p++
	}
	if err := s.ensure(p + 8); err != nil {
		return false
	}
	return bytes.Equal(s.data[p:p+9], []byte("endstream"))
}

func (s *Scanner) skipEndstream(end int64) {
	s.pos = end
	if idx := bytes.Index(s.data[end:], []byte("endstream")); idx >= 0 {
		s.pos = end + int64(idx) + 9
	}
}

func (s *Scanner) scanToEndstream(dataStart int64) ([]byte, error) {
	needle := []byte("endstream")
	searchFrom := dataStart
	for {
		if idx := bytes.Index(s.data[searchFrom:], needle); idx >= 0 {
			at := searchFrom + int64(idx)
			end := at
			if end > dataStart && s.data[end-1] == '\n' {
				end--
			}
			if end > dataStart && s.data[end-1] == '\r' {
				end--
			}
			s.pos = at + int64(len(needle))
			if s.cfg.MaxStreamLength > 0 && end-dataStart > s.cfg.MaxStreamLength {
				return nil, fmt.Errorf("stream at %d exceeds %d bytes", dataStart, s.cfg.MaxStreamLength)
			}
			return append([]byte(nil), s.data[dataStart:end]...), nil
		}
		if s.eof {
			break
		}
		// Keep a needle-sized overlap so a marker split across windows is found.
		if n := int64(len(s.data)) - int64(len(needle)); n > searchFrom {
			searchFrom = n
		}
		if err := s.loadMore(); err != nil {
			return nil, err
		}
	}
	if err := s.recover(errors.New("endstream not found"), "stream"); err != nil {
		return nil, err
	}
	s.pos = int64(len(s.data))
	return append([]byte(nil), s.data[dataStart:]...), nil
}

// ReadInlineImage reads inline image data after the ID operator up to the
// EI operator.
func (s *Scanner) ReadInlineImage() ([]byte, error) {
	if c, ok := s.at(s.pos); ok && isWhitespace(c) {
		s.pos++
	}
	dataStart := s.pos
	for {
		if err := s.ensure(s.pos + 1); err != nil {
			if err := s.recover(errors.New("unterminated inline image"), "inline_image"); err != nil {
				return nil, err
			}
			s.pos = int64(len(s.data))
			return append([]byte(nil), s.data[dataStart:]...), nil
		}
		if s.data[s.pos] == 'E' && s.data[s.pos+1] == 'I' &&
			s.pos > dataStart && isWhitespace(s.data[s.pos-1]) {
			next, ok := s.at(s.pos + 2)
			if !ok || isDelimiter(next) {
				end := s.pos - 1
				if end > dataStart && s.data[end-1] == '\r' && s.data[end] == '\n' {
					end--
				}
				payload := append([]byte(nil), s.data[dataStart:end]...)
				s.pos += 2
				return payload, nil
			}
		}
		s.pos++
		if s.cfg.MaxInlineImage > 0 && s.pos-dataStart > s.cfg.MaxInlineImage {
			return nil, fmt.Errorf("inline image at %d exceeds %d bytes", dataStart, s.cfg.MaxInlineImage)
		}
	}
}

// recover reports err to the recovery strategy. A nil return means the
// caller should repair and continue.
func (s *Scanner) recover(err error, component string) error {
	if s.cfg.Recovery == nil {
		return err
	}
	loc := s.recLoc
	loc.ByteOffset = s.pos
	if loc.Component != "" {
		loc.Component += "->"
	}
	loc.Component += "scanner:" + component
	if s.cfg.Recovery.OnError(nil, err, loc).Continue() {
		return nil
	}
	return err
}

func isWhitespace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}

func isEOL(c byte) bool { return c == '\r' || c == '\n' }

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return isWhitespace(c)
}

func isDigitStart(c byte) bool { return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') }

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func fromHex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	}
	return 0
}

func translateEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	}
	return c
}
