package scanner

import (
	"errors"
	"fmt"
	"io"

	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// Keyword is a bare keyword met where an object was expected, e.g. a content
// stream operator or "endobj".
type Keyword string

func (Keyword) Type() string { return "keyword" }

// ErrUnexpected is returned for structural tokens that cannot start an
// object, such as a stray "]".
var ErrUnexpected = errors.New("unexpected token")

// ReadObject reads one complete object. Keywords are returned as Keyword
// values so callers can dispatch on them.
func (s *Scanner) ReadObject() (sdf.Obj, error) {
	tok, err := s.Next()
	if err != nil {
		return nil, err
	}
	return s.objectFrom(tok)
}

func (s *Scanner) objectFrom(tok Token) (sdf.Obj, error) {
	switch tok.Type {
	case TokenNumber:
		if tok.IsInt && !s.cfg.Content && tok.Int >= 0 {
			if ref, ok := s.tryRef(tok.Int); ok {
				return ref, nil
			}
		}
		if tok.IsInt {
			return sdf.Int(tok.Int), nil
		}
		return sdf.Real(tok.Float), nil
	case TokenName:
		return sdf.Name(tok.Str), nil
	case TokenString:
		return sdf.String{Value: tok.Bytes, Hex: tok.Hex}, nil
	case TokenBoolean:
		return sdf.Bool(tok.Bool), nil
	case TokenNull:
		return sdf.Null{}, nil
	case TokenArray:
		return s.readArray()
	case TokenDict:
		return s.readDict()
	case TokenKeyword:
		return Keyword(tok.Str), nil
	}
	return nil, fmt.Errorf("%w %s at %d", ErrUnexpected, tok.Type, tok.Pos)
}

// tryRef looks ahead for "gen R" after an object number.
func (s *Scanner) tryRef(num int64) (sdf.Obj, bool) {
	save := s.pos
	gen, err := s.Next()
	if err == nil && gen.Type == TokenNumber && gen.IsInt && gen.Int >= 0 {
		r, err := s.Next()
		if err == nil && r.Type == TokenKeyword && r.Str == "R" {
			return sdf.Ref{Num: int(num), Gen: int(gen.Int)}, true
		}
	}
	s.pos = save
	return nil, false
}

func (s *Scanner) enter() error {
	s.depth++
	if s.cfg.MaxDepth > 0 && s.depth > s.cfg.MaxDepth {
		return fmt.Errorf("nesting deeper than %d at %d", s.cfg.MaxDepth, s.pos)
	}
	return nil
}

func (s *Scanner) readArray() (sdf.Obj, error) {
	if err := s.enter(); err != nil {
		return nil, err
	}
	defer func() { s.depth-- }()
	arr := sdf.NewArray()
	for {
		tok, err := s.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if rerr := s.recover(errors.New("unterminated array"), "array"); rerr == nil {
					return arr, nil
				}
			}
			return nil, err
		}
		if tok.Type == TokenArrayEnd {
			return arr, nil
		}
		if tok.Type == TokenDictEnd {
			if err := s.recover(errors.New("'>>' inside array"), "array"); err != nil {
				return nil, err
			}
			continue
		}
		o, err := s.objectFrom(tok)
		if err != nil {
			return nil, err
		}
		if kw, ok := o.(Keyword); ok {
			if kw == "endobj" || kw == "stream" {
				if err := s.recover(errors.New("unterminated array"), "array"); err != nil {
					return nil, err
				}
				s.pos = tok.Pos
				return arr, nil
			}
		}
		arr.Append(o)
	}
}

func (s *Scanner) readDict() (sdf.Obj, error) {
	if err := s.enter(); err != nil {
		return nil, err
	}
	defer func() { s.depth-- }()
	dict := sdf.NewDict()
	for {
		tok, err := s.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if rerr := s.recover(errors.New("unterminated dictionary"), "dict"); rerr == nil {
					return dict, nil
				}
			}
			return nil, err
		}
		switch tok.Type {
		case TokenDictEnd:
			return dict, nil
		case TokenName:
		case TokenKeyword:
			if tok.Str == "endobj" || tok.Str == "stream" {
				if err := s.recover(errors.New("unterminated dictionary"), "dict"); err != nil {
					return nil, err
				}
				s.pos = tok.Pos
				return dict, nil
			}
			fallthrough
		default:
			if err := s.recover(fmt.Errorf("dictionary key is %s", tok.Type), "dict"); err != nil {
				return nil, err
			}
			continue
		}
		vtok, err := s.Next()
		if err != nil {
			return nil, err
		}
		if vtok.Type == TokenDictEnd {
			if err := s.recover(fmt.Errorf("dictionary value for /%s missing", tok.Str), "dict"); err != nil {
				return nil, err
			}
			return dict, nil
		}
		val, err := s.objectFrom(vtok)
		if err != nil {
			return nil, err
		}
		if kw, ok := val.(Keyword); ok {
			// "/Key >>" with the value missing.
			if err := s.recover(fmt.Errorf("dictionary value for /%s is keyword %q", tok.Str, string(kw)), "dict"); err != nil {
				return nil, err
			}
			continue
		}
		dict.Set(sdf.Name(tok.Str), val)
	}
}
