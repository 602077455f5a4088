package sdf

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"strconv"
)

// WriteOptions controls object serialization.
type WriteOptions struct {
	// HexStrings writes every string in hexadecimal form.
	HexStrings bool
}

// WriteObj serializes o in PDF syntax. Stream payloads are written as they
// are; the caller is responsible for /Length.
func WriteObj(w io.Writer, o Obj, opts WriteOptions) error {
	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriter(w)
		defer bw.Flush()
	}
	return writeObj(bw, o, opts)
}

// Bytes serializes o with default options.
func Bytes(o Obj) []byte {
	var buf bytes.Buffer
	_ = WriteObj(&buf, o, WriteOptions{})
	return buf.Bytes()
}

func writeObj(w *bufio.Writer, o Obj, opts WriteOptions) error {
	switch v := o.(type) {
	case nil, Null:
		w.WriteString("null")
	case Bool:
		if v {
			w.WriteString("true")
		} else {
			w.WriteString("false")
		}
	case Int:
		w.WriteString(strconv.FormatInt(int64(v), 10))
	case Real:
		w.WriteString(FormatReal(float64(v)))
	case Name:
		writeName(w, v)
	case String:
		data := v.Value
		if v.Hex || opts.HexStrings {
			w.WriteByte('<')
			w.WriteString(hex.EncodeToString(data))
			w.WriteByte('>')
		} else {
			writeLiteral(w, data)
		}
	case Ref:
		fmt.Fprintf(w, "%d %d R", v.Num, v.Gen)
	case *Array:
		w.WriteByte('[')
		for i, it := range v.Items() {
			if i > 0 {
				w.WriteByte(' ')
			}
			if err := writeObj(w, it, opts); err != nil {
				return err
			}
		}
		w.WriteByte(']')
	case *Dict:
		w.WriteString("<<")
		for _, k := range v.keys {
			writeName(w, k)
			w.WriteByte(' ')
			if err := writeObj(w, v.m[k], opts); err != nil {
				return err
			}
		}
		w.WriteString(">>")
	case *Stream:
		if err := writeObj(w, v.Dict, opts); err != nil {
			return err
		}
		w.WriteString("\nstream\n")
		w.Write(v.Data)
		w.WriteString("\nendstream")
	default:
		return fmt.Errorf("sdf: cannot serialize %T", o)
	}
	return nil
}

// FormatReal prints f without an exponent and with at most five decimals.
func FormatReal(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "0"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	s := strconv.FormatFloat(f, 'f', 5, 64)
	s = trimZeros(s)
	if s == "-0" {
		return "0"
	}
	return s
}

func trimZeros(s string) string {
	if !bytes.ContainsRune([]byte(s), '.') {
		return s
	}
	i := len(s)
	for i > 0 && s[i-1] == '0' {
		i--
	}
	if i > 0 && s[i-1] == '.' {
		i--
	}
	return s[:i]
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isWhite(c byte) bool {
	return c == 0 || c == '\t' || c == '\n' || c == '\f' || c == '\r' || c == ' '
}

func writeName(w *bufio.Writer, n Name) {
	w.WriteByte('/')
	for i := 0; i < len(n); i++ {
		c := n[i]
		if c < 0x21 || c > 0x7E || c == '#' || isDelimiter(c) {
			fmt.Fprintf(w, "#%02X", c)
			continue
		}
		w.WriteByte(c)
	}
}

func writeLiteral(w *bufio.Writer, b []byte) {
	w.WriteByte('(')
	for _, c := range b {
		switch c {
		case '(', ')', '\\':
			w.WriteByte('\\')
			w.WriteByte(c)
		case '\r':
			w.WriteString(`\r`)
		case '\n':
			w.WriteString(`\n`)
		default:
			w.WriteByte(c)
		}
	}
	w.WriteByte(')')
}
