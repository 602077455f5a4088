package filters

import (
	"bytes"
	"context"
	"encoding/ascii85"
	"encoding/hex"
	"fmt"

	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

type asciiHexCodec struct{}

func (asciiHexCodec) Name() string { return "ASCIIHexDecode" }

func NewASCIIHexDecoder() Decoder { return asciiHexCodec{} }

func (asciiHexCodec) Decode(_ context.Context, in []byte, _ *sdf.Dict) ([]byte, error) {
	digits := make([]byte, 0, len(in))
	for _, c := range in {
		if c == '>' {
			break
		}
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == 0:
		case (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F'):
			digits = append(digits, c)
		default:
			return nil, fmt.Errorf("invalid hex digit %q", c)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, hex.DecodedLen(len(digits)))
	n, err := hex.Decode(out, digits)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

func (asciiHexCodec) Encode(in []byte, _ *sdf.Dict) ([]byte, error) {
	out := make([]byte, 0, len(in)*2+len(in)/32+1)
	for i, b := range in {
		if i > 0 && i%32 == 0 {
			out = append(out, '\n')
		}
		out = append(out, "0123456789ABCDEF"[b>>4], "0123456789ABCDEF"[b&0xF])
	}
	return append(out, '>'), nil
}

type ascii85Codec struct{}

func (ascii85Codec) Name() string { return "ASCII85Decode" }

func NewASCII85Decoder() Decoder { return ascii85Codec{} }

func (ascii85Codec) Decode(_ context.Context, in []byte, _ *sdf.Dict) ([]byte, error) {
	trimmed := bytes.TrimSpace(in)
	trimmed = bytes.TrimPrefix(trimmed, []byte("<~"))
	if i := bytes.Index(trimmed, []byte("~>")); i >= 0 {
		trimmed = trimmed[:i]
	}
	out := make([]byte, len(trimmed)*4+4)
	n, _, err := ascii85.Decode(out, trimmed, true)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

func (ascii85Codec) Encode(in []byte, _ *sdf.Dict) ([]byte, error) {
	out := make([]byte, ascii85.MaxEncodedLen(len(in)))
	n := ascii85.Encode(out, in)
	return append(out[:n], '~', '>'), nil
}

type runLengthCodec struct{}

func (runLengthCodec) Name() string { return "RunLengthDecode" }

func NewRunLengthDecoder() Decoder { return runLengthCodec{} }

func (runLengthCodec) Decode(ctx context.Context, in []byte, _ *sdf.Dict) ([]byte, error) {
	limit := outputLimit(ctx)
	var out []byte
	for i := 0; i < len(in); {
		n := int(in[i])
		i++
		switch {
		case n == 128:
			return out, nil
		case n < 128:
			end := i + n + 1
			if end > len(in) {
				end = len(in)
			}
			out = append(out, in[i:end]...)
			i = end
		default:
			if i >= len(in) {
				return out, nil
			}
			out = append(out, bytes.Repeat(in[i:i+1], 257-n)...)
			i++
		}
		if limit > 0 && int64(len(out)) > limit {
			return nil, fmt.Errorf("%w: more than %d bytes", ErrLimit, limit)
		}
	}
	return out, nil
}

func (runLengthCodec) Encode(in []byte, _ *sdf.Dict) ([]byte, error) {
	var out []byte
	for i := 0; i < len(in); {
		run := 1
		for i+run < len(in) && run < 128 && in[i+run] == in[i] {
			run++
		}
		if run > 1 {
			out = append(out, byte(257-run), in[i])
			i += run
			continue
		}
		start := i
		for i < len(in) && i-start < 128 && (i+1 >= len(in) || in[i+1] != in[i]) {
			i++
		}
		if i == start {
			i++
		}
		out = append(out, byte(i-start-1))
		out = append(out, in[start:i]...)
	}
	return append(out, 128), nil
}
