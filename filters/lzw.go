package filters

import (
	"bytes"
	stdlzw "compress/lzw"
	"context"
	"errors"
	"io"

	"github.com/NityaNandPandey/AndroidPDF/sdf"
	"golang.org/x/image/tiff/lzw"
)

type lzwDecoder struct{}

func (lzwDecoder) Name() string { return "LZWDecode" }

func NewLZWDecoder() Decoder { return lzwDecoder{} }

// Decode handles both code-width conventions: the default EarlyChange 1 is
// the TIFF variant, EarlyChange 0 the GIF one.
func (lzwDecoder) Decode(ctx context.Context, in []byte, params *sdf.Dict) ([]byte, error) {
	early := int64(1)
	if params != nil {
		if v, ok := sdf.Integer(params.Get("EarlyChange")); ok {
			early = v
		}
	}
	var r io.ReadCloser
	if early == 0 {
		r = stdlzw.NewReader(bytes.NewReader(in), stdlzw.MSB, 8)
	} else {
		r = lzw.NewReader(bytes.NewReader(in), lzw.MSB, 8)
	}
	defer r.Close()
	out, err := readLimited(ctx, r)
	if err != nil && !(errors.Is(err, io.ErrUnexpectedEOF) && len(out) > 0) {
		return nil, err
	}
	return unpredict(out, params)
}
